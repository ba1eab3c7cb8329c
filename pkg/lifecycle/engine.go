// Package lifecycle owns the profile state machine
// (draft -> active -> deleted) and the photo and comment workflows around it.
// Every mutation is ownership checked; a foreign id is reported exactly like
// a missing one.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/gommon/log"
	"gorm.io/datatypes"

	"profilehub/models"
	"profilehub/pkg/apperr"
	"profilehub/pkg/photostore"
	"profilehub/pkg/storage"
)

// MaxProfilePhotos is the cap on active photos per profile.
const MaxProfilePhotos = 5

// Store is the part of the storage gateway the engine uses.
type Store interface {
	FindDraftProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	AddDraftProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error)
	FindActiveProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error)
	FindActiveOwnedProfile(ctx context.Context, id, userID uuid.UUID) (*models.Profile, error)
	PublishProfile(ctx context.Context, p *models.Profile, f storage.ProfileFields) (*models.Profile, error)
	DeleteProfileAndPhotos(ctx context.Context, p *models.Profile, photos []models.ProfilePhoto) error

	CountActivePhotos(ctx context.Context, profileID uuid.UUID) (int64, error)
	FindActivePhotos(ctx context.Context, profileID uuid.UUID) ([]models.ProfilePhoto, error)
	AddPhoto(ctx context.Context, profileID uuid.UUID, fileName string, size int64) (*models.ProfilePhoto, error)
	FindOwnedPhoto(ctx context.Context, photoID, userID uuid.UUID) (*models.ProfilePhoto, error)
	MarkPhotoDeleted(ctx context.Context, photo *models.ProfilePhoto) error

	AddComment(ctx context.Context, profileID, userID uuid.UUID, text string) (*models.Comment, error)
	FindCommentByProfileAndUser(ctx context.Context, profileID, userID uuid.UUID) (*models.Comment, error)
	FindOwnedComment(ctx context.Context, id, userID uuid.UUID) (*models.Comment, error)
	MarkCommentRemoved(ctx context.Context, c *models.Comment) error

	AddReport(ctx context.Context, r *models.Report) error
}

// Photos is the part of the photo store the engine uses.
type Photos interface {
	SavePhoto(ctx context.Context, src io.Reader, originalName string, profileID uuid.UUID) (photostore.Saved, error)
	DeletePhoto(ctx context.Context, profileID uuid.UUID, name string) error
	DeleteProfileFolder(ctx context.Context, profileID uuid.UUID) error
}

// Notifier is told about new reports. Failures are logged, never returned.
type Notifier interface {
	NotifyReport(ctx context.Context, r *models.Report) error
}

// Upload is one file of a multipart photo upload.
type Upload struct {
	Name string
	Open func() (io.ReadCloser, error)
}

type Engine struct {
	store    Store
	photos   Photos
	notifier Notifier
	locks    *userLocks
	wg       sync.WaitGroup
}

func New(store Store, photos Photos, notifier Notifier) *Engine {
	return &Engine{store: store, photos: photos, notifier: notifier, locks: newUserLocks()}
}

// Wait blocks until pending report notifications are done.
func (e *Engine) Wait() { e.wg.Wait() }

// ResolveDraft returns the user's draft profile, creating it when missing.
func (e *Engine) ResolveDraft(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	unlock := e.locks.lock(userID)
	defer unlock()
	return e.resolveDraft(ctx, userID)
}

func (e *Engine) resolveDraft(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	p, err := e.store.FindDraftProfile(ctx, userID)
	if err != nil {
		return nil, apperr.Server(err)
	}
	if p != nil {
		return p, nil
	}
	p, err = e.store.AddDraftProfile(ctx, userID)
	if err != nil {
		return nil, apperr.Server(err)
	}
	log.Infof("draft profile %s created for user %s", p.ID, userID)
	return p, nil
}

// DraftForAdd resolves the draft and loads the photos already attached to it.
func (e *Engine) DraftForAdd(ctx context.Context, userID uuid.UUID) (*models.Profile, []models.ProfilePhoto, error) {
	p, err := e.ResolveDraft(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	photos, err := e.store.FindActivePhotos(ctx, p.ID)
	if err != nil {
		return nil, nil, apperr.Server(err)
	}
	return p, photos, nil
}

// ProfileForEdit loads an active profile owned by userID with its photos.
func (e *Engine) ProfileForEdit(ctx context.Context, userID, profileID uuid.UUID) (*models.Profile, []models.ProfilePhoto, error) {
	p, err := e.store.FindActiveOwnedProfile(ctx, profileID, userID)
	if err != nil {
		return nil, nil, apperr.Server(err)
	}
	if p == nil {
		return nil, nil, apperr.NotFound()
	}
	photos, err := e.store.FindActivePhotos(ctx, p.ID)
	if err != nil {
		return nil, nil, apperr.Server(err)
	}
	return p, photos, nil
}

// Publish applies fields to the profile and makes it active. With a nil
// profileID the user's draft is published; otherwise the id must name an
// active profile of the user. updated reports the edit case.
func (e *Engine) Publish(ctx context.Context, userID uuid.UUID, profileID *uuid.UUID, fields storage.ProfileFields) (p *models.Profile, updated bool, err error) {
	unlock := e.locks.lock(userID)
	defer unlock()

	target, err := e.targetProfile(ctx, userID, profileID)
	if err != nil {
		return nil, false, err
	}
	out, err := e.store.PublishProfile(ctx, target, fields)
	if err != nil {
		return nil, false, apperr.Server(err)
	}
	log.Infof("profile %s published by user %s (update=%t)", out.ID, userID, profileID != nil)
	return out, profileID != nil, nil
}

// targetProfile is the shared resolution for publish and photo upload.
func (e *Engine) targetProfile(ctx context.Context, userID uuid.UUID, profileID *uuid.UUID) (*models.Profile, error) {
	if profileID == nil {
		return e.resolveDraft(ctx, userID)
	}
	p, err := e.store.FindActiveOwnedProfile(ctx, *profileID, userID)
	if err != nil {
		return nil, apperr.Server(err)
	}
	if p == nil {
		return nil, apperr.BadParams(apperr.CodeBadRequest)
	}
	return p, nil
}

// AddPhotos stores files for the profile. Each file is written to disk before
// its row is inserted; a failed insert leaves an orphan file behind.
func (e *Engine) AddPhotos(ctx context.Context, userID uuid.UUID, profileID *uuid.UUID, files []Upload) (*models.Profile, []models.ProfilePhoto, error) {
	if len(files) == 0 {
		return nil, nil, apperr.BadParams(apperr.CodeBadRequest)
	}
	unlock := e.locks.lock(userID)
	defer unlock()

	p, err := e.targetProfile(ctx, userID, profileID)
	if err != nil {
		return nil, nil, err
	}
	count, err := e.store.CountActivePhotos(ctx, p.ID)
	if err != nil {
		return nil, nil, apperr.Server(err)
	}
	if count+int64(len(files)) > MaxProfilePhotos {
		return p, nil, apperr.BadParams(apperr.CodeTooManyPhotos)
	}

	added := make([]models.ProfilePhoto, 0, len(files))
	for _, f := range files {
		photo, err := e.addPhoto(ctx, p.ID, f)
		if err != nil {
			return p, added, err
		}
		added = append(added, *photo)
	}
	return p, added, nil
}

func (e *Engine) addPhoto(ctx context.Context, profileID uuid.UUID, f Upload) (*models.ProfilePhoto, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, apperr.Server(fmt.Errorf("open upload %q: %w", f.Name, err))
	}
	defer rc.Close()

	saved, err := e.photos.SavePhoto(ctx, rc, f.Name, profileID)
	if err != nil {
		switch {
		case errors.Is(err, photostore.ErrNotImage):
			return nil, apperr.Wrap(apperr.KindBadParams, apperr.CodeNotImage, err)
		case errors.Is(err, photostore.ErrTooLarge):
			return nil, apperr.Wrap(apperr.KindBadParams, apperr.CodeImageTooLarge, err)
		}
		return nil, apperr.Server(err)
	}
	photo, err := e.store.AddPhoto(ctx, profileID, saved.Name, saved.Size)
	if err != nil {
		log.Warnf("photo file %s/%s saved without a row: %v", profileID, saved.Name, err)
		return nil, apperr.Server(err)
	}
	return photo, nil
}

// DeletePhoto soft deletes one of the user's photos. Deleting an already
// deleted photo succeeds without side effects.
func (e *Engine) DeletePhoto(ctx context.Context, userID, photoID uuid.UUID) error {
	unlock := e.locks.lock(userID)
	defer unlock()

	photo, err := e.store.FindOwnedPhoto(ctx, photoID, userID)
	if err != nil {
		return apperr.Server(err)
	}
	if photo == nil {
		return apperr.NotFound()
	}
	if photo.Status == models.PhotoDeleted {
		return nil
	}
	if err := e.store.MarkPhotoDeleted(ctx, photo); err != nil {
		return apperr.Server(err)
	}
	if err := e.photos.DeletePhoto(ctx, photo.ProfileID, photo.FileName); err != nil {
		return apperr.Server(err)
	}
	return nil
}

// DeleteProfile marks the profile and its active photos deleted, then renames
// the photo folder. Partial progress is not rolled back.
func (e *Engine) DeleteProfile(ctx context.Context, userID, profileID uuid.UUID) error {
	unlock := e.locks.lock(userID)
	defer unlock()

	p, err := e.store.FindActiveOwnedProfile(ctx, profileID, userID)
	if err != nil {
		return apperr.Server(err)
	}
	if p == nil {
		return apperr.NotFound()
	}
	photos, err := e.store.FindActivePhotos(ctx, p.ID)
	if err != nil {
		return apperr.Server(err)
	}
	if err := e.store.DeleteProfileAndPhotos(ctx, p, photos); err != nil {
		return apperr.Server(err)
	}
	if err := e.photos.DeleteProfileFolder(ctx, p.ID); err != nil {
		return apperr.Server(err)
	}
	log.Infof("profile %s deleted by user %s (%d photos)", p.ID, userID, len(photos))
	return nil
}

// AddComment adds the user's single comment on an active profile.
func (e *Engine) AddComment(ctx context.Context, userID, profileID uuid.UUID, text string) (*models.Comment, error) {
	unlock := e.locks.lock(userID)
	defer unlock()

	p, err := e.store.FindActiveProfile(ctx, profileID)
	if err != nil {
		return nil, apperr.Server(err)
	}
	if p == nil {
		return nil, apperr.NotFound()
	}
	existing, err := e.store.FindCommentByProfileAndUser(ctx, profileID, userID)
	if err != nil {
		return nil, apperr.Server(err)
	}
	if existing != nil {
		return nil, apperr.BadParams(apperr.CodeCommentExists)
	}
	c, err := e.store.AddComment(ctx, profileID, userID, text)
	if errors.Is(err, storage.ErrCommentExists) {
		return nil, apperr.Wrap(apperr.KindBadParams, apperr.CodeCommentExists, err)
	}
	if err != nil {
		return nil, apperr.Server(err)
	}
	return c, nil
}

// RemoveComment removes the user's own comment and returns its profile id.
func (e *Engine) RemoveComment(ctx context.Context, userID, commentID uuid.UUID) (uuid.UUID, error) {
	c, err := e.store.FindOwnedComment(ctx, commentID, userID)
	if err != nil {
		return uuid.Nil, apperr.Server(err)
	}
	if c == nil {
		return uuid.Nil, apperr.NotFound()
	}
	if err := e.store.MarkCommentRemoved(ctx, c); err != nil {
		return uuid.Nil, apperr.Server(err)
	}
	return c.ProfileID, nil
}

// AddReport stores a report. Anonymous reports and reports without a profile
// are allowed. The notifier runs in the background.
func (e *Engine) AddReport(ctx context.Context, userID, profileID *uuid.UUID, text string, meta map[string]interface{}) (*models.Report, error) {
	if profileID != nil {
		p, err := e.store.FindActiveProfile(ctx, *profileID)
		if err != nil {
			return nil, apperr.Server(err)
		}
		if p == nil {
			return nil, apperr.NotFound()
		}
	}
	r := &models.Report{
		UserID:    userID,
		ProfileID: profileID,
		Text:      text,
		Status:    models.ReportNew,
		Context:   datatypes.JSONMap(meta),
	}
	if err := e.store.AddReport(ctx, r); err != nil {
		return nil, apperr.Server(err)
	}
	if e.notifier != nil {
		e.wg.Add(1)
		go func() {
			defer e.wg.Done()
			nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 30*time.Second)
			defer cancel()
			if err := e.notifier.NotifyReport(nctx, r); err != nil {
				log.Errorf("report %s notification failed: %v", r.ID, err)
			}
		}()
	}
	return r, nil
}
