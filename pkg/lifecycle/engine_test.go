package lifecycle

import (
	"bytes"
	"context"
	"errors"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"profilehub/models"
	"profilehub/pkg/apperr"
	"profilehub/pkg/photostore"
	"profilehub/pkg/storage"
	"profilehub/pkg/storage/storagetest"
)

type env struct {
	gw     *storage.Gateway
	photos *photostore.Store
	root   string
	engine *Engine
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gw := storagetest.Open(t)
	root := t.TempDir()
	ps := photostore.New(photostore.Options{Root: root})
	return &env{gw: gw, photos: ps, root: root, engine: New(gw, ps, nil)}
}

func pngUpload(t *testing.T, name string) Upload {
	t.Helper()
	var buf bytes.Buffer
	img := imaging.New(16, 16, color.NRGBA{G: 120, A: 255})
	require.NoError(t, imaging.Encode(&buf, img, imaging.PNG))
	data := buf.Bytes()
	return Upload{Name: name, Open: func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	}}
}

func uploads(t *testing.T, n int) []Upload {
	out := make([]Upload, n)
	for i := range out {
		out[i] = pngUpload(t, "p.png")
	}
	return out
}

var anna = storage.ProfileFields{
	Name: "Anna", Height: 170, Weight: 55, City: "Riga",
	PhoneNumber: "123456789", Description: "a description",
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	assert.Equal(t, kind, apperr.From(err).Kind, "error: %v", err)
}

func TestResolveDraftReusesTheSameRow(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := storagetest.User(t, e.gw, "ann")

	first, err := e.engine.ResolveDraft(ctx, u.ID)
	require.NoError(t, err)
	_, _, err = e.engine.AddPhotos(ctx, u.ID, nil, uploads(t, 1))
	require.NoError(t, err)
	again, photos, err := e.engine.DraftForAdd(ctx, u.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, again.ID)
	assert.Len(t, photos, 1)
	assert.Equal(t, models.ProfileDraft, again.Status)
}

func TestResolveDraftConcurrent(t *testing.T) {
	e := newEnv(t)
	u := storagetest.User(t, e.gw, "ann")

	ids := make([]uuid.UUID, 8)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := e.engine.ResolveDraft(context.Background(), u.ID)
			assert.NoError(t, err)
			if p != nil {
				ids[i] = p.ID
			}
		}(i)
	}
	wg.Wait()
	for _, id := range ids[1:] {
		assert.Equal(t, ids[0], id)
	}
	var n int64
	require.NoError(t, e.gw.DB().Model(&models.Profile{}).Where("user_id = ?", u.ID).Count(&n).Error)
	assert.EqualValues(t, 1, n)
	assert.Zero(t, e.engine.locks.size())
}

func TestPhotoThenPublishScenario(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := storagetest.User(t, e.gw, "ann")

	draft, added, err := e.engine.AddPhotos(ctx, u.ID, nil, uploads(t, 1))
	require.NoError(t, err)
	require.Len(t, added, 1)
	assert.Equal(t, models.PhotoActive, added[0].Status)
	_, err = os.Stat(filepath.Join(e.root, draft.ID.String(), added[0].FileName))
	require.NoError(t, err)

	p, updated, err := e.engine.Publish(ctx, u.ID, nil, anna)
	require.NoError(t, err)
	assert.False(t, updated)
	assert.Equal(t, draft.ID, p.ID)

	stored, err := e.gw.FindActiveProfile(ctx, draft.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Anna", stored.Name)
	assert.Equal(t, 170, stored.Height)
	assert.Equal(t, 55, stored.Weight)
	assert.Equal(t, "Riga", stored.City)
	assert.Equal(t, "123456789", stored.PhoneNumber)
	assert.Equal(t, "a description", stored.Description)

	draftAfter, err := e.gw.FindDraftProfile(ctx, u.ID)
	require.NoError(t, err)
	assert.Nil(t, draftAfter)
}

func TestRepublishKeepsActive(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := storagetest.User(t, e.gw, "ann")

	p, _, err := e.engine.Publish(ctx, u.ID, nil, anna)
	require.NoError(t, err)

	edit := anna
	edit.Name = "Annie"
	edit.Height = 171
	out, updated, err := e.engine.Publish(ctx, u.ID, &p.ID, edit)
	require.NoError(t, err)
	assert.True(t, updated)
	assert.Equal(t, p.ID, out.ID)

	stored, err := e.gw.FindActiveProfile(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Annie", stored.Name)
	assert.Equal(t, 171, stored.Height)
	assert.Equal(t, models.ProfileActive, stored.Status)
}

func TestPhotoCap(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := storagetest.User(t, e.gw, "ann")

	p, _, err := e.engine.AddPhotos(ctx, u.ID, nil, uploads(t, 4))
	require.NoError(t, err)

	_, added, err := e.engine.AddPhotos(ctx, u.ID, nil, uploads(t, 1))
	require.NoError(t, err, "fifth photo fits")
	assert.Len(t, added, 1)

	_, _, err = e.engine.AddPhotos(ctx, u.ID, nil, uploads(t, 1))
	requireKind(t, err, apperr.KindBadParams)
	assert.Equal(t, apperr.CodeTooManyPhotos, apperr.From(err).MessageCode())

	n, err := e.gw.CountActivePhotos(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 5, n)
	entries, err := os.ReadDir(filepath.Join(e.root, p.ID.String()))
	require.NoError(t, err)
	var originals int
	for _, en := range entries {
		if !strings.HasPrefix(en.Name(), photostore.PreviewPrefix) {
			originals++
		}
	}
	assert.Equal(t, 5, originals, "rejected upload wrote no file")
}

func TestPhotoCapCountsTheWholeBatch(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := storagetest.User(t, e.gw, "ann")

	_, _, err := e.engine.AddPhotos(ctx, u.ID, nil, uploads(t, 3))
	require.NoError(t, err)
	_, _, err = e.engine.AddPhotos(ctx, u.ID, nil, uploads(t, 3))
	requireKind(t, err, apperr.KindBadParams)
}

func TestAddPhotosRejectsEmptyAndNonImages(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := storagetest.User(t, e.gw, "ann")

	_, _, err := e.engine.AddPhotos(ctx, u.ID, nil, nil)
	requireKind(t, err, apperr.KindBadParams)

	junk := Upload{Name: "x.png", Open: func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader([]byte("not an image"))), nil
	}}
	_, _, err = e.engine.AddPhotos(ctx, u.ID, nil, []Upload{junk})
	requireKind(t, err, apperr.KindBadParams)
	assert.Equal(t, apperr.CodeNotImage, apperr.From(err).MessageCode())
}

func TestAddPhotosRejectsOversizedImages(t *testing.T) {
	gw := storagetest.Open(t)
	engine := New(gw, photostore.New(photostore.Options{Root: t.TempDir(), MaxPixels: 100}), nil)
	ctx := context.Background()
	u := storagetest.User(t, gw, "ann")

	_, _, err := engine.AddPhotos(ctx, u.ID, nil, uploads(t, 1))
	requireKind(t, err, apperr.KindBadParams)
	assert.Equal(t, apperr.CodeImageTooLarge, apperr.From(err).MessageCode())
}

func TestOwnershipIsolation(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := storagetest.User(t, e.gw, "ann")
	other := storagetest.User(t, e.gw, "bob")

	p, _, err := e.engine.AddPhotos(ctx, owner.ID, nil, uploads(t, 2))
	require.NoError(t, err)
	_, _, err = e.engine.Publish(ctx, owner.ID, nil, anna)
	require.NoError(t, err)
	photos, err := e.gw.FindActivePhotos(ctx, p.ID)
	require.NoError(t, err)

	hijack := anna
	hijack.Name = "Mallory"
	_, _, err = e.engine.Publish(ctx, other.ID, &p.ID, hijack)
	requireKind(t, err, apperr.KindBadParams)

	_, _, err = e.engine.AddPhotos(ctx, other.ID, &p.ID, uploads(t, 1))
	requireKind(t, err, apperr.KindBadParams)

	err = e.engine.DeletePhoto(ctx, other.ID, photos[0].ID)
	requireKind(t, err, apperr.KindNotFound)
	err = e.engine.DeletePhoto(ctx, other.ID, uuid.New())
	requireKind(t, err, apperr.KindNotFound)

	err = e.engine.DeleteProfile(ctx, other.ID, p.ID)
	requireKind(t, err, apperr.KindNotFound)

	_, _, err = e.engine.ProfileForEdit(ctx, other.ID, p.ID)
	requireKind(t, err, apperr.KindNotFound)

	stored, err := e.gw.FindActiveProfile(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, "Anna", stored.Name)
	n, err := e.gw.CountActivePhotos(ctx, p.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)
}

func TestDeletePhotoTwice(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := storagetest.User(t, e.gw, "ann")

	p, added, err := e.engine.AddPhotos(ctx, u.ID, nil, uploads(t, 1))
	require.NoError(t, err)
	photo := added[0]

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = e.engine.DeletePhoto(ctx, u.ID, photo.ID)
		}(i)
	}
	wg.Wait()
	assert.NoError(t, errs[0])
	assert.NoError(t, errs[1])

	dir := filepath.Join(e.root, p.ID.String())
	_, err = os.Stat(filepath.Join(dir, photostore.DeletedPrefix+photo.FileName))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(dir, photostore.DeletedPrefix+photostore.DeletedPrefix+photo.FileName))
	assert.True(t, os.IsNotExist(err), "renamed exactly once")

	n, err := e.gw.CountActivePhotos(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDeletePhotoWithMissingFile(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := storagetest.User(t, e.gw, "ann")

	p, added, err := e.engine.AddPhotos(ctx, u.ID, nil, uploads(t, 1))
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(e.root, p.ID.String(), added[0].FileName)))

	assert.NoError(t, e.engine.DeletePhoto(ctx, u.ID, added[0].ID))
}

func TestDeleteProfile(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := storagetest.User(t, e.gw, "ann")

	p, _, err := e.engine.AddPhotos(ctx, u.ID, nil, uploads(t, 3))
	require.NoError(t, err)
	_, _, err = e.engine.Publish(ctx, u.ID, nil, anna)
	require.NoError(t, err)

	require.NoError(t, e.engine.DeleteProfile(ctx, u.ID, p.ID))

	photos, err := e.gw.FindActivePhotos(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, photos)
	active, err := e.gw.FindActiveProfile(ctx, p.ID)
	require.NoError(t, err)
	assert.Nil(t, active)

	var row models.Profile
	require.NoError(t, e.gw.DB().First(&row, "id = ?", p.ID).Error)
	assert.Equal(t, models.ProfileDeleted, row.Status, "row persists")

	_, err = os.Stat(filepath.Join(e.root, p.ID.String()+photostore.DeletedFolderSuffix))
	assert.NoError(t, err)

	requireKind(t, e.engine.DeleteProfile(ctx, u.ID, p.ID), apperr.KindNotFound)
}

func TestDraftCannotBeDeletedOrEdited(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	u := storagetest.User(t, e.gw, "ann")

	d, err := e.engine.ResolveDraft(ctx, u.ID)
	require.NoError(t, err)
	requireKind(t, e.engine.DeleteProfile(ctx, u.ID, d.ID), apperr.KindNotFound)
	_, _, err = e.engine.Publish(ctx, u.ID, &d.ID, anna)
	requireKind(t, err, apperr.KindBadParams)
}

func TestComments(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner := storagetest.User(t, e.gw, "ann")
	reader := storagetest.User(t, e.gw, "bob")

	p, _, err := e.engine.Publish(ctx, owner.ID, nil, anna)
	require.NoError(t, err)

	c, err := e.engine.AddComment(ctx, reader.ID, p.ID, "nice one")
	require.NoError(t, err)
	assert.Equal(t, models.CommentApproved, c.Status)

	_, err = e.engine.AddComment(ctx, reader.ID, p.ID, "again")
	requireKind(t, err, apperr.KindBadParams)
	assert.Equal(t, apperr.CodeCommentExists, apperr.From(err).MessageCode())

	_, err = e.engine.RemoveComment(ctx, owner.ID, c.ID)
	requireKind(t, err, apperr.KindNotFound)

	pid, err := e.engine.RemoveComment(ctx, reader.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, p.ID, pid)

	_, err = e.engine.AddComment(ctx, reader.ID, p.ID, "second try")
	assert.NoError(t, err, "a removed comment frees the slot")

	_, err = e.engine.AddComment(ctx, reader.ID, uuid.New(), "nobody")
	requireKind(t, err, apperr.KindNotFound)
}

type recordingNotifier struct {
	mu      sync.Mutex
	reports []*models.Report
	err     error
}

func (n *recordingNotifier) NotifyReport(_ context.Context, r *models.Report) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reports = append(n.reports, r)
	return n.err
}

func TestAddReport(t *testing.T) {
	gw := storagetest.Open(t)
	notifier := &recordingNotifier{err: errors.New("smtp down")}
	engine := New(gw, photostore.New(photostore.Options{Root: t.TempDir()}), notifier)
	ctx := context.Background()
	u := storagetest.User(t, gw, "ann")

	p, _, err := engine.Publish(ctx, u.ID, nil, anna)
	require.NoError(t, err)

	r, err := engine.AddReport(ctx, &u.ID, &p.ID, "this looks fake", map[string]interface{}{"ip": "127.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, models.ReportNew, r.Status)

	anon, err := engine.AddReport(ctx, nil, nil, "general complaint", nil)
	require.NoError(t, err)
	assert.Nil(t, anon.UserID)

	missing := uuid.New()
	_, err = engine.AddReport(ctx, nil, &missing, "where is it", nil)
	requireKind(t, err, apperr.KindNotFound)

	engine.Wait()
	assert.Len(t, notifier.reports, 2, "notifier errors do not fail the report")

	var n int64
	require.NoError(t, gw.DB().Model(&models.Report{}).Count(&n).Error)
	assert.EqualValues(t, 2, n)
}

type failingStore struct {
	Store
	addPhotoErr error
}

func (f failingStore) AddPhoto(context.Context, uuid.UUID, string, int64) (*models.ProfilePhoto, error) {
	return nil, f.addPhotoErr
}

func TestAddPhotoInsertFailureLeavesFile(t *testing.T) {
	gw := storagetest.Open(t)
	root := t.TempDir()
	engine := New(failingStore{Store: gw, addPhotoErr: errors.New("db gone")}, photostore.New(photostore.Options{Root: root}), nil)
	ctx := context.Background()
	u := storagetest.User(t, gw, "ann")

	p, _, err := engine.AddPhotos(ctx, u.ID, nil, uploads(t, 1))
	requireKind(t, err, apperr.KindServerError)
	require.NotNil(t, p)

	entries, err := os.ReadDir(filepath.Join(root, p.ID.String()))
	require.NoError(t, err)
	assert.NotEmpty(t, entries, "file is written before the row")
	n, err := gw.CountActivePhotos(ctx, p.ID)
	require.NoError(t, err)
	assert.Zero(t, n)
}
