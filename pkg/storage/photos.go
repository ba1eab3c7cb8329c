package storage

import (
	"context"

	"github.com/google/uuid"

	"profilehub/models"
)

func (g *Gateway) CountActivePhotos(ctx context.Context, profileID uuid.UUID) (int64, error) {
	var n int64
	err := g.db.WithContext(ctx).Model(&models.ProfilePhoto{}).
		Where("profile_id = ? AND status = ?", profileID, models.PhotoActive).
		Count(&n).Error
	if err != nil {
		return 0, wrap("count active photos", err)
	}
	return n, nil
}

func (g *Gateway) FindActivePhotos(ctx context.Context, profileID uuid.UUID) ([]models.ProfilePhoto, error) {
	var photos []models.ProfilePhoto
	err := g.db.WithContext(ctx).
		Where("profile_id = ? AND status = ?", profileID, models.PhotoActive).
		Order("created_at").
		Find(&photos).Error
	if err != nil {
		return nil, wrap("find active photos", err)
	}
	return photos, nil
}

func (g *Gateway) AddPhoto(ctx context.Context, profileID uuid.UUID, fileName string, size int64) (*models.ProfilePhoto, error) {
	photo := models.ProfilePhoto{ProfileID: profileID, FileName: fileName, Size: size, Status: models.PhotoActive}
	if err := g.db.WithContext(ctx).Create(&photo).Error; err != nil {
		return nil, wrap("add photo", err)
	}
	return &photo, nil
}

// FindOwnedPhoto returns the photo when its profile belongs to userID.
// Photos of any status are returned so callers can treat a repeated delete
// as done.
func (g *Gateway) FindOwnedPhoto(ctx context.Context, photoID, userID uuid.UUID) (*models.ProfilePhoto, error) {
	var photo models.ProfilePhoto
	res := g.db.WithContext(ctx).
		Select("profile_photos.*").
		Joins("JOIN profiles ON profiles.id = profile_photos.profile_id").
		Where("profile_photos.id = ? AND profiles.user_id = ?", photoID, userID).
		Limit(1).
		Find(&photo)
	if res.Error != nil {
		return nil, wrap("find owned photo", res.Error)
	}
	if res.RowsAffected == 0 {
		return nil, nil
	}
	return &photo, nil
}

func (g *Gateway) MarkPhotoDeleted(ctx context.Context, photo *models.ProfilePhoto) error {
	err := g.db.WithContext(ctx).Model(&models.ProfilePhoto{}).
		Where("id = ?", photo.ID).
		Update("status", models.PhotoDeleted).Error
	if err != nil {
		return wrap("mark photo deleted", err)
	}
	photo.Status = models.PhotoDeleted
	return nil
}

// FindFirstPhotoPerProfile maps every requested profile id to its earliest
// active photo, or to nil when it has none.
func (g *Gateway) FindFirstPhotoPerProfile(ctx context.Context, profileIDs []uuid.UUID) (map[uuid.UUID]*models.ProfilePhoto, error) {
	out := make(map[uuid.UUID]*models.ProfilePhoto, len(profileIDs))
	if len(profileIDs) == 0 {
		return out, nil
	}
	for _, id := range profileIDs {
		out[id] = nil
	}
	var photos []models.ProfilePhoto
	err := g.db.WithContext(ctx).
		Where("profile_id IN ? AND status = ?", profileIDs, models.PhotoActive).
		Order("created_at").
		Find(&photos).Error
	if err != nil {
		return nil, wrap("find first photos", err)
	}
	for i := range photos {
		p := &photos[i]
		if out[p.ProfileID] == nil {
			out[p.ProfileID] = p
		}
	}
	return out, nil
}

// KnownPhotoNames lists every stored file name for a profile, any status.
// The orphan sweep uses it to tell rowless files apart.
func (g *Gateway) KnownPhotoNames(ctx context.Context, profileID uuid.UUID) (map[string]bool, error) {
	var names []string
	err := g.db.WithContext(ctx).Model(&models.ProfilePhoto{}).
		Where("profile_id = ?", profileID).
		Pluck("file_name", &names).Error
	if err != nil {
		return nil, wrap("known photo names", err)
	}
	out := make(map[string]bool, len(names))
	for _, n := range names {
		out[n] = true
	}
	return out, nil
}
