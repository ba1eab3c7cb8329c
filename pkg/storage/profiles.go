package storage

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"profilehub/models"
)

// ProfileFields are the user-editable columns applied on publish.
type ProfileFields struct {
	Name        string
	Height      int
	Weight      int
	Description string
	PhoneNumber string
	City        string
}

func (g *Gateway) FindDraftProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	var p models.Profile
	err := g.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.ProfileDraft).
		Order("created_at").
		First(&p).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("find draft profile", err)
	}
	return &p, nil
}

func (g *Gateway) FindActiveProfile(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	var p models.Profile
	err := g.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, models.ProfileActive).
		First(&p).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("find active profile", err)
	}
	return &p, nil
}

// FindOwnedProfile is the authorized lookup: id and owner are matched in the
// same query, so a foreign id behaves exactly like a missing one. With no
// statuses any status matches.
func (g *Gateway) FindOwnedProfile(ctx context.Context, id, userID uuid.UUID, statuses ...models.ProfileStatus) (*models.Profile, error) {
	q := g.db.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID)
	if len(statuses) > 0 {
		q = q.Where("status IN ?", statuses)
	}
	var p models.Profile
	err := q.First(&p).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("find owned profile", err)
	}
	return &p, nil
}

func (g *Gateway) FindActiveOwnedProfile(ctx context.Context, id, userID uuid.UUID) (*models.Profile, error) {
	return g.FindOwnedProfile(ctx, id, userID, models.ProfileActive)
}

func (g *Gateway) AddDraftProfile(ctx context.Context, userID uuid.UUID) (*models.Profile, error) {
	p := models.Profile{UserID: userID, Status: models.ProfileDraft}
	if err := g.db.WithContext(ctx).Create(&p).Error; err != nil {
		if isUniqueViolation(err) {
			// another request created the draft first
			if existing, ferr := g.FindDraftProfile(ctx, userID); ferr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, wrap("add draft profile", err)
	}
	return &p, nil
}

// PublishProfile writes the fields and sets status to active whatever the
// current status is; it serves both first publish and later edits.
func (g *Gateway) PublishProfile(ctx context.Context, p *models.Profile, f ProfileFields) (*models.Profile, error) {
	now := time.Now()
	updates := map[string]interface{}{
		"name":         f.Name,
		"height":       f.Height,
		"weight":       f.Weight,
		"description":  f.Description,
		"phone_number": f.PhoneNumber,
		"city":         f.City,
		"status":       models.ProfileActive,
		"updated_at":   now,
	}
	if err := g.db.WithContext(ctx).Model(&models.Profile{}).Where("id = ?", p.ID).Updates(updates).Error; err != nil {
		return nil, wrap("publish profile", err)
	}
	out := *p
	out.Name, out.Height, out.Weight = f.Name, f.Height, f.Weight
	out.Description, out.PhoneNumber, out.City = f.Description, f.PhoneNumber, f.City
	out.Status = models.ProfileActive
	out.UpdatedAt = now
	return &out, nil
}

func (g *Gateway) MarkProfileDeleted(ctx context.Context, p *models.Profile) error {
	err := g.db.WithContext(ctx).Model(&models.Profile{}).
		Where("id = ?", p.ID).
		Updates(map[string]interface{}{"status": models.ProfileDeleted, "updated_at": time.Now()}).Error
	if err != nil {
		return wrap("mark profile deleted", err)
	}
	p.Status = models.ProfileDeleted
	return nil
}

// DeleteProfileAndPhotos flips the profile and each photo one update at a
// time. The first failure is returned; earlier updates stay applied.
func (g *Gateway) DeleteProfileAndPhotos(ctx context.Context, p *models.Profile, photos []models.ProfilePhoto) error {
	if err := g.MarkProfileDeleted(ctx, p); err != nil {
		return err
	}
	for i := range photos {
		if err := g.MarkPhotoDeleted(ctx, &photos[i]); err != nil {
			return err
		}
	}
	return nil
}

// PaginateActiveProfiles returns the total page count and one page of active
// profiles, most recently updated first. page is 1-based; 0 is read as 1.
func (g *Gateway) PaginateActiveProfiles(ctx context.Context, pageSize, page int, city string) (int64, []models.Profile, error) {
	if pageSize <= 0 {
		pageSize = 1
	}
	idx := page - 1
	if idx < 0 {
		idx = 0
	}
	base := func() *gorm.DB {
		q := g.db.WithContext(ctx).Model(&models.Profile{}).Where("status = ?", models.ProfileActive)
		if city = strings.TrimSpace(city); city != "" {
			q = q.Where("city = ?", city)
		}
		return q
	}
	var total int64
	if err := base().Count(&total).Error; err != nil {
		return 0, nil, wrap("count active profiles", err)
	}
	var items []models.Profile
	err := base().
		Order("updated_at DESC").
		Limit(pageSize).
		Offset(idx * pageSize).
		Find(&items).Error
	if err != nil {
		return 0, nil, wrap("paginate active profiles", err)
	}
	pages := (total + int64(pageSize) - 1) / int64(pageSize)
	return pages, items, nil
}

func (g *Gateway) FindUserProfiles(ctx context.Context, userID uuid.UUID) ([]models.Profile, error) {
	var items []models.Profile
	err := g.db.WithContext(ctx).
		Where("user_id = ? AND status = ?", userID, models.ProfileActive).
		Order("updated_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, wrap("find user profiles", err)
	}
	return items, nil
}

// AllActiveProfiles loads ids and timestamps only; it feeds the sitemap.
func (g *Gateway) AllActiveProfiles(ctx context.Context) ([]models.Profile, error) {
	var items []models.Profile
	err := g.db.WithContext(ctx).
		Select("id", "updated_at").
		Where("status = ?", models.ProfileActive).
		Order("updated_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, wrap("all active profiles", err)
	}
	return items, nil
}

// SearchProfiles matches free text against name and description and a
// partial match against the phone number. Blank text matches nothing.
func (g *Gateway) SearchProfiles(ctx context.Context, text string, limit int) ([]models.Profile, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return []models.Profile{}, nil
	}
	phone := "%" + escapeLike(text) + "%"
	q := g.db.WithContext(ctx).Where("status = ?", models.ProfileActive)
	if g.db.Dialector.Name() == "postgres" {
		q = q.Where(
			"to_tsvector('simple', coalesce(name,'') || ' ' || coalesce(description,'')) @@ plainto_tsquery('simple', ?) OR phone_number LIKE ?",
			text, phone,
		)
	} else {
		like := "%" + escapeLike(strings.ToLower(text)) + "%"
		q = q.Where(`LOWER(name) LIKE ? ESCAPE '\' OR LOWER(description) LIKE ? ESCAPE '\' OR phone_number LIKE ? ESCAPE '\'`, like, like, phone)
	}
	var items []models.Profile
	if err := q.Order("created_at DESC").Limit(limit).Find(&items).Error; err != nil {
		return nil, wrap("search profiles", err)
	}
	return items, nil
}

// IncrementViewCount bumps view_count for all ids in one statement.
func (g *Gateway) IncrementViewCount(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := g.db.WithContext(ctx).Model(&models.Profile{}).
		Where("id IN ?", ids).
		UpdateColumn("view_count", gorm.Expr("view_count + ?", 1))
	if res.Error != nil {
		return 0, wrap("increment view count", res.Error)
	}
	return res.RowsAffected, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
