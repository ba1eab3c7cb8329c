package storage

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"profilehub/models"
)

func (g *Gateway) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := g.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).First(&u).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("find user by email", err)
	}
	return &u, nil
}

func (g *Gateway) FindUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	err := g.db.WithContext(ctx).Where("id = ?", id).First(&u).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("find user by id", err)
	}
	return &u, nil
}

// AddUser inserts a user. If a concurrent sign-in created the same email
// first, the existing row is returned.
func (g *Gateway) AddUser(ctx context.Context, name, email, provider string) (*models.User, error) {
	u := models.User{Name: name, Email: strings.ToLower(strings.TrimSpace(email)), Provider: provider}
	if err := g.db.WithContext(ctx).Create(&u).Error; err != nil {
		if isUniqueViolation(err) {
			if existing, ferr := g.FindUserByEmail(ctx, email); ferr == nil && existing != nil {
				return existing, nil
			}
		}
		return nil, wrap("add user", err)
	}
	return &u, nil
}

// FindOrAddUser is the sign-in path: look up by email, create on first visit.
func (g *Gateway) FindOrAddUser(ctx context.Context, name, email, provider string) (*models.User, error) {
	u, err := g.FindUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u != nil {
		return u, nil
	}
	return g.AddUser(ctx, name, email, provider)
}

func (g *Gateway) FindCitiesOn(ctx context.Context) ([]models.City, error) {
	var items []models.City
	if err := g.db.WithContext(ctx).Where("status = ?", models.CityOn).Order("name").Find(&items).Error; err != nil {
		return nil, wrap("find cities", err)
	}
	return items, nil
}

func (g *Gateway) AllCities(ctx context.Context) ([]models.City, error) {
	var items []models.City
	if err := g.db.WithContext(ctx).Order("name").Find(&items).Error; err != nil {
		return nil, wrap("all cities", err)
	}
	return items, nil
}

// UpsertCity creates the city or updates its status.
func (g *Gateway) UpsertCity(ctx context.Context, name string, status models.CityStatus) (*models.City, error) {
	name = strings.TrimSpace(name)
	var c models.City
	err := g.db.WithContext(ctx).Where("name = ?", name).First(&c).Error
	if notFound(err) {
		c = models.City{Name: name, Status: status}
		if err := g.db.WithContext(ctx).Create(&c).Error; err != nil {
			return nil, wrap("add city", err)
		}
		return &c, nil
	}
	if err != nil {
		return nil, wrap("find city", err)
	}
	if err := g.db.WithContext(ctx).Model(&c).Update("status", status).Error; err != nil {
		return nil, wrap("update city", err)
	}
	return &c, nil
}

func (g *Gateway) AddReport(ctx context.Context, r *models.Report) error {
	if r.Status == "" {
		r.Status = models.ReportNew
	}
	if err := g.db.WithContext(ctx).Create(r).Error; err != nil {
		return wrap("add report", err)
	}
	return nil
}
