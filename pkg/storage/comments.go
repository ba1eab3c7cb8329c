package storage

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"profilehub/models"
)

// ErrCommentExists is returned by AddComment when the database rejects a
// second live comment for the same (profile, user).
var ErrCommentExists = errors.New("comment already exists")

func (g *Gateway) AddComment(ctx context.Context, profileID, userID uuid.UUID, text string) (*models.Comment, error) {
	c := models.Comment{ProfileID: profileID, UserID: userID, Text: text, Status: models.CommentApproved}
	if err := g.db.WithContext(ctx).Create(&c).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, ErrCommentExists
		}
		return nil, wrap("add comment", err)
	}
	return &c, nil
}

// FindCommentByProfileAndUser ignores removed comments.
func (g *Gateway) FindCommentByProfileAndUser(ctx context.Context, profileID, userID uuid.UUID) (*models.Comment, error) {
	var c models.Comment
	err := g.db.WithContext(ctx).
		Where("profile_id = ? AND user_id = ? AND status <> ?", profileID, userID, models.CommentRemoved).
		First(&c).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("find comment", err)
	}
	return &c, nil
}

// AllCommentsForProfile returns displayable comments, newest first, with authors.
func (g *Gateway) AllCommentsForProfile(ctx context.Context, profileID uuid.UUID) ([]models.Comment, error) {
	var items []models.Comment
	err := g.db.WithContext(ctx).
		Preload("User").
		Where("profile_id = ? AND status IN ?", profileID, []models.CommentStatus{models.CommentApproved, models.CommentInReview}).
		Order("created_at DESC").
		Find(&items).Error
	if err != nil {
		return nil, wrap("all comments", err)
	}
	return items, nil
}

func (g *Gateway) FindOwnedComment(ctx context.Context, id, userID uuid.UUID) (*models.Comment, error) {
	var c models.Comment
	err := g.db.WithContext(ctx).
		Where("id = ? AND user_id = ? AND status <> ?", id, userID, models.CommentRemoved).
		First(&c).Error
	if notFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, wrap("find owned comment", err)
	}
	return &c, nil
}

func (g *Gateway) MarkCommentRemoved(ctx context.Context, c *models.Comment) error {
	err := g.db.WithContext(ctx).Model(&models.Comment{}).
		Where("id = ?", c.ID).
		Update("status", models.CommentRemoved).Error
	if err != nil {
		return wrap("mark comment removed", err)
	}
	c.Status = models.CommentRemoved
	return nil
}
