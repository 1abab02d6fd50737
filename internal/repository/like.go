package repository

import (
	"context"

	"realblog/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LikeRepository stores (user, post) like memberships.
type LikeRepository interface {
	Remove(ctx context.Context, userID, postID uint) (bool, error)
	Add(ctx context.Context, userID, postID uint) error
	Count(ctx context.Context, postID uint) (int64, error)
	Exists(ctx context.Context, userID, postID uint) (bool, error)
}

type likeRepository struct {
	db *gorm.DB
}

// NewLikeRepository returns a new LikeRepository implementation.
func NewLikeRepository(db *gorm.DB) LikeRepository {
	return &likeRepository{db: db}
}

// Remove deletes the membership and reports whether one existed.
func (r *likeRepository) Remove(ctx context.Context, userID, postID uint) (bool, error) {
	res := r.db.WithContext(ctx).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Delete(&models.Like{})
	return res.RowsAffected > 0, res.Error
}

// Add inserts the membership; a concurrent duplicate is ignored by the primary key.
func (r *likeRepository) Add(ctx context.Context, userID, postID uint) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Like{UserID: userID, PostID: postID}).Error
}

func (r *likeRepository) Count(ctx context.Context, postID uint) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Like{}).Where("post_id = ?", postID).Count(&count).Error
	return count, err
}

func (r *likeRepository) Exists(ctx context.Context, userID, postID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Like{}).
		Where("user_id = ? AND post_id = ?", userID, postID).
		Count(&count).Error
	return count > 0, err
}
