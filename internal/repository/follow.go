package repository

import (
	"context"

	"realblog/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// FollowRepository manages the directed follow graph between profiles.
type FollowRepository interface {
	Follow(ctx context.Context, followerID, followedID uint) error
	Unfollow(ctx context.Context, followerID, followedID uint) error
	IsFollowing(ctx context.Context, followerID, followedID uint) (bool, error)
	Followers(ctx context.Context, profileID uint, limit, offset int) ([]models.Profile, error)
	Following(ctx context.Context, profileID uint, limit, offset int) ([]models.Profile, error)
}

type followRepository struct {
	db *gorm.DB
}

// NewFollowRepository returns a new FollowRepository implementation.
func NewFollowRepository(db *gorm.DB) FollowRepository {
	return &followRepository{db: db}
}

// Follow adds the edge; an existing edge is left as is.
func (r *followRepository) Follow(ctx context.Context, followerID, followedID uint) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.Follow{FollowerID: followerID, FollowedID: followedID}).Error
}

func (r *followRepository) Unfollow(ctx context.Context, followerID, followedID uint) error {
	return r.db.WithContext(ctx).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Delete(&models.Follow{}).Error
}

func (r *followRepository) IsFollowing(ctx context.Context, followerID, followedID uint) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Follow{}).
		Where("follower_id = ? AND followed_id = ?", followerID, followedID).
		Count(&count).Error
	return count > 0, err
}

// Followers lists the profiles following profileID, most recent first.
func (r *followRepository) Followers(ctx context.Context, profileID uint, limit, offset int) ([]models.Profile, error) {
	return r.list(ctx, "profile_follows.follower_id", "profile_follows.followed_id", profileID, limit, offset)
}

// Following lists the profiles profileID follows, most recent first.
func (r *followRepository) Following(ctx context.Context, profileID uint, limit, offset int) ([]models.Profile, error) {
	return r.list(ctx, "profile_follows.followed_id", "profile_follows.follower_id", profileID, limit, offset)
}

func (r *followRepository) list(ctx context.Context, joinCol, whereCol string, profileID uint, limit, offset int) ([]models.Profile, error) {
	profiles := []models.Profile{}
	err := applyProfileDetails(readDB(r.db).WithContext(ctx), 0).
		Preload("User", publicAuthor).
		Joins("JOIN profile_follows ON profiles.id = "+joinCol).
		Where(whereCol+" = ?", profileID).
		Order("profile_follows.created_at DESC, profiles.id DESC").
		Limit(limit).
		Offset(offset).
		Find(&profiles).Error
	return profiles, err
}
