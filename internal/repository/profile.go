package repository

import (
	"context"
	"errors"

	"realblog/internal/models"

	"gorm.io/gorm"
)

// ProfileRepository defines persistence operations for profiles.
type ProfileRepository interface {
	Create(ctx context.Context, profile *models.Profile) error
	GetByUserID(ctx context.Context, userID, viewerID uint) (*models.Profile, error)
	GetBySlug(ctx context.Context, slug string, viewerID uint) (*models.Profile, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	UpdateAvatar(ctx context.Context, profileID uint, avatar string) error
	SetEmailVerified(ctx context.Context, userID uint, verified bool) error
}

type profileRepository struct {
	db *gorm.DB
}

// NewProfileRepository returns a new ProfileRepository implementation.
func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &profileRepository{db: db}
}

func (r *profileRepository) Create(ctx context.Context, profile *models.Profile) error {
	return r.db.WithContext(ctx).Omit("User").Create(profile).Error
}

// applyProfileDetails selects follow counts and whether viewerID (a user id) follows the profile.
func applyProfileDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	selectQuery := "profiles.*, " +
		"(SELECT COUNT(*) FROM profile_follows WHERE profile_follows.followed_id = profiles.id) AS followers_count, " +
		"(SELECT COUNT(*) FROM profile_follows WHERE profile_follows.follower_id = profiles.id) AS following_count"

	if viewerID != 0 {
		return db.Select(selectQuery+", EXISTS(SELECT 1 FROM profile_follows JOIN profiles viewer ON viewer.id = profile_follows.follower_id "+
			"WHERE viewer.user_id = ? AND profile_follows.followed_id = profiles.id) AS is_following", viewerID)
	}
	return db.Select(selectQuery + ", false AS is_following")
}

func (r *profileRepository) get(ctx context.Context, viewerID uint, key any, where string, args ...any) (*models.Profile, error) {
	var profile models.Profile
	err := applyProfileDetails(readDB(r.db).WithContext(ctx), viewerID).
		Preload("User", publicAuthor).
		Where(where, args...).
		First(&profile).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Profile", key)
		}
		return nil, err
	}
	return &profile, nil
}

func (r *profileRepository) GetByUserID(ctx context.Context, userID, viewerID uint) (*models.Profile, error) {
	return r.get(ctx, viewerID, userID, "profiles.user_id = ?", userID)
}

func (r *profileRepository) GetBySlug(ctx context.Context, slug string, viewerID uint) (*models.Profile, error) {
	return r.get(ctx, viewerID, slug, "profiles.slug = ?", slug)
}

func (r *profileRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Profile{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

func (r *profileRepository) UpdateAvatar(ctx context.Context, profileID uint, avatar string) error {
	return r.db.WithContext(ctx).Model(&models.Profile{}).
		Where("id = ?", profileID).
		Update("avatar", avatar).Error
}

func (r *profileRepository) SetEmailVerified(ctx context.Context, userID uint, verified bool) error {
	res := r.db.WithContext(ctx).Model(&models.Profile{}).
		Where("user_id = ?", userID).
		Update("email_verified", verified)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Profile", userID)
	}
	return nil
}
