package service

import (
	"context"
	"strings"

	"realblog/internal/media"
	"realblog/internal/middleware"
	"realblog/internal/models"
	"realblog/internal/repository"
	"realblog/internal/validation"

	"gorm.io/gorm"
)

// ProfileService edits accounts and serves the follow graph.
type ProfileService struct {
	db      *gorm.DB
	avatars *media.AvatarNormalizer
}

// EditProfileInput carries the editable account fields. Empty Username and
// Email keep the current values; nil names keep theirs.
type EditProfileInput struct {
	UserID    uint    `json:"-"`
	Username  string  `json:"username" validate:"omitempty,username"`
	Email     string  `json:"email" validate:"omitempty,email,max=254"`
	FirstName *string `json:"first_name" validate:"omitempty,max=150"`
	LastName  *string `json:"last_name" validate:"omitempty,max=150"`
	Avatar    []byte  `json:"-"`
}

func NewProfileService(db *gorm.DB, avatars *media.AvatarNormalizer) *ProfileService {
	return &ProfileService{db: db, avatars: avatars}
}

// EditProfile writes the account and profile changes in one transaction. A new
// avatar is stored, recorded, then normalized; when any step fails the
// transaction rolls back and the stored file is removed.
func (s *ProfileService) EditProfile(ctx context.Context, in EditProfileInput) (*models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = validation.NormalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	var storedAvatar, previousAvatar string
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := repository.NewUserRepository(tx)
		profiles := repository.NewProfileRepository(tx)

		user, err := users.GetByID(ctx, in.UserID)
		if err != nil {
			return err
		}
		if user.Profile == nil {
			return models.NewNotFoundError("Profile", in.UserID)
		}

		username, email := "", ""
		if in.Username != "" && in.Username != user.Username {
			username = in.Username
		}
		if in.Email != "" && in.Email != user.Email {
			email = in.Email
		}
		if err := checkAccountFree(ctx, users, username, email, user.ID); err != nil {
			return err
		}
		if username != "" {
			user.Username = username
		}
		if email != "" {
			user.Email = email
		}
		if in.FirstName != nil {
			user.FirstName = strings.TrimSpace(*in.FirstName)
		}
		if in.LastName != nil {
			user.LastName = strings.TrimSpace(*in.LastName)
		}
		if err := users.UpdateAccount(ctx, user); err != nil {
			if repository.IsUniqueViolation(err) {
				return models.NewValidationError("A user with that username or email already exists")
			}
			return err
		}
		if email != "" && user.Profile.EmailVerified {
			if err := profiles.SetEmailVerified(ctx, user.ID, false); err != nil {
				return err
			}
		}

		if len(in.Avatar) == 0 {
			return nil
		}
		rel, err := s.avatars.SaveAvatar(user.ID, in.Avatar)
		if err != nil {
			return err
		}
		storedAvatar = rel
		previousAvatar = user.Profile.Avatar
		if err := profiles.UpdateAvatar(ctx, user.Profile.ID, rel); err != nil {
			return err
		}
		return s.avatars.Normalize(ctx, rel)
	})
	if err != nil {
		if storedAvatar != "" {
			if rmErr := s.avatars.Store.Remove(storedAvatar); rmErr != nil {
				middleware.Logger.WarnContext(ctx, "failed to remove rejected avatar", "path", storedAvatar, "error", rmErr)
			}
		}
		err = appError(err)
		logFailure(ctx, "profile edit failed", err)
		return nil, err
	}

	if storedAvatar != "" && previousAvatar != "" && previousAvatar != models.DefaultAvatar {
		if rmErr := s.avatars.Store.Remove(previousAvatar); rmErr != nil {
			middleware.Logger.WarnContext(ctx, "failed to remove replaced avatar", "path", previousAvatar, "error", rmErr)
		}
	}
	return loadAccount(ctx, s.db, in.UserID)
}

// Profile returns the profile with follow counts as seen by viewerID.
func (s *ProfileService) Profile(ctx context.Context, slug string, viewerID uint) (*models.Profile, error) {
	profile, err := repository.NewProfileRepository(s.db).GetBySlug(ctx, slug, viewerID)
	if err != nil {
		return nil, appError(err)
	}
	return profile, nil
}

// followPair resolves the caller's profile and the target profile.
func (s *ProfileService) followPair(ctx context.Context, userID uint, slug string) (*models.Profile, *models.Profile, error) {
	profiles := repository.NewProfileRepository(s.db)
	me, err := profiles.GetByUserID(ctx, userID, 0)
	if err != nil {
		return nil, nil, appError(err)
	}
	target, err := profiles.GetBySlug(ctx, slug, 0)
	if err != nil {
		return nil, nil, appError(err)
	}
	if me.ID == target.ID {
		return nil, nil, models.NewValidationError("You cannot follow yourself")
	}
	return me, target, nil
}

// Follow subscribes the caller to the profile at slug. Following twice is a no-op.
func (s *ProfileService) Follow(ctx context.Context, userID uint, slug string) (*models.Profile, error) {
	me, target, err := s.followPair(ctx, userID, slug)
	if err != nil {
		return nil, err
	}
	if err := repository.NewFollowRepository(s.db).Follow(ctx, me.ID, target.ID); err != nil {
		return nil, appError(err)
	}
	return s.Profile(ctx, slug, userID)
}

// Unfollow removes the subscription if present.
func (s *ProfileService) Unfollow(ctx context.Context, userID uint, slug string) (*models.Profile, error) {
	me, target, err := s.followPair(ctx, userID, slug)
	if err != nil {
		return nil, err
	}
	if err := repository.NewFollowRepository(s.db).Unfollow(ctx, me.ID, target.ID); err != nil {
		return nil, appError(err)
	}
	return s.Profile(ctx, slug, userID)
}

func (s *ProfileService) IsFollowing(ctx context.Context, userID uint, slug string) (bool, error) {
	me, target, err := s.followPair(ctx, userID, slug)
	if err != nil {
		return false, err
	}
	following, err := repository.NewFollowRepository(s.db).IsFollowing(ctx, me.ID, target.ID)
	return following, appError(err)
}

// Followers lists who follows the profile at slug.
func (s *ProfileService) Followers(ctx context.Context, slug string, page Page) ([]models.Profile, error) {
	return s.followList(ctx, slug, page, repository.FollowRepository.Followers)
}

// Following lists whom the profile at slug follows.
func (s *ProfileService) Following(ctx context.Context, slug string, page Page) ([]models.Profile, error) {
	return s.followList(ctx, slug, page, repository.FollowRepository.Following)
}

type followLister func(repository.FollowRepository, context.Context, uint, int, int) ([]models.Profile, error)

func (s *ProfileService) followList(ctx context.Context, slug string, page Page, list followLister) ([]models.Profile, error) {
	profile, err := repository.NewProfileRepository(s.db).GetBySlug(ctx, slug, 0)
	if err != nil {
		return nil, appError(err)
	}
	page = page.normalize(DefaultPageSize)
	profiles, err := list(repository.NewFollowRepository(s.db), ctx, profile.ID, page.Limit, page.Offset)
	if err != nil {
		return nil, appError(err)
	}
	return profiles, nil
}
