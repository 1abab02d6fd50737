package service

import (
	"context"
	"strings"

	"realblog/internal/auth"
	"realblog/internal/middleware"
	"realblog/internal/models"
	"realblog/internal/repository"
	"realblog/internal/slug"
	"realblog/internal/validation"

	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"
)

// bcryptCost is the work factor for new password hashes.
var bcryptCost = bcrypt.DefaultCost

// IdentityService registers accounts and exchanges credentials for tokens.
type IdentityService struct {
	db       *gorm.DB
	issuer   auth.TokenIssuer
	slugs    *slug.Generator
	hashCost int
}

type SignupInput struct {
	Username  string `json:"username" validate:"required,username"`
	Email     string `json:"email" validate:"required,email,max=254"`
	Password  string `json:"password" validate:"required,password"`
	FirstName string `json:"first_name" validate:"max=150"`
	LastName  string `json:"last_name" validate:"max=150"`
}

type LoginInput struct {
	Login    string `json:"login" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type ChangePasswordInput struct {
	UserID      uint   `json:"-"`
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,password"`
}

// AuthResult is returned by signup and login.
type AuthResult struct {
	Token string       `json:"token"`
	User  *models.User `json:"user"`
}

func NewIdentityService(db *gorm.DB, issuer auth.TokenIssuer) *IdentityService {
	return &IdentityService{
		db:       db,
		issuer:   issuer,
		slugs:    slug.NewGenerator(),
		hashCost: bcryptCost,
	}
}

func hashPassword(password string, cost int) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", models.NewInternalError(err)
	}
	return string(hashed), nil
}

// Signup creates the user and then its profile in one transaction.
func (s *IdentityService) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = validation.NormalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	hashed, err := hashPassword(in.Password, s.hashCost)
	if err != nil {
		return nil, err
	}

	user := &models.User{
		Username:  in.Username,
		Email:     in.Email,
		FirstName: strings.TrimSpace(in.FirstName),
		LastName:  strings.TrimSpace(in.LastName),
		Password:  hashed,
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		users := repository.NewUserRepository(tx)
		if err := checkAccountFree(ctx, users, user.Username, user.Email, 0); err != nil {
			return err
		}
		if err := users.Create(ctx, user); err != nil {
			if repository.IsUniqueViolation(err) {
				return models.NewValidationError("A user with that username or email already exists")
			}
			return err
		}

		profile, err := s.createProfile(ctx, tx, user)
		if err != nil {
			return err
		}
		user.Profile = profile
		return nil
	})
	if err != nil {
		err = appError(err)
		logFailure(ctx, "signup failed", err)
		return nil, err
	}

	token, err := s.issuer.Issue(user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	middleware.Logger.InfoContext(ctx, "user signed up", "user_id", user.ID)
	return &AuthResult{Token: token, User: user}, nil
}

// createProfile inserts the profile of a new user. A slug taken between the
// lookup and the insert is retried once with a fresh slug; each attempt runs
// under its own savepoint so a failed insert leaves tx usable.
func (s *IdentityService) createProfile(ctx context.Context, tx *gorm.DB, user *models.User) (*models.Profile, error) {
	profiles := repository.NewProfileRepository(tx)
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		profileSlug, err := s.slugs.Generate(ctx, "", user.Username, "user", profiles.SlugExists)
		if err != nil {
			return nil, err
		}
		profile := &models.Profile{
			UserID: user.ID,
			Slug:   profileSlug,
			Avatar: models.DefaultAvatar,
		}
		err = tx.Transaction(func(sp *gorm.DB) error {
			return repository.NewProfileRepository(sp).Create(ctx, profile)
		})
		if err == nil {
			return profile, nil
		}
		if !repository.IsUniqueViolation(err) {
			return nil, err
		}
		lastErr = err
	}
	return nil, models.NewConflictError("Could not assign a unique profile slug", lastErr)
}

func checkAccountFree(ctx context.Context, users repository.UserRepository, username, email string, exceptID uint) error {
	if username != "" {
		taken, err := users.UsernameTaken(ctx, username, exceptID)
		if err != nil {
			return err
		}
		if taken {
			return models.NewValidationError("A user with that username already exists")
		}
	}
	if email != "" {
		taken, err := users.EmailTaken(ctx, email, exceptID)
		if err != nil {
			return err
		}
		if taken {
			return models.NewValidationError("A user with that email already exists")
		}
	}
	return nil
}

// Login accepts a username or an email address.
func (s *IdentityService) Login(ctx context.Context, in LoginInput) (*AuthResult, error) {
	in.Login = strings.TrimSpace(in.Login)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	user, err := repository.NewUserRepository(s.db).GetByLogin(ctx, in.Login)
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, models.NewUnauthorizedError("Invalid credentials")
		}
		return nil, appError(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.Password)); err != nil {
		return nil, models.NewUnauthorizedError("Invalid credentials")
	}

	token, err := s.issuer.Issue(user.ID)
	if err != nil {
		return nil, models.NewInternalError(err)
	}
	account, err := loadAccount(ctx, s.db, user.ID)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: token, User: account}, nil
}

// ChangePassword replaces the caller's password after checking the current one.
func (s *IdentityService) ChangePassword(ctx context.Context, in ChangePasswordInput) error {
	if err := validation.Struct(in); err != nil {
		return err
	}

	users := repository.NewUserRepository(s.db)
	user, err := users.GetByID(ctx, in.UserID)
	if err != nil {
		return appError(err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(in.OldPassword)); err != nil {
		return models.NewValidationError("Your old password was entered incorrectly")
	}

	hashed, err := hashPassword(in.NewPassword, s.hashCost)
	if err != nil {
		return err
	}
	if err := users.UpdatePassword(ctx, user.ID, hashed); err != nil {
		err = appError(err)
		logFailure(ctx, "password change failed", err)
		return err
	}
	middleware.Logger.InfoContext(ctx, "password changed", "user_id", user.ID)
	return nil
}

// Me returns the caller's account with its profile and follow counts.
func (s *IdentityService) Me(ctx context.Context, userID uint) (*models.User, error) {
	return loadAccount(ctx, s.db, userID)
}

func loadAccount(ctx context.Context, db *gorm.DB, userID uint) (*models.User, error) {
	user, err := repository.NewUserRepository(db).GetByID(ctx, userID)
	if err != nil {
		return nil, appError(err)
	}
	profile, err := repository.NewProfileRepository(db).GetByUserID(ctx, userID, 0)
	if err != nil {
		return nil, appError(err)
	}
	profile.User = nil
	user.Profile = profile
	return user, nil
}
