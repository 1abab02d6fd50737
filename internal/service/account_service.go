package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"realblog/internal/config"
	"realblog/internal/mailer"
	"realblog/internal/middleware"
	"realblog/internal/models"
	"realblog/internal/repository"
	"realblog/internal/validation"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const codeAttempts = 5

// AccountService runs the mailed-code flows: e-mail verification and password reset.
type AccountService struct {
	db              *gorm.DB
	mail            mailer.Sender
	from            string
	verificationTTL time.Duration
	resetTTL        time.Duration
	hashCost        int
	now             func() time.Time
	newCode         func() string
}

type PasswordResetRequest struct {
	Email string `json:"email" validate:"required,email"`
}

type PasswordResetConfirmInput struct {
	Code     string `json:"code" validate:"required"`
	Password string `json:"password" validate:"required,password"`
}

func NewAccountService(db *gorm.DB, mail mailer.Sender, cfg *config.Config) *AccountService {
	verificationTTL := time.Duration(cfg.VerificationTTLHours) * time.Hour
	if verificationTTL <= 0 {
		verificationTTL = 24 * time.Hour
	}
	resetTTL := time.Duration(cfg.PasswordResetTTLHours) * time.Hour
	if resetTTL <= 0 {
		resetTTL = 2 * time.Hour
	}
	return &AccountService{
		db:              db,
		mail:            mail,
		from:            cfg.EmailFrom,
		verificationTTL: verificationTTL,
		resetTTL:        resetTTL,
		hashCost:        bcryptCost,
		now:             time.Now,
		newCode:         func() string { return strings.ReplaceAll(uuid.NewString(), "-", "") },
	}
}

// uniqueCode draws codes until exists reports a free one.
func (s *AccountService) uniqueCode(ctx context.Context, exists func(context.Context, string) (bool, error)) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code := s.newCode()
		taken, err := exists(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", models.NewConflictError("Could not generate a unique code", nil)
}

// RequestEmailVerification replaces any pending code of the user with a new
// one and mails it. A delivery failure rolls the new code back.
func (s *AccountService) RequestEmailVerification(ctx context.Context, userID uint) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := repository.NewUserRepository(tx).GetByID(ctx, userID)
		if err != nil {
			return err
		}
		if user.Profile != nil && user.Profile.EmailVerified {
			return models.NewValidationError("Email address is already verified")
		}

		codes := repository.NewVerificationRepository(tx)
		if err := codes.DeleteForUser(ctx, userID); err != nil {
			return err
		}
		code, err := s.uniqueCode(ctx, codes.CodeExists)
		if err != nil {
			return err
		}
		now := s.now()
		if err := codes.Create(ctx, &models.EmailVerification{
			Code:      code,
			UserID:    userID,
			CreatedAt: now,
			ExpiresAt: now.Add(s.verificationTTL),
		}); err != nil {
			return err
		}

		return s.mail.Send(ctx, mailer.Message{
			Kind:    "verification",
			Subject: "Confirm your email address",
			Body: fmt.Sprintf("Hi %s,\n\nUse this code to confirm your email address: %s\n\nIt expires in %s.\n",
				user.Username, code, s.verificationTTL),
			From:         s.from,
			To:           []string{user.Email},
			FailSilently: false,
		})
	})
	if err != nil {
		err = appError(err)
		logFailure(ctx, "email verification request failed", err)
		return err
	}
	return nil
}

// ConfirmEmailVerification marks the owner of code as verified and consumes
// the code. An expired code is deleted and rejected.
func (s *AccountService) ConfirmEmailVerification(ctx context.Context, code string) error {
	code = strings.TrimSpace(code)
	if code == "" {
		return models.NewValidationError("Verification code is required")
	}

	expired := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		codes := repository.NewVerificationRepository(tx)
		row, err := codes.GetByCode(ctx, code)
		if err != nil {
			if models.IsCode(err, models.CodeNotFound) {
				return models.NewValidationError("Invalid verification code")
			}
			return err
		}
		if err := codes.Delete(ctx, row.ID); err != nil {
			return err
		}
		if row.Expired(s.now()) {
			expired = true
			return nil
		}
		return repository.NewProfileRepository(tx).SetEmailVerified(ctx, row.UserID, true)
	})
	if err != nil {
		return appError(err)
	}
	if expired {
		return models.NewValidationError("Verification code has expired")
	}
	return nil
}

// RequestPasswordReset mails a single-use reset code to the account address.
func (s *AccountService) RequestPasswordReset(ctx context.Context, in PasswordResetRequest) error {
	in.Email = validation.NormalizeEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return err
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		user, err := repository.NewUserRepository(tx).GetByEmail(ctx, in.Email)
		if err != nil {
			if models.IsCode(err, models.CodeNotFound) {
				return models.NewValidationError("There is no user registered with the specified email address")
			}
			return err
		}

		resets := repository.NewPasswordResetRepository(tx)
		if err := resets.DeleteForUser(ctx, user.ID); err != nil {
			return err
		}
		code, err := s.uniqueCode(ctx, resets.CodeExists)
		if err != nil {
			return err
		}
		now := s.now()
		if err := resets.Create(ctx, &models.PasswordReset{
			Code:      code,
			UserID:    user.ID,
			CreatedAt: now,
			ExpiresAt: now.Add(s.resetTTL),
		}); err != nil {
			return err
		}

		return s.mail.Send(ctx, mailer.Message{
			Kind:    "password_reset",
			Subject: "Reset your password",
			Body: fmt.Sprintf("Hi %s,\n\nUse this code to choose a new password: %s\n\nIt expires in %s. If you did not ask for a reset, ignore this message.\n",
				user.Username, code, s.resetTTL),
			From: s.from,
			To:   []string{user.Email},
		})
	})
	if err != nil {
		err = appError(err)
		logFailure(ctx, "password reset request failed", err)
		return err
	}
	return nil
}

// ConfirmPasswordReset sets a new password and consumes the code.
func (s *AccountService) ConfirmPasswordReset(ctx context.Context, in PasswordResetConfirmInput) error {
	in.Code = strings.TrimSpace(in.Code)
	if err := validation.Struct(in); err != nil {
		return err
	}
	hashed, err := hashPassword(in.Password, s.hashCost)
	if err != nil {
		return err
	}

	expired := false
	var userID uint
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		resets := repository.NewPasswordResetRepository(tx)
		row, err := resets.GetByCode(ctx, in.Code)
		if err != nil {
			if models.IsCode(err, models.CodeNotFound) {
				return models.NewValidationError("Invalid reset code")
			}
			return err
		}
		if err := resets.Delete(ctx, row.ID); err != nil {
			return err
		}
		if row.Expired(s.now()) {
			expired = true
			return nil
		}
		userID = row.UserID
		return repository.NewUserRepository(tx).UpdatePassword(ctx, row.UserID, hashed)
	})
	if err != nil {
		return appError(err)
	}
	if expired {
		return models.NewValidationError("Reset code has expired")
	}
	middleware.Logger.InfoContext(ctx, "password reset", "user_id", userID)
	return nil
}
