package repository

import (
	"context"
	"errors"
	"time"

	"realblog/internal/models"

	"gorm.io/gorm"
)

// singleUseCode covers the mailed one-time code tables.
type singleUseCode interface {
	models.EmailVerification | models.PasswordReset
}

// CodeRepository stores single-use codes mailed to users.
type CodeRepository[T singleUseCode] interface {
	Create(ctx context.Context, code *T) error
	GetByCode(ctx context.Context, code string) (*T, error)
	CodeExists(ctx context.Context, code string) (bool, error)
	Delete(ctx context.Context, id uint) error
	DeleteForUser(ctx context.Context, userID uint) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type codeRepository[T singleUseCode] struct {
	db       *gorm.DB
	resource string
}

// VerificationRepository stores pending e-mail verifications.
type VerificationRepository = CodeRepository[models.EmailVerification]

// PasswordResetRepository stores pending password resets.
type PasswordResetRepository = CodeRepository[models.PasswordReset]

// NewVerificationRepository returns a VerificationRepository implementation.
func NewVerificationRepository(db *gorm.DB) VerificationRepository {
	return &codeRepository[models.EmailVerification]{db: db, resource: "Verification code"}
}

// NewPasswordResetRepository returns a PasswordResetRepository implementation.
func NewPasswordResetRepository(db *gorm.DB) PasswordResetRepository {
	return &codeRepository[models.PasswordReset]{db: db, resource: "Reset code"}
}

func (r *codeRepository[T]) Create(ctx context.Context, code *T) error {
	return r.db.WithContext(ctx).Create(code).Error
}

func (r *codeRepository[T]) GetByCode(ctx context.Context, code string) (*T, error) {
	var row T
	if err := r.db.WithContext(ctx).Where("code = ?", code).First(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError(r.resource, code)
		}
		return nil, err
	}
	return &row, nil
}

func (r *codeRepository[T]) CodeExists(ctx context.Context, code string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(new(T)).Where("code = ?", code).Count(&count).Error
	return count > 0, err
}

func (r *codeRepository[T]) Delete(ctx context.Context, id uint) error {
	return r.db.WithContext(ctx).Delete(new(T), id).Error
}

func (r *codeRepository[T]) DeleteForUser(ctx context.Context, userID uint) error {
	return r.db.WithContext(ctx).Where("user_id = ?", userID).Delete(new(T)).Error
}

func (r *codeRepository[T]) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(new(T))
	return res.RowsAffected, res.Error
}
