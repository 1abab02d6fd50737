// Package service holds the application use cases: validation, ownership
// checks and transactions on top of the repositories.
package service

import (
	"context"
	"errors"

	"realblog/internal/middleware"
	"realblog/internal/models"
	"realblog/internal/repository"
)

const (
	DefaultPageSize = 10
	MaxPageSize     = 100
	widgetSize      = 4
)

// Page is a limit/offset window over a listing.
type Page struct {
	Limit  int
	Offset int
}

// normalize clamps the window; a non-positive limit selects def.
func (p Page) normalize(def int) Page {
	if def <= 0 {
		def = DefaultPageSize
	}
	if p.Limit <= 0 {
		p.Limit = def
	}
	if p.Limit > MaxPageSize {
		p.Limit = MaxPageSize
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// appError passes AppErrors through and wraps anything else as internal.
func appError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return err
	}
	return models.NewInternalError(err)
}

// conflictOr maps a unique violation to a conflict carrying msg.
func conflictOr(err error, msg string) error {
	if repository.IsUniqueViolation(err) {
		return models.NewConflictError(msg, err)
	}
	return appError(err)
}

func logFailure(ctx context.Context, msg string, err error) {
	if models.IsCode(err, models.CodeInternal) || models.IsCode(err, models.CodeExternalFailure) {
		middleware.Logger.ErrorContext(ctx, msg, "error", err)
	}
}
