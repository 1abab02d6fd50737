// Package repository implements the data access layer for the application.
package repository

import (
	"errors"

	"realblog/internal/database"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
)

const pgUniqueViolation = "23505"

func readDB(primary *gorm.DB) *gorm.DB {
	if db := database.GetReadDB(); db != nil {
		return db
	}
	return primary
}

// IsUniqueViolation reports whether err comes from a unique constraint.
func IsUniqueViolation(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// publicAuthor limits a preloaded author to the columns shown publicly.
func publicAuthor(db *gorm.DB) *gorm.DB {
	return db.Select("id", "username", "first_name", "last_name", "created_at", "updated_at")
}
