package repository

import (
	"context"
	"fmt"
	"regexp"
	"testing"

	"realblog/internal/models"
	"realblog/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: db,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

func TestUserRepository_GetByID(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	tests := []struct {
		name          string
		userID        uint
		mockBehavior  func()
		expectedUser  *models.User
		expectedError string
	}{
		{
			name:   "Success",
			userID: 1,
			mockBehavior: func() {
				rows := sqlmock.NewRows([]string{"id", "username", "email"}).
					AddRow(1, "ada", "ada@example.com")
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(1, 1).
					WillReturnRows(rows)
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "profiles" WHERE "profiles"."user_id" = $1`)).
					WithArgs(1).
					WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "slug"}).AddRow(7, 1, "ada"))
			},
			expectedUser: &models.User{ID: 1, Username: "ada", Email: "ada@example.com"},
		},
		{
			name:   "Not Found",
			userID: 99,
			mockBehavior: func() {
				mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "users" WHERE "users"."id" = $1 ORDER BY "users"."id" LIMIT $2`)).
					WithArgs(99, 1).
					WillReturnRows(sqlmock.NewRows([]string{"id"}))
			},
			expectedError: models.CodeNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.mockBehavior()
			user, err := repo.GetByID(ctx, tt.userID)

			if tt.expectedError != "" {
				assert.True(t, models.IsCode(err, tt.expectedError), "got %v", err)
			} else if assert.NotNil(t, user) {
				assert.Equal(t, tt.expectedUser.Username, user.Username)
				require.NotNil(t, user.Profile)
				assert.Equal(t, "ada", user.Profile.Slug)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestIsUniqueViolation(t *testing.T) {
	assert.True(t, IsUniqueViolation(gorm.ErrDuplicatedKey))
	assert.True(t, IsUniqueViolation(fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(gorm.ErrRecordNotFound))
	assert.False(t, IsUniqueViolation(nil))
}

func TestUserRepository_SQLite(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewUserRepository(db)
	ctx := context.Background()

	ada, _ := testutil.CreateUser(t, db, "ada")
	testutil.CreateUser(t, db, "grace")

	t.Run("GetByLogin by username", func(t *testing.T) {
		user, err := repo.GetByLogin(ctx, "ada")
		require.NoError(t, err)
		assert.Equal(t, ada.ID, user.ID)
	})

	t.Run("GetByLogin by email ignores case", func(t *testing.T) {
		user, err := repo.GetByLogin(ctx, "ADA@Example.com")
		require.NoError(t, err)
		assert.Equal(t, ada.ID, user.ID)
	})

	t.Run("GetByLogin unknown", func(t *testing.T) {
		_, err := repo.GetByLogin(ctx, "nobody")
		assert.True(t, models.IsCode(err, models.CodeNotFound))
	})

	t.Run("UsernameTaken excludes self", func(t *testing.T) {
		taken, err := repo.UsernameTaken(ctx, "Grace", 0)
		require.NoError(t, err)
		assert.True(t, taken)

		taken, err = repo.UsernameTaken(ctx, "ada", ada.ID)
		require.NoError(t, err)
		assert.False(t, taken)
	})

	t.Run("EmailTaken", func(t *testing.T) {
		taken, err := repo.EmailTaken(ctx, "grace@example.com", ada.ID)
		require.NoError(t, err)
		assert.True(t, taken)
	})

	t.Run("duplicate username is a unique violation", func(t *testing.T) {
		err := repo.Create(ctx, &models.User{Username: "ada", Email: "other@example.com", Password: "x"})
		require.Error(t, err)
		assert.True(t, IsUniqueViolation(err))
	})

	t.Run("UpdatePassword", func(t *testing.T) {
		require.NoError(t, repo.UpdatePassword(ctx, ada.ID, "new-hash"))
		user, err := repo.GetByID(ctx, ada.ID)
		require.NoError(t, err)
		assert.Equal(t, "new-hash", user.Password)

		err = repo.UpdatePassword(ctx, 9999, "x")
		assert.True(t, models.IsCode(err, models.CodeNotFound))
	})
}
