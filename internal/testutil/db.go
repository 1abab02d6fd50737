package testutil

import (
	"fmt"
	"sync/atomic"
	"time"

	"realblog/internal/database"
	"realblog/internal/models"

	"gorm.io/gorm"
)

// DBTB extends TB with cleanup registration.
type DBTB interface {
	TB
	Cleanup(func())
}

var (
	seq      atomic.Uint64
	baseTime = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
)

// OpenDB returns a migrated in-memory SQLite database closed at test end.
func OpenDB(t DBTB) *gorm.DB {
	t.Helper()
	db, err := database.OpenSQLite(":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.AutoMigrate(db); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts a user with its profile. The username doubles as the profile slug.
func CreateUser(t DBTB, db *gorm.DB, username string) (*models.User, *models.Profile) {
	t.Helper()
	user := &models.User{
		Username: username,
		Email:    username + "@example.com",
		Password: "x",
	}
	if err := db.Omit("Profile").Create(user).Error; err != nil {
		t.Fatalf("create user %s: %v", username, err)
	}
	profile := &models.Profile{UserID: user.ID, Slug: username, Avatar: models.DefaultAvatar}
	if err := db.Omit("User").Create(profile).Error; err != nil {
		t.Fatalf("create profile %s: %v", username, err)
	}
	return user, profile
}

// CreateCategory inserts a category named name.
func CreateCategory(t DBTB, db *gorm.DB, name string) *models.Category {
	t.Helper()
	category := &models.Category{Name: name, Slug: fmt.Sprintf("%s-%d", name, seq.Add(1))}
	if err := db.Create(category).Error; err != nil {
		t.Fatalf("create category %s: %v", name, err)
	}
	return category
}

// PostOption adjusts a post before CreatePost inserts it.
type PostOption func(*models.Post)

// Draft leaves the post unpublished.
func Draft() PostOption {
	return func(p *models.Post) {
		p.Status = models.PostStatusDraft
		p.PublishedAt = nil
	}
}

// WithBody sets the post body and its plain text projection.
func WithBody(body string) PostOption {
	return func(p *models.Post) {
		p.Body = body
		p.BodyText = body
	}
}

// WithCreatedOffset shifts the creation time by n seconds from a fixed base.
func WithCreatedOffset(n int) PostOption {
	return func(p *models.Post) {
		p.CreatedAt = baseTime.Add(time.Duration(n) * time.Second)
		p.UpdatedAt = p.CreatedAt
	}
}

// CreatePost inserts a published post by author in category.
func CreatePost(t DBTB, db *gorm.DB, author *models.User, category *models.Category, title string, opts ...PostOption) *models.Post {
	t.Helper()
	n := seq.Add(1)
	now := baseTime.Add(time.Duration(n) * time.Second)
	post := &models.Post{
		Title:       title,
		Slug:        fmt.Sprintf("post-%d", n),
		UserID:      author.ID,
		Body:        "<p>" + title + "</p>",
		BodyText:    title,
		CategoryID:  category.ID,
		Status:      models.PostStatusPublished,
		PublishedAt: &now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	for _, opt := range opts {
		opt(post)
	}
	if err := db.Omit("Author", "Category", "Tags").Create(post).Error; err != nil {
		t.Fatalf("create post %s: %v", title, err)
	}
	return post
}
