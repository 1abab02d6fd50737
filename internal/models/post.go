package models

import (
	"time"
)

// PostStatus is the publication state of a post.
type PostStatus string

const (
	PostStatusDraft     PostStatus = "draft"
	PostStatusPublished PostStatus = "published"
)

// Valid reports whether s is one of the known statuses.
func (s PostStatus) Valid() bool {
	return s == PostStatusDraft || s == PostStatusPublished
}

// Post is an article written by a user. Only published posts appear in public feeds.
type Post struct {
	ID          uint       `gorm:"primaryKey" json:"id"`
	Title       string     `gorm:"size:255;not null" json:"title"`
	Slug        string     `gorm:"size:255;uniqueIndex;not null" json:"slug"`
	UserID      uint       `gorm:"index;not null" json:"user_id"`
	Body        string     `gorm:"type:text;not null" json:"body"`
	BodyText    string     `gorm:"type:text;not null" json:"-"`
	Snippet     string     `gorm:"size:255" json:"snippet"`
	ImageURL    string     `gorm:"size:512" json:"image_url,omitempty"`
	CategoryID  uint       `gorm:"index;not null" json:"category_id"`
	Status      PostStatus `gorm:"size:16;index;not null;default:draft" json:"status"`
	PublishedAt *time.Time `json:"published_at,omitempty"`
	CreatedAt   time.Time  `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`

	Author   *User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"author,omitempty"`
	Category *Category `gorm:"foreignKey:CategoryID;constraint:OnDelete:RESTRICT" json:"category,omitempty"`
	Tags     []Tag     `gorm:"many2many:post_tags;constraint:OnDelete:CASCADE" json:"tags"`

	// Computed, not persisted.
	LikesCount    int     `gorm:"->;-:migration" json:"likes_count"`
	CommentsCount int     `gorm:"->;-:migration" json:"comments_count"`
	Liked         bool    `gorm:"->;-:migration" json:"liked"`
	Rank          float64 `gorm:"->;-:migration" json:"rank,omitempty"`
}

// IsPublished reports whether the post is visible in public feeds.
func (p *Post) IsPublished() bool {
	return p.Status == PostStatusPublished
}

// Category groups posts. A category referenced by posts cannot be deleted.
// CreatedByID is nil for categories loaded from a seed preset.
type Category struct {
	ID          uint   `gorm:"primaryKey" json:"id"`
	Name        string `gorm:"size:255;not null" json:"name"`
	Slug        string `gorm:"size:255;uniqueIndex;not null" json:"slug"`
	CreatedByID *uint  `gorm:"index" json:"created_by_id,omitempty"`

	CreatedBy *User `gorm:"foreignKey:CreatedByID;constraint:OnDelete:SET NULL" json:"-"`
}

// Tag is an open-vocabulary label attached to posts.
type Tag struct {
	ID   uint   `gorm:"primaryKey" json:"id"`
	Name string `gorm:"size:100;not null" json:"name"`
	Slug string `gorm:"size:100;uniqueIndex;not null" json:"slug"`
}

// Like is a user's like on a post. (UserID, PostID) is unique.
type Like struct {
	UserID    uint      `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	PostID    uint      `gorm:"primaryKey;autoIncrement:false;index" json:"post_id"`
	CreatedAt time.Time `json:"created_at"`
}
