// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// DefaultAvatar is the avatar path assigned to new profiles.
const DefaultAvatar = "default.png"

// User is an account identity. Every user owns exactly one Profile.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"size:150;uniqueIndex;not null" json:"username"`
	Email     string    `gorm:"size:254;uniqueIndex;not null" json:"email,omitempty"`
	FirstName string    `gorm:"size:150" json:"first_name"`
	LastName  string    `gorm:"size:150" json:"last_name"`
	Password  string    `gorm:"not null" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Profile *Profile `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"profile,omitempty"`
}

// Profile carries per-user data beyond the identity: avatar, slug, verification state.
type Profile struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	UserID        uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Avatar        string    `gorm:"size:255;not null;default:default.png" json:"avatar"`
	Slug          string    `gorm:"size:255;uniqueIndex;not null" json:"slug"`
	EmailVerified bool      `gorm:"not null;default:false" json:"email_verified"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	User *User `gorm:"foreignKey:UserID" json:"user,omitempty"`

	// Computed, not persisted.
	FollowersCount int64 `gorm:"->;-:migration" json:"followers_count"`
	FollowingCount int64 `gorm:"->;-:migration" json:"following_count"`
	IsFollowing    bool  `gorm:"->;-:migration" json:"is_following"`
}

// Follow is one directed edge of the follow graph: Follower subscribes to Followed.
type Follow struct {
	FollowerID uint      `gorm:"primaryKey;autoIncrement:false" json:"follower_id"`
	FollowedID uint      `gorm:"primaryKey;autoIncrement:false;index" json:"followed_id"`
	CreatedAt  time.Time `json:"created_at"`

	Follower *Profile `gorm:"foreignKey:FollowerID;constraint:OnDelete:CASCADE" json:"-"`
	Followed *Profile `gorm:"foreignKey:FollowedID;constraint:OnDelete:CASCADE" json:"-"`
}

// TableName keeps the join table name stable across dialects.
func (Follow) TableName() string {
	return "profile_follows"
}

// EmailVerification is a pending e-mail confirmation. Code is globally unique.
type EmailVerification struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"size:64;uniqueIndex;not null" json:"-"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
}

// Expired reports whether the verification is no longer valid at now.
func (v *EmailVerification) Expired(now time.Time) bool {
	return !now.Before(v.ExpiresAt)
}

// PasswordReset is a single-use password reset code mailed to the account address.
type PasswordReset struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Code      string    `gorm:"size:64;uniqueIndex;not null" json:"-"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `gorm:"not null" json:"expires_at"`
}

// Expired reports whether the reset code is no longer valid at now.
func (r *PasswordReset) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}
