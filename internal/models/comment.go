package models

import (
	"fmt"
	"strings"
	"time"
)

const (
	// CommentPathSep separates the zero-padded ids of a comment path.
	CommentPathSep = "/"
	// commentPathWidth keeps lexical path order equal to numeric id order.
	commentPathWidth = 10
)

// Comment belongs to a post and may reply to another comment of the same post.
// Path holds the ids from the root down to the comment itself, so a subtree is
// every row whose path equals or is prefixed by the node's path.
type Comment struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	PostID    uint      `gorm:"index;not null" json:"post_id"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	ParentID  *uint     `gorm:"index" json:"parent_id"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	Path      string    `gorm:"type:text;index;not null;default:''" json:"-"`
	Depth     int       `gorm:"not null;default:0" json:"depth"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Author *User    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"author,omitempty"`
	Post   *Post    `gorm:"foreignKey:PostID;constraint:OnDelete:CASCADE" json:"-"`
	Parent *Comment `gorm:"foreignKey:ParentID;constraint:OnDelete:CASCADE" json:"-"`
}

// CommentPathSegment renders one id as a fixed-width path segment.
func CommentPathSegment(id uint) string {
	return fmt.Sprintf("%0*d", commentPathWidth, id)
}

// ChildPath returns the path of a comment with id placed under parentPath.
func ChildPath(parentPath string, id uint) string {
	if parentPath == "" {
		return CommentPathSegment(id)
	}
	return parentPath + CommentPathSep + CommentPathSegment(id)
}

// IsDescendantPath reports whether candidate lies strictly inside the subtree rooted at root.
func IsDescendantPath(root, candidate string) bool {
	return strings.HasPrefix(candidate, root+CommentPathSep)
}

// PathDepth returns the depth encoded by a path, roots being zero.
func PathDepth(path string) int {
	if path == "" {
		return 0
	}
	return strings.Count(path, CommentPathSep)
}
