package repository

import (
	"context"
	"errors"

	"realblog/internal/models"

	"gorm.io/gorm"
)

// CommentRepository defines interface for comment operations
type CommentRepository interface {
	Create(ctx context.Context, comment *models.Comment) error
	SetPath(ctx context.Context, id uint, path string, depth int) error
	GetByID(ctx context.Context, id uint) (*models.Comment, error)
	ListByPost(ctx context.Context, postID uint) ([]models.Comment, error)
	UpdateContent(ctx context.Context, id uint, content string) error
	Subtree(ctx context.Context, path string) ([]models.Comment, error)
	Reparent(ctx context.Context, id uint, parentID *uint) error
	DeleteSubtree(ctx context.Context, path string) (int64, error)
}

type commentRepository struct {
	db *gorm.DB
}

// NewCommentRepository creates a new CommentRepository
func NewCommentRepository(db *gorm.DB) CommentRepository {
	return &commentRepository{db: db}
}

func (r *commentRepository) Create(ctx context.Context, comment *models.Comment) error {
	return r.db.WithContext(ctx).Omit("Author", "Post", "Parent").Create(comment).Error
}

// SetPath stores the materialized path computed once the id is known.
func (r *commentRepository) SetPath(ctx context.Context, id uint, path string, depth int) error {
	return r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("id = ?", id).
		Updates(map[string]any{"path": path, "depth": depth}).Error
}

func (r *commentRepository) GetByID(ctx context.Context, id uint) (*models.Comment, error) {
	var comment models.Comment
	if err := r.db.WithContext(ctx).Preload("Author", publicAuthor).Preload("Author.Profile").First(&comment, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Comment", id)
		}
		return nil, err
	}
	return &comment, nil
}

// ListByPost returns every comment of a post in path order.
func (r *commentRepository) ListByPost(ctx context.Context, postID uint) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := readDB(r.db).WithContext(ctx).
		Preload("Author", publicAuthor).
		Preload("Author.Profile").
		Where("post_id = ?", postID).
		Order("path ASC").
		Find(&comments).Error
	return comments, err
}

func (r *commentRepository) UpdateContent(ctx context.Context, id uint, content string) error {
	return r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("id = ?", id).
		Update("content", content).Error
}

// Subtree returns the node at path and all its descendants, shallowest first.
func (r *commentRepository) Subtree(ctx context.Context, path string) ([]models.Comment, error) {
	comments := []models.Comment{}
	err := r.db.WithContext(ctx).
		Where("path = ? OR path LIKE ?", path, path+models.CommentPathSep+"%").
		Order("depth ASC, path ASC").
		Find(&comments).Error
	return comments, err
}

func (r *commentRepository) Reparent(ctx context.Context, id uint, parentID *uint) error {
	return r.db.WithContext(ctx).Model(&models.Comment{}).
		Where("id = ?", id).
		Update("parent_id", parentID).Error
}

// DeleteSubtree removes the node at path and all its descendants.
func (r *commentRepository) DeleteSubtree(ctx context.Context, path string) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("path = ? OR path LIKE ?", path, path+models.CommentPathSep+"%").
		Delete(&models.Comment{})
	return res.RowsAffected, res.Error
}
