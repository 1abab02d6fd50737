package repository

import (
	"context"
	"errors"

	"realblog/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TagRepository defines persistence operations for the open tag vocabulary.
type TagRepository interface {
	GetOrCreate(ctx context.Context, name, slug string) (*models.Tag, error)
	GetBySlug(ctx context.Context, slug string) (*models.Tag, error)
}

type tagRepository struct {
	db *gorm.DB
}

// NewTagRepository returns a new TagRepository implementation.
func NewTagRepository(db *gorm.DB) TagRepository {
	return &tagRepository{db: db}
}

// GetOrCreate returns the tag with slug, inserting it first when missing.
// A concurrent insert of the same slug is absorbed by the unique index.
func (r *tagRepository) GetOrCreate(ctx context.Context, name, slug string) (*models.Tag, error) {
	db := r.db.WithContext(ctx)
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "slug"}},
		DoNothing: true,
	}).Create(&models.Tag{Name: name, Slug: slug}).Error; err != nil {
		return nil, err
	}
	var tag models.Tag
	if err := db.Where("slug = ?", slug).First(&tag).Error; err != nil {
		return nil, err
	}
	return &tag, nil
}

func (r *tagRepository) GetBySlug(ctx context.Context, slug string) (*models.Tag, error) {
	var tag models.Tag
	if err := r.db.WithContext(ctx).Where("slug = ?", slug).First(&tag).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Tag", slug)
		}
		return nil, err
	}
	return &tag, nil
}
