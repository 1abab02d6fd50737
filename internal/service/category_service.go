package service

import (
	"context"
	"strings"

	"realblog/internal/models"
	"realblog/internal/repository"
	"realblog/internal/slug"
	"realblog/internal/validation"

	"gorm.io/gorm"
)

type CategoryService struct {
	db    *gorm.DB
	slugs *slug.Generator
}

type CreateCategoryInput struct {
	UserID uint   `json:"-"`
	Name   string `json:"name" validate:"required,max=255"`
}

func NewCategoryService(db *gorm.DB) *CategoryService {
	return &CategoryService{db: db, slugs: slug.NewGenerator()}
}

func (s *CategoryService) List(ctx context.Context) ([]models.Category, error) {
	categories, err := repository.NewCategoryRepository(s.db).List(ctx)
	return categories, appError(err)
}

func (s *CategoryService) Create(ctx context.Context, in CreateCategoryInput) (*models.Category, error) {
	in.Name = strings.Join(strings.Fields(in.Name), " ")
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	categories := repository.NewCategoryRepository(s.db)
	category := &models.Category{Name: in.Name}
	if in.UserID != 0 {
		category.CreatedByID = &in.UserID
	}
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		categorySlug, err := s.slugs.Generate(ctx, "", in.Name, "category", categories.SlugExists)
		if err != nil {
			return nil, appError(err)
		}
		category.ID = 0
		category.Slug = categorySlug
		err = categories.Create(ctx, category)
		if err == nil {
			return category, nil
		}
		if !repository.IsUniqueViolation(err) {
			return nil, appError(err)
		}
		lastErr = err
	}
	return nil, conflictOr(lastErr, "Could not assign a unique category slug")
}

// Delete removes an unused category created by userID. Categories still
// referenced by posts are kept; preset categories have no owner and stay.
func (s *CategoryService) Delete(ctx context.Context, userID uint, categorySlug string) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		categories := repository.NewCategoryRepository(tx)
		category, err := categories.GetBySlug(ctx, categorySlug)
		if err != nil {
			return err
		}
		if category.CreatedByID == nil || *category.CreatedByID != userID {
			return models.NewPermissionDeniedError("You can only delete categories you created")
		}
		used, err := categories.HasPosts(ctx, category.ID)
		if err != nil {
			return err
		}
		if used {
			return models.NewConflictError("Category "+categorySlug+" still has posts", nil)
		}
		return categories.Delete(ctx, category.ID)
	})
	return appError(err)
}
