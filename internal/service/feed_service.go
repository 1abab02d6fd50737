package service

import (
	"context"

	"realblog/internal/models"
	"realblog/internal/repository"

	"gorm.io/gorm"
)

// FeedService assembles the post listings.
type FeedService struct {
	db       *gorm.DB
	pageSize int
}

func NewFeedService(db *gorm.DB, pageSize int) *FeedService {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return &FeedService{db: db, pageSize: pageSize}
}

func (s *FeedService) list(ctx context.Context, f repository.PostFilter, page Page, viewerID uint) ([]models.Post, error) {
	page = page.normalize(s.pageSize)
	f.Limit, f.Offset = page.Limit, page.Offset
	posts, err := repository.NewPostRepository(s.db).List(ctx, f, viewerID)
	if err != nil {
		return nil, appError(err)
	}
	return posts, nil
}

// Home lists every published post, newest first.
func (s *FeedService) Home(ctx context.Context, viewerID uint, page Page) ([]models.Post, error) {
	return s.list(ctx, repository.PostFilter{Status: models.PostStatusPublished}, page, viewerID)
}

func (s *FeedService) Category(ctx context.Context, categorySlug string, viewerID uint, page Page) ([]models.Post, error) {
	category, err := repository.NewCategoryRepository(s.db).GetBySlug(ctx, categorySlug)
	if err != nil {
		return nil, appError(err)
	}
	return s.list(ctx, repository.PostFilter{Status: models.PostStatusPublished, CategoryID: category.ID}, page, viewerID)
}

func (s *FeedService) Tag(ctx context.Context, tagSlug string, viewerID uint, page Page) ([]models.Post, error) {
	tag, err := repository.NewTagRepository(s.db).GetBySlug(ctx, tagSlug)
	if err != nil {
		return nil, appError(err)
	}
	return s.list(ctx, repository.PostFilter{Status: models.PostStatusPublished, TagID: tag.ID}, page, viewerID)
}

// Following lists published posts by the profiles userID follows.
func (s *FeedService) Following(ctx context.Context, userID uint, page Page) ([]models.Post, error) {
	return s.list(ctx, repository.PostFilter{Status: models.PostStatusPublished, FollowerID: userID}, page, userID)
}

// Drafts lists the caller's unpublished posts.
func (s *FeedService) Drafts(ctx context.Context, userID uint, page Page) ([]models.Post, error) {
	return s.list(ctx, repository.PostFilter{Status: models.PostStatusDraft, AuthorID: userID}, page, userID)
}

// ProfilePosts lists the published posts of the profile at slug.
func (s *FeedService) ProfilePosts(ctx context.Context, profileSlug string, viewerID uint, page Page) ([]models.Post, error) {
	profile, err := repository.NewProfileRepository(s.db).GetBySlug(ctx, profileSlug, 0)
	if err != nil {
		return nil, appError(err)
	}
	return s.list(ctx, repository.PostFilter{Status: models.PostStatusPublished, AuthorID: profile.UserID}, page, viewerID)
}

// Similar lists published posts sharing tags with the post at slug.
func (s *FeedService) Similar(ctx context.Context, postSlug string, viewerID uint, page Page) ([]models.Post, error) {
	post, err := visiblePost(ctx, s.db, postSlug, viewerID)
	if err != nil {
		return nil, err
	}
	page = page.normalize(s.pageSize)
	posts, err := repository.NewPostRepository(s.db).Similar(ctx, post.ID, page.Limit, page.Offset, viewerID)
	if err != nil {
		return nil, appError(err)
	}
	return posts, nil
}

// Latest returns the few newest published posts.
func (s *FeedService) Latest(ctx context.Context, viewerID uint) ([]models.Post, error) {
	return s.list(ctx, repository.PostFilter{Status: models.PostStatusPublished}, Page{Limit: widgetSize}, viewerID)
}

// MostCommented returns the few published posts with the most comments.
func (s *FeedService) MostCommented(ctx context.Context, viewerID uint) ([]models.Post, error) {
	return s.list(ctx, repository.PostFilter{
		Status:  models.PostStatusPublished,
		OrderBy: repository.OrderMostCommented,
	}, Page{Limit: widgetSize}, viewerID)
}
