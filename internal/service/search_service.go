package service

import (
	"context"
	"errors"
	"strings"

	"realblog/internal/models"
	"realblog/internal/repository"
	"realblog/internal/search"

	"gorm.io/gorm"
)

type SearchService struct {
	db       *gorm.DB
	ranker   search.Ranker
	pageSize int
}

func NewSearchService(db *gorm.DB, ranker search.Ranker, pageSize int) *SearchService {
	return &SearchService{db: db, ranker: ranker, pageSize: pageSize}
}

// Search returns published posts matching q, best match first. A blank query
// matches nothing.
func (s *SearchService) Search(ctx context.Context, q string, viewerID uint, page Page) ([]models.Post, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return []models.Post{}, nil
	}
	if len([]rune(q)) > 200 {
		return nil, models.NewValidationError("q must not exceed 200 characters")
	}
	page = page.normalize(s.pageSize)

	hits, err := s.ranker.Rank(ctx, search.Query{Text: q, Limit: page.Limit, Offset: page.Offset})
	if err != nil {
		var appErr *models.AppError
		if !errors.As(err, &appErr) {
			err = models.NewExternalError("search", err)
		}
		logFailure(ctx, "search failed", err)
		return nil, err
	}
	if len(hits) == 0 {
		return []models.Post{}, nil
	}

	ids := make([]uint, len(hits))
	ranks := make(map[uint]float64, len(hits))
	for i, h := range hits {
		ids[i] = h.PostID
		ranks[h.PostID] = h.Rank
	}
	posts, err := repository.NewPostRepository(s.db).GetByIDs(ctx, ids, viewerID)
	if err != nil {
		return nil, appError(err)
	}
	for i := range posts {
		posts[i].Rank = ranks[posts[i].ID]
	}
	return posts, nil
}
