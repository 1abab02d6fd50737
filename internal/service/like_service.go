package service

import (
	"context"

	"realblog/internal/cache"
	"realblog/internal/observability"
	"realblog/internal/repository"

	"gorm.io/gorm"
)

// LikeResult is the caller's membership and the post's like total after a toggle.
type LikeResult struct {
	Liked bool  `json:"liked"`
	Total int64 `json:"total"`
}

type LikeService struct {
	db *gorm.DB
}

func NewLikeService(db *gorm.DB) *LikeService {
	return &LikeService{db: db}
}

// Toggle flips userID's like on the post at slug. Only the (user, post)
// primary key serializes concurrent toggles; other users' rows are untouched.
func (s *LikeService) Toggle(ctx context.Context, userID uint, postSlug string) (*LikeResult, error) {
	post, err := visiblePost(ctx, s.db, postSlug, userID)
	if err != nil {
		return nil, err
	}

	result := &LikeResult{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		likes := repository.NewLikeRepository(tx)
		removed, err := likes.Remove(ctx, userID, post.ID)
		if err != nil {
			return err
		}
		if !removed {
			if err := likes.Add(ctx, userID, post.ID); err != nil {
				return err
			}
		}
		result.Liked = !removed
		result.Total, err = likes.Count(ctx, post.ID)
		return err
	})
	if err != nil {
		err = appError(err)
		logFailure(ctx, "like toggle failed", err)
		return nil, err
	}

	state := "unliked"
	if result.Liked {
		state = "liked"
	}
	observability.LikeToggles.WithLabelValues(state).Inc()
	cache.InvalidatePost(ctx, post.Slug)
	return result, nil
}
