package repository

import (
	"context"

	"realblog/internal/cache"
	"realblog/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Feed orderings.
const (
	OrderNewest        = "newest"
	OrderMostCommented = "most_commented"
)

// PostFilter narrows a post listing. Zero fields do not filter.
type PostFilter struct {
	Status     models.PostStatus
	AuthorID   uint
	CategoryID uint
	TagID      uint
	// FollowerID keeps posts whose author is followed by this user.
	FollowerID uint
	ExcludeID  uint
	OrderBy    string
	Limit      int
	Offset     int
}

func (f PostFilter) isHome() bool {
	return f.Status == models.PostStatusPublished && f.AuthorID == 0 && f.CategoryID == 0 &&
		f.TagID == 0 && f.FollowerID == 0 && f.ExcludeID == 0 &&
		(f.OrderBy == "" || f.OrderBy == OrderNewest)
}

func applyPostFilter(db *gorm.DB, f PostFilter) *gorm.DB {
	if f.Status != "" {
		db = db.Where("posts.status = ?", f.Status)
	}
	if f.AuthorID != 0 {
		db = db.Where("posts.user_id = ?", f.AuthorID)
	}
	if f.CategoryID != 0 {
		db = db.Where("posts.category_id = ?", f.CategoryID)
	}
	if f.TagID != 0 {
		db = db.Where("posts.id IN (SELECT post_tags.post_id FROM post_tags WHERE post_tags.tag_id = ?)", f.TagID)
	}
	if f.FollowerID != 0 {
		db = db.Where("posts.user_id IN (SELECT followed.user_id FROM profile_follows "+
			"JOIN profiles followed ON followed.id = profile_follows.followed_id "+
			"JOIN profiles follower ON follower.id = profile_follows.follower_id "+
			"WHERE follower.user_id = ?)", f.FollowerID)
	}
	if f.ExcludeID != 0 {
		db = db.Where("posts.id <> ?", f.ExcludeID)
	}

	switch f.OrderBy {
	case OrderMostCommented:
		db = db.Order("comments_count DESC, posts.created_at DESC, posts.id DESC")
	default:
		db = db.Order("posts.created_at DESC, posts.id DESC")
	}
	return db.Limit(f.Limit).Offset(f.Offset)
}

// List returns posts matching f. Anonymous home feed pages are cached.
func (r *postRepository) List(ctx context.Context, f PostFilter, viewerID uint) ([]models.Post, error) {
	fetch := func(dest *[]models.Post) error {
		return applyPostFilter(withPostRelations(applyPostDetails(readDB(r.db).WithContext(ctx), viewerID)), f).
			Find(dest).Error
	}

	posts := []models.Post{}
	if viewerID == 0 && f.isHome() {
		err := cache.Aside(ctx, cache.HomeFeedKey(f.Limit, f.Offset), &posts, cache.HomeFeedTTL, func() error {
			return fetch(&posts)
		})
		return posts, err
	}
	if err := fetch(&posts); err != nil {
		return nil, err
	}
	return posts, nil
}

// Similar returns published posts sharing at least one tag with postID,
// most shared tags first, then newest.
func (r *postRepository) Similar(ctx context.Context, postID uint, limit, offset int, viewerID uint) ([]models.Post, error) {
	const sharedTags = "(SELECT COUNT(*) FROM post_tags shared WHERE shared.post_id = posts.id " +
		"AND shared.tag_id IN (SELECT source.tag_id FROM post_tags source WHERE source.post_id = ?))"

	posts := []models.Post{}
	err := withPostRelations(applyPostDetails(readDB(r.db).WithContext(ctx), viewerID)).
		Where("posts.status = ? AND posts.id <> ?", models.PostStatusPublished, postID).
		Where("posts.id IN (SELECT linked.post_id FROM post_tags linked "+
			"WHERE linked.tag_id IN (SELECT source.tag_id FROM post_tags source WHERE source.post_id = ?))", postID).
		Clauses(clause.OrderBy{Expression: clause.Expr{
			SQL:                sharedTags + " DESC, posts.created_at DESC, posts.id DESC",
			Vars:               []any{postID},
			WithoutParentheses: true,
		}}).
		Limit(limit).
		Offset(offset).
		Find(&posts).Error
	if err != nil {
		return nil, err
	}
	return posts, nil
}
