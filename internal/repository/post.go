package repository

import (
	"context"
	"errors"

	"realblog/internal/cache"
	"realblog/internal/models"

	"gorm.io/gorm"
)

// PostRepository defines the interface for post data operations
type PostRepository interface {
	Create(ctx context.Context, post *models.Post) error
	GetBySlug(ctx context.Context, slug string, viewerID uint) (*models.Post, error)
	GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error)
	GetByIDs(ctx context.Context, ids []uint, viewerID uint) ([]models.Post, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	Update(ctx context.Context, post *models.Post) error
	ReplaceTags(ctx context.Context, post *models.Post, tags []models.Tag) error
	Delete(ctx context.Context, id uint) error
	List(ctx context.Context, filter PostFilter, viewerID uint) ([]models.Post, error)
	Similar(ctx context.Context, postID uint, limit, offset int, viewerID uint) ([]models.Post, error)
}

// postRepository implements PostRepository
type postRepository struct {
	db *gorm.DB
}

// NewPostRepository creates a new post repository
func NewPostRepository(db *gorm.DB) PostRepository {
	return &postRepository{db: db}
}

func (r *postRepository) Create(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Omit("Author", "Category", "Tags.*").Create(post).Error
}

// applyPostDetails adds subqueries to fetch counts and liked status in a single query.
func applyPostDetails(db *gorm.DB, viewerID uint) *gorm.DB {
	selectQuery := "posts.*, " +
		"(SELECT COUNT(*) FROM comments WHERE comments.post_id = posts.id) AS comments_count, " +
		"(SELECT COUNT(*) FROM likes WHERE likes.post_id = posts.id) AS likes_count"

	if viewerID != 0 {
		return db.Select(selectQuery+", EXISTS(SELECT 1 FROM likes WHERE likes.post_id = posts.id AND likes.user_id = ?) AS liked", viewerID)
	}
	return db.Select(selectQuery + ", false AS liked")
}

func withPostRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Author", publicAuthor).
		Preload("Author.Profile").
		Preload("Category").
		Preload("Tags", func(db *gorm.DB) *gorm.DB { return db.Order("tags.name ASC") })
}

func (r *postRepository) get(ctx context.Context, viewerID uint, key any, where string, args ...any) (*models.Post, error) {
	var post models.Post
	err := withPostRelations(applyPostDetails(readDB(r.db).WithContext(ctx), viewerID)).
		Where(where, args...).
		First(&post).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewNotFoundError("Post", key)
		}
		return nil, err
	}
	return &post, nil
}

// GetBySlug loads a post with its relations. Anonymous reads go through the cache.
func (r *postRepository) GetBySlug(ctx context.Context, slug string, viewerID uint) (*models.Post, error) {
	if viewerID != 0 {
		return r.get(ctx, viewerID, slug, "posts.slug = ?", slug)
	}

	var post models.Post
	err := cache.Aside(ctx, cache.PostKey(slug), &post, cache.PostTTL, func() error {
		p, err := r.get(ctx, 0, slug, "posts.slug = ?", slug)
		if err != nil {
			return err
		}
		post = *p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &post, nil
}

func (r *postRepository) GetByID(ctx context.Context, id uint, viewerID uint) (*models.Post, error) {
	return r.get(ctx, viewerID, id, "posts.id = ?", id)
}

// GetByIDs loads posts in the order of ids; missing ids are skipped.
func (r *postRepository) GetByIDs(ctx context.Context, ids []uint, viewerID uint) ([]models.Post, error) {
	if len(ids) == 0 {
		return []models.Post{}, nil
	}
	var found []models.Post
	err := withPostRelations(applyPostDetails(readDB(r.db).WithContext(ctx), viewerID)).
		Where("posts.id IN ?", ids).
		Find(&found).Error
	if err != nil {
		return nil, err
	}

	byID := make(map[uint]models.Post, len(found))
	for _, p := range found {
		byID[p.ID] = p
	}
	ordered := make([]models.Post, 0, len(found))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			ordered = append(ordered, p)
		}
	}
	return ordered, nil
}

func (r *postRepository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&models.Post{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

// Update writes the editable columns of post.
func (r *postRepository) Update(ctx context.Context, post *models.Post) error {
	return r.db.WithContext(ctx).Model(post).
		Select("title", "body", "body_text", "snippet", "image_url", "category_id", "status", "published_at", "updated_at").
		Updates(post).Error
}

// ReplaceTags sets the post's tag links to exactly tags.
func (r *postRepository) ReplaceTags(ctx context.Context, post *models.Post, tags []models.Tag) error {
	db := r.db.WithContext(ctx)
	if err := db.Exec("DELETE FROM post_tags WHERE post_id = ?", post.ID).Error; err != nil {
		return err
	}
	if len(tags) > 0 {
		rows := make([]map[string]any, 0, len(tags))
		for _, t := range tags {
			rows = append(rows, map[string]any{"post_id": post.ID, "tag_id": t.ID})
		}
		if err := db.Table("post_tags").Create(rows).Error; err != nil {
			return err
		}
	}
	post.Tags = tags
	return nil
}

// Delete removes the post together with its comments, likes and tag links.
// Run it inside a transaction.
func (r *postRepository) Delete(ctx context.Context, id uint) error {
	db := r.db.WithContext(ctx)
	for _, stmt := range []string{
		"DELETE FROM comments WHERE post_id = ?",
		"DELETE FROM likes WHERE post_id = ?",
		"DELETE FROM post_tags WHERE post_id = ?",
	} {
		if err := db.Exec(stmt, id).Error; err != nil {
			return err
		}
	}
	res := db.Delete(&models.Post{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return models.NewNotFoundError("Post", id)
	}
	return nil
}
