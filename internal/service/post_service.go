package service

import (
	"context"
	"html"
	"strings"
	"time"

	"realblog/internal/cache"
	"realblog/internal/featureflags"
	"realblog/internal/models"
	"realblog/internal/observability"
	"realblog/internal/repository"
	"realblog/internal/slug"
	"realblog/internal/validation"

	"github.com/microcosm-cc/bluemonday"
	"gorm.io/gorm"
)

const (
	maxTags       = 10
	maxTagLength  = 100
	maxSnippetLen = 255
)

// PostService writes posts and their tag links.
type PostService struct {
	db     *gorm.DB
	slugs  *slug.Generator
	flags  *featureflags.Manager
	rich   *bluemonday.Policy
	strict *bluemonday.Policy
	now    func() time.Time
}

type CreatePostInput struct {
	UserID       uint              `json:"-"`
	Title        string            `json:"title" validate:"required,max=255"`
	Body         string            `json:"body" validate:"required"`
	Snippet      string            `json:"snippet" validate:"max=255"`
	CategorySlug string            `json:"category" validate:"required"`
	Tags         []string          `json:"tags" validate:"max=10,dive,max=100"`
	Status       models.PostStatus `json:"status" validate:"poststatus"`
	ImageURL     string            `json:"image_url" validate:"max=512"`
}

// UpdatePostInput changes the non-nil fields. A non-nil Tags replaces the tag set.
type UpdatePostInput struct {
	UserID       uint               `json:"-"`
	Slug         string             `json:"-"`
	Title        *string            `json:"title" validate:"omitempty,min=1,max=255"`
	Body         *string            `json:"body" validate:"omitempty,min=1"`
	Snippet      *string            `json:"snippet" validate:"omitempty,max=255"`
	CategorySlug *string            `json:"category" validate:"omitempty,min=1"`
	Tags         []string           `json:"tags" validate:"omitempty,max=10,dive,max=100"`
	Status       *models.PostStatus `json:"status" validate:"omitnil,poststatus"`
	ImageURL     *string            `json:"image_url" validate:"omitempty,max=512"`
}

func NewPostService(db *gorm.DB, flags *featureflags.Manager) *PostService {
	return &PostService{
		db:     db,
		slugs:  slug.NewGenerator(),
		flags:  flags,
		rich:   bluemonday.UGCPolicy(),
		strict: bluemonday.StrictPolicy(),
		now:    time.Now,
	}
}

// sanitize returns the cleaned HTML body and its plain text projection.
func (s *PostService) sanitize(body string) (string, string) {
	clean := s.rich.Sanitize(body)
	text := html.UnescapeString(s.strict.Sanitize(clean))
	return clean, strings.Join(strings.Fields(text), " ")
}

func makeSnippet(snippet, text string) string {
	snippet = strings.TrimSpace(snippet)
	if snippet == "" {
		snippet = text
	}
	if r := []rune(snippet); len(r) > maxSnippetLen {
		snippet = strings.TrimSpace(string(r[:maxSnippetLen-3])) + "..."
	}
	return snippet
}

type tagName struct {
	name string
	slug string
}

// normalizeTags trims and collapses tag names and drops duplicates by slug.
func normalizeTags(names []string) []tagName {
	seen := make(map[string]bool, len(names))
	out := make([]tagName, 0, len(names))
	for _, raw := range names {
		name := strings.Join(strings.Fields(raw), " ")
		s := slug.Make(name)
		if r := []rune(s); len(r) > maxTagLength {
			s = strings.Trim(string(r[:maxTagLength]), "-")
		}
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, tagName{name: name, slug: s})
	}
	return out
}

func resolveTags(ctx context.Context, tags repository.TagRepository, names []string) ([]models.Tag, error) {
	normalized := normalizeTags(names)
	if len(normalized) > maxTags {
		return nil, models.NewValidationError("A post can have at most 10 tags")
	}
	out := make([]models.Tag, 0, len(normalized))
	for _, n := range normalized {
		tag, err := tags.GetOrCreate(ctx, n.name, n.slug)
		if err != nil {
			return nil, err
		}
		out = append(out, *tag)
	}
	return out, nil
}

func resolveCategory(ctx context.Context, categories repository.CategoryRepository, categorySlug string) (*models.Category, error) {
	category, err := categories.GetBySlug(ctx, strings.TrimSpace(categorySlug))
	if err != nil {
		if models.IsCode(err, models.CodeNotFound) {
			return nil, models.NewValidationError("Unknown category " + categorySlug)
		}
		return nil, err
	}
	return category, nil
}

// checkPublishAllowed enforces the verified-email gate when the flag is on for userID.
func (s *PostService) checkPublishAllowed(ctx context.Context, tx *gorm.DB, userID uint) error {
	if !s.flags.Enabled(featureflags.RequireVerifiedEmail, userID) {
		return nil
	}
	profile, err := repository.NewProfileRepository(tx).GetByUserID(ctx, userID, 0)
	if err != nil {
		return err
	}
	if !profile.EmailVerified {
		return models.NewPermissionDeniedError("Verify your email address before publishing")
	}
	return nil
}

// Create stores a new post. A slug claimed concurrently between the lookup
// and the insert is regenerated once, then reported as a conflict.
func (s *PostService) Create(ctx context.Context, in CreatePostInput) (*models.Post, error) {
	in.Title = strings.TrimSpace(in.Title)
	if in.Status == "" {
		in.Status = models.PostStatusDraft
	}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	body, text := s.sanitize(in.Body)
	if text == "" && !strings.Contains(body, "<img") {
		return nil, models.NewValidationError("body is required")
	}

	post := &models.Post{
		Title:    in.Title,
		UserID:   in.UserID,
		Body:     body,
		BodyText: text,
		Snippet:  makeSnippet(in.Snippet, text),
		ImageURL: strings.TrimSpace(in.ImageURL),
		Status:   in.Status,
	}
	if post.IsPublished() {
		now := s.now()
		post.PublishedAt = &now
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if post.IsPublished() {
			if err := s.checkPublishAllowed(ctx, tx, in.UserID); err != nil {
				return err
			}
		}
		category, err := resolveCategory(ctx, repository.NewCategoryRepository(tx), in.CategorySlug)
		if err != nil {
			return err
		}
		post.CategoryID = category.ID

		tags, err := resolveTags(ctx, repository.NewTagRepository(tx), in.Tags)
		if err != nil {
			return err
		}

		if err := s.insertWithSlug(ctx, tx, post); err != nil {
			return err
		}
		return repository.NewPostRepository(tx).ReplaceTags(ctx, post, tags)
	})
	if err != nil {
		err = appError(err)
		logFailure(ctx, "post create failed", err)
		return nil, err
	}

	observability.PostsWritten.WithLabelValues("create", string(post.Status)).Inc()
	if post.IsPublished() {
		cache.InvalidateHomeFeed(ctx)
	}
	return s.reload(ctx, post.ID, in.UserID)
}

func (s *PostService) insertWithSlug(ctx context.Context, tx *gorm.DB, post *models.Post) error {
	posts := repository.NewPostRepository(tx)
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		postSlug, err := s.slugs.Generate(ctx, "", post.Title, "post", posts.SlugExists)
		if err != nil {
			return err
		}
		post.Slug = postSlug
		err = tx.Transaction(func(sp *gorm.DB) error {
			return repository.NewPostRepository(sp).Create(ctx, post)
		})
		if err == nil {
			return nil
		}
		if !repository.IsUniqueViolation(err) {
			return err
		}
		post.ID = 0
		lastErr = err
	}
	return models.NewConflictError("Could not assign a unique post slug", lastErr)
}

func (s *PostService) reload(ctx context.Context, id, viewerID uint) (*models.Post, error) {
	post, err := repository.NewPostRepository(s.db).GetByID(ctx, id, viewerID)
	if err != nil {
		return nil, appError(err)
	}
	return post, nil
}

// Get returns a post by slug. Drafts are visible to their author only.
func (s *PostService) Get(ctx context.Context, postSlug string, viewerID uint) (*models.Post, error) {
	return visiblePost(ctx, s.db, postSlug, viewerID)
}

func visiblePost(ctx context.Context, db *gorm.DB, postSlug string, viewerID uint) (*models.Post, error) {
	post, err := repository.NewPostRepository(db).GetBySlug(ctx, postSlug, viewerID)
	if err != nil {
		return nil, appError(err)
	}
	if !post.IsPublished() && post.UserID != viewerID {
		return nil, models.NewNotFoundError("Post", postSlug)
	}
	return post, nil
}

// loadOwned fetches the post at slug inside tx and checks userID wrote it.
func loadOwned(ctx context.Context, tx *gorm.DB, postSlug string, userID uint) (*models.Post, error) {
	post, err := repository.NewPostRepository(tx).GetBySlug(ctx, postSlug, userID)
	if err != nil {
		return nil, err
	}
	if post.UserID != userID {
		if !post.IsPublished() {
			return nil, models.NewNotFoundError("Post", postSlug)
		}
		return nil, models.NewPermissionDeniedError("Only the author can change this post")
	}
	return post, nil
}

// Update applies the changes of in. The slug never changes; the first
// transition to published stamps PublishedAt.
func (s *PostService) Update(ctx context.Context, in UpdatePostInput) (*models.Post, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	// Empty means draft only on create.
	if in.Status != nil && !in.Status.Valid() {
		return nil, models.NewValidationError("status must be draft or published")
	}

	var post *models.Post
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		post, err = loadOwned(ctx, tx, in.Slug, in.UserID)
		if err != nil {
			return err
		}
		wasPublished := post.IsPublished()

		if in.Title != nil {
			title := strings.TrimSpace(*in.Title)
			if title == "" {
				return models.NewValidationError("title is required")
			}
			post.Title = title
		}
		if in.Body != nil {
			post.Body, post.BodyText = s.sanitize(*in.Body)
			if post.BodyText == "" && !strings.Contains(post.Body, "<img") {
				return models.NewValidationError("body is required")
			}
			if in.Snippet == nil {
				post.Snippet = makeSnippet("", post.BodyText)
			}
		}
		if in.Snippet != nil {
			post.Snippet = makeSnippet(*in.Snippet, post.BodyText)
		}
		if in.ImageURL != nil {
			post.ImageURL = strings.TrimSpace(*in.ImageURL)
		}
		if in.CategorySlug != nil {
			category, err := resolveCategory(ctx, repository.NewCategoryRepository(tx), *in.CategorySlug)
			if err != nil {
				return err
			}
			post.CategoryID = category.ID
			post.Category = category
		}
		if in.Status != nil {
			post.Status = *in.Status
		}
		if post.IsPublished() && !wasPublished {
			if err := s.checkPublishAllowed(ctx, tx, in.UserID); err != nil {
				return err
			}
			if post.PublishedAt == nil {
				now := s.now()
				post.PublishedAt = &now
			}
		}
		post.UpdatedAt = s.now()

		posts := repository.NewPostRepository(tx)
		if err := posts.Update(ctx, post); err != nil {
			return err
		}
		if in.Tags != nil {
			tags, err := resolveTags(ctx, repository.NewTagRepository(tx), in.Tags)
			if err != nil {
				return err
			}
			if err := posts.ReplaceTags(ctx, post, tags); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		err = appError(err)
		logFailure(ctx, "post update failed", err)
		return nil, err
	}

	observability.PostsWritten.WithLabelValues("update", string(post.Status)).Inc()
	cache.InvalidatePost(ctx, post.Slug)
	return s.reload(ctx, post.ID, in.UserID)
}

// Delete removes the post with its comments, likes and tag links.
func (s *PostService) Delete(ctx context.Context, userID uint, postSlug string) error {
	var status models.PostStatus
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		post, err := loadOwned(ctx, tx, postSlug, userID)
		if err != nil {
			return err
		}
		status = post.Status
		return repository.NewPostRepository(tx).Delete(ctx, post.ID)
	})
	if err != nil {
		err = appError(err)
		logFailure(ctx, "post delete failed", err)
		return err
	}
	observability.PostsWritten.WithLabelValues("delete", string(status)).Inc()
	cache.InvalidatePost(ctx, postSlug)
	return nil
}
