package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"realblog/internal/featureflags"
	"realblog/internal/models"
	"realblog/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newCategory(t *testing.T, db *gorm.DB, name string) *models.Category {
	t.Helper()
	category, err := NewCategoryService(db).Create(context.Background(), CreateCategoryInput{Name: name})
	require.NoError(t, err)
	return category
}

func tagSlugs(post *models.Post) []string {
	out := make([]string, 0, len(post.Tags))
	for _, tag := range post.Tags {
		out = append(out, tag.Slug)
	}
	return out
}

func statusPtr(s models.PostStatus) *models.PostStatus { return &s }

func TestPostCreate(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewPostService(db, nil)
	ctx := context.Background()
	alice := signup(t, db, "alice")
	category := newCategory(t, db, "Programming Languages")

	t.Run("defaults to draft", func(t *testing.T) {
		post, err := svc.Create(ctx, CreatePostInput{
			UserID:       alice.ID,
			Title:        "Draft thoughts",
			Body:         "<p>later</p>",
			CategorySlug: category.Slug,
		})
		require.NoError(t, err)
		assert.Equal(t, models.PostStatusDraft, post.Status)
		assert.Nil(t, post.PublishedAt)
		assert.Empty(t, post.Tags)
	})

	t.Run("published with tags", func(t *testing.T) {
		post, err := svc.Create(ctx, CreatePostInput{
			UserID:       alice.ID,
			Title:        "  Hello, World! ",
			Body:         `<p>Rust <b>ownership</b> explained</p><script>alert(1)</script>`,
			CategorySlug: category.Slug,
			Tags:         []string{"Rust", "rust ", "Memory  Safety"},
			Status:       models.PostStatusPublished,
		})
		require.NoError(t, err)
		assert.Equal(t, "hello-world", post.Slug)
		assert.Equal(t, "Hello, World!", post.Title)
		assert.NotNil(t, post.PublishedAt)
		assert.NotContains(t, post.Body, "<script>")
		assert.Contains(t, post.Body, "<b>ownership</b>")
		assert.Equal(t, "Rust ownership explained", post.Snippet)
		assert.ElementsMatch(t, []string{"rust", "memory-safety"}, tagSlugs(post))
		require.NotNil(t, post.Category)
		assert.Equal(t, category.ID, post.Category.ID)
		require.NotNil(t, post.Author)
		assert.Empty(t, post.Author.Email)
	})

	t.Run("same title gets a distinct slug", func(t *testing.T) {
		post, err := svc.Create(ctx, CreatePostInput{
			UserID:       alice.ID,
			Title:        "Hello World",
			Body:         "again",
			CategorySlug: category.Slug,
		})
		require.NoError(t, err)
		assert.NotEqual(t, "hello-world", post.Slug)
		assert.True(t, strings.HasPrefix(post.Slug, "hello-world-"))
	})

	t.Run("long body snippet is truncated", func(t *testing.T) {
		post, err := svc.Create(ctx, CreatePostInput{
			UserID:       alice.ID,
			Title:        "Long",
			Body:         strings.Repeat("word ", 200),
			CategorySlug: category.Slug,
		})
		require.NoError(t, err)
		assert.LessOrEqual(t, len([]rune(post.Snippet)), 255)
		assert.True(t, strings.HasSuffix(post.Snippet, "..."))
	})

	rejections := []struct {
		name string
		in   CreatePostInput
	}{
		{"unknown category", CreatePostInput{Title: "x", Body: "x", CategorySlug: "nope"}},
		{"missing title", CreatePostInput{Title: "  ", Body: "x", CategorySlug: category.Slug}},
		{"script only body", CreatePostInput{Title: "x", Body: "<script>x</script>", CategorySlug: category.Slug}},
		{"bad status", CreatePostInput{Title: "x", Body: "x", CategorySlug: category.Slug, Status: "archived"}},
		{"too many tags", CreatePostInput{Title: "x", Body: "x", CategorySlug: category.Slug,
			Tags: strings.Split("a,b,c,d,e,f,g,h,i,j,k", ",")}},
	}
	for _, tt := range rejections {
		t.Run(tt.name, func(t *testing.T) {
			tt.in.UserID = alice.ID
			_, err := svc.Create(ctx, tt.in)
			assertCode(t, err, models.CodeValidation)
		})
	}
}

func TestPostVisibilityAndOwnership(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewPostService(db, nil)
	ctx := context.Background()
	alice := signup(t, db, "alice")
	bob := signup(t, db, "bob")
	category := newCategory(t, db, "General")

	draft, err := svc.Create(ctx, CreatePostInput{UserID: alice.ID, Title: "Secret", Body: "x", CategorySlug: category.Slug})
	require.NoError(t, err)
	public, err := svc.Create(ctx, CreatePostInput{UserID: alice.ID, Title: "Open", Body: "x", CategorySlug: category.Slug, Status: models.PostStatusPublished})
	require.NoError(t, err)

	_, err = svc.Get(ctx, draft.Slug, alice.ID)
	assert.NoError(t, err)
	_, err = svc.Get(ctx, draft.Slug, bob.ID)
	assertCode(t, err, models.CodeNotFound)
	_, err = svc.Get(ctx, draft.Slug, 0)
	assertCode(t, err, models.CodeNotFound)
	_, err = svc.Get(ctx, public.Slug, 0)
	assert.NoError(t, err)

	_, err = svc.Update(ctx, UpdatePostInput{UserID: bob.ID, Slug: public.Slug, Title: strPtr("Hijack")})
	assertCode(t, err, models.CodePermission)
	_, err = svc.Update(ctx, UpdatePostInput{UserID: bob.ID, Slug: draft.Slug, Title: strPtr("Hijack")})
	assertCode(t, err, models.CodeNotFound)
	assertCode(t, svc.Delete(ctx, bob.ID, public.Slug), models.CodePermission)

	require.NoError(t, svc.Delete(ctx, alice.ID, public.Slug))
	_, err = svc.Get(ctx, public.Slug, 0)
	assertCode(t, err, models.CodeNotFound)
}

func TestPostUpdate(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewPostService(db, nil)
	ctx := context.Background()
	alice := signup(t, db, "alice")
	general := newCategory(t, db, "General")
	golang := newCategory(t, db, "Go")

	post, err := svc.Create(ctx, CreatePostInput{
		UserID: alice.ID, Title: "First title", Body: "<p>one</p>",
		CategorySlug: general.Slug, Tags: []string{"a", "b"},
	})
	require.NoError(t, err)

	updated, err := svc.Update(ctx, UpdatePostInput{
		UserID:       alice.ID,
		Slug:         post.Slug,
		Title:        strPtr("Second title"),
		Body:         strPtr("<p>two words</p>"),
		CategorySlug: strPtr(golang.Slug),
		Tags:         []string{"c"},
		Status:       statusPtr(models.PostStatusPublished),
	})
	require.NoError(t, err)
	assert.Equal(t, post.Slug, updated.Slug, "slug is stable")
	assert.Equal(t, "Second title", updated.Title)
	assert.Equal(t, "two words", updated.Snippet)
	assert.Equal(t, golang.ID, updated.CategoryID)
	assert.Equal(t, []string{"c"}, tagSlugs(updated))
	require.NotNil(t, updated.PublishedAt)
	publishedAt := *updated.PublishedAt

	// nil Tags keeps the tag set; republishing keeps the first publish time
	again, err := svc.Update(ctx, UpdatePostInput{UserID: alice.ID, Slug: post.Slug, Status: statusPtr(models.PostStatusDraft)})
	require.NoError(t, err)
	assert.Equal(t, []string{"c"}, tagSlugs(again))
	again, err = svc.Update(ctx, UpdatePostInput{UserID: alice.ID, Slug: post.Slug, Status: statusPtr(models.PostStatusPublished)})
	require.NoError(t, err)
	require.NotNil(t, again.PublishedAt)
	assert.True(t, publishedAt.Equal(*again.PublishedAt))

	// an empty tag list clears the tags
	cleared, err := svc.Update(ctx, UpdatePostInput{UserID: alice.ID, Slug: post.Slug, Tags: []string{}})
	require.NoError(t, err)
	assert.Empty(t, cleared.Tags)

	_, err = svc.Update(ctx, UpdatePostInput{UserID: alice.ID, Slug: post.Slug, Title: strPtr("   ")})
	assertCode(t, err, models.CodeValidation)
	_, err = svc.Update(ctx, UpdatePostInput{UserID: alice.ID, Slug: "missing"})
	assertCode(t, err, models.CodeNotFound)
}

func TestPostUpdate_RejectsUnknownStatus(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewPostService(db, nil)
	ctx := context.Background()
	alice := signup(t, db, "alice")
	general := newCategory(t, db, "General")

	post, err := svc.Create(ctx, CreatePostInput{UserID: alice.ID, Title: "Pending", Body: "<p>x</p>", CategorySlug: general.Slug})
	require.NoError(t, err)

	for _, status := range []models.PostStatus{"", "archived"} {
		_, err = svc.Update(ctx, UpdatePostInput{UserID: alice.ID, Slug: post.Slug, Status: statusPtr(status)})
		assertCode(t, err, models.CodeValidation)
	}

	stored, err := svc.Get(ctx, post.Slug, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, models.PostStatusDraft, stored.Status)

	drafts, err := NewFeedService(db, 10).Drafts(ctx, alice.ID, Page{})
	require.NoError(t, err)
	assert.Equal(t, []string{post.Slug}, postSlugs(drafts))
}

func TestPostPublishRequiresVerifiedEmail(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewPostService(db, featureflags.NewManager("require_verified_email=on"))
	ctx := context.Background()
	alice := signup(t, db, "alice")
	category := newCategory(t, db, "General")

	_, err := svc.Create(ctx, CreatePostInput{UserID: alice.ID, Title: "Now", Body: "x", CategorySlug: category.Slug, Status: models.PostStatusPublished})
	assertCode(t, err, models.CodePermission)

	draft, err := svc.Create(ctx, CreatePostInput{UserID: alice.ID, Title: "Later", Body: "x", CategorySlug: category.Slug})
	require.NoError(t, err)

	_, err = svc.Update(ctx, UpdatePostInput{UserID: alice.ID, Slug: draft.Slug, Status: statusPtr(models.PostStatusPublished)})
	assertCode(t, err, models.CodePermission)

	require.NoError(t, db.Model(&models.Profile{}).Where("user_id = ?", alice.ID).Update("email_verified", true).Error)
	published, err := svc.Update(ctx, UpdatePostInput{UserID: alice.ID, Slug: draft.Slug, Status: statusPtr(models.PostStatusPublished)})
	require.NoError(t, err)
	assert.True(t, published.IsPublished())
}

func TestCategoryService(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewCategoryService(db)
	ctx := context.Background()
	alice := signup(t, db, "alice")
	bob := signup(t, db, "bob")

	create := func(owner *models.User, name string) *models.Category {
		t.Helper()
		category, err := svc.Create(ctx, CreateCategoryInput{UserID: owner.ID, Name: name})
		require.NoError(t, err)
		return category
	}

	used := create(alice, "Used One")
	assert.Equal(t, "used-one", used.Slug)
	require.NotNil(t, used.CreatedByID)
	assert.Equal(t, alice.ID, *used.CreatedByID)
	unused := create(alice, "Unused")
	dup := create(bob, "Used One")
	assert.NotEqual(t, used.Slug, dup.Slug)
	preset := newCategory(t, db, "Preset")
	assert.Nil(t, preset.CreatedByID)

	_, err := svc.Create(ctx, CreateCategoryInput{UserID: alice.ID, Name: "   "})
	assertCode(t, err, models.CodeValidation)

	_, err = NewPostService(db, nil).Create(ctx, CreatePostInput{UserID: alice.ID, Title: "x", Body: "x", CategorySlug: used.Slug})
	require.NoError(t, err)

	assertCode(t, svc.Delete(ctx, bob.ID, unused.Slug), models.CodePermission)
	assertCode(t, svc.Delete(ctx, alice.ID, preset.Slug), models.CodePermission)
	assertCode(t, svc.Delete(ctx, alice.ID, used.Slug), models.CodeConflict)
	require.NoError(t, svc.Delete(ctx, alice.ID, unused.Slug))
	assertCode(t, svc.Delete(ctx, alice.ID, unused.Slug), models.CodeNotFound)

	list, err := svc.List(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)
}

func TestLikeToggle(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewLikeService(db)
	ctx := context.Background()
	alice := signup(t, db, "alice")
	bob := signup(t, db, "bob")
	category := newCategory(t, db, "General")
	posts := NewPostService(db, nil)
	post, err := posts.Create(ctx, CreatePostInput{UserID: alice.ID, Title: "Likeable", Body: "x", CategorySlug: category.Slug, Status: models.PostStatusPublished})
	require.NoError(t, err)

	res, err := svc.Toggle(ctx, bob.ID, post.Slug)
	require.NoError(t, err)
	assert.Equal(t, &LikeResult{Liked: true, Total: 1}, res)

	res, err = svc.Toggle(ctx, alice.ID, post.Slug)
	require.NoError(t, err)
	assert.Equal(t, &LikeResult{Liked: true, Total: 2}, res)

	res, err = svc.Toggle(ctx, bob.ID, post.Slug)
	require.NoError(t, err)
	assert.Equal(t, &LikeResult{Liked: false, Total: 1}, res)

	got, err := posts.Get(ctx, post.Slug, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.LikesCount)
	assert.True(t, got.Liked)

	_, err = svc.Toggle(ctx, bob.ID, "missing")
	assertCode(t, err, models.CodeNotFound)

	draft, err := posts.Create(ctx, CreatePostInput{UserID: alice.ID, Title: "Hidden", Body: "x", CategorySlug: category.Slug})
	require.NoError(t, err)
	_, err = svc.Toggle(ctx, bob.ID, draft.Slug)
	assertCode(t, err, models.CodeNotFound)
}

func TestLikeToggle_ConcurrentUsers(t *testing.T) {
	db := testutil.OpenDB(t)
	svc := NewLikeService(db)
	ctx := context.Background()
	author := signup(t, db, "author")
	category := newCategory(t, db, "General")
	post, err := NewPostService(db, nil).Create(ctx, CreatePostInput{
		UserID: author.ID, Title: "Popular", Body: "x", CategorySlug: category.Slug, Status: models.PostStatusPublished,
	})
	require.NoError(t, err)

	const n = 8
	users := make([]uint, n)
	for i := range users {
		u, _ := testutil.CreateUser(t, db, fmt.Sprintf("fan%d", i))
		users[i] = u.ID
	}

	var wg sync.WaitGroup
	errs := make(chan error, n)
	for _, id := range users {
		wg.Add(1)
		go func(id uint) {
			defer wg.Done()
			res, err := svc.Toggle(ctx, id, post.Slug)
			if err == nil && !res.Liked {
				err = fmt.Errorf("user %d: expected liked", id)
			}
			errs <- err
		}(id)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	var total int64
	require.NoError(t, db.Model(&models.Like{}).Where("post_id = ?", post.ID).Count(&total).Error)
	assert.Equal(t, int64(n), total)
}
