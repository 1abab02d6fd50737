package repository

import (
	"context"
	"testing"

	"realblog/internal/models"
	"realblog/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func postIDs(posts []models.Post) []uint {
	ids := make([]uint, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	return ids
}

func tagPost(t *testing.T, db *gorm.DB, post *models.Post, names ...string) {
	t.Helper()
	tags := NewTagRepository(db)
	var linked []models.Tag
	for _, name := range names {
		tag, err := tags.GetOrCreate(context.Background(), name, name)
		require.NoError(t, err)
		linked = append(linked, *tag)
	}
	require.NoError(t, NewPostRepository(db).ReplaceTags(context.Background(), post, linked))
}

func TestPostRepository_ListFilters(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	ada, _ := testutil.CreateUser(t, db, "ada")
	bob, _ := testutil.CreateUser(t, db, "bob")
	tech := testutil.CreateCategory(t, db, "tech")
	life := testutil.CreateCategory(t, db, "life")

	p1 := testutil.CreatePost(t, db, ada, tech, "first", testutil.WithCreatedOffset(1))
	p2 := testutil.CreatePost(t, db, bob, life, "second", testutil.WithCreatedOffset(2))
	draft := testutil.CreatePost(t, db, ada, tech, "draft", testutil.Draft(), testutil.WithCreatedOffset(3))
	p3 := testutil.CreatePost(t, db, ada, life, "third", testutil.WithCreatedOffset(4))
	tagPost(t, db, p1, "go")
	tagPost(t, db, p3, "go", "db")
	tagPost(t, db, draft, "go")

	published := models.PostStatusPublished

	t.Run("home is published newest first", func(t *testing.T) {
		posts, err := repo.List(ctx, PostFilter{Status: published, Limit: 10}, 0)
		require.NoError(t, err)
		assert.Equal(t, []uint{p3.ID, p2.ID, p1.ID}, postIDs(posts))
	})

	t.Run("pagination", func(t *testing.T) {
		posts, err := repo.List(ctx, PostFilter{Status: published, Limit: 2, Offset: 1}, 0)
		require.NoError(t, err)
		assert.Equal(t, []uint{p2.ID, p1.ID}, postIDs(posts))
	})

	t.Run("category", func(t *testing.T) {
		posts, err := repo.List(ctx, PostFilter{Status: published, CategoryID: tech.ID, Limit: 10}, 0)
		require.NoError(t, err)
		assert.Equal(t, []uint{p1.ID}, postIDs(posts))
	})

	t.Run("tag excludes drafts", func(t *testing.T) {
		tag, err := NewTagRepository(db).GetBySlug(ctx, "go")
		require.NoError(t, err)
		posts, err := repo.List(ctx, PostFilter{Status: published, TagID: tag.ID, Limit: 10}, 0)
		require.NoError(t, err)
		assert.Equal(t, []uint{p3.ID, p1.ID}, postIDs(posts))
	})

	t.Run("author drafts", func(t *testing.T) {
		posts, err := repo.List(ctx, PostFilter{Status: models.PostStatusDraft, AuthorID: ada.ID, Limit: 10}, ada.ID)
		require.NoError(t, err)
		assert.Equal(t, []uint{draft.ID}, postIDs(posts))
	})

	t.Run("relations are loaded without author email", func(t *testing.T) {
		posts, err := repo.List(ctx, PostFilter{Status: published, AuthorID: ada.ID, Limit: 1}, 0)
		require.NoError(t, err)
		require.Len(t, posts, 1)
		post := posts[0]
		require.NotNil(t, post.Author)
		assert.Equal(t, "ada", post.Author.Username)
		assert.Empty(t, post.Author.Email)
		require.NotNil(t, post.Author.Profile)
		require.NotNil(t, post.Category)
		assert.Equal(t, "life", post.Category.Name)
		require.Len(t, post.Tags, 2)
		assert.Equal(t, "db", post.Tags[0].Name)
	})
}

func TestPostRepository_FollowingFeed(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewPostRepository(db)
	follows := NewFollowRepository(db)
	ctx := context.Background()

	reader, readerProfile := testutil.CreateUser(t, db, "reader")
	a, aProfile := testutil.CreateUser(t, db, "author-a")
	b, bProfile := testutil.CreateUser(t, db, "author-b")
	stranger, _ := testutil.CreateUser(t, db, "stranger")
	cat := testutil.CreateCategory(t, db, "misc")

	require.NoError(t, follows.Follow(ctx, readerProfile.ID, aProfile.ID))
	require.NoError(t, follows.Follow(ctx, readerProfile.ID, bProfile.ID))

	p1 := testutil.CreatePost(t, db, a, cat, "p1", testutil.WithCreatedOffset(1))
	p2 := testutil.CreatePost(t, db, b, cat, "p2", testutil.WithCreatedOffset(2))
	p3 := testutil.CreatePost(t, db, a, cat, "p3", testutil.WithCreatedOffset(3))
	testutil.CreatePost(t, db, stranger, cat, "other", testutil.WithCreatedOffset(4))
	testutil.CreatePost(t, db, a, cat, "unfinished", testutil.Draft(), testutil.WithCreatedOffset(5))

	posts, err := repo.List(ctx, PostFilter{
		Status:     models.PostStatusPublished,
		FollowerID: reader.ID,
		Limit:      10,
	}, reader.ID)
	require.NoError(t, err)
	assert.Equal(t, []uint{p3.ID, p2.ID, p1.ID}, postIDs(posts))
}

func TestPostRepository_CountsAndLiked(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewPostRepository(db)
	likes := NewLikeRepository(db)
	ctx := context.Background()

	ada, _ := testutil.CreateUser(t, db, "ada")
	bob, _ := testutil.CreateUser(t, db, "bob")
	cat := testutil.CreateCategory(t, db, "misc")
	quiet := testutil.CreatePost(t, db, ada, cat, "quiet", testutil.WithCreatedOffset(2))
	busy := testutil.CreatePost(t, db, ada, cat, "busy", testutil.WithCreatedOffset(1))

	require.NoError(t, likes.Add(ctx, bob.ID, busy.ID))
	require.NoError(t, likes.Add(ctx, ada.ID, busy.ID))
	for i := 0; i < 3; i++ {
		require.NoError(t, db.Create(&models.Comment{PostID: busy.ID, UserID: bob.ID, Content: "hi"}).Error)
	}

	post, err := repo.GetByID(ctx, busy.ID, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, post.LikesCount)
	assert.Equal(t, 3, post.CommentsCount)
	assert.True(t, post.Liked)

	post, err = repo.GetBySlug(ctx, busy.Slug, 0)
	require.NoError(t, err)
	assert.False(t, post.Liked)

	posts, err := repo.List(ctx, PostFilter{Status: models.PostStatusPublished, OrderBy: OrderMostCommented, Limit: 4}, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{busy.ID, quiet.ID}, postIDs(posts))
}

func TestPostRepository_Similar(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	ada, _ := testutil.CreateUser(t, db, "ada")
	cat := testutil.CreateCategory(t, db, "misc")

	source := testutil.CreatePost(t, db, ada, cat, "source", testutil.WithCreatedOffset(1))
	one := testutil.CreatePost(t, db, ada, cat, "one shared", testutil.WithCreatedOffset(5))
	two := testutil.CreatePost(t, db, ada, cat, "two shared", testutil.WithCreatedOffset(2))
	newerOne := testutil.CreatePost(t, db, ada, cat, "one shared newer", testutil.WithCreatedOffset(6))
	unrelated := testutil.CreatePost(t, db, ada, cat, "unrelated", testutil.WithCreatedOffset(7))
	draft := testutil.CreatePost(t, db, ada, cat, "draft", testutil.Draft(), testutil.WithCreatedOffset(8))

	tagPost(t, db, source, "go", "sql")
	tagPost(t, db, one, "go")
	tagPost(t, db, two, "go", "sql")
	tagPost(t, db, newerOne, "sql")
	tagPost(t, db, unrelated, "cooking")
	tagPost(t, db, draft, "go", "sql")

	posts, err := repo.Similar(ctx, source.ID, 10, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{two.ID, newerOne.ID, one.ID}, postIDs(posts))

	posts, err = repo.Similar(ctx, source.ID, 1, 1, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{newerOne.ID}, postIDs(posts))
}
