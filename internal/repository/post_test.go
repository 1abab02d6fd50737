package repository

import (
	"context"
	"regexp"
	"testing"

	"realblog/internal/models"
	"realblog/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostRepository_GetByIDsKeepsOrder(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	ada, _ := testutil.CreateUser(t, db, "ada")
	cat := testutil.CreateCategory(t, db, "misc")
	a := testutil.CreatePost(t, db, ada, cat, "a")
	b := testutil.CreatePost(t, db, ada, cat, "b")
	c := testutil.CreatePost(t, db, ada, cat, "c")

	posts, err := repo.GetByIDs(ctx, []uint{c.ID, 9999, a.ID, b.ID}, 0)
	require.NoError(t, err)
	assert.Equal(t, []uint{c.ID, a.ID, b.ID}, postIDs(posts))

	posts, err = repo.GetByIDs(ctx, nil, 0)
	require.NoError(t, err)
	assert.Empty(t, posts)
}

func TestPostRepository_UpdateAndTags(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	ada, _ := testutil.CreateUser(t, db, "ada")
	cat := testutil.CreateCategory(t, db, "misc")
	post := testutil.CreatePost(t, db, ada, cat, "before", testutil.Draft())

	post.Title = "after"
	post.Status = models.PostStatusPublished
	require.NoError(t, repo.Update(ctx, post))

	tagPost(t, db, post, "x", "y")
	tagPost(t, db, post, "y", "z")

	got, err := repo.GetBySlug(ctx, post.Slug, ada.ID)
	require.NoError(t, err)
	assert.Equal(t, "after", got.Title)
	assert.Equal(t, models.PostStatusPublished, got.Status)
	require.Len(t, got.Tags, 2)
	assert.Equal(t, "y", got.Tags[0].Slug)
	assert.Equal(t, "z", got.Tags[1].Slug)

	exists, err := repo.SlugExists(ctx, post.Slug)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestPostRepository_DeleteCascades(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewPostRepository(db)
	ctx := context.Background()

	ada, _ := testutil.CreateUser(t, db, "ada")
	cat := testutil.CreateCategory(t, db, "misc")
	post := testutil.CreatePost(t, db, ada, cat, "doomed")
	keep := testutil.CreatePost(t, db, ada, cat, "kept")
	tagPost(t, db, post, "go")
	require.NoError(t, NewLikeRepository(db).Add(ctx, ada.ID, post.ID))
	root := &models.Comment{PostID: post.ID, UserID: ada.ID, Content: "root"}
	require.NoError(t, db.Create(root).Error)
	require.NoError(t, db.Create(&models.Comment{PostID: post.ID, UserID: ada.ID, ParentID: &root.ID, Content: "reply"}).Error)

	require.NoError(t, repo.Delete(ctx, post.ID))

	var comments, likes, links int64
	db.Model(&models.Comment{}).Where("post_id = ?", post.ID).Count(&comments)
	db.Model(&models.Like{}).Where("post_id = ?", post.ID).Count(&likes)
	db.Table("post_tags").Where("post_id = ?", post.ID).Count(&links)
	assert.Zero(t, comments)
	assert.Zero(t, likes)
	assert.Zero(t, links)

	_, err := repo.GetByID(ctx, post.ID, 0)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
	_, err = repo.GetByID(ctx, keep.ID, 0)
	assert.NoError(t, err)

	err = repo.Delete(ctx, post.ID)
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestLikeRepository(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewLikeRepository(db)
	ctx := context.Background()

	ada, _ := testutil.CreateUser(t, db, "ada")
	bob, _ := testutil.CreateUser(t, db, "bob")
	post := testutil.CreatePost(t, db, ada, testutil.CreateCategory(t, db, "misc"), "liked")

	removed, err := repo.Remove(ctx, ada.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, removed)

	require.NoError(t, repo.Add(ctx, ada.ID, post.ID))
	require.NoError(t, repo.Add(ctx, ada.ID, post.ID))
	require.NoError(t, repo.Add(ctx, bob.ID, post.ID))

	count, err := repo.Count(ctx, post.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, count)

	removed, err = repo.Remove(ctx, ada.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, removed)

	liked, err := repo.Exists(ctx, ada.ID, post.ID)
	require.NoError(t, err)
	assert.False(t, liked)
	liked, err = repo.Exists(ctx, bob.ID, post.ID)
	require.NoError(t, err)
	assert.True(t, liked)
}

func TestLikeRepository_RemoveSQL(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewLikeRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta(`DELETE FROM "likes" WHERE user_id = $1 AND post_id = $2`)).
		WithArgs(3, 9).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	removed, err := repo.Remove(context.Background(), 3, 9)
	require.NoError(t, err)
	assert.True(t, removed)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCategoryRepository(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewCategoryRepository(db)
	ctx := context.Background()

	require.NoError(t, repo.Create(ctx, &models.Category{Name: "Zed", Slug: "zed"}))
	require.NoError(t, repo.Create(ctx, &models.Category{Name: "Alpha", Slug: "alpha"}))

	err := repo.Create(ctx, &models.Category{Name: "Alpha again", Slug: "alpha"})
	assert.True(t, IsUniqueViolation(err))

	list, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Alpha", list[0].Name)

	alpha, err := repo.GetBySlug(ctx, "alpha")
	require.NoError(t, err)

	has, err := repo.HasPosts(ctx, alpha.ID)
	require.NoError(t, err)
	assert.False(t, has)

	ada, _ := testutil.CreateUser(t, db, "ada")
	testutil.CreatePost(t, db, ada, alpha, "filed")
	has, err = repo.HasPosts(ctx, alpha.ID)
	require.NoError(t, err)
	assert.True(t, has)

	zed, err := repo.GetBySlug(ctx, "zed")
	require.NoError(t, err)
	require.NoError(t, repo.Delete(ctx, zed.ID))
	_, err = repo.GetBySlug(ctx, "zed")
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}

func TestCategoryRepository_GetBySlugSQL(t *testing.T) {
	db, mock := setupMockDB(t)
	repo := NewCategoryRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "categories" WHERE slug = $1 ORDER BY "categories"."id" LIMIT $2`)).
		WithArgs("news", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "slug"}).AddRow(4, "News", "news"))

	category, err := repo.GetBySlug(context.Background(), "news")
	require.NoError(t, err)
	assert.Equal(t, uint(4), category.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTagRepository_GetOrCreateIsIdempotent(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewTagRepository(db)
	ctx := context.Background()

	first, err := repo.GetOrCreate(ctx, "Go", "go")
	require.NoError(t, err)
	second, err := repo.GetOrCreate(ctx, "go", "go")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Go", second.Name)

	var count int64
	db.Model(&models.Tag{}).Count(&count)
	assert.EqualValues(t, 1, count)

	_, err = repo.GetBySlug(ctx, "rust")
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}
