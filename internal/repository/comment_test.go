package repository

import (
	"context"
	"testing"
	"time"

	"realblog/internal/models"
	"realblog/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func addComment(t *testing.T, db *gorm.DB, repo CommentRepository, post *models.Post, author *models.User, parent *models.Comment) *models.Comment {
	t.Helper()
	ctx := context.Background()
	comment := &models.Comment{PostID: post.ID, UserID: author.ID, Content: "text"}
	parentPath := ""
	if parent != nil {
		comment.ParentID = &parent.ID
		parentPath = parent.Path
	}
	require.NoError(t, repo.Create(ctx, comment))
	comment.Path = models.ChildPath(parentPath, comment.ID)
	comment.Depth = models.PathDepth(comment.Path)
	require.NoError(t, repo.SetPath(ctx, comment.ID, comment.Path, comment.Depth))
	return comment
}

func TestCommentRepository_Tree(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	ada, _ := testutil.CreateUser(t, db, "ada")
	cat := testutil.CreateCategory(t, db, "misc")
	post := testutil.CreatePost(t, db, ada, cat, "thread")
	other := testutil.CreatePost(t, db, ada, cat, "elsewhere")

	c1 := addComment(t, db, repo, post, ada, nil)
	c2 := addComment(t, db, repo, post, ada, c1)
	c3 := addComment(t, db, repo, post, ada, c2)
	c4 := addComment(t, db, repo, post, ada, nil)
	addComment(t, db, repo, other, ada, nil)

	t.Run("GetByID loads author", func(t *testing.T) {
		got, err := repo.GetByID(ctx, c3.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, got.Depth)
		assert.Equal(t, c3.Path, got.Path)
		require.NotNil(t, got.Author)
		assert.Equal(t, "ada", got.Author.Username)
	})

	t.Run("ListByPost", func(t *testing.T) {
		comments, err := repo.ListByPost(ctx, post.ID)
		require.NoError(t, err)
		require.Len(t, comments, 4)
		assert.Equal(t, c1.ID, comments[0].ID)
		assert.Equal(t, c2.ID, comments[1].ID)
		assert.Equal(t, c3.ID, comments[2].ID)
		assert.Equal(t, c4.ID, comments[3].ID)
	})

	t.Run("Subtree", func(t *testing.T) {
		subtree, err := repo.Subtree(ctx, c1.Path)
		require.NoError(t, err)
		require.Len(t, subtree, 3)
		assert.Equal(t, c1.ID, subtree[0].ID)
		assert.Equal(t, c3.ID, subtree[2].ID)
	})

	t.Run("UpdateContent", func(t *testing.T) {
		require.NoError(t, repo.UpdateContent(ctx, c4.ID, "edited"))
		got, err := repo.GetByID(ctx, c4.ID)
		require.NoError(t, err)
		assert.Equal(t, "edited", got.Content)
	})

	t.Run("DeleteSubtree", func(t *testing.T) {
		n, err := repo.DeleteSubtree(ctx, c1.Path)
		require.NoError(t, err)
		assert.Positive(t, n)

		_, err = repo.GetByID(ctx, c2.ID)
		assert.True(t, models.IsCode(err, models.CodeNotFound))
		remaining, err := repo.ListByPost(ctx, post.ID)
		require.NoError(t, err)
		require.Len(t, remaining, 1)
		assert.Equal(t, c4.ID, remaining[0].ID)
	})
}

func TestCommentRepository_SiblingPrefixIsNotDescendant(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewCommentRepository(db)
	ctx := context.Background()

	ada, _ := testutil.CreateUser(t, db, "ada")
	post := testutil.CreatePost(t, db, ada, testutil.CreateCategory(t, db, "misc"), "ids")

	// paths of ids 1 and 10 share a textual prefix only when unpadded
	first := addComment(t, db, repo, post, ada, nil)
	for i := 0; i < 9; i++ {
		addComment(t, db, repo, post, ada, nil)
	}

	subtree, err := repo.Subtree(ctx, first.Path)
	require.NoError(t, err)
	require.Len(t, subtree, 1)
	assert.Equal(t, first.ID, subtree[0].ID)
}

func TestVerificationRepository(t *testing.T) {
	db := testutil.OpenDB(t)
	repo := NewVerificationRepository(db)
	ctx := context.Background()
	ada, _ := testutil.CreateUser(t, db, "ada")
	now := time.Now()

	require.NoError(t, repo.Create(ctx, &models.EmailVerification{Code: "fresh", UserID: ada.ID, ExpiresAt: now.Add(time.Hour)}))
	require.NoError(t, repo.Create(ctx, &models.EmailVerification{Code: "stale", UserID: ada.ID, ExpiresAt: now.Add(-time.Hour)}))

	exists, err := repo.CodeExists(ctx, "fresh")
	require.NoError(t, err)
	assert.True(t, exists)

	n, err := repo.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)

	_, err = repo.GetByCode(ctx, "stale")
	assert.True(t, models.IsCode(err, models.CodeNotFound))

	got, err := repo.GetByCode(ctx, "fresh")
	require.NoError(t, err)
	assert.Equal(t, ada.ID, got.UserID)

	require.NoError(t, repo.DeleteForUser(ctx, ada.ID))
	exists, err = repo.CodeExists(ctx, "fresh")
	require.NoError(t, err)
	assert.False(t, exists)

	resets := NewPasswordResetRepository(db)
	require.NoError(t, resets.Create(ctx, &models.PasswordReset{Code: "reset", UserID: ada.ID, ExpiresAt: now.Add(time.Hour)}))
	reset, err := resets.GetByCode(ctx, "reset")
	require.NoError(t, err)
	require.NoError(t, resets.Delete(ctx, reset.ID))
	_, err = resets.GetByCode(ctx, "reset")
	assert.True(t, models.IsCode(err, models.CodeNotFound))
}
