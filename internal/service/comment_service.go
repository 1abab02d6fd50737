package service

import (
	"context"
	"sort"
	"strings"

	"realblog/internal/cache"
	"realblog/internal/models"
	"realblog/internal/observability"
	"realblog/internal/repository"
	"realblog/internal/validation"

	"gorm.io/gorm"
)

// Sibling orderings of a comment thread.
const (
	CommentOrderNewest = "newest"
	CommentOrderOldest = "oldest"
)

type CommentService struct {
	db    *gorm.DB
	order string
}

type CreateCommentInput struct {
	UserID   uint   `json:"-"`
	PostSlug string `json:"-"`
	ParentID *uint  `json:"parent_id"`
	Content  string `json:"content" validate:"required,max=2000"`
}

type UpdateCommentInput struct {
	UserID    uint   `json:"-"`
	CommentID uint   `json:"-"`
	Content   string `json:"content" validate:"required,max=2000"`
}

// MoveCommentInput reattaches a comment. A nil ParentID makes it a root.
type MoveCommentInput struct {
	UserID    uint  `json:"-"`
	CommentID uint  `json:"-"`
	ParentID  *uint `json:"parent_id"`
}

func NewCommentService(db *gorm.DB, order string) *CommentService {
	if order != CommentOrderOldest {
		order = CommentOrderNewest
	}
	return &CommentService{db: db, order: order}
}

// Add stores a comment on the post at slug, optionally as a reply.
func (s *CommentService) Add(ctx context.Context, in CreateCommentInput) (*models.Comment, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	post, err := visiblePost(ctx, s.db, in.PostSlug, in.UserID)
	if err != nil {
		return nil, err
	}

	comment := &models.Comment{PostID: post.ID, UserID: in.UserID, ParentID: in.ParentID, Content: in.Content}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		comments := repository.NewCommentRepository(tx)
		parentPath := ""
		if in.ParentID != nil {
			parent, err := comments.GetByID(ctx, *in.ParentID)
			if err != nil {
				if models.IsCode(err, models.CodeNotFound) {
					return models.NewValidationError("Parent comment does not exist")
				}
				return err
			}
			if parent.PostID != post.ID {
				return models.NewValidationError("Parent comment belongs to another post")
			}
			parentPath = parent.Path
		}
		if err := comments.Create(ctx, comment); err != nil {
			return err
		}
		comment.Path = models.ChildPath(parentPath, comment.ID)
		comment.Depth = models.PathDepth(comment.Path)
		return comments.SetPath(ctx, comment.ID, comment.Path, comment.Depth)
	})
	if err != nil {
		err = appError(err)
		logFailure(ctx, "comment create failed", err)
		return nil, err
	}

	observability.CommentsWritten.WithLabelValues("create").Inc()
	cache.InvalidatePost(ctx, post.Slug)
	return s.get(ctx, comment.ID)
}

func (s *CommentService) get(ctx context.Context, id uint) (*models.Comment, error) {
	comment, err := repository.NewCommentRepository(s.db).GetByID(ctx, id)
	if err != nil {
		return nil, appError(err)
	}
	return comment, nil
}

// Thread returns every comment of the post in display order: a depth-first
// walk where each reply follows its parent and siblings follow the configured
// order.
func (s *CommentService) Thread(ctx context.Context, postSlug string, viewerID uint) ([]models.Comment, error) {
	post, err := visiblePost(ctx, s.db, postSlug, viewerID)
	if err != nil {
		return nil, err
	}
	comments, err := repository.NewCommentRepository(s.db).ListByPost(ctx, post.ID)
	if err != nil {
		return nil, appError(err)
	}
	return orderThread(comments, s.order), nil
}

// orderThread walks the forest with an explicit stack.
func orderThread(comments []models.Comment, order string) []models.Comment {
	byID := make(map[uint]bool, len(comments))
	for _, c := range comments {
		byID[c.ID] = true
	}
	children := make(map[uint][]int, len(comments))
	var roots []int
	for i, c := range comments {
		if c.ParentID == nil || !byID[*c.ParentID] {
			roots = append(roots, i)
			continue
		}
		children[*c.ParentID] = append(children[*c.ParentID], i)
	}

	less := func(a, b int) bool {
		ca, cb := comments[a], comments[b]
		if !ca.CreatedAt.Equal(cb.CreatedAt) {
			if order == CommentOrderOldest {
				return ca.CreatedAt.Before(cb.CreatedAt)
			}
			return ca.CreatedAt.After(cb.CreatedAt)
		}
		if order == CommentOrderOldest {
			return ca.ID < cb.ID
		}
		return ca.ID > cb.ID
	}
	sortSiblings := func(idx []int) {
		sort.SliceStable(idx, func(i, j int) bool { return less(idx[i], idx[j]) })
	}

	sortSiblings(roots)
	stack := make([]int, 0, len(comments))
	for i := len(roots) - 1; i >= 0; i-- {
		stack = append(stack, roots[i])
	}

	ordered := make([]models.Comment, 0, len(comments))
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		ordered = append(ordered, comments[top])

		kids := children[comments[top].ID]
		sortSiblings(kids)
		for i := len(kids) - 1; i >= 0; i-- {
			stack = append(stack, kids[i])
		}
	}
	return ordered
}

// loadOwnedComment fetches a comment and checks userID wrote it.
func loadOwnedComment(ctx context.Context, comments repository.CommentRepository, id, userID uint) (*models.Comment, error) {
	comment, err := comments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if comment.UserID != userID {
		return nil, models.NewPermissionDeniedError("Only the author can change this comment")
	}
	return comment, nil
}

// postSlugOf looks up the slug of the post a comment belongs to, for cache invalidation.
func postSlugOf(ctx context.Context, db *gorm.DB, postID uint) string {
	var slugs []string
	if err := db.WithContext(ctx).Model(&models.Post{}).Where("id = ?", postID).Pluck("slug", &slugs).Error; err != nil || len(slugs) == 0 {
		return ""
	}
	return slugs[0]
}

func (s *CommentService) Edit(ctx context.Context, in UpdateCommentInput) (*models.Comment, error) {
	in.Content = strings.TrimSpace(in.Content)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	comments := repository.NewCommentRepository(s.db)
	comment, err := loadOwnedComment(ctx, comments, in.CommentID, in.UserID)
	if err != nil {
		return nil, appError(err)
	}
	if err := comments.UpdateContent(ctx, comment.ID, in.Content); err != nil {
		return nil, appError(err)
	}
	observability.CommentsWritten.WithLabelValues("update").Inc()
	return s.get(ctx, comment.ID)
}

// Move reattaches a comment with its replies under another comment of the
// same post, or at the root. Moving a comment under itself or under one of
// its replies is rejected.
func (s *CommentService) Move(ctx context.Context, in MoveCommentInput) (*models.Comment, error) {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		comments := repository.NewCommentRepository(tx)
		node, err := loadOwnedComment(ctx, comments, in.CommentID, in.UserID)
		if err != nil {
			return err
		}

		parentPath := ""
		if in.ParentID != nil {
			if *in.ParentID == node.ID {
				return models.NewValidationError("A comment cannot reply to itself")
			}
			parent, err := comments.GetByID(ctx, *in.ParentID)
			if err != nil {
				if models.IsCode(err, models.CodeNotFound) {
					return models.NewValidationError("Parent comment does not exist")
				}
				return err
			}
			if parent.PostID != node.PostID {
				return models.NewValidationError("Parent comment belongs to another post")
			}
			if models.IsDescendantPath(node.Path, parent.Path) {
				return models.NewValidationError("A comment cannot be moved under one of its replies")
			}
			parentPath = parent.Path
		}

		newPath := models.ChildPath(parentPath, node.ID)
		subtree, err := comments.Subtree(ctx, node.Path)
		if err != nil {
			return err
		}
		for _, c := range subtree {
			path := newPath + strings.TrimPrefix(c.Path, node.Path)
			if err := comments.SetPath(ctx, c.ID, path, models.PathDepth(path)); err != nil {
				return err
			}
		}
		return comments.Reparent(ctx, node.ID, in.ParentID)
	})
	if err != nil {
		err = appError(err)
		logFailure(ctx, "comment move failed", err)
		return nil, err
	}
	observability.CommentsWritten.WithLabelValues("move").Inc()
	return s.get(ctx, in.CommentID)
}

// Delete removes the comment and all replies beneath it.
func (s *CommentService) Delete(ctx context.Context, userID, commentID uint) error {
	var postID uint
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		comments := repository.NewCommentRepository(tx)
		comment, err := loadOwnedComment(ctx, comments, commentID, userID)
		if err != nil {
			return err
		}
		postID = comment.PostID
		_, err = comments.DeleteSubtree(ctx, comment.Path)
		return err
	})
	if err != nil {
		err = appError(err)
		logFailure(ctx, "comment delete failed", err)
		return err
	}
	observability.CommentsWritten.WithLabelValues("delete").Inc()
	if postSlug := postSlugOf(ctx, s.db, postID); postSlug != "" {
		cache.InvalidatePost(ctx, postSlug)
	}
	return nil
}
