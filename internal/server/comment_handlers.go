package server

import (
	"realblog/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetComments handles GET /api/posts/:slug/comments and returns the thread
// flattened in display order.
// @Summary Comment thread of a post
// @Tags comments
// @Produce json
// @Param slug path string true "Post slug"
// @Success 200 {array} models.Comment
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{slug}/comments [get]
func (s *Server) GetComments(c *fiber.Ctx) error {
	comments, err := s.comments.Thread(c.UserContext(), c.Params("slug"), currentUser(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(comments)
}

// CreateComment handles POST /api/posts/:slug/comments
// @Summary Comment on a post
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Post slug"
// @Param request body service.CreateCommentInput true "Comment"
// @Success 201 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{slug}/comments [post]
func (s *Server) CreateComment(c *fiber.Ctx) error {
	var req service.CreateCommentInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	req.UserID = currentUser(c)
	req.PostSlug = c.Params("slug")

	comment, err := s.comments.Add(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(comment)
}

// UpdateComment handles PUT /api/comments/:id
// @Summary Edit a comment
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Comment ID"
// @Param request body service.UpdateCommentInput true "New content"
// @Success 200 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /comments/{id} [put]
func (s *Server) UpdateComment(c *fiber.Ctx) error {
	commentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.UpdateCommentInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	req.UserID = currentUser(c)
	req.CommentID = commentID

	comment, err := s.comments.Edit(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(comment)
}

// MoveComment handles PATCH /api/comments/:id/parent. A null parent_id
// promotes the comment to a root.
// @Summary Move a comment under another parent
// @Tags comments
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Comment ID"
// @Param request body service.MoveCommentInput true "New parent"
// @Success 200 {object} models.Comment
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /comments/{id}/parent [patch]
func (s *Server) MoveComment(c *fiber.Ctx) error {
	commentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	var req service.MoveCommentInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	req.UserID = currentUser(c)
	req.CommentID = commentID

	comment, err := s.comments.Move(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(comment)
}

// DeleteComment handles DELETE /api/comments/:id. Replies go with it.
// @Summary Delete a comment and its replies
// @Tags comments
// @Security BearerAuth
// @Param id path int true "Comment ID"
// @Success 204
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /comments/{id} [delete]
func (s *Server) DeleteComment(c *fiber.Ctx) error {
	commentID, err := parseID(c, "id")
	if err != nil {
		return nil
	}
	if err := s.comments.Delete(c.UserContext(), currentUser(c), commentID); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}
