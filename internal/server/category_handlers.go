package server

import (
	"realblog/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetCategories handles GET /api/categories
// @Summary List categories
// @Tags categories
// @Produce json
// @Success 200 {array} models.Category
// @Router /categories [get]
func (s *Server) GetCategories(c *fiber.Ctx) error {
	categories, err := s.categories.List(c.UserContext())
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(categories)
}

// CreateCategory handles POST /api/categories
// @Summary Create category
// @Tags categories
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.CreateCategoryInput true "Category"
// @Success 201 {object} models.Category
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /categories [post]
func (s *Server) CreateCategory(c *fiber.Ctx) error {
	var req service.CreateCategoryInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	req.UserID = currentUser(c)

	category, err := s.categories.Create(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(category)
}

// DeleteCategory handles DELETE /api/categories/:slug
// @Summary Delete an unused category
// @Tags categories
// @Security BearerAuth
// @Param slug path string true "Category slug"
// @Success 204
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Failure 409 {object} models.ErrorResponse
// @Router /categories/{slug} [delete]
func (s *Server) DeleteCategory(c *fiber.Ctx) error {
	if err := s.categories.Delete(c.UserContext(), currentUser(c), c.Params("slug")); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// GetCategoryPosts handles GET /api/categories/:slug/posts
// @Summary Posts in a category
// @Tags categories
// @Produce json
// @Param slug path string true "Category slug"
// @Param limit query int false "Page size"
// @Param offset query int false "Items to skip"
// @Success 200 {array} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /categories/{slug}/posts [get]
func (s *Server) GetCategoryPosts(c *fiber.Ctx) error {
	posts, err := s.feeds.Category(c.UserContext(), c.Params("slug"), currentUser(c), s.page(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(posts)
}

// GetTagPosts handles GET /api/tags/:slug/posts
// @Summary Posts with a tag
// @Tags tags
// @Produce json
// @Param slug path string true "Tag slug"
// @Param limit query int false "Page size"
// @Param offset query int false "Items to skip"
// @Success 200 {array} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /tags/{slug}/posts [get]
func (s *Server) GetTagPosts(c *fiber.Ctx) error {
	posts, err := s.feeds.Tag(c.UserContext(), c.Params("slug"), currentUser(c), s.page(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(posts)
}
