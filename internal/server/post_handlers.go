package server

import (
	"realblog/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetPosts handles GET /api/posts, the home feed of published posts.
// @Summary Home feed
// @Tags posts
// @Produce json
// @Param limit query int false "Page size"
// @Param offset query int false "Items to skip"
// @Success 200 {array} models.Post
// @Router /posts [get]
func (s *Server) GetPosts(c *fiber.Ctx) error {
	posts, err := s.feeds.Home(c.UserContext(), currentUser(c), s.page(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(posts)
}

// SearchPosts handles GET /api/posts/search?q=
// @Summary Full-text search
// @Tags posts
// @Produce json
// @Param q query string true "Search text"
// @Param limit query int false "Page size"
// @Param offset query int false "Items to skip"
// @Success 200 {array} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /posts/search [get]
func (s *Server) SearchPosts(c *fiber.Ctx) error {
	posts, err := s.search.Search(c.UserContext(), c.Query("q"), currentUser(c), s.page(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(posts)
}

// GetLatestPosts handles GET /api/posts/latest
// @Summary Latest posts widget
// @Tags posts
// @Produce json
// @Success 200 {array} models.Post
// @Router /posts/latest [get]
func (s *Server) GetLatestPosts(c *fiber.Ctx) error {
	posts, err := s.feeds.Latest(c.UserContext(), currentUser(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(posts)
}

// GetMostCommentedPosts handles GET /api/posts/most-commented
// @Summary Most commented posts widget
// @Tags posts
// @Produce json
// @Success 200 {array} models.Post
// @Router /posts/most-commented [get]
func (s *Server) GetMostCommentedPosts(c *fiber.Ctx) error {
	posts, err := s.feeds.MostCommented(c.UserContext(), currentUser(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(posts)
}

// GetDrafts handles GET /api/posts/drafts
// @Summary Caller's drafts
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Items to skip"
// @Success 200 {array} models.Post
// @Failure 401 {object} models.ErrorResponse
// @Router /posts/drafts [get]
func (s *Server) GetDrafts(c *fiber.Ctx) error {
	posts, err := s.feeds.Drafts(c.UserContext(), currentUser(c), s.page(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(posts)
}

// CreatePost handles POST /api/posts
// @Summary Create post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.CreatePostInput true "Post"
// @Success 201 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Router /posts [post]
func (s *Server) CreatePost(c *fiber.Ctx) error {
	var req service.CreatePostInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	req.UserID = currentUser(c)

	post, err := s.posts.Create(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(post)
}

// GetPost handles GET /api/posts/:slug
// @Summary Get post by slug
// @Tags posts
// @Produce json
// @Param slug path string true "Post slug"
// @Success 200 {object} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{slug} [get]
func (s *Server) GetPost(c *fiber.Ctx) error {
	post, err := s.posts.Get(c.UserContext(), c.Params("slug"), currentUser(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(post)
}

// UpdatePost handles PUT /api/posts/:slug
// @Summary Update post
// @Tags posts
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Post slug"
// @Param request body service.UpdatePostInput true "Changed fields"
// @Success 200 {object} models.Post
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{slug} [put]
func (s *Server) UpdatePost(c *fiber.Ctx) error {
	var req service.UpdatePostInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	req.UserID = currentUser(c)
	req.Slug = c.Params("slug")

	post, err := s.posts.Update(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(post)
}

// DeletePost handles DELETE /api/posts/:slug
// @Summary Delete post
// @Tags posts
// @Security BearerAuth
// @Param slug path string true "Post slug"
// @Success 204
// @Failure 401 {object} models.ErrorResponse
// @Failure 403 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{slug} [delete]
func (s *Server) DeletePost(c *fiber.Ctx) error {
	if err := s.posts.Delete(c.UserContext(), currentUser(c), c.Params("slug")); err != nil {
		return fail(c, err)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// ToggleLike handles POST /api/posts/:slug/like
// @Summary Like or unlike a post
// @Tags posts
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Post slug"
// @Success 200 {object} service.LikeResult
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{slug}/like [post]
func (s *Server) ToggleLike(c *fiber.Ctx) error {
	result, err := s.likes.Toggle(c.UserContext(), currentUser(c), c.Params("slug"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(result)
}

// GetSimilarPosts handles GET /api/posts/:slug/similar
// @Summary Posts sharing tags
// @Tags posts
// @Produce json
// @Param slug path string true "Post slug"
// @Param limit query int false "Page size"
// @Param offset query int false "Items to skip"
// @Success 200 {array} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /posts/{slug}/similar [get]
func (s *Server) GetSimilarPosts(c *fiber.Ctx) error {
	posts, err := s.feeds.Similar(c.UserContext(), c.Params("slug"), currentUser(c), s.page(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(posts)
}
