package server

import (
	"io"
	"mime/multipart"
	"strings"

	"realblog/internal/models"
	"realblog/internal/service"

	"github.com/gofiber/fiber/v2"
)

// GetMe handles GET /api/me
// @Summary Current account
// @Tags profiles
// @Produce json
// @Security BearerAuth
// @Success 200 {object} models.User
// @Failure 401 {object} models.ErrorResponse
// @Router /me [get]
func (s *Server) GetMe(c *fiber.Ctx) error {
	user, err := s.identity.Me(c.UserContext(), currentUser(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(user)
}

// UpdateMe handles PUT /api/me. Multipart requests may carry an "avatar" file
// next to the text fields; JSON requests edit the text fields only.
// @Summary Edit account and profile
// @Tags profiles
// @Accept json,mpfd
// @Produce json
// @Security BearerAuth
// @Param request body service.EditProfileInput false "Text fields (JSON)"
// @Param avatar formData file false "Avatar image (multipart)"
// @Success 200 {object} models.User
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /me [put]
func (s *Server) UpdateMe(c *fiber.Ctx) error {
	var in service.EditProfileInput

	if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEMultipartForm) {
		form, err := c.MultipartForm()
		if err != nil {
			return models.RespondWithError(c, fiber.StatusBadRequest,
				models.NewValidationError("Invalid multipart form"))
		}
		in.Username = formValue(form, "username")
		in.Email = formValue(form, "email")
		in.FirstName = optionalFormValue(form, "first_name")
		in.LastName = optionalFormValue(form, "last_name")

		if files := form.File["avatar"]; len(files) > 0 {
			content, err := readFormFile(files[0])
			if err != nil {
				return models.RespondWithError(c, fiber.StatusBadRequest,
					models.NewValidationError("Unable to read uploaded file"))
			}
			in.Avatar = content
		}
	} else if err := parseBody(c, &in); err != nil {
		return nil
	}

	in.UserID = currentUser(c)
	user, err := s.profiles.EditProfile(c.UserContext(), in)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(user)
}

func formValue(form *multipart.Form, key string) string {
	if v := form.Value[key]; len(v) > 0 {
		return v[0]
	}
	return ""
}

func optionalFormValue(form *multipart.Form, key string) *string {
	v, ok := form.Value[key]
	if !ok || len(v) == 0 {
		return nil
	}
	return &v[0]
}

func readFormFile(fh *multipart.FileHeader) ([]byte, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer func() { _ = src.Close() }()
	return io.ReadAll(src)
}

// GetProfile handles GET /api/profiles/:slug
// @Summary Get profile
// @Tags profiles
// @Produce json
// @Param slug path string true "Profile slug"
// @Success 200 {object} models.Profile
// @Failure 404 {object} models.ErrorResponse
// @Router /profiles/{slug} [get]
func (s *Server) GetProfile(c *fiber.Ctx) error {
	profile, err := s.profiles.Profile(c.UserContext(), c.Params("slug"), currentUser(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(profile)
}

// GetProfilePosts handles GET /api/profiles/:slug/posts
// @Summary Posts by a profile
// @Tags profiles
// @Produce json
// @Param slug path string true "Profile slug"
// @Param limit query int false "Page size"
// @Param offset query int false "Items to skip"
// @Success 200 {array} models.Post
// @Failure 404 {object} models.ErrorResponse
// @Router /profiles/{slug}/posts [get]
func (s *Server) GetProfilePosts(c *fiber.Ctx) error {
	posts, err := s.feeds.ProfilePosts(c.UserContext(), c.Params("slug"), currentUser(c), s.page(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(posts)
}

// GetFollowers handles GET /api/profiles/:slug/followers
// @Summary Followers of a profile
// @Tags profiles
// @Produce json
// @Param slug path string true "Profile slug"
// @Param limit query int false "Page size"
// @Param offset query int false "Items to skip"
// @Success 200 {array} models.Profile
// @Failure 404 {object} models.ErrorResponse
// @Router /profiles/{slug}/followers [get]
func (s *Server) GetFollowers(c *fiber.Ctx) error {
	profiles, err := s.profiles.Followers(c.UserContext(), c.Params("slug"), s.page(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(profiles)
}

// GetFollowing handles GET /api/profiles/:slug/following
// @Summary Profiles a profile follows
// @Tags profiles
// @Produce json
// @Param slug path string true "Profile slug"
// @Param limit query int false "Page size"
// @Param offset query int false "Items to skip"
// @Success 200 {array} models.Profile
// @Failure 404 {object} models.ErrorResponse
// @Router /profiles/{slug}/following [get]
func (s *Server) GetFollowing(c *fiber.Ctx) error {
	profiles, err := s.profiles.Following(c.UserContext(), c.Params("slug"), s.page(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(profiles)
}

// GetFollowStatus handles GET /api/profiles/:slug/follow
// @Summary Whether the caller follows a profile
// @Tags profiles
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Profile slug"
// @Success 200 {object} object{following=bool}
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /profiles/{slug}/follow [get]
func (s *Server) GetFollowStatus(c *fiber.Ctx) error {
	following, err := s.profiles.IsFollowing(c.UserContext(), currentUser(c), c.Params("slug"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"following": following})
}

// Follow handles POST /api/profiles/:slug/follow
// @Summary Follow a profile
// @Tags profiles
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Profile slug"
// @Success 200 {object} models.Profile
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /profiles/{slug}/follow [post]
func (s *Server) Follow(c *fiber.Ctx) error {
	profile, err := s.profiles.Follow(c.UserContext(), currentUser(c), c.Params("slug"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(profile)
}

// Unfollow handles DELETE /api/profiles/:slug/follow
// @Summary Unfollow a profile
// @Tags profiles
// @Produce json
// @Security BearerAuth
// @Param slug path string true "Profile slug"
// @Success 200 {object} models.Profile
// @Failure 401 {object} models.ErrorResponse
// @Failure 404 {object} models.ErrorResponse
// @Router /profiles/{slug}/follow [delete]
func (s *Server) Unfollow(c *fiber.Ctx) error {
	profile, err := s.profiles.Unfollow(c.UserContext(), currentUser(c), c.Params("slug"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(profile)
}

// GetFollowingFeed handles GET /api/feed/following
// @Summary Posts by followed authors
// @Tags profiles
// @Produce json
// @Security BearerAuth
// @Param limit query int false "Page size"
// @Param offset query int false "Items to skip"
// @Success 200 {array} models.Post
// @Failure 401 {object} models.ErrorResponse
// @Router /feed/following [get]
func (s *Server) GetFollowingFeed(c *fiber.Ctx) error {
	posts, err := s.feeds.Following(c.UserContext(), currentUser(c), s.page(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(posts)
}
