package server

import (
	"realblog/internal/service"

	"github.com/gofiber/fiber/v2"
)

// Signup handles POST /api/auth/signup
// @Summary User signup
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.SignupInput true "Signup request"
// @Success 201 {object} service.AuthResult
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/signup [post]
func (s *Server) Signup(c *fiber.Ctx) error {
	var req service.SignupInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	result, err := s.identity.Signup(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(result)
}

// Login handles POST /api/auth/login
// The login field accepts either a username or an email address.
// @Summary User login
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.LoginInput true "Credentials"
// @Success 200 {object} service.AuthResult
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/login [post]
func (s *Server) Login(c *fiber.Ctx) error {
	var req service.LoginInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	result, err := s.identity.Login(c.UserContext(), req)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(result)
}

// ChangePassword handles POST /api/auth/password-change
// @Summary Change password
// @Tags auth
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body service.ChangePasswordInput true "Old and new password"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /auth/password-change [post]
func (s *Server) ChangePassword(c *fiber.Ctx) error {
	var req service.ChangePasswordInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}
	req.UserID = currentUser(c)

	if err := s.identity.ChangePassword(c.UserContext(), req); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Password changed"})
}

// RequestPasswordReset handles POST /api/auth/password-reset
// @Summary Request a password reset code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.PasswordResetRequest true "Account email"
// @Success 202 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /auth/password-reset [post]
func (s *Server) RequestPasswordReset(c *fiber.Ctx) error {
	var req service.PasswordResetRequest
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	if err := s.accounts.RequestPasswordReset(c.UserContext(), req); err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Password reset code sent",
	})
}

// ConfirmPasswordReset handles POST /api/auth/password-reset/confirm
// @Summary Reset password with a code
// @Tags auth
// @Accept json
// @Produce json
// @Param request body service.PasswordResetConfirmInput true "Code and new password"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/password-reset/confirm [post]
func (s *Server) ConfirmPasswordReset(c *fiber.Ctx) error {
	var req service.PasswordResetConfirmInput
	if err := parseBody(c, &req); err != nil {
		return nil
	}

	if err := s.accounts.ConfirmPasswordReset(c.UserContext(), req); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Password updated"})
}

// RequestEmailVerification handles POST /api/auth/verify-email
// @Summary Send an email verification code
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 202 {object} object{message=string}
// @Failure 401 {object} models.ErrorResponse
// @Failure 502 {object} models.ErrorResponse
// @Router /auth/verify-email [post]
func (s *Server) RequestEmailVerification(c *fiber.Ctx) error {
	if err := s.accounts.RequestEmailVerification(c.UserContext(), currentUser(c)); err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"message": "Verification code sent",
	})
}

// ConfirmEmailVerification handles POST /api/auth/verify-email/:code
// @Summary Confirm email address
// @Tags auth
// @Produce json
// @Param code path string true "Verification code"
// @Success 200 {object} object{message=string}
// @Failure 400 {object} models.ErrorResponse
// @Router /auth/verify-email/{code} [post]
func (s *Server) ConfirmEmailVerification(c *fiber.Ctx) error {
	if err := s.accounts.ConfirmEmailVerification(c.UserContext(), c.Params("code")); err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"message": "Email verified"})
}

// GetFeatureFlags handles GET /api/feature-flags
// @Summary Feature flags for the caller
// @Tags meta
// @Produce json
// @Success 200 {object} map[string]bool
// @Router /feature-flags [get]
func (s *Server) GetFeatureFlags(c *fiber.Ctx) error {
	return c.JSON(s.featureFlags.Snapshot(currentUser(c)))
}
