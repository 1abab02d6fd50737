package server

import (
	"realblog/internal/media"
	"realblog/internal/models"

	"github.com/gofiber/fiber/v2"
)

// UploadImage handles POST /api/uploads/images. The multipart field "image"
// carries the file; the response points at the stored JPEG and WebP copies.
// @Summary Upload a post image
// @Tags uploads
// @Accept multipart/form-data
// @Produce json
// @Security BearerAuth
// @Param image formData file true "Image file"
// @Success 201 {object} media.UploadedImage
// @Failure 400 {object} models.ErrorResponse
// @Failure 401 {object} models.ErrorResponse
// @Router /uploads/images [post]
func (s *Server) UploadImage(c *fiber.Ctx) error {
	file, err := c.FormFile("image")
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("No file uploaded"))
	}

	content, err := readFormFile(file)
	if err != nil {
		return models.RespondWithError(c, fiber.StatusBadRequest, models.NewValidationError("Unable to read uploaded file"))
	}

	uploaded, err := s.images.UploadPostImage(c.UserContext(), media.UploadImageInput{
		UserID:      currentUser(c),
		Filename:    file.Filename,
		ContentType: file.Header.Get("Content-Type"),
		Content:     content,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(uploaded)
}
