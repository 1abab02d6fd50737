package server

import (
	"errors"
	"strings"
	"unicode"

	"realblog/internal/middleware"
	"realblog/internal/models"
	"realblog/internal/service"

	"github.com/gofiber/fiber/v2"
)

// errResponseWritten is a sentinel indicating the HTTP response was already
// committed by a helper. Handlers must return nil (not this error) to avoid
// Fiber's ErrorHandler overwriting the response.
var errResponseWritten = errors.New("response already written")

const maxPaginationLimit = service.MaxPageSize

// parsePagination reads limit and offset. Missing or non-positive limits use
// defaultLimit; larger ones are capped.
func parsePagination(c *fiber.Ctx, defaultLimit int) service.Page {
	if defaultLimit <= 0 {
		defaultLimit = service.DefaultPageSize
	}
	limit := c.QueryInt("limit", defaultLimit)
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxPaginationLimit {
		limit = maxPaginationLimit
	}

	offset := c.QueryInt("offset", 0)
	if offset < 0 {
		offset = 0
	}
	return service.Page{Limit: limit, Offset: offset}
}

func (s *Server) page(c *fiber.Ctx) service.Page {
	return parsePagination(c, s.config.PageSize)
}

// parseID extracts a route parameter by name as a positive uint.
// On failure it writes a 400 JSON response and returns errResponseWritten.
func parseID(c *fiber.Ctx, param string) (uint, error) {
	id, err := c.ParamsInt(param)
	if err != nil || id <= 0 {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid "+humanizeParam(param)))
		return 0, errResponseWritten
	}
	return uint(id), nil
}

// humanizeParam turns "id" into "ID" and "parentId" into "parent ID".
func humanizeParam(param string) string {
	if param == "id" {
		return "ID"
	}
	if strings.HasSuffix(param, "Id") {
		return strings.ToLower(strings.Join(splitCamel(param[:len(param)-2]), " ")) + " ID"
	}
	return param
}

func splitCamel(s string) []string {
	var words []string
	start := 0
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			words = append(words, s[start:i])
			start = i
		}
	}
	return append(words, s[start:])
}

// parseBody decodes the JSON body into dest, answering 400 when it is malformed.
func parseBody(c *fiber.Ctx, dest any) error {
	if err := c.BodyParser(dest); err != nil {
		_ = models.RespondWithError(c, fiber.StatusBadRequest,
			models.NewValidationError("Invalid request body"))
		return errResponseWritten
	}
	return nil
}

// fail writes err with the status derived from its code.
func fail(c *fiber.Ctx, err error) error {
	return models.RespondWithAppError(c, err)
}

func currentUser(c *fiber.Ctx) uint {
	return middleware.CurrentUserID(c)
}
