package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"realblog/internal/search"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// setupMockDB creates a GORM *gorm.DB backed by sqlmock with ping monitoring.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{DisableAutomaticPing: true})
	require.NoError(t, err)
	return gormDB, mock
}

func TestHumanizeParam(t *testing.T) {
	tests := []struct {
		param    string
		expected string
	}{
		{"id", "ID"},
		{"commentId", "comment ID"},
		{"parentCommentId", "parent comment ID"},
		{"slug", "slug"},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			assert.Equal(t, tt.expected, humanizeParam(tt.param))
		})
	}
}

func paginationApp(defaultLimit int) *fiber.App {
	app := fiber.New()
	app.Get("/items", func(c *fiber.Ctx) error {
		p := parsePagination(c, defaultLimit)
		return c.JSON(fiber.Map{"limit": p.Limit, "offset": p.Offset})
	})
	return app
}

func TestParsePagination(t *testing.T) {
	tests := []struct {
		name           string
		query          string
		defaultLimit   int
		expectedLimit  float64
		expectedOffset float64
	}{
		{"defaults", "", 25, 25, 0},
		{"custom", "?limit=10&offset=30", 25, 10, 30},
		{"zero limit falls back", "?limit=0", 25, 25, 0},
		{"capped", "?limit=1000", 25, 100, 0},
		{"negative offset", "?offset=-5", 25, 25, 0},
		{"unset default", "", 0, 10, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/items"+tt.query, nil)
			resp, err := paginationApp(tt.defaultLimit).Test(req)
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()

			var body map[string]float64
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
			assert.Equal(t, tt.expectedLimit, body["limit"])
			assert.Equal(t, tt.expectedOffset, body["offset"])
		})
	}
}

func TestParseID(t *testing.T) {
	tests := []struct {
		path           string
		expectedStatus int
	}{
		{"/items/42", http.StatusOK},
		{"/items/abc", http.StatusBadRequest},
		{"/items/0", http.StatusBadRequest},
		{"/items/-3", http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			app := fiber.New()
			app.Get("/items/:id", func(c *fiber.Ctx) error {
				id, err := parseID(c, "id")
				if err != nil {
					return nil
				}
				return c.JSON(fiber.Map{"id": id})
			})

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.NoError(t, err)
			defer func() { _ = resp.Body.Close() }()
			assert.Equal(t, tt.expectedStatus, resp.StatusCode)

			if tt.expectedStatus == http.StatusBadRequest {
				var body map[string]string
				require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
				assert.Equal(t, "Invalid ID", body["error"])
				assert.Equal(t, "VALIDATION_ERROR", body["code"])
			}
		})
	}
}

func TestParseBody_Malformed(t *testing.T) {
	app := fiber.New()
	app.Post("/items", func(c *fiber.Ctx) error {
		var dest struct {
			Name string `json:"name"`
		}
		if err := parseBody(c, &dest); err != nil {
			return nil
		}
		return c.JSON(dest)
	})

	req := httptest.NewRequest(http.MethodPost, "/items", strings.NewReader(`{"name":`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestReadinessCheck_DatabaseDown(t *testing.T) {
	db, mock := setupMockDB(t)
	mock.ExpectPing().WillReturnError(errors.New("connection refused"))

	s := &Server{db: db, ranker: search.NewMemoryRanker(db, search.Options{})}
	app := fiber.New()
	app.Get("/health/ready", s.ReadinessCheck)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "unhealthy", body.Checks["database"])
	assert.Equal(t, "disabled", body.Checks["redis"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
