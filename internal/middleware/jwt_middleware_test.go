package middleware_test

import (
	"net/http/httptest"
	"testing"
	"time"

	"adminpanel/internal/handlers"
	"adminpanel/internal/logger"
	"adminpanel/internal/middleware"
	"adminpanel/internal/models"
	"adminpanel/internal/repositories"
	"adminpanel/internal/services"
	"adminpanel/pkg/validator"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupAuthApp(t *testing.T) (*fiber.App, *services.AuthService) {
	t.Helper()
	v, err := validator.NewDefaultValidator()
	require.NoError(t, err)
	authService := services.NewAuthService(repositories.NewMemoryUserRepository(), v, logger.Discard(), "secret", time.Hour)

	app := fiber.New(fiber.Config{ErrorHandler: handlers.ErrorHandler(logger.Discard())})
	app.Get("/private", middleware.AuthRequired(authService), func(c *fiber.Ctx) error {
		p := middleware.PrincipalFrom(c)
		return c.SendString(p.UserID + ":" + string(p.Role))
	})
	return app, authService
}

func TestAuthRequired(t *testing.T) {
	app, authService := setupAuthApp(t)
	token, err := authService.IssueToken(&models.User{ID: "u-1", Email: "a@example.com", Role: models.RoleAdmin})
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid", "Bearer " + token, fiber.StatusOK},
		{"lowercase scheme", "bearer " + token, fiber.StatusOK},
		{"missing", "", fiber.StatusUnauthorized},
		{"wrong scheme", "Basic " + token, fiber.StatusUnauthorized},
		{"no token", "Bearer ", fiber.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", fiber.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/private", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
		})
	}
}

func TestPrincipalFromWithoutAuth(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		if middleware.PrincipalFrom(c) == nil {
			return c.SendStatus(fiber.StatusNoContent)
		}
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
}
