package middlewares

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	t_token "task_chat_service/pkg/token"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "mw-secret"

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(Metrics())
	app.Get("/me", JWTMiddleware(t_token.NewVerifier(secret, false)), func(c *fiber.Ctx) error {
		return c.SendString(MemberID(c) + "|" + DisplayName(c))
	})
	app.Get("/raw", func(c *fiber.Ctx) error {
		return c.SendString(ExtractToken(c))
	})
	return app
}

func TestExtractToken_Priority(t *testing.T) {
	app := newApp()

	tests := []struct {
		name   string
		path   string
		header string
		want   string
	}{
		{"auth query 優先", "/raw?auth=a&token=c", HeaderBearer + "b", "a"},
		{"header 次之", "/raw?token=c", HeaderBearer + "b", "b"},
		{"token query", "/raw?token=c", "", "c"},
		{"非 bearer 忽略", "/raw", "Basic xyz", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set(fiber.HeaderAuthorization, tc.header)
			}
			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			body, _ := io.ReadAll(resp.Body)
			assert.Equal(t, tc.want, string(body))
		})
	}
}

func TestJWTMiddleware(t *testing.T) {
	app := newApp()
	tok, err := t_token.Sign(secret, t_token.Claims{MemberID: "m-1", FirstName: "Amy", LastName: "Wu"}, 0)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/me?auth="+tok, nil)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "m-1|Amy Wu", string(body))

	for _, path := range []string{"/me", "/me?auth=bogus"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
		require.NoError(t, err)
		body, _ := io.ReadAll(resp.Body)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.Contains(t, string(body), `"kind":"authentication"`)
	}
}
