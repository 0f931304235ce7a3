package middleware

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

func setupOperatorApp(t *testing.T, tokenHash string) *fiber.App {
	t.Helper()
	app := fiber.New()
	app.Use(OperatorAuth(tokenHash))
	app.Post("/admin", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestOperatorAuth(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret-token"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("generate hash: %v", err)
	}

	cases := []struct {
		name       string
		tokenHash  string
		token      string
		wantStatus int
	}{
		{"valid token", string(hash), "secret-token", fiber.StatusOK},
		{"wrong token", string(hash), "guessed", fiber.StatusForbidden},
		{"missing token", string(hash), "", fiber.StatusUnauthorized},
		{"gate disabled", "", "", fiber.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := setupOperatorApp(t, tc.tokenHash)
			req := httptest.NewRequest(fiber.MethodPost, "/admin", nil)
			if tc.token != "" {
				req.Header.Set(operatorTokenHeader, tc.token)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != tc.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tc.wantStatus)
			}
		})
	}
}
