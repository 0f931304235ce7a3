package middleware

import (
	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

const operatorTokenHeader = "X-Operator-Token"

// OperatorAuth gates review-resolution and account administration endpoints
// behind a shared operator token, verified against its bcrypt hash. An empty
// hash disables the gate, which config permits only in development.
func OperatorAuth(tokenHash string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if tokenHash == "" {
			return c.Next()
		}
		token := c.Get(operatorTokenHeader)
		if token == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing operator token")
		}
		if err := bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(token)); err != nil {
			return fiber.NewError(fiber.StatusForbidden, "invalid operator token")
		}
		return c.Next()
	}
}
