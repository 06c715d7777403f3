package middlewares

import (
	"strings"

	errprocess "task_chat_service/pkg/err"
	t_token "task_chat_service/pkg/token"

	"github.com/gofiber/fiber/v2"
)

const (
	// QueryToken token in query name (socket handshake auth field)
	QueryToken = "auth"
	// QueryTokenFallback token in query name
	QueryTokenFallback = "token"
	// HeaderBearer Authorization prefix
	HeaderBearer = "Bearer "

	// TokenMemberID get member form token, set c.locals name
	TokenMemberID = "MemberID"
	// TokenDisplayName get first/last name form token, set c.locals name
	TokenDisplayName = "DisplayName"
	// TokenFirstName get first name form token, set c.locals name
	TokenFirstName = "FirstName"
	// TokenRole get role form token, set c.locals name
	TokenRole = "role"
)

// ExtractToken auth field > Authorization Bearer > token query
func ExtractToken(c *fiber.Ctx) string {
	if t := c.Query(QueryToken); t != "" {
		return t
	}
	if h := c.Get(fiber.HeaderAuthorization); strings.HasPrefix(h, HeaderBearer) {
		return strings.TrimSpace(h[len(HeaderBearer):])
	}
	return c.Query(QueryTokenFallback)
}

// JWTMiddleware validates JWT and set identity into locals
func JWTMiddleware(v *t_token.Verifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenStr := ExtractToken(c)
		if tokenStr == "" {
			return Unauthorized(c, "Missing token")
		}

		claims, err := v.Verify(tokenStr)
		if err != nil {
			return Unauthorized(c, "Invalid token")
		}

		c.Locals(TokenMemberID, claims.UserID())
		c.Locals(TokenDisplayName, claims.DisplayName())
		c.Locals(TokenFirstName, claims.FirstName)
		c.Locals(TokenRole, claims.Role)
		return c.Next()
	}
}

// Unauthorized write authentication error body
func Unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": fiber.Map{
			"kind":    errprocess.KindAuthentication,
			"message": msg,
		},
	})
}

// MemberID get identity from locals
func MemberID(c *fiber.Ctx) string {
	id, _ := c.Locals(TokenMemberID).(string)
	return id
}

// DisplayName get display name from locals
func DisplayName(c *fiber.Ctx) string {
	name, _ := c.Locals(TokenDisplayName).(string)
	return name
}
