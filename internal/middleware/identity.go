package middleware

import (
	"fmt"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/noah-isme/groupbuy-api/internal/utils"
)

const (
	userIDLocal    = "user_id"
	userIDHeader   = "X-User-Id"
	userIDQueryKey = "userId"
)

// Identity resolves who is calling. Authentication is handled upstream, so the identity comes from
// a bearer token signed with secret (when configured), the X-User-Id header or the userId query
// parameter, in that order. Requests without any identity pass through anonymously.
func Identity(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if authorization := strings.TrimSpace(c.Get(fiber.HeaderAuthorization)); authorization != "" && secret != "" {
			userID, err := userIDFromBearer(authorization, secret)
			if err != nil {
				return utils.SendError(c, fiber.StatusUnauthorized, "UNAUTHORIZED", err.Error())
			}
			c.Locals(userIDLocal, userID)
			return c.Next()
		}

		if userID := strings.TrimSpace(c.Get(userIDHeader)); userID != "" {
			c.Locals(userIDLocal, userID)
		} else if userID := strings.TrimSpace(c.Query(userIDQueryKey)); userID != "" {
			c.Locals(userIDLocal, userID)
		}

		return c.Next()
	}
}

// UserID returns the identity bound by Identity, or "".
func UserID(c *fiber.Ctx) string {
	if c == nil {
		return ""
	}
	if value, ok := c.Locals(userIDLocal).(string); ok {
		return value
	}
	return ""
}

func userIDFromBearer(authorization, secret string) (string, error) {
	const bearer = "bearer "
	if !strings.HasPrefix(strings.ToLower(authorization), bearer) {
		return "", fmt.Errorf("invalid authorization header")
	}

	tokenString := strings.TrimSpace(authorization[len(bearer):])
	if tokenString == "" {
		return "", fmt.Errorf("invalid token")
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return []byte(secret), nil
	})
	if err != nil || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", fmt.Errorf("invalid token claims")
	}

	for _, key := range []string{"sub", "user_id", "userId"} {
		if value, ok := claims[key].(string); ok && strings.TrimSpace(value) != "" {
			return strings.TrimSpace(value), nil
		}
	}
	return "", fmt.Errorf("token carries no subject")
}
