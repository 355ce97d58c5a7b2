package middleware

import (
	"errors"
	"log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"bonkers-airdrop/store"
)

const RoleAdmin = "admin"

// Claims is the session token payload. Subject carries the user's email.
type Claims struct {
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// GenerateToken signs a session token.
func GenerateToken(email, name string, roles []string, secret []byte, expiry time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		Name:  name,
		Roles: roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strings.ToLower(email),
			ExpiresAt: jwt.NewNumericDate(now.Add(expiry)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// ParseToken validates a session token and returns the session it carries.
func ParseToken(raw string, secret []byte) (store.Session, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return secret, nil
	}, jwt.WithExpirationRequired())
	if err != nil {
		return store.Session{}, err
	}
	if !token.Valid || strings.TrimSpace(claims.Subject) == "" {
		return store.Session{}, errors.New("invalid token")
	}
	return store.Session{Email: claims.Subject, FullName: claims.Name, Roles: claims.Roles}, nil
}

// UserContextMiddleware resolves the session token from X-Session-Token, or
// the token query parameter for event streams, and attaches the session to
// the request context.
func UserContextMiddleware(secret []byte) fiber.Handler {
	return func(c *fiber.Ctx) error {
		raw := strings.TrimSpace(c.Get("X-Session-Token"))
		if raw == "" {
			raw = strings.TrimSpace(c.Query("token"))
		}
		if raw == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Please sign in to continue",
				"code":  "unauthenticated",
			})
		}

		session, err := ParseToken(raw, secret)
		if err != nil {
			log.Printf("❌ [USER_CTX] Rejected session token for %s: %v", c.Path(), err)
			msg := "Invalid session"
			if errors.Is(err, jwt.ErrTokenExpired) {
				msg = "Session expired, please sign in again"
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": msg,
				"code":  "unauthenticated",
			})
		}

		c.SetUserContext(store.WithSession(c.UserContext(), session))
		c.Locals("user_email", strings.ToLower(session.Email))
		c.Locals("user_roles", session.Roles)
		return c.Next()
	}
}

// RequireRole rejects sessions without role.
func RequireRole(role string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		session, ok := store.SessionFrom(c.UserContext())
		if !ok {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Please sign in to continue",
				"code":  "unauthenticated",
			})
		}
		if !session.HasRole(role) {
			log.Printf("🚫 [ROLE] %s lacks role %q for %s", session.Email, role, c.Path())
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "forbidden",
				"code":  "forbidden",
			})
		}
		return c.Next()
	}
}
