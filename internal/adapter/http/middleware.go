package http

import (
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"resume-copilot/internal/usecase"
)

const ownerKey = "ownerID"

// Identity resolves the caller's owner id. With a secret configured only an
// HS256 bearer token whose subject is a UUID is accepted; without one the
// X-User-ID header is trusted, which is meant for local development.
func Identity(secret string) fiber.Handler {
	key := []byte(secret)
	return func(c *fiber.Ctx) error {
		var raw string
		if secret != "" {
			sub, err := subjectFromBearer(c.Get(fiber.HeaderAuthorization), key)
			if err != nil {
				return respondError(c, fmt.Errorf("%w: %v", errUnauthorized, err))
			}
			raw = sub
		} else {
			raw = c.Get("X-User-ID")
		}
		owner, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil || owner == uuid.Nil {
			return respondError(c, errUnauthorized)
		}
		c.Locals(ownerKey, owner)
		return c.Next()
	}
}

func subjectFromBearer(header string, key []byte) (string, error) {
	tokenStr, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || tokenStr == "" {
		return "", fmt.Errorf("bearer token required")
	}
	claims := &jwtlib.RegisteredClaims{}
	token, err := jwtlib.ParseWithClaims(tokenStr, claims, func(t *jwtlib.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwtlib.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return key, nil
	})
	if err != nil {
		return "", err
	}
	if !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	return claims.Subject, nil
}

func ownerFrom(c *fiber.Ctx) uuid.UUID {
	owner, _ := c.Locals(ownerKey).(uuid.UUID)
	return owner
}

// RateLimit applies a per client IP sliding window. Store failures deny the
// request.
func RateLimit(limiter *usecase.Limiter, limit int, window time.Duration, logger *zap.Logger) fiber.Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *fiber.Ctx) error {
		d, err := limiter.CheckAndRecord(c.UserContext(), "ip:"+c.IP(), limit, window)
		if err != nil {
			logger.Warn("ip rate limit check failed", zap.String("ip", c.IP()), zap.Error(err))
			return respondError(c, &usecase.RateLimitError{Decision: d})
		}
		if !d.Allowed {
			return respondError(c, &usecase.RateLimitError{Decision: d})
		}
		c.Set("X-RateLimit-Remaining", fmt.Sprint(d.Remaining))
		return c.Next()
	}
}
