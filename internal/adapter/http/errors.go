package http

import (
	"errors"
	"math"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"resume-copilot/internal/domain"
	"resume-copilot/internal/usecase"
)

var errUnauthorized = errors.New("missing or invalid identity")

// statusFor maps core errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errUnauthorized):
		return fiber.StatusUnauthorized
	case errors.Is(err, domain.ErrInvalidInput):
		return fiber.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return fiber.StatusConflict
	case errors.Is(err, domain.ErrNoApprovedChanges):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrRateLimited):
		return fiber.StatusTooManyRequests
	case errors.Is(err, domain.ErrArtifactGeneration), errors.Is(err, domain.ErrUpstream):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

// respondError writes the {"ok":0,"code","message"} envelope. Internal
// errors are not echoed back to the caller.
func respondError(c *fiber.Ctx, err error) error {
	status := statusFor(err)
	msg := err.Error()
	if status == fiber.StatusInternalServerError {
		msg = "internal error"
	}

	var rl *usecase.RateLimitError
	if errors.As(err, &rl) {
		c.Set(fiber.HeaderRetryAfter, retryAfterSeconds(rl.Decision.RetryAfter(time.Now())))
	}
	return c.Status(status).JSON(fiber.Map{
		"ok":      0,
		"code":    status,
		"message": msg,
	})
}

func retryAfterSeconds(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
