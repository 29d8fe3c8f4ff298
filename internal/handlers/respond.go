package handlers

import (
	"errors"
	"fmt"
	"log/slog"

	"storefront/internal/feed"
	"storefront/internal/middleware"
	"storefront/internal/models"
	"storefront/internal/submission"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
)

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrNotFound),
		errors.Is(err, models.ErrOrderNotFound),
		errors.Is(err, models.ErrProductNotFound):
		return fiber.StatusNotFound
	case errors.Is(err, models.ErrEmptyCart),
		errors.Is(err, models.ErrPaymentMethodRequired),
		errors.Is(err, models.ErrInvalidCoupon),
		errors.Is(err, models.ErrInvalidStatus):
		return fiber.StatusBadRequest
	case errors.Is(err, models.ErrUnauthenticated),
		errors.Is(err, models.ErrInvalidCredentials):
		return fiber.StatusUnauthorized
	case errors.Is(err, models.ErrNotOrderOwner),
		errors.Is(err, models.ErrForbidden):
		return fiber.StatusForbidden
	case errors.Is(err, models.ErrNotDelivered),
		errors.Is(err, models.ErrConflict),
		errors.Is(err, models.ErrCheckoutInProgress):
		return fiber.StatusConflict
	case errors.Is(err, submission.ErrAllTiersFailed),
		errors.Is(err, feed.ErrUnavailable):
		return fiber.StatusServiceUnavailable
	default:
		return fiber.StatusInternalServerError
	}
}

// respondError writes err with the status it maps to. Server-side failures
// are logged and their details kept out of the body.
func respondError(c *fiber.Ctx, logger *slog.Logger, message string, err error) error {
	status := statusFor(err)
	if status >= fiber.StatusInternalServerError {
		logger.Error(message, slog.String("path", c.Path()), slog.Any("error", err))
		body := fiber.Map{"message": message}
		if status == fiber.StatusServiceUnavailable {
			body["error"] = rootMessage(err)
		}
		return c.Status(status).JSON(body)
	}
	return c.Status(status).JSON(fiber.Map{
		"message": message,
		"error":   err.Error(),
	})
}

func rootMessage(err error) string {
	switch {
	case errors.Is(err, submission.ErrAllTiersFailed):
		return submission.ErrAllTiersFailed.Error()
	case errors.Is(err, feed.ErrUnavailable):
		return feed.ErrUnavailable.Error()
	}
	return err.Error()
}

func badBody(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Invalid request body",
		"error":   err.Error(),
	})
}

// validationFailed renders validator errors per field.
func validationFailed(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return badBody(c, err)
	}
	errorMessages := make(map[string]string)
	for _, e := range validationErrors {
		errorMessages[e.Field()] = fmt.Sprintf("Field '%s' failed on the '%s' tag", e.Field(), e.Tag())
	}
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": "Validation failed",
		"errors":  errorMessages,
	})
}

// CartIDHeader identifies an anonymous shopper's cart.
const CartIDHeader = "X-Cart-ID"

// cartKey picks the cart for the request: the signed-in user's, or the
// device cart named by CartIDHeader.
func cartKey(c *fiber.Ctx) (string, bool) {
	if p := middleware.CurrentUser(c); p != nil {
		return "user:" + p.ID, true
	}
	if id := c.Get(CartIDHeader); id != "" {
		return "device:" + id, true
	}
	return "", false
}

func missingCartKey(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message": fmt.Sprintf("Sign in or send the %s header", CartIDHeader),
	})
}

// guarded prepends the guard chain to h.
func guarded(guard []fiber.Handler, h fiber.Handler) []fiber.Handler {
	return append(append([]fiber.Handler(nil), guard...), h)
}
