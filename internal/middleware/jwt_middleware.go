package middleware

import (
	"log/slog"
	"strings"

	"storefront/internal/models"
	"storefront/internal/services"

	"github.com/gofiber/fiber/v2"
)

const principalKey = "principal"

// Role is a route-level permission carried in the token claims.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleCourier Role = "courier"
)

// bearerToken extracts the token from the Authorization header. Browsers
// cannot set headers on EventSource requests, so stream routes may pass
// it as access_token instead.
func bearerToken(c *fiber.Ctx) (string, bool, string) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		if q := c.Query("access_token"); q != "" {
			return q, true, ""
		}
		return "", false, "Authorization header is required"
	}

	// Expected format: "Bearer <token>"
	parts := strings.SplitN(authHeader, " ", 2)
	if !(len(parts) == 2 && parts[0] == "Bearer") {
		return "", true, "Authorization header format must be 'Bearer <token>'"
	}
	return parts[1], true, ""
}

func authenticate(c *fiber.Ctx, authService *services.AuthService, logger *slog.Logger, tokenString string) error {
	claims, err := authService.ValidateToken(tokenString)
	if err != nil {
		logger.Debug("JWT validation failed", slog.String("path", c.Path()), slog.Any("error", err))
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Invalid or expired token",
			"error":   err.Error(),
		})
	}
	principal := services.PrincipalFromClaims(claims)
	if principal == nil {
		return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
			"message": "Token carries no user",
		})
	}

	c.Locals(principalKey, principal)
	c.Locals("user_id", principal.ID)
	c.Locals("username", claims["username"])
	return c.Next()
}

// AuthRequired is a Fiber middleware to check for a valid JWT token.
func AuthRequired(authService *services.AuthService, logger *slog.Logger) fiber.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *fiber.Ctx) error {
		token, present, problem := bearerToken(c)
		if problem != "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": problem})
		}
		if !present {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "Authorization header is required"})
		}
		return authenticate(c, authService, logger, token)
	}
}

// OptionalAuth attaches the caller when a token is sent and lets anonymous
// requests through. A token that is sent but invalid is still rejected.
func OptionalAuth(authService *services.AuthService, logger *slog.Logger) fiber.Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return func(c *fiber.Ctx) error {
		token, present, problem := bearerToken(c)
		if !present {
			return c.Next()
		}
		if problem != "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": problem})
		}
		return authenticate(c, authService, logger, token)
	}
}

// RequireRole must run after AuthRequired.
func RequireRole(role Role) fiber.Handler {
	return func(c *fiber.Ctx) error {
		p := CurrentUser(c)
		if p == nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"message": models.ErrUnauthenticated.Error(),
			})
		}
		allowed := (role == RoleAdmin && p.Admin) || (role == RoleCourier && p.Courier)
		if !allowed {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"message": models.ErrForbidden.Error(),
				"role":    string(role),
			})
		}
		return c.Next()
	}
}

// CurrentUser returns the authenticated caller, or nil.
func CurrentUser(c *fiber.Ctx) *models.Principal {
	p, _ := c.Locals(principalKey).(*models.Principal)
	return p
}
