// middleware/auth.go
package middleware

import (
	"strings"

	"partnership-sync/logger"

	"github.com/gofiber/fiber/v2"
)

// CallerContextMiddleware picks up the identity the gateway forwards
// (X-User-ID, X-User-Roles) so sync triggers can be attributed in logs.
// Requests without it are attributed to "gateway".
func CallerContextMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		callerID := strings.TrimSpace(c.Get("X-User-ID"))
		if callerID == "" {
			callerID = "gateway"
		}

		var roles []string
		for _, r := range strings.Split(c.Get("X-User-Roles"), ",") {
			if r = strings.TrimSpace(r); r != "" {
				roles = append(roles, r)
			}
		}

		ctx := c.UserContext()
		log := logger.FromContext(ctx).With().
			Str("caller_id", callerID).
			Strs("caller_roles", roles).
			Logger()
		c.SetUserContext(logger.WithContext(ctx, log))

		return c.Next()
	}
}
