package middlewares

import (
	"strings"

	"winledger/errutil"
	"winledger/helpers"
	"winledger/models"
	"winledger/services"

	"github.com/gofiber/fiber/v2"
)

// UserAuth resolves the bearer token to an active user and stores it in the
// request locals.
func UserAuth(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "bearer") || strings.TrimSpace(token) == "" {
			return helpers.JSONError(c, errutil.Unauthorized("Not authenticated"))
		}

		user, claims, err := e.Authenticate(c.UserContext(), strings.TrimSpace(token))
		if err != nil {
			return helpers.JSONError(c, err)
		}

		helpers.SetCurrentUser(c, user)
		helpers.SetSession(c, claims.SID, claims.Role)
		return c.Next()
	}
}

// AdminOnly must run after UserAuth. Both the token's role claim and the
// stored role have to be admin.
func AdminOnly() fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := helpers.CurrentUser(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}

		if helpers.TokenRole(c) != models.RoleAdmin || !user.IsAdmin() {
			return helpers.JSONError(c, errutil.Forbidden("Admin access required"))
		}
		return c.Next()
	}
}
