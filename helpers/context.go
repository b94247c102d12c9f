package helpers

import (
	"strings"

	"winledger/errutil"
	"winledger/models"

	"github.com/gofiber/fiber/v2"
)

const (
	userLocalKey    = "user"
	sessionLocalKey = "sid"
	roleLocalKey    = "token_role"
)

func SetCurrentUser(c *fiber.Ctx, user models.User) {
	c.Locals(userLocalKey, user)
}

func CurrentUser(c *fiber.Ctx) (models.User, error) {
	user, ok := c.Locals(userLocalKey).(models.User)
	if !ok {
		return models.User{}, errutil.Unauthorized("Not authenticated")
	}
	return user, nil
}

// SetSession stores the session id and role claim of the verified token.
func SetSession(c *fiber.Ctx, sid, role string) {
	c.Locals(sessionLocalKey, sid)
	c.Locals(roleLocalKey, role)
}

func SessionID(c *fiber.Ctx) (string, error) {
	sid, ok := c.Locals(sessionLocalKey).(string)
	if !ok || sid == "" {
		return "", errutil.Unauthorized("Not authenticated")
	}
	return sid, nil
}

func TokenRole(c *fiber.Ctx) string {
	role, _ := c.Locals(roleLocalKey).(string)
	return role
}

// RequestCountry reads the edge-provided country code, if any.
func RequestCountry(c *fiber.Ctx) string {
	for _, h := range []string{"CF-IPCountry", "X-Country-Code"} {
		if v := strings.TrimSpace(c.Get(h)); len(v) == 2 {
			return strings.ToUpper(v)
		}
	}
	return ""
}
