package game

import (
	"time"

	"winledger/errutil"
	"winledger/helpers"
	"winledger/services"

	"github.com/gofiber/fiber/v2"
)

func LiveFeed(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var since time.Time
		if raw := c.Query("since"); raw != "" {
			t, err := time.Parse(time.RFC3339Nano, raw)
			if err != nil {
				return helpers.JSONError(c, errutil.Validation("since must be an RFC3339 timestamp"))
			}
			since = t
		}

		activities, err := e.LiveFeed(c.UserContext(), c.QueryInt("limit", 20), since)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, fiber.Map{"activities": activities})
	}
}
