package referral

import (
	"winledger/helpers"
	"winledger/services"

	"github.com/gofiber/fiber/v2"
)

func Stats(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := helpers.CurrentUser(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}

		stats, err := e.ReferralStats(c.UserContext(), user)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, stats)
	}
}
