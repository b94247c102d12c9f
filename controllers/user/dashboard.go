package user

import (
	"winledger/helpers"
	"winledger/services"

	"github.com/gofiber/fiber/v2"
)

func Dashboard(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := helpers.CurrentUser(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}

		dash, err := e.Dashboard(c.UserContext(), user)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, dash)
	}
}

func WinBalance(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := helpers.CurrentUser(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}

		bal, err := e.WinBalance(c.UserContext(), user)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, bal)
	}
}
