package admin

import (
	"winledger/helpers"
	"winledger/services"

	"github.com/gofiber/fiber/v2"
)

type RejectPayoutRequest struct {
	Note string `json:"note" validate:"max=500"`
}

func ListPayouts(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		payouts, err := e.ListPayouts(c.UserContext(), c.Query("status"))
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, fiber.Map{"payouts": payouts})
	}
}

func ApprovePayout(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		admin, err := helpers.CurrentUser(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}

		p, err := e.ApprovePayout(c.UserContext(), c.Params("id"), admin)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, p)
	}
}

func RejectPayout(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		admin, err := helpers.CurrentUser(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}

		var req RejectPayoutRequest
		if len(c.Body()) > 0 {
			if err := helpers.ParseBody(c, &req); err != nil {
				return helpers.JSONError(c, err)
			}
		}

		p, err := e.RejectPayout(c.UserContext(), c.Params("id"), admin, req.Note)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, p)
	}
}
