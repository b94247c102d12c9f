package wallet

import (
	"winledger/helpers"
	"winledger/services"

	"github.com/gofiber/fiber/v2"
)

type WithdrawRequest struct {
	AmountUSD float64 `json:"amount_usd" validate:"required,gt=0"`
}

// Withdraw debits available WIN and queues a payout for admin review.
func Withdraw(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := helpers.CurrentUser(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}

		var req WithdrawRequest
		if err := helpers.ParseBody(c, &req); err != nil {
			return helpers.JSONError(c, err)
		}

		payout, err := e.RequestPayout(c.UserContext(), user, req.AmountUSD)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(payout)
	}
}

func Withdrawals(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := helpers.CurrentUser(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}

		payouts, err := e.UserPayouts(c.UserContext(), user.ID)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, fiber.Map{"withdrawals": payouts})
	}
}
