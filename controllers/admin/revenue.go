package admin

import (
	"strconv"

	"winledger/errutil"
	"winledger/helpers"
	"winledger/services"

	"github.com/gofiber/fiber/v2"
)

type AddTestRevenueRequest struct {
	AmountUSD float64 `json:"amount_usd" validate:"required,gt=0,lte=1000"`
}

func AddTestRevenue(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req AddTestRevenueRequest
		if err := helpers.ParseBody(c, &req); err != nil {
			return helpers.JSONError(c, err)
		}

		n, err := e.AddTestRevenue(c.UserContext(), req.AmountUSD)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, fiber.Map{
			"success":       true,
			"users_updated": n,
			"amount_usd":    req.AmountUSD,
		})
	}
}

func Reconcile(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := strconv.ParseUint(c.Params("user_id"), 10, 64)
		if err != nil || id == 0 {
			return helpers.JSONError(c, errutil.Validation("invalid user_id"))
		}

		rec, err := e.Reconcile(c.UserContext(), uint(id))
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, rec)
	}
}
