package admin

import (
	"strconv"

	"winledger/errutil"
	"winledger/helpers"
	"winledger/services"

	"github.com/gofiber/fiber/v2"
)

type ResolveMGMRequest struct {
	Action string `json:"action" validate:"required,oneof=refund forfeit"`
}

func Users(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		users, err := e.AdminUsers(c.UserContext(), c.Query("search"), c.QueryInt("limit", 100))
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, fiber.Map{"users": users})
	}
}

func Stats(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := e.AdminStats(c.UserContext())
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, stats)
	}
}

func Events(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		events, err := e.AdminEvents(c.UserContext(), c.Query("event_type"), c.QueryInt("limit", 100))
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, fiber.Map{"events": events})
	}
}

func HeldMGM(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		subs, err := e.HeldMGMSubscriptions(c.UserContext(), c.QueryInt("limit", 50))
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, fiber.Map{"subscriptions": subs})
	}
}

// ResolveMGM refunds or forfeits the principal held by a cancelled
// subscription.
func ResolveMGM(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		admin, err := helpers.CurrentUser(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}

		id, err := strconv.ParseUint(c.Params("id"), 10, 64)
		if err != nil || id == 0 {
			return helpers.JSONError(c, errutil.Validation("invalid subscription id"))
		}

		var req ResolveMGMRequest
		if err := helpers.ParseBody(c, &req); err != nil {
			return helpers.JSONError(c, err)
		}

		sub, err := e.ResolveMGMPrincipal(c.UserContext(), admin, uint(id), req.Action)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, fiber.Map{
			"success":      true,
			"subscription": sub,
		})
	}
}
