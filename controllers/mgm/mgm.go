package mgm

import (
	"winledger/helpers"
	"winledger/services"

	"github.com/gofiber/fiber/v2"
)

type SubscribeRequest struct {
	Tier string `json:"tier" validate:"required,oneof=starter pro elite"`
}

func Status(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := helpers.CurrentUser(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}

		status, err := e.MGMStatus(c.UserContext(), user)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, status)
	}
}

func Subscribe(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := helpers.CurrentUser(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}

		var req SubscribeRequest
		if err := helpers.ParseBody(c, &req); err != nil {
			return helpers.JSONError(c, err)
		}

		sub, err := e.SubscribeMGM(c.UserContext(), user, req.Tier)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, fiber.Map{
			"success":      true,
			"subscription": sub,
			"message":      "Subscribed to " + sub.Tier,
		})
	}
}

func Claim(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := helpers.CurrentUser(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}

		res, err := e.ClaimMGM(c.UserContext(), user)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, res)
	}
}

func Cancel(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := helpers.CurrentUser(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}

		res, err := e.CancelMGM(c.UserContext(), user)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, res)
	}
}
