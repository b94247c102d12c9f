package missions

import (
	"winledger/helpers"
	"winledger/services"

	"github.com/gofiber/fiber/v2"
)

type ClaimRequest struct {
	MissionID string `json:"mission_id" validate:"required"`
}

func List(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := helpers.CurrentUser(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}

		missions, err := e.Missions(c.UserContext(), user.ID)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, fiber.Map{"missions": missions})
	}
}

func Claim(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		user, err := helpers.CurrentUser(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}

		var req ClaimRequest
		if err := helpers.ParseBody(c, &req); err != nil {
			return helpers.JSONError(c, err)
		}

		res, err := e.ClaimMission(c.UserContext(), user, req.MissionID)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, res)
	}
}
