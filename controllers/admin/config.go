package admin

import (
	"winledger/helpers"
	"winledger/services"

	"github.com/gofiber/fiber/v2"
)

func GetConfig(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		cfg, err := e.AdminConfig(c.UserContext())
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, cfg)
	}
}

// UpdateConfig applies a partial change; omitted fields keep their value.
func UpdateConfig(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		admin, err := helpers.CurrentUser(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}

		var req services.RuntimeConfigUpdate
		if err := helpers.ParseBody(c, &req); err != nil {
			return helpers.JSONError(c, err)
		}

		cfg, err := e.UpdateAdminConfig(c.UserContext(), admin, req)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, fiber.Map{
			"success": true,
			"config":  cfg,
		})
	}
}
