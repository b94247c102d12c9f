package auth

import (
	"winledger/helpers"
	"winledger/services"

	"github.com/gofiber/fiber/v2"
)

func Register(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req services.RegisterInput
		if err := helpers.ParseBody(c, &req); err != nil {
			return helpers.JSONError(c, err)
		}

		if req.Country == "" {
			req.Country = helpers.RequestCountry(c)
		}

		res, err := e.Register(c.UserContext(), req, c.Get(fiber.HeaderUserAgent))
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

func Login(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req services.LoginInput
		if err := helpers.ParseBody(c, &req); err != nil {
			return helpers.JSONError(c, err)
		}

		res, err := e.Login(c.UserContext(), req, c.Get(fiber.HeaderUserAgent))
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, res)
	}
}

// Logout revokes the session behind the presented token.
func Logout(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sid, err := helpers.SessionID(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}

		if err := e.Logout(c.UserContext(), sid); err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, fiber.Map{"success": true})
	}
}

func Me(c *fiber.Ctx) error {
	user, err := helpers.CurrentUser(c)
	if err != nil {
		return helpers.JSONError(c, err)
	}
	return helpers.JSONSuccess(c, services.AuthUser{
		ID:           user.ID,
		Email:        user.Email,
		Role:         user.Role,
		ReferralCode: user.ReferralCode,
	})
}
