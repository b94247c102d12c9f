package admin

import (
	"winledger/helpers"
	"winledger/services"

	"github.com/gofiber/fiber/v2"
)

type ExecuteSettlementRequest struct {
	SettlementID          string   `json:"settlement_id" validate:"required"`
	TransactionSignatures []string `json:"transaction_signatures" validate:"required,min=1"`
}

// CreateSettlement runs the settlement batch on demand.
func CreateSettlement(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		res, err := e.CreateSettlement(c.UserContext(), services.TriggerAdmin)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, res)
	}
}

func ApproveSettlement(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		admin, err := helpers.CurrentUser(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}

		st, err := e.ApproveSettlement(c.UserContext(), c.Params("id"), admin)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, fiber.Map{
			"success":    true,
			"settlement": st,
			"message":    "Settlement approved",
		})
	}
}

func ExecuteSettlement(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		admin, err := helpers.CurrentUser(c)
		if err != nil {
			return helpers.JSONError(c, err)
		}

		var req ExecuteSettlementRequest
		if err := helpers.ParseBody(c, &req); err != nil {
			return helpers.JSONError(c, err)
		}

		st, err := e.ExecuteSettlement(c.UserContext(), req.SettlementID, req.TransactionSignatures, admin)
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, fiber.Map{
			"success":    true,
			"settlement": st,
			"message":    "Settlement executed",
		})
	}
}

func GetSettlement(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		st, err := e.GetSettlement(c.UserContext(), c.Params("id"))
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, st)
	}
}

func SettlementHistory(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := e.SettlementHistory(c.UserContext(), c.QueryInt("limit", 100))
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, fiber.Map{"settlements": list})
	}
}

// PendingSettlements lists the settlements still awaiting an admin action.
func PendingSettlements(e *services.Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := e.PendingSettlements(c.UserContext())
		if err != nil {
			return helpers.JSONError(c, err)
		}
		return helpers.JSONSuccess(c, fiber.Map{"settlements": list})
	}
}
