package helpers

import (
	"math"
	"strconv"

	"winledger/errutil"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

func JSONSuccess(c *fiber.Ctx, data any) error {
	return c.Status(fiber.StatusOK).JSON(data)
}

// JSONError renders err as {"detail": ...} with the status mapped from its
// error code. Internal details are logged, never returned.
func JSONError(c *fiber.Ctx, err error) error {
	be, known := errutil.As(err)
	status := be.Code.HTTPStatus()

	if !known || status >= fiber.StatusInternalServerError {
		zap.L().Error("request failed",
			zap.String("path", c.Path()),
			zap.String("method", c.Method()),
			zap.Any("request_id", c.Locals("requestid")),
			zap.Error(err),
		)
		be.Message = "Internal server error"
	}

	body := fiber.Map{"detail": be.Message}
	if be.RetryAfter > 0 {
		secs := int(math.Ceil(be.RetryAfter.Seconds()))
		c.Set(fiber.HeaderRetryAfter, strconv.Itoa(secs))
		body["retry_after"] = secs
	}

	return c.Status(status).JSON(body)
}
