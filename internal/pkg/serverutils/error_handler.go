package serverutils

import (
	"errors"

	"docchat-be/internal/pkg/apperror"
	"docchat-be/internal/pkg/logger"

	"github.com/gofiber/fiber/v2"
)

func statusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindInvalidArgument:
		return fiber.StatusBadRequest
	case apperror.KindNotFound:
		return fiber.StatusNotFound
	case apperror.KindConflict:
		return fiber.StatusBadRequest
	case apperror.KindUnauthorized:
		return fiber.StatusBadRequest
	case apperror.KindUpstream:
		return fiber.StatusInternalServerError
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandlerMiddleware is the single place where internal error kinds
// become HTTP statuses. Handlers just return errors.
func ErrorHandlerMiddleware(log logger.ILogger) fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		err := ctx.Next()
		if err == nil {
			return nil
		}

		// Framework errors (unknown route, method not allowed) already
		// carry their status; pass them through untouched.
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return ctx.Status(fiberErr.Code).JSON(fiber.Map{
				"error": fiberErr.Message,
			})
		}

		kind := apperror.KindOf(err)
		if kind == apperror.KindInternal || kind == apperror.KindUpstream {
			log.Error("http", "request failed", map[string]interface{}{
				"method": ctx.Method(),
				"path":   ctx.Path(),
				"error":  err.Error(),
			})
		}

		return ctx.Status(statusFor(kind)).JSON(fiber.Map{
			"error": apperror.ClientMessage(err),
		})
	}
}
