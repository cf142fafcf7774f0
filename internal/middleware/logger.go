package middleware

import (
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"taskmanager/internal/apperr"
	"taskmanager/pkg/logger"
	"taskmanager/pkg/metrics"
)

// Fail writes err in the API error envelope. Internal causes never leave the
// process; only the message of an apperr.Error does.
func Fail(c *fiber.Ctx, err error) error {
	status := apperr.StatusCode(err)
	return c.Status(status).JSON(fiber.Map{
		"message": apperr.Message(err),
		"success": false,
		"status":  status,
	})
}

// MsgBodyTooLarge answers requests the server refuses to read.
const MsgBodyTooLarge = "Request too large. Maximum is 3 files of 5MB each"

// FiberErrorHandler renders errors that escape handlers, such as an unknown
// route or an oversized body, in the same envelope. An oversized body is a
// validation error like any other rejected upload.
func FiberErrorHandler(c *fiber.Ctx, err error) error {
	var fe *fiber.Error
	if errors.As(err, &fe) && fe.Code == fiber.StatusRequestEntityTooLarge {
		// beyond BodyLimit the upload cannot be parsed at all
		return Fail(c, apperr.Validation(MsgBodyTooLarge))
	}
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{
			"message": fe.Message,
			"success": false,
			"status":  fe.Code,
		})
	}
	logger.ErrorLogger.Error("Unhandled error", zap.String("path", c.Path()), zap.Error(err))
	return Fail(c, err)
}

// ErrorHandler recovers panics and logs every request with its outcome.
func ErrorHandler(m *metrics.Metrics) fiber.Handler {
	return func(c *fiber.Ctx) (err error) {
		start := time.Now()
		defer func() {
			if r := recover(); r != nil {
				logger.ErrorLogger.Error(fmt.Sprintf("Recovered from panic: %v", r), zap.String("stack", string(debug.Stack())))
				err = Fail(c, apperr.Internal("Internal server error", fmt.Errorf("%v", r)))
			}

			status := c.Response().StatusCode()
			var fe *fiber.Error
			if errors.As(err, &fe) {
				status = fe.Code
			}
			route := c.Route().Path
			m.Request(c.Method(), route, status)
			logger.RequestLogger.Info("Request",
				zap.String("method", c.Method()),
				zap.String("url", c.OriginalURL()),
				zap.String("route", route),
				zap.Int("status", status),
				zap.Duration("latency", time.Since(start)),
				zap.String("ip", c.IP()),
			)
		}()
		return c.Next()
	}
}
