package handlers

import (
	"errors"
	"log/slog"

	"adminpanel/internal/apperr"

	"github.com/gofiber/fiber/v2"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// ErrorHandler renders errors returned by handlers and middleware. Causes
// wrapped inside application errors are logged, never sent to the client.
func ErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var appErr *apperr.Error
		if errors.As(err, &appErr) {
			status := statusFor(appErr.Kind)
			if status >= fiber.StatusInternalServerError {
				logger.ErrorContext(c.UserContext(), "request failed",
					slog.String("method", c.Method()),
					slog.String("path", c.Path()),
					slog.Any("error", err))
			}
			return c.Status(status).JSON(ErrorResponse{
				Error:   appErr.Kind.String(),
				Message: appErr.Message,
				Fields:  appErr.Fields,
			})
		}

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(ErrorResponse{
				Error:   codeForStatus(fiberErr.Code),
				Message: fiberErr.Message,
			})
		}

		logger.ErrorContext(c.UserContext(), "unhandled error",
			slog.String("method", c.Method()),
			slog.String("path", c.Path()),
			slog.Any("error", err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   apperr.KindUnknown.String(),
			Message: "internal server error",
		})
	}
}

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindUnsupportedMedia, apperr.KindPayloadTooLarge:
		return fiber.StatusBadRequest
	case apperr.KindAuthentication:
		return fiber.StatusUnauthorized
	case apperr.KindAuthorization:
		return fiber.StatusForbidden
	case apperr.KindNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

func codeForStatus(status int) string {
	switch status {
	case fiber.StatusBadRequest:
		return apperr.KindValidation.String()
	case fiber.StatusUnauthorized:
		return apperr.KindAuthentication.String()
	case fiber.StatusForbidden:
		return apperr.KindAuthorization.String()
	case fiber.StatusNotFound:
		return apperr.KindNotFound.String()
	case fiber.StatusRequestEntityTooLarge:
		return apperr.KindPayloadTooLarge.String()
	case fiber.StatusTooManyRequests:
		return "rate_limited"
	case fiber.StatusMethodNotAllowed:
		return "method_not_allowed"
	default:
		return apperr.KindUnknown.String()
	}
}
