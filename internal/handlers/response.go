package handlers

import (
	"errors"

	"storefront/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
)

const internalErrorMessage = "Internal Server Error"

// Guards are the middleware chains protecting user and admin routes.
type Guards struct {
	User  fiber.Handler
	Admin fiber.Handler
}

// success writes the {success: true, ...} envelope.
func success(c *fiber.Ctx, status int, payload fiber.Map) error {
	if payload == nil {
		payload = fiber.Map{}
	}
	payload["success"] = true
	return c.Status(status).JSON(payload)
}

// StatusFor maps a domain error kind onto an HTTP status code.
func StatusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindValidation:
		return fiber.StatusBadRequest
	case models.KindAuth:
		return fiber.StatusUnauthorized
	case models.KindForbidden:
		return fiber.StatusForbidden
	case models.KindNotFound:
		return fiber.StatusNotFound
	case models.KindConflict:
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}

// ErrorHandler renders every error returned by a handler or middleware as a
// {success: false, message} envelope. Internal failures are logged and their
// cause is never sent to the client.
func ErrorHandler(logger zerolog.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			message := fe.Message
			if fe.Code >= fiber.StatusInternalServerError {
				message = internalErrorMessage
			}
			return c.Status(fe.Code).JSON(fiber.Map{"success": false, "message": message})
		}

		var de *models.DomainError
		if !errors.As(err, &de) {
			de = models.NewInternalError(internalErrorMessage, err)
		}

		status := StatusFor(de.Kind)
		if status >= fiber.StatusInternalServerError {
			logger.Error().
				Err(err).
				Str("method", c.Method()).
				Str("path", c.Path()).
				Msg("request failed")
			return c.Status(status).JSON(fiber.Map{"success": false, "message": internalErrorMessage})
		}

		body := fiber.Map{"success": false, "message": de.Message}
		if len(de.Fields) > 0 {
			body["errors"] = de.Fields
		}
		return c.Status(status).JSON(body)
	}
}

func parseBody(c *fiber.Ctx, out interface{}) error {
	if err := c.BodyParser(out); err != nil {
		return &models.DomainError{
			Kind:    models.KindValidation,
			Message: models.ErrInvalidBody.Message,
			Err:     err,
		}
	}
	return nil
}
