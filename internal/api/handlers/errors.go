package handlers

import (
	"errors"

	"github.com/amaumene/chansync/internal/controllers"
	"github.com/amaumene/chansync/internal/services/backend"
	"github.com/gofiber/fiber/v2"
)

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}

// respondError maps a controller error to a status code and user message
func respondError(c *fiber.Ctx, err error) error {
	status := fiber.StatusBadGateway
	switch {
	case backend.IsCancellation(err):
		// Client went away, nothing to show
		return c.SendStatus(fiber.StatusNoContent)
	case errors.Is(err, controllers.ErrItemNotFound):
		status = fiber.StatusNotFound
	case errors.Is(err, controllers.ErrInvalidVisibility):
		status = fiber.StatusBadRequest
	}

	var netErr *backend.NetworkError
	if errors.As(err, &netErr) && netErr.StatusCode >= 400 && netErr.StatusCode < 500 {
		status = netErr.StatusCode
	}

	return c.Status(status).JSON(ErrorResponse{Error: controllers.UserError(err)})
}

func badRequest(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: msg})
}
