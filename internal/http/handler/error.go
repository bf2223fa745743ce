package handler

import (
	"github.com/gofiber/fiber/v2"
)

// Error bodies follow the browser client contract: retrieval and diagnostic
// endpoints answer {"error": "..."}, the upload endpoint answers
// {"success": false, "error": "..."}. Messages stay safe; internal error
// detail never leaks to the client.

type errorBody struct {
	Error string `json:"error"`
}

type uploadErrorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func writeError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(errorBody{Error: message})
}

func writeUploadError(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(uploadErrorBody{Success: false, Error: message})
}

// ErrorHandler returns a Fiber global error handler that standardizes error
// responses for unmatched routes and errors escaping handlers.
func ErrorHandler() fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		if e, ok := err.(*fiber.Error); ok {
			status = e.Code
		}

		switch status {
		case fiber.StatusBadRequest:
			return writeError(c, status, "Bad request")
		case fiber.StatusNotFound:
			return writeError(c, status, "Not found")
		case fiber.StatusMethodNotAllowed:
			return writeError(c, status, "Method not allowed")
		default:
			return writeError(c, status, "Internal server error")
		}
	}
}
