package middleware

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/gofiber/fiber/v2"
)

// Logger is a middleware that logs each HTTP request as one JSON object
// per line: request_id, method, path, status and latency in milliseconds.
// Streaming responses are logged when the handler returns, i.e. when the
// stream was handed to the transport, not when the last byte drained.
func Logger() fiber.Handler {
	return LoggerTo(os.Stdout)
}

// LoggerTo is Logger writing to the given sink. Split out for tests.
func LoggerTo(w io.Writer) fiber.Handler {
	enc := json.NewEncoder(w)

	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		// Collect fields after the handler executed to capture the final status
		rid, _ := c.Locals(RequestIDLocalKey).(string)

		_ = enc.Encode(map[string]any{
			"request_id": rid,
			"method":     c.Method(),
			"path":       c.Path(),
			"status":     c.Response().StatusCode(),
			"latency":    float64(time.Since(start).Milliseconds()),
		})

		return err
	}
}
