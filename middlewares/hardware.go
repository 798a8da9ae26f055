package middlewares

import (
	"os"

	"github.com/gofiber/fiber/v2"
)

// HardwareAuth gates the machine-controller endpoints behind the shared
// hardware key.
func HardwareAuth() fiber.Handler {
	expectedKey := os.Getenv("HW_SECRET_KEY")

	return func(c *fiber.Ctx) error {
		if expectedKey == "" || c.Get("X-Hardware-Key") != expectedKey {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"success": false,
				"message": "INVALID_HARDWARE_KEY",
				"data":    nil,
			})
		}
		return c.Next()
	}
}
