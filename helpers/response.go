package helpers

import (
	"errors"

	"coinops/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

func JSONSuccess(c *fiber.Ctx, message string, data any) error {
	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"success": true,
		"message": message,
		"data":    data,
	})
}

func JSONError(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"success": false,
		"message": message,
		"data":    nil,
	})
}

func jsonErrorStatus(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
		"data":    nil,
	})
}

// JSONDomainError maps engine errors onto the response envelope.
func JSONDomainError(c *fiber.Ctx, err error) error {
	var (
		validationErr *models.ValidationError
		conflictErr   *models.ConflictError
		balanceErr    *models.InsufficientBalanceError
		configErr     *models.ConfigurationError
	)
	switch {
	case errors.As(err, &validationErr):
		return jsonErrorStatus(c, fiber.StatusBadRequest, validationErr.Error())
	case errors.As(err, &conflictErr):
		return jsonErrorStatus(c, fiber.StatusConflict, conflictErr.Error())
	case errors.As(err, &balanceErr):
		return jsonErrorStatus(c, fiber.StatusUnprocessableEntity, balanceErr.Error())
	case errors.As(err, &configErr):
		return jsonErrorStatus(c, fiber.StatusConflict, configErr.Error())
	case errors.Is(err, gorm.ErrRecordNotFound):
		return jsonErrorStatus(c, fiber.StatusNotFound, "NOT_FOUND")
	default:
		return jsonErrorStatus(c, fiber.StatusInternalServerError, "INTERNAL_ERROR")
	}
}
