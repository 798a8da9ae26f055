package helpers

import (
	"math/rand"
	"time"

	"github.com/gofiber/fiber/v2"
)

const digitBytes = "0123456789"

func randomDigits(n int) string {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	b := make([]byte, n)
	for i := range b {
		b[i] = digitBytes[src.Intn(len(digitBytes))]
	}
	return string(b)
}

// GenerateMachineNumber produces a display number for machines created
// without one.
func GenerateMachineNumber() string {
	return "M" + randomDigits(6)
}

// Pagination reads page/limit query params with sane bounds.
func Pagination(c *fiber.Ctx) (page, limit, offset int) {
	page = c.QueryInt("page", 1)
	if page < 1 {
		page = 1
	}
	limit = c.QueryInt("limit", 20)
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit, (page - 1) * limit
}
