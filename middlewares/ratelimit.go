package middlewares

import (
	"sync"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/time/rate"
)

// machineRateLimiter stores a rate limiter per machine id.
type machineRateLimiter struct {
	mu       sync.RWMutex
	limiters map[uint]*rate.Limiter
	r        rate.Limit
	b        int
}

func newMachineRateLimiter(r rate.Limit, b int) *machineRateLimiter {
	return &machineRateLimiter{
		limiters: make(map[uint]*rate.Limiter),
		r:        r,
		b:        b,
	}
}

func (m *machineRateLimiter) get(machineID uint) *rate.Limiter {
	m.mu.RLock()
	limiter, ok := m.limiters[machineID]
	m.mu.RUnlock()
	if ok {
		return limiter
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if limiter, ok = m.limiters[machineID]; ok {
		return limiter
	}
	limiter = rate.NewLimiter(m.r, m.b)
	m.limiters[machineID] = limiter
	return limiter
}

// PressRateLimiter caps the button-press event rate per machine. Machines
// stay independent of each other.
func PressRateLimiter(perSecond float64, burst int) fiber.Handler {
	limiter := newMachineRateLimiter(rate.Limit(perSecond), burst)

	return func(c *fiber.Ctx) error {
		var body struct {
			MachineID uint `json:"machine_id"`
		}
		if err := c.BodyParser(&body); err != nil || body.MachineID == 0 {
			// Let the handler report the malformed request.
			return c.Next()
		}

		if !limiter.get(body.MachineID).Allow() {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"success": false,
				"message": "PRESS_RATE_EXCEEDED",
				"data":    nil,
			})
		}
		return c.Next()
	}
}
