package rule

import (
	"coinops/helpers"
	"coinops/rules"

	"github.com/gofiber/fiber/v2"
)

type Handler struct {
	Registry *rules.Registry
}

func NewHandler(r *rules.Registry) *Handler {
	return &Handler{Registry: r}
}

type AttachJackpotRequest struct {
	SessionID  string `json:"session_id"`
	MaxWinners int    `json:"max_winners"`
}

func (h *Handler) AttachJackpot(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return helpers.JSONError(c, "INVALID_MACHINE_ID")
	}

	var req AttachJackpotRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_JSON")
	}
	if req.SessionID == "" {
		return helpers.JSONError(c, "SESSION_ID_REQUIRED")
	}

	rule, err := h.Registry.AttachJackpotRule(uint(id), req.SessionID, req.MaxWinners)
	if err != nil {
		return helpers.JSONDomainError(c, err)
	}
	return helpers.JSONSuccess(c, "Jackpot rule attached", rule)
}

type AttachManualRequest struct {
	SessionID      string `json:"session_id"`
	AllowedButtons []int  `json:"allowed_buttons"`
}

func (h *Handler) AttachManual(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return helpers.JSONError(c, "INVALID_MACHINE_ID")
	}

	var req AttachManualRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_JSON")
	}
	if req.SessionID == "" {
		return helpers.JSONError(c, "SESSION_ID_REQUIRED")
	}

	rule, err := h.Registry.AttachManualRule(uint(id), req.SessionID, req.AllowedButtons)
	if err != nil {
		return helpers.JSONDomainError(c, err)
	}
	return helpers.JSONSuccess(c, "Manual rule attached", rule)
}

func (h *Handler) Clear(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return helpers.JSONError(c, "INVALID_MACHINE_ID")
	}

	if err := h.Registry.ClearRule(uint(id)); err != nil {
		return helpers.JSONDomainError(c, err)
	}
	return helpers.JSONSuccess(c, "Rule cleared", nil)
}

func (h *Handler) Active(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return helpers.JSONError(c, "INVALID_MACHINE_ID")
	}

	rule, err := h.Registry.ActiveRule(uint(id))
	if err != nil {
		return helpers.JSONDomainError(c, err)
	}
	return helpers.JSONSuccess(c, "Active rule retrieved", rule)
}
