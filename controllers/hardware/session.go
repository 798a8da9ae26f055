package hardware

import (
	"coinops/engine"
	"coinops/helpers"

	"github.com/gofiber/fiber/v2"
)

// Handler receives the trusted machine-controller events that drive the
// session engine.
type Handler struct {
	Engine *engine.Engine
}

func NewHandler(e *engine.Engine) *Handler {
	return &Handler{Engine: e}
}

type StartRequest struct {
	MachineID uint `json:"machine_id"`
}

func (h *Handler) Start(c *fiber.Ctx) error {
	var req StartRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_JSON")
	}
	if req.MachineID == 0 {
		return helpers.JSONError(c, "MACHINE_ID_REQUIRED")
	}

	session, err := h.Engine.StartSession(req.MachineID)
	if err != nil {
		return helpers.JSONDomainError(c, err)
	}
	return helpers.JSONSuccess(c, "Session started", session)
}

type PressRequest struct {
	MachineID    uint `json:"machine_id"`
	ButtonNumber int  `json:"button_number"`
	PressCount   int  `json:"press_count"`
}

func (h *Handler) Press(c *fiber.Ctx) error {
	var req PressRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_JSON")
	}
	if req.MachineID == 0 {
		return helpers.JSONError(c, "MACHINE_ID_REQUIRED")
	}
	if req.PressCount == 0 {
		req.PressCount = 1
	}

	press, err := h.Engine.RecordPress(req.MachineID, req.ButtonNumber, req.PressCount)
	if err != nil {
		return helpers.JSONDomainError(c, err)
	}
	return helpers.JSONSuccess(c, "Press recorded", press)
}

type CompleteRequest struct {
	MachineID uint                     `json:"machine_id"`
	Winners   []engine.WinnerCandidate `json:"winners"`
}

func (h *Handler) Complete(c *fiber.Ctx) error {
	var req CompleteRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_JSON")
	}
	if req.MachineID == 0 {
		return helpers.JSONError(c, "MACHINE_ID_REQUIRED")
	}

	session, err := h.Engine.CompleteSession(req.MachineID, req.Winners)
	if err != nil {
		return helpers.JSONDomainError(c, err)
	}
	return helpers.JSONSuccess(c, "Session completed", session)
}

type CancelRequest struct {
	MachineID uint `json:"machine_id"`
}

func (h *Handler) Cancel(c *fiber.Ctx) error {
	var req CancelRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_JSON")
	}
	if req.MachineID == 0 {
		return helpers.JSONError(c, "MACHINE_ID_REQUIRED")
	}

	session, err := h.Engine.CancelSession(req.MachineID)
	if err != nil {
		return helpers.JSONDomainError(c, err)
	}
	return helpers.JSONSuccess(c, "Session cancelled", session)
}
