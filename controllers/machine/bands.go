package machine

import (
	"coinops/helpers"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

func (h *Handler) ListBands(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return helpers.JSONError(c, "INVALID_MACHINE_ID")
	}

	machineBands, err := h.Bands.ListBands(uint(id))
	if err != nil {
		return helpers.JSONDomainError(c, err)
	}
	return helpers.JSONSuccess(c, "Time bands retrieved", machineBands)
}

type BulkApplyRequest struct {
	Values []decimal.Decimal `json:"values"`
}

// BulkApplyBands cycles the given percentages across the machine's bands in
// time order.
func (h *Handler) BulkApplyBands(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return helpers.JSONError(c, "INVALID_MACHINE_ID")
	}

	var req BulkApplyRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_JSON")
	}

	if err := h.Bands.BulkApply(uint(id), req.Values); err != nil {
		return helpers.JSONDomainError(c, err)
	}
	return helpers.JSONSuccess(c, "Time bands updated", nil)
}

type SetBandRequest struct {
	Percentage decimal.Decimal `json:"percentage"`
}

func (h *Handler) SetBandPercentage(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return helpers.JSONError(c, "INVALID_MACHINE_ID")
	}
	bandKey := c.Params("key")

	var req SetBandRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_JSON")
	}

	if err := h.Bands.SetPercentage(uint(id), bandKey, req.Percentage); err != nil {
		return helpers.JSONDomainError(c, err)
	}
	return helpers.JSONSuccess(c, "Time band updated", nil)
}
