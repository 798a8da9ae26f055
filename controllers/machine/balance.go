package machine

import (
	"coinops/helpers"
	"coinops/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
)

type BalanceRequest struct {
	Amount decimal.Decimal `json:"amount"`
	Note   string          `json:"note"`
}

func (h *Handler) AddBalance(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return helpers.JSONError(c, "INVALID_MACHINE_ID")
	}

	var req BalanceRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_JSON")
	}

	balance, err := h.Ledger.AddAmount(uint(id), req.Amount, req.Note)
	if err != nil {
		return helpers.JSONDomainError(c, err)
	}
	return helpers.JSONSuccess(c, "Balance added", fiber.Map{
		"machine_id": id,
		"balance":    balance,
	})
}

func (h *Handler) WithdrawBalance(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return helpers.JSONError(c, "INVALID_MACHINE_ID")
	}

	var req BalanceRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_JSON")
	}

	balance, err := h.Ledger.WithdrawAmount(uint(id), req.Amount, req.Note)
	if err != nil {
		return helpers.JSONDomainError(c, err)
	}
	return helpers.JSONSuccess(c, "Balance withdrawn", fiber.Map{
		"machine_id": id,
		"balance":    balance,
	})
}

// ListTransactions pages through the machine's append-only ledger, newest
// first.
func (h *Handler) ListTransactions(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return helpers.JSONError(c, "INVALID_MACHINE_ID")
	}
	page, limit, offset := helpers.Pagination(c)

	var total int64
	if err := h.DB.Model(&models.Transaction{}).
		Where("machine_id = ?", id).Count(&total).Error; err != nil {
		return helpers.JSONDomainError(c, err)
	}

	var transactions []models.Transaction
	if err := h.DB.Where("machine_id = ?", id).
		Order("id desc").Limit(limit).Offset(offset).Find(&transactions).Error; err != nil {
		return helpers.JSONDomainError(c, err)
	}

	return helpers.JSONSuccess(c, "Transactions retrieved", fiber.Map{
		"transactions": transactions,
		"page":         page,
		"limit":        limit,
		"total":        total,
	})
}
