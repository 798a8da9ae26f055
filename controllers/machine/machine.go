package machine

import (
	"time"

	"coinops/bands"
	"coinops/helpers"
	"coinops/ledger"
	"coinops/models"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Handler struct {
	DB     *gorm.DB
	Ledger *ledger.Service
	Bands  *bands.Service
}

func NewHandler(db *gorm.DB, l *ledger.Service, b *bands.Service) *Handler {
	return &Handler{DB: db, Ledger: l, Bands: b}
}

type CreateMachineRequest struct {
	Name                string           `json:"name"`
	Number              string           `json:"number"`
	SeedPercentage      *decimal.Decimal `json:"seed_percentage"`
	SeedIntervalMinutes int              `json:"seed_interval_minutes"`
}

// Create registers a machine and seeds its time-band table in one
// transaction.
func (h *Handler) Create(c *fiber.Ctx) error {
	var req CreateMachineRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_JSON")
	}
	if req.Name == "" {
		return helpers.JSONError(c, "NAME_REQUIRED")
	}
	if req.Number == "" {
		req.Number = helpers.GenerateMachineNumber()
	}
	if req.SeedIntervalMinutes <= 0 {
		req.SeedIntervalMinutes = 15
	}
	seedPct := decimal.NewFromInt(10)
	if req.SeedPercentage != nil {
		seedPct = *req.SeedPercentage
	}

	machine := models.Machine{
		Name:    req.Name,
		Number:  req.Number,
		Balance: decimal.Zero,
		Status:  models.MachineStatusActive,
	}
	err := h.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&machine).Error; err != nil {
			return err
		}
		interval := time.Duration(req.SeedIntervalMinutes) * time.Minute
		return h.Bands.SeedBands(tx, machine.ID, interval, seedPct)
	})
	if err != nil {
		return helpers.JSONDomainError(c, err)
	}

	return helpers.JSONSuccess(c, "Machine created", machine)
}

// List returns machines, newest first, paginated.
func (h *Handler) List(c *fiber.Ctx) error {
	page, limit, offset := helpers.Pagination(c)

	var total int64
	if err := h.DB.Model(&models.Machine{}).Count(&total).Error; err != nil {
		return helpers.JSONDomainError(c, err)
	}

	var machines []models.Machine
	if err := h.DB.Order("id desc").Limit(limit).Offset(offset).Find(&machines).Error; err != nil {
		return helpers.JSONDomainError(c, err)
	}

	return helpers.JSONSuccess(c, "Machines retrieved", fiber.Map{
		"machines": machines,
		"page":     page,
		"limit":    limit,
		"total":    total,
	})
}

func (h *Handler) Get(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return helpers.JSONError(c, "INVALID_MACHINE_ID")
	}

	var machine models.Machine
	if err := h.DB.First(&machine, id).Error; err != nil {
		return helpers.JSONDomainError(c, err)
	}
	return helpers.JSONSuccess(c, "Machine retrieved", machine)
}

type UpdateMachineRequest struct {
	Name    *string `json:"name"`
	Status  *string `json:"status"`
	Offline *bool   `json:"offline"`
}

func (h *Handler) Update(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return helpers.JSONError(c, "INVALID_MACHINE_ID")
	}

	var req UpdateMachineRequest
	if err := c.BodyParser(&req); err != nil {
		return helpers.JSONError(c, "INVALID_JSON")
	}

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.Status != nil {
		switch *req.Status {
		case models.MachineStatusActive, models.MachineStatusInactive, models.MachineStatusMaintenance:
			updates["status"] = *req.Status
		default:
			return helpers.JSONError(c, "INVALID_STATUS")
		}
	}
	if req.Offline != nil {
		updates["offline"] = *req.Offline
	}
	if len(updates) == 0 {
		return helpers.JSONError(c, "NOTHING_TO_UPDATE")
	}

	var machine models.Machine
	if err := h.DB.First(&machine, id).Error; err != nil {
		return helpers.JSONDomainError(c, err)
	}
	if err := h.DB.Model(&machine).Updates(updates).Error; err != nil {
		return helpers.JSONDomainError(c, err)
	}
	return helpers.JSONSuccess(c, "Machine updated", machine)
}

// Delete soft-deletes a machine; its ledger history stays.
func (h *Handler) Delete(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id < 1 {
		return helpers.JSONError(c, "INVALID_MACHINE_ID")
	}

	var machine models.Machine
	if err := h.DB.First(&machine, id).Error; err != nil {
		return helpers.JSONDomainError(c, err)
	}
	if err := h.DB.Delete(&machine).Error; err != nil {
		return helpers.JSONDomainError(c, err)
	}
	return helpers.JSONSuccess(c, "Machine deleted", nil)
}
