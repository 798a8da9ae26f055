package session

import (
	"coinops/helpers"
	"coinops/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type Handler struct {
	DB *gorm.DB
}

func NewHandler(db *gorm.DB) *Handler {
	return &Handler{DB: db}
}

// List is the authoritative session read the dashboards refetch after every
// push event, filterable by machine and status.
func (h *Handler) List(c *fiber.Ctx) error {
	page, limit, offset := helpers.Pagination(c)

	query := h.DB.Model(&models.GameSession{})
	if machineID := c.QueryInt("machine_id", 0); machineID > 0 {
		query = query.Where("machine_id = ?", machineID)
	}
	if status := c.Query("status"); status != "" {
		switch status {
		case models.SessionStatusActive, models.SessionStatusCompleted, models.SessionStatusCancelled:
			query = query.Where("status = ?", status)
		default:
			return helpers.JSONError(c, "INVALID_STATUS")
		}
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return helpers.JSONDomainError(c, err)
	}

	var sessions []models.GameSession
	if err := query.Preload("Presses").
		Order("id desc").Limit(limit).Offset(offset).Find(&sessions).Error; err != nil {
		return helpers.JSONDomainError(c, err)
	}

	return helpers.JSONSuccess(c, "Sessions retrieved", fiber.Map{
		"sessions": sessions,
		"page":     page,
		"limit":    limit,
		"total":    total,
	})
}

func (h *Handler) Get(c *fiber.Ctx) error {
	sid := c.Params("sid")
	if sid == "" {
		return helpers.JSONError(c, "SESSION_ID_REQUIRED")
	}

	var gameSession models.GameSession
	if err := h.DB.Preload("Presses").
		Where("session_id = ?", sid).First(&gameSession).Error; err != nil {
		return helpers.JSONDomainError(c, err)
	}
	return helpers.JSONSuccess(c, "Session retrieved", gameSession)
}
