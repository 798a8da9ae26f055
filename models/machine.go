package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const (
	MachineStatusActive      = "Active"
	MachineStatusInactive    = "Inactive"
	MachineStatusMaintenance = "Maintenance"
)

type Machine struct {
	gorm.Model

	Name    string          `gorm:"size:64" json:"name"`
	Number  string          `gorm:"uniqueIndex;size:32" json:"number"`
	Balance decimal.Decimal `gorm:"type:numeric(14,2);default:0" json:"balance"`
	Status  string          `gorm:"size:16;default:Active;index" json:"status"`
	Offline bool            `gorm:"default:false" json:"offline"`

	TimeBands    []TimeBand    `gorm:"foreignKey:MachineID" json:"time_bands,omitempty"`
	Transactions []Transaction `gorm:"foreignKey:MachineID" json:"-"`
}
