package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TimeBand holds the deduction percentage that applies to sessions started
// at or after BandKey (time of day, 24h "HH:mm") up to the next band.
type TimeBand struct {
	gorm.Model

	MachineID  uint            `gorm:"index:idx_machine_band,unique" json:"machine_id"`
	BandKey    string          `gorm:"size:5;index:idx_machine_band,unique" json:"band_key"`
	Percentage decimal.Decimal `gorm:"type:numeric(5,2);default:0" json:"percentage"`
}
