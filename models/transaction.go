package models

import (
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Transaction is the append-only ledger row behind every balance mutation.
// Rows are never updated or deleted.
type Transaction struct {
	gorm.Model

	MachineID uint   `gorm:"index" json:"machine_id"`
	SessionID string `gorm:"size:36;index" json:"session_id,omitempty"`

	AddedAmount      decimal.Decimal `gorm:"type:numeric(14,2);default:0" json:"added_amount_to_machine"`
	WithdrawnAmount  decimal.Decimal `gorm:"type:numeric(14,2);default:0" json:"withdrawn_amount_from_machine"`
	PayoutAmount     decimal.Decimal `gorm:"type:numeric(14,2);default:0" json:"payout_amount"`
	TotalBetAmount   decimal.Decimal `gorm:"type:numeric(14,2);default:0" json:"total_bet_amount"`
	DeductedAmount   decimal.Decimal `gorm:"type:numeric(14,2);default:0" json:"deducted_amount"`
	RemainingBalance decimal.Decimal `gorm:"type:numeric(14,2);default:0" json:"remaining_balance"`

	Note string `gorm:"size:255" json:"note,omitempty"`
}
