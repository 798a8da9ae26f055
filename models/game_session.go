package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	SessionStatusActive    = "Active"
	SessionStatusCompleted = "Completed"
	SessionStatusCancelled = "Cancelled"
)

const (
	WinnerTypeRegular = "regular"
	WinnerTypeManual  = "manual"
	WinnerTypeJackpot = "jackpot"
)

type GameSession struct {
	gorm.Model

	SessionID string `gorm:"size:36;uniqueIndex;not null" json:"session_id"`
	MachineID uint   `gorm:"index" json:"machine_id"`
	Machine   Machine `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE" json:"-"`

	Status    string     `gorm:"size:16;index" json:"status"`
	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	BalanceBefore decimal.Decimal `gorm:"type:numeric(14,2);default:0" json:"balance_before_game"`
	BalanceAfter  decimal.Decimal `gorm:"type:numeric(14,2);default:0" json:"balance_after_game"`

	TotalBetAmount      decimal.Decimal `gorm:"type:numeric(14,2);default:0" json:"total_bet_amount"`
	TotalDeductedAmount decimal.Decimal `gorm:"type:numeric(14,2);default:0" json:"total_deducted_amount"`
	FinalAmount         decimal.Decimal `gorm:"type:numeric(14,2);default:0" json:"final_amount"`

	AppliedRuleID   *uint  `json:"applied_rule_id,omitempty"`
	AppliedRuleType string `gorm:"size:16" json:"applied_rule_type,omitempty"`

	Winners datatypes.JSON `json:"winners,omitempty"`

	Presses []ButtonPress `gorm:"foreignKey:GameSessionID" json:"button_presses,omitempty"`
}

func (s *GameSession) BeforeCreate(tx *gorm.DB) (err error) {
	if s.SessionID == "" {
		s.SessionID = strings.ToLower(uuid.New().String())
	}
	return nil
}

// ButtonPress accumulates presses and wagered amount for one button of one
// session. Unique per (session, button); increments are upserted.
type ButtonPress struct {
	gorm.Model

	GameSessionID uint            `gorm:"index:idx_session_button,unique" json:"-"`
	ButtonNumber  int             `gorm:"index:idx_session_button,unique" json:"button_number"`
	PressCount    int             `gorm:"default:0" json:"press_count"`
	TotalAmount   decimal.Decimal `gorm:"type:numeric(14,2);default:0" json:"total_amount"`
}

// Winner is frozen into GameSession.Winners at completion.
type Winner struct {
	ButtonNumber int             `json:"button_number"`
	PayOutAmount decimal.Decimal `json:"pay_out_amount"`
	WinnerType   string          `json:"winner_type"`
}
