package models

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RuleTypeJackpot = "jackpot"
	RuleTypeManual  = "manual"
)

// OverrideRule is a tagged union on RuleType: jackpot rules carry MaxWinners,
// manual rules carry AllowedButtons. At most one Active rule may exist per
// machine; inactive rules are kept as history.
type OverrideRule struct {
	gorm.Model

	MachineID uint   `gorm:"index" json:"machine_id"`
	SessionID string `gorm:"size:36;index" json:"session_id"`
	RuleType  string `gorm:"size:16" json:"rule_type"`

	MaxWinners     *int           `json:"max_winners,omitempty"`
	AllowedButtons datatypes.JSON `json:"allowed_buttons,omitempty"`

	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`
	Active    bool       `gorm:"index" json:"active"`
}

// Buttons decodes the allowed-button whitelist of a manual rule.
func (r *OverrideRule) Buttons() ([]int, error) {
	if len(r.AllowedButtons) == 0 {
		return nil, nil
	}
	var buttons []int
	if err := json.Unmarshal(r.AllowedButtons, &buttons); err != nil {
		return nil, err
	}
	return buttons, nil
}

func EncodeButtons(buttons []int) (datatypes.JSON, error) {
	raw, err := json.Marshal(buttons)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
