package rules

import (
	"errors"
	"sort"
	"time"

	"coinops/database"
	"coinops/models"

	"gorm.io/gorm"
)

// Registry holds the per-machine override-rule slot. The slot carries at
// most one active rule; a manual rule never replaces an active jackpot rule
// (or the other way round) without an explicit clear in between.
type Registry struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Registry {
	return &Registry{db: db}
}

// AttachJackpotRule activates a jackpot rule capping the number of winners
// for the given live session. A previously active jackpot rule is
// superseded; an active manual rule makes the attach fail.
func (r *Registry) AttachJackpotRule(machineID uint, sessionID string, maxWinners int) (*models.OverrideRule, error) {
	if maxWinners < 1 || maxWinners > 10 {
		return nil, models.Validationf("max winners must be between 1 and 10")
	}
	return r.attach(machineID, sessionID, models.OverrideRule{
		RuleType:   models.RuleTypeJackpot,
		MaxWinners: &maxWinners,
	})
}

// AttachManualRule activates a manual rule restricting eligible winner
// buttons. An active jackpot rule makes the attach fail.
func (r *Registry) AttachManualRule(machineID uint, sessionID string, allowedButtons []int) (*models.OverrideRule, error) {
	if len(allowedButtons) == 0 {
		return nil, models.Validationf("allowed buttons must not be empty")
	}
	seen := make(map[int]bool, len(allowedButtons))
	buttons := make([]int, 0, len(allowedButtons))
	for _, b := range allowedButtons {
		if b < 1 || b > 12 {
			return nil, models.Validationf("button %d is outside 1-12", b)
		}
		if !seen[b] {
			seen[b] = true
			buttons = append(buttons, b)
		}
	}
	sort.Ints(buttons)

	encoded, err := models.EncodeButtons(buttons)
	if err != nil {
		return nil, err
	}
	return r.attach(machineID, sessionID, models.OverrideRule{
		RuleType:       models.RuleTypeManual,
		AllowedButtons: encoded,
	})
}

func (r *Registry) attach(machineID uint, sessionID string, rule models.OverrideRule) (*models.OverrideRule, error) {
	var created *models.OverrideRule
	err := r.db.Transaction(func(tx *gorm.DB) error {
		// Lock the machine row; attach/clear/complete serialize on it.
		var machine models.Machine
		if err := database.ForUpdate(tx).First(&machine, machineID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.Validationf("machine %d not found", machineID)
			}
			return err
		}

		var session models.GameSession
		if err := tx.Where("session_id = ? AND machine_id = ?", sessionID, machineID).
			First(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.Validationf("session %s not found on machine %d", sessionID, machineID)
			}
			return err
		}
		if session.Status != models.SessionStatusActive {
			return models.Conflictf("session %s is %s", sessionID, session.Status)
		}

		var active models.OverrideRule
		err := tx.Where("machine_id = ? AND active = ?", machineID, true).First(&active).Error
		switch {
		case err == nil:
			if active.RuleType != rule.RuleType {
				return models.Conflictf("a %s rule is active for machine %d; clear it first",
					active.RuleType, machineID)
			}
			// Same type: the newer rule supersedes the older one.
			if err := deactivate(tx, &active); err != nil {
				return err
			}
		case errors.Is(err, gorm.ErrRecordNotFound):
			// Empty slot.
		default:
			return err
		}

		rule.MachineID = machineID
		rule.SessionID = sessionID
		rule.StartTime = time.Now()
		rule.Active = true
		if err := tx.Create(&rule).Error; err != nil {
			return err
		}

		stamp := map[string]any{
			"applied_rule_id":   rule.ID,
			"applied_rule_type": rule.RuleType,
		}
		if err := tx.Model(&session).Updates(stamp).Error; err != nil {
			return err
		}

		created = &rule
		return nil
	})
	return created, err
}

// ClearRule deactivates whatever rule is active. No-op when the slot is
// empty.
func (r *Registry) ClearRule(machineID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return r.Close(tx, machineID)
	})
}

// ActiveRule returns the machine's active rule, or nil when the slot is
// empty.
func (r *Registry) ActiveRule(machineID uint) (*models.OverrideRule, error) {
	return r.Resolve(r.db, machineID)
}

// Resolve reads the active rule inside the caller's transaction. Used by the
// session engine at completion.
func (r *Registry) Resolve(tx *gorm.DB, machineID uint) (*models.OverrideRule, error) {
	var rule models.OverrideRule
	err := tx.Where("machine_id = ? AND active = ?", machineID, true).First(&rule).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rule, nil
}

// Close empties the rule slot inside the caller's transaction.
func (r *Registry) Close(tx *gorm.DB, machineID uint) error {
	now := time.Now()
	return tx.Model(&models.OverrideRule{}).
		Where("machine_id = ? AND active = ?", machineID, true).
		Updates(map[string]any{"active": false, "end_time": now}).Error
}

func deactivate(tx *gorm.DB, rule *models.OverrideRule) error {
	now := time.Now()
	return tx.Model(rule).
		Updates(map[string]any{"active": false, "end_time": now}).Error
}
