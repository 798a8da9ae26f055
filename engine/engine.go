package engine

import (
	"encoding/json"
	"errors"
	"time"

	"coinops/bands"
	"coinops/database"
	"coinops/events"
	"coinops/ledger"
	"coinops/models"
	"coinops/rules"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WinnerCandidate is a payout-eligible button reported by the hardware
// controller at session completion. The engine enforces the override rule on
// top of it; it never invents winners of its own.
type WinnerCandidate struct {
	ButtonNumber int             `json:"button_number"`
	PayOutAmount decimal.Decimal `json:"pay_out_amount"`
}

// Engine drives one live session per machine from start to completion:
// press accrual, rule and band resolution, winner selection and settlement.
type Engine struct {
	db     *gorm.DB
	ledger *ledger.Service
	bands  *bands.Service
	rules  *rules.Registry
	events *events.Broadcaster
	locks  *machineLocks
	gates  *pressGates
	rate   decimal.Decimal
}

func New(db *gorm.DB, l *ledger.Service, b *bands.Service, r *rules.Registry,
	ev *events.Broadcaster, unitRate decimal.Decimal) *Engine {
	if unitRate.LessThanOrEqual(decimal.Zero) {
		unitRate = decimal.NewFromInt(10)
	}
	return &Engine{
		db:     db,
		ledger: l,
		bands:  b,
		rules:  r,
		events: ev,
		locks:  newMachineLocks(),
		gates:  newPressGates(),
		rate:   unitRate,
	}
}

// StartSession opens the machine's single live session and captures the
// balance before play.
func (e *Engine) StartSession(machineID uint) (*models.GameSession, error) {
	lock := e.locks.get(machineID)
	lock.Lock()
	defer lock.Unlock()

	var session models.GameSession
	err := e.db.Transaction(func(tx *gorm.DB) error {
		machine, err := e.lockMachine(tx, machineID)
		if err != nil {
			return err
		}

		var count int64
		if err := tx.Model(&models.GameSession{}).
			Where("machine_id = ? AND status = ?", machineID, models.SessionStatusActive).
			Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return models.Conflictf("machine %d already has an active session", machineID)
		}

		session = models.GameSession{
			MachineID:     machineID,
			Status:        models.SessionStatusActive,
			StartTime:     time.Now(),
			BalanceBefore: machine.Balance,
			BalanceAfter:  machine.Balance,
		}
		return tx.Create(&session).Error
	})
	if err != nil {
		return nil, err
	}

	e.events.Publish(machineID, events.EventSessionStarted, true, map[string]any{
		"sessionId": session.SessionID,
	})
	return &session, nil
}

// RecordPress accrues presses for one button of the live session. Presses
// do not take the machine lock; completion drains them through the gate.
func (e *Engine) RecordPress(machineID uint, buttonNumber, pressDelta int) (*models.ButtonPress, error) {
	if buttonNumber < 1 || buttonNumber > 12 {
		return nil, models.Validationf("button %d is outside 1-12", buttonNumber)
	}
	if pressDelta < 1 {
		return nil, models.Validationf("press delta must be at least 1")
	}

	gate := e.gates.get(machineID)
	gate.RLock()
	defer gate.RUnlock()

	amount := e.rate.Mul(decimal.NewFromInt(int64(pressDelta)))

	var press models.ButtonPress
	err := e.db.Transaction(func(tx *gorm.DB) error {
		var session models.GameSession
		if err := tx.Where("machine_id = ? AND status = ?", machineID, models.SessionStatusActive).
			First(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.Conflictf("machine %d has no active session", machineID)
			}
			return err
		}

		row := models.ButtonPress{
			GameSessionID: session.ID,
			ButtonNumber:  buttonNumber,
			PressCount:    pressDelta,
			TotalAmount:   amount,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "game_session_id"}, {Name: "button_number"}},
			DoUpdates: clause.Assignments(map[string]any{
				"press_count":  gorm.Expr("press_count + ?", pressDelta),
				"total_amount": gorm.Expr("total_amount + ?", amount),
				"updated_at":   time.Now(),
			}),
		}).Create(&row).Error; err != nil {
			return err
		}

		return tx.Where("game_session_id = ? AND button_number = ?", session.ID, buttonNumber).
			First(&press).Error
	})
	if err != nil {
		return nil, err
	}

	e.events.Publish(machineID, events.EventPressesUpdated, true, map[string]any{
		"buttonNumber": press.ButtonNumber,
		"pressCount":   press.PressCount,
		"totalAmount":  press.TotalAmount,
	})
	return &press, nil
}

// CompleteSession finalizes the live session: resolves the applied rule and
// the time band, selects winners from the hardware candidates, settles the
// balance and freezes the session. Completing twice is rejected.
func (e *Engine) CompleteSession(machineID uint, candidates []WinnerCandidate) (*models.GameSession, error) {
	for _, cand := range candidates {
		if cand.ButtonNumber < 1 || cand.ButtonNumber > 12 {
			return nil, models.Validationf("winner button %d is outside 1-12", cand.ButtonNumber)
		}
		if cand.PayOutAmount.IsNegative() {
			return nil, models.Validationf("payout amount must not be negative")
		}
	}

	lock := e.locks.get(machineID)
	lock.Lock()
	defer lock.Unlock()

	// Drain in-flight press increments before reading totals and hold new
	// ones back until the session is frozen.
	gate := e.gates.get(machineID)
	gate.Lock()
	defer gate.Unlock()

	var result models.GameSession
	err := e.db.Transaction(func(tx *gorm.DB) error {
		machine, err := e.lockMachine(tx, machineID)
		if err != nil {
			return err
		}

		var session models.GameSession
		if err := tx.Where("machine_id = ? AND status = ?", machineID, models.SessionStatusActive).
			First(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.Conflictf("machine %d has no active session", machineID)
			}
			return err
		}

		rule, err := e.rules.Resolve(tx, machineID)
		if err != nil {
			return err
		}

		band, err := e.bands.ResolveBand(machineID, session.StartTime)
		if err != nil {
			// No bands configured: roll back, session stays Active.
			return err
		}

		var presses []models.ButtonPress
		if err := tx.Where("game_session_id = ?", session.ID).
			Order("button_number asc").Find(&presses).Error; err != nil {
			return err
		}

		totalBet := decimal.Zero
		for _, p := range presses {
			totalBet = totalBet.Add(p.TotalAmount)
		}

		winners, err := selectWinners(rule, candidates)
		if err != nil {
			return err
		}
		payoutTotal := decimal.Zero
		for _, w := range winners {
			payoutTotal = payoutTotal.Add(w.PayOutAmount)
		}

		deducted, net, err := e.ledger.ApplySessionSettlement(
			tx, machine, session.SessionID, totalBet, band.Percentage, payoutTotal)
		if err != nil {
			return err
		}

		winnersJSON, err := json.Marshal(winners)
		if err != nil {
			return err
		}

		now := time.Now()
		updates := map[string]any{
			"status":                models.SessionStatusCompleted,
			"end_time":              now,
			"balance_after":         machine.Balance,
			"total_bet_amount":      totalBet,
			"total_deducted_amount": deducted,
			"final_amount":          net,
			"winners":               datatypes.JSON(winnersJSON),
		}
		if rule != nil {
			updates["applied_rule_id"] = rule.ID
			updates["applied_rule_type"] = rule.RuleType
		}

		res := tx.Model(&models.GameSession{}).
			Where("id = ? AND status = ?", session.ID, models.SessionStatusActive).
			Updates(updates)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.Conflictf("session %s is already finalized", session.SessionID)
		}

		if err := e.rules.Close(tx, machineID); err != nil {
			return err
		}

		return tx.Preload("Presses").First(&result, session.ID).Error
	})
	if err != nil {
		return nil, err
	}

	e.events.Publish(machineID, events.EventSessionCompleted, false, map[string]any{
		"sessionId":      result.SessionID,
		"totalBetAmount": result.TotalBetAmount,
		"finalAmount":    result.FinalAmount,
	})
	return &result, nil
}

// CancelSession aborts the live session on a hardware fault: the rule slot
// is cleared and no settlement or Transaction is written.
func (e *Engine) CancelSession(machineID uint) (*models.GameSession, error) {
	lock := e.locks.get(machineID)
	lock.Lock()
	defer lock.Unlock()

	gate := e.gates.get(machineID)
	gate.Lock()
	defer gate.Unlock()

	var result models.GameSession
	err := e.db.Transaction(func(tx *gorm.DB) error {
		if _, err := e.lockMachine(tx, machineID); err != nil {
			return err
		}

		var session models.GameSession
		if err := tx.Where("machine_id = ? AND status = ?", machineID, models.SessionStatusActive).
			First(&session).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return models.Conflictf("machine %d has no active session", machineID)
			}
			return err
		}

		now := time.Now()
		res := tx.Model(&models.GameSession{}).
			Where("id = ? AND status = ?", session.ID, models.SessionStatusActive).
			Updates(map[string]any{"status": models.SessionStatusCancelled, "end_time": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return models.Conflictf("session %s is already finalized", session.SessionID)
		}

		if err := e.rules.Close(tx, machineID); err != nil {
			return err
		}

		return tx.First(&result, session.ID).Error
	})
	if err != nil {
		return nil, err
	}

	e.events.Publish(machineID, events.EventSessionCompleted, false, map[string]any{
		"sessionId": result.SessionID,
		"cancelled": true,
	})
	return &result, nil
}

func (e *Engine) lockMachine(tx *gorm.DB, machineID uint) (*models.Machine, error) {
	var machine models.Machine
	if err := database.ForUpdate(tx).First(&machine, machineID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.Validationf("machine %d not found", machineID)
		}
		return nil, err
	}
	return &machine, nil
}

// selectWinners applies the resolved override rule to the hardware
// candidates. With no rule the candidate list passes through unchanged
// (regular selection happens in the controller hardware).
func selectWinners(rule *models.OverrideRule, candidates []WinnerCandidate) ([]models.Winner, error) {
	winners := make([]models.Winner, 0, len(candidates))

	switch {
	case rule == nil:
		for _, cand := range candidates {
			winners = append(winners, models.Winner{
				ButtonNumber: cand.ButtonNumber,
				PayOutAmount: cand.PayOutAmount,
				WinnerType:   models.WinnerTypeRegular,
			})
		}

	case rule.RuleType == models.RuleTypeJackpot:
		limit := len(candidates)
		if rule.MaxWinners != nil && *rule.MaxWinners < limit {
			limit = *rule.MaxWinners
		}
		for _, cand := range candidates[:limit] {
			winners = append(winners, models.Winner{
				ButtonNumber: cand.ButtonNumber,
				PayOutAmount: cand.PayOutAmount,
				WinnerType:   models.WinnerTypeJackpot,
			})
		}

	case rule.RuleType == models.RuleTypeManual:
		allowed, err := rule.Buttons()
		if err != nil {
			return nil, err
		}
		allowedSet := make(map[int]bool, len(allowed))
		for _, b := range allowed {
			allowedSet[b] = true
		}
		for _, cand := range candidates {
			if !allowedSet[cand.ButtonNumber] {
				continue
			}
			winners = append(winners, models.Winner{
				ButtonNumber: cand.ButtonNumber,
				PayOutAmount: cand.PayOutAmount,
				WinnerType:   models.WinnerTypeManual,
			})
		}

	default:
		return nil, models.Validationf("unknown rule type %q", rule.RuleType)
	}

	return winners, nil
}
