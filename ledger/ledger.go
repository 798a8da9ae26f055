package ledger

import (
	"errors"

	"coinops/database"
	"coinops/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var oneHundred = decimal.NewFromInt(100)

// Service owns every mutation of machine deposit balances. Each mutation
// locks the machine row, applies the signed adjustment and appends exactly
// one Transaction, all inside one database transaction.
type Service struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Service {
	return &Service{db: db}
}

// AddAmount credits the machine balance and records the deposit.
func (s *Service) AddAmount(machineID uint, amount decimal.Decimal, note string) (decimal.Decimal, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, models.Validationf("amount must be greater than zero")
	}

	var newBalance decimal.Decimal
	err := s.db.Transaction(func(tx *gorm.DB) error {
		machine, err := lockMachine(tx, machineID)
		if err != nil {
			return err
		}

		machine.Balance = machine.Balance.Add(amount)
		if err := tx.Model(machine).Update("balance", machine.Balance).Error; err != nil {
			return err
		}

		trx := models.Transaction{
			MachineID:        machine.ID,
			AddedAmount:      amount,
			RemainingBalance: machine.Balance,
			Note:             note,
		}
		if err := tx.Create(&trx).Error; err != nil {
			return err
		}

		newBalance = machine.Balance
		return nil
	})
	return newBalance, err
}

// WithdrawAmount debits the machine balance. The balance never goes negative
// through this path; over-withdrawals are rejected outright.
func (s *Service) WithdrawAmount(machineID uint, amount decimal.Decimal, note string) (decimal.Decimal, error) {
	if amount.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero, models.Validationf("amount must be greater than zero")
	}

	var newBalance decimal.Decimal
	err := s.db.Transaction(func(tx *gorm.DB) error {
		machine, err := lockMachine(tx, machineID)
		if err != nil {
			return err
		}

		if amount.GreaterThan(machine.Balance) {
			return &models.InsufficientBalanceError{
				Balance:   machine.Balance,
				Requested: amount,
			}
		}

		machine.Balance = machine.Balance.Sub(amount)
		if err := tx.Model(machine).Update("balance", machine.Balance).Error; err != nil {
			return err
		}

		trx := models.Transaction{
			MachineID:        machine.ID,
			WithdrawnAmount:  amount,
			RemainingBalance: machine.Balance,
			Note:             note,
		}
		if err := tx.Create(&trx).Error; err != nil {
			return err
		}

		newBalance = machine.Balance
		return nil
	})
	return newBalance, err
}

// ApplySessionSettlement applies the net of a completed session to the
// machine balance: captured bets minus the time-band deduction minus the
// payout. The net may be negative; the deposit float absorbs it. Runs inside
// the caller's transaction so the session freeze, the balance change and the
// Transaction row commit together.
func (s *Service) ApplySessionSettlement(tx *gorm.DB, machine *models.Machine, sessionID string,
	betTotal, deductionPct, payoutTotal decimal.Decimal) (deducted, net decimal.Decimal, err error) {

	deducted = betTotal.Mul(deductionPct).Div(oneHundred).Round(2)
	net = betTotal.Sub(deducted).Sub(payoutTotal)

	machine.Balance = machine.Balance.Add(net)
	if err = tx.Model(machine).Update("balance", machine.Balance).Error; err != nil {
		return decimal.Zero, decimal.Zero, err
	}

	trx := models.Transaction{
		MachineID:        machine.ID,
		SessionID:        sessionID,
		PayoutAmount:     payoutTotal,
		TotalBetAmount:   betTotal,
		DeductedAmount:   deducted,
		RemainingBalance: machine.Balance,
		Note:             "session settlement",
	}
	if err = tx.Create(&trx).Error; err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	return deducted, net, nil
}

func lockMachine(tx *gorm.DB, machineID uint) (*models.Machine, error) {
	var machine models.Machine
	if err := database.ForUpdate(tx).First(&machine, machineID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.Validationf("machine %d not found", machineID)
		}
		return nil, err
	}
	return &machine, nil
}
