package models

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// ValidationError rejects bad input before any mutation.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

func Validationf(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// ConflictError rejects an operation that clashes with current state
// (rule-type clash, duplicate active session, double completion). The caller
// must clear or complete first; no partial state is left behind.
type ConflictError struct {
	Reason string
}

func (e *ConflictError) Error() string {
	return "conflict: " + e.Reason
}

func Conflictf(format string, args ...any) *ConflictError {
	return &ConflictError{Reason: fmt.Sprintf(format, args...)}
}

// InsufficientBalanceError rejects a withdrawal that exceeds the machine
// balance. The balance is left unchanged.
type InsufficientBalanceError struct {
	Balance   decimal.Decimal
	Requested decimal.Decimal
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient balance: have %s, requested %s",
		e.Balance.StringFixed(2), e.Requested.StringFixed(2))
}

// ConfigurationError surfaces missing machine configuration (no time bands).
// A session that cannot resolve a deduction percentage stays Active until the
// configuration is fixed.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "configuration error: " + e.Reason
}
