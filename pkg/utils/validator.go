package utils

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Ошибки валидации
var (
	ErrEmptyValue      = errors.New("value is empty")
	ErrInvalidEmail    = errors.New("invalid email format")
	ErrInvalidAddress  = errors.New("invalid address format")
	ErrInvalidTxID     = errors.New("invalid transaction id")
	ErrInvalidType     = errors.New("type must be BUY or SELL")
	ErrInvalidQuantity = errors.New("quantity must be positive")
)

var (
	emailRegex   = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	addressRegex = regexp.MustCompile(`^[a-zA-Z0-9]{26,90}$`)
	txIDRegex    = regexp.MustCompile(`^[a-fA-F0-9]{64}$`)
)

// ValidateEmail проверяет формат email
func ValidateEmail(email string) error {
	if email == "" {
		return ErrEmptyValue
	}
	if !emailRegex.MatchString(email) {
		return ErrInvalidEmail
	}
	return nil
}

// ValidateAddress проверяет формат адреса кошелька (base58 или bech32)
func ValidateAddress(address string) error {
	if address == "" {
		return ErrEmptyValue
	}
	if !addressRegex.MatchString(address) {
		return fmt.Errorf("%w: %q", ErrInvalidAddress, address)
	}
	return nil
}

// ValidateTxID проверяет идентификатор транзакции (64 hex символа)
func ValidateTxID(txID string) error {
	if txID == "" {
		return ErrEmptyValue
	}
	if !txIDRegex.MatchString(txID) {
		return ErrInvalidTxID
	}
	return nil
}

// NormalizeTradeType приводит тип сделки к верхнему регистру
func NormalizeTradeType(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}

// ValidateTradeType проверяет тип сделки без учёта регистра
func ValidateTradeType(t string) error {
	switch NormalizeTradeType(t) {
	case "BUY", "SELL":
		return nil
	}
	return ErrInvalidType
}

// ValidateQuantity проверяет количество бумаг
func ValidateQuantity(q int64) error {
	if q <= 0 {
		return ErrInvalidQuantity
	}
	return nil
}
