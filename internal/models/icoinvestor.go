package models

import "time"

// ICOInvestor - запись о задолженности выплаты инвестору ICO
//
// Locked хранит токен захвата: 0 - запись свободна,
// любое другое значение - запись обрабатывается одним из экземпляров сервиса.
type ICOInvestor struct {
	ID                    string    `json:"_id" db:"id"`
	Email                 string    `json:"email" db:"email"`
	Address               string    `json:"address,omitempty" db:"address"`
	BalanceOwed           *int64    `json:"balanceOwed" db:"balance_owed"` // nil = сумма не указана
	Locked                int64     `json:"locked" db:"locked"`
	ManualPaymentRequired bool      `json:"manualPaymentRequired" db:"manual_payment_required"`
	Status                string    `json:"status" db:"status"`
	PaymentError          string    `json:"paymentError,omitempty" db:"payment_error"`
	CreatedAt             time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt             time.Time `json:"updatedAt" db:"updated_at"`
}

// Статусы выплаты
const (
	PayoutStatusOwed           = "OWED"
	PayoutStatusClaimed        = "CLAIMED"
	PayoutStatusManualRequired = "MANUAL_REQUIRED"
)

// PayoutUnlocked - значение Locked для свободной записи
const PayoutUnlocked int64 = 0
