package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order представляет постоянное намерение купить/продать бумаги эмиссии
type Order struct {
	ID              string          `json:"_id" db:"id"`
	UserID          string          `json:"userId" db:"user_id"`
	Type            string          `json:"type" db:"type"` // BUY, SELL
	IssuanceID      string          `json:"issuanceId" db:"issuance_id"`
	IssuanceAddress string          `json:"issuanceAddress" db:"issuance_address"`
	PortfolioID     string          `json:"portfolioId" db:"portfolio_id"`
	Quantity        int64           `json:"quantity" db:"quantity"`
	Price           decimal.Decimal `json:"price" db:"price"`
	Status          string          `json:"status" db:"status"` // OPEN, TRADING, CANCELLED, CLOSED
	IsFillOrKill    bool            `json:"isFillOrKill" db:"is_fill_or_kill"`
	GoodFor         int             `json:"goodFor" db:"good_for"` // срок действия в днях
	BtcAddress      string          `json:"btcAddress" db:"btc_address"`
	EqbAddress      string          `json:"eqbAddress" db:"eqb_address"`
	CompanyName     string          `json:"companyName,omitempty" db:"company_name"`
	IssuanceName    string          `json:"issuanceName,omitempty" db:"issuance_name"`
	IssuanceType    string          `json:"issuanceType,omitempty" db:"issuance_type"`
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
}

// Статусы ордера
const (
	OrderStatusOpen      = "OPEN"
	OrderStatusTrading   = "TRADING"
	OrderStatusCancelled = "CANCELLED"
	OrderStatusClosed    = "CLOSED"
)
