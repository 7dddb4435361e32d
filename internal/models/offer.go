package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Offer представляет предложение сделки по ордеру (HTLC-расчёт)
type Offer struct {
	ID              string          `json:"_id" db:"id"`
	UserID          string          `json:"userId" db:"user_id"`
	OrderID         string          `json:"orderId" db:"order_id"`
	IssuanceID      string          `json:"issuanceId" db:"issuance_id"`
	IssuanceAddress string          `json:"issuanceAddress" db:"issuance_address"`
	PortfolioID     string          `json:"portfolioId,omitempty" db:"portfolio_id"`
	Type            string          `json:"type" db:"type"`          // BUY, SELL
	Status          string          `json:"status" db:"status"`      // OPEN, TRADING, CLOSED, CANCELLED
	HTLCStep        int             `json:"htlcStep" db:"htlc_step"` // 1..4
	Quantity        int64           `json:"quantity" db:"quantity"`
	Price           decimal.Decimal `json:"price" db:"price"`
	BtcAddress      string          `json:"btcAddress" db:"btc_address"` // куда получать оплату
	EqbAddress      string          `json:"eqbAddress" db:"eqb_address"` // куда получать бумаги
	Hashlock        string          `json:"hashlock,omitempty" db:"hashlock"`
	Timelock        int64           `json:"timelock,omitempty" db:"timelock"`
	HTLCTxID1       string          `json:"htlcTxId1,omitempty" db:"htlc_tx_id1"`
	HTLCTxID2       string          `json:"htlcTxId2,omitempty" db:"htlc_tx_id2"`
	HTLCTxID3       string          `json:"htlcTxId3,omitempty" db:"htlc_tx_id3"`
	HTLCTxID4       string          `json:"htlcTxId4,omitempty" db:"htlc_tx_id4"`
	CompanyName     string          `json:"companyName,omitempty" db:"company_name"`
	IssuanceName    string          `json:"issuanceName,omitempty" db:"issuance_name"`
	Version         int             `json:"version" db:"version"` // оптимистичная блокировка
	CreatedAt       time.Time       `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time       `json:"updatedAt" db:"updated_at"`
}

// Типы предложений и ордеров
const (
	TradeTypeBuy  = "BUY"
	TradeTypeSell = "SELL"
)

// Статусы предложения (совпадают со статусами ордера)
const (
	OfferStatusOpen      = "OPEN"
	OfferStatusTrading   = "TRADING"
	OfferStatusClosed    = "CLOSED"
	OfferStatusCancelled = "CANCELLED"
)

// Шаги HTLC
const (
	HTLCStepCreated  = 1 // предложение создано
	HTLCStepAccepted = 2 // держатель ордера принял предложение
	HTLCStepFunded   = 3 // обе стороны заблокировали средства
	HTLCStepClosed   = 4 // секрет раскрыт, сделка закрыта
)

// IsTerminal возвращает true если предложение больше нельзя менять
func (o *Offer) IsTerminal() bool {
	return o.Status == OfferStatusClosed || o.Status == OfferStatusCancelled
}

// HTLCTxID возвращает идентификатор HTLC транзакции для шага (1..4)
func (o *Offer) HTLCTxID(step int) string {
	switch step {
	case 1:
		return o.HTLCTxID1
	case 2:
		return o.HTLCTxID2
	case 3:
		return o.HTLCTxID3
	case 4:
		return o.HTLCTxID4
	default:
		return ""
	}
}

// OwnsAddress проверяет, принадлежит ли адрес стороне предложения
func (o *Offer) OwnsAddress(address string) bool {
	if address == "" {
		return false
	}
	return address == o.EqbAddress || address == o.BtcAddress
}
