package models

import "time"

// Transaction - запись о блокчейн транзакции
type Transaction struct {
	ID           string    `json:"_id" db:"id"`
	TxID         string    `json:"txId" db:"tx_id"`
	FromAddress  string    `json:"fromAddress" db:"from_address"`
	ToAddress    string    `json:"toAddress" db:"to_address"`
	AddressTxID  string    `json:"addressTxid" db:"address_tx_id"`
	AddressVout  int       `json:"addressVout" db:"address_vout"`
	Type         string    `json:"type" db:"type"`                  // TRANSFER, TRADE, CANCEL, AUTHORIZE, BUY, SELL
	CurrencyType string    `json:"currencyType" db:"currency_type"` // BTC, EQB
	Amount       int64     `json:"amount" db:"amount"`              // в базовых единицах
	Fee          int64     `json:"fee" db:"fee"`
	Hex          string    `json:"hex,omitempty" db:"hex"`
	IssuanceID   string    `json:"issuanceId,omitempty" db:"issuance_id"`
	OfferID      string    `json:"offerId,omitempty" db:"offer_id"`
	Description  string    `json:"description,omitempty" db:"description"`
	CreatedAt    time.Time `json:"createdAt" db:"created_at"`
}

// Типы транзакций
const (
	TxTypeTransfer  = "TRANSFER"
	TxTypeTrade     = "TRADE"
	TxTypeCancel    = "CANCEL"
	TxTypeAuthorize = "AUTHORIZE"
	TxTypeBuy       = "BUY"
	TxTypeSell      = "SELL"
)

// Валюты
const (
	CurrencyBTC = "BTC"
	CurrencyEQB = "EQB"
)

// MovesShares возвращает true если транзакция перемещает бумаги между адресами
func (t *Transaction) MovesShares() bool {
	return t.Type == TxTypeTransfer || t.Type == TxTypeTrade
}
