package models

import "time"

// PortfolioAddress - адрес кошелька, импортированный в портфель
type PortfolioAddress struct {
	ID            string    `json:"_id" db:"id"`
	PortfolioID   string    `json:"portfolioId" db:"portfolio_id"`
	Index         int       `json:"index" db:"address_index"`
	ImportAddress string    `json:"importAddress" db:"import_address"`
	Type          string    `json:"type" db:"type"` // BTC, EQB
	IsChange      bool      `json:"isChange" db:"is_change"`
	IsUsed        bool      `json:"isUsed" db:"is_used"`
	CreatedAt     time.Time `json:"createdAt" db:"created_at"`
}
