package models

import "time"

// Issuance - эмиссия ценной бумаги в блокчейне
type Issuance struct {
	ID               string    `json:"_id" db:"id"`
	UserID           string    `json:"userId" db:"user_id"`
	CompanyID        string    `json:"companyId" db:"company_id"`
	CompanyName      string    `json:"companyName" db:"company_name"`
	IssuanceName     string    `json:"issuanceName" db:"issuance_name"`
	IssuanceType     string    `json:"issuanceType" db:"issuance_type"`
	IssuanceAddress  string    `json:"issuanceAddress" db:"issuance_address"`
	SharesAuthorized int64     `json:"sharesAuthorized" db:"shares_authorized"`
	SharesIssued     int64     `json:"sharesIssued" db:"shares_issued"`
	CreatedAt        time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt        time.Time `json:"updatedAt" db:"updated_at"`
}
