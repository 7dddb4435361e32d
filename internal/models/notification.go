package models

import "time"

// Notification представляет уведомление для владельца адреса
type Notification struct {
	ID        string                 `json:"_id" db:"id"`
	Address   string                 `json:"address" db:"address"` // получатель
	Type      string                 `json:"type" db:"type"`       // offer
	Action    string                 `json:"action" db:"action"`
	Fields    map[string]interface{} `json:"fields,omitempty" db:"fields"` // JSON в БД
	IsRead    bool                   `json:"isRead" db:"is_read"`
	CreatedAt time.Time              `json:"createdAt" db:"created_at"`
}

// Типы уведомлений
const (
	NotificationTypeOffer = "offer"
)

// Заголовки событий сделки (ключи локализации фронтенда)
const (
	ActionOfferReceived     = "dealFlowMessageTitleOfferReceived"
	ActionOfferAccepted     = "dealFlowMessageTitleOfferAccepted"
	ActionCollectPayment    = "dealFlowMessageTitleCollectPayment"
	ActionCollectSecurities = "dealFlowMessageTitleCollectSecurities"
	ActionDealClosed        = "dealFlowMessageTitleDealClosed"
	ActionOfferCancelled    = "dealFlowMessageTitleOfferCancelled"
	ActionOfferRejected     = "dealFlowMessageTitleOfferRejected"
)
