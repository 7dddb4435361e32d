package websocket

import (
	"time"

	"settlement/internal/models"
)

// MessageType определяет тип WebSocket сообщения
type MessageType string

// Типы исходящих сообщений
const (
	// MessageTypeNotification - новое уведомление для адреса, на который подписан клиент
	MessageTypeNotification MessageType = "notification"

	// MessageTypeSubscribed - подтверждение подписки, содержит текущий список адресов
	MessageTypeSubscribed MessageType = "subscribed"

	// MessageTypeError - команда клиента отклонена
	MessageTypeError MessageType = "error"
)

// Команды клиента
const (
	CommandSubscribe   = "subscribe"
	CommandUnsubscribe = "unsubscribe"
)

// BaseMessage - базовая структура для всех WebSocket сообщений
type BaseMessage struct {
	Type      MessageType `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
}

// ClientCommand - входящее сообщение клиента
//
//	{"action": "subscribe", "addresses": ["mkBg6Gwq...", "..."]}
type ClientCommand struct {
	Action    string   `json:"action"`
	Addresses []string `json:"addresses"`
}

// NotificationMessage - уведомление о событии сделки
type NotificationMessage struct {
	BaseMessage
	Data *NotificationData `json:"data"`
}

// NotificationData - данные уведомления
type NotificationData struct {
	ID        string                 `json:"_id"`
	Address   string                 `json:"address"`
	Type      string                 `json:"notificationType"`
	Action    string                 `json:"action"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
	CreatedAt time.Time              `json:"createdAt"`
}

// SubscribedMessage - ответ на subscribe/unsubscribe
type SubscribedMessage struct {
	BaseMessage
	Addresses []string `json:"addresses"`
}

// ErrorMessage - ответ на некорректную команду
type ErrorMessage struct {
	BaseMessage
	Error string `json:"error"`
}

// NewNotificationMessage создает сообщение уведомления
func NewNotificationMessage(n *models.Notification) *NotificationMessage {
	return &NotificationMessage{
		BaseMessage: BaseMessage{
			Type:      MessageTypeNotification,
			Timestamp: time.Now(),
		},
		Data: &NotificationData{
			ID:        n.ID,
			Address:   n.Address,
			Type:      n.Type,
			Action:    n.Action,
			Fields:    n.Fields,
			CreatedAt: n.CreatedAt,
		},
	}
}

func newSubscribedMessage(addresses []string) *SubscribedMessage {
	return &SubscribedMessage{
		BaseMessage: BaseMessage{Type: MessageTypeSubscribed, Timestamp: time.Now()},
		Addresses:   addresses,
	}
}

func newErrorMessage(msg string) *ErrorMessage {
	return &ErrorMessage{
		BaseMessage: BaseMessage{Type: MessageTypeError, Timestamp: time.Now()},
		Error:       msg,
	}
}
