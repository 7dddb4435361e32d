package service

import (
	"context"
	"errors"

	"settlement/internal/metrics"
	"settlement/internal/models"
	"settlement/pkg/utils"
)

// ErrEmptyRecipient - у уведомления нет адреса получателя
var ErrEmptyRecipient = errors.New("notification address is required")

// NotificationService сохраняет уведомления и доставляет их получателям.
//
// Доставка:
// - запись в БД (история, чтение через API)
// - WebSocket клиентам, подписанным на адрес получателя
// - публикация в Redis для остальных экземпляров сервиса
//
// Ошибки WebSocket/Redis не откатывают запись: уведомление уже сохранено.
type NotificationService struct {
	notificationRepo NotificationRepositoryInterface
	wsHub            WebSocketBroadcaster
	publisher        NotificationPublisher
	log              *utils.Logger
}

// NewNotificationService создает новый экземпляр NotificationService.
func NewNotificationService(notificationRepo NotificationRepositoryInterface) *NotificationService {
	return &NotificationService{
		notificationRepo: notificationRepo,
		log:              utils.L().WithComponent("notifications"),
	}
}

// SetWebSocketHub устанавливает WebSocket hub для доставки уведомлений.
//
// Вызывается после инициализации Hub в main.go:
//
//	notifService := service.NewNotificationService(notifRepo)
//	notifService.SetWebSocketHub(wsHub)
func (s *NotificationService) SetWebSocketHub(hub WebSocketBroadcaster) {
	s.wsHub = hub
}

// SetPublisher устанавливает Redis publisher
func (s *NotificationService) SetPublisher(p NotificationPublisher) {
	s.publisher = p
}

// Send сохраняет уведомление и рассылает его
func (s *NotificationService) Send(ctx context.Context, n *models.Notification) error {
	if n == nil {
		return nil
	}
	if n.Address == "" {
		return ErrEmptyRecipient
	}

	if err := s.notificationRepo.Create(ctx, n); err != nil {
		return err
	}
	metrics.NotificationsSent.WithLabelValues(n.Action).Inc()

	if s.wsHub != nil {
		s.wsHub.BroadcastNotification(n)
	}

	if s.publisher != nil {
		if err := s.publisher.Publish(ctx, n); err != nil {
			s.log.Warn("failed to publish notification",
				utils.Address(n.Address),
				utils.String("action", n.Action),
				utils.Err(err),
			)
		}
	}

	return nil
}

// GetByAddress возвращает последние уведомления адреса.
//
// limit: по умолчанию 100, максимум 500.
func (s *NotificationService) GetByAddress(ctx context.Context, address string, limit int) ([]*models.Notification, error) {
	if limit <= 0 {
		limit = 100
	}
	if limit > 500 {
		limit = 500
	}
	return s.notificationRepo.GetByAddress(ctx, address, limit)
}

// MarkRead помечает уведомление прочитанным
func (s *NotificationService) MarkRead(ctx context.Context, id string) error {
	return s.notificationRepo.MarkRead(ctx, id)
}
