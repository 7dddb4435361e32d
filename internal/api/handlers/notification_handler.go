package handlers

import (
	"net/http"

	"settlement/internal/models"
	"settlement/internal/service"

	"github.com/gorilla/mux"
)

// NotificationHandler отвечает за чтение уведомлений
//
// Endpoints:
// - GET /api/v1/notifications?address=...&limit=50 - последние уведомления адреса
// - POST /api/v1/notifications/{id}/read - пометить прочитанным
type NotificationHandler struct {
	notificationService service.NotificationServiceInterface
}

// NewNotificationHandler создает новый NotificationHandler с внедрением зависимости
func NewNotificationHandler(notificationService service.NotificationServiceInterface) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
	}
}

// GetNotificationsResponse представляет ответ списка уведомлений
type GetNotificationsResponse struct {
	Notifications []*models.Notification `json:"notifications"`
	Total         int                    `json:"total"`
}

// GetNotifications возвращает уведомления адреса
//
// Query параметры:
// - address (string, обязательный)
// - limit (int): по умолчанию 100, максимум 500
func (h *NotificationHandler) GetNotifications(w http.ResponseWriter, r *http.Request) {
	address := r.URL.Query().Get("address")
	if address == "" {
		respondWithError(w, http.StatusBadRequest, "missing_address", "address is required", "")
		return
	}

	notifications, err := h.notificationService.GetByAddress(r.Context(), address, parseLimit(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if notifications == nil {
		notifications = []*models.Notification{}
	}

	respondWithJSON(w, http.StatusOK, GetNotificationsResponse{
		Notifications: notifications,
		Total:         len(notifications),
	})
}

// MarkRead помечает уведомление прочитанным
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	if err := h.notificationService.MarkRead(r.Context(), mux.Vars(r)["id"]); err != nil {
		handleServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
