package handlers

import (
	"net/http"

	"settlement/internal/models"
	"settlement/internal/repository"
	"settlement/internal/service"

	"github.com/gorilla/mux"
)

// OrderHandler - HTTP интерфейс ордеров
//
// Endpoints:
// - POST /api/v1/orders
// - GET /api/v1/orders?userId=&issuanceId=&type=&status=&limit=
// - GET /api/v1/orders/{id}
// - PATCH /api/v1/orders/{id} - изменение статуса
type OrderHandler struct {
	orders service.OrderServiceInterface
}

// NewOrderHandler создает OrderHandler
func NewOrderHandler(orders service.OrderServiceInterface) *OrderHandler {
	return &OrderHandler{orders: orders}
}

// OrdersResponse - ответ поиска
type OrdersResponse struct {
	Orders []*models.Order `json:"orders"`
	Total  int             `json:"total"`
}

// UpdateOrderStatusRequest - тело PATCH
type UpdateOrderStatusRequest struct {
	Status string `json:"status"`
}

// CreateOrder создает ордер
func (h *OrderHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var order models.Order
	if !decodeJSON(w, r, &order) {
		return
	}

	created, err := h.orders.Create(r.Context(), &order, isExternal(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

// GetOrders ищет ордера
func (h *OrderHandler) GetOrders(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	orders, err := h.orders.Find(r.Context(), repository.OrderFilter{
		UserID:     q.Get("userId"),
		IssuanceID: q.Get("issuanceId"),
		Type:       q.Get("type"),
		Status:     q.Get("status"),
		Limit:      parseLimit(r),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if orders == nil {
		orders = []*models.Order{}
	}
	respondWithJSON(w, http.StatusOK, OrdersResponse{Orders: orders, Total: len(orders)})
}

// GetOrder возвращает ордер по ID
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	order, err := h.orders.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, order)
}

// UpdateOrderStatus меняет статус ордера и возвращает обновлённый ордер
func (h *OrderHandler) UpdateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req UpdateOrderStatusRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	id := mux.Vars(r)["id"]
	if err := h.orders.UpdateStatus(r.Context(), id, req.Status); err != nil {
		handleServiceError(w, err)
		return
	}

	order, err := h.orders.Get(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, order)
}
