package handlers

import (
	"net/http"

	"settlement/internal/api/middleware"
	"settlement/internal/models"
	"settlement/internal/service"
)

// PortfolioAddressHandler - импорт адресов в портфель
//
// Endpoints:
// - POST /api/v1/portfolio-addresses
// - GET /api/v1/portfolio-addresses?portfolioId=
type PortfolioAddressHandler struct {
	addresses service.PortfolioAddressServiceInterface
}

// NewPortfolioAddressHandler создает PortfolioAddressHandler
func NewPortfolioAddressHandler(addresses service.PortfolioAddressServiceInterface) *PortfolioAddressHandler {
	return &PortfolioAddressHandler{addresses: addresses}
}

// CreatePortfolioAddressRequest - тело POST
//
// Email учитывается только во внутренних запросах: по нему ищется
// запись ICO выплаты для импортированного EQB адреса.
type CreatePortfolioAddressRequest struct {
	models.PortfolioAddress
	Email string `json:"email,omitempty"`
}

// PortfolioAddressesResponse - ответ списка
type PortfolioAddressesResponse struct {
	Addresses []*models.PortfolioAddress `json:"addresses"`
	Total     int                        `json:"total"`
}

// CreatePortfolioAddress импортирует адрес (повторный импорт возвращает существующую запись)
func (h *PortfolioAddressHandler) CreatePortfolioAddress(w http.ResponseWriter, r *http.Request) {
	var req CreatePortfolioAddressRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.PortfolioID == "" {
		respondWithError(w, http.StatusBadRequest, "missing_portfolio", "portfolioId is required", "")
		return
	}

	email := ""
	if middleware.IsInternal(r.Context()) {
		email = req.Email
	}

	pa := req.PortfolioAddress
	created, err := h.addresses.Create(r.Context(), &pa, email)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

// GetPortfolioAddresses возвращает адреса портфеля
func (h *PortfolioAddressHandler) GetPortfolioAddresses(w http.ResponseWriter, r *http.Request) {
	portfolioID := r.URL.Query().Get("portfolioId")
	if portfolioID == "" {
		respondWithError(w, http.StatusBadRequest, "missing_portfolio", "portfolioId is required", "")
		return
	}

	list, err := h.addresses.List(r.Context(), portfolioID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if list == nil {
		list = []*models.PortfolioAddress{}
	}
	respondWithJSON(w, http.StatusOK, PortfolioAddressesResponse{Addresses: list, Total: len(list)})
}
