package handlers

import (
	"net/http"

	"settlement/internal/models"
	"settlement/internal/repository"
	"settlement/internal/service"
	"settlement/internal/settlement"

	"github.com/gorilla/mux"
)

// OfferHandler - HTTP интерфейс предложений
//
// Endpoints:
// - POST /api/v1/offers - создать предложение
// - GET /api/v1/offers?userId=&orderId=&status=&limit= - поиск
// - GET /api/v1/offers/{id} - получить предложение
// - PATCH /api/v1/offers/{id} - частичное изменение (переход HTLC)
// - PUT /api/v1/offers/{id} - замена документа
//
// Запросы с валидным X-Internal-Token обрабатываются как внутренние.
type OfferHandler struct {
	offers service.OfferServiceInterface
}

// NewOfferHandler создает OfferHandler
func NewOfferHandler(offers service.OfferServiceInterface) *OfferHandler {
	return &OfferHandler{offers: offers}
}

// OffersResponse - ответ поиска
type OffersResponse struct {
	Offers []*models.Offer `json:"offers"`
	Total  int             `json:"total"`
}

// CreateOffer создает предложение
//
// HTTP коды:
// - 201 Created
// - 400 Bad Request: некорректный JSON, тип, количество
// - 500 Internal Server Error
func (h *OfferHandler) CreateOffer(w http.ResponseWriter, r *http.Request) {
	var offer models.Offer
	if !decodeJSON(w, r, &offer) {
		return
	}

	created, err := h.offers.Create(r.Context(), &offer, isExternal(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, created)
}

// GetOffers ищет предложения
func (h *OfferHandler) GetOffers(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	offers, err := h.offers.Find(r.Context(), repository.OfferFilter{
		UserID:  q.Get("userId"),
		OrderID: q.Get("orderId"),
		Status:  q.Get("status"),
		Limit:   parseLimit(r),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if offers == nil {
		offers = []*models.Offer{}
	}
	respondWithJSON(w, http.StatusOK, OffersResponse{Offers: offers, Total: len(offers)})
}

// GetOffer возвращает предложение по ID
func (h *OfferHandler) GetOffer(w http.ResponseWriter, r *http.Request) {
	offer, err := h.offers.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, offer)
}

// PatchOffer применяет частичное изменение
//
// HTTP коды:
// - 200 OK: новое состояние предложения
// - 404 Not Found
// - 409 Conflict: параллельное изменение
// - 422 Unprocessable Entity: недопустимый переход (CLOSED/CANCELLED, шаг вне 1..4)
func (h *OfferHandler) PatchOffer(w http.ResponseWriter, r *http.Request) {
	var patch settlement.OfferPatch
	if !decodeJSON(w, r, &patch) {
		return
	}

	offer, err := h.offers.Patch(r.Context(), mux.Vars(r)["id"], patch, isExternal(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, offer)
}

// UpdateOffer заменяет документ. version в теле включает проверку версии.
func (h *OfferHandler) UpdateOffer(w http.ResponseWriter, r *http.Request) {
	var doc models.Offer
	if !decodeJSON(w, r, &doc) {
		return
	}

	offer, err := h.offers.Update(r.Context(), mux.Vars(r)["id"], &doc, isExternal(r))
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, offer)
}
