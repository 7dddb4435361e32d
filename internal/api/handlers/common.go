package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"settlement/internal/api/middleware"
	"settlement/internal/repository"
	"settlement/internal/service"
	"settlement/internal/settlement"
	"settlement/pkg/utils"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// maxBodySize - ограничение тела запроса
const maxBodySize = 1 << 20

// ErrorResponse стандартный формат ответа об ошибке для всех API endpoints
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

// respondWithJSON отправляет JSON ответ
func respondWithJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondWithError отправляет JSON ответ с ошибкой
func respondWithError(w http.ResponseWriter, statusCode int, code, message, details string) {
	respondWithJSON(w, statusCode, ErrorResponse{
		Error:   message,
		Code:    code,
		Details: details,
	})
}

// decodeJSON читает тело запроса; при ошибке отвечает 400
func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid_request", "Invalid JSON body", err.Error())
		return false
	}
	return true
}

// isExternal - запрос клиента (не доверенного сервиса)
func isExternal(r *http.Request) bool {
	return !middleware.IsInternal(r.Context())
}

// parseLimit читает ?limit=; некорректное значение - 0 (значение по умолчанию сервиса)
func parseLimit(r *http.Request) int {
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if err != nil || limit < 0 {
		return 0
	}
	return limit
}

// handleServiceError переводит ошибки сервисов в HTTP статус
func handleServiceError(w http.ResponseWriter, err error) {
	var (
		vErr   *settlement.ValidationError
		badReq *service.BadRequestError
	)

	switch {
	case errors.As(err, &vErr):
		respondWithError(w, http.StatusUnprocessableEntity, "validation_error", vErr.Message, "")

	case errors.As(err, &badReq):
		respondWithError(w, http.StatusBadRequest, "bad_request", badReq.Message, "")

	case errors.Is(err, service.ErrAddressRequired),
		errors.Is(err, service.ErrTxIDRequired),
		errors.Is(err, service.ErrEmptyRecipient):
		respondWithError(w, http.StatusBadRequest, "bad_request", err.Error(), "")

	case errors.Is(err, repository.ErrOfferNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrTransactionNotFound),
		errors.Is(err, repository.ErrIssuanceNotFound),
		errors.Is(err, repository.ErrNotificationNotFound),
		errors.Is(err, repository.ErrPortfolioAddressNotFound):
		respondWithError(w, http.StatusNotFound, "not_found", err.Error(), "")

	case errors.Is(err, repository.ErrOfferVersionConflict):
		respondWithError(w, http.StatusConflict, "version_conflict", "Offer was modified concurrently", "")

	case errors.Is(err, repository.ErrTransactionExists),
		errors.Is(err, repository.ErrPortfolioAddressExists):
		respondWithError(w, http.StatusConflict, "already_exists", err.Error(), "")

	default:
		utils.L().WithComponent("api").Error("request failed", utils.Err(err))
		respondWithError(w, http.StatusInternalServerError, "internal_error", "Internal server error", "")
	}
}

// MethodNotAllowed - ответ для операций, запрещённых над ресурсом
func MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	respondWithError(w, http.StatusMethodNotAllowed, "method_not_allowed",
		r.Method+" is not supported for this resource", "")
}
