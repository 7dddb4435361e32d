package handlers

import (
	"net/http"
	"strings"

	"settlement/internal/models"
	"settlement/internal/repository"
	"settlement/internal/service"

	"github.com/gorilla/mux"
)

// TransactionHandler - HTTP интерфейс блокчейн транзакций
//
// Endpoints:
// - POST /api/v1/transactions - запись транзакции (только внутренние вызовы)
// - GET /api/v1/transactions?address=&addresses=a,b&txId=&issuanceId=&offerId=&limit=
// - GET /api/v1/transactions/{id}
//
// Изменение и удаление записанных транзакций не поддерживается (405).
type TransactionHandler struct {
	transactions service.TransactionServiceInterface
}

// NewTransactionHandler создает TransactionHandler
func NewTransactionHandler(transactions service.TransactionServiceInterface) *TransactionHandler {
	return &TransactionHandler{transactions: transactions}
}

// TransactionsResponse - ответ поиска
type TransactionsResponse struct {
	Transactions []*models.Transaction `json:"transactions"`
	Total        int                   `json:"total"`
}

// CreateTransaction записывает транзакцию и сверяет счётчики эмиссии
//
// HTTP коды:
// - 201 Created
// - 400 Bad Request: нет txId
// - 409 Conflict: транзакция уже записана
func (h *TransactionHandler) CreateTransaction(w http.ResponseWriter, r *http.Request) {
	var tx models.Transaction
	if !decodeJSON(w, r, &tx) {
		return
	}

	if err := h.transactions.Create(r.Context(), &tx); err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusCreated, &tx)
}

// GetTransactions ищет транзакции. Нужен address или addresses.
func (h *TransactionHandler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	var addresses []string
	for _, a := range strings.Split(q.Get("addresses"), ",") {
		if a = strings.TrimSpace(a); a != "" {
			addresses = append(addresses, a)
		}
	}

	txs, err := h.transactions.Find(r.Context(), repository.TransactionQuery{
		TxID:       q.Get("txId"),
		Address:    q.Get("address"),
		Addresses:  addresses,
		IssuanceID: q.Get("issuanceId"),
		OfferID:    q.Get("offerId"),
		Limit:      parseLimit(r),
	})
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if txs == nil {
		txs = []*models.Transaction{}
	}
	respondWithJSON(w, http.StatusOK, TransactionsResponse{Transactions: txs, Total: len(txs)})
}

// GetTransaction возвращает транзакцию по ID
func (h *TransactionHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	tx, err := h.transactions.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		handleServiceError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, tx)
}
