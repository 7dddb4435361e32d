package service

import (
	"context"
	"errors"
	"fmt"

	"settlement/internal/metrics"
	"settlement/internal/models"
	"settlement/internal/repository"
	"settlement/pkg/utils"
)

// Ошибки сервиса транзакций
var (
	ErrAddressRequired = errors.New("an address is required to find transactions")
	ErrTxIDRequired    = errors.New("txId is required")
)

// TransactionService записывает блокчейн транзакции и сверяет выпуски
// (sharesIssued / sharesAuthorized) в той же транзакции БД.
//
// Повтор (fromAddress, txId) отклоняется уникальным индексом, поэтому
// корректировка выпуска применяется ровно один раз.
type TransactionService struct {
	transactions TransactionRepositoryInterface
	issuances    IssuanceRepositoryInterface
	tx           Transactor
	log          *utils.Logger
}

// NewTransactionService создает сервис транзакций
func NewTransactionService(
	transactions TransactionRepositoryInterface,
	issuances IssuanceRepositoryInterface,
	tx Transactor,
) *TransactionService {
	return &TransactionService{
		transactions: transactions,
		issuances:    issuances,
		tx:           tx,
		log:          utils.L().WithComponent("transactions"),
	}
}

// Create записывает транзакцию и применяет сверку выпуска
func (s *TransactionService) Create(ctx context.Context, tx *models.Transaction) error {
	if tx.TxID == "" {
		return &BadRequestError{Message: ErrTxIDRequired.Error()}
	}

	return s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.transactions.Create(ctx, tx); err != nil {
			return err
		}
		return s.Reconcile(ctx, tx)
	})
}

// Reconcile корректирует выпуск по записанной транзакции:
//
//	CANCEL                          → sharesAuthorized -= amount
//	TRANSFER/TRADE на issuanceAddress  → sharesIssued += amount
//	TRANSFER/TRADE с issuanceAddress   → sharesIssued -= amount
//
// Транзакции без issuanceId не сверяются.
func (s *TransactionService) Reconcile(ctx context.Context, tx *models.Transaction) error {
	if tx.IssuanceID == "" {
		return nil
	}

	switch {
	case tx.Type == models.TxTypeCancel:
		if err := s.adjust(ctx, tx, "authorized", -tx.Amount); err != nil {
			return err
		}

	case tx.MovesShares():
		iss, err := s.issuances.GetByID(ctx, tx.IssuanceID)
		if err != nil {
			if errors.Is(err, repository.ErrIssuanceNotFound) {
				s.log.Warn("transaction references unknown issuance",
					utils.TxID(tx.TxID), utils.IssuanceID(tx.IssuanceID))
				return nil
			}
			return err
		}

		var delta int64
		if tx.ToAddress == iss.IssuanceAddress {
			delta += tx.Amount
		}
		if tx.FromAddress == iss.IssuanceAddress {
			delta -= tx.Amount
		}
		if delta != 0 {
			if err := s.adjust(ctx, tx, "issued", delta); err != nil {
				return err
			}
		}
	}

	return nil
}

func (s *TransactionService) adjust(ctx context.Context, tx *models.Transaction, field string, delta int64) error {
	var err error
	if field == "authorized" {
		err = s.issuances.AdjustSharesAuthorized(ctx, tx.IssuanceID, delta)
	} else {
		err = s.issuances.AdjustSharesIssued(ctx, tx.IssuanceID, delta)
	}
	if err != nil {
		if errors.Is(err, repository.ErrIssuanceNotFound) {
			s.log.Warn("transaction references unknown issuance",
				utils.TxID(tx.TxID), utils.IssuanceID(tx.IssuanceID))
			return nil
		}
		return fmt.Errorf("adjust shares %s: %w", field, err)
	}

	metrics.RecordReconciliation(field, delta)
	s.log.Info("issuance reconciled",
		utils.IssuanceID(tx.IssuanceID),
		utils.TxID(tx.TxID),
		utils.String("field", field),
		utils.Int64("delta", delta),
	)
	return nil
}

// Get возвращает транзакцию по ID
func (s *TransactionService) Get(ctx context.Context, id string) (*models.Transaction, error) {
	return s.transactions.GetByID(ctx, id)
}

// Find ищет транзакции; без адреса поиск запрещён
func (s *TransactionService) Find(ctx context.Context, q repository.TransactionQuery) ([]*models.Transaction, error) {
	if q.Address == "" && len(q.Addresses) == 0 {
		return nil, ErrAddressRequired
	}
	return s.transactions.Find(ctx, q)
}

// AssignOffer привязывает транзакции txId к предложению
func (s *TransactionService) AssignOffer(ctx context.Context, txID, offerID string) (int64, error) {
	return s.transactions.AssignOffer(ctx, txID, offerID)
}
