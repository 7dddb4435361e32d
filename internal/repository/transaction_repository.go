package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"settlement/internal/models"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Ошибки репозитория транзакций
var (
	ErrTransactionNotFound = errors.New("transaction not found")
	ErrTransactionExists   = errors.New("transaction already recorded")
)

const transactionColumns = `id, tx_id, from_address, to_address, address_tx_id, address_vout, type, currency_type,
		amount, fee, hex, issuance_id, offer_id, description, created_at`

// TransactionQuery - параметры поиска транзакций
//
// Address - адрес отправителя или получателя; Addresses - любой из адресов.
type TransactionQuery struct {
	TxID       string
	Address    string
	Addresses  []string
	IssuanceID string
	OfferID    string
	Limit      int
}

// TransactionRepository - работа с таблицей transactions
type TransactionRepository struct {
	db *sql.DB
}

// NewTransactionRepository создает новый экземпляр репозитория
func NewTransactionRepository(db *sql.DB) *TransactionRepository {
	return &TransactionRepository{db: db}
}

// Create записывает транзакцию. Повтор пары (fromAddress, txId) → ErrTransactionExists.
func (r *TransactionRepository) Create(ctx context.Context, tx *models.Transaction) error {
	query := `
		INSERT INTO transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`

	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	tx.CreatedAt = time.Now()

	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		tx.ID,
		tx.TxID,
		tx.FromAddress,
		tx.ToAddress,
		tx.AddressTxID,
		tx.AddressVout,
		tx.Type,
		tx.CurrencyType,
		tx.Amount,
		tx.Fee,
		tx.Hex,
		tx.IssuanceID,
		tx.OfferID,
		tx.Description,
		tx.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrTransactionExists
		}
		return err
	}
	return nil
}

// GetByID возвращает транзакцию по ID записи
func (r *TransactionRepository) GetByID(ctx context.Context, id string) (*models.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	tx, err := scanTransaction(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return tx, nil
}

// Find возвращает транзакции по параметрам, новые первыми
func (r *TransactionRepository) Find(ctx context.Context, q TransactionQuery) ([]*models.Transaction, error) {
	var (
		conds []string
		args  []interface{}
	)
	next := func(v interface{}) int {
		args = append(args, v)
		return len(args)
	}

	if q.TxID != "" {
		conds = append(conds, fmt.Sprintf("tx_id = $%d", next(q.TxID)))
	}
	if q.Address != "" {
		n := next(q.Address)
		conds = append(conds, fmt.Sprintf("(from_address = $%d OR to_address = $%d)", n, n))
	}
	if len(q.Addresses) > 0 {
		n := next(pq.Array(q.Addresses))
		conds = append(conds, fmt.Sprintf("(from_address = ANY($%d) OR to_address = ANY($%d))", n, n))
	}
	if q.IssuanceID != "" {
		conds = append(conds, fmt.Sprintf("issuance_id = $%d", next(q.IssuanceID)))
	}
	if q.OfferID != "" {
		conds = append(conds, fmt.Sprintf("offer_id = $%d", next(q.OfferID)))
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC`
	if q.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", next(q.Limit))
	}

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []*models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return txs, nil
}

// AssignOffer привязывает транзакции с указанным txId к предложению.
// Возвращает количество обновлённых записей.
func (r *TransactionRepository) AssignOffer(ctx context.Context, txID, offerID string) (int64, error) {
	result, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE transactions SET offer_id = $1 WHERE tx_id = $2`, offerID, txID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	tx := &models.Transaction{}
	err := row.Scan(
		&tx.ID,
		&tx.TxID,
		&tx.FromAddress,
		&tx.ToAddress,
		&tx.AddressTxID,
		&tx.AddressVout,
		&tx.Type,
		&tx.CurrencyType,
		&tx.Amount,
		&tx.Fee,
		&tx.Hex,
		&tx.IssuanceID,
		&tx.OfferID,
		&tx.Description,
		&tx.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return tx, nil
}
