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
)

// Ошибки репозитория ордеров
var (
	ErrOrderNotFound = errors.New("order not found")
)

const orderColumns = `id, user_id, type, issuance_id, issuance_address, portfolio_id, quantity, price, status,
		is_fill_or_kill, good_for, btc_address, eqb_address, company_name, issuance_name, issuance_type, created_at, updated_at`

// OrderFilter - параметры выборки ордеров
type OrderFilter struct {
	UserID     string
	IssuanceID string
	Type       string
	Status     string
	Limit      int
}

// OrderRepository - работа с таблицей orders
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository создает новый экземпляр репозитория
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

// Create создает ордер
func (r *OrderRepository) Create(ctx context.Context, order *models.Order) error {
	query := `
		INSERT INTO orders (` + orderColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`

	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	now := time.Now()
	order.CreatedAt = now
	order.UpdatedAt = now

	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		order.ID,
		order.UserID,
		order.Type,
		order.IssuanceID,
		order.IssuanceAddress,
		order.PortfolioID,
		order.Quantity,
		order.Price,
		order.Status,
		order.IsFillOrKill,
		order.GoodFor,
		order.BtcAddress,
		order.EqbAddress,
		order.CompanyName,
		order.IssuanceName,
		order.IssuanceType,
		order.CreatedAt,
		order.UpdatedAt,
	)
	return err
}

// GetByID возвращает ордер по ID
func (r *OrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	query := `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

	order, err := scanOrder(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, err
	}
	return order, nil
}

// GetQuantity возвращает количество бумаг в ордере.
// Для несуществующего ордера возвращает 0 без ошибки.
func (r *OrderRepository) GetQuantity(ctx context.Context, id string) (int64, error) {
	var quantity int64
	err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT quantity FROM orders WHERE id = $1`, id).Scan(&quantity)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return quantity, nil
}

// Find возвращает ордера по фильтру, новые первыми
func (r *OrderRepository) Find(ctx context.Context, filter OrderFilter) ([]*models.Order, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		args = append(args, value)
		conds = append(conds, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	add("user_id", filter.UserID)
	add("issuance_id", filter.IssuanceID)
	add("type", strings.ToUpper(filter.Type))
	add("status", filter.Status)

	query := `SELECT ` + orderColumns + ` FROM orders`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return orders, nil
}

// UpdateStatus обновляет статус ордера
func (r *OrderRepository) UpdateStatus(ctx context.Context, id string, status string) error {
	query := `UPDATE orders SET status = $1, updated_at = $2 WHERE id = $3`

	result, err := conn(ctx, r.db).ExecContext(ctx, query, status, time.Now(), id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrOrderNotFound
	}

	return nil
}

func scanOrder(row rowScanner) (*models.Order, error) {
	order := &models.Order{}
	err := row.Scan(
		&order.ID,
		&order.UserID,
		&order.Type,
		&order.IssuanceID,
		&order.IssuanceAddress,
		&order.PortfolioID,
		&order.Quantity,
		&order.Price,
		&order.Status,
		&order.IsFillOrKill,
		&order.GoodFor,
		&order.BtcAddress,
		&order.EqbAddress,
		&order.CompanyName,
		&order.IssuanceName,
		&order.IssuanceType,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return order, nil
}
