package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"settlement/internal/models"

	"github.com/google/uuid"
)

// Ошибки репозитория эмиссий
var (
	ErrIssuanceNotFound = errors.New("issuance not found")
)

const issuanceColumns = `id, user_id, company_id, company_name, issuance_name, issuance_type, issuance_address,
		shares_authorized, shares_issued, created_at, updated_at`

// IssuanceRepository - работа с таблицей issuances
type IssuanceRepository struct {
	db *sql.DB
}

// NewIssuanceRepository создает новый экземпляр репозитория
func NewIssuanceRepository(db *sql.DB) *IssuanceRepository {
	return &IssuanceRepository{db: db}
}

// Create создает эмиссию
func (r *IssuanceRepository) Create(ctx context.Context, iss *models.Issuance) error {
	query := `
		INSERT INTO issuances (` + issuanceColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	if iss.ID == "" {
		iss.ID = uuid.NewString()
	}
	now := time.Now()
	iss.CreatedAt = now
	iss.UpdatedAt = now

	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		iss.ID,
		iss.UserID,
		iss.CompanyID,
		iss.CompanyName,
		iss.IssuanceName,
		iss.IssuanceType,
		iss.IssuanceAddress,
		iss.SharesAuthorized,
		iss.SharesIssued,
		iss.CreatedAt,
		iss.UpdatedAt,
	)
	return err
}

// GetByID возвращает эмиссию по ID
func (r *IssuanceRepository) GetByID(ctx context.Context, id string) (*models.Issuance, error) {
	query := `SELECT ` + issuanceColumns + ` FROM issuances WHERE id = $1`

	iss := &models.Issuance{}
	err := conn(ctx, r.db).QueryRowContext(ctx, query, id).Scan(
		&iss.ID,
		&iss.UserID,
		&iss.CompanyID,
		&iss.CompanyName,
		&iss.IssuanceName,
		&iss.IssuanceType,
		&iss.IssuanceAddress,
		&iss.SharesAuthorized,
		&iss.SharesIssued,
		&iss.CreatedAt,
		&iss.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrIssuanceNotFound
		}
		return nil, err
	}
	return iss, nil
}

// GetAuthorized возвращает sharesAuthorized эмиссии (0 для несуществующей)
func (r *IssuanceRepository) GetAuthorized(ctx context.Context, id string) (int64, error) {
	var authorized int64
	err := conn(ctx, r.db).QueryRowContext(ctx, `SELECT shares_authorized FROM issuances WHERE id = $1`, id).Scan(&authorized)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, err
	}
	return authorized, nil
}

// GetMaxSellable возвращает количество бумаг эмиссии на адресах портфеля:
// сумма переводов на адреса портфеля минус сумма переводов с них.
// Перевод между двумя адресами одного портфеля даёт ноль.
func (r *IssuanceRepository) GetMaxSellable(ctx context.Context, issuanceID, portfolioID string) (int64, error) {
	query := `
		SELECT
			COALESCE(SUM(CASE WHEN t.to_address = pa.import_address THEN t.amount ELSE 0 END), 0) -
			COALESCE(SUM(CASE WHEN t.from_address = pa.import_address THEN t.amount ELSE 0 END), 0)
		FROM transactions t
		JOIN portfolio_addresses pa
			ON pa.portfolio_id = $2
			AND (t.to_address = pa.import_address OR t.from_address = pa.import_address)
		WHERE t.issuance_id = $1 AND t.type IN ($3, $4)`

	var net int64
	err := conn(ctx, r.db).QueryRowContext(ctx, query,
		issuanceID, portfolioID, models.TxTypeTransfer, models.TxTypeTrade,
	).Scan(&net)
	if err != nil {
		return 0, err
	}
	if net < 0 {
		return 0, nil
	}
	return net, nil
}

// AdjustSharesIssued изменяет sharesIssued на delta
func (r *IssuanceRepository) AdjustSharesIssued(ctx context.Context, id string, delta int64) error {
	return r.adjust(ctx, `UPDATE issuances SET shares_issued = shares_issued + $1, updated_at = $2 WHERE id = $3`, id, delta)
}

// AdjustSharesAuthorized изменяет sharesAuthorized на delta
func (r *IssuanceRepository) AdjustSharesAuthorized(ctx context.Context, id string, delta int64) error {
	return r.adjust(ctx, `UPDATE issuances SET shares_authorized = shares_authorized + $1, updated_at = $2 WHERE id = $3`, id, delta)
}

func (r *IssuanceRepository) adjust(ctx context.Context, query, id string, delta int64) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, query, delta, time.Now(), id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrIssuanceNotFound
	}

	return nil
}
