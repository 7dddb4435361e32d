package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"settlement/internal/models"

	"github.com/google/uuid"
)

// Ошибки репозитория выплат ICO
var (
	ErrInvestorNotFound = errors.New("ico investor not found")
	ErrInvestorExists   = errors.New("ico investor with this email already exists")
)

const investorColumns = `id, email, address, balance_owed, locked, manual_payment_required, status, payment_error, created_at, updated_at`

// ICOInvestorRepository - работа с таблицей icoinvestors
type ICOInvestorRepository struct {
	db *sql.DB
}

// NewICOInvestorRepository создает новый экземпляр репозитория
func NewICOInvestorRepository(db *sql.DB) *ICOInvestorRepository {
	return &ICOInvestorRepository{db: db}
}

// NormalizeEmail приводит email к виду, в котором он хранится
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create создает запись о задолженности
func (r *ICOInvestorRepository) Create(ctx context.Context, inv *models.ICOInvestor) error {
	query := `
		INSERT INTO icoinvestors (` + investorColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	if inv.ID == "" {
		inv.ID = uuid.NewString()
	}
	inv.Email = NormalizeEmail(inv.Email)
	if inv.Status == "" {
		inv.Status = models.PayoutStatusOwed
	}
	now := time.Now()
	inv.CreatedAt = now
	inv.UpdatedAt = now

	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		inv.ID,
		inv.Email,
		inv.Address,
		nullableInt64(inv.BalanceOwed),
		inv.Locked,
		inv.ManualPaymentRequired,
		inv.Status,
		inv.PaymentError,
		inv.CreatedAt,
		inv.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrInvestorExists
		}
		return err
	}
	return nil
}

// GetByEmail возвращает запись по email
func (r *ICOInvestorRepository) GetByEmail(ctx context.Context, email string) (*models.ICOInvestor, error) {
	query := `SELECT ` + investorColumns + ` FROM icoinvestors WHERE email = $1`

	inv, err := scanInvestor(conn(ctx, r.db).QueryRowContext(ctx, query, NormalizeEmail(email)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvestorNotFound
		}
		return nil, err
	}
	return inv, nil
}

// List возвращает записи с указанным статусом (пустой статус - все)
func (r *ICOInvestorRepository) List(ctx context.Context, status string) ([]*models.ICOInvestor, error) {
	query := `SELECT ` + investorColumns + ` FROM icoinvestors`
	var args []interface{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += ` ORDER BY created_at`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var investors []*models.ICOInvestor
	for rows.Next() {
		inv, err := scanInvestor(rows)
		if err != nil {
			return nil, err
		}
		investors = append(investors, inv)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return investors, nil
}

// Claim атомарно захватывает свободную запись токеном.
//
// Одно условное UPDATE: запись меняется только если locked = 0, поэтому из
// нескольких конкурирующих вызовов (в том числе с разных экземпляров) строку
// получит ровно один. Записи на ручной выплате не захватываются:
// повторный импорт адреса не запускает выплату по ним снова.
// Нет свободной записи → ErrInvestorNotFound.
func (r *ICOInvestorRepository) Claim(ctx context.Context, email string, token int64) (*models.ICOInvestor, error) {
	query := `
		UPDATE icoinvestors
		SET locked = $1, status = $2, updated_at = $3
		WHERE email = $4 AND locked = $5 AND manual_payment_required = false
		RETURNING ` + investorColumns

	inv, err := scanInvestor(conn(ctx, r.db).QueryRowContext(ctx, query,
		token, models.PayoutStatusClaimed, time.Now(), NormalizeEmail(email), models.PayoutUnlocked,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrInvestorNotFound
		}
		return nil, err
	}
	return inv, nil
}

// MarkManual переводит запись на ручную выплату и снимает захват
func (r *ICOInvestorRepository) MarkManual(ctx context.Context, email, address, paymentError string) error {
	query := `
		UPDATE icoinvestors
		SET address = $1, manual_payment_required = true, status = $2, payment_error = $3, locked = $4, updated_at = $5
		WHERE email = $6`

	result, err := conn(ctx, r.db).ExecContext(ctx, query,
		address, models.PayoutStatusManualRequired, paymentError, models.PayoutUnlocked, time.Now(), NormalizeEmail(email),
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrInvestorNotFound
	}

	return nil
}

// DeleteByEmail удаляет запись после успешной выплаты
func (r *ICOInvestorRepository) DeleteByEmail(ctx context.Context, email string) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, `DELETE FROM icoinvestors WHERE email = $1`, NormalizeEmail(email))
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrInvestorNotFound
	}

	return nil
}

func scanInvestor(row rowScanner) (*models.ICOInvestor, error) {
	inv := &models.ICOInvestor{}
	var balance sql.NullInt64
	err := row.Scan(
		&inv.ID,
		&inv.Email,
		&inv.Address,
		&balance,
		&inv.Locked,
		&inv.ManualPaymentRequired,
		&inv.Status,
		&inv.PaymentError,
		&inv.CreatedAt,
		&inv.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if balance.Valid {
		v := balance.Int64
		inv.BalanceOwed = &v
	}
	return inv, nil
}

func nullableInt64(v *int64) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
