package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"settlement/internal/models"

	"github.com/google/uuid"
)

// Ошибки репозитория адресов портфеля
var (
	ErrPortfolioAddressNotFound = errors.New("portfolio address not found")
	ErrPortfolioAddressExists   = errors.New("address already imported into portfolio")
)

const portfolioAddressColumns = `id, portfolio_id, address_index, import_address, type, is_change, is_used, created_at`

// PortfolioAddressRepository - работа с таблицей portfolio_addresses
type PortfolioAddressRepository struct {
	db *sql.DB
}

// NewPortfolioAddressRepository создает новый экземпляр репозитория
func NewPortfolioAddressRepository(db *sql.DB) *PortfolioAddressRepository {
	return &PortfolioAddressRepository{db: db}
}

// Create импортирует адрес в портфель
func (r *PortfolioAddressRepository) Create(ctx context.Context, pa *models.PortfolioAddress) error {
	query := `
		INSERT INTO portfolio_addresses (` + portfolioAddressColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	if pa.ID == "" {
		pa.ID = uuid.NewString()
	}
	pa.CreatedAt = time.Now()

	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		pa.ID,
		pa.PortfolioID,
		pa.Index,
		pa.ImportAddress,
		pa.Type,
		pa.IsChange,
		pa.IsUsed,
		pa.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrPortfolioAddressExists
		}
		return err
	}
	return nil
}

// GetByImportAddress возвращает адрес портфеля
func (r *PortfolioAddressRepository) GetByImportAddress(ctx context.Context, portfolioID, importAddress string) (*models.PortfolioAddress, error) {
	query := `SELECT ` + portfolioAddressColumns + ` FROM portfolio_addresses WHERE portfolio_id = $1 AND import_address = $2`

	pa, err := scanPortfolioAddress(conn(ctx, r.db).QueryRowContext(ctx, query, portfolioID, importAddress))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPortfolioAddressNotFound
		}
		return nil, err
	}
	return pa, nil
}

// ListByPortfolio возвращает адреса портфеля по порядку индексов
func (r *PortfolioAddressRepository) ListByPortfolio(ctx context.Context, portfolioID string) ([]*models.PortfolioAddress, error) {
	query := `SELECT ` + portfolioAddressColumns + ` FROM portfolio_addresses WHERE portfolio_id = $1 ORDER BY address_index`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, portfolioID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var addresses []*models.PortfolioAddress
	for rows.Next() {
		pa, err := scanPortfolioAddress(rows)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, pa)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return addresses, nil
}

func scanPortfolioAddress(row rowScanner) (*models.PortfolioAddress, error) {
	pa := &models.PortfolioAddress{}
	err := row.Scan(
		&pa.ID,
		&pa.PortfolioID,
		&pa.Index,
		&pa.ImportAddress,
		&pa.Type,
		&pa.IsChange,
		&pa.IsUsed,
		&pa.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return pa, nil
}
