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

// Ошибки репозитория предложений
var (
	ErrOfferNotFound        = errors.New("offer not found")
	ErrOfferVersionConflict = errors.New("offer was modified concurrently")
)

const offerColumns = `id, user_id, order_id, issuance_id, issuance_address, portfolio_id, type, status, htlc_step,
		quantity, price, btc_address, eqb_address, hashlock, timelock,
		htlc_tx_id1, htlc_tx_id2, htlc_tx_id3, htlc_tx_id4, company_name, issuance_name, version, created_at, updated_at`

// OfferFilter - параметры выборки предложений (пустое поле не фильтрует)
type OfferFilter struct {
	UserID  string
	OrderID string
	Status  string
	Limit   int
}

// OfferRepository - работа с таблицей offers
type OfferRepository struct {
	db *sql.DB
}

// NewOfferRepository создает новый экземпляр репозитория
func NewOfferRepository(db *sql.DB) *OfferRepository {
	return &OfferRepository{db: db}
}

// Create создает предложение с версией 1
func (r *OfferRepository) Create(ctx context.Context, offer *models.Offer) error {
	query := `
		INSERT INTO offers (` + offerColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24)`

	if offer.ID == "" {
		offer.ID = uuid.NewString()
	}
	now := time.Now()
	offer.CreatedAt = now
	offer.UpdatedAt = now
	offer.Version = 1

	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		offer.ID,
		offer.UserID,
		offer.OrderID,
		offer.IssuanceID,
		offer.IssuanceAddress,
		offer.PortfolioID,
		offer.Type,
		offer.Status,
		offer.HTLCStep,
		offer.Quantity,
		offer.Price,
		offer.BtcAddress,
		offer.EqbAddress,
		offer.Hashlock,
		offer.Timelock,
		offer.HTLCTxID1,
		offer.HTLCTxID2,
		offer.HTLCTxID3,
		offer.HTLCTxID4,
		offer.CompanyName,
		offer.IssuanceName,
		offer.Version,
		offer.CreatedAt,
		offer.UpdatedAt,
	)
	return err
}

// GetByID возвращает предложение по ID
func (r *OfferRepository) GetByID(ctx context.Context, id string) (*models.Offer, error) {
	query := `SELECT ` + offerColumns + ` FROM offers WHERE id = $1`

	offer, err := scanOffer(conn(ctx, r.db).QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrOfferNotFound
		}
		return nil, err
	}
	return offer, nil
}

// Find возвращает предложения по фильтру, новые первыми
func (r *OfferRepository) Find(ctx context.Context, filter OfferFilter) ([]*models.Offer, error) {
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
	add("order_id", filter.OrderID)
	add("status", filter.Status)

	query := `SELECT ` + offerColumns + ` FROM offers`
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

	var offers []*models.Offer
	for rows.Next() {
		offer, err := scanOffer(rows)
		if err != nil {
			return nil, err
		}
		offers = append(offers, offer)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return offers, nil
}

// Update сохраняет предложение, если его версия не изменилась с момента чтения.
// При успехе offer.Version увеличивается на 1.
func (r *OfferRepository) Update(ctx context.Context, offer *models.Offer) error {
	query := `
		UPDATE offers
		SET status = $1, htlc_step = $2, quantity = $3, price = $4, btc_address = $5, eqb_address = $6,
			hashlock = $7, timelock = $8, htlc_tx_id1 = $9, htlc_tx_id2 = $10, htlc_tx_id3 = $11, htlc_tx_id4 = $12,
			company_name = $13, issuance_name = $14, issuance_address = $15, version = version + 1, updated_at = $16
		WHERE id = $17 AND version = $18`

	updatedAt := time.Now()
	db := conn(ctx, r.db)

	result, err := db.ExecContext(ctx, query,
		offer.Status,
		offer.HTLCStep,
		offer.Quantity,
		offer.Price,
		offer.BtcAddress,
		offer.EqbAddress,
		offer.Hashlock,
		offer.Timelock,
		offer.HTLCTxID1,
		offer.HTLCTxID2,
		offer.HTLCTxID3,
		offer.HTLCTxID4,
		offer.CompanyName,
		offer.IssuanceName,
		offer.IssuanceAddress,
		updatedAt,
		offer.ID,
		offer.Version,
	)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		var exists bool
		if err := db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM offers WHERE id = $1)`, offer.ID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrOfferNotFound
		}
		return ErrOfferVersionConflict
	}

	offer.Version++
	offer.UpdatedAt = updatedAt
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOffer(row rowScanner) (*models.Offer, error) {
	offer := &models.Offer{}
	err := row.Scan(
		&offer.ID,
		&offer.UserID,
		&offer.OrderID,
		&offer.IssuanceID,
		&offer.IssuanceAddress,
		&offer.PortfolioID,
		&offer.Type,
		&offer.Status,
		&offer.HTLCStep,
		&offer.Quantity,
		&offer.Price,
		&offer.BtcAddress,
		&offer.EqbAddress,
		&offer.Hashlock,
		&offer.Timelock,
		&offer.HTLCTxID1,
		&offer.HTLCTxID2,
		&offer.HTLCTxID3,
		&offer.HTLCTxID4,
		&offer.CompanyName,
		&offer.IssuanceName,
		&offer.Version,
		&offer.CreatedAt,
		&offer.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return offer, nil
}
