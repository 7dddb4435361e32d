package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"settlement/internal/models"

	"github.com/google/uuid"
)

// Ошибки репозитория уведомлений
var (
	ErrNotificationNotFound = errors.New("notification not found")
)

// NotificationRepository - работа с таблицей notifications
type NotificationRepository struct {
	db *sql.DB
}

// NewNotificationRepository создает новый экземпляр репозитория
func NewNotificationRepository(db *sql.DB) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create сохраняет уведомление, Fields хранится как JSONB
func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) error {
	query := `
		INSERT INTO notifications (id, address, type, action, fields, is_read, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	var fields []byte
	if n.Fields != nil {
		var err error
		fields, err = json.Marshal(n.Fields)
		if err != nil {
			return err
		}
	}

	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	n.CreatedAt = time.Now()

	_, err := conn(ctx, r.db).ExecContext(ctx, query,
		n.ID, n.Address, n.Type, n.Action, fields, n.IsRead, n.CreatedAt,
	)
	return err
}

// GetByAddress возвращает последние уведомления для адреса
func (r *NotificationRepository) GetByAddress(ctx context.Context, address string, limit int) ([]*models.Notification, error) {
	query := `
		SELECT id, address, type, action, fields, is_read, created_at
		FROM notifications
		WHERE address = $1
		ORDER BY created_at DESC
		LIMIT $2`

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, address, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var notifications []*models.Notification
	for rows.Next() {
		n := &models.Notification{}
		var fields []byte
		if err := rows.Scan(&n.ID, &n.Address, &n.Type, &n.Action, &fields, &n.IsRead, &n.CreatedAt); err != nil {
			return nil, err
		}
		if len(fields) > 0 {
			if err := json.Unmarshal(fields, &n.Fields); err != nil {
				return nil, err
			}
		}
		notifications = append(notifications, n)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return notifications, nil
}

// MarkRead помечает уведомление прочитанным
func (r *NotificationRepository) MarkRead(ctx context.Context, id string) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, `UPDATE notifications SET is_read = true WHERE id = $1`, id)
	if err != nil {
		return err
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return err
	}

	if rowsAffected == 0 {
		return ErrNotificationNotFound
	}

	return nil
}
