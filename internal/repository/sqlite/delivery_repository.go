package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"learnpath/internal/domain"
	"learnpath/internal/repository"
)

const createMailDeliveriesTable = `
CREATE TABLE IF NOT EXISTS mail_deliveries (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NULL REFERENCES users(id) ON DELETE SET NULL,
	kind TEXT NOT NULL,
	recipient TEXT NOT NULL,
	subject TEXT NOT NULL,
	body TEXT NOT NULL,
	status TEXT NOT NULL,
	attempts INTEGER NOT NULL DEFAULT 0,
	error_message TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	updated_at DATETIME NOT NULL,
	sent_at DATETIME NULL
);
CREATE INDEX IF NOT EXISTS idx_mail_deliveries_status ON mail_deliveries(status);
`

const deliveryColumns = `id, user_id, kind, recipient, subject, body, status, attempts, error_message, created_at, updated_at, sent_at`

type DeliveryRepository struct {
	db *sql.DB
}

func NewDeliveryRepository(db *sql.DB) repository.DeliveryRepository {
	return &DeliveryRepository{db: db}
}

func (r *DeliveryRepository) Init(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, createMailDeliveriesTable); err != nil {
		return fmt.Errorf("create mail_deliveries table: %w", err)
	}
	return nil
}

func (r *DeliveryRepository) Create(ctx context.Context, d *domain.MailDelivery) (int64, error) {
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	if d.Status == "" {
		d.Status = domain.DeliveryStatusPending
	}

	res, err := r.db.ExecContext(ctx, `
INSERT INTO mail_deliveries (user_id, kind, recipient, subject, body, status, attempts, error_message, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		nullInt64(d.UserID),
		string(d.Kind),
		d.Recipient,
		d.Subject,
		d.Body,
		string(d.Status),
		d.Attempts,
		d.ErrorMessage,
		d.CreatedAt,
		d.UpdatedAt,
	)
	if err != nil {
		return 0, insertErr("mail delivery", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("get last insert id: %w", err)
	}
	d.ID = id
	return id, nil
}

func (r *DeliveryRepository) Get(ctx context.Context, id int64) (*domain.MailDelivery, error) {
	return scanDelivery(r.db.QueryRowContext(ctx, `SELECT `+deliveryColumns+` FROM mail_deliveries WHERE id=?`, id))
}

func (r *DeliveryRepository) UpdateStatus(ctx context.Context, id int64, status domain.DeliveryStatus, errorMessage *string) error {
	now := time.Now().UTC()
	msg := ""
	if errorMessage != nil {
		msg = *errorMessage
	}
	res, err := r.db.ExecContext(ctx, `
UPDATE mail_deliveries
SET status=?, error_message=?, updated_at=?
WHERE id=?`,
		string(status),
		msg,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("update delivery status: %w", err)
	}
	return requireAffected(res, "mail delivery")
}

// IncrementAttempts bumps the attempt counter and returns the new value.
func (r *DeliveryRepository) IncrementAttempts(ctx context.Context, id int64) (int, error) {
	if _, err := r.db.ExecContext(ctx, `
UPDATE mail_deliveries
SET attempts=attempts+1, updated_at=?
WHERE id=?`, time.Now().UTC(), id); err != nil {
		return 0, fmt.Errorf("increment delivery attempts: %w", err)
	}
	var attempts int
	if err := r.db.QueryRowContext(ctx, `SELECT attempts FROM mail_deliveries WHERE id=?`, id).Scan(&attempts); err != nil {
		return 0, notFound(err, "mail delivery")
	}
	return attempts, nil
}

func (r *DeliveryRepository) MarkSent(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
UPDATE mail_deliveries
SET status=?, error_message='', sent_at=?, updated_at=?
WHERE id=?`,
		string(domain.DeliveryStatusSent),
		now,
		now,
		id,
	)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	return requireAffected(res, "mail delivery")
}

func (r *DeliveryRepository) ListByStatuses(ctx context.Context, statuses ...domain.DeliveryStatus) ([]domain.MailDelivery, error) {
	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := make([]string, len(statuses))
	args := make([]any, len(statuses))
	for i, s := range statuses {
		placeholders[i] = "?"
		args[i] = string(s)
	}
	query := `SELECT ` + deliveryColumns + ` FROM mail_deliveries WHERE status IN (` + strings.Join(placeholders, ",") + `) ORDER BY id ASC`
	return r.list(ctx, query, args...)
}

func (r *DeliveryRepository) ListByUser(ctx context.Context, userID int64) ([]domain.MailDelivery, error) {
	return r.list(ctx, `SELECT `+deliveryColumns+` FROM mail_deliveries WHERE user_id=? ORDER BY id ASC`, userID)
}

func (r *DeliveryRepository) list(ctx context.Context, query string, args ...any) ([]domain.MailDelivery, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query mail deliveries: %w", err)
	}
	defer rows.Close()

	var out []domain.MailDelivery
	for rows.Next() {
		d, err := scanDelivery(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, rows.Err()
}

func scanDelivery(row scanner) (*domain.MailDelivery, error) {
	var (
		d      domain.MailDelivery
		userID sql.NullInt64
		kind   string
		status string
		sentAt sql.NullTime
	)
	if err := row.Scan(
		&d.ID,
		&userID,
		&kind,
		&d.Recipient,
		&d.Subject,
		&d.Body,
		&status,
		&d.Attempts,
		&d.ErrorMessage,
		&d.CreatedAt,
		&d.UpdatedAt,
		&sentAt,
	); err != nil {
		return nil, notFound(err, "mail delivery")
	}
	d.UserID = int64Ptr(userID)
	d.Kind = domain.DeliveryKind(kind)
	d.Status = domain.DeliveryStatus(status)
	d.SentAt = timePtr(sentAt)
	return &d, nil
}
