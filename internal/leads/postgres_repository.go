package leads

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

type db interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores contact messages and subscriptions in Postgres.
type PostgresRepository struct {
	db db
}

// NewPostgresRepository initializes a repo backed by a pgx pool.
func NewPostgresRepository(db db) *PostgresRepository {
	if db == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{db: db}
}

// CreateContact inserts a new contact message.
func (r *PostgresRepository) CreateContact(ctx context.Context, req *CreateContactRequest) (*ContactMessage, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	id := uuid.New()
	query := `
		INSERT INTO contact_messages (id, name, email, phone, subject, message)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`
	var createdAt time.Time
	if err := r.db.QueryRow(ctx, query,
		id,
		req.Name,
		req.Email,
		req.Phone,
		req.Subject,
		req.Message,
	).Scan(&createdAt); err != nil {
		return nil, fmt.Errorf("leads: insert failed: %w", err)
	}

	return &ContactMessage{
		ID:        id.String(),
		Name:      req.Name,
		Email:     req.Email,
		Phone:     req.Phone,
		Subject:   req.Subject,
		Message:   req.Message,
		CreatedAt: createdAt,
	}, nil
}

// GetContact fetches one contact message.
func (r *PostgresRepository) GetContact(ctx context.Context, id string) (*ContactMessage, error) {
	query := `
		SELECT id::text, name, email, phone, subject, message, created_at
		FROM contact_messages
		WHERE id = $1
	`
	var msg ContactMessage
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&msg.ID,
		&msg.Name,
		&msg.Email,
		&msg.Phone,
		&msg.Subject,
		&msg.Message,
		&msg.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContactNotFound
		}
		return nil, fmt.Errorf("leads: select failed: %w", err)
	}
	return &msg, nil
}

// ListContacts returns contact messages, newest first.
func (r *PostgresRepository) ListContacts(ctx context.Context, filter ListFilter) ([]*ContactMessage, error) {
	query := `
		SELECT id::text, name, email, phone, subject, message, created_at
		FROM contact_messages
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, query, limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("leads: list failed: %w", err)
	}
	defer rows.Close()

	out := []*ContactMessage{}
	for rows.Next() {
		var msg ContactMessage
		if err := rows.Scan(&msg.ID, &msg.Name, &msg.Email, &msg.Phone, &msg.Subject, &msg.Message, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("leads: scan failed: %w", err)
		}
		out = append(out, &msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("leads: iterate failed: %w", err)
	}
	return out, nil
}

// Subscribe inserts email unless it is already present.
func (r *PostgresRepository) Subscribe(ctx context.Context, email string) (*Subscription, bool, error) {
	query := `
		INSERT INTO newsletter_subscriptions (email)
		VALUES ($1)
		ON CONFLICT (email) DO NOTHING
	`
	tag, err := r.db.Exec(ctx, query, email)
	if err != nil {
		return nil, false, fmt.Errorf("leads: subscribe failed: %w", err)
	}
	created := tag.RowsAffected() == 1

	var sub Subscription
	if err := r.db.QueryRow(ctx,
		`SELECT email, created_at FROM newsletter_subscriptions WHERE email = $1`, email,
	).Scan(&sub.Email, &sub.CreatedAt); err != nil {
		return nil, false, fmt.Errorf("leads: load subscription failed: %w", err)
	}
	return &sub, created, nil
}
