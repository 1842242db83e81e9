package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hitoshi/blogcore/internal/model"
)

// PostgresContactRepo はPostgreSQLを使用したお問い合わせリポジトリ。
type PostgresContactRepo struct {
	db *sql.DB
}

// NewPostgresContactRepo はPostgresContactRepoを生成する。
func NewPostgresContactRepo(db *sql.DB) *PostgresContactRepo {
	return &PostgresContactRepo{db: db}
}

// Create はお問い合わせを保存する。
func (r *PostgresContactRepo) Create(ctx context.Context, contact *model.Contact) error {
	err := r.db.QueryRowContext(ctx,
		`INSERT INTO contacts (name, email, subject, message)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, created_at`,
		contact.Name, contact.Email, contact.Subject, contact.Message,
	).Scan(&contact.ID, &contact.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert contact: %w", err)
	}
	return nil
}

// List は全お問い合わせを新しい順で返す。
func (r *PostgresContactRepo) List(ctx context.Context) ([]*model.Contact, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, email, subject, message, created_at
		 FROM contacts
		 ORDER BY created_at DESC, id DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	var contacts []*model.Contact
	for rows.Next() {
		c := &model.Contact{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Email, &c.Subject, &c.Message, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contacts: %w", err)
	}
	return contacts, nil
}

// compile-time interface check
var _ ContactRepository = (*PostgresContactRepo)(nil)
