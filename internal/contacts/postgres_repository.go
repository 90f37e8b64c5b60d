package contacts

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/castrolabs/osbot/internal/whatsapp"
)

// PgxPool is the subset of pgxpool.Pool the repository needs.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores contacts in the relational database.
type PostgresRepository struct {
	pool PgxPool
}

// NewPostgresRepository initializes a repo backed by pgx.
func NewPostgresRepository(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("contacts: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

const contactColumns = `id, user_id, phone, name, email, notes, favorite, created_at, updated_at`

func scanContact(row pgx.Row) (*Contact, error) {
	var c Contact
	if err := row.Scan(&c.ID, &c.UserID, &c.Phone, &c.Name, &c.Email, &c.Notes, &c.Favorite, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrContactNotFound
		}
		return nil, fmt.Errorf("contacts: scan contact: %w", err)
	}
	return &c, nil
}

// Upsert inserts or updates the row for (user_id, phone). Blank incoming
// text fields keep the stored values.
func (r *PostgresRepository) Upsert(ctx context.Context, userID uuid.UUID, in *UpsertInput) (*Contact, error) {
	if err := in.Normalize(); err != nil {
		return nil, err
	}
	query := `
		INSERT INTO contacts (id, user_id, phone, name, email, notes, favorite)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, phone) DO UPDATE SET
			name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE contacts.name END,
			email = CASE WHEN EXCLUDED.email <> '' THEN EXCLUDED.email ELSE contacts.email END,
			notes = CASE WHEN EXCLUDED.notes <> '' THEN EXCLUDED.notes ELSE contacts.notes END,
			favorite = EXCLUDED.favorite,
			updated_at = now()
		RETURNING ` + contactColumns
	return scanContact(r.pool.QueryRow(ctx, query,
		uuid.New(), userID, in.Phone, in.Name, in.Email, in.Notes, in.Favorite,
	))
}

func (r *PostgresRepository) FindByPhone(ctx context.Context, userID uuid.UUID, phone string) (*Contact, error) {
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE user_id = $1 AND phone = $2`
	return scanContact(r.pool.QueryRow(ctx, query, userID, whatsapp.NormalizePhone(phone)))
}

func (r *PostgresRepository) Search(ctx context.Context, userID uuid.UUID, query string, limit int) ([]*Contact, error) {
	if limit <= 0 {
		limit = 20
	}
	sql := `
		SELECT ` + contactColumns + `
		FROM contacts
		WHERE user_id = $1 AND (name ILIKE $2 OR phone LIKE $3)
		ORDER BY favorite DESC, name
		LIMIT $4`
	rows, err := r.pool.Query(ctx, sql, userID, "%"+query+"%", "%"+whatsapp.NormalizePhone(query)+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("contacts: search failed: %w", err)
	}
	defer rows.Close()
	return collectContacts(rows)
}

func (r *PostgresRepository) List(ctx context.Context, userID uuid.UUID, limit int) ([]*Contact, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `SELECT ` + contactColumns + ` FROM contacts WHERE user_id = $1 ORDER BY favorite DESC, name LIMIT $2`
	rows, err := r.pool.Query(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("contacts: list failed: %w", err)
	}
	defer rows.Close()
	return collectContacts(rows)
}

func (r *PostgresRepository) Delete(ctx context.Context, userID uuid.UUID, phone string) error {
	ct, err := r.pool.Exec(ctx,
		`DELETE FROM contacts WHERE user_id = $1 AND phone = $2`,
		userID, whatsapp.NormalizePhone(phone),
	)
	if err != nil {
		return fmt.Errorf("contacts: delete failed: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return ErrContactNotFound
	}
	return nil
}

func collectContacts(rows pgx.Rows) ([]*Contact, error) {
	var out []*Contact
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, contact)
	}
	return out, rows.Err()
}
