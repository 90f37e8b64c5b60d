package leads

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PgxPool is the subset of pgxpool.Pool the repository needs. pgxmock
// satisfies it in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresRepository stores leads in the relational database.
type PostgresRepository struct {
	pool PgxPool
}

// NewPostgresRepository initializes a repo backed by pgx.
func NewPostgresRepository(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("leads: pgx pool required")
	}
	return &PostgresRepository{pool: pool}
}

const leadColumns = `id, nome, email, telefone, feedback, welcome_sent, created_at, updated_at`

func scanLead(row pgx.Row) (*Lead, error) {
	var l Lead
	if err := row.Scan(
		&l.ID, &l.Nome, &l.Email, &l.Telefone, &l.Feedback,
		&l.WelcomeSent, &l.CreatedAt, &l.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLeadNotFound
		}
		return nil, fmt.Errorf("leads: scan: %w", err)
	}
	return &l, nil
}

// Upsert inserts the lead or refreshes the existing row for the email.
// A blank telefone or feedback never erases a stored value.
func (r *PostgresRepository) Upsert(ctx context.Context, req *CadastrarRequest) (*Lead, bool, error) {
	if err := req.Validate(); err != nil {
		return nil, false, err
	}

	query := `
		INSERT INTO leads (id, nome, email, telefone, feedback)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (email) DO UPDATE SET
			nome = EXCLUDED.nome,
			telefone = CASE WHEN EXCLUDED.telefone <> '' THEN EXCLUDED.telefone ELSE leads.telefone END,
			feedback = CASE WHEN EXCLUDED.feedback <> '' THEN EXCLUDED.feedback ELSE leads.feedback END,
			updated_at = now()
		RETURNING ` + leadColumns + `, (xmax = 0) AS inserted`

	var l Lead
	var inserted bool
	if err := r.pool.QueryRow(ctx, query,
		uuid.New(), req.Nome, req.Email, req.Telefone, req.Feedback,
	).Scan(
		&l.ID, &l.Nome, &l.Email, &l.Telefone, &l.Feedback,
		&l.WelcomeSent, &l.CreatedAt, &l.UpdatedAt, &inserted,
	); err != nil {
		return nil, false, fmt.Errorf("leads: upsert: %w", err)
	}
	return &l, inserted, nil
}

func (r *PostgresRepository) GetByEmail(ctx context.Context, email string) (*Lead, error) {
	query := `SELECT ` + leadColumns + ` FROM leads WHERE email = $1`
	return scanLead(r.pool.QueryRow(ctx, query, email))
}

func (r *PostgresRepository) List(ctx context.Context, limit, offset int) ([]*Lead, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := `SELECT ` + leadColumns + ` FROM leads ORDER BY created_at DESC LIMIT $1 OFFSET $2`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("leads: list: %w", err)
	}
	defer rows.Close()

	var out []*Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) MarkWelcomeSent(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `UPDATE leads SET welcome_sent = true, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("leads: mark welcome sent: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLeadNotFound
	}
	return nil
}
