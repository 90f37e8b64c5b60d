package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

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

// PostgresRepository stores service orders in the relational database.
type PostgresRepository struct {
	pool PgxPool
	now  func() time.Time
}

// NewPostgresRepository initializes a repo backed by pgx.
func NewPostgresRepository(pool PgxPool) *PostgresRepository {
	if pool == nil {
		panic("orders: pgx pool required")
	}
	return &PostgresRepository{pool: pool, now: time.Now}
}

// WithClock overrides the time source, for tests.
func (r *PostgresRepository) WithClock(now func() time.Time) *PostgresRepository {
	r.now = now
	return r
}

const orderColumns = `id, user_id, order_number, client_name, client_phone, client_email,
	client_address, title, description, category, priority, status,
	COALESCE(estimated_amount, 0), total_amount, notes, parts,
	opened_at, expected_at, completed_at, created_at, updated_at`

func scanOrder(row pgx.Row) (*ServiceOrder, error) {
	var o ServiceOrder
	var parts []byte
	if err := row.Scan(
		&o.ID, &o.UserID, &o.OrderNumber, &o.ClientName, &o.ClientPhone, &o.ClientEmail,
		&o.ClientAddress, &o.Title, &o.Description, &o.Category, &o.Priority, &o.Status,
		&o.EstimatedAmount, &o.TotalAmount, &o.Notes, &parts,
		&o.OpenedAt, &o.ExpectedAt, &o.CompletedAt, &o.CreatedAt, &o.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("orders: scan order: %w", err)
	}
	if len(parts) > 0 {
		if err := json.Unmarshal(parts, &o.Parts); err != nil {
			return nil, fmt.Errorf("orders: decode parts: %w", err)
		}
	}
	return &o, nil
}

// Create inserts a new order, generating the per-day sequential number.
// A concurrent insert can steal the number; the unique violation is
// retried with a fresh sequence.
func (r *PostgresRepository) Create(ctx context.Context, userID uuid.UUID, in *CreateOrderInput) (*ServiceOrder, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	priority := in.Priority
	if priority == "" {
		priority = PriorityNormal
	}

	now := r.now().UTC()
	prefix := "OS-" + now.Format("20060102") + "-%"

	var lastErr error
	for attempt := 0; attempt < 3; attempt++ {
		var seq int
		if err := r.pool.QueryRow(ctx,
			`SELECT COUNT(*) + 1 FROM service_orders WHERE order_number LIKE $1`,
			prefix,
		).Scan(&seq); err != nil {
			return nil, fmt.Errorf("orders: next sequence: %w", err)
		}

		query := `
			INSERT INTO service_orders (
				id, user_id, order_number, client_name, client_phone, client_email,
				client_address, title, description, category, priority, status,
				estimated_amount, total_amount, notes, expected_at, opened_at
			)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)
			RETURNING ` + orderColumns
		order, err := scanOrder(r.pool.QueryRow(ctx, query,
			uuid.New(), userID, OrderNumberFor(now, seq),
			in.ClientName, in.ClientPhone, in.ClientEmail, in.ClientAddress,
			in.Title, in.Description, in.Category, priority, StatusOpen,
			in.EstimatedAmount, in.TotalAmount, in.Notes, in.ExpectedAt, now,
		))
		if err == nil {
			return order, nil
		}
		lastErr = err
		var pgErr *pgconn.PgError
		if !errors.As(err, &pgErr) || pgErr.Code != "23505" {
			break
		}
	}
	return nil, fmt.Errorf("orders: insert failed: %w", lastErr)
}

// GetByNumber fetches an order by its human-readable number, scoped to
// the owning user unless userID is uuid.Nil.
func (r *PostgresRepository) GetByNumber(ctx context.Context, userID uuid.UUID, number string) (*ServiceOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM service_orders WHERE order_number = $1`
	args := []any{number}
	if userID != uuid.Nil {
		query += ` AND user_id = $2`
		args = append(args, userID)
	}
	return scanOrder(r.pool.QueryRow(ctx, query, args...))
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*ServiceOrder, error) {
	query := `SELECT ` + orderColumns + ` FROM service_orders WHERE id = $1`
	return scanOrder(r.pool.QueryRow(ctx, query, id))
}

func (r *PostgresRepository) List(ctx context.Context, filter ListFilter) ([]*ServiceOrder, error) {
	where, args := buildOrderFilter(filter, r.now)
	query := `SELECT ` + orderColumns + ` FROM service_orders` + where + ` ORDER BY opened_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("orders: list failed: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (r *PostgresRepository) UpdateStatus(ctx context.Context, userID uuid.UUID, number, status string) (*ServiceOrder, error) {
	if !ValidStatus(status) {
		return nil, ErrInvalidStatus
	}
	query := `
		UPDATE service_orders
		SET status = $1,
		    completed_at = CASE WHEN $1 = 'done' THEN now() ELSE NULL END,
		    updated_at = now()
		WHERE order_number = $2 AND ($3::uuid IS NULL OR user_id = $3)
		RETURNING ` + orderColumns
	return scanOrder(r.pool.QueryRow(ctx, query, status, number, nullableUUID(userID)))
}

func (r *PostgresRepository) Update(ctx context.Context, userID uuid.UUID, number string, in *UpdateOrderInput) (*ServiceOrder, error) {
	if in.Empty() {
		return nil, ErrEmptyUpdate
	}
	if in.Priority != nil && !ValidPriority(*in.Priority) {
		return nil, ErrInvalidPriority
	}
	if in.TotalAmount != nil && *in.TotalAmount < 0 {
		return nil, ErrNegativeAmount
	}

	sets := []string{"updated_at = now()"}
	var args []any
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if in.ClientName != nil {
		add("client_name", *in.ClientName)
	}
	if in.ClientPhone != nil {
		add("client_phone", *in.ClientPhone)
	}
	if in.ClientEmail != nil {
		add("client_email", *in.ClientEmail)
	}
	if in.ClientAddress != nil {
		add("client_address", *in.ClientAddress)
	}
	if in.Title != nil {
		add("title", *in.Title)
	}
	if in.Description != nil {
		add("description", *in.Description)
	}
	if in.Category != nil {
		add("category", *in.Category)
	}
	if in.Priority != nil {
		add("priority", *in.Priority)
	}
	if in.TotalAmount != nil {
		add("total_amount", *in.TotalAmount)
	}
	if in.ExpectedAt != nil {
		add("expected_at", *in.ExpectedAt)
	}

	args = append(args, number)
	numberArg := len(args)
	args = append(args, nullableUUID(userID))
	userArg := len(args)

	query := fmt.Sprintf(
		`UPDATE service_orders SET %s WHERE order_number = $%d AND ($%d::uuid IS NULL OR user_id = $%d) RETURNING %s`,
		strings.Join(sets, ", "), numberArg, userArg, userArg, orderColumns,
	)
	return scanOrder(r.pool.QueryRow(ctx, query, args...))
}

func (r *PostgresRepository) AppendNote(ctx context.Context, userID uuid.UUID, number, note string) (*ServiceOrder, error) {
	if strings.TrimSpace(note) == "" {
		return nil, ErrEmptyUpdate
	}
	query := `
		UPDATE service_orders
		SET notes = CASE WHEN notes = '' THEN $1 ELSE notes || E'\n' || $1 END,
		    updated_at = now()
		WHERE order_number = $2 AND ($3::uuid IS NULL OR user_id = $3)
		RETURNING ` + orderColumns
	return scanOrder(r.pool.QueryRow(ctx, query, note, number, nullableUUID(userID)))
}

func (r *PostgresRepository) AddPart(ctx context.Context, userID uuid.UUID, number string, part Part) (*ServiceOrder, error) {
	if strings.TrimSpace(part.Name) == "" {
		return nil, ErrEmptyUpdate
	}
	if part.Quantity <= 0 {
		part.Quantity = 1
	}
	encoded, err := json.Marshal(part)
	if err != nil {
		return nil, fmt.Errorf("orders: encode part: %w", err)
	}
	query := `
		UPDATE service_orders
		SET parts = parts || $1::jsonb, updated_at = now()
		WHERE order_number = $2 AND ($3::uuid IS NULL OR user_id = $3)
		RETURNING ` + orderColumns
	return scanOrder(r.pool.QueryRow(ctx, query, encoded, number, nullableUUID(userID)))
}

func (r *PostgresRepository) SearchByClient(ctx context.Context, userID uuid.UUID, query string, limit int) ([]*ServiceOrder, error) {
	q := strings.TrimSpace(query)
	if q == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 20
	}
	sql := `
		SELECT ` + orderColumns + `
		FROM service_orders
		WHERE (client_name ILIKE $1 OR client_phone LIKE $2)
		  AND ($3::uuid IS NULL OR user_id = $3)
		ORDER BY opened_at DESC
		LIMIT $4`
	rows, err := r.pool.Query(ctx, sql, "%"+q+"%", "%"+q+"%", nullableUUID(userID), limit)
	if err != nil {
		return nil, fmt.Errorf("orders: search failed: %w", err)
	}
	defer rows.Close()
	return collectOrders(rows)
}

func (r *PostgresRepository) Totals(ctx context.Context, filter ListFilter) (*Totals, error) {
	where, args := buildOrderFilter(filter, r.now)
	query := `
		SELECT status, COUNT(*), COALESCE(SUM(estimated_amount), 0), COALESCE(SUM(total_amount), 0)
		FROM service_orders` + where + `
		GROUP BY status`
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("orders: totals failed: %w", err)
	}
	defer rows.Close()

	totals := &Totals{ByStatus: make(map[string]int)}
	for rows.Next() {
		var status string
		var count int
		var estimated, final float64
		if err := rows.Scan(&status, &count, &estimated, &final); err != nil {
			return nil, fmt.Errorf("orders: scan totals: %w", err)
		}
		totals.Count += count
		totals.EstimatedSum += estimated
		totals.FinalSum += final
		totals.ByStatus[status] = count
	}
	return totals, rows.Err()
}

func (r *PostgresRepository) Balance(ctx context.Context, userID uuid.UUID, period string, now time.Time) (*Balance, error) {
	since, err := PeriodStart(period, now)
	if err != nil {
		return nil, err
	}
	query := `
		SELECT COUNT(*), COALESCE(SUM(total_amount), 0)
		FROM service_orders
		WHERE opened_at >= $1 AND status <> 'cancelled'
		  AND ($2::uuid IS NULL OR user_id = $2)`
	bal := &Balance{Period: period, Since: since}
	if err := r.pool.QueryRow(ctx, query, since, nullableUUID(userID)).Scan(&bal.Count, &bal.Sum); err != nil {
		return nil, fmt.Errorf("orders: balance failed: %w", err)
	}
	return bal, nil
}

func buildOrderFilter(filter ListFilter, now func() time.Time) (string, []any) {
	var clauses []string
	var args []any
	if filter.UserID != uuid.Nil {
		args = append(args, filter.UserID)
		clauses = append(clauses, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		clauses = append(clauses, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.Days > 0 {
		args = append(args, now().UTC().AddDate(0, 0, -filter.Days))
		clauses = append(clauses, fmt.Sprintf("opened_at >= $%d", len(args)))
	}
	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func collectOrders(rows pgx.Rows) ([]*ServiceOrder, error) {
	var out []*ServiceOrder
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, order)
	}
	return out, rows.Err()
}

func nullableUUID(id uuid.UUID) *uuid.UUID {
	if id == uuid.Nil {
		return nil
	}
	return &id
}
