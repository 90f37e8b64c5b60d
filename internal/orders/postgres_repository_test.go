package orders

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

var orderTestColumns = []string{
	"id", "user_id", "order_number", "client_name", "client_phone", "client_email",
	"client_address", "title", "description", "category", "priority", "status",
	"estimated_amount", "total_amount", "notes", "parts",
	"opened_at", "expected_at", "completed_at", "created_at", "updated_at",
}

// anyInsertArgs matches the 17 positional arguments of the insert query;
// pgxmock requires the argument count to line up even when values are not
// pinned.
func anyInsertArgs() []any {
	args := make([]any, 17)
	for i := range args {
		args[i] = pgxmock.AnyArg()
	}
	return args
}

func orderRow(id, userID uuid.UUID, number string, now time.Time) *pgxmock.Rows {
	return pgxmock.NewRows(orderTestColumns).AddRow(
		id, userID, number, "João", "5511999990000", "", "",
		"troca de torneira", "", "", PriorityNormal, StatusOpen,
		0.0, 150.0, "", []byte(`[]`),
		now, nil, nil, now, now,
	)
}

func TestPostgresCreateRetriesOnNumberCollision(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	now := time.Date(2026, 8, 30, 10, 0, 0, 0, time.UTC)
	repo := NewPostgresRepository(mock).WithClock(func() time.Time { return now })
	userID := uuid.New()

	// first attempt collides, second succeeds with a fresh sequence
	mock.ExpectQuery("SELECT COUNT").WithArgs("OS-20260830-%").
		WillReturnRows(pgxmock.NewRows([]string{"seq"}).AddRow(3))
	mock.ExpectQuery("INSERT INTO service_orders").WithArgs(anyInsertArgs()...).
		WillReturnError(&pgconn.PgError{Code: "23505"})
	mock.ExpectQuery("SELECT COUNT").WithArgs("OS-20260830-%").
		WillReturnRows(pgxmock.NewRows([]string{"seq"}).AddRow(4))
	mock.ExpectQuery("INSERT INTO service_orders").WithArgs(anyInsertArgs()...).
		WillReturnRows(orderRow(uuid.New(), userID, "OS-20260830-000004", now))

	order, err := repo.Create(context.Background(), userID, &CreateOrderInput{ClientName: "João", TotalAmount: 150})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if order.OrderNumber != "OS-20260830-000004" {
		t.Fatalf("unexpected order number: %s", order.OrderNumber)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresGetByNumberNotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	userID := uuid.New()
	mock.ExpectQuery("SELECT").WithArgs("OS-20260830-000099", userID).
		WillReturnRows(pgxmock.NewRows(orderTestColumns))

	if _, err := repo.GetByNumber(context.Background(), userID, "OS-20260830-000099"); !errors.Is(err, ErrOrderNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestPostgresBalanceAggregates(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	userID := uuid.New()
	now := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	since := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT COUNT").WithArgs(since, &userID).
		WillReturnRows(pgxmock.NewRows([]string{"count", "sum"}).AddRow(2, 200.0))

	bal, err := repo.Balance(context.Background(), userID, "month", now)
	if err != nil {
		t.Fatalf("balance failed: %v", err)
	}
	if bal.Count != 2 || bal.Sum != 200 {
		t.Fatalf("unexpected balance: %#v", bal)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestPostgresTotalsGroupsByStatus(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	userID := uuid.New()

	rows := pgxmock.NewRows([]string{"status", "count", "estimated", "final"}).
		AddRow(StatusOpen, 3, 100.0, 300.0).
		AddRow(StatusDone, 1, 0.0, 150.0)
	mock.ExpectQuery("SELECT status, COUNT").WithArgs(userID).WillReturnRows(rows)

	totals, err := repo.Totals(context.Background(), ListFilter{UserID: userID})
	if err != nil {
		t.Fatalf("totals failed: %v", err)
	}
	if totals.Count != 4 || totals.FinalSum != 450 || totals.ByStatus[StatusOpen] != 3 {
		t.Fatalf("unexpected totals: %#v", totals)
	}
}
