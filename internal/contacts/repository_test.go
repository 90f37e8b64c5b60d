package contacts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

func now() time.Time { return time.Now().UTC() }

func TestUpsertIsIdempotentPerPhone(t *testing.T) {
	repo := NewInMemoryRepository()
	userID := uuid.New()

	first, err := repo.Upsert(context.Background(), userID, &UpsertInput{Phone: "+55 11 99999-0000", Name: "João"})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if first.Phone != "5511999990000" {
		t.Fatalf("expected normalized phone, got %s", first.Phone)
	}

	second, err := repo.Upsert(context.Background(), userID, &UpsertInput{Phone: "5511999990000", Name: "João Silva"})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if second.ID != first.ID {
		t.Fatal("expected the same contact row on repeat upsert")
	}
	if second.Name != "João Silva" {
		t.Fatalf("expected name updated, got %s", second.Name)
	}

	all, err := repo.List(context.Background(), userID, 0)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected exactly one contact, got %d", len(all))
	}
}

func TestUpsertKeepsFieldsOnBlankInput(t *testing.T) {
	repo := NewInMemoryRepository()
	userID := uuid.New()

	repo.Upsert(context.Background(), userID, &UpsertInput{Phone: "5511988887777", Name: "Maria", Email: "maria@example.com"})
	updated, err := repo.Upsert(context.Background(), userID, &UpsertInput{Phone: "5511988887777", Notes: "prefere manhã"})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if updated.Name != "Maria" || updated.Email != "maria@example.com" {
		t.Fatalf("blank fields overwrote stored values: %#v", updated)
	}
	if updated.Notes != "prefere manhã" {
		t.Fatalf("expected notes set, got %q", updated.Notes)
	}
}

func TestUpsertRequiresPhone(t *testing.T) {
	repo := NewInMemoryRepository()
	if _, err := repo.Upsert(context.Background(), uuid.New(), &UpsertInput{Name: "sem telefone"}); !errors.Is(err, ErrPhoneRequired) {
		t.Fatalf("expected phone required, got %v", err)
	}
}

func TestSearchAndDelete(t *testing.T) {
	repo := NewInMemoryRepository()
	userID := uuid.New()
	repo.Upsert(context.Background(), userID, &UpsertInput{Phone: "5511999990000", Name: "João"})
	repo.Upsert(context.Background(), userID, &UpsertInput{Phone: "5511988887777", Name: "Maria", Favorite: true})

	byName, err := repo.Search(context.Background(), userID, "mar", 10)
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if len(byName) != 1 || byName[0].Name != "Maria" {
		t.Fatalf("unexpected search result: %#v", byName)
	}

	if err := repo.Delete(context.Background(), userID, "5511999990000"); err != nil {
		t.Fatalf("delete failed: %v", err)
	}
	if _, err := repo.FindByPhone(context.Background(), userID, "5511999990000"); !errors.Is(err, ErrContactNotFound) {
		t.Fatalf("expected not found after delete, got %v", err)
	}
	if err := repo.Delete(context.Background(), userID, "5511999990000"); !errors.Is(err, ErrContactNotFound) {
		t.Fatalf("expected not found on double delete, got %v", err)
	}
}

func TestContactsAreScopedPerUser(t *testing.T) {
	repo := NewInMemoryRepository()
	owner := uuid.New()
	other := uuid.New()
	repo.Upsert(context.Background(), owner, &UpsertInput{Phone: "5511999990000", Name: "João"})

	if _, err := repo.FindByPhone(context.Background(), other, "5511999990000"); !errors.Is(err, ErrContactNotFound) {
		t.Fatalf("expected other user to miss, got %v", err)
	}
}

func TestPostgresUpsertConflictClause(t *testing.T) {
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("failed to create pgx mock: %v", err)
	}
	defer mock.Close()

	repo := NewPostgresRepository(mock)
	userID := uuid.New()
	contactID := uuid.New()

	rows := pgxmock.NewRows([]string{"id", "user_id", "phone", "name", "email", "notes", "favorite", "created_at", "updated_at"}).
		AddRow(contactID, userID, "5511999990000", "João Silva", "", "", false, now(), now())
	mock.ExpectQuery("INSERT INTO contacts").
		WithArgs(pgxmock.AnyArg(), userID, "5511999990000", "João Silva", "", "", false).
		WillReturnRows(rows)

	contact, err := repo.Upsert(context.Background(), userID, &UpsertInput{Phone: "+55 (11) 99999-0000", Name: "João Silva"})
	if err != nil {
		t.Fatalf("upsert failed: %v", err)
	}
	if contact.ID != contactID || contact.Phone != "5511999990000" {
		t.Fatalf("unexpected contact: %#v", contact)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
