package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/shopspring/decimal"

	"github.com/iho/goexpense/internal/domain"
)

type fakeRow struct {
	err error
}

func (r fakeRow) Scan(...any) error { return r.err }

type fakeDB struct {
	execTag  string
	execErr  error
	rowErr   error
	lastSQL  string
	lastArgs []any
}

func (f *fakeDB) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	f.lastSQL = sql
	f.lastArgs = args
	return pgconn.NewCommandTag(f.execTag), f.execErr
}

func (f *fakeDB) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeDB) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	f.lastSQL = sql
	f.lastArgs = args
	return fakeRow{err: f.rowErr}
}

type fixedIDGen struct{ id string }

func (g fixedIDGen) Generate() string { return g.id }

func TestDecimalNumericRoundTrip(t *testing.T) {
	for _, s := range []string{"0", "45.5", "45.50", "1000000000000", "0.01"} {
		d := decimal.RequireFromString(s)
		got := numericToDecimal(decimalToNumeric(d))
		if !got.Equal(d) {
			t.Fatalf("round trip of %s gave %s", s, got)
		}
	}
}

func TestDateConversion(t *testing.T) {
	d, err := dateToPgDate("2024-01-02")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := pgDateToString(d); got != "2024-01-02" {
		t.Fatalf("expected 2024-01-02, got %s", got)
	}

	if _, err := dateToPgDate("02/01/2024"); err == nil {
		t.Fatal("expected error for non ISO date")
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		transient bool
	}{
		{name: "deadlock", err: &pgconn.PgError{Code: pgErrDeadlock}, transient: true},
		{name: "serialization", err: &pgconn.PgError{Code: pgErrSerializationFailure}, transient: true},
		{name: "connection failure", err: &pgconn.PgError{Code: "08006"}, transient: true},
		{name: "admin shutdown", err: &pgconn.PgError{Code: pgErrAdminShutdown}, transient: true},
		{name: "unique violation", err: &pgconn.PgError{Code: pgErrUniqueViolation}, transient: false},
		{name: "generic", err: errors.New("other"), transient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := classify(tt.err)
			if errors.Is(got, domain.ErrTransient) != tt.transient {
				t.Fatalf("transient=%v, got %v", tt.transient, got)
			}
			if !errors.Is(got, tt.err) {
				t.Fatalf("original error lost: %v", got)
			}
		})
	}

	if classify(nil) != nil {
		t.Fatal("expected nil for nil error")
	}
}

func TestRecordRepository_InsertAssignsID(t *testing.T) {
	db := &fakeDB{execTag: "INSERT 0 1"}
	repo := &RecordRepository{db: db, idGen: fixedIDGen{id: "generated"}}

	rec := &domain.Record{Owner: "alice", Description: "Coffee", Value: decimal.NewFromInt(3), Date: "2024-01-02", CreatedAt: time.Now()}

	id, err := repo.Insert(context.Background(), rec)
	if err != nil || id != "generated" {
		t.Fatalf("unexpected result id=%s err=%v", id, err)
	}
	if db.lastArgs[0] != "generated" || db.lastArgs[1] != "alice" {
		t.Fatalf("unexpected args %v", db.lastArgs)
	}

	rec.ID = "preset"
	id, err = repo.Insert(context.Background(), rec)
	if err != nil || id != "preset" {
		t.Fatalf("expected preset id to be kept, got id=%s err=%v", id, err)
	}
}

func TestRecordRepository_InsertRejectsBadDate(t *testing.T) {
	db := &fakeDB{}
	repo := &RecordRepository{db: db, idGen: fixedIDGen{id: "x"}}

	_, err := repo.Insert(context.Background(), &domain.Record{Date: "yesterday"})
	if err == nil {
		t.Fatal("expected error for invalid date")
	}
	if db.lastSQL != "" {
		t.Fatal("expected no statement to be executed")
	}
}

func TestRecordRepository_UpdateAndDeleteNotFound(t *testing.T) {
	repo := &RecordRepository{db: &fakeDB{execTag: "UPDATE 0"}}
	patch := domain.RecordPatch{Description: "x", Value: decimal.NewFromInt(1)}

	if err := repo.Update(context.Background(), "r1", "alice", patch); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}

	repo = &RecordRepository{db: &fakeDB{execTag: "DELETE 0"}}
	if err := repo.Delete(context.Background(), "r1", "alice"); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("expected ErrRecordNotFound, got %v", err)
	}

	repo = &RecordRepository{db: &fakeDB{execTag: "DELETE 1"}}
	if err := repo.Delete(context.Background(), "r1", "alice"); err != nil {
		t.Fatalf("expected success, got %v", err)
	}
}

func TestRecordRepository_ExecErrorsAreClassified(t *testing.T) {
	repo := &RecordRepository{db: &fakeDB{execErr: &pgconn.PgError{Code: pgErrDeadlock}}}

	err := repo.Delete(context.Background(), "r1", "alice")
	if !errors.Is(err, domain.ErrTransient) {
		t.Fatalf("expected ErrTransient, got %v", err)
	}
}

func TestUserRepository_Errors(t *testing.T) {
	repo := &UserRepository{db: &fakeDB{execErr: &pgconn.PgError{Code: pgErrUniqueViolation}}}
	if err := repo.Create(context.Background(), &domain.User{ID: "u1"}); !errors.Is(err, domain.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	repo = &UserRepository{db: &fakeDB{rowErr: pgx.ErrNoRows}}
	if _, err := repo.GetByID(context.Background(), "u1"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
	if _, err := repo.GetByEmail(context.Background(), "a@b.co"); !errors.Is(err, domain.ErrUserNotFound) {
		t.Fatalf("expected ErrUserNotFound, got %v", err)
	}
}
