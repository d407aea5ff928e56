// Package sqlite implements the repositories on an embedded SQLite database.
// Values are stored as decimal text and timestamps as unix nanoseconds.
package sqlite

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/iho/goexpense/internal/domain"
	"github.com/iho/goexpense/internal/usecase"
)

type recordRow struct {
	ID          string `db:"id"`
	UserID      string `db:"user_id"`
	Description string `db:"description"`
	Value       string `db:"value"`
	Date        string `db:"date"`
	CreatedAt   int64  `db:"created_at"`
	UpdatedAt   int64  `db:"updated_at"`
}

func (r recordRow) toDomain() (*domain.Record, error) {
	value, err := decimal.NewFromString(r.Value)
	if err != nil {
		return nil, fmt.Errorf("record %s has malformed value %q: %w", r.ID, r.Value, err)
	}

	return &domain.Record{
		ID:          r.ID,
		Owner:       r.UserID,
		Description: r.Description,
		Value:       value,
		Date:        r.Date,
		CreatedAt:   time.Unix(0, r.CreatedAt).UTC(),
	}, nil
}

// RecordRepository implements usecase.RecordRepository.
type RecordRepository struct {
	db    *sqlx.DB
	idGen usecase.IDGenerator
	now   func() time.Time
}

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(db *sqlx.DB, idGen usecase.IDGenerator) *RecordRepository {
	return &RecordRepository{db: db, idGen: idGen, now: time.Now}
}

// Query returns the owner's records, newest date first.
func (r *RecordRepository) Query(ctx context.Context, filter usecase.RecordFilter) ([]*domain.Record, error) {
	var rows []recordRow
	err := r.db.SelectContext(ctx, &rows, `
		SELECT id, user_id, description, value, date, created_at, updated_at
		FROM records
		WHERE user_id = ?
		ORDER BY date DESC, created_at ASC, id ASC
	`, filter.Owner)
	if err != nil {
		return nil, classify(err)
	}

	records := make([]*domain.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.toDomain()
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, nil
}

// Insert stores a record. A repeated insert of the same ID is a no-op.
func (r *RecordRepository) Insert(ctx context.Context, record *domain.Record) (string, error) {
	row := recordRow{
		ID:          record.ID,
		UserID:      record.Owner,
		Description: record.Description,
		Value:       record.Value.String(),
		Date:        record.Date,
		CreatedAt:   record.CreatedAt.UnixNano(),
	}
	if row.ID == "" {
		row.ID = r.idGen.Generate()
	}
	if record.CreatedAt.IsZero() {
		row.CreatedAt = r.now().UnixNano()
	}
	row.UpdatedAt = row.CreatedAt

	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO records (id, user_id, description, value, date, created_at, updated_at)
		VALUES (:id, :user_id, :description, :value, :date, :created_at, :updated_at)
		ON CONFLICT (id) DO NOTHING
	`, row)
	if err != nil {
		return "", classify(err)
	}

	return row.ID, nil
}

// Update sets description and value on the owner's record.
func (r *RecordRepository) Update(ctx context.Context, id, owner string, patch domain.RecordPatch) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE records
		SET description = ?, value = ?, updated_at = ?
		WHERE id = ? AND user_id = ?
	`, patch.Description, patch.Value.String(), r.now().UnixNano(), id, owner)
	if err != nil {
		return classify(err)
	}

	return requireAffected(res.RowsAffected())
}

// Delete removes the owner's record.
func (r *RecordRepository) Delete(ctx context.Context, id, owner string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM records WHERE id = ? AND user_id = ?`, id, owner)
	if err != nil {
		return classify(err)
	}

	return requireAffected(res.RowsAffected())
}

func requireAffected(n int64, err error) error {
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrRecordNotFound
	}
	return nil
}
