package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/iho/goexpense/internal/domain"
	"github.com/iho/goexpense/internal/usecase"
)

// RecordRepository implements usecase.RecordRepository.
type RecordRepository struct {
	db    dbtx
	idGen usecase.IDGenerator
}

// NewRecordRepository creates a new RecordRepository.
func NewRecordRepository(pool *pgxpool.Pool, idGen usecase.IDGenerator) *RecordRepository {
	return &RecordRepository{db: pool, idGen: idGen}
}

// Query returns the owner's records, newest date first.
func (r *RecordRepository) Query(ctx context.Context, filter usecase.RecordFilter) ([]*domain.Record, error) {
	query := `
		SELECT id, user_id, description, value, date, created_at
		FROM records
		WHERE user_id = $1
		ORDER BY date DESC, created_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, filter.Owner)
	if err != nil {
		return nil, classify(err)
	}
	defer rows.Close()

	records := make([]*domain.Record, 0)
	for rows.Next() {
		var (
			rec       domain.Record
			value     pgtype.Numeric
			date      pgtype.Date
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(&rec.ID, &rec.Owner, &rec.Description, &value, &date, &createdAt); err != nil {
			return nil, classify(err)
		}
		rec.Value = numericToDecimal(value)
		rec.Date = pgDateToString(date)
		rec.CreatedAt = createdAt.Time
		records = append(records, &rec)
	}

	return records, classify(rows.Err())
}

// Insert stores a record. A repeated insert of the same ID is a no-op.
func (r *RecordRepository) Insert(ctx context.Context, record *domain.Record) (string, error) {
	id := record.ID
	if id == "" {
		id = r.idGen.Generate()
	}

	date, err := dateToPgDate(record.Date)
	if err != nil {
		return "", err
	}

	createdAt := record.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	query := `
		INSERT INTO records (id, user_id, description, value, date, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (id) DO NOTHING
	`

	_, err = r.db.Exec(ctx, query,
		id,
		record.Owner,
		record.Description,
		decimalToNumeric(record.Value),
		date,
		timeToPgTimestamptz(createdAt),
	)
	if err != nil {
		return "", classify(err)
	}

	return id, nil
}

// Update sets description and value on the owner's record.
func (r *RecordRepository) Update(ctx context.Context, id, owner string, patch domain.RecordPatch) error {
	query := `
		UPDATE records
		SET description = $3, value = $4, updated_at = $5
		WHERE id = $1 AND user_id = $2
	`

	tag, err := r.db.Exec(ctx, query,
		id,
		owner,
		patch.Description,
		decimalToNumeric(patch.Value),
		timeToPgTimestamptz(time.Now().UTC()),
	)
	if err != nil {
		return classify(err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrRecordNotFound
	}

	return nil
}

// Delete removes the owner's record.
func (r *RecordRepository) Delete(ctx context.Context, id, owner string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM records WHERE id = $1 AND user_id = $2`, id, owner)
	if err != nil {
		return classify(err)
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrRecordNotFound
	}

	return nil
}
