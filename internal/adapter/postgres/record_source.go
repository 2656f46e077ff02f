package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"scaletrack/internal/domain"
)

const uniqueViolation = "23505"

var _ domain.RecordSource = (*DB)(nil)

// FindByDate returns the record for an owner and day, or (nil, nil).
func (d *DB) FindByDate(ctx context.Context, ownerID int64, date string) (*domain.Record, error) {
	row := d.sql.QueryRowContext(ctx,
		`SELECT id, user_id, day, value, body_fat, note, is_public, created_at, updated_at
		 FROM weight_records WHERE user_id = $1 AND day = $2;`,
		ownerID, date,
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Create inserts a new record. The per-(owner, day) uniqueness constraint
// turns a duplicate insert into domain.ErrConflict.
func (d *DB) Create(ctx context.Context, ownerID int64, draft domain.RecordDraft) (*domain.Record, error) {
	now := time.Now().UTC()
	rec := &domain.Record{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Date:      draft.Date,
		Value:     draft.Value,
		BodyFat:   draft.BodyFat,
		Note:      draft.Note,
		Public:    draft.Public,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := d.sql.ExecContext(ctx,
		`INSERT INTO weight_records(id, user_id, day, value, body_fat, note, is_public, created_at, updated_at)
		 VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9);`,
		rec.ID, rec.OwnerID, rec.Date, rec.Value, nullFloat(rec.BodyFat), rec.Note, rec.Public, rec.CreatedAt, rec.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && string(pqErr.Code) == uniqueViolation {
			return nil, domain.ErrConflict
		}
		return nil, err
	}
	return rec, nil
}

// Update overwrites the mutable fields of an existing record.
func (d *DB) Update(ctx context.Context, recordID string, draft domain.RecordDraft) (*domain.Record, error) {
	row := d.sql.QueryRowContext(ctx,
		`UPDATE weight_records
		 SET value = $2, body_fat = $3, note = $4, is_public = $5, updated_at = $6
		 WHERE id = $1
		 RETURNING id, user_id, day, value, body_fat, note, is_public, created_at, updated_at;`,
		recordID, draft.Value, nullFloat(draft.BodyFat), draft.Note, draft.Public, time.Now().UTC(),
	)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListRange returns an owner's records with start <= day <= end, oldest first.
func (d *DB) ListRange(ctx context.Context, ownerID int64, start, end string) ([]domain.Record, error) {
	if err := checkRange(start, end); err != nil {
		return nil, err
	}
	rows, err := d.sql.QueryContext(ctx,
		`SELECT id, user_id, day, value, body_fat, note, is_public, created_at, updated_at
		 FROM weight_records WHERE user_id = $1 AND day >= $2 AND day <= $3 ORDER BY day;`,
		ownerID, start, end,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.Record, 0)
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	return out, rows.Err()
}

// ListMonthlyAverages returns one averaged row per calendar month touching
// the range. AVG skips NULL body-fat values, so avg_body_fat is NULL exactly
// when no record in the month carried one.
func (d *DB) ListMonthlyAverages(ctx context.Context, ownerID int64, start, end string) ([]domain.AggregateRecord, error) {
	if err := checkRange(start, end); err != nil {
		return nil, err
	}
	rows, err := d.sql.QueryContext(ctx,
		`SELECT substring(day from 1 for 7) AS period, AVG(value), AVG(body_fat)
		 FROM weight_records WHERE user_id = $1 AND day >= $2 AND day <= $3
		 GROUP BY period ORDER BY period;`,
		ownerID, start, end,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]domain.AggregateRecord, 0)
	for rows.Next() {
		var agg domain.AggregateRecord
		var fat sql.NullFloat64
		if err := rows.Scan(&agg.PeriodKey, &agg.AvgValue, &fat); err != nil {
			return nil, err
		}
		if fat.Valid {
			agg.AvgBodyFat = &fat.Float64
		}
		out = append(out, agg)
	}
	return out, rows.Err()
}

func checkRange(start, end string) error {
	// ISO day strings order lexicographically.
	if end < start {
		return &domain.ValidationError{Field: "range", Reason: "end date precedes start date"}
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*domain.Record, error) {
	var rec domain.Record
	var fat sql.NullFloat64
	err := row.Scan(&rec.ID, &rec.OwnerID, &rec.Date, &rec.Value, &fat, &rec.Note, &rec.Public, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if fat.Valid {
		rec.BodyFat = &fat.Float64
	}
	return &rec, nil
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
