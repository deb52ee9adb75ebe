package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/remp2020/crm-segment-module/internal/model"
)

// CacheSegmentCount stores a freshly computed count on the segment and
// appends it to the segment's value history, atomically.
func (s *Store) CacheSegmentCount(ctx context.Context, id int64, count int64, elapsed time.Duration) error {
	now := s.timestamp()
	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE segments SET cache_count = ?, cache_count_time = ?, cache_count_updated_at = ?
			WHERE id = ? AND deleted_at IS NULL
		`, count, elapsed.Seconds(), now, id)
		if err != nil {
			return fmt.Errorf("cache count of segment %d: %w", id, err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("cache count of segment %d: %w", id, err)
		}
		if n == 0 {
			return fmt.Errorf("segment %d: %w", id, model.ErrNotFound)
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO segments_values (segment_id, date, value) VALUES (?, ?, ?)
		`, id, now, count)
		if err != nil {
			return fmt.Errorf("record value of segment %d: %w", id, err)
		}
		return nil
	})
}

// DailyValues returns the highest recorded count per day for a segment,
// oldest first. Zero from or to leaves that side of the range open; to
// is exclusive.
func (s *Store) DailyValues(ctx context.Context, segmentID int64, from, to time.Time) ([]model.DailyValue, error) {
	query := `
		SELECT substr(date, 1, 10) AS day, MAX(value)
		FROM segments_values
		WHERE segment_id = ?`
	args := []any{segmentID}
	if !from.IsZero() {
		query += ` AND date >= ?`
		args = append(args, formatTime(from))
	}
	if !to.IsZero() {
		query += ` AND date < ?`
		args = append(args, formatTime(to))
	}
	query += `
		GROUP BY day
		ORDER BY day ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query daily values: %w", err)
	}
	defer rows.Close()

	values := []model.DailyValue{}
	for rows.Next() {
		var v model.DailyValue
		if err := rows.Scan(&v.Date, &v.Count); err != nil {
			return nil, fmt.Errorf("scan daily value: %w", err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate daily values: %w", err)
	}
	return values, nil
}
