package store

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/remp2020/crm-segment-module/internal/model"
)

const segmentColumns = `id, name, version, code, table_name, fields, query_string, criteria,
	segment_group_id, locked, note, cache_count, cache_count_time, cache_count_periodicity,
	cache_count_updated_at, created_at, updated_at, deleted_at`

type scanner interface {
	Scan(dest ...any) error
}

// Update lists segment fields to change. Nil fields are left untouched.
type Update struct {
	Name                  *string
	Version               *int
	Code                  *string
	TableName             *string
	Fields                *string
	QueryString           *string
	Criteria              *json.RawMessage
	GroupID               *int64
	Note                  *string
	CacheCountPeriodicity *model.Periodicity
}

// protected reports whether u touches a field frozen by locking.
func (u Update) protected() bool {
	return u.Version != nil || u.Code != nil || u.TableName != nil ||
		u.Fields != nil || u.QueryString != nil || u.Criteria != nil
}

func (u Update) apply(seg *model.Segment) {
	if u.Name != nil {
		seg.Name = *u.Name
	}
	if u.Version != nil {
		seg.Version = *u.Version
	}
	if u.Code != nil {
		seg.Code = *u.Code
	}
	if u.TableName != nil {
		seg.TableName = *u.TableName
	}
	if u.Fields != nil {
		seg.Fields = *u.Fields
	}
	if u.QueryString != nil {
		seg.QueryString = *u.QueryString
	}
	if u.Criteria != nil {
		seg.Criteria = *u.Criteria
	}
	if u.GroupID != nil {
		seg.GroupID = *u.GroupID
	}
	if u.Note != nil {
		seg.Note = *u.Note
	}
	if u.CacheCountPeriodicity != nil {
		p := *u.CacheCountPeriodicity
		seg.CacheCountPeriodicity = &p
	}
}

// AddSegment inserts a segment and returns the stored row.
// Returns ErrDuplicateCode if a non-deleted segment already uses the code.
func (s *Store) AddSegment(ctx context.Context, seg model.Segment) (model.Segment, error) {
	periodicity, err := marshalPeriodicity(seg.CacheCountPeriodicity)
	if err != nil {
		return model.Segment{}, fmt.Errorf("add segment %s: %w", seg.Code, err)
	}
	if seg.Version == 0 {
		seg.Version = model.VersionRaw
	}

	now := s.timestamp()
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO segments
		(name, version, code, table_name, fields, query_string, criteria, segment_group_id,
		 locked, note, cache_count_periodicity, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		seg.Name,
		seg.Version,
		seg.Code,
		seg.TableName,
		seg.Fields,
		seg.QueryString,
		nullJSON(seg.Criteria),
		seg.GroupID,
		seg.Locked,
		seg.Note,
		periodicity,
		now,
		now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Segment{}, fmt.Errorf("add segment %s: %w", seg.Code, ErrDuplicateCode)
		}
		return model.Segment{}, fmt.Errorf("add segment %s: %w", seg.Code, err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return model.Segment{}, fmt.Errorf("add segment %s: %w", seg.Code, err)
	}
	return s.FindByID(ctx, id)
}

// UpdateSegment applies u to the segment with the given id.
// Returns ErrLocked if the segment is locked and u changes a protected field.
func (s *Store) UpdateSegment(ctx context.Context, id int64, u Update) (model.Segment, error) {
	seg, err := s.FindByID(ctx, id)
	if err != nil {
		return model.Segment{}, err
	}
	if seg.Locked && u.protected() {
		return model.Segment{}, fmt.Errorf("update segment %s: %w", seg.Code, ErrLocked)
	}
	u.apply(&seg)

	periodicity, err := marshalPeriodicity(seg.CacheCountPeriodicity)
	if err != nil {
		return model.Segment{}, fmt.Errorf("update segment %s: %w", seg.Code, err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE segments SET
			name = ?, version = ?, code = ?, table_name = ?, fields = ?, query_string = ?,
			criteria = ?, segment_group_id = ?, note = ?, cache_count_periodicity = ?,
			updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`,
		seg.Name,
		seg.Version,
		seg.Code,
		seg.TableName,
		seg.Fields,
		seg.QueryString,
		nullJSON(seg.Criteria),
		seg.GroupID,
		seg.Note,
		periodicity,
		s.timestamp(),
		id,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return model.Segment{}, fmt.Errorf("update segment %s: %w", seg.Code, ErrDuplicateCode)
		}
		return model.Segment{}, fmt.Errorf("update segment %s: %w", seg.Code, err)
	}
	return s.FindByID(ctx, id)
}

// Lock freezes the segment definition.
func (s *Store) Lock(ctx context.Context, id int64) error {
	return s.setLocked(ctx, id, true)
}

// Unlock allows the segment definition to change again.
func (s *Store) Unlock(ctx context.Context, id int64) error {
	return s.setLocked(ctx, id, false)
}

func (s *Store) setLocked(ctx context.Context, id int64, locked bool) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE segments SET locked = ?, updated_at = ? WHERE id = ? AND deleted_at IS NULL
	`, locked, s.timestamp(), id)
	if err != nil {
		return fmt.Errorf("set locked on segment %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set locked on segment %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("segment %d: %w", id, model.ErrNotFound)
	}
	return nil
}

// FindByCode returns the non-deleted segment with the given code.
func (s *Store) FindByCode(ctx context.Context, code string) (model.Segment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+segmentColumns+` FROM segments WHERE code = ? AND deleted_at IS NULL
	`, code)
	seg, err := scanSegment(row)
	if err != nil {
		return model.Segment{}, fmt.Errorf("segment %s: %w", code, err)
	}
	return seg, nil
}

// FindByID returns the non-deleted segment with the given id.
func (s *Store) FindByID(ctx context.Context, id int64) (model.Segment, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+segmentColumns+` FROM segments WHERE id = ? AND deleted_at IS NULL
	`, id)
	seg, err := scanSegment(row)
	if err != nil {
		return model.Segment{}, fmt.Errorf("segment %d: %w", id, err)
	}
	return seg, nil
}

// Exists reports whether a non-deleted segment uses the code.
func (s *Store) Exists(ctx context.Context, code string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM segments WHERE code = ? AND deleted_at IS NULL
	`, code).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check segment %s: %w", code, err)
	}
	return n > 0, nil
}

// Count returns the number of segment rows ever created, deleted included.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM segments`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count segments: %w", err)
	}
	return n, nil
}

// All returns every non-deleted segment ordered by id.
func (s *Store) All(ctx context.Context) ([]model.Segment, error) {
	return s.querySegments(ctx, `
		SELECT `+segmentColumns+` FROM segments
		WHERE deleted_at IS NULL
		ORDER BY id ASC
	`)
}

// FindByTableAndVersion returns non-deleted segments over table authored
// with the given version.
func (s *Store) FindByTableAndVersion(ctx context.Context, table string, version int) ([]model.Segment, error) {
	return s.querySegments(ctx, `
		SELECT `+segmentColumns+` FROM segments
		WHERE deleted_at IS NULL AND table_name = ? AND version = ?
		ORDER BY id ASC
	`, table, version)
}

// FindByTable returns non-deleted segments over table.
func (s *Store) FindByTable(ctx context.Context, table string) ([]model.Segment, error) {
	return s.querySegments(ctx, `
		SELECT `+segmentColumns+` FROM segments
		WHERE deleted_at IS NULL AND table_name = ?
		ORDER BY id ASC
	`, table)
}

// FindReferencing returns non-deleted segments whose template contains
// token, excluding the segment with excludeID.
func (s *Store) FindReferencing(ctx context.Context, token string, excludeID int64) ([]model.Segment, error) {
	return s.querySegments(ctx, `
		SELECT `+segmentColumns+` FROM segments
		WHERE deleted_at IS NULL AND id != ? AND instr(query_string, ?) > 0
		ORDER BY id ASC
	`, excludeID, token)
}

// SoftDelete stamps deleted_at and renames the code with a random suffix
// so the code can be reused. Returns ErrLocked for a locked segment.
func (s *Store) SoftDelete(ctx context.Context, id int64) error {
	seg, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if seg.Locked {
		return fmt.Errorf("delete segment %s: %w", seg.Code, ErrLocked)
	}
	now := s.timestamp()
	_, err = s.db.ExecContext(ctx, `
		UPDATE segments SET code = ?, deleted_at = ?, updated_at = ? WHERE id = ?
	`, seg.Code+"_"+s.suffix(), now, now, id)
	if err != nil {
		return fmt.Errorf("delete segment %s: %w", seg.Code, err)
	}
	return nil
}

// Upsert creates the segment, or updates the definition of the
// non-deleted segment with the same code. Only changed fields are
// written, so an unchanged locked segment is left alone. It reports
// whether a row was created.
func (s *Store) Upsert(ctx context.Context, seg model.Segment) (model.Segment, bool, error) {
	existing, err := s.FindByCode(ctx, seg.Code)
	if errors.Is(err, model.ErrNotFound) {
		created, err := s.AddSegment(ctx, seg)
		return created, err == nil, err
	}
	if err != nil {
		return model.Segment{}, false, err
	}

	var u Update
	if seg.Name != existing.Name {
		u.Name = &seg.Name
	}
	if seg.TableName != existing.TableName {
		u.TableName = &seg.TableName
	}
	if seg.Fields != existing.Fields {
		u.Fields = &seg.Fields
	}
	if seg.QueryString != existing.QueryString {
		u.QueryString = &seg.QueryString
	}
	if seg.GroupID != existing.GroupID {
		u.GroupID = &seg.GroupID
	}
	if seg.Version != 0 && seg.Version != existing.Version {
		u.Version = &seg.Version
	}
	if seg.Criteria != nil && !bytes.Equal(seg.Criteria, existing.Criteria) {
		u.Criteria = &seg.Criteria
	}
	if seg.Note != "" && seg.Note != existing.Note {
		u.Note = &seg.Note
	}
	if seg.CacheCountPeriodicity != nil && (existing.CacheCountPeriodicity == nil || *seg.CacheCountPeriodicity != *existing.CacheCountPeriodicity) {
		u.CacheCountPeriodicity = seg.CacheCountPeriodicity
	}
	if u == (Update{}) {
		return existing, false, nil
	}
	updated, err := s.UpdateSegment(ctx, existing.ID, u)
	return updated, false, err
}

func (s *Store) querySegments(ctx context.Context, query string, args ...any) ([]model.Segment, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query segments: %w", err)
	}
	defer rows.Close()

	segments := []model.Segment{}
	for rows.Next() {
		seg, err := scanSegment(rows)
		if err != nil {
			return nil, err
		}
		segments = append(segments, seg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate segments: %w", err)
	}
	return segments, nil
}

func scanSegment(sc scanner) (model.Segment, error) {
	var (
		seg         model.Segment
		criteria    sql.NullString
		countTime   sql.NullFloat64
		periodicity sql.NullString
		countAt     sql.NullString
		created     string
		updated     string
		deleted     sql.NullString
	)
	err := sc.Scan(
		&seg.ID,
		&seg.Name,
		&seg.Version,
		&seg.Code,
		&seg.TableName,
		&seg.Fields,
		&seg.QueryString,
		&criteria,
		&seg.GroupID,
		&seg.Locked,
		&seg.Note,
		&seg.CacheCount,
		&countTime,
		&periodicity,
		&countAt,
		&created,
		&updated,
		&deleted,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Segment{}, model.ErrNotFound
		}
		return model.Segment{}, fmt.Errorf("scan segment: %w", err)
	}

	if criteria.Valid {
		seg.Criteria = json.RawMessage(criteria.String)
	}
	if countTime.Valid {
		v := countTime.Float64
		seg.CacheCountTime = &v
	}
	if periodicity.Valid && periodicity.String != "" {
		var p model.Periodicity
		if err := json.Unmarshal([]byte(periodicity.String), &p); err != nil {
			return model.Segment{}, fmt.Errorf("segment %s: decode periodicity: %w", seg.Code, err)
		}
		seg.CacheCountPeriodicity = &p
	}
	if seg.CacheCountUpdatedAt, err = parseNullTime(countAt); err != nil {
		return model.Segment{}, err
	}
	if seg.CreatedAt, err = parseTime(created); err != nil {
		return model.Segment{}, err
	}
	if seg.UpdatedAt, err = parseTime(updated); err != nil {
		return model.Segment{}, err
	}
	if seg.DeletedAt, err = parseNullTime(deleted); err != nil {
		return model.Segment{}, err
	}
	return seg, nil
}

func marshalPeriodicity(p *model.Periodicity) (any, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal periodicity: %w", err)
	}
	return string(data), nil
}

func nullJSON(raw json.RawMessage) any {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}
