package segment

import (
	"context"
	"database/sql"
	"fmt"
	"iter"
	"log/slog"
	"strconv"
	"time"
)

// DefaultPageSize is the page size used by Process when none is given.
const DefaultPageSize = 1000

// Executor is the SQL execution port. *sql.DB and *sql.Conn satisfy it.
type Executor interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// Query produces the statements a Segment executes.
// *query.SegmentQuery implements it.
type Query interface {
	PagerKey() string
	CountQuery() (string, error)
	IDsQuery() (string, error)
	NextPageQuery(lastID int64, pageSize int) (string, error)
	IsInQuery(field string, value any) (string, error)
	Query() (string, error)
}

// SimulableQuery can produce a query-plan statement.
type SimulableQuery interface {
	Query
	SimulationQuery() (string, error)
}

// Row is one result row keyed by column name. Text columns are strings.
type Row map[string]any

// Int64 returns column key as an integer.
func (r Row) Int64(key string) (int64, bool) {
	switch v := r[key].(type) {
	case int64:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case float64:
		return int64(v), v == float64(int64(v))
	case string:
		n, err := strconv.ParseInt(v, 10, 64)
		return n, err == nil
	default:
		return 0, false
	}
}

// String returns column key formatted as text.
func (r Row) String(key string) string {
	v, ok := r[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Segment executes one segment's queries.
type Segment struct {
	db      Executor
	query   Query
	timeout time.Duration
}

// Option configures a Segment.
type Option func(*Segment)

// WithStatementTimeout bounds every statement the segment executes.
// Zero disables the bound.
func WithStatementTimeout(d time.Duration) Option {
	return func(s *Segment) { s.timeout = d }
}

// New creates a segment executing q against db.
func New(db Executor, q Query, opts ...Option) *Segment {
	s := &Segment{db: db, query: q}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Query returns the fully resolved SQL of the segment.
func (s *Segment) Query() (string, error) {
	return s.query.Query()
}

// TotalCount returns the number of rows in the segment, 0 for an empty
// result set.
func (s *Segment) TotalCount(ctx context.Context) (int64, error) {
	q, err := s.query.CountQuery()
	if err != nil {
		return 0, err
	}
	var count int64
	err = s.run(ctx, "count", q, func(rows *sql.Rows) error {
		if rows.Next() {
			return rows.Scan(&count)
		}
		return nil
	})
	return count, err
}

// IDs returns the ids of every row in the segment, in result order.
func (s *Segment) IDs(ctx context.Context) ([]int64, error) {
	q, err := s.query.IDsQuery()
	if err != nil {
		return nil, err
	}
	ids := []int64{}
	err = s.run(ctx, "ids", q, func(rows *sql.Rows) error {
		for rows.Next() {
			var id int64
			if err := rows.Scan(&id); err != nil {
				return err
			}
			ids = append(ids, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ids, nil
}

// IsIn reports whether a segment row has field equal to value. field
// must come from an allow-list of column names.
func (s *Segment) IsIn(ctx context.Context, field string, value any) (bool, error) {
	q, err := s.query.IsInQuery(field, value)
	if err != nil {
		return false, err
	}
	var count int64
	err = s.run(ctx, "is_in", q, func(rows *sql.Rows) error {
		if rows.Next() {
			return rows.Scan(&count)
		}
		return nil
	})
	return count > 0, err
}

// Simulate asks the database for the query plan without materializing
// rows. Queries that cannot produce a plan statement fall back to the
// count query.
func (s *Segment) Simulate(ctx context.Context) error {
	var (
		q   string
		err error
	)
	if sq, ok := s.query.(SimulableQuery); ok {
		q, err = sq.SimulationQuery()
	} else {
		q, err = s.query.CountQuery()
	}
	if err != nil {
		return err
	}
	return s.run(ctx, "simulate", q, func(rows *sql.Rows) error {
		for rows.Next() {
		}
		return nil
	})
}

// Rows iterates the segment with keyset pagination. Each page is read
// completely before its rows are yielded, so the consumer may issue its
// own queries. A pageSize of 0 or less fetches everything in one
// unbounded page.
//
// The sequence is not seekable; ranging over it again starts over.
func (s *Segment) Rows(ctx context.Context, pageSize int) iter.Seq2[Row, error] {
	if pageSize < 0 {
		pageSize = 0
	}
	return func(yield func(Row, error) bool) {
		key := s.query.PagerKey()
		var lastID int64
		for {
			q, err := s.query.NextPageQuery(lastID, pageSize)
			if err != nil {
				yield(nil, err)
				return
			}
			page, err := s.fetch(ctx, q)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, row := range page {
				id, ok := row.Int64(key)
				if !ok {
					yield(nil, &SegmentError{Op: "process", Query: q, Err: fmt.Errorf("row has no integer %q column", key)})
					return
				}
				if id > lastID {
					lastID = id
				}
				if !yield(row, nil) {
					return
				}
			}
			if pageSize == 0 || len(page) < pageSize {
				return
			}
		}
	}
}

// Process calls fn for every row of the segment, page by page. It stops
// at the first error returned by fn or by the database.
func (s *Segment) Process(ctx context.Context, pageSize int, fn func(Row) error) error {
	for row, err := range s.Rows(ctx, pageSize) {
		if err != nil {
			return err
		}
		if err := fn(row); err != nil {
			return err
		}
	}
	return nil
}

func (s *Segment) fetch(ctx context.Context, q string) ([]Row, error) {
	var page []Row
	err := s.run(ctx, "process", q, func(rows *sql.Rows) error {
		cols, err := rows.Columns()
		if err != nil {
			return err
		}
		for rows.Next() {
			values := make([]any, len(cols))
			ptrs := make([]any, len(cols))
			for i := range values {
				ptrs[i] = &values[i]
			}
			if err := rows.Scan(ptrs...); err != nil {
				return err
			}
			row := make(Row, len(cols))
			for i, col := range cols {
				if b, ok := values[i].([]byte); ok {
					row[col] = string(b)
					continue
				}
				row[col] = values[i]
			}
			page = append(page, row)
		}
		return nil
	})
	return page, err
}

// run executes q and hands the rows to read, wrapping every failure.
func (s *Segment) run(ctx context.Context, op, q string, read func(*sql.Rows) error) error {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	slog.Debug("executing segment query", "op", op)
	rows, err := s.db.QueryContext(ctx, q)
	if err != nil {
		return &SegmentError{Op: op, Query: q, Err: err}
	}
	defer rows.Close()

	if err := read(rows); err != nil {
		return &SegmentError{Op: op, Query: q, Err: err}
	}
	if err := rows.Err(); err != nil {
		return &SegmentError{Op: op, Query: q, Err: err}
	}
	return nil
}
