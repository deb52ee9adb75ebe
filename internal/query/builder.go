package query

import (
	"encoding/json"
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/remp2020/crm-segment-module/internal/model"
	"github.com/remp2020/crm-segment-module/internal/params"
)

// DefaultPagerKey is the column used for keyset pagination.
const DefaultPagerKey = "id"

// DefaultMaxDepth bounds nested segment resolution.
const DefaultMaxDepth = 16

var (
	segmentToken = regexp.MustCompile(`%segment\.(.+?)%`)
	numeric      = regexp.MustCompile(`^[+-]?(\d+\.?\d*|\.\d+)([eE][+-]?\d+)?$`)
)

// SegmentQuery builds the concrete SQL statements of one segment.
type SegmentQuery struct {
	query    string
	table    string
	fields   string
	pagerKey string
	nested   map[string]model.Segment
	maxDepth int
}

// Option configures a SegmentQuery.
type Option func(*SegmentQuery)

// WithPagerKey sets the pagination column (bare name, without table).
func WithPagerKey(key string) Option {
	return func(q *SegmentQuery) {
		q.pagerKey = key
	}
}

// WithNestedSegments supplies the segments referenced through
// %segment.<code>% tokens, usually from Resolver.Resolve.
func WithNestedSegments(nested map[string]model.Segment) Option {
	return func(q *SegmentQuery) {
		q.nested = nested
	}
}

// WithMaxDepth bounds nested inlining.
func WithMaxDepth(depth int) Option {
	return func(q *SegmentQuery) {
		q.maxDepth = depth
	}
}

// New creates a builder for cfg.
func New(cfg Config, opts ...Option) *SegmentQuery {
	q := &SegmentQuery{
		query:    cfg.QueryString,
		table:    cfg.TableName,
		fields:   cfg.Fields,
		pagerKey: DefaultPagerKey,
		maxDepth: DefaultMaxDepth,
	}
	for _, opt := range opts {
		opt(q)
	}
	return q
}

// PagerKey returns the bare pagination column name.
func (q *SegmentQuery) PagerKey() string {
	return q.pagerKey
}

func (q *SegmentQuery) pagerColumn() string {
	return q.table + "." + q.pagerKey
}

// CountQuery returns a query producing a single row with the segment size.
func (q *SegmentQuery) CountQuery() (string, error) {
	base, err := q.build(q.pagerColumn()+" AS _crm_pager_key", "", nil)
	if err != nil {
		return "", err
	}
	return "SELECT count(*) FROM (" + base + ") AS a", nil
}

// IDsQuery returns a query listing the ids of the segment as column id.
func (q *SegmentQuery) IDsQuery() (string, error) {
	base, err := q.build(q.table+".id AS _crm_id", "", nil)
	if err != nil {
		return "", err
	}
	return "SELECT a._crm_id AS id FROM (" + base + ") AS a", nil
}

// NextPageQuery returns the page of rows following lastID in pager order.
// A pageSize of 0 returns every remaining row.
func (q *SegmentQuery) NextPageQuery(lastID int64, pageSize int) (string, error) {
	base, err := q.build("", fmt.Sprintf("%s > %d", q.pagerColumn(), lastID), nil)
	if err != nil {
		return "", err
	}
	sql := base + " ORDER BY " + q.pagerColumn()
	if pageSize > 0 {
		sql += " LIMIT " + strconv.Itoa(pageSize)
	}
	return sql, nil
}

// IsInQuery returns a query counting segment rows whose field equals value.
// field is concatenated into SQL text and must come from an allow-list.
func (q *SegmentQuery) IsInQuery(field string, value any) (string, error) {
	if !identifier.MatchString(field) {
		return "", fmt.Errorf("invalid membership field %q", field)
	}
	base, err := q.build(q.pagerColumn(), "", nil)
	if err != nil {
		return "", err
	}
	return "SELECT count(*) FROM (" + base + ") AS a WHERE a." + field + " = " + literal(value), nil
}

// SimulationQuery returns the query plan statement of the resolved query.
func (q *SegmentQuery) SimulationQuery() (string, error) {
	sql, err := q.Query()
	if err != nil {
		return "", err
	}
	return "EXPLAIN " + sql, nil
}

// Query returns the fully resolved SQL without pagination.
func (q *SegmentQuery) Query() (string, error) {
	return q.build("", "", nil)
}

// build substitutes every placeholder. path holds the codes of the
// segments being inlined, outermost first.
func (q *SegmentQuery) build(extraSelect, where string, path []string) (string, error) {
	var fields, groupBy []string
	for _, f := range append(splitFields(q.fields), splitFields(extraSelect)...) {
		fields = append(fields, qualify(q.table, f))
		groupBy = append(groupBy, expression(f))
	}

	sql := q.query
	sql = strings.ReplaceAll(sql, "%table%", q.table)
	sql = strings.ReplaceAll(sql, "%fields%", strings.Join(unique(fields), ", "))
	sql = strings.ReplaceAll(sql, "%group_by%", strings.Join(unique(groupBy), ", "))

	sql, err := q.inline(sql, path)
	if err != nil {
		return "", err
	}

	if where == "" {
		where = "1=1"
	}
	return strings.ReplaceAll(sql, "%where%", where), nil
}

// inline replaces %segment.<code>% tokens with the nested segments' SQL.
func (q *SegmentQuery) inline(sql string, path []string) (string, error) {
	codes := Codes(sql)
	if len(codes) == 0 {
		return sql, nil
	}
	if q.nested == nil {
		return "", newRequiredError(codes)
	}
	if len(path) >= q.maxDepth {
		return "", newDepthError(path, q.maxDepth)
	}

	var missing []string
	for _, code := range codes {
		if _, ok := q.nested[code]; !ok {
			missing = append(missing, code)
		}
	}
	if len(missing) > 0 {
		return "", newMissingError(missing)
	}

	for _, code := range codes {
		if slices.Contains(path, code) {
			return "", newCycleError(append(slices.Clone(path), code))
		}
		seg := q.nested[code]
		child := &SegmentQuery{
			query:    seg.QueryString,
			table:    seg.TableName,
			fields:   seg.Fields,
			pagerKey: q.pagerKey,
			nested:   q.nested,
			maxDepth: q.maxDepth,
		}
		resolved, err := child.build("", "", append(slices.Clone(path), code))
		if err != nil {
			return "", err
		}
		sql = strings.ReplaceAll(sql, Token(code), resolved)
	}
	return sql, nil
}

// Codes returns the distinct segment codes referenced by a template, in
// order of first appearance.
func Codes(template string) []string {
	var codes []string
	for _, m := range segmentToken.FindAllStringSubmatch(template, -1) {
		if !slices.Contains(codes, m[1]) {
			codes = append(codes, m[1])
		}
	}
	return codes
}

// Token returns the placeholder referencing the segment with code.
func Token(code string) string {
	return "%segment." + code + "%"
}

// literal renders a membership value; numbers stay bare, anything else
// becomes a quoted string.
func literal(value any) string {
	switch v := value.(type) {
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		if numeric.MatchString(v.String()) {
			return v.String()
		}
		return params.Quote(v.String())
	case string:
		if numeric.MatchString(v) {
			return v
		}
		return params.Quote(v)
	default:
		return params.Quote(fmt.Sprint(v))
	}
}
