// Package service orchestrates segment authoring, execution and
// maintenance on top of the store, the criteria generator and the
// execution engine. The CLI and any other outer layer talk to Service.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/remp2020/crm-segment-module/internal/criteria"
	"github.com/remp2020/crm-segment-module/internal/model"
	"github.com/remp2020/crm-segment-module/internal/query"
	"github.com/remp2020/crm-segment-module/internal/segment"
	"github.com/remp2020/crm-segment-module/internal/store"
	"github.com/remp2020/crm-segment-module/internal/validator"
)

// RelatedLimit caps the number of segments Related returns.
const RelatedLimit = 5

// Repository is the segment persistence the service needs.
// *store.Store implements it.
type Repository interface {
	query.Repository

	FindByID(ctx context.Context, id int64) (model.Segment, error)
	Exists(ctx context.Context, code string) (bool, error)
	Count(ctx context.Context) (int64, error)
	All(ctx context.Context) ([]model.Segment, error)
	FindByTableAndVersion(ctx context.Context, table string, version int) ([]model.Segment, error)
	AddSegment(ctx context.Context, seg model.Segment) (model.Segment, error)
	UpdateSegment(ctx context.Context, id int64, u store.Update) (model.Segment, error)
	Upsert(ctx context.Context, seg model.Segment) (model.Segment, bool, error)
	SoftDelete(ctx context.Context, id int64) error
	CacheSegmentCount(ctx context.Context, id int64, count int64, elapsed time.Duration) error
	DailyValues(ctx context.Context, segmentID int64, from, to time.Time) ([]model.DailyValue, error)

	AddGroup(ctx context.Context, g model.Group) (model.Group, error)
	FindGroupByCode(ctx context.Context, code string) (model.Group, error)
	FindGroupByID(ctx context.Context, id int64) (model.Group, error)
}

// Service is safe for concurrent use when its collaborators are.
type Service struct {
	repo          Repository
	registry      criteria.Registry
	generator     *criteria.Generator
	factory       *segment.Factory
	validator     *validator.QueryValidator
	maxDepth      int
	timeout       time.Duration
	slowThreshold time.Duration
	now           func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithValidator sets the query validator. The default forbids nothing.
func WithValidator(v *validator.QueryValidator) Option {
	return func(s *Service) { s.validator = v }
}

// WithMaxDepth bounds nested segment resolution.
func WithMaxDepth(depth int) Option {
	return func(s *Service) { s.maxDepth = depth }
}

// WithStatementTimeout bounds every segment statement.
func WithStatementTimeout(d time.Duration) Option {
	return func(s *Service) { s.timeout = d }
}

// WithSlowThreshold sets the duration above which a recalculation is
// logged as slow. Zero disables the warning.
func WithSlowThreshold(d time.Duration) Option {
	return func(s *Service) { s.slowThreshold = d }
}

// WithClock sets the time source used for due checks and timings.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a service over repo, running segments against db.
func New(repo Repository, db segment.Executor, registry criteria.Registry, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		registry:  registry,
		generator: criteria.NewGenerator(registry),
		validator: validator.New(),
		maxDepth:  query.DefaultMaxDepth,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.factory = segment.NewFactory(db, repo,
		segment.WithMaxDepth(s.maxDepth),
		segment.WithTimeout(s.timeout),
	)
	return s
}

// Factory returns the segment factory.
func (s *Service) Factory() *segment.Factory {
	return s.factory
}

// Validator returns the query validator.
func (s *Service) Validator() *validator.QueryValidator {
	return s.validator
}

// Segment builds the stored segment with the given code.
func (s *Service) Segment(ctx context.Context, code string) (*segment.Segment, error) {
	return s.factory.BuildByCode(ctx, code)
}

// Compile parses and compiles a criteria tree for table.
func (s *Service) Compile(ctx context.Context, table string, criteriaJSON []byte, fields []string) (*criteria.Compiled, error) {
	tree, err := parseTree(criteriaJSON)
	if err != nil {
		return nil, err
	}
	return s.generator.Compile(ctx, table, tree, fields)
}

// Count compiles an unsaved criteria tree and counts its rows.
func (s *Service) Count(ctx context.Context, table string, criteriaJSON []byte) (int64, error) {
	if table == "" {
		return 0, &RequestError{Message: "param missing: table_name"}
	}
	tree, err := parseTree(criteriaJSON)
	if err != nil {
		return 0, err
	}
	template, err := s.generator.Process(ctx, table, tree)
	if err != nil {
		return 0, err
	}
	seg, err := s.factory.Build(ctx, query.Config{
		TableName:   table,
		QueryString: template,
		Fields:      table + ".id",
	})
	if err != nil {
		return 0, err
	}
	return seg.TotalCount(ctx)
}

// Resolver types accepted by Check.
const (
	ResolveByID    = "id"
	ResolveByEmail = "email"
)

// Check reports whether the row identified by resolverType/value is a
// member of the segment with the given code. An id that is not a
// canonical integer is never a member.
func (s *Service) Check(ctx context.Context, code, resolverType, value string) (bool, error) {
	var field string
	var arg any
	switch resolverType {
	case ResolveByID:
		id, err := strconv.ParseInt(value, 10, 64)
		if err != nil || strconv.FormatInt(id, 10) != value {
			return false, nil
		}
		field, arg = "id", id
	case ResolveByEmail:
		field, arg = "email", value
	default:
		return false, &RequestError{Message: fmt.Sprintf("unknown resolver type %q, use id or email", resolverType)}
	}

	seg, err := s.factory.BuildByCode(ctx, code)
	if err != nil {
		return false, err
	}
	return seg.IsIn(ctx, field, arg)
}

// Related returns up to RelatedLimit criteria segments of table whose
// leaves cover every leaf of the given tree. Stored criteria that fail
// to decode or compile are logged and skipped.
func (s *Service) Related(ctx context.Context, table string, criteriaJSON []byte) ([]model.Segment, error) {
	if table == "" {
		return nil, &RequestError{Message: "param missing: table_name"}
	}
	tree, err := parseTree(criteriaJSON)
	if err != nil {
		return nil, err
	}
	input, err := s.generator.ExtractCriteria(ctx, table, tree)
	if err != nil {
		return nil, err
	}

	candidates, err := s.repo.FindByTableAndVersion(ctx, table, model.VersionCriteria)
	if err != nil {
		return nil, err
	}
	var related []model.Segment
	for _, seg := range candidates {
		stored, err := criteria.ParseTree(seg.Criteria)
		if err != nil {
			logInvalidCriteria(seg, err)
			continue
		}
		leaves, err := s.generator.ExtractCriteria(ctx, table, stored)
		if err != nil {
			logInvalidCriteria(seg, err)
			continue
		}
		ok, err := criteria.IsRelated(input, leaves)
		if err != nil {
			return nil, fmt.Errorf("compare with segment %s: %w", seg.Code, err)
		}
		if ok {
			related = append(related, seg)
		}
		if len(related) >= RelatedLimit {
			break
		}
	}
	return related, nil
}

// DailyValues returns the per-day maximum counts of the segment.
func (s *Service) DailyValues(ctx context.Context, code string, from, to time.Time) ([]model.DailyValue, error) {
	seg, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("segment code [%s] does not exist: %w", code, err)
	}
	return s.repo.DailyValues(ctx, seg.ID, from, to)
}

func parseTree(criteriaJSON []byte) (*criteria.Tree, error) {
	if len(strings.TrimSpace(string(criteriaJSON))) == 0 {
		return nil, &RequestError{Message: "param missing: criteria"}
	}
	tree, err := criteria.ParseTree(criteriaJSON)
	if err != nil {
		return nil, err
	}
	if tree.Version != model.CriteriaTreeVersion {
		return nil, &RequestError{Message: "missing or invalid [criteria.version] property in JSON payload"}
	}
	return tree, nil
}

// group resolves a segment group by code, falling back to id.
func (s *Service) group(ctx context.Context, code string, id int64) (model.Group, error) {
	var g model.Group
	var err error
	switch {
	case code != "":
		g, err = s.repo.FindGroupByCode(ctx, code)
	case id != 0:
		g, err = s.repo.FindGroupByID(ctx, id)
	default:
		return model.Group{}, &RequestError{Message: "missing [group_id] and [group_code] property in JSON payload (use one)"}
	}
	if errors.Is(err, model.ErrNotFound) {
		return model.Group{}, fmt.Errorf("segment group not found: %w", err)
	}
	return g, err
}

// canonical re-encodes a parsed tree for storage.
func canonical(tree *criteria.Tree) (json.RawMessage, error) {
	data, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("encode criteria: %w", err)
	}
	return data, nil
}
