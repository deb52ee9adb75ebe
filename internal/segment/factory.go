package segment

import (
	"context"
	"fmt"
	"time"

	"github.com/remp2020/crm-segment-module/internal/query"
)

// Factory builds executable segments from stored definitions.
type Factory struct {
	db       Executor
	resolver *query.Resolver
	repo     query.Repository
	timeout  time.Duration
}

// FactoryOption configures a Factory.
type FactoryOption func(*Factory)

// WithMaxDepth bounds nested segment resolution.
func WithMaxDepth(depth int) FactoryOption {
	return func(f *Factory) { f.resolver = query.NewResolver(f.repo, depth) }
}

// WithTimeout bounds every statement of the built segments.
func WithTimeout(d time.Duration) FactoryOption {
	return func(f *Factory) { f.timeout = d }
}

// NewFactory creates a factory executing against db and loading nested
// segments from repo.
func NewFactory(db Executor, repo query.Repository, opts ...FactoryOption) *Factory {
	f := &Factory{
		db:       db,
		repo:     repo,
		resolver: query.NewResolver(repo, query.DefaultMaxDepth),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Resolver returns the nested segment resolver.
func (f *Factory) Resolver() *query.Resolver {
	return f.resolver
}

// BuildByCode builds the stored segment with the given code.
func (f *Factory) BuildByCode(ctx context.Context, code string) (*Segment, error) {
	seg, err := f.repo.FindByCode(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("segment code [%s] does not exist: %w", code, err)
	}
	return f.Build(ctx, query.ConfigFromSegment(seg))
}

// Build resolves cfg's nested segments and returns an executable segment.
func (f *Factory) Build(ctx context.Context, cfg query.Config) (*Segment, error) {
	q, err := f.Query(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return New(f.db, q, WithStatementTimeout(f.timeout)), nil
}

// Query resolves cfg's nested segments and returns its query builder.
func (f *Factory) Query(ctx context.Context, cfg query.Config) (*query.SegmentQuery, error) {
	opts := []query.Option{query.WithMaxDepth(f.resolver.MaxDepth())}
	if len(query.Codes(cfg.QueryString)) > 0 {
		nested, err := f.resolver.Resolve(ctx, cfg)
		if err != nil {
			return nil, err
		}
		opts = append(opts, query.WithNestedSegments(nested))
	}
	return query.New(cfg, opts...), nil
}
