package query

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/remp2020/crm-segment-module/internal/model"
)

// Repository is the segment lookup the resolver needs.
type Repository interface {
	// FindByCode returns model.ErrNotFound (possibly wrapped) for unknown codes.
	FindByCode(ctx context.Context, code string) (model.Segment, error)

	// FindReferencing returns non-deleted segments whose query_string
	// contains token, excluding the segment with excludeID.
	FindReferencing(ctx context.Context, token string, excludeID int64) ([]model.Segment, error)
}

// Resolver loads nested segments depth-first, tracking the resolution
// path to reject cycles.
type Resolver struct {
	repo     Repository
	maxDepth int
}

// NewResolver creates a resolver. maxDepth <= 0 uses DefaultMaxDepth.
func NewResolver(repo Repository, maxDepth int) *Resolver {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	return &Resolver{repo: repo, maxDepth: maxDepth}
}

// MaxDepth returns the nesting limit.
func (r *Resolver) MaxDepth() int {
	return r.maxDepth
}

// Resolve returns every segment referenced by cfg, directly or
// transitively, keyed by code. On error no partial map is returned.
func (r *Resolver) Resolve(ctx context.Context, cfg Config) (map[string]model.Segment, error) {
	out := make(map[string]model.Segment)
	if err := r.collect(ctx, cfg.QueryString, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Resolver) collect(ctx context.Context, template string, path []string, out map[string]model.Segment) error {
	codes := Codes(template)
	if len(codes) == 0 {
		return nil
	}
	if len(path) >= r.maxDepth {
		return newDepthError(path, r.maxDepth)
	}

	var loaded []model.Segment
	var missing []string
	for _, code := range codes {
		if slices.Contains(path, code) {
			return newCycleError(append(slices.Clone(path), code))
		}
		if _, done := out[code]; done {
			continue
		}
		seg, err := r.repo.FindByCode(ctx, code)
		if errors.Is(err, model.ErrNotFound) {
			missing = append(missing, code)
			continue
		}
		if err != nil {
			return fmt.Errorf("load nested segment %s: %w", code, err)
		}
		loaded = append(loaded, seg)
	}
	if len(missing) > 0 {
		return newMissingError(missing)
	}

	for _, seg := range loaded {
		out[seg.Code] = seg
		if err := r.collect(ctx, seg.QueryString, append(slices.Clone(path), seg.Code), out); err != nil {
			return err
		}
	}
	return nil
}

// References returns the segments whose templates reference seg.
func (r *Resolver) References(ctx context.Context, seg model.Segment) ([]model.Segment, error) {
	refs, err := r.repo.FindReferencing(ctx, Token(seg.Code), seg.ID)
	if err != nil {
		return nil, fmt.Errorf("find segments referencing %s: %w", seg.Code, err)
	}
	return refs, nil
}

// NestedSegments resolves cfg's nested segments with the default depth limit.
func NestedSegments(ctx context.Context, repo Repository, cfg Config) (map[string]model.Segment, error) {
	return NewResolver(repo, DefaultMaxDepth).Resolve(ctx, cfg)
}

// NestedSegmentReferences returns the segments referencing seg.
func NestedSegmentReferences(ctx context.Context, repo Repository, seg model.Segment) ([]model.Segment, error) {
	return NewResolver(repo, DefaultMaxDepth).References(ctx, seg)
}
