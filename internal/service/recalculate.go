package service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/remp2020/crm-segment-module/internal/model"
	"github.com/remp2020/crm-segment-module/internal/query"
)

// DefaultPeriodicity applies to segments without their own periodicity.
var DefaultPeriodicity = model.Periodicity{Amount: 6, Unit: "hours"}

// Recalculation is the outcome of counting one segment.
type Recalculation struct {
	Code    string
	Count   int64
	Elapsed time.Duration
	Slow    bool
	Err     error
}

// Recalculate counts the segment with the given code and caches the result.
func (s *Service) Recalculate(ctx context.Context, code string) (Recalculation, error) {
	seg, err := s.repo.FindByCode(ctx, code)
	if err != nil {
		return Recalculation{Code: code}, fmt.Errorf("segment code [%s] does not exist: %w", code, err)
	}
	r := s.recalculate(ctx, seg)
	return r, r.Err
}

// RecalculateDue counts every segment whose cached count is older than
// its periodicity, shortest periodicity first. A failing segment is
// logged and skipped; its error is kept in its Recalculation.
func (s *Service) RecalculateDue(ctx context.Context) ([]Recalculation, error) {
	all, err := s.repo.All(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	type due struct {
		seg      model.Segment
		interval time.Duration
	}
	var queue []due
	for _, seg := range all {
		interval := periodicity(seg)
		if seg.CacheCountUpdatedAt != nil && now.Before(seg.CacheCountUpdatedAt.Add(interval)) {
			continue
		}
		queue = append(queue, due{seg: seg, interval: interval})
	}
	sort.SliceStable(queue, func(i, j int) bool {
		return queue[i].interval < queue[j].interval
	})

	results := make([]Recalculation, 0, len(queue))
	for _, d := range queue {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		results = append(results, s.recalculate(ctx, d.seg))
	}
	return results, nil
}

func (s *Service) recalculate(ctx context.Context, seg model.Segment) Recalculation {
	r := Recalculation{Code: seg.Code}
	start := s.now()

	built, err := s.factory.Build(ctx, query.ConfigFromSegment(seg))
	if err == nil {
		r.Count, err = built.TotalCount(ctx)
	}
	r.Elapsed = s.now().Sub(start)
	if err == nil {
		err = s.repo.CacheSegmentCount(ctx, seg.ID, r.Count, r.Elapsed)
	}
	if err != nil {
		r.Err = err
		slog.Error("segment recalculation failed", "code", seg.Code, "seconds", r.Elapsed.Seconds(), "error", err)
		return r
	}

	if s.slowThreshold > 0 && r.Elapsed > s.slowThreshold {
		r.Slow = true
		slog.Warn("slow segment recalculation",
			"code", seg.Code,
			"seconds", r.Elapsed.Seconds(),
			"threshold", s.slowThreshold.Seconds(),
		)
	}
	slog.Info("segment recalculated", "code", seg.Code, "count", r.Count, "seconds", r.Elapsed.Seconds())
	return r
}

// periodicity returns the segment's refresh interval; invalid values
// fall back to DefaultPeriodicity.
func periodicity(seg model.Segment) time.Duration {
	def, _ := DefaultPeriodicity.Duration()
	if seg.CacheCountPeriodicity == nil {
		return def
	}
	d, err := seg.CacheCountPeriodicity.Duration()
	if err != nil {
		slog.Warn("invalid segment periodicity", "code", seg.Code, "error", err)
		return def
	}
	return d
}
