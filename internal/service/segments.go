package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/remp2020/crm-segment-module/internal/model"
	"github.com/remp2020/crm-segment-module/internal/query"
	"github.com/remp2020/crm-segment-module/internal/store"
)

// SegmentRequest creates or updates a criteria segment.
type SegmentRequest struct {
	ID        int64           `json:"id,omitempty"`   // Updates when set
	Name      string          `json:"name,omitempty"` // Generated from criteria when empty
	Code      string          `json:"code,omitempty"` // Generated from name when empty
	TableName string          `json:"table_name"`
	GroupCode string          `json:"group_code,omitempty"`
	GroupID   int64           `json:"group_id,omitempty"` // Used when GroupCode is empty
	Fields    []string        `json:"fields,omitempty"`
	Criteria  json.RawMessage `json:"criteria"`
	Note      string          `json:"note,omitempty"`
}

// CreateOrUpdate compiles req's criteria into a version-2 segment and
// stores it. The compiled query's nested references are resolved, the
// resolved SQL validated and its plan simulated before anything is
// written.
func (s *Service) CreateOrUpdate(ctx context.Context, req SegmentRequest) (model.Segment, error) {
	if req.TableName == "" {
		return model.Segment{}, &RequestError{Message: "missing [table_name] property in JSON payload"}
	}
	tree, err := parseTree(req.Criteria)
	if err != nil {
		return model.Segment{}, err
	}
	g, err := s.group(ctx, req.GroupCode, req.GroupID)
	if err != nil {
		return model.Segment{}, err
	}

	compiled, err := s.generator.Compile(ctx, req.TableName, tree, req.Fields)
	if err != nil {
		return model.Segment{}, err
	}
	name := req.Name
	if name == "" {
		name = compiled.Name
	}
	cfg := query.Config{
		TableName:   req.TableName,
		QueryString: compiled.Query,
		Fields:      strings.Join(compiled.Fields, ","),
	}
	stored, err := canonical(tree)
	if err != nil {
		return model.Segment{}, err
	}

	if req.ID != 0 {
		existing, err := s.repo.FindByID(ctx, req.ID)
		if err != nil {
			return model.Segment{}, fmt.Errorf("segment %d: %w", req.ID, err)
		}
		if err := s.checkQuery(ctx, cfg, existing.Code); err != nil {
			return model.Segment{}, err
		}
		version := model.VersionCriteria
		u := store.Update{
			Name:        &name,
			Version:     &version,
			TableName:   &cfg.TableName,
			Fields:      &cfg.Fields,
			QueryString: &cfg.QueryString,
			Criteria:    &stored,
			GroupID:     &g.ID,
		}
		if req.Note != "" {
			u.Note = &req.Note
		}
		if req.Code != "" && req.Code != existing.Code {
			if err := s.ensureUnreferenced(ctx, existing); err != nil {
				return model.Segment{}, err
			}
			u.Code = &req.Code
		}
		updated, err := s.repo.UpdateSegment(ctx, existing.ID, u)
		return updated, conflict(err, req.Code)
	}

	if err := s.checkQuery(ctx, cfg, ""); err != nil {
		return model.Segment{}, err
	}
	code := req.Code
	if code == "" {
		total, err := s.repo.Count(ctx)
		if err != nil {
			return model.Segment{}, err
		}
		code = fmt.Sprintf("%s_%d", Slug(name), total)
	}
	exists, err := s.repo.Exists(ctx, code)
	if err != nil {
		return model.Segment{}, err
	}
	if exists {
		return model.Segment{}, &ConflictError{Code: code}
	}

	created, err := s.repo.AddSegment(ctx, model.Segment{
		Name:        name,
		Version:     model.VersionCriteria,
		Code:        code,
		TableName:   cfg.TableName,
		Fields:      cfg.Fields,
		QueryString: cfg.QueryString,
		Criteria:    stored,
		GroupID:     g.ID,
		Note:        req.Note,
	})
	if err != nil {
		return model.Segment{}, conflict(err, code)
	}
	slog.Info("segment created", "code", created.Code, "table", created.TableName)
	return created, nil
}

// checkQuery resolves cfg's nested segments, validates the resolved SQL
// and simulates its plan. self is the code of the segment being updated;
// referencing it is a cycle.
func (s *Service) checkQuery(ctx context.Context, cfg query.Config, self string) error {
	if self != "" {
		nested, err := s.factory.Resolver().Resolve(ctx, cfg)
		if err != nil {
			return err
		}
		if _, ok := nested[self]; ok {
			return &query.NestingError{
				Code:     query.ErrCodeCyclicReference,
				Message:  "cyclic segment reference: " + self + " -> " + self,
				Segments: []string{self, self},
			}
		}
	}
	seg, err := s.factory.Build(ctx, cfg)
	if err != nil {
		return err
	}
	resolved, err := seg.Query()
	if err != nil {
		return err
	}
	if err := s.validator.Validate(resolved); err != nil {
		return err
	}
	return seg.Simulate(ctx)
}

// Rename changes the code of a segment unless other segments reference it.
func (s *Service) Rename(ctx context.Context, id int64, code string) (model.Segment, error) {
	seg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return model.Segment{}, fmt.Errorf("segment %d: %w", id, err)
	}
	if seg.Code == code {
		return seg, nil
	}
	if code == "" {
		return model.Segment{}, &RequestError{Message: "segment code must not be empty"}
	}
	if err := s.ensureUnreferenced(ctx, seg); err != nil {
		return model.Segment{}, err
	}
	updated, err := s.repo.UpdateSegment(ctx, id, store.Update{Code: &code})
	return updated, conflict(err, code)
}

// Delete soft-deletes a segment unless it is locked or other segments
// reference it.
func (s *Service) Delete(ctx context.Context, id int64) error {
	seg, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("segment %d: %w", id, err)
	}
	if err := s.ensureUnreferenced(ctx, seg); err != nil {
		return err
	}
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}
	slog.Info("segment deleted", "code", seg.Code)
	return nil
}

func (s *Service) ensureUnreferenced(ctx context.Context, seg model.Segment) error {
	refs, err := s.factory.Resolver().References(ctx, seg)
	if err != nil {
		return err
	}
	if len(refs) > 0 {
		return &CodeInUseError{Code: seg.Code, ReferencedBy: refs[0].Code}
	}
	return nil
}

// conflict maps a duplicate code from the store to ConflictError.
func conflict(err error, code string) error {
	if errors.Is(err, store.ErrDuplicateCode) {
		return &ConflictError{Code: code}
	}
	return err
}

func logInvalidCriteria(seg model.Segment, err error) {
	slog.Error("invalid criteria structure in segment", "id", seg.ID, "code", seg.Code, "error", err)
}
