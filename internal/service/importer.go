package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/remp2020/crm-segment-module/internal/model"
	"github.com/remp2020/crm-segment-module/internal/query"
	"github.com/remp2020/crm-segment-module/internal/segment"
)

// DefaultGroupSorting is the sorting of groups created on demand.
const DefaultGroupSorting = 5000

// ImportFile is the YAML document accepted by Import.
//
//	groups:
//	  - {name: Default group, code: default-group, sorting: 1000}
//	segments:
//	  - code: all_users
//	    name: All users
//	    group: default-group
//	    table: users
//	    fields: users.id,users.email
//	    query: SELECT %fields% FROM %table% WHERE %where% GROUP BY %table%.id
type ImportFile struct {
	Groups   []ImportGroup   `yaml:"groups"`
	Segments []ImportSegment `yaml:"segments"`
}

// ImportGroup declares a segment group.
type ImportGroup struct {
	Name    string `yaml:"name"`
	Code    string `yaml:"code"`
	Sorting int    `yaml:"sorting"`
}

// ImportSegment declares a raw SQL segment.
type ImportSegment struct {
	Code   string `yaml:"code"`
	Name   string `yaml:"name"`
	Group  string `yaml:"group"`
	Table  string `yaml:"table"`
	Fields string `yaml:"fields"`
	Query  string `yaml:"query"`
	Note   string `yaml:"note"`

	Periodicity *model.Periodicity `yaml:"periodicity"`
}

func (s ImportSegment) fields() string {
	if s.Fields == "" {
		return s.Table + ".id"
	}
	return s.Fields
}

// ImportResult lists the affected segment codes.
type ImportResult struct {
	Created []string
	Updated []string
}

// Import reads an ImportFile and upserts its raw segments by code.
// Groups that do not exist yet are created. Every query is resolved
// against the stored segments and the file itself, and the resolved SQL
// validated, before anything is written.
func (s *Service) Import(ctx context.Context, r io.Reader) (ImportResult, error) {
	var file ImportFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return ImportResult{}, fmt.Errorf("decode import: %w", err)
	}

	declared := make(map[string]ImportGroup, len(file.Groups))
	for _, g := range file.Groups {
		if g.Code == "" {
			return ImportResult{}, &RequestError{Message: "group without code"}
		}
		declared[g.Code] = g
	}
	for i, seg := range file.Segments {
		if seg.Code == "" || seg.Table == "" || seg.Query == "" || seg.Group == "" {
			return ImportResult{}, &RequestError{Message: fmt.Sprintf("segment #%d: code, group, table and query are required", i+1)}
		}
		if seg.Periodicity != nil {
			if _, err := seg.Periodicity.Duration(); err != nil {
				return ImportResult{}, fmt.Errorf("segment %s: %w", seg.Code, err)
			}
		}
	}
	if err := s.validateImport(ctx, file.Segments); err != nil {
		return ImportResult{}, err
	}

	groups := make(map[string]model.Group)
	for _, decl := range file.Groups {
		g, err := s.ensureGroup(ctx, decl.Code, declared)
		if err != nil {
			return ImportResult{}, err
		}
		groups[decl.Code] = g
	}

	var result ImportResult
	for _, seg := range file.Segments {
		g, ok := groups[seg.Group]
		if !ok {
			var err error
			if g, err = s.ensureGroup(ctx, seg.Group, declared); err != nil {
				return result, err
			}
			groups[seg.Group] = g
		}

		name := seg.Name
		if name == "" {
			name = seg.Code
		}
		stored, created, err := s.repo.Upsert(ctx, model.Segment{
			Name:                  name,
			Version:               model.VersionRaw,
			Code:                  seg.Code,
			TableName:             seg.Table,
			Fields:                seg.fields(),
			QueryString:           seg.Query,
			GroupID:               g.ID,
			Note:                  seg.Note,
			CacheCountPeriodicity: seg.Periodicity,
		})
		if err != nil {
			return result, fmt.Errorf("import segment %s: %w", seg.Code, err)
		}
		if created {
			result.Created = append(result.Created, stored.Code)
			slog.Info("segment imported", "code", stored.Code, "created", true)
		} else {
			result.Updated = append(result.Updated, stored.Code)
			slog.Info("segment imported", "code", stored.Code, "created", false)
		}
	}
	return result, nil
}

func (s *Service) ensureGroup(ctx context.Context, code string, declared map[string]ImportGroup) (model.Group, error) {
	g, err := s.repo.FindGroupByCode(ctx, code)
	if err == nil {
		return g, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return model.Group{}, err
	}

	decl, ok := declared[code]
	if !ok {
		decl = ImportGroup{Code: code}
	}
	if decl.Name == "" {
		decl.Name = code
	}
	if decl.Sorting == 0 {
		decl.Sorting = DefaultGroupSorting
	}
	g, err = s.repo.AddGroup(ctx, model.Group{Name: decl.Name, Code: decl.Code, Sorting: decl.Sorting})
	if err != nil {
		return model.Group{}, fmt.Errorf("create group %s: %w", code, err)
	}
	slog.Info("segment group created", "code", g.Code)
	return g, nil
}

// pendingSegments serves the segments of an import file ahead of the
// stored ones, so file segments may reference each other.
type pendingSegments struct {
	query.Repository
	pending map[string]model.Segment
}

func (p pendingSegments) FindByCode(ctx context.Context, code string) (model.Segment, error) {
	if seg, ok := p.pending[code]; ok {
		return seg, nil
	}
	return p.Repository.FindByCode(ctx, code)
}

func (s *Service) validateImport(ctx context.Context, segments []ImportSegment) error {
	repo := pendingSegments{Repository: s.repo, pending: make(map[string]model.Segment, len(segments))}
	for _, seg := range segments {
		repo.pending[seg.Code] = model.Segment{
			Code:        seg.Code,
			Version:     model.VersionRaw,
			TableName:   seg.Table,
			Fields:      seg.fields(),
			QueryString: seg.Query,
		}
	}
	factory := segment.NewFactory(nil, repo, segment.WithMaxDepth(s.maxDepth))
	for _, seg := range segments {
		q, err := factory.Query(ctx, query.ConfigFromSegment(repo.pending[seg.Code]))
		if err != nil {
			return fmt.Errorf("segment %s: %w", seg.Code, err)
		}
		resolved, err := q.Query()
		if err != nil {
			return fmt.Errorf("segment %s: %w", seg.Code, err)
		}
		if err := s.validator.Validate(resolved); err != nil {
			return fmt.Errorf("segment %s: %w", seg.Code, err)
		}
	}
	return nil
}
