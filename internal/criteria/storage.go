package criteria

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/remp2020/crm-segment-module/internal/params"
)

// Storage is the in-memory Registry. Criteria are registered at startup
// and read concurrently afterwards.
type Storage struct {
	mu            sync.RWMutex
	criteria      map[string]map[string]Criteria
	defaultFields map[string][]string
	fields        map[string][]string
}

// NewStorage creates an empty registry.
func NewStorage() *Storage {
	return &Storage{
		criteria:      make(map[string]map[string]Criteria),
		defaultFields: make(map[string][]string),
		fields:        make(map[string][]string),
	}
}

// Register adds a criterion under (table, key), replacing any earlier one.
func (s *Storage) Register(table, key string, c Criteria) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.criteria[table] == nil {
		s.criteria[table] = make(map[string]Criteria)
	}
	s.criteria[table][key] = c
}

// SetDefaultFields sets the columns always selected for a table.
func (s *Storage) SetDefaultFields(table string, fields []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.defaultFields[table] = slices.Clone(fields)
}

// SetFields sets the columns a segment author may request for a table.
func (s *Storage) SetFields(table string, fields []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fields[table] = slices.Clone(fields)
}

// TableCriteria returns a copy of the criteria registered for table.
func (s *Storage) TableCriteria(table string) map[string]Criteria {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]Criteria, len(s.criteria[table]))
	for k, c := range s.criteria[table] {
		out[k] = c
	}
	return out
}

func (s *Storage) DefaultTableFields(table string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.defaultFields[table])
}

func (s *Storage) TableFields(table string) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.fields[table])
}

// Tables returns the tables with at least one criterion, sorted.
func (s *Storage) Tables() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tables := make([]string, 0, len(s.criteria))
	for t, cs := range s.criteria {
		if len(cs) > 0 {
			tables = append(tables, t)
		}
	}
	slices.Sort(tables)
	return tables
}

// TableBlueprint describes a table's criteria for UI forms.
type TableBlueprint struct {
	Table    string               `json:"table"`
	Fields   []string             `json:"fields"`
	Criteria []CriterionBlueprint `json:"criteria"`
}

// CriterionBlueprint describes a single criterion.
type CriterionBlueprint struct {
	Key    string                      `json:"key"`
	Label  string                      `json:"label"`
	Params map[string]params.Blueprint `json:"params"`
	Fields []string                    `json:"fields"`
}

// Blueprint lists every table with its criteria, ordered by table and key.
func (s *Storage) Blueprint(ctx context.Context) ([]TableBlueprint, error) {
	result := []TableBlueprint{}
	for _, table := range s.Tables() {
		tableCriteria := s.TableCriteria(table)
		keys := make([]string, 0, len(tableCriteria))
		for k := range tableCriteria {
			keys = append(keys, k)
		}
		slices.Sort(keys)

		tb := TableBlueprint{
			Table:    table,
			Fields:   s.TableFields(table),
			Criteria: make([]CriterionBlueprint, 0, len(keys)),
		}
		if tb.Fields == nil {
			tb.Fields = []string{}
		}
		for _, key := range keys {
			c := tableCriteria[key]
			ps, err := c.Params(ctx)
			if err != nil {
				return nil, fmt.Errorf("params of criterion %s.%s: %w", table, key, err)
			}
			cb := CriterionBlueprint{
				Key:    key,
				Label:  c.Label(),
				Params: make(map[string]params.Blueprint, len(ps)),
				Fields: append([]string{}, c.Fields()...),
			}
			for _, p := range ps {
				cb.Params[p.Key()] = p.Blueprint()
			}
			tb.Criteria = append(tb.Criteria, cb)
		}
		result = append(result, tb)
	}
	return result, nil
}
