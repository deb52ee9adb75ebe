package criteria

import (
	"context"
	"fmt"

	"github.com/remp2020/crm-segment-module/internal/params"
)

// stubCriteria is a configurable Criteria for tests.
type stubCriteria struct {
	label  string
	params []params.Param
	join   func(bag *params.Bag) (string, error)
	title  func(bag *params.Bag) (string, error)
	fields []string
}

func (s *stubCriteria) Label() string { return s.label }

func (s *stubCriteria) Params(context.Context) ([]params.Param, error) { return s.params, nil }

func (s *stubCriteria) Join(bag *params.Bag) (string, error) { return s.join(bag) }

func (s *stubCriteria) Title(bag *params.Bag) (string, error) { return s.title(bag) }

func (s *stubCriteria) Fields() []string { return s.fields }

func activeCriteria() *stubCriteria {
	return &stubCriteria{
		label: "Active",
		params: []params.Param{
			params.NewBooleanParam(params.Definition{Key: "active", Label: "Active", Required: true}),
		},
		join: func(bag *params.Bag) (string, error) {
			active, err := params.Get[params.Boolean](bag, "active")
			if err != nil {
				return "", err
			}
			if active {
				return "SELECT id FROM users WHERE active = 1", nil
			}
			return "SELECT id FROM users WHERE active = 0", nil
		},
		title: func(bag *params.Bag) (string, error) {
			active, err := params.Get[params.Boolean](bag, "active")
			if err != nil {
				return "", err
			}
			if active {
				return "active", nil
			}
			return "inactive", nil
		},
	}
}

func sourceCriteria() *stubCriteria {
	return &stubCriteria{
		label: "Source",
		params: []params.Param{
			params.NewStringArrayParam(params.Definition{Key: "source", Label: "Source", Required: true}, nil),
			params.NewNumberParam(params.Definition{Key: "min_visits", Label: "Minimum visits"}),
		},
		join: func(bag *params.Bag) (string, error) {
			sources, err := params.Get[params.StringArray](bag, "source")
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("SELECT user_id AS id, source FROM user_sources WHERE source IN (%s)", sources.EscapedString(",")), nil
		},
		title: func(bag *params.Bag) (string, error) {
			sources, err := params.Get[params.StringArray](bag, "source")
			if err != nil {
				return "", err
			}
			return "from " + sources.Title(", "), nil
		},
		fields: []string{"source"},
	}
}

func testRegistry() *Storage {
	s := NewStorage()
	s.Register("users", "active", activeCriteria())
	s.Register("users", "source", sourceCriteria())
	s.SetDefaultFields("users", []string{"id", "email"})
	s.SetFields("users", []string{"id", "email", "first_name", "created_at"})
	return s
}
