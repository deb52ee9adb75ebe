package segment

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remp2020/crm-segment-module/internal/criteria"
	"github.com/remp2020/crm-segment-module/internal/model"
	"github.com/remp2020/crm-segment-module/internal/params"
	"github.com/remp2020/crm-segment-module/internal/query"
	"github.com/remp2020/crm-segment-module/internal/store"
	"github.com/remp2020/crm-segment-module/internal/testutil"
)

// activeCriteria selects users by their active flag.
type activeCriteria struct{}

func (activeCriteria) Label() string { return "Active" }

func (activeCriteria) Params(context.Context) ([]params.Param, error) {
	return []params.Param{params.NewBooleanParam(params.Definition{Key: "active", Label: "Active", Required: true})}, nil
}

func (activeCriteria) Join(bag *params.Bag) (string, error) {
	active, err := params.Get[params.Boolean](bag, "active")
	if err != nil {
		return "", err
	}
	v := 0
	if active {
		v = 1
	}
	return fmt.Sprintf("SELECT users.id FROM users WHERE users.active = %d", v), nil
}

func (activeCriteria) Title(bag *params.Bag) (string, error) {
	return "active", nil
}

func (activeCriteria) Fields() []string { return nil }

// paidOrdersCriteria selects users owning a paid order.
type paidOrdersCriteria struct{}

func (paidOrdersCriteria) Label() string { return "Paid orders" }

func (paidOrdersCriteria) Params(context.Context) ([]params.Param, error) {
	return []params.Param{params.NewBooleanParam(params.Definition{Key: "paid", Label: "Paid"})}, nil
}

func (paidOrdersCriteria) Join(*params.Bag) (string, error) {
	return "SELECT orders.user_id AS id FROM orders WHERE orders.status = 'paid'", nil
}

func (paidOrdersCriteria) Title(*params.Bag) (string, error) { return "with paid order", nil }

func (paidOrdersCriteria) Fields() []string { return nil }

type fixture struct {
	db        *sql.DB
	store     *store.Store
	group     model.Group
	factory   *Factory
	generator *criteria.Generator
	ids       map[string]int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	db := testutil.UsersDB(t)
	ids := testutil.SeedUsers(t, db, testutil.StandardUsers()...)

	st, err := store.Open(filepath.Join(t.TempDir(), "segments.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	g, err := st.AddGroup(ctx, model.Group{Name: "Test", Code: "test"})
	require.NoError(t, err)

	registry := criteria.NewStorage()
	registry.SetDefaultFields("users", []string{"id", "email"})
	registry.SetFields("users", []string{"id", "email", "created_at"})
	registry.Register("users", "active", activeCriteria{})
	registry.Register("users", "paid_orders", paidOrdersCriteria{})
	registry.Register("users", CriteriaKey, NewSegmentCriteria("users", st))

	return &fixture{
		db:        db,
		store:     st,
		group:     g,
		factory:   NewFactory(db, st),
		generator: criteria.NewGenerator(registry),
		ids:       ids,
	}
}

// addEmailSegment stores a raw segment holding the given emails.
func (f *fixture) addEmailSegment(t *testing.T, code string, emails []string) {
	t.Helper()
	quoted := make([]string, len(emails))
	for i, e := range emails {
		quoted[i] = params.Quote(e)
	}
	_, err := f.store.AddSegment(context.Background(), model.Segment{
		Name:      code,
		Code:      code,
		TableName: "users",
		Fields:    "users.id,users.email,users.created_at",
		QueryString: "SELECT %fields% FROM %table%\nWHERE %where% AND %table%.email IN (" +
			strings.Join(quoted, ", ") + ")\nGROUP BY %table%.id",
		GroupID: f.group.ID,
	})
	require.NoError(t, err)
}

// compile turns tree JSON into an executable segment.
func (f *fixture) compile(t *testing.T, treeJSON string) *Segment {
	t.Helper()
	ctx := context.Background()
	tree, err := criteria.ParseTree([]byte(treeJSON))
	require.NoError(t, err)
	compiled, err := f.generator.Compile(ctx, "users", tree, nil)
	require.NoError(t, err)

	s, err := f.factory.Build(ctx, query.Config{
		TableName:   "users",
		QueryString: compiled.Query,
		Fields:      strings.Join(compiled.Fields, ","),
	})
	require.NoError(t, err)
	return s
}

func (f *fixture) emails(t *testing.T, s *Segment) []string {
	t.Helper()
	ids, err := s.IDs(context.Background())
	require.NoError(t, err)
	byID := make(map[int64]string, len(f.ids))
	for e, id := range f.ids {
		byID[id] = e
	}
	out := []string{}
	for _, id := range ids {
		out = append(out, byID[id])
	}
	return out
}

func segmentNode(negate bool, codes ...string) string {
	data, _ := json.Marshal(codes)
	return fmt.Sprintf(`{"type":"criteria","key":"segment","negation":%t,"values":{"segment":%s}}`, negate, data)
}

func activeTree(nodes ...string) string {
	return `{"version":"1","nodes":[{"type":"operator","operator":"AND","nodes":[` +
		`{"type":"criteria","key":"active","negation":false,"values":{"active":true}},` +
		strings.Join(nodes, ",") + `]}]}`
}

func TestSegmentCriteria_Conditions(t *testing.T) {
	e := testutil.Emails
	tests := []struct {
		name     string
		segments map[string][]string
		nodes    []string
		want     []string
	}{
		{
			name: "three intersecting segments",
			segments: map[string][]string{
				"segment_a": e("a", "b", "c", "z"),
				"segment_b": e("a", "b", "d", "z"),
				"segment_c": e("a", "c", "d", "z"),
			},
			nodes: []string{segmentNode(false, "segment_a", "segment_b"), segmentNode(false, "segment_c")},
			want:  e("a", "c", "d"),
		},
		{
			name: "three segments and negated condition",
			segments: map[string][]string{
				"segment_a": e("a", "b", "c", "z"),
				"segment_b": e("b"),
				"segment_c": e("c"),
			},
			nodes: []string{segmentNode(true, "segment_b", "segment_c"), segmentNode(false, "segment_a")},
			want:  e("a"),
		},
		{
			name:     "negated condition",
			segments: map[string][]string{"segment_a": e("a", "b", "c", "d", "z")},
			nodes:    []string{segmentNode(true, "segment_a")},
			want:     e("e", "f"),
		},
		{
			name:     "condition",
			segments: map[string][]string{"segment_a": e("a")},
			nodes:    []string{segmentNode(false, "segment_a")},
			want:     e("a"),
		},
		{
			name:     "empty segment",
			segments: map[string][]string{"segment_a": e("a_nonexists")},
			nodes:    []string{segmentNode(false, "segment_a")},
			want:     []string{},
		},
		{
			name:     "inactive user segment",
			segments: map[string][]string{"segment_a": e("z")},
			nodes:    []string{segmentNode(false, "segment_a")},
			want:     []string{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			f := newFixture(t)
			for code, emails := range tt.segments {
				f.addEmailSegment(t, code, emails)
			}

			s := f.compile(t, activeTree(tt.nodes...))

			assert.ElementsMatch(t, tt.want, f.emails(t, s))

			count, err := s.TotalCount(ctx)
			require.NoError(t, err)
			assert.Equal(t, int64(len(tt.want)), count)

			if len(tt.want) > 0 {
				in, err := s.IsIn(ctx, "email", tt.want[0])
				require.NoError(t, err)
				assert.True(t, in)
				in, err = s.IsIn(ctx, "email", tt.want[0]+"_DOES_NOT_EXIST_")
				require.NoError(t, err)
				assert.False(t, in)
			}

			processed := []string{}
			err = s.Process(ctx, DefaultPageSize, func(row Row) error {
				processed = append(processed, row.String("email"))
				return nil
			})
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, processed)

			require.NoError(t, s.Simulate(ctx))
		})
	}
}

func TestNegationKeepsRowExistenceSemantics(t *testing.T) {
	f := newFixture(t)
	testutil.SeedOrder(t, f.db, f.ids["a@example.com"], 10, "paid")
	testutil.SeedOrder(t, f.db, f.ids["b@example.com"], 10, "refunded")
	testutil.SeedOrder(t, f.db, f.ids["c@example.com"], 10, "paid")
	testutil.SeedOrder(t, f.db, f.ids["c@example.com"], 5, "refunded")

	negated := `{"version":"1","nodes":[{"type":"criteria","key":"paid_orders","negation":true,"values":{}}]}`
	s := f.compile(t, negated)

	// d, e and f have no orders at all; the negated sub-select does not
	// select them.
	assert.ElementsMatch(t, testutil.Emails("b", "c"), f.emails(t, s))

	plain := `{"version":"1","nodes":[{"type":"criteria","key":"paid_orders","negation":false,"values":{}}]}`
	assert.ElementsMatch(t, testutil.Emails("a", "c"), f.emails(t, f.compile(t, plain)))
}

func TestSegmentCriteria_Params(t *testing.T) {
	f := newFixture(t)
	f.addEmailSegment(t, "segment_a", testutil.Emails("a"))

	c := NewSegmentCriteria("users", f.store)
	ps, err := c.Params(context.Background())
	require.NoError(t, err)
	require.Len(t, ps, 1)

	p := ps[0]
	assert.Equal(t, CriteriaKey, p.Key())
	assert.True(t, p.Required())
	assert.True(t, p.IsValid([]any{"segment_a"}).OK())
	assert.False(t, p.IsValid([]any{"unknown"}).OK())
	assert.Equal(t, map[string]string{"segment_a": "segment_a"}, p.Blueprint().Available)
}

func TestSegmentCriteria_JoinAndTitle(t *testing.T) {
	c := NewSegmentCriteria("users", nil)
	bag := params.NewBag().Add(CriteriaKey, params.StringArray{Values: []string{"b", "a"}})

	join, err := c.Join(bag)
	require.NoError(t, err)
	assert.Equal(t,
		"SELECT users.id FROM users WHERE users.id IN (SELECT a.id FROM ( %segment.a% ) AS a UNION SELECT a.id FROM ( %segment.b% ) AS a)",
		join)
	assert.NotContains(t, join, "\n")

	title, err := c.Title(bag)
	require.NoError(t, err)
	assert.Equal(t, "with segment a, b", title)
	assert.Empty(t, c.Fields())
	assert.Equal(t, "Segments", c.Label())
}

func TestSegmentCriteria_UnknownSegmentFailsCompile(t *testing.T) {
	f := newFixture(t)
	tree, err := criteria.ParseTree([]byte(activeTree(segmentNode(false, "missing"))))
	require.NoError(t, err)

	_, err = f.generator.Compile(context.Background(), "users", tree, nil)
	require.Error(t, err)
	assert.True(t, criteria.IsInvalidCriteria(err))
	assert.Contains(t, err.Error(), "Out of options value - 'missing'")
}
