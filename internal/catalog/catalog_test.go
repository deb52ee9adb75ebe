package catalog

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/remp2020/crm-segment-module/internal/criteria"
	"github.com/remp2020/crm-segment-module/internal/params"
	"github.com/remp2020/crm-segment-module/internal/query"
	"github.com/remp2020/crm-segment-module/internal/segment"
	"github.com/remp2020/crm-segment-module/internal/testutil"
)

func findCriterion(t *testing.T, cat *Catalog, table, key string) *Criterion {
	t.Helper()
	for _, tbl := range cat.Tables {
		if tbl.Name != table {
			continue
		}
		for _, c := range tbl.Criteria {
			if c.Key() == key {
				return c
			}
		}
	}
	t.Fatalf("criterion %s.%s not found", table, key)
	return nil
}

func TestDefault(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)
	require.Len(t, cat.Tables, 1)

	users := cat.Tables[0]
	assert.Equal(t, "users", users.Name)
	assert.Equal(t, []string{"id", "email"}, users.DefaultFields)
	assert.Equal(t, []string{"id", "email", "active", "created_at"}, users.Fields)

	var keys []string
	for _, c := range users.Criteria {
		keys = append(keys, c.Key())
	}
	assert.Equal(t, []string{"active", "email_domain", "created", "orders", "spent"}, keys)
}

func TestRegister(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)

	s := criteria.NewStorage()
	cat.Register(s)

	assert.Len(t, s.TableCriteria("users"), 5)
	assert.Equal(t, []string{"id", "email"}, s.DefaultTableFields("users"))
	assert.Contains(t, s.TableFields("users"), "created_at")
}

func TestCriterion_ParamsInDeclarationOrder(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)

	orders := findCriterion(t, cat, "users", "orders")
	ps, err := orders.Params(context.Background())
	require.NoError(t, err)
	require.Len(t, ps, 2)

	assert.Equal(t, "status", ps[0].Key())
	assert.Equal(t, params.TypeStringArray, ps[0].Type())
	assert.True(t, ps[0].Required())
	assert.Equal(t, map[string]string{"paid": "Paid", "refunded": "Refunded", "form": "Unpaid"}, ps[0].Blueprint().Available)

	assert.Equal(t, "min_count", ps[1].Key())
	assert.Equal(t, params.TypeNumber, ps[1].Type())
	assert.False(t, ps[1].Required())
	assert.Equal(t, "Amount", ps[1].Blueprint().Group)
	assert.Equal(t, []string{"order_count"}, orders.Fields())
}

func TestCriterion_Join(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)

	tests := []struct {
		key   string
		bag   *params.Bag
		join  string
		title string
	}{
		{
			key:   "active",
			bag:   params.NewBag().Add("active", params.Boolean(false)),
			join:  "SELECT users.id FROM users WHERE users.active = 0",
			title: "inactive",
		},
		{
			key:   "orders",
			bag:   params.NewBag().Add("status", params.StringArray{Values: []string{"paid", "form"}}),
			join:  "SELECT orders.user_id AS id, COUNT(*) AS order_count FROM orders WHERE orders.status IN ('paid','form')\nGROUP BY orders.user_id",
			title: "with paid, form orders",
		},
		{
			key: "orders",
			bag: params.NewBag().
				Add("status", params.StringArray{Values: []string{"paid"}}).
				Add("min_count", params.Number(2)),
			join:  "SELECT orders.user_id AS id, COUNT(*) AS order_count FROM orders WHERE orders.status IN ('paid')\nGROUP BY orders.user_id HAVING COUNT(*) >= 2",
			title: "with paid orders",
		},
		{
			key:   "spent",
			bag:   params.NewBag().Add("min_amount", params.Decimal{Amount: decimal.RequireFromString("12.50")}),
			join:  "SELECT orders.user_id AS id, SUM(orders.amount) AS spent FROM orders WHERE orders.status = 'paid'\nGROUP BY orders.user_id HAVING SUM(orders.amount) >= 12.5",
			title: "who spent at least 12.5",
		},
		{
			key:   "created",
			bag:   params.NewBag().Add("from", params.DateTime{Time: time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)}),
			join:  "SELECT users.id FROM users WHERE users.created_at >= '2024-01-02 03:04:05'",
			title: "registered since 2024-01-02 03:04:05",
		},
		{
			key:   "email_domain",
			bag:   params.NewBag().Add("domain", params.StringArray{Values: []string{"example.com", "o'hara.io"}}),
			join:  "SELECT users.id FROM users WHERE substr(users.email, instr(users.email, '@') + 1) IN ('example.com','o''hara.io')",
			title: "with email domain example.com, o'hara.io",
		},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			c := findCriterion(t, cat, "users", tt.key)

			join, err := c.Join(tt.bag)
			require.NoError(t, err)
			assert.Equal(t, tt.join, join)

			title, err := c.Title(tt.bag)
			require.NoError(t, err)
			assert.Equal(t, tt.title, title)
		})
	}
}

func TestLoadFS_MergesFiles(t *testing.T) {
	fsys := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fsys, "catalog/orders.cue", []byte(`
table: orders: {
	default_fields: ["id", "user_id"]
	criteria: status: {
		label: "Status"
		params: codes: {
			type: "number_array"
			label: "Codes"
			required: true
			options: {"1": "New", "2": "Paid"}
			default: [2]
		}
		join: "SELECT orders.id FROM orders WHERE orders.status_code IN ({{escaped .codes}})"
		title: "in status {{title .codes}}"
	}
}
`), 0o644))
	require.NoError(t, afero.WriteFile(fsys, "catalog/orders_fields.cue", []byte(`
table: orders: fields: ["id", "user_id", "amount"]
`), 0o644))
	require.NoError(t, afero.WriteFile(fsys, "catalog/README.md", []byte("ignored"), 0o644))

	cat, err := LoadFS(fsys, "catalog")
	require.NoError(t, err)
	require.Len(t, cat.Tables, 1)

	orders := cat.Tables[0]
	assert.Equal(t, []string{"id", "user_id", "amount"}, orders.Fields)
	require.Len(t, orders.Criteria, 1)

	c := orders.Criteria[0]
	ps, err := c.Params(context.Background())
	require.NoError(t, err)
	require.Len(t, ps, 1)
	assert.Equal(t, params.TypeNumberArray, ps[0].Type())
	assert.Equal(t, map[int64]string{1: "New", 2: "Paid"}, ps[0].Blueprint().Available)
	assert.Equal(t, []any{float64(2)}, ps[0].Default())

	v, err := ps[0].Bind([]any{float64(2), float64(1)})
	require.NoError(t, err)
	bag := params.NewBag().Add("codes", v)

	join, err := c.Join(bag)
	require.NoError(t, err)
	assert.Equal(t, "SELECT orders.id FROM orders WHERE orders.status_code IN (2,1)", join)

	title, err := c.Title(bag)
	require.NoError(t, err)
	assert.Equal(t, "in status Paid, New", title)
}

func TestLoadFS_Errors(t *testing.T) {
	tests := []struct {
		name    string
		files   map[string]string
		dir     string
		field   string
		message string
	}{
		{
			name:    "missing directory",
			dir:     "nope",
			field:   "dir",
			message: "catalog directory not found",
		},
		{
			name:    "no cue files",
			files:   map[string]string{"cat/notes.txt": "x"},
			dir:     "cat",
			field:   "dir",
			message: "no CUE files found",
		},
		{
			name: "unknown param type",
			files: map[string]string{"cat/a.cue": `
table: users: criteria: x: {
	label: "X"
	params: p: {type: "float", label: "P"}
	join: "SELECT 1"
	title: "x"
}`},
			dir:   "cat",
			field: "cue",
		},
		{
			name: "syntax error",
			files: map[string]string{"cat/a.cue": `table: users: {`},
			dir:   "cat",
			field: "cue",
		},
		{
			name: "bad join template",
			files: map[string]string{"cat/a.cue": `
table: users: criteria: x: {
	label: "X"
	params: {}
	join: "SELECT {{if}}"
	title: "x"
}`},
			dir:     "cat",
			field:   "join",
			message: "criterion x",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fsys := afero.NewMemMapFs()
			for name, content := range tt.files {
				require.NoError(t, afero.WriteFile(fsys, name, []byte(content), 0o644))
			}

			_, err := LoadFS(fsys, tt.dir)
			require.Error(t, err)
			var le *LoadError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, tt.field, le.Field)
			if tt.message != "" {
				assert.Contains(t, le.Message, tt.message)
			}
		})
	}
}

func TestRender_UnboundOptionalIsNil(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)
	created := findCriterion(t, cat, "users", "created")

	bag := params.NewBag().
		Add("from", params.DateTime{Time: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}).
		Add("to", params.DateTime{Time: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)})
	join, err := created.Join(bag)
	require.NoError(t, err)
	assert.Equal(t, "SELECT users.id FROM users WHERE users.created_at >= '2024-01-01 00:00:00' AND users.created_at < '2024-02-01 00:00:00'", join)
}

func TestDefaultCatalog_EndToEnd(t *testing.T) {
	ctx := context.Background()
	cat, err := Default()
	require.NoError(t, err)
	registry := criteria.NewStorage()
	cat.Register(registry)

	db := testutil.UsersDB(t)
	ids := testutil.SeedUsers(t, db, testutil.StandardUsers()...)
	testutil.SeedOrder(t, db, ids["a@example.com"], 10, "paid")
	testutil.SeedOrder(t, db, ids["a@example.com"], 10, "paid")
	testutil.SeedOrder(t, db, ids["b@example.com"], 30, "paid")
	testutil.SeedOrder(t, db, ids["c@example.com"], 5, "refunded")
	testutil.SeedOrder(t, db, ids["x@example.com"], 50, "paid")

	tests := []struct {
		name string
		tree string
		want []string
	}{
		{
			name: "two paid orders",
			tree: `{"version":"1","nodes":[{"type":"criteria","key":"orders","negation":false,"values":{"status":["paid"],"min_count":2}}]}`,
			want: testutil.Emails("a"),
		},
		{
			name: "active spenders",
			tree: `{"version":"1","nodes":[{"type":"operator","operator":"AND","nodes":[
				{"type":"criteria","key":"active","negation":false,"values":{"active":true}},
				{"type":"criteria","key":"spent","negation":false,"values":{"min_amount":"20"}}]}]}`,
			want: testutil.Emails("a", "b"),
		},
		{
			name: "refunded or inactive",
			tree: `{"version":"1","nodes":[{"type":"operator","operator":"OR","nodes":[
				{"type":"criteria","key":"active","negation":true,"values":{"active":true}},
				{"type":"criteria","key":"orders","negation":false,"values":{"status":["refunded"]}}]}]}`,
			want: testutil.Emails("c", "x", "y", "z"),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := criteria.ParseTree([]byte(tt.tree))
			require.NoError(t, err)
			compiled, err := criteria.NewGenerator(registry).Compile(ctx, "users", tree, nil)
			require.NoError(t, err)

			q := query.New(query.Config{TableName: "users", QueryString: compiled.Query, Fields: strings.Join(compiled.Fields, ",")})
			var emails []string
			err = segment.New(db, q).Process(ctx, 2, func(row segment.Row) error {
				emails = append(emails, row.String("email"))
				return nil
			})
			require.NoError(t, err)
			assert.ElementsMatch(t, tt.want, emails)
		})
	}
}
