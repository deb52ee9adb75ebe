package criteria

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/remp2020/crm-segment-module/internal/params"
)

// whereClause captures a sub-select's predicate up to the end of its line.
var whereClause = regexp.MustCompile(`WHERE (.*)`)

// Generator compiles criteria trees against a Registry.
// It holds no mutable state and is safe for concurrent use.
type Generator struct {
	registry Registry
}

// NewGenerator creates a generator over registry.
func NewGenerator(registry Registry) *Generator {
	return &Generator{registry: registry}
}

// Compiled is the result of a single walk over a tree.
type Compiled struct {
	Query  string   // Template with %fields%, %table% and %where% placeholders
	Fields []string // Default, requested and criteria-contributed fields
	Name   string   // Generated human-readable name
	Leaves []Leaf   // Bound params of every leaf, tree order
}

// Leaf is one bound param of one leaf criterion.
type Leaf struct {
	Criterion string // Registry key of the criterion
	Param     string // Param key
	Value     params.Value
}

// Compile walks tree once and returns every generator output.
// requested overrides tree.Fields when non-nil.
func (g *Generator) Compile(ctx context.Context, table string, tree *Tree, requested []string) (*Compiled, error) {
	w, out, err := g.walk(ctx, table, tree)
	if err != nil {
		return nil, err
	}
	if requested == nil && tree != nil {
		requested = tree.Fields
	}
	return &Compiled{
		Query:  template(out),
		Fields: g.fields(table, requested, out.fields),
		Name:   name(table, w.titles),
		Leaves: w.leaves,
	}, nil
}

// Process compiles tree into a SQL template:
//
//	SELECT %fields%
//	FROM %table%
//	LEFT JOIN (<sub-select>) AS t1 ON t1.id = %table%.id
//	WHERE %where%
//	 AND (t1.id IS NOT NULL)
//	GROUP BY %table%.id
func (g *Generator) Process(ctx context.Context, table string, tree *Tree) (string, error) {
	_, out, err := g.walk(ctx, table, tree)
	if err != nil {
		return "", err
	}
	return template(out), nil
}

// Fields returns the table's default fields, the requested fields the
// table allows, and the fields contributed by tree leaves.
func (g *Generator) Fields(ctx context.Context, table string, requested []string, tree *Tree) ([]string, error) {
	_, out, err := g.walk(ctx, table, tree)
	if err != nil {
		return nil, err
	}
	return g.fields(table, requested, out.fields), nil
}

// GenerateName joins leaf titles with " and " behind the capitalized table name.
func (g *Generator) GenerateName(ctx context.Context, table string, tree *Tree) (string, error) {
	w, _, err := g.walk(ctx, table, tree)
	if err != nil {
		return "", err
	}
	return name(table, w.titles), nil
}

// ExtractCriteria flattens tree into the bound params of its leaves.
func (g *Generator) ExtractCriteria(ctx context.Context, table string, tree *Tree) ([]Leaf, error) {
	w, _, err := g.walk(ctx, table, tree)
	if err != nil {
		return nil, err
	}
	return w.leaves, nil
}

func (g *Generator) walk(ctx context.Context, table string, tree *Tree) (*walker, branch, error) {
	tableCriteria := g.registry.TableCriteria(table)
	if len(tableCriteria) == 0 {
		return nil, branch{}, &EmptyCriteriaError{Table: table}
	}
	w := &walker{ctx: ctx, table: table, criteria: tableCriteria}
	if tree == nil {
		tree = &Tree{}
	}

	var out branch
	var err error
	switch len(tree.Nodes) {
	case 0:
	case 1:
		out, err = w.node(tree.Nodes[0], 0)
	default:
		// Several top-level nodes behave like one AND operator
		out, err = w.node(&OperatorNode{Operator: "AND", Nodes: tree.Nodes}, 0)
	}
	if err != nil {
		return nil, branch{}, err
	}
	return w, out, nil
}

func (g *Generator) fields(table string, requested, criteriaFields []string) []string {
	defaults := g.registry.DefaultTableFields(table)
	allowed := g.registry.TableFields(table)

	result := make([]string, 0, len(defaults)+len(requested)+len(criteriaFields))
	seen := make(map[string]bool)
	for _, f := range defaults {
		result = append(result, table+"."+f)
		seen[f] = true
	}
	for _, f := range requested {
		if seen[f] || !slices.Contains(allowed, f) {
			continue
		}
		result = append(result, table+"."+f)
		seen[f] = true
	}
	return append(result, criteriaFields...)
}

func template(out branch) string {
	where := ""
	if out.where != "" {
		where = " AND " + out.where
	}
	return "SELECT %fields%\n" +
		"FROM %table%\n" + strings.Join(out.joins, "\n") + "\n" +
		"WHERE %where%\n" + where + "\n" +
		"GROUP BY %table%.id"
}

func name(table string, titles []string) string {
	n := firstUpper(table)
	if len(titles) > 0 {
		n += " " + strings.Join(titles, " and ")
	}
	return strings.ReplaceAll(n, "  ", " ")
}

func firstUpper(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}

// branch accumulates the output of a subtree.
type branch struct {
	where  string
	joins  []string
	fields []string
}

// walker carries per-compilation state. next hands out join aliases and
// only ever grows, so nested operators never reuse an alias.
type walker struct {
	ctx      context.Context
	table    string
	criteria map[string]Criteria
	next     int
	titles   []string
	leaves   []Leaf
}

func (w *walker) node(n Node, prefix int) (branch, error) {
	switch n := n.(type) {
	case *CriterionNode:
		return w.criterion(n, prefix)
	case *OperatorNode:
		return w.operator(n)
	default:
		return branch{}, invalidf("", "unsupported criteria node %T", n)
	}
}

func (w *walker) criterion(n *CriterionNode, prefix int) (branch, error) {
	c, ok := w.criteria[n.Key]
	if !ok {
		return branch{}, invalidf(n.Key, "Table [%s] does not recognize field [%s]. Please check the criteria definition.", w.table, n.Key)
	}
	bag, err := w.bind(c, n)
	if err != nil {
		return branch{}, err
	}

	join, err := c.Join(bag)
	if err != nil {
		return branch{}, fmt.Errorf("join of criterion %s: %w", n.Key, err)
	}
	if n.Negation {
		join = negate(join)
	}

	title, err := c.Title(bag)
	if err != nil {
		return branch{}, fmt.Errorf("title of criterion %s: %w", n.Key, err)
	}
	w.titles = append(w.titles, title)
	for _, key := range bag.Keys() {
		v, _ := bag.Value(key)
		w.leaves = append(w.leaves, Leaf{Criterion: n.Key, Param: key, Value: v})
	}

	alias := fmt.Sprintf("t%d", prefix)
	fields := make([]string, 0, len(n.Fields))
	for _, f := range n.Fields {
		fields = append(fields, fmt.Sprintf("%s.%s AS %s_%d", alias, f, f, prefix))
	}
	return branch{
		where:  alias + ".id IS NOT NULL",
		joins:  []string{fmt.Sprintf("LEFT JOIN (%s) AS %s ON %s.id = %%table%%.id", join, alias, alias)},
		fields: fields,
	}, nil
}

func (w *walker) operator(n *OperatorNode) (branch, error) {
	op := strings.ToUpper(n.Operator)
	if op != "AND" && op != "OR" {
		return branch{}, &UnknownOperatorError{Operator: n.Operator}
	}

	var out branch
	var wheres []string
	for _, child := range n.Nodes {
		w.next++
		b, err := w.node(child, w.next)
		if err != nil {
			return branch{}, err
		}
		if b.where != "" {
			wheres = append(wheres, b.where)
		}
		out.joins = append(out.joins, b.joins...)
		out.fields = append(out.fields, b.fields...)
	}
	if len(wheres) > 0 {
		out.where = "(" + strings.Join(wheres, " "+op+" ") + ")"
	}
	return out, nil
}

// bind validates leaf values against the criterion's params.
// Values for undeclared params are ignored.
func (w *walker) bind(c Criteria, n *CriterionNode) (*params.Bag, error) {
	ps, err := c.Params(w.ctx)
	if err != nil {
		return nil, fmt.Errorf("params of criterion %s: %w", n.Key, err)
	}

	bag := params.NewBag()
	for _, p := range ps {
		raw, ok := n.Values[p.Key()]
		if !ok {
			if p.Required() {
				return nil, invalidf(n.Key, "Missing required field '%s'", p.Key())
			}
			continue
		}
		v, err := p.Bind(raw)
		if err != nil {
			msg := err.Error()
			var ide *params.InvalidDataError
			if errors.As(err, &ide) {
				msg = ide.Message
			}
			return nil, &InvalidCriteriaError{
				Key:     n.Key,
				Message: fmt.Sprintf("Invalid configuration for '%s'. %s", p.Key(), msg),
				Err:     err,
			}
		}
		bag.Add(p.Key(), v)
	}
	return bag, nil
}

// negate wraps the first WHERE predicate of a sub-select in NOT (...).
// Sub-selects without a WHERE clause are returned unchanged.
func negate(join string) string {
	m := whereClause.FindStringSubmatch(join)
	if m == nil || m[1] == "" {
		return join
	}
	return strings.ReplaceAll(join, m[1], "NOT ("+m[1]+")")
}
