package segment

import (
	"context"
	"fmt"
	"strings"

	"github.com/remp2020/crm-segment-module/internal/model"
	"github.com/remp2020/crm-segment-module/internal/params"
	"github.com/remp2020/crm-segment-module/internal/query"
)

// CriteriaKey is the registry key of SegmentCriteria.
const CriteriaKey = "segment"

// Lister loads the segments a SegmentCriteria may reference.
type Lister interface {
	FindByTable(ctx context.Context, table string) ([]model.Segment, error)
}

// SegmentCriteria selects rows that belong to any of the chosen segments.
// The join references segments through %segment.<code>% tokens, which the
// query builder inlines once the nested segments are resolved.
type SegmentCriteria struct {
	table  string
	lister Lister
}

// NewSegmentCriteria creates the criterion for table.
func NewSegmentCriteria(table string, lister Lister) *SegmentCriteria {
	return &SegmentCriteria{table: table, lister: lister}
}

func (c *SegmentCriteria) Label() string {
	return "Segments"
}

func (c *SegmentCriteria) Params(ctx context.Context) ([]params.Param, error) {
	segments, err := c.lister.FindByTable(ctx, c.table)
	if err != nil {
		return nil, fmt.Errorf("list segments of %s: %w", c.table, err)
	}
	options := make(map[string]string, len(segments))
	for _, s := range segments {
		options[s.Code] = s.Name
	}
	return []params.Param{
		params.NewStringArrayParam(params.Definition{
			Key:      CriteriaKey,
			Label:    "Segments",
			Help:     "Relation to other segments",
			Required: true,
		}, options),
	}, nil
}

// Join selects the table ids contained in the union of the chosen
// segments. It renders on a single line with its own WHERE so negation
// excludes members instead of dropping the join.
func (c *SegmentCriteria) Join(bag *params.Bag) (string, error) {
	codes, err := params.Get[params.StringArray](bag, CriteriaKey)
	if err != nil {
		return "", err
	}
	sub := make([]string, 0, len(codes.Values))
	for _, code := range codes.Sorted() {
		sub = append(sub, "SELECT a.id FROM ( "+query.Token(code)+" ) AS a")
	}
	return fmt.Sprintf("SELECT %[1]s.id FROM %[1]s WHERE %[1]s.id IN (%[2]s)", c.table, strings.Join(sub, " UNION ")), nil
}

func (c *SegmentCriteria) Title(bag *params.Bag) (string, error) {
	codes, err := params.Get[params.StringArray](bag, CriteriaKey)
	if err != nil {
		return "", err
	}
	return "with segment " + strings.Join(codes.Sorted(), ", "), nil
}

func (c *SegmentCriteria) Fields() []string {
	return nil
}
