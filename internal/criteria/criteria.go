package criteria

import (
	"context"

	"github.com/remp2020/crm-segment-module/internal/params"
)

// Criteria is a single filter capability registered for a table.
type Criteria interface {
	// Label is the human-readable name used in criteria listings.
	Label() string

	// Params returns the param schemas accepted by this criterion.
	// Options of array params may be loaded from storage, hence ctx.
	Params(ctx context.Context) ([]params.Param, error)

	// Join renders a SQL sub-select returning an id column.
	Join(bag *params.Bag) (string, error)

	// Title renders a name fragment, e.g. "with segment a, b".
	Title(bag *params.Bag) (string, error)

	// Fields lists columns the sub-select exposes for selection.
	Fields() []string
}

// Registry resolves the criteria available for a table.
type Registry interface {
	TableCriteria(table string) map[string]Criteria
	DefaultTableFields(table string) []string
	TableFields(table string) []string
}
