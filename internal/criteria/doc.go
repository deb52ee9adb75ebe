// Package criteria compiles boolean criteria trees into SQL segment templates.
//
// A Registry maps (table, key) to a Criteria capability. Each Criteria
// declares its params and renders a SQL sub-select and a human title from
// a bound params.Bag. The Generator walks a Tree, binds every leaf against
// its criterion's params, and emits a template with %fields%, %table% and
// %where% placeholders for the query package to substitute.
//
// Leaves compile to LEFT JOIN sub-selects aliased t<N>. N is unique across
// the whole tree. A leaf contributes the predicate "t<N>.id IS NOT NULL";
// negation rewrites the sub-select's own WHERE clause instead.
package criteria
