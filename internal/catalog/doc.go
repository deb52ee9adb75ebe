// Package catalog loads criteria declared in CUE files and registers them
// in a criteria registry.
//
// A catalog file declares tables, their selectable fields and their
// criteria. Each criterion lists typed params and two text/template
// strings: join renders the sub-select, title renders the name fragment.
//
//	table: users: {
//		default_fields: ["id", "email"]
//		fields: ["id", "email", "created_at"]
//		criteria: active: {
//			label: "Active"
//			params: active: {type: "boolean", label: "Active", required: true}
//			join:  "SELECT users.id FROM users WHERE users.active = {{if .active}}1{{else}}0{{end}}"
//			title: "{{if .active}}active{{else}}inactive{{end}}"
//		}
//	}
//
// Templates see every declared param by key; unbound optional params are
// nil. The funcs escaped, quote and title render values as SQL literals
// or display text. Keep the WHERE predicate of a join on one line:
// negation wraps everything after WHERE up to the end of that line.
package catalog
