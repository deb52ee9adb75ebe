// Package query turns segment SQL templates into executable SQL text.
//
// A template is plain SQL with literal placeholders, substituted by
// substring replacement:
//
//	%table%           table name
//	%fields%          de-duplicated, table-qualified field list
//	%group_by%        de-duplicated pre-alias field expressions, lowercased
//	%where%           caller predicate, or 1=1
//	%segment.<code>%  fully resolved SQL of another segment
//
// Nested segments are loaded up front by a Resolver, which rejects
// missing codes, reference cycles and overly deep nesting. The builder
// itself performs no I/O and is safe for concurrent use.
package query
