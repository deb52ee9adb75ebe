// Package segment executes compiled segment queries.
//
// A Segment pairs a query builder with a SQL execution port and exposes
// counting, id listing, membership checks, keyset-paginated iteration
// and plan simulation. Every driver failure is returned as a
// *SegmentError carrying the failing SQL.
//
// Factory builds segments from stored definitions, resolving nested
// %segment.<code>% references first. SegmentCriteria is the built-in
// criterion that lets a criteria tree reference other segments.
package segment
