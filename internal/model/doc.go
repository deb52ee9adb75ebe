// Package model provides the persisted entity types for segments.
//
// This package contains type definitions only. All other internal packages
// import model; model imports nothing internal.
//
// Key design constraints:
//   - Segment codes are unique among non-deleted segments
//   - Criteria is stored as raw JSON and decoded by the criteria package
//   - All JSON tags use snake_case
package model
