// Package params provides typed, self-validating criterion parameters.
//
// A Param is a schema: it knows its key, label and type, renders a
// Blueprint for UI forms, and validates raw decoded JSON data. Binding
// raw data through Param.Bind produces a Value, a sealed sum type with
// one concrete type per param kind. Values compare with Equal, which
// fails on a concrete type mismatch instead of returning false.
//
// Array values render SQL literal lists through EscapedString. Only
// values that passed validation can be produced, so every literal that
// reaches SQL text went through IsValid first.
package params
