package model

// Segment authoring versions.
const (
	// VersionRaw marks a segment authored as a raw SQL template.
	VersionRaw = 1

	// VersionCriteria marks a segment compiled from a criteria tree.
	VersionCriteria = 2
)

// CriteriaTreeVersion is the only accepted criteria tree envelope version.
const CriteriaTreeVersion = "1"
