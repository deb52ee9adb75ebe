package query

import "github.com/remp2020/crm-segment-module/internal/model"

// Config is the minimal contract needed to build an executable segment,
// whether authored as raw SQL or compiled from a criteria tree.
type Config struct {
	TableName   string
	QueryString string
	Fields      string // Comma-separated
}

// ConfigFromSegment extracts the builder inputs of a stored segment.
func ConfigFromSegment(s model.Segment) Config {
	return Config{
		TableName:   s.TableName,
		QueryString: s.QueryString,
		Fields:      s.Fields,
	}
}
