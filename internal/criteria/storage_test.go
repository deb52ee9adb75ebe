package criteria

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStorageLookups(t *testing.T) {
	s := testRegistry()

	assert.Len(t, s.TableCriteria("users"), 2)
	assert.Empty(t, s.TableCriteria("payments"))
	assert.Equal(t, []string{"id", "email"}, s.DefaultTableFields("users"))
	assert.Equal(t, []string{"users"}, s.Tables())

	// Returned slices are copies
	fields := s.TableFields("users")
	fields[0] = "changed"
	assert.Equal(t, "id", s.TableFields("users")[0])
}

func TestStorageBlueprint(t *testing.T) {
	s := testRegistry()
	s.Register("payments", "amount", activeCriteria())

	bp, err := s.Blueprint(context.Background())
	require.NoError(t, err)
	require.Len(t, bp, 2)

	assert.Equal(t, "payments", bp[0].Table)
	assert.Equal(t, []string{}, bp[0].Fields)

	users := bp[1]
	assert.Equal(t, "users", users.Table)
	require.Len(t, users.Criteria, 2)
	assert.Equal(t, "active", users.Criteria[0].Key)
	assert.Equal(t, "source", users.Criteria[1].Key)
	assert.Equal(t, []string{"source"}, users.Criteria[1].Fields)
	assert.Contains(t, users.Criteria[1].Params, "min_visits")

	raw, err := json.Marshal(bp)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"key":"active"`)
}
