package criteria

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTree(t *testing.T) {
	tree, err := ParseTree([]byte(`{
		"version": "1",
		"fields": ["first_name"],
		"nodes": [{
			"type": "operator",
			"operator": "AND",
			"nodes": [
				{"type": "criteria", "key": "active", "values": {"active": true}},
				{"type": "criteria", "key": "source", "negation": true, "values": {"source": ["web"], "min_visits": 3}, "fields": ["source"]}
			]
		}]
	}`))
	require.NoError(t, err)

	assert.Equal(t, "1", tree.Version)
	assert.Equal(t, []string{"first_name"}, tree.Fields)
	require.Len(t, tree.Nodes, 1)

	op, ok := tree.Nodes[0].(*OperatorNode)
	require.True(t, ok)
	assert.Equal(t, "AND", op.Operator)
	require.Len(t, op.Nodes, 2)

	leaf, ok := op.Nodes[1].(*CriterionNode)
	require.True(t, ok)
	assert.Equal(t, "source", leaf.Key)
	assert.True(t, leaf.Negation)
	assert.Equal(t, []string{"source"}, leaf.Fields)
	// Numbers stay json.Number
	assert.Equal(t, json.Number("3"), leaf.Values["min_visits"])
}

func TestParseTreeMissingKey(t *testing.T) {
	_, err := ParseTree([]byte(`{"version":"1","nodes":[{"type":"criteria","values":{}}]}`))
	require.Error(t, err)
	assert.True(t, IsInvalidCriteria(err))
	assert.Equal(t, "Missing [key] property in one of the criteria", err.Error())
}

func TestParseTreeUnknownNodeType(t *testing.T) {
	_, err := ParseTree([]byte(`{"version":"1","nodes":[{"type":"group"}]}`))
	require.Error(t, err)
	assert.True(t, IsInvalidCriteria(err))
}

func TestParseTreeMalformedJSON(t *testing.T) {
	_, err := ParseTree([]byte(`{"version":`))
	require.Error(t, err)
	assert.True(t, IsInvalidCriteria(err))
}

func TestTreeRoundTrip(t *testing.T) {
	input := `{"version":"1","nodes":[{"type":"operator","operator":"OR","nodes":[{"type":"criteria","key":"active","negation":false,"values":{"active":true}},{"type":"criteria","key":"source","negation":true,"values":{"source":["web","app"]},"fields":["source"]}]}]}`

	tree, err := ParseTree([]byte(input))
	require.NoError(t, err)

	out, err := json.Marshal(tree)
	require.NoError(t, err)
	assert.JSONEq(t, input, string(out))
}
