package criteria

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Tree is the JSON envelope of a criteria definition:
//
//	{"version": "1", "fields": [...], "nodes": [Node...]}
//
// Fields lists additional table columns requested for selection.
type Tree struct {
	Version string
	Fields  []string
	Nodes   []Node
}

// Node is a sealed interface over tree nodes.
// Only *CriterionNode and *OperatorNode implement it.
type Node interface {
	treeNode() // Marker method - seals interface to this package
}

// CriterionNode is a single leaf criterion instance.
//
//	{"type": "criteria", "key": "segment", "negation": false,
//	 "values": {"segment": ["a", "b"]}, "fields": ["x"]}
type CriterionNode struct {
	Key      string
	Negation bool
	Values   map[string]any // Decoded with json.Number for numbers
	Fields   []string
}

// OperatorNode combines its children with AND or OR.
//
//	{"type": "operator", "operator": "AND", "nodes": [...]}
type OperatorNode struct {
	Operator string
	Nodes    []Node
}

func (*CriterionNode) treeNode() {}
func (*OperatorNode) treeNode()  {}

const (
	nodeTypeCriteria = "criteria"
	nodeTypeOperator = "operator"
)

// ParseTree decodes a criteria tree. Numbers inside values are kept as
// json.Number so integer params do not pass through float64.
func ParseTree(data []byte) (*Tree, error) {
	var t Tree
	if err := json.Unmarshal(data, &t); err != nil {
		if IsInvalidCriteria(err) {
			return nil, err
		}
		return nil, &InvalidCriteriaError{Message: fmt.Sprintf("malformed criteria tree: %v", err), Err: err}
	}
	return &t, nil
}

type rawTree struct {
	Version string            `json:"version"`
	Fields  []string          `json:"fields,omitempty"`
	Nodes   []json.RawMessage `json:"nodes"`
}

type rawNode struct {
	Type     string            `json:"type"`
	Key      *string           `json:"key,omitempty"`
	Negation bool              `json:"negation"`
	Values   map[string]any    `json:"values,omitempty"`
	Fields   []string          `json:"fields,omitempty"`
	Operator string            `json:"operator,omitempty"`
	Nodes    []json.RawMessage `json:"nodes,omitempty"`
}

// UnmarshalJSON implements json.Unmarshaler.
func (t *Tree) UnmarshalJSON(data []byte) error {
	var raw rawTree
	if err := decodeUseNumber(data, &raw); err != nil {
		return &InvalidCriteriaError{Message: fmt.Sprintf("malformed criteria tree: %v", err), Err: err}
	}
	nodes, err := decodeNodes(raw.Nodes)
	if err != nil {
		return err
	}
	t.Version = raw.Version
	t.Fields = raw.Fields
	t.Nodes = nodes
	return nil
}

// MarshalJSON implements json.Marshaler.
func (t Tree) MarshalJSON() ([]byte, error) {
	nodes := t.Nodes
	if nodes == nil {
		nodes = []Node{}
	}
	return json.Marshal(struct {
		Version string   `json:"version"`
		Fields  []string `json:"fields,omitempty"`
		Nodes   []Node   `json:"nodes"`
	}{t.Version, t.Fields, nodes})
}

// MarshalJSON implements json.Marshaler.
func (n *CriterionNode) MarshalJSON() ([]byte, error) {
	values := n.Values
	if values == nil {
		values = map[string]any{}
	}
	return json.Marshal(struct {
		Type     string         `json:"type"`
		Key      string         `json:"key"`
		Negation bool           `json:"negation"`
		Values   map[string]any `json:"values"`
		Fields   []string       `json:"fields,omitempty"`
	}{nodeTypeCriteria, n.Key, n.Negation, values, n.Fields})
}

// MarshalJSON implements json.Marshaler.
func (n *OperatorNode) MarshalJSON() ([]byte, error) {
	nodes := n.Nodes
	if nodes == nil {
		nodes = []Node{}
	}
	return json.Marshal(struct {
		Type     string `json:"type"`
		Operator string `json:"operator"`
		Nodes    []Node `json:"nodes"`
	}{nodeTypeOperator, n.Operator, nodes})
}

func decodeNodes(raws []json.RawMessage) ([]Node, error) {
	nodes := make([]Node, 0, len(raws))
	for _, r := range raws {
		n, err := decodeNode(r)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	return nodes, nil
}

func decodeNode(data json.RawMessage) (Node, error) {
	var raw rawNode
	if err := decodeUseNumber(data, &raw); err != nil {
		return nil, &InvalidCriteriaError{Message: fmt.Sprintf("malformed criteria node: %v", err), Err: err}
	}

	switch raw.Type {
	case nodeTypeCriteria:
		if raw.Key == nil || *raw.Key == "" {
			return nil, invalidf("", "Missing [key] property in one of the criteria")
		}
		return &CriterionNode{
			Key:      *raw.Key,
			Negation: raw.Negation,
			Values:   raw.Values,
			Fields:   raw.Fields,
		}, nil
	case nodeTypeOperator:
		children, err := decodeNodes(raw.Nodes)
		if err != nil {
			return nil, err
		}
		return &OperatorNode{Operator: raw.Operator, Nodes: children}, nil
	default:
		return nil, invalidf("", "Unknown node type '%s', expected criteria or operator", raw.Type)
	}
}

func decodeUseNumber(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	return dec.Decode(v)
}
