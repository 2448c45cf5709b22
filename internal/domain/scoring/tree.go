package scoring

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"gonum.org/v1/gonum/stat"
)

const scoreKey = "Score"

// ScoreNode is one member of a structured score response: either a leaf that
// carries a Score, or a branch whose members are searched in turn.
type ScoreNode struct {
	Name     string
	Leaf     bool
	Score    float64 // valid when Leaf
	Children []ScoreNode
}

// ScoreTree is a parsed structured score response. Member order follows the
// document so that aggregation is deterministic.
type ScoreTree struct {
	Children []ScoreNode
}

// ParseScoreTree parses a structured score response. Members whose value is
// an object with a "Score" key become leaves; other object members become
// branches; non-object members are ignored.
func ParseScoreTree(raw []byte) (ScoreTree, error) {
	members, err := objectMembers(raw)
	if err != nil {
		return ScoreTree{}, fmt.Errorf("%w: %v", ErrMalformedScores, err)
	}
	children, err := buildNodes(members)
	if err != nil {
		return ScoreTree{}, err
	}
	return ScoreTree{Children: children}, nil
}

func buildNodes(members []member) ([]ScoreNode, error) {
	var nodes []ScoreNode
	for _, m := range members {
		if !isObject(m.raw) {
			continue
		}
		inner, err := objectMembers(m.raw)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrMalformedScores, m.key, err)
		}
		if scoreRaw, ok := lookup(inner, scoreKey); ok {
			v, err := number(scoreRaw)
			if err != nil {
				return nil, fmt.Errorf("%w: %s.Score: %v", ErrMalformedScores, m.key, err)
			}
			nodes = append(nodes, ScoreNode{Name: m.key, Leaf: true, Score: v})
			continue
		}
		children, err := buildNodes(inner)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, ScoreNode{Name: m.key, Children: children})
	}
	return nodes, nil
}

// Leaves returns every leaf score, depth first in document order.
func (t ScoreTree) Leaves() []float64 {
	var out []float64
	var walk func([]ScoreNode)
	walk = func(nodes []ScoreNode) {
		for _, n := range nodes {
			if n.Leaf {
				out = append(out, n.Score)
				continue
			}
			walk(n.Children)
		}
	}
	walk(t.Children)
	return out
}

// Composite is the mean of all leaf scores, or 0 when there are none.
func (t ScoreTree) Composite() float64 {
	leaves := t.Leaves()
	if len(leaves) == 0 {
		return 0
	}
	return stat.Mean(leaves, nil)
}

// CompositeScore parses raw and returns its composite score.
func CompositeScore(raw []byte) (float64, error) {
	tree, err := ParseScoreTree(raw)
	if err != nil {
		return 0, err
	}
	return tree.Composite(), nil
}

// NaiveScore extracts the top-level numeric "score" of a naive score response.
func NaiveScore(raw []byte) (float64, error) {
	members, err := objectMembers(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMissingScore, err)
	}
	v, ok := lookup(members, "score")
	if !ok {
		return 0, ErrMissingScore
	}
	f, err := number(v)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMissingScore, err)
	}
	return f, nil
}

type member struct {
	key string
	raw json.RawMessage
}

// objectMembers decodes a JSON object into its members, preserving order.
func objectMembers(raw []byte) ([]member, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("expected object, got %v", tok)
	}
	var out []member
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var v json.RawMessage
		if err := dec.Decode(&v); err != nil {
			return nil, err
		}
		out = append(out, member{key: key, raw: v})
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return out, nil
}

func lookup(members []member, key string) (json.RawMessage, bool) {
	for _, m := range members {
		if m.key == key {
			return m.raw, true
		}
	}
	return nil, false
}

func isObject(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '{'
}

// number accepts a JSON number or a string holding one.
func number(raw json.RawMessage) (float64, error) {
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil && n != "" {
		return n.Float64()
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strconv.ParseFloat(s, 64)
	}
	return 0, fmt.Errorf("not a number: %s", string(raw))
}
