// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package schema

import (
	"encoding/json"
	"fmt"
	"sort"
)

// Comparison operators.
const (
	OpEq  = "eq"
	OpNe  = "ne"
	OpGt  = "gt"
	OpGte = "gte"
	OpLt  = "lt"
	OpLte = "lte"
)

// Logical operators.
const (
	OpAnd = "and"
	OpOr  = "or"
)

// Filter is a marker interface for ComparisonFilter and CompoundFilter.
// Filters restrict vector search candidates by record metadata.
type Filter interface {
	isFilter()
}

// ComparisonFilter compares one metadata key against a value.
type ComparisonFilter struct {
	Type  string `json:"type"` // eq, ne, gt, gte, lt, lte
	Key   string `json:"key"`
	Value any    `json:"value"` // string, number, or bool
}

func (ComparisonFilter) isFilter() {}

// CompoundFilter combines multiple filters with a logical operator.
type CompoundFilter struct {
	Type    string   `json:"type"` // and, or
	Filters []Filter `json:"filters"`
}

func (CompoundFilter) isFilter() {}

// MatchAll returns a filter requiring every key of m to equal its value.
// Keys are sorted so the result is deterministic. A nil or empty map yields
// a nil filter.
func MatchAll(m map[string]any) Filter {
	if len(m) == 0 {
		return nil
	}
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if len(keys) == 1 {
		return ComparisonFilter{Type: OpEq, Key: keys[0], Value: m[keys[0]]}
	}
	filters := make([]Filter, len(keys))
	for i, k := range keys {
		filters[i] = ComparisonFilter{Type: OpEq, Key: k, Value: m[k]}
	}
	return CompoundFilter{Type: OpAnd, Filters: filters}
}

// ParseFilter parses a generic map (from JSON) into a typed Filter.
//
// Two forms are accepted: the typed form ({"type":"eq","key":...,"value":...}
// or {"type":"and","filters":[...]}) and a plain object of key/value pairs,
// which means an AND of equalities.
func ParseFilter(raw any) (Filter, error) {
	if raw == nil {
		return nil, nil
	}
	m, ok := raw.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("filter must be an object, got %T", raw)
	}
	if !isTypedFilter(m) {
		return MatchAll(m), nil
	}

	typ := m["type"].(string)
	switch typ {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte:
		key, _ := m["key"].(string)
		if key == "" {
			return nil, fmt.Errorf("comparison filter requires 'key'")
		}
		value, ok := m["value"]
		if !ok {
			return nil, fmt.Errorf("comparison filter requires 'value'")
		}
		return ComparisonFilter{Type: typ, Key: key, Value: value}, nil

	case OpAnd, OpOr:
		rawFilters, ok := m["filters"].([]any)
		if !ok {
			return nil, fmt.Errorf("compound filter requires 'filters' array")
		}
		var filters []Filter
		for i, rf := range rawFilters {
			f, err := ParseFilter(rf)
			if err != nil {
				return nil, fmt.Errorf("filters[%d]: %w", i, err)
			}
			if f != nil {
				filters = append(filters, f)
			}
		}
		return CompoundFilter{Type: typ, Filters: filters}, nil

	default:
		return nil, fmt.Errorf("unknown filter type: %q", typ)
	}
}

// isTypedFilter distinguishes the typed form from a plain equality object
// that happens to contain a "type" metadata key.
func isTypedFilter(m map[string]any) bool {
	typ, ok := m["type"].(string)
	if !ok {
		return false
	}
	switch typ {
	case OpEq, OpNe, OpGt, OpGte, OpLt, OpLte:
		_, hasKey := m["key"]
		_, hasValue := m["value"]
		return hasKey || hasValue || len(m) == 1
	case OpAnd, OpOr:
		_, hasFilters := m["filters"]
		return hasFilters || len(m) == 1
	}
	// Unknown operator names only count as typed when the object looks like
	// a filter rather than metadata.
	_, hasKey := m["key"]
	_, hasFilters := m["filters"]
	return hasKey || hasFilters
}

// EvaluateFilter evaluates a filter against record metadata.
// A nil filter matches everything.
func EvaluateFilter(filter Filter, metadata map[string]any) bool {
	switch f := filter.(type) {
	case nil:
		return true
	case ComparisonFilter:
		return evaluateComparison(f, metadata)
	case CompoundFilter:
		return evaluateCompound(f, metadata)
	default:
		return false
	}
}

func evaluateComparison(f ComparisonFilter, metadata map[string]any) bool {
	attrVal, exists := metadata[f.Key]
	if !exists {
		return false
	}

	cmp := compareValues(attrVal, f.Value)

	switch f.Type {
	case OpEq:
		return cmp == 0
	case OpNe:
		return cmp != 0
	case OpGt:
		return cmp > 0
	case OpGte:
		return cmp >= 0
	case OpLt:
		return cmp < 0
	case OpLte:
		return cmp <= 0
	default:
		return false
	}
}

// compareValues compares two values, returning -1, 0, or 1.
// Numbers compare numerically; anything else compares by its string form.
func compareValues(a, b any) int {
	aNum, aOK := ToFloat64(a)
	bNum, bOK := ToFloat64(b)
	if aOK && bOK {
		switch {
		case aNum < bNum:
			return -1
		case aNum > bNum:
			return 1
		}
		return 0
	}

	aStr := fmt.Sprintf("%v", a)
	bStr := fmt.Sprintf("%v", b)
	switch {
	case aStr < bStr:
		return -1
	case aStr > bStr:
		return 1
	}
	return 0
}

// ToFloat64 converts the numeric types produced by encoding/json and Go
// callers to float64.
func ToFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint64:
		return float64(n), true
	case uint32:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func evaluateCompound(f CompoundFilter, metadata map[string]any) bool {
	switch f.Type {
	case OpAnd:
		for _, sub := range f.Filters {
			if !EvaluateFilter(sub, metadata) {
				return false
			}
		}
		return true
	case OpOr:
		for _, sub := range f.Filters {
			if EvaluateFilter(sub, metadata) {
				return true
			}
		}
		return false
	default:
		return false
	}
}
