// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package qdrant

import (
	"fmt"
	"math"

	"github.com/qdrant/go-client/qdrant"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
)

// condition translates f into a Qdrant condition over the nested metadata
// payload. Range operators need numeric values; a missing key never
// matches, including for "ne".
func condition(f schema.Filter) (*qdrant.Condition, error) {
	switch f := f.(type) {
	case schema.ComparisonFilter:
		return comparison(f)

	case schema.CompoundFilter:
		conds := make([]*qdrant.Condition, len(f.Filters))
		for i, sub := range f.Filters {
			c, err := condition(sub)
			if err != nil {
				return nil, err
			}
			conds[i] = c
		}
		switch f.Type {
		case schema.OpAnd:
			return qdrant.NewFilterAsCondition(&qdrant.Filter{Must: conds}), nil
		case schema.OpOr:
			if len(conds) == 0 {
				return matchNothing(), nil
			}
			return qdrant.NewFilterAsCondition(&qdrant.Filter{Should: conds}), nil
		}
		return nil, errdefs.Requestf("unsupported compound filter %q", f.Type)

	default:
		return nil, errdefs.Requestf("unsupported filter type %T", f)
	}
}

func comparison(f schema.ComparisonFilter) (*qdrant.Condition, error) {
	key := payloadMetadata + "." + f.Key
	num, isNum := schema.ToFloat64(f.Value)

	switch f.Type {
	case schema.OpEq:
		return match(key, f.Value, num, isNum), nil
	case schema.OpNe:
		return qdrant.NewFilterAsCondition(&qdrant.Filter{
			MustNot: []*qdrant.Condition{match(key, f.Value, num, isNum), qdrant.NewIsEmpty(key)},
		}), nil
	case schema.OpGt, schema.OpGte, schema.OpLt, schema.OpLte:
		if !isNum {
			return nil, errdefs.Requestf("qdrant: %s filter on %q needs a numeric value", f.Type, f.Key)
		}
		r := &qdrant.Range{}
		switch f.Type {
		case schema.OpGt:
			r.Gt = &num
		case schema.OpGte:
			r.Gte = &num
		case schema.OpLt:
			r.Lt = &num
		case schema.OpLte:
			r.Lte = &num
		}
		return qdrant.NewRange(key, r), nil
	}
	return nil, errdefs.Requestf("unsupported filter operator %q", f.Type)
}

func match(key string, v any, num float64, isNum bool) *qdrant.Condition {
	switch {
	case isNum && num == math.Trunc(num):
		return qdrant.NewMatchInt(key, int64(num))
	case isNum:
		return qdrant.NewRange(key, &qdrant.Range{Gte: &num, Lte: &num})
	}
	if b, ok := v.(bool); ok {
		return qdrant.NewMatchBool(key, b)
	}
	return qdrant.NewMatch(key, fmt.Sprintf("%v", v))
}

// matchNothing is the identity of an empty "or".
func matchNothing() *qdrant.Condition {
	return qdrant.NewFilterAsCondition(&qdrant.Filter{
		MustNot: []*qdrant.Condition{qdrant.NewFilterAsCondition(&qdrant.Filter{})},
	})
}
