// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package postgres

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
)

var sqlOps = map[string]string{
	schema.OpEq:  "=",
	schema.OpNe:  "<>",
	schema.OpGt:  ">",
	schema.OpGte: ">=",
	schema.OpLt:  "<",
	schema.OpLte: "<=",
}

// whereFilter translates f into a JSONB condition over the metadata column,
// appending its bind values to args. Numeric values compare numerically
// against numeric JSON fields; anything else compares as text. A missing
// key never matches, as with schema.EvaluateFilter.
func whereFilter(f schema.Filter, args *[]any) (string, error) {
	switch f := f.(type) {
	case schema.ComparisonFilter:
		op, ok := sqlOps[f.Type]
		if !ok {
			return "", errdefs.Requestf("unsupported filter operator %q", f.Type)
		}
		*args = append(*args, f.Key)
		key := "$" + strconv.Itoa(len(*args))

		if n, ok := schema.ToFloat64(f.Value); ok {
			*args = append(*args, n)
			val := "$" + strconv.Itoa(len(*args))
			return fmt.Sprintf("(CASE WHEN jsonb_typeof(metadata -> %s) = 'number' THEN (metadata ->> %s)::double precision %s %s ELSE false END)",
				key, key, op, val), nil
		}
		*args = append(*args, fmt.Sprintf("%v", f.Value))
		val := "$" + strconv.Itoa(len(*args))
		return fmt.Sprintf("((metadata ->> %s) %s %s)", key, op, val), nil

	case schema.CompoundFilter:
		var joiner, empty string
		switch f.Type {
		case schema.OpAnd:
			joiner, empty = " AND ", "true"
		case schema.OpOr:
			joiner, empty = " OR ", "false"
		default:
			return "", errdefs.Requestf("unsupported compound filter %q", f.Type)
		}
		if len(f.Filters) == 0 {
			return empty, nil
		}
		parts := make([]string, len(f.Filters))
		for i, sub := range f.Filters {
			s, err := whereFilter(sub, args)
			if err != nil {
				return "", err
			}
			parts[i] = s
		}
		return "(" + strings.Join(parts, joiner) + ")", nil

	default:
		return "", errdefs.Requestf("unsupported filter type %T", f)
	}
}
