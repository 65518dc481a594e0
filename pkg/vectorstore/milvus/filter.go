// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package milvus

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/leseb/bedrock-gw/pkg/core/errdefs"
	"github.com/leseb/bedrock-gw/pkg/core/schema"
)

var exprOps = map[string]string{
	schema.OpEq:  "==",
	schema.OpNe:  "!=",
	schema.OpGt:  ">",
	schema.OpGte: ">=",
	schema.OpLt:  "<",
	schema.OpLte: "<=",
}

// filterExpr translates f into a boolean expression over the JSON metadata
// field, e.g. `(metadata["kind"] == "guide")`.
func filterExpr(f schema.Filter) (string, error) {
	switch f := f.(type) {
	case schema.ComparisonFilter:
		op, ok := exprOps[f.Type]
		if !ok {
			return "", errdefs.Requestf("unsupported filter operator %q", f.Type)
		}
		field := fmt.Sprintf(`%s["%s"]`, fieldMetadata, escapeExpr(f.Key))
		return fmt.Sprintf("(%s %s %s)", field, op, literal(f.Value)), nil

	case schema.CompoundFilter:
		var joiner, empty string
		switch f.Type {
		case schema.OpAnd:
			joiner, empty = " && ", "true"
		case schema.OpOr:
			joiner, empty = " || ", "false"
		default:
			return "", errdefs.Requestf("unsupported compound filter %q", f.Type)
		}
		if len(f.Filters) == 0 {
			return empty, nil
		}
		parts := make([]string, len(f.Filters))
		for i, sub := range f.Filters {
			s, err := filterExpr(sub)
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

func literal(v any) string {
	if n, ok := schema.ToFloat64(v); ok {
		return strconv.FormatFloat(n, 'f', -1, 64)
	}
	if b, ok := v.(bool); ok {
		return strconv.FormatBool(b)
	}
	return `"` + escapeExpr(fmt.Sprintf("%v", v)) + `"`
}
