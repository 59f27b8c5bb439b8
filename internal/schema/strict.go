package schema

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/errors"
)

//go:embed strict.cue
var strictSchemaSource string

// strictSchema checks raw records against the #Product definition in strict.cue.
type strictSchema struct {
	mu      sync.Mutex // cue.Context is not safe for concurrent use
	ctx     *cue.Context
	product cue.Value
}

func newStrictSchema() (*strictSchema, error) {
	ctx := cuecontext.New()
	v := ctx.CompileString(strictSchemaSource, cue.Filename("strict.cue"))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("compile strict schema: %w", err)
	}
	def := v.LookupPath(cue.ParsePath("#Product"))
	if !def.Exists() {
		return nil, fmt.Errorf("compile strict schema: #Product not defined")
	}
	return &strictSchema{ctx: ctx, product: def}, nil
}

// check unifies rec with #Product and converts every CUE error into an Issue.
func (s *strictSchema) check(index int, productID string, rec Record) []Issue {
	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.ctx.Encode(plainValue(rec))
	if err := data.Err(); err != nil {
		return []Issue{strictIssue(index, productID, "record", err.Error())}
	}
	err := s.product.Unify(data).Validate(cue.Concrete(true))
	if err == nil {
		return nil
	}

	var issues []Issue
	for _, e := range errors.Errors(err) {
		format, args := e.Msg()
		issues = append(issues, strictIssue(index, productID, fieldPath(e.Path()), fmt.Sprintf(format, args...)))
	}
	return issues
}

func strictIssue(index int, productID, field, msg string) Issue {
	return Issue{Index: index, ProductID: productID, Field: field, Code: ErrCodeStrict, Message: msg}
}

// fieldPath renders a CUE path the way the standard rules name fields,
// e.g. [pricing 0 currency] becomes pricing[0].currency.
func fieldPath(path []string) string {
	var b strings.Builder
	for _, sel := range path {
		if strings.HasPrefix(sel, "#") {
			continue
		}
		if isIndex(sel) {
			fmt.Fprintf(&b, "[%s]", sel)
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('.')
		}
		b.WriteString(sel)
	}
	if b.Len() == 0 {
		return "record"
	}
	return b.String()
}

func isIndex(sel string) bool {
	if sel == "" {
		return false
	}
	for _, r := range sel {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// plainValue converts decoder-specific values (json.Number, typed slices)
// into the plain shapes CUE encodes predictably.
func plainValue(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if f, err := val.Float64(); err == nil {
			return f
		}
		return val.String()
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, elem := range val {
			out[k] = plainValue(elem)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = plainValue(elem)
		}
		return out
	case []map[string]any:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = plainValue(elem)
		}
		return out
	case []string:
		out := make([]any, len(val))
		for i, elem := range val {
			out[i] = elem
		}
		return out
	default:
		return v
	}
}
