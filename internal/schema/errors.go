package schema

import (
	"errors"
	"fmt"
	"strings"
)

// Issue codes (E200-E299).
const (
	ErrCodeNotObject   = "E200" // record is not a JSON object
	ErrCodeRequired    = "E201" // required field missing or null
	ErrCodeType        = "E202" // field has the wrong type
	ErrCodeEmpty       = "E203" // string is empty after trimming
	ErrCodeNegative    = "E204" // price below zero
	ErrCodeDate        = "E205" // date not in YYYY-MM-DD form
	ErrCodeStrict      = "E206" // strict schema violation
	ErrCodeUnsupported = "E207" // extra field cannot be encoded as JSON
	ErrCodeRange       = "E208" // number too large to store
)

// Issue is a single rule violation inside a batch.
type Issue struct {
	Index     int    `json:"index"`
	ProductID string `json:"product_id,omitempty"`
	Field     string `json:"field"`
	Code      string `json:"code"`
	Message   string `json:"message"`
}

func (i Issue) String() string {
	id := i.ProductID
	if id == "" {
		id = fmt.Sprintf("index_%d", i.Index)
	}
	return fmt.Sprintf("[%s] %s: %s: %s", i.Code, id, i.Field, i.Message)
}

// ValidationError reports every issue found in a rejected batch.
type ValidationError struct {
	Issues []Issue
}

func (e *ValidationError) Error() string {
	if len(e.Issues) == 1 {
		return "validation failed: " + e.Issues[0].String()
	}
	parts := make([]string, len(e.Issues))
	for i, is := range e.Issues {
		parts[i] = is.String()
	}
	return fmt.Sprintf("validation failed with %d issue(s): %s", len(e.Issues), strings.Join(parts, "; "))
}

// ProductIDs returns the distinct identifiers named by the issues, in order.
// Records without a usable identifier are reported as index_<n>.
func (e *ValidationError) ProductIDs() []string {
	seen := make(map[string]bool)
	var ids []string
	for _, is := range e.Issues {
		id := is.ProductID
		if id == "" {
			id = fmt.Sprintf("index_%d", is.Index)
		}
		if !seen[id] {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// IsValidationError reports whether err is or wraps a *ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
