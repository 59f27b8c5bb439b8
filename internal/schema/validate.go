package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"
)

// Policy selects the rule set applied by a Validator.
type Policy int

const (
	// PolicyStandard is the store's canonical schema.
	PolicyStandard Policy = iota
	// PolicyStrict additionally enforces the CUE ingestion schema.
	PolicyStrict
)

func (p Policy) String() string {
	switch p {
	case PolicyStandard:
		return "standard"
	case PolicyStrict:
		return "strict"
	default:
		return fmt.Sprintf("policy(%d)", int(p))
	}
}

// ParsePolicy maps "standard" or "strict" to a Policy.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "standard":
		return PolicyStandard, nil
	case "strict":
		return PolicyStrict, nil
	default:
		return 0, fmt.Errorf("unknown schema policy %q: must be standard or strict", s)
	}
}

var optionalStringFields = []string{
	"supplier_name", "destination_city", "category",
	"description_short", "description_long", "booking_policy",
}

// Validator normalizes raw records under a fixed Policy.
// It holds no per-call state; a Validator may be reused across batches.
type Validator struct {
	policy Policy
	strict *strictSchema
}

// NewValidator builds a Validator. PolicyStrict compiles the embedded CUE
// schema up front so a broken schema fails here rather than mid-batch.
func NewValidator(policy Policy) (*Validator, error) {
	v := &Validator{policy: policy}
	switch policy {
	case PolicyStandard:
	case PolicyStrict:
		s, err := newStrictSchema()
		if err != nil {
			return nil, err
		}
		v.strict = s
	default:
		return nil, fmt.Errorf("unknown schema policy %d", int(policy))
	}
	return v, nil
}

// Policy returns the rule set this validator applies.
func (v *Validator) Policy() Policy {
	return v.policy
}

// Validate normalizes every record of the batch. It either returns one Product
// per record, in input order, or a *ValidationError covering the whole batch.
// The input records are never modified.
func (v *Validator) Validate(records []Record) ([]Product, error) {
	products := make([]Product, 0, len(records))
	var issues []Issue
	for i, rec := range records {
		p, recIssues := v.ValidateRecord(i, rec)
		if len(recIssues) > 0 {
			issues = append(issues, recIssues...)
			continue
		}
		products = append(products, p)
	}
	if len(issues) > 0 {
		return nil, &ValidationError{Issues: issues}
	}
	return products, nil
}

// ValidateRecord normalizes a single record at the given batch index.
func (v *Validator) ValidateRecord(index int, rec Record) (Product, []Issue) {
	p, issues := normalize(index, rec)
	if len(issues) > 0 || v.strict == nil {
		return p, issues
	}
	return p, v.strict.check(index, p.ProductID, rec)
}

// checker accumulates issues for one record.
type checker struct {
	index  int
	id     string
	prefix string // qualifies fields of nested objects, e.g. "pricing[0]."
	issues []Issue
}

func (c *checker) add(field, code, format string, args ...any) {
	c.issues = append(c.issues, Issue{
		Index:     c.index,
		ProductID: c.id,
		Field:     c.prefix + field,
		Code:      code,
		Message:   fmt.Sprintf(format, args...),
	})
}

func normalize(index int, rec Record) (Product, []Issue) {
	c := &checker{index: index}
	if rec == nil {
		c.add("record", ErrCodeNotObject, "must be a JSON object")
		return Product{}, c.issues
	}

	// Later issues carry the identifier when it is usable.
	if id, ok := rec["product_id"].(string); ok {
		c.id = strings.TrimSpace(id)
	}

	p := Product{Active: true}
	p.ProductID = c.requiredString(rec, "product_id")
	p.ProductName = c.requiredString(rec, "product_name")

	for _, field := range optionalStringFields {
		s := c.optionalString(rec, field)
		switch field {
		case "supplier_name":
			p.SupplierName = s
		case "destination_city":
			p.DestinationCity = s
		case "category":
			p.Category = s
		case "description_short":
			p.DescriptionShort = s
		case "description_long":
			p.DescriptionLong = s
		case "booking_policy":
			p.BookingPolicy = s
		}
	}

	if raw, ok := rec["duration_hours"]; ok && raw != nil {
		if n, ok := asNumber(raw); ok {
			p.DurationHours = &n
		} else {
			c.add("duration_hours", ErrCodeType, "must be a number, got %s", typeName(raw))
		}
	}

	if raw, ok := rec["active"]; ok && raw != nil {
		if b, ok := raw.(bool); ok {
			p.Active = b
		} else {
			c.add("active", ErrCodeType, "must be a boolean, got %s", typeName(raw))
		}
	}

	p.Pricing = c.pricing(rec)

	if _, ok := rec["inclusions"]; !ok {
		c.add("inclusions", ErrCodeRequired, "is required")
	}
	p.Inclusions = c.stringList(rec, "inclusions")
	p.Exclusions = c.stringList(rec, "exclusions")
	p.SourceDocument = c.stringList(rec, "source_document")

	p.Extra = c.extra(rec, productFields)
	return p, c.issues
}

func (c *checker) requiredString(rec Record, field string) string {
	raw, ok := rec[field]
	if !ok || raw == nil {
		c.add(field, ErrCodeRequired, "is required")
		return ""
	}
	s, ok := raw.(string)
	if !ok {
		c.add(field, ErrCodeType, "must be a string, got %s", typeName(raw))
		return ""
	}
	s = strings.TrimSpace(s)
	if s == "" {
		c.add(field, ErrCodeEmpty, "must not be empty")
	}
	return s
}

func (c *checker) optionalString(rec Record, field string) *string {
	raw, ok := rec[field]
	if !ok || raw == nil {
		return nil
	}
	s, ok := raw.(string)
	if !ok {
		c.add(field, ErrCodeType, "must be a string, got %s", typeName(raw))
		return nil
	}
	s = strings.TrimSpace(s)
	return &s
}

// stringList treats absent and null as an empty sequence.
func (c *checker) stringList(rec Record, field string) []string {
	raw, ok := rec[field]
	if !ok || raw == nil {
		return []string{}
	}
	switch items := raw.(type) {
	case []string:
		return append([]string{}, items...)
	case []any:
		out := make([]string, 0, len(items))
		for i, item := range items {
			s, ok := item.(string)
			if !ok {
				c.add(fmt.Sprintf("%s[%d]", field, i), ErrCodeType, "must be a string, got %s", typeName(item))
				continue
			}
			out = append(out, s)
		}
		return out
	default:
		c.add(field, ErrCodeType, "must be a list of strings, got %s", typeName(raw))
		return []string{}
	}
}

func (c *checker) pricing(rec Record) []PricingTier {
	raw, ok := rec["pricing"]
	if !ok {
		c.add("pricing", ErrCodeRequired, "is required")
		return []PricingTier{}
	}
	var items []any
	switch v := raw.(type) {
	case nil:
		return []PricingTier{}
	case []any:
		items = v
	case []map[string]any:
		items = make([]any, len(v))
		for i := range v {
			items[i] = v[i]
		}
	default:
		c.add("pricing", ErrCodeType, "must be a list of pricing tiers, got %s", typeName(raw))
		return []PricingTier{}
	}

	tiers := make([]PricingTier, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			c.add(fmt.Sprintf("pricing[%d]", i), ErrCodeNotObject, "must be an object, got %s", typeName(item))
			continue
		}
		c.prefix = fmt.Sprintf("pricing[%d].", i)
		tiers = append(tiers, c.tier(obj))
		c.prefix = ""
	}
	return tiers
}

func (c *checker) tier(obj map[string]any) PricingTier {
	t := PricingTier{Currency: DefaultCurrency}

	t.TierName = c.requiredString(obj, "tier_name")

	switch raw, ok := obj["price_aed"]; {
	case !ok || raw == nil:
		c.add("price_aed", ErrCodeRequired, "is required")
	default:
		n, ok := asNumber(raw)
		switch {
		case !ok:
			c.add("price_aed", ErrCodeType, "must be a number, got %s", typeName(raw))
		case n < 0:
			c.add("price_aed", ErrCodeNegative, "must be non-negative, got %v", n)
		default:
			r := roundCents(n)
			if math.IsInf(r, 0) {
				c.add("price_aed", ErrCodeRange, "is out of range, got %v", n)
				break
			}
			t.PriceAED = r
		}
	}

	if cur := c.optionalString(obj, "currency"); cur != nil && *cur != "" {
		t.Currency = *cur
	}

	t.ValidityStart = c.date(obj, "validity_start")
	t.ValidityEnd = c.date(obj, "validity_end")

	t.Extra = c.extra(obj, tierFields)
	return t
}

func (c *checker) date(obj map[string]any, field string) *string {
	s := c.optionalString(obj, field)
	if s == nil {
		return nil
	}
	if _, err := time.Parse(DateLayout, *s); err != nil {
		c.add(field, ErrCodeDate, "%q must be a YYYY-MM-DD date", *s)
		return nil
	}
	return s
}

func (c *checker) extra(obj map[string]any, known map[string]bool) map[string]json.RawMessage {
	var out map[string]json.RawMessage
	for k, v := range obj {
		if known[k] {
			continue
		}
		b, err := marshalNoEscape(v)
		if err != nil {
			c.add(k, ErrCodeUnsupported, "cannot be stored as JSON: %v", err)
			continue
		}
		if out == nil {
			out = make(map[string]json.RawMessage)
		}
		out[k] = json.RawMessage(b)
	}
	return out
}

func roundCents(n float64) float64 {
	return math.Round(n*100) / 100
}

func asNumber(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int8:
		f = float64(n)
	case int16:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint:
		f = float64(n)
	case uint8:
		f = float64(n)
	case uint16:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case json.Number:
		parsed, err := n.Float64()
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

func typeName(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case []any, []string:
		return "list"
	case map[string]any:
		return "object"
	}
	if _, ok := asNumber(v); ok {
		return "number"
	}
	return fmt.Sprintf("%T", v)
}
