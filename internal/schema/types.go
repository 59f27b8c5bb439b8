package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// DefaultCurrency is applied to pricing tiers that omit a currency.
const DefaultCurrency = "AED"

// DateLayout is the calendar-date format of validity_start and validity_end.
const DateLayout = "2006-01-02"

// Record is a raw, unvalidated catalog record as decoded from JSON or YAML.
type Record = map[string]any

// PricingTier is one price point of a product.
type PricingTier struct {
	TierName      string  `json:"tier_name"`
	PriceAED      float64 `json:"price_aed"`
	Currency      string  `json:"currency"`
	ValidityStart *string `json:"validity_start,omitempty"`
	ValidityEnd   *string `json:"validity_end,omitempty"`

	// Extra holds fields not recognized by the schema, as raw JSON.
	Extra map[string]json.RawMessage `json:"-"`
}

// Product is a normalized catalog record keyed by ProductID.
type Product struct {
	ProductID        string        `json:"product_id"`
	ProductName      string        `json:"product_name"`
	Pricing          []PricingTier `json:"pricing"`
	Inclusions       []string      `json:"inclusions"`
	Exclusions       []string      `json:"exclusions"`
	Active           bool          `json:"active"`
	SupplierName     *string       `json:"supplier_name,omitempty"`
	DestinationCity  *string       `json:"destination_city,omitempty"`
	Category         *string       `json:"category,omitempty"`
	DescriptionShort *string       `json:"description_short,omitempty"`
	DescriptionLong  *string       `json:"description_long,omitempty"`
	BookingPolicy    *string       `json:"booking_policy,omitempty"`
	DurationHours    *float64      `json:"duration_hours,omitempty"`
	SourceDocument   []string      `json:"source_document"`

	// Extra holds fields not recognized by the schema, as raw JSON.
	Extra map[string]json.RawMessage `json:"-"`
}

var productFields = map[string]bool{
	"product_id": true, "product_name": true, "pricing": true, "inclusions": true,
	"exclusions": true, "active": true, "supplier_name": true, "destination_city": true,
	"category": true, "description_short": true, "description_long": true,
	"booking_policy": true, "duration_hours": true, "source_document": true,
}

var tierFields = map[string]bool{
	"tier_name": true, "price_aed": true, "currency": true,
	"validity_start": true, "validity_end": true,
}

// MarshalJSON writes known fields in declaration order followed by extra
// fields sorted by key. Nil sequences are written as empty arrays.
func (p Product) MarshalJSON() ([]byte, error) {
	type fields Product
	f := fields(p)
	if f.Pricing == nil {
		f.Pricing = []PricingTier{}
	}
	if f.Inclusions == nil {
		f.Inclusions = []string{}
	}
	if f.Exclusions == nil {
		f.Exclusions = []string{}
	}
	if f.SourceDocument == nil {
		f.SourceDocument = []string{}
	}
	b, err := marshalNoEscape(f)
	if err != nil {
		return nil, err
	}
	return appendExtra(b, p.Extra, productFields)
}

// UnmarshalJSON reads a stored product without validating it. A missing
// active flag defaults to true; unknown fields land in Extra.
func (p *Product) UnmarshalJSON(data []byte) error {
	type fields Product
	f := fields{Active: true}
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	extra, err := collectExtra(data, productFields)
	if err != nil {
		return err
	}
	f.Extra = extra
	*p = Product(f)
	return nil
}

// MarshalJSON writes known tier fields followed by extra fields sorted by key.
func (t PricingTier) MarshalJSON() ([]byte, error) {
	type fields PricingTier
	b, err := marshalNoEscape(fields(t))
	if err != nil {
		return nil, err
	}
	return appendExtra(b, t.Extra, tierFields)
}

// UnmarshalJSON reads a stored tier without validating it.
func (t *PricingTier) UnmarshalJSON(data []byte) error {
	type fields PricingTier
	var f fields
	if err := json.Unmarshal(data, &f); err != nil {
		return err
	}
	extra, err := collectExtra(data, tierFields)
	if err != nil {
		return err
	}
	f.Extra = extra
	*t = PricingTier(f)
	return nil
}

// marshalNoEscape encodes v without HTML escaping so stored text stays
// byte-for-byte readable.
func marshalNoEscape(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// appendExtra splices extra fields into an encoded JSON object.
func appendExtra(obj []byte, extra map[string]json.RawMessage, known map[string]bool) ([]byte, error) {
	if len(extra) == 0 {
		return obj, nil
	}
	keys := make([]string, 0, len(extra))
	for k := range extra {
		if !known[k] {
			keys = append(keys, k)
		}
	}
	if len(keys) == 0 {
		return obj, nil
	}
	sort.Strings(keys)

	var buf bytes.Buffer
	buf.Write(obj[:len(obj)-1])
	for _, k := range keys {
		raw := extra[k]
		if !json.Valid(raw) {
			return nil, fmt.Errorf("extra field %q: invalid JSON", k)
		}
		kb, err := marshalNoEscape(k)
		if err != nil {
			return nil, err
		}
		// obj always carries known fields, so a separator is needed.
		buf.WriteByte(',')
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(raw)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func collectExtra(data []byte, known map[string]bool) (map[string]json.RawMessage, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	var extra map[string]json.RawMessage
	for k, v := range raw {
		if known[k] {
			continue
		}
		if extra == nil {
			extra = make(map[string]json.RawMessage)
		}
		extra[k] = v
	}
	return extra, nil
}
