package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProductJSON_FieldOrderAndExtras(t *testing.T) {
	p := Product{
		ProductID:   "P1",
		ProductName: "Dhow Cruise Dinner",
		Pricing:     []PricingTier{{TierName: "Adult", PriceAED: 150, Currency: "AED"}},
		Inclusions:  []string{"Buffet"},
		Active:      true,
		Extra: map[string]json.RawMessage{
			"zeta":  json.RawMessage(`1`),
			"alpha": json.RawMessage(`"a"`),
		},
	}

	b, err := json.Marshal(p)
	require.NoError(t, err)
	assert.Equal(t,
		`{"product_id":"P1","product_name":"Dhow Cruise Dinner",`+
			`"pricing":[{"tier_name":"Adult","price_aed":150,"currency":"AED"}],`+
			`"inclusions":["Buffet"],"exclusions":[],"active":true,"source_document":[],`+
			`"alpha":"a","zeta":1}`,
		string(b))
}

func TestProductJSON_UnmarshalKeepsUnknownFields(t *testing.T) {
	in := `{"product_id":"P2","product_name":"Museum – Culture & Art 文化",` +
		`"pricing":[{"tier_name":"Adult","price_aed":50,"currency":"AED","seasonal":true}],` +
		`"inclusions":["Guide en français"],"partner_ref":{"id":7}}`

	var p Product
	require.NoError(t, json.Unmarshal([]byte(in), &p))
	assert.True(t, p.Active, "missing active defaults to true")
	assert.Equal(t, "Museum – Culture & Art 文化", p.ProductName)
	assert.JSONEq(t, `{"id":7}`, string(p.Extra["partner_ref"]))
	assert.JSONEq(t, `true`, string(p.Pricing[0].Extra["seasonal"]))

	out, err := json.Marshal(p)
	require.NoError(t, err)

	var again Product
	require.NoError(t, json.Unmarshal(out, &again))
	assert.Equal(t, p.ProductName, again.ProductName)
	assert.JSONEq(t, string(p.Extra["partner_ref"]), string(again.Extra["partner_ref"]))
}

func TestProductJSON_ExtraCannotShadowKnownField(t *testing.T) {
	p := Product{ProductID: "P3", Extra: map[string]json.RawMessage{"product_id": json.RawMessage(`"other"`)}}

	b, err := json.Marshal(p)
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(b, &m))
	assert.Equal(t, "P3", m["product_id"])
}
