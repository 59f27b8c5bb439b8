package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validRecord(id string) Record {
	return Record{
		"product_id":   id,
		"product_name": "Burj Khalifa At The Top",
		"pricing": []any{
			map[string]any{"tier_name": "Adult", "price_aed": 169.0},
		},
		"inclusions": []any{"Entry ticket"},
	}
}

func standard(t *testing.T) *Validator {
	t.Helper()
	v, err := NewValidator(PolicyStandard)
	require.NoError(t, err)
	return v
}

func TestValidate_NormalizesDefaults(t *testing.T) {
	products, err := standard(t).Validate([]Record{validRecord("TEST_001")})
	require.NoError(t, err)
	require.Len(t, products, 1)

	p := products[0]
	assert.Equal(t, "TEST_001", p.ProductID)
	assert.True(t, p.Active, "active defaults to true")
	assert.Equal(t, DefaultCurrency, p.Pricing[0].Currency)
	assert.Equal(t, []string{}, p.Exclusions)
	assert.Equal(t, []string{}, p.SourceDocument)
	assert.Nil(t, p.SupplierName)
	assert.Nil(t, p.Category)
	assert.Nil(t, p.DescriptionShort)
}

func TestValidate_TrimsRequiredStrings(t *testing.T) {
	rec := validRecord("  TEST_TRIM  ")
	rec["product_name"] = "\tDesert Safari "
	rec["supplier_name"] = " Arabian Adventures "

	products, err := standard(t).Validate([]Record{rec})
	require.NoError(t, err)
	assert.Equal(t, "TEST_TRIM", products[0].ProductID)
	assert.Equal(t, "Desert Safari", products[0].ProductName)
	require.NotNil(t, products[0].SupplierName)
	assert.Equal(t, "Arabian Adventures", *products[0].SupplierName)
}

func TestValidate_RejectsMissingOrEmptyIdentifier(t *testing.T) {
	tests := []struct {
		name string
		id   any
		code string
	}{
		{"missing", nil, ErrCodeRequired},
		{"blank", "   ", ErrCodeEmpty},
		{"number", 42.0, ErrCodeType},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := validRecord("x")
			if tt.id == nil {
				delete(rec, "product_id")
			} else {
				rec["product_id"] = tt.id
			}
			_, err := standard(t).Validate([]Record{rec})
			require.Error(t, err)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			require.NotEmpty(t, ve.Issues)
			assert.Equal(t, "product_id", ve.Issues[0].Field)
			assert.Equal(t, tt.code, ve.Issues[0].Code)
		})
	}
}

func TestValidate_RejectsNegativePrice(t *testing.T) {
	rec := validRecord("TEST_NEG")
	rec["pricing"] = []any{map[string]any{"tier_name": "Adult", "price_aed": -10.0}}

	_, err := standard(t).Validate([]Record{rec})
	require.Error(t, err)
	assert.True(t, IsValidationError(err))

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Issues, 1)
	assert.Equal(t, "TEST_NEG", ve.Issues[0].ProductID)
	assert.Equal(t, "pricing[0].price_aed", ve.Issues[0].Field)
	assert.Equal(t, ErrCodeNegative, ve.Issues[0].Code)
	assert.Contains(t, err.Error(), "TEST_NEG")
	assert.Contains(t, err.Error(), "price_aed")
}

func TestValidate_ZeroPriceAllowed(t *testing.T) {
	rec := validRecord("TEST_FREE")
	rec["pricing"] = []any{map[string]any{"tier_name": "Infant", "price_aed": 0}}

	products, err := standard(t).Validate([]Record{rec})
	require.NoError(t, err)
	assert.Equal(t, 0.0, products[0].Pricing[0].PriceAED)
}

func TestValidate_RoundsPriceToCents(t *testing.T) {
	rec := validRecord("TEST_ROUND")
	rec["pricing"] = []any{map[string]any{"tier_name": "Adult", "price_aed": json.Number("99.999")}}

	products, err := standard(t).Validate([]Record{rec})
	require.NoError(t, err)
	assert.Equal(t, 100.0, products[0].Pricing[0].PriceAED)
}

func TestValidate_RejectsPriceTooLargeToStore(t *testing.T) {
	rec := validRecord("TEST_HUGE")
	rec["pricing"] = []any{map[string]any{"tier_name": "Adult", "price_aed": json.Number("1e307")}}

	_, err := standard(t).Validate([]Record{rec})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Issues, 1)
	assert.Equal(t, "pricing[0].price_aed", ve.Issues[0].Field)
	assert.Equal(t, ErrCodeRange, ve.Issues[0].Code)
}

func TestValidate_PriceMustBeNumeric(t *testing.T) {
	rec := validRecord("TEST_STR_PRICE")
	rec["pricing"] = []any{map[string]any{"tier_name": "Adult", "price_aed": "100"}}

	_, err := standard(t).Validate([]Record{rec})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, ErrCodeType, ve.Issues[0].Code)
}

func TestValidate_Dates(t *testing.T) {
	rec := validRecord("TEST_DATES")
	rec["pricing"] = []any{map[string]any{
		"tier_name":      "Adult",
		"price_aed":      120,
		"validity_start": "2025-01-01",
		"validity_end":   "2025-13-01",
	}}

	_, err := standard(t).Validate([]Record{rec})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	require.Len(t, ve.Issues, 1)
	assert.Equal(t, "pricing[0].validity_end", ve.Issues[0].Field)
	assert.Equal(t, ErrCodeDate, ve.Issues[0].Code)
}

func TestValidate_StartAfterEndIsNotChecked(t *testing.T) {
	rec := validRecord("TEST_REVERSED")
	rec["pricing"] = []any{map[string]any{
		"tier_name":      "Adult",
		"price_aed":      120,
		"validity_start": "2025-12-31",
		"validity_end":   "2025-01-01",
	}}

	_, err := standard(t).Validate([]Record{rec})
	assert.NoError(t, err)
}

func TestValidate_RequiresPricingAndInclusionsKeys(t *testing.T) {
	for _, field := range []string{"pricing", "inclusions"} {
		t.Run(field, func(t *testing.T) {
			rec := validRecord("TEST_REQ")
			delete(rec, field)

			_, err := standard(t).Validate([]Record{rec})
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, field, ve.Issues[0].Field)
			assert.Equal(t, ErrCodeRequired, ve.Issues[0].Code)
		})
	}
}

func TestValidate_EmptyPricingAcceptedByStandardPolicy(t *testing.T) {
	rec := validRecord("TEST_NO_PRICE")
	rec["pricing"] = []any{}

	products, err := standard(t).Validate([]Record{rec})
	require.NoError(t, err)
	assert.Empty(t, products[0].Pricing)
}

func TestValidate_NullListsNormalizeToEmpty(t *testing.T) {
	rec := validRecord("TEST_NULLS")
	rec["inclusions"] = nil
	rec["exclusions"] = nil
	rec["source_document"] = nil

	products, err := standard(t).Validate([]Record{rec})
	require.NoError(t, err)
	assert.Equal(t, []string{}, products[0].Inclusions)
	assert.Equal(t, []string{}, products[0].Exclusions)
	assert.Equal(t, []string{}, products[0].SourceDocument)
}

func TestValidate_ListItemsMustBeStrings(t *testing.T) {
	rec := validRecord("TEST_LIST")
	rec["exclusions"] = []any{"Hotel pickup", 7.0}

	_, err := standard(t).Validate([]Record{rec})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "exclusions[1]", ve.Issues[0].Field)
}

func TestValidate_PreservesUnknownFields(t *testing.T) {
	rec := validRecord("TEST_EXTRA")
	rec["internal_rating"] = 4.5
	rec["tags"] = []any{"family", "night"}
	rec["pricing"] = []any{map[string]any{"tier_name": "Adult", "price_aed": 80, "min_pax": 2}}

	products, err := standard(t).Validate([]Record{rec})
	require.NoError(t, err)

	p := products[0]
	assert.JSONEq(t, `4.5`, string(p.Extra["internal_rating"]))
	assert.JSONEq(t, `["family","night"]`, string(p.Extra["tags"]))
	assert.JSONEq(t, `2`, string(p.Pricing[0].Extra["min_pax"]))
}

func TestValidate_AggregatesIssuesAcrossBatch(t *testing.T) {
	bad1 := validRecord("BAD_1")
	bad1["pricing"] = []any{map[string]any{"tier_name": "Adult", "price_aed": -1}}
	bad2 := validRecord("BAD_2")
	delete(bad2, "product_name")

	_, err := standard(t).Validate([]Record{validRecord("OK"), bad1, bad2})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"BAD_1", "BAD_2"}, ve.ProductIDs())
	assert.Equal(t, 1, ve.Issues[0].Index)
	assert.Equal(t, 2, ve.Issues[1].Index)
}

func TestValidate_NilRecord(t *testing.T) {
	_, err := standard(t).Validate([]Record{nil})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, ErrCodeNotObject, ve.Issues[0].Code)
	assert.Equal(t, []string{"index_0"}, ve.ProductIDs())
}

func TestValidate_DoesNotMutateInput(t *testing.T) {
	rec := validRecord("  TEST_PURE ")
	_, err := standard(t).Validate([]Record{rec})
	require.NoError(t, err)
	assert.Equal(t, "  TEST_PURE ", rec["product_id"])
}

func TestValidate_EmptyBatch(t *testing.T) {
	products, err := standard(t).Validate(nil)
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("STRICT")
	require.NoError(t, err)
	assert.Equal(t, PolicyStrict, p)

	p, err = ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyStandard, p)

	_, err = ParsePolicy("lenient")
	assert.Error(t, err)
}
