// Package schema defines catalog records and the rules that admit them into the store.
//
// A raw record is an untyped JSON object (Record). Validation turns a batch of
// raw records into normalized Products or fails with a *ValidationError that
// lists every offending record and field.
//
// # Policies
//
// PolicyStandard is the store's canonical schema: product_id and product_name
// are required, pricing and inclusions must be present, everything else is
// optional. PolicyStrict layers a CUE schema on top that also requires the
// descriptive fields, a numeric duration and at least one fully dated pricing
// tier.
//
// # Passthrough
//
// Fields the schema does not recognize are copied onto the Product verbatim
// (Product.Extra, PricingTier.Extra) and written back unchanged. They are never
// type-checked.
package schema
