package catalog

import "context"

type sourceKey struct{}

// WithSource tags ctx with the origin of a batch, such as the ingested file
// name. The source is recorded in the ingest journal.
func WithSource(ctx context.Context, source string) context.Context {
	return context.WithValue(ctx, sourceKey{}, source)
}

// SourceFrom returns the source set by WithSource, or "".
func SourceFrom(ctx context.Context) string {
	s, _ := ctx.Value(sourceKey{}).(string)
	return s
}
