package catalog

import "github.com/roach88/tourcatalog/internal/schema"

// Merge upserts incoming into existing by ProductID and returns the new
// document. Existing ids keep their position; new ids are appended in the
// order they first appear. A later record for the same id replaces an earlier
// one, both within incoming and against existing. Neither input is modified.
func Merge(existing, incoming []schema.Product) []schema.Product {
	merged := make([]schema.Product, 0, len(existing)+len(incoming))
	pos := make(map[string]int, len(existing)+len(incoming))

	put := func(p schema.Product) {
		if i, ok := pos[p.ProductID]; ok {
			merged[i] = p
			return
		}
		pos[p.ProductID] = len(merged)
		merged = append(merged, p)
	}

	for _, p := range existing {
		put(p)
	}
	for _, p := range incoming {
		put(p)
	}
	return merged
}

// IDs returns the product ids of products in order.
func IDs(products []schema.Product) []string {
	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ProductID
	}
	return ids
}

// Conflicts returns the distinct ids of incoming that already appear in
// existing, in incoming order.
func Conflicts(existing, incoming []schema.Product) []string {
	have := make(map[string]bool, len(existing))
	for _, p := range existing {
		have[p.ProductID] = true
	}
	var ids []string
	for _, p := range incoming {
		if have[p.ProductID] {
			ids = append(ids, p.ProductID)
			delete(have, p.ProductID)
		}
	}
	return ids
}
