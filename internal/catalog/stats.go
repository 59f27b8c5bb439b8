package catalog

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"time"

	"github.com/roach88/tourcatalog/internal/canonical"
)

// Labels used when a product leaves a grouping field unset.
const (
	Uncategorized = "Uncategorized"
	Unknown       = "Unknown"
)

// Count is one bucket of a grouping.
type Count struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Stats summarizes the document and its backups.
type Stats struct {
	Path         string    `json:"path"`
	Exists       bool      `json:"exists"`
	Total        int       `json:"total"`
	Active       int       `json:"active"`
	Inactive     int       `json:"inactive"`
	SizeBytes    int64     `json:"size_bytes"`
	LastModified time.Time `json:"last_modified,omitzero"`
	Categories   []Count   `json:"categories"`
	Destinations []Count   `json:"destinations"`
	Suppliers    []Count   `json:"suppliers"`
	Backups      int       `json:"backups"`
	Fingerprint  string    `json:"fingerprint,omitempty"`
}

// Stats loads the document and summarizes it. A missing document is reported
// with Exists false rather than as an error.
func (s *Store) Stats() (*Stats, error) {
	st := &Stats{
		Path:         s.path,
		Categories:   []Count{},
		Destinations: []Count{},
		Suppliers:    []Count{},
	}

	info, err := os.Stat(s.path)
	switch {
	case err == nil:
		st.Exists = true
		st.SizeBytes = info.Size()
		st.LastModified = info.ModTime()
	case errors.Is(err, fs.ErrNotExist):
	default:
		return nil, fmt.Errorf("stat catalog: %w", err)
	}

	snaps, err := s.ListBackups()
	if err != nil {
		return nil, err
	}
	st.Backups = len(snaps)

	if !st.Exists {
		return st, nil
	}

	products, err := s.Load()
	if err != nil {
		return nil, err
	}
	st.Total = len(products)

	categories := make(map[string]int)
	destinations := make(map[string]int)
	suppliers := make(map[string]int)
	for _, p := range products {
		if p.Active {
			st.Active++
		}
		categories[valueOr(p.Category, Uncategorized)]++
		destinations[valueOr(p.DestinationCity, Unknown)]++
		suppliers[valueOr(p.SupplierName, Unknown)]++
	}
	st.Inactive = st.Total - st.Active
	st.Categories = sortCounts(categories)
	st.Destinations = sortCounts(destinations)
	st.Suppliers = sortCounts(suppliers)

	st.Fingerprint, err = canonical.DocumentFingerprint(products)
	if err != nil {
		return nil, fmt.Errorf("fingerprint: %w", err)
	}
	return st, nil
}

// Fingerprint returns the order-independent digest of the current document.
func (s *Store) Fingerprint() (string, error) {
	products, err := s.Load()
	if err != nil {
		return "", err
	}
	return canonical.DocumentFingerprint(products)
}

// Top returns at most n buckets of counts.
func Top(counts []Count, n int) []Count {
	if n < 0 || len(counts) <= n {
		return counts
	}
	return counts[:n]
}

// sortCounts orders buckets by count descending, then name.
func sortCounts(m map[string]int) []Count {
	out := make([]Count, 0, len(m))
	for name, n := range m {
		out = append(out, Count{Name: name, Count: n})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Name < out[j].Name
	})
	return out
}

func valueOr(s *string, fallback string) string {
	if s == nil || *s == "" {
		return fallback
	}
	return *s
}
