package canonical

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/roach88/tourcatalog/internal/schema"
)

// DomainDocument separates catalog document fingerprints from any other
// hash that may be computed over the same bytes. The version suffix allows
// the canonical form to change without colliding with old fingerprints.
const DomainDocument = "tourcatalog/document/v1"

// Hash computes SHA256(domain + 0x00 + data) as lowercase hex.
func Hash(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// DocumentFingerprint hashes the catalog as a mapping from product_id to
// product. Array order does not affect the result; with duplicate ids the
// later product wins, matching upsert semantics.
func DocumentFingerprint(products []schema.Product) (string, error) {
	doc := make(map[string]any, len(products))
	for _, p := range products {
		v, err := toPlain(p)
		if err != nil {
			return "", fmt.Errorf("fingerprint %s: %w", p.ProductID, err)
		}
		doc[p.ProductID] = v
	}
	b, err := Marshal(doc)
	if err != nil {
		return "", fmt.Errorf("fingerprint: %w", err)
	}
	return Hash(DomainDocument, b), nil
}

// toPlain round-trips v through encoding/json so Marshal sees only plain
// JSON shapes. Numbers are decoded as json.Number, so integer values in extra
// fields are hashed from their exact text.
func toPlain(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	var out any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	return out, nil
}
