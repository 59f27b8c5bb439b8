// Package canonical produces a deterministic byte form of catalog data and
// content fingerprints derived from it.
//
// The canonical form follows RFC 8785 key ordering (UTF-16 code units), does
// not HTML-escape, and NFC-normalizes every string, so two documents that
// differ only in key order, array position of products, or Unicode
// composition share a fingerprint.
//
// Fingerprints are SHA-256 with domain separation:
//
//	SHA256(domain + 0x00 + canonical bytes)
package canonical
