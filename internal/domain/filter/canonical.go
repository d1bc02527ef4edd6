package filter

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/zeebo/blake3"
)

// fingerprintKey separates filter fingerprints from any other BLAKE3 use.
// Changing it orphans every filtered channel already in the store.
var fingerprintKey = [32]byte{
	'n', 'x', 'x', '.', 's', 'u', 'b', 's', 'c', 'r', 'i', 'p', 't', 'i', 'o', 'n', '.',
	'f', 'i', 'l', 't', 'e', 'r', 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// Canonical serializes expr with object keys sorted at every depth.
// Array order is kept. Numbers are normalized through float64, so 1 and 1.0 agree.
func Canonical(expr map[string]any) ([]byte, error) {
	// Round-trip through encoding/json to normalize Go numeric kinds and nested
	// map types; the encoder writes map keys in sorted order.
	raw, err := json.Marshal(expr)
	if err != nil {
		return nil, fmt.Errorf("marshal filter: %w", err)
	}
	var normalized any
	if err := json.Unmarshal(raw, &normalized); err != nil {
		return nil, fmt.Errorf("normalize filter: %w", err)
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(normalized); err != nil {
		return nil, fmt.Errorf("encode filter: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Fingerprint is the content address of a filter: a keyed BLAKE3 hash of its canonical form.
func Fingerprint(expr map[string]any) (string, error) {
	canon, err := Canonical(expr)
	if err != nil {
		return "", err
	}
	return FingerprintCanonical(canon), nil
}

// FingerprintCanonical hashes an already canonical filter body.
func FingerprintCanonical(canon []byte) string {
	h, err := blake3.NewKeyed(fingerprintKey[:])
	if err != nil {
		// NewKeyed only fails on a key that is not 32 bytes.
		panic(err)
	}
	_, _ = h.Write(canon)
	return hex.EncodeToString(h.Sum(nil))
}

// Parse decodes a filter body previously produced by Canonical.
func Parse(body []byte) (map[string]any, error) {
	var expr map[string]any
	if err := json.Unmarshal(body, &expr); err != nil {
		return nil, fmt.Errorf("decode filter: %w", err)
	}
	return expr, nil
}

// Canonical returns the canonical serialization of the query's expression.
func (q *Query) Canonical() ([]byte, error) { return Canonical(q.expr) }

// Fingerprint returns the content address of the query's expression.
func (q *Query) Fingerprint() (string, error) { return Fingerprint(q.expr) }
