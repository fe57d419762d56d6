package signer

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// CanonicalJSON serializes v deterministically: object keys sorted
// lexicographically, array order preserved, null-valued fields omitted.
// Signing and verification must both go through this function so the
// signed bytes can be reproduced exactly.
func CanonicalJSON(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}

	// Round-trip through an untyped value: encoding/json writes map keys
	// in sorted order, which gives us the canonical ordering for free.
	var generic any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("decode payload: %w", err)
	}
	generic = stripNulls(generic)

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, fmt.Errorf("encode canonical payload: %w", err)
	}
	// Encoder appends a trailing newline; the signed bytes must not carry it.
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

func stripNulls(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			if val == nil {
				delete(t, k)
				continue
			}
			t[k] = stripNulls(val)
		}
		return t
	case []any:
		for i, val := range t {
			t[i] = stripNulls(val)
		}
		return t
	default:
		return v
	}
}

// PayloadHash returns the hex-encoded SHA-256 digest of a canonical payload.
func PayloadHash(payload []byte) string {
	sum := sha256.Sum256(payload)
	return hex.EncodeToString(sum[:])
}
