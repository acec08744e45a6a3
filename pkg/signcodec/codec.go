// Package signcodec implements the canonical encoding used as signed
// content for off-chain protocol messages, and the detached-signature
// verification against an account address.
package signcodec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Canonicalize returns the deterministic textual encoding of v. The value
// is first collapsed to its JSON tree (so struct tags and map construction
// order stop mattering), then re-serialized with object keys sorted
// lexicographically and no superfluous whitespace. Keys omitted from the
// tree stay omitted; explicit nulls are preserved as null.
//
// Two logically equal messages always canonicalize to the same string.
func Canonicalize(v any) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to marshal message: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var tree any
	if err := dec.Decode(&tree); err != nil {
		return "", fmt.Errorf("failed to decode message tree: %w", err)
	}

	var b strings.Builder
	if err := writeCanonical(&b, tree); err != nil {
		return "", err
	}
	return b.String(), nil
}

func writeCanonical(b *strings.Builder, v any) error {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		b.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				b.WriteByte(',')
			}
			kb, err := json.Marshal(k)
			if err != nil {
				return fmt.Errorf("failed to marshal key %q: %w", k, err)
			}
			b.Write(kb)
			b.WriteByte(':')
			if err := writeCanonical(b, t[k]); err != nil {
				return err
			}
		}
		b.WriteByte('}')
		return nil
	case []any:
		b.WriteByte('[')
		for i, e := range t {
			if i > 0 {
				b.WriteByte(',')
			}
			if err := writeCanonical(b, e); err != nil {
				return err
			}
		}
		b.WriteByte(']')
		return nil
	case json.Number:
		b.WriteString(t.String())
		return nil
	default:
		enc, err := json.Marshal(t)
		if err != nil {
			return fmt.Errorf("failed to marshal value: %w", err)
		}
		b.Write(enc)
		return nil
	}
}
