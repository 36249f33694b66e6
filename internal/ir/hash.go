package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content-addressed identity.
// Version suffix enables future algorithm migration.
const (
	DomainSchema = "flagsweep/schema/v1"
)

// hashWithDomain computes SHA-256 hash with domain separation.
// Format: SHA256(domain + 0x00 + data)
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// SchemaHash computes a content hash of a schema declaration.
//
// Flag order is part of the hash: two schemas that declare the same flags in
// a different order hash differently, because declaration order is the order
// snapshots are reported in.
func SchemaHash(spec SchemaSpec) (string, error) {
	canonical, err := spec.CanonicalJSON()
	if err != nil {
		return "", fmt.Errorf("SchemaHash: failed to marshal: %w", err)
	}
	return hashWithDomain(DomainSchema, canonical), nil
}

// CanonicalJSON returns the declaration in the canonical form that
// SchemaHash hashes.
func (s SchemaSpec) CanonicalJSON() ([]byte, error) {
	return MarshalCanonical(s.canonicalMap())
}

func (s SchemaSpec) canonicalMap() map[string]any {
	flags := make([]any, len(s.Flags))
	for i, f := range s.Flags {
		entry := map[string]any{
			"name":      f.Name,
			"kind":      string(f.Kind),
			"propagate": stringsOrEmpty(f.Propagate),
			"reset":     stringsOrEmpty(f.Reset),
		}
		if f.Deprecation != nil {
			entry["deprecation"] = map[string]any{
				"message": f.Deprecation.Message,
				"since":   f.Deprecation.Since,
				"until":   f.Deprecation.Until,
			}
		}
		flags[i] = entry
	}
	return map[string]any{
		"name":     s.Name,
		"priority": s.Priority.String(),
		"flags":    flags,
	}
}

func stringsOrEmpty(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
