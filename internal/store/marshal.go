package store

import (
	"encoding/json"
	"fmt"

	"github.com/roach88/flagsweep/internal/ir"
)

// marshalFlags serializes a flag snapshot as a canonical JSON array.
// A nil snapshot is stored as [].
func marshalFlags(flags []string) (string, error) {
	if flags == nil {
		flags = []string{}
	}
	data, err := ir.MarshalCanonical(flags)
	if err != nil {
		return "", fmt.Errorf("marshal flags: %w", err)
	}
	return string(data), nil
}

func unmarshalFlags(data string) ([]string, error) {
	flags := []string{}
	if err := json.Unmarshal([]byte(data), &flags); err != nil {
		return nil, fmt.Errorf("unmarshal flags: %w", err)
	}
	return flags, nil
}

func marshalSchema(spec ir.SchemaSpec) (string, error) {
	data, err := spec.CanonicalJSON()
	if err != nil {
		return "", fmt.Errorf("marshal schema: %w", err)
	}
	return string(data), nil
}
