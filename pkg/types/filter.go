package types

import (
	"fmt"
	"strconv"
)

// Filter narrows a search or delete to a subset of indexed records.
// Only the enumerated fields are recognized; unknown fields in incoming
// requests are rejected at the transport layer, never silently dropped.
type Filter struct {
	// PathPrefix restricts matches to repo paths with this prefix.
	PathPrefix string `json:"path_prefix,omitempty"`

	// CommitFrom and CommitTo bound the commit identifier range
	// (inclusive). The store ranges over a numeric representation of
	// the commit, so bounds must be base-10 integers (counters or unix
	// timestamps).
	CommitFrom string `json:"commit_from,omitempty"`
	CommitTo   string `json:"commit_to,omitempty"`
}

// FilterFields lists the recognized filter field names in canonical order.
var FilterFields = []string{"path_prefix", "commit_from", "commit_to"}

// IsZero reports whether the filter places no constraints at all.
func (f Filter) IsZero() bool {
	return f.PathPrefix == "" && f.CommitFrom == "" && f.CommitTo == ""
}

// FilterFromArgs builds a Filter from a decoded JSON object, rejecting
// unknown keys and non-string values.
func FilterFromArgs(raw map[string]any) (Filter, error) {
	var f Filter
	for key, val := range raw {
		s, ok := val.(string)
		if !ok {
			return Filter{}, fmt.Errorf("filter field %q must be a string", key)
		}
		switch key {
		case "path_prefix":
			f.PathPrefix = s
		case "commit_from":
			f.CommitFrom = s
		case "commit_to":
			f.CommitTo = s
		default:
			return Filter{}, fmt.Errorf("unknown filter field %q (allowed: %v)", key, FilterFields)
		}
	}
	if err := f.Validate(); err != nil {
		return Filter{}, err
	}
	return f, nil
}

// Validate rejects commit bounds that cannot back a numeric range.
func (f Filter) Validate() error {
	for _, b := range []struct{ name, value string }{
		{"commit_from", f.CommitFrom},
		{"commit_to", f.CommitTo},
	} {
		if b.value == "" {
			continue
		}
		if _, err := strconv.ParseInt(b.value, 10, 64); err != nil {
			return fmt.Errorf("filter field %q must be a base-10 integer, got %q", b.name, b.value)
		}
	}
	return nil
}
