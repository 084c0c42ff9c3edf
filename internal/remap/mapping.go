// Package remap renames object keys throughout JSON value trees.
package remap

import (
	"errors"
	"fmt"
	"sort"
)

// ErrInvalidMapping indicates a mapping entry with an empty field name.
var ErrInvalidMapping = errors.New("invalid field mapping")

// FieldMapping is an immutable table translating origin field names to
// destination field names. The zero value maps nothing.
type FieldMapping struct {
	table map[string]string
}

// NewFieldMapping builds a FieldMapping from entries. The map is copied.
func NewFieldMapping(entries map[string]string) (FieldMapping, error) {
	table := make(map[string]string, len(entries))
	for from, to := range entries {
		if from == "" {
			return FieldMapping{}, fmt.Errorf("%w: empty source field (target %q)", ErrInvalidMapping, to)
		}
		if to == "" {
			return FieldMapping{}, fmt.Errorf("%w: empty target field for %q", ErrInvalidMapping, from)
		}
		table[from] = to
	}
	return FieldMapping{table: table}, nil
}

// MustFieldMapping is like NewFieldMapping but panics on error.
func MustFieldMapping(entries map[string]string) FieldMapping {
	m, err := NewFieldMapping(entries)
	if err != nil {
		panic(err)
	}
	return m
}

// Lookup returns the destination name for key.
func (m FieldMapping) Lookup(key string) (string, bool) {
	to, ok := m.table[key]
	return to, ok
}

// Len returns the number of entries.
func (m FieldMapping) Len() int {
	return len(m.table)
}

// Entries returns a copy of the mapping table.
func (m FieldMapping) Entries() map[string]string {
	out := make(map[string]string, len(m.table))
	for k, v := range m.table {
		out[k] = v
	}
	return out
}

// Collision describes a destination name targeted by several sources.
type Collision struct {
	Target  string
	Sources []string
}

// Collisions returns destination names targeted by more than one source,
// sorted by target. An object holding two such sources keeps only the
// value of the last one it lists.
func (m FieldMapping) Collisions() []Collision {
	byTarget := make(map[string][]string)
	for from, to := range m.table {
		byTarget[to] = append(byTarget[to], from)
	}

	var out []Collision
	for to, sources := range byTarget {
		if len(sources) < 2 {
			continue
		}
		sort.Strings(sources)
		out = append(out, Collision{Target: to, Sources: sources})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Target < out[j].Target })
	return out
}
