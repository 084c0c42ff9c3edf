package remap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewFieldMapping(t *testing.T) {
	tests := []struct {
		name    string
		entries map[string]string
		wantErr bool
	}{
		{name: "nil entries", entries: nil},
		{name: "valid entries", entries: map[string]string{"id_str": "id"}},
		{name: "empty source", entries: map[string]string{"": "id"}, wantErr: true},
		{name: "empty target", entries: map[string]string{"id_str": ""}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewFieldMapping(tt.entries)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidMapping)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.entries), m.Len())
		})
	}
}

func TestFieldMapping_IsACopy(t *testing.T) {
	entries := map[string]string{"id_str": "id"}
	m := MustFieldMapping(entries)
	entries["id_str"] = "changed"
	entries["extra"] = "x"

	to, ok := m.Lookup("id_str")
	require.True(t, ok)
	assert.Equal(t, "id", to)
	assert.Equal(t, 1, m.Len())

	exported := m.Entries()
	exported["id_str"] = "mutated"
	to, _ = m.Lookup("id_str")
	assert.Equal(t, "id", to)
}

func TestFieldMapping_ZeroValue(t *testing.T) {
	var m FieldMapping
	_, ok := m.Lookup("anything")
	assert.False(t, ok)
	assert.Equal(t, 0, m.Len())
	assert.Empty(t, m.Collisions())
}

func TestFieldMapping_Collisions(t *testing.T) {
	m := MustFieldMapping(map[string]string{
		"user_id":  "id",
		"uid":      "id",
		"name_str": "name",
		"nm":       "name",
		"city_str": "city",
	})

	assert.Equal(t, []Collision{
		{Target: "id", Sources: []string{"uid", "user_id"}},
		{Target: "name", Sources: []string{"name_str", "nm"}},
	}, m.Collisions())
}

func TestMustFieldMapping_Panics(t *testing.T) {
	assert.Panics(t, func() {
		MustFieldMapping(map[string]string{"": "x"})
	})
}
