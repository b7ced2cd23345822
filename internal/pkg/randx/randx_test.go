package randx

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRoomIDIsValid(t *testing.T) {
	for i := 0; i < 100; i++ {
		id := RoomID()
		require.True(t, IsValidRoomID(id), "generated room id %q should validate", id)
	}
}

func TestRoomIDsAreUnique(t *testing.T) {
	seen := make(map[string]struct{})
	for i := 0; i < 1000; i++ {
		id := RoomID()
		_, dup := seen[id]
		require.False(t, dup, "duplicate room id %q", id)
		seen[id] = struct{}{}
	}
}

func TestIsValidRoomID(t *testing.T) {
	valid := RoomID()

	cases := []struct {
		name string
		id   string
		want bool
	}{
		{"generated", valid, true},
		{"uppercase hex accepted", strings.ToUpper(valid), true},
		{"empty", "", false},
		{"too short", "123e4567-e89b-42d3-a456", false},
		{"wrong version nibble", "123e4567-e89b-12d3-a456-426614174000", false},
		{"wrong variant nibble", "123e4567-e89b-42d3-c456-426614174000", false},
		{"non-hex characters", "123e4567-e89b-42d3-a456-42661417400z", false},
		{"missing dashes", "123e4567e89b42d3a456426614174000", false},
		{"trailing garbage", valid + "x", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, IsValidRoomID(tc.id))
		})
	}
}

func TestConnectionIDsAreUnique(t *testing.T) {
	a := ConnectionID()
	b := ConnectionID()
	require.NotEmpty(t, a)
	require.NotEqual(t, a, b)
}
