package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseDirection(t *testing.T) {
	cases := []struct {
		in      string
		want    Direction
		wantErr bool
	}{
		{"up", DirectionUp, false},
		{"down", DirectionDown, false},
		{"UP", DirectionUp, false},
		{"  Down  ", DirectionDown, false},
		{"sideways", "", true},
		{"", "", true},
	}

	for _, tc := range cases {
		got, err := ParseDirection(tc.in)
		if tc.wantErr {
			assert.ErrorIs(t, err, ErrInvalidDirection, "input %q", tc.in)
			continue
		}
		assert.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestMoveDirection(t *testing.T) {
	assert.Equal(t, DirectionUp, MoveDirection(100, 100.01))
	assert.Equal(t, DirectionDown, MoveDirection(100, 99.99))
	// An unchanged price resolves Down.
	assert.Equal(t, DirectionDown, MoveDirection(100, 100))
}

func TestRoundExpired(t *testing.T) {
	end := time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC)
	r := Round{EndTime: end}

	assert.False(t, r.Expired(end.Add(-time.Second)))
	// Expiry is inclusive of the end instant.
	assert.True(t, r.Expired(end))
	assert.True(t, r.Expired(end.Add(time.Second)))
}
