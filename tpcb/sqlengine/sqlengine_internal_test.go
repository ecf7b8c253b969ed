package sqlengine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func Test_toMilliseconds_RoundsToMicroseconds(t *testing.T) {
	testCases := []struct {
		name     string
		duration time.Duration
		expected float64
	}{
		{name: "rounds down", duration: 1234321 * time.Nanosecond, expected: 1.234},
		{name: "rounds up", duration: 1234567 * time.Nanosecond, expected: 1.235},
		{name: "whole milliseconds", duration: 250 * time.Millisecond, expected: 250},
		{name: "zero", duration: 0, expected: 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			// act
			ms := toMilliseconds(tc.duration)

			// assert
			assert.InDelta(t, tc.expected, ms, 1e-9)
		})
	}
}
