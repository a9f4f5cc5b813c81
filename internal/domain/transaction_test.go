package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to TxStatus
		want     bool
	}{
		{StatusPending, StatusInitialized, true},
		{StatusPending, StatusVerified, true},
		{StatusInitialized, StatusVerified, true},
		{StatusInitialized, StatusFailed, true},
		{StatusInitialized, StatusAbandoned, true},
		{StatusInitialized, StatusInitialized, false},
		{StatusInitialized, StatusPending, false},
		{StatusVerified, StatusFailed, false},
		{StatusFailed, StatusVerified, false},
		{StatusVerified, StatusVerified, false},
		{StatusAbandoned, StatusVerified, true},
		{StatusAbandoned, StatusFailed, true},
		{StatusAbandoned, StatusInitialized, false},
		{StatusVerified, StatusAbandoned, false},
		{StatusInitialized, TxStatus("REFUNDED"), false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, CanTransition(c.from, c.to), "%s -> %s", c.from, c.to)
	}
}

func TestIsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.False(t, StatusInitialized.IsTerminal())
	assert.True(t, StatusVerified.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.False(t, StatusAbandoned.IsTerminal())
}

func TestAbsorbs(t *testing.T) {
	assert.True(t, StatusVerified.Absorbs(StatusFailed))
	assert.True(t, StatusFailed.Absorbs(StatusFailed))
	assert.True(t, StatusAbandoned.Absorbs(StatusAbandoned))
	assert.False(t, StatusAbandoned.Absorbs(StatusVerified))
	assert.False(t, StatusInitialized.Absorbs(StatusInitialized))
}
