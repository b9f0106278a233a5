package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveStatus(t *testing.T) {
	tests := []struct {
		name      string
		amount    int64
		released  int64
		disputed  bool
		refunded  bool
		want      EscrowStatus
	}{
		{"nothing released", 1000, 0, false, false, StatusPending},
		{"partial release", 1000, 400, false, false, StatusPartiallyReleased},
		{"full release", 1000, 1000, false, false, StatusFullyReleased},
		{"refunded pending", 1000, 0, false, true, StatusRefunded},
		{"refunded after partial", 1000, 400, false, true, StatusRefunded},
		{"disputed pending", 1000, 0, true, false, StatusDisputed},
		{"disputed after partial", 1000, 400, true, false, StatusDisputed},
		{"full release wins over dispute flag", 1000, 1000, true, false, StatusFullyReleased},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveStatus(tt.amount, tt.released, tt.disputed, tt.refunded))
		})
	}
}

func TestStatusTerminal(t *testing.T) {
	assert.True(t, StatusFullyReleased.Terminal())
	assert.True(t, StatusRefunded.Terminal())
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusPartiallyReleased.Terminal())
	assert.False(t, StatusDisputed.Terminal())
}

func TestRecompute(t *testing.T) {
	e := &Escrow{Amount: 1000, ReleasedAmount: 400}
	e.Recompute()
	assert.Equal(t, StatusPartiallyReleased, e.Status)

	e.ReleasedAmount = 1000
	e.Recompute()
	assert.Equal(t, StatusFullyReleased, e.Status)
}

func TestParseOutcome(t *testing.T) {
	out, ok := ParseOutcome("release")
	assert.True(t, ok)
	assert.Equal(t, OutcomeRelease, out)

	out, ok = ParseOutcome("refund")
	assert.True(t, ok)
	assert.Equal(t, OutcomeRefund, out)

	_, ok = ParseOutcome("split")
	assert.False(t, ok)
}
