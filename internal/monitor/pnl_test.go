package monitor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnrealized(t *testing.T) {
	// 100 units bought at $1.00 each, now $1.50, with $2 of fees:
	// (1.5-1.0)*100 - 2 = 48, and 48/100 = 48%.
	pnl, percent := Unrealized(1.0, 100, 1.5, 2)
	assert.InDelta(t, 48.0, pnl, 1e-9)
	assert.InDelta(t, 48.0, percent, 1e-9)
}

func TestUnrealized_Loss(t *testing.T) {
	pnl, percent := Unrealized(1.0, 100, 0.5, 2)
	assert.InDelta(t, -52.0, pnl, 1e-9)
	assert.InDelta(t, -52.0, percent, 1e-9)
}

func TestUnrealized_ZeroBasis(t *testing.T) {
	pnl, percent := Unrealized(0, 100, 1.5, 0)
	assert.InDelta(t, 150.0, pnl, 1e-9)
	assert.Zero(t, percent)
}
