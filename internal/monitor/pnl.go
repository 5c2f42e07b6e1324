package monitor

// Unrealized computes the open PnL of a position in USD and as a percent
// of the cost basis. Fees are counted against the absolute PnL but not the
// denominator.
func Unrealized(perUnitCost, units, currentPrice, feeUSD float64) (pnl, percent float64) {
	pnl = (currentPrice-perUnitCost)*units - feeUSD
	basis := perUnitCost * units
	if basis != 0 {
		percent = pnl / basis * 100
	}
	return pnl, percent
}
