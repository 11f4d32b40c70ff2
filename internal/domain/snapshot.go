package domain

import "time"

// MarketSnapshot is the best-effort market state for a symbol at evaluation
// time. CurrentPrice is required; the technical fields are optional and nil
// when the producing source could not supply them. Snapshots are built fresh
// for every evaluation and never cached or mutated.
type MarketSnapshot struct {
	Symbol       string
	CurrentPrice float64    // Last traded price; must be > 0
	SMA20        *float64   // 20-period simple moving average, if available
	Volume       *float64   // Most recent interval volume, if available
	Volatility   *float64   // Normalized volatility estimate, if available
	Source       DataSource // Which provider in the chain produced this
	Timestamp    time.Time  // Capture time
}

// Float64Ptr is a small helper for building snapshots with optional fields.
func Float64Ptr(v float64) *float64 { return &v }
