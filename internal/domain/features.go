package domain

import "time"

// FeatureVector is the per-symbol market snapshot published once per cycle.
// Every agent in the competition reads the same vector for a given cycle, so
// all fills and marks within that cycle derive from identical prices. It is
// read-only after publication and safe to share without locking.
type FeatureVector struct {
	Symbol    string
	Timestamp time.Time

	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64

	Bid    float64
	Ask    float64
	Spread float64

	// Optional indicator fields; zero when the provider does not compute them.
	EMAFast float64
	EMASlow float64
	RSI     float64
}

// FeatureSet maps symbol to its feature vector for one cycle.
type FeatureSet map[string]FeatureVector

// ClosePrices extracts the close price per symbol, used for mark-to-market.
func (fs FeatureSet) ClosePrices() map[string]float64 {
	prices := make(map[string]float64, len(fs))
	for sym, fv := range fs {
		prices[sym] = fv.Close
	}
	return prices
}
