package models

type Price struct {
	Bid float64 `json:"bid"`
	Ask float64 `json:"ask"`
}

// PriceMap is a snapshot of the latest quotes keyed by symbol.
type PriceMap map[string]Price

func (m PriceMap) Get(symbol string) (Price, bool) {
	p, ok := m[symbol]
	if !ok || (p.Bid <= 0 && p.Ask <= 0) {
		return Price{}, false
	}

	return p, true
}
