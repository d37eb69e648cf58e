package tradeengine

import "strings"

const defaultContractSize = 100000.0

var contractSizes = map[string]float64{
	"XAUUSD": 100,
	"XAGUSD": 5000,
	"BTCUSD": 1,
	"ETHUSD": 1,
	"LTCUSD": 1,
	"XRPUSD": 1,
	"BCHUSD": 1,
}

// ContractSize resolves the units per lot of a symbol. Overrides win over the
// built-in metals and crypto table; anything else is a standard forex lot.
func ContractSize(symbol string, overrides map[string]float64) float64 {
	sym := strings.ToUpper(symbol)

	if size, found := overrides[sym]; found && size > 0 {
		return size
	}

	if size, found := contractSizes[sym]; found {
		return size
	}

	return defaultContractSize
}

func CalculateMargin(quantity, price, leverage, contractSize float64) float64 {
	if leverage <= 0 {
		leverage = 1
	}

	return quantity * price * contractSize / leverage
}
