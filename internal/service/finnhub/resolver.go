package finnhub

import (
	"regexp"
	"strings"
)

const (
	endpointStock  = "/stock/candle"
	endpointCrypto = "/crypto/candle"
	endpointForex  = "/forex/candle"

	defaultCryptoExchange = "BINANCE"
)

// Resolver maps a canonical symbol onto the provider's wire symbol and endpoint.
// Resolvers are consulted in order and the first match wins.
type Resolver interface {
	Match(symbol string) bool
	Wire(symbol string) string
	Endpoint(symbol string) string
}

// DefaultResolvers returns the lookup chain: static table, exchange-qualified
// pairs, dash-separated crypto pairs and finally plain equities.
func DefaultResolvers(table map[string]string) []Resolver {
	return []Resolver{
		NewStaticResolver(table),
		ExchangePairResolver{},
		CryptoPairResolver{Exchange: defaultCryptoExchange},
		EquityResolver{},
	}
}

// StaticResolver serves explicit overrides from configuration.
type StaticResolver struct {
	table map[string]string
}

func NewStaticResolver(table map[string]string) StaticResolver {
	norm := make(map[string]string, len(table))
	for k, v := range table {
		norm[strings.ToUpper(strings.TrimSpace(k))] = strings.TrimSpace(v)
	}
	return StaticResolver{table: norm}
}

func (r StaticResolver) Match(symbol string) bool {
	_, ok := r.table[strings.ToUpper(symbol)]
	return ok
}

func (r StaticResolver) Wire(symbol string) string {
	return r.table[strings.ToUpper(symbol)]
}

func (r StaticResolver) Endpoint(symbol string) string {
	return ExchangePairResolver{}.Endpoint(r.Wire(symbol))
}

// ExchangePairResolver passes through symbols already qualified with an exchange,
// e.g. BINANCE:BTCUSDT or OANDA:EUR_USD.
type ExchangePairResolver struct{}

var forexExchanges = map[string]bool{"OANDA": true, "FXCM": true, "FOREX": true, "FXPRO": true, "IC MARKETS": true}

func (ExchangePairResolver) Match(symbol string) bool { return strings.Contains(symbol, ":") }

func (ExchangePairResolver) Wire(symbol string) string { return strings.ToUpper(symbol) }

func (ExchangePairResolver) Endpoint(symbol string) string {
	exch, _, ok := strings.Cut(strings.ToUpper(symbol), ":")
	if !ok {
		return endpointStock
	}
	if forexExchanges[exch] {
		return endpointForex
	}
	return endpointCrypto
}

// CryptoPairResolver maps BASE-QUOTE onto EXCHANGE:BASEQUOTE. A USD quote is
// mapped to USDT since spot exchanges quote against the stablecoin.
type CryptoPairResolver struct {
	Exchange string
}

var cryptoPair = regexp.MustCompile(`^([A-Z0-9]{2,10})-(USD|USDT|USDC|BUSD|EUR|BTC|ETH)$`)

func (CryptoPairResolver) Match(symbol string) bool {
	return cryptoPair.MatchString(strings.ToUpper(symbol))
}

func (r CryptoPairResolver) Wire(symbol string) string {
	m := cryptoPair.FindStringSubmatch(strings.ToUpper(symbol))
	if m == nil {
		return symbol
	}
	quote := m[2]
	if quote == "USD" {
		quote = "USDT"
	}
	return r.Exchange + ":" + m[1] + quote
}

func (CryptoPairResolver) Endpoint(string) string { return endpointCrypto }

// EquityResolver is the fallback for stock tickers.
type EquityResolver struct{}

func (EquityResolver) Match(string) bool { return true }

func (EquityResolver) Wire(symbol string) string { return strings.ToUpper(symbol) }

func (EquityResolver) Endpoint(string) string { return endpointStock }

func resolve(chain []Resolver, symbol string) (wire, endpoint string) {
	for _, r := range chain {
		if r.Match(symbol) {
			return r.Wire(symbol), r.Endpoint(symbol)
		}
	}
	return strings.ToUpper(symbol), endpointStock
}
