package finance

import (
	"fmt"
	"sort"
	"strings"
)

// Group classifies how a currency may be used by a lease.
type Group string

const (
	GroupLpn     Group = "lpn"
	GroupLease   Group = "lease"
	GroupPayment Group = "payment"
)

// Currency describes a ticker and the denominations it travels under.
type Currency struct {
	Ticker     string
	BankSymbol string
	DexSymbol  string
	Decimals   uint8
	Group      Group
}

// Registry is an immutable lookup of the currencies known to the protocol.
type Registry struct {
	byTicker map[string]Currency
	byBank   map[string]string
	byDex    map[string]string
	lpn      string
}

// NewRegistry indexes currencies. Exactly one currency must be the LPN.
func NewRegistry(currencies []Currency) (*Registry, error) {
	r := &Registry{
		byTicker: make(map[string]Currency, len(currencies)),
		byBank:   make(map[string]string, len(currencies)),
		byDex:    make(map[string]string, len(currencies)),
	}
	for _, c := range currencies {
		ticker := strings.TrimSpace(c.Ticker)
		if ticker == "" {
			return nil, fmt.Errorf("finance: currency ticker required")
		}
		if _, dup := r.byTicker[ticker]; dup {
			return nil, fmt.Errorf("finance: duplicate currency %s", ticker)
		}
		switch c.Group {
		case GroupLpn:
			if r.lpn != "" {
				return nil, fmt.Errorf("finance: multiple lpn currencies: %s and %s", r.lpn, ticker)
			}
			r.lpn = ticker
		case GroupLease, GroupPayment:
		default:
			return nil, fmt.Errorf("finance: currency %s has unknown group %q", ticker, c.Group)
		}
		if c.BankSymbol == "" {
			return nil, fmt.Errorf("finance: currency %s requires a bank symbol", ticker)
		}
		c.Ticker = ticker
		r.byTicker[ticker] = c
		r.byBank[c.BankSymbol] = ticker
		if c.DexSymbol != "" {
			r.byDex[c.DexSymbol] = ticker
		}
	}
	if r.lpn == "" {
		return nil, fmt.Errorf("finance: no lpn currency configured")
	}
	return r, nil
}

// Lpn returns the ticker of the pool's settlement currency.
func (r *Registry) Lpn() string { return r.lpn }

// Get resolves a ticker.
func (r *Registry) Get(ticker string) (Currency, error) {
	c, ok := r.byTicker[ticker]
	if !ok {
		return Currency{}, fmt.Errorf("%w: %s", ErrUnknownCurrency, ticker)
	}
	return c, nil
}

// DexSymbol maps a ticker to its denomination on the DEX chain.
func (r *Registry) DexSymbol(ticker string) (string, error) {
	c, err := r.Get(ticker)
	if err != nil {
		return "", err
	}
	if c.DexSymbol == "" {
		return "", fmt.Errorf("%w: %s", ErrNoDexSymbol, ticker)
	}
	return c.DexSymbol, nil
}

// BankSymbol maps a ticker to its local denomination.
func (r *Registry) BankSymbol(ticker string) (string, error) {
	c, err := r.Get(ticker)
	if err != nil {
		return "", err
	}
	return c.BankSymbol, nil
}

// FromBankSymbol resolves a local denomination back to a ticker.
func (r *Registry) FromBankSymbol(symbol string) (string, error) {
	ticker, ok := r.byBank[symbol]
	if !ok {
		return "", fmt.Errorf("%w: bank symbol %s", ErrUnknownCurrency, symbol)
	}
	return ticker, nil
}

// FromDexSymbol resolves a DEX denomination back to a ticker.
func (r *Registry) FromDexSymbol(symbol string) (string, error) {
	ticker, ok := r.byDex[symbol]
	if !ok {
		return "", fmt.Errorf("%w: dex symbol %s", ErrUnknownCurrency, symbol)
	}
	return ticker, nil
}

// InGroup reports whether the ticker belongs to group.
func (r *Registry) InGroup(ticker string, group Group) bool {
	c, ok := r.byTicker[ticker]
	return ok && c.Group == group
}

// Payable reports whether a lease accepts the ticker as a payment.
func (r *Registry) Payable(ticker string) bool {
	c, ok := r.byTicker[ticker]
	if !ok {
		return false
	}
	return c.Group == GroupPayment || c.Group == GroupLpn || c.Group == GroupLease
}

// Tickers lists known tickers in lexical order.
func (r *Registry) Tickers() []string {
	out := make([]string, 0, len(r.byTicker))
	for t := range r.byTicker {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}
