package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"leasechain/native/finance"
)

// Currency is one entry of the currency registry file.
type Currency struct {
	Ticker     string `yaml:"ticker"`
	BankSymbol string `yaml:"bank_symbol"`
	DexSymbol  string `yaml:"dex_symbol"`
	Decimals   uint8  `yaml:"decimals"`
	Group      string `yaml:"group"`
}

type currencyFile struct {
	Currencies []Currency `yaml:"currencies"`
}

// LoadCurrencies reads the YAML currency registry.
func LoadCurrencies(path string) (*finance.Registry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open currencies: %w", err)
	}
	defer file.Close()

	var doc currencyFile
	decoder := yaml.NewDecoder(file)
	decoder.KnownFields(true)
	if err := decoder.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode currencies: %w", err)
	}
	currencies := make([]finance.Currency, 0, len(doc.Currencies))
	for _, c := range doc.Currencies {
		currencies = append(currencies, finance.Currency{
			Ticker:     strings.TrimSpace(c.Ticker),
			BankSymbol: strings.TrimSpace(c.BankSymbol),
			DexSymbol:  strings.TrimSpace(c.DexSymbol),
			Decimals:   c.Decimals,
			Group:      finance.Group(strings.ToLower(strings.TrimSpace(c.Group))),
		})
	}
	return finance.NewRegistry(currencies)
}
