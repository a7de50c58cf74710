package events

import (
	"strconv"

	"leasechain/native/finance"
)

func formatCoin(c finance.Coin) string {
	if c.Ticker == "" {
		return "0"
	}
	return c.String()
}

func formatPercent(p finance.Percent) string {
	return strconv.FormatUint(uint64(p), 10)
}

func formatOptionalPercent(p *finance.Percent) string {
	if p == nil {
		return ""
	}
	return formatPercent(*p)
}

func formatTimestamp(ts finance.Timestamp) string {
	return strconv.FormatUint(uint64(ts), 10)
}
