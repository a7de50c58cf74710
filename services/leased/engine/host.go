package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"leasechain/crypto"
	"leasechain/native/finance"
	"leasechain/native/platform"
)

var (
	ErrNoPrice           = errors.New("leased host: no price for pair")
	ErrInsufficientFunds = errors.New("leased host: insufficient funds")
)

// Alarm is a subscription that fired and must be delivered to its lease.
type Alarm struct {
	Lease  crypto.Address
	Sender crypto.Address
	Price  bool
}

type timeAlarm struct {
	sender crypto.Address
	at     finance.Timestamp
}

type priceAlarm struct {
	sender crypto.Address
	alarm  platform.AddPriceAlarm
}

// Host is the local chain the leases run on. It keeps bank balances, the
// oracle price book, the configured swap paths and the alarm subscriptions.
type Host struct {
	mu          sync.RWMutex
	balances    map[string]map[string]finance.Coin
	prices      map[string]finance.Price
	paths       map[string][]platform.SwapHop
	timeAlarms  map[string]timeAlarm
	priceAlarms map[string]priceAlarm
	owners      map[string]crypto.Address
	// inflight holds the coins of transfer packets awaiting acknowledgement,
	// keyed by lease and correlation.
	inflight map[string]finance.Coin
}

// NewHost builds a host with the given swap paths keyed by "FROM>TO".
func NewHost(paths map[string][]platform.SwapHop) *Host {
	if paths == nil {
		paths = make(map[string][]platform.SwapHop)
	}
	return &Host{
		balances:    make(map[string]map[string]finance.Coin),
		prices:      make(map[string]finance.Price),
		paths:       paths,
		timeAlarms:  make(map[string]timeAlarm),
		priceAlarms: make(map[string]priceAlarm),
		owners:      make(map[string]crypto.Address),
		inflight:    make(map[string]finance.Coin),
	}
}

func pairKey(base, quote string) string { return base + ">" + quote }

// Price quotes base in quote, inverting the stored pair when only the
// opposite direction is known.
func (h *Host) Price(_ context.Context, base, quote string) (finance.Price, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.priceLocked(base, quote)
}

func (h *Host) priceLocked(base, quote string) (finance.Price, error) {
	if p, ok := h.prices[pairKey(base, quote)]; ok {
		return p, nil
	}
	if p, ok := h.prices[pairKey(quote, base)]; ok {
		return p.Inverse(), nil
	}
	return finance.Price{}, fmt.Errorf("%w: %s/%s", ErrNoPrice, base, quote)
}

// SwapPath returns the configured hops. An unknown pair yields no hops and
// leaves the error to the caller.
func (h *Host) SwapPath(_ context.Context, from, to string) ([]platform.SwapHop, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	hops := h.paths[pairKey(from, to)]
	return append([]platform.SwapHop(nil), hops...), nil
}

func (h *Host) Balance(_ context.Context, account crypto.Address, ticker string) (finance.Coin, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if coin, ok := h.balances[account.String()][ticker]; ok {
		return coin, nil
	}
	return finance.Zero(ticker), nil
}

// SetPrice records an oracle observation.
func (h *Host) SetPrice(p finance.Price) error {
	if err := p.Validate(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.prices, pairKey(p.QuoteTicker(), p.Base()))
	h.prices[pairKey(p.Base(), p.QuoteTicker())] = p
	return nil
}

// Credit mints funds into an account, as a relayer delivering a transfer or
// a faucet in development.
func (h *Host) Credit(account crypto.Address, coins ...finance.Coin) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, coin := range coins {
		if err := h.creditLocked(account, coin); err != nil {
			return err
		}
	}
	return nil
}

func packetKey(lease crypto.Address, corr string) string { return lease.String() + "/" + corr }

// SendPacket burns coin leaving the chain in a transfer packet and holds it
// until the packet is acknowledged.
func (h *Host) SendPacket(lease crypto.Address, corr string, coin finance.Coin) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.debitLocked(lease, coin); err != nil {
		return err
	}
	h.inflight[packetKey(lease, corr)] = coin
	return nil
}

// AckPacket forgets a delivered transfer.
func (h *Host) AckPacket(lease crypto.Address, corr string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.inflight, packetKey(lease, corr))
}

// RefundPacket credits back the coin of a transfer that timed out or was
// rejected. It reports false when no such packet is in flight.
func (h *Host) RefundPacket(lease crypto.Address, corr string) (finance.Coin, bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	key := packetKey(lease, corr)
	coin, ok := h.inflight[key]
	if !ok {
		return finance.Coin{}, false, nil
	}
	if err := h.creditLocked(lease, coin); err != nil {
		return finance.Coin{}, false, err
	}
	delete(h.inflight, key)
	return coin, true, nil
}

// Covers checks that account holds every coin.
func (h *Host) Covers(account crypto.Address, coins ...finance.Coin) error {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.coveredLocked(account, coins)
}

// Transfer moves coins between two accounts. Nothing moves unless every coin
// is covered.
func (h *Host) Transfer(from, to crypto.Address, coins ...finance.Coin) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if err := h.coveredLocked(from, coins); err != nil {
		return err
	}
	for _, coin := range coins {
		if err := h.debitLocked(from, coin); err != nil {
			return err
		}
		if err := h.creditLocked(to, coin); err != nil {
			return err
		}
	}
	return nil
}

func (h *Host) coveredLocked(account crypto.Address, coins []finance.Coin) error {
	need := make(map[string]finance.Coin)
	for _, coin := range coins {
		sum, ok := need[coin.Ticker]
		if !ok {
			sum = finance.Zero(coin.Ticker)
		}
		total, err := sum.Add(coin)
		if err != nil {
			return err
		}
		need[coin.Ticker] = total
	}
	for ticker, amount := range need {
		have, ok := h.balances[account.String()][ticker]
		if !ok {
			have = finance.Zero(ticker)
		}
		cmp, err := have.Cmp(amount)
		if err != nil {
			return err
		}
		if cmp < 0 {
			return fmt.Errorf("%w: %s holds %s, needs %s", ErrInsufficientFunds, account, have, amount)
		}
	}
	return nil
}

func (h *Host) creditLocked(account crypto.Address, coin finance.Coin) error {
	if coin.IsZero() {
		return nil
	}
	key := account.String()
	book, ok := h.balances[key]
	if !ok {
		book = make(map[string]finance.Coin)
		h.balances[key] = book
	}
	current, ok := book[coin.Ticker]
	if !ok {
		current = finance.Zero(coin.Ticker)
	}
	next, err := current.Add(coin)
	if err != nil {
		return err
	}
	book[coin.Ticker] = next
	return nil
}

func (h *Host) debitLocked(account crypto.Address, coin finance.Coin) error {
	if coin.IsZero() {
		return nil
	}
	book := h.balances[account.String()]
	current, ok := book[coin.Ticker]
	if !ok {
		return fmt.Errorf("%w: %s holds no %s", ErrInsufficientFunds, account, coin.Ticker)
	}
	next, err := current.Sub(coin)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInsufficientFunds, err)
	}
	book[coin.Ticker] = next
	return nil
}

// SetTimeAlarm replaces the lease's wake-up time.
func (h *Host) SetTimeAlarm(lease, sender crypto.Address, at finance.Timestamp) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.owners[lease.String()] = lease
	h.timeAlarms[lease.String()] = timeAlarm{sender: sender, at: at}
}

// SetPriceAlarm replaces the lease's price subscription.
func (h *Host) SetPriceAlarm(lease, sender crypto.Address, alarm platform.AddPriceAlarm) error {
	if err := alarm.Below.Validate(); err != nil {
		return err
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.owners[lease.String()] = lease
	h.priceAlarms[lease.String()] = priceAlarm{sender: sender, alarm: alarm}
	return nil
}

func (h *Host) RemovePriceAlarm(lease crypto.Address) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.priceAlarms, lease.String())
}

// DueAlarms removes and returns the subscriptions firing at now: time alarms
// at or before now and price alarms whose asset price left the subscribed
// range. Alarms on pairs without a price stay armed.
func (h *Host) DueAlarms(now finance.Timestamp) []Alarm {
	h.mu.Lock()
	defer h.mu.Unlock()
	var due []Alarm
	for key, alarm := range h.timeAlarms {
		if alarm.at <= now {
			due = append(due, Alarm{Lease: h.owners[key], Sender: alarm.sender})
			delete(h.timeAlarms, key)
		}
	}
	for key, sub := range h.priceAlarms {
		below := sub.alarm.Below
		current, err := h.priceLocked(below.Base(), below.QuoteTicker())
		if err != nil {
			continue
		}
		if !outside(current, sub.alarm) {
			continue
		}
		due = append(due, Alarm{Lease: h.owners[key], Sender: sub.sender, Price: true})
		delete(h.priceAlarms, key)
	}
	sort.Slice(due, func(i, j int) bool {
		if due[i].Lease == due[j].Lease {
			return !due[i].Price && due[j].Price
		}
		return due[i].Lease.String() < due[j].Lease.String()
	})
	return due
}

func outside(current finance.Price, alarm platform.AddPriceAlarm) bool {
	if cmp, err := current.Cmp(alarm.Below); err == nil && cmp < 0 {
		return true
	}
	if alarm.AboveOrEqual == nil {
		return false
	}
	cmp, err := current.Cmp(*alarm.AboveOrEqual)
	return err == nil && cmp >= 0
}
