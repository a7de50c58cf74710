package config

import (
	"fmt"

	"github.com/holiman/uint256"

	"leasechain/core/rewards"
	"leasechain/crypto"
	"leasechain/native/dex"
	"leasechain/native/finance"
	"leasechain/native/lease"
	"leasechain/native/lpp"
	"leasechain/native/platform"
	"leasechain/native/position"
)

const minSecretBytes = 32

var storageBackends = map[string]struct{}{"memory": {}, "leveldb": {}, "bolt": {}}

// Validate checks the settings the daemon cannot start without.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("configuration is missing")
	}
	if cfg.ListenAddress == "" {
		return fmt.Errorf("listen address required")
	}
	if _, ok := storageBackends[cfg.Storage]; !ok {
		return fmt.Errorf("storage: unknown backend %q", cfg.Storage)
	}
	if cfg.Storage != "memory" && cfg.DataDir == "" {
		return fmt.Errorf("storage: data dir required for %s", cfg.Storage)
	}
	if cfg.CurrenciesFile == "" {
		return fmt.Errorf("currencies file required")
	}
	if cfg.AlarmInterval.Duration <= 0 {
		return fmt.Errorf("alarm interval must be positive")
	}
	if _, err := cfg.Collaborators.Resolve(); err != nil {
		return fmt.Errorf("collaborators: %w", err)
	}
	if err := cfg.Dex.Connection().Validate(); err != nil {
		return fmt.Errorf("dex: %w", err)
	}
	if _, err := cfg.Dex.NewVenue(); err != nil {
		return err
	}
	if err := cfg.Lease.Liability().Validate(); err != nil {
		return fmt.Errorf("lease: %w", err)
	}
	if cfg.Lease.MinAsset == 0 || cfg.Lease.MinTransaction == 0 {
		return fmt.Errorf("lease: minimum asset and transaction must be positive")
	}
	if cfg.Lease.DuePeriod.Duration <= 0 || cfg.Lease.DuePeriod.Duration >= cfg.Lease.GracePeriod.Duration {
		return fmt.Errorf("lease: due period must be positive and shorter than the grace period")
	}
	if cfg.Lease.PollInterval.Duration <= 0 || cfg.Lease.TransferInTimeout.Duration <= 0 {
		return fmt.Errorf("lease: transfer in poll interval and timeout must be positive")
	}
	if cfg.Pool.Kink == 0 || cfg.Pool.Kink > uint32(finance.Hundred) {
		return fmt.Errorf("pool: kink must be within (0, 1000]")
	}
	if _, _, err := cfg.Pool.RewardScale(); err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	if !cfg.Auth.Enabled && !cfg.DevEnvironment() {
		return fmt.Errorf("auth: token checks are required in %s", cfg.Environment)
	}
	if cfg.Auth.Enabled && len(cfg.Auth.HMACSecret) < minSecretBytes {
		return fmt.Errorf("auth: hmac secret must be at least %d bytes", minSecretBytes)
	}
	return nil
}

// Resolve decodes the collaborator addresses.
func (c Collaborators) Resolve() (lease.Collaborators, error) {
	var out lease.Collaborators
	for _, field := range []struct {
		name string
		raw  string
		dst  *crypto.Address
	}{
		{"lpp", c.Lpp, &out.Lpp},
		{"oracle", c.Oracle, &out.Oracle},
		{"time alarms", c.TimeAlarms, &out.TimeAlarms},
		{"profit", c.Profit, &out.Profit},
		{"reserve", c.Reserve, &out.Reserve},
	} {
		addr, err := crypto.DecodeAddress(field.raw)
		if err != nil {
			return lease.Collaborators{}, fmt.Errorf("%s: %w", field.name, err)
		}
		*field.dst = addr
	}
	return out, out.Validate()
}

// Connection returns the IBC parameters towards the DEX.
func (d Dex) Connection() dex.Connection {
	return dex.Connection{
		ConnectionID:    d.ConnectionID,
		TransferChannel: dex.Channel{Local: d.TransferChannelLocal, Remote: d.TransferChannelRemote},
	}
}

// NewVenue builds the configured swap venue.
func (d Dex) NewVenue() (dex.Venue, error) {
	venue, err := dex.NewVenue(d.Venue, d.RouterContract)
	if err != nil {
		return nil, fmt.Errorf("dex: %w", err)
	}
	return venue, nil
}

// Paths indexes the configured swap paths by "FROM>TO".
func (d Dex) Paths() map[string][]platform.SwapHop {
	out := make(map[string][]platform.SwapHop, len(d.SwapPaths))
	for _, path := range d.SwapPaths {
		hops := make([]platform.SwapHop, 0, len(path.Hops))
		for _, hop := range path.Hops {
			hops = append(hops, platform.SwapHop{PoolID: hop.Pool, Target: hop.Target})
		}
		out[path.From+">"+path.To] = hops
	}
	return out
}

// Liability returns the LTV thresholds of new positions.
func (l Lease) Liability() position.Liability {
	return position.Liability{
		Initial:    finance.Percent(l.Initial),
		Healthy:    finance.Percent(l.Healthy),
		FirstWarn:  finance.Percent(l.FirstWarn),
		SecondWarn: finance.Percent(l.SecondWarn),
		ThirdWarn:  finance.Percent(l.ThirdWarn),
		Max:        finance.Percent(l.Max),
		RecalcTime: finance.DurationFrom(l.RecalcTime.Duration),
	}
}

// Spec returns the position parameters of new leases, in the LPN.
func (l Lease) Spec(lpn string) position.Spec {
	return position.Spec{
		Liability:      l.Liability(),
		MinAsset:       finance.NewCoin(lpn, l.MinAsset),
		MinTransaction: finance.NewCoin(lpn, l.MinTransaction),
	}
}

// InterestModel returns the pool's utilisation curve.
func (p Pool) InterestModel() lpp.InterestModel {
	return lpp.InterestModel{
		BaseRate: finance.Percent(p.BaseRate),
		Slope1:   finance.Percent(p.Slope1),
		Slope2:   finance.Percent(p.Slope2),
		Kink:     finance.Percent(p.Kink),
	}
}

// RewardScale returns the TVL to APR mapping of the pool and the LPN amount
// of one TVL step. The scale is empty when no bars are configured.
func (p Pool) RewardScale() (scale rewards.Scale, unit uint256.Int, err error) {
	unit.SetUint64(p.RewardUnit)
	if len(p.RewardBars) == 0 {
		return rewards.Scale{}, unit, nil
	}
	bars := make([]rewards.Bar, 0, len(p.RewardBars))
	for _, bar := range p.RewardBars {
		bars = append(bars, rewards.Bar{TVL: bar.TVL, APR: finance.Percent(bar.APR)})
	}
	scale, err = rewards.NewScale(bars)
	return scale, unit, err
}
