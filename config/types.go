package config

import (
	"fmt"
	"time"
)

// Duration wraps time.Duration so durations can be written as "168h".
type Duration struct {
	time.Duration
}

// UnmarshalText parses human readable duration strings.
func (d *Duration) UnmarshalText(text []byte) error {
	raw := string(text)
	if raw == "" {
		d.Duration = 0
		return nil
	}
	parsed, err := time.ParseDuration(raw)
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", raw, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// RateLimit bounds customer operations per client.
type RateLimit struct {
	RequestsPerMinute float64 `toml:"RequestsPerMinute"`
	Burst             int     `toml:"Burst"`
}

// Pauses are the module switches consulted by customer operations.
type Pauses struct {
	Lease bool `toml:"Lease"`
	Lpp   bool `toml:"Lpp"`
}

// Collaborators are the bech32 addresses of the contracts a lease talks to.
type Collaborators struct {
	Lpp        string `toml:"Lpp"`
	Oracle     string `toml:"Oracle"`
	TimeAlarms string `toml:"TimeAlarms"`
	Profit     string `toml:"Profit"`
	Reserve    string `toml:"Reserve"`
}

// Hop is one leg of a configured swap path.
type Hop struct {
	Pool   uint64 `toml:"Pool"`
	Target string `toml:"Target"`
}

// SwapPath lists the hops converting From into To on the DEX.
type SwapPath struct {
	From string `toml:"From"`
	To   string `toml:"To"`
	Hops []Hop  `toml:"Hops"`
}

// Dex describes the IBC connection and the swap venue.
type Dex struct {
	ConnectionID          string     `toml:"ConnectionID"`
	TransferChannelLocal  string     `toml:"TransferChannelLocal"`
	TransferChannelRemote string     `toml:"TransferChannelRemote"`
	Venue                 string     `toml:"Venue"`
	RouterContract        string     `toml:"RouterContract"`
	Timeout               Duration   `toml:"Timeout"`
	SwapPaths             []SwapPath `toml:"SwapPaths"`
}

// Lease holds the position and loan parameters every new lease gets. Percents
// are permille.
type Lease struct {
	Initial           uint32   `toml:"Initial"`
	Healthy           uint32   `toml:"Healthy"`
	FirstWarn         uint32   `toml:"FirstWarn"`
	SecondWarn        uint32   `toml:"SecondWarn"`
	ThirdWarn         uint32   `toml:"ThirdWarn"`
	Max               uint32   `toml:"Max"`
	RecalcTime        Duration `toml:"RecalcTime"`
	MinAsset          uint64   `toml:"MinAsset"`
	MinTransaction    uint64   `toml:"MinTransaction"`
	MarginInterest    uint32   `toml:"MarginInterest"`
	DuePeriod         Duration `toml:"DuePeriod"`
	GracePeriod       Duration `toml:"GracePeriod"`
	PollInterval      Duration `toml:"PollInterval"`
	TransferInTimeout Duration `toml:"TransferInTimeout"`
}

// RewardBar is one step of the rewards scale. TVL counts RewardUnit
// amounts of the pool currency, APR is in permille.
type RewardBar struct {
	TVL uint64 `toml:"TVL"`
	APR uint32 `toml:"APR"`
}

// Pool configures the in-process liquidity pool. Rates are permille.
type Pool struct {
	BaseRate         uint32      `toml:"BaseRate"`
	Slope1           uint32      `toml:"Slope1"`
	Slope2           uint32      `toml:"Slope2"`
	Kink             uint32      `toml:"Kink"`
	InitialLiquidity uint64      `toml:"InitialLiquidity"`
	RewardUnit       uint64      `toml:"RewardUnit"`
	RewardBars       []RewardBar `toml:"RewardBars"`
}

// Auth configures bearer token checks on the API. Tokens are HS256 JWTs whose
// subject is the caller's bech32 address.
type Auth struct {
	Enabled    bool     `toml:"Enabled"`
	HMACSecret string   `toml:"HMACSecret"`
	Issuer     string   `toml:"Issuer"`
	Audience   string   `toml:"Audience"`
	ClockSkew  Duration `toml:"ClockSkew"`
}

// Telemetry configures the OTLP exporters.
type Telemetry struct {
	Endpoint    string  `toml:"Endpoint"`
	Insecure    bool    `toml:"Insecure"`
	Metrics     bool    `toml:"Metrics"`
	Traces      bool    `toml:"Traces"`
	SampleRatio float64 `toml:"SampleRatio"`
}
