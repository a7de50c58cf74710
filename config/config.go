package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"leasechain/crypto"
)

// Config is the runtime configuration of the lease host daemon.
type Config struct {
	ListenAddress  string        `toml:"ListenAddress"`
	Environment    string        `toml:"Environment"`
	DataDir        string        `toml:"DataDir"`
	Storage        string        `toml:"Storage"`
	JournalPath    string        `toml:"JournalPath"`
	CurrenciesFile string        `toml:"CurrenciesFile"`
	AlarmInterval  Duration      `toml:"AlarmInterval"`
	RateLimit      RateLimit     `toml:"rate_limit"`
	Auth           Auth          `toml:"auth"`
	Pauses         Pauses        `toml:"pauses"`
	Collaborators  Collaborators `toml:"collaborators"`
	Dex            Dex           `toml:"dex"`
	Lease          Lease         `toml:"lease"`
	Pool           Pool          `toml:"pool"`
	Telemetry      Telemetry     `toml:"telemetry"`
}

// Load loads the configuration from the given path. A missing file is
// created with development defaults.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}
	cfg := Default()
	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("config file %s has unknown key %s", path, undecoded[0])
	}
	cfg.normalize(filepath.Dir(path))
	cfg.applyEnv()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv lets LEASED_AUTH_SECRET supply the token secret so it can stay out
// of the config file.
func (cfg *Config) applyEnv() {
	if secret := strings.TrimSpace(os.Getenv("LEASED_AUTH_SECRET")); secret != "" {
		cfg.Auth.HMACSecret = secret
	}
}

func devAddress(name string) string {
	return crypto.DeriveAddress(crypto.LeasePrefix, []byte("leased/dev"), []byte(name)).String()
}

// Default returns a configuration suitable for a local single node.
func Default() *Config {
	return &Config{
		ListenAddress:  ":8081",
		Environment:    "dev",
		DataDir:        "./lease-data",
		Storage:        "leveldb",
		JournalPath:    "journal.db",
		CurrenciesFile: "currencies.yaml",
		AlarmInterval:  Duration{5 * time.Second},
		RateLimit:      RateLimit{RequestsPerMinute: 120, Burst: 20},
		Auth:           Auth{Issuer: "leasechain", ClockSkew: Duration{2 * time.Minute}},
		Collaborators: Collaborators{
			Lpp:        devAddress("lpp"),
			Oracle:     devAddress("oracle"),
			TimeAlarms: devAddress("timealarms"),
			Profit:     devAddress("profit"),
			Reserve:    devAddress("reserve"),
		},
		Dex: Dex{
			ConnectionID:          "connection-0",
			TransferChannelLocal:  "channel-0",
			TransferChannelRemote: "channel-0",
			Venue:                 "native-amm",
			Timeout:               Duration{10 * time.Minute},
		},
		Lease: Lease{
			Initial:           650,
			Healthy:           700,
			FirstWarn:         720,
			SecondWarn:        750,
			ThirdWarn:         780,
			Max:               800,
			RecalcTime:        Duration{7 * 24 * time.Hour},
			MinAsset:          15_000_000,
			MinTransaction:    1_000_000,
			MarginInterest:    40,
			DuePeriod:         Duration{30 * 24 * time.Hour},
			GracePeriod:       Duration{40 * 24 * time.Hour},
			PollInterval:      Duration{30 * time.Second},
			TransferInTimeout: Duration{20 * time.Minute},
		},
		Pool: Pool{
			BaseRate:   20,
			Slope1:     150,
			Slope2:     600,
			Kink:       800,
			RewardUnit: 1_000_000_000,
			RewardBars: []RewardBar{{TVL: 0, APR: 60}, {TVL: 50_000, APR: 80}, {TVL: 150_000, APR: 100}},
		},
	}
}

// DevEnvironment reports whether the daemon runs as a local development node,
// the only setting where the API may skip token checks.
func (cfg *Config) DevEnvironment() bool {
	switch strings.ToLower(cfg.Environment) {
	case "", "dev", "development", "local":
		return true
	default:
		return false
	}
}

// createDefault creates and saves a default configuration file.
func createDefault(path string) (*Config, error) {
	cfg := Default()
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	cfg.normalize(filepath.Dir(path))
	cfg.applyEnv()
	return cfg, nil
}

// normalize trims strings and resolves relative file paths against dir.
func (cfg *Config) normalize(dir string) {
	cfg.ListenAddress = strings.TrimSpace(cfg.ListenAddress)
	cfg.Environment = strings.TrimSpace(cfg.Environment)
	cfg.Storage = strings.ToLower(strings.TrimSpace(cfg.Storage))
	cfg.Dex.Venue = strings.TrimSpace(cfg.Dex.Venue)
	cfg.Auth.HMACSecret = strings.TrimSpace(cfg.Auth.HMACSecret)
	cfg.DataDir = resolve(dir, cfg.DataDir)
	cfg.CurrenciesFile = resolve(dir, cfg.CurrenciesFile)
	if journal := strings.TrimSpace(cfg.JournalPath); journal != "" && !filepath.IsAbs(journal) {
		cfg.JournalPath = filepath.Join(cfg.DataDir, journal)
	}
}

func resolve(dir, path string) string {
	path = strings.TrimSpace(path)
	if path == "" || filepath.IsAbs(path) || dir == "" || dir == "." {
		return path
	}
	return filepath.Join(dir, path)
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
