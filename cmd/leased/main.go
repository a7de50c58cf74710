package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"leasechain/config"
	"leasechain/core/state"
	nativecommon "leasechain/native/common"
	"leasechain/native/dex"
	"leasechain/native/finance"
	"leasechain/native/lease"
	"leasechain/native/lpp"
	"leasechain/observability/logging"
	telemetry "leasechain/observability/otel"
	"leasechain/services/leased/engine"
	"leasechain/services/leased/journal"
	"leasechain/services/leased/server"
	"leasechain/storage"
)

func main() {
	var cfgPath string
	var allowMigrate bool
	flag.StringVar(&cfgPath, "config", "./leased.toml", "path to leased config")
	flag.BoolVar(&allowMigrate, "allow-migrate", false, "upgrade the on-disk state layout if it is older than this build")
	flag.Parse()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	env := cfg.Environment
	if override := strings.TrimSpace(os.Getenv("LEASED_ENV")); override != "" {
		env = override
	}
	logger := logging.Setup("leased", env)

	shutdownTelemetry, err := telemetry.Init(context.Background(), telemetryConfig(cfg, env))
	if err != nil {
		log.Fatalf("init telemetry: %v", err)
	}
	defer func() {
		if shutdownTelemetry != nil {
			_ = shutdownTelemetry(context.Background())
		}
	}()

	if err := run(cfg, allowMigrate, logger); err != nil {
		logger.Error("leased stopped", slog.Any("error", err))
		os.Exit(1)
	}
}

// telemetryConfig starts from the config file and lets the standard OTLP
// environment variables override the exporter settings.
func telemetryConfig(cfg *config.Config, env string) telemetry.Config {
	endpoint := cfg.Telemetry.Endpoint
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")); value != "" {
		endpoint = value
	}
	insecure := cfg.Telemetry.Insecure
	if value := strings.TrimSpace(os.Getenv("OTEL_EXPORTER_OTLP_INSECURE")); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			insecure = parsed
		}
	}
	instance, _ := os.Hostname()
	return telemetry.Config{
		ServiceName: "leased",
		Environment: env,
		Instance:    instance,
		Endpoint:    endpoint,
		Insecure:    insecure,
		Headers:     telemetry.ParseHeaders(os.Getenv("OTEL_EXPORTER_OTLP_HEADERS")),
		Metrics:     cfg.Telemetry.Metrics,
		Traces:      cfg.Telemetry.Traces,
		SampleRatio: cfg.Telemetry.SampleRatio,
	}
}

func run(cfg *config.Config, allowMigrate bool, logger *slog.Logger) error {
	registry, err := config.LoadCurrencies(cfg.CurrenciesFile)
	if err != nil {
		return fmt.Errorf("load currencies: %w", err)
	}

	for _, dir := range []string{cfg.DataDir, filepath.Dir(cfg.JournalPath)} {
		if dir == "" || dir == "." {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	db, err := storage.Open(cfg.Storage, statePath(cfg))
	if err != nil {
		return fmt.Errorf("open state database: %w", err)
	}
	defer db.Close()
	if err := state.EnsureStateVersion(db, allowMigrate); err != nil {
		return err
	}
	kv := state.NewManager(db)

	records, err := journal.Open(cfg.JournalPath)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer records.Close()

	pauses := nativecommon.NewSwitches(map[string]bool{
		lease.PauseModule: cfg.Pauses.Lease,
		lpp.PauseModule:   cfg.Pauses.Lpp,
	})
	collaborators, err := cfg.Collaborators.Resolve()
	if err != nil {
		return fmt.Errorf("collaborators: %w", err)
	}
	host := engine.NewHost(cfg.Dex.Paths())

	pool, err := openPool(cfg, registry.Lpn(), kv, pauses)
	if err != nil {
		return err
	}
	totals, err := pool.Totals()
	if err != nil {
		return fmt.Errorf("pool totals: %w", err)
	}
	// the host ledger lives in memory, so the pool's idle liquidity is
	// credited to it on every start
	if !totals.Available.IsZero() {
		if err := host.Credit(collaborators.Lpp, totals.Available); err != nil {
			return fmt.Errorf("credit pool liquidity: %w", err)
		}
	}

	venue, err := cfg.Dex.NewVenue()
	if err != nil {
		return err
	}
	executor := &engine.Executor{
		Machine: &lease.Machine{
			Registry:          registry,
			Builder:           dex.Builder{Registry: registry, Venue: venue, Timeout: finance.DurationFrom(cfg.Dex.Timeout.Duration)},
			PollInterval:      finance.DurationFrom(cfg.Lease.PollInterval.Duration),
			TransferInTimeout: finance.DurationFrom(cfg.Lease.TransferInTimeout.Duration),
			Pauses:            pauses,
		},
		Store:      lease.NewStore(kv),
		Nonces:     kv,
		Host:       host,
		Dispatcher: &engine.Dispatcher{Pool: pool, Host: host, Outbox: records},
		Journal:    records,
		Logger:     logger,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	healed, err := executor.Recover(ctx)
	if err != nil {
		return fmt.Errorf("recover leases: %w", err)
	}
	logger.Info("leases recovered", slog.Int("count", healed))

	api, err := server.New(server.Config{
		Executor: executor,
		Host:     host,
		Records:  records,
		Pool:     pool,
		Terms: engine.Terms{
			Position:      cfg.Lease.Spec(registry.Lpn()),
			AnnualMargin:  finance.Percent(cfg.Lease.MarginInterest),
			DuePeriod:     finance.DurationFrom(cfg.Lease.DuePeriod.Duration),
			GracePeriod:   finance.DurationFrom(cfg.Lease.GracePeriod.Duration),
			Collaborators: collaborators,
			Connection:    cfg.Dex.Connection(),
		},
		Pauses: pauses,
		Auth:   newAuthenticator(cfg, logger),
		Limiter: server.NewRateLimiter(server.RateLimit{
			RequestsPerMinute: cfg.RateLimit.RequestsPerMinute,
			Burst:             cfg.RateLimit.Burst,
		}, logger),
		Logger: logger,
	})
	if err != nil {
		return err
	}
	httpServer := &http.Server{
		Addr:              cfg.ListenAddress,
		Handler:           otelhttp.NewHandler(api, "leased"),
		ReadHeaderTimeout: 5 * time.Second,
	}

	alarmErr := make(chan error, 1)
	go func() {
		alarmErr <- executor.Run(ctx, cfg.AlarmInterval.Duration)
	}()
	serverErr := make(chan error, 1)
	go func() {
		logger.Info("leased listening", slog.String("address", cfg.ListenAddress))
		serverErr <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-alarmErr:
		if err != nil {
			return fmt.Errorf("alarm loop: %w", err)
		}
	case err := <-serverErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve http: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("forcing server stop", slog.Any("error", err))
		_ = httpServer.Close()
	}
	return nil
}

// newAuthenticator builds the API token checks.
func newAuthenticator(cfg *config.Config, logger *slog.Logger) *server.Authenticator {
	if !cfg.Auth.Enabled {
		logger.Warn("api token checks disabled", slog.String("environment", cfg.Environment))
	}
	return server.NewAuthenticator(server.AuthConfig{
		Enabled:   cfg.Auth.Enabled,
		Secret:    cfg.Auth.HMACSecret,
		Issuer:    cfg.Auth.Issuer,
		Audience:  cfg.Auth.Audience,
		ClockSkew: cfg.Auth.ClockSkew.Duration,
	}, logger)
}

// statePath places the state database inside the data directory. LevelDB
// takes a directory, bbolt a single file.
func statePath(cfg *config.Config) string {
	switch cfg.Storage {
	case storage.BackendLevelDB:
		return filepath.Join(cfg.DataDir, "state")
	case storage.BackendBolt:
		return filepath.Join(cfg.DataDir, "state.db")
	default:
		return ""
	}
}

// openPool restores the liquidity pool and seeds it on first start.
func openPool(cfg *config.Config, lpn string, kv lpp.KVStore, pauses *nativecommon.Switches) (*lpp.Pool, error) {
	pool := lpp.NewPool(lpn, cfg.Pool.InterestModel())
	pool.SetState(lpp.NewStore(kv))
	pool.SetPauses(pauses)
	scale, unit, err := cfg.Pool.RewardScale()
	if err != nil {
		return nil, fmt.Errorf("pool rewards: %w", err)
	}
	if len(scale.Bars()) > 0 {
		pool.SetRewardScale(scale, unit)
	}
	totals, err := pool.Totals()
	if err != nil {
		return nil, fmt.Errorf("pool totals: %w", err)
	}
	if cfg.Pool.InitialLiquidity > 0 && totals.Available.IsZero() && totals.Borrowed.IsZero() {
		if err := pool.Deposit(finance.NewCoin(lpn, cfg.Pool.InitialLiquidity)); err != nil {
			return nil, fmt.Errorf("seed pool: %w", err)
		}
	}
	return pool, nil
}
