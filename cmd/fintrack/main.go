package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"golang.org/x/sync/errgroup"

	"fintrack/internal/analytics"
	"fintrack/internal/backend"
	"fintrack/internal/cache"
	"fintrack/internal/cli"
	"fintrack/internal/config"
	apphttp "fintrack/internal/http"
	"fintrack/internal/log"
	"fintrack/internal/middleware/auth"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/period"
	"fintrack/internal/services"
)

const shutdownTimeout = 30 * time.Second

func main() {
	cli.LoadEnvFile()
	cfg, logger := cli.LoadAndValidateConfig((*config.Config).ValidateServer)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("Server error", "error", err)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(ctx context.Context, cfg *config.Config, logger *log.Logger) error {
	backendCfg, err := backend.FromAppConfig(cfg)
	if err != nil {
		return err
	}
	res, err := backend.NewFactory(logger).CreateBackend(ctx, backendCfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	loc := cfg.Location()
	analyticsCache := cache.NewLRUCache[any](cfg.AnalyticsCacheSize, cfg.AnalyticsCacheTTL)
	caches := cache.NewManager()
	caches.Register(analyticsCache)
	caches.StartCleanup(time.Minute)
	defer caches.Stop()

	resolver := period.NewResolver(loc, time.Now)
	analyticsSvc := services.NewAnalyticsService(analytics.NewAggregator(res.Store, resolver), analyticsCache)
	ledger := services.NewLedgerService(res.Store, res.Publisher(), analyticsSvc,
		log.NewStructuredLogger(logger.WithComponent(log.ComponentLedger)),
		services.LedgerConfig{
			TransferMode: services.TransferMode(cfg.TransferMode),
			WriteTimeout: cfg.WriteTimeout,
			Location:     loc,
		})
	accounts := services.NewAccountService(res.Store, analyticsSvc)

	srv := apphttp.NewServer(apphttp.Config{
		Addr:     net.JoinHostPort("", cfg.Port),
		Location: loc,
		RateLimit: ratelimit.Config{
			RequestsPerSecond: cfg.RateLimitRPS,
			Burst:             cfg.RateLimitBurst,
		},
	}, apphttp.Deps{
		Ledger:    ledger,
		Accounts:  accounts,
		Analytics: analyticsSvc,
		Auth: auth.NewAuthenticator(auth.Config{
			Secret: []byte(cfg.JWTSecret),
			Issuer: cfg.JWTIssuer,
		}),
		Logger: logger,
		Ready:  res.Store.Ping,
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting fintrack server",
			"addr", srv.Addr,
			"backend", cfg.DataBackend,
			"transfer_mode", cfg.TransferMode,
			"timezone", loc.String(),
			"events_enabled", res.Events != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}
