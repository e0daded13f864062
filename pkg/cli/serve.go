package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nimburion/injurystore/pkg/api"
	"github.com/nimburion/injurystore/pkg/events"
	"github.com/nimburion/injurystore/pkg/health"
	"github.com/nimburion/injurystore/pkg/injury"
	"github.com/nimburion/injurystore/pkg/observability/metrics"
	"github.com/nimburion/injurystore/pkg/observability/tracing"
	"github.com/nimburion/injurystore/pkg/resilience"
	"github.com/nimburion/injurystore/pkg/server"
	kv "github.com/nimburion/injurystore/pkg/store"
	"github.com/nimburion/injurystore/pkg/store/factory"
	"github.com/nimburion/injurystore/pkg/version"
)

func (a *app) serveCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the injury collection over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := a.loadConfig(cmd.Flags())
			if err != nil {
				return err
			}
			info := version.Current(cfg.Service.Name)
			log.Info("starting injurystore", "version", info.String(), "storage_type", cfg.Storage.Type, "storage_key", cfg.Storage.Key)

			tp, err := tracing.NewTracerProvider(cmd.Context(), tracing.TracerConfig{
				ServiceName:    cfg.Service.Name,
				ServiceVersion: info.Version,
				Environment:    cfg.Service.Environment,
				Endpoint:       cfg.Observability.TracingEndpoint,
				SampleRate:     cfg.Observability.TracingSampleRate,
				Enabled:        cfg.Observability.TracingEnabled,
			})
			if err != nil {
				return fmt.Errorf("create tracer provider: %w", err)
			}
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := tp.Shutdown(shutdownCtx); err != nil {
					log.Warn("tracer provider shutdown failed", "error", err)
				}
			}()

			checks := health.NewRegistry()
			factoryOpts := []factory.Option{
				factory.WithMetrics(cfg.Observability.MetricsEnabled),
				factory.OnCircuitBreaker(func(cb *resilience.CircuitBreaker) {
					checks.Register(health.NewBreakerChecker("storage_circuit_breaker", cb))
				}),
			}
			if tp.Enabled() {
				factoryOpts = append(factoryOpts, factory.WithTracing(tp.Provider()))
			}
			backend, err := a.opts.OpenBackend(cfg, log, factoryOpts...)
			if err != nil {
				return err
			}
			defer closeQuietly(log, "store", backend)
			checks.Register(health.NewStoreChecker("storage", backend, 2*time.Second))

			hooks, pub, err := a.openEvents(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			if pub != nil {
				defer closeQuietly(log, "events", pub)
				checks.Register(health.NewPingChecker("events", pub, 2*time.Second))
			}

			s, err := injury.NewStore(backend, append([]injury.Option{
				injury.WithKey(cfg.Storage.Key),
				injury.WithLogger(log),
				injury.WithSerializedMutations(cfg.Store.SerializeMutations),
			}, hooks...)...)
			if err != nil {
				return err
			}

			routerOpts := api.RouterOptions{
				Logger:             log,
				MaxRequestSize:     cfg.HTTP.MaxRequestSize,
				APIVersion:         info.Version,
				Compression:        cfg.HTTP.CompressionEnabled,
				CompressionMinSize: cfg.HTTP.CompressionMinSize,
			}
			if cfg.HTTP.RateLimitRPS > 0 {
				routerOpts.RateLimiter = api.NewTokenBucketLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst)
			}
			if auth := cfg.HTTP.Auth; auth.Enabled {
				validator, err := api.NewHMACValidator(auth.JWTSecret, auth.Issuer, auth.Audience)
				if err != nil {
					return err
				}
				routerOpts.TokenValidator = validator
			}
			var metricsHandler http.Handler
			if cfg.Observability.MetricsEnabled {
				metricsHandler = metrics.NewRegistry(append(kv.Collectors(), events.Collectors()...)...).Handler()
				routerOpts.MetricsHandler = metricsHandler
			}
			if tp.Enabled() {
				routerOpts.TracerProvider = tp.Provider()
			}
			router := api.NewRouter(api.NewHandler(s, checks, log), routerOpts)

			runCtx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			g, gctx := errgroup.WithContext(runCtx)
			g.Go(func() error {
				return server.NewServer(server.ConfigFromHTTP(cfg.HTTP), router, log).Start(gctx)
			})
			if cfg.HTTP.ManagementPort > 0 {
				mgmtCfg := server.ConfigFromHTTP(cfg.HTTP)
				mgmtCfg.Port = cfg.HTTP.ManagementPort
				mgmt := server.NewManagementHandler(server.ManagementOptions{
					Checks:  checks,
					Metrics: metricsHandler,
					Version: info,
					Logger:  log,
				})
				g.Go(func() error {
					return server.NewServer(mgmtCfg, mgmt, log.With("server", "management")).Start(gctx)
				})
			}
			return g.Wait()
		},
	}
	cmd.Flags().Int("http-port", 0, "HTTP listen port (overrides http.port)")
	return cmd
}
