package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/noah-isme/pos-terminal/internal/backend"
	"github.com/noah-isme/pos-terminal/internal/catalog"
	"github.com/noah-isme/pos-terminal/internal/checkout"
	"github.com/noah-isme/pos-terminal/internal/config"
	"github.com/noah-isme/pos-terminal/internal/events"
	"github.com/noah-isme/pos-terminal/internal/health"
	"github.com/noah-isme/pos-terminal/internal/httpapi"
	"github.com/noah-isme/pos-terminal/internal/obs"
	"github.com/noah-isme/pos-terminal/internal/payment"
	"github.com/noah-isme/pos-terminal/internal/prefs"
	"github.com/noah-isme/pos-terminal/internal/scan"

	cartpkg "github.com/noah-isme/pos-terminal/internal/cart"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := obs.NewLogger(cfg.LogFormat, cfg.LogLevel).With().Str("env", cfg.AppEnv).Logger()

	if cfg.TracingEnabled {
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName: "pos-terminal",
			Endpoint:    cfg.OTLPEndpoint,
			Environment: cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	client := backend.NewClient(cfg.BackendURL, cfg.BackendAPIKey, backend.Options{
		Timeout: cfg.BackendTimeout,
	}, logger)

	catalogSvc := catalog.NewService(client, logger)
	warmCtx, cancelWarm := context.WithTimeout(context.Background(), 30*time.Second)
	if err := catalogSvc.Refresh(warmCtx); err != nil {
		logger.Error().Err(err).Msg("initial catalog refresh failed, continuing without snapshot")
	}
	cancelWarm()

	notices := events.NewBus()
	notices.Subscribe(events.SubscriberFunc(func(n events.Notice) error {
		logger.Debug().Str("code", n.Code).Str("severity", string(n.Severity)).Msg(n.Message)
		return nil
	}))

	popup := &httpapi.PopupBridge{Notices: notices, Logger: logger}
	orchestrator := &payment.Orchestrator{
		Gateway:     client,
		Popup:       popup,
		Currency:    cfg.Currency,
		MaxAttempts: cfg.VerifyMaxAttempts,
		Interval:    cfg.VerifyInterval,
		Logger:      logger,
	}

	operator := checkout.Operator{
		ID:         cfg.OperatorID,
		Name:       cfg.OperatorName,
		TerminalID: cfg.TerminalID,
		StoreID:    cfg.StoreID,
	}
	session := checkout.NewSession(operator, catalogSvc, client, orchestrator, notices, checkout.Config{
		TaxBps:         cfg.TaxBps,
		Currency:       cfg.CurrencySymbol,
		InvoiceDueDays: cfg.InvoiceDueDays,
	}, logger, nil)

	pipeline := scan.NewPipeline(catalogSvc, client, session, func(err error) bool {
		return errors.Is(err, cartpkg.ErrOutOfStock)
	}, notices, logger)

	store, err := prefs.Open(cfg.PrefsPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("open preferences")
	}

	metrics := obs.NewHTTPMetrics("pos", nil, nil)

	router := httpapi.NewRouter(httpapi.RouterConfig{
		Handler: &httpapi.Handler{
			Session: session,
			Scan:    pipeline,
			Catalog: catalogSvc,
			Prefs:   store,
			Popup:   popup,
			Logger:  logger,
		},
		Health: health.Handler{
			Checker:        readinessChecker{client: client, catalog: catalogSvc},
			BackendTimeout: cfg.BackendTimeout,
		},
		Notices:        notices,
		Metrics:        metrics,
		RequestLogger:  obs.RequestLogger{Logger: logger},
		TracingEnabled: cfg.TracingEnabled,
		AllowedOrigins: cfg.CORSAllowedOrigins,
		RateWindow:     time.Minute,
		RateMax:        600,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.CatalogRefresh > 0 {
		go func() {
			ticker := time.NewTicker(cfg.CatalogRefresh)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := catalogSvc.Refresh(ctx); err != nil {
						logger.Error().Err(err).Msg("catalog refresh")
					}
				}
			}
		}()
	}

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: router,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Msg("terminal starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	logger.Info().Msg("terminal stopped")
}

type readinessChecker struct {
	client  *backend.Client
	catalog *catalog.Service
}

func (c readinessChecker) PingBackend(ctx context.Context, timeout time.Duration) error {
	if c.client == nil {
		return errors.New("backend not configured")
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := c.client.ListCategories(ctx)
	return err
}

func (c readinessChecker) CatalogLoaded() bool {
	return c.catalog != nil && c.catalog.Loaded()
}
