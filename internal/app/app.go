package app

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hcbookstore/storefront/internal/domain/checkout"
	"github.com/hcbookstore/storefront/internal/domain/payment"
	"github.com/hcbookstore/storefront/internal/handler"
	"github.com/hcbookstore/storefront/internal/session"
	pgstore "github.com/hcbookstore/storefront/internal/storage/postgres"
	"github.com/hcbookstore/storefront/internal/upstream"
	"github.com/hcbookstore/storefront/pkg/health"
	"github.com/hcbookstore/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("upstream", cfg.Upstream.BaseURL),
		zap.String("storage", cfg.Storage.Backend),
	)

	kv, closeKV, err := openStorage(ctx, lg, cfg.Storage)
	if err != nil {
		return err
	}
	defer closeKV()

	api, err := upstream.New(upstream.Config{
		BaseURL:         cfg.Upstream.BaseURL,
		Timeout:         cfg.Upstream.Timeout,
		BreakerFailures: cfg.Upstream.BreakerFailures,
		BreakerTimeout:  cfg.Upstream.BreakerTimeout,
	}, lg.Named("upstream"), m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create upstream client")
	}

	// Domain services.
	sessions, err := session.NewManager(kv, session.Deps{
		Catalog:      api,
		Directory:    api,
		SuggestDelay: cfg.Session.SuggestDelay,
		SuggestLimit: cfg.Session.SuggestLimit,
	}, cfg.Session.IdleTimeout, lg.Named("session"), m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create session manager")
	}
	checkoutSvc, err := checkout.NewService(api, api, api, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create checkout service")
	}
	var verifier *payment.Verifier
	if cfg.Payment.HashSecret != "" {
		verifier = payment.NewVerifier(cfg.Payment.HashSecret)
	} else {
		lg.Warn("Payment return signatures are not verified")
	}
	limiter := httpmiddleware.NewLimiter(httpmiddleware.RateLimitConfig{
		Max:    cfg.RateLimit.Max,
		Window: cfg.RateLimit.Window,
	})

	// HTTP handlers.
	h, err := handler.New(handler.Config{
		CookieName:     cfg.Session.CookieName,
		CookieMaxAge:   cfg.Session.CookieMaxAge,
		CookieSecure:   cfg.Session.Secure,
		RequestTimeout: cfg.Session.RequestTimeout,
	}, handler.Deps{
		Sessions: sessions,
		Catalog:  api,
		Checkout: checkoutSvc,
		Orders:   api,
		Auth:     api,
		Verifier: verifier,
		Throttle: limiter.Middleware(),
	}, m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create handler")
	}

	// Health check service.
	healthSvc := health.New(lg.Named("health"))
	healthSvc.AddReadinessCheck("storage", 5*time.Second, health.PingCheck(kv))
	healthSvc.Add(health.Readiness, "upstream", time.Second,
		health.Thresholds{Failure: 1, Success: 1}, api.Ready)
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Background workers stop with ctx.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return sessions.Run(gctx) })
	g.Go(func() error { return limiter.Run(gctx) })
	if pg, ok := kv.(*pgstore.KV); ok {
		g.Go(func() error { return purgeExpired(gctx, lg, pg, time.Hour) })
	}

	// Mux: health endpoints + API routes on one server.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", h.Router())

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      cfg.Session.RequestTimeout + 5*time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		// Requests inherit the base logger but not the shutdown signal.
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			otelhttp.NewMiddleware("storefront",
				otelhttp.WithTracerProvider(m.TracerProvider()),
				otelhttp.WithMeterProvider(m.MeterProvider()),
			),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", httpmiddleware.RequestIDHeader},
				ExposeHeaders:    []string{httpmiddleware.RequestIDHeader, "Retry-After"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
		),
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	if err := g.Wait(); err != nil {
		return errors.Wrap(err, "background worker")
	}
	lg.Info("Stopped", zap.Int("sessions", sessions.Len()))
	return nil
}
