package app

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/xenking/storefront/internal/domain/cart"
	"github.com/xenking/storefront/internal/domain/catalog"
	"github.com/xenking/storefront/internal/domain/order"
	"github.com/xenking/storefront/internal/domain/user"
	"github.com/xenking/storefront/internal/handler"
	"github.com/xenking/storefront/internal/logging"
	"github.com/xenking/storefront/internal/mailer"
	"github.com/xenking/storefront/internal/repository"
	"github.com/xenking/storefront/pkg/health"
	"github.com/xenking/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := repository.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := repository.RunMigrations(ctx, pool, lg); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	metrics, err := newMetrics(m.MeterProvider())
	if err != nil {
		return errors.Wrap(err, "create metrics")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.Add(health.Readiness, "postgres", 5*time.Second, health.PingCheck(pool), health.FailureThreshold(2))
	healthSvc.Add(health.Liveness, "goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Add(health.Liveness, "gc-pause", time.Second, health.GCMaxPauseCheck(time.Second), health.FailureThreshold(3))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Repositories.
	productRepo := repository.NewProductRepository(pool)
	categoryRepo := repository.NewCategoryRepository(pool)
	cartRepo := repository.NewCartRepository(pool)
	orderRepo := repository.NewOrderRepository(pool)
	userRepo := repository.NewUserRepository(pool)

	// Domain services.
	loggers := logging.New(lg)
	notifications := mailer.NewNotifications(newSender(cfg.Mail, lg), cfg.Mail.From, cfg.BaseURL)
	catalogSvc := catalog.NewService(productRepo, categoryRepo, loggers)
	cartSvc := cart.NewService(cartRepo, productRepo, loggers)
	orderSvc := order.NewService(cartSvc, orderRepo, notifications, loggers)
	userSvc := user.NewService(userRepo, notifications, loggers)

	if cfg.CartExpiry.Interval > 0 {
		expirer := cart.NewExpirer(metrics.countExpired(cartRepo), cfg.CartExpiry.MaxAge, loggers.Cart)
		go expirer.Run(ctx, cfg.CartExpiry.Interval)
		lg.Info("Cart expiry sweep scheduled",
			zap.Duration("interval", cfg.CartExpiry.Interval),
			zap.Duration("max_age", cfg.CartExpiry.MaxAge),
		)
	}

	// HTTP handlers.
	sessions, err := handler.NewSessions(handler.SessionConfig{
		Secret:     cfg.Auth.Secret,
		TTL:        cfg.Auth.TTL,
		CookieName: cfg.Auth.CookieName,
		Secure:     cfg.Auth.SecureCookie,
	})
	if err != nil {
		return errors.Wrap(err, "create sessions")
	}
	h := handler.NewHandler(
		handler.HandlerConfig{
			CatalogPageSize: cfg.Catalog.PageSize,
			AdminPageSize:   cfg.Catalog.AdminPageSize,
			Observer:        metrics,
		},
		handler.Services{
			Catalog: catalogSvc,
			Carts:   cartSvc,
			Orders:  orderSvc,
			Users:   userSvc,
		},
		sessions,
		loggers,
	)

	// Router: health endpoints + storefront, back office and API routes.
	router := mux.NewRouter()
	router.Use(
		mux.MiddlewareFunc(httpmiddleware.Instrument("storefront", m)),
		mux.MiddlewareFunc(httpmiddleware.LogRequests()),
	)
	router.HandleFunc("/livez", healthSvc.LiveEndpoint).Methods(http.MethodGet)
	router.HandleFunc("/readyz", healthSvc.ReadyEndpoint).Methods(http.MethodGet)
	h.Register(router)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(router,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				PathPrefix:       "/api/",
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
				Skip:   isProbe,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.AuthMax,
				Window: cfg.RateLimit.AuthWindow,
				Skip:   func(r *http.Request) bool { return !isCredentialPost(r) },
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
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
	return nil
}

func isProbe(r *http.Request) bool {
	return r.URL.Path == "/livez" || r.URL.Path == "/readyz"
}

// isCredentialPost reports form posts that check or set a password. They get
// a stricter per-client limit.
func isCredentialPost(r *http.Request) bool {
	if r.Method != http.MethodPost {
		return false
	}
	switch r.URL.Path {
	case "/login", "/register", "/forgot-password":
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/reset-password/")
}

// newSender returns the configured mail provider. LoadConfig has already
// rejected unknown providers and missing credentials.
func newSender(cfg MailConfig, lg *zap.Logger) mailer.Sender {
	switch strings.ToLower(cfg.Provider) {
	case "postmark":
		return mailer.NewPostmarkSender(cfg.PostmarkToken)
	case "sendgrid":
		return mailer.NewSendgridSender(cfg.SendgridKey)
	default:
		return mailer.NewLogSender(lg.Named("mail"))
	}
}
