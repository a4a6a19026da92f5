package main

import (
	"context"
	"database/sql"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/rehab-clinic-platform/cmd/mainconfig"
	"github.com/wolfman30/rehab-clinic-platform/internal/api/router"
	"github.com/wolfman30/rehab-clinic-platform/internal/app/bootstrap"
	"github.com/wolfman30/rehab-clinic-platform/internal/appointments"
	"github.com/wolfman30/rehab-clinic-platform/internal/audit"
	"github.com/wolfman30/rehab-clinic-platform/internal/booking"
	"github.com/wolfman30/rehab-clinic-platform/internal/catalog"
	"github.com/wolfman30/rehab-clinic-platform/internal/chat"
	appconfig "github.com/wolfman30/rehab-clinic-platform/internal/config"
	"github.com/wolfman30/rehab-clinic-platform/internal/http/handlers"
	httpmiddleware "github.com/wolfman30/rehab-clinic-platform/internal/http/middleware"
	"github.com/wolfman30/rehab-clinic-platform/internal/leads"
	"github.com/wolfman30/rehab-clinic-platform/internal/notify"
	"github.com/wolfman30/rehab-clinic-platform/internal/observability/metrics"
	"github.com/wolfman30/rehab-clinic-platform/internal/sessions"
	"github.com/wolfman30/rehab-clinic-platform/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("No .env file found, using environment variables")
	}

	// Load configuration
	cfg := appconfig.Load()

	// Initialize logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("starting rehab-clinic-platform API server",
		"env", cfg.Env,
		"port", cfg.Port,
		"gateway_mode", cfg.GatewayMode,
	)

	ctx := context.Background()
	application, err := buildApp(ctx, cfg, logger, prometheus.DefaultRegisterer, prometheus.DefaultGatherer)
	if err != nil {
		logger.Error("failed to initialize", "error", err)
		os.Exit(1)
	}
	defer application.Close()

	// Create HTTP server
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      application.Handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.GatewayTimeout + 15*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		application.Close()
		os.Exit(1)
	}

	logger.Info("server stopped")
}

// app is the wired HTTP surface plus the resources it owns.
type app struct {
	Handler http.Handler
	closers []func()
}

// Close releases everything buildApp opened, in reverse order.
func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func buildApp(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, reg prometheus.Registerer, gatherer prometheus.Gatherer) (*app, error) {
	a := &app{}
	c := catalog.Default()

	redisClient := bootstrap.BuildRedisClient(ctx, cfg, logger, true)
	if redisClient != nil {
		a.closers = append(a.closers, func() { _ = redisClient.Close() })
	}

	db, err := bootstrap.BuildDatabase(ctx, cfg)
	if err != nil {
		a.Close()
		return nil, err
	}
	if db != nil {
		a.closers = append(a.closers, db.Close)
	} else {
		logger.Warn("DATABASE_URL not set; appointments and contact messages are kept in memory")
	}

	notifier := notify.NewService(bootstrap.BuildEmailSender(cfg, sesClient(ctx, cfg, logger), logger), notify.Config{
		ClinicName: cfg.ClinicName,
		Recipients: cfg.ClinicNotifyEmails,
		Location:   cfg.Location(),
	}, logger)

	var auditSvc *audit.Service
	if db != nil {
		auditSvc = audit.NewService(db.SQL)
	}

	apptOpts := []appointments.ServiceOption{appointments.WithNotifier(notifier)}
	if auditSvc != nil {
		apptOpts = append(apptOpts, appointments.WithAuditor(auditSvc))
	}
	apptSvc := appointments.NewService(bootstrap.BuildAppointmentRepository(db), c, logger, apptOpts...)

	gateway, err := bootstrap.BuildGateway(cfg, apptSvc, logger)
	if err != nil {
		a.Close()
		return nil, err
	}

	bookingMetrics := metrics.NewBookingMetrics(reg)
	manager := sessions.NewManager(
		bootstrap.BuildSessionStore(redisClient, cfg, logger),
		c,
		gateway,
		sessions.WithMachineOptions(
			booking.WithLocation(cfg.Location()),
			booking.WithAutoAdvance(cfg.AutoAdvance),
		),
		sessions.WithMetrics(bookingMetrics),
		sessions.WithLogger(logger),
		sessions.WithSubmitLockTTL(cfg.GatewayTimeout+5*time.Second),
	)

	var leadsAuditor leads.Auditor
	if auditSvc != nil {
		leadsAuditor = auditSvc
	}

	var limiter *httpmiddleware.RateLimiter
	if cfg.RateLimitRPS > 0 {
		limiter = httpmiddleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
		a.closers = append(a.closers, limiter.Stop)
	}

	apptHandler := appointments.NewHandler(apptSvc, logger,
		appointments.WithPatientAccess(cfg.AdminJWTSecret, patientPortalURL(cfg), patientAccessTTL, notifier))

	routerCfg := &router.Config{
		Logger:             logger,
		Health:             handlers.NewHealthHandler(healthChecks(redisClient, db)),
		BookingSessions:    handlers.NewBookingSessionHandler(manager, logger),
		Catalog:            handlers.NewCatalogHandler(c),
		Appointments:       apptHandler,
		LeadsHandler:       leads.NewHandler(bootstrap.BuildLeadsRepository(db), notifier, leadsAuditor, logger),
		Chat:               chat.NewHandler(bootstrap.BuildChatTranscript(redisClient), cfg.CORSAllowedOrigins, logger),
		Dashboard:          handlers.NewAdminDashboardHandler(sqlDB(db), gatherer, logger),
		AdminAuthSecret:    cfg.AdminJWTSecret,
		MetricsHandler:     promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}),
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
		FormLimiter:        limiter,
	}
	if auditSvc != nil {
		routerCfg.Audit = audit.NewHandler(auditSvc, logger)
	}
	if cfg.AdminJWTSecret == "" {
		logger.Warn("ADMIN_JWT_SECRET not set; admin routes are disabled")
	}

	a.Handler = router.New(routerCfg)
	return a, nil
}

const patientAccessTTL = 24 * time.Hour

func patientPortalURL(cfg *appconfig.Config) string {
	return strings.TrimRight(cfg.PublicBaseURL, "/") + "/my-appointments"
}

// sesClient is only built when SES is the selected provider so that other
// setups never resolve AWS credentials.
func sesClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger) *sesv2.Client {
	if cfg.EmailProvider != "ses" {
		return nil
	}
	awsCfg, err := mainconfig.LoadAWSConfig(ctx, cfg)
	if err != nil {
		logger.Error("failed to load AWS config", "error", err)
		return nil
	}
	return mainconfig.NewSESClient(awsCfg, cfg)
}

func healthChecks(redisClient *redis.Client, db *bootstrap.Database) map[string]handlers.HealthCheck {
	checks := map[string]handlers.HealthCheck{}
	if redisClient != nil {
		checks["redis"] = func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}
	}
	if db != nil && db.Pool != nil {
		checks["postgres"] = func(ctx context.Context) error {
			return db.Pool.Ping(ctx)
		}
	}
	return checks
}

func sqlDB(db *bootstrap.Database) *sql.DB {
	if db == nil {
		return nil
	}
	return db.SQL
}
