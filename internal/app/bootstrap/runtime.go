package bootstrap

import (
	"context"
	"crypto/tls"
	"database/sql"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/wolfman30/rehab-clinic-platform/internal/appointments"
	"github.com/wolfman30/rehab-clinic-platform/internal/booking"
	"github.com/wolfman30/rehab-clinic-platform/internal/chat"
	appconfig "github.com/wolfman30/rehab-clinic-platform/internal/config"
	"github.com/wolfman30/rehab-clinic-platform/internal/leads"
	"github.com/wolfman30/rehab-clinic-platform/internal/notify"
	"github.com/wolfman30/rehab-clinic-platform/internal/sessions"
	"github.com/wolfman30/rehab-clinic-platform/pkg/logging"
)

// BuildRedisClient returns a configured Redis client or nil when disabled.
// When verify is true, a ping is issued and failures return nil.
func BuildRedisClient(ctx context.Context, cfg *appconfig.Config, logger *logging.Logger, verify bool) *redis.Client {
	if cfg == nil || strings.TrimSpace(cfg.RedisAddr) == "" {
		return nil
	}
	if logger == nil {
		logger = logging.Default()
	}
	if ctx == nil {
		ctx = context.Background()
	}

	redisOptions := &redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	}
	if cfg.RedisTLS {
		redisOptions.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(redisOptions)
	if !verify {
		return client
	}
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis not available", "error", err)
		_ = client.Close()
		return nil
	}
	return client
}

// BuildSessionStore keeps booking sessions in Redis when a client is
// available and in process memory otherwise.
func BuildSessionStore(redisClient *redis.Client, cfg *appconfig.Config, logger *logging.Logger) sessions.Store {
	if logger == nil {
		logger = logging.Default()
	}
	ttl := sessions.DefaultTTL
	if cfg != nil && cfg.SessionTTL > 0 {
		ttl = cfg.SessionTTL
	}
	if redisClient == nil {
		logger.Warn("booking sessions kept in memory; they will not survive a restart or be shared between instances")
		return sessions.NewMemoryStore(ttl)
	}
	return sessions.NewRedisStore(redisClient, ttl)
}

// BuildChatTranscript mirrors BuildSessionStore for chat history.
func BuildChatTranscript(redisClient *redis.Client) chat.TranscriptStore {
	if redisClient == nil {
		return chat.NewMemoryTranscript()
	}
	return chat.NewRedisTranscript(redisClient)
}

// Database bundles the two handles onto one Postgres database: a pgx pool for
// the repositories and a database/sql view for the audit log and dashboard.
type Database struct {
	Pool *pgxpool.Pool
	SQL  *sql.DB
}

// Close releases both handles.
func (d *Database) Close() {
	if d == nil {
		return
	}
	if d.SQL != nil {
		_ = d.SQL.Close()
	}
	if d.Pool != nil {
		d.Pool.Close()
	}
}

// BuildDatabase connects to DATABASE_URL. It returns nil, nil when no URL is
// configured so the service can run on in-memory repositories.
func BuildDatabase(ctx context.Context, cfg *appconfig.Config) (*Database, error) {
	if cfg == nil || strings.TrimSpace(cfg.DatabaseURL) == "" {
		return nil, nil
	}
	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: connect postgres: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("bootstrap: ping postgres: %w", err)
	}
	return &Database{Pool: pool, SQL: stdlib.OpenDBFromPool(pool)}, nil
}

// BuildAppointmentRepository picks Postgres when available.
func BuildAppointmentRepository(db *Database) appointments.Repository {
	if db == nil || db.Pool == nil {
		return appointments.NewInMemoryRepository()
	}
	return appointments.NewPostgresRepository(db.Pool)
}

// BuildLeadsRepository picks Postgres when available.
func BuildLeadsRepository(db *Database) leads.Repository {
	if db == nil || db.Pool == nil {
		return leads.NewInMemoryRepository()
	}
	return leads.NewPostgresRepository(db.Pool)
}

// BuildEmailSender selects the email provider named by EMAIL_PROVIDER. A
// provider that is selected but not configured falls back to the stub sender.
func BuildEmailSender(cfg *appconfig.Config, sesClient *sesv2.Client, logger *logging.Logger) notify.EmailSender {
	if logger == nil {
		logger = logging.Default()
	}
	provider := ""
	if cfg != nil {
		provider = cfg.EmailProvider
	}

	switch provider {
	case "sendgrid":
		if sender := notify.NewSendGridSender(notify.SendGridConfig{
			APIKey:    cfg.SendGridAPIKey,
			FromEmail: cfg.SendGridFromEmail,
			FromName:  cfg.SendGridFromName,
		}, logger); sender != nil {
			logger.Info("email provider configured", "provider", "sendgrid")
			return sender
		}
		logger.Warn("sendgrid selected but SENDGRID_API_KEY is empty; using stub sender")
	case "ses":
		if sender := notify.NewSESSender(sesClient, notify.SESConfig{
			FromEmail:        cfg.SESFromEmail,
			FromName:         cfg.SESFromName,
			ConfigurationSet: cfg.SESConfigurationSet,
		}, logger); sender != nil {
			logger.Info("email provider configured", "provider", "ses")
			return sender
		}
		logger.Warn("ses selected but no client is available; using stub sender")
	}
	return notify.NewStubEmailSender(logger)
}

// BuildGateway returns where completed bookings are submitted: the local
// appointments service, or a remote appointments API in "remote" mode.
func BuildGateway(cfg *appconfig.Config, local *appointments.Service, logger *logging.Logger) (booking.Gateway, error) {
	if cfg == nil || cfg.GatewayMode == "" || cfg.GatewayMode == "local" {
		if local == nil {
			return nil, fmt.Errorf("bootstrap: local gateway requires the appointments service")
		}
		return local, nil
	}
	if cfg.GatewayMode != "remote" {
		return nil, fmt.Errorf("bootstrap: unknown GATEWAY_MODE %q", cfg.GatewayMode)
	}
	if strings.TrimSpace(cfg.GatewayBaseURL) == "" {
		return nil, fmt.Errorf("bootstrap: GATEWAY_BASE_URL is required in remote mode")
	}
	return appointments.NewClient(cfg.GatewayBaseURL, cfg.GatewayTimeout, logger), nil
}
