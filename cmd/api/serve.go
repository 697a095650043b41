package main

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"
	"golang.org/x/crypto/bcrypt"

	"github.com/redmonkez12/contacts-api/internal/auth"
	"github.com/redmonkez12/contacts-api/internal/config"
	"github.com/redmonkez12/contacts-api/internal/contact"
	"github.com/redmonkez12/contacts-api/internal/database"
	"github.com/redmonkez12/contacts-api/internal/email"
	httpServer "github.com/redmonkez12/contacts-api/internal/http"
	"github.com/redmonkez12/contacts-api/internal/logging"
	"github.com/redmonkez12/contacts-api/internal/ratelimit"
	"github.com/redmonkez12/contacts-api/internal/user"
)

func serve(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger := logging.NewLogger(cfg.Server.IsDevelopment())
	logger.Info("starting application",
		"env", cfg.Server.Env,
		"port", cfg.Server.Port,
		"token_format", cfg.Auth.TokenFormat,
	)
	if cfg.Auth.TestMode {
		logger.Warn("auth test mode enabled: verification and reset tokens are fixed")
	}

	db, err := openDB(ctx, cfg.Database)
	if err != nil {
		return err
	}
	defer db.Close()

	if cfg.Database.AutoMigrate {
		if err := database.Migrate(ctx, db.DB); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	redisClient, err := initRedis(ctx, cfg.Redis)
	if err != nil {
		return fmt.Errorf("failed to initialize Redis: %w", err)
	}
	defer redisClient.Close()

	rateLimiter := ratelimit.NewLimiter(redisClient, ratelimit.Config{
		Enabled: cfg.RateLimit.Enabled,
		Window:  cfg.RateLimit.Window,
		Limits: map[string]int{
			ratelimit.PurposeRegister:       cfg.RateLimit.RegisterLimit,
			ratelimit.PurposeLogin:          cfg.RateLimit.LoginLimit,
			ratelimit.PurposeForgotPassword: cfg.RateLimit.ForgotPasswordLimit,
		},
		EmailCooldown: cfg.RateLimit.EmailCooldown,
	})

	accessTokens, refreshTokens, err := auth.NewTokenServices(cfg.Auth.TokenFormat, cfg.Auth.AccessTokenSecret, cfg.Auth.RefreshTokenSecret)
	if err != nil {
		return fmt.Errorf("failed to initialize token services: %w", err)
	}
	issuer := auth.NewIssuer(accessTokens, refreshTokens, cfg.Auth.AccessTokenTTL, cfg.Auth.RefreshTokenTTL)
	cookies := auth.NewCookieManager([]byte(cfg.Auth.CookieSecret), cfg.Server.IsProduction(), issuer.AccessTTL(), issuer.RefreshTTL())

	mailer := email.NewAsync(newEmailSender(cfg.Email, logger), cfg.Email.SendTimeout, logger)
	defer drainMailer(mailer, cfg.Server.ShutdownTimeout, logger)

	userRepo := user.NewRepository(db)

	authService := auth.NewService(
		userRepo,
		issuer,
		auth.NewArgon2Hasher(auth.DefaultArgon2Params),
		auth.NewBcryptHasher(bcrypt.DefaultCost),
		auth.NewTokenGenerator(cfg.Auth.TestMode),
		auth.FirstUserAdmin{},
		mailer,
		logger,
		auth.Config{
			ResetTokenTTL:  cfg.Auth.ResetTokenTTL,
			FrontendOrigin: cfg.Email.FrontendOrigin,
		},
	)
	contactService := contact.NewService(contact.NewRepository(db), logger)

	router := httpServer.NewRouter(cfg, httpServer.Handlers{
		Auth:           auth.NewHandler(authService, cookies, rateLimiter),
		AuthMiddleware: auth.NewMiddleware(issuer, cookies, userRepo),
		Contacts:       contact.NewHandler(contactService),
		RateLimiter:    rateLimiter,
		Health: []httpServer.HealthCheck{
			{Name: "database", Check: db.PingContext},
			{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		},
	}, logger)

	server := httpServer.NewServer(
		":"+cfg.Server.Port,
		router,
		cfg.Server.ReadTimeout,
		cfg.Server.WriteTimeout,
		logger,
	)

	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- server.Start()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
	}

	return nil
}

// drainMailer waits for in-flight emails, giving up after timeout
func drainMailer(mailer *email.Async, timeout time.Duration, logger *logging.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := mailer.WaitContext(ctx); err != nil {
		logger.Warn("abandoning undelivered emails", "error", err)
	}
}

// newEmailSender delivers over SMTP when a host is configured and only logs otherwise
func newEmailSender(cfg config.EmailConfig, logger *logging.Logger) email.Sender {
	if cfg.SMTPHost == "" {
		logger.Warn("SMTP_HOST not set, emails will be logged instead of sent")
		return email.NewLogSender(logger)
	}
	return email.NewService(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUser, cfg.SMTPPassword, cfg.From)
}

func openDB(ctx context.Context, cfg config.DatabaseConfig) (*bun.DB, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	db, err := database.Open(connectCtx, cfg.ConnectionString(), database.PoolConfig{
		MaxOpenConns: cfg.MaxOpenConns,
		MaxIdleConns: cfg.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}

// initRedis initializes the Redis connection and returns a Redis client
func initRedis(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return client, nil
}
