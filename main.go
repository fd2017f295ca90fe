package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/jmlarsen/flock/internal/domain"
	"github.com/jmlarsen/flock/internal/handler"
	"github.com/jmlarsen/flock/internal/mailer"
	"github.com/jmlarsen/flock/internal/repository/postgres"
	"github.com/jmlarsen/flock/internal/repository/sqlite"
	"github.com/jmlarsen/flock/internal/service"
	"github.com/jmlarsen/flock/internal/sessionstore"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// .env is a local development convenience only.
	if os.Getenv("APP_ENV") != "production" {
		if err := godotenv.Load(); err == nil {
			slog.Info("loaded environment from .env")
		}
	}

	port := envOrDefault("PORT", "8080")
	baseURL := envOrDefault("BASE_URL", "http://localhost:"+port)

	sessionSecret := os.Getenv("SESSION_SECRET")
	if sessionSecret == "" {
		slog.Error("SESSION_SECRET environment variable is required")
		os.Exit(1)
	}
	if len(sessionSecret) < 32 {
		slog.Error("SESSION_SECRET must be at least 32 characters for HMAC-SHA256 security")
		os.Exit(1)
	}

	// Default to secure cookies; disable only for local development.
	cookieSecure := os.Getenv("COOKIE_SECURE") != "false"

	bcryptCost := 12
	if v := os.Getenv("BCRYPT_COST"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil {
			slog.Error("invalid BCRYPT_COST", "error", err)
			os.Exit(1)
		}
		if parsed < 4 || parsed > 14 {
			slog.Error("BCRYPT_COST must be between 4 and 14", "value", parsed)
			os.Exit(1)
		}
		bcryptCost = parsed
	}

	communityLimit := 0
	if v := os.Getenv("COMMUNITY_FEED_LIMIT"); v != "" {
		parsed, err := strconv.Atoi(v)
		if err != nil || parsed < 0 {
			slog.Error("invalid COMMUNITY_FEED_LIMIT", "value", v)
			os.Exit(1)
		}
		communityLimit = parsed
	}

	ctx := context.Background()

	// DATABASE_URL selects Postgres; otherwise a local SQLite file.
	var db domain.Database
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		pg, err := postgres.New(ctx, dsn)
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		db = pg
		slog.Info("using postgres database")
	} else {
		lite, err := sqlite.New(envOrDefault("DATABASE_PATH", "flock.db"))
		if err != nil {
			slog.Error("failed to open database", "error", err)
			os.Exit(1)
		}
		db = lite
		slog.Info("using sqlite database")
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database migrations applied")

	// REDIS_URL selects a shared session store; otherwise in-process memory.
	var sessions domain.SessionStore
	if url := os.Getenv("REDIS_URL"); url != "" {
		redisStore, err := sessionstore.NewRedis(ctx, url)
		if err != nil {
			slog.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		sessions = redisStore
		slog.Info("using redis session store")
	} else {
		sessions = sessionstore.NewMemory()
		slog.Info("using in-memory session store")
	}

	var mail mailer.Mailer
	if apiKey := os.Getenv("SENDGRID_API_KEY"); apiKey != "" {
		mail = mailer.NewSendGrid(apiKey,
			envOrDefault("MAIL_FROM_NAME", "Flock"),
			envOrDefault("MAIL_FROM_ADDRESS", "noreply@example.com"),
			baseURL)
		slog.Info("using sendgrid mailer")
	} else {
		mail = &mailer.LogMailer{BaseURL: baseURL}
		slog.Info("using log mailer")
	}

	authService := service.NewAuthService(db.Users(), sessions, bcryptCost, 0)
	sessionManager := service.NewSessionManager(db.Users(), sessions, authService, sessionSecret, cookieSecure)
	userService := service.NewUserService(db.Users(), sessions)
	socialService := service.NewSocialService(db.Relationships(), db.Microposts(), db.Users(), communityLimit)
	micropostService := service.NewMicropostService(db.Microposts())

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, authService, sessionManager, userService, socialService, micropostService, mail)

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler.SecurityHeaders(mux),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20, // 1MB
	}

	// Graceful shutdown on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		slog.Info("server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	<-ctx.Done()
	slog.Info("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server shutdown error", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
