package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"pwreset/internal/auth"
	"pwreset/internal/config"
	"pwreset/internal/database"
	"pwreset/internal/hasher"
	"pwreset/internal/logging"
	"pwreset/internal/mailer"
	"pwreset/internal/session"
	"pwreset/internal/store"
	"pwreset/internal/web"
)

func init() {
	// Load environment variables from .env file.
	if err := godotenv.Load(); err != nil {
		log.Println("Warning: .env file not found")
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	logger, err := logging.New(os.Stdout, cfg.LogFormat, cfg.LogLevel)
	if err != nil {
		log.Fatalf("Logger error: %v", err)
	}
	if err := run(cfg, logger); err != nil {
		logger.Error(context.Background(), "server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *logging.SlogLogger) error {
	// Create a context for initialization.
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	users, closeUsers, err := openUserStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeUsers()

	sessions, closeSessions, err := openSessionStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeSessions()

	h, err := hasher.NewBcrypt(cfg.BcryptCost)
	if err != nil {
		return err
	}

	var sender mailer.Sender
	if cfg.SMTPConfigured() {
		sender, err = mailer.NewSMTPSender(mailer.SMTPConfig{
			Server:   cfg.SMTPServer,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
			From:     cfg.MailFrom,
		})
		if err != nil {
			return err
		}
	} else {
		logger.Warn(ctx, "SMTP not configured, emails will only be logged (bodies at debug level)")
		sender = mailer.NewLogSender(logger)
	}

	codec, err := session.NewCodec(cfg.SessionSecret, cfg.SessionTTL)
	if err != nil {
		return err
	}
	gate := auth.NewGate(users, h, sessions, cfg.SessionTTL, logger)
	resets := auth.NewResetManager(users, h, sender, gate, cfg.ResetTokenTTL, logger)
	defer resets.Wait()

	secureCookies := strings.HasPrefix(cfg.BaseURL, "https://")
	srv, err := web.NewServer(gate, resets, session.NewManager(sessions, codec, cfg.SessionTTL, secureCookies), logger, web.Options{
		BaseURL:   cfg.BaseURL,
		StaticDir: cfg.StaticDir,
	})
	if err != nil {
		return err
	}

	addr := ":" + cfg.Port
	httpServer := &http.Server{
		Handler:      srv.Handler(logger.StdWriter()),
		Addr:         addr,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info(context.Background(), "server listening", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	// Wait for interrupt signals for graceful shutdown.
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return err
	case <-quit:
	}
	logger.Info(context.Background(), "shutting down server")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(ctxShutdown); err != nil {
		return err
	}
	logger.Info(context.Background(), "server exited gracefully")
	return nil
}

func openUserStore(ctx context.Context, cfg *config.Config, logger logging.Logger) (store.UserStore, func(), error) {
	if cfg.StoreDriver == "memory" {
		logger.Warn(ctx, "using in-memory user store, accounts are lost on restart")
		return store.NewMemoryStore(), func() {}, nil
	}

	client, err := database.ConnectMongoDB(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	logger.Info(ctx, "connected to MongoDB", "database", cfg.DatabaseName)

	col := database.GetUserCollection(client, cfg.DatabaseName)
	if err := database.EnsureUserIndexes(ctx, col); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, err
	}
	closeFn := func() {
		if err := client.Disconnect(context.Background()); err != nil {
			logger.Error(context.Background(), "error disconnecting from MongoDB", "error", err)
		}
	}
	return store.NewMongoStore(col), closeFn, nil
}

func openSessionStore(ctx context.Context, cfg *config.Config, logger logging.Logger) (session.Store, func(), error) {
	if cfg.RedisAddr == "" {
		logger.Warn(ctx, "REDIS_ADDR not set, sessions are kept in memory")
		return session.NewMemoryStore(), func() {}, nil
	}

	rs := session.NewRedisStore(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err := rs.Ping(ctx); err != nil {
		_ = rs.Close()
		return nil, nil, err
	}
	logger.Info(ctx, "connected to Redis", "addr", cfg.RedisAddr)
	closeFn := func() {
		if err := rs.Close(); err != nil {
			logger.Error(context.Background(), "error closing Redis", "error", err)
		}
	}
	return rs, closeFn, nil
}
