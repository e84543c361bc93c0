package cmd

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/tezansahu/career-mentor-agent/internal/config"
	"github.com/tezansahu/career-mentor-agent/internal/log"
	"github.com/tezansahu/career-mentor-agent/internal/session"
	"github.com/tezansahu/career-mentor-agent/internal/web"
)

// Server timeout configuration. The write timeout must cover a full
// SSE response.
const (
	readHeaderTimeout = 10 * time.Second
	readTimeout       = 30 * time.Second
	writeTimeout      = 10 * time.Minute
	idleTimeout       = 2 * time.Minute
	shutdownTimeout   = 30 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// parseRateBurst reads MENTOR_RATE_BURST from the environment.
// Returns 0 (use default) if unset or invalid.
func parseRateBurst() int {
	v := os.Getenv("MENTOR_RATE_BURST")
	if v == "" {
		return 0
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// csrfSecret returns the configured HMAC secret, or generates an
// ephemeral one. Ephemeral secrets invalidate outstanding CSRF tokens
// on restart, which is acceptable for a single-process chat app.
func csrfSecret(cfg *config.Config, logger log.Logger) ([]byte, error) {
	if cfg.HMACSecret != "" {
		return []byte(cfg.HMACSecret), nil
	}

	secret := make([]byte, config.MinHMACSecretLength)
	if _, err := rand.Read(secret); err != nil {
		return nil, fmt.Errorf("generating CSRF secret: %w", err)
	}
	logger.Warn("HMAC_SECRET not set, using an ephemeral secret; CSRF tokens will not survive restarts")
	return secret, nil
}

// isDevAddr treats loopback listeners as development servers, which
// relaxes the Secure cookie flag so plain HTTP works.
func isDevAddr(addr string) bool {
	host := addr
	if i := strings.LastIndex(addr, ":"); i >= 0 {
		host = addr[:i]
	}
	return host == "" || host == "localhost" || host == "127.0.0.1" || host == "::1"
}

// logLevel reads MENTOR_LOG_LEVEL. Defaults to info.
func logLevel() slog.Level {
	switch strings.ToLower(os.Getenv("MENTOR_LOG_LEVEL")) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// runServe initializes and starts the HTTP server.
func runServe() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := log.New(log.Config{Level: logLevel()})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	secret, err := csrfSecret(cfg, logger)
	if err != nil {
		return err
	}

	store := session.NewStore(logger.With("component", "session"))

	server, err := web.NewServer(web.ServerConfig{
		Logger:       logger,
		SessionStore: store,
		Config:       cfg,
		CSRFSecret:   secret,
		IsDev:        isDevAddr(cfg.Addr),
		RateBurst:    parseRateBurst(),
	})
	if err != nil {
		return fmt.Errorf("creating web server: %w", err)
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           server,
		ReadHeaderTimeout: readHeaderTimeout,
		ReadTimeout:       readTimeout,
		WriteTimeout:      writeTimeout,
		IdleTimeout:       idleTimeout,
	}

	logger.Info("web server ready",
		"addr", cfg.Addr,
		"version", Version,
		"token_configured", cfg.Token != "",
		"search_configured", cfg.SerperAPIKey != "",
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down web server")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutting down server: %w", err)
		}
		<-errCh
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("web server: %w", err)
	}
}
