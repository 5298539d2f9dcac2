// Copyright (c) 2026 Jeremy Hahn
// Copyright (c) 2026 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-passkey/internal/config"
	"github.com/jeremyhahn/go-passkey/internal/rest"
	"github.com/jeremyhahn/go-passkey/pkg/health"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	"github.com/jeremyhahn/go-passkey/pkg/ratelimit"
	"github.com/jeremyhahn/go-passkey/pkg/storage/sqlite"
)

// serveCmd starts the passkey authentication server
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the authentication server",
	Long: `Start the passkey authentication server. The server loads its
configuration from the --config file (default /etc/passkey/config.yaml),
applies PASSKEY_* environment overrides, and serves the WebAuthn
ceremony endpoints until interrupted.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runServer(); err != nil {
			handleError(err)
		}
	},
}

func runServer() error {
	cfg, err := getConfig().loadServerConfig()
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Logging)
	slog.SetDefault(logger)

	logger.Info("Starting go-passkey server",
		"version", Version,
		"rp_id", cfg.WebAuthn.RPID,
		"storage", cfg.Storage.Backend)

	// Credential store
	var store passkey.Store
	var closeStore func() error
	switch cfg.Storage.Backend {
	case "sqlite":
		sqliteStore, err := sqlite.Open(cfg.Storage.Path)
		if err != nil {
			return fmt.Errorf("failed to open credential store: %w", err)
		}
		store = sqliteStore
		closeStore = sqliteStore.Close
	case "memory":
		store = passkey.NewMemoryStore()
		closeStore = func() error { return nil }
	default:
		return fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
	defer func() { _ = closeStore() }()

	// Token issuer. A missing secret is caught by config validation,
	// NewJWTIssuer double-checks.
	tokens, err := passkey.NewJWTIssuer(&passkey.JWTIssuerConfig{
		Secret:   []byte(cfg.Tokens.Secret),
		Issuer:   cfg.Tokens.Issuer,
		Audience: cfg.Tokens.Audience,
		Validity: cfg.Tokens.Validity,
	})
	if err != nil {
		return fmt.Errorf("failed to create token issuer: %w", err)
	}

	// Challenge store with periodic expiry sweep
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	challenges := passkey.NewMemoryChallengeStore()
	challenges.StartCleanup(ctx, time.Minute)

	// Ceremony service
	svc, err := passkey.NewService(passkey.ServiceParams{
		Config: &passkey.Config{
			RPID:                    cfg.WebAuthn.RPID,
			RPDisplayName:           cfg.WebAuthn.RPDisplayName,
			RPOrigins:               cfg.WebAuthn.RPOrigins,
			Timeout:                 cfg.WebAuthn.Timeout,
			UserVerification:        cfg.WebAuthn.UserVerification,
			AttestationPreference:   cfg.WebAuthn.AttestationPreference,
			ResidentKeyRequirement:  cfg.WebAuthn.ResidentKeyRequirement,
			AuthenticatorAttachment: cfg.WebAuthn.AuthenticatorAttachment,
		},
		Store:      store,
		Challenges: challenges,
		Tokens:     tokens,
	})
	if err != nil {
		return fmt.Errorf("failed to create passkey service: %w", err)
	}

	// Metrics
	if cfg.Metrics.Enabled {
		metrics.Enable()
		metrics.StartResourceCollector(ctx, 30*time.Second)
		startGaugeSweep(ctx, store, challenges, 30*time.Second)
	} else {
		metrics.Disable()
	}

	// Health checks
	checker := health.NewChecker()
	checker.RegisterCheck("store", storeCheck(store))

	// REST server
	server, err := rest.NewServer(rest.Config{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		ReadTimeout:   cfg.Server.ReadTimeout,
		WriteTimeout:  cfg.Server.WriteTimeout,
		TLSCertFile:   cfg.Server.TLSCertFile,
		TLSKeyFile:    cfg.Server.TLSKeyFile,
		EnableMetrics: cfg.Metrics.Enabled,
		MetricsPath:   cfg.Metrics.Path,
		Version:       Version,
	}, svc, tokens, logger)
	if err != nil {
		return fmt.Errorf("failed to create REST server: %w", err)
	}
	server.SetHealthChecker(checker)

	if cfg.RateLimit.Enabled {
		limiter := ratelimit.New(&ratelimit.Config{
			Enabled:           true,
			RequestsPerMinute: cfg.RateLimit.RequestsPerMin,
			Burst:             cfg.RateLimit.Burst,
		})
		defer limiter.Stop()
		server.SetRateLimiter(limiter)
	}

	if err := server.Start(); err != nil {
		return err
	}
	logger.Info("Server started", "port", server.Port())

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("Shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(shutdownCtx); err != nil {
		return err
	}

	logger.Info("Server stopped")
	return nil
}

// storeCounter is implemented by stores that can report row counts for
// the population gauges.
type storeCounter interface {
	CountUsers(ctx context.Context) (int, error)
	CountCredentials(ctx context.Context) (int, error)
}

// collectStoreGauges refreshes the pending-challenge, user, and credential
// population gauges from the live stores.
func collectStoreGauges(ctx context.Context, store passkey.Store, challenges *passkey.MemoryChallengeStore) {
	metrics.SetChallengesActive(challenges.Count())

	counter, ok := store.(storeCounter)
	if !ok {
		return
	}
	if users, err := counter.CountUsers(ctx); err == nil {
		metrics.SetUsersTotal(users)
	}
	if creds, err := counter.CountCredentials(ctx); err == nil {
		metrics.SetCredentialsTotal(creds)
	}
}

// startGaugeSweep refreshes the population gauges on an interval until the
// context is cancelled.
func startGaugeSweep(ctx context.Context, store passkey.Store, challenges *passkey.MemoryChallengeStore, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		collectStoreGauges(ctx, store, challenges)
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				collectStoreGauges(ctx, store, challenges)
			}
		}
	}()
}

// storeCheck verifies the credential store answers queries.
func storeCheck(store passkey.Store) health.CheckFunc {
	return func(ctx context.Context) health.CheckResult {
		_, err := store.CredentialExists(ctx, "health-check-probe")
		if err != nil {
			return health.CheckResult{
				Name:   "store",
				Status: health.StatusUnhealthy,
				Error:  err.Error(),
			}
		}
		return health.CheckResult{
			Name:    "store",
			Status:  health.StatusHealthy,
			Message: "Credential store reachable",
		}
	}
}

// newLogger builds the slog logger from the logging config.
func newLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "text" {
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
