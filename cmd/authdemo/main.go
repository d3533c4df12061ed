package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samvad-hq/samvad-request/internal/app"
	"github.com/samvad-hq/samvad-request/internal/config"
	"github.com/samvad-hq/samvad-request/internal/demoserver"
	"github.com/samvad-hq/samvad-request/internal/logger"
	"github.com/samvad-hq/samvad-request/pkg/credentials"
	"github.com/samvad-hq/samvad-request/pkg/profiles"
)

// authdemo starts the demo auth backend, seeds an expired session and fires a
// concurrent burst at its protected routes. Exactly one refresh is expected.
func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "authdemo failed: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load(os.Args[1:])
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	log, err := logger.Init(cfg)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	secret := os.Getenv("DEMO_JWT_SECRET")
	if secret == "" {
		secret = "samvad-demo-secret"
	}
	demo, err := demoserver.New(demoserver.Options{
		Secret:    []byte(secret),
		AccessTTL: time.Minute,
		Users:     map[string]string{"demo": "demo"},
	}, log)
	if err != nil {
		return fmt.Errorf("init demo server: %w", err)
	}

	ln, err := net.Listen("tcp", cfg.DemoAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.DemoAddr, err)
	}
	serveErr := make(chan error, 1)
	go func() { serveErr <- demo.Serve(ln) }()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := demo.Shutdown(shutdownCtx); err != nil {
			logger.ErrorObj("demo server shutdown failed", "error", err)
		}
	}()

	profile, err := profiles.Normalize(profiles.Profile{
		ID:                     "authdemo",
		BaseURL:                "http://" + ln.Addr().String(),
		NeedHeaderToken:        true,
		EnableRefreshToken:     true,
		RefreshTokenRetryCount: 1,
		Message:                true,
		Refresh:                profiles.RefreshConfig{Type: profiles.RefreshTypeEndpoint, URL: "/refreshToken"},
		Credentials:            profiles.CredentialsConfig{Store: "memory"},
	})
	if err != nil {
		return err
	}

	runner, err := app.NewRunnerForProfile(ctx, cfg, profile, log)
	if err != nil {
		return err
	}

	expired, err := demo.Issue("demo", -time.Second)
	if err != nil {
		return err
	}
	if err := runner.Seed(credentials.Tokens{
		AccessToken:  expired.Token,
		RefreshToken: expired.RefreshToken,
		TokenType:    expired.TokenType,
	}); err != nil {
		return fmt.Errorf("seed session: %w", err)
	}

	report, runErr := runner.Run(ctx)
	logger.InfoObj("authdemo finished", "authdemo_result", map[string]any{
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
		"refreshes": demo.Refreshes(),
		"elapsed":   report.Elapsed.String(),
	})

	select {
	case err := <-serveErr:
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("demo server: %w", err)
		}
	default:
	}
	return runErr
}
