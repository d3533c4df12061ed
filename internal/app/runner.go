package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/samvad-hq/samvad-request/internal/burst"
	"github.com/samvad-hq/samvad-request/internal/config"
	"github.com/samvad-hq/samvad-request/internal/logger"
	"github.com/samvad-hq/samvad-request/pkg/credentials"
	"github.com/samvad-hq/samvad-request/pkg/metrics"
	"github.com/samvad-hq/samvad-request/pkg/notify"
	"github.com/samvad-hq/samvad-request/pkg/profiles"
	"github.com/samvad-hq/samvad-request/pkg/refresh"
)

// Runner builds one request client from a profile, fans its notifications out
// to the configured sinks and fires bursts of concurrent requests through it.
type Runner struct {
	cfg     *config.Config
	bundle  *profiles.Bundle
	fanout  *notify.Fanout
	toaster *notify.Toaster
	metrics *metrics.Observer
	burst   *burst.Service
	log     logger.Logger
}

// NewRunner loads the profile registry named by cfg and builds a runner for
// cfg.Profile, or the first profile when none is selected.
func NewRunner(ctx context.Context, cfg *config.Config, log logger.Logger) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}

	if err := profiles.LoadProfiles(cfg.ProfilesFile); err != nil {
		return nil, fmt.Errorf("load profiles registry: %w", err)
	}
	all := profiles.Profiles()
	ids := make([]string, 0, len(all))
	for _, p := range all {
		ids = append(ids, p.ID)
	}
	log.InfoObj("profiles registry loaded", "profiles_meta", map[string]any{
		"count": len(ids),
		"ids":   ids,
	})

	var (
		profile profiles.Profile
		ok      bool
	)
	if cfg.Profile != "" {
		profile, ok = profiles.ProfileByID(cfg.Profile)
	} else if len(all) > 0 {
		profile, ok = all[0], true
	}
	if !ok {
		return nil, fmt.Errorf("profile %q not found in %s", cfg.Profile, cfg.ProfilesFile)
	}
	return NewRunnerForProfile(ctx, cfg, profile, log)
}

// NewRunnerForProfile builds a runner for an already resolved profile.
func NewRunnerForProfile(ctx context.Context, cfg *config.Config, profile profiles.Profile, log logger.Logger) (*Runner, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config must not be nil")
	}
	if log == nil {
		log = logger.NopLogger{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	fanout, err := buildFanout(ctx, cfg.NotifiersFile, log)
	if err != nil {
		return nil, err
	}
	toaster := notify.NewToaster(fanout, profile.ID, log)
	obs := metrics.New(profile.ID)

	bundle, err := profiles.Build(profile, profiles.Deps{
		Logger:         log,
		Toaster:        toaster,
		Observer:       refresh.Observers(obs, toaster.RefreshObserver()),
		HintTTL:        cfg.RefreshHintTTL,
		AttemptTimeout: cfg.RefreshTimeout,
	})
	if err != nil {
		fanout.Close()
		return nil, fmt.Errorf("build client for profile %q: %w", profile.ID, err)
	}
	log.InfoObj("client initialized", "client_config", map[string]any{
		"profile":         profile.ID,
		"base_url":        profile.BaseURL,
		"platform":        profile.Platform,
		"refresh_type":    profile.Refresh.Type,
		"credentials":     profile.Credentials.Store,
		"hint_ttl":        cfg.RefreshHintTTL.String(),
		"refresh_timeout": cfg.RefreshTimeout.String(),
	})

	return &Runner{
		cfg:     cfg,
		bundle:  bundle,
		fanout:  fanout,
		toaster: toaster,
		metrics: obs,
		burst:   burst.NewService(bundle.Client, cfg.RequestTimeout, log),
		log:     log,
	}, nil
}

func buildFanout(ctx context.Context, path string, log logger.Logger) (*notify.Fanout, error) {
	if path == "" {
		return notify.NewFanout(nil), nil
	}
	sinks, err := notify.LoadSinks(path)
	if err != nil {
		return nil, fmt.Errorf("load notifiers: %w", err)
	}
	enabled := sinks.Enabled()
	pubs, err := notify.DefaultRegistry().BuildAll(ctx, enabled, log)
	if err != nil {
		return nil, fmt.Errorf("build notifiers: %w", err)
	}
	summaries := make([]map[string]any, 0, len(enabled))
	for _, c := range enabled {
		summaries = append(summaries, map[string]any{"id": c.ID, "type": c.Type, "kinds": c.Kinds})
	}
	log.InfoObj("notifiers registry loaded", "notifiers_meta", map[string]any{
		"count":     len(summaries),
		"notifiers": summaries,
	})
	return notify.NewFanout(pubs), nil
}

// Seed stores a session for the runner's profile.
func (r *Runner) Seed(t credentials.Tokens) error {
	if r == nil || r.bundle == nil {
		return fmt.Errorf("runner is not initialized")
	}
	return r.bundle.Store.Save(r.bundle.Profile.Credentials.Key, t)
}

// Metrics exposes the refresh metrics collected by the runner's client.
func (r *Runner) Metrics() *metrics.Observer { return r.metrics }

// Run serves metrics when configured, fires one burst over the configured
// paths and releases every resource before returning.
func (r *Runner) Run(ctx context.Context) (burst.Report, error) {
	if r == nil || r.burst == nil {
		return burst.Report{}, fmt.Errorf("runner is not initialized")
	}
	defer r.close()

	if r.cfg.MetricsAddr != "" {
		srv := r.serveMetrics()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				r.log.ErrorObj("metrics server shutdown failed", "error", err)
			}
		}()
	}

	r.log.InfoObj("burst starting", "burst_meta", map[string]any{
		"profile": r.bundle.Profile.ID,
		"paths":   r.cfg.Paths,
		"burst":   r.cfg.Burst,
	})
	report, err := r.burst.Run(ctx, r.cfg.Paths, r.cfg.Burst)

	state := r.bundle.Client.RefreshState()
	r.log.InfoObj("refresh state", "refresh_state", map[string]any{
		"last":       state.Last.String(),
		"settled_at": state.SettledAt,
		"pending":    state.Pending,
	})
	return report, err
}

func (r *Runner) serveMetrics() *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", r.metrics.Handler())
	srv := &http.Server{Addr: r.cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		r.log.InfoObj("metrics server listening", "metrics_addr", r.cfg.MetricsAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			r.log.ErrorObj("metrics server failed", "error", err)
		}
	}()
	return srv
}

// close flushes pending notifications and releases the client resources,
// logging any errors encountered.
func (r *Runner) close() {
	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.toaster.Flush(flushCtx); err != nil {
		r.log.WarnObj("notification flush incomplete", "error", err.Error())
	}
	if err := r.fanout.Close(); err != nil {
		r.log.ErrorObj("notifier close failed", "error", err.Error())
	}
	if err := r.bundle.Close(); err != nil {
		r.log.ErrorObj("credentials store close failed", "error", err.Error())
	}
}
