package burst

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/samvad-hq/samvad-request/internal/logger"
	"github.com/samvad-hq/samvad-request/pkg/httpclient"
	"github.com/samvad-hq/samvad-request/pkg/request"
)

// Getter is the subset of the request client used to fire requests.
type Getter interface {
	Get(ctx context.Context, url string, params request.Params, opts ...request.Option) (any, error)
}

// Result is the outcome of a single request.
type Result struct {
	Path    string        `json:"path"`
	Status  int           `json:"status,omitempty"`
	Error   string        `json:"error,omitempty"`
	Elapsed time.Duration `json:"elapsed"`
}

// Report summarizes one burst.
type Report struct {
	Results   []Result      `json:"results"`
	Succeeded int           `json:"succeeded"`
	Failed    int           `json:"failed"`
	Elapsed   time.Duration `json:"elapsed"`
}

// Service fires a set of requests concurrently against one client.
type Service struct {
	client  Getter
	log     logger.Logger
	timeout time.Duration
}

// NewService builds a burst service. timeout bounds each request; zero
// leaves requests bounded only by the transport.
func NewService(client Getter, timeout time.Duration, log logger.Logger) *Service {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Service{client: client, log: log, timeout: timeout}
}

// Run requests every path count times, all at once, and waits for every
// request to finish. The returned error joins individual failures.
func (s *Service) Run(ctx context.Context, paths []string, count int, opts ...request.Option) (Report, error) {
	if s == nil || s.client == nil {
		return Report{}, fmt.Errorf("burst service is not initialized")
	}
	if len(paths) == 0 {
		return Report{}, fmt.Errorf("no paths configured for burst")
	}
	if count <= 0 {
		count = 1
	}

	start := time.Now()
	var (
		mu      sync.Mutex
		results = make([]Result, 0, len(paths)*count)
		errs    []error
	)

	var g errgroup.Group
	for _, path := range paths {
		for i := 0; i < count; i++ {
			g.Go(func() error {
				res, err := s.runOne(ctx, path, opts)
				mu.Lock()
				results = append(results, res)
				if err != nil {
					errs = append(errs, err)
				}
				mu.Unlock()
				return nil
			})
		}
	}
	_ = g.Wait()

	sort.SliceStable(results, func(i, j int) bool { return results[i].Path < results[j].Path })
	report := Report{Results: results, Elapsed: time.Since(start)}
	for _, r := range results {
		if r.Error == "" {
			report.Succeeded++
		} else {
			report.Failed++
		}
	}

	s.log.InfoObj("burst completed", "burst_result", map[string]any{
		"requests":   len(results),
		"succeeded":  report.Succeeded,
		"failed":     report.Failed,
		"elapsed_ms": report.Elapsed.Milliseconds(),
	})
	return report, errors.Join(errs...)
}

func (s *Service) runOne(ctx context.Context, path string, opts []request.Option) (Result, error) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	_, err := s.client.Get(ctx, path, nil, opts...)
	res := Result{Path: path, Elapsed: time.Since(start)}
	if err == nil {
		res.Status = 200
		return res, nil
	}

	res.Status = httpclient.StatusOf(err)
	res.Error = err.Error()
	if msg := request.MessageOf(err); msg != "" {
		res.Error = msg
	}
	s.log.ErrorObj("burst request failed", "burst_error", map[string]any{
		"path":   path,
		"status": res.Status,
		"error":  err.Error(),
	})
	return res, fmt.Errorf("request %s: %w", path, err)
}
