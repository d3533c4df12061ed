package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samvad-hq/samvad-request/pkg/refresh"
	"github.com/stretchr/testify/require"
)

func TestObserverRecordsCoordinatorRun(t *testing.T) {
	obs := New("api")
	coord := refresh.New[string](refresh.WithObserver(obs))

	calls := 0
	v, err := coord.Intercept(context.Background(), func(context.Context, int) error {
		calls++
		if calls == 1 {
			return errors.New("first attempt fails")
		}
		return nil
	}, 1, func(context.Context) (string, error) { return "ok", nil })
	require.NoError(t, err)
	require.Equal(t, "ok", v)

	require.Equal(t, 1.0, testutil.ToFloat64(obs.refreshRuns.WithLabelValues("succeeded")))
	require.Equal(t, 1.0, testutil.ToFloat64(obs.refreshAttempts.WithLabelValues("error")))
	require.Equal(t, 1.0, testutil.ToFloat64(obs.refreshAttempts.WithLabelValues("ok")))
	require.Equal(t, 1.0, testutil.ToFloat64(obs.replays.WithLabelValues("refresh")))

	// A second 401 rides the fast path.
	_, err = coord.Intercept(context.Background(), func(context.Context, int) error { return nil }, 0,
		func(context.Context) (string, error) { return "ok", nil })
	require.NoError(t, err)
	require.Equal(t, 1.0, testutil.ToFloat64(obs.replays.WithLabelValues("fast")))
	require.Equal(t, 1.0, testutil.ToFloat64(obs.refreshRuns.WithLabelValues("succeeded")))
}

func TestQueueGaugeResetsOnDrain(t *testing.T) {
	obs := New("api")
	obs.RequestQueued(3)
	require.Equal(t, 3.0, testutil.ToFloat64(obs.queued))
	obs.QueueDrained(3)
	require.Zero(t, testutil.ToFloat64(obs.queued))
}

func TestHandlerExposesMetrics(t *testing.T) {
	obs := New("api")
	obs.RefreshSettled(refresh.StatusFailed, 0.25)

	srv := httptest.NewServer(obs.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(body), `samvad_request_refresh_runs_total{client="api",status="failed"} 1`))
}
