package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pfrederiksen/saic-ls/internal/coordinator"
)

var _ coordinator.Recorder = (*Recorder)(nil)

const vin = "LSJA24U66MG000001"

func TestRecorder_Polls(t *testing.T) {
	r := New()

	r.ObservePoll(vin, "success", 2*time.Second)
	r.ObservePoll(vin, "success", time.Second)
	r.ObservePoll(vin, "partial", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.polls.WithLabelValues(vin, "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.polls.WithLabelValues(vin, "partial")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.pollDuration))
}

func TestRecorder_FetchAttempts(t *testing.T) {
	r := New()

	r.ObserveFetchAttempt(vin, "status", errors.New("timeout"))
	r.ObserveFetchAttempt(vin, "status", nil)
	r.ObserveGeneric(vin, "charging")

	assert.Equal(t, 1.0, testutil.ToFloat64(r.fetchFailures.WithLabelValues(vin, "status")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.genericReplies.WithLabelValues(vin, "charging")))
}

func TestRecorder_IntervalAndMode(t *testing.T) {
	r := New()

	r.SetInterval(vin, 15*time.Minute, "powered")
	r.SetInterval(vin, time.Hour, "idle")

	assert.Equal(t, 3600.0, testutil.ToFloat64(r.interval.WithLabelValues(vin)))
	assert.Equal(t, 1, testutil.CollectAndCount(r.mode))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.mode.WithLabelValues(vin, "idle")))

	r.SetActionActive(vin, true)
	assert.Equal(t, 1.0, testutil.ToFloat64(r.actionActive.WithLabelValues(vin)))
	r.SetActionActive(vin, false)
	assert.Equal(t, 0.0, testutil.ToFloat64(r.actionActive.WithLabelValues(vin)))
}

func TestRecorder_Handler(t *testing.T) {
	r := New()
	r.ObserveCommand(vin, "lock_unlock", "success")

	srv := httptest.NewServer(r.Handler())
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `saic_commands_total{action="lock_unlock",status="success",vin="`+vin+`"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
