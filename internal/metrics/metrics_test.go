package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheus_Counters(t *testing.T) {
	p := NewPrometheus("triggerd")

	p.EventHandled("chat")
	p.EventHandled("chat")
	p.TriggerOutcome("executed")
	p.RequestDispatched("tits")
	p.ExecutionResult("tits", false)
	p.MessageDropped("execute-action")

	assert.Equal(t, 2.0, testutil.ToFloat64(p.events.WithLabelValues("chat")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.outcomes.WithLabelValues("executed")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.dispatched.WithLabelValues("tits")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.results.WithLabelValues("tits", "false")))
	assert.Equal(t, 1.0, testutil.ToFloat64(p.dropped.WithLabelValues("execute-action")))
}

func TestPrometheus_Handler(t *testing.T) {
	p := NewPrometheus("triggerd")
	p.EventHandled("follow")

	rec := httptest.NewRecorder()
	p.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `triggerd_events_handled_total{event="follow"} 1`))
}

func TestNoop(t *testing.T) {
	r := Noop()
	assert.NotPanics(t, func() {
		r.EventHandled("x")
		r.TriggerOutcome("x")
		r.RequestDispatched("x")
		r.ExecutionResult("x", true)
		r.MessageDropped("x")
	})
}
