package opsserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalflow/internal/kernel"
	"legalflow/pkg/metrics"
	"legalflow/pkg/orchestrator"
	"legalflow/pkg/workflow"
)

type fakeBackend struct {
	health map[string]bool
	err    error
}

func (f *fakeBackend) Health(context.Context) map[string]bool { return f.health }

func (f *fakeBackend) Stats(context.Context) (kernel.Stats, error) {
	if f.err != nil {
		return kernel.Stats{}, f.err
	}
	return kernel.Stats{
		Workflows:  map[workflow.Status]int{workflow.StatusCompleted: 2},
		QueueDepth: 1,
		Model:      "mock-model",
	}, nil
}

func newTestServer(t *testing.T, backend *fakeBackend) (*httptest.Server, *orchestrator.MemoryStore, *prometheus.Registry) {
	t.Helper()
	store := orchestrator.NewMemoryStore()
	reg := prometheus.NewRegistry()
	set := metrics.NewSet(reg)
	set.WorkflowFinished(orchestrator.OutcomeCompleted)
	orch := orchestrator.New(store, nil)
	srv := httptest.NewServer(New(backend, orch, reg).Handler())
	t.Cleanup(srv.Close)
	return srv, store, reg
}

func get(t *testing.T, url string) (int, string) {
	t.Helper()
	resp, err := http.Get(url) //nolint:noctx // test helper
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(body)
}

func TestHealthz(t *testing.T) {
	backend := &fakeBackend{health: map[string]bool{"intake-agent": true, "store": true}}
	srv, _, _ := newTestServer(t, backend)

	code, body := get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusOK, code)
	var resp healthResponse
	require.NoError(t, json.Unmarshal([]byte(body), &resp))
	assert.Equal(t, "ok", resp.Status)

	backend.health["store"] = false
	code, body = get(t, srv.URL+"/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body, `"degraded"`)
}

func TestMetricsEndpoint(t *testing.T) {
	srv, _, _ := newTestServer(t, &fakeBackend{})
	code, body := get(t, srv.URL+"/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, metrics.WorkflowsMetric+`{outcome="completed"} 1`)
}

func TestStats(t *testing.T) {
	backend := &fakeBackend{}
	srv, _, _ := newTestServer(t, backend)
	code, body := get(t, srv.URL+"/stats")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"completed":2`)
	assert.Contains(t, body, `"queue_depth":1`)

	backend.err = errors.New("store offline")
	code, body = get(t, srv.URL+"/stats")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.Contains(t, body, "store offline")
}

func TestWorkflowEndpoints(t *testing.T) {
	srv, store, _ := newTestServer(t, &fakeBackend{})
	ctx := context.Background()
	now := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)
	for i, status := range []workflow.Status{workflow.StatusRunning, workflow.StatusFailed} {
		st := workflow.NewState(fmt.Sprintf("wf-%d", i), "case", now, now.Add(time.Duration(i)*time.Second))
		st.Status = status
		require.NoError(t, store.Save(ctx, st))
	}

	code, body := get(t, srv.URL+"/workflows")
	assert.Equal(t, http.StatusOK, code)
	var states []workflow.State
	require.NoError(t, json.Unmarshal([]byte(body), &states))
	require.Len(t, states, 2)
	assert.Equal(t, "wf-0", states[0].WorkflowID)

	code, body = get(t, srv.URL+"/workflows?status=failed")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, strings.Count(body, `"workflow_id"`))

	code, body = get(t, srv.URL+"/workflows/wf-1")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, `"status":"failed"`)

	code, _ = get(t, srv.URL+"/workflows/missing")
	assert.Equal(t, http.StatusNotFound, code)

	resp, err := http.Post(srv.URL+"/workflows/wf-1", "application/json", nil) //nolint:noctx // test
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
