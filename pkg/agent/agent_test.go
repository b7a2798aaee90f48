package agent

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"legalflow/pkg/events"
	"legalflow/pkg/llm"
	"legalflow/pkg/metrics"
	"legalflow/pkg/model"
)

type fakeClock struct{ t time.Time }

func (f *fakeClock) now() time.Time { return f.t }

func newTestBase(t *testing.T) (*Base, *events.Recorder, *fakeClock) {
	t.Helper()
	bus := events.NewBus()
	rec := &events.Recorder{}
	bus.SubscribeAll(rec.Handle)
	clk := &fakeClock{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	b := NewBase("test-agent", "Test Agent", TypeIntake, []string{"testing"}, Deps{Bus: bus, Clock: clk.now})
	return b, rec, clk
}

func TestSingleFlightRejectsSecondCall(t *testing.T) {
	b, _, _ := newTestBase(t)
	entered := make(chan struct{})
	release := make(chan struct{})

	done := make(chan error, 1)
	go func() {
		_, err := b.Run(context.Background(), model.Case{ID: "c1"}, func(ctx context.Context, c model.Case) (model.Case, error) {
			close(entered)
			<-release
			return c, nil
		})
		done <- err
	}()

	<-entered
	assert.True(t, b.Busy())
	assert.Equal(t, StatusProcessing, b.Descriptor().Status)

	_, err := b.Run(context.Background(), model.Case{ID: "c2"}, func(ctx context.Context, c model.Case) (model.Case, error) {
		t.Fatal("second task must not run")
		return c, nil
	})
	require.ErrorIs(t, err, ErrAgentBusy)

	close(release)
	require.NoError(t, <-done)
	assert.False(t, b.Busy())
	assert.Equal(t, StatusIdle, b.Descriptor().Status)
}

func TestFailureSetsErrorAndReleases(t *testing.T) {
	b, rec, _ := newTestBase(t)
	boom := errors.New("boom")
	in := model.Case{ID: "c1", Title: "original"}

	out, err := b.Run(context.Background(), in, func(ctx context.Context, c model.Case) (model.Case, error) {
		c.Title = "mutated"
		return c, boom
	})
	require.ErrorIs(t, err, boom)
	assert.Equal(t, "original", out.Title)
	assert.False(t, b.Busy())
	assert.Equal(t, StatusError, b.Descriptor().Status)
	assert.Equal(t, []events.Kind{events.AgentProcessingStarted, events.AgentProcessingFailed}, rec.Kinds())
	assert.Equal(t, "boom", rec.Events()[1].Error)

	// a later success clears the error status
	_, err = b.Run(context.Background(), in, func(ctx context.Context, c model.Case) (model.Case, error) { return c, nil })
	require.NoError(t, err)
	assert.Equal(t, StatusIdle, b.Descriptor().Status)
}

func TestRunningMeanAndCounters(t *testing.T) {
	b, rec, clk := newTestBase(t)
	for _, d := range []time.Duration{2 * time.Second, 4 * time.Second} {
		_, err := b.Run(context.Background(), model.Case{ID: "c"}, func(ctx context.Context, c model.Case) (model.Case, error) {
			clk.t = clk.t.Add(d)
			return c, nil
		})
		require.NoError(t, err)
	}
	desc := b.Descriptor()
	assert.Equal(t, int64(2), desc.ProcessedCount)
	assert.Equal(t, 3*time.Second, desc.AverageProcessingTime)
	assert.Equal(t, clk.t, desc.LastActive)
	assert.Equal(t, 2, rec.Count(events.AgentProcessingCompleted))
}

func TestTaskReceivesCallInfo(t *testing.T) {
	b, rec, _ := newTestBase(t)
	ctx := WithWorkflow(context.Background(), "wf-1")
	_, err := b.Run(ctx, model.Case{ID: "c"}, func(ctx context.Context, c model.Case) (model.Case, error) {
		info := llm.CallInfoFrom(WithStep(ctx, "draft"))
		assert.Equal(t, "wf-1", info.WorkflowID)
		assert.Equal(t, "test-agent", info.AgentID)
		assert.Equal(t, "draft", info.Step)
		return c, nil
	})
	require.NoError(t, err)
	for _, ev := range rec.Events() {
		assert.Equal(t, "wf-1", ev.WorkflowID)
		assert.Equal(t, "test-agent", ev.AgentID)
	}
}

func TestMaintenanceRejectsWork(t *testing.T) {
	b, _, _ := newTestBase(t)
	b.SetMaintenance(true)
	assert.Equal(t, StatusMaintenance, b.Descriptor().Status)
	_, err := b.Run(context.Background(), model.Case{}, func(ctx context.Context, c model.Case) (model.Case, error) { return c, nil })
	require.ErrorIs(t, err, ErrAgentUnavailable)

	b.SetMaintenance(false)
	assert.Equal(t, StatusIdle, b.Descriptor().Status)
	_, err = b.Run(context.Background(), model.Case{}, func(ctx context.Context, c model.Case) (model.Case, error) { return c, nil })
	require.NoError(t, err)
}

func TestReportProgress(t *testing.T) {
	b, rec, _ := newTestBase(t)
	b.ReportProgress(WithWorkflow(context.Background(), "wf"), "case-1", 40, "halfway")
	evs := rec.Events()
	require.Len(t, evs, 1)
	assert.Equal(t, events.AgentProgressUpdate, evs[0].Kind)
	assert.Equal(t, 40, evs[0].Progress)
	assert.Equal(t, "case-1", evs[0].CaseID)
}

func TestBusyRejectionIsCounted(t *testing.T) {
	reg := prometheus.NewRegistry()
	b := NewBase("counted", "Counted", TypeResearch, nil, Deps{Metrics: metrics.NewSet(reg)})
	require.True(t, b.busy.CompareAndSwap(false, true))
	_, err := b.Run(context.Background(), model.Case{}, nil)
	require.ErrorIs(t, err, ErrAgentBusy)

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range families {
		if mf.GetName() == metrics.AgentBusyMetric {
			found = true
			assert.InDelta(t, 1, mf.GetMetric()[0].GetCounter().GetValue(), 0)
		}
	}
	assert.True(t, found)
}

func TestValidationError(t *testing.T) {
	ve := &ValidationError{}
	require.NoError(t, ve.OrNil())
	ve.Add("email", "invalid format %q", "x")
	ve.Add("zip", "must match pattern")
	err := ve.OrNil()
	require.Error(t, err)

	var target *ValidationError
	require.ErrorAs(t, err, &target)
	assert.True(t, target.Has("zip"))
	assert.Contains(t, err.Error(), `email: invalid format "x"`)
}
