package telemetry

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/shaiso/Maestro/internal/bus"
	"github.com/shaiso/Maestro/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMetrics_CountsBusEvents(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	b := bus.New(testLogger())
	m.Observe(b)

	b.Publish(domain.NewEvent(domain.EventSessionCreated, "test", domain.SessionCreatedPayload{}))
	b.Publish(domain.NewEvent(domain.EventMessageAdded, "test", domain.MessageAddedPayload{}))
	b.Publish(domain.NewEvent(domain.EventPlanCreated, "test", domain.PlanCreatedPayload{}))

	if got := testutil.ToFloat64(m.sessionsCreated); got != 1 {
		t.Errorf("expected 1 session created, got %v", got)
	}
	if got := testutil.ToFloat64(m.messagesTotal); got != 1 {
		t.Errorf("expected 1 message, got %v", got)
	}
	if got := testutil.ToFloat64(m.plansCreated); got != 1 {
		t.Errorf("expected 1 plan, got %v", got)
	}
	if got := testutil.ToFloat64(m.eventsTotal.WithLabelValues(string(domain.EventPlanCreated))); got != 1 {
		t.Errorf("expected 1 plan.created event, got %v", got)
	}
}

func TestMetrics_StepAndExecutionCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	b := bus.New(testLogger())
	m.Observe(b)

	b.Publish(domain.NewEvent(domain.EventStepCompleted, "test", domain.StepCompletedPayload{
		Result: domain.StepResult{
			StepID:   "s1",
			Status:   domain.StepStatusSucceeded,
			Success:  true,
			Duration: 200 * time.Millisecond,
		},
	}))
	b.Publish(domain.NewEvent(domain.EventStepCompleted, "test", domain.StepCompletedPayload{
		Result: domain.StepResult{StepID: "s2", Status: domain.StepStatusSkipped},
	}))
	b.Publish(domain.NewEvent(domain.EventExecutionCompleted, "test", domain.ExecutionCompletedPayload{
		Status:   domain.ExecutionStatusFailed,
		Duration: time.Second,
	}))
	b.Publish(domain.NewEvent(domain.EventExecutionCancelled, "test", domain.ExecutionCancelledPayload{}))

	if got := testutil.ToFloat64(m.stepsTotal.WithLabelValues(string(domain.StepStatusSucceeded))); got != 1 {
		t.Errorf("expected 1 succeeded step, got %v", got)
	}
	if got := testutil.ToFloat64(m.stepsTotal.WithLabelValues(string(domain.StepStatusSkipped))); got != 1 {
		t.Errorf("expected 1 skipped step, got %v", got)
	}
	if got := testutil.ToFloat64(m.executionsTotal.WithLabelValues(string(domain.ExecutionStatusFailed))); got != 1 {
		t.Errorf("expected 1 failed execution, got %v", got)
	}
	if got := testutil.ToFloat64(m.executionsTotal.WithLabelValues(string(domain.ExecutionStatusCancelled))); got != 1 {
		t.Errorf("expected 1 cancelled execution, got %v", got)
	}
}
