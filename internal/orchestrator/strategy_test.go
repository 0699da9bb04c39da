package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shaiso/Maestro/internal/bus"
	"github.com/shaiso/Maestro/internal/domain"
	"github.com/shaiso/Maestro/internal/invoker"
)

// concurrencyTracker measures how many invocations with the given
// task prefix overlap in time.
type concurrencyTracker struct {
	mu      sync.Mutex
	prefix  string
	current int
	peak    int

	delay time.Duration
	fail  map[string]bool
}

func (c *concurrencyTracker) Invoke(ctx context.Context, agentID, task string, timeout time.Duration) invoker.Result {
	tracked := strings.HasPrefix(task, c.prefix)
	if tracked {
		c.mu.Lock()
		c.current++
		if c.current > c.peak {
			c.peak = c.current
		}
		c.mu.Unlock()
	}

	select {
	case <-time.After(c.delay):
	case <-ctx.Done():
	}

	if tracked {
		c.mu.Lock()
		c.current--
		c.mu.Unlock()
	}

	if c.fail[task] {
		return invoker.Result{Success: false, Error: "agent reported failure"}
	}
	return invoker.Result{Success: true, Output: "ok"}
}

func (c *concurrencyTracker) peakConcurrency() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peak
}

func TestStrategyFor_Unknown(t *testing.T) {
	_, err := strategyFor(domain.Strategy("MAGIC"), 1.5, 0.2)
	if !errors.Is(err, ErrUnknownStrategy) {
		t.Errorf("expected ErrUnknownStrategy, got %v", err)
	}
}

func TestExecutePlan_ParallelLevelRunsConcurrently(t *testing.T) {
	orch := newTestOrchestrator(okInvoker(100*time.Millisecond), nil)

	plan, err := orch.CreatePlan(CreatePlanRequest{
		Goal:     "fan out",
		Strategy: domain.StrategyParallel,
		AgentIDs: []string{"a1", "a2", "a3"},
		Steps: []domain.Step{
			{ID: "s1", AgentID: "a1", Task: "one"},
			{ID: "s2", AgentID: "a2", Task: "two"},
			{ID: "s3", AgentID: "a3", Task: "three"},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	start := time.Now()
	result, err := orch.ExecutePlan(context.Background(), plan, nil)
	elapsed := time.Since(start)

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != domain.ExecutionStatusSucceeded {
		t.Errorf("expected SUCCEEDED, got %s", result.Status)
	}
	// Три шага по 100ms последовательно заняли бы >= 300ms
	if elapsed > 250*time.Millisecond {
		t.Errorf("level should run concurrently, took %v", elapsed)
	}
}

func TestExecutePlan_FailureSkipsDependents(t *testing.T) {
	inv := &concurrencyTracker{fail: map[string]bool{"broken": true}}
	orch := newTestOrchestrator(inv, nil)

	// s2 падает; s3 зависит от s2 и пропускается, s4 зависит от s1
	// и выполняется как ни в чём не бывало
	plan, err := orch.CreatePlan(CreatePlanRequest{
		Goal:     "partial failure",
		Strategy: domain.StrategyParallel,
		AgentIDs: []string{"a1", "a2"},
		Steps: []domain.Step{
			{ID: "s1", AgentID: "a1", Task: "fine"},
			{ID: "s2", AgentID: "a2", Task: "broken"},
			{ID: "s3", AgentID: "a1", Task: "doomed", DependsOn: []string{"s2"}},
			{ID: "s4", AgentID: "a2", Task: "fine too", DependsOn: []string{"s1"}},
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := orch.ExecutePlan(context.Background(), plan, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != domain.ExecutionStatusFailed {
		t.Errorf("expected FAILED, got %s", result.Status)
	}
	if result.Success {
		t.Error("execution with failed steps should not be successful")
	}
	if len(result.StepResults) != 4 {
		t.Fatalf("expected 4 step results, got %d", len(result.StepResults))
	}

	expect := map[string]domain.StepStatus{
		"s1": domain.StepStatusSucceeded,
		"s2": domain.StepStatusFailed,
		"s3": domain.StepStatusSkipped,
		"s4": domain.StepStatusSucceeded,
	}
	for id, want := range expect {
		res, ok := result.StepResults[id]
		if !ok {
			t.Errorf("missing result for %s", id)
			continue
		}
		if res.Status != want {
			t.Errorf("step %s: expected %s, got %s", id, want, res.Status)
		}
	}
	if result.StepResults["s3"].Error != "dependency failed" {
		t.Errorf("skipped step should carry the skip reason, got %q", result.StepResults["s3"].Error)
	}
}

func TestExecutePlan_SkipCascades(t *testing.T) {
	inv := &concurrencyTracker{fail: map[string]bool{"broken": true}}
	orch := newTestOrchestrator(inv, nil)

	// Пропуск транзитивен: s3 зависит от пропущенного s2
	plan, _ := orch.CreatePlan(CreatePlanRequest{
		Goal:     "cascade",
		Strategy: domain.StrategySequential,
		AgentIDs: []string{"a1"},
		Steps: []domain.Step{
			{ID: "s1", AgentID: "a1", Task: "broken"},
			{ID: "s2", AgentID: "a1", Task: "child", DependsOn: []string{"s1"}},
			{ID: "s3", AgentID: "a1", Task: "grandchild", DependsOn: []string{"s2"}},
		},
	})

	result, err := orch.ExecutePlan(context.Background(), plan, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.StepResults["s2"].Status != domain.StepStatusSkipped {
		t.Errorf("s2 should be skipped, got %s", result.StepResults["s2"].Status)
	}
	if result.StepResults["s3"].Status != domain.StepStatusSkipped {
		t.Errorf("s3 should be skipped transitively, got %s", result.StepResults["s3"].Status)
	}
}

func TestExecutePlan_StepTimeout(t *testing.T) {
	orch := newTestOrchestrator(okInvoker(500*time.Millisecond), nil)

	plan, _ := orch.CreatePlan(CreatePlanRequest{
		Goal:     "slow agent",
		Strategy: domain.StrategySequential,
		AgentIDs: []string{"a1"},
		Steps: []domain.Step{
			{ID: "s1", AgentID: "a1", Task: "slow", Timeout: 30 * time.Millisecond},
		},
	})

	result, err := orch.ExecutePlan(context.Background(), plan, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	res := result.StepResults["s1"]
	if res.Status != domain.StepStatusTimedOut {
		t.Errorf("expected TIMED_OUT, got %s", res.Status)
	}
	if result.Status != domain.ExecutionStatusFailed {
		t.Errorf("timed out step should fail the execution, got %s", result.Status)
	}
}

func TestExecutePlan_AbortPlanPolicy(t *testing.T) {
	inv := &concurrencyTracker{fail: map[string]bool{"broken": true}}
	orch := New(Config{
		Invoker:       inv,
		FailurePolicy: FailurePolicyAbortPlan,
		Logger:        testLogger(),
	})

	// s2 не зависит от s1, но ABORT_PLAN пропускает и его
	plan, _ := orch.CreatePlan(CreatePlanRequest{
		Goal:     "abort",
		Strategy: domain.StrategySequential,
		AgentIDs: []string{"a1"},
		Steps: []domain.Step{
			{ID: "s1", Order: 1, AgentID: "a1", Task: "broken"},
			{ID: "s2", Order: 2, AgentID: "a1", Task: "independent"},
		},
	})

	result, err := orch.ExecutePlan(context.Background(), plan, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.StepResults["s1"].Status != domain.StepStatusFailed {
		t.Errorf("s1 should fail, got %s", result.StepResults["s1"].Status)
	}
	if result.StepResults["s2"].Status != domain.StepStatusSkipped {
		t.Errorf("s2 should be skipped under ABORT_PLAN, got %s", result.StepResults["s2"].Status)
	}
}

func TestExecutePlan_CancelMidExecution(t *testing.T) {
	b := bus.New(testLogger())
	orch := newTestOrchestrator(okInvoker(40*time.Millisecond), b)

	// Отмена после второго шага: третий и четвёртый не стартуют
	settled := 0
	b.Subscribe(domain.EventStepCompleted, func(e domain.Event) {
		settled++
		if settled == 2 {
			payload := e.Payload.(domain.StepCompletedPayload)
			orch.CancelExecution(payload.ExecutionID)
		}
	})

	var cancelledEvents int
	b.Subscribe(domain.EventExecutionCancelled, func(e domain.Event) {
		cancelledEvents++
	})

	plan, _ := orch.CreatePlan(CreatePlanRequest{
		Goal:     "long pipeline",
		Strategy: domain.StrategySequential,
		AgentIDs: []string{"a1"},
		Steps: []domain.Step{
			{ID: "s1", AgentID: "a1", Task: "one"},
			{ID: "s2", AgentID: "a1", Task: "two", DependsOn: []string{"s1"}},
			{ID: "s3", AgentID: "a1", Task: "three", DependsOn: []string{"s2"}},
			{ID: "s4", AgentID: "a1", Task: "four", DependsOn: []string{"s3"}},
		},
	})

	result, err := orch.ExecutePlan(context.Background(), plan, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != domain.ExecutionStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", result.Status)
	}
	if result.Success {
		t.Error("cancelled execution should not be successful")
	}
	if len(result.StepResults) != 2 {
		t.Errorf("expected partial results for 2 steps, got %d", len(result.StepResults))
	}
	for _, id := range []string{"s3", "s4"} {
		step := plan.StepByID(id)
		if step.Status != domain.StepStatusCancelled {
			t.Errorf("step %s: expected CANCELLED, got %s", id, step.Status)
		}
	}
	if cancelledEvents != 1 {
		t.Errorf("expected 1 execution.cancelled event, got %d", cancelledEvents)
	}

	// Снимок отменённого выполнения остаётся доступным
	snap := orch.GetExecutionStatus(result.ExecutionID)
	if snap == nil || snap.Status != domain.ExecutionStatusCancelled {
		t.Error("cancelled execution should remain queryable")
	}
}

func TestExecutePlan_ParentContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	orch := newTestOrchestrator(invoker.Func(func(ctx context.Context, agentID, task string, timeout time.Duration) invoker.Result {
		cancel()
		<-ctx.Done()
		return invoker.Result{Success: false, Error: ctx.Err().Error()}
	}), nil)

	plan, _ := orch.CreatePlan(CreatePlanRequest{
		Goal:     "doomed",
		Strategy: domain.StrategySequential,
		AgentIDs: []string{"a1"},
		Steps: []domain.Step{
			{ID: "s1", AgentID: "a1", Task: "one"},
			{ID: "s2", AgentID: "a1", Task: "two", DependsOn: []string{"s1"}},
		},
	})

	result, err := orch.ExecutePlan(ctx, plan, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if result.Status != domain.ExecutionStatusCancelled {
		t.Errorf("expected CANCELLED, got %s", result.Status)
	}
	// Отменённый вызов записывается как FAILED, не TIMED_OUT
	if res, ok := result.StepResults["s1"]; ok && res.Status == domain.StepStatusTimedOut {
		t.Error("cancellation must not be classified as a step timeout")
	}
}

func TestExecutePlan_ProgressCallback(t *testing.T) {
	orch := newTestOrchestrator(okInvoker(0), nil)

	plan, _ := orch.CreatePlan(CreatePlanRequest{
		Goal:     "progress",
		Strategy: domain.StrategySequential,
		AgentIDs: []string{"a1"},
		Steps: []domain.Step{
			{ID: "s1", AgentID: "a1", Task: "one"},
			{ID: "s2", AgentID: "a1", Task: "two", DependsOn: []string{"s1"}},
			{ID: "s3", AgentID: "a1", Task: "three", DependsOn: []string{"s2"}},
		},
	})

	var seen []domain.Progress
	_, err := orch.ExecutePlan(context.Background(), plan, func(p domain.Progress) {
		seen = append(seen, p)
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Начальный 0/3 плюс по одному на каждый шаг
	if len(seen) != 4 {
		t.Fatalf("expected 4 progress reports, got %d", len(seen))
	}
	for i, p := range seen {
		if p.Completed != i {
			t.Errorf("report %d: expected completed=%d, got %d", i, i, p.Completed)
		}
		if p.Total != 3 {
			t.Errorf("report %d: expected total=3, got %d", i, p.Total)
		}
	}
}

// --- Adaptive ---

func TestAdaptive_StaysParallelWhenHealthy(t *testing.T) {
	inv := &concurrencyTracker{prefix: "b", delay: 50 * time.Millisecond}
	orch := newTestOrchestrator(inv, nil)

	plan, _ := orch.CreatePlan(CreatePlanRequest{
		Goal:     "healthy",
		Strategy: domain.StrategyAdaptive,
		AgentIDs: []string{"a1"},
		Steps: []domain.Step{
			{ID: "a1s", AgentID: "a1", Task: "a1s", ExpectedDuration: time.Second},
			{ID: "b1", AgentID: "a1", Task: "b1", DependsOn: []string{"a1s"}},
			{ID: "b2", AgentID: "a1", Task: "b2", DependsOn: []string{"a1s"}},
			{ID: "b3", AgentID: "a1", Task: "b3", DependsOn: []string{"a1s"}},
		},
	})

	result, err := orch.ExecutePlan(context.Background(), plan, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != domain.ExecutionStatusSucceeded {
		t.Fatalf("expected SUCCEEDED, got %s", result.Status)
	}

	if inv.peakConcurrency() < 2 {
		t.Errorf("healthy adaptive run should keep the level parallel, peak=%d", inv.peakConcurrency())
	}
}

func TestAdaptive_DegradesOnFailureRate(t *testing.T) {
	// Уровень 0: один из двух шагов падает (rate 0.5 > 0.2) —
	// уровень 1 должен пойти последовательно
	inv := &concurrencyTracker{
		prefix: "b",
		delay:  30 * time.Millisecond,
		fail:   map[string]bool{"a2s": true},
	}
	orch := newTestOrchestrator(inv, nil)

	plan, _ := orch.CreatePlan(CreatePlanRequest{
		Goal:     "flaky",
		Strategy: domain.StrategyAdaptive,
		AgentIDs: []string{"a1"},
		Steps: []domain.Step{
			{ID: "a1s", AgentID: "a1", Task: "a1s"},
			{ID: "a2s", AgentID: "a1", Task: "a2s"},
			{ID: "b1", AgentID: "a1", Task: "b1", DependsOn: []string{"a1s"}},
			{ID: "b2", AgentID: "a1", Task: "b2", DependsOn: []string{"a1s"}},
			{ID: "b3", AgentID: "a1", Task: "b3", DependsOn: []string{"a1s"}},
		},
	})

	result, err := orch.ExecutePlan(context.Background(), plan, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != domain.ExecutionStatusFailed {
		t.Fatalf("expected FAILED (a2s fell over), got %s", result.Status)
	}

	if peak := inv.peakConcurrency(); peak != 1 {
		t.Errorf("degraded level should run sequentially, peak=%d", peak)
	}
}

func TestAdaptive_DegradesOnDuration(t *testing.T) {
	// Уровень 0 занимает на порядок дольше ожидаемого
	inv := &concurrencyTracker{prefix: "b", delay: 60 * time.Millisecond}
	orch := newTestOrchestrator(inv, nil)

	plan, _ := orch.CreatePlan(CreatePlanRequest{
		Goal:     "slower than promised",
		Strategy: domain.StrategyAdaptive,
		AgentIDs: []string{"a1"},
		Steps: []domain.Step{
			{ID: "a1s", AgentID: "a1", Task: "a1s", ExpectedDuration: time.Millisecond},
			{ID: "b1", AgentID: "a1", Task: "b1", DependsOn: []string{"a1s"}},
			{ID: "b2", AgentID: "a1", Task: "b2", DependsOn: []string{"a1s"}},
		},
	})

	result, err := orch.ExecutePlan(context.Background(), plan, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Status != domain.ExecutionStatusSucceeded {
		t.Fatalf("expected SUCCEEDED, got %s", result.Status)
	}

	if peak := inv.peakConcurrency(); peak != 1 {
		t.Errorf("degraded level should run sequentially, peak=%d", peak)
	}
}
