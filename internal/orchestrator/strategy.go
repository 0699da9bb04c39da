package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/shaiso/Maestro/internal/domain"
	"github.com/shaiso/Maestro/internal/engine"
	"github.com/shaiso/Maestro/internal/invoker"
)

// Пороговые значения деградации ADAPTIVE → SEQUENTIAL.
// Настраиваемые умолчания, не контракт.
const (
	// DefaultDegradeDurationFactor — во сколько раз фактическая
	// длительность уровня должна превысить ожидаемую.
	DefaultDegradeDurationFactor = 1.5

	// DefaultDegradeFailureRate — доля упавших шагов уровня.
	DefaultDegradeFailureRate = 0.2
)

// defaultStepTimeout — таймаут шага, если план его не задал.
const defaultStepTimeout = 5 * time.Minute

// strategy — политика выполнения уровней плана.
//
// Стратегия решает, как диспетчеризовать шаги; вся механика
// (skip, invoke, settle, события, прогресс) живёт в execRun
// и одинакова для всех стратегий.
type strategy interface {
	name() domain.Strategy
	execute(ctx context.Context, run *execRun)
}

// strategyFor возвращает реализацию стратегии плана.
func strategyFor(s domain.Strategy, durationFactor, failureRate float64) (strategy, error) {
	switch s {
	case domain.StrategySequential:
		return sequentialStrategy{}, nil
	case domain.StrategyParallel:
		return parallelStrategy{}, nil
	case domain.StrategyAdaptive:
		return &adaptiveStrategy{
			durationFactor: durationFactor,
			failureRate:    failureRate,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, s)
	}
}

// --- Sequential ---

// sequentialStrategy выполняет уровни по порядку, шаги внутри
// уровня — по одному, по возрастанию Order.
type sequentialStrategy struct{}

func (sequentialStrategy) name() domain.Strategy { return domain.StrategySequential }

func (sequentialStrategy) execute(ctx context.Context, run *execRun) {
	for _, level := range run.state.Graph.Levels {
		if ctx.Err() != nil {
			return
		}
		run.runLevelSequential(ctx, level)
	}
}

// --- Parallel ---

// parallelStrategy диспетчеризует весь уровень конкурентно
// (с ограничением по количеству одновременных вызовов) и ждёт
// завершения уровня перед следующим.
type parallelStrategy struct{}

func (parallelStrategy) name() domain.Strategy { return domain.StrategyParallel }

func (parallelStrategy) execute(ctx context.Context, run *execRun) {
	for _, level := range run.state.Graph.Levels {
		if ctx.Err() != nil {
			return
		}
		run.runLevelParallel(ctx, level)
	}
}

// --- Adaptive ---

// adaptiveStrategy начинает как PARALLEL. После каждого уровня
// сравнивает фактическую длительность с суммой ExpectedDuration
// и считает долю упавших шагов; при превышении порогов все
// последующие уровни выполняются последовательно. Решение
// одностороннее — обратно стратегия не переключается.
type adaptiveStrategy struct {
	durationFactor float64
	failureRate    float64
}

func (*adaptiveStrategy) name() domain.Strategy { return domain.StrategyAdaptive }

func (a *adaptiveStrategy) execute(ctx context.Context, run *execRun) {
	degraded := false

	for i, level := range run.state.Graph.Levels {
		if ctx.Err() != nil {
			return
		}

		start := time.Now()
		if degraded {
			run.runLevelSequential(ctx, level)
		} else {
			run.runLevelParallel(ctx, level)
		}

		if !degraded && a.shouldDegrade(run, level, time.Since(start)) {
			degraded = true
			run.logger.Info("adaptive strategy degraded to sequential",
				"execution_id", run.state.ExecutionID,
				"after_level", i,
			)
		}
	}
}

// shouldDegrade проверяет пороги по завершённому уровню.
func (a *adaptiveStrategy) shouldDegrade(run *execRun, level []*engine.Node, elapsed time.Duration) bool {
	var expected time.Duration
	failed := 0

	for _, node := range level {
		expected += node.Step.ExpectedDuration
		if res, ok := run.state.resultFor(node.ID); ok && res.Status.IsFailure() {
			failed++
		}
	}

	if expected > 0 && float64(elapsed) > a.durationFactor*float64(expected) {
		return true
	}
	if len(level) > 0 && float64(failed)/float64(len(level)) > a.failureRate {
		return true
	}
	return false
}

// --- Механика выполнения уровня ---

// execRun — контекст одного выполнения для стратегий.
//
// Всё состояние (статусы шагов, результаты, прогресс) пишет только
// ведущая горутина: воркеры параллельного уровня возвращают
// результаты через канал, settle происходит на ведущей.
type execRun struct {
	state    *execState
	orch     *Orchestrator
	progress ProgressFunc

	// sem ограничивает количество одновременных вызовов агентов
	// в пределах одного выполнения.
	sem *semaphore.Weighted

	logger *slog.Logger

	// aborted — при FailurePolicyAbortPlan выставляется после
	// первого упавшего шага; дальше всё пропускается.
	aborted bool
}

// stepOutcome — результат вызова агента для одного шага.
type stepOutcome struct {
	node     *engine.Node
	res      invoker.Result
	duration time.Duration
	timedOut bool
}

// runLevelSequential выполняет уровень по одному шагу.
func (r *execRun) runLevelSequential(ctx context.Context, level []*engine.Node) {
	for _, node := range level {
		if ctx.Err() != nil {
			return
		}
		if r.shouldSkip(node) {
			r.skip(node)
			continue
		}

		r.markStarted(node)
		r.settle(r.invokeStep(ctx, node))
	}
}

// runLevelParallel диспетчеризует уровень конкурентно и ждёт его
// целиком. Падение шага не отменяет уже диспетчеризованных соседей.
func (r *execRun) runLevelParallel(ctx context.Context, level []*engine.Node) {
	outcomes := make(chan stepOutcome, len(level))
	var wg sync.WaitGroup

	for _, node := range level {
		if ctx.Err() != nil {
			break
		}
		if r.shouldSkip(node) {
			r.skip(node)
			continue
		}

		// Слот берём на ведущей горутине: диспетчеризация следующего
		// шага ждёт, пока освободится место
		if err := r.sem.Acquire(ctx, 1); err != nil {
			break
		}

		r.markStarted(node)

		wg.Add(1)
		go func(node *engine.Node) {
			defer wg.Done()
			defer r.sem.Release(1)
			outcomes <- r.invokeStep(ctx, node)
		}(node)
	}

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	// Settle строго на ведущей горутине
	for outcome := range outcomes {
		r.settle(outcome)
	}
}

// shouldSkip решает, нужно ли пропустить шаг: упала (или была
// пропущена) хотя бы одна зависимость, либо план аварийно
// останавливается целиком.
func (r *execRun) shouldSkip(node *engine.Node) bool {
	if r.aborted {
		return true
	}

	for _, dep := range node.DependsOn {
		res, ok := r.state.resultFor(dep.ID)
		if !ok {
			// Зависимость не добежала (отмена) — шаг не диспетчеризуем,
			// но и SKIPPED не помечаем: его поглотит отмена
			continue
		}
		if res.Status.IsFailure() || res.Status == domain.StepStatusSkipped {
			return true
		}
	}
	return false
}

// markStarted помечает шаг RUNNING и публикует StepStarted.
func (r *execRun) markStarted(node *engine.Node) {
	node.Step.Status = domain.StepStatusRunning

	r.orch.publish(domain.EventStepStarted, domain.StepStartedPayload{
		ExecutionID: r.state.ExecutionID,
		PlanID:      r.state.Plan.ID,
		StepID:      node.ID,
		AgentID:     node.Step.AgentID,
	})
}

// invokeStep вызывает агента для шага. Может работать на воркерной
// горутине: состояние не трогает, только возвращает outcome.
func (r *execRun) invokeStep(ctx context.Context, node *engine.Node) stepOutcome {
	step := node.Step

	timeout := step.Timeout
	if timeout <= 0 {
		timeout = defaultStepTimeout
	}

	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	res := r.orch.invoker.Invoke(stepCtx, step.AgentID, step.Task, timeout)
	elapsed := time.Since(start)

	// TIMED_OUT — только когда истёк дедлайн самого шага,
	// а не отменилось всё выполнение
	timedOut := !res.Success &&
		errors.Is(stepCtx.Err(), context.DeadlineExceeded) &&
		ctx.Err() == nil

	return stepOutcome{
		node:     node,
		res:      res,
		duration: elapsed,
		timedOut: timedOut,
	}
}

// settle фиксирует результат шага: статус, результат, событие,
// прогресс. Вызывается только ведущей горутиной.
func (r *execRun) settle(outcome stepOutcome) {
	step := outcome.node.Step

	status := domain.StepStatusSucceeded
	switch {
	case outcome.timedOut:
		status = domain.StepStatusTimedOut
	case !outcome.res.Success:
		status = domain.StepStatusFailed
	}
	step.Status = status

	result := domain.StepResult{
		StepID:   outcome.node.ID,
		Status:   status,
		Success:  outcome.res.Success,
		Output:   outcome.res.Output,
		Error:    outcome.res.Error,
		Duration: outcome.duration,
	}
	r.state.recordResult(result)

	if status.IsFailure() && r.orch.failurePolicy == FailurePolicyAbortPlan {
		r.aborted = true
	}

	r.announceSettled(result)
}

// skip помечает шаг SKIPPED без диспетчеризации.
func (r *execRun) skip(node *engine.Node) {
	node.Step.Status = domain.StepStatusSkipped

	result := domain.StepResult{
		StepID:  node.ID,
		Status:  domain.StepStatusSkipped,
		Success: false,
		Error:   "dependency failed",
	}
	r.state.recordResult(result)

	r.announceSettled(result)
}

// announceSettled публикует StepCompleted и дёргает progress sink.
func (r *execRun) announceSettled(result domain.StepResult) {
	progress := r.state.progress()

	r.orch.publish(domain.EventStepCompleted, domain.StepCompletedPayload{
		ExecutionID: r.state.ExecutionID,
		PlanID:      r.state.Plan.ID,
		Result:      result,
		Progress:    progress,
	})

	if r.progress != nil {
		r.progress(progress)
	}
}
