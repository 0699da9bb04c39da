package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/shaiso/Maestro/internal/bus"
	"github.com/shaiso/Maestro/internal/domain"
	"github.com/shaiso/Maestro/internal/engine"
	"github.com/shaiso/Maestro/internal/invoker"
	"github.com/shaiso/Maestro/internal/telemetry"
)

// eventSource — значение поля Source публикуемых событий.
const eventSource = "orchestrator"

// Ограничения конкурентности параллельного уровня.
const (
	// defaultMaxConcurrency — значение по умолчанию.
	defaultMaxConcurrency = 10

	// hardMaxConcurrency — жёсткий потолок одновременных вызовов
	// агентов в пределах одного выполнения.
	hardMaxConcurrency = 10
)

// FailurePolicy — политика реакции на упавший шаг.
type FailurePolicy string

const (
	// FailurePolicySkipDependents — пропускаются только шаги,
	// транзитивно зависящие от упавшего (по умолчанию).
	FailurePolicySkipDependents FailurePolicy = "SKIP_DEPENDENTS"

	// FailurePolicyAbortPlan — первый упавший шаг останавливает
	// диспетчеризацию всех оставшихся шагов плана.
	FailurePolicyAbortPlan FailurePolicy = "ABORT_PLAN"
)

// ProgressFunc — callback прогресса выполнения.
//
// Вызывается синхронно на ведущей горутине после каждого
// финализированного шага, поэтому должен возвращаться быстро.
type ProgressFunc func(progress domain.Progress)

// Orchestrator управляет созданием и выполнением планов.
//
// Orchestrator:
//   - Валидирует и создаёт планы (CreatePlan)
//   - Ведёт таблицу активных выполнений
//   - Выполняет план выбранной стратегией уровень за уровнем
//   - Публикует события жизненного цикла в шину
//   - Поддерживает кооперативную отмену и снимки статуса
type Orchestrator struct {
	bus     *bus.Bus
	invoker invoker.AgentInvoker
	logger  *slog.Logger

	maxConcurrency int64
	failurePolicy  FailurePolicy
	durationFactor float64
	failureRate    float64

	// Активные и завершённые выполнения (executionID → state).
	// Завершённые живут, пока вызывающий не заберёт итоговый
	// статус и не вызовет PruneExecution.
	executions map[uuid.UUID]*execState
	mu         sync.RWMutex
}

// Config — конфигурация Orchestrator.
type Config struct {
	// Bus — шина доменных событий (обязательно).
	Bus *bus.Bus

	// Invoker — реализация вызова агентов (обязательно).
	Invoker invoker.AgentInvoker

	// MaxConcurrency — лимит одновременных вызовов агентов
	// на выполнение (default: 10, жёсткий потолок: 10).
	MaxConcurrency int

	// FailurePolicy — политика реакции на падение шага
	// (default: FailurePolicySkipDependents).
	FailurePolicy FailurePolicy

	// DegradeDurationFactor и DegradeFailureRate — пороги
	// деградации ADAPTIVE (defaults: 1.5 и 0.2).
	DegradeDurationFactor float64
	DegradeFailureRate    float64

	// Logger — логгер (default: slog.Default()).
	Logger *slog.Logger
}

// New создаёт новый Orchestrator.
func New(cfg Config) *Orchestrator {
	maxConcurrency := cfg.MaxConcurrency
	if maxConcurrency <= 0 || maxConcurrency > hardMaxConcurrency {
		maxConcurrency = defaultMaxConcurrency
	}

	failurePolicy := cfg.FailurePolicy
	if failurePolicy == "" {
		failurePolicy = FailurePolicySkipDependents
	}

	durationFactor := cfg.DegradeDurationFactor
	if durationFactor <= 0 {
		durationFactor = DefaultDegradeDurationFactor
	}
	failureRate := cfg.DegradeFailureRate
	if failureRate <= 0 {
		failureRate = DefaultDegradeFailureRate
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Orchestrator{
		bus:            cfg.Bus,
		invoker:        cfg.Invoker,
		logger:         logger,
		maxConcurrency: int64(maxConcurrency),
		failurePolicy:  failurePolicy,
		durationFactor: durationFactor,
		failureRate:    failureRate,
		executions:     make(map[uuid.UUID]*execState),
	}
}

// CreatePlanRequest — запрос на создание плана.
type CreatePlanRequest struct {
	// SessionID — сессия, к которой относится план.
	SessionID uuid.UUID

	// Goal — цель плана (обязательно).
	Goal string

	// Strategy — стратегия выполнения.
	Strategy domain.Strategy

	// AgentIDs — пул агентов (обязательно непустой).
	AgentIDs []string

	// Steps — уже декомпозированные шаги.
	Steps []domain.Step

	// Context — общий контекст плана.
	Context map[string]any
}

// CreatePlan валидирует запрос и создаёт план в черновом состоянии.
//
// Проверки: непустая цель, непустой пул агентов, каждый шаг назначен
// агенту из пула, граф зависимостей валиден и ацикличен (§ engine).
// План не персистится — это забота вызывающего.
func (o *Orchestrator) CreatePlan(req CreatePlanRequest) (*domain.Plan, error) {
	if req.Goal == "" {
		return nil, ErrEmptyGoal
	}
	if len(req.AgentIDs) == 0 {
		return nil, ErrEmptyAgentPool
	}

	pool := make(map[string]bool, len(req.AgentIDs))
	for _, id := range req.AgentIDs {
		pool[id] = true
	}
	for i := range req.Steps {
		step := &req.Steps[i]
		if step.AgentID != "" && !pool[step.AgentID] {
			return nil, fmt.Errorf("%w: step %s → agent %s", ErrUnknownAgent, step.ID, step.AgentID)
		}
	}

	// Валидация графа: неизвестные зависимости, циклы
	if _, err := engine.Build(req.Steps); err != nil {
		return nil, err
	}

	steps := make([]domain.Step, len(req.Steps))
	copy(steps, req.Steps)
	for i := range steps {
		steps[i].Status = domain.StepStatusPending
	}

	plan := &domain.Plan{
		ID:        uuid.New(),
		SessionID: req.SessionID,
		Goal:      req.Goal,
		Strategy:  req.Strategy,
		AgentIDs:  append([]string(nil), req.AgentIDs...),
		Steps:     steps,
		Context:   req.Context,
		CreatedAt: time.Now(),
	}

	o.publish(domain.EventPlanCreated, domain.PlanCreatedPayload{
		PlanID:    plan.ID,
		SessionID: plan.SessionID,
		Goal:      plan.Goal,
		Strategy:  plan.Strategy,
		StepCount: len(plan.Steps),
	})

	o.logger.Info("plan created",
		"plan_id", plan.ID,
		"strategy", plan.Strategy,
		"steps", len(plan.Steps),
	)

	return plan, nil
}

// ExecutePlan выполняет план выбранной стратегией.
//
// Блокируется до завершения выполнения и возвращает агрегированный
// результат. Прогресс шагов уходит в progress (может быть nil) и в
// шину событий. Отмена — кооперативная: через ctx вызывающего или
// CancelExecution по executionID.
func (o *Orchestrator) ExecutePlan(ctx context.Context, plan *domain.Plan, progress ProgressFunc) (*domain.ExecutionResult, error) {
	execCtx, cancel, state, strat, run, err := o.prepare(ctx, plan, progress)
	if err != nil {
		return nil, err
	}
	defer cancel()

	strat.execute(execCtx, run)

	return o.finish(execCtx, state), nil
}

// StartExecution запускает выполнение плана в фоне.
//
// Возвращает executionID сразу и канал, в который придёт итоговый
// результат (ёмкость 1, читать не обязательно). Семантика выполнения
// идентична ExecutePlan.
func (o *Orchestrator) StartExecution(ctx context.Context, plan *domain.Plan, progress ProgressFunc) (uuid.UUID, <-chan *domain.ExecutionResult, error) {
	execCtx, cancel, state, strat, run, err := o.prepare(ctx, plan, progress)
	if err != nil {
		return uuid.Nil, nil, err
	}

	done := make(chan *domain.ExecutionResult, 1)
	go func() {
		defer cancel()
		strat.execute(execCtx, run)
		done <- o.finish(execCtx, state)
		close(done)
	}()

	return state.ExecutionID, done, nil
}

// prepare валидирует план, строит граф и регистрирует выполнение.
func (o *Orchestrator) prepare(ctx context.Context, plan *domain.Plan, progress ProgressFunc) (context.Context, context.CancelFunc, *execState, strategy, *execRun, error) {
	if plan == nil {
		return nil, nil, nil, nil, nil, ErrNilPlan
	}

	strat, err := strategyFor(plan.Strategy, o.durationFactor, o.failureRate)
	if err != nil {
		return nil, nil, nil, nil, nil, err
	}

	graph, err := engine.Build(plan.Steps)
	if err != nil {
		return nil, nil, nil, nil, nil, fmt.Errorf("build dependency graph: %w", err)
	}

	execCtx, cancel := context.WithCancel(ctx)

	state := newExecState(plan, graph, cancel)
	if err := o.addExecution(state); err != nil {
		cancel()
		return nil, nil, nil, nil, nil, err
	}

	o.logger.Info("execution started",
		"execution_id", state.ExecutionID,
		"plan_id", plan.ID,
		"strategy", strat.name(),
		"levels", len(graph.Levels),
	)

	execLogger := telemetry.WithExecutionID(
		telemetry.WithPlanID(o.logger, plan.ID.String()),
		state.ExecutionID.String(),
	)
	run := &execRun{
		state:    state,
		orch:     o,
		progress: progress,
		sem:      semaphore.NewWeighted(o.maxConcurrency),
		logger:   execLogger,
	}

	// Начальный прогресс: 0/total до первого шага
	if progress != nil {
		progress(state.progress())
	}

	return execCtx, cancel, state, strat, run, nil
}

// finish финализирует выполнение: помечает недиспетчеризованные
// шаги, выставляет статус, публикует событие.
func (o *Orchestrator) finish(execCtx context.Context, state *execState) *domain.ExecutionResult {
	cancelled := execCtx.Err() != nil

	if cancelled {
		// Шаги, не успевшие диспетчеризоваться, помечаются
		// CANCELLED; результатов для них нет
		for i := range state.Plan.Steps {
			step := &state.Plan.Steps[i]
			if !step.Status.IsTerminal() && step.Status != domain.StepStatusRunning {
				step.Status = domain.StepStatusCancelled
			}
		}
		state.finalize(domain.ExecutionStatusCancelled)
	} else {
		status := domain.ExecutionStatusSucceeded
		for i := range state.Plan.Steps {
			if state.Plan.Steps[i].Status.IsFailure() {
				status = domain.ExecutionStatusFailed
				break
			}
		}
		state.finalize(status)
	}

	result := state.result()

	if cancelled {
		o.publish(domain.EventExecutionCancelled, domain.ExecutionCancelledPayload{
			ExecutionID: state.ExecutionID,
			PlanID:      state.Plan.ID,
		})
	} else {
		o.publish(domain.EventExecutionCompleted, domain.ExecutionCompletedPayload{
			ExecutionID: state.ExecutionID,
			PlanID:      state.Plan.ID,
			Status:      result.Status,
			Success:     result.Success,
			Duration:    result.TotalDuration,
		})
	}

	o.logger.Info("execution finished",
		"execution_id", state.ExecutionID,
		"plan_id", state.Plan.ID,
		"status", result.Status,
		"duration", result.TotalDuration,
	)

	return result
}

// CancelExecution сигналит отмену выполнения.
//
// Уже диспетчеризованные вызовы агентов дорабатывают best effort,
// следующий уровень не стартует. Возвращает false — не ошибку —
// для неизвестного id или уже финального выполнения.
func (o *Orchestrator) CancelExecution(executionID uuid.UUID) bool {
	o.mu.RLock()
	state, exists := o.executions[executionID]
	o.mu.RUnlock()

	if !exists {
		return false
	}

	if !state.requestCancel() {
		return false
	}

	o.logger.Info("execution cancellation requested",
		"execution_id", executionID,
	)
	return true
}

// GetExecutionStatus возвращает неизменяемый снимок выполнения.
// Для неизвестного id — nil, не ошибка. Повторные вызовы для
// завершённого выполнения идентичны.
func (o *Orchestrator) GetExecutionStatus(executionID uuid.UUID) *domain.ExecutionSnapshot {
	o.mu.RLock()
	state, exists := o.executions[executionID]
	o.mu.RUnlock()

	if !exists {
		return nil
	}
	return state.snapshot()
}

// PruneExecution удаляет запись завершённого выполнения из таблицы.
// Вызывается после того, как итоговый статус забрали. Активное
// выполнение не удаляется (возвращает false).
func (o *Orchestrator) PruneExecution(executionID uuid.UUID) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	state, exists := o.executions[executionID]
	if !exists || !state.currentStatus().IsTerminal() {
		return false
	}

	delete(o.executions, executionID)
	return true
}

// ActiveExecutions возвращает количество незавершённых выполнений.
func (o *Orchestrator) ActiveExecutions() int {
	o.mu.RLock()
	defer o.mu.RUnlock()

	n := 0
	for _, state := range o.executions {
		if !state.currentStatus().IsTerminal() {
			n++
		}
	}
	return n
}

// addExecution регистрирует выполнение в таблице.
func (o *Orchestrator) addExecution(state *execState) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if _, exists := o.executions[state.ExecutionID]; exists {
		return ErrExecutionActive
	}
	o.executions[state.ExecutionID] = state
	return nil
}

// publish отправляет событие в шину (если шина задана).
func (o *Orchestrator) publish(eventType domain.EventType, payload any) {
	if o.bus == nil {
		return
	}
	o.bus.Publish(domain.NewEvent(eventType, eventSource, payload))
}
