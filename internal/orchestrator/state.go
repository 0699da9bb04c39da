package orchestrator

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Maestro/internal/domain"
	"github.com/shaiso/Maestro/internal/engine"
)

// execState — состояние одного выполнения плана в памяти.
//
// Создаётся в начале ExecutePlan и живёт в таблице активных
// выполнений оркестратора. Мутируется только горутиной, ведущей
// выполнение; внешние вызовы (CancelExecution, GetExecutionStatus)
// идут через cancel-функцию и снимки под блокировкой.
type execState struct {
	// ExecutionID — идентификатор выполнения.
	ExecutionID uuid.UUID

	// Plan — выполняемый план.
	Plan *domain.Plan

	// Graph — граф зависимостей с уровнями.
	Graph *engine.Graph

	// StartedAt — время начала выполнения.
	StartedAt time.Time

	// cancel — сигнал кооперативной отмены для ведущей горутины
	// и всех диспетчеризованных вызовов агентов.
	cancel context.CancelFunc

	// mu защищает мутируемую часть ниже.
	mu sync.RWMutex

	// status — текущий статус выполнения.
	status domain.ExecutionStatus

	// results — накопленные результаты шагов (stepID → StepResult).
	results map[string]domain.StepResult

	// completedAt — время завершения (nil, пока выполняется).
	completedAt *time.Time
}

// newExecState создаёт состояние выполнения.
func newExecState(plan *domain.Plan, graph *engine.Graph, cancel context.CancelFunc) *execState {
	return &execState{
		ExecutionID: uuid.New(),
		Plan:        plan,
		Graph:       graph,
		StartedAt:   time.Now(),
		cancel:      cancel,
		status:      domain.ExecutionStatusRunning,
		results:     make(map[string]domain.StepResult, len(plan.Steps)),
	}
}

// recordResult сохраняет результат шага.
// Вызывается только ведущей горутиной.
func (s *execState) recordResult(res domain.StepResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[res.StepID] = res
}

// resultFor возвращает результат шага и флаг его наличия.
func (s *execState) resultFor(stepID string) (domain.StepResult, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	res, ok := s.results[stepID]
	return res, ok
}

// progress возвращает текущий прогресс: settled/total.
// SKIPPED считается settled; недиспетчеризованные из-за отмены — нет.
func (s *execState) progress() domain.Progress {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return domain.Progress{
		Completed: len(s.results),
		Total:     len(s.Plan.Steps),
	}
}

// finalize переводит выполнение в финальный статус.
// Вызывается один раз ведущей горутиной.
func (s *execState) finalize(status domain.ExecutionStatus) {
	now := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
	s.completedAt = &now
}

// currentStatus возвращает статус выполнения.
func (s *execState) currentStatus() domain.ExecutionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status
}

// requestCancel сигналит отмену, если выполнение ещё не финально.
// Возвращает true, если сигнал отправлен.
func (s *execState) requestCancel() bool {
	s.mu.RLock()
	terminal := s.status.IsTerminal()
	s.mu.RUnlock()

	if terminal {
		return false
	}
	s.cancel()
	return true
}

// snapshot строит неизменяемый снимок состояния.
// Снимок делается целиком под одной блокировкой: повторные вызовы
// для завершённого выполнения возвращают идентичные данные.
func (s *execState) snapshot() *domain.ExecutionSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make(map[string]domain.StepResult, len(s.results))
	for id, res := range s.results {
		results[id] = res
	}

	var completedAt *time.Time
	if s.completedAt != nil {
		t := *s.completedAt
		completedAt = &t
	}

	return &domain.ExecutionSnapshot{
		ExecutionID: s.ExecutionID,
		PlanID:      s.Plan.ID,
		Status:      s.status,
		Progress: domain.Progress{
			Completed: len(s.results),
			Total:     len(s.Plan.Steps),
		},
		StepResults: results,
		StartedAt:   s.StartedAt,
		CompletedAt: completedAt,
	}
}

// result строит итоговый ExecutionResult.
func (s *execState) result() *domain.ExecutionResult {
	s.mu.RLock()
	defer s.mu.RUnlock()

	results := make(map[string]domain.StepResult, len(s.results))
	success := true
	for id, res := range s.results {
		results[id] = res
		if res.Status.IsFailure() {
			success = false
		}
	}
	if s.status == domain.ExecutionStatusCancelled {
		success = false
	}

	var total time.Duration
	if s.completedAt != nil {
		total = s.completedAt.Sub(s.StartedAt)
	} else {
		total = time.Since(s.StartedAt)
	}

	return &domain.ExecutionResult{
		ExecutionID:   s.ExecutionID,
		PlanID:        s.Plan.ID,
		Status:        s.status,
		Success:       success,
		StepResults:   results,
		TotalDuration: total,
	}
}
