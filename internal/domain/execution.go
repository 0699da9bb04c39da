package domain

import (
	"time"

	"github.com/google/uuid"
)

// StepResult — результат выполнения одного шага.
//
// Заполняется AgentInvoker'ом (или оркестратором для пропущенных
// шагов). Любая ошибка агента — включая таймаут — оседает здесь,
// а не пробрасывается наверх.
type StepResult struct {
	// StepID — идентификатор шага.
	StepID string `json:"step_id"`

	// Status — финальный статус шага.
	Status StepStatus `json:"status"`

	// Success — флаг успешности.
	Success bool `json:"success"`

	// Output — вывод агента.
	Output string `json:"output,omitempty"`

	// Error — текст ошибки при неуспехе.
	Error string `json:"error,omitempty"`

	// Duration — длительность выполнения.
	Duration time.Duration `json:"duration"`
}

// Progress — снимок прогресса выполнения: settled/total.
type Progress struct {
	// Completed — количество шагов, достигших финального статуса
	// (включая SKIPPED).
	Completed int `json:"completed"`

	// Total — общее количество шагов плана.
	Total int `json:"total"`
}

// ExecutionResult — итог одного вызова ExecutePlan.
type ExecutionResult struct {
	// ExecutionID — идентификатор выполнения.
	ExecutionID uuid.UUID `json:"execution_id"`

	// PlanID — идентификатор плана.
	PlanID uuid.UUID `json:"plan_id"`

	// Status — финальный статус выполнения.
	Status ExecutionStatus `json:"status"`

	// Success — true, если ни один шаг не закончился FAILED/TIMED_OUT.
	// Отменённое выполнение не успешно, но и не Failed.
	Success bool `json:"success"`

	// StepResults — результаты по шагам (stepID → StepResult).
	// Для шагов, не диспетчеризованных из-за отмены, записей нет.
	StepResults map[string]StepResult `json:"step_results"`

	// TotalDuration — суммарная длительность выполнения.
	TotalDuration time.Duration `json:"total_duration"`
}

// ExecutionSnapshot — неизменяемый снимок состояния выполнения.
//
// Возвращается GetExecutionStatus. Снимок делается целиком под
// блокировкой записи выполнения, поэтому повторные вызовы для
// завершённого выполнения идентичны.
type ExecutionSnapshot struct {
	// ExecutionID — идентификатор выполнения.
	ExecutionID uuid.UUID `json:"execution_id"`

	// PlanID — идентификатор плана.
	PlanID uuid.UUID `json:"plan_id"`

	// Status — статус на момент снимка.
	Status ExecutionStatus `json:"status"`

	// Progress — прогресс на момент снимка.
	Progress Progress `json:"progress"`

	// StepResults — копия накопленных результатов.
	StepResults map[string]StepResult `json:"step_results"`

	// StartedAt — время начала выполнения.
	StartedAt time.Time `json:"started_at"`

	// CompletedAt — время завершения (nil, пока выполняется).
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}
