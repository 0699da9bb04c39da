package domain

import (
	"time"

	"github.com/google/uuid"
)

// EventType — тип доменного события.
//
// Набор закрытый: шина событий и её подписчики (транспорт, метрики,
// логирование) работают только с перечисленными типами.
type EventType string

const (
	// EventSessionCreated — создана новая сессия.
	EventSessionCreated EventType = "session.created"

	// EventMessageAdded — в сессию добавлено сообщение.
	EventMessageAdded EventType = "session.message_added"

	// EventPlanCreated — создан план.
	EventPlanCreated EventType = "plan.created"

	// EventStepStarted — шаг диспетчеризован агенту.
	EventStepStarted EventType = "step.started"

	// EventStepCompleted — шаг достиг финального статуса
	// (включая FAILED/TIMED_OUT/SKIPPED).
	EventStepCompleted EventType = "step.completed"

	// EventExecutionCompleted — выполнение плана завершено.
	EventExecutionCompleted EventType = "execution.completed"

	// EventExecutionCancelled — выполнение плана отменено.
	EventExecutionCancelled EventType = "execution.cancelled"

	// EventError — нефатальная ошибка, достойная внимания наблюдателей.
	EventError EventType = "error"
)

// Event — доменное событие.
//
// События эфемерны: ядро их не персистит, шина не буферизует.
// Payload — одна из *Payload структур ниже, соответствующая Type.
type Event struct {
	// ID — уникальный идентификатор события.
	ID uuid.UUID `json:"id"`

	// Type — тип события.
	Type EventType `json:"type"`

	// Source — компонент-источник ("orchestrator", "session-manager").
	Source string `json:"source"`

	// Timestamp — время создания события.
	Timestamp time.Time `json:"timestamp"`

	// Payload — полезная нагрузка, зависит от Type.
	Payload any `json:"payload,omitempty"`
}

// NewEvent создаёт событие с заполненными ID и Timestamp.
func NewEvent(eventType EventType, source string, payload any) Event {
	return Event{
		ID:        uuid.New(),
		Type:      eventType,
		Source:    source,
		Timestamp: time.Now(),
		Payload:   payload,
	}
}

// SessionCreatedPayload — payload события EventSessionCreated.
type SessionCreatedPayload struct {
	SessionID uuid.UUID `json:"session_id"`
	Name      string    `json:"name"`
}

// MessageAddedPayload — payload события EventMessageAdded.
type MessageAddedPayload struct {
	SessionID uuid.UUID `json:"session_id"`
	MessageID uuid.UUID `json:"message_id"`
	Seq       int       `json:"seq"`
	Role      string    `json:"role"`
}

// PlanCreatedPayload — payload события EventPlanCreated.
type PlanCreatedPayload struct {
	PlanID    uuid.UUID `json:"plan_id"`
	SessionID uuid.UUID `json:"session_id"`
	Goal      string    `json:"goal"`
	Strategy  Strategy  `json:"strategy"`
	StepCount int       `json:"step_count"`
}

// StepStartedPayload — payload события EventStepStarted.
type StepStartedPayload struct {
	ExecutionID uuid.UUID `json:"execution_id"`
	PlanID      uuid.UUID `json:"plan_id"`
	StepID      string    `json:"step_id"`
	AgentID     string    `json:"agent_id"`
}

// StepCompletedPayload — payload события EventStepCompleted.
type StepCompletedPayload struct {
	ExecutionID uuid.UUID  `json:"execution_id"`
	PlanID      uuid.UUID  `json:"plan_id"`
	Result      StepResult `json:"result"`
	Progress    Progress   `json:"progress"`
}

// ExecutionCompletedPayload — payload события EventExecutionCompleted.
type ExecutionCompletedPayload struct {
	ExecutionID uuid.UUID       `json:"execution_id"`
	PlanID      uuid.UUID       `json:"plan_id"`
	Status      ExecutionStatus `json:"status"`
	Success     bool            `json:"success"`
	Duration    time.Duration   `json:"duration"`
}

// ExecutionCancelledPayload — payload события EventExecutionCancelled.
type ExecutionCancelledPayload struct {
	ExecutionID uuid.UUID `json:"execution_id"`
	PlanID      uuid.UUID `json:"plan_id"`
}

// ErrorPayload — payload события EventError.
type ErrorPayload struct {
	Scope   string `json:"scope"`
	Message string `json:"message"`
}
