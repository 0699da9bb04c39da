package orchestrator

import "errors"

// Ошибки оркестратора.
var (
	// ErrEmptyGoal — план без цели.
	ErrEmptyGoal = errors.New("plan goal is empty")

	// ErrEmptyAgentPool — план без агентов.
	ErrEmptyAgentPool = errors.New("agent pool is empty")

	// ErrUnknownAgent — шаг назначен агенту вне пула плана.
	ErrUnknownAgent = errors.New("step assigned to agent outside the pool")

	// ErrNilPlan — в ExecutePlan передан nil.
	ErrNilPlan = errors.New("plan is nil")

	// ErrUnknownStrategy — план ссылается на неизвестную стратегию.
	ErrUnknownStrategy = errors.New("unknown execution strategy")

	// ErrExecutionActive — план уже выполняется под этим execution id.
	ErrExecutionActive = errors.New("execution already active")
)
