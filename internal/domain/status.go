package domain

// SessionStatus — статус сессии.
//
// Жизненный цикл:
//
//	ACTIVE ⇄ PAUSED
//	ACTIVE → COMPLETED
//	ACTIVE → FAILED
//
// Переходы из COMPLETED/FAILED запрещены — статус монотонный.
type SessionStatus string

const (
	// SessionStatusActive — сессия активна, принимает сообщения.
	SessionStatusActive SessionStatus = "ACTIVE"

	// SessionStatusPaused — сессия приостановлена.
	SessionStatusPaused SessionStatus = "PAUSED"

	// SessionStatusCompleted — сессия завершена успешно.
	SessionStatusCompleted SessionStatus = "COMPLETED"

	// SessionStatusFailed — сессия завершена с ошибкой.
	SessionStatusFailed SessionStatus = "FAILED"
)

// IsTerminal возвращает true, если статус финальный.
func (s SessionStatus) IsTerminal() bool {
	switch s {
	case SessionStatusCompleted, SessionStatusFailed:
		return true
	default:
		return false
	}
}

// StepStatus — статус выполнения шага плана.
//
// Жизненный цикл:
//
//	PENDING → RUNNING → SUCCEEDED
//	                  ↘ FAILED
//	                  ↘ TIMED_OUT
//	PENDING → SKIPPED   (зависимость упала)
//	PENDING → CANCELLED (выполнение отменено до диспетчеризации)
//
// Все статусы кроме PENDING и RUNNING — финальные.
type StepStatus string

const (
	// StepStatusPending — шаг создан, ещё не диспетчеризован.
	StepStatusPending StepStatus = "PENDING"

	// StepStatusRunning — шаг выполняется агентом.
	StepStatusRunning StepStatus = "RUNNING"

	// StepStatusSucceeded — шаг успешно завершён.
	StepStatusSucceeded StepStatus = "SUCCEEDED"

	// StepStatusFailed — шаг завершился с ошибкой.
	StepStatusFailed StepStatus = "FAILED"

	// StepStatusTimedOut — шаг превысил таймаут.
	StepStatusTimedOut StepStatus = "TIMED_OUT"

	// StepStatusSkipped — шаг пропущен из-за упавшей зависимости.
	StepStatusSkipped StepStatus = "SKIPPED"

	// StepStatusCancelled — выполнение отменено до запуска шага.
	StepStatusCancelled StepStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный.
func (s StepStatus) IsTerminal() bool {
	switch s {
	case StepStatusSucceeded, StepStatusFailed, StepStatusTimedOut,
		StepStatusSkipped, StepStatusCancelled:
		return true
	default:
		return false
	}
}

// IsFailure возвращает true, если шаг закончился неуспешно.
// Именно такие статусы делают execution неуспешным.
func (s StepStatus) IsFailure() bool {
	return s == StepStatusFailed || s == StepStatusTimedOut
}

// ExecutionStatus — статус выполнения плана.
//
// Жизненный цикл:
//
//	RUNNING → SUCCEEDED
//	        ↘ FAILED
//	        ↘ CANCELLED
type ExecutionStatus string

const (
	// ExecutionStatusRunning — выполнение в процессе.
	ExecutionStatusRunning ExecutionStatus = "RUNNING"

	// ExecutionStatusSucceeded — все шаги завершились успешно.
	ExecutionStatusSucceeded ExecutionStatus = "SUCCEEDED"

	// ExecutionStatusFailed — хотя бы один шаг FAILED или TIMED_OUT.
	ExecutionStatusFailed ExecutionStatus = "FAILED"

	// ExecutionStatusCancelled — выполнение отменено пользователем.
	ExecutionStatusCancelled ExecutionStatus = "CANCELLED"
)

// IsTerminal возвращает true, если статус финальный.
func (s ExecutionStatus) IsTerminal() bool {
	switch s {
	case ExecutionStatusSucceeded, ExecutionStatusFailed, ExecutionStatusCancelled:
		return true
	default:
		return false
	}
}

// Strategy — стратегия выполнения плана.
type Strategy string

const (
	// StrategySequential — шаги выполняются строго по одному.
	StrategySequential Strategy = "SEQUENTIAL"

	// StrategyParallel — шаги одного уровня выполняются параллельно.
	StrategyParallel Strategy = "PARALLEL"

	// StrategyAdaptive — начинает как PARALLEL, деградирует до
	// SEQUENTIAL при перегрузке или высокой доле ошибок.
	StrategyAdaptive Strategy = "ADAPTIVE"
)

// ParseStrategy парсит строку в Strategy.
// Неизвестное значение трактуется как SEQUENTIAL.
func ParseStrategy(s string) Strategy {
	switch s {
	case string(StrategyParallel):
		return StrategyParallel
	case string(StrategyAdaptive):
		return StrategyAdaptive
	default:
		return StrategySequential
	}
}
