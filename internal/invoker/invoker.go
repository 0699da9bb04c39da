package invoker

import (
	"context"
	"time"
)

// Result — результат вызова агента.
//
// Любая ошибка вызова — сетевая, логическая, таймаут — оседает
// в Error при Success=false. Реализации никогда не возвращают
// ошибку наружу: граница стратегий получает только Result.
type Result struct {
	// Success — флаг успешности вызова.
	Success bool

	// Output — вывод агента.
	Output string

	// Error — текст ошибки при неуспехе.
	Error string
}

// AgentInvoker — внешний коллаборатор: "вызвать агента с задачей,
// получить результат".
//
// Контракт:
//   - Реализация обязана уважать отмену ctx и timeout
//   - Стриминговые ответы агента агрегируются внутри реализации,
//     ядро видит только финальный Result
//   - timeout <= 0 означает таймаут по умолчанию реализации
type AgentInvoker interface {
	Invoke(ctx context.Context, agentID, task string, timeout time.Duration) Result
}

// Func — адаптер функции к интерфейсу AgentInvoker.
// Удобен в тестах и для простых локальных агентов.
type Func func(ctx context.Context, agentID, task string, timeout time.Duration) Result

// Invoke реализует AgentInvoker.
func (f Func) Invoke(ctx context.Context, agentID, task string, timeout time.Duration) Result {
	return f(ctx, agentID, task, timeout)
}
