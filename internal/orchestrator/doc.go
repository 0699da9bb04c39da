// Package orchestrator — ядро выполнения планов.
//
// Оркестратор создаёт планы (CreatePlan), выполняет их уровень за
// уровнем выбранной стратегией (ExecutePlan), ведёт таблицу активных
// выполнений и поддерживает кооперативную отмену (CancelExecution)
// и снимки статуса (GetExecutionStatus).
//
// Модель конкурентности: состояние выполнения мутирует только
// горутина, ведущая ExecutePlan. Воркеры параллельного уровня лишь
// вызывают агентов и возвращают результаты через канал; фиксация
// результата, события и прогресс — всегда на ведущей горутине.
package orchestrator
