// Package engine строит и валидирует граф зависимостей шагов плана.
//
// Ядро пакета — Build: превращает неупорядоченный список шагов
// с рёбрами зависимостей в валидированные уровни выполнения
// (послойный алгоритм Кана). Уровни потребляются стратегиями
// оркестратора: шаги одного уровня не зависят друг от друга
// и могут выполняться параллельно.
package engine
