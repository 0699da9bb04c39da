// Package invoker определяет границу "вызвать агента":
// интерфейс AgentInvoker, реестр агентов и HTTP-реализацию.
//
// Ядро оркестрации трактует вызов агента как непрозрачную
// операцию: процесс агента, его CLI, креденшелы и стриминг —
// целиком забота реализации.
package invoker
