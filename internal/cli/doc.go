// Package cli реализует инструмент командной строки Maestro.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Maestro API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для управления сессиями, планами, выполнениями,
// расписаниями и реестром агентов.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Maestro API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	sessions, err := client.ListSessions()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: maestro session list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - session:   list, create, show, send, end, pause, resume, plans
//   - plan:      create, show, execute (с --wait для ожидания)
//   - execution: show, cancel, prune
//   - schedule:  list, create, show, update, delete, enable, disable
//   - agent:     list, register, remove
//
// Каждая группа создаётся через фабричную функцию (NewSessionCmd и
// т.д.), принимающую clientFn и outputFn — замыкания для ленивого
// создания Client и Output после парсинга PersistentFlags.
package cli
