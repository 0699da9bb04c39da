// Package api — HTTP API сервера Maestro.
//
// Поверх стандартного net/http (Go 1.22+: методы и path values в
// паттернах ServeMux). Состав:
//
//   - handler.go    — Handler с зависимостями, общие хелперы
//   - routes.go     — регистрация маршрутов /api/v1/*
//   - middleware.go — Recovery, Logging
//   - response.go   — формат ответов и маппинг ошибок на статусы
//   - dto.go        — структуры запросов/ответов
//
// Обработчики разложены по ресурсам: session_handler.go,
// plan_handler.go, execution_handler.go, schedule_handler.go,
// agent_handler.go.
//
// Формат ответов: {"data": ...} для успеха, {"error": {"code",
// "message"}} для ошибок, {"data": ..., "total": N} для списков.
package api
