// Package mq предоставляет инфраструктуру для работы с RabbitMQ.
//
// Структура:
//   - connection.go — управление соединением (reconnect, graceful shutdown)
//   - topology.go   — объявление exchanges, queues, bindings
//   - publisher.go  — публикация сообщений
//   - consumer.go   — потребление сообщений
//   - bridge.go     — мост внутрипроцессной шины событий в AMQP
//
// Типы сообщений:
//   - plan.due      — расписание плана подошло (scheduler → server)
//   - domain.event  — доменное событие для внешних наблюдателей
//
// Exchanges:
//   - maestro.events (fanout) — поток доменных событий
//   - maestro.plans  (direct) — plan.due → очередь plans.due
package mq
