package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	// ExchangeEvents — fanout доменных событий для внешних
	// наблюдателей (мост из внутрипроцессной шины).
	ExchangeEvents Exchange = "maestro.events"

	// ExchangePlans — сообщения о планах (plan.due от scheduler).
	ExchangePlans Exchange = "maestro.plans"
)

// Queues — имена очередей.
const (
	// QueuePlansDue — планы, чьё расписание подошло.
	// Потребитель: maestro-server.
	QueuePlansDue Queue = "plans.due"
)

// Routing keys.
const (
	RoutingKeyDue RoutingKey = "due"
)

func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		// maestro.events — fanout: каждый подписчик получает всё
		err := ch.ExchangeDeclare(
			string(ExchangeEvents),
			"fanout",
			true,  // durable
			false, // auto-deleted
			false, // internal
			false, // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ExchangeEvents, err)
		}

		// maestro.plans — direct: plan.due идёт ровно в одну очередь
		err = ch.ExchangeDeclare(
			string(ExchangePlans),
			"direct",
			true,
			false,
			false,
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ExchangePlans, err)
		}

		_, err = ch.QueueDeclare(
			string(QueuePlansDue),
			true,  // durable
			false, // delete when unused
			false, // exclusive
			false, // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", QueuePlansDue, err)
		}

		err = ch.QueueBind(
			string(QueuePlansDue),
			string(RoutingKeyDue),
			string(ExchangePlans),
			false,
			nil,
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", QueuePlansDue, ExchangePlans, err)
		}

		return nil
	})
}
