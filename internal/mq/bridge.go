package mq

import (
	"context"
	"log/slog"

	"github.com/shaiso/Maestro/internal/bus"
	"github.com/shaiso/Maestro/internal/domain"
)

// bridgeBuffer — ёмкость буфера между шиной и AMQP.
const bridgeBuffer = 256

// EventBridge пересылает доменные события из внутрипроцессной шины
// в fanout-обменник maestro.events для внешних наблюдателей.
//
// Подписчик шины обязан возвращаться быстро, поэтому публикация в
// AMQP уходит через буферизованный канал в фоновую горутину. События
// эфемерны: при переполнении буфера событие отбрасывается с warn,
// ядро не притормаживается.
type EventBridge struct {
	publisher *Publisher
	bus       *bus.Bus
	logger    *slog.Logger

	events chan domain.Event
	subID  int
	done   chan struct{}
}

// NewEventBridge создаёт мост шина → RabbitMQ.
func NewEventBridge(publisher *Publisher, b *bus.Bus, logger *slog.Logger) *EventBridge {
	return &EventBridge{
		publisher: publisher,
		bus:       b,
		logger:    logger,
		events:    make(chan domain.Event, bridgeBuffer),
		done:      make(chan struct{}),
	}
}

// Start подписывает мост на шину и запускает фоновую пересылку.
func (b *EventBridge) Start(ctx context.Context) {
	b.subID = b.bus.SubscribeAll(b.enqueue)

	go b.forward(ctx)
}

// Stop отписывает мост от шины и останавливает пересылку.
func (b *EventBridge) Stop() {
	b.bus.Unsubscribe(b.subID)
	close(b.done)
}

// enqueue кладёт событие в буфер, не блокируя публикатора шины.
func (b *EventBridge) enqueue(e domain.Event) {
	select {
	case b.events <- e:
	default:
		b.logger.Warn("event bridge buffer full, dropping event",
			"event_id", e.ID,
			"type", e.Type,
		)
	}
}

// forward — фоновый цикл публикации в AMQP.
func (b *EventBridge) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-b.done:
			return
		case e := <-b.events:
			b.publish(ctx, e)
		}
	}
}

// publish отправляет одно событие в maestro.events.
// Ошибка публикации логируется и не останавливает мост.
func (b *EventBridge) publish(ctx context.Context, e domain.Event) {
	msg := &Message{
		ID:        e.ID.String(),
		Type:      MessageTypeDomainEvent,
		Payload:   e,
		Timestamp: e.Timestamp,
	}

	// Fanout игнорирует routing key; тип события кладём туда
	// для удобства отладки
	if err := b.publisher.Publish(ctx, ExchangeEvents, RoutingKey(e.Type), msg); err != nil {
		b.logger.Warn("failed to forward event",
			"event_id", e.ID,
			"type", e.Type,
			"error", err,
		)
	}
}
