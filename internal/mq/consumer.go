package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"
)

// errDeliveriesClosed сигнализирует, что брокер закрыл поток доставок
// (обычно при разрыве соединения).
var errDeliveriesClosed = errors.New("mq: deliveries channel closed")

// Handler — обработчик сообщения из очереди.
// nil — сообщение ack; ошибка — nack с возвратом в очередь.
type Handler func(ctx context.Context, d *Delivery) error

// Delivery — доставленное сообщение.
type Delivery struct {
	// Message — распарсенный конверт.
	Message Message

	// Raw — исходная AMQP-доставка.
	Raw amqp.Delivery
}

// Ack подтверждает обработку.
func (d *Delivery) Ack() error {
	return d.Raw.Ack(false)
}

// Nack отклоняет сообщение. requeue=true — вернуть в очередь.
func (d *Delivery) Nack(requeue bool) error {
	return d.Raw.Nack(false, requeue)
}

// ConsumerConfig — параметры потребителя.
type ConsumerConfig struct {
	// Queue — имя очереди.
	Queue string

	// Handler — обработчик сообщений.
	Handler Handler

	// Prefetch — размер окна неподтверждённых сообщений (default 1).
	Prefetch int
}

// Consumer читает очередь RabbitMQ и переживает переподключения:
// при разрыве ждёт ReconnectNotify и начинает consume заново.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	queue    string
	handler  Handler
	prefetch int

	cancel context.CancelFunc
}

// NewConsumer создаёт потребителя очереди cfg.Queue.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}
	return &Consumer{
		conn:     conn,
		logger:   logger,
		queue:    cfg.Queue,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Start блокируется и потребляет сообщения до отмены ctx или Stop.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel

	for {
		deliveries, err := c.openStream(ctx)
		if err != nil {
			c.logger.Error("failed to start consuming", "queue", c.queue, "error", err)
			if !c.awaitReconnect(ctx) {
				return ctx.Err()
			}
			continue
		}

		c.logger.Info("consumer started", "queue", c.queue)

		err = c.drain(ctx, deliveries)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, errDeliveriesClosed) {
			c.logger.Warn("deliveries stream closed, waiting for reconnect", "queue", c.queue)
			if !c.awaitReconnect(ctx) {
				return ctx.Err()
			}
		}
	}
}

// Stop отменяет потребление, начатое Start.
func (c *Consumer) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
}

// awaitReconnect ждёт восстановления соединения. false — ctx отменён.
func (c *Consumer) awaitReconnect(ctx context.Context) bool {
	select {
	case <-ctx.Done():
		return false
	case <-c.conn.ReconnectNotify():
		c.logger.Info("reconnected, restarting consumer", "queue", c.queue)
		return true
	}
}

// openStream настраивает QoS и начинает consume на текущем канале.
func (c *Consumer) openStream(ctx context.Context) (<-chan amqp.Delivery, error) {
	var deliveries <-chan amqp.Delivery

	err := c.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		if err := ch.Qos(c.prefetch, 0, false); err != nil {
			return fmt.Errorf("set qos: %w", err)
		}

		d, err := ch.Consume(
			c.queue,
			"",    // consumer tag, генерирует брокер
			false, // auto-ack выключен, подтверждаем вручную
			false, // exclusive
			false, // no-local
			false, // no-wait
			nil,
		)
		if err != nil {
			return fmt.Errorf("consume %s: %w", c.queue, err)
		}
		deliveries = d
		return nil
	})
	return deliveries, err
}

// drain обрабатывает доставки до закрытия потока или отмены ctx.
func (c *Consumer) drain(ctx context.Context, deliveries <-chan amqp.Delivery) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case raw, ok := <-deliveries:
			if !ok {
				return errDeliveriesClosed
			}
			c.dispatch(ctx, raw)
		}
	}
}

// dispatch разбирает конверт и вызывает handler с ack/nack по результату.
func (c *Consumer) dispatch(ctx context.Context, raw amqp.Delivery) {
	var msg Message
	if err := json.Unmarshal(raw.Body, &msg); err != nil {
		c.logger.Error("malformed message dropped",
			"queue", c.queue,
			"error", err,
			"body", string(raw.Body),
		)
		// Битый JSON не станет валидным от повторной доставки
		raw.Nack(false, false)
		return
	}

	c.logger.Debug("message received",
		"queue", c.queue,
		"message_id", msg.ID,
		"type", msg.Type,
	)

	if err := c.handler(ctx, &Delivery{Message: msg, Raw: raw}); err != nil {
		c.logger.Error("message handler failed",
			"queue", c.queue,
			"message_id", msg.ID,
			"type", msg.Type,
			"error", err,
		)
		raw.Nack(false, true)
		return
	}

	raw.Ack(false)
}

// ParsePayload приводит payload конверта к конкретному типу.
// После json.Unmarshal конверта payload — map; прогоняем через JSON.
func ParsePayload[T any](msg *Message) (T, error) {
	var out T

	raw, err := json.Marshal(msg.Payload)
	if err != nil {
		return out, fmt.Errorf("marshal payload: %w", err)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("unmarshal payload: %w", err)
	}
	return out, nil
}
