package bus

import (
	"log/slog"
	"sync"

	"github.com/shaiso/Maestro/internal/domain"
)

// Handler — обработчик доменного события.
//
// Вызывается синхронно на горутине публикующего, поэтому должен
// возвращаться быстро (переложить событие в канал/очередь и выйти).
// Паника обработчика гасится на границе шины.
type Handler func(event domain.Event)

// subscription — зарегистрированный обработчик.
type subscription struct {
	id      int
	handler Handler
}

// Bus — внутрипроцессная шина событий.
//
// Гарантии:
//   - Subscribe/Unsubscribe/Publish потокобезопасны
//   - Обработчики одного типа вызываются в порядке подписки
//   - Publish снимает снимок списка обработчиков: подписка,
//     добавленная во время публикации, не получит текущее событие,
//     но получит последующие
//   - Паника обработчика логируется и не мешает ни публикующему,
//     ни остальным обработчикам этой же публикации
//
// Доставка best-effort, событий шина не хранит.
type Bus struct {
	mu     sync.RWMutex
	nextID int

	// byType — обработчики конкретных типов (в порядке подписки).
	byType map[domain.EventType][]subscription

	// all — обработчики всех типов (транспорт, метрики).
	all []subscription

	logger *slog.Logger
}

// New создаёт новую шину событий.
func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.Default()
	}
	return &Bus{
		byType: make(map[domain.EventType][]subscription),
		logger: logger,
	}
}

// Subscribe регистрирует обработчик для событий типа eventType.
// Возвращает идентификатор подписки для Unsubscribe.
func (b *Bus) Subscribe(eventType domain.EventType, handler Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.byType[eventType] = append(b.byType[eventType], subscription{
		id:      b.nextID,
		handler: handler,
	})
	return b.nextID
}

// SubscribeAll регистрирует обработчик для событий всех типов.
// Такие обработчики вызываются после типизированных.
func (b *Bus) SubscribeAll(handler Handler) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.all = append(b.all, subscription{
		id:      b.nextID,
		handler: handler,
	})
	return b.nextID
}

// Unsubscribe удаляет подписку по идентификатору.
// Неизвестный идентификатор игнорируется.
func (b *Bus) Unsubscribe(id int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for eventType, subs := range b.byType {
		b.byType[eventType] = removeSub(subs, id)
	}
	b.all = removeSub(b.all, id)
}

// Publish доставляет событие всем текущим подписчикам его типа.
//
// Снимок обработчиков берётся под блокировкой, вызовы идут уже
// без неё: обработчик может безопасно подписываться/отписываться
// изнутри.
func (b *Bus) Publish(event domain.Event) {
	b.mu.RLock()
	typed := append([]subscription(nil), b.byType[event.Type]...)
	all := append([]subscription(nil), b.all...)
	b.mu.RUnlock()

	for _, sub := range typed {
		b.invoke(sub, event)
	}
	for _, sub := range all {
		b.invoke(sub, event)
	}
}

// invoke вызывает обработчик, гася панику на границе шины.
func (b *Bus) invoke(sub subscription, event domain.Event) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("event handler panicked",
				"subscription_id", sub.id,
				"event_type", event.Type,
				"event_id", event.ID,
				"panic", r,
			)
		}
	}()

	sub.handler(event)
}

// SubscriberCount возвращает количество подписчиков типа
// (без учёта SubscribeAll).
func (b *Bus) SubscriberCount(eventType domain.EventType) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.byType[eventType])
}

// removeSub удаляет подписку из списка, сохраняя порядок.
func removeSub(subs []subscription, id int) []subscription {
	for i, sub := range subs {
		if sub.id == id {
			return append(subs[:i:i], subs[i+1:]...)
		}
	}
	return subs
}
