package bus

import (
	"log/slog"
	"sync"
	"testing"

	"github.com/shaiso/Maestro/internal/domain"
)

func newTestBus() *Bus {
	return New(slog.Default())
}

func TestPublish_SubscriptionOrder(t *testing.T) {
	b := newTestBus()

	var order []string
	b.Subscribe(domain.EventStepCompleted, func(domain.Event) {
		order = append(order, "h1")
	})
	b.Subscribe(domain.EventStepCompleted, func(domain.Event) {
		order = append(order, "h2")
	})

	b.Publish(domain.NewEvent(domain.EventStepCompleted, "test", nil))

	if len(order) != 2 || order[0] != "h1" || order[1] != "h2" {
		t.Errorf("expected [h1 h2], got %v", order)
	}
}

func TestPublish_ExactlyOncePerHandler(t *testing.T) {
	b := newTestBus()

	count := 0
	b.Subscribe(domain.EventPlanCreated, func(domain.Event) { count++ })

	b.Publish(domain.NewEvent(domain.EventPlanCreated, "test", nil))

	if count != 1 {
		t.Errorf("expected handler to be invoked once, got %d", count)
	}
}

func TestPublish_TypeIsolation(t *testing.T) {
	b := newTestBus()

	var got []domain.EventType
	b.Subscribe(domain.EventSessionCreated, func(e domain.Event) {
		got = append(got, e.Type)
	})

	b.Publish(domain.NewEvent(domain.EventPlanCreated, "test", nil))
	b.Publish(domain.NewEvent(domain.EventSessionCreated, "test", nil))

	if len(got) != 1 || got[0] != domain.EventSessionCreated {
		t.Errorf("handler should see only its own type, got %v", got)
	}
}

func TestPublish_PanicIsolation(t *testing.T) {
	b := newTestBus()

	h2Called := false
	b.Subscribe(domain.EventError, func(domain.Event) {
		panic("handler failure")
	})
	b.Subscribe(domain.EventError, func(domain.Event) {
		h2Called = true
	})

	// Паника первого обработчика не должна дойти до публикующего
	// и не должна помешать второму
	b.Publish(domain.NewEvent(domain.EventError, "test", nil))

	if !h2Called {
		t.Error("h2 should still receive the event after h1 panicked")
	}
}

func TestUnsubscribe(t *testing.T) {
	b := newTestBus()

	count := 0
	id := b.Subscribe(domain.EventStepStarted, func(domain.Event) { count++ })

	b.Publish(domain.NewEvent(domain.EventStepStarted, "test", nil))
	b.Unsubscribe(id)
	b.Publish(domain.NewEvent(domain.EventStepStarted, "test", nil))

	if count != 1 {
		t.Errorf("expected 1 invocation after unsubscribe, got %d", count)
	}
	if b.SubscriberCount(domain.EventStepStarted) != 0 {
		t.Error("subscriber count should be 0 after unsubscribe")
	}
}

func TestSubscribeAll(t *testing.T) {
	b := newTestBus()

	var got []domain.EventType
	b.SubscribeAll(func(e domain.Event) {
		got = append(got, e.Type)
	})

	b.Publish(domain.NewEvent(domain.EventSessionCreated, "test", nil))
	b.Publish(domain.NewEvent(domain.EventExecutionCompleted, "test", nil))

	if len(got) != 2 {
		t.Errorf("expected 2 events, got %d", len(got))
	}
}

func TestSubscribeAll_AfterTyped(t *testing.T) {
	b := newTestBus()

	var order []string
	b.SubscribeAll(func(domain.Event) { order = append(order, "all") })
	b.Subscribe(domain.EventError, func(domain.Event) { order = append(order, "typed") })

	b.Publish(domain.NewEvent(domain.EventError, "test", nil))

	if len(order) != 2 || order[0] != "typed" || order[1] != "all" {
		t.Errorf("typed handlers run before SubscribeAll handlers, got %v", order)
	}
}

func TestPublish_MidPublishSubscribe(t *testing.T) {
	b := newTestBus()

	lateCount := 0
	b.Subscribe(domain.EventMessageAdded, func(domain.Event) {
		// Подписка изнутри обработчика: событие в полёте
		// новый подписчик получить не должен
		b.Subscribe(domain.EventMessageAdded, func(domain.Event) {
			lateCount++
		})
	})

	b.Publish(domain.NewEvent(domain.EventMessageAdded, "test", nil))
	if lateCount != 0 {
		t.Error("handler added mid-publish must not receive the in-flight event")
	}

	b.Publish(domain.NewEvent(domain.EventMessageAdded, "test", nil))
	if lateCount != 1 {
		t.Errorf("handler added mid-publish must receive subsequent events, got %d", lateCount)
	}
}

func TestBus_ConcurrentPublishSubscribe(t *testing.T) {
	b := newTestBus()

	var mu sync.Mutex
	received := 0
	b.Subscribe(domain.EventStepCompleted, func(domain.Event) {
		mu.Lock()
		received++
		mu.Unlock()
	})

	const publishers = 8
	const perPublisher = 50

	var wg sync.WaitGroup
	for i := 0; i < publishers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perPublisher; j++ {
				b.Publish(domain.NewEvent(domain.EventStepCompleted, "test", nil))
			}
		}()
	}

	// Подписки/отписки вперемешку с публикациями
	wg.Add(1)
	go func() {
		defer wg.Done()
		for j := 0; j < perPublisher; j++ {
			id := b.Subscribe(domain.EventStepStarted, func(domain.Event) {})
			b.Unsubscribe(id)
		}
	}()

	wg.Wait()

	mu.Lock()
	defer mu.Unlock()
	if received != publishers*perPublisher {
		t.Errorf("expected %d events, got %d", publishers*perPublisher, received)
	}
}
