package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/shaiso/Maestro/internal/bus"
	"github.com/shaiso/Maestro/internal/domain"
)

// Metrics — Prometheus-коллекторы оркестрации.
//
// Наполняются подписчиком шины событий (Observe): ядро ничего не
// знает о метриках, наблюдаемость целиком живёт на границе шины.
type Metrics struct {
	eventsTotal       *prometheus.CounterVec
	sessionsCreated   prometheus.Counter
	messagesTotal     prometheus.Counter
	plansCreated      prometheus.Counter
	stepsTotal        *prometheus.CounterVec
	stepDuration      prometheus.Histogram
	executionsTotal   *prometheus.CounterVec
	executionDuration prometheus.Histogram
}

// NewMetrics создаёт и регистрирует коллекторы.
// reg == nil регистрирует в дефолтном реестре (его отдаёт promhttp).
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maestro_events_total",
			Help: "Domain events published on the in-process bus.",
		}, []string{"type"}),

		sessionsCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "maestro_sessions_created_total",
			Help: "Sessions created.",
		}),

		messagesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "maestro_session_messages_total",
			Help: "Messages appended to session histories.",
		}),

		plansCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "maestro_plans_created_total",
			Help: "Plans created by the orchestrator.",
		}),

		stepsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maestro_steps_total",
			Help: "Settled plan steps by final status.",
		}, []string{"status"}),

		stepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "maestro_step_duration_seconds",
			Help:    "Wall-clock duration of dispatched steps.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}),

		executionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "maestro_executions_total",
			Help: "Finished plan executions by final status.",
		}, []string{"status"}),

		executionDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "maestro_execution_duration_seconds",
			Help:    "Wall-clock duration of plan executions.",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
	}

	reg.MustRegister(
		m.eventsTotal,
		m.sessionsCreated,
		m.messagesTotal,
		m.plansCreated,
		m.stepsTotal,
		m.stepDuration,
		m.executionsTotal,
		m.executionDuration,
	)

	return m
}

// Observe подписывает метрики на все события шины.
// Возвращает id подписки для Unsubscribe.
func (m *Metrics) Observe(b *bus.Bus) int {
	return b.SubscribeAll(m.handle)
}

// handle обновляет коллекторы по событию.
func (m *Metrics) handle(e domain.Event) {
	m.eventsTotal.WithLabelValues(string(e.Type)).Inc()

	switch e.Type {
	case domain.EventSessionCreated:
		m.sessionsCreated.Inc()

	case domain.EventMessageAdded:
		m.messagesTotal.Inc()

	case domain.EventPlanCreated:
		m.plansCreated.Inc()

	case domain.EventStepCompleted:
		payload, ok := e.Payload.(domain.StepCompletedPayload)
		if !ok {
			return
		}
		m.stepsTotal.WithLabelValues(string(payload.Result.Status)).Inc()
		if payload.Result.Status != domain.StepStatusSkipped {
			m.stepDuration.Observe(payload.Result.Duration.Seconds())
		}

	case domain.EventExecutionCompleted:
		payload, ok := e.Payload.(domain.ExecutionCompletedPayload)
		if !ok {
			return
		}
		m.executionsTotal.WithLabelValues(string(payload.Status)).Inc()
		m.executionDuration.Observe(payload.Duration.Seconds())

	case domain.EventExecutionCancelled:
		m.executionsTotal.WithLabelValues(string(domain.ExecutionStatusCancelled)).Inc()
	}
}
