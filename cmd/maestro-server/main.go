// Maestro Server — HTTP API и ядро оркестрации.
//
// Server:
//   - Обслуживает REST API (сессии, планы, выполнения, расписания, агенты)
//   - Выполняет планы через Orchestrator и HTTP-агентов
//   - Потребляет plan.due из RabbitMQ и запускает плановые выполнения
//   - Ретранслирует доменные события в RabbitMQ (EventBridge)
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/Maestro/internal/api"
	"github.com/shaiso/Maestro/internal/bus"
	"github.com/shaiso/Maestro/internal/domain"
	"github.com/shaiso/Maestro/internal/invoker"
	"github.com/shaiso/Maestro/internal/mq"
	"github.com/shaiso/Maestro/internal/orchestrator"
	"github.com/shaiso/Maestro/internal/repo"
	"github.com/shaiso/Maestro/internal/session"
	"github.com/shaiso/Maestro/internal/telemetry"
)

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting maestro-server")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	// Репозитории
	sessionRepo := repo.NewSessionRepo(pool)
	planRepo := repo.NewPlanRepo(pool)
	scheduleRepo := repo.NewScheduleRepo(pool)

	// Шина событий и метрики
	eventBus := bus.New(logger)
	metrics := telemetry.NewMetrics(nil)
	metrics.Observe(eventBus)

	// Реестр агентов и invoker
	registry := invoker.NewRegistry()
	agentInvoker := invoker.NewHTTPInvoker(registry)

	// Ядро
	orch := orchestrator.New(orchestrator.Config{
		Bus:     eventBus,
		Invoker: agentInvoker,
		Logger:  logger,
	})
	sessions := session.NewManager(sessionRepo, eventBus, logger)

	// Поднимаем сохранённые сессии в память до приёма трафика
	if _, err := sessions.Restore(ctx, sessionRepo); err != nil {
		logger.Warn("session restore incomplete", "error", err)
	}

	// RabbitMQ: мост событий + потребитель plan.due.
	// Без брокера сервер работает, но плановые запуски не приходят.
	mqURL := os.Getenv("RABBITMQ_URL")
	if mqURL == "" {
		mqURL = mq.DefaultURL()
	}

	mqConn, err := mq.NewConnection(mqURL, logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, scheduled executions disabled", "error", err)
	} else {
		defer mqConn.Close()
		logger.Info("RabbitMQ connected")

		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		publisher := mq.NewPublisher(mqConn, logger)

		bridge := mq.NewEventBridge(publisher, eventBus, logger)
		bridge.Start(ctx)
		defer bridge.Stop()

		consumer := mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
			Queue:   string(mq.QueuePlansDue),
			Handler: planDueHandler(orch, planRepo, scheduleRepo, eventBus, logger),
		})
		go func() {
			if err := consumer.Start(ctx); err != nil && ctx.Err() == nil {
				logger.Error("plan.due consumer stopped", "error", err)
			}
		}()
	}

	// API handler
	handler := api.NewHandler(api.Config{
		Sessions:  sessions,
		Orch:      orch,
		Registry:  registry,
		Plans:     planRepo,
		Schedules: scheduleRepo,
		Logger:    logger,
	})

	mux := http.NewServeMux()

	// Health и metrics
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())

	addr := ":8080"
	if v := os.Getenv("API_PORT"); v != "" {
		addr = ":" + v
	}

	// Создаём HTTP сервер с возможностью graceful shutdown
	server := &http.Server{
		Addr:    addr,
		Handler: handler.RegisterRoutes(mux),
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	// Graceful shutdown с таймаутом 10 секунд
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("stopped")
}

// planDueHandler возвращает обработчик сообщений plan.due:
// загрузить план, запустить выполнение, привязать его к расписанию.
func planDueHandler(
	orch *orchestrator.Orchestrator,
	plans *repo.PlanRepo,
	schedules *repo.ScheduleRepo,
	eventBus *bus.Bus,
	logger *slog.Logger,
) mq.Handler {
	fail := func(err error) error {
		eventBus.Publish(domain.NewEvent(domain.EventError, "maestro-server", domain.ErrorPayload{
			Scope:   "plan.due",
			Message: err.Error(),
		}))
		return err
	}

	return func(ctx context.Context, d *mq.Delivery) error {
		payload, err := mq.ParsePayload[mq.PlanDuePayload](&d.Message)
		if err != nil {
			return fail(fmt.Errorf("parse plan.due payload: %w", err))
		}

		plan, err := plans.GetByID(ctx, payload.PlanID)
		if err != nil {
			return fail(fmt.Errorf("load plan %s: %w", payload.PlanID, err))
		}

		// Сброс статусов: план мог выполняться раньше
		for i := range plan.Steps {
			plan.Steps[i].Status = domain.StepStatusPending
		}

		execID, done, err := orch.StartExecution(context.Background(), plan, nil)
		if err != nil {
			return fail(fmt.Errorf("start execution for plan %s: %w", plan.ID, err))
		}

		logger.Info("scheduled execution started",
			"schedule_id", payload.ScheduleID,
			"plan_id", plan.ID,
			"execution_id", execID,
		)

		// Привязываем выполнение к расписанию
		if sched, err := schedules.GetByID(ctx, payload.ScheduleID); err == nil {
			sched.RecordRun(execID)
			if err := schedules.Update(ctx, sched); err != nil {
				logger.Warn("failed to record schedule run", "schedule_id", sched.ID, "error", err)
			}
		}

		// Финальные статусы шагов сохраняем после завершения
		go func() {
			if res := <-done; res != nil {
				if err := plans.UpdateSteps(context.Background(), plan); err != nil {
					logger.Error("persist step statuses", "plan_id", plan.ID, "error", err)
				}
			}
		}()

		return nil
	}
}
