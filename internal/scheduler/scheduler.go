package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Maestro/internal/domain"
	"github.com/shaiso/Maestro/internal/repo"
)

// ScheduleStore — доступ scheduler'а к расписаниям.
// Реализация — repo.ScheduleRepo.
type ScheduleStore interface {
	ListDue(ctx context.Context, now time.Time, limit int) ([]domain.Schedule, error)
	Update(ctx context.Context, schedule *domain.Schedule) error
}

// PlanStore — проверка существования плана.
// Реализация — repo.PlanRepo.
type PlanStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error)
}

// DuePublisher — публикация plan.due.
// Реализация — mq.Publisher.
type DuePublisher interface {
	PublishPlanDue(ctx context.Context, scheduleID, planID uuid.UUID) error
}

// Scheduler — планировщик, обрабатывающий due schedules.
type Scheduler struct {
	schedules ScheduleStore
	plans     PlanStore
	publisher DuePublisher
	logger    *slog.Logger
	batchSize int
}

// Config — конфигурация Scheduler.
type Config struct {
	Schedules ScheduleStore
	Plans     PlanStore
	Publisher DuePublisher
	Logger    *slog.Logger
	BatchSize int // количество schedules за один тик (default: 100)
}

// New создаёт новый Scheduler.
func New(cfg Config) *Scheduler {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Scheduler{
		schedules: cfg.Schedules,
		plans:     cfg.Plans,
		publisher: cfg.Publisher,
		logger:    logger,
		batchSize: batchSize,
	}
}

// Tick выполняет один тик планировщика.
//
// 1. Находит due schedules (enabled=true, next_due_at <= now)
// 2. Для каждого проверяет, что план существует
// 3. Публикует plan.due в RabbitMQ
// 4. Сдвигает next_due_at по cron-выражению
//
// Ошибки одного schedule не блокируют обработку остальных.
func (s *Scheduler) Tick(ctx context.Context) error {
	now := time.Now()

	schedules, err := s.schedules.ListDue(ctx, now, s.batchSize)
	if err != nil {
		return fmt.Errorf("list due schedules: %w", err)
	}

	if len(schedules) == 0 {
		return nil
	}

	s.logger.Debug("found due schedules", "count", len(schedules))

	var published int
	for i := range schedules {
		sched := &schedules[i]

		if err := s.processSchedule(ctx, sched, now); err != nil {
			s.logger.Error("failed to process schedule",
				"schedule_id", sched.ID,
				"schedule_name", sched.Name,
				"error", err,
			)
			continue
		}
		published++
	}

	s.logger.Info("scheduler tick completed",
		"due", len(schedules),
		"published", published,
	)

	return nil
}

// processSchedule обрабатывает один due schedule.
func (s *Scheduler) processSchedule(ctx context.Context, sched *domain.Schedule, now time.Time) error {
	// План мог быть удалён после создания расписания
	if _, err := s.plans.GetByID(ctx, sched.PlanID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			s.logger.Warn("plan not found for schedule, disabling",
				"schedule_id", sched.ID,
				"plan_id", sched.PlanID,
			)
			sched.Enabled = false
			sched.UpdatedAt = time.Now()
			return s.schedules.Update(ctx, sched)
		}
		return fmt.Errorf("get plan: %w", err)
	}

	if err := s.publisher.PublishPlanDue(ctx, sched.ID, sched.PlanID); err != nil {
		// next_due_at не трогаем: следующий тик попробует ещё раз
		return fmt.Errorf("publish plan.due: %w", err)
	}

	nextDue, err := sched.NextDue(now)
	if err != nil {
		// Cron-выражение испортилось — выключаем, чтобы не молотить
		s.logger.Error("failed to calculate next due, disabling schedule",
			"schedule_id", sched.ID,
			"error", err,
		)
		sched.Enabled = false
		sched.UpdatedAt = time.Now()
		return s.schedules.Update(ctx, sched)
	}

	sched.Advance(nextDue)
	if err := s.schedules.Update(ctx, sched); err != nil {
		return fmt.Errorf("update schedule: %w", err)
	}

	s.logger.Info("published plan.due",
		"schedule_id", sched.ID,
		"plan_id", sched.PlanID,
		"next_due_at", nextDue,
	)

	return nil
}
