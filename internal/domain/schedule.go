package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
)

// Schedule — расписание периодического выполнения плана.
//
// Scheduler проверяет NextDueAt и, когда время подошло, публикует
// plan.due в RabbitMQ; сервер подхватывает и запускает ExecutePlan.
type Schedule struct {
	// ID — уникальный идентификатор schedule.
	ID uuid.UUID `json:"id"`

	// PlanID — план, который нужно выполнять.
	PlanID uuid.UUID `json:"plan_id"`

	// Name — имя расписания для удобства.
	Name string `json:"name,omitempty"`

	// CronExpr — cron-выражение.
	// Формат: "минуты часы дни месяцы дни_недели"
	// Примеры:
	//   "0 9 * * *"   — каждый день в 9:00
	//   "*/5 * * * *" — каждые 5 минут
	CronExpr string `json:"cron_expr"`

	// Enabled — флаг активности расписания.
	Enabled bool `json:"enabled"`

	// NextDueAt — время следующего запуска.
	NextDueAt *time.Time `json:"next_due_at,omitempty"`

	// LastRunAt — время последнего запуска.
	LastRunAt *time.Time `json:"last_run_at,omitempty"`

	// LastExecutionID — ID последнего запущенного выполнения.
	LastExecutionID *uuid.UUID `json:"last_execution_id,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// UpdatedAt — время последнего обновления.
	UpdatedAt time.Time `json:"updated_at"`
}

// cronParser — стандартный 5-польный формат (без секунд).
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow,
)

// ValidateCronExpr проверяет корректность cron-выражения.
func ValidateCronExpr(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", expr, err)
	}
	return nil
}

// NextDue вычисляет следующее время запуска после from.
func (s *Schedule) NextDue(from time.Time) (time.Time, error) {
	sched, err := cronParser.Parse(s.CronExpr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cron expression: %w", err)
	}
	return sched.Next(from), nil
}

// IsDue проверяет, пора ли запускать.
func (s *Schedule) IsDue(now time.Time) bool {
	if !s.Enabled || s.NextDueAt == nil {
		return false
	}
	return !now.Before(*s.NextDueAt)
}

// Advance фиксирует срабатывание расписания и время следующего.
// Вызывается scheduler'ом в момент публикации plan.due.
func (s *Schedule) Advance(nextDue time.Time) {
	now := time.Now()
	s.LastRunAt = &now
	s.NextDueAt = &nextDue
	s.UpdatedAt = now
}

// RecordRun записывает выполнение, запущенное по этому расписанию.
// Вызывается сервером после старта выполнения.
func (s *Schedule) RecordRun(executionID uuid.UUID) {
	s.LastExecutionID = &executionID
	s.UpdatedAt = time.Now()
}
