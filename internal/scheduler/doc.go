// Package scheduler реализует тикер периодических планов.
//
// Scheduler периодически проверяет schedules с истекшим next_due_at,
// публикует plan.due в RabbitMQ и сдвигает next_due_at по
// cron-выражению. Выполнение плана остаётся за сервером,
// потребляющим очередь plans.due.
//
// Использование:
//
//	sched := scheduler.New(scheduler.Config{
//	    Schedules: scheduleRepo,
//	    Plans:     planRepo,
//	    Publisher: publisher,
//	    Logger:    logger,
//	})
//
//	// Вызывается каждый тик (обычно раз в секунду)
//	if err := sched.Tick(ctx); err != nil {
//	    logger.Error("scheduler tick failed", "error", err)
//	}
//
// Leader Election:
//
// Scheduler не реализует leader election самостоятельно.
// Это делается в main.go через pg_try_advisory_lock.
// Метод Tick() вызывается только лидером.
package scheduler
