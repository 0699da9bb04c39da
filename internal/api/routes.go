package api

import "net/http"

// RegisterRoutes регистрирует все маршруты API на mux и возвращает
// обработчик, обёрнутый в middleware.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) http.Handler {
	// Сессии
	mux.HandleFunc("POST /api/v1/sessions", h.CreateSession)
	mux.HandleFunc("GET /api/v1/sessions", h.ListSessions)
	mux.HandleFunc("GET /api/v1/sessions/{id}", h.GetSession)
	mux.HandleFunc("POST /api/v1/sessions/{id}/messages", h.AddMessage)
	mux.HandleFunc("POST /api/v1/sessions/{id}/end", h.EndSession)
	mux.HandleFunc("POST /api/v1/sessions/{id}/pause", h.PauseSession)
	mux.HandleFunc("POST /api/v1/sessions/{id}/resume", h.ResumeSession)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/context", h.UpdateSessionContext)
	mux.HandleFunc("POST /api/v1/sessions/{id}/agents", h.AddSessionAgent)
	mux.HandleFunc("GET /api/v1/sessions/{id}/plans", h.ListSessionPlans)

	// Планы
	mux.HandleFunc("POST /api/v1/plans", h.CreatePlan)
	mux.HandleFunc("GET /api/v1/plans/{id}", h.GetPlan)
	mux.HandleFunc("POST /api/v1/plans/{id}/execute", h.ExecutePlan)
	mux.HandleFunc("POST /api/v1/plans/{id}/schedules", h.CreateSchedule)

	// Выполнения
	mux.HandleFunc("GET /api/v1/executions/{id}", h.GetExecution)
	mux.HandleFunc("POST /api/v1/executions/{id}/cancel", h.CancelExecution)
	mux.HandleFunc("DELETE /api/v1/executions/{id}", h.PruneExecution)

	// Расписания
	mux.HandleFunc("GET /api/v1/schedules", h.ListSchedules)
	mux.HandleFunc("GET /api/v1/schedules/{id}", h.GetSchedule)
	mux.HandleFunc("PUT /api/v1/schedules/{id}", h.UpdateSchedule)
	mux.HandleFunc("DELETE /api/v1/schedules/{id}", h.DeleteSchedule)
	mux.HandleFunc("PUT /api/v1/schedules/{id}/enabled", h.SetScheduleEnabled)

	// Агенты
	mux.HandleFunc("POST /api/v1/agents", h.RegisterAgent)
	mux.HandleFunc("GET /api/v1/agents", h.ListAgents)
	mux.HandleFunc("DELETE /api/v1/agents/{id}", h.RemoveAgent)

	return Chain(mux,
		Recovery(h.logger),
		Logging(h.logger),
	)
}
