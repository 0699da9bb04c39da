package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Maestro/internal/domain"
)

// CreateSchedule обрабатывает POST /api/v1/plans/{id}/schedules.
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	planID, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req CreateScheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := domain.ValidateCronExpr(req.CronExpr); err != nil {
		BadRequest(w, err.Error())
		return
	}

	if _, err := h.plans.GetByID(r.Context(), planID); HandleRepoError(w, h.logger, err, "plan not found") {
		return
	}

	enabled := true
	if req.Enabled != nil {
		enabled = *req.Enabled
	}

	now := time.Now()
	sched := &domain.Schedule{
		ID:        uuid.New(),
		PlanID:    planID,
		Name:      req.Name,
		CronExpr:  req.CronExpr,
		Enabled:   enabled,
		CreatedAt: now,
		UpdatedAt: now,
	}

	nextDue, err := sched.NextDue(now)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}
	sched.NextDueAt = &nextDue

	if err := h.schedules.Create(r.Context(), sched); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, ScheduleFromDomain(sched))
}

// ListSchedules обрабатывает GET /api/v1/schedules.
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	scheds, err := h.schedules.List(r.Context(), limit, offset)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	out := make([]ScheduleResponse, len(scheds))
	for i := range scheds {
		out[i] = ScheduleFromDomain(&scheds[i])
	}
	List(w, out, len(out))
}

// GetSchedule обрабатывает GET /api/v1/schedules/{id}.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	sched, err := h.schedules.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	Success(w, ScheduleFromDomain(sched))
}

// UpdateSchedule обрабатывает PUT /api/v1/schedules/{id}.
func (h *Handler) UpdateSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateScheduleRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	sched, err := h.schedules.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	if req.Name != nil {
		sched.Name = *req.Name
	}
	if req.CronExpr != nil {
		if err := domain.ValidateCronExpr(*req.CronExpr); err != nil {
			BadRequest(w, err.Error())
			return
		}
		sched.CronExpr = *req.CronExpr

		// Новое выражение — новое время следующего запуска
		nextDue, err := sched.NextDue(time.Now())
		if err != nil {
			BadRequest(w, err.Error())
			return
		}
		sched.NextDueAt = &nextDue
	}
	sched.UpdatedAt = time.Now()

	if err := h.schedules.Update(r.Context(), sched); HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	Success(w, ScheduleFromDomain(sched))
}

// DeleteSchedule обрабатывает DELETE /api/v1/schedules/{id}.
func (h *Handler) DeleteSchedule(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.schedules.Delete(r.Context(), id); HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	NoContent(w)
}

// SetScheduleEnabled обрабатывает PUT /api/v1/schedules/{id}/enabled.
func (h *Handler) SetScheduleEnabled(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req SetEnabledRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	if err := h.schedules.SetEnabled(r.Context(), id, req.Enabled); HandleRepoError(w, h.logger, err, "schedule not found") {
		return
	}

	Success(w, map[string]bool{"enabled": req.Enabled})
}
