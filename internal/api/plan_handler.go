package api

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/shaiso/Maestro/internal/domain"
	"github.com/shaiso/Maestro/internal/orchestrator"
)

// CreatePlan обрабатывает POST /api/v1/plans.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	var req CreatePlanRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	var sessionID uuid.UUID
	if req.SessionID != "" {
		parsed, err := uuid.Parse(req.SessionID)
		if err != nil {
			BadRequest(w, "invalid session_id")
			return
		}
		if _, err := h.sessions.GetSession(parsed); err != nil {
			NotFound(w, "session not found")
			return
		}
		sessionID = parsed
	}

	steps := make([]domain.Step, len(req.Steps))
	for i, s := range req.Steps {
		steps[i] = s.ToDomain()
	}

	plan, err := h.orch.CreatePlan(orchestrator.CreatePlanRequest{
		SessionID: sessionID,
		Goal:      req.Goal,
		Strategy:  domain.ParseStrategy(req.Strategy),
		AgentIDs:  req.AgentIDs,
		Steps:     steps,
		Context:   req.Context,
	})
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	if h.plans != nil {
		if err := h.plans.Create(r.Context(), plan); err != nil {
			InternalError(w, h.logger, err)
			return
		}
	}

	Created(w, PlanFromDomain(plan))
}

// GetPlan обрабатывает GET /api/v1/plans/{id}.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	plan, err := h.plans.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "plan not found") {
		return
	}

	Success(w, PlanFromDomain(plan))
}

// ExecutePlan обрабатывает POST /api/v1/plans/{id}/execute.
//
// Выполнение асинхронное: ответ 202 с execution_id уходит сразу,
// статус доступен через GET /api/v1/executions/{id}.
func (h *Handler) ExecutePlan(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	plan, err := h.plans.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "plan not found") {
		return
	}

	// Сброс статусов: план мог выполняться раньше
	for i := range plan.Steps {
		plan.Steps[i].Status = domain.StepStatusPending
	}

	// Контекст запроса не годится: выполнение переживает HTTP-запрос.
	execID, done, err := h.orch.StartExecution(context.Background(), plan, nil)
	if err != nil {
		BadRequest(w, err.Error())
		return
	}

	go h.persistOutcome(plan, done)

	Accepted(w, ExecutionStartedResponse{ExecutionID: execID, PlanID: plan.ID})
}

// persistOutcome дожидается завершения выполнения и сохраняет
// финальные статусы шагов.
func (h *Handler) persistOutcome(plan *domain.Plan, done <-chan *domain.ExecutionResult) {
	res := <-done
	if res == nil {
		return
	}

	if h.plans != nil {
		if err := h.plans.UpdateSteps(context.Background(), plan); err != nil {
			h.logger.Error("persist step statuses",
				"plan_id", plan.ID,
				"execution_id", res.ExecutionID,
				"error", err,
			)
		}
	}
}
