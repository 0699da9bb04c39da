package api

import (
	"net/http"

	"github.com/shaiso/Maestro/internal/domain"
)

// CreateSession обрабатывает POST /api/v1/sessions.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	s, err := h.sessions.CreateSession(r.Context(), req.Name, req.AgentIDs, req.WorkDir)
	if HandleSessionError(w, h.logger, err) {
		return
	}

	Created(w, SessionFromDomain(s))
}

// ListSessions обрабатывает GET /api/v1/sessions.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions := h.sessions.ListSessions()

	out := make([]SessionResponse, len(sessions))
	for i, s := range sessions {
		out[i] = SessionFromDomain(s)
	}
	List(w, out, len(out))
}

// GetSession обрабатывает GET /api/v1/sessions/{id}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	s, err := h.sessions.GetSession(id)
	if HandleSessionError(w, h.logger, err) {
		return
	}

	Success(w, SessionFromDomain(s))
}

// AddMessage обрабатывает POST /api/v1/sessions/{id}/messages.
func (h *Handler) AddMessage(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req AddMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.sessions.AddMessage(r.Context(), id, req.AgentID, req.Role, req.Content)
	if HandleSessionError(w, h.logger, err) {
		return
	}

	Created(w, msg)
}

// EndSession обрабатывает POST /api/v1/sessions/{id}/end.
func (h *Handler) EndSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req EndSessionRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	status := domain.SessionStatus(req.Status)
	if status == "" {
		status = domain.SessionStatusCompleted
	}

	ended, err := h.sessions.EndSession(r.Context(), id, status)
	if HandleSessionError(w, h.logger, err) {
		return
	}

	Success(w, map[string]any{"ended": ended, "status": status})
}

// PauseSession обрабатывает POST /api/v1/sessions/{id}/pause.
func (h *Handler) PauseSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.sessions.PauseSession(r.Context(), id); HandleSessionError(w, h.logger, err) {
		return
	}
	Success(w, map[string]string{"status": string(domain.SessionStatusPaused)})
}

// ResumeSession обрабатывает POST /api/v1/sessions/{id}/resume.
func (h *Handler) ResumeSession(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if err := h.sessions.ResumeSession(r.Context(), id); HandleSessionError(w, h.logger, err) {
		return
	}
	Success(w, map[string]string{"status": string(domain.SessionStatusActive)})
}

// UpdateSessionContext обрабатывает PUT /api/v1/sessions/{id}/context.
func (h *Handler) UpdateSessionContext(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req UpdateContextRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if len(req.Context) == 0 {
		BadRequest(w, "context patch must not be empty")
		return
	}

	if err := h.sessions.UpdateContext(r.Context(), id, req.Context); HandleSessionError(w, h.logger, err) {
		return
	}

	s, err := h.sessions.GetSession(id)
	if HandleSessionError(w, h.logger, err) {
		return
	}
	Success(w, SessionFromDomain(s))
}

// AddSessionAgent обрабатывает POST /api/v1/sessions/{id}/agents.
func (h *Handler) AddSessionAgent(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	var req AddAgentRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.AgentID == "" {
		BadRequest(w, "agent_id is required")
		return
	}

	if err := h.sessions.AddAgent(r.Context(), id, req.AgentID); HandleSessionError(w, h.logger, err) {
		return
	}
	Success(w, map[string]string{"agent_id": req.AgentID})
}

// ListSessionPlans обрабатывает GET /api/v1/sessions/{id}/plans.
func (h *Handler) ListSessionPlans(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	limit := queryInt(r, "limit", 50)
	offset := queryInt(r, "offset", 0)

	plans, err := h.plans.ListBySession(r.Context(), id, limit, offset)
	if HandleRepoError(w, h.logger, err, "session not found") {
		return
	}

	out := make([]PlanResponse, len(plans))
	for i := range plans {
		out[i] = PlanFromDomain(&plans[i])
	}
	List(w, out, len(out))
}
