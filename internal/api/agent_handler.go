package api

import (
	"net/http"

	"github.com/shaiso/Maestro/internal/invoker"
)

// RegisterAgent обрабатывает POST /api/v1/agents.
func (h *Handler) RegisterAgent(w http.ResponseWriter, r *http.Request) {
	var req RegisterAgentRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	ep := invoker.Endpoint{AgentID: req.AgentID, BaseURL: req.BaseURL}
	if err := h.registry.Register(ep); err != nil {
		BadRequest(w, err.Error())
		return
	}

	h.logger.Info("agent registered", "agent_id", ep.AgentID, "base_url", ep.BaseURL)
	Created(w, ep)
}

// ListAgents обрабатывает GET /api/v1/agents.
func (h *Handler) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents := h.registry.List()
	List(w, agents, len(agents))
}

// RemoveAgent обрабатывает DELETE /api/v1/agents/{id}.
func (h *Handler) RemoveAgent(w http.ResponseWriter, r *http.Request) {
	agentID := r.PathValue("id")
	if agentID == "" {
		BadRequest(w, "invalid id")
		return
	}

	h.registry.Remove(agentID)
	NoContent(w)
}
