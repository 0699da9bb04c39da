package api

import (
	"net/http"
)

// GetExecution обрабатывает GET /api/v1/executions/{id}.
func (h *Handler) GetExecution(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	snap := h.orch.GetExecutionStatus(id)
	if snap == nil {
		NotFound(w, "execution not found")
		return
	}

	Success(w, snap)
}

// CancelExecution обрабатывает POST /api/v1/executions/{id}/cancel.
func (h *Handler) CancelExecution(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if !h.orch.CancelExecution(id) {
		NotFound(w, "execution not found or already finished")
		return
	}

	Success(w, map[string]string{"status": "cancelling"})
}

// PruneExecution обрабатывает DELETE /api/v1/executions/{id}.
func (h *Handler) PruneExecution(w http.ResponseWriter, r *http.Request) {
	id, ok := pathUUID(w, r, "id")
	if !ok {
		return
	}

	if !h.orch.PruneExecution(id) {
		NotFound(w, "execution not found or still running")
		return
	}

	NoContent(w)
}
