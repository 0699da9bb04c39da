package invoker

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

const defaultInvokeTimeout = 5 * time.Minute

// HTTPInvoker — AgentInvoker поверх HTTP.
//
// Агент — это HTTP-сервис, зарегистрированный в Registry.
// Invoke отправляет POST {base_url}/invoke с телом:
//
//	{"agent_id": "...", "task": "..."}
//
// и ожидает ответ:
//
//	{"success": true, "output": "...", "error": ""}
//
// Стриминг, если агент его использует, агрегируется на стороне
// агента — сюда приходит только финальный результат.
type HTTPInvoker struct {
	registry *Registry
	client   *http.Client
}

// NewHTTPInvoker создаёт HTTPInvoker поверх реестра агентов.
func NewHTTPInvoker(registry *Registry) *HTTPInvoker {
	return &HTTPInvoker{
		registry: registry,
		client:   &http.Client{},
	}
}

// invokeRequest — тело запроса к агенту.
type invokeRequest struct {
	AgentID string `json:"agent_id"`
	Task    string `json:"task"`
}

// invokeResponse — тело ответа агента.
type invokeResponse struct {
	Success bool   `json:"success"`
	Output  string `json:"output,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Invoke вызывает агента. Ошибки не пробрасываются: любой сбой
// превращается в Result{Success: false}.
func (h *HTTPInvoker) Invoke(ctx context.Context, agentID, task string, timeout time.Duration) Result {
	ep, err := h.registry.Lookup(agentID)
	if err != nil {
		return failure(err)
	}

	if timeout <= 0 {
		timeout = defaultInvokeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	body, err := json.Marshal(invokeRequest{AgentID: agentID, Task: task})
	if err != nil {
		return failure(fmt.Errorf("marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.BaseURL+"/invoke", bytes.NewReader(body))
	if err != nil {
		return failure(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		// Отмену/таймаут отдаём как есть: оркестратор по ctx.Err()
		// отличает TIMED_OUT от FAILED
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return failure(ctx.Err())
		}
		return failure(fmt.Errorf("invoke agent %s: %w", agentID, err))
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return failure(fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode >= 400 {
		return failure(fmt.Errorf("agent %s returned HTTP %d: %s",
			agentID, resp.StatusCode, truncate(string(respBody), 200)))
	}

	var parsed invokeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return failure(fmt.Errorf("unmarshal response: %w", err))
	}

	return Result{
		Success: parsed.Success,
		Output:  parsed.Output,
		Error:   parsed.Error,
	}
}

// failure строит неуспешный Result из ошибки.
func failure(err error) Result {
	return Result{Success: false, Error: err.Error()}
}

// truncate обрезает строку до max символов.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
