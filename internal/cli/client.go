package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// SessionResponse — сессия из API.
type SessionResponse struct {
	ID             string            `json:"id"`
	Name           string            `json:"name"`
	Status         string            `json:"status"`
	AgentIDs       []string          `json:"agent_ids,omitempty"`
	Messages       []MessageResponse `json:"messages,omitempty"`
	Context        map[string]any    `json:"context,omitempty"`
	WorkDir        string            `json:"work_dir,omitempty"`
	CreatedAt      string            `json:"created_at"`
	LastActivityAt string            `json:"last_activity_at"`
}

// MessageResponse — сообщение из API.
type MessageResponse struct {
	ID        string `json:"id"`
	Seq       int    `json:"seq"`
	AgentID   string `json:"agent_id,omitempty"`
	Role      string `json:"role"`
	Content   string `json:"content"`
	CreatedAt string `json:"created_at"`
}

// StepResponse — шаг плана из API.
type StepResponse struct {
	ID              string   `json:"id"`
	Order           int      `json:"order"`
	AgentID         string   `json:"agent_id"`
	Task            string   `json:"task"`
	DependsOn       []string `json:"depends_on,omitempty"`
	TimeoutSeconds  int      `json:"timeout_seconds,omitempty"`
	ExpectedSeconds int      `json:"expected_seconds,omitempty"`
	Status          string   `json:"status"`
}

// PlanResponse — план из API.
type PlanResponse struct {
	ID        string         `json:"id"`
	SessionID string         `json:"session_id,omitempty"`
	Goal      string         `json:"goal"`
	Strategy  string         `json:"strategy"`
	AgentIDs  []string       `json:"agent_ids"`
	Steps     []StepResponse `json:"steps"`
	Context   map[string]any `json:"context,omitempty"`
	CreatedAt string         `json:"created_at"`
}

// ExecutionStartedResponse — ответ на запуск выполнения.
type ExecutionStartedResponse struct {
	ExecutionID string `json:"execution_id"`
	PlanID      string `json:"plan_id"`
}

// StepResultResponse — результат шага из API.
type StepResultResponse struct {
	StepID   string `json:"step_id"`
	Status   string `json:"status"`
	Success  bool   `json:"success"`
	Output   string `json:"output,omitempty"`
	Error    string `json:"error,omitempty"`
	Duration int64  `json:"duration"`
}

// ExecutionResponse — снимок выполнения из API.
type ExecutionResponse struct {
	ExecutionID string `json:"execution_id"`
	PlanID      string `json:"plan_id"`
	Status      string `json:"status"`
	Progress    struct {
		Completed int `json:"completed"`
		Total     int `json:"total"`
	} `json:"progress"`
	StepResults map[string]StepResultResponse `json:"step_results"`
	StartedAt   string                        `json:"started_at"`
	CompletedAt string                        `json:"completed_at,omitempty"`
}

// ScheduleResponse — schedule из API.
type ScheduleResponse struct {
	ID              string `json:"id"`
	PlanID          string `json:"plan_id"`
	Name            string `json:"name,omitempty"`
	CronExpr        string `json:"cron_expr"`
	Enabled         bool   `json:"enabled"`
	NextDueAt       string `json:"next_due_at,omitempty"`
	LastRunAt       string `json:"last_run_at,omitempty"`
	LastExecutionID string `json:"last_execution_id,omitempty"`
	CreatedAt       string `json:"created_at"`
	UpdatedAt       string `json:"updated_at"`
}

// AgentResponse — агент из API.
type AgentResponse struct {
	AgentID string `json:"agent_id"`
	BaseURL string `json:"base_url"`
}

// --- Request types ---

// CreateSessionRequest — создание сессии.
type CreateSessionRequest struct {
	Name     string   `json:"name"`
	AgentIDs []string `json:"agent_ids,omitempty"`
	WorkDir  string   `json:"work_dir,omitempty"`
}

// AddMessageRequest — добавление сообщения.
type AddMessageRequest struct {
	AgentID string `json:"agent_id,omitempty"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StepRequest — шаг плана при создании.
type StepRequest struct {
	ID              string   `json:"id"`
	Order           int      `json:"order"`
	AgentID         string   `json:"agent_id"`
	Task            string   `json:"task"`
	DependsOn       []string `json:"depends_on,omitempty"`
	TimeoutSeconds  int      `json:"timeout_seconds,omitempty"`
	ExpectedSeconds int      `json:"expected_seconds,omitempty"`
}

// CreatePlanRequest — создание плана.
type CreatePlanRequest struct {
	SessionID string         `json:"session_id,omitempty"`
	Goal      string         `json:"goal"`
	Strategy  string         `json:"strategy,omitempty"`
	AgentIDs  []string       `json:"agent_ids"`
	Steps     []StepRequest  `json:"steps"`
	Context   map[string]any `json:"context,omitempty"`
}

// CreateScheduleRequest — создание schedule.
type CreateScheduleRequest struct {
	Name     string `json:"name,omitempty"`
	CronExpr string `json:"cron_expr"`
	Enabled  *bool  `json:"enabled,omitempty"`
}

// UpdateScheduleRequest — обновление schedule.
type UpdateScheduleRequest struct {
	Name     *string `json:"name,omitempty"`
	CronExpr *string `json:"cron_expr,omitempty"`
}

// RegisterAgentRequest — регистрация агента.
type RegisterAgentRequest struct {
	AgentID string `json:"agent_id"`
	BaseURL string `json:"base_url"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Maestro API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Sessions ---

// ListSessions возвращает все сессии.
func (c *Client) ListSessions() ([]SessionResponse, error) {
	var sessions []SessionResponse
	err := c.list("/api/v1/sessions", nil, &sessions)
	return sessions, err
}

// CreateSession создаёт новую сессию.
func (c *Client) CreateSession(req CreateSessionRequest) (*SessionResponse, error) {
	var s SessionResponse
	err := c.post("/api/v1/sessions", req, &s)
	return &s, err
}

// GetSession возвращает сессию по ID.
func (c *Client) GetSession(id string) (*SessionResponse, error) {
	var s SessionResponse
	err := c.get("/api/v1/sessions/"+id, &s)
	return &s, err
}

// AddMessage добавляет сообщение в сессию.
func (c *Client) AddMessage(sessionID string, req AddMessageRequest) (*MessageResponse, error) {
	var msg MessageResponse
	err := c.post("/api/v1/sessions/"+sessionID+"/messages", req, &msg)
	return &msg, err
}

// EndSession завершает сессию.
func (c *Client) EndSession(id, status string) error {
	body := map[string]string{"status": status}
	return c.post("/api/v1/sessions/"+id+"/end", body, nil)
}

// PauseSession приостанавливает сессию.
func (c *Client) PauseSession(id string) error {
	return c.post("/api/v1/sessions/"+id+"/pause", nil, nil)
}

// ResumeSession возобновляет сессию.
func (c *Client) ResumeSession(id string) error {
	return c.post("/api/v1/sessions/"+id+"/resume", nil, nil)
}

// ListSessionPlans возвращает планы сессии.
func (c *Client) ListSessionPlans(sessionID string) ([]PlanResponse, error) {
	var plans []PlanResponse
	err := c.list("/api/v1/sessions/"+sessionID+"/plans", nil, &plans)
	return plans, err
}

// --- Plans ---

// CreatePlan создаёт план.
func (c *Client) CreatePlan(req CreatePlanRequest) (*PlanResponse, error) {
	var p PlanResponse
	err := c.post("/api/v1/plans", req, &p)
	return &p, err
}

// GetPlan возвращает план по ID.
func (c *Client) GetPlan(id string) (*PlanResponse, error) {
	var p PlanResponse
	err := c.get("/api/v1/plans/"+id, &p)
	return &p, err
}

// ExecutePlan запускает выполнение плана.
func (c *Client) ExecutePlan(id string) (*ExecutionStartedResponse, error) {
	var started ExecutionStartedResponse
	err := c.post("/api/v1/plans/"+id+"/execute", nil, &started)
	return &started, err
}

// --- Executions ---

// GetExecution возвращает снимок выполнения.
func (c *Client) GetExecution(id string) (*ExecutionResponse, error) {
	var e ExecutionResponse
	err := c.get("/api/v1/executions/"+id, &e)
	return &e, err
}

// CancelExecution отменяет выполнение.
func (c *Client) CancelExecution(id string) error {
	return c.post("/api/v1/executions/"+id+"/cancel", nil, nil)
}

// PruneExecution удаляет запись завершённого выполнения.
func (c *Client) PruneExecution(id string) error {
	return c.delete("/api/v1/executions/" + id)
}

// --- Schedules ---

// ListSchedules возвращает все schedules.
func (c *Client) ListSchedules() ([]ScheduleResponse, error) {
	var schedules []ScheduleResponse
	err := c.list("/api/v1/schedules", nil, &schedules)
	return schedules, err
}

// CreateSchedule создаёт schedule для плана.
func (c *Client) CreateSchedule(planID string, req CreateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.post("/api/v1/plans/"+planID+"/schedules", req, &schedule)
	return &schedule, err
}

// GetSchedule возвращает schedule по ID.
func (c *Client) GetSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.get("/api/v1/schedules/"+id, &schedule)
	return &schedule, err
}

// UpdateSchedule обновляет schedule.
func (c *Client) UpdateSchedule(id string, req UpdateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.put("/api/v1/schedules/"+id, req, &schedule)
	return &schedule, err
}

// DeleteSchedule удаляет schedule.
func (c *Client) DeleteSchedule(id string) error {
	return c.delete("/api/v1/schedules/" + id)
}

// EnableSchedule включает schedule.
func (c *Client) EnableSchedule(id string) error {
	body := map[string]bool{"enabled": true}
	return c.put("/api/v1/schedules/"+id+"/enabled", body, nil)
}

// DisableSchedule выключает schedule.
func (c *Client) DisableSchedule(id string) error {
	body := map[string]bool{"enabled": false}
	return c.put("/api/v1/schedules/"+id+"/enabled", body, nil)
}

// --- Agents ---

// ListAgents возвращает зарегистрированных агентов.
func (c *Client) ListAgents() ([]AgentResponse, error) {
	var agents []AgentResponse
	err := c.list("/api/v1/agents", nil, &agents)
	return agents, err
}

// RegisterAgent регистрирует агента.
func (c *Client) RegisterAgent(req RegisterAgentRequest) (*AgentResponse, error) {
	var agent AgentResponse
	err := c.post("/api/v1/agents", req, &agent)
	return &agent, err
}

// RemoveAgent удаляет агента из реестра.
func (c *Client) RemoveAgent(agentID string) error {
	return c.delete("/api/v1/agents/" + agentID)
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
