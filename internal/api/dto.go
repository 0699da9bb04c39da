package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Maestro/internal/domain"
)

// --- Запросы ---

// CreateSessionRequest — запрос на создание сессии.
type CreateSessionRequest struct {
	Name     string   `json:"name"`
	AgentIDs []string `json:"agent_ids,omitempty"`
	WorkDir  string   `json:"work_dir,omitempty"`
}

// AddMessageRequest — запрос на добавление сообщения.
type AddMessageRequest struct {
	AgentID string `json:"agent_id,omitempty"`
	Role    string `json:"role"`
	Content string `json:"content"`
}

// EndSessionRequest — запрос на завершение сессии.
type EndSessionRequest struct {
	Status string `json:"status"`
}

// UpdateContextRequest — запрос на обновление контекста сессии.
type UpdateContextRequest struct {
	Context map[string]any `json:"context"`
}

// AddAgentRequest — запрос на добавление агента в сессию.
type AddAgentRequest struct {
	AgentID string `json:"agent_id"`
}

// StepRequest — шаг плана в запросе на создание.
type StepRequest struct {
	ID              string   `json:"id"`
	Order           int      `json:"order"`
	AgentID         string   `json:"agent_id"`
	Task            string   `json:"task"`
	DependsOn       []string `json:"depends_on,omitempty"`
	TimeoutSeconds  int      `json:"timeout_seconds,omitempty"`
	ExpectedSeconds int      `json:"expected_seconds,omitempty"`
}

// ToDomain преобразует шаг запроса в доменный шаг.
func (r StepRequest) ToDomain() domain.Step {
	return domain.Step{
		ID:               r.ID,
		Order:            r.Order,
		AgentID:          r.AgentID,
		Task:             r.Task,
		DependsOn:        r.DependsOn,
		Timeout:          time.Duration(r.TimeoutSeconds) * time.Second,
		ExpectedDuration: time.Duration(r.ExpectedSeconds) * time.Second,
	}
}

// CreatePlanRequest — запрос на создание плана.
type CreatePlanRequest struct {
	SessionID string         `json:"session_id,omitempty"`
	Goal      string         `json:"goal"`
	Strategy  string         `json:"strategy,omitempty"`
	AgentIDs  []string       `json:"agent_ids"`
	Steps     []StepRequest  `json:"steps"`
	Context   map[string]any `json:"context,omitempty"`
}

// CreateScheduleRequest — запрос на создание расписания.
type CreateScheduleRequest struct {
	Name     string `json:"name,omitempty"`
	CronExpr string `json:"cron_expr"`
	Enabled  *bool  `json:"enabled,omitempty"`
}

// UpdateScheduleRequest — запрос на обновление расписания.
type UpdateScheduleRequest struct {
	Name     *string `json:"name,omitempty"`
	CronExpr *string `json:"cron_expr,omitempty"`
}

// SetEnabledRequest — запрос на включение/выключение расписания.
type SetEnabledRequest struct {
	Enabled bool `json:"enabled"`
}

// RegisterAgentRequest — запрос на регистрацию агента.
type RegisterAgentRequest struct {
	AgentID string `json:"agent_id"`
	BaseURL string `json:"base_url"`
}

// --- Ответы ---

// SessionResponse — сессия в ответе API.
type SessionResponse struct {
	ID             uuid.UUID        `json:"id"`
	Name           string           `json:"name"`
	Status         string           `json:"status"`
	AgentIDs       []string         `json:"agent_ids,omitempty"`
	Messages       []domain.Message `json:"messages,omitempty"`
	Context        map[string]any   `json:"context,omitempty"`
	WorkDir        string           `json:"work_dir,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	LastActivityAt time.Time        `json:"last_activity_at"`
}

// SessionFromDomain преобразует доменную сессию в DTO.
func SessionFromDomain(s *domain.Session) SessionResponse {
	return SessionResponse{
		ID:             s.ID,
		Name:           s.Name,
		Status:         string(s.Status),
		AgentIDs:       s.AgentIDs,
		Messages:       s.Messages,
		Context:        s.Context,
		WorkDir:        s.WorkDir,
		CreatedAt:      s.CreatedAt,
		LastActivityAt: s.LastActivityAt,
	}
}

// StepResponse — шаг плана в ответе API.
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

// PlanResponse — план в ответе API.
type PlanResponse struct {
	ID        uuid.UUID      `json:"id"`
	SessionID uuid.UUID      `json:"session_id,omitempty"`
	Goal      string         `json:"goal"`
	Strategy  string         `json:"strategy"`
	AgentIDs  []string       `json:"agent_ids"`
	Steps     []StepResponse `json:"steps"`
	Context   map[string]any `json:"context,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// PlanFromDomain преобразует доменный план в DTO.
func PlanFromDomain(p *domain.Plan) PlanResponse {
	steps := make([]StepResponse, len(p.Steps))
	for i, s := range p.Steps {
		steps[i] = StepResponse{
			ID:              s.ID,
			Order:           s.Order,
			AgentID:         s.AgentID,
			Task:            s.Task,
			DependsOn:       s.DependsOn,
			TimeoutSeconds:  int(s.Timeout / time.Second),
			ExpectedSeconds: int(s.ExpectedDuration / time.Second),
			Status:          string(s.Status),
		}
	}
	return PlanResponse{
		ID:        p.ID,
		SessionID: p.SessionID,
		Goal:      p.Goal,
		Strategy:  string(p.Strategy),
		AgentIDs:  p.AgentIDs,
		Steps:     steps,
		Context:   p.Context,
		CreatedAt: p.CreatedAt,
	}
}

// ExecutionStartedResponse — ответ на запуск выполнения.
type ExecutionStartedResponse struct {
	ExecutionID uuid.UUID `json:"execution_id"`
	PlanID      uuid.UUID `json:"plan_id"`
}

// ScheduleResponse — расписание в ответе API.
type ScheduleResponse struct {
	ID              uuid.UUID  `json:"id"`
	PlanID          uuid.UUID  `json:"plan_id"`
	Name            string     `json:"name,omitempty"`
	CronExpr        string     `json:"cron_expr"`
	Enabled         bool       `json:"enabled"`
	NextDueAt       *time.Time `json:"next_due_at,omitempty"`
	LastRunAt       *time.Time `json:"last_run_at,omitempty"`
	LastExecutionID *uuid.UUID `json:"last_execution_id,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// ScheduleFromDomain преобразует доменное расписание в DTO.
func ScheduleFromDomain(s *domain.Schedule) ScheduleResponse {
	return ScheduleResponse{
		ID:              s.ID,
		PlanID:          s.PlanID,
		Name:            s.Name,
		CronExpr:        s.CronExpr,
		Enabled:         s.Enabled,
		NextDueAt:       s.NextDueAt,
		LastRunAt:       s.LastRunAt,
		LastExecutionID: s.LastExecutionID,
		CreatedAt:       s.CreatedAt,
		UpdatedAt:       s.UpdatedAt,
	}
}
