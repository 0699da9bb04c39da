package domain

import (
	"time"

	"github.com/google/uuid"
)

// Plan — план достижения цели, разложенный на шаги с зависимостями.
//
// Plan создаётся Orchestrator.CreatePlan из уже декомпозированного
// набора шагов и после создания неизменяем — мутируют только
// статусы шагов, и только во время выполнения.
//
// Инварианты:
// - Каждый DependsOn ссылается на шаг этого же плана
// - Граф зависимостей ацикличен
// - AgentID каждого шага входит в AgentIDs плана
type Plan struct {
	// ID — уникальный идентификатор плана.
	ID uuid.UUID `json:"id"`

	// SessionID — сессия, в рамках которой создан план.
	SessionID uuid.UUID `json:"session_id"`

	// Goal — цель, ради которой составлен план.
	Goal string `json:"goal"`

	// Strategy — стратегия выполнения.
	Strategy Strategy `json:"strategy"`

	// AgentIDs — пул агентов, доступных плану.
	AgentIDs []string `json:"agent_ids"`

	// Steps — упорядоченный список шагов.
	Steps []Step `json:"steps"`

	// Context — общий контекст плана, доступный всем шагам.
	Context map[string]any `json:"context,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`
}

// Step — один шаг плана: единица работы, назначенная агенту.
type Step struct {
	// ID — идентификатор шага в рамках плана.
	// Используется в DependsOn других шагов.
	ID string `json:"id"`

	// Order — порядковый номер. Внутри уровня шаги выполняются
	// (или диспетчеризуются) по возрастанию Order.
	Order int `json:"order"`

	// AgentID — агент, которому назначен шаг.
	AgentID string `json:"agent_id"`

	// Task — описание задачи для агента.
	Task string `json:"task"`

	// DependsOn — идентификаторы шагов-зависимостей.
	DependsOn []string `json:"depends_on,omitempty"`

	// Timeout — таймаут выполнения шага.
	// Ноль — таймаут по умолчанию на стороне invoker.
	Timeout time.Duration `json:"timeout,omitempty"`

	// ExpectedDuration — ожидаемая длительность.
	// Используется стратегией ADAPTIVE для оценки перегрузки.
	ExpectedDuration time.Duration `json:"expected_duration,omitempty"`

	// Status — текущий статус шага.
	// Единственное мутируемое поле; пишется только горутиной,
	// ведущей выполнение.
	Status StepStatus `json:"status"`
}

// StepByID возвращает шаг по ID (nil, если не найден).
func (p *Plan) StepByID(id string) *Step {
	for i := range p.Steps {
		if p.Steps[i].ID == id {
			return &p.Steps[i]
		}
	}
	return nil
}

// HasAgent проверяет, входит ли агент в пул плана.
func (p *Plan) HasAgent(agentID string) bool {
	for _, id := range p.AgentIDs {
		if id == agentID {
			return true
		}
	}
	return false
}
