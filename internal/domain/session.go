package domain

import (
	"time"

	"github.com/google/uuid"
)

// Session — рабочая сессия группы агентов.
//
// Session объединяет:
// - Набор агентов-участников
// - Историю сообщений с монотонной нумерацией
// - Общий контекст (произвольные key-value данные)
//
// Создаётся SessionManager'ом, завершается через EndSession.
type Session struct {
	// ID — уникальный идентификатор сессии.
	ID uuid.UUID `json:"id"`

	// Name — человекочитаемое имя сессии.
	Name string `json:"name"`

	// Status — текущий статус сессии.
	Status SessionStatus `json:"status"`

	// AgentIDs — идентификаторы агентов-участников (множество).
	AgentIDs []string `json:"agent_ids,omitempty"`

	// Messages — история сообщений в порядке возрастания Seq.
	Messages []Message `json:"messages,omitempty"`

	// Context — общий контекст сессии.
	// Мутируется только через UpdateContext (merge, не replace).
	Context map[string]any `json:"context,omitempty"`

	// WorkDir — рабочая директория сессии.
	WorkDir string `json:"work_dir,omitempty"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`

	// LastActivityAt — время последней активности (AddMessage и т.п.).
	LastActivityAt time.Time `json:"last_activity_at"`
}

// Message — сообщение в истории сессии.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID uuid.UUID `json:"id"`

	// Seq — порядковый номер в рамках сессии.
	// Уникален и монотонно растёт, присваивается SessionManager'ом.
	Seq int `json:"seq"`

	// AgentID — агент-отправитель (пусто для пользовательских сообщений).
	AgentID string `json:"agent_id,omitempty"`

	// Role — роль отправителя: "user", "agent", "system".
	Role string `json:"role"`

	// Content — текст сообщения.
	Content string `json:"content"`

	// CreatedAt — время создания.
	CreatedAt time.Time `json:"created_at"`
}

// HasAgent проверяет, участвует ли агент в сессии.
func (s *Session) HasAgent(agentID string) bool {
	for _, id := range s.AgentIDs {
		if id == agentID {
			return true
		}
	}
	return false
}

// AddAgent добавляет агента в участники (идемпотентно).
func (s *Session) AddAgent(agentID string) {
	if s.HasAgent(agentID) {
		return
	}
	s.AgentIDs = append(s.AgentIDs, agentID)
}

// NextSeq возвращает порядковый номер для следующего сообщения.
func (s *Session) NextSeq() int {
	if len(s.Messages) == 0 {
		return 1
	}
	return s.Messages[len(s.Messages)-1].Seq + 1
}

// Touch обновляет время последней активности.
func (s *Session) Touch() {
	s.LastActivityAt = time.Now()
}
