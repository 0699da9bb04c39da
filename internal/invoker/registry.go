package invoker

import (
	"fmt"
	"sort"
	"sync"
)

// Endpoint — адрес зарегистрированного агента.
type Endpoint struct {
	// AgentID — идентификатор агента.
	AgentID string `json:"agent_id"`

	// BaseURL — базовый URL HTTP-агента (без завершающего /).
	BaseURL string `json:"base_url"`
}

// Registry — реестр доступных агентов.
//
// Создаётся явно при старте процесса и передаётся тем, кому нужен.
// Никакого глобального состояния: время жизни реестра привязано
// к владельцу (обычно main).
type Registry struct {
	mu     sync.RWMutex
	agents map[string]Endpoint
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		agents: make(map[string]Endpoint),
	}
}

// Register добавляет или обновляет агента.
func (r *Registry) Register(ep Endpoint) error {
	if ep.AgentID == "" {
		return fmt.Errorf("%w: empty agent id", ErrInvalidEndpoint)
	}
	if ep.BaseURL == "" {
		return fmt.Errorf("%w: empty base URL for agent %s", ErrInvalidEndpoint, ep.AgentID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.agents[ep.AgentID] = ep
	return nil
}

// Lookup возвращает endpoint агента.
func (r *Registry) Lookup(agentID string) (Endpoint, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ep, ok := r.agents[agentID]
	if !ok {
		return Endpoint{}, fmt.Errorf("%w: %s", ErrAgentNotRegistered, agentID)
	}
	return ep, nil
}

// Remove удаляет агента из реестра.
func (r *Registry) Remove(agentID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.agents, agentID)
}

// List возвращает всех агентов, отсортированных по ID.
func (r *Registry) List() []Endpoint {
	r.mu.RLock()
	defer r.mu.RUnlock()

	eps := make([]Endpoint, 0, len(r.agents))
	for _, ep := range r.agents {
		eps = append(eps, ep)
	}
	sort.Slice(eps, func(i, j int) bool { return eps[i].AgentID < eps[j].AgentID })
	return eps
}

// Size возвращает количество зарегистрированных агентов.
func (r *Registry) Size() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.agents)
}
