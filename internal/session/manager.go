package session

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/shaiso/Maestro/internal/bus"
	"github.com/shaiso/Maestro/internal/domain"
	"github.com/shaiso/Maestro/internal/telemetry"
)

// eventSource — значение поля Source публикуемых событий.
const eventSource = "session-manager"

// SessionRepository — порт персистентности сессий.
//
// Менеджер — источник истины в памяти; репозиторий догоняет его
// write-through. Реализация в internal/repo (Postgres).
type SessionRepository interface {
	// SaveSession сохраняет новую сессию.
	SaveSession(ctx context.Context, s *domain.Session) error

	// UpdateSession обновляет статус, контекст и lastActivityAt.
	UpdateSession(ctx context.Context, s *domain.Session) error

	// SaveMessage сохраняет сообщение сессии.
	SaveMessage(ctx context.Context, sessionID uuid.UUID, msg domain.Message) error
}

// SessionLoader — источник сохранённых сессий для восстановления
// при старте процесса. Реализация в internal/repo (Postgres).
type SessionLoader interface {
	// List возвращает страницу сессий без историй сообщений.
	List(ctx context.Context, limit, offset int) ([]domain.Session, error)

	// GetByID возвращает сессию вместе с историей сообщений.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error)
}

// Manager управляет жизненным циклом сессий.
//
// Все операции потокобезопасны. Наружу отдаются копии: мутировать
// сессию можно только через методы менеджера. Repository может быть
// nil — тогда менеджер работает только в памяти.
type Manager struct {
	repo   SessionRepository
	bus    *bus.Bus
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[uuid.UUID]*domain.Session
}

// NewManager создаёт менеджер сессий.
func NewManager(repo SessionRepository, b *bus.Bus, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		repo:     repo,
		bus:      b,
		logger:   logger,
		sessions: make(map[uuid.UUID]*domain.Session),
	}
}

// CreateSession создаёт активную сессию и публикует SessionCreated.
func (m *Manager) CreateSession(ctx context.Context, name string, agentIDs []string, workDir string) (*domain.Session, error) {
	if name == "" {
		return nil, ErrEmptyName
	}

	now := time.Now()
	s := &domain.Session{
		ID:             uuid.New(),
		Name:           name,
		Status:         domain.SessionStatusActive,
		AgentIDs:       dedupe(agentIDs),
		Context:        make(map[string]any),
		WorkDir:        workDir,
		CreatedAt:      now,
		LastActivityAt: now,
	}

	if m.repo != nil {
		if err := m.repo.SaveSession(ctx, s); err != nil {
			return nil, fmt.Errorf("save session: %w", err)
		}
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.publish(domain.EventSessionCreated, domain.SessionCreatedPayload{
		SessionID: s.ID,
		Name:      s.Name,
	})

	telemetry.WithSessionID(m.logger, s.ID.String()).Info("session created",
		"name", s.Name,
		"agents", len(s.AgentIDs),
	)

	return copySession(s), nil
}

// GetSession возвращает копию сессии.
func (m *Manager) GetSession(sessionID uuid.UUID) (*domain.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, exists := m.sessions[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}
	return copySession(s), nil
}

// ListSessions возвращает копии всех сессий, новые первыми.
func (m *Manager) ListSessions() []*domain.Session {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]*domain.Session, 0, len(m.sessions))
	for _, s := range m.sessions {
		out = append(out, copySession(s))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

// AddMessage добавляет сообщение в историю сессии.
//
// Seq присваивается монотонно в рамках сессии. Сообщения от агентов
// принимаются только от участников. Завершённая сессия сообщений
// не принимает.
func (m *Manager) AddMessage(ctx context.Context, sessionID uuid.UUID, agentID, role, content string) (*domain.Message, error) {
	if content == "" {
		return nil, ErrEmptyContent
	}

	m.mu.Lock()

	s, exists := m.sessions[sessionID]
	if !exists {
		m.mu.Unlock()
		return nil, ErrSessionNotFound
	}
	if s.Status.IsTerminal() {
		status := s.Status
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrSessionTerminal, status)
	}
	if role == "agent" && !s.HasAgent(agentID) {
		m.mu.Unlock()
		return nil, fmt.Errorf("%w: %s", ErrAgentNotInSession, agentID)
	}

	msg := domain.Message{
		ID:        uuid.New(),
		Seq:       s.NextSeq(),
		AgentID:   agentID,
		Role:      role,
		Content:   content,
		CreatedAt: time.Now(),
	}

	// SaveMessage идёт под блокировкой: Seq резервируется и
	// подтверждается атомарно, иначе конкурентные писатели могли бы
	// сохранить два сообщения с одним Seq.
	if m.repo != nil {
		if err := m.repo.SaveMessage(ctx, sessionID, msg); err != nil {
			m.mu.Unlock()
			return nil, fmt.Errorf("save message: %w", err)
		}
	}

	s.Messages = append(s.Messages, msg)
	s.Touch()
	m.mu.Unlock()

	// Публикация вне блокировки: обработчики шины вызываются
	// синхронно и могут обращаться обратно к менеджеру
	m.publish(domain.EventMessageAdded, domain.MessageAddedPayload{
		SessionID: sessionID,
		MessageID: msg.ID,
		Seq:       msg.Seq,
		Role:      msg.Role,
	})

	out := msg
	return &out, nil
}

// EndSession переводит сессию в финальный статус.
//
// Идемпотентна: повторный вызов для уже завершённой сессии — no-op,
// тоже возвращает true; ранее выставленный статус не меняется.
func (m *Manager) EndSession(ctx context.Context, sessionID uuid.UUID, status domain.SessionStatus) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("%w: %s", ErrNotTerminalStatus, status)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.sessions[sessionID]
	if !exists {
		return false, ErrSessionNotFound
	}
	if s.Status.IsTerminal() {
		return true, nil
	}

	prev := s.Status
	s.Status = status
	s.Touch()

	if m.repo != nil {
		if err := m.repo.UpdateSession(ctx, s); err != nil {
			s.Status = prev
			return false, fmt.Errorf("update session: %w", err)
		}
	}

	m.logger.Info("session ended",
		"session_id", sessionID,
		"status", status,
	)
	return true, nil
}

// PauseSession приостанавливает активную сессию.
func (m *Manager) PauseSession(ctx context.Context, sessionID uuid.UUID) error {
	return m.setStatus(ctx, sessionID, domain.SessionStatusActive, domain.SessionStatusPaused)
}

// ResumeSession возобновляет приостановленную сессию.
func (m *Manager) ResumeSession(ctx context.Context, sessionID uuid.UUID) error {
	return m.setStatus(ctx, sessionID, domain.SessionStatusPaused, domain.SessionStatusActive)
}

// setStatus выполняет переход from → to.
// Переход из финального статуса запрещён; сессия уже в to — no-op.
func (m *Manager) setStatus(ctx context.Context, sessionID uuid.UUID, from, to domain.SessionStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.sessions[sessionID]
	if !exists {
		return ErrSessionNotFound
	}
	if s.Status.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrSessionTerminal, s.Status)
	}
	if s.Status == to {
		return nil
	}
	if s.Status != from {
		return fmt.Errorf("cannot transition session from %s to %s", s.Status, to)
	}

	prev := s.Status
	s.Status = to
	s.Touch()

	if m.repo != nil {
		if err := m.repo.UpdateSession(ctx, s); err != nil {
			s.Status = prev
			return fmt.Errorf("update session: %w", err)
		}
	}
	return nil
}

// UpdateContext вливает patch в контекст сессии (merge, не replace).
// Существующие ключи, отсутствующие в patch, сохраняются.
func (m *Manager) UpdateContext(ctx context.Context, sessionID uuid.UUID, patch map[string]any) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.sessions[sessionID]
	if !exists {
		return ErrSessionNotFound
	}
	if s.Status.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrSessionTerminal, s.Status)
	}

	if s.Context == nil {
		s.Context = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		s.Context[k] = v
	}
	s.Touch()

	if m.repo != nil {
		if err := m.repo.UpdateSession(ctx, s); err != nil {
			return fmt.Errorf("update session: %w", err)
		}
	}
	return nil
}

// AddAgent добавляет агента в участники сессии (идемпотентно).
func (m *Manager) AddAgent(ctx context.Context, sessionID uuid.UUID, agentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, exists := m.sessions[sessionID]
	if !exists {
		return ErrSessionNotFound
	}
	if s.Status.IsTerminal() {
		return fmt.Errorf("%w: %s", ErrSessionTerminal, s.Status)
	}

	s.AddAgent(agentID)
	s.Touch()

	if m.repo != nil {
		if err := m.repo.UpdateSession(ctx, s); err != nil {
			return fmt.Errorf("update session: %w", err)
		}
	}
	return nil
}

// Restore загружает сохранённые сессии в память.
//
// Вызывается один раз при старте, до приёма трафика. История
// сообщений подгружается целиком: без неё Seq начался бы заново.
// Сессии, уже известные менеджеру, не перезаписываются.
// Возвращает количество восстановленных сессий.
func (m *Manager) Restore(ctx context.Context, loader SessionLoader) (int, error) {
	const pageSize = 100

	restored := 0
	for offset := 0; ; offset += pageSize {
		page, err := loader.List(ctx, pageSize, offset)
		if err != nil {
			return restored, fmt.Errorf("list sessions: %w", err)
		}
		if len(page) == 0 {
			break
		}

		for i := range page {
			id := page[i].ID

			s, err := loader.GetByID(ctx, id)
			if err != nil {
				m.logger.Warn("skipping session restore",
					"session_id", id,
					"error", err,
				)
				continue
			}

			m.mu.Lock()
			if _, exists := m.sessions[id]; !exists {
				m.sessions[id] = s
				restored++
			}
			m.mu.Unlock()
		}

		if len(page) < pageSize {
			break
		}
	}

	if restored > 0 {
		m.logger.Info("sessions restored", "count", restored)
	}
	return restored, nil
}

// SessionCount возвращает количество сессий в памяти.
func (m *Manager) SessionCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// publish отправляет событие в шину (если шина задана).
func (m *Manager) publish(eventType domain.EventType, payload any) {
	if m.bus == nil {
		return
	}
	m.bus.Publish(domain.NewEvent(eventType, eventSource, payload))
}

// copySession делает глубокую копию для выдачи наружу.
func copySession(s *domain.Session) *domain.Session {
	out := *s
	out.AgentIDs = append([]string(nil), s.AgentIDs...)
	out.Messages = append([]domain.Message(nil), s.Messages...)
	if s.Context != nil {
		out.Context = make(map[string]any, len(s.Context))
		for k, v := range s.Context {
			out.Context[k] = v
		}
	}
	return &out
}

// dedupe убирает дубликаты, сохраняя порядок.
func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
