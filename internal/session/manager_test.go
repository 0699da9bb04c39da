package session

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"

	"github.com/shaiso/Maestro/internal/bus"
	"github.com/shaiso/Maestro/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeRepo records persisted sessions and messages.
type fakeRepo struct {
	saved    []uuid.UUID
	updated  []uuid.UUID
	messages []domain.Message

	failSave error
}

func (f *fakeRepo) SaveSession(ctx context.Context, s *domain.Session) error {
	if f.failSave != nil {
		return f.failSave
	}
	f.saved = append(f.saved, s.ID)
	return nil
}

func (f *fakeRepo) UpdateSession(ctx context.Context, s *domain.Session) error {
	f.updated = append(f.updated, s.ID)
	return nil
}

func (f *fakeRepo) SaveMessage(ctx context.Context, sessionID uuid.UUID, msg domain.Message) error {
	f.messages = append(f.messages, msg)
	return nil
}

func newTestManager(repo SessionRepository, b *bus.Bus) *Manager {
	return NewManager(repo, b, testLogger())
}

func mustCreate(t *testing.T, m *Manager, name string, agents ...string) *domain.Session {
	t.Helper()
	s, err := m.CreateSession(context.Background(), name, agents, "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	return s
}

// --- CreateSession ---

func TestCreateSession_EmptyName(t *testing.T) {
	m := newTestManager(nil, nil)

	_, err := m.CreateSession(context.Background(), "", nil, "")
	if !errors.Is(err, ErrEmptyName) {
		t.Errorf("expected ErrEmptyName, got %v", err)
	}
}

func TestCreateSession(t *testing.T) {
	repo := &fakeRepo{}
	b := bus.New(testLogger())
	m := newTestManager(repo, b)

	var events []domain.Event
	b.Subscribe(domain.EventSessionCreated, func(e domain.Event) {
		events = append(events, e)
	})

	s := mustCreate(t, m, "review", "a1", "a2", "a1")

	if s.Status != domain.SessionStatusActive {
		t.Errorf("expected ACTIVE, got %s", s.Status)
	}
	if len(s.AgentIDs) != 2 {
		t.Errorf("agent ids should be deduplicated, got %v", s.AgentIDs)
	}
	if len(repo.saved) != 1 || repo.saved[0] != s.ID {
		t.Error("session should be persisted")
	}
	if len(events) != 1 {
		t.Fatalf("expected 1 session.created event, got %d", len(events))
	}
	payload := events[0].Payload.(domain.SessionCreatedPayload)
	if payload.SessionID != s.ID || payload.Name != "review" {
		t.Error("event payload should describe the session")
	}
}

func TestCreateSession_RepoFailure(t *testing.T) {
	repo := &fakeRepo{failSave: errors.New("db down")}
	m := newTestManager(repo, nil)

	_, err := m.CreateSession(context.Background(), "review", nil, "")
	if err == nil {
		t.Fatal("expected error when repository fails")
	}
	if m.SessionCount() != 0 {
		t.Error("failed creation should not leave a session behind")
	}
}

func TestGetSession_ReturnsCopy(t *testing.T) {
	m := newTestManager(nil, nil)
	s := mustCreate(t, m, "review", "a1")

	got, err := m.GetSession(s.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Мутация копии не должна влиять на внутреннее состояние
	got.Name = "hacked"
	got.AgentIDs[0] = "stranger"

	again, _ := m.GetSession(s.ID)
	if again.Name != "review" || again.AgentIDs[0] != "a1" {
		t.Error("GetSession must return an isolated copy")
	}
}

func TestGetSession_NotFound(t *testing.T) {
	m := newTestManager(nil, nil)

	_, err := m.GetSession(uuid.New())
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

// --- AddMessage ---

func TestAddMessage_SequenceIsMonotonic(t *testing.T) {
	repo := &fakeRepo{}
	b := bus.New(testLogger())
	m := newTestManager(repo, b)
	s := mustCreate(t, m, "chat", "a1")

	var seqs []int
	b.Subscribe(domain.EventMessageAdded, func(e domain.Event) {
		seqs = append(seqs, e.Payload.(domain.MessageAddedPayload).Seq)
	})

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if _, err := m.AddMessage(ctx, s.ID, "", "user", "hello"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	for i, seq := range seqs {
		if seq != i+1 {
			t.Errorf("message %d: expected seq %d, got %d", i, i+1, seq)
		}
	}
	if len(repo.messages) != 3 {
		t.Errorf("expected 3 persisted messages, got %d", len(repo.messages))
	}
}

func TestAddMessage_UnknownSession(t *testing.T) {
	m := newTestManager(nil, nil)

	_, err := m.AddMessage(context.Background(), uuid.New(), "", "user", "hi")
	if !errors.Is(err, ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound, got %v", err)
	}
}

func TestAddMessage_TerminalSession(t *testing.T) {
	m := newTestManager(nil, nil)
	s := mustCreate(t, m, "chat", "a1")

	_, _ = m.EndSession(context.Background(), s.ID, domain.SessionStatusCompleted)

	_, err := m.AddMessage(context.Background(), s.ID, "", "user", "hi")
	if !errors.Is(err, ErrSessionTerminal) {
		t.Errorf("expected ErrSessionTerminal, got %v", err)
	}
}

func TestAddMessage_AgentOutsideSession(t *testing.T) {
	m := newTestManager(nil, nil)
	s := mustCreate(t, m, "chat", "a1")

	_, err := m.AddMessage(context.Background(), s.ID, "stranger", "agent", "hi")
	if !errors.Is(err, ErrAgentNotInSession) {
		t.Errorf("expected ErrAgentNotInSession, got %v", err)
	}
}

func TestAddMessage_HandlerReadsBackSession(t *testing.T) {
	b := bus.New(testLogger())
	m := newTestManager(nil, b)
	s := mustCreate(t, m, "chat", "a1")

	// Обработчик зовёт менеджер обратно: публикация под блокировкой
	// намертво подвесила бы этот вызов
	var seen int
	b.Subscribe(domain.EventMessageAdded, func(e domain.Event) {
		got, err := m.GetSession(s.ID)
		if err != nil {
			t.Errorf("handler read failed: %v", err)
			return
		}
		seen = len(got.Messages)
	})

	if _, err := m.AddMessage(context.Background(), s.ID, "", "user", "hello"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if seen != 1 {
		t.Errorf("handler saw %d messages, want 1", seen)
	}
}

func TestAddMessage_UpdatesActivity(t *testing.T) {
	m := newTestManager(nil, nil)
	s := mustCreate(t, m, "chat", "a1")

	before, _ := m.GetSession(s.ID)
	_, err := m.AddMessage(context.Background(), s.ID, "a1", "agent", "done")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	after, _ := m.GetSession(s.ID)

	if after.LastActivityAt.Before(before.LastActivityAt) {
		t.Error("AddMessage should advance lastActivityAt")
	}
	if len(after.Messages) != 1 {
		t.Fatalf("expected 1 message, got %d", len(after.Messages))
	}
}

// --- EndSession ---

func TestEndSession_Idempotent(t *testing.T) {
	m := newTestManager(nil, nil)
	s := mustCreate(t, m, "chat")

	ctx := context.Background()

	ended, err := m.EndSession(ctx, s.ID, domain.SessionStatusCompleted)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ended {
		t.Error("first EndSession should perform the transition")
	}

	// Повторное завершение — no-op, но тоже true
	ended, err = m.EndSession(ctx, s.ID, domain.SessionStatusFailed)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !ended {
		t.Error("ending an already-terminal session should still report true")
	}

	got, _ := m.GetSession(s.ID)
	if got.Status != domain.SessionStatusCompleted {
		t.Errorf("terminal status must not change, got %s", got.Status)
	}
}

func TestEndSession_RejectsNonTerminalStatus(t *testing.T) {
	m := newTestManager(nil, nil)
	s := mustCreate(t, m, "chat")

	_, err := m.EndSession(context.Background(), s.ID, domain.SessionStatusPaused)
	if !errors.Is(err, ErrNotTerminalStatus) {
		t.Errorf("expected ErrNotTerminalStatus, got %v", err)
	}
}

// --- Pause / Resume ---

func TestPauseResume(t *testing.T) {
	m := newTestManager(nil, nil)
	s := mustCreate(t, m, "chat")
	ctx := context.Background()

	if err := m.PauseSession(ctx, s.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ := m.GetSession(s.ID)
	if got.Status != domain.SessionStatusPaused {
		t.Errorf("expected PAUSED, got %s", got.Status)
	}

	if err := m.ResumeSession(ctx, s.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got, _ = m.GetSession(s.ID)
	if got.Status != domain.SessionStatusActive {
		t.Errorf("expected ACTIVE, got %s", got.Status)
	}
}

func TestPauseSession_Terminal(t *testing.T) {
	m := newTestManager(nil, nil)
	s := mustCreate(t, m, "chat")
	ctx := context.Background()

	_, _ = m.EndSession(ctx, s.ID, domain.SessionStatusFailed)

	if err := m.PauseSession(ctx, s.ID); !errors.Is(err, ErrSessionTerminal) {
		t.Errorf("expected ErrSessionTerminal, got %v", err)
	}
}

// --- UpdateContext ---

func TestUpdateContext_Merges(t *testing.T) {
	m := newTestManager(nil, nil)
	s := mustCreate(t, m, "chat")
	ctx := context.Background()

	if err := m.UpdateContext(ctx, s.ID, map[string]any{"repo": "maestro", "branch": "main"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := m.UpdateContext(ctx, s.ID, map[string]any{"branch": "dev"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := m.GetSession(s.ID)
	if got.Context["repo"] != "maestro" {
		t.Error("merge must keep keys absent from the patch")
	}
	if got.Context["branch"] != "dev" {
		t.Error("merge must overwrite keys present in the patch")
	}
}

// --- AddAgent / ListSessions ---

func TestAddAgent(t *testing.T) {
	m := newTestManager(nil, nil)
	s := mustCreate(t, m, "chat", "a1")
	ctx := context.Background()

	if err := m.AddAgent(ctx, s.ID, "a2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	// Идемпотентно
	if err := m.AddAgent(ctx, s.ID, "a2"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := m.GetSession(s.ID)
	if len(got.AgentIDs) != 2 {
		t.Errorf("expected 2 agents, got %v", got.AgentIDs)
	}
}

// --- Restore ---

// fakeLoader раздаёт заранее подготовленные сессии постранично.
type fakeLoader struct {
	sessions []domain.Session
	failList error
}

func (f *fakeLoader) List(ctx context.Context, limit, offset int) ([]domain.Session, error) {
	if f.failList != nil {
		return nil, f.failList
	}
	if offset >= len(f.sessions) {
		return nil, nil
	}
	end := offset + limit
	if end > len(f.sessions) {
		end = len(f.sessions)
	}
	return f.sessions[offset:end], nil
}

func (f *fakeLoader) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	for i := range f.sessions {
		if f.sessions[i].ID == id {
			s := f.sessions[i]
			return &s, nil
		}
	}
	return nil, errors.New("not found")
}

func savedSession(name string, messages int) domain.Session {
	s := domain.Session{
		ID:     uuid.New(),
		Name:   name,
		Status: domain.SessionStatusActive,
	}
	for i := 0; i < messages; i++ {
		s.Messages = append(s.Messages, domain.Message{
			ID:      uuid.New(),
			Seq:     i + 1,
			Role:    "user",
			Content: "hi",
		})
	}
	return s
}

func TestRestore(t *testing.T) {
	loader := &fakeLoader{sessions: []domain.Session{
		savedSession("one", 2),
		savedSession("two", 0),
	}}
	m := newTestManager(nil, nil)

	n, err := m.Restore(context.Background(), loader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 2 {
		t.Fatalf("expected 2 restored sessions, got %d", n)
	}

	got, err := m.GetSession(loader.sessions[0].ID)
	if err != nil {
		t.Fatalf("restored session should be visible: %v", err)
	}
	if len(got.Messages) != 2 {
		t.Fatalf("expected message history to be restored, got %d messages", len(got.Messages))
	}

	// Seq продолжается с места остановки
	msg, err := m.AddMessage(context.Background(), got.ID, "", "user", "again")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.Seq != 3 {
		t.Errorf("expected seq 3 after restoring 2 messages, got %d", msg.Seq)
	}
}

func TestRestore_KeepsExistingSessions(t *testing.T) {
	m := newTestManager(nil, nil)
	s := mustCreate(t, m, "live")

	stale := domain.Session{ID: s.ID, Name: "stale", Status: domain.SessionStatusFailed}
	loader := &fakeLoader{sessions: []domain.Session{stale}}

	n, err := m.Restore(context.Background(), loader)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 restored sessions, got %d", n)
	}

	got, _ := m.GetSession(s.ID)
	if got.Name != "live" {
		t.Error("restore must not overwrite a session already in memory")
	}
}

func TestRestore_ListFailure(t *testing.T) {
	m := newTestManager(nil, nil)
	loader := &fakeLoader{failList: errors.New("db down")}

	if _, err := m.Restore(context.Background(), loader); err == nil {
		t.Fatal("expected error when listing fails")
	}
}

func TestListSessions(t *testing.T) {
	m := newTestManager(nil, nil)
	mustCreate(t, m, "one")
	mustCreate(t, m, "two")

	list := m.ListSessions()
	if len(list) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(list))
	}
}
