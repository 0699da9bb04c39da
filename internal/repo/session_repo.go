package repo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/Maestro/internal/domain"
)

// SessionRepo — репозиторий для работы с sessions.
// Реализует порт session.SessionRepository.
type SessionRepo struct {
	pool *pgxpool.Pool
}

// NewSessionRepo создаёт новый SessionRepo.
func NewSessionRepo(pool *pgxpool.Pool) *SessionRepo {
	return &SessionRepo{pool: pool}
}

// SaveSession создаёт новую сессию.
func (r *SessionRepo) SaveSession(ctx context.Context, s *domain.Session) error {
	agentsJSON, err := json.Marshal(s.AgentIDs)
	if err != nil {
		return fmt.Errorf("marshal agent ids: %w", err)
	}
	contextJSON, err := json.Marshal(s.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}

	query := `
		INSERT INTO sessions (id, name, status, agent_ids, context, work_dir, created_at, last_activity_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.pool.Exec(ctx, query,
		s.ID,
		s.Name,
		s.Status,
		agentsJSON,
		contextJSON,
		nullString(s.WorkDir),
		s.CreatedAt,
		s.LastActivityAt,
	)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

// UpdateSession обновляет статус, участников, контекст и активность.
func (r *SessionRepo) UpdateSession(ctx context.Context, s *domain.Session) error {
	agentsJSON, err := json.Marshal(s.AgentIDs)
	if err != nil {
		return fmt.Errorf("marshal agent ids: %w", err)
	}
	contextJSON, err := json.Marshal(s.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}

	query := `
		UPDATE sessions
		SET status = $2, agent_ids = $3, context = $4, last_activity_at = $5
		WHERE id = $1
	`
	result, err := r.pool.Exec(ctx, query,
		s.ID,
		s.Status,
		agentsJSON,
		contextJSON,
		s.LastActivityAt,
	)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// SaveMessage сохраняет сообщение сессии.
func (r *SessionRepo) SaveMessage(ctx context.Context, sessionID uuid.UUID, msg domain.Message) error {
	query := `
		INSERT INTO session_messages (id, session_id, seq, agent_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err := r.pool.Exec(ctx, query,
		msg.ID,
		sessionID,
		msg.Seq,
		nullString(msg.AgentID),
		msg.Role,
		msg.Content,
		msg.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

// GetByID возвращает сессию вместе с историей сообщений.
func (r *SessionRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Session, error) {
	query := `
		SELECT id, name, status, agent_ids, context, work_dir, created_at, last_activity_at
		FROM sessions
		WHERE id = $1
	`
	s, err := r.scanSession(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		return nil, err
	}

	messages, err := r.listMessages(ctx, id)
	if err != nil {
		return nil, err
	}
	s.Messages = messages
	return s, nil
}

// List возвращает сессии без историй сообщений, новые первыми.
func (r *SessionRepo) List(ctx context.Context, limit, offset int) ([]domain.Session, error) {
	query := `
		SELECT id, name, status, agent_ids, context, work_dir, created_at, last_activity_at
		FROM sessions
		ORDER BY created_at DESC
		LIMIT $1 OFFSET $2
	`
	rows, err := r.pool.Query(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []domain.Session
	for rows.Next() {
		s, err := r.scanSessionFromRows(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *s)
	}
	return sessions, rows.Err()
}

// listMessages возвращает сообщения сессии в порядке seq.
func (r *SessionRepo) listMessages(ctx context.Context, sessionID uuid.UUID) ([]domain.Message, error) {
	query := `
		SELECT id, seq, agent_id, role, content, created_at
		FROM session_messages
		WHERE session_id = $1
		ORDER BY seq ASC
	`
	rows, err := r.pool.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	var messages []domain.Message
	for rows.Next() {
		var msg domain.Message
		var agentID *string

		if err := rows.Scan(&msg.ID, &msg.Seq, &agentID, &msg.Role, &msg.Content, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if agentID != nil {
			msg.AgentID = *agentID
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

// --- Helpers ---

func (r *SessionRepo) scanSession(row pgx.Row) (*domain.Session, error) {
	var s domain.Session
	var agentsJSON, contextJSON []byte
	var workDir *string

	err := row.Scan(
		&s.ID,
		&s.Name,
		&s.Status,
		&agentsJSON,
		&contextJSON,
		&workDir,
		&s.CreatedAt,
		&s.LastActivityAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}

	if err := unmarshalSessionJSON(&s, agentsJSON, contextJSON); err != nil {
		return nil, err
	}
	if workDir != nil {
		s.WorkDir = *workDir
	}
	return &s, nil
}

func (r *SessionRepo) scanSessionFromRows(rows pgx.Rows) (*domain.Session, error) {
	var s domain.Session
	var agentsJSON, contextJSON []byte
	var workDir *string

	err := rows.Scan(
		&s.ID,
		&s.Name,
		&s.Status,
		&agentsJSON,
		&contextJSON,
		&workDir,
		&s.CreatedAt,
		&s.LastActivityAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan session: %w", err)
	}

	if err := unmarshalSessionJSON(&s, agentsJSON, contextJSON); err != nil {
		return nil, err
	}
	if workDir != nil {
		s.WorkDir = *workDir
	}
	return &s, nil
}

func unmarshalSessionJSON(s *domain.Session, agentsJSON, contextJSON []byte) error {
	if agentsJSON != nil {
		if err := json.Unmarshal(agentsJSON, &s.AgentIDs); err != nil {
			return fmt.Errorf("unmarshal agent ids: %w", err)
		}
	}
	if contextJSON != nil {
		if err := json.Unmarshal(contextJSON, &s.Context); err != nil {
			return fmt.Errorf("unmarshal context: %w", err)
		}
	}
	return nil
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// nullUUID возвращает nil для пустого UUID.
func nullUUID(id *uuid.UUID) *uuid.UUID {
	if id == nil || *id == uuid.Nil {
		return nil
	}
	return id
}
