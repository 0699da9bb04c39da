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

// PlanRepo — репозиторий для работы с plans.
//
// Шаги плана хранятся единым JSONB-документом: план — атомарная
// единица, шаги вне плана не живут.
type PlanRepo struct {
	pool *pgxpool.Pool
}

// NewPlanRepo создаёт новый PlanRepo.
func NewPlanRepo(pool *pgxpool.Pool) *PlanRepo {
	return &PlanRepo{pool: pool}
}

// Create создаёт новый plan.
func (r *PlanRepo) Create(ctx context.Context, plan *domain.Plan) error {
	agentsJSON, err := json.Marshal(plan.AgentIDs)
	if err != nil {
		return fmt.Errorf("marshal agent ids: %w", err)
	}
	stepsJSON, err := json.Marshal(plan.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}
	contextJSON, err := json.Marshal(plan.Context)
	if err != nil {
		return fmt.Errorf("marshal context: %w", err)
	}

	query := `
		INSERT INTO plans (id, session_id, goal, strategy, agent_ids, steps, context, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	_, err = r.pool.Exec(ctx, query,
		plan.ID,
		nullUUID(&plan.SessionID),
		plan.Goal,
		plan.Strategy,
		agentsJSON,
		stepsJSON,
		contextJSON,
		plan.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert plan: %w", err)
	}
	return nil
}

// GetByID возвращает plan по ID.
func (r *PlanRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	query := `
		SELECT id, session_id, goal, strategy, agent_ids, steps, context, created_at
		FROM plans
		WHERE id = $1
	`
	return r.scanPlan(r.pool.QueryRow(ctx, query, id))
}

// ListBySession возвращает планы сессии, новые первыми.
func (r *PlanRepo) ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]domain.Plan, error) {
	query := `
		SELECT id, session_id, goal, strategy, agent_ids, steps, context, created_at
		FROM plans
		WHERE session_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, sessionID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	defer rows.Close()

	var plans []domain.Plan
	for rows.Next() {
		plan, err := r.scanPlanFromRows(rows)
		if err != nil {
			return nil, err
		}
		plans = append(plans, *plan)
	}
	return plans, rows.Err()
}

// UpdateSteps сохраняет итоговые статусы шагов после выполнения.
func (r *PlanRepo) UpdateSteps(ctx context.Context, plan *domain.Plan) error {
	stepsJSON, err := json.Marshal(plan.Steps)
	if err != nil {
		return fmt.Errorf("marshal steps: %w", err)
	}

	result, err := r.pool.Exec(ctx, `UPDATE plans SET steps = $2 WHERE id = $1`, plan.ID, stepsJSON)
	if err != nil {
		return fmt.Errorf("update plan steps: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete удаляет plan.
func (r *PlanRepo) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM plans WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete plan: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// --- Helpers ---

func (r *PlanRepo) scanPlan(row pgx.Row) (*domain.Plan, error) {
	var plan domain.Plan
	var sessionID *uuid.UUID
	var agentsJSON, stepsJSON, contextJSON []byte

	err := row.Scan(
		&plan.ID,
		&sessionID,
		&plan.Goal,
		&plan.Strategy,
		&agentsJSON,
		&stepsJSON,
		&contextJSON,
		&plan.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan plan: %w", err)
	}

	if err := unmarshalPlanJSON(&plan, agentsJSON, stepsJSON, contextJSON); err != nil {
		return nil, err
	}
	if sessionID != nil {
		plan.SessionID = *sessionID
	}
	return &plan, nil
}

func (r *PlanRepo) scanPlanFromRows(rows pgx.Rows) (*domain.Plan, error) {
	var plan domain.Plan
	var sessionID *uuid.UUID
	var agentsJSON, stepsJSON, contextJSON []byte

	err := rows.Scan(
		&plan.ID,
		&sessionID,
		&plan.Goal,
		&plan.Strategy,
		&agentsJSON,
		&stepsJSON,
		&contextJSON,
		&plan.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("scan plan: %w", err)
	}

	if err := unmarshalPlanJSON(&plan, agentsJSON, stepsJSON, contextJSON); err != nil {
		return nil, err
	}
	if sessionID != nil {
		plan.SessionID = *sessionID
	}
	return &plan, nil
}

func unmarshalPlanJSON(plan *domain.Plan, agentsJSON, stepsJSON, contextJSON []byte) error {
	if agentsJSON != nil {
		if err := json.Unmarshal(agentsJSON, &plan.AgentIDs); err != nil {
			return fmt.Errorf("unmarshal agent ids: %w", err)
		}
	}
	if stepsJSON != nil {
		if err := json.Unmarshal(stepsJSON, &plan.Steps); err != nil {
			return fmt.Errorf("unmarshal steps: %w", err)
		}
	}
	if contextJSON != nil {
		if err := json.Unmarshal(contextJSON, &plan.Context); err != nil {
			return fmt.Errorf("unmarshal context: %w", err)
		}
	}
	return nil
}
