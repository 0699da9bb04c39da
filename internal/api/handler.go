package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/shaiso/Maestro/internal/domain"
	"github.com/shaiso/Maestro/internal/invoker"
	"github.com/shaiso/Maestro/internal/orchestrator"
	"github.com/shaiso/Maestro/internal/session"
)

// PlanStore — персистентность планов.
// Реализация — repo.PlanRepo.
type PlanStore interface {
	Create(ctx context.Context, plan *domain.Plan) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error)
	ListBySession(ctx context.Context, sessionID uuid.UUID, limit, offset int) ([]domain.Plan, error)
	UpdateSteps(ctx context.Context, plan *domain.Plan) error
}

// ScheduleStore — персистентность расписаний.
// Реализация — repo.ScheduleRepo.
type ScheduleStore interface {
	Create(ctx context.Context, schedule *domain.Schedule) error
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Schedule, error)
	List(ctx context.Context, limit, offset int) ([]domain.Schedule, error)
	Update(ctx context.Context, schedule *domain.Schedule) error
	Delete(ctx context.Context, id uuid.UUID) error
	SetEnabled(ctx context.Context, id uuid.UUID, enabled bool) error
}

// Handler — главный обработчик API с зависимостями.
type Handler struct {
	sessions  *session.Manager
	orch      *orchestrator.Orchestrator
	registry  *invoker.Registry
	plans     PlanStore
	schedules ScheduleStore
	logger    *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Sessions  *session.Manager
	Orch      *orchestrator.Orchestrator
	Registry  *invoker.Registry
	Plans     PlanStore
	Schedules ScheduleStore
	Logger    *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		sessions:  cfg.Sessions,
		orch:      cfg.Orch,
		registry:  cfg.Registry,
		plans:     cfg.Plans,
		schedules: cfg.Schedules,
		logger:    logger,
	}
}

// decodeJSON читает тело запроса в dst.
// При ошибке отвечает 400 и возвращает false.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		BadRequest(w, "invalid JSON body")
		return false
	}
	return true
}

// pathUUID извлекает UUID из path value.
// При ошибке отвечает 400 и возвращает false.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		BadRequest(w, "invalid "+name)
		return uuid.Nil, false
	}
	return id, true
}

// queryInt читает целочисленный query-параметр с значением по умолчанию.
func queryInt(r *http.Request, name string, def int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return def
	}
	return v
}
