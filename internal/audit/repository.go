package audit

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/claimflow/claims/internal/claim/domain"
	"github.com/claimflow/claims/internal/shared/errors"
	"github.com/claimflow/claims/internal/shared/metrics"
	"github.com/claimflow/claims/internal/shared/types"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

// Repository stores the claim audit trail in PostgreSQL. Rows are never
// updated or deleted; a trigger on the table enforces this.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a new audit repository
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Append stores an event. Appending an event ID that is already stored is a no-op.
func (r *Repository) Append(ctx context.Context, e domain.ClaimEvent) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("claim_event_append", time.Since(start)) }()

	query := `
		INSERT INTO claims.claim_events (
			id, claim_id, flow, status, status_group,
			operator_id, operator_name, operator_type, detail, create_time
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING`

	_, err := r.pool.Exec(ctx, query,
		e.ID.String(), e.ClaimID.String(), string(e.Flow), e.Status, string(e.StatusGroup),
		e.Operator.ID, e.Operator.Name, string(e.Operator.Type), e.Detail, e.CreateTime,
	)
	if err != nil {
		return errors.Wrap(err, "failed to append claim event")
	}
	return nil
}

// ListByClaim returns the trail of one claim, oldest first
func (r *Repository) ListByClaim(ctx context.Context, claimID types.ID, limit, offset int) ([]domain.ClaimEvent, error) {
	limit, offset = clampPage(limit, offset)

	query := `
		SELECT id::text, claim_id::text, flow, status, status_group,
			operator_id::text, operator_name, operator_type, detail, create_time
		FROM claims.claim_events
		WHERE claim_id = $1
		ORDER BY create_time, stored_at
		LIMIT $2 OFFSET $3`

	rows, err := r.pool.Query(ctx, query, claimID.String(), limit, offset)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list claim events")
	}
	defer rows.Close()

	var result []domain.ClaimEvent
	for rows.Next() {
		var (
			e          domain.ClaimEvent
			id, claim  string
			flow       string
			group      string
			operatorID *string
			opType     string
		)
		if err := rows.Scan(&id, &claim, &flow, &e.Status, &group,
			&operatorID, &e.Operator.Name, &opType, &e.Detail, &e.CreateTime); err != nil {
			return nil, errors.Wrap(err, "failed to scan claim event")
		}
		e.ID = types.ID(id)
		e.ClaimID = types.ID(claim)
		e.Flow = domain.Flow(flow)
		e.StatusGroup = domain.StatusGroup(group)
		e.Operator.Type = domain.OperatorType(opType)
		if operatorID != nil {
			e.Operator.ID = types.ID(*operatorID)
		}
		result = append(result, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to read claim events")
	}

	return result, nil
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultLimit
	}
	if limit > maxLimit {
		limit = maxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// MemoryRepository keeps the trail in process, for development without a
// database and for tests.
type MemoryRepository struct {
	mu     sync.RWMutex
	seen   map[types.ID]struct{}
	events []domain.ClaimEvent
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{seen: make(map[types.ID]struct{})}
}

func (r *MemoryRepository) Append(ctx context.Context, e domain.ClaimEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.seen[e.ID]; ok {
		return nil
	}
	r.seen[e.ID] = struct{}{}
	r.events = append(r.events, e)
	return nil
}

func (r *MemoryRepository) ListByClaim(ctx context.Context, claimID types.ID, limit, offset int) ([]domain.ClaimEvent, error) {
	limit, offset = clampPage(limit, offset)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []domain.ClaimEvent
	for _, e := range r.events {
		if e.ClaimID == claimID {
			matched = append(matched, e)
		}
	}
	if offset >= len(matched) {
		return nil, nil
	}
	matched = matched[offset:]
	if len(matched) > limit {
		matched = matched[:limit]
	}
	out := make([]domain.ClaimEvent, len(matched))
	copy(out, matched)
	return out, nil
}

var (
	_ domain.EventRepository = (*Repository)(nil)
	_ domain.EventRepository = (*MemoryRepository)(nil)
)
