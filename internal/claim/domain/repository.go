package domain

import (
	"context"

	"github.com/claimflow/claims/internal/shared/types"
)

// HospitalDirectory looks up hospital grades kept by the hospital information
// system. Implementations return errors.ErrNotFound for unknown hospitals.
type HospitalDirectory interface {
	Level(ctx context.Context, hospitalID types.ID, hospitalName string) (HospitalLevel, error)
}

// EventRepository stores the claim audit trail. Append must be idempotent
// on the event ID.
type EventRepository interface {
	Append(ctx context.Context, e ClaimEvent) error
	ListByClaim(ctx context.Context, claimID types.ID, limit, offset int) ([]ClaimEvent, error)
}
