package domain

import (
	"time"

	"github.com/claimflow/claims/internal/shared/types"
)

// Flow tells personal and enterprise claims apart in the shared event stream
type Flow string

const (
	FlowPersonal   Flow = "personal"
	FlowEnterprise Flow = "enterprise"
)

// OperatorType identifies who drove a transition
type OperatorType string

const (
	OperatorClaimant OperatorType = "CLAIMANT"
	OperatorSystem   OperatorType = "SYSTEM"
	OperatorAdmin    OperatorType = "ADMIN"
	OperatorInsurer  OperatorType = "INSURER"
)

// Operator is the identity recorded on every claim event
type Operator struct {
	ID   types.ID     `json:"id"`
	Name string       `json:"name"`
	Type OperatorType `json:"type"`
}

// SystemOperator is used by automated audit steps
var SystemOperator = Operator{Name: "system", Type: OperatorSystem}

// ClaimEvent is one entry of a claim's audit trail. Entries are only ever
// appended; nothing in this package mutates or removes them.
type ClaimEvent struct {
	ID          types.ID    `json:"id"`
	ClaimID     types.ID    `json:"claim_id"`
	Flow        Flow        `json:"flow"`
	Status      string      `json:"status"`
	StatusGroup StatusGroup `json:"status_group"`
	Operator    Operator    `json:"operator"`
	Detail      string      `json:"detail"`
	CreateTime  time.Time   `json:"create_time"`
}

// Domain event types published on the bus
const (
	EventClaimCreated                = "claim.created"
	EventClaimStatusChanged          = "claim.status_changed"
	EventClaimDeleted                = "claim.deleted"
	EventEnterpriseClaimCreated      = "enterprise_claim.created"
	EventEnterpriseClaimStatusChange = "enterprise_claim.status_changed"
	EventEnterpriseClaimDeleted      = "enterprise_claim.deleted"
)

// Event is a domain event for publishing
type Event struct {
	Type       string     `json:"type"`
	ClaimID    types.ID   `json:"claim_id"`
	FromStatus string     `json:"from_status,omitempty"`
	ClaimEvent ClaimEvent `json:"claim_event"`
}

func newClaimEvent(claimID types.ID, flow Flow, status string, group StatusGroup, op Operator, detail string, at time.Time) ClaimEvent {
	return ClaimEvent{
		ID:          types.NewID(),
		ClaimID:     claimID,
		Flow:        flow,
		Status:      status,
		StatusGroup: group,
		Operator:    op,
		Detail:      detail,
		CreateTime:  at,
	}
}
