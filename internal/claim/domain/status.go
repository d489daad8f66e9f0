package domain

import (
	"database/sql/driver"
	"fmt"
)

// StatusGroup is the coarse bucket a claim status belongs to, used for
// filtering and reporting. Spellings match the stored values.
type StatusGroup string

const (
	GroupPendingCase    StatusGroup = "PENDING_CASE"
	GroupRegisted       StatusGroup = "REGISTED"
	GroupUnderReview    StatusGroup = "UNDER_REVIEW"
	GroupAuditRejection StatusGroup = "AUDIT_REJECTION"
	GroupCompleted      StatusGroup = "COMPLETED"
	GroupCanceld        StatusGroup = "CANCELD"
)

// AllStatusGroups lists every group in display order
var AllStatusGroups = []StatusGroup{
	GroupPendingCase,
	GroupRegisted,
	GroupUnderReview,
	GroupAuditRejection,
	GroupCompleted,
	GroupCanceld,
}

// ClaimStatus is the lifecycle status of a personal insurance claim
type ClaimStatus int

const (
	StatusNotSubmitted ClaimStatus = iota
	StatusClaimApplicationWaitAudit
	StatusClaimApplicationAudited
	StatusTemporarySaved
	StatusSystemAudited
	StatusSystemRejected
	StatusWaitInsuranceCompanyAudited
	StatusInsuranceCompanyAccepted
	StatusInsuranceCompanyCompleted
	StatusInsuranceCompanyRejected
	StatusInsuranceCompanyAnnulOrRefused
	StatusCanceled

	claimStatusCount
)

type statusInfo struct {
	name     string
	group    StatusGroup
	terminal bool
}

// claimStatusTable is the single source for status names, groups and
// terminality. Its length must equal claimStatusCount.
var claimStatusTable = [...]statusInfo{
	StatusNotSubmitted:                   {"NOT_SUBMITTED", GroupPendingCase, false},
	StatusClaimApplicationWaitAudit:      {"CLAIM_APPLICATION_WAIT_AUDIT", GroupRegisted, false},
	StatusClaimApplicationAudited:        {"CLAIM_APPLICATION_AUDITED", GroupRegisted, false},
	StatusTemporarySaved:                 {"TEMPORARY_SAVED", GroupRegisted, false},
	StatusSystemAudited:                  {"SYSTEM_AUDITED", GroupUnderReview, false},
	StatusSystemRejected:                 {"SYSTEM_REJECTED", GroupAuditRejection, false},
	StatusWaitInsuranceCompanyAudited:    {"WAIT_INSURANCE_COMPANY_AUDITED", GroupUnderReview, false},
	StatusInsuranceCompanyAccepted:       {"INSURANCE_COMPANY_ACCEPTED", GroupUnderReview, false},
	StatusInsuranceCompanyCompleted:      {"INSURANCE_COMPANY_COMPLETED", GroupCompleted, true},
	StatusInsuranceCompanyRejected:       {"INSURANCE_COMPANY_REJECTED", GroupAuditRejection, false},
	StatusInsuranceCompanyAnnulOrRefused: {"INSURANCE_COMPANY_ANNUL_OR_REFUSED", GroupCompleted, true},
	StatusCanceled:                       {"CANCELED", GroupCanceld, true},
}

// Fails to compile when a status is added without a table entry.
var _ = [1]struct{}{}[len(claimStatusTable)-int(claimStatusCount)]

// claimTransitions lists every legal edge of the personal flow. CANCELED is
// reachable from every non-terminal status and is not listed here.
var claimTransitions = map[ClaimStatus][]ClaimStatus{
	StatusNotSubmitted:                {StatusClaimApplicationWaitAudit},
	StatusClaimApplicationWaitAudit:   {StatusClaimApplicationAudited, StatusSystemRejected},
	StatusClaimApplicationAudited:     {StatusTemporarySaved, StatusSystemAudited, StatusSystemRejected},
	StatusTemporarySaved:              {StatusClaimApplicationAudited, StatusSystemAudited, StatusSystemRejected},
	StatusSystemAudited:               {StatusWaitInsuranceCompanyAudited},
	StatusSystemRejected:              {StatusClaimApplicationWaitAudit},
	StatusWaitInsuranceCompanyAudited: {StatusInsuranceCompanyAccepted},
	StatusInsuranceCompanyAccepted: {
		StatusInsuranceCompanyCompleted,
		StatusInsuranceCompanyRejected,
		StatusInsuranceCompanyAnnulOrRefused,
	},
	StatusInsuranceCompanyRejected: {StatusClaimApplicationWaitAudit},
}

// AllClaimStatuses returns every personal status in lifecycle order
func AllClaimStatuses() []ClaimStatus {
	out := make([]ClaimStatus, 0, claimStatusCount)
	for s := ClaimStatus(0); s < claimStatusCount; s++ {
		out = append(out, s)
	}
	return out
}

// ParseClaimStatus maps a stored status name back to a ClaimStatus
func ParseClaimStatus(name string) (ClaimStatus, error) {
	for s, info := range claimStatusTable {
		if info.name == name {
			return ClaimStatus(s), nil
		}
	}
	return 0, fmt.Errorf("unknown claim status %q", name)
}

func (s ClaimStatus) valid() bool {
	return s >= 0 && s < claimStatusCount
}

func (s ClaimStatus) String() string {
	if !s.valid() {
		return fmt.Sprintf("ClaimStatus(%d)", int(s))
	}
	return claimStatusTable[s].name
}

// Group derives the status group. This is the only place the mapping lives.
func (s ClaimStatus) Group() StatusGroup {
	if !s.valid() {
		return ""
	}
	return claimStatusTable[s].group
}

// GroupOf is the pure status to group mapping for the personal flow
func GroupOf(s ClaimStatus) StatusGroup {
	return s.Group()
}

// IsTerminal reports whether no further transition (including cancel) is possible
func (s ClaimStatus) IsTerminal() bool {
	return s.valid() && claimStatusTable[s].terminal
}

// CanTransitionTo reports whether to is a legal successor of s
func (s ClaimStatus) CanTransitionTo(to ClaimStatus) bool {
	if !s.valid() || !to.valid() || s.IsTerminal() {
		return false
	}
	if to == StatusCanceled {
		return true
	}
	for _, next := range claimTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowClientOperation reports whether the claimant may edit or (re)submit
func (s ClaimStatus) AllowClientOperation() bool {
	switch s {
	case StatusNotSubmitted, StatusSystemRejected, StatusInsuranceCompanyRejected:
		return true
	}
	return false
}

// AllowSystemReject reports whether the automated audit may reject the claim
func (s ClaimStatus) AllowSystemReject() bool {
	switch s {
	case StatusClaimApplicationWaitAudit, StatusClaimApplicationAudited, StatusTemporarySaved:
		return true
	}
	return false
}

// AllowSystemAccept reports whether the automated audit may accept the claim
func (s ClaimStatus) AllowSystemAccept() bool {
	switch s {
	case StatusClaimApplicationAudited, StatusTemporarySaved:
		return true
	}
	return false
}

func (s ClaimStatus) MarshalText() ([]byte, error) {
	if !s.valid() {
		return nil, fmt.Errorf("invalid claim status %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *ClaimStatus) UnmarshalText(b []byte) error {
	parsed, err := ParseClaimStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// Value implements driver.Valuer
func (s ClaimStatus) Value() (driver.Value, error) {
	return s.String(), nil
}

// Scan implements sql.Scanner
func (s *ClaimStatus) Scan(value any) error {
	switch v := value.(type) {
	case string:
		return s.UnmarshalText([]byte(v))
	case []byte:
		return s.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into ClaimStatus", value)
	}
}
