package domain

import (
	"database/sql/driver"
	"fmt"
)

// EnterpriseClaimStatus is the lifecycle status of an enterprise (group policy) claim.
// An enterprise administrator audits the claim before it reaches the insurer.
type EnterpriseClaimStatus int

const (
	EnterpriseStatusNotSubmitted EnterpriseClaimStatus = iota
	EnterpriseStatusWaitAdminAudit
	EnterpriseStatusAdminAudited
	EnterpriseStatusRejected
	EnterpriseStatusWaitInsuranceCompanyAudited
	EnterpriseStatusInsuranceCompanyAccepted
	EnterpriseStatusInsuranceCompanyRejected
	EnterpriseStatusSettled
	EnterpriseStatusCanceled

	enterpriseStatusCount
)

var enterpriseStatusTable = [...]statusInfo{
	EnterpriseStatusNotSubmitted:                {"NOT_SUBMITTED", GroupPendingCase, false},
	EnterpriseStatusWaitAdminAudit:              {"WAIT_ADMIN_AUDIT", GroupRegisted, false},
	EnterpriseStatusAdminAudited:                {"ADMIN_AUDITED", GroupRegisted, false},
	EnterpriseStatusRejected:                    {"REJECTED", GroupAuditRejection, false},
	EnterpriseStatusWaitInsuranceCompanyAudited: {"WAIT_INSURANCE_COMPANY_AUDITED", GroupUnderReview, false},
	EnterpriseStatusInsuranceCompanyAccepted:    {"INSURANCE_COMPANY_ACCEPTED", GroupUnderReview, false},
	EnterpriseStatusInsuranceCompanyRejected:    {"INSURANCE_COMPANY_REJECTED", GroupAuditRejection, false},
	EnterpriseStatusSettled:                     {"SETTLED", GroupCompleted, true},
	EnterpriseStatusCanceled:                    {"CANCELED", GroupCanceld, true},
}

var _ = [1]struct{}{}[len(enterpriseStatusTable)-int(enterpriseStatusCount)]

var enterpriseTransitions = map[EnterpriseClaimStatus][]EnterpriseClaimStatus{
	EnterpriseStatusNotSubmitted:   {EnterpriseStatusWaitAdminAudit},
	EnterpriseStatusWaitAdminAudit: {EnterpriseStatusAdminAudited, EnterpriseStatusRejected},
	EnterpriseStatusAdminAudited:   {EnterpriseStatusWaitInsuranceCompanyAudited, EnterpriseStatusRejected},
	EnterpriseStatusRejected:       {EnterpriseStatusWaitAdminAudit},
	EnterpriseStatusWaitInsuranceCompanyAudited: {
		EnterpriseStatusInsuranceCompanyAccepted,
		EnterpriseStatusInsuranceCompanyRejected,
		EnterpriseStatusRejected,
	},
	EnterpriseStatusInsuranceCompanyAccepted: {
		EnterpriseStatusSettled,
		EnterpriseStatusInsuranceCompanyRejected,
	},
	EnterpriseStatusInsuranceCompanyRejected: {EnterpriseStatusWaitAdminAudit},
}

func AllEnterpriseClaimStatuses() []EnterpriseClaimStatus {
	out := make([]EnterpriseClaimStatus, 0, enterpriseStatusCount)
	for s := EnterpriseClaimStatus(0); s < enterpriseStatusCount; s++ {
		out = append(out, s)
	}
	return out
}

func ParseEnterpriseClaimStatus(name string) (EnterpriseClaimStatus, error) {
	for s, info := range enterpriseStatusTable {
		if info.name == name {
			return EnterpriseClaimStatus(s), nil
		}
	}
	return 0, fmt.Errorf("unknown enterprise claim status %q", name)
}

func (s EnterpriseClaimStatus) valid() bool {
	return s >= 0 && s < enterpriseStatusCount
}

func (s EnterpriseClaimStatus) String() string {
	if !s.valid() {
		return fmt.Sprintf("EnterpriseClaimStatus(%d)", int(s))
	}
	return enterpriseStatusTable[s].name
}

func (s EnterpriseClaimStatus) Group() StatusGroup {
	if !s.valid() {
		return ""
	}
	return enterpriseStatusTable[s].group
}

// EnterpriseGroupOf is the pure status to group mapping for the enterprise flow
func EnterpriseGroupOf(s EnterpriseClaimStatus) StatusGroup {
	return s.Group()
}

func (s EnterpriseClaimStatus) IsTerminal() bool {
	return s.valid() && enterpriseStatusTable[s].terminal
}

func (s EnterpriseClaimStatus) CanTransitionTo(to EnterpriseClaimStatus) bool {
	if !s.valid() || !to.valid() || s.IsTerminal() {
		return false
	}
	if to == EnterpriseStatusCanceled {
		return true
	}
	for _, next := range enterpriseTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// AllowClientOperation reports whether the employee may edit or (re)submit
func (s EnterpriseClaimStatus) AllowClientOperation() bool {
	switch s {
	case EnterpriseStatusNotSubmitted, EnterpriseStatusRejected, EnterpriseStatusInsuranceCompanyRejected:
		return true
	}
	return false
}

// AllowAdminOperation reports whether the enterprise administrator may act
func (s EnterpriseClaimStatus) AllowAdminOperation() bool {
	switch s {
	case EnterpriseStatusWaitAdminAudit, EnterpriseStatusAdminAudited:
		return true
	}
	return false
}

// AllowReconcile reports whether deductible may be applied to the claim's
// items: it must have been submitted and still be open.
func (s EnterpriseClaimStatus) AllowReconcile() bool {
	return s.valid() && s != EnterpriseStatusNotSubmitted && !s.IsTerminal()
}

// HoldsDeductible reports whether the claim may keep deductible recorded
// against its items. Canceled claims give it back.
func (s EnterpriseClaimStatus) HoldsDeductible() bool {
	return s.valid() && s != EnterpriseStatusCanceled
}

// AllowReject reports whether the claim may be sent back to the employee.
// A claim already waiting on the insurer can still be recalled.
func (s EnterpriseClaimStatus) AllowReject() bool {
	switch s {
	case EnterpriseStatusWaitAdminAudit, EnterpriseStatusAdminAudited, EnterpriseStatusWaitInsuranceCompanyAudited:
		return true
	}
	return false
}

func (s EnterpriseClaimStatus) MarshalText() ([]byte, error) {
	if !s.valid() {
		return nil, fmt.Errorf("invalid enterprise claim status %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *EnterpriseClaimStatus) UnmarshalText(b []byte) error {
	parsed, err := ParseEnterpriseClaimStatus(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func (s EnterpriseClaimStatus) Value() (driver.Value, error) {
	return s.String(), nil
}

func (s *EnterpriseClaimStatus) Scan(value any) error {
	switch v := value.(type) {
	case string:
		return s.UnmarshalText([]byte(v))
	case []byte:
		return s.UnmarshalText(v)
	default:
		return fmt.Errorf("cannot scan %T into EnterpriseClaimStatus", value)
	}
}
