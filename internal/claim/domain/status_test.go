package domain

import (
	"testing"
)

func isKnownGroup(g StatusGroup) bool {
	for _, known := range AllStatusGroups {
		if g == known {
			return true
		}
	}
	return false
}

// TestClaimStatusTable checks every status has a name and a known group
func TestClaimStatusTable(t *testing.T) {
	seen := map[string]bool{}
	for _, s := range AllClaimStatuses() {
		name := s.String()
		if name == "" {
			t.Errorf("Expected a name for status %d", int(s))
		}
		if seen[name] {
			t.Errorf("Duplicate status name %s", name)
		}
		seen[name] = true

		if !isKnownGroup(GroupOf(s)) {
			t.Errorf("Expected a known group for %s, got %q", s, GroupOf(s))
		}
	}
	if len(seen) != int(claimStatusCount) {
		t.Errorf("Expected %d statuses, got %d", claimStatusCount, len(seen))
	}
}

func TestGroupOf(t *testing.T) {
	tests := []struct {
		status ClaimStatus
		group  StatusGroup
	}{
		{StatusNotSubmitted, GroupPendingCase},
		{StatusClaimApplicationWaitAudit, GroupRegisted},
		{StatusClaimApplicationAudited, GroupRegisted},
		{StatusTemporarySaved, GroupRegisted},
		{StatusSystemAudited, GroupUnderReview},
		{StatusSystemRejected, GroupAuditRejection},
		{StatusWaitInsuranceCompanyAudited, GroupUnderReview},
		{StatusInsuranceCompanyAccepted, GroupUnderReview},
		{StatusInsuranceCompanyCompleted, GroupCompleted},
		{StatusInsuranceCompanyRejected, GroupAuditRejection},
		{StatusInsuranceCompanyAnnulOrRefused, GroupCompleted},
		{StatusCanceled, GroupCanceld},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			if got := GroupOf(tt.status); got != tt.group {
				t.Errorf("Expected group %s, got %s", tt.group, got)
			}
		})
	}
}

func TestClaimStatusGuards(t *testing.T) {
	tests := []struct {
		status       ClaimStatus
		client       bool
		systemReject bool
		systemAccept bool
	}{
		{StatusNotSubmitted, true, false, false},
		{StatusClaimApplicationWaitAudit, false, true, false},
		{StatusClaimApplicationAudited, false, true, true},
		{StatusTemporarySaved, false, true, true},
		{StatusSystemAudited, false, false, false},
		{StatusSystemRejected, true, false, false},
		{StatusWaitInsuranceCompanyAudited, false, false, false},
		{StatusInsuranceCompanyAccepted, false, false, false},
		{StatusInsuranceCompanyCompleted, false, false, false},
		{StatusInsuranceCompanyRejected, true, false, false},
		{StatusInsuranceCompanyAnnulOrRefused, false, false, false},
		{StatusCanceled, false, false, false},
	}

	if len(tests) != int(claimStatusCount) {
		t.Fatalf("Expected a guard case for each of %d statuses, got %d", claimStatusCount, len(tests))
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			if got := tt.status.AllowClientOperation(); got != tt.client {
				t.Errorf("AllowClientOperation: expected %v, got %v", tt.client, got)
			}
			if got := tt.status.AllowSystemReject(); got != tt.systemReject {
				t.Errorf("AllowSystemReject: expected %v, got %v", tt.systemReject, got)
			}
			if got := tt.status.AllowSystemAccept(); got != tt.systemAccept {
				t.Errorf("AllowSystemAccept: expected %v, got %v", tt.systemAccept, got)
			}
		})
	}
}

func TestClaimStatusCanTransitionTo(t *testing.T) {
	for _, s := range AllClaimStatuses() {
		if s.IsTerminal() {
			for _, to := range AllClaimStatuses() {
				if s.CanTransitionTo(to) {
					t.Errorf("Expected terminal %s to have no successors, found %s", s, to)
				}
			}
			continue
		}
		if !s.CanTransitionTo(StatusCanceled) {
			t.Errorf("Expected %s to be cancelable", s)
		}
		if s.CanTransitionTo(s) {
			t.Errorf("Expected no self transition on %s", s)
		}
	}

	if StatusNotSubmitted.CanTransitionTo(StatusSystemAudited) {
		t.Error("Expected NOT_SUBMITTED to not jump to SYSTEM_AUDITED")
	}
	if !StatusClaimApplicationAudited.CanTransitionTo(StatusTemporarySaved) ||
		!StatusTemporarySaved.CanTransitionTo(StatusClaimApplicationAudited) {
		t.Error("Expected AUDITED and TEMPORARY_SAVED to be reachable from each other")
	}
}

func TestClaimStatusText(t *testing.T) {
	text, err := StatusInsuranceCompanyAnnulOrRefused.MarshalText()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if string(text) != "INSURANCE_COMPANY_ANNUL_OR_REFUSED" {
		t.Errorf("Expected INSURANCE_COMPANY_ANNUL_OR_REFUSED, got %s", text)
	}

	var s ClaimStatus
	if err := s.UnmarshalText(text); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if s != StatusInsuranceCompanyAnnulOrRefused {
		t.Errorf("Expected %s, got %s", StatusInsuranceCompanyAnnulOrRefused, s)
	}

	if err := s.UnmarshalText([]byte("UNKNOWN")); err == nil {
		t.Error("Expected error for unknown status")
	}
	if _, err := ClaimStatus(99).MarshalText(); err == nil {
		t.Error("Expected error for out of range status")
	}
}

func TestEnterpriseStatusTable(t *testing.T) {
	for _, s := range AllEnterpriseClaimStatuses() {
		if s.String() == "" {
			t.Errorf("Expected a name for status %d", int(s))
		}
		if !isKnownGroup(EnterpriseGroupOf(s)) {
			t.Errorf("Expected a known group for %s, got %q", s, EnterpriseGroupOf(s))
		}
		parsed, err := ParseEnterpriseClaimStatus(s.String())
		if err != nil || parsed != s {
			t.Errorf("Expected %s to parse back, got %s (%v)", s, parsed, err)
		}
	}
}

func TestEnterpriseStatusGuards(t *testing.T) {
	tests := []struct {
		status EnterpriseClaimStatus
		client bool
		admin  bool
		reject bool
	}{
		{EnterpriseStatusNotSubmitted, true, false, false},
		{EnterpriseStatusWaitAdminAudit, false, true, true},
		{EnterpriseStatusAdminAudited, false, true, true},
		{EnterpriseStatusRejected, true, false, false},
		{EnterpriseStatusWaitInsuranceCompanyAudited, false, false, true},
		{EnterpriseStatusInsuranceCompanyAccepted, false, false, false},
		{EnterpriseStatusInsuranceCompanyRejected, true, false, false},
		{EnterpriseStatusSettled, false, false, false},
		{EnterpriseStatusCanceled, false, false, false},
	}

	if len(tests) != int(enterpriseStatusCount) {
		t.Fatalf("Expected a guard case for each of %d statuses, got %d", enterpriseStatusCount, len(tests))
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			if got := tt.status.AllowClientOperation(); got != tt.client {
				t.Errorf("AllowClientOperation: expected %v, got %v", tt.client, got)
			}
			if got := tt.status.AllowAdminOperation(); got != tt.admin {
				t.Errorf("AllowAdminOperation: expected %v, got %v", tt.admin, got)
			}
			if got := tt.status.AllowReject(); got != tt.reject {
				t.Errorf("AllowReject: expected %v, got %v", tt.reject, got)
			}
		})
	}
}

func TestEnterpriseDeductibleGuards(t *testing.T) {
	tests := []struct {
		status    EnterpriseClaimStatus
		reconcile bool
		holds     bool
	}{
		{EnterpriseStatusNotSubmitted, false, true},
		{EnterpriseStatusWaitAdminAudit, true, true},
		{EnterpriseStatusRejected, true, true},
		{EnterpriseStatusInsuranceCompanyAccepted, true, true},
		{EnterpriseStatusSettled, false, true},
		{EnterpriseStatusCanceled, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.status.String(), func(t *testing.T) {
			if got := tt.status.AllowReconcile(); got != tt.reconcile {
				t.Errorf("Expected AllowReconcile %v, got %v", tt.reconcile, got)
			}
			if got := tt.status.HoldsDeductible(); got != tt.holds {
				t.Errorf("Expected HoldsDeductible %v, got %v", tt.holds, got)
			}
		})
	}
}
