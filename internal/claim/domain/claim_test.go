package domain

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/claimflow/claims/internal/shared/errors"
	"github.com/claimflow/claims/internal/shared/types"
)

var (
	testClaimant = Operator{ID: types.NewID(), Name: "Zhang San", Type: OperatorClaimant}
	testAuditor  = Operator{ID: types.NewID(), Name: "Auditor", Type: OperatorAdmin}
	testInsurer  = Operator{ID: types.NewID(), Name: "Insurer", Type: OperatorInsurer}
)

func dec(s string) decimal.Decimal {
	return types.MustDecimal(s)
}

func testParty() Party {
	return Party{
		Name:             "Zhang San",
		CredentialType:   types.CredentialTypeIDCard,
		CredentialNumber: types.CredentialNumber("11010519491231002X"),
		Phone:            "13800000000",
	}
}

func newTestClaim() *InsuranceClaim {
	c := NewInsuranceClaim(types.NewID(), "P-2026-0001", testParty(), testParty(), testClaimant)
	c.Account = Account{BankName: "ICBC", AccountName: "Zhang San", AccountNumber: "6222000000000000"}
	c.SourceCode = "APP"
	return c
}

func TestNewInsuranceClaim(t *testing.T) {
	c := newTestClaim()

	if c.ID.IsZero() {
		t.Error("Expected non-zero ID")
	}
	if c.Status != StatusNotSubmitted {
		t.Errorf("Expected status %s, got %s", StatusNotSubmitted, c.Status)
	}
	if c.StatusGroup != GroupPendingCase {
		t.Errorf("Expected group %s, got %s", GroupPendingCase, c.StatusGroup)
	}
	if len(c.Events) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(c.Events))
	}
	if c.Events[0].Status != "NOT_SUBMITTED" || c.Events[0].Flow != FlowPersonal {
		t.Errorf("Expected creation event in NOT_SUBMITTED, got %+v", c.Events[0])
	}
}

// TestSubmitScenario follows a claim from creation through submission
func TestSubmitScenario(t *testing.T) {
	c := newTestClaim()

	if !c.AllowClientOperation() {
		t.Fatal("Expected client operation to be allowed on a new claim")
	}

	if err := c.Submit(testClaimant, "Submitted from app"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if c.Status != StatusClaimApplicationWaitAudit {
		t.Errorf("Expected status %s, got %s", StatusClaimApplicationWaitAudit, c.Status)
	}
	if c.AllowClientOperation() {
		t.Error("Expected client operation to be disallowed after submit")
	}

	last := c.Events[len(c.Events)-1]
	if last.Status != StatusClaimApplicationWaitAudit.String() {
		t.Errorf("Expected event status %s, got %s", StatusClaimApplicationWaitAudit, last.Status)
	}
	if last.StatusGroup != GroupRegisted {
		t.Errorf("Expected event group %s, got %s", GroupRegisted, last.StatusGroup)
	}
	if last.Operator.ID != testClaimant.ID || last.Detail != "Submitted from app" {
		t.Errorf("Expected operator and detail on event, got %+v", last)
	}
}

func TestInsuranceClaimHappyPath(t *testing.T) {
	c := newTestClaim()

	steps := []struct {
		name string
		run  func() error
		want ClaimStatus
	}{
		{"submit", func() error { return c.Submit(testClaimant, "") }, StatusClaimApplicationWaitAudit},
		{"audit", func() error { return c.AuditApplication(testAuditor, "") }, StatusClaimApplicationAudited},
		{"temporary save", func() error { return c.TemporarySave(testAuditor, "waiting for receipt") }, StatusTemporarySaved},
		{"resume", func() error { return c.ResumeAudit(testAuditor, "") }, StatusClaimApplicationAudited},
		{"system accept", func() error { return c.SystemAccept(SystemOperator, "") }, StatusSystemAudited},
		{"send to insurer", func() error { return c.SendToInsurer(SystemOperator, "") }, StatusWaitInsuranceCompanyAudited},
		{"insurer accept", func() error { return c.InsurerAccept(testInsurer, "") }, StatusInsuranceCompanyAccepted},
		{"insurer complete", func() error { return c.InsurerComplete(testInsurer, "") }, StatusInsuranceCompanyCompleted},
	}

	for _, step := range steps {
		before := len(c.Events)
		if err := step.run(); err != nil {
			t.Fatalf("%s: expected no error, got %v", step.name, err)
		}
		if c.Status != step.want {
			t.Fatalf("%s: expected status %s, got %s", step.name, step.want, c.Status)
		}
		if c.StatusGroup != GroupOf(c.Status) {
			t.Errorf("%s: expected group %s, got %s", step.name, GroupOf(c.Status), c.StatusGroup)
		}
		if len(c.Events) != before+1 {
			t.Errorf("%s: expected %d events, got %d", step.name, before+1, len(c.Events))
		}
	}

	if c.Amount.EndcaseDate == nil {
		t.Error("Expected end date to be stamped on completion")
	}
	if err := c.Cancel(testClaimant, ""); !errors.Is(err, errors.ErrPreconditionViolation) {
		t.Errorf("Expected precondition violation when canceling a completed claim, got %v", err)
	}
}

// TestInsuranceClaimTransitionsFromEveryStatus tries every operation from every
// status and checks that accepted transitions are legal edges and rejected ones
// leave the claim untouched.
func TestInsuranceClaimTransitionsFromEveryStatus(t *testing.T) {
	ops := []Operation{
		OpSubmit, OpAuditApplication, OpTemporarySave, OpResumeAudit,
		OpSystemAccept, OpSystemReject, OpSendToInsurer, OpInsurerAccept,
		OpInsurerComplete, OpInsurerReject, OpInsurerAnnul, OpCancel,
	}

	for _, from := range AllClaimStatuses() {
		for _, op := range ops {
			t.Run(from.String()+"/"+string(op), func(t *testing.T) {
				c := newTestClaim()
				c.Status = from
				c.StatusGroup = from.Group()
				c.GetDomainEvents()
				events := len(c.Events)

				err := c.Apply(op, testAuditor, "detail")
				if err != nil {
					if !errors.Is(err, errors.ErrPreconditionViolation) {
						t.Fatalf("Expected precondition violation, got %v", err)
					}
					if c.Status != from || c.StatusGroup != from.Group() {
						t.Errorf("Expected status unchanged at %s, got %s", from, c.Status)
					}
					if len(c.Events) != events {
						t.Errorf("Expected %d events, got %d", events, len(c.Events))
					}
					if len(c.GetDomainEvents()) != 0 {
						t.Error("Expected no domain events after a rejected transition")
					}
					return
				}

				if !from.CanTransitionTo(c.Status) {
					t.Errorf("Illegal edge %s -> %s accepted", from, c.Status)
				}
				if c.StatusGroup != GroupOf(c.Status) {
					t.Errorf("Expected group %s, got %s", GroupOf(c.Status), c.StatusGroup)
				}
				if len(c.Events) != events+1 {
					t.Fatalf("Expected %d events, got %d", events+1, len(c.Events))
				}
				last := c.Events[len(c.Events)-1]
				if last.Status != c.Status.String() || last.StatusGroup != c.StatusGroup {
					t.Errorf("Expected event for %s/%s, got %s/%s", c.Status, c.StatusGroup, last.Status, last.StatusGroup)
				}

				published := c.GetDomainEvents()
				if len(published) != 1 || published[0].Type != EventClaimStatusChanged || published[0].FromStatus != from.String() {
					t.Errorf("Expected one status_changed event from %s, got %+v", from, published)
				}
			})
		}
	}
}

func TestCancelFromEveryNonTerminalStatus(t *testing.T) {
	for _, from := range AllClaimStatuses() {
		c := newTestClaim()
		c.Status = from
		c.StatusGroup = from.Group()

		err := c.Cancel(testClaimant, "changed my mind")
		if from.IsTerminal() {
			if err == nil {
				t.Errorf("Expected cancel from terminal %s to fail", from)
			}
			continue
		}
		if err != nil {
			t.Errorf("Expected cancel from %s to succeed, got %v", from, err)
		}
		if c.StatusGroup != GroupCanceld {
			t.Errorf("Expected group %s, got %s", GroupCanceld, c.StatusGroup)
		}
	}
}

func TestResubmitAfterRejection(t *testing.T) {
	c := newTestClaim()
	_ = c.Submit(testClaimant, "")
	if err := c.SystemReject(SystemOperator, "missing receipt"); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !c.AllowClientOperation() {
		t.Fatal("Expected client operation after system reject")
	}
	if err := c.Submit(testClaimant, "resubmitted"); err != nil {
		t.Fatalf("Expected resubmit to succeed, got %v", err)
	}
	if c.Status != StatusClaimApplicationWaitAudit {
		t.Errorf("Expected status %s, got %s", StatusClaimApplicationWaitAudit, c.Status)
	}
}

func TestApplyUnknownOperation(t *testing.T) {
	c := newTestClaim()
	err := c.Apply(OpSettle, testClaimant, "")
	if !errors.Is(err, errors.ErrBadRequest) {
		t.Errorf("Expected bad request for enterprise-only operation, got %v", err)
	}
}

func TestInsuranceClaimDelete(t *testing.T) {
	c := newTestClaim()

	if err := c.Delete(testClaimant); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !c.IsDeleted() {
		t.Fatal("Expected claim to be soft deleted")
	}
	if err := c.Submit(testClaimant, ""); !errors.Is(err, errors.ErrPreconditionViolation) {
		t.Errorf("Expected precondition violation on deleted claim, got %v", err)
	}
	if err := c.Delete(testClaimant); err == nil {
		t.Error("Expected second delete to fail")
	}

	submitted := newTestClaim()
	_ = submitted.Submit(testClaimant, "")
	if err := submitted.Delete(testClaimant); err == nil {
		t.Error("Expected delete of a submitted claim to fail")
	}
}

func TestAddMedicalRequiresClientOperation(t *testing.T) {
	c := newTestClaim()
	m := &ClaimMedical{MedicalVisit: MedicalVisit{ID: types.NewID(), Amount: dec("100")}}
	m.InvoiceList = []*ClaimInvoice{{ID: types.NewID(), Number: "N1", Amount: dec("100")}}

	if err := c.AddMedical(m); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if m.ClaimID != c.ID || m.InvoiceList[0].ClaimID != c.ID || m.InvoiceList[0].ClaimMedicalID != m.ID {
		t.Error("Expected claim and medical IDs to be propagated")
	}

	_ = c.Submit(testClaimant, "")
	if err := c.AddMedical(&ClaimMedical{}); !errors.Is(err, errors.ErrPreconditionViolation) {
		t.Errorf("Expected precondition violation, got %v", err)
	}
}

func TestCalculateAmount(t *testing.T) {
	c := newTestClaim()
	m := &ClaimMedical{MedicalVisit: MedicalVisit{ID: types.NewID(), Amount: dec("1500")}}
	m.InvoiceList = []*ClaimInvoice{
		{ID: types.NewID(), Number: "A", Amount: dec("1000"), FundPaidAmount: dec("400"), SelfPaidAmount: dec("300"), SeriousIllnessPaid: dec("100")},
		{ID: types.NewID(), Number: "B", Amount: dec("500"), FundPaidAmount: dec("200"), CivilAffairSubsidyPaid: dec("50")},
		// fails the amount check and must not be counted
		{ID: types.NewID(), Number: "C", Amount: dec("10"), SelfPaidAmount: dec("20")},
	}
	if err := c.AddMedical(m); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	report := c.ValidateInvoices()
	if report.Verified != 2 || report.IgnoredLT != 1 {
		t.Fatalf("Expected 2 verified and 1 ignored, got %+v", report)
	}

	rules := ProductRules{Deductible: dec("100"), PayRatio: dec("0.8"), ClaimLimit: dec("500"), SettlementPeriod: PeriodYear}
	if err := c.CalculateAmount(rules); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	// base = 1500 - 600 fund - 100 serious illness - 50 civil affair = 750
	checks := []struct {
		name string
		got  decimal.Decimal
		want string
	}{
		{"total", c.Amount.TotalAmount, "1500"},
		{"fund", c.Amount.OverallFundAmount, "600"},
		{"self paid", c.Amount.SelfPaidAmount, "300"},
		{"claim base", c.Amount.ClaimBase, "750"},
		{"deductible", c.Amount.Deductible, "100"},
		{"claim amount", c.Amount.ClaimAmount, "520"},
		{"actual claim amount", c.Amount.ActualClaimAmount, "500"},
	}
	for _, ch := range checks {
		if !ch.got.Equal(dec(ch.want)) {
			t.Errorf("%s: expected %s, got %s", ch.name, ch.want, ch.got)
		}
	}
}

func TestCalculateAmountDeductibleAboveBase(t *testing.T) {
	c := newTestClaim()
	m := &ClaimMedical{MedicalVisit: MedicalVisit{ID: types.NewID()}}
	m.InvoiceList = []*ClaimInvoice{{ID: types.NewID(), Number: "A", Amount: dec("80")}}
	_ = c.AddMedical(m)
	c.ValidateInvoices()

	if err := c.CalculateAmount(ProductRules{Deductible: dec("100"), PayRatio: dec("1")}); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !c.Amount.Deductible.Equal(dec("80")) {
		t.Errorf("Expected deductible capped at base 80, got %s", c.Amount.Deductible)
	}
	if !c.Amount.ClaimAmount.IsZero() {
		t.Errorf("Expected zero claim amount, got %s", c.Amount.ClaimAmount)
	}
}

func TestRecordPayment(t *testing.T) {
	c := newTestClaim()
	paidAt := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	if err := c.RecordPayment(dec("100"), paidAt); !errors.Is(err, errors.ErrPreconditionViolation) {
		t.Errorf("Expected precondition violation before completion, got %v", err)
	}

	c.Status = StatusInsuranceCompanyCompleted
	c.StatusGroup = GroupCompleted
	if err := c.RecordPayment(dec("-1"), paidAt); !errors.Is(err, errors.ErrValidation) {
		t.Errorf("Expected validation error for negative payment, got %v", err)
	}
	if err := c.RecordPayment(dec("100"), paidAt); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if !c.Amount.ActualPaidAmount.Equal(dec("100")) || c.Amount.PayTime == nil || !c.Amount.PayTime.Equal(paidAt) {
		t.Errorf("Expected payment recorded, got %+v", c.Amount)
	}
}

func TestInsuranceClaimClone(t *testing.T) {
	c := newTestClaim()
	m := &ClaimMedical{MedicalVisit: MedicalVisit{ID: types.NewID(), HospitalName: "A"}}
	m.InvoiceList = []*ClaimInvoice{{ID: types.NewID(), Number: "A", Amount: dec("10"), Costs: []ClaimInvoiceCost{{MedicalChargeName: "X", Amount: dec("10")}}}}
	_ = c.AddMedical(m)

	cp := c.Clone()
	cp.MedicalList[0].HospitalName = "B"
	cp.MedicalList[0].InvoiceList[0].Costs[0].Amount = dec("99")
	cp.Events[0].Detail = "changed"
	_ = cp.Submit(testClaimant, "")

	if c.MedicalList[0].HospitalName != "A" {
		t.Error("Expected clone to not share medicals")
	}
	if !c.MedicalList[0].InvoiceList[0].Costs[0].Amount.Equal(dec("10")) {
		t.Error("Expected clone to not share invoice costs")
	}
	if c.Events[0].Detail == "changed" || len(c.Events) != 1 {
		t.Error("Expected clone to not share events")
	}
	if c.Status != StatusNotSubmitted {
		t.Error("Expected original status unchanged")
	}
}

func TestRequiredFields(t *testing.T) {
	c := newTestClaim()
	if missing := c.MissingFields(); len(missing) != 0 {
		t.Errorf("Expected no missing fields, got %v", missing)
	}
	if err := c.CheckRequiredFields(); err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	c.PolicyNumber = ""
	c.Account = Account{}
	missing := c.MissingFields()
	if len(missing) != 4 {
		t.Errorf("Expected 4 missing fields, got %v", missing)
	}
	err := c.CheckRequiredFields()
	if !errors.Is(err, errors.ErrMissingRequiredField) {
		t.Fatalf("Expected missing field error, got %v", err)
	}
	var appErr *errors.AppError
	if !errors.As(err, &appErr) || appErr.Details["policy_number"] != "required" {
		t.Errorf("Expected policy_number in details, got %v", err)
	}
}
