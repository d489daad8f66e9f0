package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/claimflow/claims/internal/shared/errors"
	"github.com/claimflow/claims/internal/shared/types"
)

// Party is an insured person or claimant
type Party struct {
	Name             string                 `json:"name"`
	CredentialType   types.CredentialType   `json:"credential_type"`
	CredentialNumber types.CredentialNumber `json:"credential_number"`
	Phone            string                 `json:"phone,omitempty"`
}

// Account is where the claim is paid to
type Account struct {
	BankName      string `json:"bank_name"`
	AccountName   string `json:"account_name"`
	AccountNumber string `json:"account_number"`
}

// InsuranceClaim is the aggregate root of a personal claim
type InsuranceClaim struct {
	ID           types.ID    `json:"id"`
	ProductID    types.ID    `json:"product_id"`
	PolicyNumber string      `json:"policy_number"`
	SourceCode   string      `json:"source_code"`
	Status       ClaimStatus `json:"status"`
	StatusGroup  StatusGroup `json:"status_group"`

	Insured  Party   `json:"insured"`
	Claimant Party   `json:"claimant"`
	Account  Account `json:"account"`

	AccidentReason string     `json:"accident_reason,omitempty"`
	AccidentDate   *time.Time `json:"accident_date,omitempty"`

	MedicalList []*ClaimMedical `json:"medical_list"`
	Amount      ClaimAmount     `json:"amount"`
	Events      []ClaimEvent    `json:"events"`

	CreateTime time.Time  `json:"create_time"`
	ModifyTime time.Time  `json:"modify_time"`
	DeleteTime *time.Time `json:"delete_time,omitempty"`

	domainEvents []Event
}

// NewInsuranceClaim creates a claim in NOT_SUBMITTED
func NewInsuranceClaim(productID types.ID, policyNumber string, insured, claimant Party, creator Operator) *InsuranceClaim {
	now := time.Now()
	c := &InsuranceClaim{
		ID:           types.NewID(),
		ProductID:    productID,
		PolicyNumber: policyNumber,
		Status:       StatusNotSubmitted,
		StatusGroup:  StatusNotSubmitted.Group(),
		Insured:      insured,
		Claimant:     claimant,
		MedicalList:  []*ClaimMedical{},
		Events:       []ClaimEvent{},
		CreateTime:   now,
		ModifyTime:   now,
	}

	c.addEvent(EventClaimCreated, "", creator, "Claim created", now)

	return c
}

func (c *InsuranceClaim) AllowClientOperation() bool { return c.Status.AllowClientOperation() }
func (c *InsuranceClaim) AllowSystemReject() bool    { return c.Status.AllowSystemReject() }
func (c *InsuranceClaim) AllowSystemAccept() bool    { return c.Status.AllowSystemAccept() }

// IsDeleted reports whether the claim was soft deleted
func (c *InsuranceClaim) IsDeleted() bool {
	return c.DeleteTime != nil
}

// Submit hands the claim over for audit. Also used for resubmission after a rejection.
func (c *InsuranceClaim) Submit(op Operator, detail string) error {
	return c.transition(OpSubmit, c.AllowClientOperation(), StatusClaimApplicationWaitAudit, op, detail)
}

// AuditApplication marks the application documents as checked
func (c *InsuranceClaim) AuditApplication(op Operator, detail string) error {
	return c.transition(OpAuditApplication, c.Status == StatusClaimApplicationWaitAudit, StatusClaimApplicationAudited, op, detail)
}

// TemporarySave parks an audited claim while the auditor collects information
func (c *InsuranceClaim) TemporarySave(op Operator, detail string) error {
	return c.transition(OpTemporarySave, c.Status == StatusClaimApplicationAudited, StatusTemporarySaved, op, detail)
}

// ResumeAudit returns a temporarily saved claim to audited
func (c *InsuranceClaim) ResumeAudit(op Operator, detail string) error {
	return c.transition(OpResumeAudit, c.Status == StatusTemporarySaved, StatusClaimApplicationAudited, op, detail)
}

func (c *InsuranceClaim) SystemAccept(op Operator, detail string) error {
	return c.transition(OpSystemAccept, c.AllowSystemAccept(), StatusSystemAudited, op, detail)
}

func (c *InsuranceClaim) SystemReject(op Operator, detail string) error {
	return c.transition(OpSystemReject, c.AllowSystemReject(), StatusSystemRejected, op, detail)
}

// SendToInsurer queues a system-audited claim for the insurance company
func (c *InsuranceClaim) SendToInsurer(op Operator, detail string) error {
	return c.transition(OpSendToInsurer, c.Status == StatusSystemAudited, StatusWaitInsuranceCompanyAudited, op, detail)
}

func (c *InsuranceClaim) InsurerAccept(op Operator, detail string) error {
	return c.transition(OpInsurerAccept, c.Status == StatusWaitInsuranceCompanyAudited, StatusInsuranceCompanyAccepted, op, detail)
}

// InsurerComplete closes the case; the end date is stamped for settlement
func (c *InsuranceClaim) InsurerComplete(op Operator, detail string) error {
	if err := c.transition(OpInsurerComplete, c.Status == StatusInsuranceCompanyAccepted, StatusInsuranceCompanyCompleted, op, detail); err != nil {
		return err
	}
	endcase := c.ModifyTime
	c.Amount.EndcaseDate = &endcase
	return nil
}

func (c *InsuranceClaim) InsurerReject(op Operator, detail string) error {
	return c.transition(OpInsurerReject, c.Status == StatusInsuranceCompanyAccepted, StatusInsuranceCompanyRejected, op, detail)
}

func (c *InsuranceClaim) InsurerAnnul(op Operator, detail string) error {
	if err := c.transition(OpInsurerAnnul, c.Status == StatusInsuranceCompanyAccepted, StatusInsuranceCompanyAnnulOrRefused, op, detail); err != nil {
		return err
	}
	endcase := c.ModifyTime
	c.Amount.EndcaseDate = &endcase
	return nil
}

// Cancel is allowed from every non-terminal status
func (c *InsuranceClaim) Cancel(op Operator, detail string) error {
	return c.transition(OpCancel, !c.Status.IsTerminal(), StatusCanceled, op, detail)
}

// Apply dispatches a named operation
func (c *InsuranceClaim) Apply(operation Operation, op Operator, detail string) error {
	switch operation {
	case OpSubmit:
		return c.Submit(op, detail)
	case OpAuditApplication:
		return c.AuditApplication(op, detail)
	case OpTemporarySave:
		return c.TemporarySave(op, detail)
	case OpResumeAudit:
		return c.ResumeAudit(op, detail)
	case OpSystemAccept:
		return c.SystemAccept(op, detail)
	case OpSystemReject:
		return c.SystemReject(op, detail)
	case OpSendToInsurer:
		return c.SendToInsurer(op, detail)
	case OpInsurerAccept:
		return c.InsurerAccept(op, detail)
	case OpInsurerComplete:
		return c.InsurerComplete(op, detail)
	case OpInsurerReject:
		return c.InsurerReject(op, detail)
	case OpInsurerAnnul:
		return c.InsurerAnnul(op, detail)
	case OpCancel:
		return c.Cancel(op, detail)
	}
	return errors.BadRequest("unknown claim operation: " + string(operation))
}

// transition is the only place Status changes. Guards are checked before
// anything is written.
func (c *InsuranceClaim) transition(operation Operation, allowed bool, to ClaimStatus, op Operator, detail string) error {
	if c.IsDeleted() {
		return errors.PreconditionViolation(string(operation), "DELETED")
	}
	if !allowed || !c.Status.CanTransitionTo(to) {
		return errors.PreconditionViolation(string(operation), c.Status.String())
	}

	from := c.Status
	now := time.Now()
	c.Status = to
	c.StatusGroup = to.Group()
	c.ModifyTime = now
	c.addEvent(EventClaimStatusChanged, from.String(), op, detail, now)

	return nil
}

// AddMedical attaches a visit while the claimant may still edit the claim
func (c *InsuranceClaim) AddMedical(m *ClaimMedical) error {
	if c.IsDeleted() || !c.AllowClientOperation() {
		return errors.PreconditionViolation("add_medical", c.Status.String())
	}
	m.ClaimID = c.ID
	for _, inv := range m.InvoiceList {
		inv.ClaimID = c.ID
		inv.ClaimMedicalID = m.ID
	}
	c.MedicalList = append(c.MedicalList, m)
	c.ModifyTime = time.Now()
	return nil
}

// ValidateInvoices validates every invoice of the claim in visit order.
// Invoice numbers are deduplicated across all visits.
func (c *InsuranceClaim) ValidateInvoices() ValidationReport {
	seen := InvoiceNumbers{}
	var report ValidationReport
	for _, m := range c.MedicalList {
		report.Merge(m.ValidateInvoices(seen))
	}
	return report
}

// RollupAmount sums the verified invoices into Amount and derives ClaimBase
func (c *InsuranceClaim) RollupAmount() {
	c.Amount.resetRollup()
	for _, m := range c.MedicalList {
		for _, inv := range m.InvoiceList {
			if inv.Status == InvoiceVerified {
				c.Amount.addInvoice(inv)
			}
		}
	}
	c.Amount.ClaimBase = c.Amount.claimBase()
}

// CalculateAmount rolls up invoices and computes the payable amount. Personal
// claims carry no deductible history; the full product deductible applies.
func (c *InsuranceClaim) CalculateAmount(rules ProductRules) error {
	if c.IsDeleted() || c.Status.IsTerminal() {
		return errors.PreconditionViolation("calculate_amount", c.Status.String())
	}
	c.RollupAmount()
	c.Amount.Deductible = types.MinDecimal(rules.Deductible, c.Amount.ClaimBase)
	c.Amount.ClaimAmount, c.Amount.ActualClaimAmount = rules.Payable(c.Amount.ClaimBase, c.Amount.Deductible)
	c.ModifyTime = time.Now()
	return nil
}

// RecordPayment stores what the settlement system paid out
func (c *InsuranceClaim) RecordPayment(paid decimal.Decimal, payTime time.Time) error {
	if c.Status != StatusInsuranceCompanyCompleted {
		return errors.PreconditionViolation("record_payment", c.Status.String())
	}
	if paid.IsNegative() {
		return errors.Validation("invalid payment", map[string]string{"actual_paid_amount": "must not be negative"})
	}
	c.Amount.ActualPaidAmount = paid
	c.Amount.PayTime = &payTime
	c.ModifyTime = time.Now()
	return nil
}

// Delete soft deletes a claim the claimant still controls
func (c *InsuranceClaim) Delete(op Operator) error {
	if c.IsDeleted() || !c.AllowClientOperation() {
		return errors.PreconditionViolation("delete", c.Status.String())
	}
	now := time.Now()
	c.DeleteTime = &now
	c.ModifyTime = now
	c.addEvent(EventClaimDeleted, c.Status.String(), op, "Claim deleted", now)
	return nil
}

// GetDomainEvents returns and clears pending domain events
func (c *InsuranceClaim) GetDomainEvents() []Event {
	events := c.domainEvents
	c.domainEvents = nil
	return events
}

func (c *InsuranceClaim) addEvent(eventType, fromStatus string, op Operator, detail string, at time.Time) {
	event := newClaimEvent(c.ID, FlowPersonal, c.Status.String(), c.StatusGroup, op, detail, at)

	c.Events = append(c.Events, event)

	c.domainEvents = append(c.domainEvents, Event{
		Type:       eventType,
		ClaimID:    c.ID,
		FromStatus: fromStatus,
		ClaimEvent: event,
	})
}

// Clone returns a deep copy sharing no slices or pointers with c.
// Pending domain events are not copied.
func (c *InsuranceClaim) Clone() *InsuranceClaim {
	if c == nil {
		return nil
	}
	out := *c
	out.AccidentDate = cloneTime(c.AccidentDate)
	out.DeleteTime = cloneTime(c.DeleteTime)
	out.Amount = c.Amount.clone()
	out.Events = append([]ClaimEvent(nil), c.Events...)
	out.domainEvents = nil
	out.MedicalList = nil
	if c.MedicalList != nil {
		out.MedicalList = make([]*ClaimMedical, len(c.MedicalList))
		for i, m := range c.MedicalList {
			out.MedicalList[i] = m.Clone()
		}
	}
	return &out
}
