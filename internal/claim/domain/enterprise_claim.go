package domain

import (
	"time"

	"github.com/claimflow/claims/internal/shared/errors"
	"github.com/claimflow/claims/internal/shared/types"
)

// EnterpriseClaim is the aggregate root of a claim filed under a group policy.
// Visits are grouped into items that are settled separately.
type EnterpriseClaim struct {
	ID           types.ID              `json:"id"`
	EnterpriseID types.ID              `json:"enterprise_id"`
	ProductID    types.ID              `json:"product_id"`
	PolicyNumber string                `json:"policy_number"`
	SourceCode   string                `json:"source_code"`
	Status       EnterpriseClaimStatus `json:"status"`
	StatusGroup  StatusGroup           `json:"status_group"`

	Insured  Party   `json:"insured"`
	Claimant Party   `json:"claimant"`
	Account  Account `json:"account"`

	Items  []*EnterpriseClaimItem `json:"items"`
	Events []ClaimEvent           `json:"events"`

	CreateTime time.Time  `json:"create_time"`
	ModifyTime time.Time  `json:"modify_time"`
	DeleteTime *time.Time `json:"delete_time,omitempty"`

	domainEvents []Event
}

// NewEnterpriseClaim creates a claim in NOT_SUBMITTED
func NewEnterpriseClaim(enterpriseID, productID types.ID, policyNumber string, insured, claimant Party, creator Operator) *EnterpriseClaim {
	now := time.Now()
	c := &EnterpriseClaim{
		ID:           types.NewID(),
		EnterpriseID: enterpriseID,
		ProductID:    productID,
		PolicyNumber: policyNumber,
		Status:       EnterpriseStatusNotSubmitted,
		StatusGroup:  EnterpriseStatusNotSubmitted.Group(),
		Insured:      insured,
		Claimant:     claimant,
		Items:        []*EnterpriseClaimItem{},
		Events:       []ClaimEvent{},
		CreateTime:   now,
		ModifyTime:   now,
	}

	c.addEvent(EventEnterpriseClaimCreated, "", creator, "Claim created", now)

	return c
}

func (c *EnterpriseClaim) AllowClientOperation() bool { return c.Status.AllowClientOperation() }
func (c *EnterpriseClaim) AllowAdminOperation() bool  { return c.Status.AllowAdminOperation() }
func (c *EnterpriseClaim) AllowReject() bool          { return c.Status.AllowReject() }

func (c *EnterpriseClaim) IsDeleted() bool {
	return c.DeleteTime != nil
}

func (c *EnterpriseClaim) Submit(op Operator, detail string) error {
	return c.transition(OpSubmit, c.AllowClientOperation(), EnterpriseStatusWaitAdminAudit, op, detail)
}

// AdminAudit records the enterprise administrator's approval
func (c *EnterpriseClaim) AdminAudit(op Operator, detail string) error {
	allowed := c.AllowAdminOperation() && c.Status == EnterpriseStatusWaitAdminAudit
	return c.transition(OpAdminAudit, allowed, EnterpriseStatusAdminAudited, op, detail)
}

// Reject sends the claim back to the employee
func (c *EnterpriseClaim) Reject(op Operator, detail string) error {
	return c.transition(OpReject, c.AllowReject(), EnterpriseStatusRejected, op, detail)
}

func (c *EnterpriseClaim) SendToInsurer(op Operator, detail string) error {
	allowed := c.AllowAdminOperation() && c.Status == EnterpriseStatusAdminAudited
	return c.transition(OpSendToInsurer, allowed, EnterpriseStatusWaitInsuranceCompanyAudited, op, detail)
}

func (c *EnterpriseClaim) InsurerAccept(op Operator, detail string) error {
	return c.transition(OpInsurerAccept, c.Status == EnterpriseStatusWaitInsuranceCompanyAudited, EnterpriseStatusInsuranceCompanyAccepted, op, detail)
}

func (c *EnterpriseClaim) InsurerReject(op Operator, detail string) error {
	allowed := c.Status == EnterpriseStatusWaitInsuranceCompanyAudited || c.Status == EnterpriseStatusInsuranceCompanyAccepted
	return c.transition(OpInsurerReject, allowed, EnterpriseStatusInsuranceCompanyRejected, op, detail)
}

// Settle closes an accepted claim and stamps the end date on every item
func (c *EnterpriseClaim) Settle(op Operator, detail string) error {
	if err := c.transition(OpSettle, c.Status == EnterpriseStatusInsuranceCompanyAccepted, EnterpriseStatusSettled, op, detail); err != nil {
		return err
	}
	for _, it := range c.Items {
		endcase := c.ModifyTime
		it.Amount.EndcaseDate = &endcase
	}
	return nil
}

func (c *EnterpriseClaim) Cancel(op Operator, detail string) error {
	return c.transition(OpCancel, !c.Status.IsTerminal(), EnterpriseStatusCanceled, op, detail)
}

// Apply dispatches a named operation
func (c *EnterpriseClaim) Apply(operation Operation, op Operator, detail string) error {
	switch operation {
	case OpSubmit:
		return c.Submit(op, detail)
	case OpAdminAudit:
		return c.AdminAudit(op, detail)
	case OpReject:
		return c.Reject(op, detail)
	case OpSendToInsurer:
		return c.SendToInsurer(op, detail)
	case OpInsurerAccept:
		return c.InsurerAccept(op, detail)
	case OpInsurerReject:
		return c.InsurerReject(op, detail)
	case OpSettle:
		return c.Settle(op, detail)
	case OpCancel:
		return c.Cancel(op, detail)
	}
	return errors.BadRequest("unknown enterprise claim operation: " + string(operation))
}

func (c *EnterpriseClaim) transition(operation Operation, allowed bool, to EnterpriseClaimStatus, op Operator, detail string) error {
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
	c.addEvent(EventEnterpriseClaimStatusChange, from.String(), op, detail, now)

	return nil
}

// AddItem attaches a settlement item while the employee may still edit the claim
func (c *EnterpriseClaim) AddItem(it *EnterpriseClaimItem) error {
	if c.IsDeleted() || !c.AllowClientOperation() {
		return errors.PreconditionViolation("add_item", c.Status.String())
	}
	it.ClaimID = c.ID
	for _, m := range it.Medicals {
		if m == nil {
			continue
		}
		m.ClaimID = c.ID
		for _, inv := range m.InvoiceList {
			inv.ClaimID = c.ID
			inv.ClaimMedicalID = m.ID
		}
	}
	c.Items = append(c.Items, it)
	c.ModifyTime = time.Now()
	return nil
}

// ValidateInvoices validates every invoice of every item. Invoice numbers are
// deduplicated across the whole claim.
func (c *EnterpriseClaim) ValidateInvoices() ValidationReport {
	seen := InvoiceNumbers{}
	var report ValidationReport
	for _, it := range c.Items {
		report.Merge(it.ValidateInvoices(seen))
	}
	return report
}

// Item looks up an item by ID
func (c *EnterpriseClaim) Item(id types.ID) (*EnterpriseClaimItem, bool) {
	for _, it := range c.Items {
		if it.ID == id {
			return it, true
		}
	}
	return nil, false
}

func (c *EnterpriseClaim) Delete(op Operator) error {
	if c.IsDeleted() || !c.AllowClientOperation() {
		return errors.PreconditionViolation("delete", c.Status.String())
	}
	now := time.Now()
	c.DeleteTime = &now
	c.ModifyTime = now
	c.addEvent(EventEnterpriseClaimDeleted, c.Status.String(), op, "Claim deleted", now)
	return nil
}

// GetDomainEvents returns and clears pending domain events
func (c *EnterpriseClaim) GetDomainEvents() []Event {
	events := c.domainEvents
	c.domainEvents = nil
	return events
}

func (c *EnterpriseClaim) addEvent(eventType, fromStatus string, op Operator, detail string, at time.Time) {
	event := newClaimEvent(c.ID, FlowEnterprise, c.Status.String(), c.StatusGroup, op, detail, at)

	c.Events = append(c.Events, event)

	c.domainEvents = append(c.domainEvents, Event{
		Type:       eventType,
		ClaimID:    c.ID,
		FromStatus: fromStatus,
		ClaimEvent: event,
	})
}

func (c *EnterpriseClaim) Clone() *EnterpriseClaim {
	if c == nil {
		return nil
	}
	out := *c
	out.DeleteTime = cloneTime(c.DeleteTime)
	out.Events = append([]ClaimEvent(nil), c.Events...)
	out.domainEvents = nil
	out.Items = nil
	if c.Items != nil {
		out.Items = make([]*EnterpriseClaimItem, len(c.Items))
		for i, it := range c.Items {
			out.Items[i] = it.Clone()
		}
	}
	return &out
}
