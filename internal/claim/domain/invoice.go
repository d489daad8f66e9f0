package domain

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/claimflow/claims/internal/shared/errors"
	"github.com/claimflow/claims/internal/shared/types"
)

// InvoiceStatus is the outcome of validating one invoice
type InvoiceStatus string

const (
	InvoiceNotVerified   InvoiceStatus = "NOT_VERIFIED"
	InvoiceVerified      InvoiceStatus = "VERIFIED"
	InvoiceInaccurate    InvoiceStatus = "INACCURATE"
	InvoiceIgnoredRepeat InvoiceStatus = "IGNORED_REPEAT"
	InvoiceIgnoredLT     InvoiceStatus = "IGNORED_LT"
	InvoiceIgnoredGT     InvoiceStatus = "IGNORED_GT"
)

// IsTerminal reports whether the invoice is frozen. INACCURATE invoices can
// still be corrected and validated again.
func (s InvoiceStatus) IsTerminal() bool {
	switch s {
	case InvoiceVerified, InvoiceIgnoredRepeat, InvoiceIgnoredLT, InvoiceIgnoredGT:
		return true
	}
	return false
}

// IsIgnored reports whether the invoice is excluded from every rollup
func (s InvoiceStatus) IsIgnored() bool {
	switch s {
	case InvoiceIgnoredRepeat, InvoiceIgnoredLT, InvoiceIgnoredGT:
		return true
	}
	return false
}

func (s InvoiceStatus) Value() (driver.Value, error) {
	if s == "" {
		return string(InvoiceNotVerified), nil
	}
	return string(s), nil
}

// ClaimInvoiceCost is one line item printed on an invoice. Line items are
// informational and need not add up to the invoice amount.
type ClaimInvoiceCost struct {
	ClaimInvoiceID    types.ID        `json:"claim_invoice_id"`
	MedicalChargeName string          `json:"medical_charge_name"`
	Amount            decimal.Decimal `json:"amount"`
}

// ClaimInvoice is one invoice issued for a medical visit
type ClaimInvoice struct {
	ID             types.ID   `json:"id"`
	ClaimID        types.ID   `json:"claim_id"`
	ClaimMedicalID types.ID   `json:"claim_medical_id"`
	Number         string     `json:"number"`
	AttachmentID   types.ID   `json:"attachment_id,omitempty"`
	InvoiceDate    *time.Time `json:"invoice_date,omitempty"`

	Amount                      decimal.Decimal `json:"amount"`
	FundPaidAmount              decimal.Decimal `json:"fund_paid_amount"`
	SelfPaidAmount              decimal.Decimal `json:"self_paid_amount"`
	SelfCareAmount              decimal.Decimal `json:"self_care_amount"`
	MedicareAmount              decimal.Decimal `json:"medicare_amount"`
	SeriousIllnessPaid          decimal.Decimal `json:"serious_illness_paid"`
	SeriousIllnessInsurancePaid decimal.Decimal `json:"serious_illness_insurance_paid"`
	CivilAffairSubsidyPaid      decimal.Decimal `json:"civil_affair_subsidy_paid"`

	Status           InvoiceStatus      `json:"status"`
	InaccurateReason string             `json:"inaccurate_reason,omitempty"`
	Costs            []ClaimInvoiceCost `json:"costs,omitempty"`

	CreateTime time.Time `json:"create_time"`
}

// PaidSum is the total of the paid buckets compared against the gross amount.
// MedicareAmount is the insurer-side covered amount, not a payer bucket.
func (i *ClaimInvoice) PaidSum() decimal.Decimal {
	return types.Sum(
		i.FundPaidAmount,
		i.SelfCareAmount,
		i.SelfPaidAmount,
		i.SeriousIllnessPaid,
		i.SeriousIllnessInsurancePaid,
		i.CivilAffairSubsidyPaid,
	)
}

// CheckAmount reports whether the gross amount covers every paid bucket.
// It does not modify the invoice.
func (i *ClaimInvoice) CheckAmount() bool {
	return i.Amount.GreaterThanOrEqual(i.PaidSum())
}

// CostTotal sums the line items
func (i *ClaimInvoice) CostTotal() decimal.Decimal {
	total := decimal.Zero
	for _, c := range i.Costs {
		total = total.Add(c.Amount)
	}
	return total
}

// Validate runs the amount check and records the outcome on the invoice.
// Frozen invoices keep their status.
func (i *ClaimInvoice) Validate() InvoiceStatus {
	if i.Status.IsTerminal() {
		return i.Status
	}
	if !i.CheckAmount() {
		i.Status = InvoiceIgnoredLT
		i.InaccurateReason = fmt.Sprintf("amount %s is less than paid sum %s", i.Amount.StringFixed(2), i.PaidSum().StringFixed(2))
		return i.Status
	}
	i.Status = InvoiceVerified
	i.InaccurateReason = ""
	return i.Status
}

// AmountError surfaces a failed amount check as an error
func (i *ClaimInvoice) AmountError() error {
	if i.CheckAmount() {
		return nil
	}
	return errors.AmountInconsistency("invoice", i.ID.String(),
		fmt.Sprintf("amount %s < paid sum %s", i.Amount.StringFixed(2), i.PaidSum().StringFixed(2)))
}

func (i *ClaimInvoice) invoice() *ClaimInvoice {
	return i
}

// Clone returns a deep copy
func (i *ClaimInvoice) Clone() *ClaimInvoice {
	if i == nil {
		return nil
	}
	out := *i
	out.InvoiceDate = cloneTime(i.InvoiceDate)
	out.Costs = append([]ClaimInvoiceCost(nil), i.Costs...)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
