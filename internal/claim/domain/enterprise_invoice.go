package domain

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/claimflow/claims/internal/shared/errors"
	"github.com/claimflow/claims/internal/shared/types"
)

// EnterpriseClaimSelfCareItem is a partially reimbursed charge on an
// enterprise invoice. Ratio is the reimbursable share.
type EnterpriseClaimSelfCareItem struct {
	ClaimInvoiceID     types.ID        `json:"claim_invoice_id"`
	Name               string          `json:"name"`
	MedicareChargeCode string          `json:"medicare_charge_code"`
	Amount             decimal.Decimal `json:"amount"`
	Ratio              decimal.Decimal `json:"ratio"`
	Inaccurate         bool            `json:"inaccurate"`
}

var one = decimal.NewFromInt(1)

// RatioInRange reports whether Ratio lies in [0, 1]
func (s EnterpriseClaimSelfCareItem) RatioInRange() bool {
	return !s.Ratio.IsNegative() && s.Ratio.LessThanOrEqual(one)
}

// EnterpriseClaimInvoice carries the additional buckets reported for group policies
type EnterpriseClaimInvoice struct {
	ClaimInvoice

	NoReimbursementAmount decimal.Decimal               `json:"no_reimbursement_amount"`
	InvalidAmount         decimal.Decimal               `json:"invalid_amount"`
	ClassBSelfCareAmount  decimal.Decimal               `json:"class_b_self_care_amount"`
	SelfAmount            decimal.Decimal               `json:"self_amount"`
	SelfCareItems         []EnterpriseClaimSelfCareItem `json:"self_care_items,omitempty"`
}

// PaidSum uses the enterprise bucket set. SelfPaidAmount is the total of the
// self buckets on these invoices and is left out to avoid counting twice.
func (i *EnterpriseClaimInvoice) PaidSum() decimal.Decimal {
	return types.Sum(
		i.FundPaidAmount,
		i.SelfCareAmount,
		i.ClassBSelfCareAmount,
		i.SelfAmount,
		i.NoReimbursementAmount,
		i.InvalidAmount,
		i.SeriousIllnessPaid,
		i.SeriousIllnessInsurancePaid,
		i.CivilAffairSubsidyPaid,
	)
}

func (i *EnterpriseClaimInvoice) CheckAmount() bool {
	return i.Amount.GreaterThanOrEqual(i.PaidSum())
}

// CheckSelfCareItems reports whether every self-care ratio lies in [0, 1].
// An empty list passes.
func (i *EnterpriseClaimInvoice) CheckSelfCareItems() bool {
	for _, item := range i.SelfCareItems {
		if !item.RatioInRange() {
			return false
		}
	}
	return true
}

// Validate checks amounts first, then self-care ratios, flagging the
// offending items. Frozen invoices keep their status.
func (i *EnterpriseClaimInvoice) Validate() InvoiceStatus {
	if i.Status.IsTerminal() {
		return i.Status
	}
	if !i.CheckAmount() {
		i.Status = InvoiceIgnoredLT
		i.InaccurateReason = fmt.Sprintf("amount %s is less than paid sum %s", i.Amount.StringFixed(2), i.PaidSum().StringFixed(2))
		return i.Status
	}

	var bad []string
	for k := range i.SelfCareItems {
		item := &i.SelfCareItems[k]
		item.Inaccurate = !item.RatioInRange()
		if item.Inaccurate {
			bad = append(bad, fmt.Sprintf("%s(%s)", item.Name, item.Ratio.String()))
		}
	}
	if len(bad) > 0 {
		i.Status = InvoiceInaccurate
		i.InaccurateReason = "self-care ratio out of range: " + strings.Join(bad, ", ")
		return i.Status
	}

	i.Status = InvoiceVerified
	i.InaccurateReason = ""
	return i.Status
}

func (i *EnterpriseClaimInvoice) AmountError() error {
	if i.CheckAmount() {
		return nil
	}
	return errors.AmountInconsistency("enterprise invoice", i.ID.String(),
		fmt.Sprintf("amount %s < paid sum %s", i.Amount.StringFixed(2), i.PaidSum().StringFixed(2)))
}

func (i *EnterpriseClaimInvoice) Clone() *EnterpriseClaimInvoice {
	if i == nil {
		return nil
	}
	out := *i
	out.ClaimInvoice = *i.ClaimInvoice.Clone()
	out.SelfCareItems = append([]EnterpriseClaimSelfCareItem(nil), i.SelfCareItems...)
	return &out
}
