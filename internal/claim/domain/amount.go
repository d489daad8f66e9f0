package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/claimflow/claims/internal/shared/types"
)

// ClaimAmount is the money rollup of a personal claim. Enterprise items embed
// it for their own rollup.
type ClaimAmount struct {
	TotalAmount              decimal.Decimal `json:"total_amount"`
	ClaimBase                decimal.Decimal `json:"claim_base"`
	Deductible               decimal.Decimal `json:"deductible"`
	OverallFundAmount        decimal.Decimal `json:"overall_fund_amount"`
	SelfPaidAmount           decimal.Decimal `json:"self_paid_amount"`
	SelfCareAmount           decimal.Decimal `json:"self_care_amount"`
	SeriousIllnessAmount     decimal.Decimal `json:"serious_illness_amount"`
	CivilAffairSubsidyAmount decimal.Decimal `json:"civil_affair_subsidy_amount"`
	ActualPaidAmount         decimal.Decimal `json:"actual_paid_amount"`
	ClaimAmount              decimal.Decimal `json:"claim_amount"`
	ActualClaimAmount        decimal.Decimal `json:"actual_claim_amount"`
	PayTime                  *time.Time      `json:"pay_time,omitempty"`
	EndcaseDate              *time.Time      `json:"endcase_date,omitempty"`
}

// resetRollup zeroes the invoice sums. Settlement fields are kept.
func (a *ClaimAmount) resetRollup() {
	a.TotalAmount = decimal.Zero
	a.OverallFundAmount = decimal.Zero
	a.SelfPaidAmount = decimal.Zero
	a.SelfCareAmount = decimal.Zero
	a.SeriousIllnessAmount = decimal.Zero
	a.CivilAffairSubsidyAmount = decimal.Zero
}

func (a *ClaimAmount) addInvoice(inv *ClaimInvoice) {
	a.TotalAmount = a.TotalAmount.Add(inv.Amount)
	a.OverallFundAmount = a.OverallFundAmount.Add(inv.FundPaidAmount)
	a.SelfPaidAmount = a.SelfPaidAmount.Add(inv.SelfPaidAmount)
	a.SelfCareAmount = a.SelfCareAmount.Add(inv.SelfCareAmount)
	a.SeriousIllnessAmount = a.SeriousIllnessAmount.Add(inv.SeriousIllnessPaid).Add(inv.SeriousIllnessInsurancePaid)
	a.CivilAffairSubsidyAmount = a.CivilAffairSubsidyAmount.Add(inv.CivilAffairSubsidyPaid)
}

// claimBase is what third parties did not pay, minus any further exclusions
func (a *ClaimAmount) claimBase(excluded ...decimal.Decimal) decimal.Decimal {
	base := a.TotalAmount.
		Sub(a.OverallFundAmount).
		Sub(a.SeriousIllnessAmount).
		Sub(a.CivilAffairSubsidyAmount).
		Sub(types.Sum(excluded...))
	return types.NonNegative(base)
}

func (a ClaimAmount) clone() ClaimAmount {
	a.PayTime = cloneTime(a.PayTime)
	a.EndcaseDate = cloneTime(a.EndcaseDate)
	return a
}
