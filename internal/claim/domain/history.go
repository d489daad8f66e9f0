package domain

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/claimflow/claims/internal/shared/types"
)

// HistoryKey identifies one insured person's deductible within a product,
// medical category and settlement period.
type HistoryKey struct {
	ProductID        types.ID               `json:"product_id"`
	InsuredName      string                 `json:"insured_name"`
	CredentialNumber types.CredentialNumber `json:"credential_number"`
	MedicalCategory  MedicalCategory        `json:"medical_category"`
	Period           string                 `json:"period"`
}

// String is the canonical form used for locking and hashing
func (k HistoryKey) String() string {
	return strings.Join([]string{
		k.ProductID.String(),
		k.InsuredName,
		k.CredentialNumber.String(),
		string(k.MedicalCategory),
		k.Period,
	}, "|")
}

// HistoryClaimAmount is what prior settled claims contributed for one key.
// Reconciliation reads it and never writes it back.
type HistoryClaimAmount struct {
	Key               HistoryKey      `json:"key"`
	ClaimBase         decimal.Decimal `json:"claim_base"`
	Deductible        decimal.Decimal `json:"deductible"`
	OverallFundAmount decimal.Decimal `json:"overall_fund_amount"`
}

// RemainingDeductible is the part of the product deductible not yet covered by
// prior claims and by the amounts already applied in this period.
func (h HistoryClaimAmount) RemainingDeductible(rules ProductRules, applied decimal.Decimal) decimal.Decimal {
	return types.NonNegative(rules.Deductible.Sub(h.Deductible).Sub(applied))
}

// HistoryKeyFor builds the deductible key of an item. Items without a visit
// date fall in the period the claim was created in.
func (c *EnterpriseClaim) HistoryKeyFor(it *EnterpriseClaimItem, rules ProductRules) HistoryKey {
	at, ok := it.VisitDate()
	if !ok {
		at = c.CreateTime
	}
	return HistoryKey{
		ProductID:        c.ProductID,
		InsuredName:      c.Insured.Name,
		CredentialNumber: c.Insured.CredentialNumber,
		MedicalCategory:  it.MedicalCategory,
		Period:           rules.PeriodOf(at),
	}
}
