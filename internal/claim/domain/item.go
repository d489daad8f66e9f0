package domain

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/claimflow/claims/internal/shared/types"
)

// OtherHospital is the item hospital name when visits span several hospitals
const OtherHospital = "其他"

// EnterpriseClaimItem groups visits of an enterprise claim that are settled together
type EnterpriseClaimItem struct {
	ID              types.ID                  `json:"id"`
	ClaimID         types.ID                  `json:"claim_id"`
	MedicalCategory MedicalCategory           `json:"medical_category"`
	Medicals        []*EnterpriseClaimMedical `json:"medicals"`

	HospitalName  string        `json:"hospital_name"`
	HospitalLevel HospitalLevel `json:"hospital_level"`
	DiseaseCode   string        `json:"disease_code"`

	Amount                ClaimAmount     `json:"amount"`
	NoReimbursementAmount decimal.Decimal `json:"no_reimbursement_amount"`
	InvalidAmount         decimal.Decimal `json:"invalid_amount"`
	ClassBSelfCareAmount  decimal.Decimal `json:"class_b_self_care_amount"`

	// DeductDeductible is set once the period deductible was already met
	// before this item, so nothing is subtracted from its claim base.
	DeductDeductible bool `json:"deduct_deductible"`

	CreateTime time.Time `json:"create_time"`
	ModifyTime time.Time `json:"modify_time"`
}

// NewEnterpriseClaimItem creates an empty item for one medical category
func NewEnterpriseClaimItem(category MedicalCategory, medicals ...*EnterpriseClaimMedical) *EnterpriseClaimItem {
	now := time.Now()
	return &EnterpriseClaimItem{
		ID:              types.NewID(),
		MedicalCategory: category,
		Medicals:        medicals,
		CreateTime:      now,
		ModifyTime:      now,
	}
}

// InitHospitalAndDisease derives the item hospital and disease from its
// visits. One distinct hospital name is adopted as is; several collapse to
// OtherHospital with the highest level, the first visit winning ties. The
// disease code always comes from the first visit. No visits is a no-op.
func (it *EnterpriseClaimItem) InitHospitalAndDisease() {
	var first, top *EnterpriseClaimMedical
	names := make(map[string]struct{})
	for _, m := range it.Medicals {
		if m == nil {
			continue
		}
		if first == nil {
			first = m
		}
		names[m.HospitalName] = struct{}{}
		if top == nil || m.HospitalLevel > top.HospitalLevel {
			top = m
		}
	}
	if first == nil {
		return
	}

	if len(names) == 1 {
		it.HospitalName = first.HospitalName
	} else {
		it.HospitalName = OtherHospital
	}
	it.HospitalLevel = top.HospitalLevel
	it.DiseaseCode = first.DiseaseCode
}

// VisitDate is the earliest visit start, used to pick the settlement period
func (it *EnterpriseClaimItem) VisitDate() (time.Time, bool) {
	var earliest time.Time
	found := false
	for _, m := range it.Medicals {
		if m == nil || m.VisitStart == nil {
			continue
		}
		if !found || m.VisitStart.Before(earliest) {
			earliest = *m.VisitStart
			found = true
		}
	}
	return earliest, found
}

// ValidateInvoices validates the invoices of every visit in the item
func (it *EnterpriseClaimItem) ValidateInvoices(seen InvoiceNumbers) ValidationReport {
	if seen == nil {
		seen = InvoiceNumbers{}
	}
	var report ValidationReport
	for _, m := range it.Medicals {
		if m != nil {
			report.Merge(m.ValidateInvoices(seen))
		}
	}
	return report
}

// RollupAmount sums the verified invoices. Non-reimbursable and invalid
// amounts are excluded from the claim base.
func (it *EnterpriseClaimItem) RollupAmount() {
	it.Amount.resetRollup()
	it.NoReimbursementAmount = decimal.Zero
	it.InvalidAmount = decimal.Zero
	it.ClassBSelfCareAmount = decimal.Zero

	for _, m := range it.Medicals {
		if m == nil {
			continue
		}
		for _, inv := range m.InvoiceList {
			if inv.Status != InvoiceVerified {
				continue
			}
			it.Amount.addInvoice(&inv.ClaimInvoice)
			it.NoReimbursementAmount = it.NoReimbursementAmount.Add(inv.NoReimbursementAmount)
			it.InvalidAmount = it.InvalidAmount.Add(inv.InvalidAmount)
			it.ClassBSelfCareAmount = it.ClassBSelfCareAmount.Add(inv.ClassBSelfCareAmount)
		}
	}
	it.Amount.ClaimBase = it.Amount.claimBase(it.NoReimbursementAmount, it.InvalidAmount)
}

// ApplyDeductible computes the payable amounts given the deductible still
// open in the period (remaining), and returns how much of it this item used.
// Once DeductDeductible is set nothing is subtracted again.
func (it *EnterpriseClaimItem) ApplyDeductible(remaining decimal.Decimal, rules ProductRules) decimal.Decimal {
	remaining = types.NonNegative(remaining)

	applied := decimal.Zero
	if it.DeductDeductible || remaining.IsZero() {
		it.DeductDeductible = true
	} else {
		applied = types.MinDecimal(remaining, it.Amount.ClaimBase)
	}

	it.Amount.Deductible = applied
	it.Amount.ClaimAmount, it.Amount.ActualClaimAmount = rules.Payable(it.Amount.ClaimBase, applied)
	it.ModifyTime = time.Now()
	return applied
}

// Clone returns a deep copy
func (it *EnterpriseClaimItem) Clone() *EnterpriseClaimItem {
	if it == nil {
		return nil
	}
	out := *it
	out.Amount = it.Amount.clone()
	out.Medicals = nil
	if it.Medicals != nil {
		out.Medicals = make([]*EnterpriseClaimMedical, len(it.Medicals))
		for i, m := range it.Medicals {
			out.Medicals[i] = m.Clone()
		}
	}
	return &out
}
