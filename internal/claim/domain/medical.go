package domain

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/claimflow/claims/internal/shared/types"
)

// HospitalLevel is the national hospital grade. Higher is a better equipped
// hospital; zero means the grade is not known.
type HospitalLevel int

const (
	HospitalLevelUnknown HospitalLevel = iota
	HospitalLevelPrimary
	HospitalLevelSecondary
	HospitalLevelTertiary
)

// MedicalCategory separates settlement buckets such as outpatient and inpatient
type MedicalCategory string

const (
	MedicalCategoryOutpatient MedicalCategory = "OUTPATIENT"
	MedicalCategoryInpatient  MedicalCategory = "INPATIENT"
	MedicalCategoryPharmacy   MedicalCategory = "PHARMACY"
)

// MedicalVisit holds the fields every visit record shares
type MedicalVisit struct {
	ID            types.ID        `json:"id"`
	ClaimID       types.ID        `json:"claim_id"`
	VisitStart    *time.Time      `json:"visit_start,omitempty"`
	VisitEnd      *time.Time      `json:"visit_end,omitempty"`
	HospitalID    types.ID        `json:"hospital_id,omitempty"`
	HospitalName  string          `json:"hospital_name"`
	HospitalLevel HospitalLevel   `json:"hospital_level"`
	Department    string          `json:"department,omitempty"`
	Amount        decimal.Decimal `json:"amount"`
	HasInvoice    bool            `json:"has_invoice"`
	AttachmentID  types.ID        `json:"attachment_id,omitempty"`
	CreateTime    time.Time       `json:"create_time"`
}

func (v MedicalVisit) clone() MedicalVisit {
	v.VisitStart = cloneTime(v.VisitStart)
	v.VisitEnd = cloneTime(v.VisitEnd)
	return v
}

// ClaimMedical is one visit of a personal claim
type ClaimMedical struct {
	MedicalVisit
	InvoiceList []*ClaimInvoice `json:"invoice_list"`
}

// EnterpriseClaimMedical is one visit of an enterprise claim
type EnterpriseClaimMedical struct {
	MedicalVisit
	DiseaseCode     string                    `json:"disease_code"`
	DiseaseName     string                    `json:"disease_name,omitempty"`
	InsuredType     string                    `json:"insured_type,omitempty"`
	MedicalCategory MedicalCategory           `json:"medical_category"`
	InvoiceList     []*EnterpriseClaimInvoice `json:"invoice_list"`
}

// ValidationReport counts invoice outcomes of one validation pass
type ValidationReport struct {
	Verified      int
	Inaccurate    int
	IgnoredRepeat int
	IgnoredLT     int
	IgnoredGT     int
	Pending       int
}

func (r *ValidationReport) add(s InvoiceStatus) {
	switch s {
	case InvoiceVerified:
		r.Verified++
	case InvoiceInaccurate:
		r.Inaccurate++
	case InvoiceIgnoredRepeat:
		r.IgnoredRepeat++
	case InvoiceIgnoredLT:
		r.IgnoredLT++
	case InvoiceIgnoredGT:
		r.IgnoredGT++
	default:
		r.Pending++
	}
}

// Merge adds the counts of other into r
func (r *ValidationReport) Merge(other ValidationReport) {
	r.Verified += other.Verified
	r.Inaccurate += other.Inaccurate
	r.IgnoredRepeat += other.IgnoredRepeat
	r.IgnoredLT += other.IgnoredLT
	r.IgnoredGT += other.IgnoredGT
	r.Pending += other.Pending
}

// Counts maps each outcome to its count, for metrics
func (r ValidationReport) Counts() map[InvoiceStatus]int {
	return map[InvoiceStatus]int{
		InvoiceVerified:      r.Verified,
		InvoiceInaccurate:    r.Inaccurate,
		InvoiceIgnoredRepeat: r.IgnoredRepeat,
		InvoiceIgnoredLT:     r.IgnoredLT,
		InvoiceIgnoredGT:     r.IgnoredGT,
		InvoiceNotVerified:   r.Pending,
	}
}

// InvoiceNumbers tracks invoice numbers already claimed within one claim
type InvoiceNumbers map[string]struct{}

func (n InvoiceNumbers) has(number string) bool {
	if number == "" {
		return false
	}
	_, ok := n[number]
	return ok
}

func (n InvoiceNumbers) add(number string) {
	if number != "" {
		n[number] = struct{}{}
	}
}

type validatable interface {
	invoice() *ClaimInvoice
	Validate() InvoiceStatus
}

// validateInvoices validates a visit's invoices in order. A number seen
// earlier in the claim is IGNORED_REPEAT; a verified invoice that pushes the
// running total past the visit amount is IGNORED_GT.
func validateInvoices[T validatable](visitAmount decimal.Decimal, invoices []T, seen InvoiceNumbers) ValidationReport {
	var report ValidationReport
	running := decimal.Zero

	for _, v := range invoices {
		inv := v.invoice()

		if inv.Status.IsTerminal() {
			if !inv.Status.IsIgnored() {
				running = running.Add(inv.Amount)
				seen.add(inv.Number)
			}
			report.add(inv.Status)
			continue
		}

		if seen.has(inv.Number) {
			inv.Status = InvoiceIgnoredRepeat
			inv.InaccurateReason = fmt.Sprintf("invoice %s is already part of this claim", inv.Number)
			report.add(inv.Status)
			continue
		}

		status := v.Validate()
		if status == InvoiceVerified && visitAmount.IsPositive() && running.Add(inv.Amount).GreaterThan(visitAmount) {
			inv.Status = InvoiceIgnoredGT
			inv.InaccurateReason = fmt.Sprintf("invoices exceed visit amount %s", visitAmount.StringFixed(2))
		}
		if !inv.Status.IsIgnored() {
			running = running.Add(inv.Amount)
			seen.add(inv.Number)
		}
		report.add(inv.Status)
	}
	return report
}

// ValidateInvoices validates this visit's invoices. Pass the claim-wide
// number set to catch duplicates across visits, or nil to check this visit only.
func (m *ClaimMedical) ValidateInvoices(seen InvoiceNumbers) ValidationReport {
	if seen == nil {
		seen = InvoiceNumbers{}
	}
	return validateInvoices(m.Amount, m.InvoiceList, seen)
}

func (m *EnterpriseClaimMedical) ValidateInvoices(seen InvoiceNumbers) ValidationReport {
	if seen == nil {
		seen = InvoiceNumbers{}
	}
	return validateInvoices(m.Amount, m.InvoiceList, seen)
}

// Clone returns a deep copy
func (m *ClaimMedical) Clone() *ClaimMedical {
	if m == nil {
		return nil
	}
	out := &ClaimMedical{MedicalVisit: m.MedicalVisit.clone()}
	if m.InvoiceList != nil {
		out.InvoiceList = make([]*ClaimInvoice, len(m.InvoiceList))
		for i, inv := range m.InvoiceList {
			out.InvoiceList[i] = inv.Clone()
		}
	}
	return out
}

func (m *EnterpriseClaimMedical) Clone() *EnterpriseClaimMedical {
	if m == nil {
		return nil
	}
	out := *m
	out.MedicalVisit = m.MedicalVisit.clone()
	out.InvoiceList = nil
	if m.InvoiceList != nil {
		out.InvoiceList = make([]*EnterpriseClaimInvoice, len(m.InvoiceList))
		for i, inv := range m.InvoiceList {
			out.InvoiceList[i] = inv.Clone()
		}
	}
	return &out
}
