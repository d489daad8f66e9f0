package domain

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/claimflow/claims/internal/shared/errors"
	"github.com/claimflow/claims/internal/shared/types"
)

// ProductRule is one key/value pair supplied by the product rule engine
type ProductRule struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Rule keys understood by the reconciliation logic. Other keys are ignored.
const (
	RuleDeductible       = "deductible"
	RulePayRatio         = "pay_ratio"
	RuleClaimLimit       = "claim_limit"
	RuleSettlementPeriod = "settlement_period"
)

// SettlementPeriod decides how long one deductible lasts
type SettlementPeriod string

const (
	PeriodYear   SettlementPeriod = "year"
	PeriodPolicy SettlementPeriod = "policy"
)

// ProductRules are the parsed constants of one insurance product
type ProductRules struct {
	Deductible decimal.Decimal
	PayRatio   decimal.Decimal
	// ClaimLimit caps the payable amount per claim or item; zero means no cap
	ClaimLimit       decimal.Decimal
	SettlementPeriod SettlementPeriod
}

// DefaultProductRules pays everything with no deductible
func DefaultProductRules() ProductRules {
	return ProductRules{
		Deductible:       decimal.Zero,
		PayRatio:         one,
		ClaimLimit:       decimal.Zero,
		SettlementPeriod: PeriodYear,
	}
}

// ParseProductRules builds ProductRules from raw key/value pairs
func ParseProductRules(raw []ProductRule) (ProductRules, error) {
	rules := DefaultProductRules()
	details := map[string]string{}

	for _, r := range raw {
		switch r.Key {
		case RuleDeductible, RulePayRatio, RuleClaimLimit:
			d, err := decimal.NewFromString(r.Value)
			if err != nil {
				details[r.Key] = fmt.Sprintf("not a decimal: %q", r.Value)
				continue
			}
			if d.IsNegative() {
				details[r.Key] = "must not be negative"
				continue
			}
			switch r.Key {
			case RuleDeductible:
				rules.Deductible = d
			case RuleClaimLimit:
				rules.ClaimLimit = d
			case RulePayRatio:
				if d.GreaterThan(one) {
					details[r.Key] = "must be between 0 and 1"
					continue
				}
				rules.PayRatio = d
			}
		case RuleSettlementPeriod:
			switch p := SettlementPeriod(r.Value); p {
			case PeriodYear, PeriodPolicy:
				rules.SettlementPeriod = p
			default:
				details[r.Key] = fmt.Sprintf("unknown period %q", r.Value)
			}
		}
	}

	if len(details) > 0 {
		return ProductRules{}, errors.Validation("invalid product rules", details)
	}
	return rules, nil
}

// PeriodOf names the settlement period a visit date falls in
func (r ProductRules) PeriodOf(t time.Time) string {
	if r.SettlementPeriod == PeriodPolicy {
		return string(PeriodPolicy)
	}
	return strconv.Itoa(t.Year())
}

// Payable applies the pay ratio to what is left after the deductible and
// caps the result at ClaimLimit.
func (r ProductRules) Payable(claimBase, deductible decimal.Decimal) (claimAmount, actualClaimAmount decimal.Decimal) {
	claimAmount = types.Round2(types.NonNegative(claimBase.Sub(deductible)).Mul(r.PayRatio))
	actualClaimAmount = claimAmount
	if r.ClaimLimit.IsPositive() {
		actualClaimAmount = types.MinDecimal(claimAmount, r.ClaimLimit)
	}
	return claimAmount, actualClaimAmount
}
