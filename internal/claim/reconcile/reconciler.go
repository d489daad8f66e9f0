package reconcile

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/claimflow/claims/internal/claim/domain"
	"github.com/claimflow/claims/internal/shared/errors"
	"github.com/claimflow/claims/internal/shared/metrics"
	"github.com/claimflow/claims/internal/shared/types"
)

// Result describes one reconciliation
type Result struct {
	Key              domain.HistoryKey
	Remaining        decimal.Decimal
	Applied          decimal.Decimal
	AlreadySatisfied bool
}

// Reconciler carries a product deductible across the enterprise claim items
// of one insured person, so that the total subtracted in a period never
// exceeds the configured deductible.
type Reconciler struct {
	store  HistoryStore
	logger zerolog.Logger
}

func NewReconciler(store HistoryStore, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		logger: logger.With().Str("component", "reconciler").Logger(),
	}
}

// Release gives back the deductible recorded for a claim that will never be
// settled, so later claims of the same insured person are charged it again.
// Releasing twice is harmless.
func (r *Reconciler) Release(ctx context.Context, claimID types.ID) (decimal.Decimal, error) {
	released, err := r.store.Release(ctx, claimID)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to release deductible")
	}

	releasedF, _ := released.Float64()
	metrics.RecordDeductibleReleased(releasedF)
	if released.IsPositive() {
		r.logger.Info().
			Str("claim_id", claimID.String()).
			Str("released", released.String()).
			Msg("deductible released")
	}
	return released, nil
}

// Reconcile applies the open part of the deductible to item. The item's
// claim base must already be rolled up. Running it again for the same item
// replaces the item's earlier ledger entry instead of adding to it. On error
// the item is left as it was.
func (r *Reconciler) Reconcile(ctx context.Context, claim *domain.EnterpriseClaim, item *domain.EnterpriseClaimItem, rules domain.ProductRules) (Result, error) {
	if claim.IsDeleted() || !claim.Status.AllowReconcile() {
		return Result{}, errors.PreconditionViolation("reconcile", claim.Status.String())
	}
	if _, ok := claim.Item(item.ID); !ok {
		return Result{}, errors.NotFound("claim item", item.ID.String())
	}

	key := claim.HistoryKeyFor(item, rules)
	amount, flag, modified := item.Amount, item.DeductDeductible, item.ModifyTime

	var result Result
	start := time.Now()
	err := r.store.WithKey(ctx, key, func(ctx context.Context, tx HistoryTx) error {
		history, err := tx.History(ctx)
		if err != nil {
			return err
		}
		used, err := tx.AppliedExcept(ctx, item.ID)
		if err != nil {
			return err
		}

		remaining := history.RemainingDeductible(rules, used)
		applied := item.ApplyDeductible(remaining, rules)

		result = Result{
			Key:              key,
			Remaining:        remaining,
			Applied:          applied,
			AlreadySatisfied: item.DeductDeductible,
		}

		return tx.Record(ctx, LedgerEntry{ItemID: item.ID, ClaimID: claim.ID, Applied: applied})
	})
	if err != nil {
		item.Amount, item.DeductDeductible, item.ModifyTime = amount, flag, modified
		metrics.RecordReconciliation("error", 0, time.Since(start))
		return Result{}, errors.Wrap(err, "failed to reconcile deductible")
	}

	outcome := "applied"
	if result.AlreadySatisfied {
		outcome = "satisfied"
	}
	appliedF, _ := result.Applied.Float64()
	metrics.RecordReconciliation(outcome, appliedF, time.Since(start))

	r.logger.Debug().
		Str("claim_id", claim.ID.String()).
		Str("item_id", item.ID.String()).
		Str("period", key.Period).
		Str("category", string(key.MedicalCategory)).
		Str("remaining", result.Remaining.String()).
		Str("applied", result.Applied.String()).
		Bool("deduct_deductible", item.DeductDeductible).
		Msg("deductible reconciled")

	return result, nil
}
