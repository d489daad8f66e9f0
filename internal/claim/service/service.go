// Package service drives claim aggregates on behalf of callers: it applies
// operations, publishes the resulting events and wires the deductible
// reconciler to the hospital directory.
package service

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/claimflow/claims/internal/claim/domain"
	"github.com/claimflow/claims/internal/claim/reconcile"
	"github.com/claimflow/claims/internal/shared/config"
	"github.com/claimflow/claims/internal/shared/errors"
	"github.com/claimflow/claims/internal/shared/events"
	"github.com/claimflow/claims/internal/shared/metrics"
)

const eventSource = "claims"

// aggregate is satisfied by both claim variants
type aggregate interface {
	GetDomainEvents() []domain.Event
}

type Service struct {
	bus        events.EventBus
	hospitals  domain.HospitalDirectory
	reconciler *reconcile.Reconciler
	cfg        config.ClaimsConfig
	logger     zerolog.Logger
}

// New creates a claim service. hospitals may be nil, in which case visit
// grades are taken as recorded.
func New(bus events.EventBus, hospitals domain.HospitalDirectory, reconciler *reconcile.Reconciler, cfg config.ClaimsConfig, logger zerolog.Logger) *Service {
	return &Service{
		bus:        bus,
		hospitals:  hospitals,
		reconciler: reconciler,
		cfg:        cfg,
		logger:     logger.With().Str("component", "claim_service").Logger(),
	}
}

// Transition applies operation to a personal claim and publishes the
// resulting event. A refused transition leaves the claim untouched.
func (s *Service) Transition(ctx context.Context, c *domain.InsuranceClaim, operation domain.Operation, op domain.Operator, detail string) error {
	if operation == domain.OpSubmit && s.cfg.EnforceRequiredFields {
		if err := c.CheckRequiredFields(); err != nil {
			return err
		}
	}

	from := c.Status
	if err := c.Apply(operation, op, detail); err != nil {
		s.rejected(domain.FlowPersonal, operation, from.String(), c.ID.String(), err)
		return err
	}

	metrics.RecordTransition(string(domain.FlowPersonal), string(operation), from.String(), c.Status.String())
	s.logger.Info().
		Str("claim_id", c.ID.String()).
		Str("operation", string(operation)).
		Str("from", from.String()).
		Str("to", c.Status.String()).
		Str("operator", string(op.Type)).
		Msg("claim transitioned")

	return s.Flush(ctx, c)
}

// TransitionEnterprise applies operation to an enterprise claim
func (s *Service) TransitionEnterprise(ctx context.Context, c *domain.EnterpriseClaim, operation domain.Operation, op domain.Operator, detail string) error {
	if operation == domain.OpSubmit && s.cfg.EnforceRequiredFields {
		if err := c.CheckRequiredFields(); err != nil {
			return err
		}
	}

	from := c.Status
	if err := c.Apply(operation, op, detail); err != nil {
		s.rejected(domain.FlowEnterprise, operation, from.String(), c.ID.String(), err)
		return err
	}

	metrics.RecordTransition(string(domain.FlowEnterprise), string(operation), from.String(), c.Status.String())
	s.logger.Info().
		Str("claim_id", c.ID.String()).
		Str("operation", string(operation)).
		Str("from", from.String()).
		Str("to", c.Status.String()).
		Str("operator", string(op.Type)).
		Msg("enterprise claim transitioned")

	err := s.Flush(ctx, c)
	if !c.Status.HoldsDeductible() {
		if _, relErr := s.ReleaseDeductible(ctx, c); relErr != nil && err == nil {
			err = relErr
		}
	}
	return err
}

// DeleteEnterprise soft deletes an enterprise claim and gives back the
// deductible its items had taken
func (s *Service) DeleteEnterprise(ctx context.Context, c *domain.EnterpriseClaim, op domain.Operator) error {
	if err := c.Delete(op); err != nil {
		s.rejected(domain.FlowEnterprise, domain.OpDelete, c.Status.String(), c.ID.String(), err)
		return err
	}
	s.logger.Info().
		Str("claim_id", c.ID.String()).
		Str("operator", string(op.Type)).
		Msg("enterprise claim deleted")

	err := s.Flush(ctx, c)
	if _, relErr := s.ReleaseDeductible(ctx, c); relErr != nil && err == nil {
		err = relErr
	}
	return err
}

// ReleaseDeductible drops the ledger entries of a canceled or deleted claim.
// Open claims keep theirs.
func (s *Service) ReleaseDeductible(ctx context.Context, c *domain.EnterpriseClaim) (decimal.Decimal, error) {
	if !c.IsDeleted() && c.Status.HoldsDeductible() {
		return decimal.Zero, errors.PreconditionViolation("release_deductible", c.Status.String())
	}
	return s.reconciler.Release(ctx, c.ID)
}

func (s *Service) rejected(flow domain.Flow, operation domain.Operation, status, claimID string, err error) {
	if !errors.Is(err, errors.ErrPreconditionViolation) {
		return
	}
	metrics.RecordTransitionRejected(string(flow), string(operation), status)
	s.logger.Warn().
		Err(err).
		Str("claim_id", claimID).
		Str("flow", string(flow)).
		Str("operation", string(operation)).
		Msg("transition refused")
}

// Flush publishes the pending domain events of a claim, for example the
// creation or deletion event. Every event is attempted; the first error is
// returned.
func (s *Service) Flush(ctx context.Context, a aggregate) error {
	var firstErr error
	for _, de := range a.GetDomainEvents() {
		if err := s.publish(ctx, de); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (s *Service) publish(ctx context.Context, de domain.Event) error {
	event, err := events.NewEvent(de.Type, eventSource, de)
	if err != nil {
		return errors.Wrap(err, "failed to build event")
	}
	event.ID = de.ClaimEvent.ID.String()
	event.AggregateID = de.ClaimID
	event = event.WithActor(de.ClaimEvent.Operator.ID, string(de.ClaimEvent.Operator.Type))

	if err := s.bus.Publish(ctx, event); err != nil {
		s.logger.Error().Err(err).
			Str("claim_id", de.ClaimID.String()).
			Str("event_type", de.Type).
			Msg("failed to publish claim event")
		return errors.Wrap(err, "failed to publish claim event")
	}
	return nil
}

// WatchReleases gives back the deductible of enterprise claims canceled or
// deleted elsewhere. A claim already released here finds an empty ledger.
func (s *Service) WatchReleases(ctx context.Context) error {
	if err := s.bus.Subscribe(ctx, "enterprise_claim.*", "deductible-release", s.handleRelease); err != nil {
		return errors.Wrap(err, "failed to subscribe to enterprise claim events")
	}
	s.logger.Info().Msg("watching enterprise claims for deductible release")
	return nil
}

func (s *Service) handleRelease(ctx context.Context, event events.Event) error {
	var de domain.Event
	if err := event.Decode(&de); err != nil {
		s.logger.Warn().Err(err).Str("event_id", event.ID).Msg("undecodable claim event skipped")
		return nil
	}

	closed := de.Type == domain.EventEnterpriseClaimDeleted ||
		(de.Type == domain.EventEnterpriseClaimStatusChange && de.ClaimEvent.Status == domain.EnterpriseStatusCanceled.String())
	if !closed || de.ClaimID.IsZero() {
		return nil
	}

	_, err := s.reconciler.Release(ctx, de.ClaimID)
	return err
}

// ValidateInvoices validates every invoice of a personal claim
func (s *Service) ValidateInvoices(ctx context.Context, c *domain.InsuranceClaim) domain.ValidationReport {
	report := c.ValidateInvoices()
	s.recordValidation(domain.FlowPersonal, c.ID.String(), report)
	return report
}

// ValidateEnterpriseInvoices validates every invoice of an enterprise claim
func (s *Service) ValidateEnterpriseInvoices(ctx context.Context, c *domain.EnterpriseClaim) domain.ValidationReport {
	report := c.ValidateInvoices()
	s.recordValidation(domain.FlowEnterprise, c.ID.String(), report)
	return report
}

func (s *Service) recordValidation(flow domain.Flow, claimID string, report domain.ValidationReport) {
	for status, n := range report.Counts() {
		metrics.RecordInvoiceValidation(string(flow), string(status), n)
	}
	s.logger.Debug().
		Str("claim_id", claimID).
		Str("flow", string(flow)).
		Int("verified", report.Verified).
		Int("inaccurate", report.Inaccurate).
		Int("ignored_repeat", report.IgnoredRepeat).
		Int("ignored_lt", report.IgnoredLT).
		Int("ignored_gt", report.IgnoredGT).
		Msg("invoices validated")
}

// SettlePersonal validates the invoices of a personal claim and computes
// its payable amount
func (s *Service) SettlePersonal(ctx context.Context, c *domain.InsuranceClaim, rules domain.ProductRules) error {
	if c.IsDeleted() || c.Status.IsTerminal() {
		return errors.PreconditionViolation("calculate_amount", c.Status.String())
	}
	s.ValidateInvoices(ctx, c)
	if err := c.CalculateAmount(rules); err != nil {
		return err
	}

	s.logger.Info().
		Str("claim_id", c.ID.String()).
		Str("claim_base", c.Amount.ClaimBase.String()).
		Str("deductible", c.Amount.Deductible.String()).
		Str("claim_amount", c.Amount.ClaimAmount.String()).
		Msg("claim amount calculated")
	return nil
}

// ReconcileItem prepares one enterprise item and carries the product
// deductible into it: unknown hospital grades are resolved, hospital and
// disease are derived from the visits, verified invoices are rolled up and
// the remaining deductible of the period is applied.
func (s *Service) ReconcileItem(ctx context.Context, c *domain.EnterpriseClaim, item *domain.EnterpriseClaimItem, rules domain.ProductRules) (reconcile.Result, error) {
	if c.IsDeleted() || !c.Status.AllowReconcile() {
		return reconcile.Result{}, errors.PreconditionViolation("reconcile", c.Status.String())
	}
	if _, ok := c.Item(item.ID); !ok {
		return reconcile.Result{}, errors.NotFound("claim item", item.ID.String())
	}

	// visits and rollup are rewritten below; restore all of it on failure
	snapshot := item.Clone()

	result, err := s.reconcileItem(ctx, c, item, rules)
	if err != nil {
		restoreItem(item, snapshot)
		return reconcile.Result{}, err
	}
	return result, nil
}

// restoreItem puts item back to snapshot while keeping the identity of its
// visits, which callers may hold
func restoreItem(item, snapshot *domain.EnterpriseClaimItem) {
	medicals := item.Medicals
	for i, m := range medicals {
		if m != nil && snapshot.Medicals[i] != nil {
			m.HospitalLevel = snapshot.Medicals[i].HospitalLevel
		}
	}
	*item = *snapshot
	item.Medicals = medicals
}

func (s *Service) reconcileItem(ctx context.Context, c *domain.EnterpriseClaim, item *domain.EnterpriseClaimItem, rules domain.ProductRules) (reconcile.Result, error) {
	if err := s.resolveHospitalLevels(ctx, item); err != nil {
		return reconcile.Result{}, err
	}

	item.InitHospitalAndDisease()
	item.RollupAmount()

	return s.reconciler.Reconcile(ctx, c, item, rules)
}

func (s *Service) resolveHospitalLevels(ctx context.Context, item *domain.EnterpriseClaimItem) error {
	if s.hospitals == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	for _, m := range item.Medicals {
		if m == nil || m.HospitalLevel != domain.HospitalLevelUnknown {
			continue
		}
		level, err := s.hospitals.Level(ctx, m.HospitalID, m.HospitalName)
		if errors.Is(err, errors.ErrNotFound) {
			s.logger.Debug().Str("hospital", m.HospitalName).Msg("hospital grade unknown")
			continue
		}
		if err != nil {
			return errors.Wrap(err, "failed to resolve hospital level")
		}
		m.HospitalLevel = level
	}
	return nil
}
