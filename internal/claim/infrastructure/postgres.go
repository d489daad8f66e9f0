package infrastructure

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/claimflow/claims/internal/claim/domain"
	"github.com/claimflow/claims/internal/claim/reconcile"
	"github.com/claimflow/claims/internal/shared/errors"
	"github.com/claimflow/claims/internal/shared/metrics"
	"github.com/claimflow/claims/internal/shared/types"
)

// PostgresHistoryStore implements reconcile.HistoryStore. Each critical
// section is one transaction holding an advisory lock on the key hash.
type PostgresHistoryStore struct {
	pool *pgxpool.Pool
}

// NewPostgresHistoryStore creates a new PostgreSQL history store
func NewPostgresHistoryStore(pool *pgxpool.Pool) *PostgresHistoryStore {
	return &PostgresHistoryStore{pool: pool}
}

func (s *PostgresHistoryStore) WithKey(ctx context.Context, key domain.HistoryKey, fn func(ctx context.Context, tx reconcile.HistoryTx) error) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("deductible_critical_section", time.Since(start)) }()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	// released automatically at commit or rollback
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, key.String()); err != nil {
		return errors.Wrap(err, "failed to lock deductible history")
	}

	if err := fn(ctx, &historyTx{tx: tx, key: key}); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return errors.Wrap(err, "failed to commit transaction")
	}
	return nil
}

// Release deletes a claim's ledger rows in one transaction. Every key the
// claim touched is locked first, in key order, so a release never interleaves
// with a reconciliation of the same key.
func (s *PostgresHistoryStore) Release(ctx context.Context, claimID types.ID) (decimal.Decimal, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("deductible_release", time.Since(start)) }()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to begin transaction")
	}
	defer tx.Rollback(ctx)

	rows, err := tx.Query(ctx, `
		SELECT DISTINCT history_key
		FROM claims.deductible_ledger
		WHERE claim_id = $1
		ORDER BY history_key`, claimID.String())
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to list ledger keys")
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to read ledger keys")
	}
	if len(keys) == 0 {
		return decimal.Zero, nil
	}

	for _, k := range keys {
		if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtextextended($1, 0))`, k); err != nil {
			return decimal.Zero, errors.Wrap(err, "failed to lock deductible history")
		}
	}

	var total string
	err = tx.QueryRow(ctx, `
		WITH released AS (
			DELETE FROM claims.deductible_ledger
			WHERE claim_id = $1
			RETURNING applied
		)
		SELECT COALESCE(SUM(applied), 0)::text FROM released`, claimID.String()).Scan(&total)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to release deductible")
	}

	if err := tx.Commit(ctx); err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to commit transaction")
	}

	released, err := decimal.NewFromString(total)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "invalid released sum")
	}
	return released, nil
}

// SeedHistory upserts the prior settled claims snapshot for a key
func (s *PostgresHistoryStore) SeedHistory(ctx context.Context, h domain.HistoryClaimAmount) error {
	query := `
		INSERT INTO claims.history_claim_amounts (
			history_key, product_id, insured_name, credential_number,
			medical_category, period, claim_base, deductible, overall_fund_amount
		) VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8::numeric, $9::numeric)
		ON CONFLICT (history_key) DO UPDATE SET
			claim_base = EXCLUDED.claim_base,
			deductible = EXCLUDED.deductible,
			overall_fund_amount = EXCLUDED.overall_fund_amount,
			updated_at = NOW()`

	_, err := s.pool.Exec(ctx, query,
		h.Key.String(), h.Key.ProductID.String(), h.Key.InsuredName, h.Key.CredentialNumber.String(),
		string(h.Key.MedicalCategory), h.Key.Period,
		h.ClaimBase.String(), h.Deductible.String(), h.OverallFundAmount.String(),
	)
	if err != nil {
		return errors.Wrap(err, "failed to save deductible history")
	}
	return nil
}

// Running returns the snapshot with the period ledger added to Deductible
func (s *PostgresHistoryStore) Running(ctx context.Context, key domain.HistoryKey) (domain.HistoryClaimAmount, error) {
	var h domain.HistoryClaimAmount
	err := s.WithKey(ctx, key, func(ctx context.Context, tx reconcile.HistoryTx) error {
		var err error
		h, err = tx.History(ctx)
		if err != nil {
			return err
		}
		applied, err := tx.AppliedExcept(ctx, "")
		if err != nil {
			return err
		}
		h.Deductible = h.Deductible.Add(applied)
		return nil
	})
	return h, err
}

type historyTx struct {
	tx  pgx.Tx
	key domain.HistoryKey
}

func (t *historyTx) History(ctx context.Context) (domain.HistoryClaimAmount, error) {
	query := `
		SELECT claim_base::text, deductible::text, overall_fund_amount::text
		FROM claims.history_claim_amounts
		WHERE history_key = $1`

	h := domain.HistoryClaimAmount{Key: t.key}
	var claimBase, deductible, fund string

	err := t.tx.QueryRow(ctx, query, t.key.String()).Scan(&claimBase, &deductible, &fund)
	if err == pgx.ErrNoRows {
		return h, nil
	}
	if err != nil {
		return h, errors.Wrap(err, "failed to load deductible history")
	}

	if h.ClaimBase, err = decimal.NewFromString(claimBase); err != nil {
		return h, errors.Wrap(err, "invalid claim_base")
	}
	if h.Deductible, err = decimal.NewFromString(deductible); err != nil {
		return h, errors.Wrap(err, "invalid deductible")
	}
	if h.OverallFundAmount, err = decimal.NewFromString(fund); err != nil {
		return h, errors.Wrap(err, "invalid overall_fund_amount")
	}
	return h, nil
}

func (t *historyTx) AppliedExcept(ctx context.Context, itemID types.ID) (decimal.Decimal, error) {
	query := `
		SELECT COALESCE(SUM(applied), 0)::text
		FROM claims.deductible_ledger
		WHERE history_key = $1 AND item_id::text <> $2`

	var total string
	if err := t.tx.QueryRow(ctx, query, t.key.String(), itemID.String()).Scan(&total); err != nil {
		return decimal.Zero, errors.Wrap(err, "failed to sum deductible ledger")
	}
	d, err := decimal.NewFromString(total)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "invalid ledger sum")
	}
	return d, nil
}

func (t *historyTx) Record(ctx context.Context, entry reconcile.LedgerEntry) error {
	query := `
		INSERT INTO claims.deductible_ledger (history_key, item_id, claim_id, applied)
		VALUES ($1, $2, $3, $4::numeric)
		ON CONFLICT (history_key, item_id) DO UPDATE SET
			applied = EXCLUDED.applied,
			claim_id = EXCLUDED.claim_id,
			recorded_at = NOW()`

	_, err := t.tx.Exec(ctx, query, t.key.String(), entry.ItemID.String(), entry.ClaimID.String(), entry.Applied.String())
	if err != nil {
		return errors.Wrap(err, "failed to record applied deductible")
	}
	return nil
}
