package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/claimflow/claims/internal/claim/domain"
)

type itemReport struct {
	ItemID           string `json:"item_id"`
	HospitalName     string `json:"hospital_name"`
	HospitalLevel    int    `json:"hospital_level"`
	DiseaseCode      string `json:"disease_code"`
	ClaimBase        string `json:"claim_base"`
	Remaining        string `json:"remaining_deductible"`
	Deductible       string `json:"deductible"`
	ClaimAmount      string `json:"claim_amount"`
	DeductDeductible bool   `json:"deduct_deductible"`
}

type claimReport struct {
	ClaimID  string       `json:"claim_id"`
	Status   string       `json:"status"`
	Released string       `json:"released_deductible,omitempty"`
	Items    []itemReport `json:"items,omitempty"`
}

func reconcileCmd() *cobra.Command {
	var (
		claimFile string
		rulesFile string
		timeout   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Carry the product deductible into every item of an enterprise claim",
		Long: `Reads an enterprise claim as JSON and reconciles each item against the
deductible history of the insured person. A canceled or deleted claim gives
its recorded deductible back instead. The result is written to stdout.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}

			claim, err := readClaim(claimFile)
			if err != nil {
				return err
			}
			rules, err := readRules(rulesFile)
			if err != nil {
				return err
			}

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			app, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			report := claimReport{ClaimID: claim.ID.String(), Status: claim.Status.String()}

			if claim.IsDeleted() || !claim.Status.HoldsDeductible() {
				released, err := app.Claims.ReleaseDeductible(ctx, claim)
				if err != nil {
					return err
				}
				report.Released = released.String()
				return writeReport(report)
			}

			for _, item := range claim.Items {
				res, err := app.Claims.ReconcileItem(ctx, claim, item, rules)
				if err != nil {
					return fmt.Errorf("item %s: %w", item.ID, err)
				}
				report.Items = append(report.Items, itemReport{
					ItemID:           item.ID.String(),
					HospitalName:     item.HospitalName,
					HospitalLevel:    int(item.HospitalLevel),
					DiseaseCode:      item.DiseaseCode,
					ClaimBase:        item.Amount.ClaimBase.String(),
					Remaining:        res.Remaining.String(),
					Deductible:       item.Amount.Deductible.String(),
					ClaimAmount:      item.Amount.ClaimAmount.String(),
					DeductDeductible: item.DeductDeductible,
				})
			}
			return writeReport(report)
		},
	}

	cmd.Flags().StringVar(&claimFile, "claim", "", "enterprise claim JSON file")
	cmd.Flags().StringVar(&rulesFile, "rules", "", "product rules JSON file ([{\"key\":...,\"value\":...}]); defaults apply when empty")
	cmd.Flags().DurationVar(&timeout, "timeout", time.Minute, "overall timeout")
	_ = cmd.MarkFlagRequired("claim")
	return cmd
}

func readClaim(path string) (*domain.EnterpriseClaim, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read claim: %w", err)
	}
	var claim domain.EnterpriseClaim
	if err := json.Unmarshal(raw, &claim); err != nil {
		return nil, fmt.Errorf("failed to parse claim: %w", err)
	}
	if claim.ID.IsZero() {
		return nil, fmt.Errorf("claim %s has no id", path)
	}
	return &claim, nil
}

func readRules(path string) (domain.ProductRules, error) {
	if path == "" {
		return domain.DefaultProductRules(), nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.ProductRules{}, fmt.Errorf("failed to read rules: %w", err)
	}
	var pairs []domain.ProductRule
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return domain.ProductRules{}, fmt.Errorf("failed to parse rules: %w", err)
	}
	return domain.ParseProductRules(pairs)
}

func writeReport(report claimReport) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(report)
}
