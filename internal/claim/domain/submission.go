package domain

import (
	"github.com/claimflow/claims/internal/shared/errors"
)

// MissingFields lists the submission fields that are empty. Whether a
// non-empty result blocks submission is decided by the caller.
func (c *InsuranceClaim) MissingFields() []string {
	return missingFields(c.ProductID.String(), c.PolicyNumber, c.Insured, c.Claimant, c.Account, c.SourceCode)
}

func (c *EnterpriseClaim) MissingFields() []string {
	return missingFields(c.ProductID.String(), c.PolicyNumber, c.Insured, c.Claimant, c.Account, c.SourceCode)
}

// CheckRequiredFields returns a MissingRequiredField error naming every empty field
func (c *InsuranceClaim) CheckRequiredFields() error {
	return requireFields(c.MissingFields())
}

func (c *EnterpriseClaim) CheckRequiredFields() error {
	return requireFields(c.MissingFields())
}

func requireFields(missing []string) error {
	if len(missing) == 0 {
		return nil
	}
	return errors.MissingRequiredFields(missing)
}

func missingFields(productID, policyNumber string, insured, claimant Party, account Account, sourceCode string) []string {
	var missing []string
	check := func(name, value string) {
		if value == "" {
			missing = append(missing, name)
		}
	}

	check("product_id", productID)
	check("policy_number", policyNumber)
	check("insured.name", insured.Name)
	check("insured.credential_type", string(insured.CredentialType))
	check("insured.credential_number", insured.CredentialNumber.String())
	check("claimant.name", claimant.Name)
	check("claimant.credential_type", string(claimant.CredentialType))
	check("claimant.credential_number", claimant.CredentialNumber.String())
	check("account.bank_name", account.BankName)
	check("account.account_name", account.AccountName)
	check("account.account_number", account.AccountNumber)
	check("source_code", sourceCode)

	return missing
}
