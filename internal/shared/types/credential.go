package types

import (
	"fmt"
	"regexp"
	"strings"
)

// CredentialType identifies the kind of identity document
type CredentialType string

const (
	CredentialTypeIDCard   CredentialType = "ID_CARD"
	CredentialTypePassport CredentialType = "PASSPORT"
	CredentialTypeOther    CredentialType = "OTHER"
)

// CredentialNumber is an insured person's identity document number.
// For ID cards it is the 18 character resident identity number:
// 6 digit region, 8 digit birth date, 3 digit sequence, check character.
type CredentialNumber string

var idCardRegex = regexp.MustCompile(`^\d{17}[\dX]$`)

var idCardWeights = [17]int{7, 9, 10, 5, 8, 4, 2, 1, 6, 3, 7, 9, 10, 5, 8, 4, 2}

const idCardCheckChars = "10X98765432"

// ParseCredentialNumber normalizes and validates a credential number
func ParseCredentialNumber(t CredentialType, s string) (CredentialNumber, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("credential number is required")
	}
	if t != CredentialTypeIDCard {
		return CredentialNumber(s), nil
	}
	if !idCardRegex.MatchString(s) {
		return "", fmt.Errorf("ID card number must be 17 digits followed by a digit or X")
	}
	c := CredentialNumber(s)
	if !c.checksumValid() {
		return "", fmt.Errorf("invalid ID card checksum")
	}
	return c, nil
}

// String returns the string representation
func (c CredentialNumber) String() string {
	return string(c)
}

// Masked keeps the first 6 and last 4 characters for log output
func (c CredentialNumber) Masked() string {
	if len(c) <= 10 {
		return strings.Repeat("*", len(c))
	}
	return string(c[:6]) + strings.Repeat("*", len(c)-10) + string(c[len(c)-4:])
}

func (c CredentialNumber) checksumValid() bool {
	sum := 0
	for i := 0; i < 17; i++ {
		sum += int(c[i]-'0') * idCardWeights[i]
	}
	return idCardCheckChars[sum%11] == c[17]
}
