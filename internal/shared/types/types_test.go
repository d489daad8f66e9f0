package types

import (
	"testing"
)

func TestParseCredentialNumber(t *testing.T) {
	tests := []struct {
		name     string
		typ      CredentialType
		input    string
		expected CredentialNumber
		wantErr  bool
	}{
		{"valid id card", CredentialTypeIDCard, "110101199003074477", "110101199003074477", false},
		{"lowercase check char", CredentialTypeIDCard, " 11010519491231002x ", "11010519491231002X", false},
		{"bad checksum", CredentialTypeIDCard, "110101199003074478", "", true},
		{"too short", CredentialTypeIDCard, "1101011990", "", true},
		{"passport kept as is", CredentialTypePassport, "e12345678", "E12345678", false},
		{"empty", CredentialTypePassport, "  ", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCredentialNumber(tt.typ, tt.input)
			if tt.wantErr {
				if err == nil {
					t.Errorf("Expected error, got %s", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if got != tt.expected {
				t.Errorf("Expected %s, got %s", tt.expected, got)
			}
		})
	}
}

func TestCredentialMasked(t *testing.T) {
	if got := CredentialNumber("110101199003074477").Masked(); got != "110101********4477" {
		t.Errorf("Expected masked number, got %s", got)
	}
	if got := CredentialNumber("E1234").Masked(); got != "*****" {
		t.Errorf("Expected fully masked short number, got %s", got)
	}
}

func TestMoneyHelpers(t *testing.T) {
	if got := Sum(MustDecimal("0.1"), MustDecimal("0.2")); !got.Equal(MustDecimal("0.3")) {
		t.Errorf("Expected exact 0.3, got %s", got)
	}
	if got := NonNegative(MustDecimal("-5")); !got.IsZero() {
		t.Errorf("Expected 0, got %s", got)
	}
	if got := MinDecimal(MustDecimal("3"), MustDecimal("2.5")); !got.Equal(MustDecimal("2.5")) {
		t.Errorf("Expected 2.5, got %s", got)
	}
	if got := Round2(MustDecimal("2.345")); !got.Equal(MustDecimal("2.34")) {
		t.Errorf("Expected banker's rounding to 2.34, got %s", got)
	}
}

func TestParseID(t *testing.T) {
	id := NewID()
	if _, err := ParseID(id.String()); err != nil {
		t.Errorf("Expected a valid ID, got %v", err)
	}
	if _, err := ParseID("not-a-uuid"); err == nil {
		t.Error("Expected error for malformed ID")
	}
}
