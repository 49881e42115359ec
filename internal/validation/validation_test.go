package validation

import (
	"errors"
	"strings"
	"testing"
)

func TestValidateMetricKey_Valid(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"ph", "ph"},
		{"  TDS  ", "tds"},
		{"temperature.png", "temperature"},
		{"ORP.PNG", "orp"},
		{"water_temp-2", "water_temp-2"},
	}
	for _, tc := range tests {
		t.Run(tc.input, func(t *testing.T) {
			got, err := ValidateMetricKey(tc.input)
			if err != nil {
				t.Fatalf("ValidateMetricKey(%q) error = %v", tc.input, err)
			}
			if got != tc.want {
				t.Errorf("ValidateMetricKey(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestValidateMetricKey_Errors(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr error
	}{
		{"empty", "", ErrMetricKeyEmpty},
		{"spaces", "   ", ErrMetricKeyEmpty},
		{"only suffix", ".png", ErrMetricKeyEmpty},
		{"too long", strings.Repeat("a", MaxMetricKeyLen+1), ErrMetricKeyTooLong},
		{"slash", "ph/../etc", ErrMetricKeyInvalidChars},
		{"space inside", "p h", ErrMetricKeyInvalidChars},
		{"unicode", "pħ", ErrMetricKeyInvalidChars},
		{"percent", "ph%00", ErrMetricKeyInvalidChars},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := ValidateMetricKey(tc.input)
			if !errors.Is(err, tc.wantErr) {
				t.Errorf("ValidateMetricKey(%q) error = %v, want %v", tc.input, err, tc.wantErr)
			}
		})
	}
}

func TestValidateMetricKey_MaxLengthAccepted(t *testing.T) {
	in := strings.Repeat("a", MaxMetricKeyLen)
	if _, err := ValidateMetricKey(in); err != nil {
		t.Errorf("ValidateMetricKey(len=%d) error = %v", MaxMetricKeyLen, err)
	}
}
