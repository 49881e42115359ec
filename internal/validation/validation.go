package validation

import (
	"errors"
	"strings"
)

// MaxMetricKeyLen bounds the chart route segment, including an optional ".png" suffix.
const MaxMetricKeyLen = 32

// ErrMetricKeyEmpty is returned when the key is empty or whitespace-only after trim.
var ErrMetricKeyEmpty = errors.New("metric is required")

// ErrMetricKeyTooLong is returned when the key exceeds MaxMetricKeyLen.
var ErrMetricKeyTooLong = errors.New("metric too long")

// ErrMetricKeyInvalidChars is returned when the key contains disallowed characters.
var ErrMetricKeyInvalidChars = errors.New("metric contains invalid characters")

// ValidateMetricKey trims and lowercases the input, strips a trailing ".png", and restricts
// it to ASCII letters, digits, dot, underscore and hyphen. Whether the key names a known
// metric is left to the chart package.
func ValidateMetricKey(input string) (string, error) {
	s := strings.ToLower(strings.TrimSpace(input))
	if len(s) > MaxMetricKeyLen {
		return "", ErrMetricKeyTooLong
	}
	for i := 0; i < len(s); i++ {
		if !isAllowedKeyByte(s[i]) {
			return "", ErrMetricKeyInvalidChars
		}
	}
	s = strings.TrimSuffix(s, ".png")
	if s == "" {
		return "", ErrMetricKeyEmpty
	}
	return s, nil
}

func isAllowedKeyByte(b byte) bool {
	switch {
	case b >= 'a' && b <= 'z', b >= '0' && b <= '9':
		return true
	case b == '.', b == '_', b == '-':
		return true
	}
	return false
}
