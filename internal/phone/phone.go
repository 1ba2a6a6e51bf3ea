package phone

import (
	"regexp"
	"strings"
)

// ValidationResult reports whether a user-entered number is dialable.
// NormalizedNumber is populated even for invalid input so callers can echo
// back exactly what was checked.
type ValidationResult struct {
	IsValid          bool
	NormalizedNumber string
	ErrorMessage     string
}

// e164Pattern: leading +, non-zero first digit, 7-15 digits total.
var e164Pattern = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

var separatorReplacer = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", "\t", "")

// Validate normalizes and checks a phone number against E.164.
// Pure function: no network or state access.
func Validate(raw string) ValidationResult {
	cleaned := separatorReplacer.Replace(raw)

	if cleaned == "" {
		return ValidationResult{
			IsValid:      false,
			ErrorMessage: "Please enter a phone number",
		}
	}

	if e164Pattern.MatchString(cleaned) {
		return ValidationResult{
			IsValid:          true,
			NormalizedNumber: cleaned,
		}
	}

	res := ValidationResult{IsValid: false, NormalizedNumber: cleaned}
	switch {
	case !strings.HasPrefix(cleaned, "+"):
		res.ErrorMessage = "Phone number must start with + (E.164 format: +1234567890)"
	case len(cleaned) < 8:
		res.ErrorMessage = "Phone number is too short (minimum 7 digits after +)"
	case len(cleaned) > 16:
		res.ErrorMessage = "Phone number is too long (maximum 15 digits after +)"
	default:
		res.ErrorMessage = "Please enter a valid phone number (E.164 format: +1234567890)"
	}
	return res
}

// FormatForDisplay pretty-prints well-known country formats for the UI.
// Unknown formats are returned cleaned but otherwise untouched.
func FormatForDisplay(raw string) string {
	cleaned := separatorReplacer.Replace(raw)

	if strings.HasPrefix(cleaned, "+1") && len(cleaned) == 12 {
		return "+1 (" + cleaned[2:5] + ") " + cleaned[5:8] + "-" + cleaned[8:]
	}
	if strings.HasPrefix(cleaned, "+44") && len(cleaned) >= 12 {
		return "+44 " + cleaned[3:7] + " " + cleaned[7:]
	}
	return cleaned
}
