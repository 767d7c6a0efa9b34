// Package phone validates Ethiopian mobile numbers.
package phone

import (
	"regexp"
	"strings"
)

// Accepted forms: +2519XXXXXXXX, +2517XXXXXXXX, 09XXXXXXXX, 07XXXXXXXX.
var ethiopianMobile = regexp.MustCompile(`^(\+251[79]\d{8}|0[79]\d{8})$`)

var separators = strings.NewReplacer(" ", "", "-", "")

// IsEthiopianMobile reports whether raw is an accepted mobile number. Spaces
// and dashes are ignored.
func IsEthiopianMobile(raw string) bool {
	return ethiopianMobile.MatchString(separators.Replace(strings.TrimSpace(raw)))
}

// Normalize returns the +251 form of a valid number, or "" when invalid.
func Normalize(raw string) string {
	clean := separators.Replace(strings.TrimSpace(raw))
	if !ethiopianMobile.MatchString(clean) {
		return ""
	}
	if strings.HasPrefix(clean, "0") {
		return "+251" + clean[1:]
	}
	return clean
}

// Mask hides all but the last four digits.
func Mask(raw string) string {
	clean := separators.Replace(strings.TrimSpace(raw))
	if len(clean) <= 4 {
		return clean
	}
	return strings.Repeat("*", len(clean)-4) + clean[len(clean)-4:]
}
