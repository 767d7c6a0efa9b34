package validators

import "strings"

// CleanText folds every run of whitespace, newlines included, into a single
// space and trims the ends. Used for one-line free text such as cancel reasons.
func CleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// CleanOptional cleans an optional field; a blank value becomes nil.
func CleanOptional(s *string) *string {
	if s == nil {
		return nil
	}
	cleaned := CleanText(*s)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}
