// Package enums holds the string enums persisted in postgres and carried on
// the wire. Every type rejects unknown values through IsValid and Parse*.
package enums

import (
	"fmt"
	"slices"
	"strings"
)

type enum interface{ ~string }

func member[T enum](known []T, v T) bool {
	return slices.Contains(known, v)
}

// parse is case-insensitive and trims surrounding space; kind names the enum
// in the error.
func parse[T enum](kind string, known []T, raw string) (T, error) {
	v := T(strings.ToLower(strings.TrimSpace(raw)))
	if member(known, v) {
		return v, nil
	}
	var zero T
	return zero, fmt.Errorf("invalid %s %q", kind, raw)
}
