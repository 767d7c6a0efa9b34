// Package metrics defines the Prometheus collectors each service registers.
// Constructors accept a nil Registerer and return a recorder whose methods
// do nothing, so tests and tools can skip metrics entirely.
package metrics

const namespace = "gebeya"

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
