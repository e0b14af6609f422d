package dns

import (
	"context"
	"slices"
)

// MockResolver is a Resolver used for testing.
// Set TXT records in the TXT field, which maps FQDNs (with trailing dot)
// to record values. Names absent from the map return ErrNotFound.
type MockResolver struct {
	TXT map[string][]string

	// Fail contains names that will return a temporary error (SERVFAIL).
	// Names are FQDNs with trailing dot.
	Fail []string

	// Slow contains names that will return ErrTimeout, simulating an
	// unresponsive upstream.
	Slow []string

	// AllAuthentic sets the Authentic flag on successful responses.
	AllAuthentic bool
}

var _ Resolver = MockResolver{}

// ensureFQDN ensures the name ends with a dot.
func ensureFQDN(name string) string {
	if len(name) == 0 || name[len(name)-1] != '.' {
		return name + "."
	}
	return name
}

// LookupTXT returns TXT records for the given domain.
func (r MockResolver) LookupTXT(ctx context.Context, name string) (Result[string], error) {
	result := Result[string]{Authentic: r.AllAuthentic}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	fqdn := ensureFQDN(name)

	if slices.Contains(r.Fail, fqdn) {
		return result, ErrServFail
	}
	if slices.Contains(r.Slow, fqdn) {
		return result, ErrTimeout
	}

	records, ok := r.TXT[fqdn]
	if !ok || len(records) == 0 {
		return result, ErrNotFound
	}

	result.Records = records
	return result, nil
}
