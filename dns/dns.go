// Package dns provides the TXT-record lookup adapter used by SPF analysis.
//
// The analysis engine depends only on the Resolver interface; concrete
// implementations are provided for github.com/miekg/dns (with DNSSEC
// support), the standard library resolver, and an in-memory mock for tests.
package dns

import (
	"context"
	"errors"
)

// DNS lookup errors.
var (
	// ErrNotFound indicates the name does not exist (NXDOMAIN) or the
	// answer section contained no records of the requested type.
	ErrNotFound = errors.New("dns: no records found")

	// ErrTimeout indicates the query did not complete within the
	// configured per-lookup timeout.
	ErrTimeout = errors.New("dns: query timed out")

	// ErrServFail indicates the upstream resolver returned SERVFAIL.
	ErrServFail = errors.New("dns: server failure")

	// ErrRefused indicates the upstream resolver refused the query.
	ErrRefused = errors.New("dns: query refused")

	// ErrBogus indicates a DNSSEC validation failure was reported by a
	// validating upstream resolver.
	ErrBogus = errors.New("dns: DNSSEC validation failed")
)

// Result holds the records returned by a lookup along with metadata
// about the response.
type Result[T any] struct {
	// Records are the answers, in the order returned by the resolver.
	Records []T

	// Authentic indicates the response was DNSSEC-validated (AD bit).
	Authentic bool
}

// Resolver is the TXT lookup capability required by SPF analysis.
// Implementations must apply a bounded per-lookup timeout and perform
// exactly one logical round trip; retry policy belongs to the caller.
type Resolver interface {
	// LookupTXT retrieves TXT records for the given domain.
	// Character strings within one record are joined per RFC 7208
	// Section 3.3. Returns ErrNotFound when the domain has no TXT records.
	LookupTXT(ctx context.Context, name string) (Result[string], error)
}

// IsNotFound reports whether err indicates a missing record rather than
// a lookup failure.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsTimeout reports whether err indicates a timed-out query.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}

// IsServFail reports whether err indicates an upstream server failure.
func IsServFail(err error) bool {
	return errors.Is(err, ErrServFail)
}

// IsTemporary reports whether err is likely to succeed on retry.
func IsTemporary(err error) bool {
	return IsTimeout(err) || IsServFail(err) || errors.Is(err, ErrRefused)
}
