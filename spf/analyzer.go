package spf

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/net/idna"
	"golang.org/x/sync/semaphore"

	"github.com/synqronlabs/spfaudit/dns"
)

// Analysis errors.
var (
	// ErrInvalidDomain rejects malformed input before any DNS work.
	ErrInvalidDomain = errors.New("spf: invalid domain name")
)

// Config configures an Analyzer.
type Config struct {
	// Resolver performs TXT lookups. Required.
	Resolver dns.Resolver

	// Deadline bounds one whole analysis including all chain
	// expansion. When it elapses mid-walk the partial trace is
	// reported with a deadline issue. Default is 5 seconds.
	Deadline time.Duration

	// Logger for debug output. Defaults to slog.Default().
	Logger *slog.Logger
}

// Analyzer runs the full SPF validation pipeline. Analyzers are safe
// for concurrent use; independent requests share no mutable state.
type Analyzer struct {
	resolver dns.Resolver
	deadline time.Duration
	logger   *slog.Logger
}

// New creates an Analyzer.
func New(config Config) *Analyzer {
	if config.Deadline == 0 {
		config.Deadline = 5 * time.Second
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	return &Analyzer{
		resolver: config.Resolver,
		deadline: config.Deadline,
		logger:   config.Logger,
	}
}

// Analyze resolves, expands, and inspects the SPF chain for domain,
// returning the assembled report. The only error condition is malformed
// domain input; every resolution failure becomes report data instead.
// Running twice against unchanged DNS state yields identical reports
// except for the timestamp.
func (a *Analyzer) Analyze(ctx context.Context, domain string) (*ValidationReport, error) {
	normalized, err := NormalizeDomain(domain)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.deadline)
	defer cancel()

	start := timeNow()
	trace := Resolve(ctx, a.resolver, normalized)
	issues := Detect(trace)
	report := BuildReport(trace, issues)

	a.logger.Debug("spf analysis completed",
		slog.String("domain", normalized),
		slog.Int("dns_lookups", trace.Lookups),
		slog.Int("issues", len(issues)),
		slog.Bool("is_valid", report.IsValid),
		slog.Duration("duration", timeNow().Sub(start)),
	)

	return report, nil
}

// AnalyzeAll analyzes several domains with at most concurrency analyses
// in flight. Results are returned in input order; a malformed domain
// yields a nil report and contributes to the joined error.
func (a *Analyzer) AnalyzeAll(ctx context.Context, domains []string, concurrency int64) ([]*ValidationReport, error) {
	if concurrency < 1 {
		concurrency = 1
	}

	sem := semaphore.NewWeighted(concurrency)
	reports := make([]*ValidationReport, len(domains))
	errs := make([]error, len(domains))

	for i, domain := range domains {
		if err := sem.Acquire(ctx, 1); err != nil {
			return reports, err
		}
		go func(i int, domain string) {
			defer sem.Release(1)
			reports[i], errs[i] = a.Analyze(ctx, domain)
			if errs[i] != nil {
				errs[i] = fmt.Errorf("%s: %w", domain, errs[i])
			}
		}(i, domain)
	}

	// Wait for all workers to finish
	if err := sem.Acquire(ctx, concurrency); err != nil {
		return reports, err
	}

	return reports, errors.Join(errs...)
}

// NormalizeDomain validates input as a well-formed hostname and returns
// its lower-cased ASCII (punycode) form. Malformed input is rejected
// here, before the resolver is ever consulted.
func NormalizeDomain(domain string) (string, error) {
	domain = strings.TrimSuffix(strings.TrimSpace(domain), ".")
	if domain == "" {
		return "", fmt.Errorf("%w: empty domain", ErrInvalidDomain)
	}

	ascii, err := idna.Lookup.ToASCII(domain)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidDomain, err)
	}

	labels := strings.Split(ascii, ".")
	if len(labels) < 2 {
		return "", fmt.Errorf("%w: missing top-level domain", ErrInvalidDomain)
	}

	// An all-digit toplabel means the input was an IP address, not a
	// hostname.
	top := labels[len(labels)-1]
	digits := 0
	for _, c := range top {
		if c >= '0' && c <= '9' {
			digits++
		}
	}
	if digits == len(top) {
		return "", fmt.Errorf("%w: toplabel cannot be all digits", ErrInvalidDomain)
	}

	return ascii, nil
}
