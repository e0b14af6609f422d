package spf

import (
	"context"

	"github.com/synqronlabs/spfaudit/dns"
)

// MaxLookups is the RFC 7208 limit on DNS-querying terms per evaluation.
// The budget is inclusive: a chain consuming exactly MaxLookups lookups
// is still valid.
const MaxLookups = 10

// ResolutionNode is one domain visited during chain expansion.
// Nodes are append-only; the trace preserves visit order.
type ResolutionNode struct {
	// Domain is the visited domain.
	Domain string

	// Record is the parsed SPF record, nil when the lookup failed or
	// the domain publishes no SPF record.
	Record *Record

	// LookupCost is 0 for the root fetch and 1 for each followed
	// include or redirect.
	LookupCost int

	// Depth is the include/redirect nesting depth, 0 for the root.
	Depth int
}

// LookupFailure records a DNS failure encountered mid-walk.
type LookupFailure struct {
	Domain string
	Err    error
}

// Trace is the result of expanding a domain's SPF chain. It is the
// input to issue detection and report building.
type Trace struct {
	// Domain is the root domain the walk started from.
	Domain string

	// Root is the selected root record, nil when none was found.
	Root *Record

	// Nodes is the append-only expansion trace in visit order.
	Nodes []ResolutionNode

	// Lookups is the running DNS lookup counter after the walk
	// completed or halted. May reach MaxLookups+1 when the budget
	// was exceeded.
	Lookups int

	// MissingRecord is true when the root publishes no v=spf1 record.
	MissingRecord bool

	// MultipleRecords is true when the root published two or more
	// v=spf1 records. The first record returned by the resolver is
	// used for continued analysis.
	MultipleRecords bool

	// OverBudget is true when expansion halted on the lookup budget.
	OverBudget bool

	// DeadlineExceeded is true when the per-request deadline elapsed
	// mid-walk. The partial trace is still reported.
	DeadlineExceeded bool

	// Cycles lists domains whose expansion was skipped because they
	// were already present in the trace, in detection order.
	Cycles []string

	// Failures lists non-NXDOMAIN DNS failures, in encounter order.
	Failures []LookupFailure
}

// RootFailed reports whether the root TXT lookup failed outright
// (timeout or server failure, as opposed to a missing record).
func (t *Trace) RootFailed() bool {
	return t.Root == nil && !t.MissingRecord && len(t.Failures) > 0
}

// walker carries state for one chain expansion. Expansion within one
// request is strictly sequential; walkers are never shared.
type walker struct {
	resolver dns.Resolver
	trace    *Trace
	visited  map[string]bool
}

// Resolve fetches and expands the SPF chain for domain, producing the
// full resolution trace. DNS failures become trace data, never errors;
// the caller always receives a well-formed trace.
func Resolve(ctx context.Context, resolver dns.Resolver, domain string) *Trace {
	w := &walker{
		resolver: resolver,
		trace:    &Trace{Domain: domain},
		visited:  map[string]bool{domain: true},
	}

	record, multiple, err := w.fetch(ctx, domain)
	if err != nil {
		if dns.IsNotFound(err) {
			w.trace.MissingRecord = true
		} else {
			w.trace.Failures = append(w.trace.Failures, LookupFailure{Domain: domain, Err: err})
		}
		return w.trace
	}
	if record == nil {
		// TXT records exist but none carries v=spf1
		w.trace.MissingRecord = true
		return w.trace
	}

	w.trace.Root = record
	w.trace.MultipleRecords = multiple
	w.trace.Nodes = append(w.trace.Nodes, ResolutionNode{Domain: domain, Record: record, Depth: 0})

	w.walk(ctx, record, 0)
	return w.trace
}

// fetch retrieves TXT records for domain and selects the SPF record.
// The selection tie-break for multiple v=spf1 records is deterministic:
// the first record returned by the resolver wins.
func (w *walker) fetch(ctx context.Context, domain string) (record *Record, multiple bool, err error) {
	result, err := w.resolver.LookupTXT(ctx, domain)
	if err != nil {
		return nil, false, err
	}

	for _, txt := range result.Records {
		if !IsSPF(txt) {
			continue
		}
		if record != nil {
			multiple = true
			continue
		}
		record = ParseRecord(domain, txt)
	}

	return record, multiple, nil
}

// charge spends one lookup from the budget. Returns false when the
// budget is exhausted; the walk must halt with remaining terms
// unresolved.
func (w *walker) charge() bool {
	w.trace.Lookups++
	if w.trace.Lookups > MaxLookups {
		w.trace.OverBudget = true
		return false
	}
	return true
}

// walk expands the terms of record depth-first, left to right,
// preserving SPF's mandated evaluation order. Returns false when the
// whole walk must halt (budget exhausted or deadline elapsed); cycle
// detection only skips the affected branch and keeps siblings going.
func (w *walker) walk(ctx context.Context, record *Record, depth int) bool {
	for _, term := range record.Terms {
		if ctx.Err() != nil {
			w.trace.DeadlineExceeded = true
			return false
		}

		switch term.Kind {
		case TermInclude, TermRedirect:
			if !w.charge() {
				return false
			}
			if !w.expand(ctx, term.Value, depth+1) {
				return false
			}

		case TermA, TermMX, TermPTR, TermExists:
			// These resolve address records outside this engine's
			// concern; only the lookup cost is accounted for.
			if !w.charge() {
				return false
			}
		}
	}
	return true
}

// expand fetches and walks one include/redirect target.
func (w *walker) expand(ctx context.Context, target string, depth int) bool {
	if w.visited[target] {
		w.trace.Cycles = append(w.trace.Cycles, target)
		return true // skip this branch, siblings continue
	}
	w.visited[target] = true

	record, _, err := w.fetch(ctx, target)
	if err != nil && !dns.IsNotFound(err) {
		w.trace.Failures = append(w.trace.Failures, LookupFailure{Domain: target, Err: err})
	}

	w.trace.Nodes = append(w.trace.Nodes, ResolutionNode{
		Domain:     target,
		Record:     record,
		LookupCost: 1,
		Depth:      depth,
	})

	if record == nil {
		return true
	}
	return w.walk(ctx, record, depth)
}
