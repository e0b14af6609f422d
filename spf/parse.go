package spf

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

// TermKind identifies a parsed SPF mechanism or modifier.
type TermKind string

const (
	TermAll      TermKind = "all"
	TermInclude  TermKind = "include"
	TermA        TermKind = "a"
	TermMX       TermKind = "mx"
	TermPTR      TermKind = "ptr"
	TermExists   TermKind = "exists"
	TermIP4      TermKind = "ip4"
	TermIP6      TermKind = "ip6"
	TermRedirect TermKind = "redirect"
	TermVersion  TermKind = "version"

	// TermUnknown covers modifiers and mechanisms outside the known
	// vocabulary. Recorded but not a syntax error on its own.
	TermUnknown TermKind = "unknown-modifier"
)

// LookupCost returns the number of DNS lookups a term of this kind
// consumes against the RFC 7208 budget. Redirect costs nothing at parse
// time; its lookup is counted when the redirect is followed.
func (k TermKind) LookupCost() int {
	switch k {
	case TermInclude, TermA, TermMX, TermPTR, TermExists:
		return 1
	}
	return 0
}

// Qualifier sets the result when a mechanism matches.
// "+" pass, "-" fail, "~" softfail, "?" neutral.
type Qualifier string

const (
	QualifierPass     Qualifier = "+"
	QualifierFail     Qualifier = "-"
	QualifierSoftFail Qualifier = "~"
	QualifierNeutral  Qualifier = "?"
)

// Term is one parsed unit of an SPF record. Immutable once parsed.
type Term struct {
	// Kind classifies the term.
	Kind TermKind

	// Qualifier is the explicit or default ("+") qualifier.
	Qualifier Qualifier

	// Value is the mechanism argument (domain, address, CIDR suffix),
	// empty for bare mechanisms like "all" or "mx".
	Value string
}

// String returns the term in record form.
func (t Term) String() string {
	var b strings.Builder
	if t.Qualifier != QualifierPass {
		b.WriteString(string(t.Qualifier))
	}
	switch t.Kind {
	case TermVersion:
		b.WriteString("v=")
		b.WriteString(t.Value)
	case TermRedirect:
		b.WriteString("redirect=")
		b.WriteString(t.Value)
	case TermUnknown:
		b.WriteString(t.Value)
	default:
		b.WriteString(string(t.Kind))
		if t.Value != "" {
			b.WriteByte(':')
			b.WriteString(t.Value)
		}
	}
	return b.String()
}

// Record is a parsed SPF DNS record. Created by ParseRecord from a single
// TXT string; never mutated after creation.
type Record struct {
	// Raw is the original TXT record string.
	Raw string

	// Domain is the domain this record instance was published on.
	Domain string

	// Terms are the parsed units in record order.
	Terms []Term

	// SyntaxValid is false when the record violates the SPF grammar.
	SyntaxValid bool

	// SyntaxError holds the first grammar diagnostic, empty when valid.
	SyntaxError string
}

// HasVersion reports whether the record carries the v=spf1 version term.
func (r *Record) HasVersion() bool {
	for _, t := range r.Terms {
		if t.Kind == TermVersion {
			return true
		}
	}
	return false
}

// LastAll returns the last "all" term in record order, or nil.
// Only the record actually evaluated contributes its own "all", so
// callers apply this to the root record alone.
func (r *Record) LastAll() *Term {
	var last *Term
	for i := range r.Terms {
		if r.Terms[i].Kind == TermAll {
			last = &r.Terms[i]
		}
	}
	return last
}

// UnknownTerms returns the unknown-modifier terms in record order.
func (r *Record) UnknownTerms() []Term {
	var out []Term
	for _, t := range r.Terms {
		if t.Kind == TermUnknown {
			out = append(out, t)
		}
	}
	return out
}

// IsSPF reports whether raw begins with the v=spf1 version token
// (case-insensitive) followed by a space or end of string.
func IsSPF(raw string) bool {
	lower := toLower(raw)
	if !strings.HasPrefix(lower, "v=spf1") {
		return false
	}
	return len(lower) == len("v=spf1") || lower[len("v=spf1")] == ' '
}

// toLower lower-cases ASCII A-Z without affecting other bytes.
func toLower(s string) string {
	r := []byte(s)
	for i, c := range r {
		if c >= 'A' && c <= 'Z' {
			r[i] = c + 0x20
		}
	}
	return string(r)
}

// ParseRecord parses one TXT record string published on domain.
// Grammar problems never produce a Go error; they are recorded on the
// returned Record as SyntaxValid=false with a diagnostic, so callers can
// always report partial results.
func ParseRecord(domain, raw string) *Record {
	r := &Record{
		Raw:         raw,
		Domain:      domain,
		SyntaxValid: true,
	}

	lower := toLower(strings.TrimSpace(raw))
	if !IsSPF(lower) {
		r.SyntaxValid = false
		r.SyntaxError = "record must start with v=spf1"
		return r
	}

	r.Terms = append(r.Terms, Term{Kind: TermVersion, Qualifier: QualifierPass, Value: "spf1"})

	for _, token := range strings.Fields(lower[len("v=spf1"):]) {
		term, err := parseTerm(token)
		r.Terms = append(r.Terms, term)
		if err != nil && r.SyntaxValid {
			r.SyntaxValid = false
			r.SyntaxError = err.Error()
		}
	}

	return r
}

// parseTerm classifies one whitespace-separated token. The token is
// already lower-cased. Tokens outside the known vocabulary come back as
// TermUnknown with a nil error; known terms that fail well-formedness
// checks come back with a non-nil diagnostic.
func parseTerm(token string) (Term, error) {
	qualifier := QualifierPass
	switch {
	case strings.HasPrefix(token, "+"):
		qualifier, token = QualifierPass, token[1:]
	case strings.HasPrefix(token, "-"):
		qualifier, token = QualifierFail, token[1:]
	case strings.HasPrefix(token, "~"):
		qualifier, token = QualifierSoftFail, token[1:]
	case strings.HasPrefix(token, "?"):
		qualifier, token = QualifierNeutral, token[1:]
	}

	term := Term{Qualifier: qualifier}

	switch {
	case token == "all":
		term.Kind = TermAll

	case strings.HasPrefix(token, "include:"):
		term.Kind = TermInclude
		term.Value = strings.TrimPrefix(token, "include:")
		if term.Value == "" {
			return term, fmt.Errorf("include requires a domain")
		}

	case token == "a", strings.HasPrefix(token, "a:"), strings.HasPrefix(token, "a/"):
		term.Kind = TermA
		term.Value = strings.TrimPrefix(strings.TrimPrefix(token, "a"), ":")

	case token == "mx", strings.HasPrefix(token, "mx:"), strings.HasPrefix(token, "mx/"):
		term.Kind = TermMX
		term.Value = strings.TrimPrefix(strings.TrimPrefix(token, "mx"), ":")

	case token == "ptr", strings.HasPrefix(token, "ptr:"):
		term.Kind = TermPTR
		term.Value = strings.TrimPrefix(strings.TrimPrefix(token, "ptr"), ":")

	case strings.HasPrefix(token, "exists:"):
		term.Kind = TermExists
		term.Value = strings.TrimPrefix(token, "exists:")
		if term.Value == "" {
			return term, fmt.Errorf("exists requires a domain")
		}

	case strings.HasPrefix(token, "ip4:"):
		term.Kind = TermIP4
		term.Value = strings.TrimPrefix(token, "ip4:")
		if err := checkIPValue(term.Value, 32); err != nil {
			return term, fmt.Errorf("ip4: %v", err)
		}

	case strings.HasPrefix(token, "ip6:"):
		term.Kind = TermIP6
		term.Value = strings.TrimPrefix(token, "ip6:")
		if err := checkIPValue(term.Value, 128); err != nil {
			return term, fmt.Errorf("ip6: %v", err)
		}

	case strings.HasPrefix(token, "redirect="):
		term.Kind = TermRedirect
		term.Value = strings.TrimPrefix(token, "redirect=")
		if term.Value == "" {
			return term, fmt.Errorf("redirect requires a domain")
		}

	default:
		term.Kind = TermUnknown
		term.Value = token
	}

	return term, nil
}

// checkIPValue validates the address[/cidr] argument of ip4/ip6 terms.
func checkIPValue(value string, maxBits int) error {
	if value == "" {
		return fmt.Errorf("missing address")
	}

	addr := value
	if i := strings.IndexByte(value, '/'); i >= 0 {
		addr = value[:i]
		bits, err := strconv.Atoi(value[i+1:])
		if err != nil {
			return fmt.Errorf("invalid CIDR length %q", value[i+1:])
		}
		if bits < 0 || bits > maxBits {
			return fmt.Errorf("CIDR length %d out of range", bits)
		}
	}

	ip := net.ParseIP(addr)
	if ip == nil {
		return fmt.Errorf("invalid address %q", addr)
	}
	if maxBits == 32 && ip.To4() == nil {
		return fmt.Errorf("%q is not an IPv4 address", addr)
	}
	if maxBits == 128 && ip.To4() != nil {
		return fmt.Errorf("%q is not an IPv6 address", addr)
	}

	return nil
}
