package spf

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/synqronlabs/spfaudit/dns"
)

func newTestAnalyzer(resolver dns.Resolver) *Analyzer {
	return New(Config{Resolver: resolver, Deadline: time.Second})
}

func TestAnalyzeValidSingleMechanism(t *testing.T) {
	analyzer := newTestAnalyzer(dns.MockResolver{
		TXT: map[string][]string{
			"example.com.": {"v=spf1 -all"},
		},
	})

	report, err := analyzer.Analyze(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if !report.IsValid {
		t.Error("IsValid = false, want true")
	}
	if report.DNSLookups != 0 {
		t.Errorf("DNSLookups = %d, want 0", report.DNSLookups)
	}
	if !report.HasHardFail {
		t.Error("HasHardFail = false, want true")
	}
	if report.HasSoftFail {
		t.Error("HasSoftFail = true, want false")
	}
	if len(report.Issues) != 0 {
		t.Errorf("Issues = %v, want empty", report.Issues)
	}
	if !report.SyntaxValid {
		t.Error("SyntaxValid = false, want true")
	}
	if report.SPFRecord != "v=spf1 -all" {
		t.Errorf("SPFRecord = %q, want raw record", report.SPFRecord)
	}
}

func TestAnalyzeSoftFailChain(t *testing.T) {
	// Root's own ~all wins even though both includes end in -all
	analyzer := newTestAnalyzer(dns.MockResolver{
		TXT: map[string][]string{
			"example.com.": {"v=spf1 include:a.com include:b.com ~all"},
			"a.com.":       {"v=spf1 -all"},
			"b.com.":       {"v=spf1 -all"},
		},
	})

	report, err := analyzer.Analyze(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if report.DNSLookups != 2 {
		t.Errorf("DNSLookups = %d, want 2", report.DNSLookups)
	}
	if !report.HasSoftFail {
		t.Error("HasSoftFail = false, want true")
	}
	if report.HasHardFail {
		t.Error("HasHardFail = true, want false")
	}
	if !report.IsValid {
		t.Error("IsValid = false, want true")
	}
}

func TestAnalyzeMissingVersionPrefix(t *testing.T) {
	// A TXT record without v=spf1 is never selected as SPF, so the
	// report reflects a missing record and is invalid regardless of
	// remaining content.
	analyzer := newTestAnalyzer(dns.MockResolver{
		TXT: map[string][]string{
			"example.com.": {"spf1 ip4:192.0.2.1 -all"},
		},
	})

	report, err := analyzer.Analyze(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if report.SyntaxValid {
		t.Error("SyntaxValid = true, want false")
	}
	if report.IsValid {
		t.Error("IsValid = true, want false")
	}
	if report.SPFRecord != "" {
		t.Errorf("SPFRecord = %q, want empty", report.SPFRecord)
	}
}

func TestAnalyzeBudgetBoundary(t *testing.T) {
	build := func(includes int) dns.MockResolver {
		record := "v=spf1"
		txt := map[string][]string{}
		for i := 0; i < includes; i++ {
			domain := "x" + strings.Repeat("i", i+1) + ".example"
			record += " include:" + domain
			txt[domain+"."] = []string{"v=spf1 -all"}
		}
		record += " -all"
		txt["example.com."] = []string{record}
		return dns.MockResolver{TXT: txt}
	}

	t.Run("ten lookups valid", func(t *testing.T) {
		report, err := newTestAnalyzer(build(10)).Analyze(context.Background(), "example.com")
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if !report.IsValid {
			t.Errorf("IsValid = false at 10 lookups, issues: %v", report.Issues)
		}
		if report.DNSLookups != 10 {
			t.Errorf("DNSLookups = %d, want 10", report.DNSLookups)
		}
	})

	t.Run("eleven lookups invalid", func(t *testing.T) {
		report, err := newTestAnalyzer(build(11)).Analyze(context.Background(), "example.com")
		if err != nil {
			t.Fatalf("Analyze() error = %v", err)
		}
		if report.IsValid {
			t.Error("IsValid = true at 11 lookups, want false")
		}
		if !hasMessage(report.Issues, "Too Many DNS Lookups") {
			t.Errorf("issues = %v, want Too Many DNS Lookups", messages(report.Issues))
		}
	})
}

func TestAnalyzeMissingAllWarningOnly(t *testing.T) {
	analyzer := newTestAnalyzer(dns.MockResolver{
		TXT: map[string][]string{
			"example.com.": {"v=spf1 ip4:192.0.2.0/24"},
		},
	})

	report, err := analyzer.Analyze(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if len(report.Issues) != 1 || report.Issues[0].Message != "Missing All Mechanism" {
		t.Fatalf("Issues = %v, want exactly the missing-all warning", messages(report.Issues))
	}
	if report.Issues[0].Type != IssueWarning {
		t.Error("missing-all issue is not a warning")
	}
	if !report.IsValid {
		t.Error("IsValid = false, want true (warnings alone do not invalidate)")
	}
}

func TestAnalyzeCycleSiblingsResolve(t *testing.T) {
	analyzer := newTestAnalyzer(dns.MockResolver{
		TXT: map[string][]string{
			"example.com.":  {"v=spf1 include:loop.example include:safe.example ~all"},
			"loop.example.": {"v=spf1 include:example.com -all"},
			"safe.example.": {"v=spf1 ip4:192.0.2.1 -all"},
		},
	})

	report, err := analyzer.Analyze(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if !hasMessage(report.Issues, "SPF Include Loop") {
		t.Errorf("issues = %v, want SPF Include Loop", messages(report.Issues))
	}
	if report.IsValid {
		t.Error("IsValid = true with cycle, want false")
	}
	// Sibling lookups still counted: loop.example, example.com (cycle
	// charge), safe.example
	if report.DNSLookups != 3 {
		t.Errorf("DNSLookups = %d, want 3", report.DNSLookups)
	}
}

func TestAnalyzeRecommendationsAlwaysThree(t *testing.T) {
	resolvers := map[string]dns.MockResolver{
		"issue-free": {
			TXT: map[string][]string{"example.com.": {"v=spf1 -all"}},
		},
		"missing record": {},
		"with warnings": {
			TXT: map[string][]string{"example.com.": {"v=spf1 mx"}},
		},
	}

	for name, resolver := range resolvers {
		t.Run(name, func(t *testing.T) {
			report, err := newTestAnalyzer(resolver).Analyze(context.Background(), "example.com")
			if err != nil {
				t.Fatalf("Analyze() error = %v", err)
			}
			if len(report.Recommendations) != 3 {
				t.Errorf("got %d recommendations, want exactly 3", len(report.Recommendations))
			}
		})
	}
}

func TestAnalyzeIdempotent(t *testing.T) {
	analyzer := newTestAnalyzer(dns.MockResolver{
		TXT: map[string][]string{
			"example.com.": {"v=spf1 include:a.com mx ~all"},
			"a.com.":       {"v=spf1 -all"},
		},
	})

	first, err := analyzer.Analyze(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}
	second, err := analyzer.Analyze(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	// Identical except timestamp
	first.Timestamp = ""
	second.Timestamp = ""
	a, _ := json.Marshal(first)
	b, _ := json.Marshal(second)
	if string(a) != string(b) {
		t.Errorf("reports differ for unchanged DNS state:\n%s\n%s", a, b)
	}
}

func TestAnalyzeInvalidDomain(t *testing.T) {
	analyzer := newTestAnalyzer(dns.MockResolver{})

	tests := []string{
		"",
		" ",
		"no_tld",
		"-bad.example.com",
		"exa mple.com",
		"192.0.2.7",
		strings.Repeat("a", 64) + ".example.com",
	}

	for _, domain := range tests {
		if _, err := analyzer.Analyze(context.Background(), domain); !errors.Is(err, ErrInvalidDomain) {
			t.Errorf("Analyze(%q) error = %v, want ErrInvalidDomain", domain, err)
		}
	}
}

func TestNormalizeDomain(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Example.COM", "example.com"},
		{"example.com.", "example.com"},
		{"  example.com ", "example.com"},
		{"bücher.example", "xn--bcher-kva.example"},
	}

	for _, tt := range tests {
		got, err := NormalizeDomain(tt.in)
		if err != nil {
			t.Errorf("NormalizeDomain(%q) error = %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("NormalizeDomain(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestAnalyzeJSONShape(t *testing.T) {
	analyzer := newTestAnalyzer(dns.MockResolver{
		TXT: map[string][]string{
			"example.com.": {"v=spf1 -all"},
		},
	})

	report, err := analyzer.Analyze(context.Background(), "example.com")
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	data, err := json.Marshal(report)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}

	wantFields := []string{
		"domain", "is_valid", "spf_record", "dns_lookups", "syntax_valid",
		"has_soft_fail", "has_hard_fail", "issues", "recommendations", "timestamp",
	}
	for _, field := range wantFields {
		if _, ok := decoded[field]; !ok {
			t.Errorf("wire field %q missing", field)
		}
	}
	if len(decoded) != len(wantFields) {
		t.Errorf("got %d wire fields, want %d", len(decoded), len(wantFields))
	}

	// issues must encode as [], not null
	if string(data) != "" && strings.Contains(string(data), `"issues":null`) {
		t.Error("issues encoded as null, want []")
	}

	// timestamp must be ISO-8601
	ts, _ := decoded["timestamp"].(string)
	if _, err := time.Parse(time.RFC3339, ts); err != nil {
		t.Errorf("timestamp %q is not RFC 3339: %v", ts, err)
	}
}

func TestAnalyzeAll(t *testing.T) {
	analyzer := newTestAnalyzer(dns.MockResolver{
		TXT: map[string][]string{
			"one.example.": {"v=spf1 -all"},
			"two.example.": {"v=spf1 ~all"},
		},
	})

	reports, err := analyzer.AnalyzeAll(context.Background(), []string{"one.example", "two.example", "three.example"}, 2)
	if err != nil {
		t.Fatalf("AnalyzeAll() error = %v", err)
	}

	if len(reports) != 3 {
		t.Fatalf("got %d reports, want 3", len(reports))
	}
	if reports[0].Domain != "one.example" || !reports[0].HasHardFail {
		t.Errorf("report 0 = %+v, want one.example hard fail", reports[0])
	}
	if reports[1].Domain != "two.example" || !reports[1].HasSoftFail {
		t.Errorf("report 1 = %+v, want two.example soft fail", reports[1])
	}
	if reports[2].IsValid {
		t.Error("report 2 valid, want invalid (missing record)")
	}
}

func TestAnalyzeAllInvalidInput(t *testing.T) {
	analyzer := newTestAnalyzer(dns.MockResolver{
		TXT: map[string][]string{
			"one.example.": {"v=spf1 -all"},
		},
	})

	reports, err := analyzer.AnalyzeAll(context.Background(), []string{"one.example", "not valid"}, 4)
	if !errors.Is(err, ErrInvalidDomain) {
		t.Fatalf("AnalyzeAll() error = %v, want ErrInvalidDomain", err)
	}
	if reports[0] == nil || reports[1] != nil {
		t.Error("want report for valid domain and nil for malformed one")
	}
}
