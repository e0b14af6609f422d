// Package spf implements Sender Policy Framework (SPF) record validation
// and analysis.
//
// Given a domain, the analyzer resolves its SPF TXT record, recursively
// expands include and redirect chains under the RFC 7208 limit of 10
// DNS-querying terms, detects common misconfigurations, and produces a
// deterministic ValidationReport with actionable recommendations.
//
// This package provides:
//   - SPF record parsing into typed mechanism/modifier terms
//   - Recursive include/redirect expansion with budget and cycle tracking
//   - A catalog of typed, severity-ranked misconfiguration issues
//   - A structured JSON report with a stable wire shape
//   - MessagePack serialization of reports
//
// Basic usage:
//
//	resolver := dns.NewResolver(dns.ResolverConfig{
//	    Nameservers: []string{"8.8.8.8:53"},
//	    DNSSEC:      true,
//	})
//
//	analyzer := spf.New(spf.Config{Resolver: resolver})
//
//	report, err := analyzer.Analyze(ctx, "example.com")
//	if err != nil {
//	    // Only malformed domain input produces an error; resolution
//	    // problems are reported as issues inside the report.
//	}
//
//	if !report.IsValid {
//	    for _, issue := range report.Issues {
//	        fmt.Println(issue.Message, issue.Recommendation)
//	    }
//	}
//
// References:
//   - RFC 7208: Sender Policy Framework (SPF)
package spf
