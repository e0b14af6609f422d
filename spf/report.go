package spf

import "time"

// Mocked for deterministic report timestamps in tests.
var timeNow = time.Now

// Baseline recommendations present in every report, issue-free or not.
// Issue-specific guidance travels inside each Issue; this top-level list
// is always exactly these three entries.
var baselineRecommendations = []string{
	"Adopt DKIM signing and a DMARC policy alongside SPF for full email authentication coverage.",
	"Monitor your deliverability and authentication reports to catch configuration drift early.",
	"Test SPF changes against a staging domain before publishing them on your production domain.",
}

// ValidationReport is the sole externally visible artifact of an
// analysis. Constructed once per request and never mutated after return.
// The JSON field names are the wire contract.
type ValidationReport struct {
	Domain          string   `json:"domain"`
	IsValid         bool     `json:"is_valid"`
	SPFRecord       string   `json:"spf_record"`
	DNSLookups      int      `json:"dns_lookups"`
	SyntaxValid     bool     `json:"syntax_valid"`
	HasSoftFail     bool     `json:"has_soft_fail"`
	HasHardFail     bool     `json:"has_hard_fail"`
	Issues          []Issue  `json:"issues"`
	Recommendations []string `json:"recommendations"`

	// Timestamp is the ISO-8601 generation time.
	Timestamp string `json:"timestamp"`
}

// BuildReport assembles the final report from a resolution trace and its
// detected issues. is_valid requires valid syntax and the absence of any
// error-severity issue; warnings alone do not invalidate.
func BuildReport(trace *Trace, issues []Issue) *ValidationReport {
	report := &ValidationReport{
		Domain:          trace.Domain,
		DNSLookups:      trace.Lookups,
		Issues:          make([]Issue, 0, len(issues)),
		Recommendations: append([]string(nil), baselineRecommendations...),
		Timestamp:       timeNow().UTC().Format(time.RFC3339),
	}
	report.Issues = append(report.Issues, issues...)

	if trace.Root != nil {
		report.SPFRecord = trace.Root.Raw
		report.SyntaxValid = trace.Root.SyntaxValid

		// hasHardFail and hasSoftFail derive from the last "all" term
		// of the root record alone; sub-records never contribute.
		if all := trace.Root.LastAll(); all != nil {
			report.HasHardFail = all.Qualifier == QualifierFail
			report.HasSoftFail = all.Qualifier == QualifierSoftFail
		}
	}

	report.IsValid = report.SyntaxValid
	for _, issue := range issues {
		if issue.Type == IssueError {
			report.IsValid = false
			break
		}
	}

	return report
}
