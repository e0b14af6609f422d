package spf

import "github.com/synqronlabs/spfaudit/dns"

// IssueType ranks an issue.
type IssueType string

const (
	IssueError   IssueType = "error"
	IssueWarning IssueType = "warning"
)

// Severity values carried on issues.
const (
	SeverityError   = 3
	SeverityWarning = 2
)

// Issue is one detected misconfiguration. Immutable value, owned by the
// final report.
type Issue struct {
	// Type is "error" or "warning". Every error forces is_valid=false.
	Type IssueType `json:"type"`

	// Message is the short headline. Fixed per issue kind, except the
	// syntax issue which carries the parser's diagnostic.
	Message string `json:"message"`

	Description    string `json:"description"`
	Recommendation string `json:"recommendation"`

	// Severity is 3 for errors and 2 for warnings.
	Severity int `json:"severity"`
}

// issueKind keys the static catalog.
type issueKind int

const (
	kindMissingRecord issueKind = iota
	kindDNSFailure
	kindMissingVersion
	kindSyntaxError
	kindTooManyLookups
	kindMissingAll
	kindUnknownModifier
	kindMultipleRecords
	kindIncludeLoop
	kindDeadline
)

// catalog maps issue kinds to their fixed human-readable strings.
// Messages, descriptions, and recommendations are static lookups, not
// computed.
var catalog = map[issueKind]Issue{
	kindMissingRecord: {
		Type:           IssueError,
		Message:        "Missing SPF Record",
		Description:    "No v=spf1 TXT record was found for this domain.",
		Recommendation: "Publish an SPF TXT record such as \"v=spf1 mx -all\" listing your authorized mail senders.",
		Severity:       SeverityError,
	},
	kindDNSFailure: {
		Type:           IssueError,
		Message:        "DNS Lookup Failed",
		Description:    "A DNS query required for SPF analysis timed out or failed.",
		Recommendation: "Verify that the domain's nameservers are reachable and responding, then retry the analysis.",
		Severity:       SeverityError,
	},
	kindMissingVersion: {
		Type:           IssueError,
		Message:        "Missing SPF Version",
		Description:    "The record does not begin with the required v=spf1 version token.",
		Recommendation: "Start the record with \"v=spf1\" so receivers recognize it as an SPF policy.",
		Severity:       SeverityError,
	},
	kindSyntaxError: {
		Type:           IssueError,
		Message:        "SPF Syntax Error",
		Description:    "The record violates the SPF grammar and will be treated as a permanent error by receivers.",
		Recommendation: "Correct the record so every mechanism and modifier follows RFC 7208 syntax.",
		Severity:       SeverityError,
	},
	kindTooManyLookups: {
		Type:           IssueError,
		Message:        "Too Many DNS Lookups",
		Description:    "The record requires more than 10 DNS lookups to evaluate, which receivers treat as a permanent error.",
		Recommendation: "Flatten or remove include mechanisms until the chain needs at most 10 DNS lookups.",
		Severity:       SeverityError,
	},
	kindMissingAll: {
		Type:           IssueWarning,
		Message:        "Missing All Mechanism",
		Description:    "The record has no terminal \"all\" mechanism, leaving the policy for unmatched senders undefined.",
		Recommendation: "End the record with \"~all\" or \"-all\" to state how unlisted senders should be handled.",
		Severity:       SeverityWarning,
	},
	kindUnknownModifier: {
		Type:           IssueWarning,
		Message:        "Unknown Modifier or Mechanism",
		Description:    "The record contains a term outside the SPF vocabulary; receivers ignore terms they do not recognize.",
		Recommendation: "Remove unrecognized terms or replace them with standard SPF mechanisms.",
		Severity:       SeverityWarning,
	},
	kindMultipleRecords: {
		Type:           IssueError,
		Message:        "Multiple SPF Records",
		Description:    "The domain publishes more than one v=spf1 TXT record, which receivers treat as a permanent error.",
		Recommendation: "Merge all SPF mechanisms into a single v=spf1 TXT record.",
		Severity:       SeverityError,
	},
	kindIncludeLoop: {
		Type:           IssueError,
		Message:        "SPF Include Loop",
		Description:    "The include/redirect chain revisits a domain already in the chain, so evaluation cannot terminate.",
		Recommendation: "Remove the circular include or redirect so every chain resolves to a terminal record.",
		Severity:       SeverityError,
	},
	kindDeadline: {
		Type:           IssueError,
		Message:        "Resolution Deadline Exceeded",
		Description:    "SPF chain expansion did not finish within the analysis deadline; the report reflects a partial trace.",
		Recommendation: "Reduce the depth of the include chain or verify the responsiveness of all referenced nameservers.",
		Severity:       SeverityError,
	},
}

// Detect inspects a resolution trace for known misconfiguration
// patterns. Pure function; the emission order is fixed so reports are
// deterministic for unchanged DNS state.
func Detect(trace *Trace) []Issue {
	issues := make([]Issue, 0, 4)

	if trace.MissingRecord {
		issues = append(issues, catalog[kindMissingRecord])
	}

	if trace.RootFailed() {
		issue := catalog[kindDNSFailure]
		if err := trace.Failures[0].Err; dns.IsTimeout(err) {
			issue.Message = "DNS Lookup Timed Out"
		}
		issues = append(issues, issue)
	}

	root := trace.Root
	if root != nil {
		if !root.HasVersion() {
			issues = append(issues, catalog[kindMissingVersion])
		}

		if !root.SyntaxValid && root.HasVersion() {
			issue := catalog[kindSyntaxError]
			issue.Message = "SPF Syntax Error: " + root.SyntaxError
			issues = append(issues, issue)
		}

		if trace.Lookups > MaxLookups {
			issues = append(issues, catalog[kindTooManyLookups])
		}

		if root.LastAll() == nil {
			issues = append(issues, catalog[kindMissingAll])
		}

		if len(root.UnknownTerms()) > 0 {
			issues = append(issues, catalog[kindUnknownModifier])
		}
	}

	if trace.MultipleRecords {
		issues = append(issues, catalog[kindMultipleRecords])
	}

	if len(trace.Cycles) > 0 {
		issues = append(issues, catalog[kindIncludeLoop])
	}

	if trace.DeadlineExceeded {
		issues = append(issues, catalog[kindDeadline])
	}

	return issues
}
