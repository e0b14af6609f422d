package spf

import "testing"

func TestIsSPF(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want bool
	}{
		{name: "bare version", raw: "v=spf1", want: true},
		{name: "version with terms", raw: "v=spf1 -all", want: true},
		{name: "uppercase version", raw: "V=SPF1 -all", want: true},
		{name: "missing version", raw: "spf1 -all", want: false},
		{name: "version not a prefix", raw: "xv=spf1 -all", want: false},
		{name: "spf2", raw: "v=spf2 -all", want: false},
		{name: "version glued to term", raw: "v=spf1-all", want: false},
		{name: "unrelated TXT", raw: "google-site-verification=abc", want: false},
		{name: "empty", raw: "", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsSPF(tt.raw); got != tt.want {
				t.Errorf("IsSPF(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestParseRecordTerms(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []Term
	}{
		{
			name: "hard fail only",
			raw:  "v=spf1 -all",
			want: []Term{
				{Kind: TermVersion, Qualifier: QualifierPass, Value: "spf1"},
				{Kind: TermAll, Qualifier: QualifierFail},
			},
		},
		{
			name: "default qualifier is pass",
			raw:  "v=spf1 all",
			want: []Term{
				{Kind: TermVersion, Qualifier: QualifierPass, Value: "spf1"},
				{Kind: TermAll, Qualifier: QualifierPass},
			},
		},
		{
			name: "all qualifiers",
			raw:  "v=spf1 +mx ~include:a.example ?ptr -all",
			want: []Term{
				{Kind: TermVersion, Qualifier: QualifierPass, Value: "spf1"},
				{Kind: TermMX, Qualifier: QualifierPass},
				{Kind: TermInclude, Qualifier: QualifierSoftFail, Value: "a.example"},
				{Kind: TermPTR, Qualifier: QualifierNeutral},
				{Kind: TermAll, Qualifier: QualifierFail},
			},
		},
		{
			name: "a and mx with arguments",
			raw:  "v=spf1 a:mail.example.com mx:mx.example.com/24 a/28 -all",
			want: []Term{
				{Kind: TermVersion, Qualifier: QualifierPass, Value: "spf1"},
				{Kind: TermA, Qualifier: QualifierPass, Value: "mail.example.com"},
				{Kind: TermMX, Qualifier: QualifierPass, Value: "mx.example.com/24"},
				{Kind: TermA, Qualifier: QualifierPass, Value: "/28"},
				{Kind: TermAll, Qualifier: QualifierFail},
			},
		},
		{
			name: "addresses and redirect",
			raw:  "v=spf1 ip4:192.0.2.0/24 ip6:2001:db8::/32 redirect=spf.example.com",
			want: []Term{
				{Kind: TermVersion, Qualifier: QualifierPass, Value: "spf1"},
				{Kind: TermIP4, Qualifier: QualifierPass, Value: "192.0.2.0/24"},
				{Kind: TermIP6, Qualifier: QualifierPass, Value: "2001:db8::/32"},
				{Kind: TermRedirect, Qualifier: QualifierPass, Value: "spf.example.com"},
			},
		},
		{
			name: "exists mechanism",
			raw:  "v=spf1 exists:gate.example.net -all",
			want: []Term{
				{Kind: TermVersion, Qualifier: QualifierPass, Value: "spf1"},
				{Kind: TermExists, Qualifier: QualifierPass, Value: "gate.example.net"},
				{Kind: TermAll, Qualifier: QualifierFail},
			},
		},
		{
			name: "unknown modifier recorded",
			raw:  "v=spf1 exp=explain.example.com -all",
			want: []Term{
				{Kind: TermVersion, Qualifier: QualifierPass, Value: "spf1"},
				{Kind: TermUnknown, Qualifier: QualifierPass, Value: "exp=explain.example.com"},
				{Kind: TermAll, Qualifier: QualifierFail},
			},
		},
		{
			name: "mixed case normalized",
			raw:  "v=spf1 Include:Spf.Example.COM -ALL",
			want: []Term{
				{Kind: TermVersion, Qualifier: QualifierPass, Value: "spf1"},
				{Kind: TermInclude, Qualifier: QualifierPass, Value: "spf.example.com"},
				{Kind: TermAll, Qualifier: QualifierFail},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ParseRecord("example.com", tt.raw)
			if !r.SyntaxValid {
				t.Fatalf("SyntaxValid = false (%s), want true", r.SyntaxError)
			}
			if len(r.Terms) != len(tt.want) {
				t.Fatalf("got %d terms, want %d: %v", len(r.Terms), len(tt.want), r.Terms)
			}
			for i, want := range tt.want {
				if r.Terms[i] != want {
					t.Errorf("term %d = %+v, want %+v", i, r.Terms[i], want)
				}
			}
		})
	}
}

func TestParseRecordSyntaxErrors(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "missing version", raw: "include:a.example -all"},
		{name: "empty include", raw: "v=spf1 include: -all"},
		{name: "empty exists", raw: "v=spf1 exists: -all"},
		{name: "empty redirect", raw: "v=spf1 redirect="},
		{name: "empty ip4", raw: "v=spf1 ip4: -all"},
		{name: "bad ip4 address", raw: "v=spf1 ip4:999.0.2.1 -all"},
		{name: "ip6 address in ip4", raw: "v=spf1 ip4:2001:db8::1 -all"},
		{name: "bad ip4 cidr", raw: "v=spf1 ip4:192.0.2.0/33 -all"},
		{name: "bad ip6 address", raw: "v=spf1 ip6:zz::1 -all"},
		{name: "bad ip6 cidr", raw: "v=spf1 ip6:2001:db8::/129 -all"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := ParseRecord("example.com", tt.raw)
			if r.SyntaxValid {
				t.Error("SyntaxValid = true, want false")
			}
			if r.SyntaxError == "" {
				t.Error("SyntaxError empty, want diagnostic")
			}
		})
	}
}

func TestParseRecordUnknownNotError(t *testing.T) {
	r := ParseRecord("example.com", "v=spf1 frobnicate include:a.example -all")
	if !r.SyntaxValid {
		t.Fatalf("SyntaxValid = false (%s), want true", r.SyntaxError)
	}
	unknown := r.UnknownTerms()
	if len(unknown) != 1 || unknown[0].Value != "frobnicate" {
		t.Errorf("UnknownTerms() = %v, want one frobnicate", unknown)
	}
}

func TestParseRecordMissingVersionKeepsAnalyzing(t *testing.T) {
	r := ParseRecord("example.com", "spf1 -all")
	if r.SyntaxValid {
		t.Error("SyntaxValid = true, want false")
	}
	if r.HasVersion() {
		t.Error("HasVersion() = true, want false")
	}
	if r.Raw != "spf1 -all" {
		t.Errorf("Raw = %q, want original string", r.Raw)
	}
}

func TestLookupCost(t *testing.T) {
	costly := []TermKind{TermInclude, TermA, TermMX, TermPTR, TermExists}
	for _, k := range costly {
		if k.LookupCost() != 1 {
			t.Errorf("%s.LookupCost() = %d, want 1", k, k.LookupCost())
		}
	}
	free := []TermKind{TermAll, TermIP4, TermIP6, TermRedirect, TermVersion, TermUnknown}
	for _, k := range free {
		if k.LookupCost() != 0 {
			t.Errorf("%s.LookupCost() = %d, want 0", k, k.LookupCost())
		}
	}
}

func TestLastAll(t *testing.T) {
	r := ParseRecord("example.com", "v=spf1 ~all -all")
	all := r.LastAll()
	if all == nil {
		t.Fatal("LastAll() = nil, want term")
	}
	if all.Qualifier != QualifierFail {
		t.Errorf("LastAll().Qualifier = %q, want %q", all.Qualifier, QualifierFail)
	}

	if ParseRecord("example.com", "v=spf1 mx").LastAll() != nil {
		t.Error("LastAll() != nil for record without all")
	}
}

func TestTermString(t *testing.T) {
	tests := []struct {
		term Term
		want string
	}{
		{Term{Kind: TermAll, Qualifier: QualifierFail}, "-all"},
		{Term{Kind: TermAll, Qualifier: QualifierPass}, "all"},
		{Term{Kind: TermInclude, Qualifier: QualifierPass, Value: "a.example"}, "include:a.example"},
		{Term{Kind: TermRedirect, Qualifier: QualifierPass, Value: "b.example"}, "redirect=b.example"},
		{Term{Kind: TermVersion, Qualifier: QualifierPass, Value: "spf1"}, "v=spf1"},
		{Term{Kind: TermUnknown, Qualifier: QualifierPass, Value: "exp=x.example"}, "exp=x.example"},
	}
	for _, tt := range tests {
		if got := tt.term.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}
