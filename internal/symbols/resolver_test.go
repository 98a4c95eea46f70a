package symbols

import "testing"

func TestCanonical(t *testing.T) {
	cases := map[string]string{
		"eurusd":    "EURUSD",
		"EUR/USD":   "EURUSD",
		"eur_usd":   "EURUSD",
		" XAU-USD ": "XAUUSD",
		"EURUSD.m":  "EURUSDM",
	}
	for in, want := range cases {
		if got := Canonical(in); got != want {
			t.Fatalf("Canonical(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBaseStripsBrokerSuffix(t *testing.T) {
	cases := map[string]string{
		"EURUSDM":    "EURUSD",
		"GBPJPYPRO":  "GBPJPY",
		"XAUUSDC":    "XAUUSD",
		"EURUSD":     "EURUSD",
		"US30":       "US30", // not an FX pair, left alone
	}
	for in, want := range cases {
		if got := Base(in); got != want {
			t.Fatalf("Base(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestAcceptableHeuristics(t *testing.T) {
	r := New()
	accept := []string{"EURUSD", "eur/usd", "XAUUSD", "BTCUSD", "EURUSDm"}
	for _, s := range accept {
		if !r.Acceptable(s, false) {
			t.Fatalf("expected %q acceptable", s)
		}
	}
	reject := []string{"", "AAPL", "RANDOM", "FOO123"}
	for _, s := range reject {
		if r.Acceptable(s, false) {
			t.Fatalf("expected %q rejected", s)
		}
	}
}

func TestAcceptableAllowlistStrictAndRelaxed(t *testing.T) {
	r := New(WithAllowlist([]string{"EURUSD"}))
	if !r.Acceptable("EURUSDm", false) {
		t.Fatalf("suffixed allowlisted symbol should pass")
	}
	if r.Acceptable("GBPJPY", false) {
		t.Fatalf("non-allowlisted symbol should fail strict acceptance")
	}
	// smart relax: a symbol that is already streaming is accepted
	if !r.Acceptable("GBPJPY", true) {
		t.Fatalf("streaming symbol should pass relaxed acceptance")
	}
}

func TestResolveAlias(t *testing.T) {
	r := New(WithAliases(map[string]string{"GOLD": "XAUUSD"}))
	if got := r.Resolve("gold"); got != "XAUUSD" {
		t.Fatalf("Resolve(gold) = %q", got)
	}
	if !r.Acceptable("GOLD", false) {
		t.Fatalf("aliased symbol should be acceptable")
	}
}

func TestBestMatchScoring(t *testing.T) {
	r := New()
	candidates := []string{"GBPJPY", "EURUSDM", "EURUSDMICRO"}

	got, ok := r.BestMatch("EURUSD", candidates)
	if !ok || got != "EURUSDM" {
		t.Fatalf("BestMatch = %q ok=%v, want EURUSDM (shorter tie-break)", got, ok)
	}

	got, ok = r.BestMatch("eurusdm", candidates)
	if !ok || got != "EURUSDM" {
		t.Fatalf("exact match failed: %q ok=%v", got, ok)
	}

	if _, ok := r.BestMatch("USDJPY", candidates); ok {
		t.Fatalf("expected no match for USDJPY")
	}
}
