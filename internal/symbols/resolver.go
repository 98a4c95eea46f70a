package symbols

import (
	"regexp"
	"strings"
)

// Resolver normalizes broker symbol spellings and scores fuzzy matches
// against what a terminal actually streams. Brokers decorate the same
// instrument freely (EURUSDm, EURUSD.pro, EUR/USD), so every cache lookup
// goes through canonical form.
type Resolver struct {
	allowlist map[string]struct{}
	aliases   map[string]string // canonical alias -> canonical target
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithAllowlist restricts acceptance to the given symbols (canonical form).
func WithAllowlist(symbols []string) Option {
	return func(r *Resolver) {
		for _, s := range symbols {
			r.allowlist[Canonical(s)] = struct{}{}
		}
	}
}

// WithAliases maps broker spellings to canonical instruments.
func WithAliases(aliases map[string]string) Option {
	return func(r *Resolver) {
		for from, to := range aliases {
			r.aliases[Canonical(from)] = Canonical(to)
		}
	}
}

// New creates a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{
		allowlist: make(map[string]struct{}),
		aliases:   make(map[string]string),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

var (
	currencyCodes = map[string]struct{}{
		"USD": {}, "EUR": {}, "GBP": {}, "JPY": {}, "CHF": {}, "AUD": {},
		"NZD": {}, "CAD": {}, "SGD": {}, "HKD": {}, "NOK": {}, "SEK": {},
		"DKK": {}, "PLN": {}, "CZK": {}, "HUF": {}, "TRY": {}, "ZAR": {},
		"MXN": {}, "CNH": {},
	}
	metalRe  = regexp.MustCompile(`^(XAU|XAG|XPT|XPD)[A-Z]{3}$`)
	cryptoRe = regexp.MustCompile(`^(BTC|ETH|LTC|XRP|SOL|ADA|DOG|DOT|BNB)[A-Z]{3,4}$`)
	suffixRe = regexp.MustCompile(`(M|C|I|PRO|ECN|RAW|MINI|MICRO|CASH|SB)$`)
)

// Canonical uppercases a symbol and strips separators. Broker suffixes are
// not stripped here; suffix handling is the matcher's job.
func Canonical(symbol string) string {
	s := strings.ToUpper(strings.TrimSpace(symbol))
	s = strings.NewReplacer("/", "", "-", "", "_", "", ".", "", " ", "").Replace(s)
	return s
}

// Base strips a recognized broker suffix from a canonical symbol, when the
// remainder still looks like an instrument.
func Base(canonical string) string {
	if len(canonical) <= 6 {
		return canonical
	}
	trimmed := suffixRe.ReplaceAllString(canonical, "")
	if len(trimmed) >= 6 && looksLikeInstrument(trimmed) {
		return trimmed
	}
	return canonical
}

func looksLikeInstrument(s string) bool {
	if len(s) == 6 {
		_, a := currencyCodes[s[:3]]
		_, b := currencyCodes[s[3:]]
		if a && b {
			return true
		}
	}
	return metalRe.MatchString(s) || cryptoRe.MatchString(s)
}

// Acceptable decides whether a symbol may enter the caches. The heuristic
// passes FX pairs, metals, and major crypto; the allowlist and alias map pass
// explicitly configured instruments. alreadyStreaming is the smart-relax
// override: a symbol with a live quote is accepted even outside the
// allowlist, favoring availability over strict filtering.
func (r *Resolver) Acceptable(symbol string, alreadyStreaming bool) bool {
	c := Canonical(symbol)
	if c == "" {
		return false
	}
	if alreadyStreaming {
		return true
	}
	if _, ok := r.aliases[c]; ok {
		return true
	}
	if len(r.allowlist) > 0 {
		_, ok := r.allowlist[c]
		if !ok {
			_, ok = r.allowlist[Base(c)]
		}
		return ok
	}
	return looksLikeInstrument(c) || looksLikeInstrument(Base(c))
}

// Resolve maps a symbol through the alias table to canonical form.
func (r *Resolver) Resolve(symbol string) string {
	c := Canonical(symbol)
	if target, ok := r.aliases[c]; ok {
		return target
	}
	return c
}

// Match scores: higher is better, 0 means no match.
const (
	scoreExact     = 100
	scoreCanonical = 80
	scorePrefix    = 50
)

// BestMatch finds the candidate that best matches the requested symbol.
// Exact beats canonical-equal beats prefix containment; ties go to the
// shorter candidate so EURUSD prefers EURUSDm over EURUSDmicro.
func (r *Resolver) BestMatch(requested string, candidates []string) (string, bool) {
	want := r.Resolve(requested)
	if want == "" {
		return "", false
	}
	best := ""
	bestScore := 0
	for _, cand := range candidates {
		score := r.score(want, cand)
		if score == 0 {
			continue
		}
		if score > bestScore || (score == bestScore && len(cand) < len(best)) {
			best = cand
			bestScore = score
		}
	}
	return best, best != ""
}

func (r *Resolver) score(want, candidate string) int {
	if candidate == want {
		return scoreExact
	}
	c := r.Resolve(candidate)
	if c == want || Base(c) == want || c == Base(want) {
		return scoreCanonical
	}
	if strings.HasPrefix(c, want) || strings.HasPrefix(want, c) {
		return scorePrefix
	}
	return 0
}
