package executor

import (
	"regexp"
)

// MaxSourceLength is the snippet length cap, counted the way a browser
// textbox counts characters (UTF-16 code units).
const MaxSourceLength = 5000

// Pattern is one denylist entry.
type Pattern struct {
	Name string
	re   *regexp.Regexp
}

// Expr returns the pattern's regular expression source.
func (p Pattern) Expr() string { return p.re.String() }

func pattern(name, expr string) Pattern {
	return Pattern{Name: name, re: regexp.MustCompile(expr)}
}

// DefaultDenylist is checked against the raw snippet text, case-sensitively,
// in this order.
//
// KNOWN LIMITATION:
// This is a syntactic filter, not a capability sandbox. It misses anything
// that builds a forbidden token at runtime ("ev" + "al"), reaches a global
// indirectly (globalThis["doc" + "ument"]), recurses without bound, or loops
// on a condition that is not the literal `true`. The sandbox environment is
// what actually limits what a snippet can reach.
var DefaultDenylist = []Pattern{
	pattern("document.", `document\.`),
	pattern("window.", `window\.`),
	pattern("location.", `location\.`),
	pattern("localStorage.", `localStorage\.`),
	pattern("sessionStorage.", `sessionStorage\.`),
	pattern("XMLHttpRequest", `XMLHttpRequest`),
	pattern("fetch(", `fetch\(`),
	pattern("import", `import\s+`),
	pattern("require(", `require\(`),
	pattern("eval(", `eval\(`),
	pattern("Function(", `Function\(`),
	pattern("while(true)", `while\s*\(\s*true\s*\)`),
	pattern("for(;;)", `for\s*\(\s*;\s*;\s*\)`),
}

// Validator rejects snippets before anything is evaluated.
// It holds no mutable state, so one instance can be shared.
type Validator struct {
	maxLength int
	denylist  []Pattern
}

// NewValidator returns a Validator with the default cap and denylist.
func NewValidator() *Validator {
	return &Validator{
		maxLength: MaxSourceLength,
		denylist:  DefaultDenylist,
	}
}

// Validate returns *TooLongError or *UnsafeCodeError, or nil if the snippet
// may run. The length check runs first; among patterns the first match in
// denylist order is reported.
func (v *Validator) Validate(source string) error {
	if n := SourceLength(source); n > v.maxLength {
		return &TooLongError{Length: n, Max: v.maxLength}
	}

	for _, p := range v.denylist {
		if p.re.MatchString(source) {
			return &UnsafeCodeError{Pattern: p.Name, Expr: p.Expr()}
		}
	}

	return nil
}

// SourceLength counts UTF-16 code units: runes outside the Basic
// Multilingual Plane count twice, like String.prototype.length.
func SourceLength(source string) int {
	n := 0
	for _, r := range source {
		if r >= 0x10000 {
			n += 2
		} else {
			n++
		}
	}
	return n
}
