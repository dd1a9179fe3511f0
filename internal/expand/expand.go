// Package expand evaluates macro invocations against a definition table.
//
// Expansion follows the usual rescan model: a replacement is pushed back in
// front of the remaining input and read again, so a function-like macro at
// the end of a replacement may take its arguments from the text after the
// invocation. Every token remembers the chain of macros that produced it;
// a name already on its own chain is not expanded again.
package expand

import (
	"fmt"
	"strings"

	"github.com/fwessels/macroexp/internal/macro"
	"github.com/fwessels/macroexp/internal/parens"
	"github.com/fwessels/macroexp/internal/token"
)

// Mode selects how expansion steps are reported.
type Mode int

const (
	// SingleMacro records one step per invocation, innermost first.
	SingleMacro Mode = iota
	// SingleLayer records one pass per nesting level: every invocation
	// in the text is replaced with its arguments as written, and those
	// arguments are expanded by the next pass.
	SingleLayer
)

func (m Mode) String() string {
	if m == SingleLayer {
		return "single-layer"
	}
	return "single-macro"
}

// ParseMode accepts the names produced by Mode.String.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "single-macro":
		return SingleMacro, nil
	case "single-layer":
		return SingleLayer, nil
	}
	return SingleMacro, fmt.Errorf("unknown expansion mode %q", s)
}

func (m Mode) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(b []byte) error {
	v, err := ParseMode(string(b))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

const (
	DefaultMaxDepth = 30
	MinMaxDepth     = 5
	MaxMaxDepth     = 100
)

type Config struct {
	Mode Mode
	// MaxDepth caps expansion: the number of steps in SingleMacro mode,
	// the nesting level in SingleLayer mode. Zero means DefaultMaxDepth;
	// other values are clamped to [MinMaxDepth, MaxMaxDepth].
	MaxDepth    int
	StripParens bool
	// Symbols are extra names offered as suggestions for undefined
	// identifiers, next to the table's own macro names.
	Symbols []string
}

func DefaultConfig() Config {
	return Config{Mode: SingleMacro, MaxDepth: DefaultMaxDepth}
}

// Depth returns the effective depth cap.
func (c Config) Depth() int {
	switch {
	case c.MaxDepth == 0:
		return DefaultMaxDepth
	case c.MaxDepth < MinMaxDepth:
		return MinMaxDepth
	case c.MaxDepth > MaxMaxDepth:
		return MaxMaxDepth
	}
	return c.MaxDepth
}

// Step is one macro substitution. Before is the invocation as it reads
// once the earlier steps are applied, After the replacement before it
// was rescanned. Applying the steps in order to the input text yields
// the output.
type Step struct {
	Depth  int    `json:"depth"`
	Macro  string `json:"macro"`
	Before string `json:"before"`
	After  string `json:"after"`
}

// Result is the outcome of one expansion. It shares no memory with the
// table it was computed from.
type Result struct {
	Definition         *macro.Definition   `json:"definition,omitempty"`
	Steps              []Step              `json:"steps"`
	FinalText          string              `json:"finalText"`
	HasErrors          bool                `json:"hasErrors"`
	ErrorMessage       string              `json:"errorMessage,omitempty"`
	UndefinedMacros    []string            `json:"undefinedMacros,omitempty"`
	ConcatenatedTokens map[string]string   `json:"concatenatedTokens,omitempty"`
	Diagnostics        []macro.Diagnostic  `json:"diagnostics,omitempty"`
	Suggestions        map[string][]string `json:"suggestions,omitempty"`
}

// Errors returns the diagnostics that count as errors.
func (r *Result) Errors() []macro.Diagnostic {
	var out []macro.Diagnostic
	for _, d := range r.Diagnostics {
		if d.Kind.IsError() {
			out = append(out, d)
		}
	}
	return out
}

// Expand expands the macro name. For a function-like macro args are the
// raw argument texts, one per parameter; nil args show the body with every
// parameter bound to its own name. Args are ignored for object-like macros.
func Expand(name string, args []string, table macro.Table, cfg Config) *Result {
	e := newEngine(table, cfg)
	def, ok := e.lookup(name)
	if !ok {
		e.unresolved(name)
		return e.finish([]tok{{Token: identToken(name)}})
	}
	d := def.Clone()
	e.res.Definition = &d
	e.surfaceFailures(name)

	t := tok{Token: identToken(name)}
	if def.Kind != macro.FunctionLike {
		e.input = []tok{t}
		return e.finish(e.run(e.input))
	}

	selfBound := args == nil
	if selfBound {
		args = def.Params
		for _, p := range def.Params {
			e.selfBound[p] = true
		}
	}
	inner, spans := argumentTokens(args)
	if selfBound {
		for i := range inner {
			inner[i].noexpand = true
		}
	}
	e.first = &invocation{name: t, def: def, inner: inner, spans: spans}

	x := &expander{e: e}
	x.invoke(e.first)
	return e.finish(x.drain())
}

// argumentTokens lexes each argument on its own and joins them with
// commas, so an argument keeps its bounds whatever it contains.
func argumentTokens(args []string) ([]tok, [][2]int) {
	var inner []tok
	spans := make([][2]int, 0, len(args))
	for i, a := range args {
		if i > 0 {
			inner = append(inner, tok{Token: token.Token{Kind: token.Punctuator, Text: ","}})
		}
		start := len(inner)
		toks := lexToks(a, 0)
		if i > 0 && len(toks) > 0 {
			toks[0].space = true
		}
		inner = append(inner, toks...)
		spans = append(spans, [2]int{start, len(inner)})
	}
	if len(spans) == 0 {
		spans = append(spans, [2]int{0, 0})
	}
	return inner, spans
}

// ExpandText expands every invocation in text, e.g. "MAX(a, b) + 1".
func ExpandText(text string, table macro.Table, cfg Config) *Result {
	e := newEngine(table, cfg)
	e.input = lexToks(text, 0)
	return e.finish(e.run(e.input))
}

// finish settles the result once the output tokens are known.
func (e *engine) finish(out []tok) *Result {
	res := e.res
	res.FinalText = render(out)

	e.sweepUndefined(out)

	res.Steps = e.steps
	if e.cfg.Mode == SingleLayer {
		res.Steps = e.layerSteps()
	}
	if res.Steps == nil {
		res.Steps = []Step{}
	}
	if e.cfg.Mode == SingleMacro {
		for i := range res.Steps {
			res.Steps[i].Depth = i
		}
	}

	var msgs []string
	for _, d := range res.Diagnostics {
		if d.Kind.IsError() {
			res.HasErrors = true
			msgs = append(msgs, d.String())
		}
	}
	res.ErrorMessage = strings.Join(msgs, "; ")

	if e.cfg.StripParens {
		res.FinalText = parens.Normalize(res.FinalText)
	}
	return res
}
