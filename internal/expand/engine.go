package expand

import (
	"fmt"
	"strings"

	"github.com/fwessels/macroexp/internal/macro"
	"github.com/fwessels/macroexp/internal/token"
)

// tok is a token in flight. chain lists the macros whose replacements
// produced it, outermost first; level is the nesting level it was
// produced at.
type tok struct {
	token.Token
	space    bool // preceded by whitespace
	chain    []string
	level    int
	noexpand bool
	arg      bool // substituted from an argument as written
	pending  bool // argument text not expanded yet
}

func identToken(name string) token.Token {
	return token.Token{Kind: token.Identifier, Text: name}
}

// lexToks splits s into tokens, folding whitespace into the space flag of
// the token that follows it.
func lexToks(s string, level int) []tok {
	var out []tok
	space := false
	for _, t := range token.Lex(s) {
		if t.Kind == token.Whitespace {
			space = true
			continue
		}
		out = append(out, tok{Token: t, space: space, level: level})
		space = false
	}
	return out
}

// render serializes tokens, separating two tokens that would otherwise
// lex as one.
func render(toks []tok) string {
	var b strings.Builder
	for i, t := range toks {
		if i > 0 && (t.space || glues(toks[i-1].Token, t.Token)) {
			b.WriteByte(' ')
		}
		b.WriteString(t.Text)
	}
	return b.String()
}

func glues(a, b token.Token) bool {
	switch a.Kind {
	case token.StringLiteral, token.CharLiteral:
		return false
	}
	switch b.Kind {
	case token.StringLiteral, token.CharLiteral:
		return false
	}
	return len(token.Lex(a.Text+b.Text)) < 2
}

func onChain(chain []string, name string) bool {
	for _, c := range chain {
		if c == name {
			return true
		}
	}
	return false
}

// extendChain returns base followed by the names of extra not yet in it.
func extendChain(base, extra []string) []string {
	out := append([]string(nil), base...)
	for _, c := range extra {
		if !onChain(out, c) {
			out = append(out, c)
		}
	}
	return out
}

type lookupEntry struct {
	def macro.Definition
	ok  bool
}

// invocation is a macro name with its argument tokens, split at the
// top-level commas.
type invocation struct {
	name  tok
	def   macro.Definition
	inner []tok
	spans [][2]int
}

// engine is the state of one Expand call.
type engine struct {
	table    macro.Table
	cfg      Config
	maxDepth int
	res      *Result

	defs      map[string]lookupEntry
	steps     []Step
	input     []tok
	first     *invocation
	admitted  int
	seen      map[string]bool // diagnostic dedupe
	invoked   map[string]bool
	selfBound map[string]bool
	undefined map[string]bool
}

func newEngine(table macro.Table, cfg Config) *engine {
	return &engine{
		table:     table,
		cfg:       cfg,
		maxDepth:  cfg.Depth(),
		res:       &Result{},
		defs:      make(map[string]lookupEntry),
		seen:      make(map[string]bool),
		invoked:   make(map[string]bool),
		selfBound: make(map[string]bool),
		undefined: make(map[string]bool),
	}
}

func (e *engine) lookup(name string) (macro.Definition, bool) {
	if l, ok := e.defs[name]; ok {
		return l.def, l.ok
	}
	def, ok := e.table.Active(name)
	e.defs[name] = lookupEntry{def, ok}
	return def, ok
}

func (e *engine) location(name string) macro.Location {
	def, _ := e.lookup(name)
	return def.Location
}

func (e *engine) diagnose(d macro.Diagnostic) {
	key := d.Kind.String() + "\x00" + d.Macro + "\x00" + d.Message
	if e.seen[key] {
		return
	}
	e.seen[key] = true
	e.res.Diagnostics = append(e.res.Diagnostics, d)
}

func (e *engine) failures(name string) []macro.Diagnostic {
	if src, ok := e.table.(macro.ParseFailureSource); ok {
		return src.ParseFailures(name)
	}
	return nil
}

// surfaceFailures copies extraction problems of name into the result.
func (e *engine) surfaceFailures(name string) bool {
	diags := e.failures(name)
	for _, d := range diags {
		e.diagnose(d)
	}
	return len(diags) > 0
}

// unresolved handles a requested name without definition.
func (e *engine) unresolved(name string) {
	if e.surfaceFailures(name) {
		return
	}
	if macro.IsBuiltin(name) || e.table.IsKnownType(name) {
		return
	}
	e.undefined[name] = true
}

// ---------------- Rescanning ----------------

// expander reads tokens from a stack of chunks. A replacement is pushed
// as a new chunk and read before the rest of the input.
type expander struct {
	e     *engine
	stack []inputChunk
}

type inputChunk struct {
	toks []tok
	i    int
}

// run expands toks completely.
func (e *engine) run(toks []tok) []tok {
	x := &expander{e: e}
	x.push(toks)
	return x.drain()
}

// drain expands and returns everything left on the stack.
func (x *expander) drain() []tok {
	var out []tok
	for {
		t, ok := x.next()
		if !ok {
			return out
		}
		if t.Kind == token.Identifier && x.expandMacro(t) {
			continue
		}
		out = append(out, t)
	}
}

func (x *expander) push(toks []tok) {
	if len(toks) > 0 {
		x.stack = append(x.stack, inputChunk{toks: toks})
	}
}

func (x *expander) next() (tok, bool) {
	for len(x.stack) > 0 {
		top := &x.stack[len(x.stack)-1]
		if top.i >= len(top.toks) {
			x.stack = x.stack[:len(x.stack)-1]
			continue
		}
		t := top.toks[top.i]
		top.i++
		return t, true
	}
	return tok{}, false
}

func (x *expander) peekIs(p string) bool {
	for i := len(x.stack) - 1; i >= 0; i-- {
		chunk := x.stack[i]
		if chunk.i < len(chunk.toks) {
			return chunk.toks[chunk.i].IsPunct(p)
		}
	}
	return false
}

// readArgs consumes the parenthesized argument list after a function-like
// macro name. It returns the tokens between the parentheses. If the input
// ends first, everything read is pushed back and ok is false.
func (x *expander) readArgs() (inner []tok, ok bool) {
	open, _ := x.next()
	consumed := []tok{open}
	depth := 1
	for {
		t, more := x.next()
		if !more {
			x.push(consumed)
			return nil, false
		}
		consumed = append(consumed, t)
		switch {
		case t.IsPunct("("):
			depth++
		case t.IsPunct(")"):
			depth--
			if depth == 0 {
				return inner, true
			}
		}
		inner = append(inner, t)
	}
}

// expandMacro replaces the invocation starting at t. It reports false when
// t stays in the output as written.
func (x *expander) expandMacro(t tok) bool {
	e := x.e
	if t.noexpand {
		return false
	}
	def, ok := e.lookup(t.Text)
	if !ok {
		return false
	}
	name := def.Name

	// a function-like name without arguments is an ordinary identifier
	if def.Kind == macro.FunctionLike && !x.peekIs("(") {
		return false
	}

	if onChain(t.chain, name) {
		chain := append(append([]string(nil), t.chain...), name)
		e.diagnose(macro.Diagnostic{
			Kind:     macro.CircularReference,
			Macro:    name,
			Message:  "circular reference: " + macro.FormatChain(chain),
			Location: def.Location,
			Chain:    chain,
		})
		return false
	}

	if e.capped(t) {
		parent := name
		if len(t.chain) > 0 {
			parent = t.chain[len(t.chain)-1]
		}
		e.diagnose(macro.Diagnostic{
			Kind:     macro.MaxDepthExceeded,
			Macro:    parent,
			Message:  fmt.Sprintf("maximum expansion depth %d exceeded at %s", e.maxDepth, parent),
			Location: e.location(parent),
			Chain:    append(append([]string(nil), t.chain...), name),
		})
		return false
	}

	var inner []tok
	if def.Kind == macro.FunctionLike {
		var ok bool
		if inner, ok = x.readArgs(); !ok {
			return false
		}
	}
	x.invoke(&invocation{name: t, def: def, inner: inner, spans: splitArgs(inner)})
	return true
}

// invoke pushes the substituted body of inv and records the step.
func (x *expander) invoke(inv *invocation) {
	e := x.e
	t, def := inv.name, &inv.def
	name := def.Name

	var args *boundArgs
	if def.Kind == macro.FunctionLike {
		args = e.bind(def, inv.inner, inv.spans, t.level+1)
	}
	e.admitted++
	e.invoked[name] = true

	body := e.subst(def, args)
	// arguments expanded by subst already have their own steps, so the
	// invocation is shown with them in place
	before := name
	if args != nil {
		before = name + "(" + render(args.written()) + ")"
	}
	chain := append(append([]string(nil), t.chain...), name)
	for i := range body {
		body[i].chain = extendChain(chain, body[i].chain)
		body[i].level = t.level + 1
	}
	if len(body) > 0 {
		body[0].space = t.space
	}

	e.steps = append(e.steps, Step{Macro: name, Before: before, After: render(body)})
	x.push(body)
}

// capped reports whether expanding t would pass the depth cap.
func (e *engine) capped(t tok) bool {
	if e.cfg.Mode == SingleLayer {
		return t.level >= e.maxDepth
	}
	return e.admitted >= e.maxDepth
}
