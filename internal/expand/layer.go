package expand

import (
	"github.com/fwessels/macroexp/internal/macro"
	"github.com/fwessels/macroexp/internal/token"
)

// layerSteps traces the expansion of the engine's input breadth first.
// Each pass replaces the invocations of the current text, substituting
// arguments unexpanded. Tokens that came from an argument are pending: an
// invocation whose argument list holds a pending invocation waits a pass,
// while that pass expands the arguments. Diagnostics of the trace are
// dropped, the rescanning expansion has reported them already.
func (e *engine) layerSteps() []Step {
	tr := newEngine(e.table, e.cfg)
	tr.defs = e.defs

	var steps []Step
	toks, level := e.input, 0
	if e.first != nil {
		body, step := tr.replace(e.first)
		steps = append(steps, step)
		toks, level = body, 1
	}
	for ; level < e.maxDepth; level++ {
		next, taken := tr.layer(toks, level)
		if len(taken) == 0 {
			break
		}
		steps = append(steps, taken...)
		toks = next
	}
	return steps
}

// layer replaces the invocations in toks once.
func (e *engine) layer(toks []tok, level int) ([]tok, []Step) {
	var out []tok
	var steps []Step
	for i := 0; i < len(toks); i++ {
		t := toks[i]
		def, ok := e.replaceable(t)
		if !ok {
			out = append(out, t)
			continue
		}
		var inner []tok
		if def.Kind == macro.FunctionLike {
			if i+1 >= len(toks) || !toks[i+1].IsPunct("(") {
				out = append(out, t)
				continue
			}
			end := matchingParen(toks, i+1)
			if end == len(toks) {
				out = append(out, t)
				continue
			}
			inner = toks[i+2 : end]
			if e.pendingIn(inner) {
				args, taken := e.layer(inner, level)
				out = append(out, toks[i:i+2]...)
				out = append(out, args...)
				out = append(out, toks[end])
				steps = append(steps, taken...)
				i = end
				continue
			}
			i = end
		}
		body, step := e.replace(&invocation{name: t, def: def, inner: inner, spans: splitArgs(inner)})
		step.Depth = level
		steps = append(steps, step)
		out = append(out, body...)
	}
	return out, steps
}

func (e *engine) replaceable(t tok) (macro.Definition, bool) {
	if t.Kind != token.Identifier || t.noexpand {
		return macro.Definition{}, false
	}
	def, ok := e.lookup(t.Text)
	if !ok || onChain(t.chain, def.Name) {
		return macro.Definition{}, false
	}
	return def, true
}

// pendingIn reports whether toks hold an invocation taken from an
// argument.
func (e *engine) pendingIn(toks []tok) bool {
	for i, t := range toks {
		if !t.pending {
			continue
		}
		def, ok := e.replaceable(t)
		if !ok {
			continue
		}
		if def.Kind != macro.FunctionLike || i+1 < len(toks) && toks[i+1].IsPunct("(") {
			return true
		}
	}
	return false
}

// replace substitutes the body of inv with its arguments as written.
// Argument tokens keep their chain and become pending, the body's own
// tokens join the chain of the invocation.
func (e *engine) replace(inv *invocation) ([]tok, Step) {
	t, def := inv.name, &inv.def
	before := def.Name
	var args *boundArgs
	if def.Kind == macro.FunctionLike {
		args = e.bind(def, inv.inner, inv.spans, t.level)
		args.asWritten = true
		before = def.Name + "(" + render(inv.inner) + ")"
	}
	body := e.subst(def, args)
	chain := append(append([]string(nil), t.chain...), def.Name)
	for i := range body {
		if body[i].arg {
			body[i].arg = false
			body[i].pending = true
			continue
		}
		body[i].chain = extendChain(chain, body[i].chain)
		body[i].pending = t.pending
	}
	if len(body) > 0 {
		body[0].space = t.space
	}
	return body, Step{Macro: def.Name, Before: before, After: render(body)}
}
