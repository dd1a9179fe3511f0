package expand

import (
	"sort"

	"github.com/fwessels/macroexp/internal/macro"
	"github.com/fwessels/macroexp/internal/suggest"
	"github.com/fwessels/macroexp/internal/token"
)

// sweepUndefined collects identifiers left in the output that look like
// macros but resolve to nothing, and attaches suggestions.
func (e *engine) sweepUndefined(out []tok) {
	for i, t := range out {
		if t.Kind != token.Identifier {
			continue
		}
		name := t.Text
		if e.undefined[name] || e.invoked[name] || e.selfBound[name] {
			continue
		}
		// member names after . and ->
		if i > 0 && (out[i-1].IsPunct(".") || out[i-1].IsPunct("->")) {
			continue
		}
		if macro.IsBuiltin(name) || !macro.LooksLikeMacro(name) {
			continue
		}
		if _, ok := e.lookup(name); ok || e.table.IsKnownType(name) {
			continue
		}
		if e.surfaceFailures(name) {
			continue
		}
		e.undefined[name] = true
	}
	if len(e.undefined) == 0 {
		return
	}

	names := make([]string, 0, len(e.undefined))
	for n := range e.undefined {
		names = append(names, n)
	}
	sort.Strings(names)
	e.res.UndefinedMacros = names

	candidates := e.candidates()
	for _, n := range names {
		sugg := suggest.Suggest(n, candidates)
		if len(sugg) > 0 {
			if e.res.Suggestions == nil {
				e.res.Suggestions = make(map[string][]string)
			}
			e.res.Suggestions[n] = sugg
		}
		e.diagnose(macro.Diagnostic{
			Kind:        macro.UndefinedIdentifier,
			Macro:       n,
			Message:     "undefined identifier " + n,
			Suggestions: sugg,
		})
	}
}

func (e *engine) candidates() []string {
	var names []string
	if l, ok := e.table.(macro.NameLister); ok {
		names = append(names, l.Names()...)
	}
	return append(names, e.cfg.Symbols...)
}
