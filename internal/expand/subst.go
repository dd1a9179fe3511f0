package expand

import (
	"fmt"
	"strings"

	"github.com/fwessels/macroexp/internal/macro"
	"github.com/fwessels/macroexp/internal/token"
)

// boundArgs maps parameter names to argument tokens. Expanded arguments
// are computed on first use. With asWritten set, ordinary parameters take
// their arguments unexpanded as well.
type boundArgs struct {
	raw       map[string][]tok
	expanded  map[string][]tok
	variadic  string
	fixed     []string
	all       []tok
	spans     [][2]int
	asWritten bool
}

func (a *boundArgs) param(t tok) ([]tok, bool) {
	if a == nil || t.Kind != token.Identifier {
		return nil, false
	}
	raw, ok := a.raw[t.Text]
	return raw, ok
}

func (a *boundArgs) isVariadic(t tok) bool {
	return a != nil && a.variadic != "" && t.Is(token.Identifier, a.variadic)
}

// splitArgs returns the [start, end) spans of the top-level comma
// separated arguments in inner.
func splitArgs(inner []tok) [][2]int {
	var spans [][2]int
	depth, start := 0, 0
	for i, t := range inner {
		switch {
		case t.IsPunct("("):
			depth++
		case t.IsPunct(")"):
			depth--
		case t.IsPunct(",") && depth == 0:
			spans = append(spans, [2]int{start, i})
			start = i + 1
		}
	}
	return append(spans, [2]int{start, len(inner)})
}

func plural(n int, word string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, word)
	}
	return fmt.Sprintf("%d %ss", n, word)
}

// bind assigns the argument tokens to the parameters of def; spans are
// the arguments within inner. A count mismatch is reported and binding
// proceeds with what is there.
func (e *engine) bind(def *macro.Definition, inner []tok, spans [][2]int, level int) *boundArgs {
	args := make([]tok, len(inner))
	for i, t := range inner {
		t.level = level
		args[i] = t
	}
	n := len(spans)
	if n == 1 && len(args) == 0 && len(def.Params) == 0 {
		n = 0
	}

	fixed := def.FixedParams()
	var msg string
	switch {
	case def.Variadic && n < len(fixed):
		msg = fmt.Sprintf("macro %s expects at least %s, got %d", def.Name, plural(len(fixed), "argument"), n)
	case !def.Variadic && n != len(def.Params):
		msg = fmt.Sprintf("macro %s expects %s, got %d", def.Name, plural(len(def.Params), "argument"), n)
	}
	if msg != "" {
		e.diagnose(macro.Diagnostic{
			Kind:     macro.ArgumentCountMismatch,
			Macro:    def.Name,
			Message:  msg,
			Location: def.Location,
		})
	}

	a := &boundArgs{
		raw:      make(map[string][]tok, len(def.Params)),
		expanded: make(map[string][]tok),
		variadic: def.VariadicName(),
		fixed:    fixed,
		all:      args,
		spans:    spans,
	}
	for i, p := range fixed {
		if i < n {
			a.raw[p] = args[spans[i][0]:spans[i][1]]
		} else {
			a.raw[p] = nil
		}
	}
	if def.Variadic {
		// the variadic parameter takes the rest, commas included
		if n > len(fixed) {
			a.raw[a.variadic] = args[spans[len(fixed)][0]:]
		} else {
			a.raw[a.variadic] = nil
		}
	}
	return a
}

// expandedArg returns the fully expanded form of a parameter's argument.
func (e *engine) expandedArg(a *boundArgs, name string) []tok {
	if exp, ok := a.expanded[name]; ok {
		return exp
	}
	exp := e.run(a.raw[name])
	a.expanded[name] = exp
	return exp
}

// written returns the argument list with each argument that has been
// expanded replaced by its expansion, the separating commas kept.
func (a *boundArgs) written() []tok {
	var out []tok
	for i, sp := range a.spans {
		if i > 0 {
			out = append(out, a.all[sp[0]-1])
		}
		space := sp[0] < sp[1] && a.all[sp[0]].space
		if a.variadic != "" && i == len(a.fixed) {
			if exp, ok := a.expanded[a.variadic]; ok {
				return append(out, respace(exp, space)...)
			}
		}
		if i < len(a.fixed) {
			if exp, ok := a.expanded[a.fixed[i]]; ok {
				out = append(out, respace(exp, space)...)
				continue
			}
		}
		out = append(out, a.all[sp[0]:sp[1]]...)
	}
	return out
}

// respace copies toks, giving the first token the spacing of the
// parameter it replaces.
func respace(toks []tok, space bool) []tok {
	out := append([]tok(nil), toks...)
	if len(out) > 0 {
		out[0].space = space
	}
	return out
}

// subst replaces the parameters in the body of def with their arguments
// and applies the # and ## operators. args is nil for object-like macros.
func (e *engine) subst(def *macro.Definition, args *boundArgs) []tok {
	return e.substTokens(def, lexToks(def.Body, 0), args)
}

func (e *engine) substTokens(def *macro.Definition, body []tok, args *boundArgs) []tok {
	var out []tok
	// placemarker is set while the left operand of a pending ## is empty
	placemarker := false

	for i := 0; i < len(body); i++ {
		t := body[i]

		// "#" followed by a parameter is replaced with the stringized argument
		if t.IsPunct("#") && i+1 < len(body) {
			if raw, ok := args.param(body[i+1]); ok {
				s := stringize(raw)
				s.space = t.space
				out = append(out, s)
				placemarker = false
				i++
				continue
			}
		}

		// [GNU] ", ## __VA_ARGS__" drops the comma when there are no
		// variadic arguments; otherwise it is an ordinary comma
		if t.IsPunct(",") && i+2 < len(body) && body[i+1].IsPunct("##") && args.isVariadic(body[i+2]) {
			if len(args.raw[args.variadic]) == 0 {
				i += 2
				continue
			}
			out = append(out, t)
			placemarker = false
			i++
			continue
		}

		if t.IsPunct("##") {
			if i+1 >= len(body) {
				continue
			}
			i++
			operand, ok := args.param(body[i])
			if !ok {
				operand = body[i : i+1]
			}
			switch {
			case len(operand) == 0:
				// an empty right operand leaves the left one alone
			case placemarker || len(out) == 0:
				out = append(out, respace(operand, body[i].space)...)
				placemarker = false
			default:
				out = e.paste(out, operand, def.Name)
			}
			continue
		}

		// a parameter next to ## is substituted unexpanded
		if raw, ok := args.param(t); ok && i+1 < len(body) && body[i+1].IsPunct("##") {
			out = append(out, respace(raw, t.space)...)
			placemarker = len(raw) == 0
			continue
		}

		if t.Is(token.Identifier, "__VA_OPT__") && args != nil && args.variadic != "" &&
			i+1 < len(body) && body[i+1].IsPunct("(") {
			end := matchingParen(body, i+1)
			if len(args.raw[args.variadic]) > 0 {
				out = append(out, e.substTokens(def, body[i+2:end], args)...)
			}
			placemarker = false
			i = end
			continue
		}

		if raw, ok := args.param(t); ok {
			if args.asWritten {
				for _, r := range respace(raw, t.space) {
					r.arg = true
					out = append(out, r)
				}
				placemarker = false
				continue
			}
			out = append(out, respace(e.expandedArg(args, t.Text), t.space)...)
			placemarker = false
			continue
		}

		out = append(out, t)
		placemarker = false
	}
	return out
}

// matchingParen returns the index of the ")" closing body[open], or
// len(body) when it is missing.
func matchingParen(body []tok, open int) int {
	depth := 0
	for i := open; i < len(body); i++ {
		switch {
		case body[i].IsPunct("("):
			depth++
		case body[i].IsPunct(")"):
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return len(body)
}

var stringEscaper = strings.NewReplacer(`\`, `\\`, `"`, `\"`)

// stringize turns argument tokens into a string literal. Whitespace runs
// become one space and quotes and backslashes are escaped.
func stringize(raw []tok) tok {
	text := `"` + stringEscaper.Replace(render(raw)) + `"`
	return tok{Token: token.Token{Kind: token.StringLiteral, Text: text}}
}

// paste glues the first operand token onto the last token of out and
// re-lexes the result.
func (e *engine) paste(out, operand []tok, macroName string) []tok {
	lhs := out[len(out)-1]
	text := lhs.Text + operand[0].Text
	pasted := lexToks(text, 0)
	if len(pasted) == 0 {
		// "/" ## "/" lexes as a comment; keep both tokens
		return append(out, operand...)
	}
	pasted[0].space = lhs.space
	if len(pasted) == 1 {
		if e.res.ConcatenatedTokens == nil {
			e.res.ConcatenatedTokens = make(map[string]string)
		}
		e.res.ConcatenatedTokens[text] = macroName
	}
	out = append(out[:len(out)-1], pasted...)
	return append(out, operand[1:]...)
}
