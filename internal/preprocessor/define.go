package preprocessor

import (
	"fmt"
	"strings"

	"github.com/fwessels/macroexp/internal/macro"
	"github.com/fwessels/macroexp/internal/token"
)

// parseDefineDirective parses the argument of a #define. A nil definition
// means the signature was unusable; diagnostics may accompany a valid
// definition too.
func parseDefineDirective(arg string, loc macro.Location) (*macro.Definition, []macro.Diagnostic) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil, []macro.Diagnostic{parseFailure("", loc, "missing macro name")}
	}

	// parse name
	if !token.IsIdentStart(arg[0]) {
		return nil, []macro.Diagnostic{parseFailure("", loc, fmt.Sprintf("invalid macro name %q", excerpt(arg)))}
	}
	i := 1
	for i < len(arg) && token.IsIdentPart(arg[i]) {
		i++
	}
	name := arg[:i]
	rest := arg[i:]
	def := &macro.Definition{Name: name, Location: loc}

	// function-like only if '(' immediately follows name
	if strings.HasPrefix(rest, "(") {
		end, ok := scanParenEnd(rest)
		if !ok {
			return nil, []macro.Diagnostic{parseFailure(name, loc, fmt.Sprintf("unbalanced parentheses in parameter list of %s", name))}
		}
		params, variadic, err := parseParams(rest[1 : end-1])
		if err != nil {
			return nil, []macro.Diagnostic{parseFailure(name, loc, fmt.Sprintf("%s: %v", name, err))}
		}
		def.Kind = macro.FunctionLike
		def.Params = params
		def.Variadic = variadic
		rest = rest[end:]
	}

	def.Body = strings.TrimSpace(rest)
	var diags []macro.Diagnostic
	if !balancedParens(def.Body) {
		diags = append(diags, parseFailure(name, loc, fmt.Sprintf("unbalanced parentheses in body of %s", name)))
	}
	return def, diags
}

// excerpt renders source text for a diagnostic: whitespace runs become
// one space and directives are left out.
func excerpt(s string) string {
	toks := token.Lex(s)
	out := toks[:0]
	for i := 0; i < len(toks); i++ {
		if toks[i].IsPunct("#") {
			j := i + 1
			for j < len(toks) && toks[j].Kind == token.Whitespace {
				j++
			}
			if j < len(toks) && toks[j].Kind == token.Identifier && IsDirective("#"+toks[j].Text) {
				i = j
				continue
			}
		}
		out = append(out, toks[i])
	}
	return token.Compact(out)
}

func parseParams(paramStr string) (params []string, variadic bool, err error) {
	if strings.TrimSpace(paramStr) == "" {
		return []string{}, false, nil
	}
	raw := strings.Split(paramStr, ",")
	params = make([]string, 0, len(raw))
	seen := make(map[string]bool, len(raw))
	for i, r := range raw {
		p := strings.TrimSpace(r)
		last := i == len(raw)-1
		switch {
		case p == "...":
			if !last {
				return nil, false, fmt.Errorf("'...' must be the last parameter")
			}
			p = macro.VariadicParam
			variadic = true
		case strings.HasSuffix(p, "..."):
			p = strings.TrimSpace(strings.TrimSuffix(p, "..."))
			if !last {
				return nil, false, fmt.Errorf("variadic parameter %s... must be the last parameter", p)
			}
			variadic = true
		}
		if !token.IsIdentifier(p) {
			return nil, false, fmt.Errorf("invalid parameter %q", strings.TrimSpace(r))
		}
		if seen[p] {
			return nil, false, fmt.Errorf("duplicate parameter %s", p)
		}
		seen[p] = true
		params = append(params, p)
	}
	return params, variadic, nil
}

// scanParenEnd expects s starting with "(" and returns the index just past
// the matching ")".
func scanParenEnd(s string) (int, bool) {
	if s == "" || s[0] != '(' {
		return 0, false
	}
	depth := 0
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch == '(' {
			depth++
		} else if ch == ')' {
			depth--
			if depth == 0 {
				return i + 1, true
			}
		} else if ch == '"' || ch == '\'' {
			i = skipLiteral(s, i) - 1
		}
	}
	return 0, false
}

// balancedParens ignores parentheses inside string and char literals.
func balancedParens(s string) bool {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth < 0 {
				return false
			}
		case '"', '\'':
			i = skipLiteral(s, i) - 1
		}
	}
	return depth == 0
}

func parseFailure(name string, loc macro.Location, msg string) macro.Diagnostic {
	return macro.Diagnostic{
		Kind:     macro.ParseFailure,
		Macro:    name,
		Message:  msg,
		Location: loc,
	}
}
