package preprocessor

import (
	"strings"

	"github.com/fwessels/macroexp/internal/macro"
	"github.com/fwessels/macroexp/internal/token"
)

// knownTypes collects names introduced by typedef, struct, union, enum and
// class declarations, plus enumerator constants. Declarations may span
// several lines.
func knownTypes(code []sourceLine) []string {
	var b strings.Builder
	for _, ln := range code {
		b.WriteString(ln.text)
		b.WriteByte('\n')
	}
	var toks []token.Token
	for _, t := range token.Lex(b.String()) {
		if t.Kind != token.Whitespace {
			toks = append(toks, t)
		}
	}

	var names []string
	seen := make(map[string]bool)
	add := func(name string) {
		if name == "" || seen[name] || macro.IsBuiltin(name) {
			return
		}
		seen[name] = true
		names = append(names, name)
	}

	for i, t := range toks {
		if t.Kind != token.Identifier {
			continue
		}
		switch t.Text {
		case "typedef":
			add(typedefName(toks[i+1:]))
		case "struct", "union", "class":
			if i+1 < len(toks) && toks[i+1].Kind == token.Identifier {
				add(toks[i+1].Text)
			}
		case "enum":
			j := i + 1
			if j < len(toks) && toks[j].Is(token.Identifier, "class") {
				j++
			}
			if j < len(toks) && toks[j].Kind == token.Identifier {
				add(toks[j].Text)
				j++
			}
			for _, e := range enumerators(toks[j:]) {
				add(e)
			}
		}
	}
	return names
}

// typedefName returns the declared name of a typedef whose tokens follow
// the keyword: the function pointer name in "(*name)", otherwise the last
// identifier outside any braces, parentheses or brackets before ';'.
func typedefName(toks []token.Token) string {
	depth := 0
	last := ""
	for i, t := range toks {
		if t.Kind == token.Punctuator {
			switch t.Text {
			case "{", "(", "[":
				if t.Text == "(" && depth == 0 && i+2 < len(toks) &&
					toks[i+1].IsPunct("*") && toks[i+2].Kind == token.Identifier {
					return toks[i+2].Text
				}
				depth++
			case "}", ")", "]":
				depth--
			case ";":
				if depth <= 0 {
					return last
				}
			}
			continue
		}
		if depth == 0 && t.Kind == token.Identifier && !macro.IsKeyword(t.Text) {
			last = t.Text
		}
	}
	return last
}

// enumerators returns the constants of an enum body if toks starts with '{'.
func enumerators(toks []token.Token) []string {
	if len(toks) == 0 || !toks[0].IsPunct("{") {
		return nil
	}
	var out []string
	depth := 0
	expectName := true
	for _, t := range toks {
		if t.Kind == token.Punctuator {
			switch t.Text {
			case "{", "(", "[":
				depth++
				if depth == 1 {
					expectName = true
				}
			case "}", ")", "]":
				depth--
				if depth == 0 {
					return out
				}
			case ",":
				if depth == 1 {
					expectName = true
				}
			}
			continue
		}
		if depth == 1 && expectName && t.Kind == token.Identifier {
			out = append(out, t.Text)
			expectName = false
		}
	}
	return out
}
