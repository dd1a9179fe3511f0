// Package parens removes redundant parentheses from expanded macro text.
//
// Normalize is idempotent. A group survives when it is call or subscript
// syntax, when it holds a top-level operator or comma, or when it is the
// single wrapping layer kept around an expression that mixes operators and
// identifiers. String and character literals are never looked into.
package parens

import (
	"strings"

	"github.com/fwessels/macroexp/internal/token"
)

// Normalize returns text with redundant parentheses removed.
func Normalize(text string) string {
	s := strings.TrimSpace(text)
	stripped := false
	for {
		for isWrapped(s) {
			s = strings.TrimSpace(s[1 : len(s)-1])
			stripped = true
		}
		s = normalizeGroups(s)
		if !isWrapped(s) {
			break
		}
	}
	if mixesOperatorsAndIdentifiers(s) && (stripped || !strings.HasPrefix(s, "(")) {
		s = "(" + s + ")"
	}
	return s
}

func isOperator(ch byte) bool {
	return strings.IndexByte("+-*/%<>=&|^!", ch) >= 0
}

// isWrapped reports whether one parenthesis pair spans all of s. A pair
// around a comma list is not a redundant wrapper.
func isWrapped(s string) bool {
	if len(s) < 2 || s[0] != '(' {
		return false
	}
	end, ok := matchParen(s, 0)
	return ok && end == len(s)-1 && !hasTopLevel(s[1:end], func(ch byte) bool { return ch == ',' })
}

// matchParen returns the index of the ')' matching the '(' at s[i].
func matchParen(s string, i int) (int, bool) {
	depth := 0
	for j := i; j < len(s); j++ {
		switch s[j] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return j, true
			}
		case '"', '\'':
			j = token.SkipLiteral(s, j) - 1
		}
	}
	return 0, false
}

// normalizeGroups rewrites every balanced group in s, keeping the
// parentheses only where they carry meaning.
func normalizeGroups(s string) string {
	var b strings.Builder
	for i := 0; i < len(s); {
		ch := s[i]
		switch {
		case ch == '"' || ch == '\'':
			j := token.SkipLiteral(s, i)
			b.WriteString(s[i:j])
			i = j
		case ch == '(':
			end, ok := matchParen(s, i)
			if !ok {
				b.WriteString(s[i:])
				return b.String()
			}
			inner := reduce(s[i+1 : end])
			if keepsParens(b.String(), inner) {
				b.WriteByte('(')
				b.WriteString(inner)
				b.WriteByte(')')
			} else if inner != "" {
				if prev := lastByte(b.String()); token.IsIdentPart(prev) && token.IsIdentPart(inner[0]) {
					b.WriteByte(' ')
				}
				b.WriteString(inner)
				if end+1 < len(s) && token.IsIdentPart(s[end+1]) && token.IsIdentPart(inner[len(inner)-1]) {
					b.WriteByte(' ')
				}
			}
			i = end + 1
		default:
			b.WriteByte(ch)
			i++
		}
	}
	return b.String()
}

// reduce normalizes the content of a group and drops the layers that
// merely wrap it again.
func reduce(inner string) string {
	s := strings.TrimSpace(normalizeGroups(inner))
	for isWrapped(s) {
		s = strings.TrimSpace(normalizeGroups(s[1 : len(s)-1]))
	}
	return s
}

func keepsParens(prefix, inner string) bool {
	prev := lastNonSpace(prefix)
	if token.IsIdentPart(prev) || prev == '[' || prev == ')' || prev == ']' {
		return true
	}
	return hasTopLevel(inner, func(ch byte) bool { return isOperator(ch) || ch == ',' })
}

// hasTopLevel reports whether a byte outside any group and literal
// satisfies match.
func hasTopLevel(s string, match func(byte) bool) bool {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch ch := s[i]; {
		case ch == '"' || ch == '\'':
			i = token.SkipLiteral(s, i) - 1
		case ch == '(':
			depth++
		case ch == ')':
			depth--
		case depth == 0 && match(ch):
			return true
		}
	}
	return false
}

func mixesOperatorsAndIdentifiers(s string) bool {
	return hasTopLevel(s, isOperator) && hasIdentifier(s)
}

// hasIdentifier skips literals and pp-numbers such as 1e5 or 0x1f.
func hasIdentifier(s string) bool {
	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case ch == '"' || ch == '\'':
			i = token.SkipLiteral(s, i) - 1
		case token.IsDigit(ch):
			for i+1 < len(s) && (token.IsIdentPart(s[i+1]) || s[i+1] == '.') {
				i++
			}
		case token.IsIdentStart(ch):
			return true
		}
	}
	return false
}

func lastByte(s string) byte {
	if s == "" {
		return 0
	}
	return s[len(s)-1]
}

func lastNonSpace(s string) byte {
	return lastByte(strings.TrimRight(s, " \t\n"))
}
