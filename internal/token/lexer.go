package token

// punctuators are tried longest first.
var punctuators = []string{
	"...", "<<=", ">>=",
	"##", "->", "++", "--", "<<", ">>", "<=", ">=", "==", "!=", "&&", "||",
	"+=", "-=", "*=", "/=", "%=", "&=", "|=", "^=", "::",
}

// Lex splits s into preprocessing tokens. Comments become a single
// whitespace token; unterminated literals run to the end of the line.
func Lex(s string) []Token {
	toks := make([]Token, 0, len(s)/2+1)
	for i := 0; i < len(s); {
		ch := s[i]
		switch {
		case isSpace(ch):
			j := i + 1
			for j < len(s) && isSpace(s[j]) {
				j++
			}
			toks = append(toks, Token{Kind: Whitespace, Text: s[i:j]})
			i = j
		case ch == '/' && i+1 < len(s) && s[i+1] == '/':
			j := i + 2
			for j < len(s) && s[j] != '\n' {
				j++
			}
			toks = append(toks, Token{Kind: Whitespace, Text: " "})
			i = j
		case ch == '/' && i+1 < len(s) && s[i+1] == '*':
			j := i + 2
			for j < len(s) && !(s[j] == '*' && j+1 < len(s) && s[j+1] == '/') {
				j++
			}
			if j < len(s) {
				j += 2
			}
			toks = append(toks, Token{Kind: Whitespace, Text: " "})
			i = j
		case ch == '"' || ch == '\'':
			j := SkipLiteral(s, i)
			kind := StringLiteral
			if ch == '\'' {
				kind = CharLiteral
			}
			toks = append(toks, Token{Kind: kind, Text: s[i:j]})
			i = j
		case IsDigit(ch) || (ch == '.' && i+1 < len(s) && IsDigit(s[i+1])):
			j := skipNumber(s, i)
			toks = append(toks, Token{Kind: Number, Text: s[i:j]})
			i = j
		case IsIdentStart(ch):
			j := i + 1
			for j < len(s) && IsIdentPart(s[j]) {
				j++
			}
			// encoding prefixes glue onto the following literal
			if j < len(s) && (s[j] == '"' || s[j] == '\'') && isEncodingPrefix(s[i:j]) {
				k := SkipLiteral(s, j)
				kind := StringLiteral
				if s[j] == '\'' {
					kind = CharLiteral
				}
				toks = append(toks, Token{Kind: kind, Text: s[i:k]})
				i = k
				continue
			}
			toks = append(toks, Token{Kind: Identifier, Text: s[i:j]})
			i = j
		default:
			n := 1
			for _, p := range punctuators {
				if len(s)-i >= len(p) && s[i:i+len(p)] == p {
					n = len(p)
					break
				}
			}
			toks = append(toks, Token{Kind: Punctuator, Text: s[i : i+n]})
			i += n
		}
	}
	return toks
}

// SkipLiteral returns the index just past the string or char literal that
// starts at s[i].
func SkipLiteral(s string, i int) int {
	quote := s[i]
	j := i + 1
	for j < len(s) {
		ch := s[j]
		if ch == '\\' {
			j += 2
			continue
		}
		if ch == '\n' {
			return j
		}
		j++
		if ch == quote {
			return j
		}
	}
	if j > len(s) {
		j = len(s)
	}
	return j
}

func skipNumber(s string, i int) int {
	j := i + 1
	for j < len(s) {
		ch := s[j]
		if (ch == '+' || ch == '-') && (s[j-1] == 'e' || s[j-1] == 'E' || s[j-1] == 'p' || s[j-1] == 'P') {
			j++
			continue
		}
		if IsIdentPart(ch) || ch == '.' {
			j++
			continue
		}
		break
	}
	return j
}

func isEncodingPrefix(s string) bool {
	switch s {
	case "L", "u", "U", "u8", "R", "LR", "uR", "UR", "u8R":
		return true
	}
	return false
}

func isSpace(ch byte) bool {
	return ch == ' ' || ch == '\t' || ch == '\r' || ch == '\n' || ch == '\f' || ch == '\v'
}
