package token

import "strings"

// Kind classifies a preprocessing token.
type Kind int

const (
	Whitespace Kind = iota
	Identifier
	Number
	Punctuator
	StringLiteral
	CharLiteral
)

func (k Kind) String() string {
	switch k {
	case Whitespace:
		return "whitespace"
	case Identifier:
		return "identifier"
	case Number:
		return "number"
	case Punctuator:
		return "punctuator"
	case StringLiteral:
		return "string"
	case CharLiteral:
		return "char"
	}
	return "unknown"
}

// Token is a single preprocessing token and its exact source text.
type Token struct {
	Kind Kind
	Text string
}

func (t Token) Is(kind Kind, text string) bool {
	return t.Kind == kind && t.Text == text
}

// IsPunct reports whether t is the punctuator p.
func (t Token) IsPunct(p string) bool {
	return t.Kind == Punctuator && t.Text == p
}

// Compact serializes tokens, collapsing every whitespace run to one space
// and dropping leading and trailing whitespace.
func Compact(toks []Token) string {
	var b strings.Builder
	pendingSpace := false
	for _, t := range toks {
		if t.Kind == Whitespace {
			pendingSpace = b.Len() > 0
			continue
		}
		if pendingSpace {
			b.WriteByte(' ')
			pendingSpace = false
		}
		b.WriteString(t.Text)
	}
	return b.String()
}

func IsIdentStart(b byte) bool {
	return b == '_' || (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z')
}

func IsIdentPart(b byte) bool {
	return IsIdentStart(b) || IsDigit(b)
}

func IsDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

// IsIdentifier reports whether s is a complete C identifier.
func IsIdentifier(s string) bool {
	if s == "" || !IsIdentStart(s[0]) {
		return false
	}
	for i := 1; i < len(s); i++ {
		if !IsIdentPart(s[i]) {
			return false
		}
	}
	return true
}
