package preprocessor

import (
	"os"
	"strings"

	"github.com/fwessels/macroexp/internal/macro"
	"github.com/fwessels/macroexp/internal/token"
)

// ---------------- Extraction ----------------

// Extraction is everything found in one source file.
type Extraction struct {
	File        string
	Definitions []macro.Definition
	KnownTypes  []string
	Diagnostics []macro.Diagnostic
	// Size is the length of the source text in bytes.
	Size int64
}

// ExtractFile reads filename and extracts its macro definitions.
func ExtractFile(filename string) (*Extraction, error) {
	content, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return Extract(string(content), filename), nil
}

// Extract turns source text into macro definitions, in order of
// appearance, plus the type names it declares. Conditional directives are
// not evaluated: every #define is extracted.
func Extract(src, file string) *Extraction {
	ex := &Extraction{File: file, Size: int64(len(src))}

	var code []sourceLine
	for _, ln := range logicalLines(stripComments(src)) {
		trim := strings.TrimSpace(ln.text)
		if !strings.HasPrefix(trim, "#") {
			code = append(code, ln)
			continue
		}
		fields := splitDirective(trim)
		if fields.cmd != "define" {
			continue
		}
		loc := macro.Location{File: file, Line: ln.line}
		def, diags := parseDefineDirective(fields.arg, loc)
		ex.Diagnostics = append(ex.Diagnostics, diags...)
		if def != nil {
			ex.Definitions = append(ex.Definitions, *def)
		}
	}
	ex.KnownTypes = knownTypes(code)
	return ex
}

// ---------------- Lines ----------------

type sourceLine struct {
	text string
	line int
}

// stripComments removes block and line comments, leaving literals intact.
// A block comment becomes one space; lines it spans are folded into the
// line where it started, which keeps later line numbers exact.
func stripComments(src string) []sourceLine {
	var lines []sourceLine
	var b strings.Builder
	lineNo, startLine := 1, 1
	flush := func() {
		lines = append(lines, sourceLine{text: b.String(), line: startLine})
		b.Reset()
	}
	for i := 0; i < len(src); {
		ch := src[i]
		switch {
		case ch == '\n':
			flush()
			lineNo++
			startLine = lineNo
			i++
		case ch == '"' || ch == '\'':
			j := skipLiteral(src, i)
			b.WriteString(src[i:j])
			i = j
		case ch == '/' && i+1 < len(src) && src[i+1] == '/':
			for {
				end := strings.IndexByte(src[i:], '\n')
				if end < 0 {
					i = len(src)
					break
				}
				end += i
				if !lineContinues(src[i:end]) {
					i = end
					break
				}
				// a trailing backslash continues the comment onto the next line
				lineNo++
				i = end + 1
			}
		case ch == '/' && i+1 < len(src) && src[i+1] == '*':
			i += 2
			for i < len(src) && !(src[i] == '*' && i+1 < len(src) && src[i+1] == '/') {
				if src[i] == '\n' {
					lineNo++
				}
				i++
			}
			i += 2
			b.WriteByte(' ')
		default:
			b.WriteByte(ch)
			i++
		}
	}
	if b.Len() > 0 {
		flush()
	}
	return lines
}

// skipLiteral returns the index just past the literal starting at s[i].
// Unterminated literals stop at the end of the line.
func skipLiteral(s string, i int) int {
	quote := s[i]
	j := i + 1
	for j < len(s) {
		ch := s[j]
		if ch == '\\' && j+1 < len(s) && s[j+1] != '\n' {
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
	return len(s)
}

// logicalLines joins physical lines that end in a line continuation.
func logicalLines(phys []sourceLine) []sourceLine {
	out := make([]sourceLine, 0, len(phys))
	for i := 0; i < len(phys); i++ {
		line := phys[i]
		if !lineContinues(line.text) {
			out = append(out, line)
			continue
		}
		var b strings.Builder
		b.WriteString(stripLineContinuation(line.text))
		for lineContinues(phys[i].text) && i+1 < len(phys) {
			i++
			next := strings.TrimLeft(phys[i].text, " \t")
			if b.Len() > 0 && next != "" {
				b.WriteByte(' ')
			}
			b.WriteString(stripLineContinuation(next))
		}
		out = append(out, sourceLine{text: b.String(), line: line.line})
	}
	return out
}

// lineContinues accepts blanks after the backslash, as GCC does.
func lineContinues(s string) bool {
	i := strings.LastIndexFunc(s, func(r rune) bool {
		return r != ' ' && r != '\t' && r != '\r'
	})
	return i >= 0 && s[i] == '\\'
}

func stripLineContinuation(s string) string {
	i := strings.LastIndexFunc(s, func(r rune) bool {
		return r != ' ' && r != '\t' && r != '\r'
	})
	if i >= 0 && s[i] == '\\' {
		return strings.TrimRight(s[:i], " \t")
	}
	return s
}

// ---------------- Directive parsing helpers ----------------

type directiveFields struct {
	cmd string
	arg string
}

func splitDirective(trim string) directiveFields {
	// trim begins with '#'
	trim = strings.TrimSpace(trim[1:])
	if trim == "" {
		return directiveFields{}
	}
	i := 0
	for i < len(trim) && token.IsIdentPart(trim[i]) {
		i++
	}
	if i == 0 {
		return directiveFields{}
	}
	return directiveFields{cmd: trim[:i], arg: strings.TrimSpace(trim[i:])}
}

// IsDirective reports whether a trimmed line is a preprocessor directive
// known to the extractor. Such lines never take part in diagnostics.
func IsDirective(trim string) bool {
	if !strings.HasPrefix(trim, "#") {
		return false
	}
	switch splitDirective(trim).cmd {
	case "include", "include_next", "define", "undef", "ifdef", "ifndef", "if",
		"elif", "elifdef", "elifndef", "else", "endif", "pragma", "error", "warning", "line":
		return true
	default:
		return false
	}
}
