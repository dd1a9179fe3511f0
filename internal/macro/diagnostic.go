package macro

import (
	"fmt"
	"strings"
)

type DiagnosticKind int

const (
	ParseFailure DiagnosticKind = iota + 1
	ArgumentCountMismatch
	CircularReference
	MaxDepthExceeded
	UndefinedIdentifier
)

var diagnosticKindNames = map[DiagnosticKind]string{
	ParseFailure:          "parse-failure",
	ArgumentCountMismatch: "argument-count-mismatch",
	CircularReference:     "circular-reference",
	MaxDepthExceeded:      "max-depth-exceeded",
	UndefinedIdentifier:   "undefined-identifier",
}

func (k DiagnosticKind) String() string {
	if s, ok := diagnosticKindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("diagnostic(%d)", int(k))
}

func (k DiagnosticKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *DiagnosticKind) UnmarshalText(b []byte) error {
	for kind, name := range diagnosticKindNames {
		if name == string(b) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("unknown diagnostic kind %q", b)
}

// IsError reports whether the diagnostic marks a result as failed.
// Undefined identifiers are informational only.
func (k DiagnosticKind) IsError() bool {
	return k != UndefinedIdentifier
}

// Diagnostic describes a problem found while extracting or expanding.
type Diagnostic struct {
	Kind        DiagnosticKind `json:"kind"`
	Macro       string         `json:"macro,omitempty"`
	Message     string         `json:"message"`
	Location    Location       `json:"location"`
	Chain       []string       `json:"chain,omitempty"`
	Suggestions []string       `json:"suggestions,omitempty"`
}

func (d Diagnostic) String() string {
	msg := d.Message
	if len(d.Suggestions) > 0 {
		msg += " (did you mean " + strings.Join(d.Suggestions, ", ") + "?)"
	}
	if d.Location.File != "" {
		return fmt.Sprintf("%s: %s", d.Location, msg)
	}
	return msg
}

func (d Diagnostic) Clone() Diagnostic {
	if d.Chain != nil {
		d.Chain = append([]string(nil), d.Chain...)
	}
	if d.Suggestions != nil {
		d.Suggestions = append([]string(nil), d.Suggestions...)
	}
	return d
}

// FormatChain renders an expansion chain as "A -> B -> A".
func FormatChain(chain []string) string {
	return strings.Join(chain, " -> ")
}
