package macro

import (
	"fmt"
	"strings"
)

// Kind distinguishes object-like from function-like macros.
type Kind int

const (
	ObjectLike Kind = iota
	FunctionLike
)

func (k Kind) String() string {
	if k == FunctionLike {
		return "function-like"
	}
	return "object-like"
}

// VariadicParam is the parameter name used for an anonymous "..." parameter.
const VariadicParam = "__VA_ARGS__"

type Location struct {
	File string `json:"file"`
	Line int    `json:"line"`
}

func (l Location) String() string {
	if l.File == "" {
		return fmt.Sprintf("line %d", l.Line)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Definition is one #define. It is never modified after extraction.
type Definition struct {
	Name     string   `json:"name"`
	Kind     Kind     `json:"kind"`
	Params   []string `json:"params,omitempty"`
	Variadic bool     `json:"variadic,omitempty"`
	Body     string   `json:"body"`
	Location Location `json:"location"`
}

// FixedParams returns the parameters that are not absorbed by the variadic
// tail.
func (d *Definition) FixedParams() []string {
	if d.Variadic && len(d.Params) > 0 {
		return d.Params[:len(d.Params)-1]
	}
	return d.Params
}

// VariadicName returns the name the body uses for the variadic tail, or ""
// for non-variadic macros.
func (d *Definition) VariadicName() string {
	if !d.Variadic || len(d.Params) == 0 {
		return ""
	}
	return d.Params[len(d.Params)-1]
}

// Signature renders the definition head, e.g. "LOG(fmt, ...)".
func (d *Definition) Signature() string {
	if d.Kind != FunctionLike {
		return d.Name
	}
	params := make([]string, len(d.Params))
	copy(params, d.Params)
	if d.Variadic {
		last := len(params) - 1
		if params[last] == VariadicParam {
			params[last] = "..."
		} else {
			params[last] += "..."
		}
	}
	return d.Name + "(" + strings.Join(params, ", ") + ")"
}

// Clone returns a deep copy so that callers never alias table storage.
func (d Definition) Clone() Definition {
	if d.Params != nil {
		d.Params = append([]string(nil), d.Params...)
	}
	return d
}

func (d *Definition) String() string {
	if d.Body == "" {
		return "#define " + d.Signature()
	}
	return "#define " + d.Signature() + " " + d.Body
}

func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(b []byte) error {
	switch string(b) {
	case "object-like":
		*k = ObjectLike
	case "function-like":
		*k = FunctionLike
	default:
		return fmt.Errorf("unknown macro kind %q", b)
	}
	return nil
}
