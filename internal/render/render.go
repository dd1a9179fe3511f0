// Package render prints expansion results for people (console) or tools
// (JSON).
package render

import (
	"fmt"
	"io"
	"sort"

	"github.com/fwessels/macroexp/internal/expand"
	"github.com/fwessels/macroexp/internal/macro"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Reporter formats and outputs results
type Reporter struct {
	output io.Writer
	json   bool
}

func NewReporter(output io.Writer, jsonOutput bool) *Reporter {
	return &Reporter{output: output, json: jsonOutput}
}

func (r *Reporter) encode(v interface{}) error {
	encoder := json.NewEncoder(r.output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}

// Report outputs one expansion result
func (r *Reporter) Report(res *expand.Result) error {
	if r.json {
		out := *res
		if out.Steps == nil {
			out.Steps = []expand.Step{}
		}
		return r.encode(out)
	}
	return r.reportConsole(res)
}

func (r *Reporter) reportConsole(res *expand.Result) error {
	w := r.output
	if d := res.Definition; d != nil {
		fmt.Fprintf(w, "%s\n", d)
		if d.Location.File != "" {
			fmt.Fprintf(w, "  defined at %s\n", d.Location)
		}
	}

	if len(res.Steps) > 0 {
		fmt.Fprintln(w, "\nSteps:")
		for _, s := range res.Steps {
			fmt.Fprintf(w, "  [%d] %s: %s -> %s\n", s.Depth, s.Macro, s.Before, s.After)
		}
	}

	fmt.Fprintf(w, "\nResult: %s\n", res.FinalText)

	if len(res.ConcatenatedTokens) > 0 {
		pasted := make([]string, 0, len(res.ConcatenatedTokens))
		for t := range res.ConcatenatedTokens {
			pasted = append(pasted, t)
		}
		sort.Strings(pasted)
		fmt.Fprintln(w, "\nConcatenated:")
		for _, t := range pasted {
			fmt.Fprintf(w, "  %s (by %s)\n", t, res.ConcatenatedTokens[t])
		}
	}

	if len(res.Diagnostics) > 0 {
		fmt.Fprintln(w)
		for _, d := range res.Diagnostics {
			icon := "[ERROR]"
			if !d.Kind.IsError() {
				icon = "[WARN] "
			}
			fmt.Fprintf(w, "%s %s\n", icon, d)
		}
	}

	errs := len(res.Errors())
	fmt.Fprintf(w, "\nSummary: %d step(s), %d error(s), %d undefined\n", len(res.Steps), errs, len(res.UndefinedMacros))
	return nil
}

// DefinitionList is every definition of one name with the active one
// marked.
type DefinitionList struct {
	Name        string             `json:"name"`
	Definitions []macro.Definition `json:"definitions"`
	Active      int                `json:"active"`
	Failures    []macro.Diagnostic `json:"failures,omitempty"`
}

// ReportDefinitions outputs the redefinitions of a name.
func (r *Reporter) ReportDefinitions(list DefinitionList) error {
	if r.json {
		if list.Definitions == nil {
			list.Definitions = []macro.Definition{}
		}
		return r.encode(list)
	}
	w := r.output
	if len(list.Definitions) == 0 {
		fmt.Fprintf(w, "%s is not defined\n", list.Name)
	}
	for i, d := range list.Definitions {
		mark := " "
		if i == list.Active {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %d  %s\n", mark, i, &d)
		if d.Location.File != "" {
			fmt.Fprintf(w, "     at %s\n", d.Location)
		}
	}
	for _, d := range list.Failures {
		fmt.Fprintf(w, "[ERROR] %s\n", d)
	}
	return nil
}

// ReportSuggestions outputs the names similar to name.
func (r *Reporter) ReportSuggestions(name string, suggestions []string) error {
	if r.json {
		if suggestions == nil {
			suggestions = []string{}
		}
		return r.encode(struct {
			Name        string   `json:"name"`
			Suggestions []string `json:"suggestions"`
		}{name, suggestions})
	}
	if len(suggestions) == 0 {
		fmt.Fprintf(r.output, "no names similar to %s\n", name)
		return nil
	}
	fmt.Fprintf(r.output, "did you mean:\n")
	for _, s := range suggestions {
		fmt.Fprintf(r.output, "  %s\n", s)
	}
	return nil
}
