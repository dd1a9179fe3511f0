/*
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package macroexp

import (
	"github.com/fwessels/macroexp/internal/expand"
	"github.com/fwessels/macroexp/internal/macro"
	"github.com/fwessels/macroexp/internal/parens"
	"github.com/fwessels/macroexp/internal/preprocessor"
	"github.com/fwessels/macroexp/internal/suggest"
)

type (
	Definition = macro.Definition
	Diagnostic = macro.Diagnostic
	Location   = macro.Location
	Table      = macro.Table
	Set        = macro.Set
	Extraction = preprocessor.Extraction
	Config     = expand.Config
	Mode       = expand.Mode
	Step       = expand.Step
	Result     = expand.Result
)

const (
	SingleMacro = expand.SingleMacro
	SingleLayer = expand.SingleLayer
)

// DefaultConfig expands in single-macro mode with a depth cap of 30.
func DefaultConfig() Config {
	return expand.DefaultConfig()
}

// NewSet returns an empty in-memory definition table.
func NewSet() *Set {
	return macro.NewSet()
}

// Extract finds the #define directives and type declarations in src.
func Extract(src, file string) *Extraction {
	return preprocessor.Extract(src, file)
}

// Load extracts src and returns a table holding its definitions.
func Load(src, file string) *Set {
	ex := preprocessor.Extract(src, file)
	s := macro.NewSet()
	_ = s.ReplaceFile(ex.File, ex.Definitions, ex.KnownTypes, ex.Diagnostics)
	return s
}

// Expand expands the macro name against table. args are the raw argument
// texts of a function-like invocation; nil shows the body with each
// parameter standing for itself.
func Expand(name string, args []string, table Table, cfg Config) *Result {
	return expand.Expand(name, args, table, cfg)
}

// ExpandText expands every macro invocation in text.
func ExpandText(text string, table Table, cfg Config) *Result {
	return expand.ExpandText(text, table, cfg)
}

// ExpandSource is Expand against the definitions of a single source text.
func ExpandSource(src, name string, args []string, cfg Config) *Result {
	return expand.Expand(name, args, Load(src, ""), cfg)
}

// NormalizeParens removes redundant parentheses from expanded text.
func NormalizeParens(text string) string {
	return parens.Normalize(text)
}

// Suggest returns the candidates within a small edit distance of id.
func Suggest(id string, candidates []string) []string {
	return suggest.Suggest(id, candidates)
}
