package expand

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fwessels/macroexp/internal/macro"
	"github.com/fwessels/macroexp/internal/preprocessor"
)

func newTable(t *testing.T, src string) *macro.Set {
	t.Helper()
	ex := preprocessor.Extract(src, "test.h")
	s := macro.NewSet()
	require.NoError(t, s.ReplaceFile("test.h", ex.Definitions, ex.KnownTypes, ex.Diagnostics))
	return s
}

func has(res *Result, kind macro.DiagnosticKind) bool {
	for _, d := range res.Diagnostics {
		if d.Kind == kind {
			return true
		}
	}
	return false
}

func TestObjectLikeIdentity(t *testing.T) {
	tbl := newTable(t, "#define PI 3.14159\n#define GREETING \"hello, world\"\n#define EMPTY\n")
	for name, body := range map[string]string{
		"PI":       "3.14159",
		"GREETING": `"hello, world"`,
		"EMPTY":    "",
	} {
		res := Expand(name, nil, tbl, DefaultConfig())
		assert.Equal(t, body, res.FinalText, name)
		assert.False(t, res.HasErrors, name)
		assert.Empty(t, res.ErrorMessage, name)
		require.NotNil(t, res.Definition, name)
		assert.Equal(t, body, res.Definition.Body)
	}

	res := Expand("PI", nil, tbl, DefaultConfig())
	if diff := cmp.Diff([]Step{{Depth: 0, Macro: "PI", Before: "PI", After: "3.14159"}}, res.Steps); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}
}

func TestArgumentCount(t *testing.T) {
	tbl := newTable(t, "#define MAX(a, b) ((a) > (b) ? (a) : (b))\n#define NOARGS() 1\n#define ONE(x) [x]\n")

	res := Expand("MAX", []string{"1", "2"}, tbl, DefaultConfig())
	assert.False(t, res.HasErrors)
	assert.Equal(t, "((1) > (2) ? (1) : (2))", res.FinalText)

	for _, args := range [][]string{{"1"}, {"1", "2", "3"}} {
		res := Expand("MAX", args, tbl, DefaultConfig())
		assert.True(t, res.HasErrors, "%v", args)
		assert.True(t, has(res, macro.ArgumentCountMismatch), "%v", args)
		assert.Contains(t, res.ErrorMessage, fmt.Sprintf("macro MAX expects 2 arguments, got %d", len(args)))
	}

	// missing arguments bind to empty text
	res = Expand("MAX", []string{"1"}, tbl, DefaultConfig())
	assert.Equal(t, "((1) > () ? (1) : ())", res.FinalText)

	res = Expand("NOARGS", []string{}, tbl, DefaultConfig())
	assert.False(t, res.HasErrors)
	assert.Equal(t, "1", res.FinalText)

	res = Expand("ONE", []string{""}, tbl, DefaultConfig())
	assert.False(t, res.HasErrors, "a single empty argument is still one argument")
	assert.Equal(t, "[]", res.FinalText)
}

func TestArgumentSplitting(t *testing.T) {
	tbl := newTable(t, "#define PAIR(a, b) {a; b}\n")
	res := ExpandText(`PAIR(f(1, 2), "x,y")`, tbl, DefaultConfig())
	assert.False(t, res.HasErrors, res.ErrorMessage)
	assert.Equal(t, `{f(1, 2); "x,y"}`, res.FinalText)

	res = ExpandText(`PAIR(',', g((a, b)))`, tbl, DefaultConfig())
	assert.False(t, res.HasErrors, res.ErrorMessage)
	assert.Equal(t, `{','; g((a, b))}`, res.FinalText)
}

func TestCircularReference(t *testing.T) {
	tbl := newTable(t, "#define A B\n#define B A\n#define SELF SELF + 1\n")

	res := Expand("A", nil, tbl, DefaultConfig())
	assert.True(t, res.HasErrors)
	assert.Contains(t, res.ErrorMessage, "A -> B -> A")
	assert.Equal(t, "A", res.FinalText)
	assert.Empty(t, res.UndefinedMacros)
	want := []Step{
		{Depth: 0, Macro: "A", Before: "A", After: "B"},
		{Depth: 1, Macro: "B", Before: "B", After: "A"},
	}
	if diff := cmp.Diff(want, res.Steps); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}
	require.Len(t, res.Errors(), 1)
	assert.Equal(t, []string{"A", "B", "A"}, res.Errors()[0].Chain)

	res = Expand("SELF", nil, tbl, DefaultConfig())
	assert.True(t, res.HasErrors)
	assert.Contains(t, res.ErrorMessage, "SELF -> SELF")
	assert.Equal(t, "SELF + 1", res.FinalText)
}

func chainSource(n int) string {
	var b strings.Builder
	for i := 1; i < n; i++ {
		fmt.Fprintf(&b, "#define M%d M%d\n", i, i+1)
	}
	fmt.Fprintf(&b, "#define M%d 0\n", n)
	return b.String()
}

func TestMaxDepth(t *testing.T) {
	tbl := newTable(t, chainSource(40))

	for _, mode := range []Mode{SingleMacro, SingleLayer} {
		cfg := DefaultConfig()
		cfg.Mode = mode
		res := Expand("M1", nil, tbl, cfg)
		assert.True(t, res.HasErrors, mode)
		require.True(t, has(res, macro.MaxDepthExceeded), mode)
		assert.Contains(t, res.ErrorMessage, "exceeded at M30", mode)
		assert.Equal(t, "M31", res.FinalText, mode)
		assert.Len(t, res.Steps, 30, mode)
		assert.Empty(t, res.UndefinedMacros, mode)
	}

	cfg := DefaultConfig()
	cfg.MaxDepth = 50
	res := Expand("M1", nil, tbl, cfg)
	assert.False(t, res.HasErrors, res.ErrorMessage)
	assert.Equal(t, "0", res.FinalText)
	assert.Len(t, res.Steps, 40)
}

func TestConfigDepth(t *testing.T) {
	for in, want := range map[int]int{0: 30, 1: 5, 5: 5, 30: 30, 100: 100, 1000: 100} {
		assert.Equal(t, want, Config{MaxDepth: in}.Depth(), in)
	}
}

func TestParseMode(t *testing.T) {
	m, err := ParseMode("single-layer")
	require.NoError(t, err)
	assert.Equal(t, SingleLayer, m)
	m, err = ParseMode("Single-Macro")
	require.NoError(t, err)
	assert.Equal(t, SingleMacro, m)
	_, err = ParseMode("layered")
	assert.Error(t, err)

	var parsed Mode
	require.NoError(t, parsed.UnmarshalText([]byte("single-layer")))
	assert.Equal(t, "single-layer", parsed.String())
}

func TestTokenPaste(t *testing.T) {
	tbl := newTable(t, strings.Join([]string{
		"#define CONCAT(a,b) a##b",
		"#define VAR(name) var_##name",
		"#define TRIPLE(a, b, c) a##b##c",
		"#define PREFIX_SUFFIX pre##_##suf",
		"#define CAT(a, b) a ## b",
		"#define FOOBAR 7",
		"#define FOO x",
	}, "\n"))

	res := Expand("CONCAT", []string{"foo", "bar"}, tbl, DefaultConfig())
	assert.Equal(t, "foobar", res.FinalText)
	assert.Equal(t, map[string]string{"foobar": "CONCAT"}, res.ConcatenatedTokens)

	assert.Equal(t, "var_count", Expand("VAR", []string{"count"}, tbl, DefaultConfig()).FinalText)
	assert.Equal(t, "xyz", Expand("TRIPLE", []string{"x", "y", "z"}, tbl, DefaultConfig()).FinalText)
	assert.Equal(t, "pre_suf", Expand("PREFIX_SUFFIX", nil, tbl, DefaultConfig()).FinalText)

	// operands are pasted unexpanded and the result is rescanned
	res = Expand("CAT", []string{"FOO", "BAR"}, tbl, DefaultConfig())
	assert.Equal(t, "7", res.FinalText)
	assert.Equal(t, "CAT", res.ConcatenatedTokens["FOOBAR"])

	// empty operands
	res = Expand("CAT", []string{"", "x"}, tbl, DefaultConfig())
	assert.Equal(t, "x", res.FinalText)
	assert.Empty(t, res.ConcatenatedTokens)
	assert.Equal(t, "x", Expand("CAT", []string{"x", ""}, tbl, DefaultConfig()).FinalText)
	assert.Equal(t, "c", Expand("TRIPLE", []string{"", "", "c"}, tbl, DefaultConfig()).FinalText)
}

func TestStringify(t *testing.T) {
	tbl := newTable(t, strings.Join([]string{
		"#define STR(x) #x",
		"#define XSTR(x) STR(x)",
		"#define NUM 42",
	}, "\n"))

	assert.Equal(t, `"hello"`, Expand("STR", []string{"hello"}, tbl, DefaultConfig()).FinalText)
	assert.Equal(t, `"a b"`, Expand("STR", []string{"  a    b  "}, tbl, DefaultConfig()).FinalText)
	assert.Equal(t, `"say \"hi\\n\""`, Expand("STR", []string{`say "hi\n"`}, tbl, DefaultConfig()).FinalText)

	// # takes the argument unexpanded, an extra level expands it first
	assert.Equal(t, `"NUM"`, Expand("STR", []string{"NUM"}, tbl, DefaultConfig()).FinalText)
	res := Expand("XSTR", []string{"NUM"}, tbl, DefaultConfig())
	assert.Equal(t, `"42"`, res.FinalText)
	want := []Step{
		{Depth: 0, Macro: "NUM", Before: "NUM", After: "42"},
		{Depth: 1, Macro: "XSTR", Before: "XSTR(42)", After: "STR(42)"},
		{Depth: 2, Macro: "STR", Before: "STR(42)", After: `"42"`},
	}
	if diff := cmp.Diff(want, res.Steps); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}
}

func TestWholeIdentifierSubstitution(t *testing.T) {
	tbl := newTable(t, `#define P(x) x + xx + "x" + 'x'`+"\n")
	assert.Equal(t, `1 + xx + "x" + 'x'`, Expand("P", []string{"1"}, tbl, DefaultConfig()).FinalText)
}

func TestVariadic(t *testing.T) {
	tbl := newTable(t, strings.Join([]string{
		"#define LOG(fmt, ...) printf(fmt, __VA_ARGS__)",
		"#define ELOG(fmt, ...) fprintf(stderr, fmt, ## __VA_ARGS__)",
		"#define EPRINTF(format, args...) fprintf(stderr, format, args)",
		"#define COUNT_ARGS(...) COUNT_IMPL(__VA_ARGS__, 10, 9, 8, 7, 6, 5, 4, 3, 2, 1)",
		"#define COUNT_IMPL(_1, _2, _3, _4, _5, _6, _7, _8, _9, _10, N, ...) N",
		"#define OPTIONAL(base, ...) base __VA_ARGS__",
		"#define OPT(a, ...) f(a __VA_OPT__(,) __VA_ARGS__)",
	}, "\n"))

	res := Expand("LOG", []string{`"%d %d"`, "a", "b"}, tbl, DefaultConfig())
	assert.False(t, res.HasErrors, res.ErrorMessage)
	assert.Equal(t, `printf("%d %d", a, b)`, res.FinalText)

	res = Expand("LOG", []string{}, tbl, DefaultConfig())
	assert.False(t, res.HasErrors, "an empty list still supplies the fixed argument")

	res = Expand("EPRINTF", []string{`"e"`, "1", "2"}, tbl, DefaultConfig())
	assert.Equal(t, `fprintf(stderr, "e", 1, 2)`, res.FinalText)

	assert.Equal(t, `fprintf(stderr, "x")`, Expand("ELOG", []string{`"x"`}, tbl, DefaultConfig()).FinalText)
	assert.Equal(t, `fprintf(stderr, "x", 1)`, Expand("ELOG", []string{`"x"`, "1"}, tbl, DefaultConfig()).FinalText)

	assert.Equal(t, "3", Expand("COUNT_ARGS", []string{"a", "b", "c"}, tbl, DefaultConfig()).FinalText)
	assert.Equal(t, "x", Expand("OPTIONAL", []string{"x"}, tbl, DefaultConfig()).FinalText)
	assert.Equal(t, "f(x)", Expand("OPT", []string{"x"}, tbl, DefaultConfig()).FinalText)
	assert.Equal(t, "f(x, y)", Expand("OPT", []string{"x", "y"}, tbl, DefaultConfig()).FinalText)
}

func TestNilArgsBindParameterNames(t *testing.T) {
	tbl := newTable(t, "#define SCALE(X, FACTOR) ((X) * (FACTOR))\n#define LOG(fmt, ...) printf(fmt, __VA_ARGS__)\n")

	res := Expand("SCALE", nil, tbl, DefaultConfig())
	assert.Equal(t, "((X) * (FACTOR))", res.FinalText)
	assert.Empty(t, res.UndefinedMacros)
	assert.False(t, res.HasErrors)

	res = Expand("LOG", nil, tbl, DefaultConfig())
	assert.Equal(t, "printf(fmt, __VA_ARGS__)", res.FinalText)
	assert.Empty(t, res.UndefinedMacros)
}

const nestedSource = `
#define NH_INNER(x) (x + 1)
#define NH_OUTER(y) (NH_INNER(y) * 2)
#define NH_NESTED(z) (z * 2)
#define NH_ADD(a, b) ((a) + (b))
#define NH_MUL(a, b) ((a) * (b))
#define A(x) B(x)
#define B(x) C(x, x)
#define C(x, y) ((x) + (y))
`

func TestSingleMacroSteps(t *testing.T) {
	tbl := newTable(t, nestedSource)

	res := Expand("NH_OUTER", []string{"5"}, tbl, DefaultConfig())
	assert.Equal(t, "((5 + 1) * 2)", res.FinalText)
	want := []Step{
		{Depth: 0, Macro: "NH_OUTER", Before: "NH_OUTER(5)", After: "(NH_INNER(5) * 2)"},
		{Depth: 1, Macro: "NH_INNER", Before: "NH_INNER(5)", After: "(5 + 1)"},
	}
	if diff := cmp.Diff(want, res.Steps); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}

	// arguments are expanded before the invocation that receives them
	res = Expand("NH_OUTER", []string{"NH_INNER(10)"}, tbl, DefaultConfig())
	assert.Equal(t, "(((10 + 1) + 1) * 2)", res.FinalText)
	want = []Step{
		{Depth: 0, Macro: "NH_INNER", Before: "NH_INNER(10)", After: "(10 + 1)"},
		{Depth: 1, Macro: "NH_OUTER", Before: "NH_OUTER((10 + 1))", After: "(NH_INNER((10 + 1)) * 2)"},
		{Depth: 2, Macro: "NH_INNER", Before: "NH_INNER((10 + 1))", After: "((10 + 1) + 1)"},
	}
	if diff := cmp.Diff(want, res.Steps); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}

	res = Expand("A", []string{"1"}, tbl, DefaultConfig())
	assert.Equal(t, "((1) + (1))", res.FinalText)
	var names []string
	for _, s := range res.Steps {
		names = append(names, s.Macro)
	}
	assert.Equal(t, []string{"A", "B", "C"}, names)
}

func TestSingleLayerSteps(t *testing.T) {
	tbl := newTable(t, nestedSource)
	cfg := DefaultConfig()
	cfg.Mode = SingleLayer

	res := Expand("NH_NESTED", []string{"NH_INNER(5)"}, tbl, cfg)
	assert.Equal(t, "((5 + 1) * 2)", res.FinalText)
	want := []Step{
		{Depth: 0, Macro: "NH_NESTED", Before: "NH_NESTED(NH_INNER(5))", After: "(NH_INNER(5) * 2)"},
		{Depth: 1, Macro: "NH_INNER", Before: "NH_INNER(5)", After: "(5 + 1)"},
	}
	if diff := cmp.Diff(want, res.Steps); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}

	// an argument is expanded a layer before the invocation it is passed to
	res = Expand("NH_OUTER", []string{"NH_INNER(10)"}, tbl, cfg)
	assert.Equal(t, "(((10 + 1) + 1) * 2)", res.FinalText)
	want = []Step{
		{Depth: 0, Macro: "NH_OUTER", Before: "NH_OUTER(NH_INNER(10))", After: "(NH_INNER(NH_INNER(10)) * 2)"},
		{Depth: 1, Macro: "NH_INNER", Before: "NH_INNER(10)", After: "(10 + 1)"},
		{Depth: 2, Macro: "NH_INNER", Before: "NH_INNER((10 + 1))", After: "((10 + 1) + 1)"},
	}
	if diff := cmp.Diff(want, res.Steps); diff != "" {
		t.Errorf("steps mismatch (-want +got):\n%s", diff)
	}

	// siblings share a layer
	res = ExpandText("NH_ADD(1, 2) + NH_MUL(3, 4)", tbl, cfg)
	assert.Equal(t, "((1) + (2)) + ((3) * (4))", res.FinalText)
	require.Len(t, res.Steps, 2)
	assert.Equal(t, 0, res.Steps[0].Depth)
	assert.Equal(t, 0, res.Steps[1].Depth)
}

// replay applies each step to the first occurrence of its Before.
func replay(t *testing.T, text string, steps []Step) string {
	t.Helper()
	for i, s := range steps {
		require.Contains(t, text, s.Before, "step %d", i)
		text = strings.Replace(text, s.Before, s.After, 1)
	}
	return text
}

func TestStepsReplay(t *testing.T) {
	tbl := newTable(t, nestedSource+strings.Join([]string{
		"#define STR(x) #x",
		"#define XSTR(x) STR(x)",
		"#define NUM 42",
		"#define COMMA ,",
		"#define PAIR(a, b) [a|b]",
		"#define SPLIT(x) PAIR(x)",
		"#define CALLER NH_INNER",
	}, "\n"))

	testCases := []struct {
		name string
		args []string
		text string
	}{
		{"NH_OUTER", []string{"NH_INNER(10)"}, "NH_OUTER(NH_INNER(10))"},
		{"NH_NESTED", []string{"NH_OUTER(NH_INNER(1))"}, "NH_NESTED(NH_OUTER(NH_INNER(1)))"},
		{"XSTR", []string{"NUM"}, "XSTR(NUM)"},
		{"SPLIT", []string{"COMMA"}, "SPLIT(COMMA)"},
		{"A", []string{"NUM"}, "A(NUM)"},
		{"", nil, "CALLER(3) + NH_ADD(NUM, NH_MUL(2, NUM))"},
	}
	for _, mode := range []Mode{SingleMacro, SingleLayer} {
		cfg := DefaultConfig()
		cfg.Mode = mode
		for _, tc := range testCases {
			var res *Result
			if tc.name == "" {
				res = ExpandText(tc.text, tbl, cfg)
			} else {
				res = Expand(tc.name, tc.args, tbl, cfg)
			}
			assert.False(t, res.HasErrors, "%s %s: %s", mode, tc.text, res.ErrorMessage)
			assert.Equal(t, res.FinalText, replay(t, tc.text, res.Steps), "%s %s", mode, tc.text)
		}
	}
}

func TestCallerArgumentsKeepBounds(t *testing.T) {
	tbl := newTable(t, "#define F(a) a\n#define MAX(a, b) ((a) > (b) ? (a) : (b))\n")

	res := Expand("F", []string{"("}, tbl, DefaultConfig())
	assert.False(t, res.HasErrors, res.ErrorMessage)
	assert.Equal(t, "(", res.FinalText)
	require.Len(t, res.Steps, 1)
	assert.Equal(t, "F(()", res.Steps[0].Before)

	// a comma inside one argument does not start another
	res = Expand("MAX", []string{"1, 2"}, tbl, DefaultConfig())
	assert.True(t, has(res, macro.ArgumentCountMismatch))
	assert.Equal(t, "((1, 2) > () ? (1, 2) : ())", res.FinalText)

	res = Expand("MAX", []string{"f(x", "y)"}, tbl, DefaultConfig())
	assert.False(t, res.HasErrors, res.ErrorMessage)
	assert.Equal(t, "((f(x) > (y)) ? (f(x) : (y)))", res.FinalText)
}

func TestRescanTakesArgumentsFromInput(t *testing.T) {
	tbl := newTable(t, "#define CALLER F\n#define F(x) [x]\n")
	res := ExpandText("CALLER(3) + F", tbl, DefaultConfig())
	assert.Equal(t, "[3] + F", res.FinalText)
	assert.Empty(t, res.UndefinedMacros, "F is defined even when not invoked")
}

func TestUndefinedIdentifiers(t *testing.T) {
	tbl := newTable(t, strings.Join([]string{
		"#define FOO 123",
		"#define BAR UNDEFINED_MACRO",
		"#define BAZ FOX + BAR",
		"#define CALC(x) ((x) + UNDEFIND_CONSTANT)",
		"#define LEVEL1 LEVEL2",
		"#define LEVEL2 LEVLE3",
		"#define HERE __LINE__ __FILE__ __func__",
		"#define GET(s) s.FIELD + s->OTHER",
		"typedef int MY_TYPE;",
		"#define DECL MY_TYPE value = NULL",
	}, "\n"))

	res := Expand("BAZ", nil, tbl, DefaultConfig())
	assert.Equal(t, "FOX + UNDEFINED_MACRO", res.FinalText)
	assert.Equal(t, []string{"FOX", "UNDEFINED_MACRO"}, res.UndefinedMacros)
	assert.Equal(t, map[string][]string{"FOX": {"FOO"}}, res.Suggestions)
	assert.False(t, res.HasErrors, "undefined identifiers are informational")
	assert.True(t, has(res, macro.UndefinedIdentifier))

	res = ExpandText("int x = FOX;", tbl, DefaultConfig())
	assert.Equal(t, []string{"FOX"}, res.UndefinedMacros)

	res = Expand("CALC", []string{"5"}, tbl, DefaultConfig())
	assert.Equal(t, "((5) + UNDEFIND_CONSTANT)", res.FinalText)
	assert.Equal(t, []string{"UNDEFIND_CONSTANT"}, res.UndefinedMacros)

	cfg := DefaultConfig()
	cfg.Symbols = []string{"LEVEL3"}
	res = Expand("LEVEL1", nil, tbl, cfg)
	assert.Equal(t, "LEVLE3", res.FinalText)
	assert.Equal(t, []string{"LEVEL3"}, res.Suggestions["LEVLE3"])

	res = Expand("HERE", nil, tbl, DefaultConfig())
	assert.Empty(t, res.UndefinedMacros)

	res = Expand("GET", []string{"p"}, tbl, DefaultConfig())
	assert.Empty(t, res.UndefinedMacros, "member names are not macros")

	res = Expand("DECL", nil, tbl, DefaultConfig())
	assert.Empty(t, res.UndefinedMacros, "known types and keywords are not macros")

	res = Expand("NOPE", nil, tbl, DefaultConfig())
	assert.Equal(t, "NOPE", res.FinalText)
	assert.Equal(t, []string{"NOPE"}, res.UndefinedMacros)
	assert.Nil(t, res.Definition)

	for _, name := range []string{"__LINE__", "MY_TYPE", "int"} {
		res = Expand(name, nil, tbl, DefaultConfig())
		assert.Equal(t, name, res.FinalText)
		assert.Empty(t, res.UndefinedMacros, name)
	}
}

func TestPatternMatchingStyle(t *testing.T) {
	tbl := newTable(t, strings.Join([]string{
		"#define v(x) (0v, x)",
		"#define ML99_match(x, matcher) matcher x",
		"#define MATCH_IMPL(x) ML99_match(v(x), v(MATCHER_))",
		"#define MATCHER_ RESULT",
	}, "\n"))
	res := Expand("MATCH_IMPL", []string{"foo"}, tbl, DefaultConfig())
	assert.Equal(t, "(0v, RESULT) (0v, foo)", res.FinalText)
	assert.Equal(t, []string{"RESULT"}, res.UndefinedMacros)
	assert.False(t, res.HasErrors)
}

func TestParseFailuresSurface(t *testing.T) {
	tbl := newTable(t, strings.Join([]string{
		"#define BROKEN(a, b (a+b)",
		"#define PLU_EXTRA_CLOSE(a, b)) (a+b)",
		"#define USES_BROKEN BROKEN + 1",
	}, "\n"))

	res := Expand("BROKEN", nil, tbl, DefaultConfig())
	assert.True(t, res.HasErrors)
	assert.True(t, has(res, macro.ParseFailure))
	assert.Equal(t, "BROKEN", res.FinalText)
	assert.Empty(t, res.UndefinedMacros, "a name that failed to parse is not undefined")
	assert.Equal(t, "test.h:1: unbalanced parentheses in parameter list of BROKEN", res.ErrorMessage)

	res = Expand("PLU_EXTRA_CLOSE", []string{"1", "2"}, tbl, DefaultConfig())
	assert.True(t, res.HasErrors)
	assert.Equal(t, ") (1+2)", res.FinalText)

	res = Expand("USES_BROKEN", nil, tbl, DefaultConfig())
	assert.True(t, res.HasErrors)
	assert.Empty(t, res.UndefinedMacros)
}

func TestActiveDefinition(t *testing.T) {
	tbl := newTable(t, "#define A 1\n#define A 2\n")
	res := Expand("A", nil, tbl, DefaultConfig())
	assert.Equal(t, "2", res.FinalText)
	assert.Equal(t, 2, res.Definition.Location.Line)

	require.NoError(t, tbl.SetActive("A", 0))
	res = Expand("A", nil, tbl, DefaultConfig())
	assert.Equal(t, "1", res.FinalText)
	assert.Equal(t, 1, res.Definition.Location.Line)
}

func TestStripParens(t *testing.T) {
	tbl := newTable(t, "#define MAX(a, b) ((a) > (b) ? (a) : (b))\n#define TEN ((10))\n")
	cfg := DefaultConfig()
	cfg.StripParens = true
	assert.Equal(t, "(x > y ? x : y)", Expand("MAX", []string{"x", "y"}, tbl, cfg).FinalText)
	assert.Equal(t, "10", Expand("TEN", nil, tbl, cfg).FinalText)
}

func TestRenderSeparatesTokens(t *testing.T) {
	tbl := newTable(t, "#define NEG -1\n#define ID(x) x\n")
	assert.Equal(t, "- -1", ExpandText("-NEG", tbl, DefaultConfig()).FinalText)
	assert.Equal(t, "a b", ExpandText("ID(a)ID(b)", tbl, DefaultConfig()).FinalText)
}

func TestConcurrentExpand(t *testing.T) {
	tbl := newTable(t, nestedSource+chainSource(10))
	want := Expand("NH_OUTER", []string{"NH_INNER(10)"}, tbl, DefaultConfig())

	var wg sync.WaitGroup
	results := make([]*Result, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				results[i] = Expand("NH_OUTER", []string{"NH_INNER(10)"}, tbl, DefaultConfig())
			} else {
				results[i] = Expand("M1", nil, tbl, DefaultConfig())
			}
		}(i)
	}
	wg.Wait()
	for i, res := range results {
		if i%2 == 0 {
			if diff := cmp.Diff(want, res); diff != "" {
				t.Errorf("result %d mismatch (-want +got):\n%s", i, diff)
			}
		} else {
			assert.Equal(t, "0", res.FinalText)
		}
	}
}
