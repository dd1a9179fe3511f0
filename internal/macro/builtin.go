package macro

var predefined = map[string]bool{
	"__LINE__": true, "__FILE__": true, "__DATE__": true, "__TIME__": true,
	"__FUNCTION__": true, "__func__": true, "__PRETTY_FUNCTION__": true,
	"__COUNTER__": true, "__STDC__": true, "__STDC_VERSION__": true,
	"__STDC_HOSTED__": true, "__cplusplus": true, "__TIMESTAMP__": true,
	"__VA_ARGS__": true, "__VA_OPT__": true, "__BASE_FILE__": true,
	"__INCLUDE_LEVEL__": true, "defined": true,
}

var keywords = map[string]bool{
	// C
	"auto": true, "break": true, "case": true, "char": true, "const": true,
	"continue": true, "default": true, "do": true, "double": true, "else": true,
	"enum": true, "extern": true, "float": true, "for": true, "goto": true,
	"if": true, "inline": true, "int": true, "long": true, "register": true,
	"restrict": true, "return": true, "short": true, "signed": true,
	"sizeof": true, "static": true, "struct": true, "switch": true,
	"typedef": true, "union": true, "unsigned": true, "void": true,
	"volatile": true, "while": true, "_Bool": true, "_Complex": true,
	"_Alignas": true, "_Alignof": true, "_Atomic": true, "_Generic": true,
	"_Noreturn": true, "_Static_assert": true, "_Thread_local": true,
	// C++
	"bool": true, "true": true, "false": true, "class": true, "namespace": true,
	"template": true, "typename": true, "this": true, "new": true, "delete": true,
	"public": true, "private": true, "protected": true, "virtual": true,
	"nullptr": true, "using": true, "operator": true, "friend": true,
	"explicit": true, "mutable": true, "constexpr": true, "decltype": true,
	"noexcept": true, "static_assert": true, "static_cast": true,
	"dynamic_cast": true, "reinterpret_cast": true, "const_cast": true,
	"try": true, "catch": true, "throw": true, "wchar_t": true,
	// common library types and constants
	"NULL": true, "EOF": true, "FILE": true, "size_t": true, "ssize_t": true,
	"ptrdiff_t": true, "intptr_t": true, "uintptr_t": true,
	"int8_t": true, "int16_t": true, "int32_t": true, "int64_t": true,
	"uint8_t": true, "uint16_t": true, "uint32_t": true, "uint64_t": true,
	"va_list": true, "stdin": true, "stdout": true, "stderr": true,
}

// IsKeyword reports whether name is a C/C++ keyword or a well known
// standard type or constant.
func IsKeyword(name string) bool {
	return keywords[name]
}

// IsBuiltin reports whether name can never be an undefined macro.
func IsBuiltin(name string) bool {
	return predefined[name] || keywords[name]
}

// LooksLikeMacro is the naming heuristic used for undefined-identifier
// reports: only identifiers with at least one uppercase letter and no
// lowercase letters are treated as intended macro references. It is a
// convention, not a preprocessor rule.
func LooksLikeMacro(name string) bool {
	upper := false
	for i := 0; i < len(name); i++ {
		ch := name[i]
		switch {
		case ch >= 'a' && ch <= 'z':
			return false
		case ch >= 'A' && ch <= 'Z':
			upper = true
		}
	}
	return upper
}
