package handle

import (
	"fmt"
	"strings"

	"github.com/dop251/goja"
)

// ParseExpression rewrites an arbitrary evaluate source string into a
// factory expression that, once compiled and run, produces the callable to
// invoke with (target, arg). Two forms are accepted (§4.2):
//
//   - an expression, e.g. "page => page.url()" or "(a, b) => a + b";
//   - a method-shorthand function body, e.g. "async pageHandle(page) { ... }",
//     optionally prefixed with "async".
//
// It first tries the source as a bare expression; if that fails to compile
// it retries after rewriting the source into a function declaration. A
// source that compiles neither way is rejected as not well-formed.
func ParseExpression(src string) (string, error) {
	asExpr := "(function(){ return (" + src + "); })"
	if compiles(asExpr) {
		return asExpr, nil
	}

	body := strings.TrimSpace(src)
	prefix := "function"
	if rest, ok := cutKeyword(body, "async"); ok {
		prefix = "async function"
		body = rest
	}
	asFunc := "(function(){ return (" + prefix + " " + body + "); })"
	if compiles(asFunc) {
		return asFunc, nil
	}

	return "", fmt.Errorf("%s: not a well-serializable expression or function", src)
}

// cutKeyword strips a leading bare keyword (not just any prefix — "asyncFn"
// must not be treated as "async" + "Fn").
func cutKeyword(s, keyword string) (string, bool) {
	if !strings.HasPrefix(s, keyword) {
		return s, false
	}
	rest := s[len(keyword):]
	if rest != "" && isIdentByte(rest[0]) {
		return s, false
	}
	return strings.TrimSpace(rest), true
}

func isIdentByte(b byte) bool {
	return b == '_' || b == '$' ||
		(b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func compiles(src string) bool {
	_, err := goja.Compile("", src, true)
	return err == nil
}
