// Package expression provides template expansion and rule evaluation for
// workflow node configs, setState rules, and dynamic edges.
package expression

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

var (
	// A string that is exactly one {{ ... }} expression (optionally padded
	// with whitespace) resolves to the typed value of the expression.
	fullExprPattern = regexp.MustCompile(`^\s*\{\{\s*(.*?)\s*\}\}\s*$`)

	// Embedded expressions inside a larger string are replaced by their
	// string form.
	embeddedExprPattern = regexp.MustCompile(`\{\{([^{}]+)\}\}`)
)

// Error reports a parse or evaluation failure for a single expression.
type Error struct {
	Expr  string
	Cause error
}

func (e *Error) Error() string {
	return fmt.Sprintf("expression %q: %v", e.Expr, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// Evaluator expands template trees and evaluates expressions against a
// context mapping. It is stateless apart from the compiled-program cache
// and safe for concurrent use.
type Evaluator struct {
	programs sync.Map // source string -> *vm.Program
}

// NewEvaluator creates an evaluator with an empty program cache.
func NewEvaluator() *Evaluator {
	return &Evaluator{}
}

// Parse recursively expands a template tree against the context. Strings
// are evaluated per the template rules, arrays element-wise, maps
// value-wise; other scalars pass through unchanged.
func (e *Evaluator) Parse(tmpl interface{}, ctx map[string]interface{}) (interface{}, error) {
	switch v := tmpl.(type) {
	case string:
		return e.parseString(v, ctx)
	case map[string]interface{}:
		return e.ParseMap(v, ctx)
	case []interface{}:
		result := make([]interface{}, len(v))
		for i, item := range v {
			expanded, err := e.Parse(item, ctx)
			if err != nil {
				return nil, err
			}
			result[i] = expanded
		}
		return result, nil
	default:
		return tmpl, nil
	}
}

// ParseMap expands every value of a mapping, preserving keys.
func (e *Evaluator) ParseMap(m map[string]interface{}, ctx map[string]interface{}) (map[string]interface{}, error) {
	result := make(map[string]interface{}, len(m))
	for key, value := range m {
		expanded, err := e.Parse(value, ctx)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		result[key] = expanded
	}
	return result, nil
}

func (e *Evaluator) parseString(s string, ctx map[string]interface{}) (interface{}, error) {
	// Full-expression form keeps the native type of the result.
	if m := fullExprPattern.FindStringSubmatch(s); m != nil {
		val, _, err := e.eval(m[1], ctx)
		if err != nil {
			return nil, err
		}
		return val, nil
	}

	if !strings.Contains(s, "{{") {
		return s, nil
	}

	// Interpolation form: each expression is replaced by its string form;
	// undefined expressions keep the original {{...}} literal.
	var evalErr error
	result := embeddedExprPattern.ReplaceAllStringFunc(s, func(match string) string {
		if evalErr != nil {
			return match
		}
		inner := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(match, "{{"), "}}"))
		val, defined, err := e.eval(inner, ctx)
		if err != nil {
			evalErr = err
			return match
		}
		if !defined || val == nil {
			return match
		}
		return Stringify(val)
	})
	if evalErr != nil {
		return nil, evalErr
	}
	return result, nil
}

// Eval evaluates a single expression against the context. Undefined
// lookups yield nil rather than an error.
func (e *Evaluator) Eval(src string, ctx map[string]interface{}) (interface{}, error) {
	val, _, err := e.eval(src, ctx)
	return val, err
}

// eval reports whether the expression resolved to a defined value; lookups
// through missing names or nil intermediates count as undefined.
func (e *Evaluator) eval(src string, ctx map[string]interface{}) (interface{}, bool, error) {
	program, err := e.compile(src)
	if err != nil {
		return nil, false, &Error{Expr: src, Cause: err}
	}

	out, err := expr.Run(program, e.environment(ctx))
	if err != nil {
		if isUndefinedError(err) {
			return nil, false, nil
		}
		return nil, false, &Error{Expr: src, Cause: err}
	}
	if out == nil {
		return nil, false, nil
	}
	return out, true, nil
}

func (e *Evaluator) compile(src string) (*vm.Program, error) {
	if cached, ok := e.programs.Load(src); ok {
		return cached.(*vm.Program), nil
	}
	program, err := expr.Compile(src, expr.AllowUndefinedVariables())
	if err != nil {
		return nil, err
	}
	e.programs.Store(src, program)
	return program, nil
}

// environment copies the context and binds the built-in functions. The
// built-ins close over the same context, which makes parse and eval
// reentrant.
func (e *Evaluator) environment(ctx map[string]interface{}) map[string]interface{} {
	env := make(map[string]interface{}, len(ctx)+3)
	for k, v := range ctx {
		env[k] = v
	}
	env["getPath"] = func(obj interface{}, path string) interface{} {
		return GetPath(obj, path)
	}
	env["parse"] = func(tmpl interface{}) (interface{}, error) {
		return e.Parse(tmpl, ctx)
	}
	env["eval"] = func(src string) (interface{}, error) {
		return e.Eval(src, ctx)
	}
	return env
}

// isUndefinedError reports whether a runtime error is caused by a missing
// name or a member access through nil, both of which resolve to null.
func isUndefinedError(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "cannot fetch") ||
		strings.Contains(msg, "cannot get") ||
		strings.Contains(msg, "unknown name") ||
		strings.Contains(msg, "undefined")
}

// GetPath resolves a dotted/bracketed path such as "a.b[0].c" or
// `a["k"].b` against a value. Any missing segment yields nil.
func GetPath(obj interface{}, path string) interface{} {
	current := obj
	for _, seg := range splitPath(path) {
		if current == nil {
			return nil
		}
		switch c := current.(type) {
		case map[string]interface{}:
			current = c[seg]
		case []interface{}:
			idx, err := strconv.Atoi(seg)
			if err != nil || idx < 0 || idx >= len(c) {
				return nil
			}
			current = c[idx]
		default:
			return nil
		}
	}
	return current
}

// splitPath tokenizes "a.b[0].c" and `a["k"]` into path segments.
func splitPath(path string) []string {
	var segments []string
	var current strings.Builder

	flush := func() {
		if current.Len() > 0 {
			segments = append(segments, current.String())
			current.Reset()
		}
	}

	for i := 0; i < len(path); i++ {
		switch c := path[i]; c {
		case '.':
			flush()
		case '[':
			flush()
			end := strings.IndexByte(path[i:], ']')
			if end == -1 {
				// Unterminated bracket; treat remainder as one segment.
				segments = append(segments, strings.Trim(path[i+1:], `"'`))
				return segments
			}
			inner := strings.Trim(path[i+1:i+end], `"'`)
			segments = append(segments, inner)
			i += end
		default:
			current.WriteByte(c)
		}
	}
	flush()
	return segments
}

// Truthy reports the boolean interpretation of a value: nil and zero
// values are false, everything else is true.
func Truthy(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return false
	case bool:
		return val
	case string:
		return val != ""
	case int:
		return val != 0
	case int64:
		return val != 0
	case float64:
		return val != 0
	case json.Number:
		f, err := val.Float64()
		return err == nil && f != 0
	default:
		return true
	}
}

// Stringify renders a value for interpolation into a larger string.
// Whole numbers print without a decimal point; composites print as JSON.
func Stringify(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		if val == float64(int64(val)) {
			return strconv.FormatInt(int64(val), 10)
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(b)
	}
}
