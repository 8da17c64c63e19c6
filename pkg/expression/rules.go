package expression

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
)

// assignmentPattern matches "name = expr" but not comparisons ("==").
var assignmentPattern = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_]*)\s*=([^=].*|$)`)

// RuleStep is one step of a rule program. A step either returns a value,
// branches on a condition, or runs an unconditional action.
type RuleStep struct {
	If     string      `json:"if,omitempty"`
	Then   interface{} `json:"then,omitempty"`
	Else   interface{} `json:"else,omitempty"`
	Return string      `json:"return,omitempty"`
}

// Rule is a program of steps evaluated in order. It accepts three JSON
// shapes: a bare string (a single return expression), a single step
// object, or an array of steps.
type Rule []RuleStep

func (r *Rule) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" || trimmed == "null" {
		*r = nil
		return nil
	}

	switch trimmed[0] {
	case '"':
		var src string
		if err := json.Unmarshal(data, &src); err != nil {
			return err
		}
		*r = Rule{{Return: src}}
		return nil
	case '{':
		var step RuleStep
		if err := json.Unmarshal(data, &step); err != nil {
			return err
		}
		*r = Rule{step}
		return nil
	case '[':
		var steps []RuleStep
		if err := json.Unmarshal(data, &steps); err != nil {
			return err
		}
		*r = steps
		return nil
	default:
		return fmt.Errorf("rule must be a string, object, or array")
	}
}

// Condition is one entry of a conditions list: when the expression is
// truthy, traversal continues at Node. An empty condition is the default
// branch.
type Condition struct {
	Condition string `json:"condition,omitempty"`
	Node      string `json:"node"`
}

// Run evaluates the rule against the context. Locals assigned by steps
// overlay the context for later steps. The result is the value of the
// first return step reached, or the value of the "output" local if the
// program falls off the end, or nil.
func (e *Evaluator) Run(rule Rule, ctx map[string]interface{}) (interface{}, error) {
	locals := make(map[string]interface{})

	scope := func() map[string]interface{} {
		if len(locals) == 0 {
			return ctx
		}
		merged := make(map[string]interface{}, len(ctx)+len(locals))
		for k, v := range ctx {
			merged[k] = v
		}
		for k, v := range locals {
			merged[k] = v
		}
		return merged
	}

	for i, step := range rule {
		var branch interface{}
		switch {
		case step.Return != "":
			return e.Eval(step.Return, scope())
		case step.If != "":
			cond, err := e.Eval(step.If, scope())
			if err != nil {
				return nil, fmt.Errorf("step %d condition: %w", i, err)
			}
			if Truthy(cond) {
				branch = step.Then
			} else {
				branch = step.Else
			}
		default:
			branch = step.Then
		}

		if branch == nil {
			continue
		}
		result, returned, err := e.runBranch(branch, scope(), locals)
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		if returned {
			return result, nil
		}
	}

	return locals["output"], nil
}

// runBranch executes a then/else branch: a string action, a nested step,
// or a list of either. It reports whether a return was reached.
func (e *Evaluator) runBranch(branch interface{}, scope, locals map[string]interface{}) (interface{}, bool, error) {
	switch b := branch.(type) {
	case string:
		return e.runAction(b, scope, locals)
	case []interface{}:
		for _, item := range b {
			result, returned, err := e.runBranch(item, scope, locals)
			if err != nil {
				return nil, false, err
			}
			if returned {
				return result, true, nil
			}
			// Re-derive scope so later actions see earlier assignments.
			scope = mergeScope(scope, locals)
		}
		return nil, false, nil
	case map[string]interface{}:
		step, err := stepFromMap(b)
		if err != nil {
			return nil, false, err
		}
		if step.Return != "" {
			v, err := e.Eval(step.Return, scope)
			return v, true, err
		}
		if step.If != "" {
			cond, err := e.Eval(step.If, scope)
			if err != nil {
				return nil, false, err
			}
			if Truthy(cond) {
				if step.Then != nil {
					return e.runBranch(step.Then, scope, locals)
				}
			} else if step.Else != nil {
				return e.runBranch(step.Else, scope, locals)
			}
			return nil, false, nil
		}
		if step.Then != nil {
			return e.runBranch(step.Then, scope, locals)
		}
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("unsupported branch value of type %T", branch)
	}
}

// runAction executes a string action: either an assignment writing a
// local, or a bare expression whose value becomes the "output" local.
func (e *Evaluator) runAction(action string, scope, locals map[string]interface{}) (interface{}, bool, error) {
	if m := assignmentPattern.FindStringSubmatch(action); m != nil {
		val, err := e.Eval(strings.TrimSpace(m[2]), scope)
		if err != nil {
			return nil, false, fmt.Errorf("assignment to %q: %w", m[1], err)
		}
		locals[m[1]] = val
		return nil, false, nil
	}

	val, err := e.Eval(action, scope)
	if err != nil {
		return nil, false, err
	}
	locals["output"] = val
	return nil, false, nil
}

func stepFromMap(m map[string]interface{}) (RuleStep, error) {
	var step RuleStep
	if v, ok := m["if"]; ok {
		s, ok := v.(string)
		if !ok {
			return step, fmt.Errorf("'if' must be a string, got %T", v)
		}
		step.If = s
	}
	if v, ok := m["return"]; ok {
		s, ok := v.(string)
		if !ok {
			return step, fmt.Errorf("'return' must be a string, got %T", v)
		}
		step.Return = s
	}
	step.Then = m["then"]
	step.Else = m["else"]
	return step, nil
}

func mergeScope(base, overlay map[string]interface{}) map[string]interface{} {
	if len(overlay) == 0 {
		return base
	}
	merged := make(map[string]interface{}, len(base)+len(overlay))
	for k, v := range base {
		merged[k] = v
	}
	for k, v := range overlay {
		merged[k] = v
	}
	return merged
}

// ParseRule decodes a rule from its raw JSON value, accepting all three
// accepted shapes.
func ParseRule(raw interface{}) (Rule, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode rule: %w", err)
	}
	var rule Rule
	if err := json.Unmarshal(data, &rule); err != nil {
		return nil, fmt.Errorf("decode rule: %w", err)
	}
	return rule, nil
}

// ParseConditions decodes a conditions list from its raw JSON value.
func ParseConditions(raw interface{}) ([]Condition, error) {
	data, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("encode conditions: %w", err)
	}
	var conds []Condition
	if err := json.Unmarshal(data, &conds); err != nil {
		return nil, fmt.Errorf("decode conditions: %w", err)
	}
	return conds, nil
}
