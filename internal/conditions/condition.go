// Package conditions evaluates trigger predicates against event data.
package conditions

import (
	"fmt"
	"strconv"
	"strings"

	"triggerd/internal/common/errors"
	"triggerd/internal/pathquery"
)

// Operation is the comparison a condition applies.
type Operation string

const (
	Equals      Operation = "equals"
	Contains    Operation = "contains"
	StartsWith  Operation = "starts_with"
	GreaterThan Operation = "greater_than"
	LessThan    Operation = "less_than"
)

// Operations lists every supported operation.
func Operations() []Operation {
	return []Operation{Equals, Contains, StartsWith, GreaterThan, LessThan}
}

// Condition is a single predicate over one path-addressed field. Order is
// kept for round trips; conditions are evaluated as an unordered conjunction.
type Condition struct {
	Order      int         `json:"order" yaml:"order"`
	DataPath   string      `json:"data_path" yaml:"data_path" validate:"required,data_path"`
	Negate     bool        `json:"negate" yaml:"negate"`
	IgnoreCase bool        `json:"ignore_case" yaml:"ignore_case"`
	Operation  Operation   `json:"operation" yaml:"operation" validate:"required,oneof=equals contains starts_with greater_than less_than"`
	Value      interface{} `json:"value" yaml:"value"`
}

// Validate checks the operation and operand types without touching data.
func Validate(c Condition) error {
	if strings.TrimSpace(c.DataPath) == "" {
		return errors.ConfigError("condition data_path is required")
	}
	if _, err := pathquery.Compile(c.DataPath); err != nil {
		return err
	}

	switch c.Operation {
	case Equals:
		return nil
	case Contains, StartsWith:
		if c.Value == nil {
			return errors.ConfigError(fmt.Sprintf("operation '%s' requires a value", c.Operation)).
				WithContext("data_path", c.DataPath)
		}
		return nil
	case GreaterThan, LessThan:
		if _, ok := toNumber(c.Value); !ok {
			return errors.ConfigError(fmt.Sprintf("operation '%s' requires a numeric value, got %v", c.Operation, c.Value)).
				WithContext("data_path", c.DataPath)
		}
		return nil
	default:
		return errors.ConfigError(fmt.Sprintf("unknown operation '%s'", c.Operation)).
			WithContext("data_path", c.DataPath)
	}
}

// Evaluator resolves condition paths through a Selector.
type Evaluator struct {
	selector pathquery.Selector
}

// NewEvaluator creates an evaluator; a nil selector uses the default caching one.
func NewEvaluator(selector pathquery.Selector) *Evaluator {
	if selector == nil {
		selector = pathquery.NewSelector()
	}
	return &Evaluator{selector: selector}
}

// Evaluate applies one condition to doc. Missing data yields false without
// error; operand type errors are returned un-negated.
func (e *Evaluator) Evaluate(c Condition, doc pathquery.Document) (bool, error) {
	matches, err := e.selector.Select(doc, c.DataPath)
	if err != nil {
		return false, err
	}
	if len(matches) == 0 {
		return false, nil
	}

	result, err := apply(c, matches[0])
	if err != nil {
		return false, err
	}

	if c.Negate {
		result = !result
	}
	return result, nil
}

// EvaluateAll reports whether every condition holds. It stops at the first
// false condition or error.
func (e *Evaluator) EvaluateAll(conds []Condition, doc pathquery.Document) (bool, error) {
	for _, c := range conds {
		ok, err := e.Evaluate(c, doc)
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

func apply(c Condition, actual interface{}) (bool, error) {
	switch c.Operation {
	case Equals:
		return looseEqual(actual, c.Value, c.IgnoreCase), nil

	case Contains, StartsWith:
		s, ok := actual.(string)
		if !ok {
			return false, errors.TypeMismatchError(string(c.Operation), "string", actual).
				WithContext("data_path", c.DataPath)
		}
		want := stringify(c.Value)
		if c.IgnoreCase {
			s = strings.ToLower(s)
			want = strings.ToLower(want)
		}
		if c.Operation == Contains {
			return strings.Contains(s, want), nil
		}
		return strings.HasPrefix(s, want), nil

	case GreaterThan, LessThan:
		n, ok := actual.(float64)
		if !ok {
			return false, errors.TypeMismatchError(string(c.Operation), "number", actual).
				WithContext("data_path", c.DataPath)
		}
		threshold, ok := toNumber(c.Value)
		if !ok {
			return false, errors.ConfigError(fmt.Sprintf("operation '%s' requires a numeric value, got %v", c.Operation, c.Value)).
				WithContext("data_path", c.DataPath)
		}
		if c.Operation == GreaterThan {
			return n > threshold, nil
		}
		return n < threshold, nil

	default:
		return false, errors.ConfigError(fmt.Sprintf("unknown operation '%s'", c.Operation)).
			WithContext("data_path", c.DataPath)
	}
}

// looseEqual compares primitives the way a loosely typed "==" would:
// numbers and numeric strings compare by value, booleans count as 0/1.
func looseEqual(a, b interface{}, ignoreCase bool) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}

	if ab, ok := a.(bool); ok {
		a = boolNumber(ab)
	}
	if bb, ok := b.(bool); ok {
		b = boolNumber(bb)
	}

	as, aIsString := a.(string)
	bs, bIsString := b.(string)
	if aIsString && bIsString {
		if ignoreCase {
			return strings.EqualFold(as, bs)
		}
		return as == bs
	}

	an, aok := toNumber(a)
	bn, bok := toNumber(b)
	if aok && bok {
		return an == bn
	}
	return false
}

func boolNumber(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func toNumber(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return 0, false
		}
		f, err := strconv.ParseFloat(s, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func stringify(v interface{}) string {
	switch s := v.(type) {
	case string:
		return s
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
