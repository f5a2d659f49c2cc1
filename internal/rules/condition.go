package rules

import (
	"encoding/json"
	"fmt"
)

// Fields is the flat view of a request that conditions evaluate against.
// Keys follow the request column names (derived_tier, estimated_value, ...).
type Fields map[string]any

// Condition is a predicate over request fields. A node is either a
// combinator (AllOf / AnyOf) or a leaf comparison. Conditions are stored as
// JSON on approval template steps, document rules and advisory trigger
// rules, and validated at save time.
type Condition struct {
	AllOf []Condition `json:"allOf,omitempty"`
	AnyOf []Condition `json:"anyOf,omitempty"`

	Field    string `json:"field,omitempty"`
	Operator string `json:"operator,omitempty"`
	Value    any    `json:"value,omitempty"`
	Values   []any  `json:"values,omitempty"`
}

// Supported leaf operators.
const (
	OpIn     = "in"
	OpNotIn  = "not_in"
	OpEq     = "=="
	OpNotEq  = "!="
	OpExists = "exists"
	OpGt     = ">"
	OpGte    = ">="
)

// ParseCondition decodes and validates a JSON condition. Empty input yields
// a nil condition (always true).
func ParseCondition(raw []byte) (*Condition, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var c Condition
	if err := json.Unmarshal(raw, &c); err != nil {
		return nil, fmt.Errorf("parse condition: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate checks structural correctness so malformed rules fail at
// authoring time rather than silently defaulting at evaluation time.
func (c *Condition) Validate() error {
	if c == nil {
		return nil
	}
	if len(c.AllOf) > 0 && len(c.AnyOf) > 0 {
		return fmt.Errorf("condition cannot combine allOf and anyOf in one node")
	}
	if len(c.AllOf) > 0 || len(c.AnyOf) > 0 {
		if c.Field != "" || c.Operator != "" {
			return fmt.Errorf("combinator node cannot carry a field comparison")
		}
		for i := range c.AllOf {
			if err := c.AllOf[i].Validate(); err != nil {
				return err
			}
		}
		for i := range c.AnyOf {
			if err := c.AnyOf[i].Validate(); err != nil {
				return err
			}
		}
		return nil
	}

	if c.Field == "" {
		return fmt.Errorf("leaf condition requires a field")
	}
	switch c.Operator {
	case OpIn, OpNotIn:
		if len(c.Values) == 0 {
			return fmt.Errorf("operator %q on field %q requires values", c.Operator, c.Field)
		}
	case OpEq, OpNotEq:
		if c.Value == nil {
			return fmt.Errorf("operator %q on field %q requires a value", c.Operator, c.Field)
		}
	case OpGt, OpGte:
		if _, ok := toFloat(c.Value); !ok {
			return fmt.Errorf("operator %q on field %q requires a numeric value", c.Operator, c.Field)
		}
	case OpExists:
	default:
		return fmt.Errorf("unknown operator %q on field %q", c.Operator, c.Field)
	}
	return nil
}

// Evaluate returns whether the condition holds for the given fields.
// A nil condition is vacuously true.
func (c *Condition) Evaluate(fields Fields) bool {
	if c == nil {
		return true
	}
	if len(c.AllOf) > 0 {
		for i := range c.AllOf {
			if !c.AllOf[i].Evaluate(fields) {
				return false
			}
		}
		return true
	}
	if len(c.AnyOf) > 0 {
		for i := range c.AnyOf {
			if c.AnyOf[i].Evaluate(fields) {
				return true
			}
		}
		return false
	}
	return c.evaluateLeaf(fields)
}

func (c *Condition) evaluateLeaf(fields Fields) bool {
	value, present := fields[c.Field]

	switch c.Operator {
	case OpExists:
		return present && value != nil
	case OpIn:
		for _, v := range c.Values {
			if equal(value, v) {
				return true
			}
		}
		return false
	case OpNotIn:
		for _, v := range c.Values {
			if equal(value, v) {
				return false
			}
		}
		return true
	case OpEq:
		return equal(value, c.Value)
	case OpNotEq:
		return !equal(value, c.Value)
	case OpGt:
		a, aok := toFloat(value)
		b, bok := toFloat(c.Value)
		return aok && bok && a > b
	case OpGte:
		a, aok := toFloat(value)
		b, bok := toFloat(c.Value)
		return aok && bok && a >= b
	}
	return false
}

// equal compares loosely across the types JSON and the field view produce:
// strings, bools, and any numeric type.
func equal(a, b any) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	if af, aok := toFloat(a); aok {
		if bf, bok := toFloat(b); bok {
			return af == bf
		}
		return false
	}
	if ab, aok := a.(bool); aok {
		bb, bok := b.(bool)
		return aok && bok && ab == bb
	}
	as, aok := a.(string)
	bs, bok := b.(string)
	return aok && bok && as == bs
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
