package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseConditionEmpty(t *testing.T) {
	cond, err := ParseCondition(nil)
	require.NoError(t, err)
	assert.Nil(t, cond)

	cond, err = ParseCondition([]byte{})
	require.NoError(t, err)
	assert.Nil(t, cond)
}

func TestParseConditionValid(t *testing.T) {
	raw := []byte(`{
		"allOf": [
			{"field": "derived_tier", "operator": "in", "values": ["above_sat", "major"]},
			{"field": "estimated_value", "operator": ">=", "value": 350000}
		]
	}`)

	cond, err := ParseCondition(raw)
	require.NoError(t, err)
	require.NotNil(t, cond)
	assert.Len(t, cond.AllOf, 2)
}

func TestConditionValidate(t *testing.T) {
	tests := []struct {
		name string
		cond Condition
		ok   bool
	}{
		{"leaf equality", Condition{Field: "derived_tier", Operator: OpEq, Value: "micro"}, true},
		{"leaf exists", Condition{Field: "intake_situation", Operator: OpExists}, true},
		{"in without values", Condition{Field: "derived_tier", Operator: OpIn}, false},
		{"eq without value", Condition{Field: "derived_tier", Operator: OpEq}, false},
		{"gt non-numeric", Condition{Field: "estimated_value", Operator: OpGt, Value: "lots"}, false},
		{"unknown operator", Condition{Field: "derived_tier", Operator: "~="}, false},
		{"leaf without field", Condition{Operator: OpEq, Value: "x"}, false},
		{"mixed combinators", Condition{
			AllOf: []Condition{{Field: "a", Operator: OpExists}},
			AnyOf: []Condition{{Field: "b", Operator: OpExists}},
		}, false},
		{"combinator with field", Condition{
			Field: "a",
			AllOf: []Condition{{Field: "b", Operator: OpExists}},
		}, false},
		{"invalid nested", Condition{
			AllOf: []Condition{{Field: "a", Operator: OpIn}},
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cond.Validate()
			if tt.ok {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestConditionEvaluate(t *testing.T) {
	fields := Fields{
		"derived_tier":            "above_sat",
		"estimated_value":         int64(380_000),
		"intake_buy_category":     "product",
		"derived_scls_applicable": false,
	}

	tests := []struct {
		name string
		cond *Condition
		want bool
	}{
		{"nil condition", nil, true},
		{"eq match", &Condition{Field: "derived_tier", Operator: OpEq, Value: "above_sat"}, true},
		{"eq mismatch", &Condition{Field: "derived_tier", Operator: OpEq, Value: "micro"}, false},
		{"neq", &Condition{Field: "derived_tier", Operator: OpNotEq, Value: "micro"}, true},
		{"in", &Condition{Field: "derived_tier", Operator: OpIn, Values: []any{"above_sat", "major"}}, true},
		{"not_in", &Condition{Field: "derived_tier", Operator: OpNotIn, Values: []any{"micro", "sat"}}, true},
		{"exists present", &Condition{Field: "intake_buy_category", Operator: OpExists}, true},
		{"exists missing", &Condition{Field: "intake_change_type", Operator: OpExists}, false},
		{"gt true", &Condition{Field: "estimated_value", Operator: OpGt, Value: 350_000}, true},
		{"gte boundary", &Condition{Field: "estimated_value", Operator: OpGte, Value: 380_000}, true},
		{"gt false", &Condition{Field: "estimated_value", Operator: OpGt, Value: 500_000}, false},
		{"bool eq", &Condition{Field: "derived_scls_applicable", Operator: OpEq, Value: false}, true},
		{"missing field eq", &Condition{Field: "nonexistent", Operator: OpEq, Value: "x"}, false},
		{
			"allOf",
			&Condition{AllOf: []Condition{
				{Field: "derived_tier", Operator: OpEq, Value: "above_sat"},
				{Field: "estimated_value", Operator: OpGt, Value: 100_000},
			}},
			true,
		},
		{
			"allOf short-circuit",
			&Condition{AllOf: []Condition{
				{Field: "derived_tier", Operator: OpEq, Value: "micro"},
				{Field: "estimated_value", Operator: OpGt, Value: 100_000},
			}},
			false,
		},
		{
			"anyOf",
			&Condition{AnyOf: []Condition{
				{Field: "derived_tier", Operator: OpEq, Value: "micro"},
				{Field: "intake_buy_category", Operator: OpEq, Value: "product"},
			}},
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.cond.Evaluate(fields))
		})
	}
}

func TestConditionEvaluateNumericAcrossTypes(t *testing.T) {
	// JSON unmarshals condition values as float64; field views carry int64.
	cond := &Condition{Field: "estimated_value", Operator: OpEq, Value: float64(380_000)}
	assert.True(t, cond.Evaluate(Fields{"estimated_value": int64(380_000)}))
	assert.True(t, cond.Evaluate(Fields{"estimated_value": 380_000}))
}
