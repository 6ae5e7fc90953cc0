package graph

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateComparisons(t *testing.T) {
	attrs := map[string]any{
		"name":   "Alice",
		"age":    30,
		"score":  7.5,
		"active": true,
	}

	testCases := []struct {
		name   string
		clause Clause
		want   bool
	}{
		{"literal equality", Clause{"name": "Alice"}, true},
		{"literal mismatch", Clause{"name": "Bob"}, false},
		{"eq operator", Clause{"age": map[string]any{"eq": 30}}, true},
		{"ne operator", Clause{"age": map[string]any{"ne": 25}}, true},
		{"gt holds", Clause{"age": map[string]any{"gt": 25}}, true},
		{"gt fails", Clause{"age": map[string]any{"gt": 30}}, false},
		{"gte boundary", Clause{"age": map[string]any{"gte": 30}}, true},
		{"lt holds", Clause{"score": map[string]any{"lt": 8}}, true},
		{"lte boundary", Clause{"score": map[string]any{"lte": 7.5}}, true},
		{"int literal matches float reload", Clause{"age": float64(30)}, true},
		{"string ordering", Clause{"name": map[string]any{"lt": "Bob"}}, true},
		{"range on one field", Clause{"age": map[string]any{"gte": 18, "lt": 65}}, true},
		{"bool literal", Clause{"active": true}, true},
		{"mixed types never order", Clause{"name": map[string]any{"gt": 5}}, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.clause.Evaluate(attrs, LogicAnd)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluateMissingField(t *testing.T) {
	attrs := map[string]any{"name": "Alice"}

	for _, op := range []string{"eq", "gt", "gte", "lt", "lte"} {
		got, err := Clause{"ghost": map[string]any{op: 1}}.Evaluate(attrs, LogicAnd)
		require.NoError(t, err)
		assert.False(t, got, "operator %s must fail on a missing field", op)
	}

	// Absence is "not equal" to anything.
	got, err := Clause{"ghost": map[string]any{"ne": 1}}.Evaluate(attrs, LogicAnd)
	require.NoError(t, err)
	assert.True(t, got)

	got, err = Clause{"ghost": "anything"}.Evaluate(attrs, LogicAnd)
	require.NoError(t, err)
	assert.False(t, got)
}

func TestEvaluateLogicModes(t *testing.T) {
	attrs := map[string]any{"name": "Alice", "age": 30}

	bothTrue := Clause{"name": "Alice", "age": map[string]any{"gt": 20}}
	oneTrue := Clause{"name": "Alice", "age": map[string]any{"gt": 35}}
	noneTrue := Clause{"name": "Bob", "age": map[string]any{"gt": 35}}

	testCases := []struct {
		name   string
		clause Clause
		logic  Logic
		want   bool
	}{
		{"and all hold", bothTrue, LogicAnd, true},
		{"and one fails", oneTrue, LogicAnd, false},
		{"default logic is and", bothTrue, "", true},
		{"or one holds", oneTrue, LogicOr, true},
		{"or none hold", noneTrue, LogicOr, false},
		// not negates the AND of all predicates, not each predicate.
		{"not with all true", bothTrue, LogicNot, false},
		{"not with one false", oneTrue, LogicNot, true},
		{"not with none true", noneTrue, LogicNot, true},
		{"empty clause and", Clause{}, LogicAnd, true},
		{"empty clause or", Clause{}, LogicOr, false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := tc.clause.Evaluate(attrs, tc.logic)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestEvaluateNestedLiteralAndDotPath(t *testing.T) {
	attrs := map[string]any{
		"profile": map[string]any{"city": "Oslo", "zip": "0150"},
	}

	got, err := Clause{"profile.city": "Oslo"}.Evaluate(attrs, LogicAnd)
	require.NoError(t, err)
	assert.True(t, got)

	// A map predicate without operator keys is a literal nested value.
	got, err = Clause{"profile": map[string]any{"city": "Oslo", "zip": "0150"}}.Evaluate(attrs, LogicAnd)
	require.NoError(t, err)
	assert.True(t, got)
}

func TestEvaluateValidation(t *testing.T) {
	attrs := map[string]any{"age": 30}

	var verr *ValidationError

	_, err := Clause{"age": map[string]any{"gt": 20, "approx": 1}}.Evaluate(attrs, LogicAnd)
	require.Error(t, err)
	assert.True(t, errors.As(err, &verr))

	_, err = Clause{"age": 30}.Evaluate(attrs, Logic("xor"))
	require.Error(t, err)
	assert.True(t, errors.As(err, &verr))
}
