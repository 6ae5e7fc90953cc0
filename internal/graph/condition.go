package graph

import (
	"encoding/json"
	"reflect"
	"strings"
)

// Logic selects how the per-field predicates of a Clause combine.
type Logic string

const (
	// LogicAnd requires every per-field predicate to hold. Default.
	LogicAnd Logic = "and"
	// LogicOr requires at least one per-field predicate to hold.
	LogicOr Logic = "or"
	// LogicNot negates the AND-combination of all predicates, i.e. it holds
	// when at least one predicate fails. It is not a per-field negation.
	LogicNot Logic = "not"
)

// ParseLogic normalizes a logic token, treating the empty string as "and".
func ParseLogic(raw string) (Logic, error) {
	switch Logic(strings.ToLower(strings.TrimSpace(raw))) {
	case "", LogicAnd:
		return LogicAnd, nil
	case LogicOr:
		return LogicOr, nil
	case LogicNot:
		return LogicNot, nil
	default:
		return "", validationf("unknown logic mode %q (want and, or, not)", raw)
	}
}

// Clause maps field names to predicates. A predicate is either a literal
// value (tested for equality) or a map of comparison operators to operands,
// e.g. Clause{"age": map[string]any{"gt": 30}}. Field names may use
// dot-notation to reach into nested attribute maps.
type Clause map[string]any

var comparisonOps = map[string]struct{}{
	"eq": {}, "ne": {}, "gt": {}, "gte": {}, "lt": {}, "lte": {},
}

// Evaluate tests the clause against an entity's attribute mapping under the
// given logic mode. Evaluation is pure: every predicate is computed before
// the results are combined, so and/or are order-independent.
func (c Clause) Evaluate(attrs map[string]any, logic Logic) (bool, error) {
	mode, err := ParseLogic(string(logic))
	if err != nil {
		return false, err
	}

	results := make([]bool, 0, len(c))
	for field, predicate := range c {
		ok, err := evaluatePredicate(attrs, field, predicate)
		if err != nil {
			return false, err
		}
		results = append(results, ok)
	}

	switch mode {
	case LogicOr:
		for _, ok := range results {
			if ok {
				return true, nil
			}
		}
		return false, nil
	case LogicNot:
		return !allHold(results), nil
	default:
		return allHold(results), nil
	}
}

func allHold(results []bool) bool {
	for _, ok := range results {
		if !ok {
			return false
		}
	}
	return true
}

func evaluatePredicate(attrs map[string]any, field string, predicate any) (bool, error) {
	actual, present := lookupPath(attrs, field)

	ops, isOpMap := operatorMap(predicate)
	if !isOpMap {
		// Bare literal means equality.
		return present && equalValues(actual, predicate), nil
	}

	for op, operand := range ops {
		if _, known := comparisonOps[op]; !known {
			return false, validationf("unknown comparison operator %q for field %q", op, field)
		}
		if !compare(op, actual, operand, present) {
			return false, nil
		}
	}
	return true, nil
}

// operatorMap reports whether the predicate is a comparison-operator mapping
// rather than a literal. A map containing at least one known operator key is
// treated as operators (so a misspelled operator surfaces as a
// ValidationError); a map with none is a literal nested value.
func operatorMap(predicate any) (map[string]any, bool) {
	m, ok := predicate.(map[string]any)
	if !ok || len(m) == 0 {
		return nil, false
	}
	for key := range m {
		if _, known := comparisonOps[key]; known {
			return m, true
		}
	}
	return nil, false
}

// compare applies a single comparison. A missing field fails every operator
// except ne, which matches: absence is not equal to anything.
func compare(op string, actual, operand any, present bool) bool {
	if !present {
		return op == "ne"
	}

	switch op {
	case "eq":
		return equalValues(actual, operand)
	case "ne":
		return !equalValues(actual, operand)
	}

	if a, b, ok := numericPair(actual, operand); ok {
		switch op {
		case "gt":
			return a > b
		case "gte":
			return a >= b
		case "lt":
			return a < b
		case "lte":
			return a <= b
		}
	}
	if a, aok := actual.(string); aok {
		if b, bok := operand.(string); bok {
			switch op {
			case "gt":
				return a > b
			case "gte":
				return a >= b
			case "lt":
				return a < b
			case "lte":
				return a <= b
			}
		}
	}
	// Unordered operand types never match.
	return false
}

// equalValues compares two attribute values, folding numeric types together
// so that an int written by a caller equals the float64 that comes back from
// a JSON reload.
func equalValues(a, b any) bool {
	if fa, fb, ok := numericPair(a, b); ok {
		return fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func numericPair(a, b any) (float64, float64, bool) {
	fa, aok := toFloat(a)
	fb, bok := toFloat(b)
	return fa, fb, aok && bok
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}
