package engine

import (
	"errors"
	"fmt"
	"maps"
	"reflect"
	"slices"

	"choicegraph/pkg/graph"
)

var (
	ErrDivideByZero    = errors.New("division by zero")
	ErrInvalidOperator = errors.New("invalid comparison operator")
	ErrNotNumeric      = errors.New("value is not numeric")
	ErrIncomparable    = errors.New("values cannot be ordered")
)

// Memory is the game's variable store: a flat map with arithmetic and
// comparison helpers. Absent variables read as 0 in arithmetic and
// comparisons. Memory is owned by the engine goroutine and is not
// synchronized.
type Memory struct {
	vars map[string]any
}

// NewMemory creates an empty store.
func NewMemory() *Memory {
	return &Memory{vars: make(map[string]any)}
}

// Set stores a value.
func (m *Memory) Set(key string, value any) {
	m.vars[key] = value
}

// Get returns a value and whether it exists.
func (m *Memory) Get(key string) (any, bool) {
	v, ok := m.vars[key]
	return v, ok
}

// GetOr returns a value or def when absent.
func (m *Memory) GetOr(key string, def any) any {
	if v, ok := m.vars[key]; ok {
		return v
	}
	return def
}

// Has reports whether key is set.
func (m *Memory) Has(key string) bool {
	_, ok := m.vars[key]
	return ok
}

// Delete removes key and reports whether it was set.
func (m *Memory) Delete(key string) bool {
	_, ok := m.vars[key]
	delete(m.vars, key)
	return ok
}

// Clear removes every variable.
func (m *Memory) Clear() {
	clear(m.vars)
}

// Len returns the number of variables.
func (m *Memory) Len() int { return len(m.vars) }

// Keys returns variable names sorted.
func (m *Memory) Keys() []string {
	return slices.Sorted(maps.Keys(m.vars))
}

// All returns a deep copy of every variable.
func (m *Memory) All() map[string]any {
	out := make(map[string]any, len(m.vars))
	for k, v := range m.vars {
		out[k] = graph.CloneValue(v)
	}
	return out
}

// Load merges values into the store without clearing it first.
func (m *Memory) Load(values map[string]any) {
	for k, v := range values {
		m.vars[k] = graph.CloneValue(v)
	}
}

// Replace clears the store and loads values.
func (m *Memory) Replace(values map[string]any) {
	m.Clear()
	m.Load(values)
}

// Add adds value to key. Two strings concatenate.
func (m *Memory) Add(key string, value any) (any, error) {
	cur := m.GetOr(key, 0.0)
	if cs, ok := cur.(string); ok {
		vs, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("add %v to string %q: %w", value, key, ErrNotNumeric)
		}
		m.vars[key] = cs + vs
		return m.vars[key], nil
	}
	a, b, err := operands(key, cur, value)
	if err != nil {
		return nil, err
	}
	m.vars[key] = a + b
	return a + b, nil
}

// Subtract subtracts value from key.
func (m *Memory) Subtract(key string, value any) (any, error) {
	v, ok := graph.Number(value)
	if !ok {
		return nil, fmt.Errorf("subtract %v from %q: %w", value, key, ErrNotNumeric)
	}
	return m.Add(key, -v)
}

// Multiply multiplies key by value.
func (m *Memory) Multiply(key string, value any) (any, error) {
	a, b, err := operands(key, m.GetOr(key, 0.0), value)
	if err != nil {
		return nil, err
	}
	m.vars[key] = a * b
	return a * b, nil
}

// Divide divides key by value. Dividing by exactly zero fails and leaves
// key untouched.
func (m *Memory) Divide(key string, value any) (any, error) {
	a, b, err := operands(key, m.GetOr(key, 0.0), value)
	if err != nil {
		return nil, err
	}
	if b == 0 {
		return nil, fmt.Errorf("divide %q: %w", key, ErrDivideByZero)
	}
	m.vars[key] = a / b
	return a / b, nil
}

// Increment adds one.
func (m *Memory) Increment(key string) (any, error) { return m.Add(key, 1.0) }

// Decrement subtracts one.
func (m *Memory) Decrement(key string) (any, error) { return m.Add(key, -1.0) }

// Compare evaluates "key operator value".
func (m *Memory) Compare(key, operator string, value any) (bool, error) {
	return compare(m.GetOr(key, 0.0), operator, value)
}

func compare(left any, operator string, right any) (bool, error) {
	switch operator {
	case "==", "!=", ">", "<", ">=", "<=":
	default:
		return false, fmt.Errorf("%w: %q", ErrInvalidOperator, operator)
	}

	if a, ok := graph.Number(left); ok {
		if b, ok := graph.Number(right); ok {
			return ordered(a, b, operator), nil
		}
	}
	if a, ok := left.(string); ok {
		if b, ok := right.(string); ok {
			return ordered(a, b, operator), nil
		}
	}

	switch operator {
	case "==":
		return reflect.DeepEqual(left, right), nil
	case "!=":
		return !reflect.DeepEqual(left, right), nil
	}
	return false, fmt.Errorf("%v %s %v: %w", left, operator, right, ErrIncomparable)
}

func ordered[T float64 | string](a, b T, operator string) bool {
	switch operator {
	case "==":
		return a == b
	case "!=":
		return a != b
	case ">":
		return a > b
	case "<":
		return a < b
	case ">=":
		return a >= b
	default:
		return a <= b
	}
}

func operands(key string, cur, value any) (float64, float64, error) {
	a, ok := graph.Number(cur)
	if !ok {
		return 0, 0, fmt.Errorf("variable %q holds %T: %w", key, cur, ErrNotNumeric)
	}
	b, ok := graph.Number(value)
	if !ok {
		return 0, 0, fmt.Errorf("operand %v for %q: %w", value, key, ErrNotNumeric)
	}
	return a, b, nil
}
