package automation

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

const (
	opEq       = "eq"
	opNeq      = "neq"
	opGt       = "gt"
	opLt       = "lt"
	opContains = "contains"
)

func knownOp(op string) bool {
	switch op {
	case opEq, opNeq, opGt, opLt, opContains:
		return true
	}
	return false
}

// MatchAll reports whether every condition holds for input. An empty list
// always matches.
func MatchAll(conds []Condition, input map[string]any) bool {
	for _, c := range conds {
		if !c.Match(input) {
			return false
		}
	}
	return true
}

// Match evaluates one condition. Field may be a dotted path into nested
// objects. A missing field only satisfies neq.
func (c Condition) Match(input map[string]any) bool {
	got, ok := lookup(input, c.Field)
	switch c.Op {
	case opEq:
		return ok && equal(got, c.Value)
	case opNeq:
		return !ok || !equal(got, c.Value)
	case opGt, opLt:
		if !ok {
			return false
		}
		a, aok := number(got)
		b, bok := number(c.Value)
		if !aok || !bok {
			return false
		}
		if c.Op == opGt {
			return a > b
		}
		return a < b
	case opContains:
		if !ok {
			return false
		}
		switch v := got.(type) {
		case string:
			return strings.Contains(v, fmt.Sprint(c.Value))
		case []any:
			for _, item := range v {
				if equal(item, c.Value) {
					return true
				}
			}
		}
	}
	return false
}

func lookup(input map[string]any, path string) (any, bool) {
	var cur any = input
	for _, key := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		return f, err == nil
	}
	return 0, false
}

func equal(a, b any) bool {
	if x, ok := number(a); ok {
		if y, ok := number(b); ok {
			return x == y
		}
	}
	return fmt.Sprint(a) == fmt.Sprint(b)
}
