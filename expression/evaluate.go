package expression

import "fmt"

// Evaluate reduces an AST against a set of named integer variables. Results
// are int64, string, bool or []any (list literals). Integers are signed
// 64-bit with two's-complement bitwise semantics.
func Evaluate(n Node, vars map[string]int64) (any, error) {
	switch v := n.(type) {
	case Literal:
		return v.Value, nil

	case VariableRef:
		val, found := vars[v.Name]
		if !found {
			return nil, &UndefinedVariableError{Name: v.Name}
		}
		return val, nil

	case ListLiteral:
		var values []any
		for _, e := range v.Elements {
			ev, err := Evaluate(e, vars)
			if err != nil {
				return nil, err
			}
			values = append(values, ev)
		}
		return values, nil

	case UnaryOp:
		return evaluateUnary(v, vars)

	case BinaryOp:
		return evaluateBinary(v, vars)

	case CompareChain:
		return evaluateCompareChain(v, vars)

	case BoolOp:
		return evaluateBool(v, vars)

	default:
		return nil, &EvalError{Message: fmt.Sprintf("unhandled node kind %T", n)}
	}
}

// EvaluateBool evaluates and coerces to a boolean: booleans pass through and
// integers are true when non-zero. Any other result type fails closed.
func EvaluateBool(n Node, vars map[string]int64) (bool, error) {
	v, err := Evaluate(n, vars)
	if err != nil {
		return false, err
	}

	return truthy(v)
}

func evaluateUnary(n UnaryOp, vars map[string]int64) (any, error) {
	v, err := Evaluate(n.Operand, vars)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case UnaryNot:
		t, err := truthy(v)
		if err != nil {
			return nil, err
		}
		return !t, nil

	case UnaryNegate:
		i, err := asInt(v)
		if err != nil {
			return nil, err
		}
		return -i, nil

	case UnaryInvert:
		i, err := asInt(v)
		if err != nil {
			return nil, err
		}
		return ^i, nil

	default:
		return nil, &EvalError{Message: fmt.Sprintf("unhandled unary operator %q", n.Op)}
	}
}

func evaluateBinary(n BinaryOp, vars map[string]int64) (any, error) {
	lv, err := Evaluate(n.Left, vars)
	if err != nil {
		return nil, err
	}

	rv, err := Evaluate(n.Right, vars)
	if err != nil {
		return nil, err
	}

	l, err := asInt(lv)
	if err != nil {
		return nil, err
	}

	r, err := asInt(rv)
	if err != nil {
		return nil, err
	}

	switch n.Op {
	case BinaryAdd:
		return l + r, nil
	case BinarySubtract:
		return l - r, nil
	case BinaryMultiply:
		return l * r, nil
	case BinaryDivide:
		if r == 0 {
			return nil, &EvalError{Message: "division by zero"}
		}
		return l / r, nil
	case BinaryModulo:
		if r == 0 {
			return nil, &EvalError{Message: "modulo by zero"}
		}
		return l % r, nil
	case BinaryAnd:
		return l & r, nil
	case BinaryOr:
		return l | r, nil
	case BinaryXor:
		return l ^ r, nil
	case BinaryShiftLeft:
		if r < 0 {
			return nil, &EvalError{Message: "negative shift count"}
		}
		return l << uint64(r), nil
	case BinaryShiftRight:
		if r < 0 {
			return nil, &EvalError{Message: "negative shift count"}
		}
		return l >> uint64(r), nil
	default:
		return nil, &EvalError{Message: fmt.Sprintf("unhandled binary operator %q", n.Op)}
	}
}

func evaluateCompareChain(n CompareChain, vars map[string]int64) (any, error) {
	left, err := Evaluate(n.Left, vars)
	if err != nil {
		return nil, err
	}

	for _, c := range n.Chain {
		right, err := Evaluate(c.Operand, vars)
		if err != nil {
			return nil, err
		}

		ok, err := applyCompare(c.Op, left, right)
		if err != nil {
			return nil, err
		}

		// A failed link short-circuits the remainder of the chain.
		if !ok {
			return false, nil
		}

		left = right
	}

	return true, nil
}

func evaluateBool(n BoolOp, vars map[string]int64) (any, error) {
	switch n.Op {
	case BoolAnd:
		for _, o := range n.Operands {
			t, err := EvaluateBool(o, vars)
			if err != nil {
				return nil, err
			}
			if !t {
				return false, nil
			}
		}
		return true, nil

	case BoolOr:
		for _, o := range n.Operands {
			t, err := EvaluateBool(o, vars)
			if err != nil {
				return nil, err
			}
			if t {
				return true, nil
			}
		}
		return false, nil

	default:
		return nil, &EvalError{Message: fmt.Sprintf("unhandled boolean operator %q", n.Op)}
	}
}

func applyCompare(op CompareOperator, left any, right any) (bool, error) {
	switch op {
	case CompareEqual:
		return valuesEqual(left, right), nil
	case CompareNotEqual:
		return !valuesEqual(left, right), nil

	case CompareLess, CompareLessEqual, CompareGreater, CompareGreaterEqual:
		l, err := asInt(left)
		if err != nil {
			return false, err
		}

		r, err := asInt(right)
		if err != nil {
			return false, err
		}

		switch op {
		case CompareLess:
			return l < r, nil
		case CompareLessEqual:
			return l <= r, nil
		case CompareGreater:
			return l > r, nil
		default:
			return l >= r, nil
		}

	case CompareIn, CompareNotIn:
		list, ok := right.([]any)
		if !ok {
			return false, &EvalError{Message: "right operand of membership test is not a list"}
		}

		found := false
		for _, e := range list {
			if valuesEqual(left, e) {
				found = true
				break
			}
		}

		if op == CompareNotIn {
			return !found, nil
		}
		return found, nil

	default:
		return false, &EvalError{Message: fmt.Sprintf("unhandled comparison operator %q", op)}
	}
}

// valuesEqual compares like-typed values; values of differing types are
// unequal rather than an error, matching membership tests over mixed lists.
func valuesEqual(a any, b any) bool {
	switch av := a.(type) {
	case int64:
		bv, ok := b.(int64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	default:
		return false
	}
}

func asInt(v any) (int64, error) {
	i, ok := v.(int64)
	if !ok {
		return 0, &EvalError{Message: fmt.Sprintf("expected integer, got %T", v)}
	}

	return i, nil
}

func truthy(v any) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case int64:
		return t != 0, nil
	default:
		return false, &EvalError{Message: fmt.Sprintf("value of type %T has no boolean form", v)}
	}
}
