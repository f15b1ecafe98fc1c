package expression

import (
	"errors"
	"fmt"
)

// ErrExpression is matched by every error this package produces, so callers
// can treat any expression failure as a single fail-closed category.
var ErrExpression = errors.New("expression error")

// SyntaxError reports malformed input, including any construct outside the
// restricted language (calls, attribute access, indexing).
type SyntaxError struct {
	Offset  int
	Message string
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at offset %d: %s", e.Offset, e.Message)
}

func (e *SyntaxError) Unwrap() error {
	return ErrExpression
}

// UndefinedVariableError reports a variable reference with no value supplied.
type UndefinedVariableError struct {
	Name string
}

func (e *UndefinedVariableError) Error() string {
	return fmt.Sprintf("undefined variable %q", e.Name)
}

func (e *UndefinedVariableError) Unwrap() error {
	return ErrExpression
}

// EvalError reports a runtime evaluation failure, such as division by zero,
// a negative shift count or a type mismatch.
type EvalError struct {
	Message string
}

func (e *EvalError) Error() string {
	return fmt.Sprintf("evaluation error: %s", e.Message)
}

func (e *EvalError) Unwrap() error {
	return ErrExpression
}
