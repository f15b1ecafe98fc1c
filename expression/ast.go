package expression

import "sort"

// Node is the closed set of AST nodes the restricted expression language can
// produce. The interface is sealed; evaluation switches over every kind and
// treats anything else as an internal defect.
type Node interface {
	node()
}

// Literal is a constant integer or string value.
type Literal struct {
	Value any
}

// VariableRef reads a named integer variable supplied at evaluation time.
type VariableRef struct {
	Name string
}

// ListLiteral is an ordered list of element expressions, used with the
// membership operators.
type ListLiteral struct {
	Elements []Node
}

// UnaryOp applies a single whitelisted prefix operator.
type UnaryOp struct {
	Op      UnaryOperator
	Operand Node
}

// BinaryOp applies a whitelisted arithmetic or bitwise operator.
type BinaryOp struct {
	Op    BinaryOperator
	Left  Node
	Right Node
}

// Comparison is one link of a CompareChain, not a Node in its own right.
type Comparison struct {
	Op      CompareOperator
	Operand Node
}

// CompareChain evaluates pairwise comparisons left to right, short-circuiting
// on the first false link. "1 <= x <= 5" is (1 <= x) and (x <= 5).
type CompareChain struct {
	Left  Node
	Chain []Comparison
}

// BoolOp short-circuits and/or over an operand list.
type BoolOp struct {
	Op       BoolOperator
	Operands []Node
}

func (Literal) node()      {}
func (VariableRef) node()  {}
func (ListLiteral) node()  {}
func (UnaryOp) node()      {}
func (BinaryOp) node()     {}
func (CompareChain) node() {}
func (BoolOp) node()       {}

type UnaryOperator string

const (
	UnaryNegate UnaryOperator = "-"
	UnaryInvert UnaryOperator = "~"
	UnaryNot    UnaryOperator = "not"
)

type BinaryOperator string

const (
	BinaryAdd        BinaryOperator = "+"
	BinarySubtract   BinaryOperator = "-"
	BinaryMultiply   BinaryOperator = "*"
	BinaryDivide     BinaryOperator = "/"
	BinaryModulo     BinaryOperator = "%"
	BinaryAnd        BinaryOperator = "&"
	BinaryOr         BinaryOperator = "|"
	BinaryXor        BinaryOperator = "^"
	BinaryShiftLeft  BinaryOperator = "<<"
	BinaryShiftRight BinaryOperator = ">>"
)

type CompareOperator string

const (
	CompareEqual        CompareOperator = "=="
	CompareNotEqual     CompareOperator = "!="
	CompareLess         CompareOperator = "<"
	CompareLessEqual    CompareOperator = "<="
	CompareGreater      CompareOperator = ">"
	CompareGreaterEqual CompareOperator = ">="
	CompareIn           CompareOperator = "in"
	CompareNotIn        CompareOperator = "not in"
)

type BoolOperator string

const (
	BoolAnd BoolOperator = "and"
	BoolOr  BoolOperator = "or"
)

// ReferencedVariables returns the sorted, de-duplicated names of all
// variables the expression reads. Callers use it to check that required
// telemetry is present before evaluating a classification condition.
func ReferencedVariables(n Node) []string {
	seen := map[string]bool{}
	collectVariables(n, seen)

	names := make([]string, 0, len(seen))
	for name := range seen {
		names = append(names, name)
	}

	sort.Strings(names)
	return names
}

func collectVariables(n Node, seen map[string]bool) {
	switch v := n.(type) {
	case Literal:
	case VariableRef:
		seen[v.Name] = true
	case ListLiteral:
		for _, e := range v.Elements {
			collectVariables(e, seen)
		}
	case UnaryOp:
		collectVariables(v.Operand, seen)
	case BinaryOp:
		collectVariables(v.Left, seen)
		collectVariables(v.Right, seen)
	case CompareChain:
		collectVariables(v.Left, seen)
		for _, c := range v.Chain {
			collectVariables(c.Operand, seen)
		}
	case BoolOp:
		for _, o := range v.Operands {
			collectVariables(o, seen)
		}
	}
}
