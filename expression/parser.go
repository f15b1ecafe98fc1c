// Package expression implements the restricted boolean/bitwise expression
// language used to classify device operating modes from live telemetry.
//
// The language covers integer and string literals, list literals, named
// integer variables, arithmetic, two's-complement bitwise operators,
// chainable comparisons including membership, and short-circuiting and/or.
// Nothing else parses: function calls, attribute access and indexing are
// syntax errors, so a hostile or defective spec cannot reach outside the
// variables it is given.
package expression

import (
	"errors"
	"strconv"

	"github.com/alecthomas/participle/v2"
	"github.com/alecthomas/participle/v2/lexer"
)

var exprLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "whitespace", Pattern: `[ \t\r\n]+`},
	{Name: "KwAnd", Pattern: `\band\b`},
	{Name: "KwOr", Pattern: `\bor\b`},
	{Name: "KwNot", Pattern: `\bnot\b`},
	{Name: "KwIn", Pattern: `\bin\b`},
	{Name: "Hex", Pattern: `0[xX][0-9a-fA-F]+`},
	{Name: "Int", Pattern: `[0-9]+`},
	{Name: "String", Pattern: `"[^"]*"|'[^']*'`},
	{Name: "Ident", Pattern: `[A-Za-z_][A-Za-z0-9_]*`},
	{Name: "OpShift", Pattern: `<<|>>`},
	{Name: "OpCmp", Pattern: `==|!=|<=|>=|<|>`},
	{Name: "OpBitOr", Pattern: `\|`},
	{Name: "OpBitXor", Pattern: `\^`},
	{Name: "OpBitAnd", Pattern: `&`},
	{Name: "OpAdd", Pattern: `[+\-]`},
	{Name: "OpMul", Pattern: `[*/%]`},
	{Name: "OpInvert", Pattern: `~`},
	{Name: "LParen", Pattern: `\(`},
	{Name: "RParen", Pattern: `\)`},
	{Name: "LBracket", Pattern: `\[`},
	{Name: "RBracket", Pattern: `\]`},
	{Name: "Comma", Pattern: `,`},
})

// Grammar structs capture the participle parse tree; they are converted to
// the closed AST in ast.go before anything evaluates them.

type grammarExpression struct {
	Expr *grammarOr `parser:"@@"`
}

type grammarOr struct {
	First *grammarAnd   `parser:"@@"`
	Rest  []*grammarAnd `parser:"( KwOr @@ )*"`
}

type grammarAnd struct {
	First *grammarNot   `parser:"@@"`
	Rest  []*grammarNot `parser:"( KwAnd @@ )*"`
}

type grammarNot struct {
	Negated *grammarNot     `parser:"KwNot @@"`
	Compare *grammarCompare `parser:"| @@"`
}

type grammarCompare struct {
	Left  *grammarBitOr       `parser:"@@"`
	Chain []*grammarCompareOp `parser:"@@*"`
}

type grammarCompareOp struct {
	Op      string        `parser:"( @OpCmp"`
	NotIn   bool          `parser:"| @(KwNot KwIn)"`
	In      bool          `parser:"| @KwIn )"`
	Operand *grammarBitOr `parser:"@@"`
}

type grammarBitOr struct {
	First *grammarBitXor   `parser:"@@"`
	Rest  []*grammarBitXor `parser:"( OpBitOr @@ )*"`
}

type grammarBitXor struct {
	First *grammarBitAnd   `parser:"@@"`
	Rest  []*grammarBitAnd `parser:"( OpBitXor @@ )*"`
}

type grammarBitAnd struct {
	First *grammarShift   `parser:"@@"`
	Rest  []*grammarShift `parser:"( OpBitAnd @@ )*"`
}

type grammarShift struct {
	First *grammarSum       `parser:"@@"`
	Rest  []*grammarShiftOp `parser:"@@*"`
}

type grammarShiftOp struct {
	Op      string      `parser:"@OpShift"`
	Operand *grammarSum `parser:"@@"`
}

type grammarSum struct {
	First *grammarTerm    `parser:"@@"`
	Rest  []*grammarSumOp `parser:"@@*"`
}

type grammarSumOp struct {
	Op      string       `parser:"@OpAdd"`
	Operand *grammarTerm `parser:"@@"`
}

type grammarTerm struct {
	First *grammarUnary    `parser:"@@"`
	Rest  []*grammarTermOp `parser:"@@*"`
}

type grammarTermOp struct {
	Op      string        `parser:"@OpMul"`
	Operand *grammarUnary `parser:"@@"`
}

type grammarUnary struct {
	Op      string          `parser:"( @( OpInvert | OpAdd )"`
	Operand *grammarUnary   `parser:"@@ )"`
	Primary *grammarPrimary `parser:"| @@"`
}

type grammarPrimary struct {
	Hex      *string      `parser:"@Hex"`
	Int      *string      `parser:"| @Int"`
	Str      *string      `parser:"| @String"`
	List     *grammarList `parser:"| @@"`
	Variable *string      `parser:"| @Ident"`
	Sub      *grammarOr   `parser:"| LParen @@ RParen"`
}

type grammarList struct {
	Elements []*grammarOr `parser:"LBracket ( @@ ( Comma @@ )* )? RBracket"`
}

var exprParser = participle.MustBuild[grammarExpression](
	participle.Lexer(exprLexer),
	participle.UseLookahead(2),
)

// Parse compiles an expression into its AST, failing with *SyntaxError on
// any input outside the restricted language.
func Parse(src string) (Node, error) {
	tree, err := exprParser.ParseString("", src)
	if err != nil {
		var perr participle.Error
		if errors.As(err, &perr) {
			return nil, &SyntaxError{Offset: perr.Position().Offset, Message: perr.Message()}
		}

		return nil, &SyntaxError{Message: err.Error()}
	}

	return convertOr(tree.Expr)
}

func convertOr(g *grammarOr) (Node, error) {
	first, err := convertAnd(g.First)
	if err != nil {
		return nil, err
	}

	if len(g.Rest) == 0 {
		return first, nil
	}

	operands := []Node{first}
	for _, r := range g.Rest {
		n, err := convertAnd(r)
		if err != nil {
			return nil, err
		}
		operands = append(operands, n)
	}

	return BoolOp{Op: BoolOr, Operands: operands}, nil
}

func convertAnd(g *grammarAnd) (Node, error) {
	first, err := convertNot(g.First)
	if err != nil {
		return nil, err
	}

	if len(g.Rest) == 0 {
		return first, nil
	}

	operands := []Node{first}
	for _, r := range g.Rest {
		n, err := convertNot(r)
		if err != nil {
			return nil, err
		}
		operands = append(operands, n)
	}

	return BoolOp{Op: BoolAnd, Operands: operands}, nil
}

func convertNot(g *grammarNot) (Node, error) {
	if g.Negated != nil {
		operand, err := convertNot(g.Negated)
		if err != nil {
			return nil, err
		}

		return UnaryOp{Op: UnaryNot, Operand: operand}, nil
	}

	return convertCompare(g.Compare)
}

func convertCompare(g *grammarCompare) (Node, error) {
	left, err := convertBitOr(g.Left)
	if err != nil {
		return nil, err
	}

	if len(g.Chain) == 0 {
		return left, nil
	}

	var chain []Comparison
	for _, c := range g.Chain {
		operand, err := convertBitOr(c.Operand)
		if err != nil {
			return nil, err
		}

		op := CompareOperator(c.Op)
		if c.NotIn {
			op = CompareNotIn
		} else if c.In {
			op = CompareIn
		}

		chain = append(chain, Comparison{Op: op, Operand: operand})
	}

	return CompareChain{Left: left, Chain: chain}, nil
}

func convertBitOr(g *grammarBitOr) (Node, error) {
	return convertLeftAssoc(g.First, g.Rest, BinaryOr, convertBitXor)
}

func convertBitXor(g *grammarBitXor) (Node, error) {
	return convertLeftAssoc(g.First, g.Rest, BinaryXor, convertBitAnd)
}

func convertBitAnd(g *grammarBitAnd) (Node, error) {
	return convertLeftAssoc(g.First, g.Rest, BinaryAnd, convertShift)
}

func convertLeftAssoc[T any](first *T, rest []*T, op BinaryOperator, convert func(*T) (Node, error)) (Node, error) {
	left, err := convert(first)
	if err != nil {
		return nil, err
	}

	for _, r := range rest {
		right, err := convert(r)
		if err != nil {
			return nil, err
		}

		left = BinaryOp{Op: op, Left: left, Right: right}
	}

	return left, nil
}

func convertShift(g *grammarShift) (Node, error) {
	left, err := convertSum(g.First)
	if err != nil {
		return nil, err
	}

	for _, r := range g.Rest {
		right, err := convertSum(r.Operand)
		if err != nil {
			return nil, err
		}

		left = BinaryOp{Op: BinaryOperator(r.Op), Left: left, Right: right}
	}

	return left, nil
}

func convertSum(g *grammarSum) (Node, error) {
	left, err := convertTerm(g.First)
	if err != nil {
		return nil, err
	}

	for _, r := range g.Rest {
		right, err := convertTerm(r.Operand)
		if err != nil {
			return nil, err
		}

		left = BinaryOp{Op: BinaryOperator(r.Op), Left: left, Right: right}
	}

	return left, nil
}

func convertTerm(g *grammarTerm) (Node, error) {
	left, err := convertUnary(g.First)
	if err != nil {
		return nil, err
	}

	for _, r := range g.Rest {
		right, err := convertUnary(r.Operand)
		if err != nil {
			return nil, err
		}

		left = BinaryOp{Op: BinaryOperator(r.Op), Left: left, Right: right}
	}

	return left, nil
}

func convertUnary(g *grammarUnary) (Node, error) {
	if g.Primary != nil {
		return convertPrimary(g.Primary)
	}

	operand, err := convertUnary(g.Operand)
	if err != nil {
		return nil, err
	}

	switch g.Op {
	case "-":
		return UnaryOp{Op: UnaryNegate, Operand: operand}, nil
	case "~":
		return UnaryOp{Op: UnaryInvert, Operand: operand}, nil
	case "+":
		// Unary plus is the identity.
		return operand, nil
	default:
		return nil, &SyntaxError{Message: "unknown unary operator " + g.Op}
	}
}

func convertPrimary(g *grammarPrimary) (Node, error) {
	switch {
	case g.Hex != nil:
		v, err := strconv.ParseInt(*g.Hex, 0, 64)
		if err != nil {
			return nil, &SyntaxError{Message: "integer literal out of range: " + *g.Hex}
		}
		return Literal{Value: v}, nil
	case g.Int != nil:
		v, err := strconv.ParseInt(*g.Int, 10, 64)
		if err != nil {
			return nil, &SyntaxError{Message: "integer literal out of range: " + *g.Int}
		}
		return Literal{Value: v}, nil
	case g.Str != nil:
		s := *g.Str
		return Literal{Value: s[1 : len(s)-1]}, nil
	case g.List != nil:
		var elements []Node
		for _, e := range g.List.Elements {
			n, err := convertOr(e)
			if err != nil {
				return nil, err
			}
			elements = append(elements, n)
		}
		return ListLiteral{Elements: elements}, nil
	case g.Variable != nil:
		return VariableRef{Name: *g.Variable}, nil
	case g.Sub != nil:
		return convertOr(g.Sub)
	default:
		return nil, &SyntaxError{Message: "empty expression"}
	}
}
