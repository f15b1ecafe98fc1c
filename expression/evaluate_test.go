package expression

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func evalBool(t *testing.T, src string, vars map[string]int64) bool {
	t.Helper()

	n, err := Parse(src)
	assert.NoError(t, err)

	v, err := EvaluateBool(n, vars)
	assert.NoError(t, err)

	return v
}

func TestEvaluate(t *testing.T) {
	t.Run("classifies free mode from a high byte", func(t *testing.T) {
		assert.True(t, evalBool(t, "(P1>>24)&0xe == 0", map[string]int64{"P1": 0}))
		assert.False(t, evalBool(t, "(P1>>24)&0xe == 0", map[string]int64{"P1": 2 << 24}))
	})

	t.Run("tests masked membership", func(t *testing.T) {
		assert.True(t, evalBool(t, "P5&0xFF in [3,6]", map[string]int64{"P5": 3}))
		assert.False(t, evalBool(t, "P5&0xFF in [3,6]", map[string]int64{"P5": 1}))
		assert.True(t, evalBool(t, "P5&0xFF in [3,6]", map[string]int64{"P5": 0x106}))
	})

	t.Run("applies arithmetic with Go truncation semantics", func(t *testing.T) {
		n, err := Parse("(7 / 2) * 2 + 7 % 2")
		assert.NoError(t, err)

		v, err := Evaluate(n, nil)
		assert.NoError(t, err)
		assert.Equal(t, int64(7), v)
	})

	t.Run("applies twos-complement bitwise inversion", func(t *testing.T) {
		n, err := Parse("~0")
		assert.NoError(t, err)

		v, err := Evaluate(n, nil)
		assert.NoError(t, err)
		assert.Equal(t, int64(-1), v)
	})

	t.Run("chained comparison requires every link", func(t *testing.T) {
		assert.True(t, evalBool(t, "1 <= P2 <= 5", map[string]int64{"P2": 3}))
		assert.False(t, evalBool(t, "1 <= P2 <= 5", map[string]int64{"P2": 9}))
		assert.False(t, evalBool(t, "1 <= P2 <= 5", map[string]int64{"P2": 0}))
	})

	t.Run("chained comparison short-circuits a failed link", func(t *testing.T) {
		// MISSING is undefined but must never be read; the first link fails.
		n, err := Parse("1 == 2 == MISSING")
		assert.NoError(t, err)

		v, err := EvaluateBool(n, nil)
		assert.NoError(t, err)
		assert.False(t, v)
	})

	t.Run("boolean or short-circuits the right operand", func(t *testing.T) {
		n, err := Parse("P1 == 0 or MISSING == 1")
		assert.NoError(t, err)

		v, err := EvaluateBool(n, map[string]int64{"P1": 0})
		assert.NoError(t, err)
		assert.True(t, v)
	})

	t.Run("boolean and short-circuits the right operand", func(t *testing.T) {
		n, err := Parse("P1 == 1 and MISSING == 1")
		assert.NoError(t, err)

		v, err := EvaluateBool(n, map[string]int64{"P1": 0})
		assert.NoError(t, err)
		assert.False(t, v)
	})

	t.Run("not in negates membership", func(t *testing.T) {
		assert.True(t, evalBool(t, "P5 not in [1, 2]", map[string]int64{"P5": 3}))
		assert.False(t, evalBool(t, "P5 not in [1, 2]", map[string]int64{"P5": 2}))
	})

	t.Run("string literals compare by equality", func(t *testing.T) {
		assert.True(t, evalBool(t, `"a" in ["a", "b"]`, nil))
		assert.False(t, evalBool(t, `"c" in ["a", "b"]`, nil))
	})

	t.Run("undefined variable fails with a typed error", func(t *testing.T) {
		n, err := Parse("MISSING == 1")
		assert.NoError(t, err)

		_, err = Evaluate(n, nil)
		assert.Error(t, err)
		assert.True(t, errors.Is(err, ErrExpression))

		var uerr *UndefinedVariableError
		assert.True(t, errors.As(err, &uerr))
		assert.Equal(t, "MISSING", uerr.Name)
	})

	t.Run("division and modulo by zero fail closed", func(t *testing.T) {
		for _, src := range []string{"1 / P1", "1 % P1"} {
			n, err := Parse(src)
			assert.NoError(t, err)

			_, err = Evaluate(n, map[string]int64{"P1": 0})
			assert.Error(t, err)

			var eerr *EvalError
			assert.True(t, errors.As(err, &eerr))
		}
	})

	t.Run("negative shift count fails closed", func(t *testing.T) {
		n, err := Parse("1 << P1")
		assert.NoError(t, err)

		_, err = Evaluate(n, map[string]int64{"P1": -1})
		assert.Error(t, err)
	})

	t.Run("membership against a non-list fails closed", func(t *testing.T) {
		n, err := Parse("1 in 2")
		assert.NoError(t, err)

		_, err = Evaluate(n, nil)
		assert.Error(t, err)
	})

	t.Run("determinism for identical input", func(t *testing.T) {
		vars := map[string]int64{"P1": 0x0e000000}

		first := evalBool(t, "(P1>>24)&0xe == 0", vars)
		for i := 0; i < 10; i++ {
			assert.Equal(t, first, evalBool(t, "(P1>>24)&0xe == 0", vars))
		}
	})
}

func TestEvaluator(t *testing.T) {
	t.Run("compile is cached per source text", func(t *testing.T) {
		e := NewEvaluator()

		first, err := e.Compile("P1 == 1")
		assert.NoError(t, err)

		second, err := e.Compile("P1 == 1")
		assert.NoError(t, err)
		assert.Equal(t, first, second)
	})

	t.Run("failed parses are reported and not cached", func(t *testing.T) {
		e := NewEvaluator()

		_, err := e.Compile("P1 ==")
		assert.Error(t, err)

		_, err = e.Compile("P1 ==")
		assert.Error(t, err)
	})

	t.Run("evaluates and reports referenced variables through the cache", func(t *testing.T) {
		e := NewEvaluator()

		v, err := e.EvaluateBool("P5&0xFF in [3,6]", map[string]int64{"P5": 6})
		assert.NoError(t, err)
		assert.True(t, v)

		refs, err := e.ReferencedVariables("P5&0xFF in [3,6]")
		assert.NoError(t, err)
		assert.Equal(t, []string{"P5"}, refs)
	})

	t.Run("purge empties the cache", func(t *testing.T) {
		e := NewEvaluator()

		_, err := e.Compile("P1 == 1")
		assert.NoError(t, err)

		e.Purge()
		assert.Empty(t, e.cache)
	})
}
