package expression

import "sync"

// Evaluator wraps Parse and Evaluate with a compile cache keyed by source
// text, so repeated classification of the same conditions does not re-parse.
// Safe for concurrent use; failed parses are not cached.
type Evaluator struct {
	m     sync.RWMutex
	cache map[string]Node
}

func NewEvaluator() *Evaluator {
	return &Evaluator{
		cache: make(map[string]Node),
	}
}

// Compile returns the cached AST for src, parsing on first use.
func (e *Evaluator) Compile(src string) (Node, error) {
	e.m.RLock()
	n, found := e.cache[src]
	e.m.RUnlock()

	if found {
		return n, nil
	}

	n, err := Parse(src)
	if err != nil {
		return nil, err
	}

	e.m.Lock()
	e.cache[src] = n
	e.m.Unlock()

	return n, nil
}

func (e *Evaluator) Evaluate(src string, vars map[string]int64) (any, error) {
	n, err := e.Compile(src)
	if err != nil {
		return nil, err
	}

	return Evaluate(n, vars)
}

func (e *Evaluator) EvaluateBool(src string, vars map[string]int64) (bool, error) {
	n, err := e.Compile(src)
	if err != nil {
		return false, err
	}

	return EvaluateBool(n, vars)
}

func (e *Evaluator) ReferencedVariables(src string) ([]string, error) {
	n, err := e.Compile(src)
	if err != nil {
		return nil, err
	}

	return ReferencedVariables(n), nil
}

// Purge drops all cached programs.
func (e *Evaluator) Purge() {
	e.m.Lock()
	e.cache = make(map[string]Node)
	e.m.Unlock()
}
