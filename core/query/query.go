package query

import (
	"context"

	"github.com/cogpy/atomspace/core/atom"
	"github.com/cogpy/atomspace/core/atomspace"
	"github.com/cogpy/atomspace/core/matcher"
)

// Result is one satisfying binding of a query's projected variables, in
// the confidence the underlying match produced (spec.md §4.6).
type Result struct {
	Bindings   map[string]atom.Handle
	Confidence float64
}

// Execute parses src (spec.md §6 EBNF), translates it to a matcher
// conjunction (spec.md §4.6), and runs it against as, projecting every
// match down to the query's SELECT vars. Results are in descending
// confidence order, following directly from MatchConjunction's own
// ordering.
func Execute(ctx context.Context, as *atomspace.AtomSpace, m *matcher.Matcher, src string) ([]Result, error) {
	q, err := Parse(src)
	if err != nil {
		return nil, err
	}
	return Run(ctx, as, m, q)
}

// Run executes an already-parsed AST, for callers that parse once and
// re-run a query against an evolving store.
func Run(ctx context.Context, as *atomspace.AtomSpace, m *matcher.Matcher, q *AST) ([]Result, error) {
	clauses, err := translate(ctx, as, q)
	if err != nil {
		return nil, err
	}

	matches, err := m.MatchConjunction(ctx, clauses)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(matches))
	for _, match := range matches {
		projected := make(map[string]atom.Handle, len(q.Vars))
		for _, v := range q.Vars {
			if h, ok := match.Bindings[v]; ok {
				projected[v] = h
			}
		}
		results = append(results, Result{Bindings: projected, Confidence: match.Confidence})
	}
	return results, nil
}
