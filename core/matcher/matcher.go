// Package matcher implements the pattern matcher (C4): structural
// unification of a variable-bearing template against an AtomSpace, with
// incoming-set-pruned enumeration and multi-clause conjunctive queries
// (spec.md §4.4).
package matcher

import (
	"context"
	"fmt"
	"sort"

	lru "github.com/hashicorp/golang-lru"
	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/stat"

	"github.com/cogpy/atomspace/core/atom"
	"github.com/cogpy/atomspace/core/atomspace"
)

// Result is one satisfying assignment: the variable bindings plus the
// geometric-mean confidence of every atom the match touched.
type Result struct {
	Bindings   Binding
	Confidence float64
}

// Matcher unifies templates against one AtomSpace. It is safe for
// concurrent use; all store access goes through the AtomSpace's own
// reader/writer locks (spec.md §5).
type Matcher struct {
	as    *atomspace.AtomSpace
	cache *lru.Cache
}

// New constructs a Matcher over as, memoizing up to cacheSize
// structurally-identical (template, store-generation) lookups (SPEC_FULL.md
// §4.4 EXPANSION note, grounded on core/hgql/hgql.go's HGQLCache).
func New(as *atomspace.AtomSpace, cacheSize int) *Matcher {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	cache, _ := lru.New(cacheSize)
	return &Matcher{as: as, cache: cache}
}

type cacheKey struct {
	template   atom.Handle
	generation uint64
}

// Match unifies template against every candidate in the store, returning
// bindings in descending confidence order (spec.md §4.4). It never errors
// on "no match" — an empty, nil-error result is a normal outcome; it errors
// with InvalidArgument only for a malformed template.
func (m *Matcher) Match(ctx context.Context, template atom.Handle) ([]Result, error) {
	key := cacheKey{template: template, generation: m.as.Generation()}
	if v, ok := m.cache.Get(key); ok {
		return v.([]Result), nil
	}

	tmpl, ok := m.as.Get(template)
	if !ok {
		return nil, atom.NewError(atom.InvalidArgument, "Match", fmt.Errorf("template handle %d not in store", template))
	}

	candidates := m.as.AtomsByType(tmpl.Type(), true)

	results := make([]Result, 0, len(candidates))
	for _, cand := range candidates {
		select {
		case <-ctx.Done():
			return partialSorted(results), atom.NewPartialError(atom.Timeout, "Match", ctx.Err(), partialSorted(results))
		default:
		}

		env, ok, matched, err := unify(m.as, template, cand, Binding{})
		if err != nil {
			return nil, err
		}
		if !ok || bindsVariable(m.as, env) {
			continue
		}
		results = append(results, Result{Bindings: env, Confidence: confidenceOf(m.as, matched)})
	}

	sorted := partialSorted(results)
	m.cache.Add(key, sorted)
	return sorted, nil
}

// bindsVariable reports whether env binds any variable to a VARIABLE_NODE,
// which happens when the candidate is itself a template stored in the
// AtomSpace; such candidates are not matches.
func bindsVariable(as *atomspace.AtomSpace, env Binding) bool {
	for _, h := range env {
		if a, ok := as.Get(h); ok && a.IsVariable() {
			return true
		}
	}
	return false
}

func partialSorted(results []Result) []Result {
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Confidence > results[j].Confidence
	})
	return results
}

// confidenceOf is the geometric mean of strength*confidence over every
// concrete atom touched by a match, via gonum/stat (SPEC_FULL.md §4.4
// EXPANSION note) rather than a hand-rolled loop.
func confidenceOf(as *atomspace.AtomSpace, matched []atom.Handle) float64 {
	if len(matched) == 0 {
		return 0
	}
	values := make([]float64, 0, len(matched))
	seen := make(map[atom.Handle]bool, len(matched))
	for _, h := range matched {
		if seen[h] {
			continue
		}
		seen[h] = true
		a, ok := as.Get(h)
		if !ok {
			continue
		}
		e := a.TruthValue().Expectation()
		if e <= 0 {
			e = 1e-9 // geometric mean is undefined at zero; treat as negligible, not excluding
		}
		values = append(values, e)
	}
	if len(values) == 0 {
		return 0
	}
	return stat.GeometricMean(values, nil)
}

// Clause is one conjunct of a multi-clause query: the handle of its
// template (spec.md §4.4).
type Clause struct {
	Template atom.Handle
}

// MatchConjunction evaluates a conjunction of clauses sharing variables,
// ordering clauses by the size of their candidate pool (smallest first,
// ties keeping the given order) and carrying bindings from clause k into
// clause k+1. The ordering does not take into account how many of a
// clause's variables earlier clauses already bind. Results are
// deduplicated by the tuple of bound variable values (spec.md §4.4).
func (m *Matcher) MatchConjunction(ctx context.Context, clauses []Clause) ([]Result, error) {
	if len(clauses) == 0 {
		return nil, nil
	}
	if len(clauses) == 1 {
		return m.Match(ctx, clauses[0].Template)
	}

	ordered, err := m.orderBySelectivity(clauses)
	if err != nil {
		return nil, err
	}

	frontier := []Result{{Bindings: Binding{}, Confidence: 1}}
	for _, clause := range ordered {
		var next []Result
		for _, partial := range frontier {
			extended, err := m.extendBinding(ctx, clause.Template, partial)
			if err != nil {
				return nil, err
			}
			next = append(next, extended...)
		}
		frontier = next
		if len(frontier) == 0 {
			break
		}
	}

	return dedupe(partialSorted(frontier)), nil
}

// orderBySelectivity runs a concurrent candidate-pool size estimate per
// clause via errgroup (SPEC_FULL.md §4.4 EXPANSION note: independent
// clauses have no shared bound variables yet, so their pool sizes can be
// measured in parallel before the sequential, binding-carrying join).
func (m *Matcher) orderBySelectivity(clauses []Clause) ([]Clause, error) {
	poolSize := make([]int, len(clauses))
	var g errgroup.Group
	for i, c := range clauses {
		i, c := i, c
		g.Go(func() error {
			tmpl, ok := m.as.Get(c.Template)
			if !ok {
				return atom.NewError(atom.InvalidArgument, "MatchConjunction", fmt.Errorf("clause template handle %d not in store", c.Template))
			}
			poolSize[i] = len(m.as.AtomsByType(tmpl.Type(), true))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	ordered := make([]Clause, len(clauses))
	idx := make([]int, len(clauses))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(i, j int) bool { return poolSize[idx[i]] < poolSize[idx[j]] })
	for i, o := range idx {
		ordered[i] = clauses[o]
	}
	return ordered, nil
}

// extendBinding unifies clause against the store under the bindings
// already fixed by prior clauses, pruning the candidate pool by
// incoming-set intersection when the clause already has a bound variable
// in an outgoing position (spec.md §4.4 enumeration rule).
func (m *Matcher) extendBinding(ctx context.Context, template atom.Handle, partial Result) ([]Result, error) {
	tmpl, ok := m.as.Get(template)
	if !ok {
		return nil, atom.NewError(atom.InvalidArgument, "extendBinding", fmt.Errorf("clause template handle %d not in store", template))
	}

	candidates, err := m.candidatesFor(tmpl, partial.Bindings)
	if err != nil {
		return nil, err
	}

	var out []Result
	for _, cand := range candidates {
		select {
		case <-ctx.Done():
			return out, nil
		default:
		}
		env, ok, matched, err := unify(m.as, template, cand, partial.Bindings.clone())
		if err != nil {
			return nil, err
		}
		if !ok || bindsVariable(m.as, env) {
			continue
		}
		out = append(out, Result{
			Bindings:   env,
			Confidence: combineConfidence(partial.Confidence, confidenceOf(m.as, matched)),
		})
	}
	return out, nil
}

func combineConfidence(a, b float64) float64 {
	vals := []float64{a, b}
	return stat.GeometricMean(vals, nil)
}

// candidatesFor seeds the candidate pool from incoming(bound value) when
// template already has a variable bound in an outgoing position, else from
// atoms_by_type(template.Type()) (spec.md §4.4 enumeration rule).
func (m *Matcher) candidatesFor(tmpl *atom.Atom, env Binding) ([]atom.Handle, error) {
	if tmpl.Kind() != atom.KindLink {
		return m.as.AtomsByType(tmpl.Type(), true), nil
	}

	outgoing, _ := tmpl.Outgoing()
	for _, o := range outgoing {
		child, ok := m.as.Get(o)
		if !ok {
			continue
		}
		if !child.IsVariable() {
			continue
		}
		name, _ := child.Name()
		ident, _, _, _ := ParseVariable(name)
		bound, isBound := env[ident]
		if !isBound {
			continue
		}
		incoming := m.as.Incoming(bound)
		byType := make(map[atom.Handle]bool, len(incoming))
		for _, h := range incoming {
			byType[h] = true
		}
		pool := m.as.AtomsByType(tmpl.Type(), true)
		filtered := make([]atom.Handle, 0, len(pool))
		for _, h := range pool {
			if byType[h] {
				filtered = append(filtered, h)
			}
		}
		return filtered, nil
	}
	return m.as.AtomsByType(tmpl.Type(), true), nil
}

func dedupe(results []Result) []Result {
	seen := make(map[string]bool, len(results))
	out := make([]Result, 0, len(results))
	for _, r := range results {
		key := bindingKey(r.Bindings)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, r)
	}
	return out
}

// BindingKey exposes bindingKey to other core packages (the rule engine's
// per-run "already-derived" set is keyed by rule name + binding).
func BindingKey(b Binding) string { return bindingKey(b) }

func bindingKey(b Binding) string {
	idents := make([]string, 0, len(b))
	for k := range b {
		idents = append(idents, k)
	}
	sort.Strings(idents)
	key := ""
	for _, id := range idents {
		key += fmt.Sprintf("%s=%d;", id, b[id])
	}
	return key
}
