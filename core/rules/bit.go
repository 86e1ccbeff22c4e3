package rules

import (
	"context"

	"github.com/emirpasic/gods/v2/trees/binaryheap"

	"github.com/cogpy/atomspace/core/atom"
	"github.com/cogpy/atomspace/core/atomspace"
	"github.com/cogpy/atomspace/core/matcher"
)

// cloneBinding copies a binding map; matcher.Binding's own clone method is
// unexported, so the rule engine keeps a small copy helper of its own.
func cloneBinding(b matcher.Binding) matcher.Binding {
	cp := make(matcher.Binding, len(b))
	for k, v := range b {
		cp[k] = v
	}
	return cp
}

// bitState is a BITNode's expansion state (spec.md §4.5.2).
type bitState int

const (
	unexpanded bitState = iota
	expanded
	exhausted
)

// bitNode is one node of a Backward Inference Tree: a target atom
// (possibly variable-bearing), reached via a chain of rule applications
// recorded as binding correspondences back to the root goal's own free
// variables (spec.md §4.5.2).
type bitNode struct {
	target  atom.Handle
	depth   int
	fitness float64
	state   bitState

	// outer maps this node's own free-variable identifiers back to the
	// root goal's free-variable identifiers, so that a proof discovered
	// deep in the tree can be reported in terms of the variables the
	// caller asked about.
	outer map[string]string
}

// proof is one way of satisfying a BIT node: a binding (restricted to the
// node's own free variables) plus the truth value that would result from
// accepting it.
type proof struct {
	binding matcher.Binding
	tv      atom.TruthValue
}

// BackwardConfig bounds a single BackwardChain call (spec.md §4.5.2
// Termination).
type BackwardConfig struct {
	MaxDepth      int
	MaxIterations int
	ConfThreshold float64
}

// DefaultBackwardConfig returns conservative bounds suitable for
// interactive queries.
func DefaultBackwardConfig() *BackwardConfig {
	return &BackwardConfig{MaxDepth: 6, MaxIterations: 10000, ConfThreshold: 0.2}
}

// QueryMode selects a backward chain's result shape (spec.md §4.5.2).
type QueryMode int

const (
	VariableFulfilment QueryMode = iota
	TruthValueFulfilment
)

// BackwardStatus reports how a BackwardChain call terminated.
type BackwardStatus int

const (
	Discharged BackwardStatus = iota
	MaxIterationsReached
	TimedOut
	AllExhausted
)

// Proof is one satisfying binding of a BackwardChain query and the truth
// value its derivation would assign.
type Proof struct {
	Binding    matcher.Binding
	TruthValue atom.TruthValue
}

// BackwardResult is the outcome of one BackwardChain call.
type BackwardResult struct {
	Status     BackwardStatus
	Proofs     []Proof          // VariableFulfilment
	TruthValue *atom.TruthValue // TruthValueFulfilment, set only if the root goal itself discharged
	Iterations int
}

// Chainer runs backward chaining (BIT) and forward chaining over one
// AtomSpace (spec.md §4.5).
type Chainer struct {
	as      *atomspace.AtomSpace
	matcher *matcher.Matcher
	rules   []*Rule
	cfg     *BackwardConfig
}

// NewChainer constructs a Chainer. A nil cfg uses DefaultBackwardConfig().
func NewChainer(as *atomspace.AtomSpace, m *matcher.Matcher, rules []*Rule, cfg *BackwardConfig) *Chainer {
	if cfg == nil {
		cfg = DefaultBackwardConfig()
	}
	return &Chainer{as: as, matcher: m, rules: rules, cfg: cfg}
}

func atomComplexity(as *atomspace.AtomSpace, h atom.Handle) int {
	a, ok := as.Get(h)
	if !ok {
		return 0
	}
	if a.Kind() == atom.KindNode {
		return 1
	}
	outgoing, _ := a.Outgoing()
	sum := 1
	for _, o := range outgoing {
		sum += atomComplexity(as, o)
	}
	return sum
}

// fitnessOf scores a target by structural simplicity and current matching
// confidence (spec.md §4.5.2): shallower targets with higher existing
// evidence are tried first.
func (c *Chainer) fitnessOf(ctx context.Context, target atom.Handle) float64 {
	structural := 1.0 / (1.0 + float64(atomComplexity(c.as, target)))

	matchConfidence := 0.0
	if results, err := c.matcher.Match(ctx, target); err == nil && len(results) > 0 {
		for _, r := range results {
			if r.Confidence > matchConfidence {
				matchConfidence = r.Confidence
			}
		}
	}
	return 0.5*structural + 0.5*matchConfidence
}

// BackwardChain builds a BIT rooted at goal, expanding the
// highest-fitness UNEXPANDED frontier node each iteration (spec.md
// §4.5.2). Each node's expansion tries, for every rule whose conclusion
// unifies with its target, a conjunctive match of the rule's
// (virtual, uninserted-as-facts) premises; premises that do not resolve
// directly become fresh child subgoals up to MaxDepth. It accepts a
// deadline via ctx and never errors on timeout/exhaustion — those are
// reported as BackwardResult.Status, per spec.md §5 and §7.
func (c *Chainer) BackwardChain(ctx context.Context, goal atom.Handle, mode QueryMode) (*BackwardResult, error) {
	if _, ok := c.as.Get(goal); !ok {
		return nil, atom.NewError(atom.InvalidArgument, "BackwardChain", errUnknownGoal(goal))
	}

	root := &bitNode{target: goal, depth: 0, state: unexpanded, outer: map[string]string{}}
	for _, ident := range freeVariables(c.as, goal) {
		root.outer[ident] = ident
	}

	frontier := binaryheap.NewWith[*bitNode](func(a, b *bitNode) int {
		switch {
		case a.fitness > b.fitness:
			return -1
		case a.fitness < b.fitness:
			return 1
		default:
			return 0
		}
	})
	root.fitness = c.fitnessOf(ctx, root.target)
	frontier.Push(root)

	var proofs []proof
	iterations := 0

	for {
		select {
		case <-ctx.Done():
			return c.finish(root, mode, proofs, TimedOut, iterations)
		default:
		}
		if iterations >= c.cfg.MaxIterations {
			return c.finish(root, mode, proofs, MaxIterationsReached, iterations)
		}

		node, ok := frontier.Pop()
		if !ok {
			status := AllExhausted
			if len(proofs) > 0 {
				status = Discharged
			}
			return c.finish(root, mode, proofs, status, iterations)
		}
		iterations++

		found, children := c.expand(ctx, node)
		proofs = append(proofs, found...)
		for _, child := range children {
			child.fitness = c.fitnessOf(ctx, child.target)
			frontier.Push(child)
		}
	}
}

func errUnknownGoal(h atom.Handle) error {
	return &unknownGoalError{h: h}
}

type unknownGoalError struct{ h atom.Handle }

func (e *unknownGoalError) Error() string {
	return "backward chain goal handle not present in this store"
}

// freeVariables returns the identifiers of every VARIABLE_NODE reachable
// from h.
func freeVariables(as *atomspace.AtomSpace, h atom.Handle) []string {
	a, ok := as.Get(h)
	if !ok {
		return nil
	}
	if a.IsVariable() {
		name, _ := a.Name()
		ident, _, _, _ := matcher.ParseVariable(name)
		return []string{ident}
	}
	if a.Kind() == atom.KindNode {
		return nil
	}
	outgoing, _ := a.Outgoing()
	var out []string
	for _, o := range outgoing {
		out = append(out, freeVariables(as, o)...)
	}
	return out
}

// expand implements one BIT expansion step (spec.md §4.5.2 steps 1-4): it
// tries direct matching (the target may already be grounded in the
// store, requiring no rule at all) plus every rule whose conclusion
// unifies with node.target. A rule whose premises fully resolve via
// conjunctive matching yields an immediate proof; a rule whose premises
// don't jointly resolve but whose conclusion still unifies structurally
// spawns a child subgoal per premise of the rule, to be expanded on a
// later iteration.
func (c *Chainer) expand(ctx context.Context, node *bitNode) ([]proof, []*bitNode) {
	var proofs []proof
	var children []*bitNode

	if direct, err := c.matcher.Match(ctx, node.target); err == nil {
		for _, r := range direct {
			tv := directTruthValue(c.as, node.target, r.Bindings)
			// ConfThreshold gates goal discharge (spec.md §4.5.2(a)) on the
			// grounded fact's own truth value, not the matcher's aggregate
			// match confidence: that aggregate's geometric mean also folds
			// in the default (0.5, 0.0) truth value of any bound constant
			// nodes the template references, which would silently drop an
			// otherwise well-evidenced fact whose arguments simply haven't
			// been assigned concept-level truth values of their own.
			if tv.Expectation() < c.cfg.ConfThreshold {
				continue
			}
			proofs = append(proofs, proof{binding: restrictToOuter(r.Bindings, node.outer), tv: tv})
		}
	}

	if node.depth >= c.cfg.MaxDepth {
		node.state = exhausted
		return proofs, children
	}

	for _, rule := range c.rules {
		env, ok, _, err := matcher.Unify(c.as, rule.Conclusion, node.target, matcher.Binding{})
		if err != nil || !ok {
			continue
		}

		conjResults, err := c.matcher.MatchConjunction(ctx, rule.clauses())
		if err != nil {
			continue
		}
		resolved := false
		for _, res := range conjResults {
			if !consistent(env, res.Bindings, node.target, c.as) {
				continue
			}
			tvs, err := instantiatedTruthValues(ctx, c.as, rule.Premises, res.Bindings)
			if err != nil {
				continue
			}
			derived := rule.Combinator(tvs)
			if err := mergeConclusion(ctx, c.as, rule.Conclusion, res.Bindings, derived); err != nil {
				continue
			}
			proofs = append(proofs, proof{binding: restrictRuleBindingToOuter(res.Bindings, rule, node.target, c.as, node.outer), tv: derived})
			resolved = true
		}
		if resolved {
			continue
		}

		// Premises didn't jointly resolve; spawn a child subgoal per
		// premise so unresolved chains can be grown on a later
		// iteration, up to MaxDepth.
		for _, premise := range rule.Premises {
			childTarget, err := Instantiate(ctx, c.as, premise, env)
			if err != nil {
				continue
			}
			children = append(children, &bitNode{
				target: childTarget,
				depth:  node.depth + 1,
				state:  unexpanded,
				outer:  node.outer,
			})
		}
	}

	node.state = expanded
	return proofs, children
}

// consistent checks that a conjunctive match over a rule's own premise
// variables agrees with the (possibly variable-to-variable) unification
// of the rule's conclusion against target: every rule variable env binds
// to a concrete atom must appear identically in the conjunctive result.
func consistent(env matcher.Binding, joint matcher.Binding, target atom.Handle, as *atomspace.AtomSpace) bool {
	for ident, h := range env {
		a, ok := as.Get(h)
		if !ok || a.IsVariable() {
			continue // env[ident] is itself a free variable; no constraint
		}
		if jv, present := joint[ident]; !present || jv != h {
			return false
		}
	}
	return true
}

// restrictToOuter keeps only the bindings whose identifier is one of the
// node's own outer-reported variables.
func restrictToOuter(b matcher.Binding, outer map[string]string) matcher.Binding {
	out := matcher.Binding{}
	for ident, outerName := range outer {
		if h, ok := b[ident]; ok {
			out[outerName] = h
		}
	}
	return out
}

// restrictRuleBindingToOuter maps a rule's own premise-variable bindings
// back onto the node's outer (caller-visible) variable names, by walking
// target's outgoing structure against the rule's conclusion template to
// find which rule variable corresponds to which position, then to which
// outer variable occupies that same position in target.
func restrictRuleBindingToOuter(joint matcher.Binding, rule *Rule, target atom.Handle, as *atomspace.AtomSpace, outer map[string]string) matcher.Binding {
	out := matcher.Binding{}
	correspond(as, rule.Conclusion, target, joint, outer, out)
	return out
}

func correspond(as *atomspace.AtomSpace, ruleTerm, targetTerm atom.Handle, joint matcher.Binding, outer map[string]string, out matcher.Binding) {
	rt, ok1 := as.Get(ruleTerm)
	tt, ok2 := as.Get(targetTerm)
	if !ok1 || !ok2 {
		return
	}
	if rt.IsVariable() {
		name, _ := rt.Name()
		ident, _, _, _ := matcher.ParseVariable(name)
		if tt.IsVariable() {
			tname, _ := tt.Name()
			tident, _, _, _ := matcher.ParseVariable(tname)
			if outerName, isOuter := outer[tident]; isOuter {
				if h, bound := joint[ident]; bound {
					out[outerName] = h
				}
			}
		}
		return
	}
	if rt.Kind() != atom.KindLink || tt.Kind() != atom.KindLink {
		return
	}
	rOut, _ := rt.Outgoing()
	tOut, _ := tt.Outgoing()
	if len(rOut) != len(tOut) {
		return
	}
	for i := range rOut {
		correspond(as, rOut[i], tOut[i], joint, outer, out)
	}
}

func directTruthValue(as *atomspace.AtomSpace, target atom.Handle, binding matcher.Binding) atom.TruthValue {
	if a, ok := as.Get(target); ok && isGround(as, target) {
		return a.TruthValue()
	}
	// target still has variables; read the TV of the concrete atom the
	// match actually found by substituting binding back in.
	if h, err := Instantiate(context.Background(), as, target, binding); err == nil {
		if a, ok := as.Get(h); ok {
			return a.TruthValue()
		}
	}
	return atom.DEFAULT
}

func instantiatedTruthValues(ctx context.Context, as *atomspace.AtomSpace, premises []atom.Handle, binding matcher.Binding) ([]atom.TruthValue, error) {
	tvs := make([]atom.TruthValue, len(premises))
	for i, p := range premises {
		h, err := Instantiate(ctx, as, p, binding)
		if err != nil {
			return nil, err
		}
		a, ok := as.Get(h)
		if !ok {
			tvs[i] = atom.DEFAULT
			continue
		}
		tvs[i] = a.TruthValue()
	}
	return tvs, nil
}

// mergeConclusion instantiates a rule's conclusion under binding and
// merges in the combinator's derived truth value (spec.md §9 "truth value
// replacement vs. merge": read current, merge, replace).
func mergeConclusion(ctx context.Context, as *atomspace.AtomSpace, conclusion atom.Handle, binding matcher.Binding, derived atom.TruthValue) error {
	h, err := Instantiate(ctx, as, conclusion, binding)
	if err != nil {
		return err
	}
	a, ok := as.Get(h)
	if !ok {
		return nil
	}
	return as.SetTruthValue(h, a.TruthValue().Merge(derived))
}

// finish collects the outcome from the BIT built so far.
func (c *Chainer) finish(root *bitNode, mode QueryMode, proofs []proof, status BackwardStatus, iterations int) (*BackwardResult, error) {
	result := &BackwardResult{Status: status, Iterations: iterations}

	deduped := dedupeProofs(proofs)

	if mode == TruthValueFulfilment {
		for _, p := range deduped {
			if len(p.binding) == 0 {
				tv := p.tv
				result.TruthValue = &tv
				break
			}
		}
		return result, nil
	}

	for _, p := range deduped {
		result.Proofs = append(result.Proofs, Proof{Binding: p.binding, TruthValue: p.tv})
	}
	return result, nil
}

func dedupeProofs(proofs []proof) []proof {
	seen := make(map[string]bool, len(proofs))
	out := make([]proof, 0, len(proofs))
	for _, p := range proofs {
		key := matcher.BindingKey(p.binding)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, p)
	}
	return out
}
