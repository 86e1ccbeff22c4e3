package rules

import (
	"context"
	"fmt"
	"time"

	"github.com/agnivade/levenshtein"
	"gonum.org/v1/gonum/stat"

	"github.com/cogpy/atomspace/core/atom"
	"github.com/cogpy/atomspace/core/atomspace"
	"github.com/cogpy/atomspace/core/matcher"
)

// Strategy selects how a goal is attacked (spec.md §4.5.3).
type Strategy int

const (
	ForwardOnly Strategy = iota
	BackwardOnly
	MixedForwardFirst
	MixedBackwardFirst
	AdaptiveBidirectional
)

func (s Strategy) String() string {
	switch s {
	case ForwardOnly:
		return "FORWARD_ONLY"
	case BackwardOnly:
		return "BACKWARD_ONLY"
	case MixedForwardFirst:
		return "MIXED_FORWARD_FIRST"
	case MixedBackwardFirst:
		return "MIXED_BACKWARD_FIRST"
	case AdaptiveBidirectional:
		return "ADAPTIVE_BIDIRECTIONAL"
	default:
		return "UNKNOWN"
	}
}

// goalShape is the adaptive history table's key (spec.md §4.5.3):
// (target-type, depth, variable-count). depth here is the goal template's
// structural complexity, used as a stand-in for "expected proof depth".
type goalShape struct {
	targetType    atom.Type
	depth         int
	variableCount int
}

// shapeKey renders a goalShape as a fuzzy-bucketable string: exact
// (type, variableCount) plus a depth rounded up to the next power of two,
// so goals of similar but not identical complexity share history.
func shapeKey(s goalShape) string {
	bucket := 1
	for bucket < s.depth {
		bucket *= 2
	}
	return fmt.Sprintf("%s|d%d|v%d", s.targetType, bucket, s.variableCount)
}

type strategyScore struct {
	rollingMean float64
	samples     int
}

// AdaptiveSelector maintains the history table described in spec.md
// §4.5.3 and picks a strategy for each new goal. agnivade/levenshtein
// buckets a new goal's shape against previously-seen shapes when no exact
// key exists, so history from "similar enough" goals still informs the
// decision (SPEC_FULL.md §4.5 EXPANSION note).
type AdaptiveSelector struct {
	history map[string]map[Strategy]*strategyScore
}

// NewAdaptiveSelector constructs an empty history table.
func NewAdaptiveSelector() *AdaptiveSelector {
	return &AdaptiveSelector{history: make(map[string]map[Strategy]*strategyScore)}
}

// Record folds a new (atoms-generated-per-second, discharge-success) score
// into the rolling average for shape+strategy.
func (a *AdaptiveSelector) Record(shape goalShape, strat Strategy, atomsPerSecond float64, discharged bool) {
	key := shapeKey(shape)
	if a.history[key] == nil {
		a.history[key] = make(map[Strategy]*strategyScore)
	}
	s := a.history[key][strat]
	if s == nil {
		s = &strategyScore{}
		a.history[key][strat] = s
	}
	successTerm := 0.0
	if discharged {
		successTerm = 1.0
	}
	score := 0.5*atomsPerSecond + 0.5*successTerm

	s.samples++
	if s.samples == 1 {
		s.rollingMean = score
		return
	}
	// Weighted mean of the previous average (weight samples-1) and the
	// new sample (weight 1) is the standard incremental-average update.
	s.rollingMean = stat.Mean([]float64{s.rollingMean, score}, []float64{float64(s.samples - 1), 1})
}

// bestKey finds the closest known shape key by edit distance when key
// itself has no history yet (fuzzy bucketing, SPEC_FULL.md §4.5 EXPANSION
// note).
func (a *AdaptiveSelector) bestKey(key string) (string, bool) {
	if _, ok := a.history[key]; ok {
		return key, true
	}
	best := ""
	bestDist := -1
	for k := range a.history {
		d := levenshtein.ComputeDistance(key, k)
		if bestDist == -1 || d < bestDist {
			bestDist = d
			best = k
		}
	}
	if best == "" {
		return "", false
	}
	return best, true
}

// meanFor returns the running mean score recorded for shape+strat (fuzzily
// bucketed like Select), or 0 if no history applies.
func (a *AdaptiveSelector) meanFor(shape goalShape, strat Strategy) float64 {
	key, ok := a.bestKey(shapeKey(shape))
	if !ok {
		return 0
	}
	s := a.history[key][strat]
	if s == nil {
		return 0
	}
	return s.rollingMean
}

// Select returns the highest-scoring strategy for shape, defaulting to
// MixedForwardFirst (tie-break "forward-first") when no history applies.
func (a *AdaptiveSelector) Select(shape goalShape) Strategy {
	key, ok := a.bestKey(shapeKey(shape))
	if !ok {
		return MixedForwardFirst
	}
	best := MixedForwardFirst
	bestScore := -1.0
	for _, strat := range []Strategy{ForwardOnly, BackwardOnly, MixedForwardFirst, MixedBackwardFirst, AdaptiveBidirectional} {
		s := a.history[key][strat]
		if s == nil {
			continue
		}
		if s.rollingMean > bestScore {
			bestScore = s.rollingMean
			best = strat
		}
	}
	return best
}

// Engine ties the forward chainer, backward chainer, and adaptive
// selector together behind one entry point per spec.md §4.5.3.
type Engine struct {
	as       *atomspace.AtomSpace
	matcher  *matcher.Matcher
	forward  *ForwardChainer
	backward *Chainer
	selector *AdaptiveSelector
}

// NewEngine constructs an Engine over the given rule set.
func NewEngine(ctx context.Context, as *atomspace.AtomSpace, m *matcher.Matcher, rules []*Rule, bcfg *BackwardConfig) (*Engine, error) {
	fc, err := NewForwardChainer(ctx, as, m, rules)
	if err != nil {
		return nil, err
	}
	return &Engine{
		as:       as,
		matcher:  m,
		forward:  fc,
		backward: NewChainer(as, m, rules, bcfg),
		selector: NewAdaptiveSelector(),
	}, nil
}

// Stop releases the forward chainer's actor system.
func (e *Engine) Stop(ctx context.Context) error { return e.forward.Stop(ctx) }

// Solve attacks goal with the requested strategy. Under
// ADAPTIVE_BIDIRECTIONAL it delegates to solveAdaptive, which switches
// direction at most once mid-run (spec.md §4.5.3); every other strategy
// runs once, start to finish.
func (e *Engine) Solve(ctx context.Context, goal atom.Handle, mode QueryMode, strat Strategy, maxForwardSteps int) (*BackwardResult, error) {
	shape := goalShape{
		targetType:    typeOf(e.as, goal),
		depth:         atomComplexity(e.as, goal),
		variableCount: len(freeVariables(e.as, goal)),
	}
	if strat == AdaptiveBidirectional {
		return e.solveAdaptive(ctx, goal, mode, maxForwardSteps, shape)
	}

	start := time.Now()
	result, err := e.runStrategy(ctx, goal, mode, strat, maxForwardSteps)
	if err != nil {
		return nil, err
	}

	elapsed := time.Since(start).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(len(result.Proofs)) / elapsed
	}
	e.selector.Record(shape, strat, rate, result.Status == Discharged)
	return result, nil
}

// solveAdaptive implements the ADAPTIVE_BIDIRECTIONAL case of spec.md
// §4.5.3: pick a starting strategy from history, spend half the forward
// step budget on it, then switch direction at most once — for the
// remaining budget — if the interim proof rate falls under 25% of that
// strategy's running mean. A strategy with no history yet, or that
// already discharged the goal in its first half, never switches.
func (e *Engine) solveAdaptive(ctx context.Context, goal atom.Handle, mode QueryMode, maxForwardSteps int, shape goalShape) (*BackwardResult, error) {
	primary := e.selector.Select(shape)
	if primary == AdaptiveBidirectional {
		primary = MixedForwardFirst
	}

	half := maxForwardSteps / 2
	if half < 1 {
		half = maxForwardSteps
	}

	start := time.Now()
	result, err := e.runStrategy(ctx, goal, mode, primary, half)
	if err != nil {
		return nil, err
	}

	final := primary
	if mode == VariableFulfilment && result.Status != Discharged {
		elapsed := time.Since(start).Seconds()
		rate := 0.0
		if elapsed > 0 {
			rate = float64(len(result.Proofs)) / elapsed
		}
		mean := e.selector.meanFor(shape, primary)
		if mean > 0 && rate < 0.25*mean {
			alt := opposite(primary)
			remaining := maxForwardSteps - half
			if remaining < 1 {
				remaining = maxForwardSteps
			}
			second, err2 := e.runStrategy(ctx, goal, mode, alt, remaining)
			if err2 != nil {
				return nil, err2
			}
			result = mergeResults(result, second)
			final = alt
		}
	}

	elapsed := time.Since(start).Seconds()
	rate := 0.0
	if elapsed > 0 {
		rate = float64(len(result.Proofs)) / elapsed
	}
	e.selector.Record(shape, final, rate, result.Status == Discharged)
	return result, nil
}

// runStrategy runs one non-adaptive strategy to completion.
func (e *Engine) runStrategy(ctx context.Context, goal atom.Handle, mode QueryMode, strat Strategy, maxForwardSteps int) (*BackwardResult, error) {
	switch strat {
	case ForwardOnly:
		// Derive everything forward chaining can reach, then report
		// whatever now matches the goal directly (MaxDepth: 0 disables
		// the backward chainer's own rule-application recursion).
		if _, ferr := e.forward.Run(ctx, maxForwardSteps); ferr != nil {
			return nil, ferr
		}
		directOnly := NewChainer(e.as, e.matcher, nil, &BackwardConfig{MaxDepth: 0, MaxIterations: e.backward.cfg.MaxIterations, ConfThreshold: e.backward.cfg.ConfThreshold})
		return directOnly.BackwardChain(ctx, goal, mode)
	case BackwardOnly:
		return e.backward.BackwardChain(ctx, goal, mode)
	case MixedForwardFirst:
		if _, ferr := e.forward.Run(ctx, maxForwardSteps); ferr != nil {
			return nil, ferr
		}
		return e.backward.BackwardChain(ctx, goal, mode)
	case MixedBackwardFirst:
		result, err := e.backward.BackwardChain(ctx, goal, mode)
		if err == nil && len(result.Proofs) == 0 && result.TruthValue == nil {
			if _, ferr := e.forward.Run(ctx, maxForwardSteps); ferr != nil {
				return nil, ferr
			}
			return e.backward.BackwardChain(ctx, goal, mode)
		}
		return result, err
	default:
		return e.backward.BackwardChain(ctx, goal, mode)
	}
}

// opposite maps a strategy to the one that attacks the goal from the
// other direction, for solveAdaptive's single mid-run switch.
func opposite(s Strategy) Strategy {
	switch s {
	case ForwardOnly:
		return BackwardOnly
	case BackwardOnly:
		return ForwardOnly
	case MixedForwardFirst:
		return MixedBackwardFirst
	case MixedBackwardFirst:
		return MixedForwardFirst
	default:
		return MixedBackwardFirst
	}
}

// mergeResults combines the two halves of a switched adaptive run:
// iterations add, proofs dedupe by binding, status favors the better
// outcome, and whichever half actually discharged a TruthValueFulfilment
// query wins.
func mergeResults(a, b *BackwardResult) *BackwardResult {
	merged := &BackwardResult{Iterations: a.Iterations + b.Iterations}

	switch {
	case a.Status == Discharged || b.Status == Discharged:
		merged.Status = Discharged
	case a.Status == TimedOut || b.Status == TimedOut:
		merged.Status = TimedOut
	case a.Status == MaxIterationsReached || b.Status == MaxIterationsReached:
		merged.Status = MaxIterationsReached
	default:
		merged.Status = AllExhausted
	}

	seen := make(map[string]bool, len(a.Proofs)+len(b.Proofs))
	for _, p := range append(append([]Proof{}, a.Proofs...), b.Proofs...) {
		key := matcher.BindingKey(p.Binding)
		if seen[key] {
			continue
		}
		seen[key] = true
		merged.Proofs = append(merged.Proofs, p)
	}

	merged.TruthValue = a.TruthValue
	if merged.TruthValue == nil {
		merged.TruthValue = b.TruthValue
	}
	return merged
}

func typeOf(as *atomspace.AtomSpace, h atom.Handle) atom.Type {
	if a, ok := as.Get(h); ok {
		return a.Type()
	}
	return ""
}
