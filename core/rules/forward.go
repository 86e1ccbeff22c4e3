package rules

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/tochemey/goakt/v2/actors"
	"github.com/tochemey/goakt/v2/goakt"
	"github.com/tochemey/goakt/v2/log"

	"github.com/cogpy/atomspace/core/atom"
	"github.com/cogpy/atomspace/core/atomspace"
	"github.com/cogpy/atomspace/core/matcher"
)

// ForwardChainer runs the canonical built-in rules to fixpoint over an
// AtomSpace (spec.md §4.5.1), using a goakt actor per rule so independent
// rules evaluate concurrently within a step (SPEC_FULL.md §4.5 EXPANSION
// note, grounded on core/echobeats/goakt_cognitive_system.go's
// actor-per-worker shape and core/opencog/echocog_integration.go's
// ConcurrentExecutor pool, reimplemented on goakt rather than the
// teacher's hand-rolled channel pool).
type ForwardChainer struct {
	as      *atomspace.AtomSpace
	matcher *matcher.Matcher
	rules   []*Rule

	system    goakt.ActorSystem
	pids      map[string]actors.PID
	collector *collectorActor
	collPID   actors.PID
}

// NewForwardChainer spawns one actor per rule plus a reply collector
// under a fresh actor system. Callers should call Stop when finished.
func NewForwardChainer(ctx context.Context, as *atomspace.AtomSpace, m *matcher.Matcher, rules []*Rule) (*ForwardChainer, error) {
	system, err := goakt.NewActorSystem("forward-chainer", goakt.WithLogger(log.DefaultLogger))
	if err != nil {
		return nil, atom.NewError(atom.InvalidArgument, "NewForwardChainer", fmt.Errorf("create actor system: %w", err))
	}
	if err := system.Start(ctx); err != nil {
		return nil, atom.NewError(atom.InvalidArgument, "NewForwardChainer", fmt.Errorf("start actor system: %w", err))
	}

	fc := &ForwardChainer{as: as, matcher: m, rules: rules, system: system, pids: make(map[string]actors.PID)}
	for _, r := range rules {
		pid, err := system.Spawn(ctx, "rule-"+r.Name, newRuleActor(as, m, r))
		if err != nil {
			system.Stop(ctx)
			return nil, atom.NewError(atom.InvalidArgument, "NewForwardChainer", fmt.Errorf("spawn rule actor %s: %w", r.Name, err))
		}
		fc.pids[r.Name] = pid
	}

	fc.collector = newCollectorActor()
	collPID, err := system.Spawn(ctx, "forward-collector", fc.collector)
	if err != nil {
		system.Stop(ctx)
		return nil, atom.NewError(atom.InvalidArgument, "NewForwardChainer", fmt.Errorf("spawn collector: %w", err))
	}
	fc.collPID = collPID
	return fc, nil
}

// Stop tears down the underlying actor system.
func (fc *ForwardChainer) Stop(ctx context.Context) error {
	return fc.system.Stop(ctx)
}

// ForwardResult reports the conclusion handles of every (rule, binding)
// pair a Run fired for the first time, and why it stopped. A conclusion
// that was already in the store before the Run is still listed.
type ForwardResult struct {
	Produced []atom.Handle
	Steps    int
	TimedOut bool
	Fixpoint bool
}

// evalRuleMsg asks a rule actor to fire its rule once against the current
// store and reply with the handles it derived. ctx travels in the message
// itself (core/opencog/echocog_integration.go's ExecutionTask does the
// same) since goakt's ReceiveContext does not carry a deadline-aware
// context.Context of its own in this in-process usage.
type evalRuleMsg struct {
	ctx     context.Context
	replyTo actors.PID
	derived *sync.Map // shared "already-derived" set for this run (spec.md §4.5.1)
}

type ruleDoneMsg struct {
	rule    string
	derived []atom.Handle
	err     error
}

type ruleActor struct {
	as      *atomspace.AtomSpace
	matcher *matcher.Matcher
	rule    *Rule
}

func newRuleActor(as *atomspace.AtomSpace, m *matcher.Matcher, r *Rule) *ruleActor {
	return &ruleActor{as: as, matcher: m, rule: r}
}

func (a *ruleActor) PreStart(context.Context) error { return nil }
func (a *ruleActor) PostStop(context.Context) error { return nil }

func (a *ruleActor) Receive(rctx actors.ReceiveContext) {
	msg, ok := rctx.Message().(*evalRuleMsg)
	if !ok {
		return
	}
	derived, err := a.fire(msg.ctx, msg.derived)
	rctx.Tell(msg.replyTo, &ruleDoneMsg{rule: a.rule.Name, derived: derived, err: err})
}

// fire finds every binding satisfying the rule's premises, instantiates
// the conclusion, merges in the combinator's derived truth value, and
// skips any (rule, binding) pair already present in the run-local
// "already-derived" set (spec.md §4.5.1).
func (a *ruleActor) fire(ctx context.Context, derivedSet *sync.Map) ([]atom.Handle, error) {
	results, err := a.matcher.MatchConjunction(ctx, a.rule.clauses())
	if err != nil {
		return nil, err
	}

	var out []atom.Handle
	for _, res := range results {
		key := a.rule.Name + ":" + matcher.BindingKey(res.Bindings)
		if _, already := derivedSet.LoadOrStore(key, struct{}{}); already {
			continue
		}

		tvs, err := a.rule.premiseTruthValues(ctx, a.as, res.Bindings)
		if err != nil {
			return out, err
		}
		derivedTV := a.rule.Combinator(tvs)

		conclH, err := Instantiate(ctx, a.as, a.rule.Conclusion, res.Bindings)
		if err != nil {
			return out, err
		}
		concl, ok := a.as.Get(conclH)
		if !ok {
			continue
		}
		merged := concl.TruthValue().Merge(derivedTV)
		if err := a.as.SetTruthValue(conclH, merged); err != nil {
			return out, err
		}
		out = append(out, conclH)
	}
	return out, nil
}

// Run iterates the forward chainer up to maxSteps or until no rule
// produces a new atom, accepting a deadline via ctx (spec.md §4.5.1, §5).
// On deadline expiry it returns the atoms produced so far with TimedOut
// set, never an error.
func (fc *ForwardChainer) Run(ctx context.Context, maxSteps int) (*ForwardResult, error) {
	result := &ForwardResult{}
	derivedSet := &sync.Map{}

	for step := 0; step < maxSteps; step++ {
		select {
		case <-ctx.Done():
			result.TimedOut = true
			return result, nil
		default:
		}

		produced, err := fc.runStep(ctx, derivedSet)
		if err != nil {
			return result, err
		}
		result.Steps++
		result.Produced = append(result.Produced, produced...)
		if ctx.Err() != nil {
			result.TimedOut = true
			return result, nil
		}
		if len(produced) == 0 {
			result.Fixpoint = true
			break
		}
	}
	return result, nil
}

// runStep Tells every rule actor to fire once and waits on the shared
// collector, mirroring core/echobeats/orchestrator_actor.go's pivotal-step
// synchronisation (a WaitGroup released by incoming replies) rather than
// blocking Asks.
func (fc *ForwardChainer) runStep(ctx context.Context, derivedSet *sync.Map) ([]atom.Handle, error) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	var produced []atom.Handle
	var firstErr error

	wg.Add(len(fc.rules))
	fc.collector.reset(&wg, func(msg *ruleDoneMsg) {
		mu.Lock()
		defer mu.Unlock()
		if msg.err != nil && firstErr == nil {
			firstErr = msg.err
		}
		produced = append(produced, msg.derived...)
	})

	for _, r := range fc.rules {
		fc.system.Tell(ctx, fc.pids[r.Name], &evalRuleMsg{ctx: ctx, replyTo: fc.collPID, derived: derivedSet})
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()

	select {
	case <-done:
	case <-ctx.Done():
		return produced, nil
	case <-time.After(30 * time.Second):
		return produced, atom.NewError(atom.Timeout, "runStep", fmt.Errorf("rule actors did not reply"))
	}
	return produced, firstErr
}

// collectorActor aggregates ruleDoneMsg replies for the forward chainer's
// current step; reset is called (sequentially, between steps) to rebind
// it to a fresh WaitGroup and callback.
type collectorActor struct {
	mu sync.Mutex
	wg *sync.WaitGroup
	on func(*ruleDoneMsg)
}

func newCollectorActor() *collectorActor { return &collectorActor{} }

func (c *collectorActor) reset(wg *sync.WaitGroup, on func(*ruleDoneMsg)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wg = wg
	c.on = on
}

func (c *collectorActor) PreStart(context.Context) error { return nil }
func (c *collectorActor) PostStop(context.Context) error { return nil }

func (c *collectorActor) Receive(rctx actors.ReceiveContext) {
	msg, ok := rctx.Message().(*ruleDoneMsg)
	if !ok {
		return
	}
	c.mu.Lock()
	wg, on := c.wg, c.on
	c.mu.Unlock()
	if on != nil {
		on(msg)
	}
	if wg != nil {
		wg.Done()
	}
}
