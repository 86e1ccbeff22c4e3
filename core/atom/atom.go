package atom

import (
	"fmt"
	"strings"
	"sync"
)

// Kind distinguishes the two atom variants of spec.md §3.
type Kind uint8

const (
	KindNode Kind = iota
	KindLink
)

func (k Kind) String() string {
	if k == KindLink {
		return "Link"
	}
	return "Node"
}

// Atom is an immutable, content-addressed value (handle, type, and either a
// name or an outgoing tuple) plus a mutable truth value. Identity is fixed
// at construction; only the truth value may be replaced in place, guarded
// by a dedicated lock so concurrent readers (matcher enumeration) never
// observe a torn TruthValue.
type Atom struct {
	handle   Handle
	kind     Kind
	typ      Type
	name     string // valid when kind == KindNode
	outgoing []Handle // valid when kind == KindLink

	mu sync.RWMutex
	tv TruthValue
}

// NewNode constructs a Node atom of the given type and name. The type must
// already be registered as (or under) NODE.
func NewNode(t Type, name string) (*Atom, error) {
	if !IsNodeType(t) {
		return nil, NewError(InvalidArgument, "NewNode", fmt.Errorf("type %q is not a node type", t))
	}
	return &Atom{
		handle: hashNode(t, name),
		kind:   KindNode,
		typ:    t,
		name:   name,
		tv:     DEFAULT,
	}, nil
}

// NewLink constructs a Link atom of the given type over an ordered tuple of
// outgoing handles. The type must already be registered as (or under) LINK.
// Closure (spec.md invariant 3 — every outgoing atom exists in the same
// store) is the atomspace's responsibility, not this constructor's: Atom
// values here are handle tuples, not store-bound references.
func NewLink(t Type, outgoing []Handle) (*Atom, error) {
	if !IsLinkType(t) {
		return nil, NewError(InvalidArgument, "NewLink", fmt.Errorf("type %q is not a link type", t))
	}
	cp := make([]Handle, len(outgoing))
	copy(cp, outgoing)
	return &Atom{
		handle:   hashLink(t, cp),
		kind:     KindLink,
		typ:      t,
		outgoing: cp,
		tv:       DEFAULT,
	}, nil
}

// IsVariable reports whether this atom is a VARIABLE_NODE, i.e. a node
// whose name begins with "$" (spec.md §3). Variables have no special
// runtime behaviour in the store itself; only the matcher interprets them.
func (a *Atom) IsVariable() bool {
	return a.kind == KindNode && strings.HasPrefix(a.name, "$")
}

func (a *Atom) Handle() Handle { return a.handle }
func (a *Atom) Kind() Kind     { return a.kind }
func (a *Atom) Type() Type     { return a.typ }

// Name returns the node's name. It fails with InvalidArgument for a link.
func (a *Atom) Name() (string, error) {
	if a.kind != KindNode {
		return "", NewError(InvalidArgument, "Atom.Name", fmt.Errorf("handle %d is a link, not a node", a.handle))
	}
	return a.name, nil
}

// Outgoing returns the link's outgoing tuple. It fails with InvalidArgument
// for a node. The returned slice is a defensive copy.
func (a *Atom) Outgoing() ([]Handle, error) {
	if a.kind != KindLink {
		return nil, NewError(InvalidArgument, "Atom.Outgoing", fmt.Errorf("handle %d is a node, not a link", a.handle))
	}
	cp := make([]Handle, len(a.outgoing))
	copy(cp, a.outgoing)
	return cp, nil
}

// Arity is len(Outgoing()) for a link, 0 for a node.
func (a *Atom) Arity() int {
	if a.kind != KindLink {
		return 0
	}
	return len(a.outgoing)
}

// TruthValue returns the atom's current truth value.
func (a *Atom) TruthValue() TruthValue {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tv
}

// SetTruthValue replaces the atom's truth value wholesale (spec.md §3:
// truth values are never mutated in place by external callers, only
// replaced). Callers wanting Bayesian-update semantics should read the
// current value, call Merge, then SetTruthValue the result.
func (a *Atom) SetTruthValue(tv TruthValue) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.tv = tv
}

func (a *Atom) String() string {
	if a.kind == KindNode {
		return fmt.Sprintf("(%s %q %s)", a.typ, a.name, a.TruthValue())
	}
	return fmt.Sprintf("(%s %v %s)", a.typ, a.outgoing, a.TruthValue())
}
