package atom

import (
	"fmt"
	"sync"
)

// Type is an atom type name. Types form a single-rooted tree; the builtins
// below mirror the hierarchy the teacher's OpenCog-style AtomSpace carried
// (ConceptNode, PredicateNode, ... InheritanceLink, EvaluationLink, ...),
// generalised into the abstract NODE/LINK root spec.md §3 requires.
type Type string

// Builtin root and leaf types.
const (
	TypeNode Type = "NODE"
	TypeLink Type = "LINK"

	TypeConceptNode   Type = "CONCEPT_NODE"
	TypePredicateNode Type = "PREDICATE_NODE"
	TypeVariableNode  Type = "VARIABLE_NODE"
	TypeNumberNode    Type = "NUMBER_NODE"
	TypeSchemaNode    Type = "SCHEMA_NODE"

	TypeInheritanceLink Type = "INHERITANCE_LINK"
	TypeSimilarityLink  Type = "SIMILARITY_LINK"
	TypeEvaluationLink  Type = "EVALUATION_LINK"
	TypeMemberLink      Type = "MEMBER_LINK"
	TypeSubsetLink      Type = "SUBSET_LINK"
	TypeListLink        Type = "LIST_LINK"
	TypeExecutionLink   Type = "EXECUTION_LINK"
	TypeImplicationLink Type = "IMPLICATION_LINK"
	TypeEquivalenceLink Type = "EQUIVALENCE_LINK"
	TypeAndLink         Type = "AND_LINK"
	TypeOrLink          Type = "OR_LINK"
	TypeNotLink         Type = "NOT_LINK"
)

// hierarchy is a small in-process type registry supporting is-a queries.
// It is deliberately stdlib-only: the type tree is a handful of string
// entries, and no corpus dependency (gods, roaring, ...) buys anything over
// a plain map here — those are reserved for the atomspace's bulk indexes
// (see DESIGN.md).
type hierarchy struct {
	mu       sync.RWMutex
	parent   map[Type]Type
	isLink   map[Type]bool
	children map[Type][]Type
}

var registry = newHierarchy()

func newHierarchy() *hierarchy {
	h := &hierarchy{
		parent:   map[Type]Type{},
		isLink:   map[Type]bool{},
		children: map[Type][]Type{},
	}
	h.register(TypeNode, "", false)
	h.register(TypeLink, "", true)

	h.register(TypeConceptNode, TypeNode, false)
	h.register(TypePredicateNode, TypeNode, false)
	h.register(TypeVariableNode, TypeNode, false)
	h.register(TypeNumberNode, TypeNode, false)
	h.register(TypeSchemaNode, TypeNode, false)

	h.register(TypeInheritanceLink, TypeLink, true)
	h.register(TypeSimilarityLink, TypeLink, true)
	h.register(TypeEvaluationLink, TypeLink, true)
	h.register(TypeMemberLink, TypeLink, true)
	h.register(TypeSubsetLink, TypeLink, true)
	h.register(TypeListLink, TypeLink, true)
	h.register(TypeExecutionLink, TypeLink, true)
	h.register(TypeImplicationLink, TypeLink, true)
	h.register(TypeEquivalenceLink, TypeLink, true)
	h.register(TypeAndLink, TypeLink, true)
	h.register(TypeOrLink, TypeLink, true)
	h.register(TypeNotLink, TypeLink, true)
	return h
}

func (h *hierarchy) register(t, parent Type, isLink bool) {
	h.parent[t] = parent
	h.isLink[t] = isLink
	if parent != "" {
		h.children[parent] = append(h.children[parent], t)
	}
}

// RegisterType extends the hierarchy with an application-defined type under
// an existing parent. It is not required for the builtin set above.
func RegisterType(t, parent Type) error {
	registry.mu.Lock()
	defer registry.mu.Unlock()

	if _, exists := registry.parent[t]; exists {
		return NewError(InvalidArgument, "RegisterType", fmt.Errorf("type %q already registered", t))
	}
	if _, ok := registry.parent[parent]; !ok {
		return NewError(InvalidArgument, "RegisterType", fmt.Errorf("unknown parent type %q", parent))
	}
	isLink := registry.isLink[parent]
	registry.register(t, parent, isLink)
	return nil
}

// IsA reports whether t is super or a (possibly transitive) subtype of super.
func IsA(t, super Type) bool {
	if t == super {
		return true
	}
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	cur := t
	for {
		p, ok := registry.parent[cur]
		if !ok || p == "" {
			return false
		}
		if p == super {
			return true
		}
		cur = p
	}
}

// Subtypes returns every registered type t or its transitive subtypes,
// including t itself. Used by atoms_by_type(T, include_subtypes=true).
func Subtypes(t Type) []Type {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	result := []Type{t}
	var walk func(Type)
	walk = func(cur Type) {
		for _, c := range registry.children[cur] {
			result = append(result, c)
			walk(c)
		}
	}
	walk(t)
	return result
}

// IsLinkType reports whether t is LINK or a subtype of LINK.
func IsLinkType(t Type) bool {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	return registry.isLink[t]
}

// IsNodeType reports whether t is NODE or a subtype of NODE.
func IsNodeType(t Type) bool {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	isLink, known := registry.isLink[t]
	return known && !isLink
}

// KnownType reports whether t has been registered.
func KnownType(t Type) bool {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	_, ok := registry.parent[t]
	return ok
}

// KnownTypes returns every registered type name, used by the query
// front-end's "did you mean" suggestion on an unknown type restriction.
func KnownTypes() []Type {
	registry.mu.RLock()
	defer registry.mu.RUnlock()
	out := make([]Type, 0, len(registry.parent))
	for t := range registry.parent {
		out = append(out, t)
	}
	return out
}
