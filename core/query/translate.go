package query

import (
	"context"
	"fmt"
	"sort"

	"github.com/agnivade/levenshtein"

	"github.com/cogpy/atomspace/core/atom"
	"github.com/cogpy/atomspace/core/atomspace"
	"github.com/cogpy/atomspace/core/matcher"
)

// Translate exposes translate's per-clause template handles, for callers
// (e.g. the CLI's "infer" subcommand) that need a single clause's handle
// to hand the rule engine as a backward-chaining goal, rather than
// running the conjunction through the matcher directly.
func Translate(ctx context.Context, as *atomspace.AtomSpace, q *AST) ([]atom.Handle, error) {
	clauses, err := translate(ctx, as, q)
	if err != nil {
		return nil, err
	}
	handles := make([]atom.Handle, len(clauses))
	for i, c := range clauses {
		handles[i] = c.Template
	}
	return handles, nil
}

// translate builds one matcher.Clause per AST clause: a triple becomes
// EVALUATION_LINK(predicate, LIST_LINK(subject, object)); an ISA becomes
// INHERITANCE_LINK(child, parent) (spec.md §4.6). Every term is inserted
// into as as an ordinary (possibly variable) atom via AddNode, reusing the
// store's own canonicalisation rather than a separate template
// representation.
func translate(ctx context.Context, as *atomspace.AtomSpace, q *AST) ([]matcher.Clause, error) {
	clauses := make([]matcher.Clause, 0, len(q.Clauses))
	for _, c := range q.Clauses {
		switch c.Kind {
		case ClauseISA:
			child, err := termHandle(ctx, as, c.Terms[0], atom.TypeConceptNode)
			if err != nil {
				return nil, err
			}
			parent, err := termHandle(ctx, as, c.Terms[1], atom.TypeConceptNode)
			if err != nil {
				return nil, err
			}
			link, err := as.AddLink(ctx, atom.TypeInheritanceLink, []atom.Handle{child, parent})
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, matcher.Clause{Template: link})

		case ClauseTriple:
			subject, err := termHandle(ctx, as, c.Terms[0], atom.TypeConceptNode)
			if err != nil {
				return nil, err
			}
			predicate, err := termHandle(ctx, as, c.Terms[1], atom.TypePredicateNode)
			if err != nil {
				return nil, err
			}
			object, err := termHandle(ctx, as, c.Terms[2], atom.TypeConceptNode)
			if err != nil {
				return nil, err
			}
			list, err := as.AddLink(ctx, atom.TypeListLink, []atom.Handle{subject, object})
			if err != nil {
				return nil, err
			}
			link, err := as.AddLink(ctx, atom.TypeEvaluationLink, []atom.Handle{predicate, list})
			if err != nil {
				return nil, err
			}
			clauses = append(clauses, matcher.Clause{Template: link})
		}
	}
	return clauses, nil
}

// termHandle inserts one parsed Term into as: a bare name becomes a node
// of bareNameType (ConceptNode for subject/object/ISA positions,
// PredicateNode for the triple's predicate position, per spec.md §4.6); a
// variable becomes a VARIABLE_NODE, re-encoding its optional type
// restriction into the node's own name so the matcher's ParseVariable
// recovers it unchanged.
func termHandle(ctx context.Context, as *atomspace.AtomSpace, t Term, bareNameType atom.Type) (atom.Handle, error) {
	if !t.IsVar {
		return as.AddNode(ctx, bareNameType, t.Ident)
	}

	if t.HasRestriction && !atom.KnownType(t.Restriction) {
		return 0, unknownTypeError(t.Restriction)
	}

	name := "$" + t.Ident
	if t.HasRestriction {
		name = name + ":" + string(t.Restriction)
	}
	return as.AddNode(ctx, atom.TypeVariableNode, name)
}

// unknownTypeError reports an unknown type restriction as InvalidArgument,
// with a "did you mean" suggestion via agnivade/levenshtein against the
// registered type names (SPEC_FULL.md §4.6 EXPANSION note), matching the
// corpus's CLI "did you mean" ergonomics.
func unknownTypeError(want atom.Type) error {
	known := atom.KnownTypes()
	sort.Slice(known, func(i, j int) bool { return known[i] < known[j] })

	best := ""
	bestDist := -1
	for _, k := range known {
		d := levenshtein.ComputeDistance(string(want), string(k))
		if bestDist == -1 || d < bestDist {
			bestDist = d
			best = string(k)
		}
	}

	msg := fmt.Sprintf("unknown type restriction %q", want)
	if best != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", best)
	}
	return atom.NewError(atom.InvalidArgument, "query.translate", fmt.Errorf("%s", msg))
}
