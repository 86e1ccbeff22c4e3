package query

import "github.com/cogpy/atomspace/core/atom"

// Term is a parsed "var | name" leaf (spec.md §6 EBNF).
type Term struct {
	IsVar          bool
	Ident          string // variable identifier without "$", or the bare name
	Restriction    atom.Type
	HasRestriction bool
}

// ClauseKind distinguishes a triple clause from an ISA clause (spec.md §6).
type ClauseKind int

const (
	ClauseTriple ClauseKind = iota
	ClauseISA
)

// Clause is one conjunct of a query's WHERE block. For a ClauseTriple,
// Terms holds (subject, predicate, object); for a ClauseISA, Terms holds
// (child, parent).
type Clause struct {
	Kind  ClauseKind
	Terms []Term
}

// AST is a fully parsed query (spec.md §6): the projected variables and
// the conjunction of clauses to satisfy.
type AST struct {
	Vars    []string
	Clauses []Clause
}
