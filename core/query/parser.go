package query

import (
	"fmt"

	"github.com/cogpy/atomspace/core/matcher"
)

// ParseError reports a malformed query with the rune position of the
// offending token (spec.md §6: "Parse errors are reported with position").
type ParseError struct {
	Pos int
	Msg string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("query parse error at position %d: %s", e.Pos, e.Msg)
}

// parser is a straightforward recursive-descent parser over the EBNF of
// spec.md §6:
//
//	query   := "SELECT" var ("," var)* "WHERE" "{" clause ("." clause)* "}"
//	clause  := triple | isa
//	triple  := term term term
//	isa     := term "ISA" term
//	term    := var | name
//	var     := "$" identifier [":" type-name]
type parser struct {
	tokens []token
	pos    int
}

// Parse parses src into an AST, or a *ParseError on malformed syntax.
func Parse(src string) (*AST, error) {
	tokens, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &parser{tokens: tokens}
	return p.parseQuery()
}

func (p *parser) peek() token { return p.tokens[p.pos] }

func (p *parser) advance() token {
	t := p.tokens[p.pos]
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
	return t
}

func (p *parser) expect(kind tokenKind) (token, error) {
	t := p.peek()
	if t.kind != kind {
		return token{}, &ParseError{Pos: t.pos, Msg: fmt.Sprintf("expected %s, found %s %q", kind, t.kind, t.text)}
	}
	return p.advance(), nil
}

func (p *parser) parseQuery() (*AST, error) {
	if _, err := p.expect(tokSelect); err != nil {
		return nil, err
	}

	var vars []string
	declared := make(map[string]Term)
	v, err := p.expect(tokVar)
	if err != nil {
		return nil, err
	}
	ident, restriction, hasRestriction, _ := matcher.ParseVariable(v.text)
	declared[ident] = Term{Restriction: restriction, HasRestriction: hasRestriction}
	vars = append(vars, ident)
	for p.peek().kind == tokComma {
		p.advance()
		v, err := p.expect(tokVar)
		if err != nil {
			return nil, err
		}
		ident, restriction, hasRestriction, _ := matcher.ParseVariable(v.text)
		declared[ident] = Term{Restriction: restriction, HasRestriction: hasRestriction}
		vars = append(vars, ident)
	}

	if _, err := p.expect(tokWhere); err != nil {
		return nil, err
	}
	if _, err := p.expect(tokLBrace); err != nil {
		return nil, err
	}

	var clauses []Clause
	clause, err := p.parseClause()
	if err != nil {
		return nil, err
	}
	clauses = append(clauses, clause)
	for p.peek().kind == tokDot {
		p.advance()
		clause, err := p.parseClause()
		if err != nil {
			return nil, err
		}
		clauses = append(clauses, clause)
	}

	// A type restriction declared after SELECT applies to every occurrence
	// of that variable in the clauses that carries none of its own.
	for _, c := range clauses {
		for i, term := range c.Terms {
			if d := declared[term.Ident]; term.IsVar && !term.HasRestriction && d.HasRestriction {
				c.Terms[i].Restriction, c.Terms[i].HasRestriction = d.Restriction, true
			}
		}
	}

	if _, err := p.expect(tokRBrace); err != nil {
		return nil, err
	}
	if end := p.peek(); end.kind != tokEOF {
		return nil, &ParseError{Pos: end.pos, Msg: fmt.Sprintf("unexpected trailing %s %q", end.kind, end.text)}
	}

	return &AST{Vars: vars, Clauses: clauses}, nil
}

// parseClause parses "triple | isa". Both start with a term, so the
// grammar is disambiguated by lookahead: if the token after the first term
// is ISA, this is an isa clause, else the next two terms are the triple's
// predicate and object (ISA is never accepted as a term).
func (p *parser) parseClause() (Clause, error) {
	first, err := p.parseTerm()
	if err != nil {
		return Clause{}, err
	}
	if p.peek().kind == tokISA {
		p.advance()
		second, err := p.parseTerm()
		if err != nil {
			return Clause{}, err
		}
		return Clause{Kind: ClauseISA, Terms: []Term{first, second}}, nil
	}

	predicate, err := p.parseTerm()
	if err != nil {
		return Clause{}, err
	}
	object, err := p.parseTerm()
	if err != nil {
		return Clause{}, err
	}
	return Clause{Kind: ClauseTriple, Terms: []Term{first, predicate, object}}, nil
}

func (p *parser) parseTerm() (Term, error) {
	t := p.peek()
	switch t.kind {
	case tokVar:
		p.advance()
		ident, restriction, hasRestriction, _ := matcher.ParseVariable(t.text)
		return Term{IsVar: true, Ident: ident, Restriction: restriction, HasRestriction: hasRestriction}, nil
	case tokName:
		p.advance()
		return Term{IsVar: false, Ident: t.text}, nil
	case tokISA:
		// "ISA" is reserved as an infix keyword but is also a legal bare
		// name term at the lexical level; a leading ISA can only appear
		// as a keyword in this grammar, so reject it as a term.
		return Term{}, &ParseError{Pos: t.pos, Msg: "expected a term, found reserved keyword ISA"}
	default:
		return Term{}, &ParseError{Pos: t.pos, Msg: fmt.Sprintf("expected a term (variable or name), found %s %q", t.kind, t.text)}
	}
}
