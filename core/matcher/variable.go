package matcher

import (
	"strings"

	"github.com/dlclark/regexp2"

	"github.com/cogpy/atomspace/core/atom"
)

// variablePattern recognises a VARIABLE_NODE name of the form "$ident" or
// "$ident:TypeName" (spec.md §3, §9 Open Question i — resolved structural:
// "$x:T" type-restricts the variable to is_a(_, T)). regexp2 is used
// instead of stdlib regexp for parity with the corpus's regex engine
// choice elsewhere (SPEC_FULL.md §4.6 EXPANSION note); the pattern itself
// needs no lookaround, but keeping one engine for all variable-name
// handling (this package and core/query) avoids a split dependency.
var variablePattern = regexp2.MustCompile(`^\$(?<ident>[A-Za-z_][A-Za-z0-9_]*)(?::(?<type>[A-Za-z_][A-Za-z0-9_]*))?$`, regexp2.None)

// ParseVariable splits a VARIABLE_NODE name into its identifier and an
// optional type restriction. ok is false if name does not look like a
// variable at all (doesn't start with "$").
func ParseVariable(name string) (ident string, restriction atom.Type, hasRestriction bool, ok bool) {
	if !strings.HasPrefix(name, "$") {
		return "", "", false, false
	}
	m, err := variablePattern.FindStringMatch(name)
	if err != nil || m == nil {
		// Malformed variable syntax; treat as an unrestricted variable
		// keyed by the raw name so the matcher still makes progress.
		return name, "", false, true
	}
	identGroup := m.GroupByName("ident")
	typeGroup := m.GroupByName("type")
	ident = identGroup.String()
	if typeGroup != nil && typeGroup.String() != "" {
		return ident, atom.Type(typeGroup.String()), true, true
	}
	return ident, "", false, true
}
