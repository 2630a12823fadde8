// Package udfset loads a structured document of UDF source text into the
// core's flat {name -> (arity, Expr)} table, living outside pkg/evaluator
// exactly as the ambient external-interfaces contract requires: the core
// itself performs no filesystem I/O and knows nothing about categories.
package udfset

import (
	"fmt"

	"github.com/tardy-sh/clove-lang/pkg/parser"
	"github.com/tardy-sh/clove-lang/pkg/types"
)

// Source is one named UDF body as it appears in a preload document: an
// arity and an uncompiled Clove expression, addressed inside the body as
// @1..@arity.
type Source struct {
	Arity int    `json:"arity"`
	Body  string `json:"body"`
}

// Set groups UDF sources by category, then by name, as the preload
// document's own structured shape: category -> name -> body-string.
type Set map[string]map[string]Source

// Load parses every source in set and flattens it into the table shape
// pkg/evaluator.Eval accepts as `preloaded`. A name repeated across
// categories is an error -- it would otherwise silently depend on map
// iteration order which category wins.
func Load(set Set) (map[string]*types.UdfDef, error) {
	out := make(map[string]*types.UdfDef)
	seen := make(map[string]string, len(set))
	for category, byName := range set {
		for name, src := range byName {
			if prev, ok := seen[name]; ok {
				return nil, fmt.Errorf("udfset: %q defined in both %q and %q categories", name, prev, category)
			}
			seen[name] = category

			body, err := parser.ParseExpr(src.Body)
			if err != nil {
				return nil, fmt.Errorf("udfset: %s/%s: %w", category, name, err)
			}
			out[name] = &types.UdfDef{Name: name, Arity: src.Arity, Body: body}
		}
	}
	return out, nil
}

// Categories returns the set's category names.
func (s Set) Categories() []string {
	out := make([]string, 0, len(s))
	for c := range s {
		out = append(out, c)
	}
	return out
}

// Names returns the UDF names registered under category.
func (s Set) Names(category string) []string {
	byName := s[category]
	out := make([]string, 0, len(byName))
	for n := range byName {
		out = append(out, n)
	}
	return out
}
