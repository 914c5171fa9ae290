// Package policy evaluates per-flake visibility. A policy is a set of
// allow/deny rules at three levels, consulted with property-level rules
// taking precedence over class-level rules, and class-level rules over the
// policy default. A rule may carry a CEL condition over the flake being
// tested; the rule only applies when the condition holds.
package policy

import (
	"context"
	"fmt"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common"

	"github.com/stratadb/strata/pkg/flake"
)

var celEnv *cel.Env

func init() {
	env, err := cel.NewEnv(
		cel.Variable("subject", cel.IntType),
		cel.Variable("predicate", cel.IntType),
		cel.Variable("value", cel.DynType),
		cel.Variable("t", cel.IntType),
		cel.EagerlyValidateDeclarations(true),
	)
	if err != nil {
		panic(fmt.Sprintf("failed to construct CEL base env: %v", err))
	}
	celEnv = env
}

// Rule grants or denies visibility. Predicate set makes it property-level;
// otherwise Class set makes it class-level. A rule with neither is invalid.
// Condition, when non-empty, is a CEL expression over the variables
// subject, predicate, value, and t.
type Rule struct {
	Name      string
	Class     *flake.ClassID
	Predicate *flake.PredicateID
	Allow     bool
	Condition string
}

type compiledRule struct {
	Rule
	program cel.Program
}

// Policy is read-only for the duration of a query and safe for concurrent
// use: rule conditions are compiled once at construction.
type Policy struct {
	root       bool
	defaultAll bool
	byPred     map[flake.PredicateID][]compiledRule
	byClass    map[flake.ClassID][]compiledRule
}

// Root returns the unrestricted policy. The engine skips permission
// filtering entirely when the policy is root.
func Root() *Policy {
	return &Policy{root: true}
}

// Compile validates the rules and compiles their conditions. defaultAllow
// decides visibility when no rule applies.
func Compile(defaultAllow bool, rules []Rule) (*Policy, error) {
	p := &Policy{
		defaultAll: defaultAllow,
		byPred:     make(map[flake.PredicateID][]compiledRule),
		byClass:    make(map[flake.ClassID][]compiledRule),
	}
	for _, r := range rules {
		if r.Predicate == nil && r.Class == nil {
			return nil, fmt.Errorf("policy rule %q targets neither a class nor a predicate", r.Name)
		}

		cr := compiledRule{Rule: r}
		if r.Condition != "" {
			ast, issues := celEnv.CompileSource(common.NewStringSource(r.Condition, r.Name))
			if issues != nil && issues.Err() != nil {
				return nil, fmt.Errorf("policy rule %q: %w", r.Name, issues.Err())
			}
			program, err := celEnv.Program(ast)
			if err != nil {
				return nil, fmt.Errorf("policy rule %q: %w", r.Name, err)
			}
			cr.program = program
		}

		if r.Predicate != nil {
			p.byPred[*r.Predicate] = append(p.byPred[*r.Predicate], cr)
		} else {
			p.byClass[*r.Class] = append(p.byClass[*r.Class], cr)
		}
	}
	return p, nil
}

// IsRoot reports whether the policy is unrestricted.
func (p *Policy) IsRoot() bool {
	return p.root
}

// Visible decides whether one flake may be read. The first applicable
// property-level rule wins, then the first applicable class-level rule,
// then the default.
func (p *Policy) Visible(ctx context.Context, f *flake.Flake) (bool, error) {
	if p.root {
		return true, nil
	}

	for _, r := range p.byPred[f.Predicate] {
		applies, err := r.applies(ctx, f)
		if err != nil {
			return false, err
		}
		if applies {
			return r.Allow, nil
		}
	}

	for _, r := range p.byClass[f.Subject.Class()] {
		applies, err := r.applies(ctx, f)
		if err != nil {
			return false, err
		}
		if applies {
			return r.Allow, nil
		}
	}

	return p.defaultAll, nil
}

func (r compiledRule) applies(ctx context.Context, f *flake.Flake) (bool, error) {
	if r.Predicate != nil && f.Subject.Class() != classOrAny(r.Class, f) {
		return false, nil
	}
	if r.program == nil {
		return true, nil
	}

	out, _, err := r.program.ContextEval(ctx, map[string]any{
		"subject":   int64(f.Subject),
		"predicate": int64(f.Predicate),
		"value":     f.Object.Native(),
		"t":         f.T,
	})
	if err != nil {
		return false, fmt.Errorf("policy rule %q: %w", r.Name, err)
	}
	met, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("policy rule %q: condition is not boolean", r.Name)
	}
	return met, nil
}

// classOrAny narrows a property-level rule to a class when one is set.
func classOrAny(class *flake.ClassID, f *flake.Flake) flake.ClassID {
	if class == nil {
		return f.Subject.Class()
	}
	return *class
}
