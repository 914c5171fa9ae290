// Package query holds the logical query model produced by the front-end
// parsers and the parsed select specification consumed by the execution
// engine.
package query

import "github.com/stratadb/strata/pkg/flake"

// TermKind discriminates the ways a pattern component can be bound.
type TermKind uint8

const (
	// TermValue is a bound literal or reference value.
	TermValue TermKind = iota
	// TermVariable is a named variable, bound or unbound.
	TermVariable
	// TermExpression is a CEL expression over the fact's object value,
	// valid in object position only.
	TermExpression
	// TermIRI pins a subject by external identifier, valid in subject
	// position only.
	TermIRI
)

// Term is one component of a triple pattern.
type Term struct {
	Kind  TermKind
	Value flake.Value
	Var   string
	Expr  string
	IRI   string
}

// Shape tags how the leading pattern selects its candidates.
type Shape uint8

const (
	// ShapeTuple is a plain triple pattern resolved by index scan.
	ShapeTuple Shape = iota
	// ShapeID pins the subject directly by id or IRI.
	ShapeID
	// ShapeClass asserts the subject's class, resolved by the class's
	// subject-id block.
	ShapeClass
)

// Pattern is a triple template. Recurse, when positive, marks a recursive
// graph-traversal modifier; such patterns fall outside the crawl strategies.
type Pattern struct {
	Shape     Shape
	Subject   Term
	Predicate Term
	Object    Term
	Recurse   int
}

// Query is an ordered pattern list plus pre-bound variables, evaluated at a
// fixed transaction id.
type Query struct {
	Patterns []Pattern
	Vars     map[string]flake.Value
	T        int64
}

// Variable returns a variable term.
func Variable(name string) Term {
	return Term{Kind: TermVariable, Var: name}
}

// Literal returns a bound value term.
func Literal(v flake.Value) Term {
	return Term{Kind: TermValue, Value: v}
}

// Expression returns a CEL filter term for object position. The expression
// sees the decoded object value as the variable "o".
func Expression(expr string) Term {
	return Term{Kind: TermExpression, Expr: expr}
}

// IRI returns a subject term pinned to an external identifier.
func IRI(iri string) Term {
	return Term{Kind: TermIRI, IRI: iri}
}
