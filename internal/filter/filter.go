// Package filter evaluates boolean expressions over repository change events.
package filter

import (
	"fmt"
	"strings"

	"github.com/DeafMist/doc-enricher/internal/models"
)

// Op is the node kind of an expression tree.
type Op uint8

const (
	OpAtom Op = iota + 1
	OpAnd
	OpOr
)

// Predicate is an atomic test on a change event.
type Predicate struct {
	Name string
	Arg  string
	Test func(models.ChangeEvent) bool
}

// Expr is a filter expression: an atom, or a conjunction or disjunction of
// sub-expressions. An And with no arguments matches every event, an Or with
// no arguments matches none.
type Expr struct {
	Op   Op
	Pred Predicate
	Args []Expr
}

// Atom wraps a predicate into an expression.
func Atom(p Predicate) Expr {
	return Expr{Op: OpAtom, Pred: p}
}

// And matches when every argument matches.
func And(args ...Expr) Expr {
	return Expr{Op: OpAnd, Args: args}
}

// Or matches when at least one argument matches.
func Or(args ...Expr) Expr {
	return Expr{Op: OpOr, Args: args}
}

// Eval reports whether the event satisfies the expression.
func Eval(e Expr, ev models.ChangeEvent) bool {
	switch e.Op {
	case OpAtom:
		return e.Pred.Test != nil && e.Pred.Test(ev)
	case OpAnd:
		for _, arg := range e.Args {
			if !Eval(arg, ev) {
				return false
			}
		}
		return true
	case OpOr:
		for _, arg := range e.Args {
			if Eval(arg, ev) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// String renders the expression, e.g. "(HasAspect(a) AND NodeType(cm:content))".
func (e Expr) String() string {
	switch e.Op {
	case OpAtom:
		return fmt.Sprintf("%s(%s)", e.Pred.Name, e.Pred.Arg)
	case OpAnd, OpOr:
		sep := " AND "
		if e.Op == OpOr {
			sep = " OR "
		}
		parts := make([]string, 0, len(e.Args))
		for _, arg := range e.Args {
			parts = append(parts, arg.String())
		}
		return "(" + strings.Join(parts, sep) + ")"
	default:
		return "<invalid>"
	}
}

func HasAspect(aspect string) Expr {
	return Atom(Predicate{Name: "HasAspect", Arg: aspect, Test: func(ev models.ChangeEvent) bool {
		return ev.HasAspect(aspect)
	}})
}

func NodeType(nodeType string) Expr {
	return Atom(Predicate{Name: "NodeType", Arg: nodeType, Test: func(ev models.ChangeEvent) bool {
		return ev.NodeType == nodeType
	}})
}

func ContentChanged() Expr {
	return Atom(Predicate{Name: "ContentChanged", Test: func(ev models.ChangeEvent) bool {
		return ev.ContentChanged
	}})
}

func AspectAdded(aspect string) Expr {
	return Atom(Predicate{Name: "AspectAdded", Arg: aspect, Test: func(ev models.ChangeEvent) bool {
		return ev.AspectWasAdded(aspect)
	}})
}

func PropertyChanged(property string) Expr {
	return Atom(Predicate{Name: "PropertyChanged", Arg: property, Test: func(ev models.ChangeEvent) bool {
		return ev.PropertyWasChanged(property)
	}})
}

// OnCreate matches content created with the aspect already applied.
func OnCreate(aspect string) Expr {
	return And(HasAspect(aspect), NodeType(models.NodeTypeContent))
}

// OnUpdate matches content whose bytes changed while carrying the aspect,
// or content the aspect has just been added to.
func OnUpdate(aspect string) Expr {
	return Or(
		And(HasAspect(aspect), NodeType(models.NodeTypeContent), ContentChanged()),
		AspectAdded(aspect),
	)
}
