// Package pattern provides the graph-pattern tree evaluated by transaction
// reads and checked by the conflict validator.
//
// A read is a GraphPattern: a tree of Basic pattern lists combined with
// Join, Optional, Union, Filter, and Projection. Leaves are statement
// templates (Pattern) whose four slots are Const, Var, or Wildcard.
//
// SEALED INTERFACES:
//
// GraphPattern, Expr, and Slot are sealed interfaces using the marker
// method pattern. Only types in this package implement them, so the
// evaluator and the validator can switch exhaustively:
//
//	switch n := Deref(gp).(type) {
//	case Basic:
//	case Join:
//	case Optional:
//	case Union:
//	case Filter:
//	case Projection:
//	}
//
// Pointer forms (*Basic, *Join, ...) are accepted everywhere and
// normalized with Deref.
//
// CONTEXT SLOTS:
//
// A nil or Wildcard context slot matches statements in any graph. A Const
// context with a nil term matches the default graph only. A Var context
// binds named graphs only, since the default graph has no name to bind.
package pattern
