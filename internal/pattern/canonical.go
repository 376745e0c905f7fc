package pattern

import (
	"fmt"
	"strings"

	"github.com/roach88/occgraph/internal/ir"
)

// ToCanonical converts a graph pattern to plain maps and slices accepted
// by ir.MarshalCanonical. The shape is the query document format read by
// the compiler, so the output can be compiled back into the same tree.
func ToCanonical(gp GraphPattern) (map[string]any, error) {
	switch n := Deref(gp).(type) {
	case Basic:
		rows := make([]any, len(n.Patterns))
		for i, p := range n.Patterns {
			rows[i] = patternRow(p)
		}
		return map[string]any{"basic": rows}, nil
	case Join:
		return binaryCanonical("join", n.Left, n.Right)
	case Optional:
		return binaryCanonical("optional", n.Left, n.Right)
	case Union:
		return binaryCanonical("union", n.Left, n.Right)
	case Filter:
		inner, err := ToCanonical(n.Inner)
		if err != nil {
			return nil, err
		}
		expr, err := exprCanonical(n.Expr)
		if err != nil {
			return nil, err
		}
		return map[string]any{"filter": map[string]any{"inner": inner, "expr": expr}}, nil
	case Projection:
		inner, err := ToCanonical(n.Inner)
		if err != nil {
			return nil, err
		}
		vars := make([]any, len(n.Vars))
		for i, v := range n.Vars {
			vars[i] = v
		}
		return map[string]any{"project": map[string]any{"inner": inner, "vars": vars}}, nil
	}
	return nil, fmt.Errorf("unsupported graph pattern type %T", gp)
}

func binaryCanonical(op string, left, right GraphPattern) (map[string]any, error) {
	l, err := ToCanonical(left)
	if err != nil {
		return nil, fmt.Errorf("%s.left: %w", op, err)
	}
	r, err := ToCanonical(right)
	if err != nil {
		return nil, fmt.Errorf("%s.right: %w", op, err)
	}
	return map[string]any{op: map[string]any{"left": l, "right": r}}, nil
}

func patternRow(p Pattern) []any {
	slots := p.Slots()
	row := []any{slotCanonical(slots[0]), slotCanonical(slots[1]), slotCanonical(slots[2])}
	if _, wild := slots[3].(Wildcard); !wild {
		row = append(row, slotCanonical(slots[3]))
	}
	return row
}

func slotCanonical(s Slot) any {
	switch v := s.(type) {
	case Const:
		if v.Value == nil {
			return "@default"
		}
		return v.Value
	case Var:
		return "?" + v.Name
	}
	return "*"
}

func exprCanonical(e Expr) (any, error) {
	switch n := DerefExpr(e).(type) {
	case VarRef:
		return "?" + n.Name, nil
	case Literal:
		if n.Value == nil {
			return nil, fmt.Errorf("literal has no term")
		}
		return n.Value, nil
	case Compare:
		l, err := exprCanonical(n.Left)
		if err != nil {
			return nil, err
		}
		r, err := exprCanonical(n.Right)
		if err != nil {
			return nil, err
		}
		return map[string]any{"op": string(n.Op), "args": []any{l, r}}, nil
	case And:
		return naryCanonical("and", n.Exprs)
	case Or:
		return naryCanonical("or", n.Exprs)
	case Not:
		inner, err := exprCanonical(n.Expr)
		if err != nil {
			return nil, err
		}
		return map[string]any{"not": inner}, nil
	case Bound:
		return map[string]any{"bound": "?" + n.Name}, nil
	case Regex:
		arg, err := exprCanonical(n.Arg)
		if err != nil {
			return nil, err
		}
		return map[string]any{"regex": map[string]any{"arg": arg, "pattern": n.Pattern}}, nil
	}
	return nil, fmt.Errorf("unsupported expression type %T", e)
}

func naryCanonical(op string, exprs []Expr) (any, error) {
	out := make([]any, len(exprs))
	for i, e := range exprs {
		c, err := exprCanonical(e)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", op, i, err)
		}
		out[i] = c
	}
	return map[string]any{op: out}, nil
}

// Hash returns the content hash of a graph pattern. Equal trees hash
// equally; used to identify reads in logs and conflict diagnostics.
func Hash(gp GraphPattern) (string, error) {
	c, err := ToCanonical(gp)
	if err != nil {
		return "", err
	}
	return ir.ContentHash(ir.DomainPattern, c)
}

// Format renders a graph pattern in a compact algebra notation, e.g.
//
//	Filter(Basic(?p <ex:year> ?y), ?y >= 1631 && ?y <= 1635)
func Format(gp GraphPattern) string {
	var b strings.Builder
	formatGraph(&b, gp)
	return b.String()
}

func formatGraph(b *strings.Builder, gp GraphPattern) {
	switch n := Deref(gp).(type) {
	case Basic:
		b.WriteString("Basic(")
		for i, p := range n.Patterns {
			if i > 0 {
				b.WriteString(" . ")
			}
			b.WriteString(p.String())
		}
		b.WriteString(")")
	case Join:
		formatBinary(b, "Join", n.Left, n.Right)
	case Optional:
		formatBinary(b, "Optional", n.Left, n.Right)
	case Union:
		formatBinary(b, "Union", n.Left, n.Right)
	case Filter:
		b.WriteString("Filter(")
		formatGraph(b, n.Inner)
		b.WriteString(", ")
		b.WriteString(FormatExpr(n.Expr))
		b.WriteString(")")
	case Projection:
		b.WriteString("Project(")
		formatGraph(b, n.Inner)
		for _, v := range n.Vars {
			b.WriteString(" ?" + v)
		}
		b.WriteString(")")
	default:
		fmt.Fprintf(b, "%T", gp)
	}
}

func formatBinary(b *strings.Builder, name string, left, right GraphPattern) {
	b.WriteString(name + "(")
	formatGraph(b, left)
	b.WriteString(", ")
	formatGraph(b, right)
	b.WriteString(")")
}

// FormatExpr renders a filter expression in infix notation.
func FormatExpr(e Expr) string {
	switch n := DerefExpr(e).(type) {
	case VarRef:
		return "?" + n.Name
	case Literal:
		if n.Value == nil {
			return "nil"
		}
		return n.Value.String()
	case Compare:
		return FormatExpr(n.Left) + " " + string(n.Op) + " " + FormatExpr(n.Right)
	case And:
		return joinExprs(n.Exprs, " && ", "true")
	case Or:
		return joinExprs(n.Exprs, " || ", "false")
	case Not:
		return "!(" + FormatExpr(n.Expr) + ")"
	case Bound:
		return "bound(?" + n.Name + ")"
	case Regex:
		return fmt.Sprintf("regex(%s, %q)", FormatExpr(n.Arg), n.Pattern)
	}
	return fmt.Sprintf("%T", e)
}

func joinExprs(exprs []Expr, sep, empty string) string {
	if len(exprs) == 0 {
		return empty
	}
	parts := make([]string, len(exprs))
	for i, e := range exprs {
		parts[i] = FormatExpr(e)
		if _, nested := DerefExpr(e).(Or); nested && sep == " && " {
			parts[i] = "(" + parts[i] + ")"
		}
	}
	return strings.Join(parts, sep)
}
