package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/occgraph/internal/ir"
	"github.com/roach88/occgraph/internal/pattern"
)

// ParseStatement converts a [s, p, o] or [s, p, o, c] row of YAML values.
func ParseStatement(row []any) (ir.Statement, error) {
	if len(row) != 3 && len(row) != 4 {
		return ir.Statement{}, fmt.Errorf("statement must have 3 or 4 terms, got %d", len(row))
	}
	var terms [4]ir.Term
	for i, v := range row {
		t, err := ir.TermFromAny(v)
		if err != nil {
			return ir.Statement{}, fmt.Errorf("term %d: %w", i, err)
		}
		terms[i] = t
	}
	st := ir.NewStatement(terms[0], terms[1], terms[2])
	if len(row) == 4 {
		st = st.InContext(terms[3])
	}
	if err := st.Validate(); err != nil {
		return ir.Statement{}, err
	}
	return st, nil
}

// ParsePattern converts a row where "*" is a wildcard, "?x" a variable
// and "@default" the default graph.
func ParsePattern(row []any) (pattern.Pattern, error) {
	if len(row) != 3 && len(row) != 4 {
		return pattern.Pattern{}, fmt.Errorf("pattern must have 3 or 4 slots, got %d", len(row))
	}
	var slots [4]pattern.Slot
	for i, v := range row {
		s, err := parseSlot(v)
		if err != nil {
			return pattern.Pattern{}, fmt.Errorf("slot %d: %w", i, err)
		}
		slots[i] = s
	}
	p := pattern.New(slots[0], slots[1], slots[2])
	if len(row) == 4 {
		p = p.InContext(slots[3])
	}
	return p, nil
}

func parseSlot(v any) (pattern.Slot, error) {
	if s, ok := v.(string); ok {
		switch {
		case s == "*":
			return pattern.Any(), nil
		case s == "@default":
			return pattern.DefaultGraph(), nil
		case strings.HasPrefix(s, "?") && len(s) > 1:
			return pattern.V(s[1:]), nil
		}
	}
	t, err := ir.TermFromAny(v)
	if err != nil {
		return nil, err
	}
	return pattern.C(t), nil
}

// ParseBindings converts YAML bindings to pattern bindings. A leading "?"
// on a name is dropped.
func ParseBindings(raw map[string]any) (pattern.Bindings, error) {
	if raw == nil {
		return nil, nil
	}
	b := pattern.Bindings{}
	for name, v := range raw {
		t, err := ir.TermFromAny(v)
		if err != nil {
			return nil, fmt.Errorf("binding %s: %w", name, err)
		}
		b[strings.TrimPrefix(name, "?")] = t
	}
	return b, nil
}

// displayRow renders a row for the trace. Slot markers stay as written
// and terms use their String form.
func displayRow(row []any) []string {
	out := make([]string, len(row))
	for i, v := range row {
		if s, ok := v.(string); ok && (s == "*" || s == "@default" || strings.HasPrefix(s, "?")) {
			out[i] = s
			continue
		}
		t, err := ir.TermFromAny(v)
		if err != nil {
			out[i] = fmt.Sprint(v)
			continue
		}
		out[i] = t.String()
	}
	return out
}
