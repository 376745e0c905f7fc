package ir

import (
	"cmp"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Term is a sealed interface over the values a statement slot may hold.
// Only IRI, Text, Int, and Bool implement it. All four are comparable.
type Term interface {
	term() // Sealed - only these types implement it
	Kind() TermKind
	String() string
}

// TermKind names the concrete type of a Term. The kind is also the key
// used in the canonical JSON encoding of a term.
type TermKind string

const (
	KindIRI  TermKind = "iri"
	KindText TermKind = "text"
	KindInt  TermKind = "int"
	KindBool TermKind = "bool"
)

// kindRank orders kinds for Compare.
var kindRank = map[TermKind]int{
	KindIRI:  0,
	KindText: 1,
	KindInt:  2,
	KindBool: 3,
}

// IRI identifies a resource (e.g. "ex:Rembrandt").
type IRI string

func (IRI) term()            {}
func (IRI) Kind() TermKind   { return KindIRI }
func (v IRI) String() string { return "<" + string(v) + ">" }

// Text is a plain string literal.
type Text string

func (Text) term()            {}
func (Text) Kind() TermKind   { return KindText }
func (v Text) String() string { return strconv.Quote(string(v)) }

// Int is an integer literal. Always int64, never float.
type Int int64

func (Int) term()            {}
func (Int) Kind() TermKind   { return KindInt }
func (v Int) String() string { return strconv.FormatInt(int64(v), 10) }

// Bool is a boolean literal.
type Bool bool

func (Bool) term()            {}
func (Bool) Kind() TermKind   { return KindBool }
func (v Bool) String() string { return strconv.FormatBool(bool(v)) }

// NewIRI creates an NFC-normalized IRI.
func NewIRI(s string) IRI {
	return IRI(norm.NFC.String(s))
}

// NewText creates an NFC-normalized text literal.
func NewText(s string) Text {
	return Text(norm.NFC.String(s))
}

// Equal reports whether two terms are identical. Two nil terms are equal.
func Equal(a, b Term) bool {
	return a == b
}

// Compare orders terms by kind (IRI < Text < Int < Bool) and then by value.
// A nil term sorts before everything else.
func Compare(a, b Term) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return -1
	case b == nil:
		return 1
	}
	if c := cmp.Compare(kindRank[a.Kind()], kindRank[b.Kind()]); c != 0 {
		return c
	}
	switch av := a.(type) {
	case IRI:
		return strings.Compare(string(av), string(b.(IRI)))
	case Text:
		return strings.Compare(string(av), string(b.(Text)))
	case Int:
		return cmp.Compare(av, b.(Int))
	case Bool:
		bv := b.(Bool)
		switch {
		case av == bv:
			return 0
		case !bool(av):
			return -1
		default:
			return 1
		}
	}
	return 0
}

// TermFromAny converts a decoded YAML/JSON/CUE value to a Term.
//
// Accepted forms:
//   - string: an IRI, unless wrapped in double quotes, which makes it Text
//   - int, int64: Int
//   - bool: Bool
//   - map with exactly one of the keys "iri", "text", "int", "bool"
//
// Floats and nulls are rejected.
func TermFromAny(v any) (Term, error) {
	switch val := v.(type) {
	case nil:
		return nil, fmt.Errorf("null is not a term")
	case Term:
		return val, nil
	case string:
		if len(val) >= 2 && strings.HasPrefix(val, `"`) && strings.HasSuffix(val, `"`) {
			return NewText(val[1 : len(val)-1]), nil
		}
		if val == "" {
			return nil, fmt.Errorf("empty IRI")
		}
		return NewIRI(val), nil
	case int:
		return Int(val), nil
	case int64:
		return Int(val), nil
	case bool:
		return Bool(val), nil
	case float64, float32:
		return nil, fmt.Errorf("floats are forbidden: %v", val)
	case map[string]any:
		if len(val) != 1 {
			return nil, fmt.Errorf("term object must have exactly one key, got %d", len(val))
		}
		for k, inner := range val {
			return termFromTagged(TermKind(k), inner)
		}
	}
	return nil, fmt.Errorf("unsupported term type: %T", v)
}

func termFromTagged(kind TermKind, v any) (Term, error) {
	switch kind {
	case KindIRI:
		s, ok := v.(string)
		if !ok || s == "" {
			return nil, fmt.Errorf("iri must be a non-empty string")
		}
		return NewIRI(s), nil
	case KindText:
		s, ok := v.(string)
		if !ok {
			return nil, fmt.Errorf("text must be a string")
		}
		return NewText(s), nil
	case KindInt:
		switch n := v.(type) {
		case int:
			return Int(n), nil
		case int64:
			return Int(n), nil
		case string:
			parsed, err := strconv.ParseInt(n, 10, 64)
			if err != nil {
				return nil, fmt.Errorf("int: %w", err)
			}
			return Int(parsed), nil
		}
		return nil, fmt.Errorf("int must be an integer, got %T", v)
	case KindBool:
		b, ok := v.(bool)
		if !ok {
			return nil, fmt.Errorf("bool must be a boolean")
		}
		return Bool(b), nil
	}
	return nil, fmt.Errorf("unknown term kind %q", kind)
}
