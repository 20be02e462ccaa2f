// Package types defines the type values of the basalt checker and the call
// signatures built from the action catalogue.
package types

import (
	"fmt"
	"sort"
	"strings"
)

// Type is a checked type. The set of implementations is closed; every
// operation below switches over all of them.
type Type interface {
	String() string
	typ()
}

// Primitive is one of the non-parameterized types.
type Primitive uint8

const (
	Any Primitive = iota
	Void
	Error
	Boolean
	Number
	String
	StyledText
)

var primitiveNames = [...]string{"any", "void", "error", "boolean", "number", "string", "text"}

func (p Primitive) String() string { return primitiveNames[p] }
func (Primitive) typ()             {}

// List is list[Elem]. An Elem of Void marks an empty list.
type List struct{ Elem Type }

// Dict is dict[Elem] with string keys. An Elem of Void marks an empty dict.
type Dict struct{ Elem Type }

// Reference is an output-parameter handle to a variable of type Elem.
type Reference struct{ Elem Type }

// LiteralKind is the base kind of a literal type.
type LiteralKind uint8

const (
	LiteralString LiteralKind = iota
	LiteralNumber
	LiteralBoolean
)

// Literal pins a constant value, used to match tag options.
type Literal struct {
	Kind  LiteralKind
	Value string
}

// Union is any one of Members.
type Union struct{ Members []Type }

// GameValue is a readable value of the game.
type GameValue struct {
	Name   string
	Result Type
	Doc    string
}

// Namespace maps member names to types. Equality is by identity.
type Namespace struct {
	Name       string
	Members    map[string]Type
	GameValues bool // members are GameValue readers
}

// Event is an entry point declared by the catalogue.
type Event struct {
	Name   string // snake_case name, e.g. join
	ID     string // namespace name, e.g. player_event
	Block  string // codeblock identifier, e.g. event
	Action string // action name, e.g. Join
	Doc    string
}

// Callable is a user-defined function.
type Callable struct {
	Name      string
	Signature *Signature
}

// Action is a Callable backed by a catalogue action.
type Action struct {
	Callable
	Codeblock string // codeblock identifier, e.g. player_action
	Action    string // catalogue name, e.g. SendMessage
	Doc       string
}

func (*List) typ()      {}
func (*Dict) typ()      {}
func (*Reference) typ() {}
func (Literal) typ()    {}
func (*Union) typ()     {}
func (*Namespace) typ() {}
func (*Event) typ()     {}
func (*Callable) typ()  {}
func (*Action) typ()    {}
func (*GameValue) typ() {}

func elemString(name string, elem Type) string {
	if elem == nil || elem == Void {
		return name
	}
	return name + "[" + elem.String() + "]"
}

func (t *List) String() string      { return elemString("list", t.Elem) }
func (t *Dict) String() string      { return elemString("dict", t.Elem) }
func (t *Reference) String() string { return elemString("ref", t.Elem) }

func (t Literal) String() string {
	if t.Kind == LiteralString {
		return "'" + t.Value + "'"
	}
	return t.Value
}

func (t *Union) String() string {
	parts := make([]string, len(t.Members))
	for i, m := range t.Members {
		parts[i] = m.String()
	}
	return strings.Join(parts, " | ")
}

func (t *Namespace) String() string { return "namespace " + t.Name }
func (t *Event) String() string     { return "event " + t.ID + "::" + t.Name }
func (t *Callable) String() string  { return "fn " + t.Name + t.Signature.String() }
func (t *Action) String() string    { return "action " + t.Codeblock + "::" + t.Name + t.Signature.String() }
func (t *GameValue) String() string { return "game value " + t.Name + ": " + t.Result.String() }

// NewList returns an empty list type.
func NewList() *List { return &List{Elem: Void} }

// NewDict returns an empty dict type.
func NewDict() *Dict { return &Dict{Elem: Void} }

// NewReference returns an unbound reference type.
func NewReference() *Reference { return &Reference{Elem: Void} }

// NewUnion returns the union of ts with duplicates removed. A single
// distinct member is returned unwrapped.
func NewUnion(ts ...Type) Type {
	var members []Type
	for _, t := range ts {
		if u, ok := t.(*Union); ok {
			members = appendDistinct(members, u.Members...)
			continue
		}
		members = appendDistinct(members, t)
	}
	switch len(members) {
	case 0:
		return Void
	case 1:
		return members[0]
	}
	return &Union{Members: members}
}

func appendDistinct(members []Type, ts ...Type) []Type {
outer:
	for _, t := range ts {
		for _, m := range members {
			if Identical(m, t) {
				continue outer
			}
		}
		members = append(members, t)
	}
	return members
}

// IsEmpty reports whether t is a container whose element type is unbound.
func IsEmpty(t Type) bool {
	switch t := t.(type) {
	case *List:
		return isVoid(t.Elem)
	case *Dict:
		return isVoid(t.Elem)
	case *Reference:
		return isVoid(t.Elem)
	}
	return false
}

func isVoid(t Type) bool { return t == nil || t == Void }

// ---------------------------------------------------------------------------
// Equality
// ---------------------------------------------------------------------------

// Equals reports whether a value of type b is accepted where a is expected.
// Error is compatible with everything, Any on the left accepts everything and
// a Union on the left accepts anything one of its members accepts.
func Equals(a, b Type) bool {
	if a == Error || b == Error {
		return true
	}
	switch a := a.(type) {
	case Primitive:
		if a == Any {
			return true
		}
		return a == b
	case *List:
		o, ok := b.(*List)
		return ok && Equals(elemOf(a.Elem), elemOf(o.Elem))
	case *Dict:
		o, ok := b.(*Dict)
		return ok && Equals(elemOf(a.Elem), elemOf(o.Elem))
	case *Reference:
		o, ok := b.(*Reference)
		return ok && Equals(elemOf(a.Elem), elemOf(o.Elem))
	case Literal:
		o, ok := b.(Literal)
		return ok && a == o
	case *Union:
		for _, m := range a.Members {
			if Equals(m, b) {
				return true
			}
		}
		return false
	case *Namespace, *Callable, *Action, *GameValue:
		return a == b
	case *Event:
		o, ok := b.(*Event)
		return ok && a.Name == o.Name && a.ID == o.ID
	}
	panic(fmt.Sprintf("types: unhandled type %T", a))
}

// Identical reports structural identity, with no Any or Error widening.
func Identical(a, b Type) bool {
	switch a := a.(type) {
	case Primitive:
		return a == b
	case *List:
		o, ok := b.(*List)
		return ok && Identical(elemOf(a.Elem), elemOf(o.Elem))
	case *Dict:
		o, ok := b.(*Dict)
		return ok && Identical(elemOf(a.Elem), elemOf(o.Elem))
	case *Reference:
		o, ok := b.(*Reference)
		return ok && Identical(elemOf(a.Elem), elemOf(o.Elem))
	case Literal:
		o, ok := b.(Literal)
		return ok && a == o
	case *Union:
		o, ok := b.(*Union)
		if !ok || len(o.Members) != len(a.Members) {
			return false
		}
		for i := range a.Members {
			if !Identical(a.Members[i], o.Members[i]) {
				return false
			}
		}
		return true
	case *Event:
		o, ok := b.(*Event)
		return ok && a.Name == o.Name && a.ID == o.ID
	case *Namespace, *Callable, *Action, *GameValue:
		return a == b
	}
	panic(fmt.Sprintf("types: unhandled type %T", a))
}

func elemOf(t Type) Type {
	if t == nil {
		return Void
	}
	return t
}

// Assignable reports whether a value of type from may be stored in a
// variable of type to. An empty container is assignable to any container
// of the same shape, never the reverse.
func Assignable(to, from Type) bool {
	switch to.(type) {
	case *List:
		if _, ok := from.(*List); ok && IsEmpty(from) {
			return true
		}
	case *Dict:
		if _, ok := from.(*Dict); ok && IsEmpty(from) {
			return true
		}
	}
	return Equals(to, from)
}

// ---------------------------------------------------------------------------
// Member and index lookup
// ---------------------------------------------------------------------------

// Property returns the type of t.name, or nil when t has no such member.
func Property(t Type, name string) Type {
	switch t := t.(type) {
	case Primitive:
		switch t {
		case Any:
			return Any
		case Error:
			return Error
		}
		return nil
	case *Dict:
		return elemOf(t.Elem)
	case *Namespace:
		if m, ok := t.Members[name]; ok {
			return m
		}
		return nil
	case *List, *Reference, Literal, *Union, *Event, *Callable, *Action, *GameValue:
		return nil
	}
	panic(fmt.Sprintf("types: unhandled type %T", t))
}

// Item returns the type of t[index], or nil when t cannot be indexed by a
// value of type index.
func Item(t Type, index Type) Type {
	switch t := t.(type) {
	case Primitive:
		switch t {
		case Any:
			return Any
		case Error:
			return Error
		}
		return nil
	case *List:
		if Equals(Number, index) {
			return elemOf(t.Elem)
		}
		return nil
	case *Dict:
		if Equals(String, index) {
			return elemOf(t.Elem)
		}
		return nil
	case *Reference, Literal, *Union, *Namespace, *Event, *Callable, *Action, *GameValue:
		return nil
	}
	panic(fmt.Sprintf("types: unhandled type %T", t))
}

// Members returns the sorted member names of a namespace.
func Members(ns *Namespace) []string {
	names := make([]string, 0, len(ns.Members))
	for name := range ns.Members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ---------------------------------------------------------------------------
// Generic binding
// ---------------------------------------------------------------------------

// Bind returns t with its generic parameters bound to params.
func Bind(t Type, params []Type) (Type, error) {
	one := func() (Type, error) {
		if len(params) != 1 {
			return nil, fmt.Errorf("%s takes 1 type parameter, got %d", t, len(params))
		}
		return params[0], nil
	}
	switch t := t.(type) {
	case *List:
		elem, err := one()
		if err != nil {
			return nil, err
		}
		return &List{Elem: elem}, nil
	case *Dict:
		elem, err := one()
		if err != nil {
			return nil, err
		}
		return &Dict{Elem: elem}, nil
	case *Reference:
		elem, err := one()
		if err != nil {
			return nil, err
		}
		return &Reference{Elem: elem}, nil
	case Primitive, Literal, *Union, *Namespace, *Event, *Callable, *Action, *GameValue:
		return nil, fmt.Errorf("type %s does not take type parameters", t)
	}
	panic(fmt.Sprintf("types: unhandled type %T", t))
}

// ---------------------------------------------------------------------------
// Operators
// ---------------------------------------------------------------------------

var comparisons = map[string]bool{"==": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true}

// IsComparison reports whether op is a comparison operator.
func IsComparison(op string) bool { return comparisons[op] }

// Operate returns the result type of t op rhs, or nil when unsupported.
// Compound assignment operators are evaluated by their first character.
func Operate(t Type, op string, rhs Type) Type {
	if comparisons[op] {
		if op == "==" || op == "!=" || (isNumeric(t) && isNumeric(rhs)) {
			return Boolean
		}
		return nil
	}
	switch t := t.(type) {
	case Primitive:
		switch t {
		case Any, Error:
			return t
		case Number:
			if isNumeric(rhs) && strings.ContainsAny(op, "+-*/%") {
				return Number
			}
		case String:
			if op == "+" && (Equals(String, rhs) || Equals(Number, rhs)) {
				return String
			}
		}
		return nil
	case Literal:
		base := map[LiteralKind]Primitive{LiteralString: String, LiteralNumber: Number, LiteralBoolean: Boolean}[t.Kind]
		return Operate(base, op, rhs)
	case *Union:
		var results []Type
		for _, m := range t.Members {
			r := Operate(m, op, rhs)
			if r == nil {
				return nil
			}
			results = append(results, r)
		}
		return NewUnion(results...)
	case *List, *Dict, *Reference, *Namespace, *Event, *Callable, *Action, *GameValue:
		return nil
	}
	panic(fmt.Sprintf("types: unhandled type %T", t))
}

func isNumeric(t Type) bool {
	switch t := t.(type) {
	case Primitive:
		return t == Number || t == Any || t == Error
	case Literal:
		return t.Kind == LiteralNumber
	}
	return false
}
