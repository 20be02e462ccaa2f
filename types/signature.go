package types

import (
	"strings"
)

// Param is one positional parameter.
type Param struct {
	Name     string
	Type     Type
	Optional bool
	Variadic bool
	Doc      string
}

// TagKind is how a tag's options are spelled in source.
type TagKind uint8

const (
	TagString TagKind = iota
	TagBoolean
)

// Tag is a closed enumeration of options attached to a keyword parameter.
type Tag struct {
	Name    string // catalogue name, e.g. "Alignment Mode"
	Slot    int
	Options []string
	Default string
	Kind    TagKind
}

// Match returns the option a literal source value selects. Boolean tags
// accept true and false for their True and False options.
func (t *Tag) Match(value string) (string, bool) {
	for _, opt := range t.Options {
		if t.Kind == TagBoolean {
			if strings.EqualFold(opt, value) {
				return opt, true
			}
			continue
		}
		if opt == value {
			return opt, true
		}
	}
	return "", false
}

// OptionsType returns the union of literal types spelling the options.
func (t *Tag) OptionsType() Type {
	lits := make([]Type, len(t.Options))
	for i, opt := range t.Options {
		if t.Kind == TagBoolean {
			lits[i] = Literal{Kind: LiteralBoolean, Value: strings.ToLower(opt)}
		} else {
			lits[i] = Literal{Kind: LiteralString, Value: opt}
		}
	}
	return NewUnion(lits...)
}

// Representation returns the primitive a variable holding an option has.
func (t *Tag) Representation() Type {
	if t.Kind == TagBoolean {
		return Boolean
	}
	return String
}

// Keyword is a parameter passed by name.
type Keyword struct {
	Name     string
	Type     Type
	Optional bool
	Tag      *Tag
}

// Signature describes how a callable may be invoked.
type Signature struct {
	Params   []Param
	Keywords []Keyword
	Return   Type
}

// Keyword returns the keyword parameter named name.
func (s *Signature) Keyword(name string) (*Keyword, bool) {
	for i := range s.Keywords {
		if s.Keywords[i].Name == name {
			return &s.Keywords[i], true
		}
	}
	return nil, false
}

// Variadic reports whether the last parameter takes any number of values.
func (s *Signature) Variadic() bool {
	return len(s.Params) > 0 && s.Params[len(s.Params)-1].Variadic
}

// Arity returns the minimum and maximum positional argument counts. Max is
// -1 for variadic signatures.
func (s *Signature) Arity() (min, max int) {
	for _, p := range s.Params {
		if !p.Optional && !p.Variadic {
			min++
		}
	}
	if s.Variadic() {
		return min, -1
	}
	return min, len(s.Params)
}

// Skip returns a copy of s without its first n positional parameters.
func (s *Signature) Skip(n int) *Signature {
	if n > len(s.Params) {
		n = len(s.Params)
	}
	c := *s
	c.Params = s.Params[n:]
	return &c
}

func (s *Signature) String() string {
	if s == nil {
		return "()"
	}
	var parts []string
	for _, p := range s.Params {
		part := p.Name + ": " + p.Type.String()
		if p.Variadic {
			part += "..."
		}
		if p.Optional {
			part += "?"
		}
		parts = append(parts, part)
	}
	for _, k := range s.Keywords {
		parts = append(parts, k.Name+" = "+k.Type.String())
	}
	out := "(" + strings.Join(parts, ", ") + ")"
	if s.Return != nil && s.Return != Void {
		out += ": " + s.Return.String()
	}
	return out
}
