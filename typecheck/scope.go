package typecheck

import (
	"sort"

	"github.com/neverUsedGithub/basalt/compiler"
	"github.com/neverUsedGithub/basalt/df"
	"github.com/neverUsedGithub/basalt/types"
)

// ScopeKind is the construct that opened a scope.
type ScopeKind uint8

const (
	GlobalScope ScopeKind = iota
	EventScope
	FunctionScope
)

func (k ScopeKind) String() string {
	switch k {
	case EventScope:
		return "event"
	case FunctionScope:
		return "function"
	}
	return "global"
}

// Symbol is a name bound in one storage class.
type Symbol struct {
	Name  string
	Class df.StorageClass
	Type  types.Type
	Span  compiler.Span
}

// Scope holds one symbol table per storage class. Line symbols live where
// they are defined; the persistent classes are always bound at the root.
type Scope struct {
	Kind     ScopeKind
	Parent   *Scope
	Span     compiler.Span
	Return   types.Type // function scopes only
	Children []*Scope

	symbols [len(df.Classes)]map[string]*Symbol
}

func newScope(kind ScopeKind, parent *Scope, span compiler.Span) *Scope {
	s := &Scope{Kind: kind, Parent: parent, Span: span}
	for i := range s.symbols {
		s.symbols[i] = make(map[string]*Symbol)
	}
	if parent != nil {
		parent.Children = append(parent.Children, s)
	}
	return s
}

// Root returns the outermost scope.
func (s *Scope) Root() *Scope {
	for s.Parent != nil {
		s = s.Parent
	}
	return s
}

// Function returns the nearest enclosing function scope, or nil.
func (s *Scope) Function() *Scope {
	for ; s != nil; s = s.Parent {
		if s.Kind == FunctionScope {
			return s
		}
	}
	return nil
}

// Define binds name in class. Persistent classes are bound at the root
// regardless of where the definition appears.
func (s *Scope) Define(class df.StorageClass, name string, typ types.Type, span compiler.Span) *Symbol {
	target := s
	if class.Persistent() {
		target = s.Root()
	}
	sym := &Symbol{Name: name, Class: class, Type: typ, Span: span}
	target.symbols[class][name] = sym
	return sym
}

// Lookup resolves name in class, walking the parent chain.
func (s *Scope) Lookup(class df.StorageClass, name string) (*Symbol, bool) {
	for ; s != nil; s = s.Parent {
		if sym, ok := s.symbols[class][name]; ok {
			return sym, true
		}
	}
	return nil, false
}

// Visible returns every symbol reachable from s, inner bindings shadowing
// outer ones, sorted by class and name.
func (s *Scope) Visible() []*Symbol {
	seen := make(map[df.StorageClass]map[string]bool)
	var out []*Symbol
	for sc := s; sc != nil; sc = sc.Parent {
		for _, class := range df.Classes {
			if seen[class] == nil {
				seen[class] = make(map[string]bool)
			}
			for name, sym := range sc.symbols[class] {
				if seen[class][name] {
					continue
				}
				seen[class][name] = true
				out = append(out, sym)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Class != out[j].Class {
			return out[i].Class < out[j].Class
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// ScopeAt returns the innermost scope whose span contains pos.
func (s *Scope) ScopeAt(pos compiler.Position) *Scope {
	for _, c := range s.Children {
		if c.Span.Contains(pos) {
			return c.ScopeAt(pos)
		}
	}
	return s
}
