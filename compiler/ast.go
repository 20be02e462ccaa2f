package compiler

// ---------------------------------------------------------------------------
// AST: Abstract Syntax Tree for basalt
// ---------------------------------------------------------------------------

// Position represents a source location.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based line number
	Column int // 1-based column number
}

// Before reports whether p comes strictly before q.
func (p Position) Before(q Position) bool {
	return p.Offset < q.Offset
}

// Span represents a range in source code. End is exclusive.
type Span struct {
	Start Position
	End   Position
}

// Contains reports whether pos lies within the span.
func (s Span) Contains(pos Position) bool {
	return s.Start.Offset <= pos.Offset && pos.Offset < s.End.Offset
}

// Encloses reports whether other lies entirely within s.
func (s Span) Encloses(other Span) bool {
	return s.Start.Offset <= other.Start.Offset && other.End.Offset <= s.End.Offset
}

// MakeSpan creates a span from start to end.
func MakeSpan(start, end Position) Span {
	return Span{Start: start, End: end}
}

// Join returns the smallest span covering a and b.
func Join(a, b Span) Span {
	s := a
	if b.Start.Before(s.Start) {
		s.Start = b.Start
	}
	if s.End.Before(b.End) {
		s.End = b.End
	}
	return s
}

// Node is the interface implemented by all AST nodes.
type Node interface {
	Span() Span
	node() // marker method
}

// Expr is the interface for expression nodes.
type Expr interface {
	Node
	expr()
}

// Stmt is the interface for statement nodes.
type Stmt interface {
	Node
	stmt()
}

// Decl is the interface for top-level declarations.
type Decl interface {
	Node
	decl()
}

// TypeExpr is the interface for type annotations.
type TypeExpr interface {
	Node
	typeExpr()
}

// ---------------------------------------------------------------------------
// Expression nodes
// ---------------------------------------------------------------------------

// NumberLiteral represents a number literal. The text is kept verbatim.
type NumberLiteral struct {
	SpanVal Span
	Value   string
}

// StringLiteral represents a plain 'string'.
type StringLiteral struct {
	SpanVal Span
	Value   string
}

// StyledTextLiteral represents a "styled" text component.
type StyledTextLiteral struct {
	SpanVal Span
	Value   string
}

// BoolLiteral represents true or false.
type BoolLiteral struct {
	SpanVal Span
	Value   bool
}

// Identifier refers to a global name such as a namespace or function.
type Identifier struct {
	SpanVal Span
	Name    string
}

// Variable refers to a scoped variable such as @line x.
type Variable struct {
	SpanVal Span
	Scope   string // "@global", "@saved", "@thread" or "@line"
	Name    string
}

// RefExpr takes a reference to a variable: ref @line x.
type RefExpr struct {
	SpanVal Span
	Var     *Variable
}

// NamespaceGet is ns::member.
type NamespaceGet struct {
	SpanVal   Span
	Namespace Expr
	Member    string
}

// PropertyGet is obj.name or obj[index].
type PropertyGet struct {
	SpanVal  Span
	Object   Expr
	Name     string // set when not computed
	Index    Expr   // set when computed
	Computed bool
}

// KeywordArg is a name = value argument.
type KeywordArg struct {
	SpanVal Span
	Name    string
	Value   Expr
}

// CallExpr is callee(args, name = value).
type CallExpr struct {
	SpanVal  Span
	Callee   Expr
	Args     []Expr
	Keywords []*KeywordArg
}

// BinaryExpr is lhs op rhs for arithmetic and comparisons.
type BinaryExpr struct {
	SpanVal Span
	Op      string
	OpSpan  Span
	Left    Expr
	Right   Expr
}

// AssignExpr is target op value where op is = or a compound operator.
type AssignExpr struct {
	SpanVal Span
	Op      string
	Target  Expr
	Value   Expr
}

// TargetExpr evaluates its expression against a selector: victim game_values::health.
type TargetExpr struct {
	SpanVal Span
	Target  string
	Expr    Expr
}

// CastExpr is expr as type.
type CastExpr struct {
	SpanVal Span
	Expr    Expr
	Type    TypeExpr
}

// ListLiteral is [a, b, c].
type ListLiteral struct {
	SpanVal  Span
	Elements []Expr
}

// DictEntry is one key: value pair of a dictionary literal.
type DictEntry struct {
	SpanVal Span
	Key     string
	Value   Expr
}

// DictLiteral is {'a': 1, 'b': 2}.
type DictLiteral struct {
	SpanVal Span
	Entries []*DictEntry
}

// BadExpr stands in for an expression that failed to parse.
type BadExpr struct {
	SpanVal Span
}

func (n *NumberLiteral) Span() Span     { return n.SpanVal }
func (n *StringLiteral) Span() Span     { return n.SpanVal }
func (n *StyledTextLiteral) Span() Span { return n.SpanVal }
func (n *BoolLiteral) Span() Span       { return n.SpanVal }
func (n *Identifier) Span() Span        { return n.SpanVal }
func (n *Variable) Span() Span          { return n.SpanVal }
func (n *RefExpr) Span() Span           { return n.SpanVal }
func (n *NamespaceGet) Span() Span      { return n.SpanVal }
func (n *PropertyGet) Span() Span       { return n.SpanVal }
func (n *KeywordArg) Span() Span        { return n.SpanVal }
func (n *CallExpr) Span() Span          { return n.SpanVal }
func (n *BinaryExpr) Span() Span        { return n.SpanVal }
func (n *AssignExpr) Span() Span        { return n.SpanVal }
func (n *TargetExpr) Span() Span        { return n.SpanVal }
func (n *CastExpr) Span() Span          { return n.SpanVal }
func (n *ListLiteral) Span() Span       { return n.SpanVal }
func (n *DictEntry) Span() Span         { return n.SpanVal }
func (n *DictLiteral) Span() Span       { return n.SpanVal }
func (n *BadExpr) Span() Span           { return n.SpanVal }

func (n *NumberLiteral) node()     {}
func (n *StringLiteral) node()     {}
func (n *StyledTextLiteral) node() {}
func (n *BoolLiteral) node()       {}
func (n *Identifier) node()        {}
func (n *Variable) node()          {}
func (n *RefExpr) node()           {}
func (n *NamespaceGet) node()      {}
func (n *PropertyGet) node()       {}
func (n *KeywordArg) node()        {}
func (n *CallExpr) node()          {}
func (n *BinaryExpr) node()        {}
func (n *AssignExpr) node()        {}
func (n *TargetExpr) node()        {}
func (n *CastExpr) node()          {}
func (n *ListLiteral) node()       {}
func (n *DictEntry) node()         {}
func (n *DictLiteral) node()       {}
func (n *BadExpr) node()           {}

func (n *NumberLiteral) expr()     {}
func (n *StringLiteral) expr()     {}
func (n *StyledTextLiteral) expr() {}
func (n *BoolLiteral) expr()       {}
func (n *Identifier) expr()        {}
func (n *Variable) expr()          {}
func (n *RefExpr) expr()           {}
func (n *NamespaceGet) expr()      {}
func (n *PropertyGet) expr()       {}
func (n *CallExpr) expr()          {}
func (n *BinaryExpr) expr()        {}
func (n *AssignExpr) expr()        {}
func (n *TargetExpr) expr()        {}
func (n *CastExpr) expr()          {}
func (n *ListLiteral) expr()       {}
func (n *DictLiteral) expr()       {}
func (n *BadExpr) expr()           {}

// ---------------------------------------------------------------------------
// Statement nodes
// ---------------------------------------------------------------------------

// Block is a braced statement list.
type Block struct {
	SpanVal Span
	Stmts   []Stmt
}

// ExprStmt is an expression followed by a semicolon.
type ExprStmt struct {
	SpanVal Span
	Expr    Expr
}

// VarDecl is let @scope name: type = value. Type and Value are optional.
type VarDecl struct {
	SpanVal Span
	Var     *Variable
	Type    TypeExpr
	Value   Expr
}

// ReturnStmt is return value; where Value may be nil.
type ReturnStmt struct {
	SpanVal Span
	Value   Expr
}

// IfStmt is if (cond) { ... }.
type IfStmt struct {
	SpanVal Span
	Cond    Expr
	Body    *Block
}

// IfActionStmt is if player is_sneaking() { ... }.
type IfActionStmt struct {
	SpanVal  Span
	Category string // player, entity, game or variable
	Call     *CallExpr
	Body     *Block
}

// ForStmt is for @line x in list { ... } or for @line i to 10 { ... }.
type ForStmt struct {
	SpanVal Span
	Pattern []*Variable
	Counted bool // "to" instead of "in"
	Iter    Expr
	Body    *Block
}

// TargetStmt runs a statement against a selector: selection player_action::heal();
type TargetStmt struct {
	SpanVal Span
	Target  string
	Stmt    Stmt
}

func (n *Block) Span() Span        { return n.SpanVal }
func (n *ExprStmt) Span() Span     { return n.SpanVal }
func (n *VarDecl) Span() Span      { return n.SpanVal }
func (n *ReturnStmt) Span() Span   { return n.SpanVal }
func (n *IfStmt) Span() Span       { return n.SpanVal }
func (n *IfActionStmt) Span() Span { return n.SpanVal }
func (n *ForStmt) Span() Span      { return n.SpanVal }
func (n *TargetStmt) Span() Span   { return n.SpanVal }

func (n *Block) node()        {}
func (n *ExprStmt) node()     {}
func (n *VarDecl) node()      {}
func (n *ReturnStmt) node()   {}
func (n *IfStmt) node()       {}
func (n *IfActionStmt) node() {}
func (n *ForStmt) node()      {}
func (n *TargetStmt) node()   {}

func (n *Block) stmt()        {}
func (n *ExprStmt) stmt()     {}
func (n *VarDecl) stmt()      {}
func (n *ReturnStmt) stmt()   {}
func (n *IfStmt) stmt()       {}
func (n *IfActionStmt) stmt() {}
func (n *ForStmt) stmt()      {}
func (n *TargetStmt) stmt()   {}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

// Program is a whole source file.
type Program struct {
	SpanVal Span
	Decls   []Decl
}

// UsingDecl is using ns::member; and binds member globally.
type UsingDecl struct {
	SpanVal   Span
	Namespace string
	Member    string
}

// EventDecl is event player_event::join { ... }.
type EventDecl struct {
	SpanVal Span
	Event   Expr
	Body    *Block
}

// Param is one function parameter.
type Param struct {
	SpanVal Span
	Name    string
	Type    TypeExpr
}

// FuncDecl is fn name(params): type { ... }.
type FuncDecl struct {
	SpanVal    Span
	Name       string
	NameSpan   Span
	Params     []*Param
	ReturnType TypeExpr // nil means void
	Body       *Block
}

func (n *Program) Span() Span   { return n.SpanVal }
func (n *UsingDecl) Span() Span { return n.SpanVal }
func (n *EventDecl) Span() Span { return n.SpanVal }
func (n *Param) Span() Span     { return n.SpanVal }
func (n *FuncDecl) Span() Span  { return n.SpanVal }

func (n *Program) node()   {}
func (n *UsingDecl) node() {}
func (n *EventDecl) node() {}
func (n *Param) node()     {}
func (n *FuncDecl) node()  {}

func (n *UsingDecl) decl() {}
func (n *EventDecl) decl() {}
func (n *FuncDecl) decl()  {}
func (n *VarDecl) decl()   {}

// ---------------------------------------------------------------------------
// Type annotations
// ---------------------------------------------------------------------------

// TypeName is a built-in type name such as number, optionally with
// generic parameters: list[number].
type TypeName struct {
	SpanVal Span
	Name    string
	Params  []TypeExpr
}

func (n *TypeName) Span() Span { return n.SpanVal }
func (n *TypeName) node()      {}
func (n *TypeName) typeExpr()  {}

// ---------------------------------------------------------------------------
// Walking
// ---------------------------------------------------------------------------

// Children returns the direct children of n in source order.
func Children(n Node) []Node {
	var out []Node
	add := func(nodes ...Node) {
		for _, c := range nodes {
			if c != nil && !isNilNode(c) {
				out = append(out, c)
			}
		}
	}
	switch n := n.(type) {
	case *Program:
		for _, d := range n.Decls {
			add(d)
		}
	case *EventDecl:
		add(n.Event, n.Body)
	case *FuncDecl:
		for _, p := range n.Params {
			add(p)
		}
		add(n.ReturnType, n.Body)
	case *Param:
		add(n.Type)
	case *Block:
		for _, s := range n.Stmts {
			add(s)
		}
	case *ExprStmt:
		add(n.Expr)
	case *VarDecl:
		add(n.Var, n.Type, n.Value)
	case *ReturnStmt:
		add(n.Value)
	case *IfStmt:
		add(n.Cond, n.Body)
	case *IfActionStmt:
		add(n.Call, n.Body)
	case *ForStmt:
		for _, v := range n.Pattern {
			add(v)
		}
		add(n.Iter, n.Body)
	case *TargetStmt:
		add(n.Stmt)
	case *RefExpr:
		add(n.Var)
	case *NamespaceGet:
		add(n.Namespace)
	case *PropertyGet:
		add(n.Object, n.Index)
	case *KeywordArg:
		add(n.Value)
	case *CallExpr:
		add(n.Callee)
		for _, a := range n.Args {
			add(a)
		}
		for _, k := range n.Keywords {
			add(k)
		}
	case *BinaryExpr:
		add(n.Left, n.Right)
	case *AssignExpr:
		add(n.Target, n.Value)
	case *TargetExpr:
		add(n.Expr)
	case *CastExpr:
		add(n.Expr, n.Type)
	case *ListLiteral:
		for _, e := range n.Elements {
			add(e)
		}
	case *DictLiteral:
		for _, e := range n.Entries {
			add(e)
		}
	case *DictEntry:
		add(n.Value)
	case *TypeName:
		for _, p := range n.Params {
			add(p)
		}
	}
	return out
}

// isNilNode catches typed nil pointers stored in interfaces.
func isNilNode(n Node) bool {
	switch n := n.(type) {
	case *Block:
		return n == nil
	case *TypeName:
		return n == nil
	case *Variable:
		return n == nil
	case *CallExpr:
		return n == nil
	}
	return false
}

// Inspect walks the tree rooted at n in depth-first order. If f returns
// false the children of that node are skipped.
func Inspect(n Node, f func(Node) bool) {
	if n == nil || !f(n) {
		return
	}
	for _, c := range Children(n) {
		Inspect(c, f)
	}
}

// NodeAt returns the innermost node whose span contains pos.
func NodeAt(root Node, pos Position) Node {
	var found Node
	Inspect(root, func(n Node) bool {
		if !n.Span().Contains(pos) {
			return false
		}
		found = n
		return true
	})
	return found
}
