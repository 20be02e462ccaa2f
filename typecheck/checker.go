// Package typecheck resolves names and infers a type for every node of a
// basalt program. It records the facts the code generator needs: node
// types, enclosing scopes and how each call binds its arguments.
package typecheck

import (
	"fmt"
	"strings"

	"github.com/tliron/commonlog"

	"github.com/neverUsedGithub/basalt/catalogue"
	"github.com/neverUsedGithub/basalt/compiler"
	"github.com/neverUsedGithub/basalt/df"
	"github.com/neverUsedGithub/basalt/types"
)

var log = commonlog.GetLogger("basalt.typecheck")

// CallInfo describes how a call site binds.
type CallInfo struct {
	// Callee is the *types.Callable or *types.Action being called.
	Callee types.Type
	// Signature is the callee's full signature.
	Signature *types.Signature
	// Implicit is set when the first Reference parameter is filled by the
	// variable the call's value is stored in.
	Implicit bool
}

// Result holds everything the checker learned about a program.
type Result struct {
	Program     *compiler.Program
	Root        *Scope
	Types       map[compiler.Node]types.Type
	Scopes      map[compiler.Node]*Scope
	Calls       map[*compiler.CallExpr]*CallInfo
	GameValues  map[*compiler.NamespaceGet]*types.GameValue
	Diagnostics compiler.Diagnostics
}

// TypeOf returns the checked type of n, or Error when n was not visited.
func (r *Result) TypeOf(n compiler.Node) types.Type {
	if t, ok := r.Types[n]; ok {
		return t
	}
	return types.Error
}

// NodeAt returns the innermost node at pos and its type.
func (r *Result) NodeAt(pos compiler.Position) (compiler.Node, types.Type) {
	n := compiler.NodeAt(r.Program, pos)
	if n == nil {
		return nil, nil
	}
	return n, r.Types[n]
}

// ScopeAt returns the innermost scope containing pos.
func (r *Result) ScopeAt(pos compiler.Position) *Scope {
	return r.Root.ScopeAt(pos)
}

// context is where an expression's value goes.
type context uint8

const (
	ctxNone context = iota
	ctxDefinition
	ctxAssignment
	ctxArgument
)

// bailout unwinds a strict check.
type bailout struct{ d *compiler.Diagnostic }

// Checker walks a program once.
type Checker struct {
	cat  *catalogue.Catalogue
	mode compiler.Mode
	root *Scope
	res  *Result
}

// Check type-checks prog against cat. In strict mode the first diagnostic is
// returned as the error; in tolerant mode the error is nil and every
// diagnostic is in the result.
func Check(prog *compiler.Program, cat *catalogue.Catalogue, mode compiler.Mode) (res *Result, err error) {
	c := &Checker{cat: cat, mode: mode}
	c.root = newScope(GlobalScope, nil, prog.Span())
	c.res = &Result{
		Program:    prog,
		Root:       c.root,
		Types:      make(map[compiler.Node]types.Type),
		Scopes:     make(map[compiler.Node]*Scope),
		Calls:      make(map[*compiler.CallExpr]*CallInfo),
		GameValues: make(map[*compiler.NamespaceGet]*types.GameValue),
	}
	for _, name := range cat.NamespaceNames() {
		ns, _ := cat.Namespace(name)
		c.root.Define(df.Shared, name, ns, compiler.Span{})
	}

	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			res, err = c.res, b.d
		}
	}()

	c.check(prog, c.root, ctxNone)
	log.Debugf("checked %d nodes, %d diagnostics", len(c.res.Types), len(c.res.Diagnostics))
	return c.res, nil
}

// errorf reports a type error. Strict mode unwinds; tolerant mode records
// the diagnostic and returns Error for the caller to propagate.
func (c *Checker) errorf(span compiler.Span, format string, args ...interface{}) types.Type {
	d := compiler.Errorf(compiler.KindType, span, format, args...)
	c.res.Diagnostics = append(c.res.Diagnostics, d)
	if c.mode == compiler.Strict {
		panic(bailout{d})
	}
	return types.Error
}

func (c *Checker) check(n compiler.Node, scope *Scope, ctx context) types.Type {
	t := c.checkNode(n, scope, ctx)
	c.res.Types[n] = t
	c.res.Scopes[n] = scope
	return t
}

// canAssign reports whether a value of type from may be stored where to is
// expected.
func canAssign(to, from types.Type) bool {
	if from == types.Any || from == types.Error {
		return true
	}
	return types.Assignable(to, from)
}

func (c *Checker) checkNode(n compiler.Node, scope *Scope, ctx context) types.Type {
	switch n := n.(type) {
	case *compiler.Program:
		for _, d := range n.Decls {
			c.check(d, scope, ctxNone)
		}
		return types.Void

	case *compiler.UsingDecl:
		return c.checkUsing(n)

	case *compiler.EventDecl:
		ev := c.check(n.Event, scope, ctxNone)
		if _, ok := ev.(*types.Event); !ok && ev != types.Error {
			c.errorf(n.Event.Span(), "expected an event type, but got %s", ev)
		}
		inner := newScope(EventScope, scope, n.Body.Span())
		c.check(n.Body, inner, ctxNone)
		return types.Void

	case *compiler.FuncDecl:
		return c.checkFunc(n, scope)

	case *compiler.Param:
		return c.resolveType(n.Type)

	case *compiler.Block:
		for _, s := range n.Stmts {
			c.check(s, scope, ctxNone)
		}
		return types.Void

	case *compiler.ExprStmt:
		return c.check(n.Expr, scope, ctxNone)

	case *compiler.VarDecl:
		return c.checkVarDecl(n, scope)

	case *compiler.ReturnStmt:
		return c.checkReturn(n, scope)

	case *compiler.IfStmt:
		c.check(n.Cond, scope, ctxNone)
		c.check(n.Body, scope, ctxNone)
		return types.Void

	case *compiler.IfActionStmt:
		return c.checkIfAction(n, scope)

	case *compiler.ForStmt:
		return c.checkFor(n, scope)

	case *compiler.TargetStmt:
		c.check(n.Stmt, scope, ctx)
		return types.Void

	case *compiler.TargetExpr:
		return c.check(n.Expr, scope, ctx)

	case *compiler.NumberLiteral:
		return types.Number
	case *compiler.StringLiteral:
		return types.String
	case *compiler.StyledTextLiteral:
		return types.StyledText
	case *compiler.BoolLiteral:
		return types.Boolean
	case *compiler.BadExpr:
		return types.Error

	case *compiler.Variable:
		class, ok := df.ParseScope(n.Scope)
		if !ok {
			return c.errorf(n.Span(), "unknown variable scope %s", n.Scope)
		}
		sym, ok := scope.Lookup(class, n.Name)
		if !ok {
			return c.errorf(n.Span(), "couldn't resolve variable '%s' with scope %s", n.Name, n.Scope)
		}
		return sym.Type

	case *compiler.Identifier:
		sym, ok := scope.Lookup(df.Shared, n.Name)
		if !ok {
			return c.errorf(n.Span(), "couldn't resolve global variable '%s', maybe you forgot a variable scope?", n.Name)
		}
		return sym.Type

	case *compiler.RefExpr:
		t := c.check(n.Var, scope, ctxNone)
		if t == types.Error {
			return types.Error
		}
		return &types.Reference{Elem: t}

	case *compiler.NamespaceGet:
		return c.checkNamespaceGet(n, scope)

	case *compiler.PropertyGet:
		return c.checkPropertyGet(n, scope)

	case *compiler.CallExpr:
		return c.checkCall(n, scope, ctx)

	case *compiler.AssignExpr:
		return c.checkAssign(n, scope)

	case *compiler.BinaryExpr:
		lhs := c.check(n.Left, scope, ctxNone)
		rhs := c.check(n.Right, scope, ctxNone)
		if lhs == types.Error || rhs == types.Error {
			return types.Error
		}
		result := types.Operate(lhs, n.Op, rhs)
		if result == nil {
			return c.errorf(n.OpSpan, "unsupported operands for '%s': '%s' and '%s'", n.Op, lhs, rhs)
		}
		return result

	case *compiler.CastExpr:
		c.check(n.Expr, scope, ctx)
		return c.resolveType(n.Type)

	case *compiler.ListLiteral:
		var elems []types.Type
		for _, e := range n.Elements {
			elems = append(elems, c.check(e, scope, ctxArgument))
		}
		if len(elems) == 0 {
			return types.NewList()
		}
		return &types.List{Elem: types.NewUnion(elems...)}

	case *compiler.DictLiteral:
		var elems []types.Type
		for _, e := range n.Entries {
			elems = append(elems, c.check(e, scope, ctxArgument))
		}
		if len(elems) == 0 {
			return types.NewDict()
		}
		return &types.Dict{Elem: types.NewUnion(elems...)}

	case *compiler.DictEntry:
		return c.check(n.Value, scope, ctx)

	case *compiler.KeywordArg:
		return c.check(n.Value, scope, ctx)

	case *compiler.TypeName:
		return c.resolveType(n)
	}
	panic(fmt.Sprintf("internal error: typecheck: unhandled node %T", n))
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

func (c *Checker) checkUsing(n *compiler.UsingDecl) types.Type {
	sym, ok := c.root.Lookup(df.Shared, n.Namespace)
	if !ok {
		return c.errorf(n.Span(), "namespace '%s' hasn't been defined", n.Namespace)
	}
	ns, ok := sym.Type.(*types.Namespace)
	if !ok {
		return c.errorf(n.Span(), "'%s' is not a namespace", n.Namespace)
	}
	member := types.Property(ns, n.Member)
	if member == nil {
		return c.errorf(n.Span(), "namespace '%s' has no member '%s'", n.Namespace, n.Member)
	}
	c.root.Define(df.Shared, n.Member, member, n.Span())
	return types.Void
}

func (c *Checker) checkFunc(n *compiler.FuncDecl, scope *Scope) types.Type {
	inner := newScope(FunctionScope, scope, n.Body.Span())
	inner.Return = types.Void
	if n.ReturnType != nil {
		inner.Return = c.check(n.ReturnType, inner, ctxNone)
	}

	sig := &types.Signature{Return: inner.Return}
	for _, p := range n.Params {
		pt := c.check(p, inner, ctxNone)
		sig.Params = append(sig.Params, types.Param{Name: p.Name, Type: pt})
		inner.Define(df.Line, p.Name, pt, p.Span())
	}

	fn := &types.Callable{Name: n.Name, Signature: sig}
	c.root.Define(df.Shared, n.Name, fn, n.NameSpan)
	c.check(n.Body, inner, ctxNone)
	return fn
}

func (c *Checker) checkVarDecl(n *compiler.VarDecl, scope *Scope) types.Type {
	class, ok := df.ParseScope(n.Var.Scope)
	if !ok {
		return c.errorf(n.Var.Span(), "unknown variable scope %s", n.Var.Scope)
	}

	var declared, value types.Type
	if n.Type != nil {
		declared = c.check(n.Type, scope, ctxNone)
	}
	if n.Value != nil {
		value = c.check(n.Value, scope, ctxDefinition)
	}

	bound := declared
	if bound == nil {
		bound = value
	}
	if bound == nil {
		return c.errorf(n.Span(), "variable '%s' needs a type or a value", n.Var.Name)
	}
	if bound == types.Void {
		return c.errorf(n.Span(), "cannot assign void to variable")
	}

	if declared != nil && value != nil && !canAssign(declared, value) {
		// bind before reporting so uses of the name don't cascade
		sym := scope.Define(class, n.Var.Name, declared, n.Var.Span())
		c.res.Types[n.Var] = sym.Type
		return c.errorf(n.Value.Span(), "type '%s' cannot be assigned to type '%s'", value, declared)
	}

	sym := scope.Define(class, n.Var.Name, bound, n.Var.Span())
	c.res.Types[n.Var] = sym.Type
	c.res.Scopes[n.Var] = scope
	return types.Void
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (c *Checker) checkReturn(n *compiler.ReturnStmt, scope *Scope) types.Type {
	fn := scope.Function()
	if fn == nil {
		if n.Value != nil {
			c.check(n.Value, scope, ctxNone)
		}
		return c.errorf(n.Span(), "cannot return from this scope")
	}

	value := types.Type(types.Void)
	span := n.Span()
	if n.Value != nil {
		value = c.check(n.Value, scope, ctxNone)
		span = n.Value.Span()
	}
	if value == types.Void && fn.Return != types.Void {
		return c.errorf(span, "expected a value of type '%s' to return", fn.Return)
	}
	if value != types.Void && !canAssign(fn.Return, value) {
		return c.errorf(span, "cannot return a value of type '%s' from a function returning '%s'", value, fn.Return)
	}
	return types.Void
}

func (c *Checker) checkIfAction(n *compiler.IfActionStmt, scope *Scope) types.Type {
	name := n.Call.Callee.(*compiler.Identifier)
	action, ok := c.cat.Condition("if_"+n.Category, name.Name)
	if !ok {
		c.checkArgs(n.Call, scope)
		c.errorf(name.Span(), "cannot find conditional action '%s' in category %s", name.Name, n.Category)
		c.check(n.Body, scope, ctxNone)
		return types.Error
	}
	c.res.Types[n.Call.Callee] = action
	c.res.Calls[n.Call] = &CallInfo{Callee: action, Signature: action.Signature}
	if d := c.canCall(n.Call, action.Name, action.Signature, scope); d != nil {
		c.report(d)
	}
	c.res.Types[n.Call] = types.Void
	c.check(n.Body, scope, ctxNone)
	return types.Void
}

func (c *Checker) checkFor(n *compiler.ForStmt, scope *Scope) types.Type {
	iter := c.check(n.Iter, scope, ctxNone)

	var yields []types.Type
	switch {
	case n.Counted:
		if !types.Equals(types.Number, iter) && iter != types.Any {
			c.errorf(n.Iter.Span(), "expected a number value, but got %s", iter)
		}
		yields = []types.Type{types.Number}
	case iter == types.Any || iter == types.Error:
		for range n.Pattern {
			yields = append(yields, iter)
		}
	default:
		switch it := iter.(type) {
		case *types.List:
			yields = []types.Type{elemOrAny(it.Elem)}
		case *types.Dict:
			yields = []types.Type{types.String, elemOrAny(it.Elem)}
		default:
			c.errorf(n.Iter.Span(), "type '%s' cannot be iterated", iter)
			for range n.Pattern {
				yields = append(yields, types.Error)
			}
		}
	}

	if len(yields) != len(n.Pattern) {
		c.errorf(n.Iter.Span(), "this expression provides %d values, but %d were specified", len(yields), len(n.Pattern))
		yields = make([]types.Type, len(n.Pattern))
		for i := range yields {
			yields[i] = types.Error
		}
	}

	for i, v := range n.Pattern {
		class, ok := df.ParseScope(v.Scope)
		if !ok {
			c.errorf(v.Span(), "unknown variable scope %s", v.Scope)
			continue
		}
		if sym, ok := scope.Lookup(class, v.Name); ok {
			if !canAssign(sym.Type, yields[i]) {
				c.errorf(v.Span(), "value of type '%s' cannot be assigned to type '%s'", yields[i], sym.Type)
			}
			c.res.Types[v] = sym.Type
		} else {
			scope.Define(class, v.Name, yields[i], v.Span())
			c.res.Types[v] = yields[i]
		}
		c.res.Scopes[v] = scope
	}

	c.check(n.Body, scope, ctxNone)
	return types.Void
}

func elemOrAny(t types.Type) types.Type {
	if t == nil || t == types.Void {
		return types.Any
	}
	return t
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

func (c *Checker) checkNamespaceGet(n *compiler.NamespaceGet, scope *Scope) types.Type {
	t := c.check(n.Namespace, scope, ctxNone)
	if t == types.Error {
		return types.Error
	}
	ns, ok := t.(*types.Namespace)
	if !ok {
		return c.errorf(n.Namespace.Span(), "expected a namespace, but got %s", t)
	}
	member := types.Property(ns, n.Member)
	if member == nil {
		return c.errorf(n.Span(), "%s has no member '%s'", ns, n.Member)
	}
	if gv, ok := member.(*types.GameValue); ok {
		c.res.GameValues[n] = gv
		return gv.Result
	}
	return member
}

func (c *Checker) checkPropertyGet(n *compiler.PropertyGet, scope *Scope) types.Type {
	obj := c.check(n.Object, scope, ctxNone)
	if !n.Computed {
		prop := types.Property(obj, n.Name)
		if prop == nil {
			return c.errorf(n.Object.Span(), "object of type '%s' has no property '%s'", obj, n.Name)
		}
		return prop
	}
	index := c.check(n.Index, scope, ctxNone)
	item := types.Item(obj, index)
	if item == nil {
		return c.errorf(n.Object.Span(), "object of type '%s' cannot be indexed with '%s'", obj, index)
	}
	return item
}

func (c *Checker) checkAssign(n *compiler.AssignExpr, scope *Scope) types.Type {
	switch n.Target.(type) {
	case *compiler.Variable, *compiler.Identifier, *compiler.PropertyGet:
	default:
		c.check(n.Value, scope, ctxNone)
		return c.errorf(n.Target.Span(), "cannot assign to this expression")
	}

	lhs := c.check(n.Target, scope, ctxNone)
	rhs := c.check(n.Value, scope, ctxAssignment)
	if lhs == types.Error || rhs == types.Error {
		return types.Error
	}

	if n.Op == "=" {
		if !canAssign(lhs, rhs) {
			return c.errorf(n.Span(), "type '%s' cannot be assigned to type '%s'", rhs, lhs)
		}
		return lhs
	}
	if types.Operate(lhs, n.Op[:1], rhs) == nil {
		return c.errorf(n.Span(), "unsupported operands for '%s': '%s' and '%s'", n.Op, lhs, rhs)
	}
	return lhs
}

func (c *Checker) checkCall(n *compiler.CallExpr, scope *Scope, ctx context) types.Type {
	callee := c.check(n.Callee, scope, ctxNone)

	var name string
	var sig *types.Signature
	isAction := false
	switch fn := callee.(type) {
	case *types.Callable:
		name, sig = fn.Name, fn.Signature
	case *types.Action:
		name, sig, isAction = fn.Name, fn.Signature, true
	default:
		c.checkArgs(n, scope)
		if callee == types.Error {
			return types.Error
		}
		return c.errorf(n.Callee.Span(), "expected a callable expression, but got %s", callee)
	}

	implicit := false
	if isAction && len(sig.Params) > 0 && ctx != ctxNone {
		_, implicit = sig.Params[0].Type.(*types.Reference)
	}
	c.res.Calls[n] = &CallInfo{Callee: callee, Signature: sig, Implicit: implicit}

	callSig := sig
	if implicit {
		callSig = sig.Skip(1)
	}
	if d := c.canCall(n, name, callSig, scope); d != nil {
		c.report(d)
		return types.Error
	}

	if implicit {
		return elemOrAny(sig.Params[0].Type.(*types.Reference).Elem)
	}
	if sig.Return == nil {
		return types.Void
	}
	return sig.Return
}

// report records d the way errorf does.
func (c *Checker) report(d *compiler.Diagnostic) {
	c.res.Diagnostics = append(c.res.Diagnostics, d)
	if c.mode == compiler.Strict {
		panic(bailout{d})
	}
}

// checkArgs visits the arguments of a call that could not be resolved so
// their nodes still carry types.
func (c *Checker) checkArgs(n *compiler.CallExpr, scope *Scope) {
	for _, a := range n.Args {
		c.check(a, scope, ctxArgument)
	}
	for _, k := range n.Keywords {
		c.check(k, scope, ctxArgument)
	}
}

// canCall validates the arguments of n against sig and returns the first
// mismatch.
func (c *Checker) canCall(n *compiler.CallExpr, name string, sig *types.Signature, scope *Scope) *compiler.Diagnostic {
	argTypes := make([]types.Type, len(n.Args))
	for i, a := range n.Args {
		argTypes[i] = c.check(a, scope, ctxArgument)
	}
	kwTypes := make([]types.Type, len(n.Keywords))
	for i, k := range n.Keywords {
		kwTypes[i] = c.check(k, scope, ctxArgument)
	}

	min, max := sig.Arity()
	switch {
	case max < 0 && len(n.Args) < min:
		return compiler.Errorf(compiler.KindType, n.Span(), "variadic function %s expected at least %d arguments, but got %d", name, min, len(n.Args))
	case max >= 0 && min == max && len(n.Args) != min:
		return compiler.Errorf(compiler.KindType, n.Span(), "%s expected %d arguments, but got %d", name, min, len(n.Args))
	case max >= 0 && len(n.Args) > max:
		return compiler.Errorf(compiler.KindType, n.Span(), "%s expected at most %d arguments, but got %d", name, max, len(n.Args))
	case len(n.Args) < min:
		return compiler.Errorf(compiler.KindType, n.Span(), "%s expected at least %d arguments, but got %d", name, min, len(n.Args))
	}

	for i, a := range n.Args {
		p := sig.Params[len(sig.Params)-1]
		prefix := "..."
		if i < len(sig.Params) {
			p, prefix = sig.Params[i], ""
		}
		if !types.Equals(p.Type, argTypes[i]) {
			return compiler.Errorf(compiler.KindType, a.Span(), "%s%s must be of type %s, got %s", prefix, p.Name, p.Type, argTypes[i])
		}
	}

	seen := make(map[string]bool)
	for i, k := range n.Keywords {
		kw, ok := sig.Keyword(k.Name)
		if !ok {
			return compiler.Errorf(compiler.KindType, k.Span(), "unexpected keyword argument %s, %s", k.Name, availableKeywords(sig))
		}
		if seen[k.Name] {
			return compiler.Errorf(compiler.KindType, k.Span(), "keyword argument %s given more than once", k.Name)
		}
		seen[k.Name] = true

		if kw.Tag != nil {
			if d := checkTag(kw, k, kwTypes[i]); d != nil {
				return d
			}
			continue
		}
		if !types.Equals(kw.Type, kwTypes[i]) {
			return compiler.Errorf(compiler.KindType, k.Span(), "keyword argument %s expected type %s, but got %s", kw.Name, kw.Type, kwTypes[i])
		}
	}

	for _, kw := range sig.Keywords {
		if !kw.Optional && !seen[kw.Name] {
			return compiler.Errorf(compiler.KindType, n.Span(), "expected keyword argument %s", kw.Name)
		}
	}
	return nil
}

func availableKeywords(sig *types.Signature) string {
	if len(sig.Keywords) == 0 {
		return "this function takes no keyword arguments"
	}
	names := make([]string, len(sig.Keywords))
	for i, kw := range sig.Keywords {
		names[i] = "'" + kw.Name + "'"
	}
	return "available keyword arguments: " + strings.Join(names, ", ")
}

// checkTag accepts a literal naming one of the tag's options, or any other
// expression whose type is the tag's representation.
func checkTag(kw *types.Keyword, k *compiler.KeywordArg, valueType types.Type) *compiler.Diagnostic {
	if _, isLiteral := literalValue(k.Value); isLiteral {
		if _, ok := TagOption(kw.Tag, k.Value); ok {
			return nil
		}
		return compiler.Errorf(compiler.KindType, k.Value.Span(), "keyword argument %s expected one of %s", kw.Name, kw.Type)
	}
	if valueType == types.Any || valueType == types.Error || types.Equals(kw.Tag.Representation(), valueType) {
		return nil
	}
	return compiler.Errorf(compiler.KindType, k.Value.Span(), "keyword argument %s expected type %s, but got %s", kw.Name, kw.Tag.Representation(), valueType)
}

// TagOption returns the option of tag that a literal expression selects.
func TagOption(tag *types.Tag, e compiler.Expr) (string, bool) {
	value, ok := literalValue(e)
	if !ok {
		return "", false
	}
	return tag.Match(value)
}

func literalValue(e compiler.Expr) (string, bool) {
	switch e := e.(type) {
	case *compiler.CastExpr:
		return literalValue(e.Expr)
	case *compiler.StringLiteral:
		return e.Value, true
	case *compiler.BoolLiteral:
		if e.Value {
			return "true", true
		}
		return "false", true
	}
	return "", false
}

// ---------------------------------------------------------------------------
// Type names
// ---------------------------------------------------------------------------

var typeNames = map[string]func() types.Type{
	"number":  func() types.Type { return types.Number },
	"string":  func() types.Type { return types.String },
	"text":    func() types.Type { return types.StyledText },
	"boolean": func() types.Type { return types.Boolean },
	"any":     func() types.Type { return types.Any },
	"void":    func() types.Type { return types.Void },
	"list":    func() types.Type { return types.NewList() },
	"dict":    func() types.Type { return types.NewDict() },
}

func (c *Checker) resolveType(te compiler.TypeExpr) types.Type {
	tn, ok := te.(*compiler.TypeName)
	if !ok {
		return c.errorf(te.Span(), "malformed type")
	}
	mk, ok := typeNames[tn.Name]
	if !ok {
		return c.errorf(tn.Span(), "unknown type name '%s'", tn.Name)
	}
	t := mk()
	if len(tn.Params) == 0 {
		c.res.Types[tn] = t
		return t
	}
	params := make([]types.Type, len(tn.Params))
	for i, p := range tn.Params {
		params[i] = c.resolveType(p)
	}
	bound, err := types.Bind(t, params)
	if err != nil {
		return c.errorf(tn.Span(), "%v", err)
	}
	c.res.Types[tn] = bound
	return bound
}
