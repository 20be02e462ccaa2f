// Package codegen lowers a checked basalt program to DiamondFire code rows.
//
// Every event and function becomes one row. Top-level definitions are
// hoisted into a basalt_init function that the Join event calls; when the
// program has no Join event one is synthesized.
package codegen

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/neverUsedGithub/basalt/compiler"
	"github.com/neverUsedGithub/basalt/df"
	"github.com/neverUsedGithub/basalt/typecheck"
	"github.com/neverUsedGithub/basalt/types"
)

var log = commonlog.GetLogger("basalt.codegen")

// InitFunction is the function top-level definitions are hoisted into.
const InitFunction = "basalt_init"

// selectionBlocks are the codeblocks that accept a block target.
var selectionBlocks = map[string]bool{
	df.PlayerAction: true,
	df.EntityAction: true,
	df.IfPlayer:     true,
	df.IfEntity:     true,
}

var arithmetic = map[string]string{
	"+": "+",
	"-": "-",
	"*": "x",
	"/": "/",
	"%": "%",
}

var comparisons = map[string]string{
	"==": "=",
	"!=": "!=",
	"<":  "<",
	"<=": "<=",
	">":  ">",
	">=": ">=",
}

// bailout unwinds generation at the first CodeGen error.
type bailout struct{ d *compiler.Diagnostic }

// Generator lowers one program.
type Generator struct {
	res  *typecheck.Result
	rows rowManager

	hadJoin bool
	ret     df.Var // output variable of the function being generated
}

// Generate lowers prog using the facts recorded by the checker. The
// program must have checked without diagnostics.
func Generate(prog *compiler.Program, res *typecheck.Result) (rows []*df.Row, err error) {
	g := &Generator{res: res}

	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			rows, err = nil, b.d
		}
	}()

	g.program(prog)
	log.Debugf("generated %d rows using %d temporaries", len(g.rows.rows), g.rows.temps)
	return g.rows.rows, nil
}

func (g *Generator) errorf(span compiler.Span, format string, args ...interface{}) {
	panic(bailout{compiler.Errorf(compiler.KindCodeGen, span, format, args...)})
}

func (g *Generator) add(b *df.Block) {
	if t := g.rows.blockTarget(); t != "" && selectionBlocks[b.Codeblock] {
		b.Target = t
	}
	g.rows.add(b)
}

// ---------------------------------------------------------------------------
// Declarations
// ---------------------------------------------------------------------------

func (g *Generator) program(p *compiler.Program) {
	var defs []*compiler.VarDecl
	for _, d := range p.Decls {
		switch d := d.(type) {
		case *compiler.VarDecl:
			if d.Value != nil {
				defs = append(defs, d)
			}
		case *compiler.UsingDecl:
		case *compiler.EventDecl:
			g.event(d)
		case *compiler.FuncDecl:
			g.function(d)
		default:
			g.errorf(d.Span(), "invalid top-level directive")
		}
	}

	g.initRow(defs)

	if !g.hadJoin {
		g.rows.begin()
		g.rows.add(df.NewCode(df.EventBlock, "Join"))
		g.rows.add(df.NewFunc(df.CallFunc, InitFunction))
		g.rows.end()
	}
}

func (g *Generator) initRow(defs []*compiler.VarDecl) {
	g.rows.begin()
	g.rows.add(df.NewFunc(df.Func, InitFunction))

	if len(defs) > 0 {
		// only the first player to join initializes the plot
		g.rows.add(df.NewCode(df.IfVar, "=",
			df.GameValue{Type: "Player Count", Target: "Default"},
			df.Number{Value: "1"},
		))
		g.rows.openBracket(df.Norm)
		for _, d := range defs {
			v := g.variable(d.Var)
			if v.Class == df.Saved {
				guard := df.NewCode(df.IfVar, "VarExists", v)
				guard.Attribute = "NOT"
				g.rows.add(guard)
				g.rows.openBracket(df.Norm)
			}
			g.varDecl(d)
			if v.Class == df.Saved {
				g.rows.closeBracket(df.Norm)
			}
		}
		g.rows.closeBracket(df.Norm)
	}
	g.rows.end()
}

func (g *Generator) event(n *compiler.EventDecl) {
	ev, ok := g.res.TypeOf(n.Event).(*types.Event)
	if !ok {
		g.errorf(n.Event.Span(), "expected an event")
	}

	g.rows.begin()
	g.rows.add(df.NewCode(ev.Block, ev.Action))
	if ev.Block == df.EventBlock && ev.Action == "Join" {
		g.hadJoin = true
		g.rows.add(df.NewFunc(df.CallFunc, InitFunction))
	}
	g.block(n.Body)
	g.rows.end()
}

func (g *Generator) function(n *compiler.FuncDecl) {
	g.rows.begin()
	g.ret = g.rows.temp()

	items := []df.Item{df.Param{Name: g.ret.Name, Type: "var"}}
	for _, p := range n.Params {
		items = append(items, df.Param{Name: p.Name, Type: paramType(g.res.TypeOf(p))})
	}
	g.rows.add(df.NewFunc(df.Func, n.Name, items...))
	g.block(n.Body)
	g.rows.end()
}

// paramType maps a declared parameter type to its pn_el type.
func paramType(t types.Type) string {
	switch t := t.(type) {
	case types.Primitive:
		switch t {
		case types.Number, types.Boolean:
			return "num"
		case types.String:
			return "txt"
		case types.StyledText:
			return "comp"
		}
	case types.Literal:
		if t.Kind == types.LiteralString {
			return "txt"
		}
		return "num"
	case *types.List:
		return "list"
	case *types.Dict:
		return "dict"
	case *types.Reference:
		return "var"
	}
	return "any"
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (g *Generator) block(b *compiler.Block) {
	for _, s := range b.Stmts {
		g.stmt(s)
	}
}

func (g *Generator) stmt(s compiler.Stmt) {
	switch s := s.(type) {
	case *compiler.Block:
		g.block(s)

	case *compiler.ExprStmt:
		g.effect(s.Expr)

	case *compiler.VarDecl:
		g.varDecl(s)

	case *compiler.ReturnStmt:
		if s.Value != nil {
			g.add(df.NewCode(df.SetVar, "=", g.ret, g.item(s.Value)))
		}
		g.add(df.NewCode(df.Control, "Return"))

	case *compiler.IfStmt:
		g.condition(s.Cond)
		g.rows.openBracket(df.Norm)
		g.block(s.Body)
		g.rows.closeBracket(df.Norm)

	case *compiler.IfActionStmt:
		info, ok := g.res.Calls[s.Call]
		if !ok {
			g.errorf(s.Call.Span(), "unresolved condition")
		}
		g.add(g.action(s.Call, info.Callee.(*types.Action)))
		g.rows.openBracket(df.Norm)
		g.block(s.Body)
		g.rows.closeBracket(df.Norm)

	case *compiler.ForStmt:
		g.forStmt(s)

	case *compiler.TargetStmt:
		g.rows.pushTarget(compiler.Targets[s.Target])
		g.stmt(s.Stmt)
		g.rows.popTarget()

	default:
		panic(fmt.Sprintf("internal error: codegen: unhandled statement %T", s))
	}
}

func (g *Generator) varDecl(n *compiler.VarDecl) {
	if n.Value == nil {
		return
	}
	g.add(df.NewCode(df.SetVar, "=", g.variable(n.Var), g.item(n.Value)))
}

// condition emits the if block testing e.
func (g *Generator) condition(e compiler.Expr) {
	if c, ok := e.(*compiler.CastExpr); ok {
		g.condition(c.Expr)
		return
	}
	if b, ok := e.(*compiler.BinaryExpr); ok {
		if op, ok := comparisons[b.Op]; ok {
			g.add(df.NewCode(df.IfVar, op, g.item(b.Left), g.item(b.Right)))
			return
		}
	}
	g.add(df.NewCode(df.IfVar, "!=", g.item(e), df.Number{Value: "0"}))
}

func (g *Generator) forStmt(n *compiler.ForStmt) {
	action := "ForEach"
	switch {
	case n.Counted:
		action = "Multiple"
	default:
		switch g.res.TypeOf(n.Iter).(type) {
		case *types.Dict:
			action = "ForEachEntry"
		case *types.List:
		default:
			if len(n.Pattern) == 2 {
				action = "ForEachEntry"
			}
		}
	}

	var items []df.Item
	for _, v := range n.Pattern {
		items = append(items, g.variable(v))
	}
	items = append(items, g.item(n.Iter))

	g.add(df.NewCode(df.Repeat, action, items...))
	g.rows.openBracket(df.RepeatType)
	g.block(n.Body)
	g.rows.closeBracket(df.RepeatType)
}

// effect evaluates e for its side effects.
func (g *Generator) effect(e compiler.Expr) {
	switch e := e.(type) {
	case *compiler.CallExpr:
		g.call(e, false)
	case *compiler.AssignExpr:
		g.assign(e)
	case *compiler.TargetExpr:
		g.rows.pushTarget(compiler.Targets[e.Target])
		g.effect(e.Expr)
		g.rows.popTarget()
	case *compiler.CastExpr:
		g.effect(e.Expr)
	default:
		g.item(e)
	}
}

// ---------------------------------------------------------------------------
// Calls
// ---------------------------------------------------------------------------

// call emits a call. When value is set the call's result is returned as
// an operand.
func (g *Generator) call(n *compiler.CallExpr, value bool) df.Item {
	info, ok := g.res.Calls[n]
	if !ok {
		g.errorf(n.Span(), "unresolved call")
	}

	switch fn := info.Callee.(type) {
	case *types.Action:
		if !value {
			g.add(g.action(n, fn))
			return nil
		}
		if !info.Implicit {
			g.errorf(n.Span(), "this action cannot be used here")
		}
		out := g.rows.temp()
		g.add(g.action(n, fn, out))
		return out

	case *types.Callable:
		out := g.rows.temp()
		items := []df.Item{out}
		for _, a := range n.Args {
			items = append(items, g.item(a))
		}
		g.add(df.NewFunc(df.CallFunc, fn.Name, items...))
		return out
	}

	g.errorf(n.Callee.Span(), "cannot call this expression")
	return nil
}

// action builds the block for an action call. Leading items take the
// first slots; positional arguments follow, then untagged keywords. Tags
// go to the slot the catalogue assigns them.
func (g *Generator) action(n *compiler.CallExpr, a *types.Action, lead ...df.Item) *df.Block {
	b := df.NewCode(a.Codeblock, a.Action, lead...)
	for _, arg := range n.Args {
		b.Add(g.item(arg))
	}

	var tags []df.Slot
	for _, k := range n.Keywords {
		kw, ok := a.Signature.Keyword(k.Name)
		if !ok {
			g.errorf(k.Span(), "unexpected keyword argument %s", k.Name)
		}
		if kw.Tag == nil {
			b.Add(g.item(k.Value))
			continue
		}
		tags = append(tags, df.Slot{Index: kw.Tag.Slot, Item: g.tag(a, kw.Tag, k.Value)})
	}
	b.Items = append(b.Items, tags...)
	return b
}

func (g *Generator) tag(a *types.Action, tag *types.Tag, value compiler.Expr) df.Tag {
	t := df.Tag{Tag: tag.Name, Action: a.Action, Block: a.Codeblock, Option: tag.Default}
	if opt, ok := typecheck.TagOption(tag, value); ok {
		t.Option = opt
		return t
	}
	switch it := g.item(value).(type) {
	case df.Var:
		t.Variable = &it
	case nil:
		g.errorf(value.Span(), "tag %s has no value", tag.Name)
	default:
		// tags only bind variables
		tmp := g.rows.temp()
		g.add(df.NewCode(df.SetVar, "=", tmp, it))
		t.Variable = &tmp
	}
	return t
}

// ---------------------------------------------------------------------------
// Assignment
// ---------------------------------------------------------------------------

func (g *Generator) assign(n *compiler.AssignExpr) df.Item {
	switch target := n.Target.(type) {
	case *compiler.Variable:
		lhs := g.variable(target)
		rhs := g.item(n.Value)
		switch n.Op {
		case "=":
			g.add(df.NewCode(df.SetVar, "=", lhs, rhs))
		case "+=":
			if g.res.TypeOf(target) == types.String {
				g.add(df.NewCode(df.SetVar, "String", lhs, lhs, rhs))
			} else {
				g.add(df.NewCode(df.SetVar, "+=", lhs, rhs))
			}
		case "-=":
			g.add(df.NewCode(df.SetVar, "-=", lhs, rhs))
		case "*=", "/=", "%=":
			g.add(df.NewCode(df.SetVar, arithmetic[n.Op[:1]], lhs, lhs, rhs))
		default:
			g.errorf(n.Span(), "unsupported assignment operator '%s'", n.Op)
		}
		return lhs

	case *compiler.PropertyGet:
		if n.Op != "=" {
			g.errorf(n.Span(), "compound assignment to an element is not supported")
		}
		container, ok := g.item(target.Object).(df.Var)
		if !ok {
			g.errorf(target.Object.Span(), "only elements of variables can be assigned")
		}
		key := g.key(target)
		value := g.item(n.Value)
		if g.isList(target) {
			g.add(df.NewCode(df.SetVar, "SetListValue", container, key, value))
		} else {
			g.add(df.NewCode(df.SetVar, "SetDictValue", container, key, value))
		}
		return value

	case *compiler.Identifier:
		g.errorf(target.Span(), "cannot assign to '%s'", target.Name)
	}

	g.errorf(n.Target.Span(), "cannot assign to this expression")
	return nil
}

// key returns the index or key operand of an element access.
func (g *Generator) key(n *compiler.PropertyGet) df.Item {
	if !n.Computed {
		return df.Text{Value: n.Name}
	}
	return g.item(n.Index)
}

// isList reports whether an element access indexes a list. Untyped
// containers are lists when indexed by a number.
func (g *Generator) isList(n *compiler.PropertyGet) bool {
	switch g.res.TypeOf(n.Object).(type) {
	case *types.List:
		return true
	case *types.Dict:
		return false
	}
	if !n.Computed {
		return false
	}
	switch idx := g.res.TypeOf(n.Index).(type) {
	case types.Primitive:
		return idx == types.Number
	case types.Literal:
		return idx.Kind == types.LiteralNumber
	}
	return false
}

// ---------------------------------------------------------------------------
// Operands
// ---------------------------------------------------------------------------

func (g *Generator) variable(v *compiler.Variable) df.Var {
	class, ok := df.ParseScope(v.Scope)
	if !ok {
		g.errorf(v.Span(), "unknown variable scope %s", v.Scope)
	}
	return df.Var{Name: v.Name, Class: class}
}

// item lowers e to an operand, emitting whatever blocks compute it.
func (g *Generator) item(e compiler.Expr) df.Item {
	switch e := e.(type) {
	case *compiler.CastExpr:
		return g.item(e.Expr)

	case *compiler.NumberLiteral:
		return df.Number{Value: e.Value}

	case *compiler.StringLiteral:
		return df.Text{Value: e.Value}

	case *compiler.StyledTextLiteral:
		return df.StyledText{Value: e.Value}

	case *compiler.BoolLiteral:
		if e.Value {
			return df.Number{Value: "1"}
		}
		return df.Number{Value: "0"}

	case *compiler.Variable:
		return g.variable(e)

	case *compiler.RefExpr:
		return g.variable(e.Var)

	case *compiler.NamespaceGet:
		gv, ok := g.res.GameValues[e]
		if !ok {
			break
		}
		return df.GameValue{Type: gv.Name, Target: g.rows.gameValueTarget()}

	case *compiler.TargetExpr:
		g.rows.pushTarget(compiler.Targets[e.Target])
		it := g.item(e.Expr)
		g.rows.popTarget()
		return it

	case *compiler.CallExpr:
		return g.call(e, true)

	case *compiler.AssignExpr:
		return g.assign(e)

	case *compiler.BinaryExpr:
		return g.binary(e)

	case *compiler.ListLiteral:
		out := g.rows.temp()
		items := []df.Item{out}
		for _, el := range e.Elements {
			items = append(items, g.item(el))
		}
		g.add(df.NewCode(df.SetVar, "CreateList", items...))
		return out

	case *compiler.DictLiteral:
		return g.dict(e)

	case *compiler.PropertyGet:
		obj := g.item(e.Object)
		key := g.key(e)
		out := g.rows.temp()
		if g.isList(e) {
			g.add(df.NewCode(df.SetVar, "GetListValue", out, obj, key))
		} else {
			g.add(df.NewCode(df.SetVar, "GetDictValue", out, obj, key))
		}
		return out
	}

	g.errorf(e.Span(), "cannot generate an item from this expression (%T)", e)
	return nil
}

func (g *Generator) binary(e *compiler.BinaryExpr) df.Item {
	if _, ok := comparisons[e.Op]; ok {
		g.errorf(e.Span(), "comparisons can only be used as conditions")
	}
	op, ok := arithmetic[e.Op]
	if !ok {
		g.errorf(e.OpSpan, "unsupported operator '%s'", e.Op)
	}

	lhs := g.item(e.Left)
	rhs := g.item(e.Right)
	out := g.rows.temp()
	if g.res.TypeOf(e) == types.String {
		if e.Op != "+" {
			g.errorf(e.OpSpan, "unsupported operator '%s' for strings", e.Op)
		}
		op = "String"
	}
	g.add(df.NewCode(df.SetVar, op, out, lhs, rhs))
	return out
}

func (g *Generator) dict(e *compiler.DictLiteral) df.Item {
	out := g.rows.temp()
	if len(e.Entries) == 0 {
		g.add(df.NewCode(df.SetVar, "CreateDict", out))
		return out
	}

	keys := g.rows.temp()
	values := g.rows.temp()
	keyItems := []df.Item{keys}
	valueItems := []df.Item{values}
	for _, entry := range e.Entries {
		keyItems = append(keyItems, df.Text{Value: entry.Key})
		valueItems = append(valueItems, g.item(entry.Value))
	}
	g.add(df.NewCode(df.SetVar, "CreateList", keyItems...))
	g.add(df.NewCode(df.SetVar, "CreateList", valueItems...))
	g.add(df.NewCode(df.SetVar, "CreateDict", out, keys, values))
	return out
}
