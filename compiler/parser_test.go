package compiler

import (
	"strings"
	"testing"
)

func parseExpr(t *testing.T, input string) Expr {
	t.Helper()
	p := NewParser(input, Strict)
	var expr Expr
	func() {
		defer func() {
			if r := recover(); r != nil {
				if _, ok := r.(bailout); !ok {
					panic(r)
				}
			}
		}()
		expr = p.ParseExpression()
	}()
	if len(p.Errors()) > 0 {
		t.Fatalf("parse errors: %v", p.Errors())
	}
	return expr
}

func parseProgram(t *testing.T, input string) *Program {
	t.Helper()
	prog, diags := Parse(NewSource("test.basalt", input), Strict)
	if len(diags) > 0 {
		t.Fatalf("parse errors: %v", diags)
	}
	return prog
}

func TestParserLiterals(t *testing.T) {
	tests := []struct {
		input string
		check func(Expr) bool
		desc  string
	}{
		{"42", func(e Expr) bool { return e.(*NumberLiteral).Value == "42" }, "integer"},
		{"-5", func(e Expr) bool { return e.(*NumberLiteral).Value == "-5" }, "negative number"},
		{"3.14", func(e Expr) bool { return e.(*NumberLiteral).Value == "3.14" }, "fraction"},
		{"'hello'", func(e Expr) bool { return e.(*StringLiteral).Value == "hello" }, "string"},
		{`"<b>hi"`, func(e Expr) bool { return e.(*StyledTextLiteral).Value == "<b>hi" }, "styled text"},
		{"true", func(e Expr) bool { return e.(*BoolLiteral).Value }, "true"},
		{"false", func(e Expr) bool { return !e.(*BoolLiteral).Value }, "false"},
	}

	for _, tc := range tests {
		expr := parseExpr(t, tc.input)
		if expr == nil {
			t.Errorf("%s: nil expression", tc.desc)
			continue
		}
		if !tc.check(expr) {
			t.Errorf("%s: check failed for %#v", tc.desc, expr)
		}
	}
}

func TestParserVariables(t *testing.T) {
	expr := parseExpr(t, "@saved coins")
	v, ok := expr.(*Variable)
	if !ok {
		t.Fatalf("expected *Variable, got %T", expr)
	}
	if v.Scope != "@saved" || v.Name != "coins" {
		t.Errorf("got %s %s", v.Scope, v.Name)
	}

	ref, ok := parseExpr(t, "ref @line out").(*RefExpr)
	if !ok {
		t.Fatalf("expected *RefExpr")
	}
	if ref.Var.Name != "out" {
		t.Errorf("ref of %q", ref.Var.Name)
	}
}

func TestParserPrecedence(t *testing.T) {
	expr := parseExpr(t, "1 + 2 * 3 == 7")
	cmp, ok := expr.(*BinaryExpr)
	if !ok || cmp.Op != "==" {
		t.Fatalf("expected == at the root, got %#v", expr)
	}
	sum, ok := cmp.Left.(*BinaryExpr)
	if !ok || sum.Op != "+" {
		t.Fatalf("expected + under ==, got %#v", cmp.Left)
	}
	prod, ok := sum.Right.(*BinaryExpr)
	if !ok || prod.Op != "*" {
		t.Fatalf("expected * under +, got %#v", sum.Right)
	}
}

func TestParserLeftAssociative(t *testing.T) {
	expr := parseExpr(t, "10 - 4 - 3")
	outer := expr.(*BinaryExpr)
	inner, ok := outer.Left.(*BinaryExpr)
	if !ok {
		t.Fatalf("expected (10 - 4) - 3, got right operand %#v", outer.Right)
	}
	if inner.Left.(*NumberLiteral).Value != "10" || outer.Right.(*NumberLiteral).Value != "3" {
		t.Errorf("wrong grouping")
	}
}

func TestParserAssignmentRightAssociative(t *testing.T) {
	expr := parseExpr(t, "@line a = @line b = 1")
	outer, ok := expr.(*AssignExpr)
	if !ok {
		t.Fatalf("expected *AssignExpr, got %T", expr)
	}
	if _, ok := outer.Value.(*AssignExpr); !ok {
		t.Errorf("expected nested assignment on the right, got %T", outer.Value)
	}
}

func TestParserNamespaceCall(t *testing.T) {
	expr := parseExpr(t, "player_action::send_message('hi', 'there', alignment_mode = 'Centered')")
	call, ok := expr.(*CallExpr)
	if !ok {
		t.Fatalf("expected *CallExpr, got %T", expr)
	}
	ns, ok := call.Callee.(*NamespaceGet)
	if !ok {
		t.Fatalf("expected namespace callee, got %T", call.Callee)
	}
	if ns.Member != "send_message" || ns.Namespace.(*Identifier).Name != "player_action" {
		t.Errorf("callee %#v", ns)
	}
	if len(call.Args) != 2 {
		t.Errorf("got %d positional args, want 2", len(call.Args))
	}
	if len(call.Keywords) != 1 || call.Keywords[0].Name != "alignment_mode" {
		t.Fatalf("keywords %#v", call.Keywords)
	}
	if call.Keywords[0].Value.(*StringLiteral).Value != "Centered" {
		t.Errorf("keyword value %#v", call.Keywords[0].Value)
	}
}

func TestParserTypeNameKeyword(t *testing.T) {
	call := parseExpr(t, "f(text = 'x')").(*CallExpr)
	if len(call.Keywords) != 1 || call.Keywords[0].Name != "text" {
		t.Errorf("keywords %#v", call.Keywords)
	}
}

func TestParserIndexAndProperty(t *testing.T) {
	expr := parseExpr(t, "@line xs[0].name")
	prop, ok := expr.(*PropertyGet)
	if !ok || prop.Computed || prop.Name != "name" {
		t.Fatalf("expected .name at the root, got %#v", expr)
	}
	index, ok := prop.Object.(*PropertyGet)
	if !ok || !index.Computed {
		t.Fatalf("expected computed access, got %#v", prop.Object)
	}
}

func TestParserCastAndTarget(t *testing.T) {
	cast, ok := parseExpr(t, "@line x as number").(*CastExpr)
	if !ok {
		t.Fatalf("expected *CastExpr")
	}
	if cast.Type.(*TypeName).Name != "number" {
		t.Errorf("cast to %#v", cast.Type)
	}

	target, ok := parseExpr(t, "victim game_values::current_health").(*TargetExpr)
	if !ok {
		t.Fatalf("expected *TargetExpr")
	}
	if target.Target != "victim" {
		t.Errorf("target %q", target.Target)
	}
	if _, ok := target.Expr.(*NamespaceGet); !ok {
		t.Errorf("target expression %T", target.Expr)
	}
}

func TestParserContainers(t *testing.T) {
	list := parseExpr(t, "[1, 2, 3]").(*ListLiteral)
	if len(list.Elements) != 3 {
		t.Errorf("list has %d elements", len(list.Elements))
	}
	dict := parseExpr(t, "{'a': 1, 'b': 'two'}").(*DictLiteral)
	if len(dict.Entries) != 2 || dict.Entries[1].Key != "b" {
		t.Errorf("dict entries %#v", dict.Entries)
	}
}

func TestParserProgram(t *testing.T) {
	source := `
using player_action::send_message;

let @saved visits: number = 0;

fn greet(name: string): string {
	return 'hello ' + name;
}

event player_event::join {
	@saved visits += 1;
	if (@saved visits > 10) {
		send_message(greet('x'));
	}
	if player is_sneaking() {
		selection player_action::heal();
	}
	for @line i to 3 {
		send_message(@line i);
	}
	for @line k, @line v in {'a': 1} { }
}
`
	prog := parseProgram(t, source)
	if len(prog.Decls) != 4 {
		t.Fatalf("got %d declarations, want 4", len(prog.Decls))
	}

	using := prog.Decls[0].(*UsingDecl)
	if using.Namespace != "player_action" || using.Member != "send_message" {
		t.Errorf("using %#v", using)
	}

	let := prog.Decls[1].(*VarDecl)
	if let.Var.Scope != "@saved" || let.Type.(*TypeName).Name != "number" {
		t.Errorf("let %#v", let)
	}

	fn := prog.Decls[2].(*FuncDecl)
	if fn.Name != "greet" || len(fn.Params) != 1 || fn.ReturnType == nil {
		t.Errorf("fn %#v", fn)
	}
	if _, ok := fn.Body.Stmts[0].(*ReturnStmt); !ok {
		t.Errorf("expected return statement, got %T", fn.Body.Stmts[0])
	}

	ev := prog.Decls[3].(*EventDecl)
	stmts := ev.Body.Stmts
	if len(stmts) != 5 {
		t.Fatalf("event body has %d statements, want 5", len(stmts))
	}
	if a := stmts[0].(*ExprStmt).Expr.(*AssignExpr); a.Op != "+=" {
		t.Errorf("compound op %q", a.Op)
	}
	if _, ok := stmts[1].(*IfStmt); !ok {
		t.Errorf("expected *IfStmt, got %T", stmts[1])
	}
	ifAction := stmts[2].(*IfActionStmt)
	if ifAction.Category != "player" || ifAction.Call.Callee.(*Identifier).Name != "is_sneaking" {
		t.Errorf("if action %#v", ifAction)
	}
	if ts, ok := ifAction.Body.Stmts[0].(*TargetStmt); !ok || ts.Target != "selection" {
		t.Errorf("expected selection target statement, got %#v", ifAction.Body.Stmts[0])
	}
	if f := stmts[3].(*ForStmt); !f.Counted || len(f.Pattern) != 1 {
		t.Errorf("counted for %#v", f)
	}
	if f := stmts[4].(*ForStmt); f.Counted || len(f.Pattern) != 2 {
		t.Errorf("dict for %#v", f)
	}
}

func TestParserGenericType(t *testing.T) {
	prog := parseProgram(t, "let @global scores: dict[list[number]];")
	decl := prog.Decls[0].(*VarDecl)
	tn := decl.Type.(*TypeName)
	if tn.Name != "dict" || len(tn.Params) != 1 {
		t.Fatalf("type %#v", tn)
	}
	if inner := tn.Params[0].(*TypeName); inner.Name != "list" || inner.Params[0].(*TypeName).Name != "number" {
		t.Errorf("inner type %#v", inner)
	}
	if decl.Value != nil {
		t.Errorf("unexpected value %#v", decl.Value)
	}
}

func TestParserVoidReturn(t *testing.T) {
	prog := parseProgram(t, "fn stop() { return; }")
	fn := prog.Decls[0].(*FuncDecl)
	if fn.ReturnType != nil {
		t.Errorf("expected void function")
	}
	if ret := fn.Body.Stmts[0].(*ReturnStmt); ret.Value != nil {
		t.Errorf("expected bare return")
	}
}

func TestParserStrictStopsAtFirstError(t *testing.T) {
	prog, diags := Parse(NewSource("bad.basalt", "let @line x = ;\nlet @line y = ;"), Strict)
	if prog != nil {
		t.Errorf("expected nil program in strict mode")
	}
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1: %v", len(diags), diags)
	}
	if diags[0].Kind != KindParser {
		t.Errorf("kind %s", diags[0].Kind)
	}
}

func TestParserTolerantRecovers(t *testing.T) {
	source := `event player_event::join {
	@line a = ;
	player_action::send_message('ok');
	@line b = ;
}`
	prog, diags := Parse(NewSource("bad.basalt", source), Tolerant)
	if prog == nil {
		t.Fatalf("expected a program in tolerant mode")
	}
	if len(diags) != 2 {
		t.Fatalf("got %d diagnostics, want 2: %v", len(diags), diags)
	}
	ev := prog.Decls[0].(*EventDecl)
	if len(ev.Body.Stmts) != 3 {
		t.Fatalf("got %d statements, want 3", len(ev.Body.Stmts))
	}
	if _, ok := ev.Body.Stmts[0].(*ExprStmt).Expr.(*BadExpr); !ok {
		t.Errorf("expected BadExpr placeholder, got %T", ev.Body.Stmts[0].(*ExprStmt).Expr)
	}
	if _, ok := ev.Body.Stmts[1].(*ExprStmt).Expr.(*CallExpr); !ok {
		t.Errorf("expected the valid call to survive, got %T", ev.Body.Stmts[1].(*ExprStmt).Expr)
	}
}

func TestParserLexerErrorReported(t *testing.T) {
	_, diags := Parse(NewSource("bad.basalt", "let @nowhere x = 1;"), Tolerant)
	if len(diags) == 0 {
		t.Fatalf("expected diagnostics")
	}
	if diags[0].Kind != KindLexer {
		t.Errorf("first diagnostic kind %s, want Lexer", diags[0].Kind)
	}
}

func TestNodeAt(t *testing.T) {
	source := "event player_event::join { player_action::send_message('hi'); }"
	prog := parseProgram(t, source)
	offset := strings.Index(source, "'hi'") + 1
	n := NodeAt(prog, Position{Offset: offset})
	if _, ok := n.(*StringLiteral); !ok {
		t.Errorf("NodeAt returned %T, want *StringLiteral", n)
	}
}

func TestFormatDiagnostic(t *testing.T) {
	src := NewSource("main.basalt", "let @line x: number = 'a';")
	d := Errorf(KindType, Span{
		Start: Position{Offset: 22, Line: 1, Column: 23},
		End:   Position{Offset: 25, Line: 1, Column: 26},
	}, "cannot assign string to number")

	want := strings.Join([]string{
		" +-- TypeError at main.basalt:1:23",
		" |",
		"1 | let @line x: number = 'a';",
		" |                       ^^^",
		" |",
		" +-- cannot assign string to number",
	}, "\n")
	if got := src.Format(d); got != want {
		t.Errorf("got:\n%s\nwant:\n%s", got, want)
	}
}
