package compiler

import (
	"fmt"
)

// ---------------------------------------------------------------------------
// Parser: Recursive descent parser for basalt syntax
// ---------------------------------------------------------------------------

// Mode selects how compile stages react to errors.
type Mode int

const (
	// Strict stops at the first diagnostic.
	Strict Mode = iota
	// Tolerant records diagnostics and keeps going.
	Tolerant
)

func (m Mode) String() string {
	if m == Tolerant {
		return "tolerant"
	}
	return "strict"
}

// ParseMode parses "strict" or "tolerant".
func ParseMode(s string) (Mode, error) {
	switch s {
	case "", "strict":
		return Strict, nil
	case "tolerant":
		return Tolerant, nil
	}
	return Strict, fmt.Errorf("unknown mode %q", s)
}

// bailout aborts a strict parse.
type bailout struct{}

// syntaxError unwinds a tolerant parse to the nearest statement boundary.
type syntaxError struct{}

// Operator precedences, highest binds tightest.
const (
	precLowest  = 0
	precAssign  = 2
	precCompare = 6
	precSum     = 7
	precProduct = 8
	precCast    = 10
	precMember  = 11
	precCall    = 12
	precScope   = 13
)

var binaryPrecedence = map[string]int{
	"=":  precAssign,
	"+=": precAssign,
	"-=": precAssign,
	"*=": precAssign,
	"/=": precAssign,
	"%=": precAssign,
	"==": precCompare,
	"!=": precCompare,
	"<":  precCompare,
	"<=": precCompare,
	">":  precCompare,
	">=": precCompare,
	"+":  precSum,
	"-":  precSum,
	"*":  precProduct,
	"/":  precProduct,
	"%":  precProduct,
	"as": precCast,
	".":  precMember,
	"::": precScope,
}

// Parser parses basalt source code into an AST.
type Parser struct {
	lexer     *Lexer
	curToken  Token
	peekToken Token
	prevEnd   Position
	mode      Mode
	diags     Diagnostics
}

// NewParser creates a new parser for the given input.
func NewParser(input string, mode Mode) *Parser {
	p := &Parser{
		lexer: NewLexer(input),
		mode:  mode,
	}
	p.prime()
	return p
}

// prime reads two tokens to fill curToken and peekToken. A strict-mode
// lexer error here is left in the diagnostics for ParseProgram's caller.
func (p *Parser) prime() {
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
		}
	}()
	p.nextToken()
	p.nextToken()
}

// Parse parses a whole source file. In strict mode parsing stops at the
// first error; in tolerant mode every error is collected and the returned
// program contains BadExpr placeholders.
func Parse(src *Source, mode Mode) (prog *Program, diags Diagnostics) {
	p := NewParser(src.Content, mode)
	if mode == Strict && len(p.diags) > 0 {
		return nil, p.diags
	}
	defer func() {
		if r := recover(); r != nil {
			if _, ok := r.(bailout); !ok {
				panic(r)
			}
			prog, diags = nil, p.diags
		}
	}()
	return p.ParseProgram(), p.diags
}

// nextToken advances to the next token, reporting lexer errors.
func (p *Parser) nextToken() {
	p.prevEnd = p.curToken.End
	p.curToken = p.peekToken
	for {
		p.peekToken = p.lexer.NextToken()
		if p.peekToken.Type != TokenError {
			return
		}
		p.report(&Diagnostic{Kind: KindLexer, Message: p.peekToken.Literal, Span: p.peekToken.Span()})
	}
}

func (p *Parser) curTokenIs(t TokenType) bool {
	return p.curToken.Type == t
}

func (p *Parser) curIs(t TokenType, lit string) bool {
	return p.curToken.Is(t, lit)
}

func (p *Parser) peekTokenIs(t TokenType) bool {
	return p.peekToken.Type == t
}

// expect consumes the current token if it matches, otherwise errors.
func (p *Parser) expect(t TokenType) Token {
	tok := p.curToken
	if !p.curTokenIs(t) {
		p.errorf("expected '%s', got %s", t, describe(tok))
	}
	p.nextToken()
	return tok
}

// report records d and unwinds in strict mode.
func (p *Parser) report(d *Diagnostic) {
	p.diags = append(p.diags, d)
	if p.mode == Strict {
		panic(bailout{})
	}
}

// errorf records a parse error at the current token and unwinds to the
// enclosing statement.
func (p *Parser) errorf(format string, args ...interface{}) {
	p.report(Errorf(KindParser, p.curToken.Span(), format, args...))
	panic(syntaxError{})
}

// Errors returns accumulated diagnostics.
func (p *Parser) Errors() Diagnostics {
	return p.diags
}

func describe(tok Token) string {
	switch tok.Type {
	case TokenEOF:
		return "end of file"
	case TokenString, TokenStyledText:
		return "string"
	}
	return fmt.Sprintf("'%s'", tok.Literal)
}

func (p *Parser) spanFrom(start Position) Span {
	return MakeSpan(start, p.prevEnd)
}

// synchronize skips to the next statement boundary after an error.
func (p *Parser) synchronize(start Position) {
	if p.curToken.Pos == start && !p.curTokenIs(TokenEOF) && !p.curTokenIs(TokenRBrace) {
		p.nextToken()
	}
	for !p.curTokenIs(TokenEOF) {
		switch {
		case p.curTokenIs(TokenSemicolon):
			p.nextToken()
			return
		case p.curTokenIs(TokenRBrace):
			return
		}
		p.nextToken()
	}
}

// recoverStatement turns a tolerant-mode syntax error into a BadExpr.
func (p *Parser) recoverStatement(start Position, out *Stmt) {
	r := recover()
	if r == nil {
		return
	}
	if _, ok := r.(syntaxError); !ok {
		panic(r)
	}
	p.synchronize(start)
	bad := &BadExpr{SpanVal: p.spanFrom(start)}
	*out = &ExprStmt{SpanVal: bad.SpanVal, Expr: bad}
}

// ---------------------------------------------------------------------------
// Top-level parsing
// ---------------------------------------------------------------------------

// ParseProgram parses declarations until EOF.
func (p *Parser) ParseProgram() *Program {
	start := p.curToken.Pos
	prog := &Program{}
	for !p.curTokenIs(TokenEOF) {
		if d := p.parseDeclSafe(); d != nil {
			prog.Decls = append(prog.Decls, d)
		}
	}
	prog.SpanVal = MakeSpan(start, p.curToken.End)
	return prog
}

func (p *Parser) parseDeclSafe() (d Decl) {
	start := p.curToken.Pos
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if _, ok := r.(syntaxError); !ok {
			panic(r)
		}
		p.synchronize(start)
		if p.curTokenIs(TokenRBrace) {
			p.nextToken()
		}
		d = nil
	}()
	return p.parseDecl()
}

func (p *Parser) parseDecl() Decl {
	switch {
	case p.curIs(TokenKeyword, "let"):
		return p.parseVarDecl()
	case p.curIs(TokenKeyword, "using"):
		return p.parseUsing()
	case p.curIs(TokenKeyword, "fn"):
		return p.parseFunc()
	case p.curIs(TokenKeyword, "event"):
		return p.parseEvent()
	}
	p.errorf("expected a declaration, got %s", describe(p.curToken))
	return nil
}

// using ns::member;
func (p *Parser) parseUsing() *UsingDecl {
	start := p.curToken.Pos
	p.nextToken()
	ns := p.expect(TokenIdentifier)
	if !p.curIs(TokenOperator, "::") {
		p.errorf("expected '::', got %s", describe(p.curToken))
	}
	p.nextToken()
	member := p.expect(TokenIdentifier)
	p.expect(TokenSemicolon)
	return &UsingDecl{SpanVal: p.spanFrom(start), Namespace: ns.Literal, Member: member.Literal}
}

// event ns::name { ... }
func (p *Parser) parseEvent() *EventDecl {
	start := p.curToken.Pos
	p.nextToken()
	ev := p.parseExpr(precLowest)
	body := p.parseBlock()
	return &EventDecl{SpanVal: p.spanFrom(start), Event: ev, Body: body}
}

// fn name(a: number, b: string): number { ... }
func (p *Parser) parseFunc() *FuncDecl {
	start := p.curToken.Pos
	p.nextToken()
	name := p.expect(TokenIdentifier)
	fn := &FuncDecl{Name: name.Literal, NameSpan: name.Span()}

	p.expect(TokenLParen)
	for !p.curTokenIs(TokenRParen) {
		pstart := p.curToken.Pos
		pname := p.expect(TokenIdentifier)
		p.expect(TokenColon)
		typ := p.parseType()
		fn.Params = append(fn.Params, &Param{SpanVal: p.spanFrom(pstart), Name: pname.Literal, Type: typ})
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expect(TokenRParen)

	if p.curTokenIs(TokenColon) {
		p.nextToken()
		fn.ReturnType = p.parseType()
	}
	fn.Body = p.parseBlock()
	fn.SpanVal = p.spanFrom(start)
	return fn
}

// let @scope name: type = value;
func (p *Parser) parseVarDecl() *VarDecl {
	start := p.curToken.Pos
	p.nextToken()
	decl := &VarDecl{Var: p.parseVariable()}
	if p.curTokenIs(TokenColon) {
		p.nextToken()
		decl.Type = p.parseType()
	}
	if p.curIs(TokenOperator, "=") {
		p.nextToken()
		decl.Value = p.parseExpr(precLowest)
	}
	p.expect(TokenSemicolon)
	decl.SpanVal = p.spanFrom(start)
	return decl
}

func (p *Parser) parseVariable() *Variable {
	start := p.curToken.Pos
	scope := p.expect(TokenScope)
	name := p.curToken
	if name.Type != TokenIdentifier && name.Type != TokenKeyword && name.Type != TokenTypeName && name.Type != TokenTarget {
		p.errorf("expected a variable name, got %s", describe(name))
	}
	p.nextToken()
	return &Variable{SpanVal: p.spanFrom(start), Scope: scope.Literal, Name: name.Literal}
}

// parseType parses number, list[number], dict[string] and so on.
func (p *Parser) parseType() TypeExpr {
	start := p.curToken.Pos
	name := p.expect(TokenTypeName)
	tn := &TypeName{Name: name.Literal}
	if p.curTokenIs(TokenLBracket) {
		p.nextToken()
		for !p.curTokenIs(TokenRBracket) {
			tn.Params = append(tn.Params, p.parseType())
			if !p.curTokenIs(TokenComma) {
				break
			}
			p.nextToken()
		}
		p.expect(TokenRBracket)
	}
	tn.SpanVal = p.spanFrom(start)
	return tn
}

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *Parser) parseBlock() *Block {
	start := p.curToken.Pos
	p.expect(TokenLBrace)
	b := &Block{}
	for !p.curTokenIs(TokenRBrace) && !p.curTokenIs(TokenEOF) {
		b.Stmts = append(b.Stmts, p.parseStatementSafe())
	}
	p.expect(TokenRBrace)
	b.SpanVal = p.spanFrom(start)
	return b
}

func (p *Parser) parseStatementSafe() (s Stmt) {
	defer p.recoverStatement(p.curToken.Pos, &s)
	return p.ParseStatement()
}

// ParseStatement parses a single statement.
func (p *Parser) ParseStatement() Stmt {
	start := p.curToken.Pos
	switch {
	case p.curIs(TokenKeyword, "let"):
		return p.parseVarDecl()
	case p.curIs(TokenKeyword, "return"):
		p.nextToken()
		ret := &ReturnStmt{}
		if !p.curTokenIs(TokenSemicolon) {
			ret.Value = p.parseExpr(precLowest)
		}
		p.expect(TokenSemicolon)
		ret.SpanVal = p.spanFrom(start)
		return ret
	case p.curIs(TokenKeyword, "for"):
		return p.parseFor()
	case p.curIs(TokenKeyword, "if"):
		return p.parseIf()
	case p.curTokenIs(TokenTarget):
		target := p.curToken.Literal
		p.nextToken()
		inner := p.ParseStatement()
		return &TargetStmt{SpanVal: p.spanFrom(start), Target: target, Stmt: inner}
	case p.curTokenIs(TokenLBrace):
		return p.parseBlock()
	}

	expr := p.parseExpr(precLowest)
	p.expect(TokenSemicolon)
	return &ExprStmt{SpanVal: p.spanFrom(start), Expr: expr}
}

// for @line x in list { } / for @line k, @line v in dict { } / for @line i to 10 { }
func (p *Parser) parseFor() *ForStmt {
	start := p.curToken.Pos
	p.nextToken()
	f := &ForStmt{}
	for {
		f.Pattern = append(f.Pattern, p.parseVariable())
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	switch {
	case p.curIs(TokenKeyword, "in"):
	case p.curIs(TokenKeyword, "to"):
		f.Counted = true
	default:
		p.errorf("expected 'in' or 'to', got %s", describe(p.curToken))
	}
	p.nextToken()
	f.Iter = p.parseExpr(precLowest)
	f.Body = p.parseBlock()
	f.SpanVal = p.spanFrom(start)
	return f
}

var ifCategories = map[string]bool{
	"player":   true,
	"entity":   true,
	"game":     true,
	"variable": true,
}

// if (cond) { } / if player is_sneaking() { }
func (p *Parser) parseIf() Stmt {
	start := p.curToken.Pos
	p.nextToken()

	if p.curTokenIs(TokenKeyword) && ifCategories[p.curToken.Literal] {
		category := p.curToken.Literal
		p.nextToken()
		callee := p.expect(TokenIdentifier)
		call := &CallExpr{Callee: &Identifier{SpanVal: callee.Span(), Name: callee.Literal}}
		p.parseCallArgs(call)
		call.SpanVal = p.spanFrom(callee.Pos)
		body := p.parseBlock()
		return &IfActionStmt{SpanVal: p.spanFrom(start), Category: category, Call: call, Body: body}
	}

	p.expect(TokenLParen)
	cond := p.parseExpr(precLowest)
	p.expect(TokenRParen)
	body := p.parseBlock()
	return &IfStmt{SpanVal: p.spanFrom(start), Cond: cond, Body: body}
}

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// ParseExpression parses a single expression.
func (p *Parser) ParseExpression() Expr {
	return p.parseExpr(precLowest)
}

func (p *Parser) infixPrecedence() int {
	switch p.curToken.Type {
	case TokenLParen:
		return precCall
	case TokenLBracket:
		return precMember
	case TokenOperator:
		return binaryPrecedence[p.curToken.Literal]
	}
	return precLowest
}

func (p *Parser) parseExpr(minPrec int) Expr {
	left := p.parsePrefix()
	for {
		prec := p.infixPrecedence()
		if prec <= minPrec {
			return left
		}
		left = p.parseInfix(left, prec)
	}
}

func (p *Parser) parseInfix(left Expr, prec int) Expr {
	start := left.Span().Start
	switch {
	case p.curTokenIs(TokenLParen):
		call := &CallExpr{Callee: left}
		p.parseCallArgs(call)
		call.SpanVal = p.spanFrom(start)
		return call

	case p.curTokenIs(TokenLBracket):
		p.nextToken()
		index := p.parseExpr(precLowest)
		p.expect(TokenRBracket)
		return &PropertyGet{SpanVal: p.spanFrom(start), Object: left, Index: index, Computed: true}
	}

	op := p.curToken
	p.nextToken()
	switch op.Literal {
	case "::":
		member := p.parseMemberName()
		return &NamespaceGet{SpanVal: p.spanFrom(start), Namespace: left, Member: member}
	case ".":
		name := p.parseMemberName()
		return &PropertyGet{SpanVal: p.spanFrom(start), Object: left, Name: name}
	case "as":
		typ := p.parseType()
		return &CastExpr{SpanVal: p.spanFrom(start), Expr: left, Type: typ}
	case "=", "+=", "-=", "*=", "/=", "%=":
		value := p.parseExpr(prec - 1)
		return &AssignExpr{SpanVal: p.spanFrom(start), Op: op.Literal, Target: left, Value: value}
	}

	right := p.parseExpr(prec)
	return &BinaryExpr{SpanVal: p.spanFrom(start), Op: op.Literal, OpSpan: op.Span(), Left: left, Right: right}
}

// parseMemberName accepts identifiers and words that double as keywords.
func (p *Parser) parseMemberName() string {
	tok := p.curToken
	switch tok.Type {
	case TokenIdentifier, TokenKeyword, TokenTarget, TokenTypeName:
		p.nextToken()
		return tok.Literal
	}
	p.errorf("expected a member name, got %s", describe(tok))
	return ""
}

// parseCallArgs parses (a, b, name = c) into call.
func (p *Parser) parseCallArgs(call *CallExpr) {
	p.expect(TokenLParen)
	for !p.curTokenIs(TokenRParen) {
		arg := p.parseExpr(precLowest)
		if assign, ok := arg.(*AssignExpr); ok && assign.Op == "=" {
			if id, ok := assign.Target.(*Identifier); ok {
				call.Keywords = append(call.Keywords, &KeywordArg{SpanVal: assign.SpanVal, Name: id.Name, Value: assign.Value})
				arg = nil
			}
		}
		if arg != nil {
			call.Args = append(call.Args, arg)
		}
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expect(TokenRParen)
}

func (p *Parser) parsePrefix() Expr {
	tok := p.curToken
	start := tok.Pos
	switch tok.Type {
	case TokenNumber:
		p.nextToken()
		return &NumberLiteral{SpanVal: tok.Span(), Value: tok.Literal}
	case TokenString:
		p.nextToken()
		return &StringLiteral{SpanVal: tok.Span(), Value: tok.Literal}
	case TokenStyledText:
		p.nextToken()
		return &StyledTextLiteral{SpanVal: tok.Span(), Value: tok.Literal}
	case TokenIdentifier, TokenTypeName:
		p.nextToken()
		return &Identifier{SpanVal: tok.Span(), Name: tok.Literal}
	case TokenScope:
		return p.parseVariable()
	case TokenTarget:
		p.nextToken()
		inner := p.parseExpr(precMember)
		return &TargetExpr{SpanVal: p.spanFrom(start), Target: tok.Literal, Expr: inner}
	case TokenLParen:
		p.nextToken()
		inner := p.parseExpr(precLowest)
		p.expect(TokenRParen)
		return inner
	case TokenLBracket:
		return p.parseList()
	case TokenLBrace:
		return p.parseDict()
	case TokenKeyword:
		switch tok.Literal {
		case "true", "false":
			p.nextToken()
			return &BoolLiteral{SpanVal: tok.Span(), Value: tok.Literal == "true"}
		case "ref":
			p.nextToken()
			v := p.parseVariable()
			return &RefExpr{SpanVal: p.spanFrom(start), Var: v}
		}
	case TokenOperator:
		if tok.Literal == "-" && p.peekTokenIs(TokenNumber) {
			p.nextToken()
			num := p.curToken
			p.nextToken()
			return &NumberLiteral{SpanVal: p.spanFrom(start), Value: "-" + num.Literal}
		}
	}
	p.errorf("expected an expression, got %s", describe(tok))
	return nil
}

func (p *Parser) parseList() *ListLiteral {
	start := p.curToken.Pos
	p.nextToken()
	list := &ListLiteral{}
	for !p.curTokenIs(TokenRBracket) {
		list.Elements = append(list.Elements, p.parseExpr(precLowest))
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expect(TokenRBracket)
	list.SpanVal = p.spanFrom(start)
	return list
}

func (p *Parser) parseDict() *DictLiteral {
	start := p.curToken.Pos
	p.nextToken()
	dict := &DictLiteral{}
	for !p.curTokenIs(TokenRBrace) {
		estart := p.curToken.Pos
		key := p.expect(TokenString)
		p.expect(TokenColon)
		value := p.parseExpr(precLowest)
		dict.Entries = append(dict.Entries, &DictEntry{SpanVal: p.spanFrom(estart), Key: key.Literal, Value: value})
		if !p.curTokenIs(TokenComma) {
			break
		}
		p.nextToken()
	}
	p.expect(TokenRBrace)
	dict.SpanVal = p.spanFrom(start)
	return dict
}
