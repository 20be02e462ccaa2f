package compiler

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for basalt source
// ---------------------------------------------------------------------------

// Lexer tokenizes basalt source code.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // current line (1-based)
	col     int  // current column (1-based)
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
		col:   0,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = len(l.input)
		l.readPos = len(l.input) + 1
		l.col++
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
	l.col++
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.col,
	}
}

func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// Tokenize returns every token up to and including EOF.
func (l *Lexer) Tokenize() []Token {
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens
		}
	}
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()

	pos := l.position()
	mk := func(typ TokenType, lit string) Token {
		return Token{Type: typ, Literal: lit, Pos: pos, End: l.position()}
	}

	if l.atEOF() {
		return mk(TokenEOF, "")
	}

	switch ch := l.ch; {
	case ch == '(':
		l.readChar()
		return mk(TokenLParen, "(")
	case ch == ')':
		l.readChar()
		return mk(TokenRParen, ")")
	case ch == '[':
		l.readChar()
		return mk(TokenLBracket, "[")
	case ch == ']':
		l.readChar()
		return mk(TokenRBracket, "]")
	case ch == '{':
		l.readChar()
		return mk(TokenLBrace, "{")
	case ch == '}':
		l.readChar()
		return mk(TokenRBrace, "}")
	case ch == ',':
		l.readChar()
		return mk(TokenComma, ",")
	case ch == ';':
		l.readChar()
		return mk(TokenSemicolon, ";")
	case ch == ':' && l.peekChar() != ':':
		l.readChar()
		return mk(TokenColon, ":")
	case ch == '\'':
		return l.readString(pos, '\'', TokenString)
	case ch == '"':
		return l.readString(pos, '"', TokenStyledText)
	case ch == '@':
		l.readChar()
		name := l.readIdent()
		if !scopeNames[name] {
			return mk(TokenError, "unknown variable scope '@"+name+"'")
		}
		return mk(TokenScope, "@"+name)
	case isDigit(ch):
		return l.readNumber(pos)
	case isIdentStart(ch):
		word := l.readIdent()
		switch {
		case word == "as":
			return mk(TokenOperator, word)
		case keywords[word]:
			return mk(TokenKeyword, word)
		case Targets[word] != "":
			return mk(TokenTarget, word)
		case TypeNames[word]:
			return mk(TokenTypeName, word)
		}
		return mk(TokenIdentifier, word)
	}

	rest := l.input[l.pos:]
	for _, op := range operators {
		if strings.HasPrefix(rest, op) {
			for range op {
				l.readChar()
			}
			return mk(TokenOperator, op)
		}
	}

	bad := l.ch
	l.readChar()
	return mk(TokenError, "unexpected character '"+string(bad)+"'")
}

// skipWhitespaceAndComments skips whitespace and '#' line comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for !l.atEOF() {
		switch {
		case unicode.IsSpace(l.ch):
			l.readChar()
		case l.ch == '#':
			for !l.atEOF() && l.ch != '\n' {
				l.readChar()
			}
		default:
			return
		}
	}
}

func (l *Lexer) readIdent() string {
	start := l.pos
	for !l.atEOF() && (isIdentStart(l.ch) || isDigit(l.ch)) {
		l.readChar()
	}
	return l.input[start:l.pos]
}

func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos
	for !l.atEOF() && isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for !l.atEOF() && isDigit(l.ch) {
			l.readChar()
		}
	}
	return Token{Type: TokenNumber, Literal: l.input[start:l.pos], Pos: pos, End: l.position()}
}

// readString reads a quoted string, decoding escapes.
func (l *Lexer) readString(pos Position, quote rune, typ TokenType) Token {
	l.readChar() // opening quote
	var sb strings.Builder
	for {
		if l.atEOF() || l.ch == '\n' {
			return Token{Type: TokenError, Literal: "unterminated string", Pos: pos, End: l.position()}
		}
		if l.ch == quote {
			l.readChar()
			break
		}
		if l.ch == '\\' {
			l.readChar()
			switch l.ch {
			case 'n':
				sb.WriteRune('\n')
			case 't':
				sb.WriteRune('\t')
			default:
				sb.WriteRune(l.ch)
			}
			l.readChar()
			continue
		}
		sb.WriteRune(l.ch)
		l.readChar()
	}
	return Token{Type: typ, Literal: sb.String(), Pos: pos, End: l.position()}
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

func isIdentStart(r rune) bool {
	return r == '_' || unicode.IsLetter(r)
}
