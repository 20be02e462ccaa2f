package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the basalt lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenNumber     // 42, 3.5
	TokenString     // 'hello'
	TokenStyledText // "<red>hello"
	TokenIdentifier // foo, send_message

	// Words with fixed meaning
	TokenKeyword // let, fn, event, ...
	TokenTarget  // selection, default, ...
	TokenScope   // @line, @saved, ...
	TokenTypeName

	// Operators and delimiters
	TokenOperator // = == != < <= > >= + - * / % += -= *= /= %= :: . as
	TokenLParen   // (
	TokenRParen   // )
	TokenLBracket // [
	TokenRBracket // ]
	TokenLBrace   // {
	TokenRBrace   // }
	TokenComma    // ,
	TokenColon    // :
	TokenSemicolon
)

var tokenNames = map[TokenType]string{
	TokenEOF:        "EOF",
	TokenError:      "ERROR",
	TokenNumber:     "NUMBER",
	TokenString:     "STRING",
	TokenStyledText: "STYLED_TEXT",
	TokenIdentifier: "IDENTIFIER",
	TokenKeyword:    "KEYWORD",
	TokenTarget:     "TARGET",
	TokenScope:      "SCOPE",
	TokenTypeName:   "TYPE",
	TokenOperator:   "OPERATOR",
	TokenLParen:     "(",
	TokenRParen:     ")",
	TokenLBracket:   "[",
	TokenRBracket:   "]",
	TokenLBrace:     "{",
	TokenRBrace:     "}",
	TokenComma:      ",",
	TokenColon:      ":",
	TokenSemicolon:  ";",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw text, or the decoded value for strings
	Pos     Position // start position
	End     Position // position just past the last character
}

// Span returns the source range covered by the token.
func (t Token) Span() Span {
	return Span{Start: t.Pos, End: t.End}
}

// Is reports whether the token has the given type and literal.
func (t Token) Is(typ TokenType, literal string) bool {
	return t.Type == typ && t.Literal == literal
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

var keywords = map[string]bool{
	"event":    true,
	"let":      true,
	"true":     true,
	"false":    true,
	"using":    true,
	"ref":      true,
	"fn":       true,
	"return":   true,
	"if":       true,
	"player":   true,
	"entity":   true,
	"game":     true,
	"variable": true,
	"repeat":   true,
	"for":      true,
	"in":       true,
	"to":       true,
}

// Targets maps target keywords to the selector names used on the wire.
var Targets = map[string]string{
	"default":      "Default",
	"all_players":  "AllPlayers",
	"all_entities": "AllEntities",
	"selection":    "Selection",
	"killer":       "Killer",
	"damager":      "Damager",
	"victim":       "Victim",
	"shooter":      "Shooter",
	"projectile":   "Projectile",
	"last_entity":  "LastEntity",
}

var scopeNames = map[string]bool{
	"global": true,
	"line":   true,
	"saved":  true,
	"thread": true,
}

// TypeNames lists the built-in type names.
var TypeNames = map[string]bool{
	"number":  true,
	"string":  true,
	"dict":    true,
	"list":    true,
	"any":     true,
	"void":    true,
	"text":    true,
	"boolean": true,
}

// operators sorted longest first so the lexer can match greedily.
var operators = []string{
	"::", "==", "!=", "<=", ">=", "+=", "-=", "*=", "/=", "%=",
	"=", "<", ">", "+", "-", "*", "/", "%", ".",
}
