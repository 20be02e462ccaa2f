package compiler

import (
	"testing"
)

// ---------------------------------------------------------------------------
// FuzzLexer: ensure the lexer never panics on arbitrary input.
// ---------------------------------------------------------------------------

func FuzzLexer(f *testing.F) {
	seeds := []string{
		// Delimiters and operators
		`( ) [ ] { } , : ; :: .`,
		`= == != < <= > >= + - * / % += -= *= /= %=`,
		// Numbers
		`42`, `0`, `3.14`, `10.`, `-7`,
		// Strings
		`'hello'`, `''`, `'it\'s'`, `"<red>styled"`, `'unterminated`, `"\`,
		// Scopes and words
		`@line x`, `@saved coins`, `@`, `@nope`, `selection default victim`,
		`let fn event using ref return if for in to as`,
		// Comments
		"# comment\nlet", "#",
		// Binary soup
		`+-*/\\~<>=@%|&?!,$`,
	}

	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, data string) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("lexer panicked on input %q: %v", data, r)
			}
		}()

		l := NewLexer(data)
		for i := 0; i < len(data)+100; i++ {
			tok := l.NextToken()
			if tok.Type == TokenEOF {
				break
			}
		}
	})
}

// ---------------------------------------------------------------------------
// FuzzParser: ensure the parser never panics on arbitrary input.
// Parse errors are acceptable; panics are not.
// ---------------------------------------------------------------------------

func FuzzParser(f *testing.F) {
	seeds := []string{
		// Declarations
		`let @line x = 1;`, `let @saved s: list[number] = [];`,
		`using player_action::send_message;`,
		`fn f(a: number): number { return @line a + 1; }`,
		`event player_event::join { player_action::send_message('hi'); }`,
		// Statements
		`event player_event::join { if (@line a == 1) { } }`,
		`event player_event::join { if player is_sneaking() { } }`,
		`event player_event::join { for @line k, @line v in {'a': 1} { } }`,
		`event player_event::join { for @line i to 10 { } }`,
		`event player_event::join { selection player_action::heal(); }`,
		// Expressions
		`let @line x = victim game_values::current_health as number;`,
		`let @line x = f(a = 1, 2)[0].b;`,
		// Edge cases that might trip up the parser
		``, `(`, `)`, `[`, `]`, `{`, `}`, `;`, `::`, `=`,
		`let`, `let @line`, `fn`, `fn (`, `event {`, `event x { if`,
		`}}}`, `event x { { { }`, `let @line x = [1, 2`,
	}

	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, data string) {
		defer func() {
			if r := recover(); r != nil {
				t.Fatalf("parser panicked on input %q: %v", data, r)
			}
		}()

		src := NewSource("fuzz.basalt", data)
		Parse(src, Strict)
		prog, _ := Parse(src, Tolerant)
		if prog == nil {
			t.Fatalf("tolerant parse returned no program for %q", data)
		}
	})
}
