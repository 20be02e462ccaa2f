package codegen

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/neverUsedGithub/basalt/catalogue"
	"github.com/neverUsedGithub/basalt/compiler"
	"github.com/neverUsedGithub/basalt/df"
	"github.com/neverUsedGithub/basalt/typecheck"
)

func generate(t *testing.T, source string) ([]*df.Row, error) {
	t.Helper()
	prog, diags := compiler.Parse(compiler.NewSource("test.basalt", source), compiler.Strict)
	if len(diags) > 0 {
		t.Fatalf("parse errors: %v", diags)
	}
	res, err := typecheck.Check(prog, catalogue.Builtin(), compiler.Strict)
	if err != nil {
		t.Fatalf("check error: %v", err)
	}
	return Generate(prog, res)
}

func mustGenerate(t *testing.T, source string) []*df.Row {
	t.Helper()
	rows, err := generate(t, source)
	if err != nil {
		t.Fatalf("generate error: %v", err)
	}
	return rows
}

func lines(r *df.Row) []string {
	out := make([]string, len(r.Blocks))
	for i, b := range r.Blocks {
		out[i] = b.String()
	}
	return out
}

// body returns the lines of the first row, which holds the event under test.
func body(t *testing.T, source string) []string {
	t.Helper()
	return lines(mustGenerate(t, source)[0])
}

func TestGenerateInitRow(t *testing.T) {
	rows := mustGenerate(t, `
let @saved coins: number = 0;
let @global greeting = 'hi';
event player_event::left_click {
	player_action::send_message(@global greeting);
}
`)
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(rows))
	}

	want := [][]string{
		{
			"event LeftClick",
			"player_action SendMessage (unsaved:greeting)",
		},
		{
			"func basalt_init",
			"if_var = (<Player Count @Default>, 1)",
			"{norm",
			"if_var VarExists NOT (saved:coins)",
			"{norm",
			"set_var = (saved:coins, 0)",
			"norm}",
			"set_var = (unsaved:greeting, 'hi')",
			"norm}",
		},
		{
			"event Join",
			"call_func basalt_init",
		},
	}
	for i, w := range want {
		if diff := cmp.Diff(w, lines(rows[i])); diff != "" {
			t.Errorf("row %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestGenerateJoinCallsInit(t *testing.T) {
	rows := mustGenerate(t, `event player_event::join { player_action::heal(); }`)
	if len(rows) != 2 {
		t.Fatalf("got %d rows, want 2", len(rows))
	}
	want := []string{"event Join", "call_func basalt_init", "player_action Heal"}
	if diff := cmp.Diff(want, lines(rows[0])); diff != "" {
		t.Errorf("join row mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"func basalt_init"}, lines(rows[1])); diff != "" {
		t.Errorf("init row mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateFunctions(t *testing.T) {
	rows := mustGenerate(t, `
fn add(a: number, b: number): number {
	return @line a + @line b;
}
fn greet() {
	player_action::send_message('hi');
	return;
}
event player_event::left_click {
	let @line sum = add(1, 2);
	greet();
}
`)
	want := [][]string{
		{
			"func add (param basalt#0: var, param a: num, param b: num)",
			"set_var + (line:basalt#1, line:a, line:b)",
			"set_var = (line:basalt#0, line:basalt#1)",
			"control Return",
		},
		{
			"func greet (param basalt#2: var)",
			"player_action SendMessage ('hi')",
			"control Return",
		},
		{
			"event LeftClick",
			"call_func add (line:basalt#3, 1, 2)",
			"set_var = (line:sum, line:basalt#3)",
			"call_func greet (line:basalt#4)",
		},
		{"func basalt_init"},
		{"event Join", "call_func basalt_init"},
	}
	if len(rows) != len(want) {
		t.Fatalf("got %d rows, want %d", len(rows), len(want))
	}
	for i, w := range want {
		if diff := cmp.Diff(w, lines(rows[i])); diff != "" {
			t.Errorf("row %d mismatch (-want +got):\n%s", i, diff)
		}
	}
}

func TestGenerateControlFlow(t *testing.T) {
	got := body(t, `
event player_event::left_click {
	let @line n: number = 3;
	if (@line n >= 2) {
		player_action::heal(@line n);
	}
	if (@line n) {
		player_action::heal();
	}
	for @line i to 5 {
		player_action::heal(@line i);
	}
	for @line v in [1, 2] {
		player_action::heal(@line v);
	}
	if player is_sneaking() {
		game_action::cancel_event();
	}
}
`)
	want := []string{
		"event LeftClick",
		"set_var = (line:n, 3)",
		"if_var >= (line:n, 2)",
		"{norm",
		"player_action Heal (line:n)",
		"norm}",
		"if_var != (line:n, 0)",
		"{norm",
		"player_action Heal",
		"norm}",
		"repeat Multiple (line:i, 5)",
		"{repeat",
		"player_action Heal (line:i)",
		"repeat}",
		"set_var CreateList (line:basalt#0, 1, 2)",
		"repeat ForEach (line:v, line:basalt#0)",
		"{repeat",
		"player_action Heal (line:v)",
		"repeat}",
		"if_player IsSneaking",
		"{norm",
		"game_action CancelEvent",
		"norm}",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateDictIteration(t *testing.T) {
	got := body(t, `
event player_event::left_click {
	for @line k, @line v in {'a': 1} {
		player_action::send_message(@line k);
	}
}
`)
	want := []string{
		"event LeftClick",
		"set_var CreateList (line:basalt#1, 'a')",
		"set_var CreateList (line:basalt#2, 1)",
		"set_var CreateDict (line:basalt#0, line:basalt#1, line:basalt#2)",
		"repeat ForEachEntry (line:k, line:v, line:basalt#0)",
		"{repeat",
		"player_action SendMessage (line:k)",
		"repeat}",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateTargets(t *testing.T) {
	got := body(t, `
event player_event::left_click {
	selection player_action::heal();
	selection game_action::cancel_event();
	let @line hp = victim game_values::current_health;
	all_players player_action::heal(all_players game_values::current_health);
}
`)
	want := []string{
		"event LeftClick",
		"player_action Heal @Selection",
		"game_action CancelEvent",
		"set_var = (line:hp, <Current Health @Victim>)",
		"player_action Heal @AllPlayers (<Current Health @Default>)",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateAssignments(t *testing.T) {
	got := body(t, `
event player_event::left_click {
	let @line n: number = 1;
	let @line s: string = 'a';
	@line n += 2;
	@line n *= 3;
	@line n %= 4;
	@line s += 'b';
	@line n = @line n - 1;
}
`)
	want := []string{
		"event LeftClick",
		"set_var = (line:n, 1)",
		"set_var = (line:s, 'a')",
		"set_var += (line:n, 2)",
		"set_var x (line:n, line:n, 3)",
		"set_var % (line:n, line:n, 4)",
		"set_var String (line:s, line:s, 'b')",
		"set_var - (line:basalt#0, line:n, 1)",
		"set_var = (line:n, line:basalt#0)",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateContainers(t *testing.T) {
	got := body(t, `
event player_event::left_click {
	let @line xs = [1, 2];
	let @line d = {'a': 1};
	let @line first = @line xs[1];
	let @line a = @line d.a;
	@line d['b'] = 2;
	@line xs[1] = 5;
}
`)
	want := []string{
		"event LeftClick",
		"set_var CreateList (line:basalt#0, 1, 2)",
		"set_var = (line:xs, line:basalt#0)",
		"set_var CreateList (line:basalt#2, 'a')",
		"set_var CreateList (line:basalt#3, 1)",
		"set_var CreateDict (line:basalt#1, line:basalt#2, line:basalt#3)",
		"set_var = (line:d, line:basalt#1)",
		"set_var GetListValue (line:basalt#4, line:xs, 1)",
		"set_var = (line:first, line:basalt#4)",
		"set_var GetDictValue (line:basalt#5, line:d, 'a')",
		"set_var = (line:a, line:basalt#5)",
		"set_var SetDictValue (line:d, 'b', 2)",
		"set_var SetListValue (line:xs, 1, 5)",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateImplicitActionAndTags(t *testing.T) {
	rows := mustGenerate(t, `
event player_event::left_click {
	let @line n = set_variable::random_number(1, 10);
	player_action::send_message('hi', alignment_mode = 'Centered');
	let @line mode = 'Regular';
	player_action::send_message('x', alignment_mode = @line mode);
}
`)
	want := []string{
		"event LeftClick",
		"set_var RandomNumber (line:basalt#0, 1, 10)",
		"set_var = (line:n, line:basalt#0)",
		"player_action SendMessage ('hi', [Alignment Mode=Centered])",
		"set_var = (line:mode, 'Regular')",
		"player_action SendMessage ('x', [Alignment Mode=Regular|line:mode])",
	}
	if diff := cmp.Diff(want, lines(rows[0])); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}

	send := rows[0].Blocks[3]
	tag := send.Items[1]
	if tag.Index != 25 {
		t.Errorf("tag slot %d, want 25", tag.Index)
	}
	if tg, ok := tag.Item.(df.Tag); !ok || tg.Block != df.PlayerAction || tg.Action != "SendMessage" {
		t.Errorf("tag item %#v", tag.Item)
	}
}

func TestGenerateTagValues(t *testing.T) {
	got := body(t, `
event player_event::left_click {
	player_action::send_message('hi', alignment_mode = 'Centered' as string);
	player_action::send_message('x', alignment_mode = game_values::event_command);
}
`)
	want := []string{
		"event LeftClick",
		"player_action SendMessage ('hi', [Alignment Mode=Centered])",
		"set_var = (line:basalt#0, <Event Command @Default>)",
		"player_action SendMessage ('x', [Alignment Mode=Regular|line:basalt#0])",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name     string
		source   string
		fragment string
	}{
		{
			name: "action as value",
			source: `event player_event::left_click {
	let @line n: number = 0;
	if (set_variable::random_number(ref @line n, 1, 2)) { }
}`,
			fragment: "this action cannot be used here",
		},
		{
			name: "compound element assignment",
			source: `event player_event::left_click {
	let @line xs = [1];
	@line xs[1] += 1;
}`,
			fragment: "compound assignment to an element",
		},
		{
			name: "comparison as value",
			source: `event player_event::left_click {
	let @line b = 1 < 2;
}`,
			fragment: "comparisons can only be used as conditions",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := generate(t, tt.source)
			if err == nil {
				t.Fatalf("expected an error containing %q", tt.fragment)
			}
			d, ok := err.(*compiler.Diagnostic)
			if !ok {
				t.Fatalf("expected *compiler.Diagnostic, got %T", err)
			}
			if d.Kind != compiler.KindCodeGen {
				t.Errorf("kind %s, want CodeGen", d.Kind)
			}
			if !strings.Contains(d.Message, tt.fragment) {
				t.Errorf("message %q does not contain %q", d.Message, tt.fragment)
			}
		})
	}
}

func TestGenerateDeterministic(t *testing.T) {
	source := `
let @line total = 0;
fn twice(x: number): number { return @line x * 2; }
event player_event::left_click {
	let @line n = twice(set_variable::random_number(1, 6));
	player_action::send_message(@line n);
}
`
	first := df.DumpAll(mustGenerate(t, source))
	second := df.DumpAll(mustGenerate(t, source))
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("output differs between runs (-first +second):\n%s", diff)
	}
}
