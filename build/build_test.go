package build

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/neverUsedGithub/basalt/catalogue"
	"github.com/neverUsedGithub/basalt/compiler"
	"github.com/neverUsedGithub/basalt/df"
	"github.com/neverUsedGithub/basalt/manifest"
	"github.com/neverUsedGithub/basalt/optimizer"
	"github.com/neverUsedGithub/basalt/splitter"
)

func compile(t *testing.T, source string, opts Options) *Output {
	t.Helper()
	out, err := Compile(compiler.NewSource("test.basalt", source), opts)
	if err != nil {
		t.Fatalf("compile error: %v", err)
	}
	return out
}

func lines(r *df.Row) []string {
	out := make([]string, len(r.Blocks))
	for i, b := range r.Blocks {
		out[i] = b.String()
	}
	return out
}

func TestCompileSingleAction(t *testing.T) {
	out := compile(t, `
event player_event::left_click {
	player_action::send_message('hi');
}
`, DefaultOptions())

	if len(out.Rows) == 0 {
		t.Fatal("no rows")
	}
	want := []string{"event LeftClick", "player_action SendMessage ('hi')"}
	if diff := cmp.Diff(want, lines(out.Rows[0])); diff != "" {
		t.Errorf("event row (-want +got):\n%s", diff)
	}
	for _, b := range out.Rows[0].Blocks {
		if b.IsBracket() {
			t.Errorf("unexpected bracket in %v", lines(out.Rows[0]))
		}
		for _, s := range b.Items {
			if v, ok := s.Item.(df.Var); ok {
				t.Errorf("unexpected variable %s", v)
			}
		}
	}
	if out.Stats.FirstSweepChanges != 0 {
		t.Errorf("first sweep made %d changes, want 0", out.Stats.FirstSweepChanges)
	}
}

const sample = `
let @saved coins: number = 0;
let @global greeting = 'welcome';

fn reward(amount: number): number {
	@saved coins += @line amount;
	return @saved coins * 2;
}

event player_event::join {
	player_action::send_message(@global greeting);
	let @line total = reward(5);
	if (@line total > 10) {
		player_action::send_message('rich', alignment_mode = 'Centered');
	}
	for @line item in [1, 2, 3] {
		selection player_action::heal(@line item);
	}
}
`

func TestCompileDeterministic(t *testing.T) {
	first := compile(t, sample, DefaultOptions())
	second := compile(t, sample, DefaultOptions())

	a, err := df.Fingerprint(first.Rows)
	if err != nil {
		t.Fatal(err)
	}
	b, err := df.Fingerprint(second.Rows)
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("fingerprints differ: %s vs %s", a, b)
	}
}

func TestCompileOptimizerIdempotent(t *testing.T) {
	opts := DefaultOptions()
	opts.Budget = 1000
	out := compile(t, sample, opts)

	_, st := optimizer.New(catalogue.Builtin()).Optimize(out.Rows)
	if st.Changes != 0 {
		t.Errorf("second optimization made %d changes", st.Changes)
	}
}

func TestCompileSplitsLargeRows(t *testing.T) {
	var sb strings.Builder
	sb.WriteString("event player_event::join {\n\tlet @line n = 0;\n")
	for i := 0; i < 60; i++ {
		fmt.Fprintf(&sb, "\tplayer_action::send_message('line %d', @line n);\n", i)
		if i%10 == 0 {
			sb.WriteString("\tif (@line n == 3) {\n\t\tplayer_action::heal(1);\n\t\tplayer_action::heal(2);\n\t}\n")
		}
	}
	sb.WriteString("}\n")

	opts := DefaultOptions()
	opts.Budget = 40
	out := compile(t, sb.String(), opts)

	helpers := 0
	for _, r := range out.Rows {
		if c := splitter.Cost(r, opts.Costs); c >= opts.Budget-1 {
			t.Errorf("row %s costs %d, budget %d", r.Name(), c, opts.Budget)
		}
		if strings.HasPrefix(r.Name(), splitter.HelperPrefix) {
			helpers++
		}
	}
	if helpers == 0 {
		t.Fatal("expected helper rows")
	}
	if len(out.Rows) <= len(out.Generated) {
		t.Errorf("%d rows from %d generated", len(out.Rows), len(out.Generated))
	}
}

func TestCompileStrictError(t *testing.T) {
	_, err := Compile(compiler.NewSource("bad.basalt", "let @line x: number = 'a';"), DefaultOptions())
	d, ok := err.(*compiler.Diagnostic)
	if !ok {
		t.Fatalf("expected a diagnostic, got %T: %v", err, err)
	}
	if d.Kind != compiler.KindType {
		t.Errorf("kind %s, want Type", d.Kind)
	}
}

func TestCompileTolerantCollects(t *testing.T) {
	opts := DefaultOptions()
	opts.Mode = compiler.Tolerant
	out, err := Compile(compiler.NewSource("bad.basalt", `
let @line x: number = 'a';
let @line y: string = 1;
event player_event::join {
	player_action::no_such_action();
}
`), opts)
	if err == nil {
		t.Fatal("expected an error")
	}
	if len(out.Diagnostics) < 3 {
		t.Errorf("got %d diagnostics, want at least 3: %v", len(out.Diagnostics), out.Diagnostics)
	}
	if out.Rows != nil {
		t.Error("rows generated despite diagnostics")
	}
}

func TestCheckTolerant(t *testing.T) {
	res, diags := Check(compiler.NewSource("edit.basalt", `
event player_event::join {
	player_action::send_message(@line missing);
	let @line ok = 1;
}
`), nil)
	if res == nil {
		t.Fatal("no result")
	}
	if len(diags) != 1 {
		t.Fatalf("got %d diagnostics, want 1: %v", len(diags), diags)
	}
	if !strings.Contains(diags[0].Message, "missing") {
		t.Errorf("message %q", diags[0].Message)
	}
}

func TestCompileProject(t *testing.T) {
	dir := t.TempDir()
	if err := manifest.Init(dir, "demo"); err != nil {
		t.Fatal(err)
	}
	m, err := manifest.Load(dir)
	if err != nil {
		t.Fatal(err)
	}

	out, _, err := CompileProject(m)
	if err != nil {
		t.Fatalf("CompileProject: %v", err)
	}
	n, err := WriteArtifact(m, out)
	if err != nil {
		t.Fatalf("WriteArtifact: %v", err)
	}
	if n == 0 {
		t.Error("empty artifact")
	}

	snap, rows, err := ReadArtifact(m.OutputPath())
	if err != nil {
		t.Fatalf("ReadArtifact: %v", err)
	}
	if snap.Name != "demo" {
		t.Errorf("snapshot name %q", snap.Name)
	}
	want, _ := df.Fingerprint(out.Rows)
	got, _ := df.Fingerprint(rows)
	if got != want {
		t.Error("artifact rows differ from the compiled rows")
	}
}

func TestProjectOptions(t *testing.T) {
	dir := t.TempDir()
	content := "[project]\nname = \"p\"\ncatalogue = \"missing.json\"\n"
	if err := os.WriteFile(filepath.Join(dir, manifest.FileName), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	m, err := manifest.Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ProjectOptions(m); err == nil {
		t.Error("expected an error for a missing catalogue")
	}

	m.Project.Catalogue = ""
	m.Build.Mode = "tolerant"
	m.Plot.Size = 120
	opts, err := ProjectOptions(m)
	if err != nil {
		t.Fatal(err)
	}
	if opts.Mode != compiler.Tolerant || opts.Budget != 120 || !opts.Optimize {
		t.Errorf("options %+v", opts)
	}
	if opts.Costs != splitter.DefaultCosts {
		t.Errorf("costs %+v", opts.Costs)
	}
}
