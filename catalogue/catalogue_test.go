package catalogue

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/neverUsedGithub/basalt/types"
)

const smallDump = `{
	"codeblocks": [
		{"name": "PLAYER EVENT", "identifier": "event"},
		{"name": "PLAYER ACTION", "identifier": "player_action"},
		{"name": "SET VARIABLE", "identifier": "set_var"},
		{"name": "IF VARIABLE", "identifier": "if_var"},
		{"name": "UNUSED BLOCK", "identifier": "unused"}
	],
	"actions": [
		{"name": "Join", "codeblockName": "PLAYER EVENT", "icon": {"description": ["A player joins."]}},
		{"name": "ShowTitle", "codeblockName": "PLAYER ACTION", "icon": {"arguments": [
			{"type": "TEXT", "description": ["Title"]},
			{"text": "OR"},
			{"type": "COMPONENT", "description": ["Styled title"]},
			{"type": "NUMBER", "description": ["Fade"]},
			{"text": "OR"},
			{"type": "NONE"}
		]}, "tags": [
			{"name": "Bold Text", "options": [{"name": "True"}, {"name": "False"}], "defaultOption": "False", "slot": 26}
		]},
		{"name": "NoArguments", "codeblockName": "PLAYER ACTION", "icon": {}},
		{"name": "dynamic", "codeblockName": "PLAYER ACTION", "icon": {"arguments": []}},
		{"name": "RandomNumber", "codeblockName": "SET VARIABLE", "icon": {"arguments": [
			{"type": "VARIABLE", "description": ["Result"]},
			{"type": "NUMBER", "description": ["Min"]},
			{"type": "NUMBER", "description": ["Max"]}
		]}},
		{"name": "CreateList", "codeblockName": "SET VARIABLE", "icon": {"arguments": [
			{"type": "VARIABLE", "description": ["Result"]},
			{"type": "ANY_TYPE", "plural": true, "optional": true, "description": ["Values"]}
		]}},
		{"name": "=", "codeblockName": "IF VARIABLE", "icon": {"arguments": [{"type": "ANY_TYPE"}]}},
		{"name": "VarExists", "codeblockName": "IF VARIABLE", "icon": {"arguments": [
			{"type": "VARIABLE", "description": ["Variable"]}
		]}}
	],
	"gameValues": [
		{"category": "Statistical", "icon": {"name": "Current Health", "returnType": "NUMBER", "description": ["Health"]}},
		{"category": "Plot", "icon": {"name": "Plot Name", "returnType": "TEXT"}}
	]
}`

func parseSmall(t *testing.T) *Catalogue {
	t.Helper()
	c, err := Parse([]byte(smallDump))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return c
}

func TestSnake(t *testing.T) {
	b := &builder{names: make(map[string]string)}
	tests := map[string]string{
		"PLAYER ACTION":  "player_action",
		"SendMessage":    "send_message",
		"Current Health": "current_health",
		"UUID":           "uuid",
		"IF VARIABLE":    "if_variable",
		"RandomNumber":   "random_number",
		" Padded ":       "padded",
	}
	for in, want := range tests {
		if got := b.snake(in); got != want {
			t.Errorf("snake(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseNamespaces(t *testing.T) {
	c := parseSmall(t)

	want := []string{"game_values", "player_action", "player_event", "set_variable"}
	if diff := cmp.Diff(want, c.NamespaceNames()); diff != "" {
		t.Errorf("namespaces (-want +got):\n%s", diff)
	}

	events, _ := c.Namespace("player_event")
	join, ok := events.Members["join"].(*types.Event)
	if !ok {
		t.Fatalf("join is %T", events.Members["join"])
	}
	if join.Block != "event" || join.Action != "Join" || join.Doc != "A player joins." {
		t.Errorf("join = %+v", join)
	}

	actions, _ := c.Namespace("player_action")
	if _, ok := actions.Members["dynamic"]; ok {
		t.Error("dynamic action was kept")
	}
	if _, ok := actions.Members["no_arguments"]; ok {
		t.Error("action without an argument list was kept")
	}
}

func TestParseUnionsAndOptionals(t *testing.T) {
	c := parseSmall(t)
	a, ok := c.Lookup("player_action", "ShowTitle")
	if !ok {
		t.Fatal("ShowTitle not found")
	}
	params := a.Signature.Params
	if len(params) != 2 {
		t.Fatalf("got %d params, want 2: %s", len(params), a.Signature)
	}
	if !types.Identical(params[0].Type, types.NewUnion(types.String, types.StyledText)) {
		t.Errorf("title type %s", params[0].Type)
	}
	if params[0].Name != "title" {
		t.Errorf("title name %q", params[0].Name)
	}
	if params[1].Type != types.Number || !params[1].Optional {
		t.Errorf("fade = %+v", params[1])
	}

	kw, ok := a.Signature.Keyword("bold_text")
	if !ok {
		t.Fatal("bold_text keyword missing")
	}
	if kw.Tag.Kind != types.TagBoolean || kw.Tag.Slot != 26 || kw.Tag.Default != "False" {
		t.Errorf("tag = %+v", kw.Tag)
	}
	if !kw.Optional {
		t.Error("tags are optional keywords")
	}
}

func TestParseConditions(t *testing.T) {
	c := parseSmall(t)
	if _, ok := c.Namespace("if_variable"); ok {
		t.Error("conditions should not be exposed as a namespace")
	}
	if _, ok := c.Condition("if_variable", "var_exists"); !ok {
		t.Error("var_exists condition missing")
	}
	if _, ok := c.Lookup("if_var", "="); ok {
		t.Error("operator condition was kept")
	}
}

func TestParseGameValues(t *testing.T) {
	c := parseSmall(t)
	gv, ok := c.Namespace(GameValuesNamespace)
	if !ok || !gv.GameValues {
		t.Fatal("game values namespace missing")
	}
	health, ok := gv.Members["current_health"].(*types.GameValue)
	if !ok {
		t.Fatalf("current_health is %T", gv.Members["current_health"])
	}
	if health.Name != "Current Health" || health.Result != types.Number {
		t.Errorf("health = %+v", health)
	}
	if name := gv.Members["plot_name"].(*types.GameValue); name.Result != types.String {
		t.Errorf("plot name result %s", name.Result)
	}
}

func TestWritesSlot(t *testing.T) {
	c := parseSmall(t)
	tests := []struct {
		codeblock, action string
		index             int
		want              bool
	}{
		{"set_var", "RandomNumber", 0, true},
		{"set_var", "RandomNumber", 1, false},
		{"set_var", "RandomNumber", 5, false},
		{"set_var", "CreateList", 0, true},
		{"set_var", "CreateList", 4, false},
		{"if_var", "VarExists", 0, false},
		{"set_var", "Missing", 0, false},
	}
	for _, tt := range tests {
		if got := c.WritesSlot(tt.codeblock, tt.action, tt.index); got != tt.want {
			t.Errorf("WritesSlot(%s, %s, %d) = %v, want %v", tt.codeblock, tt.action, tt.index, got, tt.want)
		}
	}
}

func TestUpdatesSlot(t *testing.T) {
	c := Builtin()
	tests := []struct {
		action string
		index  int
		want   bool
	}{
		{"=", 0, false},
		{"RandomNumber", 0, false},
		{"+=", 0, true},
		{"-=", 0, true},
		{"AppendValue", 0, true},
		{"SetListValue", 0, true},
		{"SetDictValue", 0, true},
		{"+=", 1, false},
		{"Missing", 0, false},
	}
	for _, tt := range tests {
		if got := c.UpdatesSlot("set_var", tt.action, tt.index); got != tt.want {
			t.Errorf("UpdatesSlot(set_var, %s, %d) = %v, want %v", tt.action, tt.index, got, tt.want)
		}
	}
}

func TestParseErrors(t *testing.T) {
	if _, err := Parse([]byte("{not json")); err == nil {
		t.Error("expected a JSON error")
	}
	bad := `{"codeblocks": [{"name": "PLAYER ACTION", "identifier": "player_action"}],
		"actions": [{"name": "Odd", "codeblockName": "PLAYER ACTION", "icon": {"arguments": [{"type": "HOLOGRAM"}]}}]}`
	_, err := Parse([]byte(bad))
	if err == nil || !strings.Contains(err.Error(), "HOLOGRAM") {
		t.Errorf("error %v does not name the unknown type", err)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dump.json")
	if err := os.WriteFile(path, []byte(smallDump), 0644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if _, ok := c.Lookup("set_var", "CreateList"); !ok {
		t.Error("CreateList missing")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestBuiltin(t *testing.T) {
	c := Builtin()
	for _, ns := range []string{"player_event", "entity_event", "player_action", "set_variable", "control", GameValuesNamespace} {
		if _, ok := c.Namespace(ns); !ok {
			t.Errorf("built-in catalogue lacks %s", ns)
		}
	}
	send, ok := c.Lookup("player_action", "SendMessage")
	if !ok {
		t.Fatal("SendMessage missing")
	}
	if !send.Signature.Variadic() {
		t.Error("send_message should be variadic")
	}
	if _, ok := send.Signature.Keyword("alignment_mode"); !ok {
		t.Error("alignment_mode tag missing")
	}
	if _, ok := c.Condition("if_player", "is_sneaking"); !ok {
		t.Error("is_sneaking condition missing")
	}
}
