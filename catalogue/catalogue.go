// Package catalogue adapts the DiamondFire action dump into typed
// namespaces, condition tables and game values for the checker, and answers
// the optimizer's read/write questions about action arguments.
package catalogue

import (
	_ "embed"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	json "github.com/goccy/go-json"
	"github.com/tliron/commonlog"

	"github.com/neverUsedGithub/basalt/types"
)

var log = commonlog.GetLogger("basalt.catalogue")

//go:embed builtin.json
var builtinDump []byte

// GameValuesNamespace is the name under which game values are exposed.
const GameValuesNamespace = "game_values"

var conditionBlocks = map[string]bool{
	"if_game":     true,
	"if_variable": true,
	"if_player":   true,
	"if_entity":   true,
}

var operatorActions = map[string]bool{
	"=": true, "!=": true, "<": true, "<=": true, ">": true, ">=": true,
}

type actionKey struct {
	codeblock string
	action    string
}

// Catalogue is the immutable, typed view of an action dump.
type Catalogue struct {
	// Namespaces holds the action, event and game value namespaces by name.
	Namespaces map[string]*types.Namespace
	// Conditions holds condition actions by block name (if_player, ...)
	// and member name.
	Conditions map[string]map[string]*types.Action

	actions    map[actionKey]*types.Action
	conditions map[string]bool // codeblock identifiers of condition blocks
}

// Builtin returns the catalogue embedded in the binary. It covers the
// common actions and is used when a project names no dump.
func Builtin() *Catalogue {
	c, err := Parse(builtinDump)
	if err != nil {
		panic(fmt.Sprintf("catalogue: embedded dump: %v", err))
	}
	return c
}

// Load reads an action dump from path.
func Load(path string) (*Catalogue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return c, nil
}

// Parse decodes and adapts an action dump.
func Parse(data []byte) (*Catalogue, error) {
	var d Dump
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("catalogue: parse action dump: %w", err)
	}
	return FromDump(&d)
}

// FromDump adapts a decoded dump.
func FromDump(d *Dump) (*Catalogue, error) {
	b := &builder{names: make(map[string]string)}
	return b.build(d)
}

// builder carries per-build state, including the memoized name conversion.
type builder struct {
	names map[string]string
}

// snake converts a catalogue name to a source name:
// "PLAYER ACTION" -> "player_action", "SendMessage" -> "send_message".
func (b *builder) snake(name string) string {
	if s, ok := b.names[name]; ok {
		return s
	}
	runes := []rune(strings.TrimSpace(name))
	var sb strings.Builder
	for i, r := range runes {
		switch {
		case r == ' ' && i > 0 && i+1 < len(runes) && unicode.IsLetter(runes[i-1]) && unicode.IsLetter(runes[i+1]):
			sb.WriteRune('_')
			continue
		case unicode.IsUpper(r) && i > 0 && unicode.IsLower(runes[i-1]):
			sb.WriteRune('_')
		}
		sb.WriteRune(unicode.ToLower(r))
	}
	s := sb.String()
	b.names[name] = s
	return s
}

func (b *builder) build(d *Dump) (*Catalogue, error) {
	c := &Catalogue{
		Namespaces: make(map[string]*types.Namespace),
		Conditions: make(map[string]map[string]*types.Action),
		actions:    make(map[actionKey]*types.Action),
		conditions: make(map[string]bool),
	}

	byBlock := make(map[string][]ActionEntry)
	for _, a := range d.Actions {
		name := b.snake(a.CodeblockName)
		byBlock[name] = append(byBlock[name], a)
	}

	for _, block := range d.Codeblocks {
		blockName := b.snake(block.Name)
		entries, ok := byBlock[blockName]
		if !ok {
			continue
		}

		if block.Identifier == "event" || block.Identifier == "entity_event" {
			ns := &types.Namespace{Name: blockName, Members: make(map[string]types.Type)}
			for _, a := range entries {
				name := b.snake(a.Name)
				ns.Members[name] = &types.Event{
					Name:   name,
					ID:     blockName,
					Block:  block.Identifier,
					Action: a.Name,
					Doc:    strings.Join(a.Icon.Description, " "),
				}
			}
			c.Namespaces[blockName] = ns
			continue
		}

		isCondition := conditionBlocks[blockName]
		members := make(map[string]*types.Action)
		for _, a := range entries {
			if a.Name == "dynamic" {
				continue
			}
			if block.Identifier == "if_var" && operatorActions[a.Name] {
				continue
			}
			if a.Icon.Arguments == nil {
				continue
			}
			action, err := b.action(block.Identifier, a)
			if err != nil {
				return nil, fmt.Errorf("catalogue: %s %s: %w", block.Identifier, a.Name, err)
			}
			members[action.Name] = action
			c.actions[actionKey{block.Identifier, a.Name}] = action
		}

		if isCondition {
			c.Conditions[blockName] = members
			c.conditions[block.Identifier] = true
			continue
		}
		ns := &types.Namespace{Name: blockName, Members: make(map[string]types.Type, len(members))}
		for name, a := range members {
			ns.Members[name] = a
		}
		c.Namespaces[blockName] = ns
	}

	gv := &types.Namespace{Name: GameValuesNamespace, Members: make(map[string]types.Type), GameValues: true}
	for _, g := range d.GameValues {
		result, err := b.argumentType(g.Icon.ReturnType)
		if err != nil {
			return nil, fmt.Errorf("catalogue: game value %s: %w", g.Icon.Name, err)
		}
		gv.Members[b.snake(g.Icon.Name)] = &types.GameValue{
			Name:   g.Icon.Name,
			Result: result,
			Doc:    strings.Join(g.Icon.Description, " "),
		}
	}
	c.Namespaces[GameValuesNamespace] = gv

	log.Debugf("adapted %d actions in %d namespaces, %d game values", len(c.actions), len(c.Namespaces), len(gv.Members))
	return c, nil
}

func (b *builder) action(codeblock string, a ActionEntry) (*types.Action, error) {
	params, err := b.params(a.Icon.Arguments)
	if err != nil {
		return nil, err
	}
	sig := &types.Signature{Params: params, Return: types.Void}
	for _, t := range a.Tags {
		tag := &types.Tag{Name: t.Name, Slot: t.Slot, Default: t.DefaultOption}
		for _, o := range t.Options {
			tag.Options = append(tag.Options, o.Name)
		}
		if len(tag.Options) == 2 && strings.EqualFold(tag.Options[0], "true") && strings.EqualFold(tag.Options[1], "false") {
			tag.Kind = types.TagBoolean
		}
		sig.Keywords = append(sig.Keywords, types.Keyword{
			Name:     b.snake(t.Name),
			Type:     tag.OptionsType(),
			Optional: true,
			Tag:      tag,
		})
	}
	name := b.snake(a.Name)
	return &types.Action{
		Callable:  types.Callable{Name: name, Signature: sig},
		Codeblock: codeblock,
		Action:    a.Name,
		Doc:       strings.Join(a.Icon.Description, " "),
	}, nil
}

// params folds icon arguments into positional parameters. A line whose text
// contains "OR" joins its neighbours into a union; an alternative of NONE
// makes the parameter optional.
func (b *builder) params(args []ArgumentEntry) ([]types.Param, error) {
	var params []types.Param
	for i := 0; i < len(args); i++ {
		a := args[i]
		if a.Type == "" {
			continue
		}
		first, err := b.argumentType(a.Type)
		if err != nil {
			return nil, err
		}
		p := types.Param{
			Name:     strings.ToLower(strings.Join(a.Description, " ")),
			Variadic: a.Plural,
			Optional: a.Optional,
		}
		if p.Name == "" {
			p.Name = "unknown"
		}
		alts := []types.Type{first}
		for i+2 < len(args) && strings.Contains(args[i+1].Text, "OR") {
			if args[i+2].Type == "NONE" {
				p.Optional = true
			} else {
				t, err := b.argumentType(args[i+2].Type)
				if err != nil {
					return nil, err
				}
				alts = append(alts, t)
			}
			i += 2
		}
		p.Type = types.NewUnion(alts...)
		params = append(params, p)
	}
	return params, nil
}

// argumentType maps an action dump value type to a checker type. Value
// kinds without a source-level type (items, locations, sounds, ...) map to
// Any.
func (b *builder) argumentType(t string) (types.Type, error) {
	switch t {
	case "NUMBER":
		return types.Number, nil
	case "TEXT":
		return types.String, nil
	case "COMPONENT":
		return types.StyledText, nil
	case "LIST":
		return &types.List{Elem: types.Any}, nil
	case "DICT":
		return &types.Dict{Elem: types.Any}, nil
	case "VARIABLE":
		return &types.Reference{Elem: types.Any}, nil
	case "ANY_TYPE", "", "NONE":
		return types.Any, nil
	case "ITEM", "BLOCK", "SOUND", "POTION", "VECTOR", "VEHICLE", "PARTICLE",
		"LOCATION", "SPAWN_EGG", "BLOCK_TAG", "PROJECTILE", "ENTITY_TYPE":
		return types.Any, nil
	}
	return nil, fmt.Errorf("unknown argument type %q", t)
}

// ---------------------------------------------------------------------------
// Queries
// ---------------------------------------------------------------------------

// Namespace returns the namespace called name.
func (c *Catalogue) Namespace(name string) (*types.Namespace, bool) {
	ns, ok := c.Namespaces[name]
	return ns, ok
}

// NamespaceNames returns every namespace name, sorted.
func (c *Catalogue) NamespaceNames() []string {
	names := make([]string, 0, len(c.Namespaces))
	for name := range c.Namespaces {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Condition returns the condition member of block (if_player, ...).
func (c *Catalogue) Condition(block, member string) (*types.Action, bool) {
	a, ok := c.Conditions[block][member]
	return a, ok
}

// Lookup returns the action with the given codeblock identifier and
// catalogue action name.
func (c *Catalogue) Lookup(codeblock, action string) (*types.Action, bool) {
	a, ok := c.actions[actionKey{codeblock, action}]
	return a, ok
}

// WritesSlot reports whether the positional argument at index of the given
// action is an output the action writes. Conditions never write.
func (c *Catalogue) WritesSlot(codeblock, action string, index int) bool {
	if c.conditions[codeblock] {
		return false
	}
	a, ok := c.Lookup(codeblock, action)
	if !ok {
		return false
	}
	params := a.Signature.Params
	if index >= len(params) {
		if !a.Signature.Variadic() {
			return false
		}
		index = len(params) - 1
	}
	_, isRef := params[index].Type.(*types.Reference)
	return isRef
}

// plainOutput is how the action dump describes a variable an action only
// assigns.
const plainOutput = "variable to set"

// UpdatesSlot reports whether the action reads the variable at index
// before writing it, as += or AppendValue do. Every written slot not
// described as a plain output is treated as an update.
func (c *Catalogue) UpdatesSlot(codeblock, action string, index int) bool {
	if !c.WritesSlot(codeblock, action, index) {
		return false
	}
	a, _ := c.Lookup(codeblock, action)
	params := a.Signature.Params
	if index >= len(params) {
		index = len(params) - 1
	}
	return params[index].Name != plainOutput
}
