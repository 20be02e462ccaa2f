// Package df models DiamondFire code templates: rows of code blocks and
// brackets, the items placed in their chests, and the wire formats used to
// ship them.
package df

import (
	"fmt"
	"strings"
)

// ---------------------------------------------------------------------------
// Storage classes
// ---------------------------------------------------------------------------

// StorageClass is the lifetime and visibility of a variable.
type StorageClass uint8

const (
	// Line variables live for one invocation of a row.
	Line StorageClass = iota
	// Actor variables persist per running code thread.
	Actor
	// Shared variables persist for the plot session.
	Shared
	// Saved variables persist across plot restarts.
	Saved
)

// Classes lists every storage class in capture order.
var Classes = [...]StorageClass{Line, Actor, Shared, Saved}

var classWire = [...]string{"line", "local", "unsaved", "saved"}
var classKeyword = [...]string{"@line", "@thread", "@global", "@saved"}

// String returns the wire name of the class.
func (c StorageClass) String() string {
	if int(c) < len(classWire) {
		return classWire[c]
	}
	return fmt.Sprintf("StorageClass(%d)", c)
}

// Keyword returns the source keyword for the class.
func (c StorageClass) Keyword() string {
	return classKeyword[c]
}

// Persistent reports whether the class outlives a single row invocation.
func (c StorageClass) Persistent() bool {
	return c != Line
}

// ParseScope maps a source keyword such as "@saved" to its class.
func ParseScope(keyword string) (StorageClass, bool) {
	for i, k := range classKeyword {
		if k == keyword {
			return StorageClass(i), true
		}
	}
	return 0, false
}

// parseWireScope maps a wire name such as "unsaved" to its class.
func parseWireScope(name string) (StorageClass, bool) {
	for i, k := range classWire {
		if k == name {
			return StorageClass(i), true
		}
	}
	return 0, false
}

// ---------------------------------------------------------------------------
// Items
// ---------------------------------------------------------------------------

// Item is a value placed in a code block's chest.
type Item interface {
	// ID is the wire identifier of the item kind.
	ID() string
	String() string
	item()
}

// Var is a variable operand.
type Var struct {
	Name  string
	Class StorageClass
}

// Number is a number operand. The text is kept verbatim.
type Number struct {
	Value string
}

// Text is a plain string operand.
type Text struct {
	Value string
}

// StyledText is a styled text component operand.
type StyledText struct {
	Value string
}

// GameValue reads a value from the game, evaluated against Target.
type GameValue struct {
	Type   string
	Target string
}

// Tag selects one option of an action's tag, optionally bound to a
// variable holding the option at runtime.
type Tag struct {
	Option   string
	Tag      string
	Action   string
	Block    string
	Variable *Var
}

// Param declares a function parameter.
type Param struct {
	Name     string
	Type     string
	Plural   bool
	Optional bool
}

func (Var) ID() string        { return "var" }
func (Number) ID() string     { return "num" }
func (Text) ID() string       { return "txt" }
func (StyledText) ID() string { return "comp" }
func (GameValue) ID() string  { return "g_val" }
func (Tag) ID() string        { return "bl_tag" }
func (Param) ID() string      { return "pn_el" }

func (Var) item()        {}
func (Number) item()     {}
func (Text) item()       {}
func (StyledText) item() {}
func (GameValue) item()  {}
func (Tag) item()        {}
func (Param) item()      {}

func (v Var) String() string        { return v.Class.String() + ":" + v.Name }
func (n Number) String() string     { return n.Value }
func (t Text) String() string       { return "'" + t.Value + "'" }
func (t StyledText) String() string { return `"` + t.Value + `"` }
func (g GameValue) String() string  { return "<" + g.Type + " @" + g.Target + ">" }

func (t Tag) String() string {
	if t.Variable != nil {
		return fmt.Sprintf("[%s=%s|%s]", t.Tag, t.Option, t.Variable)
	}
	return fmt.Sprintf("[%s=%s]", t.Tag, t.Option)
}

func (p Param) String() string {
	s := fmt.Sprintf("param %s: %s", p.Name, p.Type)
	if p.Plural {
		s += "*"
	}
	if p.Optional {
		s += "?"
	}
	return s
}

// VarOf returns the variable an item refers to. Parameters declare line
// variables; tags may carry a bound variable.
func VarOf(it Item) (Var, bool) {
	switch it := it.(type) {
	case Var:
		return it, true
	case Param:
		return Var{Name: it.Name, Class: Line}, true
	case Tag:
		if it.Variable != nil {
			return *it.Variable, true
		}
	}
	return Var{}, false
}

// WithVar returns it with its variable replaced by v.
func WithVar(it Item, v Var) Item {
	switch it := it.(type) {
	case Var:
		return v
	case Param:
		it.Name = v.Name
		return it
	case Tag:
		nv := v
		it.Variable = &nv
		return it
	}
	return it
}

// Slot is an item placed at a chest index.
type Slot struct {
	Index int
	Item  Item
}

// ---------------------------------------------------------------------------
// Blocks
// ---------------------------------------------------------------------------

// Codeblock identifiers emitted by the compiler.
const (
	EventBlock   = "event"
	EntityEvent  = "entity_event"
	Func         = "func"
	CallFunc     = "call_func"
	SetVar       = "set_var"
	IfVar        = "if_var"
	IfPlayer     = "if_player"
	IfEntity     = "if_entity"
	IfGame       = "if_game"
	Repeat       = "repeat"
	Control      = "control"
	PlayerAction = "player_action"
	EntityAction = "entity_action"
	GameAction   = "game_action"
)

// Kind distinguishes code blocks from brackets.
type Kind uint8

const (
	KindCode Kind = iota
	KindBracket
)

// Direction is the side of a bracket.
type Direction string

const (
	Open  Direction = "open"
	Close Direction = "close"
)

// BracketType is the shape of a bracket pair.
type BracketType string

const (
	Norm       BracketType = "norm"
	RepeatType BracketType = "repeat"
)

// Block is a code block or a bracket.
type Block struct {
	Kind Kind

	// Code blocks.
	Codeblock string
	Action    string
	Data      string // function name for func and call_func
	Target    string
	Attribute string
	Items     []Slot

	// Brackets.
	Direct Direction
	Type   BracketType
}

// NewCode creates a code block with items in consecutive slots.
func NewCode(codeblock, action string, items ...Item) *Block {
	b := &Block{Kind: KindCode, Codeblock: codeblock, Action: action}
	for i, it := range items {
		b.Items = append(b.Items, Slot{Index: i, Item: it})
	}
	return b
}

// NewFunc creates a function head or call block.
func NewFunc(codeblock, name string, items ...Item) *Block {
	b := NewCode(codeblock, "", items...)
	b.Data = name
	return b
}

// NewBracket creates a bracket.
func NewBracket(dir Direction, typ BracketType) *Block {
	return &Block{Kind: KindBracket, Direct: dir, Type: typ}
}

// IsBracket reports whether b is a bracket.
func (b *Block) IsBracket() bool { return b.Kind == KindBracket }

// IsOpen reports whether b is an opening bracket.
func (b *Block) IsOpen() bool { return b.Kind == KindBracket && b.Direct == Open }

// IsClose reports whether b is a closing bracket.
func (b *Block) IsClose() bool { return b.Kind == KindBracket && b.Direct == Close }

// Is reports whether b is a code block of the given codeblock and action.
func (b *Block) Is(codeblock, action string) bool {
	return b.Kind == KindCode && b.Codeblock == codeblock && b.Action == action
}

// IsConditional reports whether b is an if block.
func (b *Block) IsConditional() bool {
	if b.Kind != KindCode {
		return false
	}
	switch b.Codeblock {
	case IfVar, IfPlayer, IfEntity, IfGame:
		return true
	}
	return false
}

// Add appends an item at the next free slot.
func (b *Block) Add(it Item) {
	next := 0
	for _, s := range b.Items {
		if s.Index >= next {
			next = s.Index + 1
		}
	}
	b.Items = append(b.Items, Slot{Index: next, Item: it})
}

// Clone returns a copy of b that shares no slices with it.
func (b *Block) Clone() *Block {
	c := *b
	if b.Items != nil {
		c.Items = make([]Slot, len(b.Items))
		for i, s := range b.Items {
			s.Item = cloneItem(s.Item)
			c.Items[i] = s
		}
	}
	return &c
}

func cloneItem(it Item) Item {
	if t, ok := it.(Tag); ok && t.Variable != nil {
		v := *t.Variable
		t.Variable = &v
		return t
	}
	return it
}

func (b *Block) String() string {
	if b.IsBracket() {
		if b.Direct == Open {
			return "{" + string(b.Type)
		}
		return string(b.Type) + "}"
	}
	var sb strings.Builder
	sb.WriteString(b.Codeblock)
	if b.Action != "" {
		sb.WriteString(" " + b.Action)
	}
	if b.Data != "" {
		sb.WriteString(" " + b.Data)
	}
	if b.Target != "" {
		sb.WriteString(" @" + b.Target)
	}
	if b.Attribute != "" {
		sb.WriteString(" " + b.Attribute)
	}
	if len(b.Items) > 0 {
		parts := make([]string, len(b.Items))
		for i, s := range b.Items {
			parts[i] = s.Item.String()
		}
		sb.WriteString(" (" + strings.Join(parts, ", ") + ")")
	}
	return sb.String()
}

// ---------------------------------------------------------------------------
// Rows
// ---------------------------------------------------------------------------

// Row is one event or function: a head block followed by its body.
type Row struct {
	Blocks []*Block
}

// Head returns the entry block of the row.
func (r *Row) Head() *Block {
	if len(r.Blocks) == 0 {
		return nil
	}
	return r.Blocks[0]
}

// Name returns the function name or event action of the row.
func (r *Row) Name() string {
	h := r.Head()
	if h == nil {
		return ""
	}
	if h.Data != "" {
		return h.Data
	}
	return h.Action
}

// IsFunction reports whether the row declares a function.
func (r *Row) IsFunction() bool {
	h := r.Head()
	return h != nil && h.Codeblock == Func
}

// Clone returns a deep copy of r.
func (r *Row) Clone() *Row {
	c := &Row{Blocks: make([]*Block, len(r.Blocks))}
	for i, b := range r.Blocks {
		if b != nil {
			c.Blocks[i] = b.Clone()
		}
	}
	return c
}

// Functions indexes the function heads of rows by name.
func Functions(rows []*Row) map[string]*Block {
	funcs := make(map[string]*Block)
	for _, r := range rows {
		if r.IsFunction() {
			funcs[r.Head().Data] = r.Head()
		}
	}
	return funcs
}

// MatchingClose returns the index of the bracket closing the one opened at
// blocks[open], or -1 when the brackets are unbalanced.
func MatchingClose(blocks []*Block, open int) int {
	depth := 0
	for i := open; i < len(blocks); i++ {
		b := blocks[i]
		if b == nil || !b.IsBracket() {
			continue
		}
		if b.Direct == Open {
			depth++
			continue
		}
		depth--
		if depth == 0 {
			if b.Type != blocks[open].Type {
				return -1
			}
			return i
		}
	}
	return -1
}
