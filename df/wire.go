package df

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
	json "github.com/goccy/go-json"
)

// ---------------------------------------------------------------------------
// Wire shapes shared by the JSON template and the CBOR snapshot encodings.
// fxamacker/cbor reads the json struct tags, so one set of shapes serves both.
// ---------------------------------------------------------------------------

type wireTemplate struct {
	Blocks []wireBlock `json:"blocks"`
}

type wireBlock struct {
	ID        string    `json:"id"`
	Block     string    `json:"block,omitempty"`
	Action    string    `json:"action,omitempty"`
	Data      string    `json:"data,omitempty"`
	Target    string    `json:"target,omitempty"`
	Attribute string    `json:"attribute,omitempty"`
	Args      *wireArgs `json:"args,omitempty"`
	Direct    string    `json:"direct,omitempty"`
	Type      string    `json:"type,omitempty"`
}

type wireArgs struct {
	Items []wireSlot `json:"items"`
}

type wireSlot struct {
	Item wireItem `json:"item"`
	Slot int      `json:"slot"`
}

type wireItem struct {
	ID   string `json:"id"`
	Data any    `json:"data"`
}

type varData struct {
	Name  string `json:"name"`
	Scope string `json:"scope"`
}

type valueData struct {
	Name string `json:"name"`
}

type gameValueData struct {
	Type   string `json:"type"`
	Target string `json:"target"`
}

type tagData struct {
	Option   string    `json:"option"`
	Tag      string    `json:"tag"`
	Action   string    `json:"action"`
	Block    string    `json:"block"`
	Variable *wireItem `json:"variable,omitempty"`
}

type paramData struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Plural   bool   `json:"plural"`
	Optional bool   `json:"optional"`
}

// rawItem defers decoding of an item's data until its id is known.
type rawItem[R any] struct {
	ID   string `json:"id"`
	Data R      `json:"data"`
}

func (w *wireItem) UnmarshalJSON(data []byte) error {
	var raw rawItem[json.RawMessage]
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return w.decode(raw.ID, func(v any) error { return json.Unmarshal(raw.Data, v) })
}

func (w *wireItem) UnmarshalCBOR(data []byte) error {
	var raw rawItem[cbor.RawMessage]
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return err
	}
	return w.decode(raw.ID, func(v any) error { return cbor.Unmarshal(raw.Data, v) })
}

func (w *wireItem) decode(id string, unmarshal func(any) error) error {
	var data any
	switch id {
	case "var":
		data = &varData{}
	case "num", "txt", "comp":
		data = &valueData{}
	case "g_val":
		data = &gameValueData{}
	case "bl_tag":
		data = &tagData{}
	case "pn_el":
		data = &paramData{}
	default:
		return fmt.Errorf("unknown item id %q", id)
	}
	if err := unmarshal(data); err != nil {
		return fmt.Errorf("item %s: %w", id, err)
	}
	w.ID, w.Data = id, data
	return nil
}

func toWireItem(it Item) wireItem {
	w := wireItem{ID: it.ID()}
	switch it := it.(type) {
	case Var:
		w.Data = varData{Name: it.Name, Scope: it.Class.String()}
	case Number:
		w.Data = valueData{Name: it.Value}
	case Text:
		w.Data = valueData{Name: it.Value}
	case StyledText:
		w.Data = valueData{Name: it.Value}
	case GameValue:
		w.Data = gameValueData{Type: it.Type, Target: it.Target}
	case Tag:
		d := tagData{Option: it.Option, Tag: it.Tag, Action: it.Action, Block: it.Block}
		if it.Variable != nil {
			v := toWireItem(*it.Variable)
			d.Variable = &v
		}
		w.Data = d
	case Param:
		w.Data = paramData{Name: it.Name, Type: it.Type, Plural: it.Plural, Optional: it.Optional}
	default:
		panic(fmt.Sprintf("df: unknown item %T", it))
	}
	return w
}

func fromWireItem(w wireItem) (Item, error) {
	switch d := w.Data.(type) {
	case *varData:
		class, ok := parseWireScope(d.Scope)
		if !ok {
			return nil, fmt.Errorf("unknown variable scope %q", d.Scope)
		}
		return Var{Name: d.Name, Class: class}, nil
	case *valueData:
		switch w.ID {
		case "num":
			return Number{Value: d.Name}, nil
		case "txt":
			return Text{Value: d.Name}, nil
		}
		return StyledText{Value: d.Name}, nil
	case *gameValueData:
		return GameValue{Type: d.Type, Target: d.Target}, nil
	case *tagData:
		tag := Tag{Option: d.Option, Tag: d.Tag, Action: d.Action, Block: d.Block}
		if d.Variable != nil {
			it, err := fromWireItem(*d.Variable)
			if err != nil {
				return nil, err
			}
			v, ok := it.(Var)
			if !ok {
				return nil, fmt.Errorf("tag variable is a %s", it.ID())
			}
			tag.Variable = &v
		}
		return tag, nil
	case *paramData:
		return Param{Name: d.Name, Type: d.Type, Plural: d.Plural, Optional: d.Optional}, nil
	}
	return nil, fmt.Errorf("undecoded item %q", w.ID)
}

func toWireBlock(b *Block) wireBlock {
	if b.IsBracket() {
		return wireBlock{ID: "bracket", Direct: string(b.Direct), Type: string(b.Type)}
	}
	w := wireBlock{
		ID:        "block",
		Block:     b.Codeblock,
		Action:    b.Action,
		Data:      b.Data,
		Target:    b.Target,
		Attribute: b.Attribute,
		Args:      &wireArgs{Items: make([]wireSlot, 0, len(b.Items))},
	}
	for _, s := range b.Items {
		w.Args.Items = append(w.Args.Items, wireSlot{Item: toWireItem(s.Item), Slot: s.Index})
	}
	return w
}

func fromWireBlock(w wireBlock) (*Block, error) {
	switch w.ID {
	case "bracket":
		return NewBracket(Direction(w.Direct), BracketType(w.Type)), nil
	case "block":
	default:
		return nil, fmt.Errorf("unknown block id %q", w.ID)
	}
	b := &Block{
		Kind:      KindCode,
		Codeblock: w.Block,
		Action:    w.Action,
		Data:      w.Data,
		Target:    w.Target,
		Attribute: w.Attribute,
	}
	if w.Args != nil {
		for _, s := range w.Args.Items {
			it, err := fromWireItem(s.Item)
			if err != nil {
				return nil, fmt.Errorf("%s slot %d: %w", w.Block, s.Slot, err)
			}
			b.Items = append(b.Items, Slot{Index: s.Slot, Item: it})
		}
	}
	return b, nil
}

func toWireRow(r *Row) []wireBlock {
	out := make([]wireBlock, 0, len(r.Blocks))
	for _, b := range r.Blocks {
		if b != nil {
			out = append(out, toWireBlock(b))
		}
	}
	return out
}

func fromWireRow(blocks []wireBlock) (*Row, error) {
	r := &Row{Blocks: make([]*Block, 0, len(blocks))}
	for i, w := range blocks {
		b, err := fromWireBlock(w)
		if err != nil {
			return nil, fmt.Errorf("block %d: %w", i, err)
		}
		r.Blocks = append(r.Blocks, b)
	}
	return r, nil
}
