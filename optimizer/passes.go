package optimizer

import (
	"github.com/neverUsedGithub/basalt/df"
)

// pass is one optimization. Each sweep calls VisitBlock for every live
// block, then VisitSymbol for every symbol the sweep tracked.
type pass interface {
	VisitBlock(c *context, b *df.Block, index int)
	VisitSymbol(c *context, s *symbol)
}

// ---------------------------------------------------------------------------
// Tracking
// ---------------------------------------------------------------------------

// trackVariables records every variable operand as a read or a write.
type trackVariables struct{}

func (trackVariables) VisitBlock(c *context, b *df.Block, index int) {
	if b.IsBracket() {
		return
	}

	switch b.Codeblock {
	case df.Func:
		for i, s := range b.Items {
			if p, ok := s.Item.(df.Param); ok {
				c.mark(df.Var{Name: p.Name, Class: df.Line}, true, true, location{index, i})
			}
		}
		return

	case df.CallFunc:
		head := c.funcs[b.Data]
		for i, s := range b.Items {
			v, ok := s.Item.(df.Var)
			if !ok {
				continue
			}
			c.mark(v, declaresOutput(head, s.Index), false, location{index, i})
		}
		return
	}

	for i, s := range b.Items {
		v, ok := df.VarOf(s.Item)
		if !ok {
			continue
		}
		_, plain := s.Item.(df.Var)
		write := plain && c.opt.cat.WritesSlot(b.Codeblock, b.Action, s.Index)
		c.mark(v, write, false, location{index, i})
		if write && c.opt.cat.UpdatesSlot(b.Codeblock, b.Action, s.Index) {
			c.mark(v, false, false, location{index, i})
		}
	}
}

func (trackVariables) VisitSymbol(*context, *symbol) {}

// declaresOutput reports whether the function head declares a variable
// parameter at slot.
func declaresOutput(head *df.Block, slot int) bool {
	if head == nil {
		return false
	}
	for _, s := range head.Items {
		if s.Index == slot {
			p, ok := s.Item.(df.Param)
			return ok && p.Type == "var"
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Copy propagation
// ---------------------------------------------------------------------------

// variableAliases folds "t = ...; x = t" into "x = ..." when t is a
// single-use temporary.
type variableAliases struct{}

func (variableAliases) VisitBlock(*context, *df.Block, int) {}

func (variableAliases) VisitSymbol(c *context, s *symbol) {
	if s.param || (s.v.Class != df.Line && s.v.Class != df.Actor) {
		return
	}
	if len(s.writes) != 1 || len(s.reads) != 1 {
		return
	}
	w, r := s.writes[0], s.reads[0]
	if w.block >= r.block {
		return
	}

	assign := c.blocks[r.block]
	if !assign.Is(df.SetVar, "=") || assign.Items[r.item].Index != 1 {
		return
	}
	x, ok := itemAt(assign, 0).(df.Var)
	if !ok || x == s.v {
		return
	}
	if _, ok := c.item(w).(df.Var); !ok {
		return
	}

	for i := w.block + 1; i < r.block; i++ {
		b := c.blocks[i]
		if b == nil {
			continue
		}
		if b.IsBracket() || references(b, x) {
			return
		}
	}

	c.blocks[w.block].Items[w.item].Item = x
	s.reads, s.writes = nil, nil
	c.remove(r.block)
	c.mark(x, true, false, w)
}

func itemAt(b *df.Block, slot int) df.Item {
	for _, s := range b.Items {
		if s.Index == slot {
			return s.Item
		}
	}
	return nil
}

func references(b *df.Block, v df.Var) bool {
	for _, s := range b.Items {
		if u, ok := df.VarOf(s.Item); ok && u == v {
			return true
		}
	}
	return false
}

// ---------------------------------------------------------------------------
// Dead code
// ---------------------------------------------------------------------------

// deadCode removes conditions guarding nothing and stores nobody reads.
type deadCode struct{}

func (deadCode) VisitBlock(c *context, b *df.Block, index int) {
	if !b.IsConditional() {
		return
	}
	if index+1 >= len(c.blocks) || c.blocks[index+1] == nil || !c.blocks[index+1].IsOpen() {
		return
	}
	end := df.MatchingClose(c.blocks, index+1)
	if end < 0 {
		return
	}
	for i := index + 2; i < end; i++ {
		if c.blocks[i] != nil {
			return
		}
	}
	for i := index; i <= end; i++ {
		c.remove(i)
	}
}

// VisitSymbol removes set_var writes to line variables that are never
// read. Stores to the other classes are kept even when this row never reads
// them, since events, functions and later joins on the plot can.
func (deadCode) VisitSymbol(c *context, s *symbol) {
	if s.param || s.v.Class != df.Line || len(s.reads) > 0 {
		return
	}
	writes := append([]location(nil), s.writes...)
	for _, w := range writes {
		if b := c.blocks[w.block]; b != nil && !b.IsBracket() && b.Codeblock == df.SetVar {
			c.remove(w.block)
		}
	}
}
