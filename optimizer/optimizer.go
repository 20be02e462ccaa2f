// Package optimizer rewrites generated rows to use fewer blocks. It runs a
// fixed-point loop of passes over each row: propagating copies of
// single-use temporaries and eliminating dead code.
package optimizer

import (
	"github.com/tliron/commonlog"

	"github.com/neverUsedGithub/basalt/catalogue"
	"github.com/neverUsedGithub/basalt/df"
)

var log = commonlog.GetLogger("basalt.optimizer")

// Stats summarizes an optimization run.
type Stats struct {
	// Sweeps is the number of passes over the rows, including the final
	// sweep that changed nothing.
	Sweeps int
	// Changes counts every rewrite and removal.
	Changes int
	// FirstSweepChanges counts the changes made by the first sweep.
	FirstSweepChanges int
}

func (s *Stats) add(o Stats) {
	s.Sweeps += o.Sweeps
	s.Changes += o.Changes
	s.FirstSweepChanges += o.FirstSweepChanges
}

// Optimizer classifies operands using a catalogue.
type Optimizer struct {
	cat    *catalogue.Catalogue
	passes []pass
}

// New creates an optimizer.
func New(cat *catalogue.Catalogue) *Optimizer {
	return &Optimizer{
		cat:    cat,
		passes: []pass{trackVariables{}, variableAliases{}, deadCode{}},
	}
}

// Optimize optimizes every row. The input rows are not modified.
func (o *Optimizer) Optimize(rows []*df.Row) ([]*df.Row, Stats) {
	funcs := df.Functions(rows)
	out := make([]*df.Row, len(rows))
	var total Stats
	for i, r := range rows {
		var st Stats
		out[i], st = o.OptimizeRow(r, funcs)
		total.add(st)
	}
	log.Debugf("optimized %d rows in %d sweeps, %d changes", len(rows), total.Sweeps, total.Changes)
	return out, total
}

// OptimizeRow optimizes a copy of row. funcs resolves the heads of called
// functions so call arguments can be classified.
func (o *Optimizer) OptimizeRow(row *df.Row, funcs map[string]*df.Block) (*df.Row, Stats) {
	ctx := &context{
		opt:    o,
		funcs:  funcs,
		blocks: row.Clone().Blocks,
	}

	var st Stats
	for {
		ctx.reset()
		for _, p := range o.passes {
			for i, b := range ctx.blocks {
				if b != nil {
					p.VisitBlock(ctx, b, i)
				}
			}
		}
		for _, p := range o.passes {
			for _, s := range ctx.order {
				p.VisitSymbol(ctx, s)
			}
		}

		st.Sweeps++
		st.Changes += ctx.changes
		if st.Sweeps == 1 {
			st.FirstSweepChanges = ctx.changes
		}
		if ctx.changes == 0 {
			break
		}
	}

	compact := &df.Row{}
	for _, b := range ctx.blocks {
		if b != nil {
			compact.Blocks = append(compact.Blocks, b)
		}
	}
	return compact, st
}

// ---------------------------------------------------------------------------
// Symbols
// ---------------------------------------------------------------------------

// location is an item position: a block index and a slot index into its
// Items.
type location struct {
	block int
	item  int
}

func (l location) hash() int { return l.block<<24 | l.item }

// symbol tracks where one variable is read and written within a row.
type symbol struct {
	v      df.Var
	param  bool
	reads  []location
	writes []location

	seen map[int]bool
}

func (s *symbol) mark(write bool, loc location) {
	key := loc.hash() << 1
	if write {
		key |= 1
	}
	if s.seen[key] {
		return
	}
	s.seen[key] = true
	if write {
		s.writes = append(s.writes, loc)
	} else {
		s.reads = append(s.reads, loc)
	}
}

// untrack forgets every location in block.
func (s *symbol) untrack(block int) {
	keep := func(locs []location, write bool) []location {
		out := locs[:0]
		for _, l := range locs {
			if l.block == block {
				key := l.hash() << 1
				if write {
					key |= 1
				}
				delete(s.seen, key)
				continue
			}
			out = append(out, l)
		}
		return out
	}
	s.reads = keep(s.reads, false)
	s.writes = keep(s.writes, true)
}

// context is the state of one row's optimization.
type context struct {
	opt   *Optimizer
	funcs map[string]*df.Block

	// blocks holds nil tombstones for removed blocks until the row is
	// compacted.
	blocks []*df.Block

	symbols map[df.Var]*symbol
	order   []*symbol
	changes int
}

func (c *context) reset() {
	c.symbols = make(map[df.Var]*symbol)
	c.order = nil
	c.changes = 0
}

func (c *context) lookup(v df.Var) *symbol {
	s, ok := c.symbols[v]
	if !ok {
		s = &symbol{v: v, seen: make(map[int]bool)}
		c.symbols[v] = s
		c.order = append(c.order, s)
	}
	return s
}

func (c *context) mark(v df.Var, write, param bool, loc location) {
	s := c.lookup(v)
	if param {
		s.param = true
	}
	s.mark(write, loc)
}

// remove tombstones the block at index.
func (c *context) remove(index int) {
	if c.blocks[index] == nil {
		return
	}
	c.blocks[index] = nil
	c.changes++
	for _, s := range c.order {
		s.untrack(index)
	}
}

func (c *context) item(loc location) df.Item {
	return c.blocks[loc.block].Items[loc.item].Item
}
