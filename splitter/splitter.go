// Package splitter breaks rows that exceed the plot's size budget into
// helper functions. Extracted code runs in a new row named basalt-wrap#N,
// called from where it was cut out, with every variable it shares with the
// rest of the row passed by reference.
package splitter

import (
	"fmt"

	"github.com/tliron/commonlog"

	"github.com/neverUsedGithub/basalt/df"
)

var log = commonlog.GetLogger("basalt.splitter")

// HelperPrefix prefixes the names of extracted functions.
const HelperPrefix = "basalt-wrap#"

// Costs is the size of each kind of block in budget units.
type Costs struct {
	Block   int `toml:"block" json:"block"`
	Bracket int `toml:"bracket" json:"bracket"`
}

// DefaultCosts is the cost model of a DiamondFire plot: a code block and
// its sign take two units, a bracket one.
var DefaultCosts = Costs{Block: 2, Bracket: 1}

// MinBudget is the smallest budget that can hold a head, a bracketed
// header with a call inside it, and a tail call.
func (c Costs) MinBudget() int {
	return 4*c.Block + 2*c.Bracket + 2
}

// Cost returns the size of r.
func Cost(r *df.Row, costs Costs) int {
	return costOf(r.Blocks, costs)
}

func costOf(blocks []*df.Block, costs Costs) int {
	n := 0
	for _, b := range blocks {
		if b.IsBracket() {
			n += costs.Bracket
		} else {
			n += costs.Block
		}
	}
	return n
}

// Splitter splits rows against one budget.
type Splitter struct {
	budget int
	costs  Costs
	next   int
}

// New creates a splitter. Every row it produces costs less than
// budget-1.
func New(budget int, costs Costs) (*Splitter, error) {
	if costs.Block <= 0 || costs.Bracket < 0 {
		return nil, fmt.Errorf("splitter: invalid costs %+v", costs)
	}
	if floor := costs.MinBudget(); budget < floor {
		return nil, fmt.Errorf("splitter: budget %d is below the minimum of %d", budget, floor)
	}
	return &Splitter{budget: budget, costs: costs}, nil
}

// Split returns rows with every oversized row replaced by itself and its
// helpers. Helper numbering restarts with each call. The input is not
// modified.
func (s *Splitter) Split(rows []*df.Row) []*df.Row {
	s.next = 0
	var out []*df.Row
	for _, r := range rows {
		parts := s.split(r.Clone(), 0)
		if len(parts) > 1 {
			log.Debugf("split %s (cost %d) into %d rows", r.Name(), Cost(r, s.costs), len(parts))
		}
		out = append(out, parts...)
	}
	return out
}

func (s *Splitter) limit() int { return s.budget - 1 }

func (s *Splitter) helper() string {
	name := fmt.Sprintf("%s%d", HelperPrefix, s.next)
	s.next++
	return name
}

// split walks r at the given helper depth. The returned slice starts with
// r's replacement, followed by the helpers it extracted.
func (s *Splitter) split(r *df.Row, depth int) []*df.Row {
	if Cost(r, s.costs) < s.limit() {
		return []*df.Row{r}
	}

	blocks := r.Blocks
	c := s.costs
	out := []*df.Block{blocks[0]}
	size := c.Block
	var helpers []*df.Row

	for i := 1; i < len(blocks); i++ {
		b := blocks[i]
		if b.IsBracket() {
			panic(fmt.Sprintf("internal error: splitter: %s bracket without a header in %s", b.Direct, r.Name()))
		}

		header := i+1 < len(blocks) && blocks[i+1].IsOpen()
		if !header {
			reserve := c.Block
			if i == len(blocks)-1 {
				reserve = 0
			}
			if size+c.Block+reserve < s.limit() {
				out = append(out, b)
				size += c.Block
				continue
			}
			helpers = append(helpers, s.extract(&out, blocks[i:], [][]*df.Block{out}, depth)...)
			break
		}

		end := df.MatchingClose(blocks, i+1)
		if end < 0 {
			panic(fmt.Sprintf("internal error: splitter: unbalanced brackets in %s", r.Name()))
		}
		reserve := c.Block
		if end == len(blocks)-1 {
			reserve = 0
		}

		region := blocks[i+2 : end]
		inline := c.Block + 2*c.Bracket + costOf(region, c)
		if size+inline+reserve < s.limit() {
			out = append(out, blocks[i:end+1]...)
			size += inline
			i = end
			continue
		}

		minimal := c.Block + 2*c.Bracket + c.Block
		if size+minimal+reserve < s.limit() {
			out = append(out, b, blocks[i+1])
			rest := [][]*df.Block{out, blocks[end+1:]}
			helpers = append(helpers, s.extract(&out, region, rest, depth)...)
			out = append(out, blocks[end])
			size += minimal
			i = end
			continue
		}

		helpers = append(helpers, s.extract(&out, blocks[i:], [][]*df.Block{out}, depth)...)
		break
	}

	r.Blocks = out
	return append([]*df.Row{r}, helpers...)
}

// extract moves body into a new helper function, appends the call to it
// to out and returns the helper split at depth+1.
func (s *Splitter) extract(out *[]*df.Block, body []*df.Block, rest [][]*df.Block, depth int) []*df.Row {
	name := s.helper()
	vars := captures(body, rest)

	head := df.NewFunc(df.Func, name)
	call := df.NewFunc(df.CallFunc, name)
	for _, v := range vars {
		head.Add(df.Param{Name: v.Name, Type: "var"})
		call.Add(v)
	}

	inner := make([]*df.Block, 0, len(body)+1)
	inner = append(inner, head)
	for _, b := range body {
		inner = append(inner, unwind(b, depth))
	}

	*out = append(*out, call)
	return s.split(&df.Row{Blocks: inner}, depth+1)
}

// unwind rewrites a return so it also leaves the helper frames between it
// and the function it was written in.
func unwind(b *df.Block, depth int) *df.Block {
	if b.IsBracket() || b.Codeblock != df.Control {
		return b
	}
	if b.Action != "Return" && b.Action != "ReturnNTimes" {
		return b
	}
	return df.NewCode(df.Control, "ReturnNTimes", df.Number{Value: fmt.Sprint(depth + 2)})
}

// captures returns the variables body shares with rest, grouped by storage
// class and in order of first appearance in body.
func captures(body []*df.Block, rest [][]*df.Block) []df.Var {
	outside := make(map[df.Var]bool)
	for _, part := range rest {
		for _, b := range part {
			for _, it := range b.Items {
				if v, ok := df.VarOf(it.Item); ok {
					outside[v] = true
				}
			}
		}
	}

	var byClass [len(df.Classes)][]df.Var
	seen := make(map[df.Var]bool)
	for _, b := range body {
		for _, it := range b.Items {
			v, ok := df.VarOf(it.Item)
			if !ok || seen[v] || !outside[v] {
				continue
			}
			seen[v] = true
			byClass[v.Class] = append(byClass[v.Class], v)
		}
	}

	var vars []df.Var
	for _, class := range df.Classes {
		vars = append(vars, byClass[class]...)
	}
	return vars
}
