package codegen

import (
	"fmt"

	"github.com/neverUsedGithub/basalt/df"
)

// openRow is a row under construction and the brackets still open in it.
type openRow struct {
	row      *df.Row
	brackets []df.BracketType
}

// rowManager collects finished rows in the order they are ended. Misuse
// of the row or bracket stacks is a compiler bug and panics.
type rowManager struct {
	rows    []*df.Row
	open    []*openRow
	targets []string
	temps   int
}

func (m *rowManager) current() *openRow {
	if len(m.open) == 0 {
		panic("internal error: codegen: no open row")
	}
	return m.open[len(m.open)-1]
}

// begin opens a new row. Blocks go to it until end is called.
func (m *rowManager) begin() {
	m.open = append(m.open, &openRow{row: &df.Row{}})
}

// end closes the current row and appends it to the output.
func (m *rowManager) end() *df.Row {
	cur := m.current()
	if len(cur.brackets) > 0 {
		panic(fmt.Sprintf("internal error: codegen: row %q ended with %d open brackets", cur.row.Name(), len(cur.brackets)))
	}
	m.open = m.open[:len(m.open)-1]
	m.rows = append(m.rows, cur.row)
	return cur.row
}

func (m *rowManager) add(b *df.Block) {
	cur := m.current()
	cur.row.Blocks = append(cur.row.Blocks, b)
}

func (m *rowManager) openBracket(typ df.BracketType) {
	cur := m.current()
	cur.brackets = append(cur.brackets, typ)
	m.add(df.NewBracket(df.Open, typ))
}

func (m *rowManager) closeBracket(typ df.BracketType) {
	cur := m.current()
	if len(cur.brackets) == 0 {
		panic("internal error: codegen: closing bracket without an open one")
	}
	if top := cur.brackets[len(cur.brackets)-1]; top != typ {
		panic(fmt.Sprintf("internal error: codegen: closing %s bracket, but %s is open", typ, top))
	}
	cur.brackets = cur.brackets[:len(cur.brackets)-1]
	m.add(df.NewBracket(df.Close, typ))
}

func (m *rowManager) pushTarget(target string) {
	m.targets = append(m.targets, target)
}

func (m *rowManager) popTarget() {
	if len(m.targets) == 0 {
		panic("internal error: codegen: target stack underflow")
	}
	m.targets = m.targets[:len(m.targets)-1]
}

// blockTarget returns the innermost selector, or "" outside any.
func (m *rowManager) blockTarget() string {
	if len(m.targets) == 0 {
		return ""
	}
	return m.targets[len(m.targets)-1]
}

// gameValueTarget returns the selector game values are read against.
// Game values have no group selectors and fall back to Default.
func (m *rowManager) gameValueTarget() string {
	switch t := m.blockTarget(); t {
	case "", "AllPlayers", "AllEntities":
		return "Default"
	default:
		return t
	}
}

// temp returns a fresh line variable.
func (m *rowManager) temp() df.Var {
	v := df.Var{Name: fmt.Sprintf("basalt#%d", m.temps), Class: df.Line}
	m.temps++
	return v
}
