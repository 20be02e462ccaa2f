package df

import (
	"strings"

	"github.com/xlab/treeprint"
)

// Dump renders a row as a tree. Bracketed regions become branches of the
// block that opens them.
func Dump(r *Row) string {
	head := r.Head()
	if head == nil {
		return "(empty row)\n"
	}
	tree := treeprint.NewWithRoot(head.String())
	stack := []treeprint.Tree{tree}
	var last treeprint.Tree = tree

	for _, b := range r.Blocks[1:] {
		if b == nil {
			continue
		}
		top := stack[len(stack)-1]
		switch {
		case b.IsOpen():
			branch := last
			if branch == top {
				branch = top.AddBranch("{" + string(b.Type))
			}
			stack = append(stack, branch)
		case b.IsClose():
			if len(stack) > 1 {
				stack = stack[:len(stack)-1]
			}
			last = stack[len(stack)-1]
		default:
			last = top.AddBranch(b.String())
		}
	}
	return tree.String()
}

// DumpAll renders every row.
func DumpAll(rows []*Row) string {
	var sb strings.Builder
	for _, r := range rows {
		sb.WriteString(Dump(r))
	}
	return sb.String()
}
