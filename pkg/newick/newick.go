// Package newick parses and serializes trees in Newick format.
//
// The dialect understood here is the common one produced by phylogenetics
// tools: nested parentheses, optional node labels, optional ":length"
// annotations on any node, quoted labels with single quotes, and a trailing
// semicolon. Both the parser and the writer are iterative, so arbitrarily
// deep inputs are handled without recursion.
package newick

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/UdeM-LBIT/profileNJ/pkg/phylo"
)

var (
	// ErrEmpty is returned when the input contains no tree.
	ErrEmpty = errors.New("newick: empty input")

	// ErrUnbalanced is returned when parentheses do not nest correctly.
	ErrUnbalanced = errors.New("newick: unbalanced parentheses")

	// ErrTrailingData is returned when characters follow the terminating
	// semicolon on the same tree.
	ErrTrailingData = errors.New("newick: trailing data after ';'")
)

// Parse reads a single Newick tree. A missing trailing semicolon is
// tolerated; anything after a semicolon is not.
func Parse(s string) (*phylo.Tree, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, ErrEmpty
	}

	t := phylo.New()
	cur := t.Root()
	depth := 0
	i := 0

	for i < len(s) {
		switch c := s[i]; c {
		case '(':
			depth++
			cur = t.AddChild(cur)
			i++
		case ',':
			p := t.Node(cur).Parent
			if p == phylo.NilID || depth == 0 {
				return nil, ErrUnbalanced
			}
			cur = t.AddChild(p)
			i++
		case ')':
			depth--
			if depth < 0 {
				return nil, ErrUnbalanced
			}
			cur = t.Node(cur).Parent
			i++
		case ';':
			i++
			if strings.TrimSpace(s[i:]) != "" {
				return nil, ErrTrailingData
			}
			i = len(s)
		case ' ', '\t', '\n', '\r':
			i++
		case ':':
			length, n, err := parseLength(s[i+1:])
			if err != nil {
				return nil, err
			}
			node := t.Node(cur)
			node.Length = length
			node.HasLength = true
			i += 1 + n
		default:
			label, n := parseLabel(s[i:])
			t.Node(cur).Name = label
			i += n
		}
	}

	if depth != 0 {
		return nil, ErrUnbalanced
	}
	return t, nil
}

// ParseAll reads one tree per non-empty line, the layout used by batch
// gene-tree files. The returned slice preserves line order.
func ParseAll(s string) ([]*phylo.Tree, error) {
	var trees []*phylo.Tree
	for lineno, line := range strings.Split(s, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		t, err := Parse(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineno+1, err)
		}
		trees = append(trees, t)
	}
	if len(trees) == 0 {
		return nil, ErrEmpty
	}
	return trees, nil
}

// parseLabel consumes a node label starting at the head of s and returns the
// label and the number of bytes consumed. Quoted labels may contain any
// character except the closing quote.
func parseLabel(s string) (string, int) {
	if s[0] == '\'' {
		if end := strings.IndexByte(s[1:], '\''); end >= 0 {
			return s[1 : 1+end], end + 2
		}
		return s[1:], len(s)
	}
	end := strings.IndexAny(s, "(),;: \t\n\r")
	if end < 0 {
		end = len(s)
	}
	return s[:end], end
}

// parseLength consumes a branch length and returns the value and bytes used.
func parseLength(s string) (float64, int, error) {
	end := strings.IndexAny(s, "(),;")
	if end < 0 {
		end = len(s)
	}
	raw := strings.TrimSpace(s[:end])
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("newick: bad branch length %q: %w", raw, err)
	}
	return v, end, nil
}

// Write serializes the tree rooted at t.Root(), including branch lengths
// where present, terminated by a semicolon.
func Write(t *phylo.Tree) string {
	var sb strings.Builder
	writeSubtree(&sb, t, t.Root())
	sb.WriteByte(';')
	return sb.String()
}

// writeSubtree emits node id using an explicit stack of open clades.
func writeSubtree(sb *strings.Builder, t *phylo.Tree, id int) {
	// Each frame tracks how many children of the node have been emitted.
	type frame struct {
		id   int
		next int
	}
	stack := []frame{{id: id}}
	for len(stack) > 0 {
		top := len(stack) - 1
		f := stack[top]
		n := t.Node(f.id)
		if f.next < len(n.Children) {
			if f.next == 0 {
				sb.WriteByte('(')
			} else {
				sb.WriteByte(',')
			}
			stack[top].next++
			stack = append(stack, frame{id: n.Children[f.next]})
			continue
		}
		if !n.IsLeaf() {
			sb.WriteByte(')')
		}
		sb.WriteString(quoteLabel(n.Name))
		if n.HasLength {
			sb.WriteByte(':')
			sb.WriteString(strconv.FormatFloat(n.Length, 'g', -1, 64))
		}
		stack = stack[:top]
	}
}

// quoteLabel wraps labels containing Newick metacharacters in single quotes.
func quoteLabel(label string) string {
	if strings.ContainsAny(label, "(),;: \t") {
		return "'" + label + "'"
	}
	return label
}
