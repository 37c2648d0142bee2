package newick

import (
	"errors"
	"reflect"
	"testing"
)

func TestParse_SimpleTree(t *testing.T) {
	tr, err := Parse("(a,b);")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	root := tr.Node(tr.Root())
	if len(root.Children) != 2 {
		t.Fatalf("root has %d children, want 2", len(root.Children))
	}
	if got, want := tr.LeafNames(tr.Root()), []string{"a", "b"}; !reflect.DeepEqual(got, want) {
		t.Errorf("leaf names = %v, want %v", got, want)
	}
}

func TestParse_Nested(t *testing.T) {
	tr, err := Parse("((a,b),(c,d),e);")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if got := len(tr.Node(tr.Root()).Children); got != 3 {
		t.Errorf("root degree = %d, want 3", got)
	}
	if got, want := tr.LeafNames(tr.Root()), []string{"a", "b", "c", "d", "e"}; !reflect.DeepEqual(got, want) {
		t.Errorf("leaf names = %v, want %v", got, want)
	}
}

func TestParse_BranchLengths(t *testing.T) {
	tr, err := Parse("(a:1.5,b:2)r:0.5;")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	root := tr.Node(tr.Root())
	if root.Name != "r" {
		t.Errorf("root name = %q, want %q", root.Name, "r")
	}
	if !root.HasLength || root.Length != 0.5 {
		t.Errorf("root length = %v (has=%v), want 0.5", root.Length, root.HasLength)
	}
	a := tr.Node(root.Children[0])
	if a.Name != "a" || !a.HasLength || a.Length != 1.5 {
		t.Errorf("first leaf = %q length %v, want a length 1.5", a.Name, a.Length)
	}
}

func TestParse_QuotedLabel(t *testing.T) {
	tr, err := Parse("('gene one',b);")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if got := tr.Node(tr.Node(tr.Root()).Children[0]).Name; got != "gene one" {
		t.Errorf("quoted label = %q, want %q", got, "gene one")
	}
}

func TestParse_Errors(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  error
	}{
		{"empty", "", ErrEmpty},
		{"whitespace", "  \n ", ErrEmpty},
		{"unbalanced open", "((a,b);", ErrUnbalanced},
		{"unbalanced close", "(a,b));", ErrUnbalanced},
		{"trailing", "(a,b); junk", ErrTrailingData},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(tc.input); !errors.Is(err, tc.want) {
				t.Errorf("Parse(%q) error = %v, want %v", tc.input, err, tc.want)
			}
		})
	}
}

func TestWrite_RoundTrip(t *testing.T) {
	cases := []string{
		"(a,b);",
		"((a,b),c);",
		"((a:1,b:2):0.5,c:3);",
		"((a,b)x,(c,d)y)r;",
	}
	for _, in := range cases {
		tr, err := Parse(in)
		if err != nil {
			t.Fatalf("Parse(%q) error: %v", in, err)
		}
		if out := Write(tr); out != in {
			t.Errorf("Write(Parse(%q)) = %q", in, out)
		}
	}
}

func TestWrite_QuotesLabels(t *testing.T) {
	tr, err := Parse("('gene one',b);")
	if err != nil {
		t.Fatalf("Parse() error: %v", err)
	}
	if out := Write(tr); out != "('gene one',b);" {
		t.Errorf("Write() = %q, want %q", out, "('gene one',b);")
	}
}

func TestParseAll(t *testing.T) {
	trees, err := ParseAll("(a,b);\n\n((a,b),c);\n")
	if err != nil {
		t.Fatalf("ParseAll() error: %v", err)
	}
	if len(trees) != 2 {
		t.Fatalf("ParseAll() returned %d trees, want 2", len(trees))
	}
	if got := len(trees[1].Node(trees[1].Root()).Children); got != 2 {
		t.Errorf("second tree root degree = %d, want 2", got)
	}
}

func TestParseAll_ReportsLine(t *testing.T) {
	_, err := ParseAll("(a,b);\n((a,b);\n")
	if err == nil {
		t.Fatal("ParseAll() = nil error, want line-2 failure")
	}
	if !errors.Is(err, ErrUnbalanced) {
		t.Errorf("ParseAll() error = %v, want wrapped ErrUnbalanced", err)
	}
}
