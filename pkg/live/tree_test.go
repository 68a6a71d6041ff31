package live

import (
	"fmt"
	"math"
	"testing"
)

func viewers(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("v%d", i+1)
	}
	return out
}

func TestShallowInsertion(t *testing.T) {
	tree := NewTree("a", 2)
	for _, v := range viewers(6) {
		if _, err := tree.Insert(v); err != nil {
			t.Fatal(err)
		}
	}
	if d := tree.Depth(); d != 3 {
		t.Errorf("depth %v, want 3", d)
	}
	root := tree.Children("a")
	if len(root) != 2 {
		t.Fatalf("root has %v children", len(root))
	}
	for _, c := range root {
		if n := len(tree.Children(c)); n != 2 {
			t.Errorf("%v has %v children, want 2", c, n)
		}
	}
}

func TestDepth(t *testing.T) {
	tests := []struct {
		k, n int
	}{
		{k: 2, n: 1},
		{k: 2, n: 6},
		{k: 2, n: 14},
		{k: 3, n: 12},
		{k: 8, n: 8},
		{k: 8, n: 9},
		{k: 8, n: 72},
		{k: 8, n: 73},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("k%v-n%v", tt.k, tt.n), func(t *testing.T) {
			tree := NewTree("a", tt.k)
			for _, v := range viewers(tt.n) {
				_, _ = tree.Insert(v)
			}
			// levels of a complete k-ary tree holding n+1 nodes
			want := int(math.Ceil(math.Log(float64((tt.n+1)*(tt.k-1)+1))/math.Log(float64(tt.k)) - 1e-9))
			if got := tree.Depth(); got != want {
				t.Errorf("depth %v, want %v", got, want)
			}
			if tree.MaxChildren() > tt.k {
				t.Errorf("fan-out %v over %v", tree.MaxChildren(), tt.k)
			}
		})
	}
}

func TestInsertUnder(t *testing.T) {
	tree := NewTree("a", 1)
	tests := []struct {
		name   string
		parent string
		conn   string
		err    error
	}{
		{"ok", "a", "b", nil},
		{"full", "a", "c", ErrNodeFull},
		{"exists", "b", "a", ErrNodeExists},
		{"no parent", "x", "c", ErrNodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tree.InsertUnder(tt.parent, tt.conn); err != tt.err {
				t.Errorf("InsertUnder() = %v, want %v", err, tt.err)
			}
		})
	}
}

func TestDetach(t *testing.T) {
	tree := NewTree("a", 2)
	for _, v := range viewers(10) {
		_, _ = tree.Insert(v)
	}
	// v1 -> v3, v4 -> v7, v8, v9, v10
	dropped, err := tree.Detach("v1")
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"v3", "v4", "v7", "v8", "v9", "v10"}
	if fmt.Sprint(dropped) != fmt.Sprint(want) {
		t.Errorf("dropped %v, want %v", dropped, want)
	}
	if tree.Len() != 4 {
		t.Errorf("expected a, v2, v5, v6 left, got %v", tree.Nodes())
	}
	if _, err = tree.Detach("a"); err == nil {
		t.Errorf("root should not be detached")
	}
	if _, err = tree.Detach("v1"); err != ErrNodeNotFound {
		t.Errorf("expected not found, got %v", err)
	}

	// freed slots are reused
	parent, _ := tree.Insert("x")
	if parent != "a" {
		t.Errorf("x should be under a, got %v", parent)
	}
	if p, _ := tree.Parent("x"); p != "a" || tree.Level("x") != 1 {
		t.Errorf("wrong place of x: %v %v", p, tree.Level("x"))
	}
	if fmt.Sprint(tree.BFSFrom("a")) != "[a v2 x v5 v6]" {
		t.Errorf("unexpected order %v", tree.BFSFrom("a"))
	}
}
