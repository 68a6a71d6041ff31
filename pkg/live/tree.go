package live

import "errors"

var (
	ErrNodeExists   = errors.New("node exists")
	ErrNodeNotFound = errors.New("node not found")
	ErrNodeFull     = errors.New("node is full")
)

const none = -1

type node struct {
	conn     string
	parent   int
	children []int
}

// Tree is a relay tree kept in an arena of nodes addressed by index.
// Every node has at most fanOut children.
type Tree struct {
	fanOut int
	nodes  []node
	index  map[string]int
	free   []int
}

func NewTree(root string, fanOut int) *Tree {
	if fanOut < 1 {
		fanOut = 1
	}
	t := &Tree{fanOut: fanOut, index: map[string]int{}}
	t.alloc(root, none)
	return t
}

func (t *Tree) alloc(conn string, parent int) int {
	n := node{conn: conn, parent: parent}
	var i int
	if l := len(t.free); l > 0 {
		i = t.free[l-1]
		t.free = t.free[:l-1]
		t.nodes[i] = n
	} else {
		i = len(t.nodes)
		t.nodes = append(t.nodes, n)
	}
	t.index[conn] = i
	return i
}

func (t *Tree) FanOut() int  { return t.fanOut }
func (t *Tree) Root() string { return t.nodes[0].conn }
func (t *Tree) Len() int     { return len(t.index) }

func (t *Tree) Has(conn string) bool { _, ok := t.index[conn]; return ok }

// Parent returns the parent of the node, false for the root and unknown nodes.
func (t *Tree) Parent(conn string) (string, bool) {
	i, ok := t.index[conn]
	if !ok || t.nodes[i].parent == none {
		return "", false
	}
	return t.nodes[t.nodes[i].parent].conn, true
}

func (t *Tree) Children(conn string) []string {
	i, ok := t.index[conn]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(t.nodes[i].children))
	for _, c := range t.nodes[i].children {
		out = append(out, t.nodes[c].conn)
	}
	return out
}

// InsertUnder adds a new node as the last child of the parent.
func (t *Tree) InsertUnder(parent, conn string) error {
	p, ok := t.index[parent]
	if !ok {
		return ErrNodeNotFound
	}
	if t.Has(conn) {
		return ErrNodeExists
	}
	if len(t.nodes[p].children) >= t.fanOut {
		return ErrNodeFull
	}
	i := t.alloc(conn, p)
	t.nodes[p].children = append(t.nodes[p].children, i)
	return nil
}

func (t *Tree) bfs(from int) []int {
	out := []int{from}
	for k := 0; k < len(out); k++ {
		out = append(out, t.nodes[out[k]].children...)
	}
	return out
}

// BFSFrom returns the subtree of the node in level order, the node first.
func (t *Tree) BFSFrom(conn string) []string {
	i, ok := t.index[conn]
	if !ok {
		return nil
	}
	order := t.bfs(i)
	out := make([]string, 0, len(order))
	for _, n := range order {
		out = append(out, t.nodes[n].conn)
	}
	return out
}

// Nodes returns all nodes in level order from the root.
func (t *Tree) Nodes() []string { return t.BFSFrom(t.Root()) }

// FirstWithCapacity returns the first node in level order with a free child slot.
func (t *Tree) FirstWithCapacity() string {
	for _, i := range t.bfs(0) {
		if len(t.nodes[i].children) < t.fanOut {
			return t.nodes[i].conn
		}
	}
	// unreachable, leaves always have capacity
	return t.Root()
}

// Insert puts a new node under the first node with capacity and returns its parent.
func (t *Tree) Insert(conn string) (string, error) {
	parent := t.FirstWithCapacity()
	if err := t.InsertUnder(parent, conn); err != nil {
		return "", err
	}
	return parent, nil
}

// Detach removes the node with its whole subtree and returns the dropped
// descendants in level order. The root can't be detached.
func (t *Tree) Detach(conn string) ([]string, error) {
	i, ok := t.index[conn]
	if !ok {
		return nil, ErrNodeNotFound
	}
	if i == 0 {
		return nil, errors.New("can't detach the root")
	}

	p := t.nodes[i].parent
	siblings := t.nodes[p].children
	for k, c := range siblings {
		if c == i {
			t.nodes[p].children = append(siblings[:k:k], siblings[k+1:]...)
			break
		}
	}

	order := t.bfs(i)
	dropped := make([]string, 0, len(order)-1)
	for k, n := range order {
		if k > 0 {
			dropped = append(dropped, t.nodes[n].conn)
		}
		delete(t.index, t.nodes[n].conn)
		t.nodes[n] = node{parent: none}
		t.free = append(t.free, n)
	}
	return dropped, nil
}

// Level returns the level of the node, the root is at level 0.
func (t *Tree) Level(conn string) int {
	i, ok := t.index[conn]
	if !ok {
		return none
	}
	l := 0
	for t.nodes[i].parent != none {
		i = t.nodes[i].parent
		l++
	}
	return l
}

// Depth returns the number of levels in the tree, a lone root is 1.
func (t *Tree) Depth() int {
	depth := 0
	level := []int{0}
	for len(level) > 0 {
		depth++
		var next []int
		for _, i := range level {
			next = append(next, t.nodes[i].children...)
		}
		level = next
	}
	return depth
}

// MaxChildren returns the largest number of children of any node.
func (t *Tree) MaxChildren() int {
	m := 0
	for _, i := range t.index {
		if n := len(t.nodes[i].children); n > m {
			m = n
		}
	}
	return m
}
