// Package pathtree is an immutable ordered trie holding a bag of values at
// every node. Paths are lists of string segments; branches keep the order in
// which their first value was put.
//
// Usage:
//
//	t := pathtree.New[string]()
//	t = t.Put([]string{"posts", "comments"}, "x")
//	t.Get("posts").Keys()                         // ["comments"]
//	t.Match([]string{"posts", "comments"})        // ["x"]
package pathtree

// Wildcard matches any single segment in Match.
const Wildcard = "*"

// Tree is safe to share: Put returns a new tree and never modifies the
// receiver. The zero value and nil are empty trees.
type Tree[V any] struct {
	values   []V
	keys     []string
	branches map[string]*Tree[V]
}

func New[V any]() *Tree[V] {
	return &Tree[V]{}
}

// Put returns a tree with v appended to the values at path. Nodes off the
// path are shared with the receiver.
func (t *Tree[V]) Put(path []string, v V) *Tree[V] {
	next := t.clone()
	if len(path) == 0 {
		next.values = append(next.values, v)
		return next
	}

	key := path[0]
	child, ok := next.branches[key]
	if !ok {
		next.keys = append(next.keys, key)
	}
	next.branches[key] = child.Put(path[1:], v)
	return next
}

// clone copies the node itself; its children are shared.
func (t *Tree[V]) clone() *Tree[V] {
	c := &Tree[V]{branches: make(map[string]*Tree[V])}
	if t == nil {
		return c
	}
	c.values = append([]V(nil), t.values...)
	c.keys = append([]string(nil), t.keys...)
	for k, b := range t.branches {
		c.branches[k] = b
	}
	return c
}

// Get returns the branch at key, or nil.
func (t *Tree[V]) Get(key string) *Tree[V] {
	if t == nil {
		return nil
	}
	return t.branches[key]
}

// Keys returns the branch keys in insertion order.
func (t *Tree[V]) Keys() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.keys...)
}

// Values returns the values put directly at this node.
func (t *Tree[V]) Values() []V {
	if t == nil {
		return nil
	}
	return append([]V(nil), t.values...)
}

// Empty reports whether the tree holds no values and no branches.
func (t *Tree[V]) Empty() bool {
	return t == nil || (len(t.values) == 0 && len(t.keys) == 0)
}

// Match returns the values at path, following a Wildcard branch when a
// segment has no branch of its own. No match returns nil.
func (t *Tree[V]) Match(path []string) []V {
	node := t
	for _, key := range path {
		if node == nil {
			return nil
		}
		next, ok := node.branches[key]
		if !ok {
			next = node.branches[Wildcard]
		}
		node = next
	}
	return node.Values()
}

// Walk visits every node depth first, parents before children, with the
// path leading to it.
func (t *Tree[V]) Walk(fn func(path []string, node *Tree[V])) {
	t.walk(nil, fn)
}

func (t *Tree[V]) walk(path []string, fn func([]string, *Tree[V])) {
	if t == nil {
		return
	}
	fn(path, t)
	for _, k := range t.keys {
		p := append(append([]string(nil), path...), k)
		t.branches[k].walk(p, fn)
	}
}
