package index

import (
	"sort"

	"github.com/kasuganosora/cynos/dberr"
	"github.com/kasuganosora/cynos/value"
)

// nodeID is a 32-bit arena index; 0 is never a valid allocated node so it
// doubles as a nil sentinel.
type nodeID uint32

const nilNode nodeID = 0

// branchingFactor is the target max key count per node before a split.
const branchingFactor = 64

type btreeNode struct {
	leaf     bool
	keys     []value.Value
	postings [][]value.RowId // leaf only: per-key row id list, same index as keys
	children []nodeID        // internal only: len(children) == len(keys)+1
	prev     nodeID          // leaf only: doubly linked leaf chain
	next     nodeID          // leaf only
}

// BTree is a classical leaf-linked B+Tree, arena-allocated with 32-bit
// node identifiers, grounded on
// original_source/crates/index/src/btree/{node,iter}.rs.
type BTree struct {
	arena     []btreeNode // index 0 is a dummy so nodeID 0 means "absent"
	root      nodeID
	firstLeaf nodeID
	lastLeaf  nodeID
	unique    bool
	size      int
	stats     Stats
}

func NewBTree(unique bool) *BTree {
	t := &BTree{arena: make([]btreeNode, 1), unique: unique}
	root := t.alloc(btreeNode{leaf: true})
	t.root = root
	t.firstLeaf = root
	t.lastLeaf = root
	return t
}

func (t *BTree) alloc(n btreeNode) nodeID {
	t.arena = append(t.arena, n)
	return nodeID(len(t.arena) - 1)
}

func (t *BTree) node(id nodeID) *btreeNode { return &t.arena[id] }

func (t *BTree) Stats() *Stats { return &t.stats }

func (t *BTree) Len() int { return t.size }

func (t *BTree) Clear() {
	t.arena = make([]btreeNode, 1)
	root := t.alloc(btreeNode{leaf: true})
	t.root = root
	t.firstLeaf = root
	t.lastLeaf = root
	t.size = 0
}

// findLeaf walks from root to the leaf that would contain key.
func (t *BTree) findLeaf(key value.Value) nodeID {
	cur := t.root
	for !t.node(cur).leaf {
		n := t.node(cur)
		i := sort.Search(len(n.keys), func(i int) bool { return value.Compare(key, n.keys[i]) < 0 })
		cur = n.children[i]
	}
	return cur
}

func (t *BTree) Add(key value.Value, id value.RowId) error {
	if t.unique && !key.IsNull() {
		if existing := t.Get(key); len(existing) > 0 {
			return dberr.NewUniqueConstraint("", "", key.AsString())
		}
	}
	t.insert(key, id)
	return nil
}

func (t *BTree) Set(key value.Value, id value.RowId) {
	leaf := t.node(t.findLeaf(key))
	i := sort.Search(len(leaf.keys), func(i int) bool { return value.Compare(leaf.keys[i], key) >= 0 })
	if i < len(leaf.keys) && value.Equal(leaf.keys[i], key) {
		leaf.postings[i] = []value.RowId{id}
		return
	}
	t.insert(key, id)
}

func (t *BTree) insert(key value.Value, id value.RowId) {
	leafID := t.findLeaf(key)
	leaf := t.node(leafID)
	i := sort.Search(len(leaf.keys), func(i int) bool { return value.Compare(leaf.keys[i], key) >= 0 })
	if i < len(leaf.keys) && value.Equal(leaf.keys[i], key) {
		leaf.postings[i] = append(leaf.postings[i], id)
	} else {
		leaf.keys = append(leaf.keys, value.Null())
		copy(leaf.keys[i+1:], leaf.keys[i:])
		leaf.keys[i] = key

		leaf.postings = append(leaf.postings, nil)
		copy(leaf.postings[i+1:], leaf.postings[i:])
		leaf.postings[i] = []value.RowId{id}
	}
	t.size++
	t.stats.IncRows(1)
	t.stats.ObserveKey(key)

	if len(leaf.keys) > branchingFactor {
		t.splitLeaf(leafID)
	}
}

// splitLeaf splits an overfull leaf and propagates the split key upward.
func (t *BTree) splitLeaf(leafID nodeID) {
	leaf := t.node(leafID)
	mid := len(leaf.keys) / 2

	rightKeys := append([]value.Value(nil), leaf.keys[mid:]...)
	rightPostings := append([][]value.RowId(nil), leaf.postings[mid:]...)
	rightID := t.alloc(btreeNode{leaf: true, keys: rightKeys, postings: rightPostings, next: leaf.next})

	leaf = t.node(leafID) // re-fetch: alloc may have reallocated the slice
	oldNext := leaf.next
	leaf.keys = leaf.keys[:mid]
	leaf.postings = leaf.postings[:mid]
	leaf.next = rightID
	t.node(rightID).prev = leafID
	if oldNext != nilNode {
		t.node(oldNext).prev = rightID
	} else {
		t.lastLeaf = rightID
	}

	splitKey := t.node(rightID).keys[0]
	t.insertIntoParent(leafID, splitKey, rightID)
}

// insertIntoParent inserts (splitKey, rightChild) into left's parent,
// creating a new root if left had none. The tree does not store parent
// pointers, so it re-walks from root to locate left's parent.
func (t *BTree) insertIntoParent(left nodeID, splitKey value.Value, right nodeID) {
	parent := t.findParent(t.root, left)
	if parent == nilNode {
		newRoot := t.alloc(btreeNode{keys: []value.Value{splitKey}, children: []nodeID{left, right}})
		t.root = newRoot
		return
	}
	p := t.node(parent)
	i := 0
	for p.children[i] != left {
		i++
	}
	p.keys = append(p.keys, value.Null())
	copy(p.keys[i+1:], p.keys[i:])
	p.keys[i] = splitKey

	p.children = append(p.children, nilNode)
	copy(p.children[i+2:], p.children[i+1:])
	p.children[i+1] = right

	if len(p.keys) > branchingFactor {
		t.splitInternal(parent)
	}
}

func (t *BTree) splitInternal(id nodeID) {
	n := t.node(id)
	mid := len(n.keys) / 2
	splitKey := n.keys[mid]

	rightKeys := append([]value.Value(nil), n.keys[mid+1:]...)
	rightChildren := append([]nodeID(nil), n.children[mid+1:]...)
	rightID := t.alloc(btreeNode{keys: rightKeys, children: rightChildren})

	n = t.node(id)
	n.keys = n.keys[:mid]
	n.children = n.children[:mid+1]

	t.insertIntoParent(id, splitKey, rightID)
}

func (t *BTree) findParent(cur, child nodeID) nodeID {
	n := t.node(cur)
	if n.leaf {
		return nilNode
	}
	for _, c := range n.children {
		if c == child {
			return cur
		}
	}
	for _, c := range n.children {
		if p := t.findParent(c, child); p != nilNode {
			return p
		}
	}
	return nilNode
}

func (t *BTree) Get(key value.Value) []value.RowId {
	leaf := t.node(t.findLeaf(key))
	i := sort.Search(len(leaf.keys), func(i int) bool { return value.Compare(leaf.keys[i], key) >= 0 })
	if i < len(leaf.keys) && value.Equal(leaf.keys[i], key) {
		out := make([]value.RowId, len(leaf.postings[i]))
		copy(out, leaf.postings[i])
		return out
	}
	return nil
}

func (t *BTree) ContainsKey(key value.Value) bool { return len(t.Get(key)) > 0 }

func (t *BTree) Remove(key value.Value, id *value.RowId) {
	leafID := t.findLeaf(key)
	leaf := t.node(leafID)
	i := sort.Search(len(leaf.keys), func(i int) bool { return value.Compare(leaf.keys[i], key) >= 0 })
	if i >= len(leaf.keys) || !value.Equal(leaf.keys[i], key) {
		return
	}
	if id == nil {
		t.size -= len(leaf.postings[i])
		t.stats.IncRows(-int64(len(leaf.postings[i])))
		leaf.keys = append(leaf.keys[:i], leaf.keys[i+1:]...)
		leaf.postings = append(leaf.postings[:i], leaf.postings[i+1:]...)
		return
	}
	list := leaf.postings[i]
	for j, rid := range list {
		if rid == *id {
			leaf.postings[i] = append(list[:j], list[j+1:]...)
			t.size--
			t.stats.IncRows(-1)
			break
		}
	}
	if len(leaf.postings[i]) == 0 {
		leaf.keys = append(leaf.keys[:i], leaf.keys[i+1:]...)
		leaf.postings = append(leaf.postings[:i], leaf.postings[i+1:]...)
	}
}

func (t *BTree) Min() (value.Value, []value.RowId, bool) {
	leaf := t.node(t.firstLeaf)
	for len(leaf.keys) == 0 && leaf.next != nilNode {
		leaf = t.node(leaf.next)
	}
	if len(leaf.keys) == 0 {
		return value.Null(), nil, false
	}
	return leaf.keys[0], leaf.postings[0], true
}

func (t *BTree) Max() (value.Value, []value.RowId, bool) {
	leaf := t.node(t.lastLeaf)
	for len(leaf.keys) == 0 && leaf.prev != nilNode {
		leaf = t.node(leaf.prev)
	}
	if len(leaf.keys) == 0 {
		return value.Null(), nil, false
	}
	last := len(leaf.keys) - 1
	return leaf.keys[last], leaf.postings[last], true
}

// Cost estimates the row count a range would return, used by the
// optimizer's cost model.
func (t *BTree) Cost(r Range) int {
	if r.Kind == RangeOnly {
		return len(t.Get(r.Only))
	}
	return t.size
}

// GetRange walks the leaf chain, collecting row ids from keys within r,
// ascending or descending, honoring limit/skip.
func (t *BTree) GetRange(r Range, reverse bool, limit, skip int) []value.RowId {
	var out []value.RowId
	emit := func(ids []value.RowId) bool {
		for _, id := range ids {
			if skip > 0 {
				skip--
				continue
			}
			out = append(out, id)
			if limit > 0 && len(out) >= limit {
				return false
			}
		}
		return true
	}

	if !reverse {
		leaf := t.startLeaf(r, false)
		for leaf != nilNode {
			n := t.node(leaf)
			for i, k := range n.keys {
				if r.Kind == RangeUpperBound || r.Kind == RangeBound {
					if !r.within(k) {
						if t.pastUpper(r, k) {
							return out
						}
						continue
					}
				} else if !r.within(k) {
					continue
				}
				if !emit(n.postings[i]) {
					return out
				}
			}
			leaf = n.next
		}
		return out
	}

	leaf := t.startLeaf(r, true)
	for leaf != nilNode {
		n := t.node(leaf)
		for i := len(n.keys) - 1; i >= 0; i-- {
			k := n.keys[i]
			if !r.within(k) {
				if t.pastLowerReverse(r, k) {
					return out
				}
				continue
			}
			if !emit(n.postings[i]) {
				return out
			}
		}
		leaf = n.prev
	}
	return out
}

func (t *BTree) startLeaf(r Range, reverse bool) nodeID {
	if !reverse {
		return t.firstLeaf
	}
	return t.lastLeaf
}

func (t *BTree) pastUpper(r Range, k value.Value) bool {
	if r.Kind != RangeUpperBound && r.Kind != RangeBound {
		return false
	}
	c := value.Compare(k, r.Hi)
	if r.HiIncl {
		return c > 0
	}
	return c >= 0
}

func (t *BTree) pastLowerReverse(r Range, k value.Value) bool {
	if r.Kind != RangeLowerBound && r.Kind != RangeBound {
		return false
	}
	c := value.Compare(k, r.Lo)
	if r.LoIncl {
		return c < 0
	}
	return c <= 0
}
