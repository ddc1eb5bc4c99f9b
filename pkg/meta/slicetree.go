package meta

import "strconv"

// SliceTree reconciles overlapping write slices into the canonical ordered,
// non-overlapping list a file layout stores. New writes win: inserting a
// slice cuts every older slice out of its range, trimming, splitting, or
// deleting them as needed.
//
// The structure is a binary search tree keyed by file offset. It is not
// safe for concurrent use; callers serialize per file.
type SliceTree struct {
	root *sliceNode
	size int
}

// sliceNode covers the file range [pos, pos+length), backed by storage
// object id starting at off within that object.
type sliceNode struct {
	pos    uint64
	id     uint64
	size   uint64 // total size of the backing storage object
	off    uint64 // offset of this slice's data within the object
	length uint64

	// storageKey is carried through cuts when the slice entered via
	// InsertInfo; Build synthesizes prefix/id keys only when it is empty.
	storageKey string

	left  *sliceNode
	right *sliceNode
}

func (n *sliceNode) end() uint64 {
	return n.pos + n.length
}

// NewSliceTree creates an empty tree.
func NewSliceTree() *SliceTree {
	return &SliceTree{}
}

// Len returns the number of live slices.
func (t *SliceTree) Len() int {
	return t.size
}

// Insert adds a write covering [pos, pos+length), backed by storage object
// id (of total size) at offset off. Existing slices in the range are cut
// first.
func (t *SliceTree) Insert(pos, id, size, off, length uint64) {
	if length == 0 {
		return
	}
	t.root = t.cut(t.root, pos, length)
	t.root = t.insertNode(t.root, &sliceNode{
		pos:    pos,
		id:     id,
		size:   size,
		off:    off,
		length: length,
	})
	t.size++
}

// InsertInfo adds an already-keyed slice, cutting older slices in its range.
// Layout reconciliation uses it to replay a persisted slice list plus one
// new write through the tree.
func (t *SliceTree) InsertInfo(s SliceInfo) {
	if s.Size == 0 {
		return
	}
	t.root = t.cut(t.root, s.Offset, s.Size)
	t.root = t.insertNode(t.root, &sliceNode{
		pos:        s.Offset,
		id:         s.SliceID,
		size:       s.Size,
		length:     s.Size,
		storageKey: s.StorageKey,
	})
	t.size++
}

// cut removes the range [pos, pos+length) from every node in the subtree:
// disjoint nodes stay, fully covered nodes are deleted, a node strictly
// containing the range splits in two, and partially covered nodes are
// clipped on the overlapping side.
func (t *SliceTree) cut(node *sliceNode, pos, length uint64) *sliceNode {
	if node == nil {
		return nil
	}

	end := pos + length
	nodeEnd := node.end()

	node.left = t.cut(node.left, pos, length)
	node.right = t.cut(node.right, pos, length)

	if nodeEnd <= pos || node.pos >= end {
		return node
	}

	if node.pos >= pos && nodeEnd <= end {
		// Fully covered: standard BST delete. With two children the
		// in-order successor is unlinked from the right subtree first,
		// then grafted in place of the node.
		t.size--
		if node.left == nil {
			return node.right
		}
		if node.right == nil {
			return node.left
		}
		min := node.right
		for min.left != nil {
			min = min.left
		}
		min.right = t.removeMin(node.right)
		min.left = node.left
		return min
	}

	switch {
	case node.pos < pos && nodeEnd > end:
		// New write strictly inside: split into left and right remnants.
		rightPart := &sliceNode{
			pos:        end,
			id:         node.id,
			size:       node.size,
			off:        node.off + (end - node.pos),
			length:     nodeEnd - end,
			storageKey: node.storageKey,
		}
		node.length = pos - node.pos
		node.right = t.insertNode(node.right, rightPart)
		t.size++
	case node.pos < pos:
		// Clipped on the right.
		node.length = pos - node.pos
	default:
		// Clipped on the left.
		cutLen := end - node.pos
		node.off += cutLen
		node.length -= cutLen
		node.pos = end
	}

	return node
}

// removeMin detaches the leftmost node from the subtree and returns the
// remaining subtree.
func (t *SliceTree) removeMin(node *sliceNode) *sliceNode {
	if node.left == nil {
		return node.right
	}
	node.left = t.removeMin(node.left)
	return node
}

func (t *SliceTree) insertNode(node, newNode *sliceNode) *sliceNode {
	if node == nil {
		return newNode
	}
	if newNode.pos < node.pos {
		node.left = t.insertNode(node.left, newNode)
	} else {
		node.right = t.insertNode(node.right, newNode)
	}
	return node
}

// Find returns the slice covering pos, or false if pos falls in a hole.
func (t *SliceTree) Find(pos uint64) (SliceInfo, bool) {
	node := t.root
	for node != nil {
		switch {
		case pos < node.pos:
			node = node.left
		case pos >= node.end():
			node = node.right
		default:
			return SliceInfo{
				SliceID:    node.id,
				Offset:     node.pos,
				Size:       node.length,
				StorageKey: node.storageKey,
			}, true
		}
	}
	return SliceInfo{}, false
}

// Range returns the slices intersecting [start, end) in file order.
func (t *SliceTree) Range(start, end uint64) []SliceInfo {
	var out []SliceInfo
	t.rangeCollect(t.root, start, end, &out)
	return out
}

func (t *SliceTree) rangeCollect(node *sliceNode, start, end uint64, out *[]SliceInfo) {
	if node == nil {
		return
	}
	if node.pos >= end {
		t.rangeCollect(node.left, start, end, out)
		return
	}
	if node.end() <= start {
		t.rangeCollect(node.right, start, end, out)
		return
	}
	t.rangeCollect(node.left, start, end, out)
	*out = append(*out, SliceInfo{
		SliceID:    node.id,
		Offset:     node.pos,
		Size:       node.length,
		StorageKey: node.storageKey,
	})
	t.rangeCollect(node.right, start, end, out)
}

// Build emits the canonical slice list for persistence: ascending file
// offset, non-overlapping. Slices that carry a storage key keep it; key-less
// slices get keys of the form keyPrefix/id.
func (t *SliceTree) Build(keyPrefix string) []SliceInfo {
	slices := make([]SliceInfo, 0, t.size)
	t.inorder(t.root, func(n *sliceNode) {
		key := n.storageKey
		if key == "" {
			key = keyPrefix + "/" + strconv.FormatUint(n.id, 10)
		}
		slices = append(slices, SliceInfo{
			SliceID:    n.id,
			Offset:     n.pos,
			Size:       n.length,
			StorageKey: key,
		})
	})
	return slices
}

func (t *SliceTree) inorder(node *sliceNode, visit func(*sliceNode)) {
	if node == nil {
		return
	}
	t.inorder(node.left, visit)
	visit(node)
	t.inorder(node.right, visit)
}
