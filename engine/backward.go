package engine

// TopoOrder returns every node reachable from root, each one placed after
// all of its children.
//
// This is a depth-first post-order walk: children are visited in operand
// order before the node itself is appended. An explicit stack replaces
// recursion so long chains cannot overflow the goroutine stack.
func TopoOrder(root *Value) []*Value {
	type frame struct {
		node *Value
		next int // index of the next child to visit
	}

	var topo []*Value
	visited := map[*Value]bool{root: true}
	stack := []frame{{node: root}}

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(top.node.children) {
			child := top.node.children[top.next]
			top.next++
			if !visited[child] {
				visited[child] = true
				stack = append(stack, frame{node: child})
			}
			continue
		}
		topo = append(topo, top.node)
		stack = stack[:len(stack)-1]
	}
	return topo
}

// Backward fills in the gradient of v with respect to every node it was
// built from.
//
// TopoOrder lists children before the nodes built from them. Walking that
// list from the end starts at v (seeded with dv/dv = 1), so a node's Grad
// has received every consumer's contribution before it is pushed further
// down to its own children.
//
// Gradients are added, never overwritten. Reset them (see ZeroGrad) before
// differentiating a new graph that shares nodes with an old one.
func (v *Value) Backward() {
	topo := TopoOrder(v)

	v.Grad = 1
	for i := len(topo) - 1; i >= 0; i-- {
		topo[i].propagate()
	}
}
