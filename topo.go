package neurons

// adjacency indexes a consistent snapshot by node position. Neighbor lists
// keep link order, so traversals are deterministic.
type adjacency struct {
	index map[int64]int
	succ  [][]int // positions linked to by each node
	pred  [][]int // positions linking into each node
}

func newAdjacency(nodes []*Node, links []Link) *adjacency {
	a := &adjacency{
		index: make(map[int64]int, len(nodes)),
		succ:  make([][]int, len(nodes)),
		pred:  make([][]int, len(nodes)),
	}
	for i, n := range nodes {
		a.index[n.ID] = i
	}
	for _, l := range links {
		in, out := a.index[l.Input], a.index[l.Output]
		a.succ[in] = append(a.succ[in], out)
		a.pred[out] = append(a.pred[out], in)
	}
	return a
}

// frame is one level of an explicit depth-first stack.
type frame struct {
	node int
	next int // next neighbor to visit
}

// postorder visits every node reachable from start along succ and appends
// each one to order once all of its successors are finished.
func (a *adjacency) postorder(start int, visited []bool, order []int) []int {
	if visited[start] {
		return order
	}
	visited[start] = true
	stack := []frame{{node: start}}
	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next < len(a.succ[top.node]) {
			nb := a.succ[top.node][top.next]
			top.next++
			if !visited[nb] {
				visited[nb] = true
				stack = append(stack, frame{node: nb})
			}
			continue
		}
		order = append(order, top.node)
		stack = stack[:len(stack)-1]
	}
	return order
}

// sortedPositions returns node positions in topological order.
func (a *adjacency) sortedPositions() []int {
	n := len(a.succ)
	visited := make([]bool, n)
	order := make([]int, 0, n)
	for i := 0; i < n; i++ {
		order = a.postorder(i, visited, order)
	}
	// Pushing each finished node onto the front of the result is the
	// reverse of finish order.
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// TopologicalSort orders nodes so that, for every link, the input node
// comes before the output node. Nodes on a directed cycle end up in an
// arbitrary relative order. The returned slice shares node pointers with
// nodes.
//
// Depth-first visitation starts from each node in input order and follows
// links in link order, so the result is deterministic.
func TopologicalSort(nodes []*Node, links []Link) []*Node {
	a := newAdjacency(nodes, links)
	sorted := make([]*Node, 0, len(nodes))
	for _, pos := range a.sortedPositions() {
		sorted = append(sorted, nodes[pos])
	}
	return sorted
}
