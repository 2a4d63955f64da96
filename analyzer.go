package neurons

import mapset "github.com/deckarep/golang-set"

// CountConnectedComponents counts the components of the graph with links
// taken as undirected edges. Each breadth-first search started from a
// node not yet reached adds one component.
func CountConnectedComponents(nodes []*Node, links []Link) int {
	a := newAdjacency(nodes, links)
	visited := make([]bool, len(nodes))
	components := 0

	for root := range nodes {
		if visited[root] {
			continue
		}
		components++
		visited[root] = true
		queue := []int{root}
		for len(queue) > 0 {
			cur := queue[0]
			queue = queue[1:]
			for _, nbs := range [][]int{a.pred[cur], a.succ[cur]} {
				for _, nb := range nbs {
					if !visited[nb] {
						visited[nb] = true
						queue = append(queue, nb)
					}
				}
			}
		}
	}
	return components
}

// ContainsDirectedCycle reports whether two or more nodes are mutually
// reachable along links.
//
// Kosaraju's algorithm: the first pass is the topological order; the second
// pass takes nodes in that order and gives every still unassigned node
// reachable backwards (through link inputs) to the component rooted at the
// current node. A component with more than one member is a cycle. Self
// links form single-node components and are not reported.
func ContainsDirectedCycle(nodes []*Node, links []Link) bool {
	a := newAdjacency(nodes, links)
	assigned := make([]bool, len(nodes))

	for _, root := range a.sortedPositions() {
		if assigned[root] {
			continue
		}
		size := 0
		assigned[root] = true
		stack := []int{root}
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			size++
			for _, p := range a.pred[cur] {
				if !assigned[p] {
					assigned[p] = true
					stack = append(stack, p)
				}
			}
		}
		if size > 1 {
			return true
		}
	}
	return false
}

// AreNodeInputsSatisfied reports whether every node other than a source
// has at least one link flowing into it. A self link does not count.
func AreNodeInputsSatisfied(nodes []*Node, links []Link) bool {
	unsatisfied := mapset.NewThreadUnsafeSet()
	for _, n := range nodes {
		unsatisfied.Add(n.ID)
	}
	for _, l := range links {
		if l.Output != l.Input {
			unsatisfied.Remove(l.Output)
		}
	}

	byID := make(map[int64]*Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}
	for _, id := range unsatisfied.ToSlice() {
		if !byID[id.(int64)].Kind.IsSource() {
			return false
		}
	}
	return true
}

// AreNodeOutputsSatisfied reports whether every node other than a loss node
// has at least one link flowing out of it. A self link does not count.
func AreNodeOutputsSatisfied(nodes []*Node, links []Link) bool {
	feeds := make(map[int64]bool, len(nodes))
	for _, l := range links {
		if l.Input != l.Output {
			feeds[l.Input] = true
		}
	}
	for _, n := range nodes {
		if !n.Kind.IsLoss() && !feeds[n.ID] {
			return false
		}
	}
	return true
}
