package neurons

import mapset "github.com/deckarep/golang-set"

// IsConsistent reports whether nodes and links can be analyzed: no nil
// node, node ids pairwise unique, link ids pairwise unique and disjoint from
// node ids, and every link endpoint a member of nodes. Empty input is
// consistent.
//
// Every other analysis in this package assumes IsConsistent holds.
func IsConsistent(nodes []*Node, links []Link) bool {
	ids := mapset.NewThreadUnsafeSet()
	members := mapset.NewThreadUnsafeSet()
	for _, n := range nodes {
		if n == nil {
			return false
		}
		if !ids.Add(n.ID) {
			return false
		}
		members.Add(n.ID)
	}

	for _, l := range links {
		// Add reports false when the id is already taken by a node or link.
		if !ids.Add(l.ID) {
			return false
		}
		if !members.Contains(l.Input) || !members.Contains(l.Output) {
			return false
		}
	}
	return true
}
