package preference

import "github.com/okian/prefrank/internal/domain/model"

// DFS colours for HasCycle.
const (
	unvisited uint8 = iota
	inProgress
	done
)

// HasCycle reports whether any preference cycle exists. Every node is used
// as a DFS root, so disjoint cycles are all found. The walk is iterative
// to keep stack depth independent of graph size.
func (g *Graph) HasCycle() bool {
	type frame struct {
		id   model.ItemID
		next []model.ItemID
		pos  int
	}

	state := make(map[model.ItemID]uint8, len(g.adj))
	for _, root := range g.Items() {
		if state[root] != unvisited {
			continue
		}
		state[root] = inProgress
		stack := []frame{{id: root, next: g.successors(root)}}
		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			if top.pos == len(top.next) {
				state[top.id] = done
				stack = stack[:len(stack)-1]
				continue
			}
			n := top.next[top.pos]
			top.pos++
			switch state[n] {
			case inProgress:
				return true
			case unvisited:
				state[n] = inProgress
				stack = append(stack, frame{id: n, next: g.successors(n)})
			}
		}
	}
	return false
}

// CreatesCycle reports whether recording "winner beats loser" would close a
// cycle. Any existing loser -> winner edge is treated as replaced, matching
// AddPreference. The real graph is not modified.
func (g *Graph) CreatesCycle(winner, loser model.ItemID) bool {
	if winner == loser {
		return true
	}
	return g.reachable(loser, winner, model.Edge{Winner: loser, Loser: winner})
}

// WillCreateCycle reports whether either orientation of the pair would
// create a cycle. Both are checked because the caller may not yet know
// which direction will be recorded.
func (g *Graph) WillCreateCycle(a, b model.ItemID) bool {
	return g.CreatesCycle(a, b) || g.CreatesCycle(b, a)
}

// reachable reports whether a path from -> to exists without using skip.
func (g *Graph) reachable(from, to model.ItemID, skip model.Edge) bool {
	if _, ok := g.adj[from]; !ok {
		return false
	}
	if _, ok := g.adj[to]; !ok {
		return false
	}
	visited := map[model.ItemID]struct{}{from: {}}
	stack := []model.ItemID{from}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for next := range g.adj[cur] {
			if cur == skip.Winner && next == skip.Loser {
				continue
			}
			if next == to {
				return true
			}
			if _, seen := visited[next]; seen {
				continue
			}
			visited[next] = struct{}{}
			stack = append(stack, next)
		}
	}
	return false
}
