package flow

// Schedule computes a parallel execution schedule for a validated Flow
// Instance: an ordered list of node-ID groups where every node in group i
// has all of its dependencies in groups 0..i-1 and no dependency on any
// other node of group i (spec.md §4.3). Call Schedule only after Validate
// has confirmed the flow is acyclic; Schedule re-derives in-degrees rather
// than trusting a cached topological order, since cycle detection is cheap
// and keeps this function safe to call standalone.
func Schedule(f *FlowInstance) ([][]string, error) {
	inDegree := make(map[string]int, len(f.Nodes))
	adj := make(map[string][]string, len(f.Nodes))
	for id := range f.Nodes {
		inDegree[id] = 0
	}
	for _, e := range f.Edges {
		adj[e.SourceID] = append(adj[e.SourceID], e.TargetID)
		inDegree[e.TargetID]++
	}
	for id, node := range f.Nodes {
		for _, b := range node.InputBindings {
			if b.Kind != BindingDynamic {
				continue
			}
			if _, ok := f.Nodes[b.RefNode]; !ok {
				continue
			}
			adj[b.RefNode] = append(adj[b.RefNode], id)
			inDegree[id]++
		}
	}

	scheduled := make(map[string]bool, len(f.Nodes))
	var groups [][]string

	for len(scheduled) < len(f.Nodes) {
		var group []string
		for id, d := range inDegree {
			if d == 0 && !scheduled[id] {
				group = append(group, id)
			}
		}
		if len(group) == 0 {
			return nil, ErrCycleDetected
		}
		sortStrings(group)
		for _, id := range group {
			scheduled[id] = true
		}
		for _, id := range group {
			for _, tgt := range adj[id] {
				inDegree[tgt]--
			}
		}
		groups = append(groups, group)
	}
	return groups, nil
}
