package graph

// Apply is the pure state-transition function. It returns a new graph for
// every effective mutation and the same graph reference for structural
// no-ops (actions referencing missing ids), so callers can detect no-ops by
// pointer comparison. The receiver is never modified.
func (g *Graph) Apply(a Action) *Graph {
	switch act := a.(type) {
	case AddNode:
		if act.Node == nil {
			return g
		}
		next := g.Clone()
		next.nodes[act.Node.ID] = act.Node.Clone()
		return next

	case PatchNode:
		if !g.Has(act.ID) {
			return g
		}
		next := g.Clone()
		act.Patch.ApplyTo(next.nodes[act.ID])
		return next

	case Link:
		if !g.Has(act.FromID) || !g.Has(act.ToID) {
			return g
		}
		next := g.Clone()
		from := next.nodes[act.FromID]
		to := next.nodes[act.ToID]
		if !from.HasChild(act.ToID) {
			from.ChildrenIDs = append(from.ChildrenIDs, act.ToID)
		}
		if !to.HasParent(act.FromID) {
			to.ParentIDs = append(to.ParentIDs, act.FromID)
		}
		return next

	case MoveNode:
		if !g.Has(act.ID) {
			return g
		}
		next := g.Clone()
		n := next.nodes[act.ID]
		n.X += act.DX
		n.Y += act.DY
		if act.Pinned != nil {
			n.Pinned = *act.Pinned
		}
		return next

	case DeleteCascade:
		if !g.Has(act.ID) {
			return g
		}
		doomed := g.cascadeSet(act.ID)
		next := New()
		for id, n := range g.nodes {
			if doomed[id] {
				continue
			}
			c := n.Clone()
			c.ParentIDs = without(c.ParentIDs, doomed)
			c.ChildrenIDs = without(c.ChildrenIDs, doomed)
			next.nodes[id] = c
		}
		return next

	case DeleteDetach:
		if !g.Has(act.ID) {
			return g
		}
		gone := map[string]bool{act.ID: true}
		next := New()
		for id, n := range g.nodes {
			if id == act.ID {
				continue
			}
			c := n.Clone()
			c.ParentIDs = without(c.ParentIDs, gone)
			c.ChildrenIDs = without(c.ChildrenIDs, gone)
			next.nodes[id] = c
		}
		return next

	case Restore:
		if act.Snapshot == nil {
			return g
		}
		return act.Snapshot.Clone()
	}

	return g
}

// cascadeSet computes the deletion set for DeleteCascade: the start node
// plus every descendant all of whose parents are themselves doomed. A node
// with a surviving parent outside the set is a branch point that stays, and
// nothing below it is swept. Runs to a fixpoint so that a node whose second
// parent is doomed late in the walk is still caught.
func (g *Graph) cascadeSet(startID string) map[string]bool {
	doomed := map[string]bool{startID: true}
	for {
		grew := false
		stack := []string{startID}
		visited := map[string]bool{startID: true}
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			n := g.nodes[id]
			if n == nil {
				continue
			}
			for _, childID := range n.ChildrenIDs {
				if visited[childID] {
					continue
				}
				visited[childID] = true
				child := g.nodes[childID]
				if child == nil {
					continue
				}
				if !doomed[childID] && allDoomed(child.ParentIDs, doomed) {
					doomed[childID] = true
					grew = true
				}
				if doomed[childID] {
					stack = append(stack, childID)
				}
			}
		}
		if !grew {
			return doomed
		}
	}
}

func allDoomed(parents []string, doomed map[string]bool) bool {
	for _, p := range parents {
		if !doomed[p] {
			return false
		}
	}
	return true
}

func without(ids []string, drop map[string]bool) []string {
	out := ids[:0]
	for _, id := range ids {
		if !drop[id] {
			out = append(out, id)
		}
	}
	return out
}
