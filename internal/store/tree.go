package store

import "threadsync/pkg/types"

// findInTree returns the post with the given id, searching depth-first
// through loaded replies. Nil when not loaded client-side.
func findInTree(roots []*types.Post, id string) *types.Post {
	for _, p := range roots {
		if p.ID == id {
			return p
		}
		if found := findInTree(p.Replies, id); found != nil {
			return found
		}
	}
	return nil
}

// mapTree rebuilds the forest depth-first. fn returning nil removes that node
// and, with it, its entire subtree; otherwise the kept node's replies are
// mapped recursively. Edit, delete and per-post count updates all go through
// this single primitive.
func mapTree(roots []*types.Post, fn func(*types.Post) *types.Post) []*types.Post {
	out := make([]*types.Post, 0, len(roots))
	for _, p := range roots {
		mapped := fn(p)
		if mapped == nil {
			continue
		}
		mapped.Replies = mapTree(mapped.Replies, fn)
		out = append(out, mapped)
	}
	return out
}

// pathTo returns the chain of posts from a root down to the target, inclusive.
// len(path) is the target's nesting depth (top-level = 1).
func pathTo(roots []*types.Post, id string) []*types.Post {
	for _, p := range roots {
		if p.ID == id {
			return []*types.Post{p}
		}
		if sub := pathTo(p.Replies, id); sub != nil {
			return append([]*types.Post{p}, sub...)
		}
	}
	return nil
}

// collectIDs gathers the post's id and every id in its loaded subtree.
func collectIDs(p *types.Post) []string {
	ids := []string{p.ID}
	for _, child := range p.Replies {
		ids = append(ids, collectIDs(child)...)
	}
	return ids
}

// clampParent enforces the maximum nesting depth. A reply that would land
// deeper than maxDepth is reparented to the ancestor at depth maxDepth-1, so
// the new post sits at maxDepth as a sibling of the over-deep target. Returns
// the effective parent id and whether reparenting happened.
func clampParent(roots []*types.Post, parentID string, maxDepth int) (string, bool) {
	if parentID == "" {
		return "", false
	}
	path := pathTo(roots, parentID)
	if path == nil || len(path) < maxDepth {
		return parentID, false
	}
	if maxDepth < 2 {
		return "", true
	}
	return path[maxDepth-2].ID, true
}
