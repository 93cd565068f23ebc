package store

import "threadsync/pkg/types"

// applyAdd returns the counts after a reaction is added. A non-empty oldKind
// means the user is switching kinds: the old kind is decremented and Total is
// left alone, since the number of reacting users did not change. Pure; the
// input counts are never mutated.
func applyAdd(c *types.ReactionCounts, newKind, oldKind types.ReactionKind) *types.ReactionCounts {
	out := c.Clone()
	if out == nil {
		out = types.NewReactionCounts()
	}
	if out.ByKind == nil {
		out.ByKind = make(map[types.ReactionKind]int)
	}
	if oldKind != "" {
		if out.ByKind[oldKind] > 0 {
			out.ByKind[oldKind]--
		}
	} else {
		out.Total++
	}
	out.ByKind[newKind]++
	return out
}

// applyRemove returns the counts after a reaction is retracted. Both the kind
// count and Total floor at zero. Pure.
func applyRemove(c *types.ReactionCounts, kind types.ReactionKind) *types.ReactionCounts {
	out := c.Clone()
	if out == nil {
		return types.NewReactionCounts()
	}
	if out.ByKind == nil {
		out.ByKind = make(map[types.ReactionKind]int)
	}
	if out.ByKind[kind] > 0 {
		out.ByKind[kind]--
	}
	if out.Total > 0 {
		out.Total--
	}
	return out
}

// recountReactions rebuilds the projection from the reaction list. Used when
// a post arrives without counts; everyday updates go through applyAdd and
// applyRemove for O(1) cost.
func recountReactions(reactions []*types.Reaction) *types.ReactionCounts {
	counts := types.NewReactionCounts()
	for _, r := range reactions {
		counts.ByKind[r.Kind]++
		counts.Total++
	}
	return counts
}

// userReaction returns the user's reaction on the post, if any. At most one
// exists per (post, user).
func userReaction(p *types.Post, userID string) *types.Reaction {
	for _, r := range p.Reactions {
		if r.UserID == userID {
			return r
		}
	}
	return nil
}

// upsertReaction replaces the user's existing record or appends a new one,
// preserving the one-reaction-per-user invariant.
func upsertReaction(p *types.Post, r *types.Reaction) {
	for i, existing := range p.Reactions {
		if existing.UserID == r.UserID {
			p.Reactions[i] = r
			return
		}
	}
	p.Reactions = append(p.Reactions, r)
}

// removeReactionByID splices out the record with the given id, returning it.
func removeReactionByID(p *types.Post, reactionID string) *types.Reaction {
	for i, r := range p.Reactions {
		if r.ID == reactionID {
			p.Reactions = append(p.Reactions[:i], p.Reactions[i+1:]...)
			return r
		}
	}
	return nil
}
