package store

import (
	"encoding/json"

	"threadsync/pkg/interfaces"
	"threadsync/pkg/types"
)

// BindTransport subscribes the reconciler to every inbound push event.
// Handlers run synchronously on the transport's read loop, so events are
// reconciled strictly in delivery order.
func (s *Store) BindTransport(t interfaces.Transport) {
	for _, name := range types.InboundEvents {
		name := name
		t.On(name, func(data json.RawMessage) {
			evt, err := types.DecodeEvent(name, data)
			if err != nil {
				s.logger.Warn().Err(err).Str("event", name).Msg("dropping undecodable event")
				return
			}
			s.Reconcile(evt)
		})
	}
}

// Reconcile merges one push event into local state. Events whose actor is the
// current user are discarded: the optimistic path already applied the change,
// and re-applying would double-count or resurrect deleted state.
func (s *Store) Reconcile(evt types.Event) {
	s.mu.Lock()
	if actor := evt.ActorID(); actor != "" && actor == s.userID {
		s.mu.Unlock()
		return
	}
	changed := s.reconcileLocked(evt)
	s.mu.Unlock()

	if changed {
		s.persist()
		s.notify()
	}
}

func (s *Store) reconcileLocked(evt types.Event) bool {
	switch e := evt.(type) {
	case types.NewPostEvent:
		return s.applyNewPost(e.Post)
	case types.UpdatePostEvent:
		return s.applyUpdatePost(e.Post)
	case types.DeletePostEvent:
		return s.applyDeletePost(e.PostID)
	case types.NewReactionEvent:
		return s.applyReactionUpsert(e.Reaction)
	case types.UpdateReactionEvent:
		return s.applyReactionUpsert(e.Reaction)
	case types.DeleteReactionEvent:
		return s.applyReactionDelete(e.ReactionID, e.PostID)
	case types.ThreadUsersEvent:
		return s.applyThreadUsers(e)
	case types.UserJoinedEvent:
		return s.applyUserJoined(e)
	}
	return false
}

// applyNewPost inserts a post pushed by another participant. A post already
// in the tree (the REST confirmation raced the push) is discarded; a nested
// post whose parent is not loaded is discarded rather than orphaned.
func (s *Store) applyNewPost(p *types.Post) bool {
	if s.thread == nil || p.ThreadID != s.thread.ID {
		return false
	}
	if findInTree(s.posts, p.ID) != nil {
		return false
	}
	if p.ReactionCounts == nil {
		p.ReactionCounts = recountReactions(p.Reactions)
	}

	if p.ParentID != "" {
		parent := findInTree(s.posts, p.ParentID)
		if parent == nil {
			return false
		}
		parent.Replies = append(parent.Replies, p)
		parent.ReplyCount++
		s.pages.AddLoaded(parent.ID, 1)
		if parent.AuthorID == s.userID {
			// The author sees responses to their post immediately.
			s.pages.Reveal(parent.ID)
		}
		return true
	}

	s.posts = append([]*types.Post{p}, s.posts...)
	s.thread.PostCount++
	return true
}

// applyUpdatePost merges edited fields onto the existing node. The loaded
// reply subtree is always preserved: the payload is not guaranteed to carry
// it. Optional fields are taken only when present; for ReplyCount "present"
// is indistinguishable from zero on the wire, so a zero never overwrites the
// loaded count.
func (s *Store) applyUpdatePost(p *types.Post) bool {
	existing := findInTree(s.posts, p.ID)
	if existing == nil {
		return false
	}
	existing.Content = p.Content
	existing.Edited = p.Edited
	existing.UpdatedAt = p.UpdatedAt
	if p.AuthorName != "" {
		existing.AuthorName = p.AuthorName
	}
	if !p.CreatedAt.IsZero() {
		existing.CreatedAt = p.CreatedAt
	}
	if p.Rating != nil {
		existing.Rating = p.Rating
	}
	if p.ReplyCount > 0 {
		existing.ReplyCount = p.ReplyCount
	}
	if p.Reactions != nil {
		existing.Reactions = p.Reactions
	}
	if p.ReactionCounts != nil {
		existing.ReactionCounts = p.ReactionCounts
	}
	return true
}

// applyDeletePost prunes a pushed deletion. A post already absent is a no-op.
func (s *Store) applyDeletePost(postID string) bool {
	if findInTree(s.posts, postID) == nil {
		return false
	}
	s.removePostLocked(postID)
	return true
}

// applyReactionUpsert handles both new-reaction and update-reaction: either
// way the record replaces whatever the user had on that post and the counts
// projection moves accordingly. A post not loaded client-side is a normal
// race, dropped silently.
func (s *Store) applyReactionUpsert(r *types.Reaction) bool {
	post := findInTree(s.posts, r.PostID)
	if post == nil {
		return false
	}
	prior := userReaction(post, r.UserID)
	if prior != nil && prior.ID == r.ID && prior.Kind == r.Kind {
		return false
	}
	oldKind := types.ReactionKind("")
	if prior != nil {
		oldKind = prior.Kind
	}
	upsertReaction(post, r)
	post.ReactionCounts = applyAdd(post.ReactionCounts, r.Kind, oldKind)
	return true
}

// applyReactionDelete removes a pushed retraction; absence is a no-op.
func (s *Store) applyReactionDelete(reactionID, postID string) bool {
	post := findInTree(s.posts, postID)
	if post == nil {
		return false
	}
	removed := removeReactionByID(post, reactionID)
	if removed == nil {
		return false
	}
	post.ReactionCounts = applyRemove(post.ReactionCounts, removed.Kind)
	return true
}

// applyThreadUsers replaces the presence list with the authoritative
// snapshot.
func (s *Store) applyThreadUsers(e types.ThreadUsersEvent) bool {
	if s.thread == nil || e.ThreadID != s.thread.ID {
		return false
	}
	s.presence = e.Users
	return true
}

// applyUserJoined upserts one presence entry by user id. Idempotent.
func (s *Store) applyUserJoined(e types.UserJoinedEvent) bool {
	for i, u := range s.presence {
		if u.UserID == e.UserID {
			s.presence[i].UserName = e.UserName
			return true
		}
	}
	s.presence = append(s.presence, types.ThreadUser{UserID: e.UserID, UserName: e.UserName})
	return true
}
