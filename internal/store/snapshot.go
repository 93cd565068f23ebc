package store

import (
	"context"
	"errors"
	"time"

	"threadsync/pkg/interfaces"
	"threadsync/pkg/types"
)

// persist writes the durable session to the snapshot store. Connection,
// presence and loading state never make it into the snapshot. The snapshot
// gets deep copies of the thread and tree: the store keeps mutating the live
// nodes under s.mu while the snapshot store marshals outside it.
func (s *Store) persist() {
	if s.snapshots == nil {
		return
	}

	s.mu.Lock()
	var thread *types.Thread
	if s.thread != nil {
		t := *s.thread
		thread = &t
	}
	posts := make([]*types.Post, len(s.posts))
	for i, p := range s.posts {
		posts[i] = p.Clone()
	}
	snap := &types.Snapshot{
		Thread:              thread,
		Posts:               posts,
		PostsPage:           s.postsPage,
		ReplyPages:          s.pages.PageMap(),
		UserID:              s.userID,
		UserName:            s.userName,
		HasReviewed:         s.hasReviewed,
		ReviewID:            s.reviewID,
		LastFetchedThreadID: s.lastFetchedThreadID,
		LastFetchedUserID:   s.lastFetchedUserID,
		SavedAt:             time.Now(),
	}
	s.mu.Unlock()

	if err := s.snapshots.Save(context.Background(), snap); err != nil {
		s.logger.Error().Err(err).Msg("snapshot save failed")
	}
}

// Restore loads the durable session saved by a previous run. Live state
// (connection, presence, loading flags) keeps its cold-start defaults.
func (s *Store) Restore(ctx context.Context) error {
	if s.snapshots == nil {
		return nil
	}

	snap, err := s.snapshots.Load(ctx)
	if err != nil {
		if errors.Is(err, interfaces.ErrNoSnapshot) {
			return nil
		}
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.thread = snap.Thread
	s.posts = snap.Posts
	s.postsPage = snap.PostsPage
	s.postsExhausted = false
	if s.userID == "" {
		s.userID = snap.UserID
		s.userName = snap.UserName
	}
	s.hasReviewed = snap.HasReviewed
	s.reviewID = snap.ReviewID
	s.lastFetchedThreadID = snap.LastFetchedThreadID
	s.lastFetchedUserID = snap.LastFetchedUserID

	normalizePosts(s.posts)
	s.pages.Reset()
	s.pages.RestorePages(snap.ReplyPages)
	for id := range snap.ReplyPages {
		if post := findInTree(s.posts, id); post != nil {
			s.pages.SetLoaded(id, len(post.Replies))
		}
	}
	return nil
}
