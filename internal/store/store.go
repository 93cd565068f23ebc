package store

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"threadsync/internal/connection"
	"threadsync/pkg/interfaces"
	"threadsync/pkg/types"
)

// Options bounds the store's paging and nesting behavior.
type Options struct {
	PostPageSize  int
	ReplyPageSize int
	MaxReplyDepth int
}

// Store is the client-resident state for the active discussion thread: the
// post tree, presence, reply pagination and review-gate state. UI actions
// mutate it optimistically before server confirmation; the reconciler merges
// push events into it. The post tree and presence list are exclusively owned
// here; all mutation goes through the tree primitives and the reaction
// aggregator.
type Store struct {
	api       interfaces.ThreadAPI
	conn      *connection.Manager
	snapshots interfaces.SnapshotStore
	opts      Options
	logger    zerolog.Logger

	mu       sync.Mutex
	userID   string
	userName string

	thread         *types.Thread
	posts          []*types.Post
	postsPage      int
	postsExhausted bool
	presence       []types.ThreadUser
	pages          *pagination

	hasReviewed bool
	reviewID    string

	lastFetchedThreadID string
	lastFetchedUserID   string

	generation int
	loading    bool
	lastErr    error
	notice     string

	subs []func()
}

// NewStore builds a store over its collaborators. snapshots may be nil to
// disable persistence.
func NewStore(api interfaces.ThreadAPI, conn *connection.Manager, snapshots interfaces.SnapshotStore, opts Options, logger zerolog.Logger) *Store {
	return &Store{
		api:       api,
		conn:      conn,
		snapshots: snapshots,
		opts:      opts,
		logger:    logger.With().Str("component", "store").Logger(),
		pages:     newPagination(opts.ReplyPageSize),
	}
}

// SetIdentity supplies the externally managed current-user identity. Changing
// users resets the review-gate state.
func (s *Store) SetIdentity(userID, userName string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userID != userID {
		s.hasReviewed = false
		s.reviewID = ""
	}
	s.userID = userID
	s.userName = userName
}

// Subscribe registers a callback invoked after every state change, typically
// a UI re-render trigger.
func (s *Store) Subscribe(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Activate makes threadID the active thread: fetch thread and first post page
// (skipped when the last-fetched pair already matches), reset ephemeral
// state, join the realtime thread.
func (s *Store) Activate(ctx context.Context, threadID string) error {
	s.mu.Lock()
	if s.userID == "" {
		s.mu.Unlock()
		return s.fail(ErrLoginRequired)
	}
	userID, userName := s.userID, s.userName

	if s.thread != nil && s.thread.ID == threadID &&
		s.lastFetchedThreadID == threadID && s.lastFetchedUserID == userID {
		// Redundant refetch skipped; the kept tree is still authoritative
		// enough and push events keep it current.
		s.mu.Unlock()
		return s.join(ctx, threadID, userID, userName)
	}

	s.generation++
	gen := s.generation
	s.loading = true
	s.mu.Unlock()
	s.notify()

	thread, err := s.api.GetThread(ctx, threadID)
	if err != nil {
		s.mu.Lock()
		s.loading = false
		if errors.Is(err, interfaces.ErrNotFound) {
			// Thread deleted server-side: clear the working set, no retry.
			s.thread = nil
			s.posts = nil
			s.pages.Reset()
			s.presence = nil
			err = ErrThreadNotFound
		}
		s.mu.Unlock()
		return s.fail(err)
	}

	posts, err := s.api.GetPosts(ctx, threadID, 1, s.opts.PostPageSize)
	if err != nil {
		s.mu.Lock()
		s.loading = false
		s.mu.Unlock()
		return s.fail(err)
	}

	s.mu.Lock()
	if s.generation != gen {
		// A faster thread switch superseded this fetch; its result must not
		// mutate the newer thread's tree.
		s.mu.Unlock()
		return nil
	}
	normalizePosts(posts)
	s.thread = thread
	s.posts = posts
	s.postsPage = 1
	s.postsExhausted = len(posts) < s.opts.PostPageSize
	s.presence = nil
	s.pages.Reset()
	s.lastFetchedThreadID = threadID
	s.lastFetchedUserID = userID
	s.loading = false
	s.mu.Unlock()

	s.persist()
	s.notify()
	return s.join(ctx, threadID, userID, userName)
}

// Deactivate leaves the realtime thread. The working set is kept (and
// persisted) so a later reactivation of the same thread skips the refetch.
func (s *Store) Deactivate() error {
	s.persist()
	return s.conn.LeaveThread()
}

// LoadMorePosts fetches the next top-level page and appends novel posts.
func (s *Store) LoadMorePosts(ctx context.Context) error {
	s.mu.Lock()
	if s.thread == nil {
		s.mu.Unlock()
		return s.fail(ErrNoActiveThread)
	}
	if s.postsExhausted {
		s.mu.Unlock()
		return nil
	}
	threadID := s.thread.ID
	page := s.postsPage + 1
	s.mu.Unlock()

	posts, err := s.api.GetPosts(ctx, threadID, page, s.opts.PostPageSize)
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	if !s.activeThreadLocked(threadID) {
		s.mu.Unlock()
		return nil
	}
	s.postsPage = page
	if len(posts) < s.opts.PostPageSize {
		s.postsExhausted = true
	}
	normalizePosts(posts)
	for _, p := range posts {
		if findInTree(s.posts, p.ID) == nil {
			s.posts = append(s.posts, p)
		}
	}
	s.mu.Unlock()

	s.persist()
	s.notify()
	return nil
}

// CreatePost submits a new post or reply. The local tree is mutated before
// the network call so the UI reflects the action immediately and so a racing
// push event for the same change is recognized as self-originated.
func (s *Store) CreatePost(ctx context.Context, content, parentID string, rating *int) (*types.Post, error) {
	if err := types.ValidateContent(content); err != nil {
		return nil, s.fail(err)
	}
	if err := types.ValidateRating(rating); err != nil {
		return nil, s.fail(err)
	}

	s.mu.Lock()
	if s.userID == "" {
		s.mu.Unlock()
		return nil, s.fail(ErrLoginRequired)
	}
	if s.thread == nil {
		s.mu.Unlock()
		return nil, s.fail(ErrNoActiveThread)
	}
	threadID := s.thread.ID
	isReview := s.thread.Type == types.ThreadCourseReview
	s.mu.Unlock()

	if rating != nil && parentID == "" && isReview {
		if err := s.checkReviewGate(ctx); err != nil {
			return nil, s.fail(err)
		}
	}

	s.mu.Lock()
	if !s.activeThreadLocked(threadID) {
		s.mu.Unlock()
		return nil, s.fail(ErrNoActiveThread)
	}

	effectiveParent, clamped := clampParent(s.posts, parentID, s.opts.MaxReplyDepth)
	if clamped {
		s.notice = "reply nesting limit reached, attached to an earlier post"
	}
	if effectiveParent != "" && findInTree(s.posts, effectiveParent) == nil {
		s.mu.Unlock()
		return nil, s.fail(ErrPostNotFound)
	}

	now := time.Now()
	optimistic := &types.Post{
		ID:             uuid.New().String(),
		ThreadID:       threadID,
		ParentID:       effectiveParent,
		AuthorID:       s.userID,
		AuthorName:     s.userName,
		Content:        content,
		Rating:         rating,
		CreatedAt:      now,
		UpdatedAt:      now,
		ReactionCounts: types.NewReactionCounts(),
	}
	s.insertPostLocked(optimistic)
	s.mu.Unlock()
	s.notify()

	created, err := s.api.CreatePost(ctx, interfaces.CreatePostRequest{
		ThreadID: threadID,
		AuthorID: optimistic.AuthorID,
		Content:  content,
		ParentID: effectiveParent,
		Rating:   rating,
	})

	s.mu.Lock()
	if !s.activeThreadLocked(threadID) {
		// Thread switched mid-flight; the replaced tree no longer holds the
		// optimistic node, so there is nothing to merge or revert.
		s.mu.Unlock()
		return created, err
	}

	if err != nil {
		s.removePostLocked(optimistic.ID)
		s.mu.Unlock()
		if errors.Is(err, interfaces.ErrConflict) && rating != nil && parentID == "" {
			return nil, s.fail(s.resolveReviewConflict(ctx, threadID))
		}
		s.notify()
		return nil, s.fail(err)
	}

	// Swap the optimistic node for the authoritative one in place.
	if created.ReactionCounts == nil {
		created.ReactionCounts = types.NewReactionCounts()
	}
	s.posts = mapTree(s.posts, func(p *types.Post) *types.Post {
		if p.ID == optimistic.ID {
			return created
		}
		return p
	})
	if rating != nil && parentID == "" && isReview {
		s.hasReviewed = true
		s.reviewID = created.ID
	}
	s.mu.Unlock()

	s.persist()
	s.notify()
	return created, nil
}

// UpdatePost edits a post the current user authored, optimistically.
func (s *Store) UpdatePost(ctx context.Context, postID, content string, rating *int) error {
	if err := types.ValidateContent(content); err != nil {
		return s.fail(err)
	}
	if err := types.ValidateRating(rating); err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	if s.userID == "" {
		s.mu.Unlock()
		return s.fail(ErrLoginRequired)
	}
	if s.thread == nil {
		s.mu.Unlock()
		return s.fail(ErrNoActiveThread)
	}
	threadID := s.thread.ID
	post := findInTree(s.posts, postID)
	if post == nil {
		s.mu.Unlock()
		return s.fail(ErrPostNotFound)
	}
	if post.AuthorID != s.userID {
		s.mu.Unlock()
		return s.fail(ErrNotPostAuthor)
	}

	before := *post
	post.Content = content
	if rating != nil {
		post.Rating = rating
	}
	post.Edited = true
	post.UpdatedAt = time.Now()
	s.mu.Unlock()
	s.notify()

	updated, err := s.api.UpdatePost(ctx, interfaces.UpdatePostRequest{
		PostID:   postID,
		AuthorID: before.AuthorID,
		Content:  content,
		Rating:   rating,
	})

	s.mu.Lock()
	if !s.activeThreadLocked(threadID) {
		s.mu.Unlock()
		return err
	}
	current := findInTree(s.posts, postID)
	if current == nil {
		s.mu.Unlock()
		return err
	}
	if err != nil {
		current.Content = before.Content
		current.Rating = before.Rating
		current.Edited = before.Edited
		current.UpdatedAt = before.UpdatedAt
		s.mu.Unlock()
		s.notify()
		return s.fail(err)
	}
	current.Content = updated.Content
	current.Edited = updated.Edited
	current.UpdatedAt = updated.UpdatedAt
	if updated.Rating != nil {
		current.Rating = updated.Rating
	}
	s.mu.Unlock()

	s.persist()
	s.notify()
	return nil
}

// DeletePost prunes a post optimistically. Precise reversal of a delete is
// impractical, so a failed request triggers a full refetch of the loaded
// pages to resynchronize.
func (s *Store) DeletePost(ctx context.Context, postID string) error {
	s.mu.Lock()
	if s.userID == "" {
		s.mu.Unlock()
		return s.fail(ErrLoginRequired)
	}
	if s.thread == nil {
		s.mu.Unlock()
		return s.fail(ErrNoActiveThread)
	}
	threadID := s.thread.ID
	post := findInTree(s.posts, postID)
	if post == nil {
		s.mu.Unlock()
		return s.fail(ErrPostNotFound)
	}
	if post.AuthorID != s.userID {
		s.mu.Unlock()
		return s.fail(ErrNotPostAuthor)
	}
	authorID := post.AuthorID
	s.removePostLocked(postID)
	s.mu.Unlock()
	s.notify()

	if err := s.api.DeletePost(ctx, postID, authorID); err != nil {
		if refetchErr := s.refetchPosts(ctx, threadID); refetchErr != nil {
			s.logger.Error().Err(refetchErr).Msg("resync after failed delete")
		}
		return s.fail(err)
	}

	s.persist()
	return nil
}

// AddOrSwitchReaction records the current user's reaction on a post. An
// existing reaction of a different kind is switched, not duplicated; the same
// kind is a no-op.
func (s *Store) AddOrSwitchReaction(ctx context.Context, postID string, kind types.ReactionKind) error {
	if !kind.Valid() {
		return s.fail(types.ErrInvalidReactionKind)
	}

	s.mu.Lock()
	if s.userID == "" {
		s.mu.Unlock()
		return s.fail(ErrLoginRequired)
	}
	if s.thread == nil {
		s.mu.Unlock()
		return s.fail(ErrNoActiveThread)
	}
	threadID := s.thread.ID
	post := findInTree(s.posts, postID)
	if post == nil {
		s.mu.Unlock()
		return s.fail(ErrPostNotFound)
	}

	existing := userReaction(post, s.userID)
	if existing != nil && existing.Kind == kind {
		s.mu.Unlock()
		return nil
	}

	countsBefore := post.ReactionCounts
	if existing != nil {
		recordBefore := *existing
		existing.Kind = kind
		existing.UpdatedAt = time.Now()
		post.ReactionCounts = applyAdd(countsBefore, kind, recordBefore.Kind)
		reactionID := existing.ID
		s.mu.Unlock()
		s.notify()

		updated, err := s.api.UpdateReaction(ctx, reactionID, kind)
		return s.settleReaction(ctx, threadID, postID, func(p *types.Post) {
			if err != nil {
				if r := userReaction(p, recordBefore.UserID); r != nil {
					*r = recordBefore
				}
				p.ReactionCounts = countsBefore
				return
			}
			if r := userReaction(p, recordBefore.UserID); r != nil && updated != nil {
				*r = *updated
			}
		}, err)
	}

	now := time.Now()
	optimistic := &types.Reaction{
		ID:        uuid.New().String(),
		PostID:    postID,
		UserID:    s.userID,
		Kind:      kind,
		CreatedAt: now,
		UpdatedAt: now,
	}
	upsertReaction(post, optimistic)
	post.ReactionCounts = applyAdd(countsBefore, kind, "")
	userID := s.userID
	s.mu.Unlock()
	s.notify()

	created, err := s.api.AddReaction(ctx, postID, userID, kind)
	return s.settleReaction(ctx, threadID, postID, func(p *types.Post) {
		if err != nil {
			removeReactionByID(p, optimistic.ID)
			p.ReactionCounts = countsBefore
			return
		}
		if created != nil {
			if r := userReaction(p, userID); r != nil {
				*r = *created
			}
		}
	}, err)
}

// RemoveReaction retracts the current user's reaction from a post.
func (s *Store) RemoveReaction(ctx context.Context, postID string) error {
	s.mu.Lock()
	if s.userID == "" {
		s.mu.Unlock()
		return s.fail(ErrLoginRequired)
	}
	if s.thread == nil {
		s.mu.Unlock()
		return s.fail(ErrNoActiveThread)
	}
	threadID := s.thread.ID
	post := findInTree(s.posts, postID)
	if post == nil {
		s.mu.Unlock()
		return s.fail(ErrPostNotFound)
	}
	existing := userReaction(post, s.userID)
	if existing == nil {
		s.mu.Unlock()
		return s.fail(ErrReactionNotFound)
	}

	record := *existing
	countsBefore := post.ReactionCounts
	removeReactionByID(post, record.ID)
	post.ReactionCounts = applyRemove(countsBefore, record.Kind)
	s.mu.Unlock()
	s.notify()

	err := s.api.RemoveReaction(ctx, record.ID)
	return s.settleReaction(ctx, threadID, postID, func(p *types.Post) {
		if err != nil {
			upsertReaction(p, &record)
			p.ReactionCounts = countsBefore
		}
	}, err)
}

// ToggleReplies flips reply visibility for a post, fetching the first page
// when replies have never been loaded.
func (s *Store) ToggleReplies(ctx context.Context, postID string) error {
	s.mu.Lock()
	if s.thread == nil {
		s.mu.Unlock()
		return s.fail(ErrNoActiveThread)
	}
	threadID := s.thread.ID
	if findInTree(s.posts, postID) == nil {
		s.mu.Unlock()
		return s.fail(ErrPostNotFound)
	}
	_, needsFetch := s.pages.Toggle(postID)
	s.mu.Unlock()
	s.notify()

	if !needsFetch {
		return nil
	}
	return s.fetchReplies(ctx, threadID, postID, 1)
}

// LoadMoreReplies fetches the next reply page for a post.
func (s *Store) LoadMoreReplies(ctx context.Context, postID string) error {
	s.mu.Lock()
	if s.thread == nil {
		s.mu.Unlock()
		return s.fail(ErrNoActiveThread)
	}
	threadID := s.thread.ID
	if findInTree(s.posts, postID) == nil {
		s.mu.Unlock()
		return s.fail(ErrPostNotFound)
	}
	if s.pages.Exhausted(postID) {
		s.mu.Unlock()
		return nil
	}
	page := s.pages.NextPage(postID)
	s.mu.Unlock()

	return s.fetchReplies(ctx, threadID, postID, page)
}

// fetchReplies loads one reply page and merges novel replies into the parent.
func (s *Store) fetchReplies(ctx context.Context, threadID, postID string, page int) error {
	replies, err := s.api.GetReplies(ctx, postID, page, s.opts.ReplyPageSize)
	if err != nil {
		return s.fail(err)
	}

	s.mu.Lock()
	if !s.activeThreadLocked(threadID) {
		s.mu.Unlock()
		return nil
	}
	post := findInTree(s.posts, postID)
	if post == nil {
		s.mu.Unlock()
		return nil
	}
	normalizePosts(replies)
	for _, r := range replies {
		if findInTree(post.Replies, r.ID) == nil {
			post.Replies = append(post.Replies, r)
		}
	}
	s.pages.RecordPage(postID, page, len(post.Replies))
	s.mu.Unlock()

	s.persist()
	s.notify()
	return nil
}

// refetchPosts replaces the loaded tree with a fresh copy of every page
// fetched so far. Used when precise reversal of an optimistic change is
// impractical.
func (s *Store) refetchPosts(ctx context.Context, threadID string) error {
	s.mu.Lock()
	limit := s.postsPage * s.opts.PostPageSize
	if limit == 0 {
		limit = s.opts.PostPageSize
	}
	s.mu.Unlock()

	posts, err := s.api.GetPosts(ctx, threadID, 1, limit)
	if err != nil {
		return err
	}
	thread, err := s.api.GetThread(ctx, threadID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	if !s.activeThreadLocked(threadID) {
		s.mu.Unlock()
		return nil
	}
	normalizePosts(posts)
	s.thread = thread
	s.posts = posts
	s.mu.Unlock()

	s.persist()
	s.notify()
	return nil
}

// settleReaction applies the post-request merge or rollback for a reaction
// action under the stale-thread guard.
func (s *Store) settleReaction(ctx context.Context, threadID, postID string, apply func(*types.Post), reqErr error) error {
	s.mu.Lock()
	if s.activeThreadLocked(threadID) {
		if post := findInTree(s.posts, postID); post != nil {
			apply(post)
		}
	}
	s.mu.Unlock()

	if reqErr != nil {
		s.notify()
		return s.fail(reqErr)
	}
	s.persist()
	s.notify()
	return nil
}

// insertPostLocked places a post into the tree and maintains the aggregate
// counters. Caller holds the lock.
func (s *Store) insertPostLocked(p *types.Post) {
	if p.ParentID == "" {
		s.posts = append([]*types.Post{p}, s.posts...)
		if s.thread != nil {
			s.thread.PostCount++
		}
		return
	}
	parent := findInTree(s.posts, p.ParentID)
	if parent == nil {
		return
	}
	parent.Replies = append(parent.Replies, p)
	parent.ReplyCount++
	s.pages.AddLoaded(parent.ID, 1)
	s.pages.Reveal(parent.ID)
}

// removePostLocked prunes a post and its subtree, maintains counters and
// purges pagination entries for every removed id. Caller holds the lock.
func (s *Store) removePostLocked(postID string) {
	post := findInTree(s.posts, postID)
	if post == nil {
		return
	}
	removed := collectIDs(post)
	parentID := post.ParentID

	s.posts = mapTree(s.posts, func(p *types.Post) *types.Post {
		if p.ID == postID {
			return nil
		}
		return p
	})

	if parentID == "" {
		if s.thread != nil && s.thread.PostCount > 0 {
			s.thread.PostCount--
		}
	} else if parent := findInTree(s.posts, parentID); parent != nil {
		if parent.ReplyCount > 0 {
			parent.ReplyCount--
		}
		s.pages.AddLoaded(parentID, -1)
	}
	s.pages.Purge(removed...)
}

// join announces thread membership; data refresh after a rejoin is not its
// job, the kept tree plus push events cover it.
func (s *Store) join(ctx context.Context, threadID, userID, userName string) error {
	if err := s.conn.JoinThread(ctx, threadID, userID, userName); err != nil {
		return s.fail(err)
	}
	return nil
}

// activeThreadLocked is the stale-response guard: a REST result only applies
// when the thread it was dispatched for is still the active one.
func (s *Store) activeThreadLocked(threadID string) bool {
	return s.thread != nil && s.thread.ID == threadID
}

// fail records a recoverable error on the store's single error surface and
// returns it. No exception-style propagation crosses into rendering code.
func (s *Store) fail(err error) error {
	if err == nil {
		return nil
	}
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
	s.logger.Debug().Err(err).Msg("store action failed")
	s.notify()
	return err
}

// notify invokes subscribers outside the lock.
func (s *Store) notify() {
	s.mu.Lock()
	subs := make([]func(), len(s.subs))
	copy(subs, s.subs)
	s.mu.Unlock()
	for _, fn := range subs {
		fn()
	}
}

// normalizePosts guarantees a usable counts projection on every fetched post.
func normalizePosts(posts []*types.Post) {
	for _, p := range posts {
		if p.ReactionCounts == nil {
			p.ReactionCounts = recountReactions(p.Reactions)
		}
		normalizePosts(p.Replies)
	}
}

// Thread returns the active thread, nil when none.
func (s *Store) Thread() *types.Thread {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.thread == nil {
		return nil
	}
	t := *s.thread
	return &t
}

// Posts returns the loaded top-level posts. The returned slice is a copy; the
// nodes are the store's and must not be mutated by callers.
func (s *Store) Posts() []*types.Post {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*types.Post, len(s.posts))
	copy(out, s.posts)
	return out
}

// Presence returns the current participant list.
func (s *Store) Presence() []types.ThreadUser {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.ThreadUser, len(s.presence))
	copy(out, s.presence)
	return out
}

// RepliesVisible reports whether a post's replies are shown.
func (s *Store) RepliesVisible(postID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pages.Visible(postID)
}

// HasMoreReplies reports whether a further reply page is worth requesting.
func (s *Store) HasMoreReplies(postID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	post := findInTree(s.posts, postID)
	if post == nil || s.pages.Exhausted(postID) {
		return false
	}
	return len(post.Replies) < post.ReplyCount
}

// Loading reports whether a thread fetch is in flight.
func (s *Store) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

// LastError returns the most recent recoverable error, for toast/banner use.
func (s *Store) LastError() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastErr
}

// ClearError resets the error surface after the UI consumed it.
func (s *Store) ClearError() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastErr = nil
}

// Notice returns the most recent informational notice (e.g. a reply was
// reparented at the nesting limit).
func (s *Store) Notice() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notice
}

// ClearNotice resets the notice after the UI consumed it.
func (s *Store) ClearNotice() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notice = ""
}
