package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"threadsync/internal/connection"
	"threadsync/pkg/interfaces"
	"threadsync/pkg/types"
)

// fakeTransport satisfies interfaces.Transport without a network. Connect
// dispatches the connect pseudo-event synchronously, mirroring the adapter.
type fakeTransport struct {
	mu        sync.Mutex
	connected bool
	handlers  map[string][]interfaces.EventHandler
	emitted   []emittedEvent
}

type emittedEvent struct {
	event   string
	payload interface{}
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{handlers: make(map[string][]interfaces.EventHandler)}
}

func (f *fakeTransport) Connect(ctx context.Context) error {
	f.mu.Lock()
	if f.connected {
		f.mu.Unlock()
		return nil
	}
	f.connected = true
	f.mu.Unlock()
	f.dispatch(interfaces.TransportConnect, nil)
	return nil
}

func (f *fakeTransport) Disconnect() error {
	f.mu.Lock()
	f.connected = false
	f.mu.Unlock()
	info, _ := json.Marshal(interfaces.DisconnectInfo{Reason: interfaces.DisconnectReasonManual})
	f.dispatch(interfaces.TransportDisconnect, info)
	return nil
}

func (f *fakeTransport) Emit(event string, payload interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.emitted = append(f.emitted, emittedEvent{event: event, payload: payload})
	return nil
}

func (f *fakeTransport) On(event string, handler interfaces.EventHandler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers[event] = append(f.handlers[event], handler)
}

func (f *fakeTransport) RemoveAllListeners() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handlers = make(map[string][]interfaces.EventHandler)
}

func (f *fakeTransport) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeTransport) dispatch(event string, data json.RawMessage) {
	f.mu.Lock()
	handlers := make([]interfaces.EventHandler, len(f.handlers[event]))
	copy(handlers, f.handlers[event])
	f.mu.Unlock()
	for _, h := range handlers {
		h(data)
	}
}

func (f *fakeTransport) emittedEvents() []emittedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]emittedEvent, len(f.emitted))
	copy(out, f.emitted)
	return out
}

// mockAPI is an in-memory ThreadAPI with failure toggles.
type mockAPI struct {
	mu         sync.Mutex
	thread     *types.Thread
	postPages  [][]*types.Post
	replyPages map[string][][]*types.Post

	created     []interfaces.CreatePostRequest
	createCalls int
	checkCalls  int
	onCreate    func()

	failCreate         bool
	conflictCreate     bool
	failUpdate         bool
	failDelete         bool
	failAddReaction    bool
	failUpdateReaction bool
	failRemoveReaction bool
	review             *interfaces.ReviewStatus
	reviewErr          error
}

func newMockAPI(thread *types.Thread, pages ...[]*types.Post) *mockAPI {
	return &mockAPI{
		thread:     thread,
		postPages:  pages,
		replyPages: make(map[string][][]*types.Post),
	}
}

func clonePosts(posts []*types.Post) []*types.Post {
	out := make([]*types.Post, len(posts))
	for i, p := range posts {
		out[i] = p.Clone()
	}
	return out
}

func (m *mockAPI) GetThread(ctx context.Context, threadID string) (*types.Thread, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.thread == nil || m.thread.ID != threadID {
		return nil, interfaces.ErrNotFound
	}
	t := *m.thread
	return &t, nil
}

func (m *mockAPI) GetPosts(ctx context.Context, threadID string, page, limit int) ([]*types.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if page < 1 || page > len(m.postPages) {
		return nil, nil
	}
	return clonePosts(m.postPages[page-1]), nil
}

func (m *mockAPI) GetReplies(ctx context.Context, postID string, page, limit int) ([]*types.Post, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	pages := m.replyPages[postID]
	if page < 1 || page > len(pages) {
		return nil, nil
	}
	return clonePosts(pages[page-1]), nil
}

func (m *mockAPI) CreatePost(ctx context.Context, req interfaces.CreatePostRequest) (*types.Post, error) {
	m.mu.Lock()
	m.createCalls++
	m.created = append(m.created, req)
	hook := m.onCreate
	fail, conflict := m.failCreate, m.conflictCreate
	n := len(m.created)
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	if conflict {
		return nil, interfaces.ErrConflict
	}
	if fail {
		return nil, errors.New("create failed")
	}
	now := time.Now()
	return &types.Post{
		ID:             fmt.Sprintf("srv-%d", n),
		ThreadID:       req.ThreadID,
		ParentID:       req.ParentID,
		AuthorID:       req.AuthorID,
		Content:        req.Content,
		Rating:         req.Rating,
		CreatedAt:      now,
		UpdatedAt:      now,
		ReactionCounts: types.NewReactionCounts(),
	}, nil
}

func (m *mockAPI) UpdatePost(ctx context.Context, req interfaces.UpdatePostRequest) (*types.Post, error) {
	if m.failUpdate {
		return nil, errors.New("update failed")
	}
	return &types.Post{
		ID:        req.PostID,
		AuthorID:  req.AuthorID,
		Content:   req.Content,
		Rating:    req.Rating,
		Edited:    true,
		UpdatedAt: time.Now(),
	}, nil
}

func (m *mockAPI) DeletePost(ctx context.Context, postID, authorID string) error {
	if m.failDelete {
		return errors.New("delete failed")
	}
	return nil
}

func (m *mockAPI) AddReaction(ctx context.Context, postID, userID string, kind types.ReactionKind) (*types.Reaction, error) {
	if m.failAddReaction {
		return nil, errors.New("add reaction failed")
	}
	now := time.Now()
	return &types.Reaction{ID: "srv-r1", PostID: postID, UserID: userID, Kind: kind, CreatedAt: now, UpdatedAt: now}, nil
}

func (m *mockAPI) UpdateReaction(ctx context.Context, reactionID string, kind types.ReactionKind) (*types.Reaction, error) {
	if m.failUpdateReaction {
		return nil, errors.New("update reaction failed")
	}
	return &types.Reaction{ID: reactionID, Kind: kind, UpdatedAt: time.Now()}, nil
}

func (m *mockAPI) RemoveReaction(ctx context.Context, reactionID string) error {
	if m.failRemoveReaction {
		return errors.New("remove reaction failed")
	}
	return nil
}

func (m *mockAPI) CheckUserReview(ctx context.Context, resourceID, userID string) (*interfaces.ReviewStatus, error) {
	m.mu.Lock()
	m.checkCalls++
	m.mu.Unlock()
	if m.reviewErr != nil {
		return nil, m.reviewErr
	}
	if m.review != nil {
		return m.review, nil
	}
	return &interfaces.ReviewStatus{}, nil
}

func testOptions() Options {
	return Options{PostPageSize: 10, ReplyPageSize: 3, MaxReplyDepth: 3}
}

func newTestStore(t *testing.T, api interfaces.ThreadAPI) (*Store, *fakeTransport) {
	t.Helper()
	ft := newFakeTransport()
	conn := connection.NewManager(ft, connection.Config{
		MaxReconnectAttempts: 3,
		ReconnectInterval:    time.Millisecond,
	}, zerolog.Nop())
	s := NewStore(api, conn, nil, testOptions(), zerolog.Nop())
	return s, ft
}

func discussionThread() *types.Thread {
	return &types.Thread{ID: "T1", Type: types.ThreadDiscussion, ResourceID: "lesson-1"}
}

func reviewThread() *types.Thread {
	return &types.Thread{ID: "T1", Type: types.ThreadCourseReview, ResourceID: "course-1"}
}

func post(id, parentID, authorID string) *types.Post {
	return &types.Post{
		ID:             id,
		ThreadID:       "T1",
		ParentID:       parentID,
		AuthorID:       authorID,
		Content:        "content of " + id,
		ReactionCounts: types.NewReactionCounts(),
	}
}

func TestActivate_LoadsThreadAndFirstPage(t *testing.T) {
	api := newMockAPI(discussionThread(), []*types.Post{post("p1", "", "u2")})
	s, ft := newTestStore(t, api)
	s.SetIdentity("u1", "Alice")

	require.NoError(t, s.Activate(context.Background(), "T1"))

	require.NotNil(t, s.Thread())
	assert.Equal(t, "T1", s.Thread().ID)
	require.Len(t, s.Posts(), 1)

	events := ft.emittedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, types.EventJoinThread, events[0].event)
	assert.Equal(t, types.JoinPayload{ThreadID: "T1", UserID: "u1", UserName: "Alice"}, events[0].payload)
}

func TestActivate_RequiresIdentity(t *testing.T) {
	api := newMockAPI(discussionThread())
	s, _ := newTestStore(t, api)

	err := s.Activate(context.Background(), "T1")
	assert.ErrorIs(t, err, ErrLoginRequired)
	assert.ErrorIs(t, s.LastError(), ErrLoginRequired)
}

func TestActivate_ThreadNotFound(t *testing.T) {
	api := newMockAPI(nil)
	s, _ := newTestStore(t, api)
	s.SetIdentity("u1", "Alice")

	err := s.Activate(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrThreadNotFound)
	assert.Nil(t, s.Thread())
	assert.Empty(t, s.Posts())
}

func TestCreatePost_OptimisticTopLevel(t *testing.T) {
	api := newMockAPI(discussionThread())
	s, _ := newTestStore(t, api)
	s.SetIdentity("u1", "Alice")
	require.NoError(t, s.Activate(context.Background(), "T1"))

	created, err := s.CreatePost(context.Background(), "hello", "", nil)
	require.NoError(t, err)

	posts := s.Posts()
	require.Len(t, posts, 1)
	assert.Equal(t, created.ID, posts[0].ID)
	assert.Equal(t, "hello", posts[0].Content)
	assert.Equal(t, 1, s.Thread().PostCount)

	// The push event for the same post authored by the current user must be
	// discarded: the optimistic path already applied it.
	s.Reconcile(types.NewPostEvent{Post: &types.Post{
		ID: created.ID, ThreadID: "T1", AuthorID: "u1", Content: "hello",
	}})
	assert.Len(t, s.Posts(), 1)
	assert.Equal(t, 1, s.Thread().PostCount)
}

func TestCreatePost_RollbackOnFailure(t *testing.T) {
	api := newMockAPI(discussionThread())
	api.failCreate = true
	s, _ := newTestStore(t, api)
	s.SetIdentity("u1", "Alice")
	require.NoError(t, s.Activate(context.Background(), "T1"))

	_, err := s.CreatePost(context.Background(), "hello", "", nil)
	require.Error(t, err)
	assert.Empty(t, s.Posts())
	assert.Equal(t, 0, s.Thread().PostCount)
	assert.Error(t, s.LastError())
}

func TestCreatePost_ReplyRollbackRestoresCounts(t *testing.T) {
	parent := post("p1", "", "u2")
	api := newMockAPI(discussionThread(), []*types.Post{parent})
	api.failCreate = true
	s, _ := newTestStore(t, api)
	s.SetIdentity("u1", "Alice")
	require.NoError(t, s.Activate(context.Background(), "T1"))

	_, err := s.CreatePost(context.Background(), "reply", "p1", nil)
	require.Error(t, err)

	got := s.Posts()[0]
	assert.Empty(t, got.Replies)
	assert.Equal(t, 0, got.ReplyCount)
}

func TestCreatePost_DepthClampReparents(t *testing.T) {
	level3 := post("c", "b", "u2")
	level2 := post("b", "a", "u2")
	level2.Replies = []*types.Post{level3}
	level1 := post("a", "", "u2")
	level1.Replies = []*types.Post{level2}
	api := newMockAPI(discussionThread(), []*types.Post{level1})
	s, _ := newTestStore(t, api)
	s.SetIdentity("u1", "Alice")
	require.NoError(t, s.Activate(context.Background(), "T1"))

	// A reply against the level-3 post must be reparented to that post's own
	// parent, landing at level 3 rather than level 4.
	created, err := s.CreatePost(context.Background(), "deep reply", "c", nil)
	require.NoError(t, err)
	assert.Equal(t, "b", created.ParentID)

	require.Len(t, api.created, 1)
	assert.Equal(t, "b", api.created[0].ParentID)
	assert.NotEmpty(t, s.Notice())
}

func TestCreatePost_MissingIdentityShortCircuits(t *testing.T) {
	api := newMockAPI(discussionThread())
	s, _ := newTestStore(t, api)
	s.SetIdentity("u1", "Alice")
	require.NoError(t, s.Activate(context.Background(), "T1"))
	s.SetIdentity("", "")

	_, err := s.CreatePost(context.Background(), "hello", "", nil)
	assert.ErrorIs(t, err, ErrLoginRequired)
	assert.Equal(t, 0, api.createCalls)
}

func TestUpdatePost_RevertsOnFailure(t *testing.T) {
	mine := post("p1", "", "u1")
	mine.Content = "original"
	api := newMockAPI(discussionThread(), []*types.Post{mine})
	api.failUpdate = true
	s, _ := newTestStore(t, api)
	s.SetIdentity("u1", "Alice")
	require.NoError(t, s.Activate(context.Background(), "T1"))

	err := s.UpdatePost(context.Background(), "p1", "edited", nil)
	require.Error(t, err)

	got := s.Posts()[0]
	assert.Equal(t, "original", got.Content)
	assert.False(t, got.Edited)
}

func TestUpdatePost_OnlyAuthor(t *testing.T) {
	other := post("p1", "", "u2")
	api := newMockAPI(discussionThread(), []*types.Post{other})
	s, _ := newTestStore(t, api)
	s.SetIdentity("u1", "Alice")
	require.NoError(t, s.Activate(context.Background(), "T1"))

	err := s.UpdatePost(context.Background(), "p1", "edited", nil)
	assert.ErrorIs(t, err, ErrNotPostAuthor)
}

func TestDeletePost_OptimisticPrune(t *testing.T) {
	mine := post("p1", "", "u1")
	api := newMockAPI(discussionThread(), []*types.Post{mine})
	api.thread.PostCount = 1
	s, _ := newTestStore(t, api)
	s.SetIdentity("u1", "Alice")
	require.NoError(t, s.Activate(context.Background(), "T1"))

	require.NoError(t, s.DeletePost(context.Background(), "p1"))
	assert.Empty(t, s.Posts())
	assert.Equal(t, 0, s.Thread().PostCount)
}

func TestDeletePost_FailureTriggersRefetch(t *testing.T) {
	mine := post("p1", "", "u1")
	api := newMockAPI(discussionThread(), []*types.Post{mine})
	api.thread.PostCount = 1
	api.failDelete = true
	s, _ := newTestStore(t, api)
	s.SetIdentity("u1", "Alice")
	require.NoError(t, s.Activate(context.Background(), "T1"))

	err := s.DeletePost(context.Background(), "p1")
	require.Error(t, err)

	// The refetch restores the server's view.
	require.Len(t, s.Posts(), 1)
	assert.Equal(t, "p1", s.Posts()[0].ID)
	assert.Equal(t, 1, s.Thread().PostCount)
}

func TestReaction_AddThenSwitchKeepsTotal(t *testing.T) {
	p := post("p1", "", "u2")
	api := newMockAPI(discussionThread(), []*types.Post{p})
	s, _ := newTestStore(t, api)
	s.SetIdentity("u1", "Alice")
	require.NoError(t, s.Activate(context.Background(), "T1"))

	require.NoError(t, s.AddOrSwitchReaction(context.Background(), "p1", types.ReactionLike))
	got := s.Posts()[0]
	assert.Equal(t, 1, got.ReactionCounts.Get(types.ReactionLike))
	assert.Equal(t, 1, got.ReactionCounts.Total)

	require.NoError(t, s.AddOrSwitchReaction(context.Background(), "p1", types.ReactionLove))
	got = s.Posts()[0]
	assert.Equal(t, 0, got.ReactionCounts.Get(types.ReactionLike))
	assert.Equal(t, 1, got.ReactionCounts.Get(types.ReactionLove))
	assert.Equal(t, 1, got.ReactionCounts.Total, "switching kinds must not inflate total")

	// One record per (post, user) regardless of switches.
	require.Len(t, got.Reactions, 1)
	assert.Equal(t, types.ReactionLove, got.Reactions[0].Kind)
}

func TestReaction_RollbackOnFailure(t *testing.T) {
	p := post("p1", "", "u2")
	api := newMockAPI(discussionThread(), []*types.Post{p})
	api.failAddReaction = true
	s, _ := newTestStore(t, api)
	s.SetIdentity("u1", "Alice")
	require.NoError(t, s.Activate(context.Background(), "T1"))

	err := s.AddOrSwitchReaction(context.Background(), "p1", types.ReactionLike)
	require.Error(t, err)

	got := s.Posts()[0]
	assert.Empty(t, got.Reactions)
	assert.Equal(t, 0, got.ReactionCounts.Total)
}

func TestReaction_RemoveRestoresOnFailure(t *testing.T) {
	p := post("p1", "", "u2")
	p.Reactions = []*types.Reaction{{ID: "r1", PostID: "p1", UserID: "u1", Kind: types.ReactionLike}}
	p.ReactionCounts = &types.ReactionCounts{ByKind: map[types.ReactionKind]int{types.ReactionLike: 1}, Total: 1}
	api := newMockAPI(discussionThread(), []*types.Post{p})
	api.failRemoveReaction = true
	s, _ := newTestStore(t, api)
	s.SetIdentity("u1", "Alice")
	require.NoError(t, s.Activate(context.Background(), "T1"))

	err := s.RemoveReaction(context.Background(), "p1")
	require.Error(t, err)

	got := s.Posts()[0]
	require.Len(t, got.Reactions, 1)
	assert.Equal(t, 1, got.ReactionCounts.Total)
}

func TestReviewGate_LocalScanBlocksSecondReview(t *testing.T) {
	rating := 5
	existing := post("p1", "", "u2")
	existing.Rating = &rating
	api := newMockAPI(reviewThread(), []*types.Post{existing})
	s, _ := newTestStore(t, api)
	s.SetIdentity("u2", "Bob")
	require.NoError(t, s.Activate(context.Background(), "T1"))

	newRating := 4
	_, err := s.CreatePost(context.Background(), "again", "", &newRating)
	assert.ErrorIs(t, err, ErrAlreadyReviewed)
	assert.Equal(t, 0, api.createCalls, "rejected locally before any network call")
	assert.True(t, s.HasReviewed())
}

func TestReviewGate_LocalScanOverridesServer(t *testing.T) {
	rating := 5
	existing := post("p1", "", "u2")
	existing.Rating = &rating
	api := newMockAPI(reviewThread(), []*types.Post{existing})
	api.review = &interfaces.ReviewStatus{HasReviewed: false}
	s, _ := newTestStore(t, api)
	s.SetIdentity("u2", "Bob")
	require.NoError(t, s.Activate(context.Background(), "T1"))

	newRating := 3
	_, err := s.CreatePost(context.Background(), "again", "", &newRating)
	assert.ErrorIs(t, err, ErrAlreadyReviewed)
	assert.Equal(t, 0, api.checkCalls, "local scan decides before the server check")
}

func TestReviewGate_ServerCheckBlocks(t *testing.T) {
	api := newMockAPI(reviewThread())
	api.review = &interfaces.ReviewStatus{HasReviewed: true, ReviewID: "rev-1"}
	s, _ := newTestStore(t, api)
	s.SetIdentity("u2", "Bob")
	require.NoError(t, s.Activate(context.Background(), "T1"))

	rating := 4
	_, err := s.CreatePost(context.Background(), "review", "", &rating)
	assert.ErrorIs(t, err, ErrAlreadyReviewed)
	assert.Equal(t, "rev-1", s.ReviewID())
	assert.Equal(t, 0, api.createCalls)
}

func TestReviewGate_ConflictIsStateCorrection(t *testing.T) {
	api := newMockAPI(reviewThread())
	api.conflictCreate = true
	s, _ := newTestStore(t, api)
	s.SetIdentity("u2", "Bob")
	require.NoError(t, s.Activate(context.Background(), "T1"))

	rating := 4
	_, err := s.CreatePost(context.Background(), "review", "", &rating)
	assert.ErrorIs(t, err, ErrAlreadyReviewed)
	assert.True(t, s.HasReviewed())
}

func TestReplies_ToggleFetchesFirstPage(t *testing.T) {
	parent := post("p1", "", "u2")
	parent.ReplyCount = 7
	api := newMockAPI(discussionThread(), []*types.Post{parent})
	api.replyPages["p1"] = [][]*types.Post{
		{post("r1", "p1", "u3"), post("r2", "p1", "u3"), post("r3", "p1", "u3")},
		{post("r4", "p1", "u3"), post("r5", "p1", "u3"), post("r6", "p1", "u3")},
		{post("r7", "p1", "u3")},
	}
	s, _ := newTestStore(t, api)
	s.SetIdentity("u1", "Alice")
	require.NoError(t, s.Activate(context.Background(), "T1"))

	require.NoError(t, s.ToggleReplies(context.Background(), "p1"))
	assert.True(t, s.RepliesVisible("p1"))
	assert.Len(t, s.Posts()[0].Replies, 3)
	assert.True(t, s.HasMoreReplies("p1"))

	// Toggling off and on again must not refetch page 1.
	require.NoError(t, s.ToggleReplies(context.Background(), "p1"))
	assert.False(t, s.RepliesVisible("p1"))
	require.NoError(t, s.ToggleReplies(context.Background(), "p1"))
	assert.Len(t, s.Posts()[0].Replies, 3)
}

func TestReplies_LoadMoreDisjointPages(t *testing.T) {
	parent := post("p1", "", "u2")
	parent.ReplyCount = 7
	api := newMockAPI(discussionThread(), []*types.Post{parent})
	api.replyPages["p1"] = [][]*types.Post{
		{post("r1", "p1", "u3"), post("r2", "p1", "u3"), post("r3", "p1", "u3")},
		{post("r4", "p1", "u3"), post("r5", "p1", "u3"), post("r6", "p1", "u3")},
		{post("r7", "p1", "u3")},
	}
	s, _ := newTestStore(t, api)
	s.SetIdentity("u1", "Alice")
	require.NoError(t, s.Activate(context.Background(), "T1"))

	require.NoError(t, s.ToggleReplies(context.Background(), "p1"))
	require.NoError(t, s.LoadMoreReplies(context.Background(), "p1"))
	require.NoError(t, s.LoadMoreReplies(context.Background(), "p1"))

	replies := s.Posts()[0].Replies
	seen := make(map[string]bool)
	for _, r := range replies {
		assert.False(t, seen[r.ID], "duplicate reply %s across pages", r.ID)
		seen[r.ID] = true
	}
	assert.Len(t, replies, 7)
	assert.False(t, s.HasMoreReplies("p1"), "short final page marks replies exhausted")
}

func TestReplies_EmptyPageStillRecorded(t *testing.T) {
	parent := post("p1", "", "u2")
	parent.ReplyCount = 5 // stale server count; only 3 replies actually exist
	api := newMockAPI(discussionThread(), []*types.Post{parent})
	api.replyPages["p1"] = [][]*types.Post{
		{post("r1", "p1", "u3"), post("r2", "p1", "u3"), post("r3", "p1", "u3")},
	}
	s, _ := newTestStore(t, api)
	s.SetIdentity("u1", "Alice")
	require.NoError(t, s.Activate(context.Background(), "T1"))

	require.NoError(t, s.ToggleReplies(context.Background(), "p1"))
	require.NoError(t, s.LoadMoreReplies(context.Background(), "p1"))

	assert.Len(t, s.Posts()[0].Replies, 3)
	assert.True(t, s.RepliesVisible("p1"), "an empty page never hides replies")
	assert.False(t, s.HasMoreReplies("p1"), "the attempted page is recorded so load-more stops")
}

func TestStaleResponse_DiscardedAfterThreadSwitch(t *testing.T) {
	api := newMockAPI(discussionThread())
	s, _ := newTestStore(t, api)
	s.SetIdentity("u1", "Alice")
	require.NoError(t, s.Activate(context.Background(), "T1"))

	// While the create round trip is in flight, the user switches threads.
	api.onCreate = func() {
		api.mu.Lock()
		api.thread = &types.Thread{ID: "T2", Type: types.ThreadDiscussion, ResourceID: "lesson-2"}
		api.postPages = nil
		api.mu.Unlock()
		require.NoError(t, s.Activate(context.Background(), "T2"))
	}

	_, err := s.CreatePost(context.Background(), "hello", "", nil)
	require.NoError(t, err)

	// The stale confirmation for T1 must not land in T2's tree.
	assert.Equal(t, "T2", s.Thread().ID)
	assert.Empty(t, s.Posts())
	assert.Equal(t, 0, s.Thread().PostCount)
}

func TestLoadMorePosts_AppendsNovelOnly(t *testing.T) {
	p1 := post("p1", "", "u2")
	p2 := post("p2", "", "u2")
	api := newMockAPI(discussionThread(),
		[]*types.Post{p1, p2, post("p3", "", "u2"), post("p4", "", "u2"), post("p5", "", "u2"),
			post("p6", "", "u2"), post("p7", "", "u2"), post("p8", "", "u2"), post("p9", "", "u2"), post("p10", "", "u2")},
		[]*types.Post{post("p10", "", "u2"), post("p11", "", "u2")},
	)
	s, _ := newTestStore(t, api)
	s.SetIdentity("u1", "Alice")
	require.NoError(t, s.Activate(context.Background(), "T1"))
	require.Len(t, s.Posts(), 10)

	require.NoError(t, s.LoadMorePosts(context.Background()))
	assert.Len(t, s.Posts(), 11, "overlapping post p10 deduplicated")

	// The short second page ends pagination; further calls are no-ops.
	require.NoError(t, s.LoadMorePosts(context.Background()))
	assert.Len(t, s.Posts(), 11)
}
