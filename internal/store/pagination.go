package store

// replyState tracks reply loading for one parent post.
type replyState struct {
	pageLoaded int
	loaded     int
	visible    bool
}

// pagination tracks, per parent post, how many reply pages have been loaded
// and whether replies are currently shown. Counters are monotonically
// non-decreasing while a thread stays active and reset on thread switch.
type pagination struct {
	pageSize int
	pages    map[string]*replyState
}

func newPagination(pageSize int) *pagination {
	return &pagination{pageSize: pageSize, pages: make(map[string]*replyState)}
}

func (pg *pagination) state(postID string) *replyState {
	st, ok := pg.pages[postID]
	if !ok {
		st = &replyState{}
		pg.pages[postID] = st
	}
	return st
}

// Toggle flips visibility. needsFetch is true when visibility just became
// true and no reply page has ever been fetched for this post.
func (pg *pagination) Toggle(postID string) (visible, needsFetch bool) {
	st := pg.state(postID)
	st.visible = !st.visible
	return st.visible, st.visible && st.pageLoaded == 0
}

// Reveal forces visibility without toggling. Idempotent.
func (pg *pagination) Reveal(postID string) {
	pg.state(postID).visible = true
}

// Visible reports current visibility.
func (pg *pagination) Visible(postID string) bool {
	st, ok := pg.pages[postID]
	return ok && st.visible
}

// NextPage computes the page a further load should request.
func (pg *pagination) NextPage(postID string) int {
	st := pg.state(postID)
	return (st.loaded+pg.pageSize-1)/pg.pageSize + 1
}

// RecordPage records a completed fetch. The attempted page is recorded even
// for an empty result, so "load more" stops being offered; visibility is
// never touched here.
func (pg *pagination) RecordPage(postID string, page, totalLoaded int) {
	st := pg.state(postID)
	if page > st.pageLoaded {
		st.pageLoaded = page
	}
	st.loaded = totalLoaded
}

// AddLoaded adjusts the loaded counter when the reconciler or an optimistic
// mutation inserts or removes a reply outside a page fetch.
func (pg *pagination) AddLoaded(postID string, delta int) {
	st := pg.state(postID)
	st.loaded += delta
	if st.loaded < 0 {
		st.loaded = 0
	}
}

// Exhausted reports whether the last fetched page came back short, meaning
// the server has no further replies to offer.
func (pg *pagination) Exhausted(postID string) bool {
	st, ok := pg.pages[postID]
	if !ok || st.pageLoaded == 0 {
		return false
	}
	return st.loaded < st.pageLoaded*pg.pageSize
}

// Purge drops state for the given post ids. Called when posts are deleted.
func (pg *pagination) Purge(postIDs ...string) {
	for _, id := range postIDs {
		delete(pg.pages, id)
	}
}

// Reset clears all state. Called on thread switch.
func (pg *pagination) Reset() {
	pg.pages = make(map[string]*replyState)
}

// PageMap exports pageLoaded per post for the durable snapshot.
func (pg *pagination) PageMap() map[string]int {
	out := make(map[string]int, len(pg.pages))
	for id, st := range pg.pages {
		if st.pageLoaded > 0 {
			out[id] = st.pageLoaded
		}
	}
	return out
}

// RestorePages reinstates pageLoaded counters from a snapshot. Visibility is
// live state and stays at its default.
func (pg *pagination) RestorePages(pages map[string]int) {
	for id, page := range pages {
		pg.state(id).pageLoaded = page
	}
}

// SetLoaded pins the loaded counter to an absolute value, used after snapshot
// restore when the reply lists come from the persisted tree.
func (pg *pagination) SetLoaded(postID string, loaded int) {
	pg.state(postID).loaded = loaded
}
