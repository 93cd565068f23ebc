package types

import (
	"time"
)

// ThreadType distinguishes plain discussions from rating-bearing course reviews.
type ThreadType string

const (
	ThreadDiscussion   ThreadType = "discussion"
	ThreadCourseReview ThreadType = "course_review"
)

// Thread is the discussion container for one resource (a lesson or a course).
// The store owns exactly one Thread at a time and replaces it wholesale when
// the active thread id changes.
type Thread struct {
	ID         string     `json:"id"`
	Type       ThreadType `json:"type"`
	ResourceID string     `json:"resource_id"`
	PostCount  int        `json:"post_count"`
	Rating     float64    `json:"rating,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// Post is a single message node. ParentID empty means top-level. Replies holds
// only the client-loaded subset; ReplyCount is the server-authoritative total
// and the two are tracked independently.
type Post struct {
	ID             string          `json:"id"`
	ThreadID       string          `json:"thread_id"`
	ParentID       string          `json:"parent_id,omitempty"`
	AuthorID       string          `json:"author_id"`
	AuthorName     string          `json:"author_name,omitempty"`
	Content        string          `json:"content"`
	Rating         *int            `json:"rating,omitempty"`
	Edited         bool            `json:"edited"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
	Replies        []*Post         `json:"replies,omitempty"`
	ReplyCount     int             `json:"reply_count"`
	Reactions      []*Reaction     `json:"reactions,omitempty"`
	ReactionCounts *ReactionCounts `json:"reaction_counts,omitempty"`
}

// Clone returns a deep copy of the post and its loaded subtree. Used to
// snapshot nodes before optimistic mutation so failed requests can revert.
func (p *Post) Clone() *Post {
	if p == nil {
		return nil
	}
	out := *p
	if p.Rating != nil {
		r := *p.Rating
		out.Rating = &r
	}
	if p.Replies != nil {
		out.Replies = make([]*Post, len(p.Replies))
		for i, child := range p.Replies {
			out.Replies[i] = child.Clone()
		}
	}
	if p.Reactions != nil {
		out.Reactions = make([]*Reaction, len(p.Reactions))
		for i, r := range p.Reactions {
			rc := *r
			out.Reactions[i] = &rc
		}
	}
	out.ReactionCounts = p.ReactionCounts.Clone()
	return &out
}

// IsTopLevel reports whether the post sits directly under the thread.
func (p *Post) IsTopLevel() bool {
	return p.ParentID == ""
}

// Reaction is a typed endorsement attached to a post. At most one reaction
// exists per (PostID, UserID) pair at any time.
type Reaction struct {
	ID        string       `json:"id"`
	PostID    string       `json:"post_id"`
	UserID    string       `json:"user_id"`
	Kind      ReactionKind `json:"kind"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// ThreadUser is an ephemeral presence entry; the list is rebuilt entirely
// from the latest presence broadcast and never persisted.
type ThreadUser struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// Snapshot is the durable part of a session: everything that survives a cold
// start. Connection, presence and loading state are deliberately excluded and
// always reinitialize to their defaults.
type Snapshot struct {
	Thread              *Thread        `json:"thread,omitempty"`
	Posts               []*Post        `json:"posts,omitempty"`
	PostsPage           int            `json:"posts_page"`
	ReplyPages          map[string]int `json:"reply_pages,omitempty"`
	UserID              string         `json:"user_id"`
	UserName            string         `json:"user_name"`
	HasReviewed         bool           `json:"has_reviewed"`
	ReviewID            string         `json:"review_id,omitempty"`
	LastFetchedThreadID string         `json:"last_fetched_thread_id,omitempty"`
	LastFetchedUserID   string         `json:"last_fetched_user_id,omitempty"`
	SavedAt             time.Time      `json:"saved_at"`
}
