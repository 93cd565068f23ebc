package interfaces

import (
	"context"

	"threadsync/pkg/types"
)

// CreatePostRequest carries everything the server needs for a new post.
type CreatePostRequest struct {
	ThreadID string `json:"thread_id"`
	AuthorID string `json:"author_id"`
	Content  string `json:"content"`
	ParentID string `json:"parent_id,omitempty"`
	Rating   *int   `json:"rating,omitempty"`
}

// UpdatePostRequest carries an edit to an existing post.
type UpdatePostRequest struct {
	PostID   string `json:"post_id"`
	AuthorID string `json:"author_id"`
	Content  string `json:"content"`
	Rating   *int   `json:"rating,omitempty"`
}

// ReviewStatus is the server's best-effort answer to "has this user already
// reviewed this resource".
type ReviewStatus struct {
	HasReviewed bool   `json:"has_reviewed"`
	ReviewID    string `json:"review_id,omitempty"`
}

// ThreadAPI is the REST collaborator the engine consumes. Implementations
// return typed results or typed errors (ErrNotFound, ErrConflict, ...).
type ThreadAPI interface {
	GetThread(ctx context.Context, threadID string) (*types.Thread, error)
	GetPosts(ctx context.Context, threadID string, page, limit int) ([]*types.Post, error)
	GetReplies(ctx context.Context, postID string, page, limit int) ([]*types.Post, error)

	CreatePost(ctx context.Context, req CreatePostRequest) (*types.Post, error)
	UpdatePost(ctx context.Context, req UpdatePostRequest) (*types.Post, error)
	DeletePost(ctx context.Context, postID, authorID string) error

	AddReaction(ctx context.Context, postID, userID string, kind types.ReactionKind) (*types.Reaction, error)
	UpdateReaction(ctx context.Context, reactionID string, kind types.ReactionKind) (*types.Reaction, error)
	RemoveReaction(ctx context.Context, reactionID string) error

	CheckUserReview(ctx context.Context, resourceID, userID string) (*ReviewStatus, error)
}
