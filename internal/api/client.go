package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"threadsync/pkg/interfaces"
	"threadsync/pkg/types"
)

// Client is the HTTP implementation of the ThreadAPI collaborator. Status
// codes map onto the shared sentinel errors so the store classifies failures
// without seeing the wire.
type Client struct {
	baseURL string
	http    *http.Client
	logger  zerolog.Logger
}

// NewClient builds a client for the service at baseURL.
func NewClient(baseURL string, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		logger:  logger.With().Str("component", "api").Logger(),
	}
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshalling request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("%s %s: %w", method, path, interfaces.ErrNotFound)
	case resp.StatusCode == http.StatusConflict:
		return fmt.Errorf("%s %s: %w", method, path, interfaces.ErrConflict)
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return fmt.Errorf("%s %s: %w", method, path, interfaces.ErrUnauthorized)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%s %s: unexpected status %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s %s response: %w", method, path, err)
	}
	return nil
}

func pageQuery(page, limit int) string {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	return "?" + q.Encode()
}

func (c *Client) GetThread(ctx context.Context, threadID string) (*types.Thread, error) {
	var thread types.Thread
	if err := c.do(ctx, http.MethodGet, "/threads/"+url.PathEscape(threadID), nil, &thread); err != nil {
		return nil, err
	}
	return &thread, nil
}

func (c *Client) GetPosts(ctx context.Context, threadID string, page, limit int) ([]*types.Post, error) {
	var posts []*types.Post
	path := "/threads/" + url.PathEscape(threadID) + "/posts" + pageQuery(page, limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &posts); err != nil {
		return nil, err
	}
	return posts, nil
}

func (c *Client) GetReplies(ctx context.Context, postID string, page, limit int) ([]*types.Post, error) {
	var replies []*types.Post
	path := "/posts/" + url.PathEscape(postID) + "/replies" + pageQuery(page, limit)
	if err := c.do(ctx, http.MethodGet, path, nil, &replies); err != nil {
		return nil, err
	}
	return replies, nil
}

func (c *Client) CreatePost(ctx context.Context, req interfaces.CreatePostRequest) (*types.Post, error) {
	var post types.Post
	path := "/threads/" + url.PathEscape(req.ThreadID) + "/posts"
	if err := c.do(ctx, http.MethodPost, path, req, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) UpdatePost(ctx context.Context, req interfaces.UpdatePostRequest) (*types.Post, error) {
	var post types.Post
	if err := c.do(ctx, http.MethodPatch, "/posts/"+url.PathEscape(req.PostID), req, &post); err != nil {
		return nil, err
	}
	return &post, nil
}

func (c *Client) DeletePost(ctx context.Context, postID, authorID string) error {
	q := url.Values{}
	q.Set("author_id", authorID)
	return c.do(ctx, http.MethodDelete, "/posts/"+url.PathEscape(postID)+"?"+q.Encode(), nil, nil)
}

func (c *Client) AddReaction(ctx context.Context, postID, userID string, kind types.ReactionKind) (*types.Reaction, error) {
	var reaction types.Reaction
	body := map[string]string{"user_id": userID, "kind": string(kind)}
	path := "/posts/" + url.PathEscape(postID) + "/reactions"
	if err := c.do(ctx, http.MethodPost, path, body, &reaction); err != nil {
		return nil, err
	}
	return &reaction, nil
}

func (c *Client) UpdateReaction(ctx context.Context, reactionID string, kind types.ReactionKind) (*types.Reaction, error) {
	var reaction types.Reaction
	body := map[string]string{"kind": string(kind)}
	if err := c.do(ctx, http.MethodPatch, "/reactions/"+url.PathEscape(reactionID), body, &reaction); err != nil {
		return nil, err
	}
	return &reaction, nil
}

func (c *Client) RemoveReaction(ctx context.Context, reactionID string) error {
	return c.do(ctx, http.MethodDelete, "/reactions/"+url.PathEscape(reactionID), nil, nil)
}

func (c *Client) CheckUserReview(ctx context.Context, resourceID, userID string) (*interfaces.ReviewStatus, error) {
	q := url.Values{}
	q.Set("resource_id", resourceID)
	q.Set("user_id", userID)
	var status interfaces.ReviewStatus
	if err := c.do(ctx, http.MethodGet, "/reviews/check?"+q.Encode(), nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}
