package types

import (
	"encoding/json"
	"fmt"
)

// Wire event names. Outbound events carry coordination payloads only; they
// never fetch or mutate post data themselves.
const (
	EventJoinThread  = "join-thread"
	EventLeaveThread = "leave-thread"

	EventNewPost        = "new-post"
	EventUpdatePost     = "update-post"
	EventDeletePost     = "delete-post"
	EventNewReaction    = "new-reaction"
	EventUpdateReaction = "update-reaction"
	EventDeleteReaction = "delete-reaction"
	EventThreadUsers    = "thread-users"
	EventUserJoined     = "user-joined"
)

// JoinPayload announces thread membership.
type JoinPayload struct {
	ThreadID string `json:"thread_id"`
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

// LeavePayload retracts thread membership.
type LeavePayload struct {
	ThreadID string `json:"thread_id"`
	UserID   string `json:"user_id"`
}

// Event is one inbound push event, decoded into a closed set of variants so
// reconciliation dispatches over an exhaustive type switch.
type Event interface {
	// Name returns the wire event name.
	Name() string
	// ActorID returns the id of the user who caused the event, or "" when the
	// payload does not carry one (delete events identify records, not actors).
	ActorID() string
}

// NewPostEvent carries a freshly created post.
type NewPostEvent struct {
	Post *Post
}

func (e NewPostEvent) Name() string    { return EventNewPost }
func (e NewPostEvent) ActorID() string { return e.Post.AuthorID }

// UpdatePostEvent carries an edited post. The payload is not guaranteed to
// include the full reply subtree.
type UpdatePostEvent struct {
	Post *Post
}

func (e UpdatePostEvent) Name() string    { return EventUpdatePost }
func (e UpdatePostEvent) ActorID() string { return e.Post.AuthorID }

// DeletePostEvent identifies a removed post.
type DeletePostEvent struct {
	PostID string `json:"post_id"`
}

func (e DeletePostEvent) Name() string    { return EventDeletePost }
func (e DeletePostEvent) ActorID() string { return "" }

// NewReactionEvent carries a freshly added reaction record.
type NewReactionEvent struct {
	Reaction *Reaction
}

func (e NewReactionEvent) Name() string    { return EventNewReaction }
func (e NewReactionEvent) ActorID() string { return e.Reaction.UserID }

// UpdateReactionEvent carries a reaction whose kind changed.
type UpdateReactionEvent struct {
	Reaction *Reaction
}

func (e UpdateReactionEvent) Name() string    { return EventUpdateReaction }
func (e UpdateReactionEvent) ActorID() string { return e.Reaction.UserID }

// DeleteReactionEvent identifies a removed reaction.
type DeleteReactionEvent struct {
	ReactionID string `json:"reaction_id"`
	PostID     string `json:"post_id"`
}

func (e DeleteReactionEvent) Name() string    { return EventDeleteReaction }
func (e DeleteReactionEvent) ActorID() string { return "" }

// ThreadUsersEvent is the authoritative presence snapshot; it fully replaces
// the local presence list.
type ThreadUsersEvent struct {
	ThreadID string       `json:"thread_id"`
	Users    []ThreadUser `json:"users"`
}

func (e ThreadUsersEvent) Name() string    { return EventThreadUsers }
func (e ThreadUsersEvent) ActorID() string { return "" }

// UserJoinedEvent upserts a single presence entry.
type UserJoinedEvent struct {
	UserID   string `json:"user_id"`
	UserName string `json:"user_name"`
}

func (e UserJoinedEvent) Name() string    { return EventUserJoined }
func (e UserJoinedEvent) ActorID() string { return e.UserID }

// DecodeEvent parses an inbound payload into its typed variant.
func DecodeEvent(name string, data json.RawMessage) (Event, error) {
	switch name {
	case EventNewPost:
		var p Post
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", name, err)
		}
		return NewPostEvent{Post: &p}, nil
	case EventUpdatePost:
		var p Post
		if err := json.Unmarshal(data, &p); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", name, err)
		}
		return UpdatePostEvent{Post: &p}, nil
	case EventDeletePost:
		var e DeletePostEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", name, err)
		}
		return e, nil
	case EventNewReaction:
		var r Reaction
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", name, err)
		}
		return NewReactionEvent{Reaction: &r}, nil
	case EventUpdateReaction:
		var r Reaction
		if err := json.Unmarshal(data, &r); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", name, err)
		}
		return UpdateReactionEvent{Reaction: &r}, nil
	case EventDeleteReaction:
		var e DeleteReactionEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", name, err)
		}
		return e, nil
	case EventThreadUsers:
		var e ThreadUsersEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", name, err)
		}
		return e, nil
	case EventUserJoined:
		var e UserJoinedEvent
		if err := json.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", name, err)
		}
		return e, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEvent, name)
}

// InboundEvents lists every push event name the reconciler handles.
var InboundEvents = []string{
	EventNewPost, EventUpdatePost, EventDeletePost,
	EventNewReaction, EventUpdateReaction, EventDeleteReaction,
	EventThreadUsers, EventUserJoined,
}
