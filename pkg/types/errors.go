package types

import "errors"

var (
	ErrInvalidReactionKind = errors.New("invalid reaction kind")
	ErrUnknownEvent        = errors.New("unknown event")
	ErrInvalidUserID       = errors.New("invalid user id")
	ErrInvalidContent      = errors.New("post content must be 1-10000 characters")
	ErrInvalidRating       = errors.New("rating must be between 1 and 5")
)
