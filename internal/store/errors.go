package store

import "errors"

var (
	ErrLoginRequired    = errors.New("login required")
	ErrNoActiveThread   = errors.New("no active thread")
	ErrThreadNotFound   = errors.New("thread not found")
	ErrPostNotFound     = errors.New("post not found")
	ErrReactionNotFound = errors.New("reaction not found")
	ErrNotPostAuthor    = errors.New("only the author can modify a post")
	ErrAlreadyReviewed  = errors.New("user has already reviewed this resource")
)
