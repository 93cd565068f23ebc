package connection

import "errors"

var (
	ErrConnectionFailed   = errors.New("connection failed")
	ErrConfigurationFatal = errors.New("connection configuration error")
	ErrInvalidIdentity    = errors.New("invalid thread or user identity")
)
