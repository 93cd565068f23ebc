package snapshot

import "errors"

var ErrStoreClosed = errors.New("snapshot store is closed")
