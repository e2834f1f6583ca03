package domain

import "errors"

// ErrSessionNotFound signals a missing or expired call session.
var ErrSessionNotFound = errors.New("dispatch: session not found")
