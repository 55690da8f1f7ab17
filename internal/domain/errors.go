package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrAlreadyExists     = errors.New("already exists")
	ErrSourceUnavailable = errors.New("signal source unavailable")
	ErrParseFailure      = errors.New("no payment details recognized")
	ErrItemUnavailable   = errors.New("item is sold or reserved")
	ErrLockHeld          = errors.New("lock already held")
)
