package types

import "errors"

// Domain errors for type validation
var (
	// Search result errors
	ErrInvalidSymbolID = errors.New("invalid symbol ID")
	ErrInvalidRank     = errors.New("rank must be >= 1")
	ErrInvalidScore    = errors.New("score must be between 0 and 1")
	ErrEmptyContent    = errors.New("content cannot be empty")
)
