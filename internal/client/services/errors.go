package services

import "errors"

var (
	// ErrNotAuthenticated is returned by LocalLogin when the backend accepted
	// the credentials but the follow-up session check did not confirm a user.
	ErrNotAuthenticated = errors.New("session not established")
	// ErrInvalidProvider is returned by SocialLogin for an empty provider name.
	ErrInvalidProvider = errors.New("invalid provider")
)
