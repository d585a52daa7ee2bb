package session

import "errors"

var (
	// ErrNotUnlocked is returned by every operation that needs secret
	// material while the session is locked. No side effect has happened.
	ErrNotUnlocked = errors.New("session is not unlocked")

	// ErrWrongPassword is returned by ChangePassword when the current
	// password does not match.
	ErrWrongPassword = errors.New("wrong password")
)
