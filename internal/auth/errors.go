package auth

import (
	"errors"
)

// Every ceremony rejection is terminal for that attempt; the client restarts
// from the begin step to obtain a fresh challenge. Storage failures are not
// part of this set and are wrapped and surfaced as-is.
var (
	// ErrNoChallenge means complete was called before begin, or the pending
	// challenge was superseded or aged out.
	ErrNoChallenge = errors.New("no challenge exists")

	// ErrUnknownCredential means the proof references a credential id that is
	// not on file for the claimed user.
	ErrUnknownCredential = errors.New("no passkey exists")

	// ErrNotVerified covers both a failed cryptographic check and a sign
	// counter that did not advance (cloned authenticator).
	ErrNotVerified = errors.New("not verified")

	// ErrNoSession means the session id is absent or past its expiry.
	ErrNoSession = errors.New("no session exists")
)
