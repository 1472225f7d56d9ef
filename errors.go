package kvsession

import "errors"

var (
	// ErrInvalidSignature is returned when a cookie value fails HMAC verification
	// or is too short to carry a signature.
	ErrInvalidSignature = errors.New("invalid session signature")

	// ErrCorruptPayload is returned when a stored session blob cannot be decoded.
	ErrCorruptPayload = errors.New("corrupt session payload")

	// ErrStoreUnavailable wraps every error reported by a backing store.
	ErrStoreUnavailable = errors.New("session store unavailable")

	// ErrAllocationExhausted is returned when no free session ID could be
	// reserved within the configured number of attempts.
	ErrAllocationExhausted = errors.New("session id allocation exhausted")

	// ErrNoSecret is returned when a signer or factory is built without a secret.
	ErrNoSecret = errors.New("no session secret provided")

	// ErrSessionTooLarge is returned when the encoded payload exceeds Config.MaxSessionBytes.
	ErrSessionTooLarge = errors.New("session data too large")

	// ErrEmptySession is returned by PopItem on a session without values.
	ErrEmptySession = errors.New("session is empty")

	// ErrNoCallbacks is returned by Factory.Open when no response hook is given.
	ErrNoCallbacks = errors.New("no response callbacks provided")

	// ErrInvalidStoreBackend is returned by OpenStore for an unknown backend name.
	ErrInvalidStoreBackend = errors.New("invalid session store backend")
)
