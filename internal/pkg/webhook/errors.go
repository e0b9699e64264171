package webhook

import "errors"

// Gate-level failure classes. Controllers map these to HTTP responses;
// anything else that escapes the gate is a server error so the external
// provider's redelivery logic kicks in.
var (
	// ErrAuthentication covers missing authenticity headers and signature
	// mismatches. Nothing durable is written.
	ErrAuthentication = errors.New("webhook: authentication failed")

	// ErrReplay marks a nonce seen before within the TTL window.
	ErrReplay = errors.New("webhook: replay detected")

	// ErrUnknownProvider marks a delivery for a provider nobody registered.
	ErrUnknownProvider = errors.New("webhook: unknown provider")
)
