package llm

import "errors"

var (
	// ErrNoSigner means wallet-signing mode was requested without a
	// configured private key. Fatal for the component, not the process.
	ErrNoSigner = errors.New("no signing key configured")

	// ErrProviderUnavailable wraps network and 5xx failures from the
	// inference provider. Callers recover with a safe default.
	ErrProviderUnavailable = errors.New("inference provider unavailable")
)
