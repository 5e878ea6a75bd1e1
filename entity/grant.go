package entity

import "time"

// GrantTTL is how long a signed grant stays usable once cached.
const GrantTTL = time.Hour

// Grant is the signed authorization exchanged for inference access in the
// provider's wallet-signing mode. RemainingTokens is nil when the
// provider's status endpoint could not be reached; validity then falls
// back to the age check alone.
type Grant struct {
	Message         string    `json:"message"`
	Signature       string    `json:"signature"`
	SignerAddress   string    `json:"signer_address"`
	CachedAt        time.Time `json:"cached_at"`
	RemainingTokens *int64    `json:"remaining_tokens,omitempty"`
}

// Usable reports whether the grant can still authenticate a request at
// the given instant: younger than GrantTTL and not known-exhausted.
func (g Grant) Usable(now time.Time) bool {
	if now.Sub(g.CachedAt) >= GrantTTL {
		return false
	}
	if g.RemainingTokens != nil && *g.RemainingTokens <= 0 {
		return false
	}
	return true
}
