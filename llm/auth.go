package llm

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"

	"github.com/mzkrasner/base-aerodrome-agent-sub000/entity"
)

type challengeResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Address string `json:"address"`
}

type grantStatusResponse struct {
	Success  bool `json:"success"`
	HasGrant bool `json:"hasGrant"`
	Grant    *struct {
		RemainingTokens int64  `json:"remainingTokens"`
		TotalTokens     int64  `json:"totalTokens"`
		ExpiresAt       string `json:"expiresAt"`
	} `json:"grant"`
}

// Authenticator obtains, signs, caches and renews the grant required by
// the provider's wallet-signing mode. One long-lived instance owns the
// cached grant; nothing else mutates it.
type Authenticator struct {
	http    *resty.Client
	key     *ecdsa.PrivateKey
	address common.Address
	log     *zap.SugaredLogger

	mu    sync.Mutex
	grant *entity.Grant

	now func() time.Time
}

// NewAuthenticator builds an authenticator for the given provider base
// URL. privKeyHex may be empty; AuthFields then fails with ErrNoSigner.
func NewAuthenticator(baseURL, privKeyHex string, log *zap.SugaredLogger) (*Authenticator, error) {
	a := &Authenticator{
		http: resty.New().SetBaseURL(baseURL).SetTimeout(15 * time.Second),
		log:  log,
		now:  time.Now,
	}
	if privKeyHex != "" {
		key, err := crypto.HexToECDSA(privKeyHex)
		if err != nil {
			return nil, fmt.Errorf("invalid signing key: %w", err)
		}
		a.key = key
		a.address = crypto.PubkeyToAddress(key.PublicKey)
	}
	return a, nil
}

// Address is the signer's wallet address; zero when no key is set.
func (a *Authenticator) Address() common.Address {
	return a.address
}

// AuthFields returns a usable grant, reusing the cache when it is fresh
// and not known-exhausted. A cache hit makes no network calls and the
// returned signature is byte-identical to the cached one.
func (a *Authenticator) AuthFields(ctx context.Context, forceRefresh bool) (entity.Grant, error) {
	if a.key == nil {
		return entity.Grant{}, ErrNoSigner
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if !forceRefresh && a.grant != nil && a.grant.Usable(a.now()) {
		return *a.grant, nil
	}

	grant, err := a.refresh(ctx)
	if err != nil {
		return entity.Grant{}, err
	}
	// Commit only after the full refresh succeeded; a cancelled call
	// leaves the previous cache intact.
	a.grant = &grant
	return grant, nil
}

// Clear drops the cached grant, forcing a refresh on the next call. Used
// after the provider rejects a request as unauthenticated.
func (a *Authenticator) Clear() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.grant = nil
}

func (a *Authenticator) refresh(ctx context.Context) (entity.Grant, error) {
	addr := a.address.Hex()

	var challenge challengeResponse
	resp, err := a.http.R().
		SetContext(ctx).
		SetQueryParam("address", addr).
		SetResult(&challenge).
		Get("/message")
	if err != nil {
		return entity.Grant{}, fmt.Errorf("%w: challenge fetch: %v", ErrProviderUnavailable, err)
	}
	if resp.IsError() || !challenge.Success || challenge.Message == "" {
		return entity.Grant{}, fmt.Errorf("%w: challenge fetch returned status %d", ErrProviderUnavailable, resp.StatusCode())
	}

	signature, err := SignMessage(a.key, challenge.Message)
	if err != nil {
		return entity.Grant{}, err
	}

	grant := entity.Grant{
		Message:       challenge.Message,
		Signature:     signature,
		SignerAddress: addr,
		CachedAt:      a.now(),
	}

	// Remaining-token count is best effort: a failed status check only
	// loses the exhaustion signal, never the grant itself.
	var status grantStatusResponse
	resp, err = a.http.R().
		SetContext(ctx).
		SetQueryParam("address", addr).
		SetResult(&status).
		Get("/checkGrant")
	switch {
	case err != nil:
		a.log.Warnw("grant status check failed", "err", err)
	case resp.IsError():
		a.log.Warnw("grant status check failed", "status", resp.StatusCode())
	case status.Success && status.HasGrant && status.Grant != nil:
		remaining := status.Grant.RemainingTokens
		grant.RemainingTokens = &remaining
		a.log.Infow("grant refreshed", "address", addr, "remaining_tokens", remaining)
	default:
		a.log.Infow("grant refreshed", "address", addr)
	}

	return grant, nil
}
