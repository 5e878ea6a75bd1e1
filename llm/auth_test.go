package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/mzkrasner/base-aerodrome-agent-sub000/entity"
)

type grantServer struct {
	*httptest.Server
	messageHits atomic.Int64
	statusHits  atomic.Int64

	remaining   atomic.Int64
	statusFails atomic.Bool
}

func newGrantServer(t *testing.T) *grantServer {
	t.Helper()
	s := &grantServer{}
	s.remaining.Store(1_000_000)

	mux := http.NewServeMux()
	mux.HandleFunc("/message", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		n := s.messageHits.Add(1)
		fmt.Fprintf(w, `{"success":true,"message":"challenge-%d for %s","address":%q}`,
			n, r.URL.Query().Get("address"), r.URL.Query().Get("address"))
	})
	mux.HandleFunc("/checkGrant", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		s.statusHits.Add(1)
		if s.statusFails.Load() {
			http.Error(w, "upstream down", http.StatusBadGateway)
			return
		}
		fmt.Fprintf(w, `{"success":true,"hasGrant":true,"grant":{"remainingTokens":%d,"totalTokens":1000000,"expiresAt":""}}`,
			s.remaining.Load())
	})

	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func newTestAuthenticator(t *testing.T, baseURL string) *Authenticator {
	t.Helper()
	a, err := NewAuthenticator(baseURL, testKeyHex, zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}
	return a
}

func TestAuthFieldsCachesGrant(t *testing.T) {
	srv := newGrantServer(t)
	auth := newTestAuthenticator(t, srv.URL)
	ctx := context.Background()

	first, err := auth.AuthFields(ctx, false)
	if err != nil {
		t.Fatalf("first AuthFields: %v", err)
	}
	if first.Message == "" || first.Signature == "" || first.SignerAddress == "" {
		t.Fatalf("incomplete grant: %+v", first)
	}
	if got := srv.messageHits.Load(); got != 1 {
		t.Fatalf("challenge fetched %d times, want 1", got)
	}

	second, err := auth.AuthFields(ctx, false)
	if err != nil {
		t.Fatalf("second AuthFields: %v", err)
	}
	if second.Signature != first.Signature || second.Message != first.Message {
		t.Fatalf("cache hit returned a different grant")
	}
	if got := srv.messageHits.Load(); got != 1 {
		t.Fatalf("cache hit still fetched the challenge (%d hits)", got)
	}
}

func TestAuthFieldsExpiresAfterTTL(t *testing.T) {
	srv := newGrantServer(t)
	auth := newTestAuthenticator(t, srv.URL)
	ctx := context.Background()

	base := time.Now()
	auth.now = func() time.Time { return base }
	if _, err := auth.AuthFields(ctx, false); err != nil {
		t.Fatalf("AuthFields: %v", err)
	}

	// One second short of the TTL the cache still serves.
	auth.now = func() time.Time { return base.Add(entity.GrantTTL - time.Second) }
	if _, err := auth.AuthFields(ctx, false); err != nil {
		t.Fatalf("AuthFields near TTL: %v", err)
	}
	if got := srv.messageHits.Load(); got != 1 {
		t.Fatalf("pre-TTL call refreshed (%d hits)", got)
	}

	// At the TTL boundary the grant is stale.
	auth.now = func() time.Time { return base.Add(entity.GrantTTL) }
	if _, err := auth.AuthFields(ctx, false); err != nil {
		t.Fatalf("AuthFields past TTL: %v", err)
	}
	if got := srv.messageHits.Load(); got != 2 {
		t.Fatalf("expected refresh at TTL, got %d challenge hits", got)
	}
}

func TestAuthFieldsForceRefresh(t *testing.T) {
	srv := newGrantServer(t)
	auth := newTestAuthenticator(t, srv.URL)
	ctx := context.Background()

	if _, err := auth.AuthFields(ctx, false); err != nil {
		t.Fatalf("AuthFields: %v", err)
	}
	if _, err := auth.AuthFields(ctx, true); err != nil {
		t.Fatalf("forced AuthFields: %v", err)
	}
	if got := srv.messageHits.Load(); got != 2 {
		t.Fatalf("force refresh made %d challenge fetches, want 2", got)
	}
}

func TestAuthFieldsExhaustedGrantRefreshes(t *testing.T) {
	srv := newGrantServer(t)
	srv.remaining.Store(0)
	auth := newTestAuthenticator(t, srv.URL)
	ctx := context.Background()

	grant, err := auth.AuthFields(ctx, false)
	if err != nil {
		t.Fatalf("AuthFields: %v", err)
	}
	if grant.RemainingTokens == nil || *grant.RemainingTokens != 0 {
		t.Fatalf("expected zero remaining tokens, got %v", grant.RemainingTokens)
	}

	// A known-exhausted grant is never served from cache.
	if _, err := auth.AuthFields(ctx, false); err != nil {
		t.Fatalf("AuthFields after exhaustion: %v", err)
	}
	if got := srv.messageHits.Load(); got != 2 {
		t.Fatalf("exhausted grant reused from cache (%d challenge hits)", got)
	}
}

func TestAuthFieldsStatusCheckFailureNonFatal(t *testing.T) {
	srv := newGrantServer(t)
	srv.statusFails.Store(true)
	auth := newTestAuthenticator(t, srv.URL)

	grant, err := auth.AuthFields(context.Background(), false)
	if err != nil {
		t.Fatalf("AuthFields with failing status endpoint: %v", err)
	}
	if grant.Signature == "" {
		t.Fatalf("grant missing despite successful challenge")
	}
	if grant.RemainingTokens != nil {
		t.Fatalf("expected unknown remaining tokens, got %d", *grant.RemainingTokens)
	}
}

func TestAuthFieldsNoSigner(t *testing.T) {
	auth, err := NewAuthenticator("http://unused.invalid", "", zap.NewNop().Sugar())
	if err != nil {
		t.Fatalf("NewAuthenticator: %v", err)
	}
	if _, err := auth.AuthFields(context.Background(), false); !errors.Is(err, ErrNoSigner) {
		t.Fatalf("expected ErrNoSigner, got %v", err)
	}
}

func TestGrantUsable(t *testing.T) {
	now := time.Now()
	g := entity.Grant{CachedAt: now.Add(-30 * time.Minute)}
	if !g.Usable(now) {
		t.Fatalf("fresh grant reported unusable")
	}

	g.CachedAt = now.Add(-entity.GrantTTL)
	if g.Usable(now) {
		t.Fatalf("expired grant reported usable")
	}

	zero := int64(0)
	g = entity.Grant{CachedAt: now, RemainingTokens: &zero}
	if g.Usable(now) {
		t.Fatalf("exhausted grant reported usable")
	}
}
