package drive

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mdacme/mdacme/internal/account"
	"github.com/mdacme/mdacme/internal/acmeclient"
	"github.com/mdacme/mdacme/internal/authz"
)

func TestRetryAfterBackOffFloorsOneTick(t *testing.T) {
	b := &retryAfterBackOff{inner: constantBackOff(5 * time.Millisecond)}

	b.SetFloor(time.Minute)
	assert.Equal(t, time.Minute, b.NextBackOff())

	// the floor is one-shot: the next tick falls back to the inner schedule.
	assert.Equal(t, 5*time.Millisecond, b.NextBackOff())
}

func TestRetryAfterBackOffKeepsLargerFloor(t *testing.T) {
	b := &retryAfterBackOff{inner: constantBackOff(time.Hour)}

	b.SetFloor(time.Second)
	assert.Equal(t, time.Hour, b.NextBackOff(), "inner schedule already exceeds the floor")
}

type constantBackOff time.Duration

func (c constantBackOff) NextBackOff() time.Duration { return time.Duration(c) }

func (c constantBackOff) Reset() {}

// TestMonitorChallengesTreatsRetryLaterAsTransient exercises the review
// fix directly: a mid-poll status GET that maps to KindRetryLater (here,
// a useractionrequired problem document) must not abort Drive's whole
// poll loop the way a permanent error does.
func TestMonitorChallengesTreatsRetryLaterAsTransient(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	var nonceCounter int
	nextNonce := func() string {
		nonceCounter++
		return "nonce-" + string(rune('a'+nonceCounter))
	}

	var authzHits int
	mux := http.NewServeMux()
	mux.HandleFunc("/directory", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Replay-Nonce", nextNonce())
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"new-authz":   "http://" + r.Host + "/new-authz",
			"new-cert":    "http://" + r.Host + "/new-cert",
			"new-reg":     "http://" + r.Host + "/new-reg",
			"revoke-cert": "http://" + r.Host + "/revoke-cert",
		})
	})
	mux.HandleFunc("/new-reg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Replay-Nonce", nextNonce())
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/authz/example.org", func(w http.ResponseWriter, r *http.Request) {
		authzHits++
		w.Header().Set("Replay-Nonce", nextNonce())
		if authzHits == 1 {
			w.Header().Set("Retry-After", "0")
			w.Header().Set("Content-Type", "application/problem+json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"type":   "urn:ietf:params:acme:error:userActionRequired",
				"detail": "check your account",
			})
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "valid"})
	})

	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := acmeclient.New(srv.URL+"/directory", nil)
	acct := account.New("acct-1", srv.URL+"/new-reg", srv.URL+"/directory", nil, key)

	d := New(nil, client, Options{PollInitial: time.Millisecond, PollMax: time.Millisecond, PollTimeout: time.Second})
	set := &authz.Set{Authorizations: []authz.Authz{{
		Identifier: authz.Identifier{Type: "dns", Value: "example.org"},
		Location:   srv.URL + "/authz/example.org",
		State:      authz.StatePending,
	}}}

	err = d.monitorChallenges(context.Background(), acct, set)
	require.NoError(t, err)
	assert.Equal(t, authz.StateValid, set.Authorizations[0].State)
	assert.Equal(t, 2, authzHits, "the transient error must be retried, not treated as permanent")
}

var _ backoff.BackOff = (*retryAfterBackOff)(nil)
