package authz

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/mdacme/mdacme/internal/account"
	"github.com/mdacme/mdacme/internal/acmeclient"
	"github.com/mdacme/mdacme/internal/acmecrypto"
	"github.com/mdacme/mdacme/internal/acmejws"
	"github.com/mdacme/mdacme/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAccount(t *testing.T, url string) *account.Account {
	t.Helper()
	key, err := acmecrypto.GenerateRSA(2048)
	require.NoError(t, err)
	return account.New("test-acct", url, url, []string{"mailto:a@example.org"}, key)
}

func TestRegisterCreatesPendingAuthz(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/directory", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Replay-Nonce", "n0")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"new-authz":   "http://" + r.Host + "/new-authz",
			"new-cert":    "http://" + r.Host + "/new-cert",
			"new-reg":     "http://" + r.Host + "/new-reg",
			"revoke-cert": "http://" + r.Host + "/revoke-cert",
		})
	})
	mux.HandleFunc("/new-reg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Replay-Nonce", "n1")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/new-authz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Replay-Nonce", "n2")
		w.Header().Set("Location", "http://"+r.Host+"/authz/1")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "pending",
			"challenges": []map[string]string{
				{"type": "http-01", "url": "http://" + r.Host + "/chal/1", "token": "tok123"},
			},
		})
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := acmeclient.New(srv.URL+"/directory", nil)
	acct := testAccount(t, srv.URL+"/acct/1")

	a, err := Register(context.Background(), client, acct, "example.org")
	require.NoError(t, err)
	assert.Equal(t, StatePending, a.State)
	assert.Equal(t, srv.URL+"/authz/1", a.Location)
}

func TestRespondPublishesKeyAuthorizationAndPosts(t *testing.T) {
	var posted map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/directory", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Replay-Nonce", "n0")
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"new-authz": "http://" + r.Host + "/new-authz",
			"new-reg":   "http://" + r.Host + "/new-reg",
		})
	})
	mux.HandleFunc("/new-reg", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Replay-Nonce", "n1")
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/chal/1", func(w http.ResponseWriter, r *http.Request) {
		var env acmejws.Envelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&env))
		raw, err := acmecrypto.Base64URLDecode(env.Payload)
		require.NoError(t, err)
		posted = map[string]string{}
		require.NoError(t, json.Unmarshal(raw, &posted))
		w.Header().Set("Replay-Nonce", "n10")
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client := acmeclient.New(srv.URL+"/directory", nil)
	acct := testAccount(t, srv.URL+"/acct/1")
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)

	a := &Authz{
		Identifier: Identifier{Type: "dns", Value: "example.org"},
		Location:   srv.URL + "/authz/1",
		State:      StatePending,
		Resource: map[string]any{
			"status": "pending",
			"challenges": []any{
				map[string]any{"type": "http-01", "url": srv.URL + "/chal/1", "token": "tok123"},
			},
		},
	}

	err = Respond(context.Background(), client, s, acct, a)
	require.NoError(t, err)

	thumbprint, err := acmejws.Thumbprint(&acct.Key().PublicKey)
	require.NoError(t, err)
	wantKeyAuth := "tok123." + thumbprint
	assert.Equal(t, wantKeyAuth, posted["keyAuthorization"])

	stored, err := s.LoadText(store.Challenges, "example.org", "http-01")
	require.NoError(t, err)
	assert.Equal(t, wantKeyAuth, stored)
}

func TestRespondErrorsWithoutHTTP01Challenge(t *testing.T) {
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	acct := testAccount(t, "http://ca/acct/1")

	a := &Authz{
		Identifier: Identifier{Type: "dns", Value: "example.org"},
		Resource:   map[string]any{"status": "pending", "challenges": []any{}},
	}
	client := acmeclient.New("http://ca/directory", nil)

	err = Respond(context.Background(), client, s, acct, a)
	require.Error(t, err)
}
