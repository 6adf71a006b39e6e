package acmejson

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetCreatesIntermediateObjects(t *testing.T) {
	c := New()
	require.NoError(t, c.Set("ca.url", "https://ca.example/acme"))
	require.NoError(t, c.Set("ca.proto", "ACME"))

	url, ok := c.GetString("ca.url")
	require.True(t, ok)
	assert.Equal(t, "https://ca.example/acme", url)

	proto, ok := c.GetString("ca.proto")
	require.True(t, ok)
	assert.Equal(t, "ACME", proto)
}

func TestGetMissingPath(t *testing.T) {
	c := New()
	_, ok := c.Get("missing.path")
	assert.False(t, ok)
}

func TestDeleteAndClear(t *testing.T) {
	c := New()
	require.NoError(t, c.Set("a.b", "value"))
	c.Delete("a.b")
	_, ok := c.Get("a.b")
	assert.False(t, ok)

	require.NoError(t, c.Set("x", "y"))
	c.Clear()
	_, ok = c.Get("x")
	assert.False(t, ok)
}

func TestTypedAccessors(t *testing.T) {
	c := New()
	require.NoError(t, c.Set("must_staple", true))
	require.NoError(t, c.Set("count", 3))
	require.NoError(t, c.Set("domains", []string{"a.example", "b.example"}))
	require.NoError(t, c.Set("meta", map[string]string{"k": "v"}))

	b, ok := c.GetBool("must_staple")
	require.True(t, ok)
	assert.True(t, b)

	n, ok := c.GetNumber("count")
	require.True(t, ok)
	assert.Equal(t, float64(3), n)

	domains, ok := c.GetStringArray("domains")
	require.True(t, ok)
	assert.Equal(t, []string{"a.example", "b.example"}, domains)

	meta, ok := c.GetStringMap("meta")
	require.True(t, ok)
	assert.Equal(t, "v", meta["k"])
}

func TestSerializeCompactAndIndent(t *testing.T) {
	c := New()
	require.NoError(t, c.Set("a", "b"))

	compact, err := c.Serialize(Compact)
	require.NoError(t, err)
	assert.NotContains(t, string(compact), "\n")

	indented, err := c.Serialize(Indent)
	require.NoError(t, err)
	assert.Contains(t, string(indented), "\n")
}

func TestFromResponseRequires2xxAndJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{"hello":"world"}`))
		case "/not-json":
			w.Write([]byte("plain text"))
		case "/error":
			w.WriteHeader(http.StatusBadRequest)
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{}`))
		}
	}))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ok")
	require.NoError(t, err)
	defer resp.Body.Close()
	c, err := FromResponse(resp)
	require.NoError(t, err)
	v, ok := c.GetString("hello")
	require.True(t, ok)
	assert.Equal(t, "world", v)

	resp2, err := http.Get(srv.URL + "/not-json")
	require.NoError(t, err)
	defer resp2.Body.Close()
	_, err = FromResponse(resp2)
	assert.Error(t, err)

	resp3, err := http.Get(srv.URL + "/error")
	require.NoError(t, err)
	defer resp3.Body.Close()
	_, err = FromResponse(resp3)
	assert.Error(t, err)
}

func TestFromValueRoundTrip(t *testing.T) {
	type thing struct {
		Name string `json:"name"`
	}
	c, err := FromValue(thing{Name: "example"})
	require.NoError(t, err)
	v, ok := c.GetString("name")
	require.True(t, ok)
	assert.Equal(t, "example", v)
}
