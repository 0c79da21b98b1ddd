package probe_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/networkteam/sessionkit/probe"
)

func newRedirectServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/old", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/middle", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/middle", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/new/", http.StatusFound)
	})
	mux.HandleFunc("/new/", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ok"))
	})
	mux.HandleFunc("/guarded", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/forbidden", http.StatusFound)
	})
	mux.HandleFunc("/forbidden", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	mux.HandleFunc("/login", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("login"))
	})
	mux.HandleFunc("/private", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("test_joint_session"); err != nil {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		_, _ = w.Write([]byte("private"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestStatusPolicy_Accept(t *testing.T) {
	strict := probe.StatusPolicy{}
	lenient := probe.StatusPolicy{AllowForbidden: true}

	assert.True(t, strict.Accept(200))
	assert.True(t, strict.Accept(204))
	assert.False(t, strict.Accept(403))
	assert.False(t, strict.Accept(302))
	assert.True(t, lenient.Accept(403))
	assert.False(t, lenient.Accept(401))
	assert.False(t, lenient.Accept(500))
}

func TestClient_Follow(t *testing.T) {
	srv := newRedirectServer(t)
	c := probe.NewClient(probe.Options{})

	chain, err := c.Follow(context.Background(), srv.URL+"/old")
	require.NoError(t, err)
	require.Len(t, chain, 3)
	assert.Equal(t, http.StatusMovedPermanently, chain[0].StatusCode)
	assert.Equal(t, "/middle", chain[0].Location)
	assert.Equal(t, srv.URL+"/new/", chain.Final().URL)
	assert.Equal(t, http.StatusOK, chain.Final().StatusCode)
	assert.True(t, chain.Redirected())
	assert.Contains(t, chain.String(), "301 "+srv.URL+"/old -> ")
}

func TestClient_Follow_TooManyRedirects(t *testing.T) {
	srv := newRedirectServer(t)
	c := probe.NewClient(probe.Options{MaxHops: 3})

	chain, err := c.Follow(context.Background(), srv.URL+"/loop")
	assert.ErrorIs(t, err, probe.ErrTooManyRedirects)
	assert.Len(t, chain, 4)
}

func TestClient_Follow_InvalidURL(t *testing.T) {
	c := probe.NewClient(probe.Options{})

	_, err := c.Follow(context.Background(), "not a url")
	assert.Error(t, err)
}

func TestClient_ExpectRedirect(t *testing.T) {
	srv := newRedirectServer(t)
	ctx := context.Background()

	t.Run("relative target", func(t *testing.T) {
		c := probe.NewClient(probe.Options{})
		_, err := c.ExpectRedirect(ctx, srv.URL+"/old", "/new")
		assert.NoError(t, err)
	})

	t.Run("wrong target", func(t *testing.T) {
		c := probe.NewClient(probe.Options{})
		_, err := c.ExpectRedirect(ctx, srv.URL+"/old", "/elsewhere")
		assert.ErrorContains(t, err, "expected")
	})

	t.Run("no redirect", func(t *testing.T) {
		c := probe.NewClient(probe.Options{})
		_, err := c.ExpectRedirect(ctx, srv.URL+"/new/", "/new/")
		assert.ErrorContains(t, err, "was not redirected")
	})

	t.Run("forbidden rejected by default", func(t *testing.T) {
		c := probe.NewClient(probe.Options{})
		_, err := c.ExpectRedirect(ctx, srv.URL+"/guarded", "/forbidden")
		assert.ErrorContains(t, err, "HTTP 403")
	})

	t.Run("forbidden allowed", func(t *testing.T) {
		c := probe.NewClient(probe.Options{Policy: probe.StatusPolicy{AllowForbidden: true}})
		_, err := c.ExpectRedirect(ctx, srv.URL+"/guarded", "/forbidden")
		assert.NoError(t, err)
	})
}

func TestClient_Cookies(t *testing.T) {
	srv := newRedirectServer(t)
	ctx := context.Background()

	anonymous := probe.NewClient(probe.Options{})
	_, err := anonymous.ExpectRedirect(ctx, srv.URL+"/private", "/login")
	require.NoError(t, err)

	authenticated := probe.NewClient(probe.Options{
		Cookies: []*http.Cookie{{Name: "test_joint_session", Value: "abc12345"}},
	})
	status, ok, err := authenticated.Status(ctx, srv.URL+"/private")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, ok)
}

func TestClient_CookiesStayOnStartHost(t *testing.T) {
	ctx := context.Background()

	received := make(chan string, 1)
	external := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		value := ""
		if c, err := r.Cookie("test_joint_session"); err == nil {
			value = c.Value
		}
		received <- value
		_, _ = w.Write([]byte("external"))
	}))
	t.Cleanup(external.Close)
	externalURL := strings.Replace(external.URL, "127.0.0.1", "localhost", 1)

	mux := http.NewServeMux()
	mux.HandleFunc("/away", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, externalURL+"/landing", http.StatusFound)
	})
	mux.HandleFunc("/hop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/deep/private", http.StatusFound)
	})
	mux.HandleFunc("/deep/private", func(w http.ResponseWriter, r *http.Request) {
		if _, err := r.Cookie("test_joint_session"); err != nil {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte("private"))
	})
	site := httptest.NewServer(mux)
	t.Cleanup(site.Close)

	c := probe.NewClient(probe.Options{
		Cookies: []*http.Cookie{{Name: "test_joint_session", Value: "secret-session-123"}},
	})

	t.Run("not sent to another host", func(t *testing.T) {
		chain, err := c.Follow(ctx, site.URL+"/away")
		require.NoError(t, err)
		require.Len(t, chain, 2)
		assert.Empty(t, <-received)
	})

	t.Run("sent along redirects on the same host", func(t *testing.T) {
		chain, err := c.Follow(ctx, site.URL+"/hop")
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, chain.Final().StatusCode)
	})
}
