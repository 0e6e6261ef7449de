package moodle

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frartenzo/webeep-sync/internal/events"
)

// fakeProvider hands out tokens from a fixed sequence.
type fakeProvider struct {
	tokens []string
	calls  atomic.Int32
	err    error
}

func (p *fakeProvider) RequestToken(ctx context.Context) (string, error) {
	n := int(p.calls.Add(1)) - 1
	if p.err != nil {
		return "", p.err
	}
	if n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1], nil
	}
	return p.tokens[n], nil
}

func newTestClient(t *testing.T, handler http.Handler) (*Client, *httptest.Server, *events.Bus) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	bus := events.NewBus()
	t.Cleanup(bus.Close)

	tokens := &MemoryTokenStore{}
	require.NoError(t, tokens.SetToken("tok-valid"))

	client, err := NewClient(&Options{
		ServerURL:     srv.URL,
		Auth:          &fakeProvider{tokens: []string{"tok-fresh"}},
		Tokens:        tokens,
		Bus:           bus,
		RetryInterval: 10 * time.Millisecond,
	})
	require.NoError(t, err)
	require.NoError(t, client.Login(context.Background()))
	return client, srv, bus
}

func wsHandler(t *testing.T, fns map[string]func(r *http.Request) string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		require.Equal(t, "json", r.PostFormValue("moodlewsrestformat"))
		fn := r.PostFormValue("wsfunction")
		handler, ok := fns[fn]
		if !ok {
			t.Errorf("unexpected wsfunction %q", fn)
			http.Error(w, "unknown function", http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, handler(r))
	})
}

func TestRestoreLoadsStoredToken(t *testing.T) {
	tokens := &MemoryTokenStore{}
	require.NoError(t, tokens.SetToken("tok-stored"))

	client, err := NewClient(&Options{
		ServerURL: "https://example.com",
		Auth:      &fakeProvider{tokens: []string{"tok-fresh"}},
		Tokens:    tokens,
	})
	require.NoError(t, err)

	ok, err := client.Restore()
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, client.LoggedIn())
}

func TestRestoreReportsMissingToken(t *testing.T) {
	client, err := NewClient(&Options{
		ServerURL: "https://example.com",
		Auth:      &fakeProvider{tokens: []string{"tok-fresh"}},
		Tokens:    &MemoryTokenStore{},
	})
	require.NoError(t, err)

	// no stored session: Restore must not prompt and must not log in
	ok, err := client.Restore()
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, client.LoggedIn())
}

func TestCallShortCircuitsWhenUnauthenticated(t *testing.T) {
	client, _, _ := newTestClient(t, wsHandler(t, map[string]func(*http.Request) string{}))
	require.NoError(t, client.Logout())

	_, err := client.UserID(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestInvalidTokenTriggersSingleReauth(t *testing.T) {
	var calls atomic.Int32
	handler := wsHandler(t, map[string]func(*http.Request) string{
		fnSiteInfo: func(r *http.Request) string {
			calls.Add(1)
			if r.PostFormValue("wstoken") == "tok-valid" {
				return `{"errorcode":"invalidtoken","message":"Invalid token"}`
			}
			return `{"userid":7,"fullname":"Ada Lovelace"}`
		},
	})
	client, _, _ := newTestClient(t, handler)

	id, err := client.UserID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.Equal(t, int32(2), calls.Load())
	assert.Equal(t, "Ada Lovelace", client.Fullname())
}

func TestInvalidTokenAfterReauthFailsWithoutLooping(t *testing.T) {
	var calls atomic.Int32
	handler := wsHandler(t, map[string]func(*http.Request) string{
		fnSiteInfo: func(r *http.Request) string {
			calls.Add(1)
			return `{"errorcode":"invalidtoken","message":"Invalid token"}`
		},
	})
	client, _, _ := newTestClient(t, handler)

	_, err := client.UserID(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	// original call + one retry after re-authentication, no more
	assert.Equal(t, int32(2), calls.Load())
}

func TestReauthFailureSurfacesAuthError(t *testing.T) {
	handler := wsHandler(t, map[string]func(*http.Request) string{
		fnSiteInfo: func(r *http.Request) string {
			return `{"errorcode":"invalidtoken","message":"Invalid token"}`
		},
	})
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	tokens := &MemoryTokenStore{}
	require.NoError(t, tokens.SetToken("tok-valid"))
	client, err := NewClient(&Options{
		ServerURL: srv.URL,
		Auth:      &fakeProvider{err: ErrLoginCanceled},
		Tokens:    tokens,
	})
	require.NoError(t, err)
	require.NoError(t, client.Login(context.Background()))

	_, err = client.UserID(context.Background())
	var authErr *AuthError
	require.ErrorAs(t, err, &authErr)
	assert.ErrorIs(t, err, ErrLoginCanceled)
}

func TestNetworkFailureRetriesUntilReconnect(t *testing.T) {
	var failures atomic.Int32
	failures.Store(3)
	var calls atomic.Int32

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if failures.Load() > 0 {
			failures.Add(-1)
			// drop the connection mid-request to simulate an outage
			conn, _, err := w.(http.Hijacker).Hijack()
			require.NoError(t, err)
			conn.Close()
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"userid":7,"fullname":"Ada Lovelace"}`)
	})

	client, _, bus := newTestClient(t, handler)
	sub := bus.Subscribe(events.KindConnectivity)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id, err := client.UserID(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), id)
	assert.True(t, client.Online())
	assert.GreaterOrEqual(t, calls.Load(), int32(4))

	// exactly one disconnect followed by exactly one reconnect
	ev := <-sub.C()
	conn, ok := ev.(events.Connectivity)
	require.True(t, ok)
	assert.False(t, conn.Online)

	ev = <-sub.C()
	conn, ok = ev.(events.Connectivity)
	require.True(t, ok)
	assert.True(t, conn.Online)

	select {
	case ev := <-sub.C():
		t.Fatalf("unexpected extra connectivity event %+v", ev)
	default:
	}
}

func TestCallsShortCircuitWhileDisconnected(t *testing.T) {
	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprint(w, `{"userid":7,"fullname":"Ada"}`)
		default:
			conn, _, err := w.(http.Hijacker).Hijack()
			require.NoError(t, err)
			conn.Close()
		}
	})

	client, _, _ := newTestClient(t, handler)

	done := make(chan error, 1)
	go func() {
		_, err := client.UserID(context.Background())
		done <- err
	}()

	// wait for the first caller to enter the reconnect loop
	require.Eventually(t, func() bool { return !client.Online() }, 2*time.Second, 5*time.Millisecond)

	_, err := client.ListFiles(context.Background(), 1)
	assert.ErrorIs(t, err, ErrOffline)

	close(release)
	require.NoError(t, <-done)
}

func TestCancelAbortsReconnectLoop(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, _, err := w.(http.Hijacker).Hijack()
		require.NoError(t, err)
		conn.Close()
	})
	client, _, _ := newTestClient(t, handler)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := client.UserID(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCallOnceMapsServerErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		transient bool
	}{
		{name: "bad gateway", status: http.StatusBadGateway, transient: true},
		{name: "service unavailable", status: http.StatusServiceUnavailable, transient: true},
		{name: "not found", status: http.StatusNotFound, transient: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			t.Cleanup(srv.Close)

			tokens := &MemoryTokenStore{}
			require.NoError(t, tokens.SetToken("tok"))
			client, err := NewClient(&Options{
				ServerURL: srv.URL,
				Auth:      &fakeProvider{tokens: []string{"tok"}},
				Tokens:    tokens,
			})
			require.NoError(t, err)
			require.NoError(t, client.Login(context.Background()))

			err = client.callOnce(context.Background(), fnSiteInfo, nil, nil)
			require.Error(t, err)
			var netErr *NetworkError
			if tt.transient {
				assert.True(t, errors.As(err, &netErr))
			} else {
				var dataErr *RemoteDataError
				assert.True(t, errors.As(err, &dataErr))
			}
		})
	}
}
