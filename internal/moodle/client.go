// Package moodle implements the webservice client for the learning
// platform: authentication, course listings, course contents, and file
// downloads, with automatic recovery from token expiry and network outages.
package moodle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/imroc/req/v3"

	"github.com/frartenzo/webeep-sync/internal/events"
	"github.com/frartenzo/webeep-sync/internal/version"
)

const (
	defaultRetryInterval = 5 * time.Second
	defaultTimeout       = 30 * time.Second

	contentsCacheSize = 128
	contentsCacheTTL  = 5 * time.Minute
)

var userAgent = fmt.Sprintf("WeBeepSync/%s (%s; %s)", version.Version, runtime.GOOS, runtime.GOARCH)

// Options configures a Client. Auth and Tokens are required; everything
// else has a default.
type Options struct {
	ServerURL     string
	Language      string
	Auth          Provider
	Tokens        TokenStore
	Bus           *events.Bus
	RetryInterval time.Duration
}

// Client talks to the webservice REST endpoint. Connectivity state:
// {connected, disconnected-retrying} x {authenticated, unauthenticated}.
// A disconnect is transient and exits only through a successful retry; an
// unauthenticated state exits only through interactive re-authentication.
type Client struct {
	http          *req.Client
	serverURL     string
	language      string
	bus           *events.Bus
	auth          Provider
	tokens        TokenStore
	retryInterval time.Duration

	online atomic.Bool

	mu          sync.RWMutex
	token       string
	userID      int64
	fullname    string
	courseCache []Course

	contents *expirable.LRU[int64, []*FileInfo]
}

func NewClient(opts *Options) (*Client, error) {
	if opts.ServerURL == "" {
		return nil, errors.New("moodle: server url missing")
	}
	if opts.Auth == nil {
		return nil, errors.New("moodle: auth provider missing")
	}
	if opts.Tokens == nil {
		return nil, errors.New("moodle: token store missing")
	}

	language := opts.Language
	if language == "" {
		language = "en"
	}
	retryInterval := opts.RetryInterval
	if retryInterval <= 0 {
		retryInterval = defaultRetryInterval
	}

	httpClient := req.C().
		SetBaseURL(opts.ServerURL).
		SetUserAgent(userAgent).
		SetTimeout(defaultTimeout).
		SetJsonMarshal(jsonMarshal).
		SetJsonUnmarshal(jsonUnmarshal)

	c := &Client{
		http:          httpClient,
		serverURL:     opts.ServerURL,
		language:      language,
		bus:           opts.Bus,
		auth:          opts.Auth,
		tokens:        opts.Tokens,
		retryInterval: retryInterval,
		contents:      expirable.NewLRU[int64, []*FileInfo](contentsCacheSize, nil, contentsCacheTTL),
	}
	c.online.Store(true)
	return c, nil
}

// Restore loads the stored token without prompting. It reports whether a
// session was restored.
func (c *Client) Restore() (bool, error) {
	tok, err := c.tokens.Token()
	if err != nil || tok == "" {
		return false, err
	}
	c.setToken(tok)
	return true, nil
}

// Login restores a stored token or, when none exists, runs the interactive
// authentication flow.
func (c *Client) Login(ctx context.Context) error {
	if ok, _ := c.Restore(); ok {
		return nil
	}
	return c.Reauthenticate(ctx)
}

// Reauthenticate always goes through the interactive provider, replacing
// the current token.
func (c *Client) Reauthenticate(ctx context.Context) error {
	tok, err := c.auth.RequestToken(ctx)
	if err != nil {
		var authErr *AuthError
		if errors.As(err, &authErr) {
			return err
		}
		return &AuthError{Reason: "interactive login failed", Err: err}
	}
	if tok == "" {
		return &AuthError{Reason: "empty token", Err: ErrLoginCanceled}
	}

	if err := c.tokens.SetToken(tok); err != nil {
		slog.Warn("failed to persist token", "error", err)
	}
	c.setToken(tok)
	return nil
}

// Logout drops the token from memory and from the store.
func (c *Client) Logout() error {
	c.mu.Lock()
	c.token = ""
	c.userID = 0
	c.fullname = ""
	c.courseCache = nil
	c.mu.Unlock()
	c.contents.Purge()

	c.publish(events.Login{LoggedIn: false})
	return c.tokens.Clear()
}

// LoggedIn reports whether a token is present. Whether the token is still
// accepted is only known at call time.
func (c *Client) LoggedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token != ""
}

// Online reports connectivity as of the last webservice exchange.
func (c *Client) Online() bool {
	return c.online.Load()
}

// Fullname returns the display name resolved by the last site-info call.
func (c *Client) Fullname() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fullname
}

func (c *Client) setToken(tok string) {
	c.mu.Lock()
	changed := c.token != tok
	c.token = tok
	c.mu.Unlock()
	if changed {
		c.publish(events.Login{LoggedIn: true})
	}
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) publish(e events.Event) {
	if c.bus != nil {
		c.bus.Publish(e)
	}
}

// call is the single low-level request path every webservice operation
// goes through.
//
//  1. Short-circuits when unauthenticated or while another call owns the
//     reconnect loop.
//  2. An in-body invalid-token error triggers one re-authentication and one
//     retry of the original call; a second rejection fails the call.
//  3. A transport failure flips the client offline (one disconnect event),
//     then this call retries on a fixed interval until the host answers
//     again, flips back online (one reconnect event), and delivers the
//     result to the original caller.
//
// Concurrent calls each run their own retry loop; the state transitions
// are guarded so the notifications still fire exactly once per outage.
func (c *Client) call(ctx context.Context, wsfn string, params map[string]string, out any) error {
	if !c.LoggedIn() {
		return ErrNotAuthenticated
	}
	if !c.online.Load() {
		return ErrOffline
	}

	err := c.callOnce(ctx, wsfn, params, out)
	if err == nil {
		return nil
	}

	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.IsInvalidToken() {
		slog.Info("token rejected, re-authenticating", "function", wsfn)
		if authErr := c.Reauthenticate(ctx); authErr != nil {
			return authErr
		}
		err = c.callOnce(ctx, wsfn, params, out)
		if err == nil {
			return nil
		}
		if errors.As(err, &apiErr) && apiErr.IsInvalidToken() {
			return &AuthError{Reason: "token rejected after re-authentication", Err: apiErr}
		}
	}

	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return c.callUntilOnline(ctx, wsfn, params, out)
	}
	return err
}

// callUntilOnline owns the reconnect loop for one failed call. It retries
// the bare request on a fixed interval until the transport recovers, then
// hands the response back to the caller that initiated the original call.
func (c *Client) callUntilOnline(ctx context.Context, wsfn string, params map[string]string, out any) error {
	if c.online.CompareAndSwap(true, false) {
		slog.Warn("connection lost", "function", wsfn, "retry_every", c.retryInterval)
		c.publish(events.Connectivity{Online: false})
	}

	timer := time.NewTimer(c.retryInterval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}

		err := c.callOnce(ctx, wsfn, params, out)
		if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return err
		}
		var netErr *NetworkError
		if errors.As(err, &netErr) {
			timer.Reset(c.retryInterval)
			continue
		}

		// any response, even an application error, means the host is back
		if c.online.CompareAndSwap(false, true) {
			slog.Info("connection restored", "function", wsfn)
			c.publish(events.Connectivity{Online: true})
		}
		return err
	}
}

// callOnce performs exactly one webservice exchange with no recovery.
func (c *Client) callOnce(ctx context.Context, wsfn string, params map[string]string, out any) error {
	form := map[string]string{
		"wstoken":               c.currentToken(),
		"wsfunction":            wsfn,
		"moodlewsrestformat":    "json",
		"moodlewssettingfilter": "true",
		"moodlewssettinglang":   c.language,
	}
	for k, v := range params {
		form[k] = v
	}

	res, err := c.http.R().
		SetContext(ctx).
		SetFormData(form).
		Post(wsRestEndpoint)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		return &NetworkError{Op: wsfn, Err: err}
	}

	if res.IsErrorState() {
		status := res.GetStatusCode()
		if status >= 500 {
			return &NetworkError{Op: wsfn, Err: fmt.Errorf("http %d", status)}
		}
		return &RemoteDataError{Op: wsfn, Err: fmt.Errorf("http %d", status)}
	}

	body, err := res.ToBytes()
	if err != nil {
		return &NetworkError{Op: wsfn, Err: err}
	}

	// application errors come back in-body with a 200
	var werr APIError
	if err := jsonUnmarshal(body, &werr); err == nil && werr.Code != "" {
		return &werr
	}

	if out == nil {
		return nil
	}
	if err := jsonUnmarshal(body, out); err != nil {
		return &RemoteDataError{Op: wsfn, Err: err}
	}
	return nil
}
