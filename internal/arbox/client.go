// Package arbox is a session client for the Arbox gym-scheduling API.
//
// The client owns one credential set and mediates every call through a single
// authenticated request primitive. Token management is deliberately not
// automatic: there is no silent refresh-and-retry on 401, callers re-login
// explicitly when a request fails due to expiry. That keeps the session state
// machine at two states (unauthenticated, authenticated).
package arbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	logx "github.com/saar120/arbox-automation-v2/pkg/logx"
)

const (
	defaultBaseURL = "https://apiappv2.arboxapp.com"
	defaultTimeout = 15 * time.Second

	// apiVersion is the client version marker the mobile app sends.
	apiVersion = "11"

	isoMillis = "2006-01-02T15:04:05.000Z"
)

// Session is the authenticated-state value held by the client. It is replaced
// wholesale on each successful login and never partially updated.
type Session struct {
	AccessToken  string
	RefreshToken string
	Profile      *UserProfile
}

// LoggedIn reports whether the session carries an access token.
func (s Session) LoggedIn() bool { return s.AccessToken != "" }

// Options tune the client. The zero value is usable.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	RatePerSec int
	HTTPClient *http.Client
	Log        logx.Logger
}

// Client talks to the Arbox API on behalf of one account.
type Client struct {
	baseURL    string
	email      string
	password   string
	whitelabel string

	http    *http.Client
	limiter *rate.Limiter
	log     logx.Logger

	mu      sync.Mutex
	session Session
}

func New(email, password, whitelabel string, opts Options) *Client {
	base := opts.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	rps := opts.RatePerSec
	if rps <= 0 {
		rps = 2
	}
	log := opts.Log
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		baseURL:    base,
		email:      email,
		password:   password,
		whitelabel: whitelabel,
		http:       hc,
		limiter:    rate.NewLimiter(rate.Limit(rps), rps),
		log:        log.With(logx.String("component", "arbox")),
	}
}

// Session returns a copy of the current session value.
func (c *Client) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// IsLoggedIn reports whether a login has succeeded. No network call.
func (c *Client) IsLoggedIn() bool { return c.Session().LoggedIn() }

// Login authenticates and installs a fresh session. On failure the previous
// session is left untouched; a partial token pair is never stored. Concurrent
// logins race benignly: the last complete session wins.
func (c *Client) Login(ctx context.Context) (*UserProfile, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, &AuthError{Err: err}
	}

	body, err := json.Marshal(map[string]string{
		"email":    c.email,
		"password": c.password,
	})
	if err != nil {
		return nil, &AuthError{Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/user/login", bytes.NewReader(body))
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("whitelabel", c.whitelabel)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &AuthError{Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &AuthError{
			Message: upstreamMessage(raw),
			Err:     fmt.Errorf("login rejected with status %d", resp.StatusCode),
		}
	}

	var lr loginResponse
	if err := json.Unmarshal(raw, &lr); err != nil {
		return nil, &AuthError{Err: fmt.Errorf("malformed login response: %w", err)}
	}
	if lr.Data.Token == "" {
		return nil, &AuthError{Err: fmt.Errorf("malformed login response: missing token")}
	}

	profile := lr.Data
	c.mu.Lock()
	c.session = Session{
		AccessToken:  profile.Token,
		RefreshToken: profile.RefreshToken,
		Profile:      &profile,
	}
	c.mu.Unlock()

	c.log.Debug("login ok", logx.String("user", profile.FullName))
	return &profile, nil
}

// GetProfile fetches the account profile, unwrapping the {data: ...} envelope.
func (c *Client) GetProfile(ctx context.Context) (*UserProfile, error) {
	var pr profileResponse
	if err := c.request(ctx, http.MethodGet, "/api/v2/user/profile", nil, &pr); err != nil {
		return nil, err
	}
	return &pr.Data, nil
}

// GetScheduleBetweenDates fetches the schedule window [from, to]. The upstream
// contract wants from <= to; an inverted range is forwarded as-is and the
// upstream decides the (possibly empty) result.
func (c *Client) GetScheduleBetweenDates(ctx context.Context, from, to time.Time, locationsBoxID, boxesID int) (*ScheduleResponse, error) {
	reqBody := scheduleBetweenDatesRequest{
		From:           from.UTC().Format(isoMillis),
		To:             to.UTC().Format(isoMillis),
		LocationsBoxID: locationsBoxID,
		BoxesID:        boxesID,
	}
	var sr ScheduleResponse
	if err := c.request(ctx, http.MethodPost, "/api/v2/schedule/betweenDates", reqBody, &sr); err != nil {
		return nil, err
	}
	return &sr, nil
}

// SignToClass reserves a seat. There is no retry on conflict (already booked,
// class full); the caller inspects the response or pre-checks availability.
func (c *Client) SignToClass(ctx context.Context, scheduleID, membershipUserID int) (json.RawMessage, error) {
	reqBody := signToClassRequest{
		ScheduleID:       scheduleID,
		MembershipUserID: membershipUserID,
	}
	var raw json.RawMessage
	if err := c.request(ctx, http.MethodPost, "/api/v2/scheduleUser/insert", reqBody, &raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// request is the single authenticated primitive. It refuses to touch the
// network without a session, attaches the protocol headers, and decodes the
// response per the caller's expectation without schema validation.
func (c *Client) request(ctx context.Context, method, path string, body, out any) error {
	sess := c.Session()
	if !sess.LoggedIn() {
		return ErrNotAuthenticated
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return &APIError{Path: path, Err: err}
	}

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return &APIError{Path: path, Err: err}
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return &APIError{Path: path, Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Connection", "keep-alive")
	req.Header.Set("version", apiVersion)
	req.Header.Set("referername", "app")
	req.Header.Set("whitelabel", c.whitelabel)
	req.Header.Set("accesstoken", sess.AccessToken)
	if sess.RefreshToken != "" {
		req.Header.Set("refreshToken", sess.RefreshToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Path: path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return &APIError{Path: path, Status: resp.StatusCode, Err: err}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{
			Path:    path,
			Status:  resp.StatusCode,
			Message: upstreamMessage(raw),
			Err:     fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &APIError{Path: path, Status: resp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}

// upstreamMessage extracts the error message Arbox puts in failure bodies.
func upstreamMessage(raw []byte) string {
	var m struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &m); err != nil {
		return ""
	}
	if m.Message != "" {
		return m.Message
	}
	return m.Error
}
