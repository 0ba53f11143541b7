package tapo

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"
)

const (
	sessionCookie = "TP_SESSIONID"
	timeoutCookie = "TIMEOUT"

	// defaultSessionTimeout applies when the device omits the TIMEOUT cookie.
	defaultSessionTimeout = 24 * time.Hour

	// sessionMargin renews a session slightly before the device drops it.
	sessionMargin = 20 * time.Minute

	// maxResponseSize bounds what is read from a device.
	maxResponseSize = 64 << 10
)

// Client talks KLAP to one device. It satisfies device.Conn.
type Client struct {
	http    *http.Client
	address string
	baseURL string
	auth    []byte
	now     func() time.Time

	mu        sync.Mutex
	sess      *session
	cookie    string
	expiresAt time.Time
}

// NewClient creates a client for the device at address ("host", "host:port"
// or a full http URL). No network traffic happens until the first call.
func NewClient(httpClient *http.Client, address, username, password string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	base := address
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "http://" + base
	}
	return &Client{
		http:    httpClient,
		address: address,
		baseURL: strings.TrimRight(base, "/"),
		auth:    authHash(username, password),
		now:     time.Now,
	}
}

// Address returns the device address the client was created with.
func (c *Client) Address() string {
	return c.address
}

// Handshake establishes a new session, replacing any existing one.
func (c *Client) Handshake(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handshake(ctx)
}

func (c *Client) handshake(ctx context.Context) error {
	c.sess = nil

	local := make([]byte, seedSize)
	if _, err := rand.Read(local); err != nil {
		return fmt.Errorf("generating seed: %w", err)
	}

	resp, body, err := c.post(ctx, "/app/handshake1", local, "")
	if err != nil {
		return fmt.Errorf("%w: handshake1: %w", ErrHandshakeFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: handshake1: HTTP %d", ErrHandshakeFailed, resp.StatusCode)
	}
	if len(body) != seedSize+hashSize {
		return fmt.Errorf("%w: handshake1: body length %d", ErrHandshakeFailed, len(body))
	}

	remote := body[:seedSize]
	if !bytes.Equal(body[seedSize:], serverHash(local, remote, c.auth)) {
		return ErrAuthFailed
	}

	cookie, timeout := sessionFromCookies(resp.Cookies())
	if cookie == "" {
		return fmt.Errorf("%w: handshake1: no %s cookie", ErrHandshakeFailed, sessionCookie)
	}

	resp, _, err = c.post(ctx, "/app/handshake2", clientHash(local, remote, c.auth), cookie)
	if err != nil {
		return fmt.Errorf("%w: handshake2: %w", ErrHandshakeFailed, err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: handshake2: HTTP %d", ErrHandshakeFailed, resp.StatusCode)
	}

	sess, err := newSession(local, remote, c.auth)
	if err != nil {
		return err
	}

	c.sess = sess
	c.cookie = cookie
	expires := timeout - sessionMargin
	if expires <= 0 {
		expires = timeout
	}
	c.expiresAt = c.now().Add(expires)
	return nil
}

// sessionFromCookies extracts the session id and lifetime. Devices send
// both in one header ("TP_SESSIONID=x;TIMEOUT=86400"), which net/http
// parses as a TP_SESSIONID cookie with TIMEOUT as an unparsed attribute.
func sessionFromCookies(cookies []*http.Cookie) (id string, timeout time.Duration) {
	timeout = defaultSessionTimeout
	for _, ck := range cookies {
		switch ck.Name {
		case sessionCookie:
			id = ck.Value
		case timeoutCookie:
			timeout = parseTimeout(ck.Value, timeout)
		}
		for _, attr := range ck.Unparsed {
			name, value, ok := strings.Cut(attr, "=")
			if ok && strings.EqualFold(strings.TrimSpace(name), timeoutCookie) {
				timeout = parseTimeout(strings.TrimSpace(value), timeout)
			}
		}
	}
	return id, timeout
}

func parseTimeout(value string, fallback time.Duration) time.Duration {
	if secs, err := strconv.Atoi(value); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

// response is the envelope of every device reply.
type response struct {
	ErrorCode int             `json:"error_code"`
	Result    json.RawMessage `json:"result"`
}

// Call invokes method with params and decodes the result into out (which may be nil).
// An expired session is renewed first; a rejected session is dropped and
// reported as ErrSessionExpired without retrying.
func (c *Client) Call(ctx context.Context, method string, params, out any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sess == nil || !c.now().Before(c.expiresAt) {
		if err := c.handshake(ctx); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(struct {
		Method          string `json:"method"`
		Params          any    `json:"params,omitempty"`
		RequestTimeMils int64  `json:"requestTimeMils"`
	}{method, params, c.now().UnixMilli()})
	if err != nil {
		return fmt.Errorf("encoding %s: %w", method, err)
	}

	seq := c.sess.next()
	path := "/app/request?seq=" + strconv.FormatInt(int64(seq), 10)

	resp, body, err := c.post(ctx, path, c.sess.seal(seq, payload), c.cookie)
	if err != nil {
		return err
	}
	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusUnauthorized, http.StatusForbidden:
		c.sess = nil
		return ErrSessionExpired
	default:
		return fmt.Errorf("%w: %s: HTTP %d", ErrInvalidResponse, method, resp.StatusCode)
	}

	plain, err := c.sess.open(seq, body)
	if err != nil {
		return err
	}

	var env response
	if err := json.Unmarshal(plain, &env); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrInvalidResponse, method, err)
	}
	if env.ErrorCode != 0 {
		return fmt.Errorf("%w: %s: error_code %d", ErrDeviceError, method, env.ErrorCode)
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return fmt.Errorf("%w: %s result: %w", ErrInvalidResponse, method, err)
		}
	}
	return nil
}

// post sends one KLAP request and reads the whole body.
func (c *Client) post(ctx context.Context, path string, body []byte, cookie string) (*http.Response, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	if cookie != "" {
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: cookie})
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp, data, nil
}

// DeviceInfo is the subset of get_device_info that Homify uses.
type DeviceInfo struct {
	DeviceID string `json:"device_id"`
	Model    string `json:"model"`
	On       bool   `json:"device_on"`
	Nickname string `json:"nickname"`
}

// GetDeviceInfo reads the device's info, including its power state.
func (c *Client) GetDeviceInfo(ctx context.Context) (DeviceInfo, error) {
	var info DeviceInfo
	err := c.Call(ctx, "get_device_info", nil, &info)
	return info, err
}

// SetDeviceOn switches the device on or off.
func (c *Client) SetDeviceOn(ctx context.Context, on bool) error {
	return c.Call(ctx, "set_device_info", map[string]any{"device_on": on}, nil)
}
