package hnap

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	// DefaultUsername is the account every DSP-W215 ships with
	DefaultUsername = "admin"

	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 10 * time.Second

	// DefaultMaxLoginAttempts bounds the login retry loop
	DefaultMaxLoginAttempts = 5

	// DefaultRetryDelay is the initial delay between login attempts
	DefaultRetryDelay = 1 * time.Second

	// DefaultMaxRetryDelay caps the exponential backoff
	DefaultMaxRetryDelay = 30 * time.Second

	// MaxAuthFailures is how many consecutive "ERROR" state reads are
	// re-issued before State gives up
	MaxAuthFailures = 5

	// InvalidTemperature is returned when the plug reports no usable reading
	InvalidTemperature = -99.0
)

// HostURL returns the HNAP endpoint for a plug host or IP address.
func HostURL(host string) string {
	if strings.HasPrefix(host, "http://") || strings.HasPrefix(host, "https://") {
		host = strings.TrimSuffix(host, "/")
		if strings.HasSuffix(host, "/HNAP1") {
			return host
		}
		return host + "/HNAP1"
	}
	return "http://" + host + "/HNAP1"
}

// Client talks HNAP to a single plug and owns its session.
//
// Operations are serialised internally, so one Client may be shared between
// goroutines. State's failure counter and the session key are per Client.
type Client struct {
	// URL is the HNAP endpoint (e.g., "http://192.168.0.20/HNAP1")
	URL string

	// Username for login (default: "admin")
	Username string

	// Password is the PIN printed on the plug
	Password string

	// HTTPClient is the underlying HTTP client
	HTTPClient *http.Client

	// Logger receives request/response diagnostics (default: no-op)
	Logger *zap.Logger

	// MaxLoginAttempts bounds Login's retry loop. Zero or negative retries
	// until the context is done.
	MaxLoginAttempts int

	// RetryDelay is the initial delay between login attempts
	RetryDelay time.Duration

	// MaxRetryDelay is the maximum delay for exponential backoff
	MaxRetryDelay time.Duration

	mu           sync.Mutex
	session      Session
	authFailures int
}

// NewClient creates a client for the HNAP endpoint at url.
func NewClient(url, password string) *Client {
	return &Client{
		URL:              url,
		Username:         DefaultUsername,
		Password:         password,
		HTTPClient:       &http.Client{Timeout: DefaultTimeout},
		Logger:           zap.NewNop(),
		MaxLoginAttempts: DefaultMaxLoginAttempts,
		RetryDelay:       DefaultRetryDelay,
		MaxRetryDelay:    DefaultMaxRetryDelay,
	}
}

// SetTimeout sets the per-request HTTP timeout
func (c *Client) SetTimeout(timeout time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.HTTPClient.Timeout = timeout
}

// SetAuth sets the login credentials. The current session is kept until
// the next Login.
func (c *Client) SetAuth(username, password string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.Username = username
	c.Password = password
}

// SetRetry configures the login retry loop
func (c *Client) SetRetry(maxAttempts int, retryDelay time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.MaxLoginAttempts = maxAttempts
	c.RetryDelay = retryDelay
}

// Session returns a copy of the current session state.
func (c *Client) Session() Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session
}

// AuthFailures returns the current count of consecutive rejected state reads.
func (c *Client) AuthFailures() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authFailures
}

// Login runs the two-phase challenge/response handshake and reports whether
// the plug answered "success". Transport failures restart the whole
// handshake with exponential backoff until MaxLoginAttempts is reached.
func (c *Client) Login(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var lastErr error
	currentDelay := c.RetryDelay

	for attempt := 1; c.MaxLoginAttempts <= 0 || attempt <= c.MaxLoginAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, currentDelay); err != nil {
				return false, &Error{Kind: KindTimeout, Method: string(MethodLogin), Message: "login cancelled", Err: err}
			}
			currentDelay *= 2
			if currentDelay > c.MaxRetryDelay {
				currentDelay = c.MaxRetryDelay
			}
		}

		ok, err := c.loginAttempt(ctx)
		if err == nil {
			if ok {
				c.authFailures = 0
			}
			c.log().Debug("Login finished",
				zap.Bool("success", ok),
				zap.String("result", c.session.LoginResult),
				zap.Int("attempt", attempt),
			)
			return ok, nil
		}

		lastErr = err
		if !isTransportError(err) || ctx.Err() != nil {
			return false, err
		}

		c.log().Warn("Login attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", currentDelay),
			zap.Error(err),
		)
	}

	return false, newFatalError(string(MethodLogin), c.MaxLoginAttempts, lastErr)
}

// loginAttempt performs a single handshake.
func (c *Client) loginAttempt(ctx context.Context) (bool, error) {
	c.session = Session{}

	body, err := c.post(ctx, MethodLogin, loginParams("request", c.Username, ""), false)
	if err != nil {
		return false, err
	}

	var reply loginReply
	if _, err := decodeFirst(body, "LoginResponse", &reply); err != nil {
		return false, newParseError(string(MethodLogin), err)
	}
	c.session.apply(&reply, c.Password)

	if c.session.PrivateKey == "" {
		return false, &Error{
			Kind:    KindProtocol,
			Method:  string(MethodLogin),
			Message: "login challenge missing from reply",
		}
	}

	body, err = c.post(ctx, MethodLogin, loginParams("login", c.Username, c.session.loginProof()), true)
	if err != nil {
		return false, err
	}

	result := FindText(body, MethodLogin.ResponseElement())
	if result != ErrorValue {
		c.session.LoginResult = result
	}
	return result == LoginSuccess, nil
}

// State reads the socket's power status. "ERROR" replies are re-read up to
// MaxAuthFailures times before a fatal error is returned.
func (c *Client) State(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		status, err := c.call(ctx, MethodGetSocketSettings, moduleParams(ModuleSocket)...)
		if err != nil {
			return false, err
		}

		if status == ErrorValue {
			if c.authFailures >= MaxAuthFailures {
				return false, newFatalError(string(MethodGetSocketSettings), c.authFailures+1, nil)
			}
			c.authFailures++
			c.log().Debug("State read rejected, retrying",
				zap.Int("auth_failures", c.authFailures),
			)
			if err := ctx.Err(); err != nil {
				return false, &Error{Kind: KindTimeout, Method: string(MethodGetSocketSettings), Message: "state read cancelled", Err: err}
			}
			continue
		}

		c.authFailures = 0
		return status == "true", nil
	}
}

// SetState switches the socket and returns the raw SetSocketSettingsResult
// text. Anything other than ErrorValue means the plug accepted the request.
func (c *Client) SetState(ctx context.Context, on bool) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.call(ctx, MethodSetSocketSettings, controlParams(ModuleSocket, on)...)
}

// Temperature returns the plug's internal temperature in degrees Celsius,
// or InvalidTemperature when the reply has no numeric reading.
func (c *Client) Temperature(ctx context.Context) (float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	text, err := c.call(ctx, MethodGetCurrentTemperature, moduleParams(ModuleTemperature)...)
	if err != nil {
		return InvalidTemperature, err
	}
	return parseTemperature(text), nil
}

func parseTemperature(text string) float64 {
	if text == ErrorValue {
		return InvalidTemperature
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(text), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return InvalidTemperature
	}
	return v
}

// InternetSettings returns the plug's network configuration, or nil when
// the reply has no GetInternetSettingsResponse element.
func (c *Client) InternetSettings(ctx context.Context) (*InternetSettings, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	body, err := c.post(ctx, MethodGetInternetSettings, nil, true)
	if err != nil {
		return nil, err
	}
	c.logReadiness(ctx)

	var reply internetSettingsReply
	found, err := decodeFirst(body, "GetInternetSettingsResponse", &reply)
	if err != nil {
		return nil, newParseError(string(MethodGetInternetSettings), err)
	}
	if !found {
		return nil, nil
	}
	return reply.settings(), nil
}

// IsReady reports whether the plug answers IsDeviceReady with "OK".
func (c *Client) IsReady(ctx context.Context) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.isReady(ctx)
}

func (c *Client) isReady(ctx context.Context) (bool, error) {
	result, err := c.call(ctx, MethodIsDeviceReady)
	if err != nil {
		return false, err
	}
	return result == "OK", nil
}

// APClientSettings returns the unparsed reply for the 2.4GHz radio's
// client settings.
func (c *Client) APClientSettings(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	body, err := c.post(ctx, MethodGetAPClientSettings, radioParams(Radio2GHz), true)
	if err != nil {
		return "", err
	}
	c.logReadiness(ctx)
	return string(body), nil
}

// logReadiness records whether the plug is ready after a raw call. The
// extra round trip only happens when debug logging is on.
func (c *Client) logReadiness(ctx context.Context) {
	if !c.log().Core().Enabled(zapcore.DebugLevel) {
		return
	}
	ready, err := c.isReady(ctx)
	if err != nil {
		c.log().Debug("Readiness check failed", zap.Error(err))
		return
	}
	c.log().Debug("Device readiness", zap.Bool("ready", ready))
}

// call issues a signed request and extracts the method's response element.
func (c *Client) call(ctx context.Context, method Method, params ...Param) (string, error) {
	body, err := c.post(ctx, method, params, true)
	if err != nil {
		return "", err
	}
	return FindText(body, method.ResponseElement()), nil
}

// post sends one HNAP request. Signed requests carry HNAP_AUTH and the
// session cookie computed from the session at send time.
func (c *Client) post(ctx context.Context, method Method, params []Param, signed bool) ([]byte, error) {
	if signed && c.session.PrivateKey == "" {
		return nil, &Error{Kind: KindProtocol, Method: string(method), Message: "request not signed", Err: ErrNotLoggedIn}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(BuildEnvelope(method, params...)))
	if err != nil {
		return nil, &Error{Kind: KindNetwork, Method: string(method), Message: "failed to create request", Err: err}
	}

	// Header keys are assigned directly: the firmware matches them case-sensitively.
	req.Header["Content-Type"] = []string{"text/xml; charset=utf-8"}
	req.Header["SOAPAction"] = []string{method.SOAPAction()}
	if signed {
		req.Header["HNAP_AUTH"] = []string{c.session.authHeader(method.SOAPAction(), time.Now().Unix())}
		req.Header["Cookie"] = []string{c.session.cookieHeader()}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, classifyTransportError(string(method), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, newHTTPError(string(method), resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classifyTransportError(string(method), err)
	}

	c.log().Debug("HNAP exchange",
		zap.String("method", string(method)),
		zap.Int("status_code", resp.StatusCode),
		zap.Int("length", len(body)),
		zap.ByteString("body", truncate(body, 512)),
	)
	return body, nil
}

func isTransportError(err error) bool {
	e, ok := err.(*Error)
	if !ok {
		return false
	}
	return e.Kind == KindNetwork || e.Kind == KindTimeout || e.Kind == KindHTTP
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}

// String describes the client for logs.
func (c *Client) String() string {
	return fmt.Sprintf("HNAP client %s@%s", c.Username, c.URL)
}

func (c *Client) log() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}
