package hilink

import (
	"bytes"
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/hilinkctl/hilinkctl/internal/logging"
)

const (
	// DefaultHost is the well-known gateway address HiLink devices answer on.
	DefaultHost = "192.168.8.1"

	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 10 * time.Second

	// sesTokInfoPath hands out the initial session cookie and verification
	// token. Older firmwares do not implement it.
	sesTokInfoPath = "webserver/SesTokInfo"

	tokenHeader = "__RequestVerificationToken"
)

// Session is the HTTP/XML transport for a device's web-management API.
// It owns the session cookie and the anti-replay verification tokens; the
// services built on top of it (User, Device) stay free of header plumbing.
//
// A Session is safe for concurrent use, but the device serializes logins
// itself: callers should keep at most one login in flight per session.
type Session struct {
	// BaseURL is the device base URL (e.g. "http://192.168.8.1").
	BaseURL string

	// HTTPClient is the underlying HTTP client.
	HTTPClient *http.Client

	mu        sync.Mutex
	cookie    string   // current session cookie, verbatim from the device
	tokens    []string // verification tokens queued for upcoming requests
	lastToken string   // most recently seen token, kept for hashing
}

// NewSession creates a session for the device at the given host or host:port.
func NewSession(host string) *Session {
	if host == "" {
		host = DefaultHost
	}
	return NewSessionWithURL("http://" + host)
}

// NewSessionWithURL creates a session with a full base URL
// (e.g. "https://192.168.8.1").
func NewSessionWithURL(baseURL string) *Session {
	return &Session{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		HTTPClient: &http.Client{Timeout: DefaultTimeout},
	}
}

// SetTimeout sets the HTTP request timeout.
func (s *Session) SetTimeout(timeout time.Duration) {
	s.HTTPClient.Timeout = timeout
}

// Connect establishes the device session: it requests the initial session
// cookie and verification token. Firmwares without the SesTokInfo endpoint
// are tolerated; the session then runs without a token until the device
// hands one out in a response header.
func (s *Session) Connect(ctx context.Context) error {
	var info sesTokInfo
	err := s.Get(ctx, sesTokInfoPath, &info)
	if err != nil {
		if IsNotSupported(err) {
			logging.Debug("device has no SesTokInfo endpoint, continuing tokenless",
				zap.String("base_url", s.BaseURL))
			return nil
		}
		return fmt.Errorf("session setup failed: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if info.SesInfo != "" {
		s.cookie = info.SesInfo
	}
	if info.TokInfo != "" {
		s.tokens = append(s.tokens, info.TokInfo)
		s.lastToken = info.TokInfo
	}
	return nil
}

// VerificationToken returns the current anti-replay token, or the empty
// string when the device has not issued one. It is read-only input to the
// hashed-credential encoding; consuming tokens is the transport's job.
func (s *Session) VerificationToken() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.tokens) > 0 {
		return s.tokens[0]
	}
	return s.lastToken
}

// sesTokInfo is the SesTokInfo response envelope.
type sesTokInfo struct {
	XMLName xml.Name `xml:"response"`
	SesInfo string   `xml:"SesInfo"`
	TokInfo string   `xml:"TokInfo"`
}

// errorEnvelope is the error body the device returns in place of a normal
// response.
type errorEnvelope struct {
	XMLName xml.Name `xml:"error"`
	Code    int      `xml:"code"`
	Message string   `xml:"message"`
}

// statusResponse is the acknowledgment body of submit-style endpoints,
// usually just "<response>OK</response>".
type statusResponse struct {
	XMLName xml.Name `xml:"response"`
	Value   string   `xml:",chardata"`
}

// StatusOK is the acknowledgment value the device sends for accepted
// submissions.
const StatusOK = "OK"

// Get performs a keyed fetch against an API path (e.g. "user/state-login")
// and decodes the response envelope into out.
func (s *Session) Get(ctx context.Context, path string, out any) error {
	body, err := s.do(ctx, http.MethodGet, path, nil, false)
	if err != nil {
		return err
	}
	return s.decode(body, path, out, false)
}

// Post performs a keyed submission against an API path. The payload is
// wrapped in the device's "<request>" envelope and the response decoded
// into out (which may be nil).
//
// sensitive marks authentication-carrying requests: their payload is never
// logged and stale-session errors are handed back raw instead of triggering
// a session refresh, so the caller can classify device codes itself.
func (s *Session) Post(ctx context.Context, path string, payload, out any, sensitive bool) error {
	body, err := encodeRequest(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request for %s: %w", path, err)
	}

	if !sensitive {
		logging.Debug("submitting request",
			zap.String("path", path),
			zap.ByteString("payload", body))
	}

	respBody, err := s.do(ctx, http.MethodPost, path, body, sensitive)
	if err != nil {
		return err
	}
	return s.decode(respBody, path, out, sensitive)
}

// PostStatus performs a submission and returns the acknowledgment status
// string (normally StatusOK).
func (s *Session) PostStatus(ctx context.Context, path string, payload any, sensitive bool) (string, error) {
	var status statusResponse
	if err := s.Post(ctx, path, payload, &status, sensitive); err != nil {
		return "", err
	}
	return strings.TrimSpace(status.Value), nil
}

// do runs one HTTP round trip, carrying the session cookie and one
// verification token, and absorbing replacements from the response headers.
func (s *Session) do(ctx context.Context, method, path string, body []byte, sensitive bool) ([]byte, error) {
	url := s.BaseURL + "/api/" + strings.TrimLeft(path, "/")

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request for %s: %w", method, path, err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded; charset=UTF-8")
	}

	s.mu.Lock()
	if s.cookie != "" {
		req.Header.Set("Cookie", s.cookie)
	}
	if token := s.popTokenLocked(); token != "" {
		req.Header.Set(tokenHeader, token)
	}
	s.mu.Unlock()

	resp, err := s.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request to %s failed: %w", path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	s.absorbSessionState(resp.Header)

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	if resp.StatusCode != http.StatusOK {
		// Missing endpoints on old firmwares surface as plain 404 pages
		// rather than an error envelope.
		if resp.StatusCode == http.StatusNotFound {
			return nil, &ResponseError{Code: codeSystemNotSupported, Endpoint: path}
		}
		return nil, fmt.Errorf("unexpected status %d from %s", resp.StatusCode, path)
	}

	logging.Debug("device responded",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Bool("sensitive", sensitive))

	return respBody, nil
}

// decode interprets a response body: error envelopes become *ResponseError,
// anything else is unmarshalled into out. Sensitive requests get the raw
// envelope error without logging, so credentials never reach the log and
// the caller classifies the code itself.
func (s *Session) decode(body []byte, path string, out any, sensitive bool) error {
	var errEnv errorEnvelope
	if xml.Unmarshal(body, &errEnv) == nil {
		respErr := &ResponseError{Code: errEnv.Code, Endpoint: path}
		if !sensitive {
			logging.Debug("device rejected request",
				zap.Int("code", respErr.Code),
				zap.String("path", path))
		}
		return respErr
	}

	if out == nil {
		return nil
	}
	if err := xml.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to parse response from %s: %w", path, err)
	}
	return nil
}

// popTokenLocked consumes the next queued verification token. The caller
// must hold s.mu.
func (s *Session) popTokenLocked() string {
	if len(s.tokens) == 0 {
		return s.lastToken
	}
	token := s.tokens[0]
	if len(s.tokens) > 1 {
		// Keep the last queued token available for reuse once the queue
		// drains; the device accepts it until it issues a fresh one.
		s.tokens = s.tokens[1:]
	}
	return token
}

// absorbSessionState picks up replacement cookies and verification tokens
// from response headers. Login responses hand out two follow-up tokens in
// dedicated headers; ordinary responses rotate a single token.
func (s *Session) absorbSessionState(h http.Header) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cookie := h.Get("Set-Cookie"); cookie != "" {
		// The device sends the bare session cookie, no attributes worth keeping.
		if i := strings.IndexByte(cookie, ';'); i >= 0 {
			cookie = cookie[:i]
		}
		s.cookie = cookie
	}

	if one := h.Get(tokenHeader + "one"); one != "" {
		s.tokens = []string{one}
		if two := h.Get(tokenHeader + "two"); two != "" {
			s.tokens = append(s.tokens, two)
		}
		s.lastToken = s.tokens[len(s.tokens)-1]
		return
	}

	if token := h.Get(tokenHeader); token != "" {
		s.tokens = []string{token}
		s.lastToken = token
	}
}

// encodeRequest wraps a payload struct in the XML declaration the device
// expects.
func encodeRequest(payload any) ([]byte, error) {
	body, err := xml.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), body...), nil
}
