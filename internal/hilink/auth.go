package hilink

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/xml"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hilinkctl/hilinkctl/internal/logging"
	"github.com/hilinkctl/hilinkctl/internal/retry"
)

// LoginState is the device-reported session state from user/state-login.
type LoginState int

const (
	// StateLoggedIn means the current session is authenticated.
	StateLoggedIn LoginState = 0
	// StateNotLoggedIn means the current session holds no login.
	StateNotLoggedIn LoginState = -1
	// StateRepeatLogin means the device saw too many parallel sessions.
	StateRepeatLogin LoginState = -2
)

// PasswordType selects the password encoding the device demands. The value
// is authoritative and device-supplied; it is re-fetched on every login
// attempt and never cached.
type PasswordType int

const (
	// PasswordTypePlain submits the password Base64-encoded as-is.
	PasswordTypePlain PasswordType = 0
	// PasswordTypeSHA256 submits a double SHA-256 construction bound to
	// the username and the session's verification token.
	PasswordTypeSHA256 PasswordType = 4
)

// State probe policy: devices may close the connection when the login state
// is queried immediately after session setup, so the probe retries with a
// growing delay.
const (
	stateProbeAttempts = 5
	stateProbeStep     = 100 * time.Millisecond
)

// StateInfo is the login state reported by user/state-login.
type StateInfo struct {
	XMLName      xml.Name     `xml:"response"`
	State        LoginState   `xml:"State"`
	Username     string       `xml:"Username"`
	PasswordType PasswordType `xml:"password_type"`
}

// User handles authentication against the device's user endpoints. The
// credentials are fixed at construction; the password may be empty for
// devices that run without authentication.
type User struct {
	session  *Session
	username string
	password string
}

// NewUser creates a User service on an established session.
func NewUser(session *Session, username, password string) *User {
	return &User{
		session:  session,
		username: username,
		password: password,
	}
}

// StateLogin fetches the device's current login state once, without the
// retry the login flow applies.
func (u *User) StateLogin(ctx context.Context) (*StateInfo, error) {
	var state StateInfo
	if err := u.session.Get(ctx, "user/state-login", &state); err != nil {
		return nil, err
	}
	return &state, nil
}

// Login establishes an authenticated session.
//
// It probes the device's login state first. Devices whose firmware lacks
// the state-login endpoint are treated as logged in and Login returns true
// without submitting credentials (changing this would break devices that
// never require a login). If the device reports an existing login and
// forceNewLogin is false, Login likewise returns true immediately.
// Otherwise the password is encoded per the device-reported password type
// and submitted; a rejected submission surfaces as a *LoginError.
func (u *User) Login(ctx context.Context, forceNewLogin bool) (bool, error) {
	state, err := retry.Do(ctx, retry.Policy{
		MaxAttempts:  stateProbeAttempts,
		Backoff:      func(i int) time.Duration { return time.Duration(i+1) * stateProbeStep },
		ShortCircuit: IsNotSupported,
	}, func(ctx context.Context) (*StateInfo, error) {
		return u.StateLogin(ctx)
	})
	if err != nil {
		if IsNotSupported(err) {
			logging.Debug("device does not report login state, assuming logged in")
			return true, nil
		}
		return false, err
	}

	if state.State == StateLoggedIn && !forceNewLogin {
		logging.Debug("session already logged in")
		return true, nil
	}

	return u.attemptLogin(ctx, state.PasswordType)
}

// loginRequest is the user/login submission payload. Field order matters to
// some firmwares, so it is kept as the device's web UI sends it.
type loginRequest struct {
	XMLName      xml.Name `xml:"request"`
	Username     string   `xml:"Username"`
	Password     string   `xml:"Password"`
	PasswordType int      `xml:"password_type"`
}

// attemptLogin encodes the password per the demanded scheme, submits it,
// and classifies a structured rejection into a *LoginError. The encoded
// credential is computed fresh on every call.
func (u *User) attemptLogin(ctx context.Context, passwordType PasswordType) (bool, error) {
	var encoded string
	if u.password != "" {
		switch passwordType {
		case PasswordTypeSHA256:
			encoded = hashCredential(u.username, u.password, u.session.VerificationToken())
		default:
			encoded = base64.StdEncoding.EncodeToString([]byte(u.password))
		}
	}

	logging.Debug("submitting login",
		zap.String("username", u.username),
		zap.Int("password_type", int(passwordType)))

	status, err := u.session.PostStatus(ctx, "user/login", &loginRequest{
		Username:     u.username,
		Password:     encoded,
		PasswordType: int(passwordType),
	}, true)
	if err != nil {
		if respErr, ok := asResponseError(err); ok {
			return false, classifyLoginError(respErr.Code)
		}
		return false, err
	}

	return status == StatusOK, nil
}

// Logout ends the authenticated session.
func (u *User) Logout(ctx context.Context) error {
	type logoutRequest struct {
		XMLName xml.Name `xml:"request"`
		Logout  int      `xml:"Logout"`
	}
	status, err := u.session.PostStatus(ctx, "user/logout", &logoutRequest{Logout: 1}, false)
	if err != nil {
		return err
	}
	if status != StatusOK {
		return fmt.Errorf("logout rejected with status %q", status)
	}
	return nil
}

// HeartBeat keeps the authenticated session alive. Firmwares without the
// endpoint report not-supported, which callers may ignore.
func (u *User) HeartBeat(ctx context.Context) error {
	type heartbeatRequest struct {
		XMLName xml.Name `xml:"request"`
	}
	_, err := u.session.PostStatus(ctx, "user/heartbeat", &heartbeatRequest{}, false)
	return err
}

// RemindState is the user/remind passthrough response.
type RemindState struct {
	XMLName     xml.Name `xml:"response"`
	RemindState string   `xml:"remindstate"`
}

// Remind fetches the password-change reminder state.
func (u *User) Remind(ctx context.Context) (*RemindState, error) {
	var remind RemindState
	if err := u.session.Get(ctx, "user/remind", &remind); err != nil {
		return nil, err
	}
	return &remind, nil
}

// PasswordRules is the user/password passthrough response describing the
// device's password policy.
type PasswordRules struct {
	XMLName xml.Name `xml:"response"`
	Rules   string   `xml:"password_rule"`
}

// PasswordPolicy fetches the device's password policy.
func (u *User) PasswordPolicy(ctx context.Context) (*PasswordRules, error) {
	var rules PasswordRules
	if err := u.session.Get(ctx, "user/password", &rules); err != nil {
		return nil, err
	}
	return &rules, nil
}

// PasswordStatus is the user/pwd passthrough response.
type PasswordStatus struct {
	XMLName xml.Name `xml:"response"`
	Status  string   `xml:",innerxml"`
}

// PasswordState fetches the raw password-status blob some firmwares expose.
func (u *User) PasswordState(ctx context.Context) (*PasswordStatus, error) {
	var status PasswordStatus
	if err := u.session.Get(ctx, "user/pwd", &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// hashCredential computes the double-salted credential for SHA-256 mode:
//
//	base64(hex(sha256(username + base64(hex(sha256(password))) + token)))
//
// Binding the second stage to the username and the session's verification
// token prevents replay of a captured single-stage hash.
func hashCredential(username, password, token string) string {
	first := sha256.Sum256([]byte(password))
	firstEncoded := base64.StdEncoding.EncodeToString([]byte(hex.EncodeToString(first[:])))

	second := sha256.Sum256([]byte(username + firstEncoded + token))
	return base64.StdEncoding.EncodeToString([]byte(hex.EncodeToString(second[:])))
}

// asResponseError unwraps err to the device's structured response error.
func asResponseError(err error) (*ResponseError, bool) {
	var respErr *ResponseError
	if errors.As(err, &respErr) {
		return respErr, true
	}
	return nil, false
}
