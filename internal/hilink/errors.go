package hilink

import (
	"errors"
	"fmt"
)

// Well-known system error codes shared by all endpoints. Codes in the
// 108xxx/115xxx range are login-specific and handled by LoginError.
const (
	codeSystemNotSupported = 100002
	codeSystemNoRights     = 100003
	codeSystemBusy         = 100004
	codeWrongToken         = 125001
	codeWrongSession       = 125002
	codeWrongSessionToken  = 125003
)

// Device error codes returned by user/login.
const (
	codeUsernameWrong         = 108001
	codePasswordWrong         = 108002
	codeAlreadyLogin          = 108003
	codeUsernamePasswordWrong = 108006
	codeLoginAttemptsExceeded = 108007
	codePasswordChangeNeeded  = 115002
)

// ResponseError is a structured error envelope returned by the device in
// place of a normal response body. It carries the raw numeric code so
// callers can classify failures the firmware reports.
type ResponseError struct {
	Code     int    // device error code from the envelope
	Endpoint string // API path the request was sent to
}

// Error implements the error interface.
func (e *ResponseError) Error() string {
	return fmt.Sprintf("device error %d at %s", e.Code, e.Endpoint)
}

// NotSupported reports whether the device rejected the request because the
// endpoint does not exist on this firmware.
func (e *ResponseError) NotSupported() bool {
	return e.Code == codeSystemNotSupported
}

// LoginRequired reports whether the device refused the request for lack of
// an authenticated session.
func (e *ResponseError) LoginRequired() bool {
	return e.Code == codeSystemNoRights
}

// StaleSession reports whether the session cookie or verification token was
// rejected and the session needs to be re-established.
func (e *ResponseError) StaleSession() bool {
	return e.Code == codeWrongToken || e.Code == codeWrongSession || e.Code == codeWrongSessionToken
}

// IsNotSupported reports whether err is a device response signalling the
// requested capability is missing from this firmware.
func IsNotSupported(err error) bool {
	var respErr *ResponseError
	return errors.As(err, &respErr) && respErr.NotSupported()
}

// IsLoginRequired reports whether err is a device response demanding
// authentication.
func IsLoginRequired(err error) bool {
	var respErr *ResponseError
	return errors.As(err, &respErr) && respErr.LoginRequired()
}

// LoginFailure identifies why the device rejected a login attempt.
type LoginFailure int

const (
	// FailureUnknown covers error codes the client does not recognize.
	FailureUnknown LoginFailure = iota
	// FailureUsernameWrong means the username does not exist on the device.
	FailureUsernameWrong
	// FailurePasswordWrong means the password was rejected.
	FailurePasswordWrong
	// FailureAlreadyLoggedIn means another session holds the login slot.
	FailureAlreadyLoggedIn
	// FailureUsernameOrPasswordWrong means the device reported a combined
	// credential failure without saying which part was wrong.
	FailureUsernameOrPasswordWrong
	// FailureAttemptsExhausted means the device locked logins after too
	// many failed attempts.
	FailureAttemptsExhausted
	// FailurePasswordChangeRequired means the device demands a password
	// change before it accepts logins.
	FailurePasswordChangeRequired
)

// String returns a human-readable name for the failure.
func (f LoginFailure) String() string {
	switch f {
	case FailureUsernameWrong:
		return "Username wrong"
	case FailurePasswordWrong:
		return "Password wrong"
	case FailureAlreadyLoggedIn:
		return "Already login"
	case FailureUsernameOrPasswordWrong:
		return "Username and Password wrong"
	case FailureAttemptsExhausted:
		return "Password overrun"
	case FailurePasswordChangeRequired:
		return "Password modify"
	default:
		return "Unknown"
	}
}

// LoginError is a classified login rejection. It always carries both the
// failure kind and the original numeric code from the device.
type LoginError struct {
	Code    int
	Failure LoginFailure
}

// Error implements the error interface.
func (e *LoginError) Error() string {
	return fmt.Sprintf("%d: %s", e.Code, e.Failure)
}

// classifyLoginError maps a device error code from user/login to a typed
// LoginError. Unrecognized codes map to FailureUnknown with the raw code
// preserved.
func classifyLoginError(code int) *LoginError {
	failure := FailureUnknown
	switch code {
	case codeUsernameWrong:
		failure = FailureUsernameWrong
	case codePasswordWrong:
		failure = FailurePasswordWrong
	case codeAlreadyLogin:
		failure = FailureAlreadyLoggedIn
	case codeUsernamePasswordWrong:
		failure = FailureUsernameOrPasswordWrong
	case codeLoginAttemptsExceeded:
		failure = FailureAttemptsExhausted
	case codePasswordChangeNeeded:
		failure = FailurePasswordChangeRequired
	}
	return &LoginError{Code: code, Failure: failure}
}

// IsLoginError reports whether err is a classified login rejection and
// returns it when so.
func IsLoginError(err error) (*LoginError, bool) {
	var loginErr *LoginError
	if errors.As(err, &loginErr) {
		return loginErr, true
	}
	return nil, false
}
