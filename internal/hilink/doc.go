// Package hilink implements a client for the web-management API of
// HiLink-style LTE routers and modems.
//
// The heart of the package is the login negotiation: the device decides
// which password encoding it accepts, reports it through user/state-login,
// and the client computes the matching credential before submitting it to
// user/login. Devices reject logins with numeric error codes, which the
// client translates into typed errors a caller can act on.
//
// # Session and services
//
// A Session owns the transport: the HTTP client, the session cookie, and
// the anti-replay verification tokens the device rotates through response
// headers. Services are thin wrappers over a Session:
//
//	session := hilink.NewSession("192.168.8.1")
//	if err := session.Connect(ctx); err != nil {
//	    return err
//	}
//
//	user := hilink.NewUser(session, "admin", "password")
//	ok, err := user.Login(ctx, false)
//	if err != nil {
//	    if loginErr, is := hilink.IsLoginError(err); is {
//	        // loginErr.Failure says why: wrong password, attempts
//	        // exhausted, password change required, ...
//	    }
//	    return err
//	}
//
//	device := hilink.NewDevice(session)
//	info, err := device.Information(ctx)
//
// # Login state probing
//
// Some firmwares close the connection when user/state-login is queried
// immediately after session setup. Login absorbs this with a bounded retry
// (5 attempts, backoff growing by 100ms per attempt). Firmwares that lack
// the endpoint entirely never require a login; Login treats them as already
// authenticated.
//
// # Error handling
//
// Transport-level failures and device error envelopes outside the login
// flow surface as wrapped errors or *ResponseError values carrying the raw
// device code. Login rejections are always *LoginError values carrying both
// the failure kind and the original code; nothing is swallowed.
package hilink
