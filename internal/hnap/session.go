package hnap

import "strconv"

// Login outcomes reported in LoginResult
const (
	LoginSuccess = "success"
	LoginFailed  = "failed"
)

// Session is the authentication state negotiated with one plug.
// PrivateKey is empty until a "request" reply supplied both Challenge and
// PublicKey.
type Session struct {
	Challenge   string
	PublicKey   string
	Cookie      string
	PrivateKey  string
	LoginResult string
}

// apply stores the non-empty fields of a login reply and derives the
// signing key once challenge and public key are known.
func (s *Session) apply(reply *loginReply, password string) {
	if reply.LoginResult != "" {
		s.LoginResult = reply.LoginResult
	}
	if reply.Challenge != "" {
		s.Challenge = reply.Challenge
	}
	if reply.PublicKey != "" {
		s.PublicKey = reply.PublicKey
	}
	if reply.Cookie != "" {
		s.Cookie = reply.Cookie
	}
	if s.Challenge != "" && s.PublicKey != "" {
		s.PrivateKey = signUpper(s.PublicKey+password, s.Challenge)
	}
}

// LoggedIn reports whether the last login phase succeeded.
func (s *Session) LoggedIn() bool {
	return s.LoginResult == LoginSuccess
}

// loginProof is the LoginPassword value of the "login" phase.
func (s *Session) loginProof() string {
	return signUpper(s.PrivateKey, s.Challenge)
}

// authHeader computes HNAP_AUTH for action at unix time ts. It is always
// derived from the current PrivateKey; nothing is cached across re-logins.
func (s *Session) authHeader(action string, ts int64) string {
	stamp := strconv.FormatInt(ts, 10)
	return signUpper(s.PrivateKey, stamp+action) + " " + stamp
}

// cookieHeader is the Cookie header value identifying the session.
func (s *Session) cookieHeader() string {
	return "uid=" + s.Cookie
}
