package hnap

import (
	"strings"
	"testing"
)

func TestSession_ApplyDerivesKey(t *testing.T) {
	var s Session
	s.apply(&loginReply{LoginResult: "OK", Challenge: "chal", PublicKey: "pub", Cookie: "c1"}, "123456")

	want := strings.ToUpper(Sign("pub"+"123456", "chal"))
	if s.PrivateKey != want {
		t.Errorf("PrivateKey = %s, want %s", s.PrivateKey, want)
	}
	if s.Cookie != "c1" || s.LoginResult != "OK" {
		t.Errorf("session = %+v", s)
	}
	if s.LoggedIn() {
		t.Error("LoggedIn() should be false until LoginResult is success")
	}
}

func TestSession_ApplyWithoutChallenge(t *testing.T) {
	var s Session
	s.apply(&loginReply{PublicKey: "pub", Cookie: "c1"}, "123456")

	if s.PrivateKey != "" {
		t.Errorf("PrivateKey = %s, want empty before a challenge arrives", s.PrivateKey)
	}
}

func TestSession_AuthHeader(t *testing.T) {
	s := Session{PrivateKey: "KEY", Cookie: "c1"}
	action := MethodIsDeviceReady.SOAPAction()

	got := s.authHeader(action, 1700000000)
	want := strings.ToUpper(Sign("KEY", "1700000000"+action)) + " 1700000000"
	if got != want {
		t.Errorf("authHeader() = %s, want %s", got, want)
	}

	s.PrivateKey = "OTHER"
	if s.authHeader(action, 1700000000) == got {
		t.Error("authHeader() should change when the private key changes")
	}

	if s.cookieHeader() != "uid=c1" {
		t.Errorf("cookieHeader() = %s", s.cookieHeader())
	}
}

func TestSession_LoginProof(t *testing.T) {
	s := Session{PrivateKey: "KEY", Challenge: "chal"}
	if got, want := s.loginProof(), strings.ToUpper(Sign("KEY", "chal")); got != want {
		t.Errorf("loginProof() = %s, want %s", got, want)
	}
}
