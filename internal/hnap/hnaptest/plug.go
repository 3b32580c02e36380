// Package hnaptest provides an in-process fake DSP-W215 for tests.
//
// The fake implements the login handshake and verifies HNAP_AUTH on every
// signed call, so tests exercise the real signing path end to end:
//
//	plug := hnaptest.NewPlug("123456")
//	defer plug.Close()
//
//	client := hnap.NewClient(plug.URL(), "123456")
//	ok, err := client.Login(ctx)
package hnaptest

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"

	"github.com/muurk/dspw215/internal/hnap"
)

// Request is one request received by the fake plug.
type Request struct {
	Method     hnap.Method
	Params     []hnap.Param
	SOAPAction string
	Auth       string
	Cookie     string
	// SignedWith is the session key the request verified against ("" when
	// unsigned or invalid).
	SignedWith string
}

// Param returns the value of the named parameter.
func (r Request) Param(name string) string {
	for _, p := range r.Params {
		if p.Name == name {
			return p.Value
		}
	}
	return ""
}

// Plug is a fake HNAP plug served by httptest.
type Plug struct {
	Username string
	Password string

	// Challenge, PublicKey and Cookie are issued on each "request" login
	// phase. NextSession rotates them.
	Challenge string
	PublicKey string
	Cookie    string

	On          bool
	Temperature string
	Ready       string
	SetResult   string

	// InternetSettings is the inner XML of GetInternetSettingsResponse.
	// Empty omits the element entirely.
	InternetSettings string

	// StateErrors makes the next N GetSocketSettings calls answer "ERROR".
	StateErrors int

	// FailRequests makes the next N requests of any kind answer HTTP 500.
	FailRequests int

	mu       sync.Mutex
	server   *httptest.Server
	requests []Request
	session  int
}

// NewPlug starts a fake plug with the given PIN.
func NewPlug(password string) *Plug {
	p := &Plug{
		Username:    hnap.DefaultUsername,
		Password:    password,
		Challenge:   "CHALLENGE0",
		PublicKey:   "PUBKEY0",
		Cookie:      "COOKIE0",
		Temperature: "21.5",
		Ready:       "OK",
		SetResult:   "OK",
		InternetSettings: "<GetInternetSettingsResult>OK</GetInternetSettingsResult>" +
			"<Type>DHCP</Type><IPAddress>192.168.0.20</IPAddress><HostName>DSP-W215</HostName>" +
			"<Gateway>192.168.0.1</Gateway><SubnetMask>255.255.255.0</SubnetMask>" +
			"<MacAddress>AA:BB:CC:DD:EE:FF</MacAddress><MTU>1500</MTU>",
	}
	p.server = httptest.NewServer(http.HandlerFunc(p.handle))
	return p
}

// URL returns the plug's HNAP endpoint.
func (p *Plug) URL() string {
	return p.server.URL + "/HNAP1"
}

// Close shuts the server down.
func (p *Plug) Close() {
	p.server.Close()
}

// Update changes the plug's exported fields while the server is running.
func (p *Plug) Update(fn func(p *Plug)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fn(p)
}

// IsOn reports the socket's current power state.
func (p *Plug) IsOn() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.On
}

// NextSession rotates the challenge, public key and cookie, invalidating
// any key derived from the previous ones.
func (p *Plug) NextSession() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.session++
	p.Challenge = "CHALLENGE" + strconv.Itoa(p.session)
	p.PublicKey = "PUBKEY" + strconv.Itoa(p.session)
	p.Cookie = "COOKIE" + strconv.Itoa(p.session)
}

// PrivateKey returns the signing key a correct client derives for the
// current session.
func (p *Plug) PrivateKey() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.privateKey()
}

func (p *Plug) privateKey() string {
	return strings.ToUpper(hnap.Sign(p.PublicKey+p.Password, p.Challenge))
}

// Requests returns a copy of every request received so far.
func (p *Plug) Requests() []Request {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Request, len(p.requests))
	copy(out, p.requests)
	return out
}

// Count returns how many requests for method were received.
func (p *Plug) Count(method hnap.Method) int {
	n := 0
	for _, r := range p.Requests() {
		if r.Method == method {
			n++
		}
	}
	return n
}

func (p *Plug) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost || r.URL.Path != "/HNAP1" {
		http.NotFound(w, r)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	method, params, err := hnap.ParseEnvelope(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	req := Request{
		Method:     method,
		Params:     params,
		SOAPAction: r.Header.Get("SOAPAction"),
		Auth:       r.Header.Get("HNAP_AUTH"),
		Cookie:     r.Header.Get("Cookie"),
	}
	if p.verify(req) {
		req.SignedWith = p.privateKey()
	}
	p.requests = append(p.requests, req)

	if p.FailRequests > 0 {
		p.FailRequests--
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/xml; charset=utf-8")
	fmt.Fprint(w, p.reply(req))
}

// verify checks HNAP_AUTH and the session cookie against the current session.
func (p *Plug) verify(req Request) bool {
	sig, stamp, ok := strings.Cut(req.Auth, " ")
	if !ok || req.Cookie != "uid="+p.Cookie {
		return false
	}
	want := strings.ToUpper(hnap.Sign(p.privateKey(), stamp+req.SOAPAction))
	return sig == want && req.SOAPAction == req.Method.SOAPAction()
}

func (p *Plug) reply(req Request) string {
	signed := req.SignedWith != ""

	switch req.Method {
	case hnap.MethodLogin:
		switch req.Param("Action") {
		case "request":
			return envelope(hnap.MethodLogin,
				"<LoginResult>OK</LoginResult>"+
					"<Challenge>"+p.Challenge+"</Challenge>"+
					"<Cookie>"+p.Cookie+"</Cookie>"+
					"<PublicKey>"+p.PublicKey+"</PublicKey>")
		case "login":
			proof := strings.ToUpper(hnap.Sign(p.privateKey(), p.Challenge))
			if signed && req.Param("Username") == p.Username && req.Param("LoginPassword") == proof {
				return envelope(hnap.MethodLogin, "<LoginResult>success</LoginResult>")
			}
			return envelope(hnap.MethodLogin, "<LoginResult>failed</LoginResult>")
		}
	case hnap.MethodGetSocketSettings:
		if !signed || p.StateErrors > 0 {
			if p.StateErrors > 0 {
				p.StateErrors--
			}
			return envelope(req.Method, "<GetSocketSettingsResult>ERROR</GetSocketSettingsResult>")
		}
		return envelope(req.Method,
			"<GetSocketSettingsResult>OK</GetSocketSettingsResult>"+
				"<SocketInfoList><SocketInfo><ModuleID>1</ModuleID>"+
				"<OPStatus>"+strconv.FormatBool(p.On)+"</OPStatus>"+
				"</SocketInfo></SocketInfoList>")
	case hnap.MethodSetSocketSettings:
		if !signed {
			return envelope(req.Method, "")
		}
		if on, err := strconv.ParseBool(req.Param("OPStatus")); err == nil {
			p.On = on
		}
		return envelope(req.Method, "<SetSocketSettingsResult>"+p.SetResult+"</SetSocketSettingsResult>")
	case hnap.MethodGetCurrentTemperature:
		if !signed || p.Temperature == "" {
			return envelope(req.Method, "")
		}
		return envelope(req.Method,
			"<GetCurrentTemperatureResult>OK</GetCurrentTemperatureResult>"+
				"<TemperatureInfo><ModuleID>3</ModuleID>"+
				"<CurrentTemperature>"+p.Temperature+"</CurrentTemperature>"+
				"</TemperatureInfo>")
	case hnap.MethodGetInternetSettings:
		if !signed || p.InternetSettings == "" {
			return "<html><body>not found</body></html>"
		}
		return envelope(req.Method, p.InternetSettings)
	case hnap.MethodIsDeviceReady:
		if !signed {
			return envelope(req.Method, "")
		}
		return envelope(req.Method, "<IsDeviceReadyResult>"+p.Ready+"</IsDeviceReadyResult>")
	case hnap.MethodGetAPClientSettings:
		return envelope(req.Method,
			"<GetAPClientSettingsResult>OK</GetAPClientSettingsResult>"+
				"<RadioID>"+req.Param("RadioID")+"</RadioID><Enabled>true</Enabled>")
	}
	return envelope(req.Method, "")
}

func envelope(method hnap.Method, inner string) string {
	return `<?xml version="1.0" encoding="utf-8"?>` +
		`<soap:Envelope xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">` +
		`<soap:Body><` + string(method) + `Response xmlns="` + hnap.Namespace + `">` +
		inner +
		`</` + string(method) + `Response></soap:Body></soap:Envelope>`
}
