package hnap

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
)

// Namespace is the XML namespace of every HNAP method element.
const Namespace = "http://purenetworks.com/HNAP1/"

// Method is an HNAP remote method name.
type Method string

// Methods understood by the DSP-W215 family
const (
	MethodLogin                 Method = "Login"
	MethodGetSocketSettings     Method = "GetSocketSettings"
	MethodSetSocketSettings     Method = "SetSocketSettings"
	MethodGetCurrentTemperature Method = "GetCurrentTemperature"
	MethodGetAPClientSettings   Method = "GetAPClientSettings"
	MethodGetInternetSettings   Method = "GetInternetSettings"
	MethodIsDeviceReady         Method = "IsDeviceReady"
)

// responseElements maps each method to the reply element carrying its result.
var responseElements = map[Method]string{
	MethodLogin:                 "LoginResult",
	MethodGetSocketSettings:     "OPStatus",
	MethodSetSocketSettings:     "SetSocketSettingsResult",
	MethodGetCurrentTemperature: "CurrentTemperature",
	MethodGetAPClientSettings:   "GetAPClientSettingsResult",
	MethodGetInternetSettings:   "GetInternetSettingsResult",
	MethodIsDeviceReady:         "IsDeviceReadyResult",
}

// ResponseElement returns the reply element name for m, or "" for unknown methods.
func (m Method) ResponseElement() string {
	return responseElements[m]
}

// SOAPAction returns the quoted action URI sent in the SOAPAction header and signed in HNAP_AUTH.
func (m Method) SOAPAction() string {
	return `"` + Namespace + string(m) + `"`
}

// Module identifiers on the plug
const (
	ModuleSocket      = 1
	ModuleTemperature = 3
)

// Radio2GHz is the RadioID of the plug's only radio.
const Radio2GHz = "RADIO_2.4GHz"

// socketLabel is the nickname and description the plug's own app sends.
const socketLabel = "Socket 1"

// Param is a single method parameter element. Order is significant to the
// plug firmware, so parameters are kept as an ordered slice.
type Param struct {
	Name  string
	Value string
}

const envelopeOpen = `<?xml version="1.0" encoding="utf-8"?>` +
	`<soap:Envelope ` +
	`xmlns:xsi="http://www.w3.org/2001/XMLSchema-instance" ` +
	`xmlns:xsd="http://www.w3.org/2001/XMLSchema" ` +
	`xmlns:soap="http://schemas.xmlsoap.org/soap/envelope/">` +
	`<soap:Body>`

const envelopeClose = `</soap:Body></soap:Envelope>`

// BuildEnvelope renders the SOAP request body for method with params.
// Parameter values are XML-escaped; names are written verbatim.
func BuildEnvelope(method Method, params ...Param) []byte {
	var b bytes.Buffer
	b.WriteString(envelopeOpen)
	fmt.Fprintf(&b, `<%s xmlns="%s">`, method, Namespace)
	for _, p := range params {
		b.WriteString("<" + p.Name + ">")
		_ = xml.EscapeText(&b, []byte(p.Value))
		b.WriteString("</" + p.Name + ">")
	}
	fmt.Fprintf(&b, `</%s>`, method)
	b.WriteString(envelopeClose)
	return b.Bytes()
}

type envelopeXML struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    struct {
		Call struct {
			XMLName xml.Name
			Params  []struct {
				XMLName xml.Name
				Value   string `xml:",chardata"`
			} `xml:",any"`
		} `xml:",any"`
	} `xml:"Body"`
}

// ParseEnvelope decodes a request body produced by BuildEnvelope back into
// its method and parameters.
func ParseEnvelope(body []byte) (Method, []Param, error) {
	var env envelopeXML
	if err := xml.Unmarshal(body, &env); err != nil {
		return "", nil, fmt.Errorf("failed to parse envelope: %w", err)
	}

	call := env.Body.Call
	if call.XMLName.Local == "" {
		return "", nil, fmt.Errorf("envelope has no method element")
	}

	params := make([]Param, 0, len(call.Params))
	for _, p := range call.Params {
		params = append(params, Param{Name: p.XMLName.Local, Value: p.Value})
	}
	return Method(call.XMLName.Local), params, nil
}

func moduleParams(module int) []Param {
	return []Param{{Name: "ModuleID", Value: strconv.Itoa(module)}}
}

func controlParams(module int, on bool) []Param {
	return append(moduleParams(module),
		Param{Name: "NickName", Value: socketLabel},
		Param{Name: "Description", Value: socketLabel},
		Param{Name: "OPStatus", Value: strconv.FormatBool(on)},
		Param{Name: "Controller", Value: "1"},
	)
}

func radioParams(radio string) []Param {
	return []Param{{Name: "RadioID", Value: radio}}
}

// loginParams builds the parameters of both login phases. The "request"
// phase carries an empty password.
func loginParams(action, username, proof string) []Param {
	return []Param{
		{Name: "Action", Value: action},
		{Name: "Username", Value: username},
		{Name: "LoginPassword", Value: proof},
		{Name: "Captcha", Value: ""},
	}
}
