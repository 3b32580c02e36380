package hnap

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"strconv"
	"strings"
)

// ErrorValue is the sentinel returned in place of a missing or empty reply
// element. The plug itself answers "ERROR" when a signature is rejected, so
// callers treat both cases the same way.
const ErrorValue = "ERROR"

// Unknown is the placeholder for internet settings the plug did not report.
const Unknown = "Unknown"

func newDecoder(body []byte) *xml.Decoder {
	d := xml.NewDecoder(bytes.NewReader(body))
	// Plug firmware is not always well-formed; tolerate what a DOM parser would.
	d.Strict = false
	return d
}

// seek advances d to the first start element named tag, matching local
// names only.
func seek(d *xml.Decoder, tag string) (*xml.StartElement, error) {
	for {
		tok, err := d.Token()
		if err != nil {
			return nil, err
		}
		if se, ok := tok.(xml.StartElement); ok && se.Name.Local == tag {
			return &se, nil
		}
	}
}

// FindText returns the text content of the first element named tag anywhere
// in body, or ErrorValue when the element is absent, empty, or its first
// child is not text.
func FindText(body []byte, tag string) string {
	d := newDecoder(body)
	if _, err := seek(d, tag); err != nil {
		return ErrorValue
	}

	tok, err := d.Token()
	if err != nil {
		return ErrorValue
	}
	text, ok := tok.(xml.CharData)
	if !ok || len(text) == 0 {
		return ErrorValue
	}
	return string(text)
}

// decodeFirst unmarshals the first element named tag into v. It reports
// false with a nil error when no such element exists.
func decodeFirst(body []byte, tag string, v any) (bool, error) {
	d := newDecoder(body)
	se, err := seek(d, tag)
	if errors.Is(err, io.EOF) {
		return false, nil
	}
	if err != nil {
		var syntaxErr *xml.SyntaxError
		if errors.As(err, &syntaxErr) {
			// A truncated or garbled reply is treated as "element not found".
			return false, nil
		}
		return false, err
	}
	if err := d.DecodeElement(v, se); err != nil {
		return true, err
	}
	return true, nil
}

// loginReply is the LoginResponse element of both login phases.
type loginReply struct {
	LoginResult string `xml:"LoginResult"`
	Challenge   string `xml:"Challenge"`
	PublicKey   string `xml:"PublicKey"`
	Cookie      string `xml:"Cookie"`
}

// internetSettingsReply is the GetInternetSettingsResponse element.
type internetSettingsReply struct {
	Result     string `xml:"GetInternetSettingsResult"`
	Type       string `xml:"Type"`
	IPAddress  string `xml:"IPAddress"`
	HostName   string `xml:"HostName"`
	Gateway    string `xml:"Gateway"`
	SubnetMask string `xml:"SubnetMask"`
	MacAddress string `xml:"MacAddress"`
	MTU        string `xml:"MTU"`
}

// InternetSettings is the plug's network configuration snapshot.
type InternetSettings struct {
	Type       string `json:"type" yaml:"type"`
	IPAddress  string `json:"ipAddress" yaml:"ip_address"`
	Hostname   string `json:"hostname" yaml:"hostname"`
	Gateway    string `json:"gateway" yaml:"gateway"`
	SubnetMask string `json:"subnetMask" yaml:"subnet_mask"`
	MACAddress string `json:"macAddress" yaml:"mac_address"`
	MTU        int    `json:"mtu" yaml:"mtu"`
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}

func (r *internetSettingsReply) settings() *InternetSettings {
	mtu := -1
	if text := strings.TrimSpace(r.MTU); text != "" {
		if n, err := strconv.Atoi(text); err == nil {
			mtu = n
		}
	}

	return &InternetSettings{
		Type:       orUnknown(r.Type),
		IPAddress:  orUnknown(r.IPAddress),
		Hostname:   orUnknown(r.HostName),
		Gateway:    orUnknown(r.Gateway),
		SubnetMask: orUnknown(r.SubnetMask),
		MACAddress: orUnknown(r.MacAddress),
		MTU:        mtu,
	}
}
