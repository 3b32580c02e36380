package hnap

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"strings"
	"unicode/utf16"
)

// Sign returns the lowercase hex HMAC-MD5 of message under key.
//
// HNAP uses HMAC-MD5 for protocol compatibility only. It provides no
// meaningful confidentiality or integrity guarantee and must not be reused
// for anything else.
func Sign(key, message string) string {
	return SignBytes([]byte(key), []byte(message))
}

// SignBytes is Sign for raw byte slices.
func SignBytes(key, message []byte) string {
	mac := hmac.New(md5.New, key)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignUTF16 signs UTF-16 code units after converting them to UTF-8.
// Surrogate pairs are combined; unpaired surrogates become U+FFFD.
func SignUTF16(key, message []uint16) string {
	return Sign(string(utf16.Decode(key)), string(utf16.Decode(message)))
}

// signUpper is the uppercase form every HNAP header and login proof uses.
func signUpper(key, message string) string {
	return strings.ToUpper(Sign(key, message))
}
