// Package auth implements the venue's private-API authentication: request
// signing and the REST call that exchanges API credentials for the opaque
// WebSocket token private channels require.
//
// The streaming core treats the token purely as an opaque string; nothing in
// this package is needed for public channels.
package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/sha512"
	"encoding/base64"
	"fmt"
)

// Sign computes the API-Sign header value for a private REST request:
//
//	base64( HMAC-SHA512_secret( path ++ SHA256(nonce ++ postData) ) )
//
// where secret is the base64-encoded API secret as issued by the venue.
func Sign(secret, path, nonce, postData string) (string, error) {
	secretBytes, err := base64.StdEncoding.DecodeString(secret)
	if err != nil {
		return "", fmt.Errorf("decoding api secret: %w", err)
	}

	inner := sha256.New()
	inner.Write([]byte(nonce))
	inner.Write([]byte(postData))

	mac := hmac.New(sha512.New, secretBytes)
	mac.Write([]byte(path))
	mac.Write(inner.Sum(nil))

	return base64.StdEncoding.EncodeToString(mac.Sum(nil)), nil
}
