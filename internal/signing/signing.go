// Package signing verifies that incoming requests were signed by Slack with
// the app's signing secret.
package signing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

const (
	version = "v0"
	// MaxSkew is how old a request timestamp may be before it is rejected as
	// a possible replay.
	MaxSkew = 5 * time.Minute
)

// Signer generates and validates Slack request signatures.
type Signer struct {
	secret []byte
	now    func() time.Time
}

// NewSigner creates a Signer.
func NewSigner(secret []byte) *Signer {
	return &Signer{secret: secret, now: time.Now}
}

// Sign returns the X-Slack-Signature value for a request body sent at
// timestamp (unix seconds).
func (s *Signer) Sign(timestamp int64, body []byte) string {
	mac := hmac.New(sha256.New, s.secret)
	// The base string is "v0:<timestamp>:<raw body>".
	fmt.Fprintf(mac, "%s:%d:", version, timestamp)
	mac.Write(body)
	return version + "=" + hex.EncodeToString(mac.Sum(nil))
}

// Validate checks the X-Slack-Request-Timestamp and X-Slack-Signature
// headers against body.
func (s *Signer) Validate(timestamp string, body []byte, signature string) bool {
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return false
	}
	age := s.now().Sub(time.Unix(ts, 0))
	if age > MaxSkew || age < -MaxSkew {
		return false
	}
	expected := s.Sign(ts, body)
	// hmac.Equal compares in constant time.
	return hmac.Equal([]byte(expected), []byte(signature))
}
