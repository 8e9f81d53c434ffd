package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"strconv"
	"time"
)

const (
	HeaderIdentity  = "X-Certificate-Hash"
	HeaderTimestamp = "X-Timestamp"
	HeaderSignature = "X-Signature"
)

var ErrMissingSecret = errors.New("shared secret is required")

// Credentials identify the device to the push backend. The shared secret is
// both sent as the identity header and used as the HMAC key.
type Credentials struct {
	Secret string
}

func (c Credentials) Validate() error {
	if c.Secret == "" {
		return ErrMissingSecret
	}
	return nil
}

// Sign returns the lowercase hex HMAC-SHA256 of timestamp+secret keyed with
// secret.
func Sign(secret, timestamp string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp + secret))
	return hex.EncodeToString(mac.Sum(nil))
}

// SignRequest stamps req with the identity, timestamp and signature headers
// for the given instant.
func SignRequest(req *http.Request, creds Credentials, now time.Time) {
	timestamp := strconv.FormatInt(now.UnixMilli(), 10)
	req.Header.Set(HeaderIdentity, creds.Secret)
	req.Header.Set(HeaderTimestamp, timestamp)
	req.Header.Set(HeaderSignature, Sign(creds.Secret, timestamp))
}
