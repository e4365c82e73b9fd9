package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// VerifySignature checks an HMAC-SHA256 webhook signature in the
// "sha256=<hex>" format. With enabled=false it accepts everything, which is
// the explicit opt-out for trusted network paths. The comparison is
// constant-time so secret material cannot leak through timing.
func VerifySignature(secret, rawBody []byte, presented string, enabled bool) bool {
	if !enabled {
		return true
	}
	if presented == "" {
		return false
	}
	return hmac.Equal([]byte(Sign(secret, rawBody)), []byte(presented))
}

// Sign computes the "sha256="-prefixed HMAC-SHA256 hex digest of body.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
