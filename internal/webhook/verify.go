package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
)

// VerifyWebhookHMAC checks the X-Shopify-Hmac-Sha256 header against the raw
// request body. The header carries a base64-encoded HMAC-SHA256 digest.
func VerifyWebhookHMAC(body []byte, secret, providedB64 string) bool {
	if secret == "" || providedB64 == "" {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	expected := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(expected), []byte(providedB64))
}

// VerifyOAuthHMAC checks the hmac query parameter Shopify appends to OAuth
// redirects. The message is the remaining params sorted by key and joined
// with &, and the digest is hex-encoded.
func VerifyOAuthHMAC(params map[string]string, secret, providedHex string) bool {
	if secret == "" || providedHex == "" {
		return false
	}

	keys := make([]string, 0, len(params))
	for k := range params {
		if k == "hmac" || k == "signature" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var parts []string
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%s", k, params[k]))
	}
	msg := strings.Join(parts, "&")

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write([]byte(msg))
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(expected), []byte(strings.ToLower(providedHex)))
}
