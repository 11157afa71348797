package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

const (
	HeaderSignature      = "X-Signature"
	HeaderEventID        = "X-Event-Id"
	HeaderEventType      = "X-Event-Type"
	HeaderEventTimestamp = "X-Event-Timestamp"
	SignaturePrefix      = "sha256="
)

// Sign returns the X-Signature header value for body.
func Sign(secret string, body []byte) string {
	return SignaturePrefix + hex.EncodeToString(computeMAC(secret, body))
}

func computeMAC(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return mac.Sum(nil)
}

// SignatureVerifier checks an HMAC-SHA256 signature header. Subscribers and
// tests use it to validate what the dispatcher sends.
type SignatureVerifier struct {
	Header   string
	Prefix   string
	Secret   string
	Encoding string // hex | base64
}

func NewSignatureVerifier(secret string) SignatureVerifier {
	return SignatureVerifier{
		Header:   HeaderSignature,
		Prefix:   SignaturePrefix,
		Secret:   strings.TrimSpace(secret),
		Encoding: "hex",
	}
}

func (v SignatureVerifier) Verify(headers map[string]string, body []byte) error {
	header := strings.TrimSpace(headerValue(headers, v.Header))
	if header == "" {
		return fmt.Errorf("webhooks: %s signature header is required", strings.TrimSpace(v.Header))
	}
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return fmt.Errorf("webhooks: signature secret is required")
	}
	signature := strings.TrimSpace(strings.TrimPrefix(header, strings.TrimSpace(v.Prefix)))
	if signature == "" {
		return fmt.Errorf("webhooks: signature value is required")
	}

	var decoded []byte
	var err error
	switch strings.ToLower(strings.TrimSpace(v.Encoding)) {
	case "base64":
		decoded, err = base64.StdEncoding.DecodeString(signature)
		if err != nil {
			return fmt.Errorf("webhooks: decode base64 signature: %w", err)
		}
	default:
		decoded, err = hex.DecodeString(signature)
		if err != nil {
			return fmt.Errorf("webhooks: decode hex signature: %w", err)
		}
	}
	if subtle.ConstantTimeCompare(decoded, computeMAC(secret, body)) != 1 {
		return fmt.Errorf("webhooks: signature verification failed")
	}
	return nil
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	if value, ok := headers[key]; ok {
		return value
	}
	for candidate, value := range headers {
		if strings.EqualFold(candidate, key) {
			return value
		}
	}
	return ""
}
