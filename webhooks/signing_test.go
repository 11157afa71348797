package webhooks

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"testing"
)

func TestSign_MatchesHMACSHA256(t *testing.T) {
	body := []byte(`{"event_id":"evt-1"}`)
	mac := hmac.New(sha256.New, []byte("secret"))
	_, _ = mac.Write(body)
	want := "sha256=" + hex.EncodeToString(mac.Sum(nil))

	if got := Sign("secret", body); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestSignatureVerifier_AcceptsCaseInsensitiveHeader(t *testing.T) {
	body := []byte(`{"ok":true}`)
	headers := map[string]string{"x-signature": Sign("secret", body)}
	if err := NewSignatureVerifier("secret").Verify(headers, body); err != nil {
		t.Fatalf("verify: %v", err)
	}
}

func TestSignatureVerifier_RejectsTamperedBody(t *testing.T) {
	headers := map[string]string{HeaderSignature: Sign("secret", []byte(`{"amount":1}`))}
	if err := NewSignatureVerifier("secret").Verify(headers, []byte(`{"amount":2}`)); err == nil {
		t.Fatalf("expected verification failure")
	}
}

func TestSignatureVerifier_Base64Encoding(t *testing.T) {
	body := []byte("payload")
	mac := hmac.New(sha256.New, []byte("secret"))
	_, _ = mac.Write(body)
	verifier := SignatureVerifier{Header: "X-Hmac", Secret: "secret", Encoding: "base64"}
	headers := map[string]string{"X-Hmac": base64.StdEncoding.EncodeToString(mac.Sum(nil))}
	if err := verifier.Verify(headers, body); err != nil {
		t.Fatalf("verify base64: %v", err)
	}
}

func TestSignatureVerifier_RequiresHeaderAndSecret(t *testing.T) {
	if err := NewSignatureVerifier("secret").Verify(nil, []byte("x")); err == nil {
		t.Fatalf("expected missing header error")
	}
	headers := map[string]string{HeaderSignature: Sign("secret", []byte("x"))}
	if err := NewSignatureVerifier("").Verify(headers, []byte("x")); err == nil {
		t.Fatalf("expected missing secret error")
	}
}
