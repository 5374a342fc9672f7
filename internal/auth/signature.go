package auth

import (
	"crypto/subtle"
	"fmt"
	"net/http"
)

// SignatureHeader is the header the payment gateway signs deliveries with.
const SignatureHeader = "X-Webhook-Signature"

// WebhookVerifier authenticates payment gateway deliveries against the
// shared webhook secret.
type WebhookVerifier struct {
	secret []byte
}

// NewWebhookVerifier creates a verifier for the given shared secret.
func NewWebhookVerifier(secret string) *WebhookVerifier {
	return &WebhookVerifier{secret: []byte(secret)}
}

// VerifyRequest checks the signature header on an incoming delivery.
// The comparison is constant time so response timing does not leak how
// much of a guessed secret matched.
func (wv *WebhookVerifier) VerifyRequest(r *http.Request) error {
	return wv.Verify(r.Header.Get(SignatureHeader))
}

// Verify checks a raw signature value against the shared secret.
func (wv *WebhookVerifier) Verify(signature string) error {
	if signature == "" {
		return fmt.Errorf("signature required: include the %s header", SignatureHeader)
	}
	if subtle.ConstantTimeCompare([]byte(signature), wv.secret) != 1 {
		return fmt.Errorf("signature verification failed")
	}
	return nil
}
