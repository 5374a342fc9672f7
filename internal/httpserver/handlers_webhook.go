package httpserver

import (
	"fmt"
	"io"
	"net/http"
	"time"

	apierrors "github.com/FolioMarket/server/internal/errors"
	"github.com/FolioMarket/server/internal/gateway"
	"github.com/FolioMarket/server/internal/logger"
	"github.com/FolioMarket/server/internal/settlement"
	"github.com/FolioMarket/server/pkg/responders"
)

// handlePaymentWebhook processes incoming payment gateway events.
//
// Signature verification happens before the body is parsed, and a rejected
// signature leaves no trace in storage. Settled, duplicate, and ignored
// events all acknowledge with 200 so the gateway stops redelivering;
// storage failures return 500 so it retries.
func (h *handlers) handlePaymentWebhook(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContext(r.Context())

	webhookStart := time.Now()

	if err := h.verifier.VerifyRequest(r); err != nil {
		log.Warn().
			Err(err).
			Msg("webhook.invalid_signature")
		h.metrics.ObserveWebhook("unknown", "rejected", time.Since(webhookStart))
		apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidSignature, "invalid webhook signature")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		log.Error().
			Err(err).
			Msg("webhook.read_body_failed")
		apierrors.WriteSimpleError(w, apierrors.ErrCodeInvalidField, fmt.Sprintf("read body: %v", err))
		return
	}

	event, err := gateway.ParseEvent(body)
	if err != nil {
		log.Warn().
			Err(err).
			Msg("webhook.malformed_payload")
		h.metrics.ObserveWebhook("unknown", "malformed", time.Since(webhookStart))
		apierrors.WriteSimpleError(w, apierrors.ErrCodeMalformedEvent, err.Error())
		return
	}

	log.Info().
		Str("event_type", event.Event).
		Msg("webhook.received")

	result, err := h.settlement.ProcessEvent(r.Context(), event)
	h.metrics.ObserveWebhook(event.Event, string(result), time.Since(webhookStart))

	switch result {
	case settlement.ResultSettled, settlement.ResultDuplicate, settlement.ResultIgnored:
		responders.JSON(w, http.StatusOK, map[string]any{
			"status": string(result),
		})
	case settlement.ResultMalformed:
		message := "event is missing required purchase metadata"
		if err != nil {
			message = err.Error()
		}
		apierrors.WriteSimpleError(w, apierrors.ErrCodeMalformedEvent, message)
	default:
		log.Error().
			Err(err).
			Msg("webhook.settlement_failed")
		apierrors.WriteSimpleError(w, apierrors.ErrCodeStorageError, "settlement could not be persisted; redeliver")
	}
}

// paymentWebhookInfo provides information about the payment webhook endpoint.
func (h *handlers) paymentWebhookInfo(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	fmt.Fprint(w, `<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="utf-8" />
  <title>Payment Webhook Endpoint</title>
  <style>
    body { font-family: system-ui, sans-serif; max-width: 40rem; margin: 4rem auto; padding: 0 1.5rem; color: #1f2933; }
    h1 { color: #364fc7; }
    code { background: #f1f5f9; padding: 0.1rem 0.3rem; border-radius: 0.25rem; }
    ol { padding-left: 1.4rem; }
    li { margin-bottom: 0.5rem; }
  </style>
</head>
<body>
  <h1>Payment Webhook Endpoint</h1>
  <p>This URL accepts <code>POST</code> requests from the payment gateway. For local testing:</p>
  <ol>
    <li>Set the webhook URL in the gateway dashboard to <code>http://localhost:8080/webhook/payments</code>.</li>
    <li>Send the shared secret in the <code>X-Webhook-Signature</code> header.</li>
    <li>Trigger a test <code>charge.completed</code> event and check the FolioMarket logs for <code>settlement.completed</code>.</li>
  </ol>
  <p>If you see this page, the endpoint is reachable over HTTP. Only signed <code>POST</code> requests will be processed.</p>
</body>
</html>`)
}
