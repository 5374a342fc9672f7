package errors

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code ErrorCode
		want int
	}{
		{ErrCodeInvalidSignature, http.StatusUnauthorized},
		{ErrCodeMalformedEvent, http.StatusBadRequest},
		{ErrCodeMissingField, http.StatusBadRequest},
		{ErrCodeInvalidAmount, http.StatusBadRequest},
		{ErrCodeTransactionNotFound, http.StatusNotFound},
		{ErrCodeLedgerNotFound, http.StatusNotFound},
		{ErrCodeStorageError, http.StatusInternalServerError},
		{ErrCodeInternalError, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		if got := tt.code.HTTPStatus(); got != tt.want {
			t.Errorf("%s.HTTPStatus() = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestIsRetryable(t *testing.T) {
	// Only server-side failures should tell the gateway to redeliver;
	// validation failures will fail identically every time.
	retryable := []ErrorCode{ErrCodeStorageError, ErrCodeInternalError}
	for _, code := range retryable {
		if !code.IsRetryable() {
			t.Errorf("%s should be retryable", code)
		}
	}

	terminal := []ErrorCode{
		ErrCodeInvalidSignature,
		ErrCodeMalformedEvent,
		ErrCodeMissingField,
		ErrCodeTransactionNotFound,
	}
	for _, code := range terminal {
		if code.IsRetryable() {
			t.Errorf("%s should not be retryable", code)
		}
	}
}

func TestWriteSimpleError(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteSimpleError(rec, ErrCodeMalformedEvent, "missing buyer_id")

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type = %q", ct)
	}

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Error.Code != ErrCodeMalformedEvent {
		t.Errorf("code = %s", resp.Error.Code)
	}
	if resp.Error.Message != "missing buyer_id" {
		t.Errorf("message = %q", resp.Error.Message)
	}
	if resp.Error.Retryable {
		t.Error("malformed_event must not be marked retryable")
	}
}

func TestWriteErrorWithDetail(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteErrorWithDetail(rec, ErrCodeTransactionNotFound, "not settled", "tx_ref", "FLW-1")

	var resp ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if resp.Error.Details["tx_ref"] != "FLW-1" {
		t.Errorf("details = %v", resp.Error.Details)
	}
}
