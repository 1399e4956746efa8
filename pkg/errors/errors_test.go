package errors

import (
	stdErrors "errors"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	tests := []struct {
		code      Code
		status    int
		publicMsg string
		retryable bool
		detailsOK bool
	}{
		{code: CodeValidation, status: http.StatusBadRequest, publicMsg: "validation failed", detailsOK: true},
		{code: CodeUnauthorized, status: http.StatusUnauthorized, publicMsg: "authentication required"},
		{code: CodeForbidden, status: http.StatusForbidden, publicMsg: "access denied"},
		{code: CodeNotFound, status: http.StatusNotFound, publicMsg: "resource not found"},
		{code: CodeStateConflict, status: http.StatusUnprocessableEntity, publicMsg: "state transition disallowed", detailsOK: true},
		{code: CodeInternal, status: http.StatusInternalServerError, publicMsg: "internal server error", retryable: true},
		{code: CodeDependency, status: http.StatusServiceUnavailable, publicMsg: "dependency unavailable", retryable: true, detailsOK: true},
		{code: CodeBidTooLow, status: http.StatusUnprocessableEntity, publicMsg: "bid does not beat the current high bid", detailsOK: true},
		{code: CodeAuctionClosed, status: http.StatusUnprocessableEntity, publicMsg: "auction is not accepting bids", detailsOK: true},
		{code: CodeTooEarlyToCancel, status: http.StatusUnprocessableEntity, publicMsg: "listing cannot be cancelled before its minimum hold", detailsOK: true},
		{code: CodeTooEarlyToFinish, status: http.StatusUnprocessableEntity, publicMsg: "auction cannot be finished before its minimum hold", detailsOK: true},
		{code: CodeInsufficientPayment, status: http.StatusUnprocessableEntity, publicMsg: "payment does not cover the required amount", detailsOK: true},
		{code: CodeInsufficientCredit, status: http.StatusUnprocessableEntity, publicMsg: "no withdrawable credit"},
		{code: CodeCustodyTransfer, status: http.StatusUnprocessableEntity, publicMsg: "asset custody transfer failed", detailsOK: true},
	}

	for _, tt := range tests {
		meta := MetadataFor(tt.code)
		if meta.HTTPStatus != tt.status {
			t.Fatalf("code %s expected status %d got %d", tt.code, tt.status, meta.HTTPStatus)
		}
		if meta.PublicMessage != tt.publicMsg {
			t.Fatalf("code %s expected public message %q got %q", tt.code, tt.publicMsg, meta.PublicMessage)
		}
		if meta.Retryable != tt.retryable {
			t.Fatalf("code %s expected retryable %v got %v", tt.code, tt.retryable, meta.Retryable)
		}
		if meta.DetailsAllowed != tt.detailsOK {
			t.Fatalf("code %s expected details allowed %v got %v", tt.code, tt.detailsOK, meta.DetailsAllowed)
		}
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal status, got %d", meta.HTTPStatus)
	}
}

func TestErrorConstructors(t *testing.T) {
	base := New(CodeBidTooLow, "bid 5 does not beat 8")
	if base.Code() != CodeBidTooLow {
		t.Fatalf("expected bid too low code, got %s", base.Code())
	}
	if base.Message() != "bid 5 does not beat 8" {
		t.Fatalf("unexpected message %q", base.Message())
	}
	if base.Details() != nil {
		t.Fatalf("details should be nil by default")
	}

	detail := map[string]any{"current_high_cents": 800}
	base.WithDetails(detail)
	if base.Details() == nil {
		t.Fatalf("details should be preserved")
	}

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeCustodyTransfer, cause, "pull custody")
	if !stdErrors.Is(wrapped, cause) {
		t.Fatalf("Wrap did not preserve cause")
	}
	if wrapped.Code() != CodeCustodyTransfer {
		t.Fatalf("unexpected code %s", wrapped.Code())
	}
}

func TestHasCode(t *testing.T) {
	err := New(CodeTooEarlyToFinish, "minimum hold not reached")
	if !HasCode(err, CodeTooEarlyToFinish) {
		t.Fatalf("HasCode should match the typed code")
	}
	if HasCode(err, CodeTooEarlyToCancel) {
		t.Fatalf("HasCode matched the wrong code")
	}
	if HasCode(stdErrors.New("plain"), CodeInternal) {
		t.Fatalf("HasCode should not match untyped errors")
	}
}
