package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestCodeHTTPStatus(t *testing.T) {
	tests := []struct {
		code Code
		want int
	}{
		{CodeInvalidInput, http.StatusBadRequest},
		{CodeInvalidAddress, http.StatusBadRequest},
		{CodeAccessDenied, http.StatusForbidden},
		{CodeRateLimited, http.StatusTooManyRequests},
		{CodeTokenInvalid, http.StatusUnauthorized},
		{CodeTokenExpired, http.StatusUnauthorized},
		{CodeTokenRevoked, http.StatusUnauthorized},
		{CodeChainReadFailed, http.StatusInternalServerError},
		{CodeMissingSecret, http.StatusInternalServerError},
		{CodeMissingAPIKey, http.StatusInternalServerError},
		{CodeRoomCreationFailed, http.StatusInternalServerError},
		{CodeUnknown, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := tt.code.HTTPStatus(); got != tt.want {
			t.Errorf("%s: status = %d, want %d", tt.code, got, tt.want)
		}
	}
}

func TestErrorIsMatchesByCode(t *testing.T) {
	err := Wrap(CodeChainReadFailed, "rpc down", fmt.Errorf("dial: refused"))
	if !stderrors.Is(err, New(CodeChainReadFailed, "")) {
		t.Fatal("expected errors.Is to match by code")
	}
	if stderrors.Is(err, New(CodeAccessDenied, "")) {
		t.Fatal("expected different codes not to match")
	}
}

func TestCodeOfUnwrapsChain(t *testing.T) {
	inner := New(CodeMissingSecret, "secret missing")
	wrapped := fmt.Errorf("issue token: %w", inner)
	if got := CodeOf(wrapped); got != CodeMissingSecret {
		t.Fatalf("code = %s, want %s", got, CodeMissingSecret)
	}
	if got := HTTPStatus(wrapped); got != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", got)
	}
	if got := CodeOf(fmt.Errorf("plain")); got != CodeUnknown {
		t.Fatalf("code = %s, want %s", got, CodeUnknown)
	}
}

func TestUnwrapReturnsCause(t *testing.T) {
	cause := fmt.Errorf("timeout")
	err := Wrap(CodeRoomCreationFailed, "room failed", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected cause in chain")
	}
}
