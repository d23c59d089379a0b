package api

import (
	"net/http"
	"net/http/httptest"
	"testing"

	apperrors "github.com/siu-labs/livegate/internal/platform/errors"
	"github.com/siu-labs/livegate/internal/services/live/chain"
	"github.com/siu-labs/livegate/internal/services/live/room"
)

func TestTestRoomSuccess(t *testing.T) {
	h := newHarness(t, &fakeChecker{})
	h.rooms.room = room.Room{ID: "abc-defg-hij", URL: "https://meet.example/abc"}
	rr := h.post(t, "/api/live/test-room", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	body := decodeBody(t, rr)
	if body["success"] != true {
		t.Fatalf("body = %v", body)
	}
	payload := body["room"].(map[string]any)
	if payload["roomId"] != "abc-defg-hij" || payload["roomUrl"] != "https://meet.example/abc" {
		t.Fatalf("room = %v", payload)
	}
	if rr.Header().Get(ReplayedHeader) != "" {
		t.Fatal("expected no replay header")
	}
}

func TestTestRoomOmitsMissingURL(t *testing.T) {
	h := newHarness(t, &fakeChecker{})
	rr := h.post(t, "/api/live/test-room", "")
	payload := decodeBody(t, rr)["room"].(map[string]any)
	if _, ok := payload["roomUrl"]; ok {
		t.Fatalf("room = %v", payload)
	}
}

func TestTestRoomForwardsIdempotencyKey(t *testing.T) {
	h := newHarness(t, &fakeChecker{})
	h.rooms.replayed = true
	req := httptest.NewRequest(http.MethodPost, "/api/live/test-room", nil)
	req.Header.Set(IdempotencyKeyHeader, " session-7 ")
	rr := httptest.NewRecorder()
	h.mux.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d", rr.Code)
	}
	if len(h.rooms.keys) != 1 || h.rooms.keys[0] != "session-7" {
		t.Fatalf("keys = %v", h.rooms.keys)
	}
	if rr.Header().Get(ReplayedHeader) != "true" {
		t.Fatal("expected replay header")
	}
}

func TestTestRoomErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{name: "missing key", err: apperrors.New(apperrors.CodeMissingAPIKey, "HUDDLE_API_KEY is not configured")},
		{name: "provider", err: apperrors.New(apperrors.CodeRoomCreationFailed, "Invalid API key")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, &fakeChecker{decision: chain.Decision{}})
			h.rooms.err = tt.err
			rr := h.post(t, "/api/live/test-room", "")
			if rr.Code != http.StatusInternalServerError {
				t.Fatalf("status = %d, want 500", rr.Code)
			}
			if got := decodeBody(t, rr)["error"]; got != tt.err.Error() {
				t.Fatalf("error = %v", got)
			}
		})
	}
}

func TestUp(t *testing.T) {
	h := newHarness(t, &fakeChecker{})
	rr := httptest.NewRecorder()
	h.mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/up", nil))
	if rr.Code != http.StatusOK || rr.Body.String() != "OK" {
		t.Fatalf("status = %d body = %q", rr.Code, rr.Body.String())
	}
}
