package api

import (
	"net/http"
	"strings"

	apperrors "github.com/siu-labs/livegate/internal/platform/errors"
	"github.com/siu-labs/livegate/internal/platform/httpx"
	"github.com/siu-labs/livegate/internal/platform/requestctx"
	"github.com/siu-labs/livegate/internal/services/live/room"
)

const (
	// IdempotencyKeyHeader lets a caller replay a previous room creation.
	IdempotencyKeyHeader = "Idempotency-Key"
	// ReplayedHeader is set to "true" when a recorded room was returned.
	ReplayedHeader = "Idempotent-Replayed"
)

type testRoomResponse struct {
	Success bool      `json:"success"`
	Room    room.Room `json:"room"`
}

func (s *Server) handleTestRoom(w http.ResponseWriter, r *http.Request) {
	if !requirePost(w, r) {
		return
	}
	ctx := r.Context()
	key := strings.TrimSpace(r.Header.Get(IdempotencyKeyHeader))

	created, replayed, err := s.deps.Rooms.CreateRoomWithKey(ctx, key)
	if err != nil {
		s.logf("create room failed request_id=%s code=%s err=%v",
			requestctx.RequestIDFromContext(ctx), apperrors.CodeOf(err), err)
		_ = httpx.WriteError(w, err)
		return
	}
	if replayed {
		w.Header().Set(ReplayedHeader, "true")
	}
	_ = httpx.WriteJSON(w, http.StatusOK, testRoomResponse{Success: true, Room: created})
}
