// Package api exposes the livegate HTTP endpoints: room provisioning, join
// authorization, and token verification and revocation.
package api

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/siu-labs/livegate/internal/platform/id"
	"github.com/siu-labs/livegate/internal/services/live/chain"
	"github.com/siu-labs/livegate/internal/services/live/gate"
	"github.com/siu-labs/livegate/internal/services/live/room"
	"github.com/siu-labs/livegate/internal/services/live/storage"
	"github.com/siu-labs/livegate/internal/services/live/token"
)

const maxBodyBytes = 1 << 20

// AccessChecker decides whether an owner may join through a lock.
type AccessChecker interface {
	Check(ctx context.Context, lockAddress, ownerAddress string) (chain.Decision, error)
	ChainName() string
	RPCConfigured() bool
	AllowManagers() bool
}

// TokenIssuer mints join tokens.
type TokenIssuer interface {
	Issue(ctx context.Context, grant token.Grant) (token.Issued, error)
}

// TokenVerifier validates join tokens.
type TokenVerifier interface {
	Verify(ctx context.Context, raw string) (token.Claims, error)
}

// RoomCreator provisions rooms, replaying a recorded room for a known key.
type RoomCreator interface {
	CreateRoomWithKey(ctx context.Context, key string) (room.Room, bool, error)
}

// Revoker records holder revocations.
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, expiresAt time.Time) error
}

// Deps wires the server. Audit and Limiter are optional.
type Deps struct {
	Checker     AccessChecker
	Issuer      TokenIssuer
	Verifier    TokenVerifier
	Rooms       RoomCreator
	Revocations Revoker
	Audit       storage.AuditLog
	Limiter     gate.Limiter
}

// Server hosts the live-session endpoints.
type Server struct {
	deps  Deps
	clock func() time.Time
	newID func() (string, error)
	logf  func(string, ...any)
}

// NewServer builds a Server from deps.
func NewServer(deps Deps) *Server {
	return &Server{
		deps:  deps,
		clock: time.Now,
		newID: id.NewID,
		logf:  log.Printf,
	}
}

// SetLogf overrides the logger, mainly for tests.
func (s *Server) SetLogf(logf func(string, ...any)) {
	if logf != nil {
		s.logf = logf
	}
}

// RegisterRoutes registers livegate endpoints on the provided mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	if mux == nil {
		return
	}
	mux.HandleFunc("/api/live/test-room", s.handleTestRoom)
	mux.HandleFunc("/api/live/authorize", s.handleAuthorize)
	mux.HandleFunc("/api/live/verify", s.handleVerify)
	mux.HandleFunc("/api/live/revoke", s.handleRevoke)
	mux.HandleFunc("/up", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
}

func requirePost(w http.ResponseWriter, r *http.Request) bool {
	if r.Method == http.MethodPost {
		return true
	}
	w.Header().Set("Allow", http.MethodPost)
	http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
	return false
}
