package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/siu-labs/livegate/internal/services/live/chain"
	"github.com/siu-labs/livegate/internal/services/live/room"
	"github.com/siu-labs/livegate/internal/services/live/storage"
	"github.com/siu-labs/livegate/internal/services/live/token"
)

var (
	ownerAddr = "0x" + strings.Repeat("a", 39) + "1"
	lockAddr  = "0x" + strings.Repeat("b", 39) + "2"
	secret    = []byte("api-test-secret")
	fixedNow  = time.Date(2026, 4, 1, 9, 30, 0, 0, time.UTC)
)

type fakeChecker struct {
	decision      chain.Decision
	err           error
	allowManagers bool
	rpcConfigured bool
	calls         int
}

func (c *fakeChecker) Check(_ context.Context, lockAddress, ownerAddress string) (chain.Decision, error) {
	c.calls++
	return c.decision, c.err
}

func (c *fakeChecker) ChainName() string   { return "base" }
func (c *fakeChecker) RPCConfigured() bool { return c.rpcConfigured }
func (c *fakeChecker) AllowManagers() bool { return c.allowManagers }

type countingIssuer struct {
	next  *token.Issuer
	calls int
}

func (i *countingIssuer) Issue(ctx context.Context, grant token.Grant) (token.Issued, error) {
	i.calls++
	return i.next.Issue(ctx, grant)
}

type fakeRooms struct {
	room     room.Room
	replayed bool
	err      error
	keys     []string
}

func (f *fakeRooms) CreateRoomWithKey(_ context.Context, key string) (room.Room, bool, error) {
	f.keys = append(f.keys, key)
	return f.room, f.replayed, f.err
}

type memoryRevocations struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func (m *memoryRevocations) Revoke(_ context.Context, tokenID string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.revoked == nil {
		m.revoked = map[string]time.Time{}
	}
	m.revoked[tokenID] = expiresAt
	return nil
}

func (m *memoryRevocations) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.revoked[tokenID]
	return ok, nil
}

type recordingAudit struct {
	events []storage.AuthorizationEvent
	err    error
}

func (a *recordingAudit) AppendAuthorizationEvent(_ context.Context, event storage.AuthorizationEvent) error {
	a.events = append(a.events, event)
	return a.err
}

type fakeLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (l *fakeLimiter) Allow(_ context.Context, key string) (bool, error) {
	l.keys = append(l.keys, key)
	return l.allowed, l.err
}

type harness struct {
	server      *Server
	mux         *http.ServeMux
	checker     *fakeChecker
	issuer      *countingIssuer
	rooms       *fakeRooms
	revocations *memoryRevocations
	audit       *recordingAudit
	logs        []string
}

func newHarness(t *testing.T, checker *fakeChecker) *harness {
	t.Helper()
	clock := func() time.Time { return fixedNow }
	h := &harness{
		checker:     checker,
		issuer:      &countingIssuer{next: token.NewIssuer(token.Config{Secret: secret, Now: clock})},
		rooms:       &fakeRooms{room: room.Room{ID: "room-1"}},
		revocations: &memoryRevocations{},
		audit:       &recordingAudit{},
	}
	h.server = NewServer(Deps{
		Checker:     checker,
		Issuer:      h.issuer,
		Verifier:    token.NewVerifier(token.Config{Secret: secret, Now: clock}, h.revocations),
		Rooms:       h.rooms,
		Revocations: h.revocations,
		Audit:       h.audit,
	})
	h.server.SetLogf(func(format string, args ...any) {
		h.logs = append(h.logs, format)
	})
	h.mux = http.NewServeMux()
	h.server.RegisterRoutes(h.mux)
	return h
}

func (h *harness) post(t *testing.T, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	h.mux.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rr.Body.String(), err)
	}
	return body
}

func tokenClaims(t *testing.T, raw string) map[string]any {
	t.Helper()
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		t.Fatalf("token has %d parts", len(parts))
	}
	data, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	var claims map[string]any
	if err := json.Unmarshal(data, &claims); err != nil {
		t.Fatalf("unmarshal payload: %v", err)
	}
	return claims
}

func authorizeBody(owner, lock string, debug bool) string {
	payload := map[string]any{"ownerAddress": owner, "lockAddress": lock}
	if debug {
		payload["debug"] = true
	}
	data, _ := json.Marshal(payload)
	return string(data)
}
