// Package client drives the join flow against a livegate server: provision a
// room, authorize the connected wallet, then hand back the room URL.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/siu-labs/livegate/internal/platform/timeouts"
	"github.com/siu-labs/livegate/internal/services/live/room"
)

// State is a join sequencer state.
type State string

const (
	StateIdle         State = "IDLE"
	StateProvisioning State = "PROVISIONING"
	StateAuthorizing  State = "AUTHORIZING"
	StateJoined       State = "JOINED"
	StateError        State = "ERROR"
)

const (
	testRoomPath  = "/api/live/test-room"
	authorizePath = "/api/live/authorize"

	idempotencyKeyHeader = "Idempotency-Key"
	maxResponseBody      = 1 << 20
)

// ErrWalletRequired is returned when Join runs without a connected wallet.
var ErrWalletRequired = errors.New("Connect wallet first")

// Status is a snapshot of the sequencer.
type Status struct {
	State   State
	Message string
	RoomURL string
}

// Session is the result of a successful join.
type Session struct {
	Room      room.Room
	RoomURL   string
	Token     string
	ExpiresAt int64
	Chain     string
	Manager   bool
}

// Config configures a Sequencer.
type Config struct {
	// ServerURL is the livegate origin, e.g. http://localhost:8090.
	ServerURL   string
	LockAddress string
	RoomBase    string
	HTTPClient  *http.Client
	Timeout     time.Duration
	// OnState observes every transition.
	OnState func(Status)
}

// Sequencer runs IDLE -> PROVISIONING -> AUTHORIZING -> JOINED, moving to
// ERROR from any step. It never retries.
type Sequencer struct {
	cfg    Config
	client *http.Client

	mu     sync.Mutex
	status Status
}

// New creates a Sequencer in the IDLE state.
func New(cfg Config) *Sequencer {
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = timeouts.ClientRequest
	}
	cfg.ServerURL = strings.TrimRight(strings.TrimSpace(cfg.ServerURL), "/")
	return &Sequencer{cfg: cfg, client: client, status: Status{State: StateIdle}}
}

// Status returns the current state.
func (s *Sequencer) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Join provisions a room and authorizes wallet against the configured lock.
// idempotencyKey is optional and forwarded to room creation.
func (s *Sequencer) Join(ctx context.Context, wallet, idempotencyKey string) (Session, error) {
	wallet = strings.TrimSpace(wallet)
	if wallet == "" {
		return Session{}, s.fail(ErrWalletRequired)
	}

	s.transition(Status{State: StateProvisioning})
	var created struct {
		Success bool      `json:"success"`
		Room    room.Room `json:"room"`
	}
	headers := map[string]string{}
	if key := strings.TrimSpace(idempotencyKey); key != "" {
		headers[idempotencyKeyHeader] = key
	}
	if err := s.post(ctx, testRoomPath, nil, headers, &created); err != nil {
		return Session{}, s.fail(err)
	}
	if strings.TrimSpace(created.Room.ID) == "" {
		return Session{}, s.fail(errors.New("room response missing roomId"))
	}

	s.transition(Status{State: StateAuthorizing})
	var granted struct {
		Token   string `json:"token"`
		Exp     int64  `json:"exp"`
		Chain   string `json:"chain"`
		Manager bool   `json:"manager"`
	}
	payload := map[string]string{
		"ownerAddress": wallet,
		"lockAddress":  s.cfg.LockAddress,
	}
	if err := s.post(ctx, authorizePath, payload, nil, &granted); err != nil {
		return Session{}, s.fail(err)
	}

	session := Session{
		Room:      created.Room,
		RoomURL:   created.Room.JoinURL(s.cfg.RoomBase),
		Token:     granted.Token,
		ExpiresAt: granted.Exp,
		Chain:     granted.Chain,
		Manager:   granted.Manager,
	}
	s.transition(Status{State: StateJoined, RoomURL: session.RoomURL})
	return session, nil
}

// post sends a JSON request and decodes a 2xx JSON response into out. Non-2xx
// responses surface the server's error message.
func (s *Sequencer) post(ctx context.Context, path string, payload any, headers map[string]string, out any) error {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	var body io.Reader = http.NoBody
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.ServerURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("request %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return fmt.Errorf("read %s response: %w", path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return responseError(resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// ResponseError is a non-2xx answer from livegate.
type ResponseError struct {
	Status  int
	Message string
}

func (e *ResponseError) Error() string {
	return e.Message
}

func responseError(status int, raw []byte) error {
	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil || strings.TrimSpace(payload.Error) == "" {
		return &ResponseError{Status: status, Message: fmt.Sprintf("Request failed (%d)", status)}
	}
	return &ResponseError{Status: status, Message: payload.Error}
}

func (s *Sequencer) fail(err error) error {
	s.transition(Status{State: StateError, Message: err.Error()})
	return err
}

func (s *Sequencer) transition(status Status) {
	s.mu.Lock()
	s.status = status
	observer := s.cfg.OnState
	s.mu.Unlock()
	if observer != nil {
		observer(status)
	}
}
