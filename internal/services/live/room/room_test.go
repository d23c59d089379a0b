package room

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	apperrors "github.com/siu-labs/livegate/internal/platform/errors"
)

func TestCreateRoomSendsFixedConfiguration(t *testing.T) {
	var got createRoomRequest
	var gotKey, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("x-api-key")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		_, _ = w.Write([]byte(`{"message":"Room Created Successfully","data":{"roomId":"abc-defg-hij"}}`))
	}))
	defer server.Close()

	p := NewHuddleProvisioner(HuddleConfig{APIKey: "key-1", APIBase: server.URL + "/api/v1/"})
	room, err := p.CreateRoom(context.Background())
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if room.ID != "abc-defg-hij" || room.URL != "" {
		t.Fatalf("room = %+v", room)
	}
	if gotKey != "key-1" || gotPath != "/api/v1/create-room" {
		t.Fatalf("key = %q path = %q", gotKey, gotPath)
	}
	if got.Title != TestRoomTitle || got.RoomLocked || got.HostWallets == nil || len(got.HostWallets) != 0 {
		t.Fatalf("request = %+v", got)
	}
}

func TestCreateRoomPrefersProviderURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":{"roomId":"r1","meetingLink":"https://meet.example/r1"}}`))
	}))
	defer server.Close()

	room, err := NewHuddleProvisioner(HuddleConfig{APIKey: "k", APIBase: server.URL}).CreateRoom(context.Background())
	if err != nil {
		t.Fatalf("create room: %v", err)
	}
	if got := room.JoinURL("https://other.example"); got != "https://meet.example/r1" {
		t.Fatalf("join url = %q", got)
	}
}

func TestJoinURLFallback(t *testing.T) {
	room := Room{ID: "r2"}
	if got := room.JoinURL(""); got != "https://app.huddle01.com/room/r2" {
		t.Fatalf("join url = %q", got)
	}
	if got := room.JoinURL("https://rooms.example/"); got != "https://rooms.example/room/r2" {
		t.Fatalf("join url = %q", got)
	}
}

func TestCreateRoomFailures(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantCode    apperrors.Code
		wantMessage string
	}{
		{name: "provider message", status: http.StatusUnauthorized, body: `{"message":"Invalid API key"}`, wantCode: apperrors.CodeRoomCreationFailed, wantMessage: "Invalid API key"},
		{name: "provider error field", status: http.StatusBadRequest, body: `{"error":"bad title"}`, wantCode: apperrors.CodeRoomCreationFailed, wantMessage: "bad title"},
		{name: "html body", status: http.StatusBadGateway, body: `<html>bad gateway</html>`, wantCode: apperrors.CodeRoomCreationFailed, wantMessage: "room provider returned status 502"},
		{name: "missing room id", status: http.StatusOK, body: `{"data":{}}`, wantCode: apperrors.CodeRoomCreationFailed, wantMessage: "room provider response missing roomId"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewHuddleProvisioner(HuddleConfig{APIKey: "k", APIBase: server.URL}).CreateRoom(context.Background())
			if code := apperrors.CodeOf(err); code != tt.wantCode {
				t.Fatalf("code = %s, want %s", code, tt.wantCode)
			}
			if err.Error() != tt.wantMessage {
				t.Fatalf("message = %q, want %q", err.Error(), tt.wantMessage)
			}
		})
	}
}

func TestCreateRoomMissingKeyMakesNoCall(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	_, err := NewHuddleProvisioner(HuddleConfig{APIBase: server.URL}).CreateRoom(context.Background())
	if apperrors.CodeOf(err) != apperrors.CodeMissingAPIKey {
		t.Fatalf("err = %v, want missing api key", err)
	}
	if calls.Load() != 0 {
		t.Fatalf("provider calls = %d", calls.Load())
	}
}

func TestCreateRoomTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	p := NewHuddleProvisioner(HuddleConfig{APIKey: "k", APIBase: server.URL, Timeout: 20 * time.Millisecond})
	_, err := p.CreateRoom(context.Background())
	if apperrors.CodeOf(err) != apperrors.CodeRoomCreationFailed {
		t.Fatalf("err = %v, want room creation failed", err)
	}
}

type countingProvisioner struct {
	calls atomic.Int32
	err   error
}

func (p *countingProvisioner) CreateRoom(context.Context) (Room, error) {
	n := p.calls.Add(1)
	if p.err != nil {
		return Room{}, p.err
	}
	return Room{ID: "room-" + string(rune('0'+n))}, nil
}

type mapStore struct {
	mu     sync.Mutex
	rooms  map[string]Room
	putErr error
}

func (s *mapStore) GetRoom(_ context.Context, key string) (Room, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	room, ok := s.rooms[key]
	return room, ok, nil
}

func (s *mapStore) PutRoom(_ context.Context, key string, room Room) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.putErr != nil {
		return s.putErr
	}
	if s.rooms == nil {
		s.rooms = map[string]Room{}
	}
	s.rooms[key] = room
	return nil
}

func TestIdempotentProvisionerCallsProviderOncePerKey(t *testing.T) {
	next := &countingProvisioner{}
	p := NewIdempotentProvisioner(next, &mapStore{})

	var wg sync.WaitGroup
	rooms := make([]Room, 8)
	for i := range rooms {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			room, _, err := p.CreateRoomWithKey(context.Background(), "session-1")
			if err != nil {
				t.Errorf("create room: %v", err)
			}
			rooms[i] = room
		}(i)
	}
	wg.Wait()
	if next.calls.Load() != 1 {
		t.Fatalf("provider calls = %d, want 1", next.calls.Load())
	}
	for _, room := range rooms {
		if room.ID != rooms[0].ID {
			t.Fatalf("rooms differ: %v", rooms)
		}
	}

	other, replayed, err := p.CreateRoomWithKey(context.Background(), "session-2")
	if err != nil || replayed || other.ID == rooms[0].ID {
		t.Fatalf("second key room = %+v replayed=%v err=%v", other, replayed, err)
	}
	again, replayed, err := p.CreateRoomWithKey(context.Background(), "session-2")
	if err != nil || !replayed || again.ID != other.ID {
		t.Fatalf("replay = %+v replayed=%v err=%v", again, replayed, err)
	}
}

func TestIdempotentProvisionerWithoutKeyAlwaysCreates(t *testing.T) {
	next := &countingProvisioner{}
	p := NewIdempotentProvisioner(next, &mapStore{})
	for i := 0; i < 2; i++ {
		if _, _, err := p.CreateRoomWithKey(context.Background(), " "); err != nil {
			t.Fatalf("create room: %v", err)
		}
	}
	if next.calls.Load() != 2 {
		t.Fatalf("provider calls = %d, want 2", next.calls.Load())
	}
}

func TestIdempotentProvisionerDoesNotRecordFailures(t *testing.T) {
	store := &mapStore{}
	next := &countingProvisioner{err: errors.New("provider down")}
	p := NewIdempotentProvisioner(next, store)
	if _, _, err := p.CreateRoomWithKey(context.Background(), "k"); err == nil {
		t.Fatal("expected error")
	}
	if len(store.rooms) != 0 {
		t.Fatalf("stored rooms = %v", store.rooms)
	}
}

func TestIdempotentProvisionerKeepsRoomWhenRecordFails(t *testing.T) {
	store := &mapStore{putErr: errors.New("disk full")}
	next := &countingProvisioner{}
	p := NewIdempotentProvisioner(next, store)
	var logged []string
	p.SetLogf(func(format string, args ...any) { logged = append(logged, fmt.Sprintf(format, args...)) })

	first, replayed, err := p.CreateRoomWithKey(context.Background(), "session-1")
	if err != nil || replayed || first.ID == "" {
		t.Fatalf("first = %+v replayed=%v err=%v", first, replayed, err)
	}
	if len(logged) != 1 || !strings.Contains(logged[0], "disk full") {
		t.Fatalf("logged = %v", logged)
	}

	store.mu.Lock()
	store.putErr = nil
	store.mu.Unlock()
	retry, replayed, err := p.CreateRoomWithKey(context.Background(), "session-1")
	if err != nil || !replayed || retry.ID != first.ID {
		t.Fatalf("retry = %+v replayed=%v err=%v", retry, replayed, err)
	}
	if next.calls.Load() != 1 {
		t.Fatalf("provider calls = %d, want 1", next.calls.Load())
	}
	if stored, ok := store.rooms["session-1"]; !ok || stored.ID != first.ID {
		t.Fatalf("stored rooms = %v", store.rooms)
	}
}
