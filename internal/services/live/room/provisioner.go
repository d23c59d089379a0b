// Package room provisions live rooms with the Huddle01 API.
package room

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	apperrors "github.com/siu-labs/livegate/internal/platform/errors"
	"github.com/siu-labs/livegate/internal/platform/timeouts"
)

const (
	// DefaultAPIBase is the Huddle01 REST base used when none is configured.
	DefaultAPIBase = "https://api.huddle01.com/api/v1"
	// DefaultRoomBase is the app origin joined with /room/<id>.
	DefaultRoomBase = "https://app.huddle01.com"
	// TestRoomTitle is the fixed title of provisioned test rooms.
	TestRoomTitle = "SI U Test Room"

	maxErrorBody = 4096
)

var tracer = otel.Tracer("github.com/siu-labs/livegate/internal/services/live/room")

// Room describes a provisioned room. URL is empty when the provider did not
// return one.
type Room struct {
	ID  string `json:"roomId"`
	URL string `json:"roomUrl,omitempty"`
}

// JoinURL returns the provider URL, or builds <base>/room/<id>.
func (r Room) JoinURL(roomBase string) string {
	if strings.TrimSpace(r.URL) != "" {
		return r.URL
	}
	roomBase = strings.TrimRight(strings.TrimSpace(roomBase), "/")
	if roomBase == "" {
		roomBase = DefaultRoomBase
	}
	return roomBase + "/room/" + r.ID
}

// Provisioner creates rooms.
type Provisioner interface {
	CreateRoom(ctx context.Context) (Room, error)
}

// HuddleConfig configures the Huddle01 client.
type HuddleConfig struct {
	APIKey     string
	APIBase    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// HuddleProvisioner calls POST {base}/create-room.
type HuddleProvisioner struct {
	apiKey  string
	apiBase string
	client  *http.Client
	timeout time.Duration
}

// NewHuddleProvisioner builds a provisioner. A missing key is reported on
// CreateRoom.
func NewHuddleProvisioner(cfg HuddleConfig) *HuddleProvisioner {
	base := strings.TrimRight(strings.TrimSpace(cfg.APIBase), "/")
	if base == "" {
		base = DefaultAPIBase
	}
	client := cfg.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = timeouts.ProviderRequest
	}
	return &HuddleProvisioner{
		apiKey:  strings.TrimSpace(cfg.APIKey),
		apiBase: base,
		client:  client,
		timeout: timeout,
	}
}

type createRoomRequest struct {
	Title       string   `json:"title"`
	HostWallets []string `json:"hostWallets"`
	RoomLocked  bool     `json:"roomLocked"`
}

type roomPayload struct {
	RoomID      string `json:"roomId"`
	MeetingLink string `json:"meetingLink"`
	RoomURL     string `json:"roomUrl"`
}

type createRoomResponse struct {
	roomPayload
	Data    *roomPayload `json:"data"`
	Message string       `json:"message"`
	Error   string       `json:"error"`
}

// CreateRoom provisions one unlocked test room. Every failure, including a
// timeout, is reported as ROOM_CREATION_FAILED. There is no retry.
func (p *HuddleProvisioner) CreateRoom(ctx context.Context) (Room, error) {
	if p.apiKey == "" {
		return Room{}, apperrors.New(apperrors.CodeMissingAPIKey, "HUDDLE_API_KEY is not configured")
	}
	ctx, span := tracer.Start(ctx, "room.CreateRoom")
	defer span.End()

	room, err := p.createRoom(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "create room failed")
		return Room{}, err
	}
	span.SetAttributes(attribute.String("room_id", room.ID))
	return room, nil
}

func (p *HuddleProvisioner) createRoom(ctx context.Context) (Room, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	body, err := json.Marshal(createRoomRequest{Title: TestRoomTitle, HostWallets: []string{}, RoomLocked: false})
	if err != nil {
		return Room{}, fmt.Errorf("marshal create room request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.apiBase+"/create-room", bytes.NewReader(body))
	if err != nil {
		return Room{}, creationFailed("build create room request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", p.apiKey)

	res, err := p.client.Do(req)
	if err != nil {
		return Room{}, creationFailed("create room request failed", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if err != nil {
		return Room{}, creationFailed("read create room response", err)
	}
	var payload createRoomResponse
	decodeErr := json.Unmarshal(raw, &payload)

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		message := ""
		if decodeErr == nil {
			message = strings.TrimSpace(payload.Message)
			if message == "" {
				message = strings.TrimSpace(payload.Error)
			}
		}
		if message == "" {
			message = fmt.Sprintf("room provider returned status %d", res.StatusCode)
		}
		return Room{}, apperrors.WithMetadata(apperrors.CodeRoomCreationFailed, message, map[string]string{
			"Status": res.Status,
			"Body":   strings.TrimSpace(string(truncate(raw, maxErrorBody))),
		})
	}
	if decodeErr != nil {
		return Room{}, creationFailed("decode create room response", decodeErr)
	}

	data := payload.roomPayload
	if payload.Data != nil {
		data = *payload.Data
	}
	if strings.TrimSpace(data.RoomID) == "" {
		return Room{}, apperrors.New(apperrors.CodeRoomCreationFailed, "room provider response missing roomId")
	}
	room := Room{ID: data.RoomID, URL: strings.TrimSpace(data.MeetingLink)}
	if room.URL == "" {
		room.URL = strings.TrimSpace(data.RoomURL)
	}
	return room, nil
}

func creationFailed(message string, cause error) error {
	return apperrors.Wrap(apperrors.CodeRoomCreationFailed, fmt.Sprintf("%s: %v", message, cause), cause)
}

func truncate(data []byte, limit int) []byte {
	if len(data) > limit {
		return data[:limit]
	}
	return data
}
