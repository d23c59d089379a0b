package room

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"
)

// Store records rooms by idempotency key.
type Store interface {
	GetRoom(ctx context.Context, key string) (Room, bool, error)
	PutRoom(ctx context.Context, key string, room Room) error
}

// IdempotentProvisioner returns the room already recorded for a key instead
// of creating another one.
type IdempotentProvisioner struct {
	next  Provisioner
	store Store
	logf  func(string, ...any)

	mu    sync.Mutex
	locks map[string]*keyLock
	// unsaved holds rooms created while the store rejected the write.
	unsaved map[string]Room
}

type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewIdempotentProvisioner wraps next with store-backed replay.
func NewIdempotentProvisioner(next Provisioner, store Store) *IdempotentProvisioner {
	return &IdempotentProvisioner{
		next:    next,
		store:   store,
		logf:    log.Printf,
		locks:   map[string]*keyLock{},
		unsaved: map[string]Room{},
	}
}

// SetLogf overrides the logger used for record failures.
func (p *IdempotentProvisioner) SetLogf(logf func(string, ...any)) {
	if logf != nil {
		p.logf = logf
	}
}

// CreateRoom provisions without replay.
func (p *IdempotentProvisioner) CreateRoom(ctx context.Context) (Room, error) {
	return p.next.CreateRoom(ctx)
}

// CreateRoomWithKey returns the recorded room for key, or provisions and
// records a new one. An empty key behaves like CreateRoom. Concurrent calls
// with the same key reach the provider at most once. A room the store failed
// to record is still returned, and replayed from memory until a later write
// succeeds.
func (p *IdempotentProvisioner) CreateRoomWithKey(ctx context.Context, key string) (Room, bool, error) {
	key = strings.TrimSpace(key)
	if key == "" || p.store == nil {
		room, err := p.next.CreateRoom(ctx)
		return room, false, err
	}

	unlock := p.lock(key)
	defer unlock()

	if room, ok := p.takeUnsaved(key); ok {
		p.record(ctx, key, room)
		return room, true, nil
	}
	existing, ok, err := p.store.GetRoom(ctx, key)
	if err != nil {
		return Room{}, false, fmt.Errorf("load room for idempotency key: %w", err)
	}
	if ok {
		return existing, true, nil
	}
	room, err := p.next.CreateRoom(ctx)
	if err != nil {
		return Room{}, false, err
	}
	p.record(ctx, key, room)
	return room, false, nil
}

// record persists room, keeping it in memory when the store write fails.
// The caller holds the key lock.
func (p *IdempotentProvisioner) record(ctx context.Context, key string, room Room) {
	if err := p.store.PutRoom(context.WithoutCancel(ctx), key, room); err != nil {
		p.logf("record room %s for idempotency key: %v", room.ID, err)
		p.mu.Lock()
		p.unsaved[key] = room
		p.mu.Unlock()
	}
}

func (p *IdempotentProvisioner) takeUnsaved(key string) (Room, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	room, ok := p.unsaved[key]
	if ok {
		delete(p.unsaved, key)
	}
	return room, ok
}

func (p *IdempotentProvisioner) lock(key string) func() {
	p.mu.Lock()
	l, ok := p.locks[key]
	if !ok {
		l = &keyLock{}
		p.locks[key] = l
	}
	l.refs++
	p.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		p.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(p.locks, key)
		}
		p.mu.Unlock()
	}
}
