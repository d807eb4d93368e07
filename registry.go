package main

import (
	"context"
	"sync"
	"time"
)

// Registry is the process-wide room index: the only state visible to more
// than one room. Admission of new rooms and lookup from any connection
// are safe to run concurrently.
type Registry struct {
	mu    sync.RWMutex
	rooms map[string]*Room

	cfg  *Config
	deps RoomDeps
}

// NewRegistry creates a registry. The deps are shared by every room it
// creates; OnDestroy is wired here so a finished room removes itself.
func NewRegistry(cfg *Config, deps RoomDeps) *Registry {
	reg := &Registry{
		rooms: make(map[string]*Room),
		cfg:   cfg,
	}
	userOnDestroy := deps.OnDestroy
	deps.OnDestroy = func(roomID string) {
		reg.Remove(roomID)
		if userOnDestroy != nil {
			userOnDestroy(roomID)
		}
	}
	reg.deps = deps
	return reg
}

// GetOrCreate returns the room for an id, creating it on first admission
// using the platform's matchmaking metadata. Unknown room ids surface
// ErrRoomNotFound.
func (reg *Registry) GetOrCreate(ctx context.Context, roomID string) (*Room, error) {
	reg.mu.RLock()
	r, ok := reg.rooms[roomID]
	reg.mu.RUnlock()
	if ok {
		return r, nil
	}

	info, err := reg.deps.Platform.GetRoomInfo(ctx, roomID)
	if err != nil {
		return nil, err
	}

	reg.mu.Lock()
	defer reg.mu.Unlock()
	if r, ok := reg.rooms[roomID]; ok {
		// Lost the creation race; the platform call above was redundant
		// but harmless.
		return r, nil
	}
	r = NewRoom(roomID, reg.cfg, info, reg.deps)
	reg.rooms[roomID] = r
	return r, nil
}

// Get returns a room or nil.
func (reg *Registry) Get(roomID string) *Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return reg.rooms[roomID]
}

// Remove drops a room from the index.
func (reg *Registry) Remove(roomID string) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	delete(reg.rooms, roomID)
}

// RoomCount returns the number of active rooms.
func (reg *Registry) RoomCount() int {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	return len(reg.rooms)
}

func (reg *Registry) list() []*Room {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		rooms = append(rooms, r)
	}
	return rooms
}

// Run drives every active room from one fixed-period timer. Rooms share
// no mutable state, so each cycle ticks them in parallel and waits for
// the stragglers before the next period; ticks are short and non-blocking
// by construction, so a cycle always fits the period in practice.
func (reg *Registry) Run(ctx context.Context) {
	interval := reg.cfg.TickInterval()
	dt := interval.Seconds()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			now := time.Now()
			var wg sync.WaitGroup
			for _, r := range reg.list() {
				wg.Add(1)
				go func(r *Room) {
					defer wg.Done()
					r.Tick(now, dt)
				}(r)
			}
			wg.Wait()
		}
	}
}
