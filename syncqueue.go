package main

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/segmentio/ksuid"
)

const syncCallTimeout = 5 * time.Second

// SyncEvent is one queued room-metadata update.
type SyncEvent struct {
	ID     string // ksuid, for log correlation
	RoomID string
	Meta   RoomMetadata
	At     time.Time
}

// SyncQueue decouples room-metadata synchronization from the mutation
// path: every roster change enqueues an event here and a background
// worker pushes it to the platform, so platform latency never blocks
// gameplay commands or ticks. Failures are logged, not retried.
type SyncQueue struct {
	platform Platform
	events   chan SyncEvent
	stop     chan struct{}
	wg       sync.WaitGroup
}

// NewSyncQueue creates and starts the background sync worker.
func NewSyncQueue(platform Platform) *SyncQueue {
	q := &SyncQueue{
		platform: platform,
		events:   make(chan SyncEvent, 256),
		stop:     make(chan struct{}),
	}
	q.wg.Add(1)
	go q.worker()
	return q
}

// Enqueue schedules a metadata push. Non-blocking: when the queue is full
// the event is dropped, gameplay always wins over metadata freshness.
func (q *SyncQueue) Enqueue(roomID string, meta RoomMetadata) {
	ev := SyncEvent{
		ID:     ksuid.New().String(),
		RoomID: roomID,
		Meta:   meta,
		At:     time.Now().UTC(),
	}
	select {
	case q.events <- ev:
	default:
		log.Printf("sync queue full, dropping update %s for room %s", ev.ID, roomID)
	}
}

func (q *SyncQueue) worker() {
	defer q.wg.Done()
	for {
		select {
		case ev := <-q.events:
			q.push(ev)
		case <-q.stop:
			// Drain what's already queued before exiting.
			for {
				select {
				case ev := <-q.events:
					q.push(ev)
				default:
					return
				}
			}
		}
	}
}

func (q *SyncQueue) push(ev SyncEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), syncCallTimeout)
	defer cancel()
	if err := q.platform.UpdateRoomConfig(ctx, ev.RoomID, ev.Meta); err != nil {
		log.Printf("room %s: metadata sync %s failed: %v", ev.RoomID, ev.ID, err)
	}
}

// Close stops the worker after draining queued events.
func (q *SyncQueue) Close() {
	close(q.stop)
	q.wg.Wait()
}
