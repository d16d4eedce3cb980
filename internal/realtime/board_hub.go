// Package realtime fans deal changes out to the boards that are open on a
// pipeline, so other viewers can refetch without polling.
package realtime

import (
	"context"
	"sync"

	"crmhub/internal/models"
)

type EventType string

const (
	DealCreated EventType = "deal.created"
	DealUpdated EventType = "deal.updated"
	DealMoved   EventType = "deal.moved"
	DealDeleted EventType = "deal.deleted"
)

// DealEvent tells a board which deal changed. Boards refetch on receipt;
// the event is a hint, not a replica.
type DealEvent struct {
	Type       EventType         `json:"type"`
	PipelineID string            `json:"pipeline_id"`
	DealID     string            `json:"deal_id"`
	StageID    *string           `json:"stage_id,omitempty"`
	Status     models.DealStatus `json:"status,omitempty"`
}

type subscriber chan DealEvent

// BoardHub keeps one subscriber set per pipeline.
type BoardHub struct {
	mu     sync.RWMutex
	boards map[string]map[subscriber]struct{}
	buffer int
}

func NewBoardHub() *BoardHub {
	return &BoardHub{
		boards: make(map[string]map[subscriber]struct{}),
		buffer: 16,
	}
}

// Subscribe registers a board on pipelineID. The channel is closed once ctx
// is done.
func (h *BoardHub) Subscribe(ctx context.Context, pipelineID string) <-chan DealEvent {
	sub := make(subscriber, h.buffer)
	h.register(pipelineID, sub)
	go func() {
		<-ctx.Done()
		h.unregister(pipelineID, sub)
	}()
	return sub
}

func (h *BoardHub) register(pipelineID string, sub subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.boards[pipelineID] == nil {
		h.boards[pipelineID] = make(map[subscriber]struct{})
	}
	h.boards[pipelineID][sub] = struct{}{}
}

func (h *BoardHub) unregister(pipelineID string, sub subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if subs, ok := h.boards[pipelineID]; ok {
		delete(subs, sub)
		if len(subs) == 0 {
			delete(h.boards, pipelineID)
		}
	}
	close(sub)
}

// Publish never blocks: a board whose buffer is full misses the event and
// catches up on its next refetch.
func (h *BoardHub) Publish(ev DealEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for sub := range h.boards[ev.PipelineID] {
		select {
		case sub <- ev:
		default:
		}
	}
}

// Boards reports how many boards are subscribed to pipelineID.
func (h *BoardHub) Boards(pipelineID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.boards[pipelineID])
}
