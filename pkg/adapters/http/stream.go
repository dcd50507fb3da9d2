package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"

	"github.com/aretw0/storygraph/internal/logging"
	"github.com/aretw0/storygraph/pkg/domain"
)

// StreamManager fans session events out to SSE subscribers of a story.
type StreamManager struct {
	mu          sync.RWMutex
	subscribers map[int64]map[chan<- string]struct{} // StoryID -> Set of Channels
	logger      *slog.Logger
}

// NewStreamManager creates an empty manager.
func NewStreamManager(logger *slog.Logger) *StreamManager {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &StreamManager{
		subscribers: make(map[int64]map[chan<- string]struct{}),
		logger:      logger,
	}
}

// Subscribe registers a subscriber for storyID. The returned func unsubscribes
// and closes the channel.
func (sm *StreamManager) Subscribe(storyID int64) (<-chan string, func()) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	ch := make(chan string, 10)
	if _, ok := sm.subscribers[storyID]; !ok {
		sm.subscribers[storyID] = make(map[chan<- string]struct{})
	}
	sm.subscribers[storyID][ch] = struct{}{}

	return ch, func() {
		sm.mu.Lock()
		defer sm.mu.Unlock()
		if subs, ok := sm.subscribers[storyID]; ok {
			delete(subs, ch)
			close(ch)
			if len(subs) == 0 {
				delete(sm.subscribers, storyID)
			}
		}
	}
}

// Broadcast sends msg to every subscriber of storyID without blocking.
func (sm *StreamManager) Broadcast(storyID int64, msg string) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	for ch := range sm.subscribers[storyID] {
		select {
		case ch <- msg:
		default:
			// Drop message if channel is full (slow client)
			sm.logger.Warn("SSE: Client buffer full, dropping message", "story_id", storyID)
		}
	}
}

// Subscribers returns the number of subscribers of storyID.
func (sm *StreamManager) Subscribers(storyID int64) int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.subscribers[storyID])
}

// Hooks returns lifecycle hooks that broadcast every event as JSON.
func (sm *StreamManager) Hooks() domain.LifecycleHooks {
	publish := func(_ context.Context, e *domain.SessionEvent) {
		data, err := json.Marshal(e)
		if err != nil {
			sm.logger.Error("SSE: event encode failed", "err", err)
			return
		}
		sm.Broadcast(e.StoryID, string(data))
	}
	return domain.LifecycleHooks{
		OnStoryStart:         publish,
		OnChoice:             publish,
		OnCompletion:         publish,
		OnPersistenceFailure: publish,
	}
}

// SubscribeEvents handles the GET /events request (SSE).
func (s *Server) SubscribeEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.respond(w, http.StatusInternalServerError, map[string]string{"error": "streaming not supported"})
		return
	}
	storyID, err := strconv.ParseInt(r.URL.Query().Get("story_id"), 10, 64)
	if err != nil || storyID <= 0 {
		s.badRequest(w, "invalid story_id", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, cancel := s.streams.Subscribe(storyID)
	defer cancel()
	s.logger.Info("SSE: Subscribing to story events", "story_id", storyID)

	fmt.Fprintf(w, "event: ping\ndata: connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Info("SSE Client Disconnected", "story_id", storyID)
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		}
	}
}
