package devserver

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/valderanvvk/frontend-base-template/internal/telemetry"
)

// Broker fans reload notifications out to connected browsers over
// server-sent events.
type Broker struct {
	mu      sync.Mutex
	clients map[chan string]struct{}
}

func NewBroker() *Broker {
	return &Broker{clients: make(map[chan string]struct{})}
}

// Subscribe registers a client. The returned func unregisters it.
func (b *Broker) Subscribe() (<-chan string, func()) {
	ch := make(chan string, 1)

	b.mu.Lock()
	b.clients[ch] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.clients, ch)
			b.mu.Unlock()
		})
	}
}

// Publish sends id to every client without blocking. A client that has not
// consumed its previous notification keeps that one; it reloads either way.
func (b *Broker) Publish(ctx context.Context, id string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	sent := 0
	for ch := range b.clients {
		select {
		case ch <- id:
			sent++
		default:
		}
	}

	telemetry.GetMetrics().ReloadsTotal.Add(ctx, 1)
	log.Debug().Str("build", id).Int("clients", len(b.clients)).Msg("Sent reload")
	return sent
}

// Clients returns the number of connected clients.
func (b *Broker) Clients() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.clients)
}

// ServeHTTP streams reload events until the client goes away.
func (b *Broker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	rc := http.NewResponseController(w)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	if _, err := fmt.Fprint(w, ": connected\n\n"); err != nil {
		return
	}
	if err := rc.Flush(); err != nil {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	events, unsubscribe := b.Subscribe()
	defer unsubscribe()

	ctx := r.Context()
	metrics := telemetry.GetMetrics()
	metrics.ReloadClients.Add(ctx, 1)
	defer metrics.ReloadClients.Add(context.WithoutCancel(ctx), -1)

	for {
		select {
		case <-ctx.Done():
			return
		case id := <-events:
			if _, err := fmt.Fprintf(w, "event: reload\ndata: %s\n\n", id); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}
