package whiteboard

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/kadirpekel/backplane/internal/bus"
	"github.com/kadirpekel/backplane/internal/eventdetector"
)

// Listener subscribes to events:task and events:session and feeds every
// event through a Reducer, persisting the result after each apply. Run and
// Reload are the only writers; mu guards reducer/board so that Snapshot and
// Reload may be called from HTTP handler goroutines concurrently with Run.
type Listener struct {
	bus    bus.Bus
	store  *Store
	logger *slog.Logger

	mu      sync.RWMutex
	reducer *Reducer
}

// NewListener builds a Listener backed by b and store. It loads the
// persisted whiteboard document (or starts a fresh one) before Run begins
// consuming events.
func NewListener(ctx context.Context, b bus.Bus, store *Store, logger *slog.Logger) (*Listener, error) {
	board, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	return &Listener{bus: b, store: store, logger: logger, reducer: NewReducer(board)}, nil
}

// Run subscribes to the task and session topics and processes events until
// ctx is cancelled. A reducer failure on one event is logged and skipped,
// never fatal.
func (l *Listener) Run(ctx context.Context) error {
	sub, err := l.bus.Subscribe(ctx, bus.TopicTask, bus.TopicSession)
	if err != nil {
		return err
	}
	defer sub.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-sub.C():
			if !ok {
				return nil
			}
			l.process(ctx, msg.Topic, msg.Payload)
		}
	}
}

func (l *Listener) process(ctx context.Context, topic string, payload []byte) {
	var event eventdetector.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		l.logger.Warn("whiteboard listener: failed to decode event, skipping", "topic", topic, "error", err)
		return
	}

	l.mu.Lock()
	err := l.reducer.ApplySafely(topic, event)
	var board Whiteboard
	if err == nil {
		board = *l.reducer.board
	}
	l.mu.Unlock()

	if err != nil {
		l.logger.Error("whiteboard listener: reducer failed, skipping event", "topic", topic, "event_type", event.EventType, "error", err)
		return
	}

	if err := l.store.Save(ctx, &board); err != nil {
		l.logger.Error("whiteboard listener: failed to persist whiteboard", "error", err)
	}
}

// Snapshot returns the whiteboard's current in-memory state. Safe to call
// from any goroutine; it does not mutate the board.
func (l *Listener) Snapshot() Whiteboard {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return *l.reducer.board
}

// Reload discards the in-memory board and reloads it from the store,
// recovering from a document edited or restored out of band.
func (l *Listener) Reload(ctx context.Context) (Whiteboard, error) {
	board, err := l.store.Load(ctx)
	if err != nil {
		return Whiteboard{}, err
	}
	l.mu.Lock()
	l.reducer = NewReducer(board)
	l.mu.Unlock()
	return *board, nil
}
