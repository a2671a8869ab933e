// Package notify tells downstream consumers that a source's dataset
// object changed, over Google Cloud Pub/Sub.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// RefreshEvent is the message body published after a successful run.
type RefreshEvent struct {
	Source     string    `json:"source"`
	ObjectKey  string    `json:"object_key"`
	Records    int       `json:"records"`
	NewRecords int       `json:"new_records"`
	FinishedAt time.Time `json:"finished_at"`
}

// MessagePublisher is the slice of the Pub/Sub publisher the notifier
// needs; the real client and test fakes both satisfy it.
type MessagePublisher interface {
	Publish(ctx context.Context, data []byte, attributes map[string]string) (string, error)
}

// Notifier publishes dataset refresh events.
type Notifier struct {
	publisher MessagePublisher
}

// New builds a Notifier. A nil publisher produces a no-op notifier, so
// callers without Pub/Sub configured need no branching.
func New(publisher MessagePublisher) *Notifier {
	return &Notifier{publisher: publisher}
}

// DatasetRefreshed publishes the event and returns the message ID.
func (n *Notifier) DatasetRefreshed(ctx context.Context, event RefreshEvent) (string, error) {
	if n == nil || n.publisher == nil {
		return "", nil
	}
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal refresh event: %w", err)
	}
	attributes := map[string]string{
		"source": event.Source,
		"event":  "dataset_refreshed",
	}
	id, err := n.publisher.Publish(ctx, data, attributes)
	if err != nil {
		return "", fmt.Errorf("publish refresh event: %w", err)
	}
	return id, nil
}
