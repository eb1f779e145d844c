package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// PollOptions bounds WaitForDocument.
type PollOptions struct {
	Attempts int
	Interval time.Duration
}

// DefaultPoll waits up to two seconds.
var DefaultPoll = PollOptions{Attempts: 10, Interval: 200 * time.Millisecond}

// WaitForDocument polls until a just-created document becomes readable.
// Only ErrNotFound is retried; any other store error is returned at once.
func WaitForDocument(ctx context.Context, s Store, kind Kind, id string, opts PollOptions) (*structpb.Struct, error) {
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	for attempt := 1; ; attempt++ {
		doc, err := s.Get(ctx, kind, id)
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return nil, err
		}
		if attempt >= opts.Attempts {
			return nil, fmt.Errorf("%s/%s not visible after %d attempts: %w", kind, id, attempt, err)
		}
		slog.Debug("Waiting for document", "kind", kind, "id", id, "attempt", attempt)

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opts.Interval):
		}
	}
}
