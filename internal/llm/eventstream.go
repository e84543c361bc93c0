package llm

import (
	"context"
	"io"
	"sync"
)

// eventStream adapts a producer function to the Stream interface.
// The producer runs in its own goroutine, sending events to the channel;
// its return value becomes the stream's terminal error (nil maps to io.EOF).
type eventStream struct {
	cancel    context.CancelFunc
	events    chan Event
	errCh     chan error
	closeOnce sync.Once

	err error // terminal error after the producer finished
}

// newEventStream runs produce in a goroutine and returns a Stream over
// its events. Cancelling the passed context stops the producer.
func newEventStream(ctx context.Context, produce func(ctx context.Context, events chan<- Event) error) Stream {
	ctx, cancel := context.WithCancel(ctx)
	s := &eventStream{
		cancel: cancel,
		events: make(chan Event),
		errCh:  make(chan error, 1),
	}
	go func() {
		s.errCh <- produce(ctx, s.events)
		close(s.events)
	}()
	return s
}

func (s *eventStream) Recv() (Event, error) {
	if s.err != nil {
		return Event{}, s.err
	}
	event, ok := <-s.events
	if !ok {
		s.err = <-s.errCh
		if s.err == nil {
			s.err = io.EOF
		}
		return Event{}, s.err
	}
	return event, nil
}

// Close cancels the producer and drains any events still in flight so
// the producer goroutine can exit.
func (s *eventStream) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		go func() {
			for range s.events {
			}
		}()
	})
	return nil
}
