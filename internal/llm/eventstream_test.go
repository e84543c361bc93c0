package llm

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEventStream_YieldsEventsThenEOF(t *testing.T) {
	stream := newEventStream(context.Background(), func(ctx context.Context, events chan<- Event) error {
		events <- Event{Type: EventTextDelta, Text: "a"}
		events <- Event{Type: EventTextDelta, Text: "b"}
		events <- Event{Type: EventDone}
		return nil
	})
	defer stream.Close()

	var got []Event
	for {
		event, err := stream.Recv()
		if err == io.EOF {
			break
		}
		require.NoError(t, err)
		got = append(got, event)
	}

	require.Len(t, got, 3)
	assert.Equal(t, "a", got[0].Text)
	assert.Equal(t, "b", got[1].Text)
	assert.Equal(t, EventDone, got[2].Type)

	// EOF is sticky.
	_, err := stream.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestEventStream_ProducerError(t *testing.T) {
	boom := errors.New("boom")
	stream := newEventStream(context.Background(), func(ctx context.Context, events chan<- Event) error {
		events <- Event{Type: EventTextDelta, Text: "partial"}
		return boom
	})
	defer stream.Close()

	event, err := stream.Recv()
	require.NoError(t, err)
	assert.Equal(t, "partial", event.Text)

	_, err = stream.Recv()
	assert.ErrorIs(t, err, boom)

	// Error is sticky.
	_, err = stream.Recv()
	assert.ErrorIs(t, err, boom)
}

func TestEventStream_CloseUnblocksProducer(t *testing.T) {
	produced := make(chan struct{})
	stream := newEventStream(context.Background(), func(ctx context.Context, events chan<- Event) error {
		defer close(produced)
		for i := 0; i < 100; i++ {
			select {
			case events <- Event{Type: EventTextDelta, Text: "x"}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	_, err := stream.Recv()
	require.NoError(t, err)

	require.NoError(t, stream.Close())
	<-produced
}

func TestEventStream_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	stream := newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		<-ctx.Done()
		return ctx.Err()
	})
	defer stream.Close()

	cancel()
	_, err := stream.Recv()
	assert.ErrorIs(t, err, context.Canceled)
}
