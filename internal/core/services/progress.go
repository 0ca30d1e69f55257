package services

import (
	"github.com/custodia-labs/chartdex/internal/core/domain"
	"github.com/custodia-labs/chartdex/internal/core/ports/driving"
)

// ObserverFunc adapts a plain function to the ProgressObserver
// interface.
type ObserverFunc func(domain.ProgressEvent)

// OnProgress calls the wrapped function.
func (f ObserverFunc) OnProgress(event domain.ProgressEvent) {
	f(event)
}

// Ensure ChannelObserver implements the interface.
var _ driving.ProgressObserver = (*ChannelObserver)(nil)

// ChannelObserver forwards progress events into a bounded channel.
// When the buffer is full events are dropped rather than blocking the
// pipeline, so a slow consumer can never stall an indexing call.
type ChannelObserver struct {
	events chan domain.ProgressEvent
}

// NewChannelObserver creates an observer with the given buffer size.
// A non-positive size gets a small default buffer.
func NewChannelObserver(buffer int) *ChannelObserver {
	if buffer <= 0 {
		buffer = 16
	}
	return &ChannelObserver{
		events: make(chan domain.ProgressEvent, buffer),
	}
}

// Events returns the channel consumers read from.
func (o *ChannelObserver) Events() <-chan domain.ProgressEvent {
	return o.events
}

// OnProgress enqueues the event, dropping it when the buffer is full.
func (o *ChannelObserver) OnProgress(event domain.ProgressEvent) {
	select {
	case o.events <- event:
	default:
		// Consumer is behind; drop rather than block the pipeline.
	}
}

// Close closes the event channel. Call only after indexing completes.
func (o *ChannelObserver) Close() {
	close(o.events)
}
