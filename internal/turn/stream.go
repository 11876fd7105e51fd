package turn

import (
	"context"

	"github.com/ferrite-ai/ferrite/internal/wire"
)

// queueSize bounds the delivery queue between the producing task and the
// transport consumer, decoupling an engine stall from a slow reader.
const queueSize = 64

// Stream is the single-consumer sequence of wire events for one turn. It is
// finite: it ends on natural completion, engine error, or after a stop is
// requested. Not restartable.
type Stream struct {
	q    <-chan wire.Event
	stop *StopSignal
}

// Next returns the next wire event. ok is false when the stream is
// exhausted or ctx is done. A done context means the client went away: the
// turn's stop signal is set so the producer drains quietly, but the engine
// itself is never interrupted.
func (s *Stream) Next(ctx context.Context) (wire.Event, bool) {
	select {
	case ev, open := <-s.q:
		if !open {
			return nil, false
		}
		return ev, true
	case <-ctx.Done():
		s.stop.Set()
		return nil, false
	}
}
