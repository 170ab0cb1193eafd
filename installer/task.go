package installer

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

const eventBufferSize = 64

// Task is a handle on an install running in the background.
type Task struct {
	ID     string
	GameID string

	events chan Event
	cancel context.CancelFunc
	done   chan struct{}

	resultLock sync.Mutex
	result     *CompleteEvent
}

// Start runs an install in the background. The returned task's events
// end with exactly one complete event, after which the channel is closed.
//
// The event stream is lossy: it buffers up to 64 events, and progress
// events that don't fit are dropped rather than block the download.
// Every progress event carries absolute values, so a reader that falls
// behind only sees coarser progress. The complete event is never dropped.
func Start(ctx context.Context, params *Params) *Task {
	ctx, cancel := context.WithCancel(ctx)

	gameID := ""
	if params.Game != nil {
		gameID = params.Game.ID
	}

	t := &Task{
		ID:     uuid.New().String(),
		GameID: gameID,
		events: make(chan Event, eventBufferSize),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	go t.run(ctx, params)
	return t
}

func (t *Task) run(ctx context.Context, params *Params) {
	defer t.cancel()

	sink := &EventSink{
		Append: func(ev Event) {
			if ev.Type == EventComplete {
				t.events <- ev
				return
			}
			// always keep room for the complete event
			if len(t.events) < cap(t.events)-1 {
				t.events <- ev
			}
		},
	}

	res, err := t.perform(ctx, params, sink)
	complete := CompleteEventFor(t.GameID, res, err)

	t.resultLock.Lock()
	t.result = &complete
	t.resultLock.Unlock()

	sink.PostComplete(complete)
	close(t.events)
	close(t.done)
}

func (t *Task) perform(ctx context.Context, params *Params, sink *EventSink) (res *Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			if rErr, ok := r.(error); ok {
				err = errors.WithStack(rErr)
			} else {
				err = errors.New(fmt.Sprintf("panic: %v", r))
			}
		}
	}()

	return Perform(ctx, params, sink.PostProgress)
}

// Events returns the task's event stream. Callers that only
// care about the outcome can use Wait instead.
func (t *Task) Events() <-chan Event {
	return t.events
}

// Cancel aborts the install. The task still ends with a
// (failed) complete event.
func (t *Task) Cancel() {
	t.cancel()
}

// Done is closed once the task has completed
func (t *Task) Done() <-chan struct{} {
	return t.done
}

// Wait blocks until the task has completed and returns its outcome.
func (t *Task) Wait() *CompleteEvent {
	<-t.done

	t.resultLock.Lock()
	defer t.resultLock.Unlock()
	return t.result
}
