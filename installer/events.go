package installer

import (
	"context"
	"fmt"

	"github.com/itchio/wharf/werrors"
	"github.com/pkg/errors"
)

type EventSink struct {
	Append func(ev Event)
}

func (es *EventSink) PostEvent(event Event) {
	if es == nil || es.Append == nil {
		return
	}

	switch true {
	case event.Progress != nil:
		event.Type = EventProgress
	case event.Complete != nil:
		event.Type = EventComplete
	}

	es.Append(event)
}

func (es *EventSink) PostProgress(ev ProgressEvent) {
	es.PostEvent(Event{Progress: &ev})
}

func (es *EventSink) PostComplete(ev CompleteEvent) {
	es.PostEvent(Event{Complete: &ev})
}

// CompleteEventFor turns the outcome of Perform into a terminal event
func CompleteEventFor(gameID string, res *Result, err error) CompleteEvent {
	if err != nil {
		return CompleteEvent{
			GameID:  gameID,
			Success: false,
			Error:   errorMessage(err),
		}
	}

	return CompleteEvent{
		GameID:  gameID,
		Success: true,
		Path:    res.Path,
	}
}

// IsCancelled returns true if err is the result of a cancelled install
func IsCancelled(err error) bool {
	cause := errors.Cause(err)
	return cause == werrors.ErrCancelled || cause == context.Canceled
}

func errorMessage(err error) string {
	if IsCancelled(err) {
		return "install was cancelled"
	}
	return fmt.Sprintf("%v", err)
}
