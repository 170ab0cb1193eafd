package launcherd

import (
	"context"

	"github.com/itchio/wharf/state"
	"github.com/oaiba/oblauncher/comm"
	"github.com/pkg/errors"
)

type NewStateConsumerParams struct {
	// Mandatory
	Conn Conn
	Ctx  context.Context
}

// NewStateConsumer returns a consumer that forwards every
// message to the peer as a `Log` notification.
func NewStateConsumer(params *NewStateConsumerParams) (*state.Consumer, error) {
	if params.Conn == nil {
		return nil, errors.New("NewConsumer: missing Conn")
	}

	if params.Ctx == nil {
		return nil, errors.New("NewConsumer: missing Ctx")
	}

	c := &state.Consumer{
		OnMessage: func(level, msg string) {
			err := params.Conn.Notify(params.Ctx, "Log", &LogNotification{
				Level:   LogLevel(level),
				Message: msg,
			})
			if err != nil {
				comm.Debugf("Failed to notify: %v", err)
			}
		},
	}

	return c, nil
}
