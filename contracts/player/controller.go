package player

import (
	"context"

	"contract-rpc/contracts/player/fb"
	"contract-rpc/dispatcher"
)

// Controller is the caller-side view of the Player calls.
type Controller struct {
	d *dispatcher.Dispatcher
}

func NewController(d *dispatcher.Dispatcher) *Controller {
	return &Controller{d: d}
}

func (c *Controller) HasState(ctx context.Context, state fb.PlayerState) (bool, error) {
	res, err := dispatcher.Call(ctx, c.d, HasState, HasStateRequest{State: state})
	if err != nil {
		return false, err
	}
	return res.Result, nil
}
