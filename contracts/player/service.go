package player

import (
	"context"
	"sync"

	"contract-rpc/contracts/player/fb"
	"contract-rpc/dispatcher"
)

// Service answers Player calls for one player whose current states it holds.
type Service struct {
	mu     sync.RWMutex
	states map[fb.PlayerState]struct{}
}

func NewService(states ...fb.PlayerState) *Service {
	s := &Service{}
	s.SetStates(states...)
	return s
}

// SetStates replaces the player's current states.
func (s *Service) SetStates(states ...fb.PlayerState) {
	set := make(map[fb.PlayerState]struct{}, len(states))
	for _, st := range states {
		set[st] = struct{}{}
	}
	s.mu.Lock()
	s.states = set
	s.mu.Unlock()
}

func (s *Service) HasState(ctx context.Context, req HasStateRequest) (HasStateResponse, error) {
	s.mu.RLock()
	_, ok := s.states[req.State]
	s.mu.RUnlock()
	return HasStateResponse{Result: ok}, nil
}

// Register subscribes every Player call served by svc on d.
func Register(d *dispatcher.Dispatcher, svc *Service) error {
	return dispatcher.Handle(d, HasState, svc.HasState)
}
