// Package loadbalance picks the TCP bus server that serves the next call.
//
//   - RoundRobin: equal-capacity instances
//   - WeightedRandom: instances with different capacity
//   - ConsistentHash: the same call name sticks to the same instance
package loadbalance

import (
	"errors"
	"fmt"
)

var ErrNoInstances = errors.New("loadbalance: no instances available")

// Instance is one TCP bus server.
type Instance struct {
	Addr   string
	Weight int // relative share for WeightedRandom; <= 0 counts as 1
}

// Balancer picks one of instances for the call named key.
// Implementations are safe for concurrent use.
type Balancer interface {
	Pick(key string, instances []Instance) (Instance, error)
	Name() string
}

// New returns the balancer registered under name: round_robin,
// weighted_random or consistent_hash. An empty name selects round_robin.
func New(name string) (Balancer, error) {
	switch name {
	case "", "round_robin":
		return &RoundRobin{}, nil
	case "weighted_random":
		return &WeightedRandom{}, nil
	case "consistent_hash":
		return NewConsistentHash(DefaultReplicas), nil
	default:
		return nil, fmt.Errorf("unknown balancer %q", name)
	}
}
