package loadbalance

import "sync/atomic"

type RoundRobin struct {
	counter atomic.Uint64
}

func (b *RoundRobin) Pick(_ string, instances []Instance) (Instance, error) {
	if len(instances) == 0 {
		return Instance{}, ErrNoInstances
	}
	i := (b.counter.Add(1) - 1) % uint64(len(instances))
	return instances[i], nil
}

func (b *RoundRobin) Name() string { return "round_robin" }
