package loadbalance

import (
	"fmt"
	"hash/crc32"
	"slices"
	"sort"
	"strings"
	"sync"
)

// DefaultReplicas is the number of virtual nodes per instance. Without them a
// handful of instances tends to cluster on the ring.
const DefaultReplicas = 100

// ConsistentHash maps a key to the first virtual node clockwise of its hash.
// The ring is rebuilt whenever the instance set passed to Pick changes.
type ConsistentHash struct {
	replicas int

	mu    sync.Mutex
	ident string
	ring  []uint32
	nodes map[uint32]Instance
}

func NewConsistentHash(replicas int) *ConsistentHash {
	if replicas <= 0 {
		replicas = DefaultReplicas
	}
	return &ConsistentHash{replicas: replicas}
}

func (b *ConsistentHash) Pick(key string, instances []Instance) (Instance, error) {
	if len(instances) == 0 {
		return Instance{}, ErrNoInstances
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if id := identity(instances); id != b.ident {
		b.build(instances)
		b.ident = id
	}

	hash := crc32.ChecksumIEEE([]byte(key))
	idx := sort.Search(len(b.ring), func(i int) bool { return b.ring[i] >= hash })
	if idx == len(b.ring) {
		idx = 0
	}
	return b.nodes[b.ring[idx]], nil
}

func (b *ConsistentHash) build(instances []Instance) {
	b.ring = make([]uint32, 0, len(instances)*b.replicas)
	b.nodes = make(map[uint32]Instance, len(instances)*b.replicas)
	for _, inst := range instances {
		for i := 0; i < b.replicas; i++ {
			h := crc32.ChecksumIEEE([]byte(fmt.Sprintf("%s#%d", inst.Addr, i)))
			if _, taken := b.nodes[h]; taken {
				continue
			}
			b.ring = append(b.ring, h)
			b.nodes[h] = inst
		}
	}
	slices.Sort(b.ring)
}

func identity(instances []Instance) string {
	addrs := make([]string, len(instances))
	for i, inst := range instances {
		addrs[i] = inst.Addr
	}
	slices.Sort(addrs)
	return strings.Join(addrs, ",")
}

func (b *ConsistentHash) Name() string { return "consistent_hash" }
