package loadbalance

import (
	"errors"
	"fmt"
	"testing"
)

var testInstances = []Instance{
	{Addr: ":8001", Weight: 10},
	{Addr: ":8002", Weight: 5},
	{Addr: ":8003", Weight: 10},
}

func TestRoundRobin(t *testing.T) {
	b := &RoundRobin{}
	for i := 0; i < 2*len(testInstances); i++ {
		inst, err := b.Pick("Player.hasState", testInstances)
		if err != nil {
			t.Fatal(err)
		}
		if want := testInstances[i%len(testInstances)].Addr; inst.Addr != want {
			t.Fatalf("pick %d: expect %s, got %s", i, want, inst.Addr)
		}
	}
}

func TestEmpty(t *testing.T) {
	for _, name := range []string{"round_robin", "weighted_random", "consistent_hash"} {
		b, err := New(name)
		if err != nil {
			t.Fatal(err)
		}
		if _, err := b.Pick("k", nil); !errors.Is(err, ErrNoInstances) {
			t.Fatalf("%s: expect ErrNoInstances, got %v", b.Name(), err)
		}
	}
	if _, err := New("fastest"); err == nil {
		t.Fatal("expect error for unknown balancer")
	}
}

func TestWeightedRandom(t *testing.T) {
	b := &WeightedRandom{}
	counts := map[string]int{}
	for i := 0; i < 10000; i++ {
		inst, err := b.Pick("", testInstances)
		if err != nil {
			t.Fatal(err)
		}
		counts[inst.Addr]++
	}
	// 10:5:10, so :8001 should be picked about twice as often as :8002
	ratio := float64(counts[":8001"]) / float64(counts[":8002"])
	if ratio < 1.5 || ratio > 2.5 {
		t.Fatalf("weight ratio :8001/:8002 = %.2f, expect ~2.0", ratio)
	}
}

func TestWeightedRandomZeroWeights(t *testing.T) {
	b := &WeightedRandom{}
	if _, err := b.Pick("", []Instance{{Addr: ":1"}, {Addr: ":2"}}); err != nil {
		t.Fatalf("zero weights must still pick: %v", err)
	}
}

func TestConsistentHash(t *testing.T) {
	b := NewConsistentHash(DefaultReplicas)

	first, _ := b.Pick("Player.hasState", testInstances)
	again, _ := b.Pick("Player.hasState", testInstances)
	if first.Addr != again.Addr {
		t.Fatalf("same key mapped to different instances: %s vs %s", first.Addr, again.Addr)
	}

	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		inst, _ := b.Pick(fmt.Sprintf("key-%d", i), testInstances)
		seen[inst.Addr] = true
	}
	if len(seen) < 2 {
		t.Fatalf("expect at least 2 different instances, got %d", len(seen))
	}
}

func TestConsistentHashRebuildsOnChange(t *testing.T) {
	b := NewConsistentHash(DefaultReplicas)
	picked, _ := b.Pick("Player.hasState", testInstances)

	var rest []Instance
	for _, inst := range testInstances {
		if inst.Addr != picked.Addr {
			rest = append(rest, inst)
		}
	}
	moved, err := b.Pick("Player.hasState", rest)
	if err != nil {
		t.Fatal(err)
	}
	if moved.Addr == picked.Addr {
		t.Fatalf("removed instance %s still picked", picked.Addr)
	}
}
