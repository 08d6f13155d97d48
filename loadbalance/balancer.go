// Package loadbalance chooses which discovered automation service a client
// connects to.
//
// A client talks to exactly one service for its whole life, so a balancer is
// consulted once, at New, over the instances the registry returned:
//   - First:          Deterministic; the first instance in registry order
//   - RoundRobin:     Spreads successive clients across instances
//   - WeightedRandom: Heterogeneous hosts (different capacity)
//   - Account:        The instance logged in as a given wxid
package loadbalance

import (
	"errors"

	"wcf-rpc-sdk/registry"
)

var (
	ErrNoInstances = errors.New("no instances available")
	ErrNoAccount   = errors.New("no instance for account")
)

// Balancer is the interface for instance selection strategies.
type Balancer interface {
	// Pick selects one instance from the available list.
	// Must be goroutine-safe: several clients may share one balancer.
	Pick(instances []registry.Instance) (*registry.Instance, error)

	// Name returns the strategy name (for logging/debugging).
	Name() string
}

// First always picks the first instance.
type First struct{}

func (First) Pick(instances []registry.Instance) (*registry.Instance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}
	return &instances[0], nil
}

func (First) Name() string {
	return "First"
}
