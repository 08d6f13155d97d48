package registry

import (
	"context"

	"wcf-rpc-sdk/address"
)

// Instance is one running automation service as advertised in the registry.
type Instance struct {
	Address string `json:"address"`           // tcp://host:port of the RPC socket
	Account string `json:"account,omitempty"` // wxid logged in on that service, if known
	Weight  int    `json:"weight,omitempty"`  // Weight for load balancing
}

// Endpoint parses the instance address.
func (i Instance) Endpoint() (address.Endpoint, error) {
	return address.Parse(i.Address)
}

type Registry interface {
	Register(ctx context.Context, service string, instance Instance, ttl int64) error
	Deregister(ctx context.Context, service string, ep address.Endpoint) error
	Discover(ctx context.Context, service string) ([]Instance, error)
}
