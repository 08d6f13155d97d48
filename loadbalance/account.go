package loadbalance

import (
	"fmt"

	"wcf-rpc-sdk/registry"
)

// AccountBalancer picks the instance logged in as Account. Several services
// behind one registry usually run different accounts; this pins a client to
// the one it means to drive.
type AccountBalancer struct {
	Account string
}

func (b AccountBalancer) Pick(instances []registry.Instance) (*registry.Instance, error) {
	if len(instances) == 0 {
		return nil, ErrNoInstances
	}
	for i := range instances {
		if instances[i].Account == b.Account {
			return &instances[i], nil
		}
	}
	return nil, fmt.Errorf("%w %q", ErrNoAccount, b.Account)
}

func (b AccountBalancer) Name() string {
	return "Account"
}
