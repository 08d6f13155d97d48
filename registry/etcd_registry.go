// Package registry advertises and discovers automation service endpoints.
//
// EtcdRegistry keeps one key per running service instance:
//
//	Key:   /wcf-rpc/{service}/{host:port}
//	Value: JSON-encoded Instance
//
// Registration uses TTL-based leases: if the host dies, the lease expires
// and the entry is removed, so clients never discover a ghost instance.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"

	"wcf-rpc-sdk/address"
)

const keyPrefix = "/wcf-rpc/"

// EtcdRegistry implements Registry using etcd v3.
type EtcdRegistry struct {
	client *clientv3.Client // Thread-safe, shared across goroutines
	logger *zap.Logger

	mu     sync.Mutex
	leases map[string]clientv3.LeaseID // Key → lease of instances registered by this process
}

// NewEtcdRegistry creates a registry connected to the given etcd endpoints.
// A nil logger disables logging, including the etcd client's own.
func NewEtcdRegistry(endpoints []string, logger *zap.Logger) (*EtcdRegistry, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	c, err := clientv3.New(clientv3.Config{
		Endpoints:   endpoints,
		DialTimeout: 5 * time.Second,
		Logger:      logger.Named("etcd"),
	})
	if err != nil {
		return nil, fmt.Errorf("registry: connect etcd: %w", err)
	}
	return &EtcdRegistry{
		client: c,
		logger: logger,
		leases: make(map[string]clientv3.LeaseID),
	}, nil
}

func instanceKey(service string, ep address.Endpoint) string {
	return keyPrefix + service + "/" + ep.HostPort()
}

// Register advertises instance under service with a TTL lease (seconds).
//
// Flow:
//  1. Create a lease with the given TTL
//  2. Put the key-value pair with the lease attached
//  3. Start KeepAlive to renew the lease until Deregister or Close
//
// ctx bounds the grant and the put only; the renewal outlives it.
func (r *EtcdRegistry) Register(ctx context.Context, service string, instance Instance, ttl int64) error {
	ep, err := instance.Endpoint()
	if err != nil {
		return err
	}
	val, err := json.Marshal(instance)
	if err != nil {
		return err
	}

	lease, err := r.client.Grant(ctx, ttl)
	if err != nil {
		return fmt.Errorf("registry: grant lease: %w", err)
	}

	key := instanceKey(service, ep)
	if _, err := r.client.Put(ctx, key, string(val), clientv3.WithLease(lease.ID)); err != nil {
		return fmt.Errorf("registry: put %s: %w", key, err)
	}

	ch, err := r.client.KeepAlive(context.WithoutCancel(ctx), lease.ID)
	if err != nil {
		return fmt.Errorf("registry: keep alive %s: %w", key, err)
	}
	// Drain KeepAlive responses so the channel never fills up.
	go func() {
		for range ch {
		}
		r.logger.Debug("lease renewal stopped", zap.String("key", key))
	}()

	r.mu.Lock()
	r.leases[key] = lease.ID
	r.mu.Unlock()

	r.logger.Info("instance registered",
		zap.String("key", key),
		zap.String("account", instance.Account),
		zap.Int64("ttl", ttl))
	return nil
}

// Deregister removes the instance at ep and revokes its lease if this
// process registered it.
func (r *EtcdRegistry) Deregister(ctx context.Context, service string, ep address.Endpoint) error {
	key := instanceKey(service, ep)
	if _, err := r.client.Delete(ctx, key); err != nil {
		return fmt.Errorf("registry: delete %s: %w", key, err)
	}

	r.mu.Lock()
	id, ok := r.leases[key]
	delete(r.leases, key)
	r.mu.Unlock()

	if ok {
		if _, err := r.client.Revoke(ctx, id); err != nil {
			return fmt.Errorf("registry: revoke lease of %s: %w", key, err)
		}
	}
	r.logger.Info("instance deregistered", zap.String("key", key))
	return nil
}

// Discover returns every instance currently registered under service, in
// key order.
func (r *EtcdRegistry) Discover(ctx context.Context, service string) ([]Instance, error) {
	prefix := keyPrefix + service + "/"
	resp, err := r.client.Get(ctx, prefix, clientv3.WithPrefix(), clientv3.WithSort(clientv3.SortByKey, clientv3.SortAscend))
	if err != nil {
		return nil, fmt.Errorf("registry: list %s: %w", prefix, err)
	}

	instances := make([]Instance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		var instance Instance
		if err := json.Unmarshal(kv.Value, &instance); err != nil {
			r.logger.Warn("skipping malformed registry entry", zap.ByteString("key", kv.Key), zap.Error(err))
			continue
		}
		instances = append(instances, instance)
	}
	return instances, nil
}

// Close stops lease renewal and disconnects. Registered keys expire with
// their leases.
func (r *EtcdRegistry) Close() error {
	return r.client.Close()
}
