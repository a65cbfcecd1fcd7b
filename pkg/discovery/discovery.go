// Package discovery registers service instances in etcd under leased keys so that they
// disappear when a process dies without deregistering.
package discovery

import (
	"context"
	"fmt"

	"github.com/example/articleshop/pkg/config"
	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
)

type ServiceDiscovery struct {
	client *clientv3.Client
	config *config.EtcdConfig
	logger *zap.Logger
}

type ServiceInstance struct {
	Name string
	Host string
	Port int
	// Addr is host:port as stored in etcd. Set on discovered instances.
	Addr string
}

func (i *ServiceInstance) address() string {
	return fmt.Sprintf("%s:%d", i.Host, i.Port)
}

// Registration is a live registration. Deregister revokes its lease.
type Registration struct {
	sd      *ServiceDiscovery
	key     string
	leaseID clientv3.LeaseID
	cancel  context.CancelFunc
}

func NewServiceDiscovery(cfg *config.EtcdConfig, logger *zap.Logger) (*ServiceDiscovery, error) {
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   cfg.Endpoints,
		DialTimeout: cfg.DialTimeout,
		Logger:      logger.Named("etcd"),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to etcd: %w", err)
	}

	return &ServiceDiscovery{
		client: cli,
		config: cfg,
		logger: logger,
	}, nil
}

func (sd *ServiceDiscovery) key(name, addr string) string {
	return fmt.Sprintf("%s%s/%s", sd.config.Prefix, name, addr)
}

func (sd *ServiceDiscovery) Register(ctx context.Context, instance *ServiceInstance) (*Registration, error) {
	addr := instance.address()
	key := sd.key(instance.Name, addr)

	ttl := sd.config.LeaseTTL
	if ttl <= 0 {
		ttl = 30
	}
	lease, err := sd.client.Grant(ctx, ttl)
	if err != nil {
		return nil, fmt.Errorf("failed to create lease: %w", err)
	}

	if _, err := sd.client.Put(ctx, key, addr, clientv3.WithLease(lease.ID)); err != nil {
		return nil, fmt.Errorf("failed to register service: %w", err)
	}

	// The keep-alive outlives the registration call, so it gets its own context.
	kaCtx, cancel := context.WithCancel(context.Background())
	ch, err := sd.client.KeepAlive(kaCtx, lease.ID)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to keep alive: %w", err)
	}

	go func() {
		for range ch {
		}
		sd.logger.Info("Lease keep-alive ended", zap.String("key", key))
	}()

	sd.logger.Info("Service registered", zap.String("key", key), zap.Int64("ttl", ttl))
	return &Registration{sd: sd, key: key, leaseID: lease.ID, cancel: cancel}, nil
}

func (sd *ServiceDiscovery) Discover(ctx context.Context, serviceName string) ([]*ServiceInstance, error) {
	prefix := fmt.Sprintf("%s%s/", sd.config.Prefix, serviceName)

	resp, err := sd.client.Get(ctx, prefix, clientv3.WithPrefix())
	if err != nil {
		return nil, fmt.Errorf("failed to discover service: %w", err)
	}

	instances := make([]*ServiceInstance, 0, len(resp.Kvs))
	for _, kv := range resp.Kvs {
		instances = append(instances, &ServiceInstance{
			Name: serviceName,
			Addr: string(kv.Value),
		})
	}
	return instances, nil
}

func (r *Registration) Deregister(ctx context.Context) error {
	defer r.cancel()
	if _, err := r.sd.client.Revoke(ctx, r.leaseID); err != nil {
		return fmt.Errorf("failed to deregister service: %w", err)
	}
	r.sd.logger.Info("Service deregistered", zap.String("key", r.key))
	return nil
}

func (sd *ServiceDiscovery) Close() error {
	return sd.client.Close()
}
