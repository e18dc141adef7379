package monitoring

import (
	"context"
	"fmt"
	"time"

	"vlsnet/internal/core/ports"
)

// AddKeyValueCheck checks the store holding refresh tokens and lockout state.
func (h *HealthChecker) AddKeyValueCheck(store ports.KeyValueStore, interval, timeout time.Duration) {
	h.AddCheck("key_value_store", func(ctx context.Context) (bool, error) {
		if err := store.Ping(ctx); err != nil {
			return false, err
		}
		return true, nil
	}, interval, timeout)
}

// AddRepositoryCheck verifies the repositories (and Postgres when in use)
// answer.
func (h *HealthChecker) AddRepositoryCheck(repos interface {
	HealthCheck(ctx context.Context) error
}, interval, timeout time.Duration) {
	h.AddCheck("repository", func(ctx context.Context) (bool, error) {
		if err := repos.HealthCheck(ctx); err != nil {
			return false, err
		}
		return true, nil
	}, interval, timeout)
}

// AddChatCapacityCheck fails once the open connection count passes limit.
// A limit <= 0 disables the check.
func (h *HealthChecker) AddChatCapacityCheck(connections func() int, limit int, interval time.Duration) {
	if limit <= 0 {
		return
	}
	h.AddCheck("chat_capacity", func(ctx context.Context) (bool, error) {
		if n := connections(); n > limit {
			return false, fmt.Errorf("%d open chat connections, limit %d", n, limit)
		}
		return true, nil
	}, interval, time.Second)
}

// GetReadinessStatus returns readiness status for load balancer
func (h *HealthChecker) GetReadinessStatus(ctx context.Context) HealthStatus {
	return h.CheckAll(ctx)
}

// IsReady checks if the service is ready to accept traffic
func (h *HealthChecker) IsReady(ctx context.Context) bool {
	return h.CheckAll(ctx).Status == StatusHealthy
}
