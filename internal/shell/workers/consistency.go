// Package workers contains background maintenance loops.
package workers

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/fleetyard/dispatch/internal/core/domain"
	"github.com/fleetyard/dispatch/internal/shell/store"
)

// ConsistencyCheckerConfig configures the consistency checker worker.
type ConsistencyCheckerConfig struct {
	Interval time.Duration
}

// DefaultConsistencyCheckerConfig returns default configuration.
func DefaultConsistencyCheckerConfig() ConsistencyCheckerConfig {
	return ConsistencyCheckerConfig{
		Interval: 60 * time.Second,
	}
}

// ConsistencyChecker periodically compares the set of resources marked
// deployed against the resources active deployments actually reference,
// and logs any drift. Drift can appear if the process dies between the
// deployment write and the matching resource release.
type ConsistencyChecker struct {
	store  store.Store
	config ConsistencyCheckerConfig
	logger *slog.Logger
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewConsistencyChecker creates a new consistency checker.
func NewConsistencyChecker(s store.Store, config ConsistencyCheckerConfig, logger *slog.Logger) *ConsistencyChecker {
	if config.Interval == 0 {
		config.Interval = 60 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ConsistencyChecker{
		store:  s,
		config: config,
		logger: logger.With("component", "consistency_checker"),
	}
}

// Start begins the checker background goroutine.
func (c *ConsistencyChecker) Start() {
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.wg.Add(1)
	go c.run()
	c.logger.Info("consistency checker started", "interval", c.config.Interval)
}

// Stop gracefully stops the checker.
func (c *ConsistencyChecker) Stop() {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	c.logger.Info("consistency checker stopped")
}

func (c *ConsistencyChecker) run() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.RunCycle(c.ctx)
		}
	}
}

// RunCycle performs one consistency pass. Exported so a cycle can be
// triggered directly in tests and tooling.
func (c *ConsistencyChecker) RunCycle(ctx context.Context) {
	active, err := c.store.ListActiveDeployments(ctx)
	if err != nil {
		c.logger.Error("failed to list active deployments", "error", err)
		return
	}

	expectedTrucks := make(map[string]string, len(active))
	expectedDrivers := make(map[string]string, len(active))
	for i := range active {
		d := &active[i]
		expectedTrucks[d.ActiveTruckID()] = d.ID
		expectedDrivers[d.ActiveDriverID()] = d.ID
	}

	c.checkKind(ctx, domain.KindTruck, expectedTrucks)
	c.checkKind(ctx, domain.KindDriver, expectedDrivers)
}

func (c *ConsistencyChecker) checkKind(ctx context.Context, kind domain.ResourceKind, expected map[string]string) {
	deployed, err := c.store.ListDeployedResourceIDs(ctx, kind)
	if err != nil {
		c.logger.Error("failed to list deployed resources", "kind", string(kind), "error", err)
		return
	}

	deployedSet := make(map[string]bool, len(deployed))
	for _, id := range deployed {
		deployedSet[id] = true
		if _, ok := expected[id]; !ok {
			c.logger.Error("resource marked deployed but no active deployment references it",
				"kind", string(kind), "id", id)
		}
	}

	for id, deploymentID := range expected {
		if !deployedSet[id] {
			c.logger.Error("active deployment references a resource not marked deployed",
				"kind", string(kind), "id", id, "deployment_id", deploymentID)
		}
	}
}
