package orchestrator

import (
	"context"
	"fmt"

	"github.com/fleetyard/dispatch/internal/core/auth"
	"github.com/fleetyard/dispatch/internal/core/domain"
	"github.com/fleetyard/dispatch/internal/core/lifecycle"
	"github.com/fleetyard/dispatch/internal/shell/store"
)

// applyReplacement executes a mid-run substitution: the replacement plan
// decides which resource ids actually changed, the registry swaps each one
// (new acquired before old released), and the resulting record is set on
// the deployment. Submitting the same replacement id again only edits the
// descriptive sub-fields and performs no swap. Swaps only touch the
// registry while the deployment is active; a canceled deployment holds no
// resources.
func (o *Orchestrator) applyReplacement(ctx context.Context, actor auth.Context, d *domain.Deployment, in lifecycle.ReplacementInput) error {
	plan := lifecycle.PlanReplacement(d, in)
	active := d.IsActive()

	if plan.TruckSwap != nil {
		oldTruck, err := o.store.GetTruck(ctx, plan.TruckSwap.OldID)
		if err != nil {
			return err
		}
		newTruck, err := o.store.GetTruck(ctx, plan.TruckSwap.NewID)
		if err != nil {
			return err
		}

		if active {
			if err := o.registry.Swap(ctx, domain.KindTruck, plan.TruckSwap.OldID, plan.TruckSwap.NewID); err != nil {
				if store.IsUnavailable(err) {
					return fmt.Errorf("%w: %v", domain.ErrResourceUnavailable, err)
				}
				return err
			}
		}

		reason := ""
		if plan.Next != nil {
			reason = plan.Next.Reason
		}
		o.audit.TruckReplaced(ctx, actor, d, oldTruck, newTruck, reason)
	}

	if plan.DriverSwap != nil {
		oldDriver, err := o.store.GetDriver(ctx, plan.DriverSwap.OldID)
		if err != nil {
			return err
		}
		newDriver, err := o.store.GetDriver(ctx, plan.DriverSwap.NewID)
		if err != nil {
			return err
		}

		if active {
			if err := o.registry.Swap(ctx, domain.KindDriver, plan.DriverSwap.OldID, plan.DriverSwap.NewID); err != nil {
				if store.IsUnavailable(err) {
					return fmt.Errorf("%w: %v", domain.ErrResourceUnavailable, err)
				}
				return err
			}
		}

		reason := ""
		if plan.Next != nil {
			reason = plan.Next.Reason
		}
		o.audit.DriverReplaced(ctx, actor, d, oldDriver, newDriver, reason)
	}

	d.Replacement = plan.Next
	return nil
}
