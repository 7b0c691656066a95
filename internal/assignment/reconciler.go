package assignment

import (
	"context"
	"log/slog"
	"time"
)

// Reconciler periodically folds tenant assignment lists into the global
// index. Multiple operator sessions may each run one; the merge policy makes
// overlapping passes harmless.
type Reconciler struct {
	registry *Registry
	interval time.Duration
}

// NewReconciler creates a reconciler running at the given interval.
func NewReconciler(registry *Registry, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Reconciler{registry: registry, interval: interval}
}

// Run reconciles once immediately and then on every tick until ctx is
// cancelled. Errors are logged and do not stop the loop.
func (r *Reconciler) Run(ctx context.Context) {
	if err := r.registry.ReconcileGlobalIndex(ctx); err != nil {
		slog.ErrorContext(ctx, "global index reconcile failed", slog.String("error", err.Error()))
	}

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := r.registry.ReconcileGlobalIndex(ctx); err != nil {
				slog.ErrorContext(ctx, "global index reconcile failed", slog.String("error", err.Error()))
			}
		}
	}
}
