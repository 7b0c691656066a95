// Copyright 2026 The FleetSync Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package location

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/fleetsync/fleetsync/internal/audit"
)

// Tracker runs the continuous publishing loop for one operator: acquire a
// fix, publish, sleep, repeat. Cancelling the context stops the loop AND
// deletes the last published sample, so subscribers observe absence rather
// than a frozen position.
type Tracker struct {
	channel     *Channel
	provider    Provider
	interval    time.Duration
	auditLogger audit.Logger
}

// NewTracker creates a tracker publishing on the given interval.
func NewTracker(channel *Channel, provider Provider, interval time.Duration, auditLogger audit.Logger) *Tracker {
	if interval <= 0 {
		interval = 15 * time.Second
	}
	return &Tracker{
		channel:     channel,
		provider:    provider,
		interval:    interval,
		auditLogger: auditLogger,
	}
}

// Track publishes until ctx is cancelled. The first acquisition failing
// with permission denial aborts immediately; transient failures mid-loop
// are logged and the loop keeps going, leaving the previous sample live
// until the next successful fix.
func (t *Tracker) Track(ctx context.Context, tenantID, operatorID string) error {
	if err := t.publishOnce(ctx, tenantID, operatorID); err != nil {
		return err
	}

	t.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTrackingStarted,
		TenantID: tenantID,
		ActorID:  operatorID,
	})

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return t.cleanup(ctx, tenantID, operatorID)
		case <-ticker.C:
			err := t.publishOnce(ctx, tenantID, operatorID)
			if err == nil {
				continue
			}
			var gerr *GeoError
			if errors.As(err, &gerr) && gerr.Permanent() {
				if cerr := t.cleanup(ctx, tenantID, operatorID); cerr != nil {
					slog.ErrorContext(ctx, "tracking cleanup failed", slog.String("error", cerr.Error()))
				}
				return err
			}
			slog.WarnContext(ctx, "position publish failed",
				slog.String("tenant_id", tenantID),
				slog.String("operator_id", operatorID),
				slog.String("error", err.Error()))
		}
	}
}

func (t *Tracker) publishOnce(ctx context.Context, tenantID, operatorID string) error {
	pos, err := Acquire(ctx, t.provider)
	if err != nil {
		return err
	}
	return t.channel.Publish(ctx, Sample{
		TenantID:   tenantID,
		OperatorID: operatorID,
		Lat:        pos.Lat,
		Lng:        pos.Lng,
		Accuracy:   pos.Accuracy,
		CapturedAt: time.Now(),
	})
}

// cleanup deletes the live sample even though the tracking context is
// already cancelled.
func (t *Tracker) cleanup(ctx context.Context, tenantID, operatorID string) error {
	stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	return t.channel.Stop(stopCtx, tenantID, operatorID)
}
