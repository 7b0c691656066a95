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
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/fleetsync/fleetsync/internal/audit"
	"github.com/fleetsync/fleetsync/internal/kvstore"
	"github.com/fleetsync/fleetsync/internal/roster"
)

// Channel publishes and observes live position samples through the
// key-value store's change feed. There is no push transport: subscribers
// poll and diff, so delivery offers no ordering beyond "last observed write
// wins" and intermediate samples between polls may be skipped.
type Channel struct {
	store       kvstore.Store
	feed        *kvstore.Feed
	directory   roster.Directory
	auditLogger audit.Logger
}

// NewChannel creates a location channel.
func NewChannel(store kvstore.Store, feed *kvstore.Feed, directory roster.Directory, auditLogger audit.Logger) *Channel {
	return &Channel{
		store:       store,
		feed:        feed,
		directory:   directory,
		auditLogger: auditLogger,
	}
}

// Publish upserts the one live sample for (tenant, operator), fully
// replacing any prior value. Suspended operators may not publish.
func (c *Channel) Publish(ctx context.Context, s Sample) error {
	if s.TenantID == "" || s.OperatorID == "" {
		return fmt.Errorf("tenant and operator ids are required")
	}
	if s.Lat < -90 || s.Lat > 90 || s.Lng < -180 || s.Lng > 180 {
		return fmt.Errorf("%w: (%f, %f)", ErrInvalidCoordinates, s.Lat, s.Lng)
	}

	op, err := c.directory.Operator(ctx, s.TenantID, s.OperatorID)
	if err != nil {
		return fmt.Errorf("resolve operator %s: %w", s.OperatorID, err)
	}
	if op.Suspended() {
		return ErrOperatorSuspended
	}
	if s.VehicleID == "" {
		s.VehicleID = op.VehicleID
	}
	if s.CapturedAt.IsZero() {
		s.CapturedAt = time.Now()
	}

	if err := c.store.Set(ctx, Key(s.TenantID, s.OperatorID), s); err != nil {
		return fmt.Errorf("publish sample: %w", err)
	}
	return nil
}

// Stop deletes the operator's live sample. Deletion, not absence of
// refresh, is what tells subscribers that tracking ended.
func (c *Channel) Stop(ctx context.Context, tenantID, operatorID string) error {
	if err := c.store.Delete(ctx, Key(tenantID, operatorID)); err != nil {
		return fmt.Errorf("stop publishing: %w", err)
	}
	c.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeTrackingStopped,
		TenantID: tenantID,
		ActorID:  operatorID,
	})
	return nil
}

// Current reads the live sample, if any.
func (c *Channel) Current(ctx context.Context, tenantID, operatorID string) (*Sample, bool, error) {
	var s Sample
	found, err := c.store.Get(ctx, Key(tenantID, operatorID), &s)
	if err != nil || !found {
		return nil, false, err
	}
	return &s, true, nil
}

// Subscribe watches the operator's sample. onChange receives the new sample
// or nil when the sample is absent (tracking stopped or never started).
// The returned subscription must be unsubscribed to stop the poller.
func (c *Channel) Subscribe(ctx context.Context, tenantID, operatorID string, onChange func(*Sample)) *kvstore.Subscription {
	return c.feed.Subscribe(ctx, Key(tenantID, operatorID), func(snap kvstore.Snapshot) {
		if !snap.Present {
			onChange(nil)
			return
		}
		var s Sample
		if err := json.Unmarshal(snap.Value, &s); err != nil {
			slog.WarnContext(ctx, "malformed location sample",
				slog.String("tenant_id", tenantID),
				slog.String("operator_id", operatorID),
				slog.String("error", err.Error()))
			return
		}
		onChange(&s)
	})
}
