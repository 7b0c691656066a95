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

// Package location is the live position channel: one sample per
// (tenant, operator), whole-value replaced on publish and deleted on stop.
// Presence of the sample is the sole liveness signal; there is no TTL and
// no separate stale state, so viewers can tell "not tracking" from "about
// to refresh".
package location

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrOperatorSuspended  = errors.New("operator is suspended")
	ErrInvalidCoordinates = errors.New("coordinates out of range")
)

// Sample is one live position report. Accuracy is the client-reported GPS
// radius in meters, passed through untouched; classification is a display
// concern (see the geo package).
type Sample struct {
	TenantID   string    `json:"tenant_id"`
	OperatorID string    `json:"operator_id"`
	VehicleID  string    `json:"vehicle_id"`
	Lat        float64   `json:"lat"`
	Lng        float64   `json:"lng"`
	Accuracy   float64   `json:"accuracy,omitempty"`
	CapturedAt time.Time `json:"captured_at"`
}

// Key is the store key holding the single live sample for an operator.
func Key(tenantID, operatorID string) string {
	return fmt.Sprintf("locations/%s/%s", tenantID, operatorID)
}
