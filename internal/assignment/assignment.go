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

// Package assignment owns tenant-scoped student-to-operator bindings, the
// derived cross-tenant global index, and the per-student daily boarding
// status lifecycle.
package assignment

import (
	"errors"
	"fmt"
	"time"
)

// Domain errors
var (
	ErrConflict      = errors.New("student already assigned to a different operator")
	ErrNotFound      = errors.New("assignment not found")
	ErrInvalidStatus = errors.New("invalid tracking status")
)

// Status is a student's per-day boarding state. Transitions are
// operator-driven and unconditionally legal in any direction: the physical
// event (boarding, alighting) is attested by a human, not inferred, so there
// is no guard beyond "an assignment must exist". There is no automatic daily
// reset either; see DESIGN.md.
type Status string

const (
	StatusActive      Status = "active"
	StatusReachedHome Status = "reached_home"
	StatusAbsent      Status = "absent"
)

// Valid reports whether s is a known tracking status.
func (s Status) Valid() bool {
	switch s {
	case StatusActive, StatusReachedHome, StatusAbsent:
		return true
	}
	return false
}

// Assignment binds one student to one operator/vehicle within a tenant.
// Display fields are denormalized from the roster so the global index can be
// read without tenant knowledge. Within one tenant a student has at most one
// assignment; the assignment's operator is authoritative for updates.
type Assignment struct {
	TenantID   string `json:"tenant_id"`
	StudentID  string `json:"student_id"`
	OperatorID string `json:"operator_id"`
	VehicleID  string `json:"vehicle_id"`

	StudentName string `json:"student_name"`
	Class       string `json:"class"`
	Section     string `json:"section"`
	Roll        string `json:"roll"`

	AssignedAt     time.Time  `json:"assigned_at"`
	TrackingStatus Status     `json:"tracking_status"`
	ReachedHomeAt  *time.Time `json:"reached_home_at,omitempty"`
}

// IndexKey identifies this assignment in the global index.
func (a *Assignment) IndexKey() string {
	return IndexKey(a.TenantID, a.StudentID)
}

// IndexKey builds the (tenant, student) key used by the global index.
func IndexKey(tenantID, studentID string) string {
	return tenantID + "/" + studentID
}

// Store keys. The tenant list holds a whole-value JSON array; the global
// index holds a single flattened map across all tenants.
const globalIndexKey = "assignments_index"

func tenantKey(tenantID string) string {
	return fmt.Sprintf("assignments/%s", tenantID)
}
