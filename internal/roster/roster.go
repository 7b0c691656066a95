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

// Package roster exposes the externally-managed tenant rosters (students and
// vehicle operators) that the assignment registry denormalizes. The roster is
// read-only from this core's perspective; admin tooling elsewhere owns the
// writes.
package roster

import (
	"context"
	"errors"
)

var (
	ErrStudentNotFound  = errors.New("student not found")
	ErrOperatorNotFound = errors.New("operator not found")
)

// Operator status values.
const (
	OperatorActive    = "active"
	OperatorSuspended = "suspended"
)

// Student is a roster entry. Display fields only; identity is external.
type Student struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Class   string `json:"class"`
	Section string `json:"section"`
	Roll    string `json:"roll"`
}

// Operator is a vehicle-side account.
type Operator struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	VehicleID string `json:"vehicle_id"`
	Status    string `json:"status"`
}

// Suspended reports whether the operator may not publish or send.
func (o *Operator) Suspended() bool {
	return o.Status == OperatorSuspended
}

// Directory is the identity/roster collaborator contract.
type Directory interface {
	Student(ctx context.Context, tenantID, studentID string) (*Student, error)
	Operator(ctx context.Context, tenantID, operatorID string) (*Operator, error)
}
