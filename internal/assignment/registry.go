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

package assignment

import (
	"context"
	"fmt"
	"time"

	"github.com/fleetsync/fleetsync/internal/audit"
	"github.com/fleetsync/fleetsync/internal/kvstore"
	"github.com/fleetsync/fleetsync/internal/roster"
)

// Registry provides assignment management business logic. All multi-step
// updates are read-modify-write against whole-value snapshots; there are no
// transactions in the backing store, so concurrent writers are survived by
// the reconciliation merge policy rather than locking.
type Registry struct {
	store       kvstore.Store
	directory   roster.Directory
	auditLogger audit.Logger
}

// NewRegistry creates a new assignment registry.
func NewRegistry(store kvstore.Store, directory roster.Directory, auditLogger audit.Logger) *Registry {
	return &Registry{
		store:       store,
		directory:   directory,
		auditLogger: auditLogger,
	}
}

// Add binds a student to an operator within a tenant. Adding a student who
// is already bound to the same operator is a no-op success; a binding to a
// different operator is rejected with ErrConflict and nothing is mutated.
func (r *Registry) Add(ctx context.Context, tenantID, studentID, operatorID string) (*Assignment, error) {
	if tenantID == "" || studentID == "" || operatorID == "" {
		return nil, fmt.Errorf("tenant, student and operator ids are required")
	}

	list := kvstore.GetOr(ctx, r.store, tenantKey(tenantID), []Assignment(nil))
	for i := range list {
		if list[i].StudentID != studentID {
			continue
		}
		if list[i].OperatorID == operatorID {
			existing := list[i]
			return &existing, nil
		}
		return nil, ErrConflict
	}

	op, err := r.directory.Operator(ctx, tenantID, operatorID)
	if err != nil {
		return nil, fmt.Errorf("resolve operator %s: %w", operatorID, err)
	}
	student, err := r.directory.Student(ctx, tenantID, studentID)
	if err != nil {
		return nil, fmt.Errorf("resolve student %s: %w", studentID, err)
	}

	a := Assignment{
		TenantID:       tenantID,
		StudentID:      studentID,
		OperatorID:     operatorID,
		VehicleID:      op.VehicleID,
		StudentName:    student.Name,
		Class:          student.Class,
		Section:        student.Section,
		Roll:           student.Roll,
		AssignedAt:     time.Now(),
		TrackingStatus: StatusActive,
	}

	list = append(list, a)
	if err := r.store.Set(ctx, tenantKey(tenantID), list); err != nil {
		return nil, fmt.Errorf("write tenant assignments: %w", err)
	}
	// Mirror into the global index right away; the periodic reconcile pass
	// would pick it up anyway, this just shortens viewer lookup latency.
	// Failure here is surfaced without rolling back the tenant write.
	if err := r.upsertIndexEntry(ctx, a); err != nil {
		return nil, err
	}

	r.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeAssignmentAdded,
		TenantID: tenantID,
		ActorID:  operatorID,
		Resource: studentID,
		Metadata: map[string]any{"vehicle_id": op.VehicleID},
	})

	return &a, nil
}

// Remove deletes a student's assignment from the tenant list and the global
// index. Absence is not an error: removal is idempotent.
func (r *Registry) Remove(ctx context.Context, tenantID, studentID string) error {
	list := kvstore.GetOr(ctx, r.store, tenantKey(tenantID), []Assignment(nil))
	kept := list[:0]
	removed := false
	for _, a := range list {
		if a.StudentID == studentID {
			removed = true
			continue
		}
		kept = append(kept, a)
	}
	if removed {
		if err := r.store.Set(ctx, tenantKey(tenantID), kept); err != nil {
			return fmt.Errorf("write tenant assignments: %w", err)
		}
	}

	index := kvstore.GetOr(ctx, r.store, globalIndexKey, map[string]Assignment{})
	if _, ok := index[IndexKey(tenantID, studentID)]; ok {
		delete(index, IndexKey(tenantID, studentID))
		if err := r.store.Set(ctx, globalIndexKey, index); err != nil {
			return fmt.Errorf("write global index: %w", err)
		}
	}

	if removed {
		r.auditLogger.Log(ctx, audit.Event{
			Type:     audit.TypeAssignmentRemoved,
			TenantID: tenantID,
			Resource: studentID,
		})
	}
	return nil
}

// Get returns a student's assignment within a tenant.
func (r *Registry) Get(ctx context.Context, tenantID, studentID string) (*Assignment, error) {
	list := kvstore.GetOr(ctx, r.store, tenantKey(tenantID), []Assignment(nil))
	for i := range list {
		if list[i].StudentID == studentID {
			a := list[i]
			return &a, nil
		}
	}
	return nil, ErrNotFound
}

// ListByOperator returns every assignment bound to an operator in a tenant.
func (r *Registry) ListByOperator(ctx context.Context, tenantID, operatorID string) []Assignment {
	list := kvstore.GetOr(ctx, r.store, tenantKey(tenantID), []Assignment(nil))
	var out []Assignment
	for _, a := range list {
		if a.OperatorID == operatorID {
			out = append(out, a)
		}
	}
	return out
}

// Locate finds a student's assignment in the global index without knowing
// the tenant. Returns ErrNotFound when the student is not indexed yet.
func (r *Registry) Locate(ctx context.Context, studentID string) (*Assignment, error) {
	index := kvstore.GetOr(ctx, r.store, globalIndexKey, map[string]Assignment{})
	for _, a := range index {
		if a.StudentID == studentID {
			found := a
			return &found, nil
		}
	}
	return nil, ErrNotFound
}

// SetTrackingStatus moves a student's boarding status. Every transition is
// legal from any current state. Entering reached_home stamps ReachedHomeAt;
// returning to active or absent deliberately leaves an earlier stamp in
// place (the stamp records the day's arrival, not the current state).
func (r *Registry) SetTrackingStatus(ctx context.Context, tenantID, studentID string, status Status) (*Assignment, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}

	list := kvstore.GetOr(ctx, r.store, tenantKey(tenantID), []Assignment(nil))
	idx := -1
	for i := range list {
		if list[i].StudentID == studentID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrNotFound
	}

	list[idx].TrackingStatus = status
	if status == StatusReachedHome {
		now := time.Now()
		list[idx].ReachedHomeAt = &now
	}
	updated := list[idx]

	if err := r.store.Set(ctx, tenantKey(tenantID), list); err != nil {
		return nil, fmt.Errorf("write tenant assignments: %w", err)
	}
	if err := r.upsertIndexEntry(ctx, updated); err != nil {
		return nil, err
	}

	r.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeStatusChanged,
		TenantID: tenantID,
		ActorID:  updated.OperatorID,
		Resource: studentID,
		Metadata: map[string]any{"status": string(status)},
	})

	return &updated, nil
}

// ReconcileGlobalIndex folds every tenant's assignment list into the global
// index. Display attributes are overwritten from the tenant record
// (last-writer-wins); TrackingStatus and ReachedHomeAt are preserved from an
// existing index entry so a routine denormalization pass never reverts a
// status written directly against the index by a concurrent session.
// Idempotent and lock-free: safe to invoke repeatedly and concurrently.
func (r *Registry) ReconcileGlobalIndex(ctx context.Context) error {
	keys, err := r.store.Keys(ctx, "assignments/")
	if err != nil {
		return fmt.Errorf("list tenant assignment keys: %w", err)
	}

	index := kvstore.GetOr(ctx, r.store, globalIndexKey, map[string]Assignment{})
	merged := 0
	for _, key := range keys {
		list := kvstore.GetOr(ctx, r.store, key, []Assignment(nil))
		for _, a := range list {
			entry := a
			if existing, ok := index[a.IndexKey()]; ok {
				entry.TrackingStatus = existing.TrackingStatus
				entry.ReachedHomeAt = existing.ReachedHomeAt
			}
			index[a.IndexKey()] = entry
			merged++
		}
	}

	if err := r.store.Set(ctx, globalIndexKey, index); err != nil {
		return fmt.Errorf("write global index: %w", err)
	}

	r.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeIndexReconciled,
		Metadata: map[string]any{"entries": merged, "tenants": len(keys)},
	})
	return nil
}

func (r *Registry) upsertIndexEntry(ctx context.Context, a Assignment) error {
	index := kvstore.GetOr(ctx, r.store, globalIndexKey, map[string]Assignment{})
	index[a.IndexKey()] = a
	if err := r.store.Set(ctx, globalIndexKey, index); err != nil {
		return fmt.Errorf("write global index: %w", err)
	}
	return nil
}
