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

// Package system exercises the assignment registry and the background
// reconciler together, the way they run in the server process: multiple
// tenant sessions mutating assignment lists while the reconciler folds
// them into the global index.
package system

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetsync/fleetsync/internal/assignment"
	"github.com/fleetsync/fleetsync/internal/audit"
	"github.com/fleetsync/fleetsync/internal/kvstore"
	"github.com/fleetsync/fleetsync/internal/roster"
)

func seedTenant(t *testing.T, d *roster.StoreDirectory, tenantID string, studentCount int) {
	t.Helper()
	students := make([]roster.Student, 0, studentCount)
	for i := 0; i < studentCount; i++ {
		students = append(students, roster.Student{
			ID:   fmt.Sprintf("s%d", i),
			Name: fmt.Sprintf("Student %d", i),
		})
	}
	operators := []roster.Operator{
		{ID: "op1", Name: "Ravi", VehicleID: "KA-01-1234", Status: roster.OperatorActive},
	}
	require.NoError(t, d.Seed(context.Background(), tenantID, students, operators))
}

// A reached_home stamp written before the churn starts must survive any
// number of reconcile passes running alongside assignment writers.
func TestReconcilerPreservesStatusUnderChurn(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()
	directory := roster.NewStoreDirectory(store)
	registry := assignment.NewRegistry(store, directory, audit.Noop{})

	tenants := []string{"north", "south", "east"}
	const studentsPerTenant = 10
	for _, tenant := range tenants {
		seedTenant(t, directory, tenant, studentsPerTenant)
	}

	_, err := registry.Add(ctx, "north", "s0", "op1")
	require.NoError(t, err)
	marked, err := registry.SetTrackingStatus(ctx, "north", "s0", assignment.StatusReachedHome)
	require.NoError(t, err)
	require.NotNil(t, marked.ReachedHomeAt)
	stamp := *marked.ReachedHomeAt

	reconcileCtx, stopReconciler := context.WithCancel(ctx)
	reconciler := assignment.NewReconciler(registry, 2*time.Millisecond)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		reconciler.Run(reconcileCtx)
	}()

	// Each tenant churns its own assignment list while the reconciler runs.
	// Student s0 in tenant north is left alone so its stamp has no competing
	// writer other than the reconciler itself.
	var writers sync.WaitGroup
	for _, tenant := range tenants {
		writers.Add(1)
		go func(tenant string) {
			defer writers.Done()
			for round := 0; round < 5; round++ {
				for i := 1; i < studentsPerTenant; i++ {
					studentID := fmt.Sprintf("s%d", i)
					if _, err := registry.Add(ctx, tenant, studentID, "op1"); err != nil {
						continue
					}
					if round%2 == 1 {
						_ = registry.Remove(ctx, tenant, studentID)
					}
				}
			}
		}(tenant)
	}
	writers.Wait()

	stopReconciler()
	wg.Wait()

	// A final pass after the writers stop converges the index with the
	// tenant lists.
	require.NoError(t, registry.ReconcileGlobalIndex(ctx))

	located, err := registry.Locate(ctx, "s0")
	require.NoError(t, err)
	assert.Equal(t, "north", located.TenantID)
	assert.Equal(t, assignment.StatusReachedHome, located.TrackingStatus)
	require.NotNil(t, located.ReachedHomeAt)
	assert.True(t, stamp.Equal(*located.ReachedHomeAt))

	// Every assignment still present in a tenant list is findable through
	// the global index with the right operator.
	for _, tenant := range tenants {
		for _, a := range registry.ListByOperator(ctx, tenant, "op1") {
			found, err := registry.Locate(ctx, a.StudentID)
			require.NoError(t, err)
			assert.Equal(t, "op1", found.OperatorID)
		}
	}
}

func TestReconcilerConvergesAfterDivergentWrite(t *testing.T) {
	ctx := context.Background()
	store := kvstore.NewMemory()
	directory := roster.NewStoreDirectory(store)
	registry := assignment.NewRegistry(store, directory, audit.Noop{})

	seedTenant(t, directory, "north", 2)

	_, err := registry.Add(ctx, "north", "s0", "op1")
	require.NoError(t, err)

	// Simulate a lost index write: the tenant list gains an assignment that
	// never made it into the global index.
	_, err = registry.Add(ctx, "north", "s1", "op1")
	require.NoError(t, err)
	index := map[string]assignment.Assignment{}
	found, err := store.Get(ctx, "assignments_index", &index)
	require.NoError(t, err)
	require.True(t, found)
	delete(index, "north/s1")
	require.NoError(t, store.Set(ctx, "assignments_index", index))

	_, err = registry.Locate(ctx, "s1")
	require.ErrorIs(t, err, assignment.ErrNotFound)

	require.NoError(t, registry.ReconcileGlobalIndex(ctx))

	located, err := registry.Locate(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, "north", located.TenantID)
	assert.Equal(t, assignment.StatusActive, located.TrackingStatus)
}
