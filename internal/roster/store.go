package roster

import (
	"context"
	"fmt"

	"github.com/fleetsync/fleetsync/internal/kvstore"
)

// StoreDirectory reads rosters from the shared key-value store, where the
// admin tooling maintains them. A missing roster reads as empty rather than
// erroring, per the degraded-availability policy for reads.
type StoreDirectory struct {
	store kvstore.Store
}

// NewStoreDirectory creates a Directory backed by the key-value store.
func NewStoreDirectory(store kvstore.Store) *StoreDirectory {
	return &StoreDirectory{store: store}
}

func studentsKey(tenantID string) string {
	return fmt.Sprintf("roster/%s/students", tenantID)
}

func operatorsKey(tenantID string) string {
	return fmt.Sprintf("roster/%s/operators", tenantID)
}

func (d *StoreDirectory) Student(ctx context.Context, tenantID, studentID string) (*Student, error) {
	students := kvstore.GetOr(ctx, d.store, studentsKey(tenantID), []Student(nil))
	for i := range students {
		if students[i].ID == studentID {
			return &students[i], nil
		}
	}
	return nil, ErrStudentNotFound
}

func (d *StoreDirectory) Operator(ctx context.Context, tenantID, operatorID string) (*Operator, error) {
	operators := kvstore.GetOr(ctx, d.store, operatorsKey(tenantID), []Operator(nil))
	for i := range operators {
		if operators[i].ID == operatorID {
			return &operators[i], nil
		}
	}
	return nil, ErrOperatorNotFound
}

// Seed writes a tenant's roster to the store. Intended for tests and local
// bootstrapping; production rosters are written by the admin tooling.
func (d *StoreDirectory) Seed(ctx context.Context, tenantID string, students []Student, operators []Operator) error {
	if err := d.store.Set(ctx, studentsKey(tenantID), students); err != nil {
		return err
	}
	return d.store.Set(ctx, operatorsKey(tenantID), operators)
}
