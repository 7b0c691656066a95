package location

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fleetsync/fleetsync/internal/audit"
	"github.com/fleetsync/fleetsync/internal/kvstore"
	"github.com/fleetsync/fleetsync/internal/roster"
)

type fakeDirectory struct{}

func (fakeDirectory) Student(ctx context.Context, tenantID, studentID string) (*roster.Student, error) {
	return nil, roster.ErrStudentNotFound
}

func (fakeDirectory) Operator(ctx context.Context, tenantID, operatorID string) (*roster.Operator, error) {
	switch operatorID {
	case "op-live":
		return &roster.Operator{ID: "op-live", VehicleID: "KA-01-1234", Status: roster.OperatorActive}, nil
	case "op-benched":
		return &roster.Operator{ID: "op-benched", Status: roster.OperatorSuspended}, nil
	}
	return nil, roster.ErrOperatorNotFound
}

func newTestChannel() (*Channel, *kvstore.Memory) {
	store := kvstore.NewMemory()
	feed := kvstore.NewFeed(store, 5*time.Millisecond)
	return NewChannel(store, feed, fakeDirectory{}, audit.Noop{}), store
}

func TestChannel_PublishAndCurrent(t *testing.T) {
	ctx := context.Background()
	ch, _ := newTestChannel()

	err := ch.Publish(ctx, Sample{
		TenantID: "north", OperatorID: "op-live",
		Lat: 12.9716, Lng: 77.5946, Accuracy: 8,
	})
	require.NoError(t, err)

	s, found, err := ch.Current(ctx, "north", "op-live")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 12.9716, s.Lat)
	assert.Equal(t, "KA-01-1234", s.VehicleID, "vehicle id filled from roster")
	assert.Equal(t, 8.0, s.Accuracy, "accuracy passed through untouched")
	assert.False(t, s.CapturedAt.IsZero())
}

func TestChannel_PublishReplacesWholeSample(t *testing.T) {
	ctx := context.Background()
	ch, _ := newTestChannel()

	require.NoError(t, ch.Publish(ctx, Sample{TenantID: "north", OperatorID: "op-live", Lat: 1, Lng: 1, Accuracy: 50}))
	require.NoError(t, ch.Publish(ctx, Sample{TenantID: "north", OperatorID: "op-live", Lat: 2, Lng: 2}))

	s, found, err := ch.Current(ctx, "north", "op-live")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, 2.0, s.Lat)
	assert.Zero(t, s.Accuracy, "prior accuracy must not leak into the new sample")
}

func TestChannel_PublishValidation(t *testing.T) {
	ctx := context.Background()
	ch, _ := newTestChannel()

	err := ch.Publish(ctx, Sample{TenantID: "north", OperatorID: "op-live", Lat: 91, Lng: 0})
	assert.ErrorIs(t, err, ErrInvalidCoordinates)

	err = ch.Publish(ctx, Sample{TenantID: "north", OperatorID: "op-live", Lat: 0, Lng: -181})
	assert.ErrorIs(t, err, ErrInvalidCoordinates)

	err = ch.Publish(ctx, Sample{TenantID: "north", OperatorID: "op-benched", Lat: 0, Lng: 0})
	assert.ErrorIs(t, err, ErrOperatorSuspended)

	err = ch.Publish(ctx, Sample{TenantID: "north", OperatorID: "ghost", Lat: 0, Lng: 0})
	assert.ErrorIs(t, err, roster.ErrOperatorNotFound)
}

func TestChannel_StopRemovesSample(t *testing.T) {
	ctx := context.Background()
	ch, _ := newTestChannel()

	require.NoError(t, ch.Publish(ctx, Sample{TenantID: "north", OperatorID: "op-live", Lat: 1, Lng: 1}))
	require.NoError(t, ch.Stop(ctx, "north", "op-live"))

	_, found, err := ch.Current(ctx, "north", "op-live")
	require.NoError(t, err)
	assert.False(t, found, "stop must delete the sample, not freeze it")
}

func TestChannel_SubscriberObservesAbsenceAfterStop(t *testing.T) {
	ctx := context.Background()
	ch, _ := newTestChannel()

	require.NoError(t, ch.Publish(ctx, Sample{TenantID: "north", OperatorID: "op-live", Lat: 12.9716, Lng: 77.5946}))

	var mu sync.Mutex
	var seen []*Sample
	sub := ch.Subscribe(ctx, "north", "op-live", func(s *Sample) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})
	defer sub.Unsubscribe()

	count := func() int {
		mu.Lock()
		defer mu.Unlock()
		return len(seen)
	}
	last := func() *Sample {
		mu.Lock()
		defer mu.Unlock()
		return seen[len(seen)-1]
	}

	require.Eventually(t, func() bool { return count() >= 1 }, time.Second, time.Millisecond)
	require.NotNil(t, last())
	assert.Equal(t, 12.9716, last().Lat)

	require.NoError(t, ch.Stop(ctx, "north", "op-live"))
	require.Eventually(t, func() bool { return count() >= 2 }, time.Second, time.Millisecond)
	assert.Nil(t, last(), "subscriber polling after stop observes absence")
}
