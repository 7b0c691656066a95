package messaging

import (
	"context"
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
	if operatorID == "op-benched" {
		return &roster.Operator{ID: operatorID, Status: roster.OperatorSuspended}, nil
	}
	return &roster.Operator{ID: operatorID, Status: roster.OperatorActive}, nil
}

func newTestService() *Service {
	return NewService(kvstore.NewMemory(), fakeDirectory{}, audit.Noop{})
}

func operatorSend(svc *Service, body, audience string, recipients ...string) (*Message, error) {
	return svc.Send(context.Background(), SendInput{
		TenantID:     "north",
		OperatorID:   "op1",
		Origin:       "op1",
		Type:         TypeGood,
		Body:         body,
		Audience:     audience,
		RecipientIDs: recipients,
	})
}

func TestSend_Validation(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := operatorSend(svc, "   ", AudienceBroadcast)
	assert.ErrorIs(t, err, ErrEmptyBody)

	_, err = svc.Send(ctx, SendInput{
		TenantID: "north", OperatorID: "op1", Origin: "op1",
		Type: "neutral", Body: "hi", Audience: AudienceBroadcast,
	})
	assert.ErrorIs(t, err, ErrInvalidType)

	_, err = svc.Send(ctx, SendInput{
		TenantID: "north", OperatorID: "op1", Origin: "op1",
		Type: TypeGood, Body: "hi", Audience: AudienceBroadcast,
		Attachments: []string{"a", "b", "c"},
	})
	assert.ErrorIs(t, err, ErrTooManyAttachments)

	_, err = operatorSend(svc, "hi", "everyone")
	assert.ErrorIs(t, err, ErrInvalidAudience)

	_, err = operatorSend(svc, "hi", AudienceIndividual)
	assert.ErrorIs(t, err, ErrNoRecipients)
}

func TestSend_SuspendedOperatorRejected(t *testing.T) {
	svc := newTestService()
	_, err := svc.Send(context.Background(), SendInput{
		TenantID: "north", OperatorID: "op-benched", Origin: "op-benched",
		Type: TypeGood, Body: "hi", Audience: AudienceBroadcast,
	})
	assert.Error(t, err)
}

func TestListThread_BroadcastAndIndividualVisibility(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := operatorSend(svc, "bus leaves at 4", AudienceBroadcast)
	require.NoError(t, err)
	_, err = operatorSend(svc, "please meet me", AudienceIndividual, "studentX")
	require.NoError(t, err)

	// Every assigned student sees the broadcast.
	forX := svc.ListThread(ctx, "north", "op1", "studentX")
	require.Len(t, forX, 2)

	// A non-recipient sees only the broadcast.
	forY := svc.ListThread(ctx, "north", "op1", "studentY")
	require.Len(t, forY, 1)
	assert.Equal(t, "bus leaves at 4", forY[0].Body)

	// The origin sees its own individual message.
	forOp := svc.ListThread(ctx, "north", "op1", "op1")
	assert.Len(t, forOp, 2)
}

func TestListThread_NewestFirst(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	for _, body := range []string{"first", "second", "third"} {
		_, err := operatorSend(svc, body, AudienceBroadcast)
		require.NoError(t, err)
		time.Sleep(2 * time.Millisecond)
	}

	thread := svc.ListThread(ctx, "north", "op1", "studentX")
	require.Len(t, thread, 3)
	assert.Equal(t, "third", thread[0].Body)
	assert.Equal(t, "first", thread[2].Body)
}

func TestEdit_OriginOnlyInPlaceOverwrite(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	m, err := operatorSend(svc, "original", AudienceBroadcast)
	require.NoError(t, err)

	_, err = svc.Edit(ctx, "north", "op1", m.ID, "someone-else", EditInput{Body: "hijack"})
	assert.ErrorIs(t, err, ErrNotOrigin)

	edited, err := svc.Edit(ctx, "north", "op1", m.ID, "op1", EditInput{Body: "corrected"})
	require.NoError(t, err)
	assert.Equal(t, "corrected", edited.Body)
	assert.Equal(t, m.ID, edited.ID)
	assert.True(t, m.CreatedAt.Equal(edited.CreatedAt), "edit must not touch creation time")

	// Narrowing to an individual audience replaces the recipient set.
	edited, err = svc.Edit(ctx, "north", "op1", m.ID, "op1", EditInput{
		Body: "corrected", Audience: AudienceIndividual, RecipientIDs: []string{"studentX"},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"studentX"}, edited.RecipientIDs)

	_, err = svc.Edit(ctx, "north", "op1", "no-such-id", "op1", EditInput{Body: "x"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDelete_RequiresOriginAndReportsAbsence(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	m, err := operatorSend(svc, "to be removed", AudienceBroadcast)
	require.NoError(t, err)

	err = svc.Delete(ctx, "north", "op1", m.ID, "someone-else")
	assert.ErrorIs(t, err, ErrNotOrigin)

	require.NoError(t, svc.Delete(ctx, "north", "op1", m.ID, "op1"))

	// Hard delete: a second attempt reports absence instead of ignoring it.
	err = svc.Delete(ctx, "north", "op1", m.ID, "op1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Empty(t, svc.ListThread(ctx, "north", "op1", "op1"))
}

func TestPrincipalThread(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	_, err := svc.SendPrincipal(ctx, SendPrincipalInput{
		TenantID: "north", OperatorID: "op1", Origin: "op1",
		Direction: DirectionToAdmin, Body: "route blocked near the bridge",
	})
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)

	reply, err := svc.SendPrincipal(ctx, SendPrincipalInput{
		TenantID: "north", OperatorID: "op1", Origin: "admin",
		Direction: DirectionReply, Body: "take the ring road",
	})
	require.NoError(t, err)

	thread := svc.ListPrincipalThread(ctx, "north", "op1")
	require.Len(t, thread, 2)
	assert.Equal(t, "take the ring road", thread[0].Body, "newest first")

	// Four attachments are allowed here, five are not.
	_, err = svc.SendPrincipal(ctx, SendPrincipalInput{
		TenantID: "north", OperatorID: "op1", Origin: "op1",
		Direction: DirectionToAdmin, Body: "photos",
		Attachments: []string{"a", "b", "c", "d"},
	})
	require.NoError(t, err)
	_, err = svc.SendPrincipal(ctx, SendPrincipalInput{
		TenantID: "north", OperatorID: "op1", Origin: "op1",
		Direction: DirectionToAdmin, Body: "photos",
		Attachments: []string{"a", "b", "c", "d", "e"},
	})
	assert.ErrorIs(t, err, ErrTooManyAttachments)

	_, err = svc.SendPrincipal(ctx, SendPrincipalInput{
		TenantID: "north", OperatorID: "op1", Origin: "op1",
		Direction: "sideways", Body: "hi",
	})
	assert.ErrorIs(t, err, ErrInvalidDirection)

	// Edit and delete are origin-gated.
	_, err = svc.EditPrincipal(ctx, "north", "op1", reply.ID, "op1", "forged", nil)
	assert.ErrorIs(t, err, ErrNotOrigin)

	edited, err := svc.EditPrincipal(ctx, "north", "op1", reply.ID, "admin", "take the service road", nil)
	require.NoError(t, err)
	assert.Equal(t, "take the service road", edited.Body)

	require.NoError(t, svc.DeletePrincipal(ctx, "north", "op1", reply.ID, "admin"))
	err = svc.DeletePrincipal(ctx, "north", "op1", reply.ID, "admin")
	assert.ErrorIs(t, err, ErrNotFound)
}
