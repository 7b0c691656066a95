package messaging

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fleetsync/fleetsync/internal/audit"
	"github.com/fleetsync/fleetsync/internal/kvstore"
)

// SendPrincipalInput describes a new operator↔administrator message.
type SendPrincipalInput struct {
	TenantID    string
	OperatorID  string
	Origin      string
	Direction   string
	Body        string
	Attachments []string
}

// SendPrincipal appends a message to the operator↔administrator thread.
func (s *Service) SendPrincipal(ctx context.Context, in SendPrincipalInput) (*PrincipalMessage, error) {
	if strings.TrimSpace(in.Body) == "" {
		return nil, ErrEmptyBody
	}
	if len(in.Attachments) > maxPrincipalAttachments {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrTooManyAttachments, len(in.Attachments), maxPrincipalAttachments)
	}
	switch in.Direction {
	case DirectionToAdmin, DirectionToOperator, DirectionReply:
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidDirection, in.Direction)
	}

	m := PrincipalMessage{
		ID:          uuid.NewString(),
		TenantID:    in.TenantID,
		OperatorID:  in.OperatorID,
		Origin:      in.Origin,
		Direction:   in.Direction,
		Body:        in.Body,
		Attachments: in.Attachments,
		CreatedAt:   time.Now(),
	}

	thread := kvstore.GetOr(ctx, s.store, principalKey(in.TenantID, in.OperatorID), []PrincipalMessage(nil))
	thread = append(thread, m)
	if err := s.store.Set(ctx, principalKey(in.TenantID, in.OperatorID), thread); err != nil {
		return nil, fmt.Errorf("write principal thread: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeMessageSent,
		TenantID: in.TenantID,
		ActorID:  in.Origin,
		Resource: m.ID,
		Metadata: map[string]any{"direction": m.Direction},
	})
	return &m, nil
}

// EditPrincipal overwrites a principal message in place, origin only.
func (s *Service) EditPrincipal(ctx context.Context, tenantID, operatorID, messageID, origin, body string, attachments []string) (*PrincipalMessage, error) {
	if strings.TrimSpace(body) == "" {
		return nil, ErrEmptyBody
	}
	if len(attachments) > maxPrincipalAttachments {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrTooManyAttachments, len(attachments), maxPrincipalAttachments)
	}

	thread := kvstore.GetOr(ctx, s.store, principalKey(tenantID, operatorID), []PrincipalMessage(nil))
	idx := -1
	for i := range thread {
		if thread[i].ID == messageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrNotFound
	}
	if thread[idx].Origin != origin {
		return nil, ErrNotOrigin
	}

	thread[idx].Body = body
	thread[idx].Attachments = attachments
	edited := thread[idx]

	if err := s.store.Set(ctx, principalKey(tenantID, operatorID), thread); err != nil {
		return nil, fmt.Errorf("write principal thread: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeMessageEdited,
		TenantID: tenantID,
		ActorID:  origin,
		Resource: messageID,
	})
	return &edited, nil
}

// DeletePrincipal hard-deletes a principal message, origin only. Absence is
// ErrNotFound.
func (s *Service) DeletePrincipal(ctx context.Context, tenantID, operatorID, messageID, origin string) error {
	thread := kvstore.GetOr(ctx, s.store, principalKey(tenantID, operatorID), []PrincipalMessage(nil))
	idx := -1
	for i := range thread {
		if thread[i].ID == messageID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return ErrNotFound
	}
	if thread[idx].Origin != origin {
		return ErrNotOrigin
	}

	thread = append(thread[:idx], thread[idx+1:]...)
	if err := s.store.Set(ctx, principalKey(tenantID, operatorID), thread); err != nil {
		return fmt.Errorf("write principal thread: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeMessageDeleted,
		TenantID: tenantID,
		ActorID:  origin,
		Resource: messageID,
	})
	return nil
}

// ListPrincipalThread returns the operator↔administrator thread, newest
// first.
func (s *Service) ListPrincipalThread(ctx context.Context, tenantID, operatorID string) []PrincipalMessage {
	thread := kvstore.GetOr(ctx, s.store, principalKey(tenantID, operatorID), []PrincipalMessage(nil))
	out := make([]PrincipalMessage, len(thread))
	copy(out, thread)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
