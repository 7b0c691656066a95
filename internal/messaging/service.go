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
	"github.com/fleetsync/fleetsync/internal/roster"
)

// Service provides messaging business logic over whole-thread snapshots in
// the key-value store.
type Service struct {
	store       kvstore.Store
	directory   roster.Directory
	auditLogger audit.Logger
}

// NewService creates a messaging service.
func NewService(store kvstore.Store, directory roster.Directory, auditLogger audit.Logger) *Service {
	return &Service{
		store:       store,
		directory:   directory,
		auditLogger: auditLogger,
	}
}

// SendInput describes a new operator↔student message.
type SendInput struct {
	TenantID     string
	OperatorID   string
	Origin       string
	Type         string
	Body         string
	Attachments  []string
	Audience     string
	RecipientIDs []string
}

// Send appends a message to the operator's student-facing thread. Broadcast
// reaches every student assigned to the operator; individual reaches only
// the recipient set supplied here, evaluated at send time.
func (s *Service) Send(ctx context.Context, in SendInput) (*Message, error) {
	if strings.TrimSpace(in.Body) == "" {
		return nil, ErrEmptyBody
	}
	if in.Type != TypeGood && in.Type != TypeBad {
		return nil, fmt.Errorf("%w: %q", ErrInvalidType, in.Type)
	}
	if len(in.Attachments) > maxStudentAttachments {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrTooManyAttachments, len(in.Attachments), maxStudentAttachments)
	}
	switch in.Audience {
	case AudienceBroadcast:
	case AudienceIndividual:
		if len(in.RecipientIDs) == 0 {
			return nil, ErrNoRecipients
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrInvalidAudience, in.Audience)
	}

	if in.Origin == in.OperatorID {
		op, err := s.directory.Operator(ctx, in.TenantID, in.OperatorID)
		if err != nil {
			return nil, fmt.Errorf("resolve operator %s: %w", in.OperatorID, err)
		}
		if op.Suspended() {
			return nil, fmt.Errorf("operator %s is suspended", in.OperatorID)
		}
	}

	m := Message{
		ID:           uuid.NewString(),
		TenantID:     in.TenantID,
		OperatorID:   in.OperatorID,
		Origin:       in.Origin,
		Type:         in.Type,
		Body:         in.Body,
		Attachments:  in.Attachments,
		Audience:     in.Audience,
		RecipientIDs: in.RecipientIDs,
		CreatedAt:    time.Now(),
	}
	if m.Audience == AudienceBroadcast {
		m.RecipientIDs = nil
	}

	thread := kvstore.GetOr(ctx, s.store, threadKey(in.TenantID, in.OperatorID), []Message(nil))
	thread = append(thread, m)
	if err := s.store.Set(ctx, threadKey(in.TenantID, in.OperatorID), thread); err != nil {
		return nil, fmt.Errorf("write thread: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeMessageSent,
		TenantID: in.TenantID,
		ActorID:  in.Origin,
		Resource: m.ID,
		Metadata: map[string]any{"audience": m.Audience, "type": m.Type},
	})
	return &m, nil
}

// EditInput describes an in-place overwrite of an existing message.
type EditInput struct {
	Body         string
	Attachments  []string
	Audience     string // empty keeps the current audience
	RecipientIDs []string
}

// Edit overwrites a message in place. Only the origin may edit; the
// overwrite is unconditional and keeps no revision history or edited flag.
func (s *Service) Edit(ctx context.Context, tenantID, operatorID, messageID, origin string, in EditInput) (*Message, error) {
	if strings.TrimSpace(in.Body) == "" {
		return nil, ErrEmptyBody
	}
	if len(in.Attachments) > maxStudentAttachments {
		return nil, fmt.Errorf("%w: %d (max %d)", ErrTooManyAttachments, len(in.Attachments), maxStudentAttachments)
	}

	thread := kvstore.GetOr(ctx, s.store, threadKey(tenantID, operatorID), []Message(nil))
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

	thread[idx].Body = in.Body
	thread[idx].Attachments = in.Attachments
	if in.Audience != "" {
		if in.Audience != AudienceBroadcast && in.Audience != AudienceIndividual {
			return nil, fmt.Errorf("%w: %q", ErrInvalidAudience, in.Audience)
		}
		thread[idx].Audience = in.Audience
		if in.Audience == AudienceIndividual {
			if len(in.RecipientIDs) == 0 {
				return nil, ErrNoRecipients
			}
			thread[idx].RecipientIDs = in.RecipientIDs
		} else {
			thread[idx].RecipientIDs = nil
		}
	}
	edited := thread[idx]

	if err := s.store.Set(ctx, threadKey(tenantID, operatorID), thread); err != nil {
		return nil, fmt.Errorf("write thread: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeMessageEdited,
		TenantID: tenantID,
		ActorID:  origin,
		Resource: messageID,
	})
	return &edited, nil
}

// Delete hard-deletes a message. Absence is reported as ErrNotFound, unlike
// the assignment registry's idempotent remove.
func (s *Service) Delete(ctx context.Context, tenantID, operatorID, messageID, origin string) error {
	thread := kvstore.GetOr(ctx, s.store, threadKey(tenantID, operatorID), []Message(nil))
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
	if err := s.store.Set(ctx, threadKey(tenantID, operatorID), thread); err != nil {
		return fmt.Errorf("write thread: %w", err)
	}

	s.auditLogger.Log(ctx, audit.Event{
		Type:     audit.TypeMessageDeleted,
		TenantID: tenantID,
		ActorID:  origin,
		Resource: messageID,
	})
	return nil
}

// ListThread returns the messages a viewer may see, newest first.
func (s *Service) ListThread(ctx context.Context, tenantID, operatorID, viewerID string) []Message {
	thread := kvstore.GetOr(ctx, s.store, threadKey(tenantID, operatorID), []Message(nil))
	var out []Message
	for _, m := range thread {
		if m.VisibleTo(viewerID) {
			out = append(out, m)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
