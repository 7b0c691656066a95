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

// Package messaging carries the threaded status messages between operator,
// students, and administrator. Messages are editable and hard-deletable by
// their origin only, and otherwise immutable. Edits overwrite in place with
// no revision history or edited flag; that asymmetry with other parts of
// the platform is deliberate.
package messaging

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrNotFound           = errors.New("message not found")
	ErrNotOrigin          = errors.New("only the message origin may modify it")
	ErrEmptyBody          = errors.New("message body is required")
	ErrTooManyAttachments = errors.New("too many attachments")
	ErrInvalidAudience    = errors.New("invalid audience")
	ErrNoRecipients       = errors.New("individual audience requires recipients")
	ErrInvalidType        = errors.New("invalid message type")
	ErrInvalidDirection   = errors.New("invalid message direction")
)

// Message kinds for the operator↔student thread.
const (
	TypeGood = "good"
	TypeBad  = "bad"
)

// Audience values.
const (
	AudienceBroadcast  = "broadcast"
	AudienceIndividual = "individual"
)

// Directions for the operator↔administrator thread.
const (
	DirectionToAdmin    = "operator_to_admin"
	DirectionToOperator = "admin_to_operator"
	DirectionReply      = "reply"
)

// Attachment caps per thread kind.
const (
	maxStudentAttachments   = 2
	maxPrincipalAttachments = 4
)

// Message is one entry in an operator's student-facing thread. The
// recipient set of an individual message is fixed at send time and never
// recomputed.
type Message struct {
	ID           string    `json:"id"`
	TenantID     string    `json:"tenant_id"`
	OperatorID   string    `json:"operator_id"`
	Origin       string    `json:"origin"`
	Type         string    `json:"type"`
	Body         string    `json:"body"`
	Attachments  []string  `json:"attachments,omitempty"`
	Audience     string    `json:"audience"`
	RecipientIDs []string  `json:"recipient_ids,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// VisibleTo reports whether a viewer may see this message: broadcasts are
// visible to anyone on the thread, individual messages only to their fixed
// recipient set and their origin.
func (m *Message) VisibleTo(viewerID string) bool {
	if m.Audience == AudienceBroadcast || m.Origin == viewerID {
		return true
	}
	for _, id := range m.RecipientIDs {
		if id == viewerID {
			return true
		}
	}
	return false
}

// PrincipalMessage is one entry in the operator↔administrator thread.
type PrincipalMessage struct {
	ID          string    `json:"id"`
	TenantID    string    `json:"tenant_id"`
	OperatorID  string    `json:"operator_id"`
	Origin      string    `json:"origin"`
	Direction   string    `json:"direction"`
	Body        string    `json:"body"`
	Attachments []string  `json:"attachments,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func threadKey(tenantID, operatorID string) string {
	return fmt.Sprintf("messages/%s/%s", tenantID, operatorID)
}

func principalKey(tenantID, operatorID string) string {
	return fmt.Sprintf("principal_messages/%s/%s", tenantID, operatorID)
}
