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

package http

import "context"

type contextKey string

const (
	tenantIDKey  contextKey = "tenant_id"
	subjectIDKey contextKey = "subject_id"
	roleKey      contextKey = "role"
)

// Roles carried by externally-issued tokens.
const (
	RoleOperator = "operator"
	RoleStudent  = "student"
	RoleAdmin    = "admin"
)

// GetTenantID retrieves the tenant ID from context.
func GetTenantID(ctx context.Context) string {
	if val, ok := ctx.Value(tenantIDKey).(string); ok {
		return val
	}
	return ""
}

// GetSubjectID retrieves the authenticated subject (operator, student or
// administrator id) from context.
func GetSubjectID(ctx context.Context) string {
	if val, ok := ctx.Value(subjectIDKey).(string); ok {
		return val
	}
	return ""
}

// GetRole retrieves the authenticated subject's role from context.
func GetRole(ctx context.Context) string {
	if val, ok := ctx.Value(roleKey).(string); ok {
		return val
	}
	return ""
}
