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

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/fleetsync/fleetsync/internal/assignment"
	"github.com/fleetsync/fleetsync/internal/geo"
	"github.com/fleetsync/fleetsync/internal/location"
	"github.com/fleetsync/fleetsync/internal/messaging"
	"github.com/fleetsync/fleetsync/internal/roster"
)

// Handler exposes the tracking core over HTTP.
type Handler struct {
	registry *assignment.Registry
	channel  *location.Channel
	messages *messaging.Service
}

// NewHandler creates the HTTP handler set.
func NewHandler(registry *assignment.Registry, channel *location.Channel, messages *messaging.Service) *Handler {
	return &Handler{
		registry: registry,
		channel:  channel,
		messages: messages,
	}
}

// NewRouter creates the chi router with the full middleware stack.
func NewRouter(h *Handler, rateLimiter *RateLimiter, jwtSecret string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(RateLimitMiddleware(rateLimiter))
	r.Use(func(handler http.Handler) http.Handler {
		return otelhttp.NewHandler(handler, "http_request",
			otelhttp.WithSpanNameFormatter(func(operation string, r *http.Request) string {
				return r.Method + " " + r.URL.Path
			}))
	})
	r.Use(LoggingMiddleware())
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(AuthMiddleware(jwtSecret))

		r.Route("/location", func(r chi.Router) {
			r.With(RequireRole(RoleOperator)).Put("/", h.publishLocation)
			r.With(RequireRole(RoleOperator)).Delete("/", h.stopLocation)
			r.Get("/operators/{operatorID}", h.operatorLocation)
		})

		r.Route("/assignments", func(r chi.Router) {
			r.With(RequireRole(RoleOperator)).Post("/", h.addAssignment)
			r.With(RequireRole(RoleOperator, RoleAdmin)).Delete("/{studentID}", h.removeAssignment)
			r.With(RequireRole(RoleOperator, RoleAdmin)).Get("/", h.listAssignments)
			r.With(RequireRole(RoleOperator)).Put("/{studentID}/status", h.setTrackingStatus)
			r.Get("/lookup/{studentID}", h.locateAssignment)
		})

		r.Route("/messages", func(r chi.Router) {
			r.Post("/", h.sendMessage)
			r.Get("/operators/{operatorID}", h.listThread)
			r.Put("/operators/{operatorID}/{messageID}", h.editMessage)
			r.Delete("/operators/{operatorID}/{messageID}", h.deleteMessage)
		})

		r.Route("/principal-messages", func(r chi.Router) {
			r.With(RequireRole(RoleOperator, RoleAdmin)).Post("/", h.sendPrincipalMessage)
			r.With(RequireRole(RoleOperator, RoleAdmin)).Get("/operators/{operatorID}", h.listPrincipalThread)
			r.With(RequireRole(RoleOperator, RoleAdmin)).Put("/operators/{operatorID}/{messageID}", h.editPrincipalMessage)
			r.With(RequireRole(RoleOperator, RoleAdmin)).Delete("/operators/{operatorID}/{messageID}", h.deletePrincipalMessage)
		})
	})

	return r
}

// --- location ---

type publishRequest struct {
	Lat      float64 `json:"lat"`
	Lng      float64 `json:"lng"`
	Accuracy float64 `json:"accuracy,omitempty"`
}

func (h *Handler) publishLocation(w http.ResponseWriter, r *http.Request) {
	var req publishRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.channel.Publish(r.Context(), location.Sample{
		TenantID:   GetTenantID(r.Context()),
		OperatorID: GetSubjectID(r.Context()),
		Lat:        req.Lat,
		Lng:        req.Lng,
		Accuracy:   req.Accuracy,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "published"})
}

func (h *Handler) stopLocation(w http.ResponseWriter, r *http.Request) {
	err := h.channel.Stop(r.Context(), GetTenantID(r.Context()), GetSubjectID(r.Context()))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type operatorLocationResponse struct {
	Tracking      bool             `json:"tracking"`
	Sample        *location.Sample `json:"sample,omitempty"`
	AccuracyClass string           `json:"accuracy_class,omitempty"`
	DistanceKm    *float64         `json:"distance_km,omitempty"`
	Distance      string           `json:"distance,omitempty"`
	ETA           string           `json:"eta,omitempty"`
}

// operatorLocation returns the live sample plus proximity info relative to
// the viewer's own coordinates, when supplied as lat/lng query parameters.
// Absence of a sample means "not currently tracking", not an error.
func (h *Handler) operatorLocation(w http.ResponseWriter, r *http.Request) {
	operatorID := chi.URLParam(r, "operatorID")

	sample, found, err := h.channel.Current(r.Context(), GetTenantID(r.Context()), operatorID)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	if !found {
		respondJSON(w, http.StatusOK, operatorLocationResponse{Tracking: false})
		return
	}

	resp := operatorLocationResponse{
		Tracking:      true,
		Sample:        sample,
		AccuracyClass: geo.ClassifyAccuracy(sample.Accuracy),
	}

	latStr, lngStr := r.URL.Query().Get("lat"), r.URL.Query().Get("lng")
	if latStr != "" && lngStr != "" {
		lat, latErr := strconv.ParseFloat(latStr, 64)
		lng, lngErr := strconv.ParseFloat(lngStr, 64)
		if latErr != nil || lngErr != nil {
			respondError(w, http.StatusBadRequest, "invalid viewer coordinates")
			return
		}
		d := geo.Distance(geo.Point{Lat: sample.Lat, Lng: sample.Lng}, geo.Point{Lat: lat, Lng: lng})
		resp.DistanceKm = &d
		resp.Distance = geo.FormatDistance(d)
		resp.ETA = geo.ETA(d)
	}

	respondJSON(w, http.StatusOK, resp)
}

// --- assignments ---

type addAssignmentRequest struct {
	StudentID string `json:"student_id"`
}

func (h *Handler) addAssignment(w http.ResponseWriter, r *http.Request) {
	var req addAssignmentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.registry.Add(r.Context(), GetTenantID(r.Context()), req.StudentID, GetSubjectID(r.Context()))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, a)
}

func (h *Handler) removeAssignment(w http.ResponseWriter, r *http.Request) {
	err := h.registry.Remove(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "studentID"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listAssignments(w http.ResponseWriter, r *http.Request) {
	operatorID := r.URL.Query().Get("operator_id")
	if operatorID == "" {
		operatorID = GetSubjectID(r.Context())
	}
	list := h.registry.ListByOperator(r.Context(), GetTenantID(r.Context()), operatorID)
	respondJSON(w, http.StatusOK, map[string]any{"assignments": list})
}

type setStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) setTrackingStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	a, err := h.registry.SetTrackingStatus(
		r.Context(),
		GetTenantID(r.Context()),
		chi.URLParam(r, "studentID"),
		assignment.Status(req.Status),
	)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

func (h *Handler) locateAssignment(w http.ResponseWriter, r *http.Request) {
	a, err := h.registry.Locate(r.Context(), chi.URLParam(r, "studentID"))
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, a)
}

// --- messages ---

type sendMessageRequest struct {
	OperatorID   string   `json:"operator_id,omitempty"`
	Type         string   `json:"type"`
	Body         string   `json:"body"`
	Attachments  []string `json:"attachments,omitempty"`
	Audience     string   `json:"audience"`
	RecipientIDs []string `json:"recipient_ids,omitempty"`
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	operatorID := req.OperatorID
	if GetRole(r.Context()) == RoleOperator {
		operatorID = GetSubjectID(r.Context())
	}
	if operatorID == "" {
		respondError(w, http.StatusBadRequest, "operator_id is required")
		return
	}

	m, err := h.messages.Send(r.Context(), messaging.SendInput{
		TenantID:     GetTenantID(r.Context()),
		OperatorID:   operatorID,
		Origin:       GetSubjectID(r.Context()),
		Type:         req.Type,
		Body:         req.Body,
		Attachments:  req.Attachments,
		Audience:     req.Audience,
		RecipientIDs: req.RecipientIDs,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

func (h *Handler) listThread(w http.ResponseWriter, r *http.Request) {
	thread := h.messages.ListThread(
		r.Context(),
		GetTenantID(r.Context()),
		chi.URLParam(r, "operatorID"),
		GetSubjectID(r.Context()),
	)
	respondJSON(w, http.StatusOK, map[string]any{"messages": thread})
}

type editMessageRequest struct {
	Body         string   `json:"body"`
	Attachments  []string `json:"attachments,omitempty"`
	Audience     string   `json:"audience,omitempty"`
	RecipientIDs []string `json:"recipient_ids,omitempty"`
}

func (h *Handler) editMessage(w http.ResponseWriter, r *http.Request) {
	var req editMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := h.messages.Edit(
		r.Context(),
		GetTenantID(r.Context()),
		chi.URLParam(r, "operatorID"),
		chi.URLParam(r, "messageID"),
		GetSubjectID(r.Context()),
		messaging.EditInput{
			Body:         req.Body,
			Attachments:  req.Attachments,
			Audience:     req.Audience,
			RecipientIDs: req.RecipientIDs,
		},
	)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (h *Handler) deleteMessage(w http.ResponseWriter, r *http.Request) {
	err := h.messages.Delete(
		r.Context(),
		GetTenantID(r.Context()),
		chi.URLParam(r, "operatorID"),
		chi.URLParam(r, "messageID"),
		GetSubjectID(r.Context()),
	)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type sendPrincipalRequest struct {
	OperatorID  string   `json:"operator_id,omitempty"`
	Direction   string   `json:"direction"`
	Body        string   `json:"body"`
	Attachments []string `json:"attachments,omitempty"`
}

func (h *Handler) sendPrincipalMessage(w http.ResponseWriter, r *http.Request) {
	var req sendPrincipalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	operatorID := req.OperatorID
	if GetRole(r.Context()) == RoleOperator {
		operatorID = GetSubjectID(r.Context())
	}
	if operatorID == "" {
		respondError(w, http.StatusBadRequest, "operator_id is required")
		return
	}

	m, err := h.messages.SendPrincipal(r.Context(), messaging.SendPrincipalInput{
		TenantID:    GetTenantID(r.Context()),
		OperatorID:  operatorID,
		Origin:      GetSubjectID(r.Context()),
		Direction:   req.Direction,
		Body:        req.Body,
		Attachments: req.Attachments,
	})
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, m)
}

func (h *Handler) listPrincipalThread(w http.ResponseWriter, r *http.Request) {
	thread := h.messages.ListPrincipalThread(r.Context(), GetTenantID(r.Context()), chi.URLParam(r, "operatorID"))
	respondJSON(w, http.StatusOK, map[string]any{"messages": thread})
}

type editPrincipalRequest struct {
	Body        string   `json:"body"`
	Attachments []string `json:"attachments,omitempty"`
}

func (h *Handler) editPrincipalMessage(w http.ResponseWriter, r *http.Request) {
	var req editPrincipalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	m, err := h.messages.EditPrincipal(
		r.Context(),
		GetTenantID(r.Context()),
		chi.URLParam(r, "operatorID"),
		chi.URLParam(r, "messageID"),
		GetSubjectID(r.Context()),
		req.Body,
		req.Attachments,
	)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, m)
}

func (h *Handler) deletePrincipalMessage(w http.ResponseWriter, r *http.Request) {
	err := h.messages.DeletePrincipal(
		r.Context(),
		GetTenantID(r.Context()),
		chi.URLParam(r, "operatorID"),
		chi.URLParam(r, "messageID"),
		GetSubjectID(r.Context()),
	)
	if err != nil {
		respondDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- helpers ---

func respondDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, assignment.ErrConflict):
		respondError(w, http.StatusConflict, err.Error())
	case errors.Is(err, assignment.ErrNotFound),
		errors.Is(err, messaging.ErrNotFound),
		errors.Is(err, roster.ErrStudentNotFound),
		errors.Is(err, roster.ErrOperatorNotFound):
		respondError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, messaging.ErrNotOrigin),
		errors.Is(err, location.ErrOperatorSuspended):
		respondError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, assignment.ErrInvalidStatus),
		errors.Is(err, location.ErrInvalidCoordinates),
		errors.Is(err, messaging.ErrEmptyBody),
		errors.Is(err, messaging.ErrTooManyAttachments),
		errors.Is(err, messaging.ErrInvalidAudience),
		errors.Is(err, messaging.ErrNoRecipients),
		errors.Is(err, messaging.ErrInvalidType),
		errors.Is(err, messaging.ErrInvalidDirection):
		respondError(w, http.StatusUnprocessableEntity, err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "internal error")
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
