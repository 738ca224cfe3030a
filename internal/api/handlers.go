// Package api exposes the HTTP surface of the GymDashSync ingestion service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/adamswbrown/GymDashSync-sub001/internal/domain"
)

// Pinger reports storage reachability for the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

// ListLimits bounds the read endpoints.
type ListLimits struct {
	Default int
	Max     int
}

// Handler coordinates HTTP requests with the domain service.
type Handler struct {
	service *domain.Service
	db      Pinger
	limits  ListLimits
	log     *zap.Logger
}

// NewHandler builds a Handler.
func NewHandler(service *domain.Service, db Pinger, limits ListLimits, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if limits.Default <= 0 {
		limits.Default = 50
	}
	if limits.Max <= 0 {
		limits.Max = 200
	}
	return &Handler{service: service, db: db, limits: limits, log: log}
}

// RegisterRoutes wires endpoints to the router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/pair", h.pair)
	r.Post("/clients", h.createClient)
	r.Get("/clients", h.listClients)
	r.Get("/clients/{clientID}", h.getClient)
	r.Post("/ingest/workouts", h.ingestWorkouts)
	r.Post("/ingest/profile", h.ingestProfileMetrics)
	r.Post("/ingest/profile-metrics", h.ingestProfileMetrics) // alias kept for older app builds
	r.Get("/workouts", h.listWorkouts)
	r.Get("/profile", h.listProfileMetrics)
	r.Post("/workouts/query", h.queryWorkouts)
	r.Post("/profile-metrics/query", h.queryProfileMetrics)
	r.Get("/health", h.health)
}

// PairRequest is the payload for POST /pair.
type PairRequest struct {
	PairingCode string `json:"pairing_code"`
}

func (h *Handler) pair(w http.ResponseWriter, r *http.Request) {
	var req PairRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if strings.TrimSpace(req.PairingCode) == "" {
		writeError(w, http.StatusBadRequest, "validation_failed", "pairing_code is required")
		return
	}

	client, err := h.service.Pair(r.Context(), req.PairingCode)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownPairingCode) {
			writeError(w, http.StatusNotFound, "not_found", "unknown pairing code")
			return
		}
		h.serverError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"client_id": client.ID})
}

// CreateClientRequest is the payload for POST /clients.
type CreateClientRequest struct {
	Label string `json:"label"`
}

// CreateClientResponse describes a freshly registered client.
type CreateClientResponse struct {
	ClientID    string `json:"client_id"`
	PairingCode string `json:"pairing_code"`
	Label       string `json:"label"`
}

func (h *Handler) createClient(w http.ResponseWriter, r *http.Request) {
	var req CreateClientRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
			return
		}
	}

	client, err := h.service.RegisterClient(r.Context(), strings.TrimSpace(req.Label))
	if err != nil {
		h.serverError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, CreateClientResponse{
		ClientID:    client.ID,
		PairingCode: client.PairingCode,
		Label:       client.Label,
	})
}

// ClientView exposes a client with its per-owner aggregates.
type ClientView struct {
	ClientID             string     `json:"client_id"`
	PairingCode          string     `json:"pairing_code"`
	Label                string     `json:"label"`
	CreatedAt            time.Time  `json:"created_at"`
	WorkoutCount         int        `json:"workout_count"`
	LastWorkoutStartTime *time.Time `json:"last_workout_start_time,omitempty"`
	WarningCount         int        `json:"warning_count"`
}

func (h *Handler) listClients(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.service.Clients(r.Context())
	if err != nil {
		h.serverError(w, err)
		return
	}

	views := make([]ClientView, 0, len(summaries))
	for _, summary := range summaries {
		views = append(views, toClientView(summary))
	}
	writeJSON(w, http.StatusOK, views)
}

func (h *Handler) getClient(w http.ResponseWriter, r *http.Request) {
	clientID := chi.URLParam(r, "clientID")

	summary, err := h.service.Client(r.Context(), clientID)
	if err != nil {
		if errors.Is(err, domain.ErrClientNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "client not found")
			return
		}
		h.serverError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toClientView(*summary))
}

func (h *Handler) ingestWorkouts(w http.ResponseWriter, r *http.Request) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be a JSON array of workout records")
		return
	}

	inputs := make([]domain.WorkoutInput, len(raw))
	for i, record := range raw {
		if err := json.Unmarshal(record, &inputs[i]); err != nil {
			inputs[i] = domain.WorkoutInput{
				ClientID:   probeClientID(record),
				ParseError: fmt.Sprintf("malformed record: %v", err),
			}
		}
	}

	report, err := h.service.IngestWorkouts(r.Context(), inputs)
	h.writeIngestOutcome(w, report, err)
}

func (h *Handler) ingestProfileMetrics(w http.ResponseWriter, r *http.Request) {
	var raw []json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "request body must be a JSON array of profile metric records")
		return
	}

	inputs := make([]domain.ProfileMetricInput, len(raw))
	for i, record := range raw {
		if err := json.Unmarshal(record, &inputs[i]); err != nil {
			inputs[i] = domain.ProfileMetricInput{
				ClientID:   probeClientID(record),
				ParseError: fmt.Sprintf("malformed record: %v", err),
			}
		}
	}

	report, err := h.service.IngestProfileMetrics(r.Context(), inputs)
	h.writeIngestOutcome(w, report, err)
}

// writeIngestOutcome maps batch-level rejections to 4xx, infrastructure
// failures to 5xx, and otherwise returns the structured report. A fully
// failed batch is reported with 400 so callers can tell "nothing processed"
// from "partially processed".
func (h *Handler) writeIngestOutcome(w http.ResponseWriter, report domain.IngestReport, err error) {
	switch {
	case err == nil:
		status := http.StatusOK
		if report.Failed() {
			status = http.StatusBadRequest
		}
		writeJSON(w, status, report)
	case errors.Is(err, domain.ErrMissingOwner):
		writeError(w, http.StatusBadRequest, "validation_failed", "batch records carry no client_id")
	case errors.Is(err, domain.ErrMixedOwners):
		writeError(w, http.StatusBadRequest, "validation_failed", "all records in a batch must share one client_id")
	case errors.Is(err, domain.ErrUnknownClient):
		writeError(w, http.StatusBadRequest, "validation_failed", "batch references an unknown client_id")
	default:
		h.serverError(w, err)
	}
}

// WorkoutView exposes a stored workout.
type WorkoutView struct {
	WorkoutID       string    `json:"workout_id"`
	ClientID        string    `json:"client_id"`
	Source          string    `json:"source"`
	Category        string    `json:"category"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	DurationSeconds int       `json:"duration_seconds"`
	Calories        *float64  `json:"calories_kcal,omitempty"`
	DistanceKM      *float64  `json:"distance_km,omitempty"`
	AvgHeartRate    *float64  `json:"avg_heart_rate,omitempty"`
	Device          *string   `json:"device,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

func (h *Handler) listWorkouts(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")
	limit := h.parseLimit(r)

	workouts, err := h.service.Workouts(r.Context(), clientID, limit)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownClient) {
			writeError(w, http.StatusBadRequest, "validation_failed", "client_id must be a UUID")
			return
		}
		h.serverError(w, err)
		return
	}

	views := make([]WorkoutView, 0, len(workouts))
	for _, workout := range workouts {
		views = append(views, toWorkoutView(workout))
	}
	writeJSON(w, http.StatusOK, views)
}

// ProfileMetricView exposes a stored profile metric.
type ProfileMetricView struct {
	MetricID   string    `json:"metric_id"`
	ClientID   string    `json:"client_id"`
	Metric     string    `json:"metric"`
	Value      float64   `json:"value"`
	Unit       string    `json:"unit"`
	MeasuredAt time.Time `json:"measured_at"`
	Source     string    `json:"source"`
	CreatedAt  time.Time `json:"created_at"`
}

func (h *Handler) listProfileMetrics(w http.ResponseWriter, r *http.Request) {
	clientID := r.URL.Query().Get("client_id")
	limit := h.parseLimit(r)

	metrics, err := h.service.ProfileMetrics(r.Context(), clientID, limit)
	if err != nil {
		if errors.Is(err, domain.ErrUnknownClient) {
			writeError(w, http.StatusBadRequest, "validation_failed", "client_id must be a UUID")
			return
		}
		h.serverError(w, err)
		return
	}

	views := make([]ProfileMetricView, 0, len(metrics))
	for _, metric := range metrics {
		views = append(views, ProfileMetricView{
			MetricID:   metric.ID,
			ClientID:   metric.ClientID,
			Metric:     string(metric.Metric),
			Value:      metric.Value,
			Unit:       metric.Unit,
			MeasuredAt: metric.MeasuredAt,
			Source:     metric.Source,
			CreatedAt:  metric.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, views)
}

// QueryRequest is the payload for the uuid-keyed query endpoints.
type QueryRequest struct {
	UUIDs []string `json:"uuids"`
}

// queryWorkouts and queryProfileMetrics answer uuid-keyed lookups from the
// uploading app. No external correlation identifier is tracked locally, so
// both deliberately return an empty array: the caller treats every queried
// record as new and uploads it, and deduplication catches the repeats.
func (h *Handler) queryWorkouts(w http.ResponseWriter, r *http.Request) {
	h.queryByUUIDs(w, r)
}

func (h *Handler) queryProfileMetrics(w http.ResponseWriter, r *http.Request) {
	h.queryByUUIDs(w, r)
}

func (h *Handler) queryByUUIDs(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	writeJSON(w, http.StatusOK, []struct{}{})
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		h.log.Warn("health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) parseLimit(r *http.Request) int {
	limit := h.limits.Default
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > h.limits.Max {
		limit = h.limits.Max
	}
	return limit
}

func (h *Handler) serverError(w http.ResponseWriter, err error) {
	h.log.Error("request failed", zap.Error(err))
	writeError(w, http.StatusInternalServerError, "server_error", err.Error())
}

// probeClientID extracts just the client_id from a record that failed full
// decoding, so the batch owner check still sees it.
func probeClientID(record json.RawMessage) string {
	var probe struct {
		ClientID string `json:"client_id"`
	}
	if err := json.Unmarshal(record, &probe); err != nil {
		return ""
	}
	return probe.ClientID
}

func toClientView(summary domain.ClientSummary) ClientView {
	return ClientView{
		ClientID:             summary.ID,
		PairingCode:          summary.PairingCode,
		Label:                summary.Label,
		CreatedAt:            summary.CreatedAt,
		WorkoutCount:         summary.WorkoutCount,
		LastWorkoutStartTime: summary.LastWorkoutStart,
		WarningCount:         summary.WarningCount,
	}
}

func toWorkoutView(workout domain.Workout) WorkoutView {
	return WorkoutView{
		WorkoutID:       workout.ID,
		ClientID:        workout.ClientID,
		Source:          workout.Source,
		Category:        string(workout.Category),
		StartTime:       workout.StartTime,
		EndTime:         workout.EndTime,
		DurationSeconds: workout.DurationSeconds,
		Calories:        workout.Calories,
		DistanceKM:      workout.DistanceKM,
		AvgHeartRate:    workout.AvgHeartRate,
		Device:          workout.Device,
		CreatedAt:       workout.CreatedAt,
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
