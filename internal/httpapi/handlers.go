package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/aglayrton/fluxo-agua/internal/aggregate"
	"github.com/aglayrton/fluxo-agua/internal/db"
	"github.com/aglayrton/fluxo-agua/internal/flowcontrol"
	"github.com/aglayrton/fluxo-agua/internal/reading"
	"github.com/aglayrton/fluxo-agua/internal/repository"
	"github.com/aglayrton/fluxo-agua/internal/service"
	"github.com/aglayrton/fluxo-agua/tools/timeparser"
)

// Store is the goal and registry persistence the handlers use.
// *repository.Repository satisfies it; absence and duplicate conditions
// surface as the repository sentinels.
type Store interface {
	CurrentGoal(ctx context.Context) (*db.ConsumptionGoal, error)
	CreateGoal(ctx context.Context, dailyLiters decimal.Decimal) (*db.ConsumptionGoal, error)
	UpdateGoal(ctx context.Context, dailyLiters decimal.Decimal) (*db.ConsumptionGoal, error)

	ListSensors(ctx context.Context) ([]db.Sensor, error)
	CreateSensor(ctx context.Context, name string) (*db.Sensor, error)
	GetSensor(ctx context.Context, id uuid.UUID) (*db.Sensor, error)
	DeleteSensor(ctx context.Context, id uuid.UUID) error

	ListRecipients(ctx context.Context) ([]db.NotificationRecipient, error)
	CreateRecipient(ctx context.Context, email string) (*db.NotificationRecipient, error)
	SetRecipientActive(ctx context.Context, id uuid.UUID, active bool) (*db.NotificationRecipient, error)
	DeleteRecipient(ctx context.Context, id uuid.UUID) error
}

// Handlers holds the API handler dependencies
type Handlers struct {
	ingest     *service.IngestService
	aggregates *aggregate.Service
	flow       *flowcontrol.Controller
	store      Store
	loc        *time.Location
	logger     *zap.Logger
}

// NewHandlers creates the API handlers
func NewHandlers(
	ingest *service.IngestService,
	aggregates *aggregate.Service,
	flow *flowcontrol.Controller,
	store Store,
	loc *time.Location,
	logger *zap.Logger,
) *Handlers {
	return &Handlers{
		ingest:     ingest,
		aggregates: aggregates,
		flow:       flow,
		store:      store,
		loc:        loc,
		logger:     logger,
	}
}

// Health reports service liveness
func (h *Handlers) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type submitReadingRequest struct {
	SensorID  string      `json:"sensor_id"`
	Value     interface{} `json:"value"`
	Timestamp string      `json:"timestamp,omitempty"`
}

type readingResponse struct {
	ID            int64   `json:"id"`
	SensorID      string  `json:"sensor_id"`
	RawValue      string  `json:"raw_value"`
	Delta         string  `json:"delta"`
	OccurredAt    string  `json:"occurred_at"`
	AnomalyReason *string `json:"anomaly_reason,omitempty"`
}

// SubmitReading accepts one cumulative sensor reading
func (h *Handlers) SubmitReading(w http.ResponseWriter, r *http.Request) {
	var req submitReadingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	sensorID, err := uuid.Parse(req.SensorID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "sensor_id must be a valid UUID")
		return
	}

	rawValue, ok := valueAsString(req.Value)
	if !ok {
		writeError(w, http.StatusBadRequest, `value must be a number or a numeric string like "123.45" or "123,45"`)
		return
	}

	var occurredAt time.Time
	if req.Timestamp != "" {
		occurredAt, err = timeparser.ParseReadingTimestamp(req.Timestamp, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "unparseable timestamp")
			return
		}
	}

	rec, err := h.ingest.SubmitReading(r.Context(), sensorID, rawValue, occurredAt, service.SourceHTTP)
	if err != nil {
		h.writeMappedError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, readingResponse{
		ID:            rec.ID,
		SensorID:      rec.SensorID.String(),
		RawValue:      rec.RawValue.StringFixed(2),
		Delta:         rec.Delta.StringFixed(2),
		OccurredAt:    rec.OccurredAt.Format(time.RFC3339),
		AnomalyReason: rec.AnomalyReason,
	})
}

// DailyConsumption returns the per-sensor breakdown and residence total
// for one calendar day (today by default)
func (h *Handlers) DailyConsumption(w http.ResponseWriter, r *http.Request) {
	day := time.Now().In(h.loc)
	if dateStr := r.URL.Query().Get("date"); dateStr != "" {
		parsed, err := time.ParseInLocation("2006-01-02", dateStr, h.loc)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be formatted as YYYY-MM-DD")
			return
		}
		day = parsed
	}

	report, err := h.aggregates.Daily(r.Context(), day)
	if err != nil {
		h.writeMappedError(w, err)
		return
	}

	sensors := make([]map[string]string, 0, len(report.Sensors))
	for _, st := range report.Sensors {
		sensors = append(sensors, map[string]string{
			"sensor":      st.Sensor,
			"consumption": st.Total.StringFixed(2),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"date":            report.Day.Format("02/01/2006"),
		"sensors":         sensors,
		"residence_total": report.Total.StringFixed(2),
	})
}

// MonthlyConsumption returns either the detail of one month or, without
// a month parameter, the twelve-month summary of the year
func (h *Handlers) MonthlyConsumption(w http.ResponseWriter, r *http.Request) {
	now := time.Now().In(h.loc)

	year := now.Year()
	if yearStr := r.URL.Query().Get("year"); yearStr != "" {
		parsed, err := strconv.Atoi(yearStr)
		if err != nil {
			writeError(w, http.StatusBadRequest, "year must be an integer")
			return
		}
		year = parsed
	}

	monthStr := r.URL.Query().Get("month")
	if monthStr == "" {
		h.yearSummary(w, r, year)
		return
	}

	month, err := strconv.Atoi(monthStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "month must be an integer")
		return
	}
	if month < 1 || month > 12 {
		writeError(w, http.StatusBadRequest, "month must be between 1 and 12")
		return
	}

	report, err := h.aggregates.Monthly(r.Context(), year, time.Month(month))
	if err != nil {
		h.writeMappedError(w, err)
		return
	}

	days := make([]map[string]string, 0, len(report.Days))
	for _, d := range report.Days {
		days = append(days, map[string]string{
			"date":   d.Day.Format("02/01/2006"),
			"sensor": d.Sensor,
			"total":  d.Total.StringFixed(2),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"year":        report.Year,
		"month":       int(report.Month),
		"name":        report.Month.String(),
		"per_day":     days,
		"month_total": report.Total.StringFixed(2),
	})
}

func (h *Handlers) yearSummary(w http.ResponseWriter, r *http.Request, year int) {
	report, err := h.aggregates.Yearly(r.Context(), year)
	if err != nil {
		h.writeMappedError(w, err)
		return
	}

	months := make([]map[string]interface{}, 0, len(report.Months))
	for _, m := range report.Months {
		months = append(months, map[string]interface{}{
			"month": int(m.Month),
			"name":  m.Month.String(),
			"total": m.Total.StringFixed(2),
		})
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"year":       report.Year,
		"months":     months,
		"year_total": report.Total.StringFixed(2),
	})
}

type goalRequest struct {
	DailyLiters interface{} `json:"daily_liters"`
}

type goalResponse struct {
	ID          string    `json:"id"`
	DailyLiters string    `json:"daily_liters"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func toGoalResponse(goal *db.ConsumptionGoal) goalResponse {
	return goalResponse{
		ID:          goal.ID.String(),
		DailyLiters: goal.DailyLiters.StringFixed(2),
		CreatedAt:   goal.CreatedAt,
		UpdatedAt:   goal.UpdatedAt,
	}
}

// GetGoal returns the configured daily goal
func (h *Handlers) GetGoal(w http.ResponseWriter, r *http.Request) {
	goal, err := h.store.CurrentGoal(r.Context())
	if err != nil {
		h.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalResponse(goal))
}

// CreateGoal creates the singleton daily goal
func (h *Handlers) CreateGoal(w http.ResponseWriter, r *http.Request) {
	liters, ok := h.decodeGoal(w, r)
	if !ok {
		return
	}

	goal, err := h.store.CreateGoal(r.Context(), liters)
	if err != nil {
		h.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toGoalResponse(goal))
}

// UpdateGoal updates the singleton daily goal
func (h *Handlers) UpdateGoal(w http.ResponseWriter, r *http.Request) {
	liters, ok := h.decodeGoal(w, r)
	if !ok {
		return
	}

	goal, err := h.store.UpdateGoal(r.Context(), liters)
	if err != nil {
		h.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toGoalResponse(goal))
}

func (h *Handlers) decodeGoal(w http.ResponseWriter, r *http.Request) (decimal.Decimal, bool) {
	var req goalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return decimal.Decimal{}, false
	}

	raw, ok := valueAsString(req.DailyLiters)
	if !ok {
		writeError(w, http.StatusBadRequest, "daily_liters must be a number or numeric string")
		return decimal.Decimal{}, false
	}

	liters, err := reading.ParseRawValue(raw)
	if err != nil || !liters.IsPositive() {
		writeError(w, http.StatusBadRequest, "daily_liters must be a positive number")
		return decimal.Decimal{}, false
	}

	return liters, true
}

type flowStateResponse struct {
	Day                 string    `json:"day"`
	Status              string    `json:"status"`
	AutoShutoffOccurred bool      `json:"auto_shutoff_occurred"`
	UserOverrode        bool      `json:"user_overrode"`
	NotificationSent    bool      `json:"notification_sent"`
	UpdatedAt           time.Time `json:"updated_at"`
}

func toFlowStateResponse(st *db.FlowControlState) flowStateResponse {
	return flowStateResponse{
		Day:                 st.Day.Format("2006-01-02"),
		Status:              st.Status,
		AutoShutoffOccurred: st.AutoShutoffOccurred,
		UserOverrode:        st.UserOverrode,
		NotificationSent:    st.NotificationSent,
		UpdatedAt:           st.UpdatedAt,
	}
}

// FlowStatus returns today's flow control record, creating it if absent
func (h *Handlers) FlowStatus(w http.ResponseWriter, r *http.Request) {
	st, err := h.flow.Status(r.Context(), time.Now().In(h.loc))
	if err != nil {
		h.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFlowStateResponse(st))
}

type setStatusRequest struct {
	Status string `json:"status"`
}

// SetFlowStatus applies a manual on/off command for today
func (h *Handlers) SetFlowStatus(w http.ResponseWriter, r *http.Request) {
	var req setStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	st, err := h.flow.SetStatus(r.Context(), time.Now().In(h.loc), req.Status)
	if err != nil {
		h.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toFlowStateResponse(st))
}

type sensorRequest struct {
	Name string `json:"name"`
}

type sensorResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// ListSensors returns all registered sensors
func (h *Handlers) ListSensors(w http.ResponseWriter, r *http.Request) {
	sensors, err := h.store.ListSensors(r.Context())
	if err != nil {
		h.writeMappedError(w, err)
		return
	}

	out := make([]sensorResponse, 0, len(sensors))
	for _, s := range sensors {
		out = append(out, sensorResponse{ID: s.ID.String(), Name: s.Name, CreatedAt: s.CreatedAt})
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateSensor registers a new sensor
func (h *Handlers) CreateSensor(w http.ResponseWriter, r *http.Request) {
	var req sensorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	name := strings.TrimSpace(req.Name)
	if name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	sensor, err := h.store.CreateSensor(r.Context(), name)
	if err != nil {
		h.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sensorResponse{ID: sensor.ID.String(), Name: sensor.Name, CreatedAt: sensor.CreatedAt})
}

// GetSensor returns one sensor by id
func (h *Handlers) GetSensor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	sensor, err := h.store.GetSensor(r.Context(), id)
	if err != nil {
		h.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sensorResponse{ID: sensor.ID.String(), Name: sensor.Name, CreatedAt: sensor.CreatedAt})
}

// DeleteSensor removes a sensor
func (h *Handlers) DeleteSensor(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteSensor(r.Context(), id); err != nil {
		h.writeMappedError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type recipientRequest struct {
	Email string `json:"email"`
}

type recipientUpdateRequest struct {
	Active *bool `json:"active"`
}

type recipientResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toRecipientResponse(rec *db.NotificationRecipient) recipientResponse {
	return recipientResponse{
		ID:        rec.ID.String(),
		Email:     rec.Email,
		Active:    rec.Active,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	}
}

// ListRecipients returns all alert recipients
func (h *Handlers) ListRecipients(w http.ResponseWriter, r *http.Request) {
	recipients, err := h.store.ListRecipients(r.Context())
	if err != nil {
		h.writeMappedError(w, err)
		return
	}

	out := make([]recipientResponse, 0, len(recipients))
	for i := range recipients {
		out = append(out, toRecipientResponse(&recipients[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// CreateRecipient registers a new alert email address
func (h *Handlers) CreateRecipient(w http.ResponseWriter, r *http.Request) {
	var req recipientRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || !strings.Contains(email, "@") {
		writeError(w, http.StatusBadRequest, "a valid email is required")
		return
	}

	rec, err := h.store.CreateRecipient(r.Context(), email)
	if err != nil {
		h.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRecipientResponse(rec))
}

// UpdateRecipient toggles a recipient's active flag
func (h *Handlers) UpdateRecipient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	var req recipientUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Active == nil {
		writeError(w, http.StatusBadRequest, "active field is required")
		return
	}

	rec, err := h.store.SetRecipientActive(r.Context(), id, *req.Active)
	if err != nil {
		h.writeMappedError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRecipientResponse(rec))
}

// DeleteRecipient removes an alert recipient
func (h *Handlers) DeleteRecipient(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r)
	if !ok {
		return
	}

	if err := h.store.DeleteRecipient(r.Context(), id); err != nil {
		h.writeMappedError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		writeError(w, http.StatusBadRequest, "id must be a valid UUID")
		return uuid.UUID{}, false
	}
	return id, true
}

// valueAsString accepts JSON numbers and numeric strings interchangeably
func valueAsString(v interface{}) (string, bool) {
	switch value := v.(type) {
	case string:
		return value, true
	case float64:
		return strconv.FormatFloat(value, 'f', -1, 64), true
	default:
		return "", false
	}
}

func (h *Handlers) writeMappedError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
		writeError(w, status, "internal error")
		return
	}
	writeError(w, status, err.Error())
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, reading.ErrInvalidValue),
		errors.Is(err, flowcontrol.ErrInvalidStatus):
		return http.StatusBadRequest
	case errors.Is(err, repository.ErrUnknownSensor),
		errors.Is(err, repository.ErrGoalNotFound),
		errors.Is(err, repository.ErrRecipientNotFound):
		return http.StatusNotFound
	case errors.Is(err, repository.ErrSensorExists),
		errors.Is(err, repository.ErrGoalExists),
		errors.Is(err, repository.ErrRecipientExists):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		fmt.Fprintf(w, `{"error":"encoding failed"}`)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
