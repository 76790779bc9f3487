package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/aglayrton/fluxo-agua/internal/anomaly"
	"github.com/aglayrton/fluxo-agua/internal/config"
	"github.com/aglayrton/fluxo-agua/internal/db"
	"github.com/aglayrton/fluxo-agua/internal/flowcontrol"
	"github.com/aglayrton/fluxo-agua/internal/logging"
	"github.com/aglayrton/fluxo-agua/internal/metrics"
	"github.com/aglayrton/fluxo-agua/internal/mq"
	"github.com/aglayrton/fluxo-agua/internal/reading"
	"github.com/aglayrton/fluxo-agua/internal/repository"
	"github.com/aglayrton/fluxo-agua/tools/timeparser"
)

// IngestMessage represents the incoming message from the gateway queue
type IngestMessage struct {
	RequestID  string    `json:"request_id"`
	ReceivedAt time.Time `json:"received_at"`
	Payload    Payload   `json:"payload"`
}

// Payload represents the water meter reading payload
type Payload struct {
	WM []WMData `json:"WM"`
}

// WMData represents a single water meter reading
type WMData struct {
	Sensor string `json:"sensor"`
	Value  string `json:"value"`
	Date   string `json:"date"`
}

// Ingest sources reported in metrics and logs
const (
	SourceHTTP = "http"
	SourceAMQP = "amqp"
)

// IngestService normalizes raw readings into deltas and drives the flow
// control evaluation for the reading's calendar day.
type IngestService struct {
	repo       *repository.Repository
	detector   *anomaly.Detector
	controller *flowcontrol.Controller
	publisher  *mq.Publisher
	metrics    *metrics.Metrics
	cfg        *config.Config
	logger     *zap.Logger
}

// NewIngestService creates a new ingest service
func NewIngestService(
	repo *repository.Repository,
	detector *anomaly.Detector,
	controller *flowcontrol.Controller,
	publisher *mq.Publisher,
	m *metrics.Metrics,
	cfg *config.Config,
	logger *zap.Logger,
) *IngestService {
	return &IngestService{
		repo:       repo,
		detector:   detector,
		controller: controller,
		publisher:  publisher,
		metrics:    m,
		cfg:        cfg,
		logger:     logger,
	}
}

// SubmitReading normalizes and persists one cumulative reading. The
// read-prior-then-write sequence holds the sensor row lock, so two
// concurrent readings for the same sensor cannot observe the same prior
// value. On success the flow control evaluation for the reading's day
// runs synchronously before the accepted event is published.
//
// occurredAt may be the zero time, in which case the current instant in
// the configured residence timezone is used.
func (s *IngestService) SubmitReading(ctx context.Context, sensorID uuid.UUID, rawValue string, occurredAt time.Time, source string) (*db.Reading, error) {
	value, err := reading.ParseRawValue(rawValue)
	if err != nil {
		s.metrics.ReadingRejected()
		return nil, err
	}

	loc := s.cfg.Control.Location
	if occurredAt.IsZero() {
		occurredAt = time.Now().In(loc)
	}

	sensorLogger := logging.WithSensor(s.logger, sensorID.String())

	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := s.repo.LockSensorTx(ctx, tx, sensorID); err != nil {
		s.metrics.ReadingRejected()
		return nil, err
	}

	prior, err := s.repo.LatestReadingTx(ctx, tx, sensorID)
	if err != nil {
		return nil, fmt.Errorf("failed to load prior reading: %w", err)
	}

	var priorValue *decimal.Decimal
	if prior != nil {
		priorValue = &prior.RawValue
	}
	delta := reading.ComputeDelta(priorValue, value)

	var anomalyReason *string
	historical, err := s.repo.RecentDeltasTx(ctx, tx, sensorID, 10)
	if err != nil {
		sensorLogger.Warn("failed to load recent deltas for spike detection", zap.Error(err))
	} else if isSpike, reason := s.detector.DetectSpike(delta, historical); isSpike {
		anomalyReason = &reason
		sensorLogger.Warn("consumption spike flagged",
			zap.String("delta", delta.StringFixed(2)),
			zap.String("reason", reason),
		)
	}

	rec := &db.Reading{
		SensorID:      sensorID,
		OccurredAt:    occurredAt,
		RawValue:      value,
		Delta:         delta,
		AnomalyReason: anomalyReason,
		ReceivedAt:    time.Now(),
	}

	if err := s.repo.InsertReadingTx(ctx, tx, rec); err != nil {
		return nil, err
	}

	day := timeparser.DayOf(rec.OccurredAt, loc)
	if err := s.repo.UpsertDailyConsumptionTx(ctx, tx, sensorID, day, delta); err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit reading: %w", err)
	}

	s.metrics.ReadingProcessed(source)
	if anomalyReason != nil {
		s.metrics.AnomalyFlagged()
	}

	// The reading is committed; the controller runs in its own day-scoped
	// transaction and its failure must not un-accept the reading.
	if err := s.controller.Evaluate(ctx, day); err != nil {
		s.logger.Error("flow control evaluation failed",
			zap.Error(err),
			zap.String("day", day.Format("2006-01-02")),
		)
	}

	if s.publisher != nil {
		event := mq.ReadingAcceptedEvent{
			SensorID:      sensorID.String(),
			RawValue:      rec.RawValue.StringFixed(2),
			Delta:         rec.Delta.StringFixed(2),
			OccurredAt:    rec.OccurredAt.Format(time.RFC3339),
			AnomalyReason: anomalyReason,
		}
		if err := s.publisher.PublishReadingAccepted(ctx, event, s.cfg.RabbitMQ.EventRoutingKey); err != nil {
			// Log error but don't fail the submission
			s.logger.Error("failed to publish reading accepted event",
				zap.Error(err),
				zap.String("sensor_id", event.SensorID),
			)
		}
	}

	return rec, nil
}

// ProcessMessage processes an incoming gateway reading message
func (s *IngestService) ProcessMessage(ctx context.Context, body []byte) error {
	var msg IngestMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return fmt.Errorf("failed to unmarshal message: %w", err)
	}

	reqLogger := logging.WithRequestID(s.logger, msg.RequestID)
	reqLogger.Info("processing gateway message",
		zap.Int("wm_count", len(msg.Payload.WM)),
	)

	for _, wm := range msg.Payload.WM {
		sensor, err := s.repo.GetSensorByName(ctx, wm.Sensor)
		if err != nil {
			reqLogger.Error("failed to resolve sensor",
				zap.Error(err),
				zap.String("sensor", wm.Sensor),
			)
			return fmt.Errorf("failed to resolve sensor: %w", err)
		}

		occurredAt, err := timeparser.ParseReadingTimestamp(wm.Date, s.cfg.Control.Location)
		if err != nil {
			// Fall back to the gateway receipt time
			reqLogger.Warn("unparseable reading timestamp, using received_at",
				zap.String("date", wm.Date),
				zap.String("sensor", wm.Sensor),
			)
			occurredAt = msg.ReceivedAt
		}

		if _, err := s.SubmitReading(ctx, sensor.ID, wm.Value, occurredAt, SourceAMQP); err != nil {
			reqLogger.Error("failed to process reading",
				zap.Error(err),
				zap.String("sensor", wm.Sensor),
			)
			return fmt.Errorf("failed to process reading: %w", err)
		}
	}

	reqLogger.Info("gateway message processed successfully",
		zap.Int("readings_count", len(msg.Payload.WM)),
	)

	return nil
}
